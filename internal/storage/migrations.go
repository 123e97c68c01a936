package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Masterminds/semver/v3"

	"github.com/dshills/tripdesk-mcp/pkg/types"
)

const (
	// CurrentSchemaVersion tracks the database schema version
	CurrentSchemaVersion = "1.2.0"
)

// Migration represents a database schema migration
type Migration struct {
	Version string
	Up      string
	Down    string
}

// AllMigrations contains all database migrations in order
var AllMigrations = []Migration{
	{
		Version: "1.0.0",
		Up:      migrationV1Up,
		Down:    migrationV1Down,
	},
	{
		Version: "1.1.0",
		Up:      migrationV11Up,
		Down:    migrationV11Down,
	},
	{
		Version: "1.2.0",
		Up:      migrationV12Up,
		Down:    migrationV12Down,
	},
}

const migrationV1Up = `
-- Schema version tracking
CREATE TABLE IF NOT EXISTS schema_version (
    version TEXT PRIMARY KEY,
    applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

-- Trips table; data holds the embedded JSON document
CREATE TABLE IF NOT EXISTS trips (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    name TEXT NOT NULL,
    slug TEXT,
    status TEXT NOT NULL DEFAULT 'planning',
    destinations TEXT NOT NULL DEFAULT '[]',
    start_date TEXT,
    end_date TEXT,
    data TEXT NOT NULL DEFAULT '{}',
    search_text TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_trips_slug ON trips(slug);
CREATE INDEX IF NOT EXISTS idx_trips_status ON trips(status);
CREATE INDEX IF NOT EXISTS idx_trips_updated ON trips(updated_at);

-- Normalized client assignments (authoritative)
CREATE TABLE IF NOT EXISTS trip_assignments (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    trip_id INTEGER NOT NULL,
    client_email TEXT NOT NULL,
    client_name TEXT NOT NULL DEFAULT '',
    role TEXT NOT NULL,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    FOREIGN KEY (trip_id) REFERENCES trips(id) ON DELETE CASCADE,
    UNIQUE(trip_id, client_email, role)
);

CREATE INDEX IF NOT EXISTS idx_assignments_trip ON trip_assignments(trip_id);
CREATE INDEX IF NOT EXISTS idx_assignments_email ON trip_assignments(client_email);

-- Derived facts, one row per trip
CREATE TABLE IF NOT EXISTS trip_facts (
    trip_id INTEGER PRIMARY KEY,
    nights INTEGER NOT NULL DEFAULT 0,
    hotel_count INTEGER NOT NULL DEFAULT 0,
    activity_count INTEGER NOT NULL DEFAULT 0,
    total_cost REAL NOT NULL DEFAULT 0,
    transit_minutes INTEGER NOT NULL DEFAULT 0,
    last_computed TIMESTAMP,
    version INTEGER NOT NULL DEFAULT 0,
    FOREIGN KEY (trip_id) REFERENCES trips(id) ON DELETE CASCADE
);

-- Semantic components
CREATE TABLE IF NOT EXISTS trip_components (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    trip_id INTEGER NOT NULL,
    component_type TEXT NOT NULL,
    value TEXT NOT NULL,
    weight REAL NOT NULL,
    synonyms TEXT NOT NULL DEFAULT '[]',
    FOREIGN KEY (trip_id) REFERENCES trips(id) ON DELETE CASCADE,
    UNIQUE(trip_id, component_type, value)
);

CREATE INDEX IF NOT EXISTS idx_components_trip_type ON trip_components(trip_id, component_type);
CREATE INDEX IF NOT EXISTS idx_components_value ON trip_components(value);
`

const migrationV1Down = `
DROP TABLE IF EXISTS trip_components;
DROP TABLE IF EXISTS trip_facts;
DROP TABLE IF EXISTS trip_assignments;
DROP TABLE IF EXISTS trips;
DROP TABLE IF EXISTS schema_version;
`

// 1.1.0 introduces cycle-scoped dirty markers
const migrationV11Up = `
CREATE TABLE IF NOT EXISTS fact_cycle (
    id INTEGER PRIMARY KEY CHECK (id = 1),
    cycle INTEGER NOT NULL
);

INSERT OR IGNORE INTO fact_cycle (id, cycle) VALUES (1, 1);

CREATE TABLE IF NOT EXISTS dirty_queue (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    trip_id INTEGER NOT NULL,
    reason TEXT NOT NULL,
    cycle INTEGER NOT NULL,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    UNIQUE(trip_id, reason, cycle)
);

CREATE INDEX IF NOT EXISTS idx_dirty_trip ON dirty_queue(trip_id);
CREATE INDEX IF NOT EXISTS idx_dirty_cycle ON dirty_queue(cycle);
`

const migrationV11Down = `
DROP TABLE IF EXISTS dirty_queue;
DROP TABLE IF EXISTS fact_cycle;
`

// SQLite cannot add a foreign key to an existing table, so 1.2.0 rebuilds
// dirty_queue. Markers of trips that no longer exist are dropped.
const migrationV12Up = `
CREATE TABLE dirty_queue_v12 (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    trip_id INTEGER NOT NULL,
    reason TEXT NOT NULL,
    cycle INTEGER NOT NULL,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    UNIQUE(trip_id, reason, cycle),
    FOREIGN KEY (trip_id) REFERENCES trips(id) ON DELETE CASCADE
);

INSERT INTO dirty_queue_v12 (id, trip_id, reason, cycle, created_at)
SELECT id, trip_id, reason, cycle, created_at FROM dirty_queue
WHERE trip_id IN (SELECT id FROM trips);

DROP TABLE dirty_queue;
ALTER TABLE dirty_queue_v12 RENAME TO dirty_queue;

CREATE INDEX IF NOT EXISTS idx_dirty_trip ON dirty_queue(trip_id);
CREATE INDEX IF NOT EXISTS idx_dirty_cycle ON dirty_queue(cycle);
`

const migrationV12Down = `
CREATE TABLE dirty_queue_v11 (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    trip_id INTEGER NOT NULL,
    reason TEXT NOT NULL,
    cycle INTEGER NOT NULL,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    UNIQUE(trip_id, reason, cycle)
);

INSERT INTO dirty_queue_v11 (id, trip_id, reason, cycle, created_at)
SELECT id, trip_id, reason, cycle, created_at FROM dirty_queue;

DROP TABLE dirty_queue;
ALTER TABLE dirty_queue_v11 RENAME TO dirty_queue;

CREATE INDEX IF NOT EXISTS idx_dirty_trip ON dirty_queue(trip_id);
CREATE INDEX IF NOT EXISTS idx_dirty_cycle ON dirty_queue(cycle);
`

// ApplyMigrations runs all pending migrations
func ApplyMigrations(ctx context.Context, db *sql.DB) error {
	currentVersion, err := currentSchemaVersion(ctx, db)
	if err != nil {
		return err
	}

	// Run migrations in order
	for _, migration := range AllMigrations {
		migrationVersion, err := semver.NewVersion(migration.Version)
		if err != nil {
			return fmt.Errorf("invalid migration version %s: %w", migration.Version, err)
		}

		if !currentVersion.LessThan(migrationVersion) {
			continue // Already applied
		}

		if _, err := db.ExecContext(ctx, migration.Up); err != nil {
			return fmt.Errorf("failed to apply migration %s: %w", migration.Version, err)
		}

		if _, err := db.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", migration.Version); err != nil {
			return fmt.Errorf("failed to record migration %s: %w", migration.Version, err)
		}

		currentVersion = migrationVersion
	}

	return nil
}

// currentSchemaVersion returns the highest applied version, 0.0.0 when none
func currentSchemaVersion(ctx context.Context, db *sql.DB) (*semver.Version, error) {
	var tableName string
	err := db.QueryRowContext(ctx, "SELECT name FROM sqlite_master WHERE type='table' AND name='schema_version'").Scan(&tableName)
	if err == sql.ErrNoRows {
		return semver.MustParse("0.0.0"), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to check schema_version table: %w", err)
	}

	rows, err := db.QueryContext(ctx, "SELECT version FROM schema_version")
	if err != nil {
		return nil, fmt.Errorf("failed to read schema_version: %w", err)
	}
	defer func() { _ = rows.Close() }()

	// applied_at has second resolution, so compare versions rather than timestamps
	current := semver.MustParse("0.0.0")
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		v, err := semver.NewVersion(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid current schema version %s: %w", raw, err)
		}
		if current.LessThan(v) {
			current = v
		}
	}
	return current, rows.Err()
}

// RollbackMigration rolls back the most recent migration
func RollbackMigration(ctx context.Context, db *sql.DB) error {
	current, err := currentSchemaVersion(ctx, db)
	if err != nil {
		return err
	}
	if current.Equal(semver.MustParse("0.0.0")) {
		return fmt.Errorf("no migrations to rollback")
	}

	var migration *Migration
	for i := range AllMigrations {
		if semver.MustParse(AllMigrations[i].Version).Equal(current) {
			migration = &AllMigrations[i]
			break
		}
	}
	if migration == nil {
		return fmt.Errorf("migration %s not found", current)
	}

	if _, err := db.ExecContext(ctx, migration.Down); err != nil {
		return fmt.Errorf("failed to rollback migration %s: %w", migration.Version, err)
	}

	// The 1.0.0 down script drops schema_version itself
	if migration.Version != AllMigrations[0].Version {
		if _, err := db.ExecContext(ctx, "DELETE FROM schema_version WHERE version = ?", migration.Version); err != nil {
			return fmt.Errorf("failed to remove migration record %s: %w", migration.Version, err)
		}
	}

	return nil
}

// MigrateDocuments rewrites embedded trip documents stored at an older
// document version. It returns the number of rewritten trips.
func MigrateDocuments(ctx context.Context, db *sql.DB) (int, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, data FROM trips
		WHERE COALESCE(json_extract(data, '$.schema_version'), 1) < ?
	`, types.CurrentDocumentVersion)
	if err != nil {
		return 0, fmt.Errorf("failed to scan trip documents: %w", err)
	}

	type pending struct {
		id  int64
		doc []byte
	}
	var upgrades []pending
	for rows.Next() {
		var id int64
		var raw string
		if err := rows.Scan(&id, &raw); err != nil {
			_ = rows.Close()
			return 0, err
		}
		doc, err := types.DecodeTripDocument([]byte(raw))
		if err != nil {
			_ = rows.Close()
			return 0, fmt.Errorf("trip %d: %w", id, err)
		}
		encoded, err := doc.Encode()
		if err != nil {
			_ = rows.Close()
			return 0, err
		}
		upgrades = append(upgrades, pending{id: id, doc: encoded})
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return 0, err
	}
	_ = rows.Close()

	for _, u := range upgrades {
		if _, err := db.ExecContext(ctx, "UPDATE trips SET data = ? WHERE id = ?", string(u.doc), u.id); err != nil {
			return 0, fmt.Errorf("failed to rewrite trip %d document: %w", u.id, err)
		}
	}
	return len(upgrades), nil
}
