package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dshills/tripdesk-mcp/pkg/types"
)

var (
	// ErrNotFound is returned when a requested entity doesn't exist
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists is returned when trying to create a duplicate entity
	ErrAlreadyExists = errors.New("already exists")
	// ErrSlugTaken is returned when a slug is already used by another trip
	ErrSlugTaken = errors.New("slug already in use")
)

// MissingTripError reports a write that references a trip id with no row.
// It matches ErrNotFound under errors.Is.
type MissingTripError struct {
	TripID int64
}

func (e *MissingTripError) Error() string {
	return fmt.Sprintf("trip %d does not exist", e.TripID)
}

// Is reports whether target is ErrNotFound
func (e *MissingTripError) Is(target error) bool {
	return target == ErrNotFound
}

const dateLayout = "2006-01-02"

// maxInParams bounds the number of bind parameters per IN clause
const maxInParams = 500

// SQLiteStorage implements the Storage interface using SQLite
type SQLiteStorage struct {
	db *sql.DB
}

// openDatabase opens a SQLite database with appropriate settings
func openDatabase(dbPath string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, dbPath)
	if err != nil {
		return nil, err
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// SQLite benefits from a single writer; this also keeps :memory: databases alive
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return db, nil
}

// NewSQLiteStorage opens (or creates) the database at dbPath, applies schema
// migrations and upgrades embedded documents written by older versions
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	db, err := openDatabase(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	ctx := context.Background()
	if err := ApplyMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}
	if _, err := MigrateDocuments(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to migrate trip documents: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

// NewSQLiteStorageFromDB wraps an already opened and migrated database
func NewSQLiteStorageFromDB(db *sql.DB) *SQLiteStorage {
	return &SQLiteStorage{db: db}
}

// Close closes the database connection
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// querier is an interface that both *sql.DB and *sql.Tx implement
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// withTx runs fn inside a transaction. fn must only use the querier it is
// given: the pool holds a single connection.
func (s *SQLiteStorage) withTx(ctx context.Context, fn func(q querier) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// rowScanner is implemented by *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func isForeignKeyViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "FOREIGN KEY constraint failed")
}

func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func formatDate(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return t.Format(dateLayout)
}

func parseDate(ns sql.NullString) (time.Time, error) {
	if !ns.Valid || ns.String == "" {
		return time.Time{}, nil
	}
	return time.Parse(dateLayout, ns.String)
}

// Trip operations

const tripColumns = `id, name, COALESCE(slug, ''), status, destinations, start_date, end_date,
		       data, search_text, created_at, updated_at`

func scanTrip(row rowScanner) (*types.Trip, error) {
	var trip types.Trip
	var status, destinations, data string
	var start, end sql.NullString
	err := row.Scan(
		&trip.ID, &trip.Name, &trip.Slug, &status, &destinations, &start, &end,
		&data, &trip.SearchText, &trip.CreatedAt, &trip.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	trip.Status = types.TripStatus(status)

	if err := json.Unmarshal([]byte(destinations), &trip.Destinations); err != nil {
		return nil, fmt.Errorf("trip %d: invalid destinations: %w", trip.ID, err)
	}
	if trip.StartDate, err = parseDate(start); err != nil {
		return nil, fmt.Errorf("trip %d: invalid start_date: %w", trip.ID, err)
	}
	if trip.EndDate, err = parseDate(end); err != nil {
		return nil, fmt.Errorf("trip %d: invalid end_date: %w", trip.ID, err)
	}

	doc, err := types.DecodeTripDocument([]byte(data))
	if err != nil {
		return nil, fmt.Errorf("trip %d: %w", trip.ID, err)
	}
	trip.Document = *doc
	return &trip, nil
}

func encodeDestinations(destinations []string) (string, error) {
	if destinations == nil {
		destinations = []string{}
	}
	b, err := json.Marshal(destinations)
	return string(b), err
}

// CreateTrip inserts a trip with its embedded document
func (s *SQLiteStorage) CreateTrip(ctx context.Context, trip *types.Trip) error {
	if err := trip.Document.Validate(); err != nil {
		return err
	}
	data, err := trip.Document.Encode()
	if err != nil {
		return fmt.Errorf("failed to encode trip document: %w", err)
	}
	destinations, err := encodeDestinations(trip.Destinations)
	if err != nil {
		return fmt.Errorf("failed to encode destinations: %w", err)
	}
	if trip.Status == "" {
		trip.Status = types.StatusPlanning
	}

	query := `
		INSERT INTO trips (name, slug, status, destinations, start_date, end_date, data, search_text, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id
	`
	now := time.Now()
	err = s.db.QueryRowContext(ctx, query,
		trip.Name, nullString(trip.Slug), string(trip.Status), destinations,
		formatDate(trip.StartDate), formatDate(trip.EndDate), string(data), trip.SearchText,
		now, now,
	).Scan(&trip.ID)
	if isUniqueViolation(err) {
		return ErrSlugTaken
	}
	if err != nil {
		return fmt.Errorf("failed to create trip: %w", err)
	}
	trip.CreatedAt = now
	trip.UpdatedAt = now
	return nil
}

// GetTrip retrieves a trip by id
func (s *SQLiteStorage) GetTrip(ctx context.Context, tripID int64) (*types.Trip, error) {
	query := `SELECT ` + tripColumns + ` FROM trips WHERE id = ?`
	trip, err := scanTrip(s.db.QueryRowContext(ctx, query, tripID))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return trip, err
}

// GetTripBySlug retrieves a trip by its unique slug
func (s *SQLiteStorage) GetTripBySlug(ctx context.Context, slug string) (*types.Trip, error) {
	if slug == "" {
		return nil, ErrNotFound
	}
	query := `SELECT ` + tripColumns + ` FROM trips WHERE slug = ?`
	trip, err := scanTrip(s.db.QueryRowContext(ctx, query, slug))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return trip, err
}

// ListTrips returns every trip ordered by id
func (s *SQLiteStorage) ListTrips(ctx context.Context) ([]*types.Trip, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+tripColumns+` FROM trips ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	trips := make([]*types.Trip, 0)
	for rows.Next() {
		trip, err := scanTrip(rows)
		if err != nil {
			return nil, err
		}
		trips = append(trips, trip)
	}
	return trips, rows.Err()
}

// UpdateTrip writes the attribute columns. The embedded document and the
// slug have their own write paths.
func (s *SQLiteStorage) UpdateTrip(ctx context.Context, trip *types.Trip) error {
	destinations, err := encodeDestinations(trip.Destinations)
	if err != nil {
		return fmt.Errorf("failed to encode destinations: %w", err)
	}
	query := `
		UPDATE trips
		SET name = ?, status = ?, destinations = ?, start_date = ?, end_date = ?, updated_at = ?
		WHERE id = ?
	`
	now := time.Now()
	result, err := s.db.ExecContext(ctx, query,
		trip.Name, string(trip.Status), destinations,
		formatDate(trip.StartDate), formatDate(trip.EndDate), now, trip.ID)
	if err != nil {
		return fmt.Errorf("failed to update trip: %w", err)
	}
	if err := expectAffected(result); err != nil {
		return err
	}
	trip.UpdatedAt = now
	return nil
}

// SetTripSlug assigns a slug; the unique index rejects slugs held by other trips
func (s *SQLiteStorage) SetTripSlug(ctx context.Context, tripID int64, slug string) error {
	result, err := s.db.ExecContext(ctx, `UPDATE trips SET slug = ? WHERE id = ?`, nullString(slug), tripID)
	if isUniqueViolation(err) {
		return ErrSlugTaken
	}
	if err != nil {
		return fmt.Errorf("failed to set slug: %w", err)
	}
	return expectAffected(result)
}

// UpdateSearchText stores the denormalized search representation
func (s *SQLiteStorage) UpdateSearchText(ctx context.Context, tripID int64, text string) error {
	result, err := s.db.ExecContext(ctx, `UPDATE trips SET search_text = ? WHERE id = ?`, text, tripID)
	if err != nil {
		return fmt.Errorf("failed to update search text: %w", err)
	}
	return expectAffected(result)
}

// ListSearchRows returns the search representation of every trip
func (s *SQLiteStorage) ListSearchRows(ctx context.Context) ([]SearchRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, COALESCE(slug, ''), search_text, updated_at
		FROM trips
		ORDER BY id
	`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	result := make([]SearchRow, 0)
	for rows.Next() {
		var r SearchRow
		if err := rows.Scan(&r.TripID, &r.Name, &r.Slug, &r.SearchText, &r.UpdatedAt); err != nil {
			return nil, err
		}
		result = append(result, r)
	}
	return result, rows.Err()
}

func expectAffected(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Assignment operations

// UpsertAssignment inserts or refreshes a normalized assignment row
func (s *SQLiteStorage) UpsertAssignment(ctx context.Context, a *types.ClientAssignment) error {
	query := `
		INSERT INTO trip_assignments (trip_id, client_email, client_name, role, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(trip_id, client_email, role) DO UPDATE SET
			client_name = CASE WHEN excluded.client_name <> '' THEN excluded.client_name ELSE trip_assignments.client_name END,
			updated_at = excluded.updated_at
		RETURNING client_name
	`
	now := time.Now()
	err := s.db.QueryRowContext(ctx, query,
		a.TripID, a.ClientEmail, a.ClientName, string(a.Role), now, now,
	).Scan(&a.ClientName)
	if isForeignKeyViolation(err) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to upsert assignment: %w", err)
	}
	return nil
}

// DeleteAssignments removes every role of a client on a trip
func (s *SQLiteStorage) DeleteAssignments(ctx context.Context, tripID int64, clientEmail string) (int, error) {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM trip_assignments WHERE trip_id = ? AND client_email = ?`, tripID, clientEmail)
	if err != nil {
		return 0, fmt.Errorf("failed to delete assignments: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

// ListAssignments returns the normalized assignments of one trip
func (s *SQLiteStorage) ListAssignments(ctx context.Context, tripID int64) ([]types.ClientAssignment, error) {
	return s.queryAssignments(ctx, `
		SELECT trip_id, client_email, client_name, role
		FROM trip_assignments
		WHERE trip_id = ?
		ORDER BY client_email, role
	`, tripID)
}

// ListAllAssignments returns every normalized assignment
func (s *SQLiteStorage) ListAllAssignments(ctx context.Context) ([]types.ClientAssignment, error) {
	return s.queryAssignments(ctx, `
		SELECT trip_id, client_email, client_name, role
		FROM trip_assignments
		ORDER BY trip_id, client_email, role
	`)
}

func (s *SQLiteStorage) queryAssignments(ctx context.Context, query string, args ...interface{}) ([]types.ClientAssignment, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	result := make([]types.ClientAssignment, 0)
	for rows.Next() {
		var a types.ClientAssignment
		var role string
		if err := rows.Scan(&a.TripID, &a.ClientEmail, &a.ClientName, &role); err != nil {
			return nil, err
		}
		a.Role = types.Role(role)
		result = append(result, a)
	}
	return result, rows.Err()
}

// Fact operations

// UpsertFacts writes a facts row. The version is incremented by the
// database so concurrent writers can never move it backwards.
func (s *SQLiteStorage) UpsertFacts(ctx context.Context, facts *types.TripFacts) error {
	query := `
		INSERT INTO trip_facts (trip_id, nights, hotel_count, activity_count, total_cost, transit_minutes, last_computed, version)
		VALUES (?, ?, ?, ?, ?, ?, ?, 1)
		ON CONFLICT(trip_id) DO UPDATE SET
			nights = excluded.nights,
			hotel_count = excluded.hotel_count,
			activity_count = excluded.activity_count,
			total_cost = excluded.total_cost,
			transit_minutes = excluded.transit_minutes,
			last_computed = excluded.last_computed,
			version = trip_facts.version + 1
		RETURNING version
	`
	err := s.db.QueryRowContext(ctx, query,
		facts.TripID, facts.Nights, facts.HotelCount, facts.ActivityCount,
		facts.TotalCost, facts.TransitMinutes, facts.LastComputed,
	).Scan(&facts.Version)
	if isForeignKeyViolation(err) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to upsert facts: %w", err)
	}
	return nil
}

// GetFacts reads the facts row of a trip
func (s *SQLiteStorage) GetFacts(ctx context.Context, tripID int64) (*types.TripFacts, error) {
	query := `
		SELECT trip_id, nights, hotel_count, activity_count, total_cost, transit_minutes, last_computed, version
		FROM trip_facts
		WHERE trip_id = ?
	`
	var f types.TripFacts
	var lastComputed sql.NullTime
	err := s.db.QueryRowContext(ctx, query, tripID).Scan(
		&f.TripID, &f.Nights, &f.HotelCount, &f.ActivityCount,
		&f.TotalCost, &f.TransitMinutes, &lastComputed, &f.Version,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if lastComputed.Valid {
		f.LastComputed = lastComputed.Time
	}
	return &f, nil
}

// Dirty queue operations

// EnqueueDirty inserts markers into the open cycle. Duplicate
// (trip, reason, cycle) rows are ignored rather than replaced. An unknown
// trip id fails the whole batch with *MissingTripError.
func (s *SQLiteStorage) EnqueueDirty(ctx context.Context, tripIDs []int64, reason string, at time.Time) (int, error) {
	marked := 0
	err := s.withTx(ctx, func(q querier) error {
		for _, id := range tripIDs {
			result, err := q.ExecContext(ctx, `
				INSERT OR IGNORE INTO dirty_queue (trip_id, reason, cycle, created_at)
				SELECT ?, ?, cycle, ? FROM fact_cycle WHERE id = 1
			`, id, reason, at)
			if isForeignKeyViolation(err) {
				return &MissingTripError{TripID: id}
			}
			if err != nil {
				return fmt.Errorf("failed to enqueue dirty marker: %w", err)
			}
			n, err := result.RowsAffected()
			if err != nil {
				return err
			}
			marked += int(n)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return marked, nil
}

// CloseCycle ends the open marking cycle and returns its number
func (s *SQLiteStorage) CloseCycle(ctx context.Context) (int64, error) {
	var closed int64
	err := s.db.QueryRowContext(ctx,
		`UPDATE fact_cycle SET cycle = cycle + 1 WHERE id = 1 RETURNING cycle - 1`,
	).Scan(&closed)
	if err != nil {
		return 0, fmt.Errorf("failed to close dirty cycle: %w", err)
	}
	return closed, nil
}

// ClaimDirty returns up to limit distinct dirty trips, oldest marker first
func (s *SQLiteStorage) ClaimDirty(ctx context.Context, maxCycle int64, limit int) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT trip_id
		FROM dirty_queue
		WHERE cycle <= ?
		GROUP BY trip_id
		ORDER BY MIN(id)
		LIMIT ?
	`, maxCycle, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	ids := make([]int64, 0, limit)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ClearDirty removes a trip's markers from closed cycles
func (s *SQLiteStorage) ClearDirty(ctx context.Context, tripID int64, maxCycle int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM dirty_queue WHERE trip_id = ? AND cycle <= ?`, tripID, maxCycle)
	if err != nil {
		return fmt.Errorf("failed to clear dirty markers: %w", err)
	}
	return nil
}

// ListDirty returns every queued marker in insertion order
func (s *SQLiteStorage) ListDirty(ctx context.Context) ([]types.DirtyMarker, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT trip_id, reason, cycle, created_at FROM dirty_queue ORDER BY id
	`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	markers := make([]types.DirtyMarker, 0)
	for rows.Next() {
		var m types.DirtyMarker
		if err := rows.Scan(&m.TripID, &m.Reason, &m.Cycle, &m.CreatedAt); err != nil {
			return nil, err
		}
		markers = append(markers, m)
	}
	return markers, rows.Err()
}

// CountDirtyTrips returns the number of distinct trips with queued markers
func (s *SQLiteStorage) CountDirtyTrips(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(DISTINCT trip_id) FROM dirty_queue`).Scan(&n)
	return n, err
}

// Component operations

// ReplaceComponents swaps a trip's components in one transaction
func (s *SQLiteStorage) ReplaceComponents(ctx context.Context, tripID int64, components []types.TripComponent) error {
	return s.withTx(ctx, func(q querier) error {
		if _, err := q.ExecContext(ctx, `DELETE FROM trip_components WHERE trip_id = ?`, tripID); err != nil {
			return fmt.Errorf("failed to delete components: %w", err)
		}
		for _, c := range components {
			synonyms := c.Synonyms
			if synonyms == nil {
				synonyms = []string{}
			}
			encoded, err := json.Marshal(synonyms)
			if err != nil {
				return err
			}
			_, err = q.ExecContext(ctx, `
				INSERT INTO trip_components (trip_id, component_type, value, weight, synonyms)
				VALUES (?, ?, ?, ?, ?)
				ON CONFLICT(trip_id, component_type, value) DO UPDATE SET
					weight = MAX(trip_components.weight, excluded.weight),
					synonyms = CASE WHEN excluded.synonyms <> '[]' THEN excluded.synonyms ELSE trip_components.synonyms END
			`, tripID, string(c.Type), c.Value, c.Weight, string(encoded))
			if isForeignKeyViolation(err) {
				return ErrNotFound
			}
			if err != nil {
				return fmt.Errorf("failed to insert component: %w", err)
			}
		}
		return nil
	})
}

// ListComponents returns the components of one trip
func (s *SQLiteStorage) ListComponents(ctx context.Context, tripID int64) ([]types.TripComponent, error) {
	return s.queryComponents(ctx, `
		SELECT trip_id, component_type, value, weight, synonyms
		FROM trip_components
		WHERE trip_id = ?
		ORDER BY component_type, value
	`, tripID)
}

// FindComponents returns every component whose value is in values
func (s *SQLiteStorage) FindComponents(ctx context.Context, values []string) ([]types.TripComponent, error) {
	result := make([]types.TripComponent, 0)
	for start := 0; start < len(values); start += maxInParams {
		end := start + maxInParams
		if end > len(values) {
			end = len(values)
		}
		batch := values[start:end]

		placeholders := make([]string, len(batch))
		args := make([]interface{}, len(batch))
		for i, v := range batch {
			placeholders[i] = "?"
			args[i] = v
		}
		query := `
			SELECT trip_id, component_type, value, weight, synonyms
			FROM trip_components
			WHERE value IN (` + strings.Join(placeholders, ",") + `)
			ORDER BY trip_id, component_type, value
		`
		found, err := s.queryComponents(ctx, query, args...)
		if err != nil {
			return nil, err
		}
		result = append(result, found...)
	}
	return result, nil
}

func (s *SQLiteStorage) queryComponents(ctx context.Context, query string, args ...interface{}) ([]types.TripComponent, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	result := make([]types.TripComponent, 0)
	for rows.Next() {
		var c types.TripComponent
		var kind, synonyms string
		if err := rows.Scan(&c.TripID, &kind, &c.Value, &c.Weight, &synonyms); err != nil {
			return nil, err
		}
		c.Type = types.ComponentType(kind)
		if err := json.Unmarshal([]byte(synonyms), &c.Synonyms); err != nil {
			return nil, fmt.Errorf("invalid synonyms for trip %d: %w", c.TripID, err)
		}
		result = append(result, c)
	}
	return result, rows.Err()
}

// Status operations

// GetStatus collects row counts and health information
func (s *SQLiteStorage) GetStatus(ctx context.Context) (*Status, error) {
	status := &Status{SchemaVersion: CurrentSchemaVersion}

	counts := []struct {
		query string
		dest  *int
	}{
		{"SELECT COUNT(*) FROM trips", &status.TripsCount},
		{"SELECT COUNT(*) FROM trip_assignments", &status.AssignmentsCount},
		{"SELECT COUNT(*) FROM trip_components", &status.ComponentsCount},
		{"SELECT COUNT(*) FROM trip_facts", &status.FactsCount},
		{"SELECT COUNT(*) FROM dirty_queue", &status.DirtyMarkers},
		{"SELECT COUNT(DISTINCT trip_id) FROM dirty_queue", &status.DirtyTrips},
	}
	for _, c := range counts {
		if err := s.db.QueryRowContext(ctx, c.query).Scan(c.dest); err != nil {
			return nil, err
		}
	}

	var pageCount, pageSize int
	if err := s.db.QueryRowContext(ctx, "PRAGMA page_count").Scan(&pageCount); err == nil {
		_ = s.db.QueryRowContext(ctx, "PRAGMA page_size").Scan(&pageSize)
		status.SizeMB = float64(pageCount*pageSize) / (1024 * 1024)
	}

	var jsonOK int
	jsonErr := s.db.QueryRowContext(ctx, "SELECT json_valid('{}')").Scan(&jsonOK)

	var unindexed int
	_ = s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM trips WHERE search_text = ''").Scan(&unindexed)

	status.Health = HealthStatus{
		DatabaseAccessible: true,
		JSONFunctions:      jsonErr == nil && jsonOK == 1,
		SearchTextBuilt:    unindexed == 0,
	}
	return status, nil
}
