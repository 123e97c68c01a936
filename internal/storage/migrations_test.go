package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/tripdesk-mcp/pkg/types"
)

func TestApplyMigrations_Idempotent(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, ApplyMigrations(ctx, s.db))

	v, err := currentSchemaVersion(ctx, s.db)
	require.NoError(t, err)
	assert.Equal(t, CurrentSchemaVersion, v.String())

	var rows int
	require.NoError(t, s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM schema_version").Scan(&rows))
	assert.Equal(t, len(AllMigrations), rows)
}

func TestRollbackMigration(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, RollbackMigration(ctx, s.db))

	v, err := currentSchemaVersion(ctx, s.db)
	require.NoError(t, err)
	assert.Equal(t, "1.1.0", v.String())

	// 1.1.0 accepts markers for any id
	_, err = s.EnqueueDirty(ctx, []int64{424242}, "orphan", time.Now())
	require.NoError(t, err)

	require.NoError(t, RollbackMigration(ctx, s.db))
	v, err = currentSchemaVersion(ctx, s.db)
	require.NoError(t, err)
	assert.Equal(t, "1.0.0", v.String())

	var name string
	err = s.db.QueryRowContext(ctx, "SELECT name FROM sqlite_master WHERE type='table' AND name='dirty_queue'").Scan(&name)
	assert.Error(t, err)

	// Re-applying restores the dropped tables
	require.NoError(t, ApplyMigrations(ctx, s.db))
	_, err = s.CloseCycle(ctx)
	assert.NoError(t, err)
}

func TestMigrationV12_DropsOrphanMarkers(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()
	trip := createTestTrip(t, s, "Kept")

	require.NoError(t, RollbackMigration(ctx, s.db))
	_, err := s.EnqueueDirty(ctx, []int64{trip.ID, 424242}, types.ReasonCreated, time.Now())
	require.NoError(t, err)

	require.NoError(t, ApplyMigrations(ctx, s.db))
	markers, err := s.ListDirty(ctx)
	require.NoError(t, err)
	require.Len(t, markers, 1)
	assert.Equal(t, trip.ID, markers[0].TripID)

	_, err = s.EnqueueDirty(ctx, []int64{424242}, types.ReasonCreated, time.Now())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMigrateDocuments(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()
	trip := createTestTrip(t, s, "Legacy")

	_, err := s.db.ExecContext(ctx, `UPDATE trips SET data = ? WHERE id = ?`,
		`{"travelers":["a@example.com","b@example.com"],"total_cost":1500}`, trip.ID)
	require.NoError(t, err)

	n, err := MigrateDocuments(ctx, s.db)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	doc, err := s.ReadDocument(ctx, trip.ID)
	require.NoError(t, err)
	assert.Len(t, doc.Clients, 2)
	assert.Equal(t, 1500.0, doc.Financials.TotalCost)

	// Already current
	n, err = MigrateDocuments(ctx, s.db)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}
