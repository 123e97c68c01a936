package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/tripdesk-mcp/pkg/types"
)

func setupTestDB(t *testing.T) *SQLiteStorage {
	// Use in-memory database for testing
	storage, err := NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	require.NotNil(t, storage)
	t.Cleanup(func() { _ = storage.Close() })
	return storage
}

func createTestTrip(t *testing.T, s *SQLiteStorage, name string) *types.Trip {
	trip := &types.Trip{
		Name:         name,
		Status:       types.StatusPlanning,
		Destinations: []string{"Hawaii", "Maui"},
		StartDate:    time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC),
		EndDate:      time.Date(2025, 3, 17, 0, 0, 0, 0, time.UTC),
		Document:     *types.NewTripDocument(),
	}
	require.NoError(t, s.CreateTrip(context.Background(), trip))
	return trip
}

func TestNewSQLiteStorage(t *testing.T) {
	storage := setupTestDB(t)
	assert.NotNil(t, storage.db)
}

func TestClose(t *testing.T) {
	storage, err := NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	assert.NoError(t, storage.Close())
}

func TestCreateAndGetTrip(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()

	trip := createTestTrip(t, s, "Sara's Hawaii Adventure")
	assert.Greater(t, trip.ID, int64(0))

	got, err := s.GetTrip(ctx, trip.ID)
	require.NoError(t, err)
	assert.Equal(t, "Sara's Hawaii Adventure", got.Name)
	assert.Equal(t, types.StatusPlanning, got.Status)
	assert.Equal(t, []string{"Hawaii", "Maui"}, got.Destinations)
	assert.Equal(t, "2025-03-10", got.StartDate.Format(dateLayout))
	assert.Equal(t, "2025-03-17", got.EndDate.Format(dateLayout))
	assert.Equal(t, types.CurrentDocumentVersion, got.Document.SchemaVersion)
	assert.Empty(t, got.Slug)
	assert.Empty(t, got.Document.Clients)
}

func TestCreateTrip_DefaultsStatus(t *testing.T) {
	s := setupTestDB(t)
	trip := &types.Trip{Name: "No status"}
	require.NoError(t, s.CreateTrip(context.Background(), trip))
	assert.Equal(t, types.StatusPlanning, trip.Status)
}

func TestCreateTrip_InvalidDocument(t *testing.T) {
	s := setupTestDB(t)
	trip := &types.Trip{Name: "Bad"}
	trip.Document.Clients = []types.ClientAssignment{{ClientEmail: "not-an-email", Role: types.RoleTraveler}}

	err := s.CreateTrip(context.Background(), trip)
	var verr *types.ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestGetTrip_NotFound(t *testing.T) {
	s := setupTestDB(t)
	_, err := s.GetTrip(context.Background(), 999)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateTrip(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()
	trip := createTestTrip(t, s, "Original")

	trip.Name = "Renamed"
	trip.Status = types.StatusCancelled
	trip.Destinations = []string{"Lisbon"}
	trip.EndDate = time.Time{}
	require.NoError(t, s.UpdateTrip(ctx, trip))

	got, err := s.GetTrip(ctx, trip.ID)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.Name)
	assert.Equal(t, types.StatusCancelled, got.Status)
	assert.Equal(t, []string{"Lisbon"}, got.Destinations)
	assert.True(t, got.EndDate.IsZero())

	missing := &types.Trip{ID: 12345, Name: "ghost"}
	assert.ErrorIs(t, s.UpdateTrip(ctx, missing), ErrNotFound)
}

func TestSetTripSlug(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()
	a := createTestTrip(t, s, "A")
	b := createTestTrip(t, s, "B")

	require.NoError(t, s.SetTripSlug(ctx, a.ID, "sara-hawaii-2025"))

	got, err := s.GetTripBySlug(ctx, "sara-hawaii-2025")
	require.NoError(t, err)
	assert.Equal(t, a.ID, got.ID)

	t.Run("taken slug is rejected", func(t *testing.T) {
		err := s.SetTripSlug(ctx, b.ID, "sara-hawaii-2025")
		assert.ErrorIs(t, err, ErrSlugTaken)
	})

	t.Run("unknown slug", func(t *testing.T) {
		_, err := s.GetTripBySlug(ctx, "nope")
		assert.ErrorIs(t, err, ErrNotFound)
		_, err = s.GetTripBySlug(ctx, "")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("unknown trip", func(t *testing.T) {
		assert.ErrorIs(t, s.SetTripSlug(ctx, 999, "whatever"), ErrNotFound)
	})
}

func TestListTripsAndSearchRows(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()
	a := createTestTrip(t, s, "A")
	b := createTestTrip(t, s, "B")
	require.NoError(t, s.UpdateSearchText(ctx, b.ID, "b hawaii"))

	trips, err := s.ListTrips(ctx)
	require.NoError(t, err)
	require.Len(t, trips, 2)
	assert.Equal(t, a.ID, trips[0].ID)

	rows, err := s.ListSearchRows(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "", rows[0].SearchText)
	assert.Equal(t, "b hawaii", rows[1].SearchText)
	assert.False(t, rows[1].UpdatedAt.IsZero())
}

func TestAssignments(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()
	trip := createTestTrip(t, s, "Family trip")

	a := &types.ClientAssignment{TripID: trip.ID, ClientEmail: "sara@example.com", ClientName: "Sara", Role: types.RolePrimaryTraveler}
	require.NoError(t, s.UpsertAssignment(ctx, a))

	t.Run("upsert is idempotent and keeps the name", func(t *testing.T) {
		again := &types.ClientAssignment{TripID: trip.ID, ClientEmail: "sara@example.com", Role: types.RolePrimaryTraveler}
		require.NoError(t, s.UpsertAssignment(ctx, again))
		assert.Equal(t, "Sara", again.ClientName)

		list, err := s.ListAssignments(ctx, trip.ID)
		require.NoError(t, err)
		assert.Len(t, list, 1)
	})

	t.Run("second role is a separate row", func(t *testing.T) {
		b := &types.ClientAssignment{TripID: trip.ID, ClientEmail: "sara@example.com", Role: types.RoleTraveler}
		require.NoError(t, s.UpsertAssignment(ctx, b))
		list, err := s.ListAssignments(ctx, trip.ID)
		require.NoError(t, err)
		assert.Len(t, list, 2)
	})

	t.Run("unknown trip", func(t *testing.T) {
		ghost := &types.ClientAssignment{TripID: 999, ClientEmail: "x@example.com", Role: types.RoleTraveler}
		assert.ErrorIs(t, s.UpsertAssignment(ctx, ghost), ErrNotFound)
	})

	t.Run("delete removes every role", func(t *testing.T) {
		n, err := s.DeleteAssignments(ctx, trip.ID, "sara@example.com")
		require.NoError(t, err)
		assert.Equal(t, 2, n)

		n, err = s.DeleteAssignments(ctx, trip.ID, "sara@example.com")
		require.NoError(t, err)
		assert.Equal(t, 0, n)

		all, err := s.ListAllAssignments(ctx)
		require.NoError(t, err)
		assert.Empty(t, all)
	})
}

func TestDocumentClients(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()
	trip := createTestTrip(t, s, "Docs")

	clients := []types.ClientAssignment{
		{TripID: trip.ID, ClientEmail: "sara@example.com", ClientName: "Sara", Role: types.RolePrimaryTraveler},
	}
	require.NoError(t, s.WriteClients(ctx, trip.ID, clients))

	got, err := s.ReadClients(ctx, trip.ID)
	require.NoError(t, err)
	assert.Equal(t, clients, got)

	t.Run("plan write leaves clients untouched", func(t *testing.T) {
		plan := &types.TripDocument{
			Financials:     types.FinancialSummary{TotalCost: 4200, Currency: "USD"},
			Accommodations: []types.Accommodation{{Name: "Grand Wailea", Nights: 5, Cost: 2500}},
			Schedule: []types.ScheduleDay{
				{Date: "2025-03-11", Activities: []types.Activity{{Name: "Snorkeling", Cost: 120, TransitMinutes: 30}}},
			},
		}
		require.NoError(t, s.WritePlan(ctx, trip.ID, plan))

		doc, err := s.ReadDocument(ctx, trip.ID)
		require.NoError(t, err)
		assert.Equal(t, clients, doc.Clients)
		assert.Equal(t, 4200.0, doc.Financials.TotalCost)
		require.Len(t, doc.Accommodations, 1)
		assert.Equal(t, 5, doc.Accommodations[0].Nights)
		require.Len(t, doc.Schedule, 1)
		assert.Equal(t, "Snorkeling", doc.Schedule[0].Activities[0].Name)
	})

	t.Run("invalid clients are rejected", func(t *testing.T) {
		err := s.WriteClients(ctx, trip.ID, []types.ClientAssignment{{ClientEmail: "nope", Role: types.RoleTraveler}})
		var verr *types.ValidationError
		assert.ErrorAs(t, err, &verr)
	})

	t.Run("unknown trip", func(t *testing.T) {
		assert.ErrorIs(t, s.WriteClients(ctx, 999, nil), ErrNotFound)
		_, err := s.ReadClients(ctx, 999)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestDocumentClients_LegacyLayout(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()
	trip := createTestTrip(t, s, "Legacy")

	// Simulate a row written before document versioning
	_, err := s.db.ExecContext(ctx, `UPDATE trips SET data = ? WHERE id = ?`,
		`{"travelers":["Old@Example.com"],"total_cost":900}`, trip.ID)
	require.NoError(t, err)

	clients, err := s.ReadClients(ctx, trip.ID)
	require.NoError(t, err)
	require.Len(t, clients, 1)
	assert.Equal(t, "old@example.com", clients[0].ClientEmail)

	// Writing upgrades the stored layout
	require.NoError(t, s.WriteClients(ctx, trip.ID, clients))
	var version int
	require.NoError(t, s.db.QueryRowContext(ctx,
		`SELECT json_extract(data, '$.schema_version') FROM trips WHERE id = ?`, trip.ID).Scan(&version))
	assert.Equal(t, types.CurrentDocumentVersion, version)

	doc, err := s.ReadDocument(ctx, trip.ID)
	require.NoError(t, err)
	assert.Equal(t, 900.0, doc.Financials.TotalCost)
}

func TestFacts(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()
	trip := createTestTrip(t, s, "Facts")

	_, err := s.GetFacts(ctx, trip.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	facts := &types.TripFacts{TripID: trip.ID, Nights: 7, HotelCount: 1, TotalCost: 4200, LastComputed: time.Now()}
	require.NoError(t, s.UpsertFacts(ctx, facts))
	assert.Equal(t, int64(1), facts.Version)

	facts.Nights = 8
	require.NoError(t, s.UpsertFacts(ctx, facts))
	assert.Equal(t, int64(2), facts.Version)

	got, err := s.GetFacts(ctx, trip.ID)
	require.NoError(t, err)
	assert.Equal(t, 8, got.Nights)
	assert.Equal(t, int64(2), got.Version)
	assert.False(t, got.LastComputed.IsZero())

	assert.ErrorIs(t, s.UpsertFacts(ctx, &types.TripFacts{TripID: 999}), ErrNotFound)
}

func TestDirtyQueue(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()
	now := time.Now()
	require.Equal(t, int64(1), createTestTrip(t, s, "One").ID)
	require.Equal(t, int64(2), createTestTrip(t, s, "Two").ID)

	n, err := s.EnqueueDirty(ctx, []int64{1, 2}, types.ReasonClientAssignment, now)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	t.Run("duplicates in the open cycle collapse", func(t *testing.T) {
		n, err := s.EnqueueDirty(ctx, []int64{1}, types.ReasonClientAssignment, now)
		require.NoError(t, err)
		assert.Equal(t, 0, n)

		n, err = s.EnqueueDirty(ctx, []int64{1}, types.ReasonScheduleChanged, now)
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		count, err := s.CountDirtyTrips(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, count)
	})

	closed, err := s.CloseCycle(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), closed)

	// Marked after the cycle closed; must survive the clear below
	n, err = s.EnqueueDirty(ctx, []int64{1}, types.ReasonClientAssignment, now)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	ids, err := s.ClaimDirty(ctx, closed, 10)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2}, ids)

	limited, err := s.ClaimDirty(ctx, closed, 1)
	require.NoError(t, err)
	assert.Equal(t, []int64{1}, limited)

	require.NoError(t, s.ClearDirty(ctx, 1, closed))
	require.NoError(t, s.ClearDirty(ctx, 2, closed))

	markers, err := s.ListDirty(ctx)
	require.NoError(t, err)
	require.Len(t, markers, 1)
	assert.Equal(t, int64(1), markers[0].TripID)
	assert.Equal(t, int64(2), markers[0].Cycle)
}

func TestDirtyQueue_UnknownTrip(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()
	trip := createTestTrip(t, s, "Known")

	n, err := s.EnqueueDirty(ctx, []int64{trip.ID, 999999}, types.ReasonTripUpdated, time.Now())
	var missing *MissingTripError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, int64(999999), missing.TripID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 0, n)

	// The batch is all or nothing
	markers, err := s.ListDirty(ctx)
	require.NoError(t, err)
	assert.Empty(t, markers)
}

func TestComponents(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()
	a := createTestTrip(t, s, "A")
	b := createTestTrip(t, s, "B")

	require.NoError(t, s.ReplaceComponents(ctx, a.ID, []types.TripComponent{
		{Type: types.ComponentDestination, Value: "hawaii", Weight: 1.5, Synonyms: []string{"maui"}},
		{Type: types.ComponentDate, Value: "2025", Weight: 1.8},
		{Type: types.ComponentDestination, Value: "hawaii", Weight: 1.0},
	}))
	require.NoError(t, s.ReplaceComponents(ctx, b.ID, []types.TripComponent{
		{Type: types.ComponentDestination, Value: "lisbon", Weight: 1.5},
	}))

	list, err := s.ListComponents(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, types.ComponentDate, list[0].Type)
	assert.Equal(t, 1.5, list[1].Weight)
	assert.Equal(t, []string{"maui"}, list[1].Synonyms)

	found, err := s.FindComponents(ctx, []string{"hawaii", "lisbon", "tokyo"})
	require.NoError(t, err)
	require.Len(t, found, 2)
	assert.Equal(t, a.ID, found[0].TripID)
	assert.Equal(t, b.ID, found[1].TripID)

	t.Run("replace drops old components", func(t *testing.T) {
		require.NoError(t, s.ReplaceComponents(ctx, a.ID, nil))
		list, err := s.ListComponents(ctx, a.ID)
		require.NoError(t, err)
		assert.Empty(t, list)
	})
}

func TestGetStatus(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()
	trip := createTestTrip(t, s, "Status")
	require.NoError(t, s.UpsertAssignment(ctx, &types.ClientAssignment{TripID: trip.ID, ClientEmail: "a@example.com", Role: types.RoleTraveler}))
	_, err := s.EnqueueDirty(ctx, []int64{trip.ID}, types.ReasonCreated, time.Now())
	require.NoError(t, err)

	status, err := s.GetStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, status.TripsCount)
	assert.Equal(t, 1, status.AssignmentsCount)
	assert.Equal(t, 1, status.DirtyMarkers)
	assert.Equal(t, 1, status.DirtyTrips)
	assert.Equal(t, CurrentSchemaVersion, status.SchemaVersion)
	assert.True(t, status.Health.DatabaseAccessible)
	assert.True(t, status.Health.JSONFunctions)
	assert.False(t, status.Health.SearchTextBuilt)
}
