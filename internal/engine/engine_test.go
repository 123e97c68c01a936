package engine

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/tripdesk-mcp/internal/config"
	"github.com/dshills/tripdesk-mcp/internal/consistency"
	"github.com/dshills/tripdesk-mcp/internal/resolver"
	"github.com/dshills/tripdesk-mcp/internal/trips"
	"github.com/dshills/tripdesk-mcp/pkg/types"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	cfg := config.Default()
	cfg.DBPath = ":memory:"
	e, err := New(cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })
	return e
}

func TestNew_CreatesDatabaseDirectory(t *testing.T) {
	cfg := config.Default()
	cfg.DBPath = filepath.Join(t.TempDir(), "nested", "tripdesk.db")

	e, err := New(cfg, nil)
	require.NoError(t, err)
	defer e.Close()

	assert.FileExists(t, cfg.DBPath)
	assert.NotNil(t, e.Resolver)
	assert.NotNil(t, e.Consistency)
	assert.NotNil(t, e.Trips)
}

func TestNew_BadSynonymsFile(t *testing.T) {
	cfg := config.Default()
	cfg.DBPath = ":memory:"
	cfg.SynonymsFile = filepath.Join(t.TempDir(), "missing.yaml")

	_, err := New(cfg, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "synonyms")
}

func TestEngine_WriteResolveRecompute(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	created, err := e.Trips.Create(ctx, trips.Input{
		Name:         "Sara's Hawaii Adventure",
		Destinations: []string{"Hawaii"},
		StartDate:    "2025-06-01",
		EndDate:      "2025-06-08",
		Clients:      []trips.Client{{Email: "sara@example.com", Name: "Sara Jones", Role: "primary_traveler"}},
	})
	require.NoError(t, err)
	require.Empty(t, created.Warnings)
	assert.Equal(t, "sara-hawaii-2025", created.Trip.Slug)

	res, err := e.Resolver.Resolve(ctx, resolver.Request{Query: "sara-hawaii-2025"})
	require.NoError(t, err)
	assert.Equal(t, created.Trip.ID, res.TripID)
	assert.Equal(t, resolver.MethodSlug, res.Method)

	// Creation marked the trip dirty; one pass computes its facts
	out, err := e.Facts.Recompute(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, out.Processed)

	res, err = e.Resolver.Resolve(ctx, resolver.Request{Query: "Sara Hawaii", IncludeFacts: true})
	require.NoError(t, err)
	require.NotNil(t, res.Facts)
	assert.Equal(t, 7, res.Facts.Nights)
}

func TestEngine_AssignmentInvalidatesResolver(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	created, err := e.Trips.Create(ctx, trips.Input{Name: "Kyoto Blossoms", Destinations: []string{"Kyoto"}})
	require.NoError(t, err)

	_, err = e.Resolver.Resolve(ctx, resolver.Request{Query: "lena@example.com"})
	var nf *types.NotFoundError
	require.ErrorAs(t, err, &nf)

	wr, err := e.Consistency.AssignClient(ctx, consistency.AssignRequest{
		TripID: created.Trip.ID, Email: "lena@example.com", Role: "traveler",
	})
	require.NoError(t, err)
	assert.True(t, wr.Consistent)

	res, err := e.Resolver.Resolve(ctx, resolver.Request{Query: "lena@example.com"})
	require.NoError(t, err)
	assert.Equal(t, created.Trip.ID, res.TripID)
	assert.False(t, res.CacheHit)
}

func TestEngine_Reindex(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	for _, name := range []string{"Lisbon Weekend", "Porto Wine Tour"} {
		_, err := e.Trips.Create(ctx, trips.Input{Name: name})
		require.NoError(t, err)
	}

	stats, err := e.Reindex(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TripsIndexed)
	assert.Zero(t, stats.TripsFailed)

	status, err := e.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, status.TripsCount)
}
