package resolver

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/dshills/tripdesk-mcp/internal/facts"
	"github.com/dshills/tripdesk-mcp/internal/indexer"
	"github.com/dshills/tripdesk-mcp/internal/matcher"
	"github.com/dshills/tripdesk-mcp/internal/normalize"
	"github.com/dshills/tripdesk-mcp/internal/semantic"
	"github.com/dshills/tripdesk-mcp/internal/slug"
	"github.com/dshills/tripdesk-mcp/internal/storage"
	"github.com/dshills/tripdesk-mcp/pkg/types"
)

type env struct {
	store    *storage.SQLiteStorage
	norm     *normalize.Normalizer
	registry *slug.Registry
	idx      *indexer.Indexer
	resolver *Resolver
}

func setupEnv(t testing.TB, weighted matcher.Options) *env {
	t.Helper()
	store, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	n := normalize.New(normalize.Options{})
	syn := semantic.NewSynonyms(n)
	registry := slug.NewRegistry(store, nil)
	r, err := New(store, n, Stages{
		Slugs:    registry,
		Weighted: matcher.New(weighted),
		Semantic: semantic.NewIndex(store, syn, semantic.Options{}),
	}, Options{Facts: facts.New(store, store, facts.Options{})})
	require.NoError(t, err)

	return &env{
		store:    store,
		norm:     n,
		registry: registry,
		idx:      indexer.New(store, n, semantic.NewExtractor(n, syn), nil),
		resolver: r,
	}
}

type tripSpec struct {
	name         string
	slug         string
	destinations []string
	start        time.Time
	clients      []types.ClientAssignment
}

func (e *env) addTrip(t testing.TB, spec tripSpec) *types.Trip {
	t.Helper()
	ctx := context.Background()
	doc := types.NewTripDocument()
	doc.Clients = spec.clients
	trip := &types.Trip{
		Name:         spec.name,
		Slug:         spec.slug,
		Status:       types.StatusConfirmed,
		Destinations: spec.destinations,
		StartDate:    spec.start,
		EndDate:      spec.start.AddDate(0, 0, 7),
		Document:     *doc,
	}
	require.NoError(t, e.store.CreateTrip(ctx, trip))
	for _, c := range spec.clients {
		c.TripID = trip.ID
		require.NoError(t, e.store.UpsertAssignment(ctx, &c))
	}
	_, err := e.idx.RefreshTrip(ctx, trip.ID)
	require.NoError(t, err)
	e.resolver.Invalidate()
	return trip
}

func date(year int, month time.Month) time.Time {
	return time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
}

func TestResolve_EndToEnd(t *testing.T) {
	ctx := context.Background()
	e := setupEnv(t, matcher.Options{})

	hawaii := e.addTrip(t, tripSpec{
		name:         "Sara's Hawaii Getaway",
		slug:         "sara-hawaii-2024",
		destinations: []string{"Hawaii"},
		start:        date(2024, time.July),
		clients:      []types.ClientAssignment{{ClientEmail: "sara@example.com", ClientName: "Sara Smith", Role: types.RolePrimaryTraveler}},
	})
	anniversary := e.addTrip(t, tripSpec{
		name:         "Sara & Darren Jones 25th Anniversary - Bristol & Bath",
		destinations: []string{"Bristol", "Bath"},
		start:        date(2025, time.May),
		clients: []types.ClientAssignment{
			{ClientEmail: "sara.jones@example.com", ClientName: "Sara Jones", Role: types.RolePrimaryTraveler},
			{ClientEmail: "darren.jones@example.com", ClientName: "Darren Jones", Role: types.RoleSecondaryTraveler},
		},
	})

	res, err := e.resolver.Resolve(ctx, Request{Query: "sara-hawaii-2024"})
	require.NoError(t, err)
	assert.Equal(t, hawaii.ID, res.TripID)
	assert.Equal(t, MethodSlug, res.Method)
	assert.Equal(t, 1.0, res.Confidence)

	res, err = e.resolver.Resolve(ctx, Request{Query: "Sara Darren Jones Bristol Bath"})
	require.NoError(t, err)
	assert.Equal(t, anniversary.ID, res.TripID)
	assert.Equal(t, MethodWeighted, res.Method)
	assert.InDelta(t, 1.0, res.Confidence, 1e-9)
	assert.NotEmpty(t, res.Explanation)
}

func TestResolve_WeightedRanking(t *testing.T) {
	ctx := context.Background()
	e := setupEnv(t, matcher.Options{})

	sara := e.addTrip(t, tripSpec{
		name:         "Sara's Hawaii Adventure",
		destinations: []string{"Hawaii"},
		start:        date(2025, time.March),
		clients:      []types.ClientAssignment{{ClientEmail: "sara@example.com", ClientName: "Sara Lee", Role: types.RolePrimaryTraveler}},
	})
	generic := e.addTrip(t, tripSpec{
		name:         "Generic Hawaii Tour",
		destinations: []string{"Hawaii"},
		start:        date(2025, time.April),
	})

	res, err := e.resolver.Resolve(ctx, Request{Query: "Sara Hawaii"})
	require.NoError(t, err)
	assert.Equal(t, sara.ID, res.TripID)
	assert.Equal(t, MethodWeighted, res.Method)
	require.NotEmpty(t, res.Candidates)
	assert.Equal(t, generic.ID, res.Candidates[0].TripID)
	assert.Less(t, res.Candidates[0].Confidence, res.Confidence)
}

func TestResolve_SemanticFallback(t *testing.T) {
	ctx := context.Background()
	e := setupEnv(t, matcher.Options{})

	maldives := e.addTrip(t, tripSpec{
		name:         "Maldives Honeymoon",
		destinations: []string{"Maldives"},
		start:        date(2026, time.February),
	})
	e.addTrip(t, tripSpec{
		name:         "Iceland Ring Road",
		destinations: []string{"Iceland"},
		start:        date(2026, time.February),
	})

	res, err := e.resolver.Resolve(ctx, Request{Query: "romantic maldives getaway"})
	require.NoError(t, err)
	assert.Equal(t, maldives.ID, res.TripID)
	assert.Equal(t, MethodSemantic, res.Method)
	assert.GreaterOrEqual(t, res.Confidence, semantic.DefaultThreshold)
	assert.Contains(t, res.Explanation[len(res.Explanation)-1], "semantic")
}

func TestResolve_ComplexityEscalates(t *testing.T) {
	ctx := context.Background()
	e := setupEnv(t, matcher.Options{MaxTerms: 1})

	trip := e.addTrip(t, tripSpec{
		name:         "Lisbon Food Tour",
		destinations: []string{"Lisbon"},
		start:        date(2025, time.October),
	})

	res, err := e.resolver.Resolve(ctx, Request{Query: "lisbon food"})
	require.NoError(t, err)
	assert.Equal(t, trip.ID, res.TripID)
	assert.Equal(t, MethodSemantic, res.Method)

	joined := ""
	for _, line := range res.Explanation {
		joined += line + "\n"
	}
	assert.Contains(t, joined, "weighted stage")
}

func TestResolve_NoMatch(t *testing.T) {
	ctx := context.Background()
	e := setupEnv(t, matcher.Options{})
	e.addTrip(t, tripSpec{name: "Paris Spring", destinations: []string{"Paris"}, start: date(2025, time.April)})

	_, err := e.resolver.Resolve(ctx, Request{Query: "zzqx vvbn"})
	var nf *types.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Empty(t, nf.Suggestions)
	assert.NotEmpty(t, nf.Alternatives)

	t.Run("weak candidates become suggestions", func(t *testing.T) {
		_, err := e.resolver.Resolve(ctx, Request{Query: "paris zzqx vvbn kkpl"})
		var nf *types.NotFoundError
		require.ErrorAs(t, err, &nf)
		require.NotEmpty(t, nf.Suggestions)
		assert.Equal(t, "Paris Spring", nf.Suggestions[0].Name)
		assert.Contains(t, nf.Alternatives[0], "Paris Spring")
	})
}

func TestResolve_Validation(t *testing.T) {
	e := setupEnv(t, matcher.Options{})
	for _, q := range []string{"", "   "} {
		_, err := e.resolver.Resolve(context.Background(), Request{Query: q})
		var verr *types.ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, "query", verr.Field)
	}
}

func TestResolve_CacheAndInvalidate(t *testing.T) {
	ctx := context.Background()
	e := setupEnv(t, matcher.Options{})
	trip := e.addTrip(t, tripSpec{name: "Kyoto Autumn", slug: "kyoto-2025", destinations: []string{"Kyoto"}, start: date(2025, time.November)})

	first, err := e.resolver.Resolve(ctx, Request{Query: "kyoto-2025"})
	require.NoError(t, err)
	assert.False(t, first.CacheHit)

	second, err := e.resolver.Resolve(ctx, Request{Query: "KYOTO-2025"})
	require.NoError(t, err)
	assert.True(t, second.CacheHit)
	assert.Equal(t, first.TripID, second.TripID)

	// Cached copies are independent
	second.Explanation[0] = "mutated"
	third, err := e.resolver.Resolve(ctx, Request{Query: "kyoto-2025"})
	require.NoError(t, err)
	assert.NotEqual(t, "mutated", third.Explanation[0])

	e.resolver.Invalidate()
	res, err := e.resolver.Resolve(ctx, Request{Query: "kyoto-2025"})
	require.NoError(t, err)
	assert.False(t, res.CacheHit)
	assert.Equal(t, trip.ID, res.TripID)

	t.Run("entries expire", func(t *testing.T) {
		clock := time.Now()
		e.resolver.now = func() time.Time { return clock }
		_, err := e.resolver.Resolve(ctx, Request{Query: "kyoto autumn"})
		require.NoError(t, err)

		clock = clock.Add(DefaultCacheTTL + time.Second)
		res, err := e.resolver.Resolve(ctx, Request{Query: "kyoto autumn"})
		require.NoError(t, err)
		assert.False(t, res.CacheHit)
	})
}

func TestResolve_IncludeFacts(t *testing.T) {
	ctx := context.Background()
	e := setupEnv(t, matcher.Options{})
	trip := e.addTrip(t, tripSpec{name: "Oslo Fjords", slug: "oslo-fjords", destinations: []string{"Oslo"}, start: date(2025, time.June)})

	res, err := e.resolver.Resolve(ctx, Request{Query: "oslo-fjords", IncludeFacts: true})
	require.NoError(t, err)
	assert.Nil(t, res.Facts)
	assert.Contains(t, res.Explanation[len(res.Explanation)-1], "not computed")

	require.NoError(t, e.store.UpsertFacts(ctx, &types.TripFacts{TripID: trip.ID, Nights: 6}))
	res, err = e.resolver.Resolve(ctx, Request{Query: "oslo-fjords", IncludeFacts: true})
	require.NoError(t, err)
	assert.True(t, res.CacheHit)
	require.NotNil(t, res.Facts)
	assert.Equal(t, 6, res.Facts.Nights)
}

func TestResolve_VocabularyRefreshesOnInvalidate(t *testing.T) {
	ctx := context.Background()
	e := setupEnv(t, matcher.Options{})
	trip := e.addTrip(t, tripSpec{name: "Quiet Week", destinations: []string{"Porto"}, start: date(2025, time.September)})

	c, err := e.resolver.currentClassifier(ctx)
	require.NoError(t, err)
	assert.Equal(t, matcher.CategoryGeneric, c.Classify("mirela"))

	require.NoError(t, e.store.UpsertAssignment(ctx, &types.ClientAssignment{TripID: trip.ID, ClientEmail: "m@example.com", ClientName: "Mirela Popescu", Role: types.RoleTraveler}))
	e.resolver.Invalidate()

	c, err = e.resolver.currentClassifier(ctx)
	require.NoError(t, err)
	assert.Equal(t, matcher.CategoryClient, c.Classify("mirela"))
}

// Every slugged trip resolves to itself through the slug stage
func TestResolve_SlugProperty(t *testing.T) {
	clients := []string{"Sara", "Darren", "Mirela", "Kenji", "Ana"}
	places := []string{"Hawaii", "Bath", "Kyoto", "Lisbon", "Reykjavik", strings.Repeat("Tiki", 20)}

	rapid.Check(t, func(rt *rapid.T) {
		ctx := context.Background()
		e := setupEnv(t, matcher.Options{})

		n := rapid.IntRange(1, 6).Draw(rt, "trips")
		trips := make([]*types.Trip, 0, n)
		for i := 0; i < n; i++ {
			client := rapid.SampledFrom(clients).Draw(rt, "client")
			place := rapid.SampledFrom(places).Draw(rt, "place")
			year := rapid.IntRange(2023, 2026).Draw(rt, "year")

			trip := e.addTrip(t, tripSpec{
				name:         client + " in " + place,
				destinations: []string{place},
				start:        date(year, time.June),
				clients:      []types.ClientAssignment{{ClientEmail: strings.ToLower(client) + "@example.com", ClientName: client, Role: types.RolePrimaryTraveler}},
			})
			s, err := e.registry.Assign(ctx, trip)
			if err != nil {
				rt.Fatalf("assign slug: %v", err)
			}
			trip.Slug = s
			trips = append(trips, trip)
		}
		e.resolver.Invalidate()

		for _, trip := range trips {
			res, err := e.resolver.Resolve(ctx, Request{Query: trip.Slug})
			if err != nil {
				rt.Fatalf("resolve %q: %v", trip.Slug, err)
			}
			if res.TripID != trip.ID || res.Method != MethodSlug || res.Confidence != 1.0 {
				rt.Fatalf("slug %q resolved to trip %d via %s (%.2f), want trip %d via slug",
					trip.Slug, res.TripID, res.Method, res.Confidence, trip.ID)
			}
		}
	})
}
