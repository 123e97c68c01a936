package indexer

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/dshills/tripdesk-mcp/internal/normalize"
	"github.com/dshills/tripdesk-mcp/internal/semantic"
	"github.com/dshills/tripdesk-mcp/pkg/types"
)

// ErrIndexingInProgress is returned when a full rebuild is already running
var ErrIndexingInProgress = errors.New("indexing already in progress")

// Store is the subset of storage the indexer reads and writes
type Store interface {
	GetTrip(ctx context.Context, tripID int64) (*types.Trip, error)
	ListTrips(ctx context.Context) ([]*types.Trip, error)
	ListAssignments(ctx context.Context, tripID int64) ([]types.ClientAssignment, error)
	UpdateSearchText(ctx context.Context, tripID int64, text string) error
	ReplaceComponents(ctx context.Context, tripID int64, components []types.TripComponent) error
}

// Indexer maintains the derived search data of trips: the denormalized
// search text used by the weighted matcher and the semantic components
type Indexer struct {
	store     Store
	norm      *normalize.Normalizer
	extractor *semantic.Extractor
	logger    *zap.Logger
	lock      IndexLock
}

// Config contains configuration for a full rebuild
type Config struct {
	Workers int // Number of concurrent workers (default: runtime.NumCPU())
}

// Statistics contains statistics about a rebuild
type Statistics struct {
	TripsIndexed      int
	TripsFailed       int
	ComponentsCreated int
	Duration          time.Duration
	ErrorMessages     []string
}

// New creates a new Indexer instance
func New(store Store, n *normalize.Normalizer, extractor *semantic.Extractor, logger *zap.Logger) *Indexer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Indexer{
		store:     store,
		norm:      n,
		extractor: extractor,
		logger:    logger,
	}
}

// RefreshTrip rebuilds the search text and components of one trip from the
// authoritative assignment rows. It returns the number of components.
func (idx *Indexer) RefreshTrip(ctx context.Context, tripID int64) (int, error) {
	trip, err := idx.store.GetTrip(ctx, tripID)
	if err != nil {
		return 0, err
	}
	clients, err := idx.store.ListAssignments(ctx, tripID)
	if err != nil {
		return 0, fmt.Errorf("failed to list assignments: %w", err)
	}

	if err := idx.store.UpdateSearchText(ctx, tripID, idx.SearchText(trip, clients)); err != nil {
		return 0, err
	}
	components := idx.extractor.Extract(trip, clients)
	if err := idx.store.ReplaceComponents(ctx, tripID, components); err != nil {
		return 0, fmt.Errorf("failed to store components: %w", err)
	}
	return len(components), nil
}

// RebuildAll refreshes every trip. Only one rebuild runs at a time;
// a concurrent call returns ErrIndexingInProgress.
func (idx *Indexer) RebuildAll(ctx context.Context, config *Config) (*Statistics, error) {
	if !idx.lock.TryAcquire() {
		return nil, ErrIndexingInProgress
	}
	defer idx.lock.Release()

	if config == nil {
		config = &Config{}
	}
	workers := config.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	startTime := time.Now()
	stats := &Statistics{ErrorMessages: make([]string, 0)}

	trips, err := idx.store.ListTrips(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list trips: %w", err)
	}

	var (
		indexed    int32
		failed     int32
		components int32
		mu         sync.Mutex // Protect stats.ErrorMessages
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, trip := range trips {
		tripID := trip.ID
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			n, err := idx.RefreshTrip(gctx, tripID)
			if err != nil {
				atomic.AddInt32(&failed, 1)
				mu.Lock()
				stats.ErrorMessages = append(stats.ErrorMessages, fmt.Sprintf("trip %d: %v", tripID, err))
				mu.Unlock()
				idx.logger.Error("failed to index trip", zap.Int64("trip_id", tripID), zap.Error(err))
				// Continue with other trips
				return nil
			}
			atomic.AddInt32(&indexed, 1)
			atomic.AddInt32(&components, int32(n))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	stats.TripsIndexed = int(indexed)
	stats.TripsFailed = int(failed)
	stats.ComponentsCreated = int(components)
	stats.Duration = time.Since(startTime)

	idx.logger.Info("search data rebuilt",
		zap.Int("trips_indexed", stats.TripsIndexed),
		zap.Int("trips_failed", stats.TripsFailed),
		zap.Int("components", stats.ComponentsCreated),
		zap.Duration("duration", stats.Duration),
	)
	return stats, nil
}

// SearchText renders the denormalized search representation of a trip:
// normalized name, destinations, client identities, years and status,
// de-duplicated in that order
func (idx *Indexer) SearchText(trip *types.Trip, clients []types.ClientAssignment) string {
	seen := map[string]struct{}{}
	out := make([]string, 0, 16)
	add := func(tokens ...string) {
		for _, t := range tokens {
			if _, dup := seen[t]; dup || t == "" {
				continue
			}
			seen[t] = struct{}{}
			out = append(out, t)
		}
	}

	add(idx.norm.Tokens(trip.Name)...)
	for _, d := range trip.Destinations {
		add(idx.norm.Tokens(d)...)
	}
	for _, c := range clients {
		add(types.NormalizeEmail(c.ClientEmail))
		add(idx.norm.Tokens(c.ClientName)...)
	}
	if !trip.StartDate.IsZero() {
		end := trip.EndDate
		if end.Before(trip.StartDate) {
			end = trip.StartDate
		}
		for y := trip.StartDate.Year(); y <= end.Year(); y++ {
			add(fmt.Sprintf("%04d", y))
		}
	}
	add(idx.norm.Tokens(strings.ReplaceAll(string(trip.Status), "_", " "))...)
	return strings.Join(out, " ")
}
