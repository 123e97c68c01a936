package facts

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/dshills/tripdesk-mcp/internal/storage"
	"github.com/dshills/tripdesk-mcp/pkg/types"
)

const (
	// DefaultLimit is the number of trips recomputed per pass
	DefaultLimit = 25
	// DefaultBudget is the soft time budget of one pass
	DefaultBudget = 5 * time.Second

	// StageName identifies the recompute pass in timeout errors
	StageName = "recompute"
)

// Store is the storage the cache drives
type Store interface {
	storage.FactStore
	storage.DirtyQueue
}

// RawSource provides the current trip data facts are aggregated from
type RawSource interface {
	GetTrip(ctx context.Context, tripID int64) (*types.Trip, error)
}

// Options configures a Cache
type Options struct {
	Limit  int           // Default batch size for Recompute
	Budget time.Duration // Soft time budget per pass
	Logger *zap.Logger
}

// Cache maintains TripFacts through a dirty queue and bounded recompute
// passes
type Cache struct {
	store  Store
	source RawSource
	opts   Options
	now    func() time.Time
}

// RecomputeResult summarizes one recompute pass
type RecomputeResult struct {
	Cycle     int64             `json:"cycle"`
	Processed int               `json:"processed"`
	Failed    int               `json:"failed"`
	Remaining int               `json:"remaining"`
	Partial   bool              `json:"partial"`
	Facts     []types.TripFacts `json:"facts,omitempty"`
	Errors    []string          `json:"errors,omitempty"`
}

// New creates a Cache
func New(store Store, source RawSource, opts Options) *Cache {
	if opts.Limit <= 0 {
		opts.Limit = DefaultLimit
	}
	if opts.Budget <= 0 {
		opts.Budget = DefaultBudget
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Cache{store: store, source: source, opts: opts, now: time.Now}
}

// MarkDirty queues the trips for recomputation. Repeated marks with the same
// reason collapse until the next pass; the number of new markers is returned.
// Every id must name an existing trip or nothing is marked.
func (c *Cache) MarkDirty(ctx context.Context, tripIDs []int64, reason string) (int, error) {
	if len(tripIDs) == 0 {
		return 0, types.NewValidationError("trip_ids", "at least one trip id is required")
	}
	for _, id := range tripIDs {
		if id <= 0 {
			return 0, types.NewValidationError("trip_ids", fmt.Sprintf("trip id must be positive, got %d", id))
		}
	}
	if reason == "" {
		return 0, types.NewValidationError("reason", "must not be empty")
	}

	marked, err := c.store.EnqueueDirty(ctx, tripIDs, reason, c.now())
	var missing *storage.MissingTripError
	if errors.As(err, &missing) {
		return 0, types.NewValidationError("trip_ids", missing.Error())
	}
	if err != nil {
		return 0, fmt.Errorf("failed to mark trips dirty: %w", err)
	}
	c.opts.Logger.Debug("trips marked dirty",
		zap.Int64s("trip_ids", tripIDs),
		zap.String("reason", reason),
		zap.Int("new_markers", marked),
	)
	return marked, nil
}

// Recompute processes up to limit dirty trips. It closes the open cycle
// first so markers raised during the pass survive it. A limit of zero or
// less uses the configured default. When the time budget runs out the
// partial result is returned together with a *types.TimeoutError.
func (c *Cache) Recompute(ctx context.Context, limit int) (*RecomputeResult, error) {
	if limit <= 0 {
		limit = c.opts.Limit
	}
	start := c.now()

	cycle, err := c.store.CloseCycle(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to close dirty cycle: %w", err)
	}
	tripIDs, err := c.store.ClaimDirty(ctx, cycle, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to claim dirty trips: %w", err)
	}

	result := &RecomputeResult{Cycle: cycle, Facts: []types.TripFacts{}}
	var budgetErr error
	for _, tripID := range tripIDs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if c.now().Sub(start) > c.opts.Budget {
			result.Partial = true
			budgetErr = &types.TimeoutError{Stage: StageName, Budget: c.opts.Budget, Completed: result.Processed + result.Failed}
			c.opts.Logger.Warn("recompute budget exceeded",
				zap.Duration("budget", c.opts.Budget),
				zap.Int("processed", result.Processed),
				zap.Int("claimed", len(tripIDs)),
			)
			break
		}

		facts, err := c.recomputeTrip(ctx, tripID, cycle)
		if err != nil {
			result.Failed++
			result.Errors = append(result.Errors, fmt.Sprintf("trip %d: %v", tripID, err))
			continue
		}
		result.Processed++
		result.Facts = append(result.Facts, *facts)
	}

	remaining, err := c.store.CountDirtyTrips(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count dirty trips: %w", err)
	}
	result.Remaining = remaining

	c.opts.Logger.Info("facts recomputed",
		zap.Int64("cycle", cycle),
		zap.Int("processed", result.Processed),
		zap.Int("failed", result.Failed),
		zap.Int("remaining", result.Remaining),
	)
	return result, budgetErr
}

func (c *Cache) recomputeTrip(ctx context.Context, tripID, cycle int64) (*types.TripFacts, error) {
	trip, err := c.source.GetTrip(ctx, tripID)
	if errors.Is(err, storage.ErrNotFound) {
		// Nothing left to compute for; drop the markers
		c.opts.Logger.Warn("dirty trip no longer exists", zap.Int64("trip_id", tripID))
		if clearErr := c.store.ClearDirty(ctx, tripID, cycle); clearErr != nil {
			return nil, clearErr
		}
		return nil, err
	}
	if err != nil {
		c.opts.Logger.Error("failed to load trip for facts", zap.Int64("trip_id", tripID), zap.Error(err))
		return nil, err
	}

	facts := Compute(trip)
	facts.LastComputed = c.now()
	if err := c.store.UpsertFacts(ctx, &facts); err != nil {
		c.opts.Logger.Error("failed to store facts", zap.Int64("trip_id", tripID), zap.Error(err))
		return nil, err
	}
	if err := c.store.ClearDirty(ctx, tripID, cycle); err != nil {
		return nil, err
	}
	return &facts, nil
}

// Get returns the cached facts of a trip. Facts may be stale while the trip
// is dirty.
func (c *Cache) Get(ctx context.Context, tripID int64) (*types.TripFacts, error) {
	return c.store.GetFacts(ctx, tripID)
}

// Compute aggregates the metrics of a trip from its document. It is pure:
// the same trip data always yields the same metrics.
func Compute(trip *types.Trip) types.TripFacts {
	doc := &trip.Document
	facts := types.TripFacts{TripID: trip.ID, HotelCount: len(doc.Accommodations)}

	var itemized float64
	for _, acc := range doc.Accommodations {
		facts.Nights += acc.Nights
		itemized += acc.Cost
	}
	for _, day := range doc.Schedule {
		for _, act := range day.Activities {
			facts.ActivityCount++
			facts.TransitMinutes += act.TransitMinutes
			itemized += act.Cost
		}
	}

	if facts.Nights == 0 && !trip.StartDate.IsZero() && trip.EndDate.After(trip.StartDate) {
		facts.Nights = int(trip.EndDate.Sub(trip.StartDate).Hours() / 24)
	}

	facts.TotalCost = doc.Financials.TotalCost
	if facts.TotalCost <= 0 {
		facts.TotalCost = itemized
	}
	return facts
}
