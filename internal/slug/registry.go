package slug

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/dshills/tripdesk-mcp/internal/storage"
	"github.com/dshills/tripdesk-mcp/pkg/types"
)

const (
	maxSuffix      = 10000
	assignAttempts = 5
)

// Store is the subset of storage the registry needs
type Store interface {
	GetTripBySlug(ctx context.Context, slug string) (*types.Trip, error)
	SetTripSlug(ctx context.Context, tripID int64, slug string) error
}

// Registry guarantees one unique slug per trip
type Registry struct {
	store  Store
	logger *zap.Logger
}

// NewRegistry creates a Registry backed by store
func NewRegistry(store Store, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{store: store, logger: logger}
}

// Unique returns base, or base-2, base-3, ... whichever is free or already
// held by tripID
func (r *Registry) Unique(ctx context.Context, tripID int64, base string) (string, error) {
	candidate := base
	for n := 2; n <= maxSuffix; n++ {
		owner, err := r.store.GetTripBySlug(ctx, candidate)
		if errors.Is(err, storage.ErrNotFound) {
			return candidate, nil
		}
		if err != nil {
			return "", fmt.Errorf("slug lookup failed: %w", err)
		}
		if owner.ID == tripID {
			return candidate, nil
		}
		candidate = WithSuffix(base, n)
	}
	return "", fmt.Errorf("no free slug for %q after %d suffixes", base, maxSuffix)
}

// Assign derives, de-duplicates and persists a slug for trip. A concurrent
// writer may claim the same slug between lookup and write; the unique index
// rejects it and the search restarts.
func (r *Registry) Assign(ctx context.Context, trip *types.Trip) (string, error) {
	return r.Claim(ctx, trip.ID, Generate(AttributesOf(trip)))
}

// Claim persists the first free variant of base for tripID
func (r *Registry) Claim(ctx context.Context, tripID int64, base string) (string, error) {
	if !Valid(base) {
		return "", types.NewValidationError("slug", "must be lowercase letters and digits separated by single hyphens")
	}
	for attempt := 1; attempt <= assignAttempts; attempt++ {
		slug, err := r.Unique(ctx, tripID, base)
		if err != nil {
			return "", err
		}
		err = r.store.SetTripSlug(ctx, tripID, slug)
		if errors.Is(err, storage.ErrSlugTaken) {
			r.logger.Debug("slug claimed concurrently, retrying",
				zap.String("slug", slug),
				zap.Int64("trip_id", tripID),
				zap.Int("attempt", attempt),
			)
			continue
		}
		if err != nil {
			return "", err
		}
		return slug, nil
	}
	return "", fmt.Errorf("slug %q: %w after %d attempts", base, storage.ErrSlugTaken, assignAttempts)
}

// Resolve looks up a trip by exact slug. It returns storage.ErrNotFound
// when no trip holds the slug.
func (r *Registry) Resolve(ctx context.Context, candidate string) (*types.Trip, error) {
	if !Valid(candidate) {
		return nil, storage.ErrNotFound
	}
	return r.store.GetTripBySlug(ctx, candidate)
}
