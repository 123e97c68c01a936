package consistency

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// Refresher rebuilds the derived search data of one trip
type Refresher interface {
	RefreshTrip(ctx context.Context, tripID int64) (int, error)
}

// DirtyMarker queues trips for fact recomputation
type DirtyMarker interface {
	MarkDirty(ctx context.Context, tripIDs []int64, reason string) (int, error)
}

// Invalidator drops cached resolutions
type Invalidator interface {
	Invalidate()
}

// Propagator runs the side effects every trip write must trigger:
// refresh search data, mark facts dirty, invalidate cached resolutions.
// Each step is attempted even when an earlier one fails.
type Propagator struct {
	refresher   Refresher
	marker      DirtyMarker
	invalidator Invalidator
	logger      *zap.Logger
}

// NewPropagator creates a Propagator. Nil collaborators are skipped.
func NewPropagator(refresher Refresher, marker DirtyMarker, invalidator Invalidator, logger *zap.Logger) *Propagator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Propagator{
		refresher:   refresher,
		marker:      marker,
		invalidator: invalidator,
		logger:      logger,
	}
}

// Propagate applies the write side effects for tripID
func (p *Propagator) Propagate(ctx context.Context, tripID int64, reason string) error {
	var errs []error
	if p.refresher != nil {
		if _, err := p.refresher.RefreshTrip(ctx, tripID); err != nil {
			errs = append(errs, fmt.Errorf("refresh search data: %w", err))
		}
	}
	if p.marker != nil {
		if _, err := p.marker.MarkDirty(ctx, []int64{tripID}, reason); err != nil {
			errs = append(errs, fmt.Errorf("mark dirty: %w", err))
		}
	}
	if p.invalidator != nil {
		p.invalidator.Invalidate()
	}

	err := errors.Join(errs...)
	if err != nil {
		p.logger.Warn("write propagation incomplete",
			zap.Int64("trip_id", tripID),
			zap.String("reason", reason),
			zap.Error(err),
		)
	}
	return err
}
