package trips

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/dshills/tripdesk-mcp/internal/consistency"
	"github.com/dshills/tripdesk-mcp/internal/slug"
	"github.com/dshills/tripdesk-mcp/internal/storage"
	"github.com/dshills/tripdesk-mcp/pkg/types"
)

const dateLayout = "2006-01-02"

// Store is the storage the service writes trips through
type Store interface {
	CreateTrip(ctx context.Context, trip *types.Trip) error
	GetTrip(ctx context.Context, tripID int64) (*types.Trip, error)
	ListTrips(ctx context.Context) ([]*types.Trip, error)
	UpdateTrip(ctx context.Context, trip *types.Trip) error
	WritePlan(ctx context.Context, tripID int64, plan *types.TripDocument) error
}

// Assigner records client assignments on both representations
type Assigner interface {
	AssignClient(ctx context.Context, req consistency.AssignRequest) (*consistency.WriteResult, error)
}

// Service creates and updates trips and keeps their derived data current
type Service struct {
	store     Store
	slugs     *slug.Registry
	assigner  Assigner
	propagate *consistency.Propagator
	logger    *zap.Logger
}

// Client is a client to assign on creation
type Client struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
	Role  string `json:"role,omitempty"`
}

// Plan is the itinerary part of a trip document
type Plan struct {
	Financials     types.FinancialSummary `json:"financials"`
	Schedule       []types.ScheduleDay    `json:"schedule,omitempty"`
	Accommodations []types.Accommodation  `json:"accommodations,omitempty"`
}

// Input describes a new trip. Dates are YYYY-MM-DD.
type Input struct {
	Name         string
	Slug         string // Generated from client, destination and year when empty
	Status       string // Defaults to planning
	Destinations []string
	StartDate    string
	EndDate      string
	Clients      []Client
	Plan         *Plan
}

// Patch describes changes to a trip. Nil fields are left unchanged.
type Patch struct {
	Name         *string
	Status       *string
	Destinations []string
	StartDate    *string
	EndDate      *string
	Plan         *Plan
}

// Result is a written trip plus any non-fatal warnings
type Result struct {
	Trip     *types.Trip `json:"trip"`
	Warnings []string    `json:"warnings,omitempty"`
}

// Filter narrows List
type Filter struct {
	Status types.TripStatus // Empty matches every status
}

// NewService creates a Service
func NewService(store Store, slugs *slug.Registry, assigner Assigner, propagate *consistency.Propagator, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if propagate == nil {
		propagate = consistency.NewPropagator(nil, nil, nil, logger)
	}
	return &Service{
		store:     store,
		slugs:     slugs,
		assigner:  assigner,
		propagate: propagate,
		logger:    logger,
	}
}

// Create validates and stores a new trip, assigns its clients and a unique
// slug, and builds its derived data
func (s *Service) Create(ctx context.Context, in Input) (*Result, error) {
	trip, err := buildTrip(in)
	if err != nil {
		return nil, err
	}
	for i, c := range in.Clients {
		if !types.IsEmail(types.NormalizeEmail(c.Email)) {
			return nil, types.NewValidationError(fmt.Sprintf("clients[%d].email", i), "must be an email address")
		}
		if _, err := types.ParseRole(c.Role); err != nil {
			var verr *types.ValidationError
			if errors.As(err, &verr) {
				return nil, types.NewValidationError(fmt.Sprintf("clients[%d].role", i), verr.Reason)
			}
			return nil, err
		}
	}

	if err := s.store.CreateTrip(ctx, trip); err != nil {
		if errors.Is(err, storage.ErrSlugTaken) {
			return nil, types.NewValidationError("slug", fmt.Sprintf("%q is already used by another trip", trip.Slug))
		}
		return nil, err
	}
	s.logger.Info("trip created", zap.Int64("trip_id", trip.ID), zap.String("name", trip.Name))

	result := &Result{}
	for _, c := range in.Clients {
		res, err := s.assigner.AssignClient(ctx, consistency.AssignRequest{
			TripID: trip.ID, Email: c.Email, Role: c.Role, Name: c.Name,
		})
		if err != nil {
			return nil, fmt.Errorf("trip %d created but client %s was not assigned: %w", trip.ID, c.Email, err)
		}
		if res.Warning != "" {
			result.Warnings = append(result.Warnings, res.Warning)
		}
	}

	if trip.Slug == "" {
		// Clients are embedded now, so the slug can use the primary client
		current, err := s.store.GetTrip(ctx, trip.ID)
		if err != nil {
			return nil, err
		}
		if _, err := s.slugs.Assign(ctx, current); err != nil {
			s.logger.Warn("slug not assigned", zap.Int64("trip_id", trip.ID), zap.Error(err))
			result.Warnings = append(result.Warnings, "no slug assigned: "+err.Error())
		}
	}

	if err := s.propagate.Propagate(ctx, trip.ID, types.ReasonCreated); err != nil {
		result.Warnings = append(result.Warnings, "derived data not refreshed: "+err.Error())
	}

	result.Trip, err = s.store.GetTrip(ctx, trip.ID)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Update applies a patch. Plan changes mark the trip's facts dirty with
// schedule_changed, attribute-only changes with trip_updated.
func (s *Service) Update(ctx context.Context, tripID int64, patch Patch) (*Result, error) {
	trip, err := s.store.GetTrip(ctx, tripID)
	if err != nil {
		return nil, err
	}

	changed, err := applyPatch(trip, patch)
	if err != nil {
		return nil, err
	}
	if changed {
		if err := s.store.UpdateTrip(ctx, trip); err != nil {
			return nil, err
		}
	}

	reason := types.ReasonTripUpdated
	if patch.Plan != nil {
		if err := s.store.WritePlan(ctx, tripID, patch.Plan.document()); err != nil {
			return nil, err
		}
		reason = types.ReasonScheduleChanged
	}
	if !changed && patch.Plan == nil {
		return &Result{Trip: trip}, nil
	}

	result := &Result{}
	if err := s.propagate.Propagate(ctx, tripID, reason); err != nil {
		result.Warnings = append(result.Warnings, "derived data not refreshed: "+err.Error())
	}
	s.logger.Info("trip updated", zap.Int64("trip_id", tripID), zap.String("reason", reason))

	result.Trip, err = s.store.GetTrip(ctx, tripID)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Get returns one trip
func (s *Service) Get(ctx context.Context, tripID int64) (*types.Trip, error) {
	if tripID <= 0 {
		return nil, types.NewValidationError("trip_id", "must be a positive integer")
	}
	return s.store.GetTrip(ctx, tripID)
}

// List returns the trips matching filter, ordered by id
func (s *Service) List(ctx context.Context, filter Filter) ([]*types.Trip, error) {
	all, err := s.store.ListTrips(ctx)
	if err != nil {
		return nil, err
	}
	if filter.Status == "" {
		return all, nil
	}
	out := make([]*types.Trip, 0, len(all))
	for _, t := range all {
		if t.Status == filter.Status {
			out = append(out, t)
		}
	}
	return out, nil
}

func buildTrip(in Input) (*types.Trip, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, types.NewValidationError("name", "must not be empty")
	}
	status := types.StatusPlanning
	if in.Status != "" {
		var err error
		if status, err = types.ParseStatus(in.Status); err != nil {
			return nil, err
		}
	}
	if in.Slug != "" && !slug.Valid(in.Slug) {
		return nil, types.NewValidationError("slug", "must be lowercase letters and digits separated by single hyphens")
	}

	trip := &types.Trip{
		Name:         name,
		Slug:         in.Slug,
		Status:       status,
		Destinations: cleanDestinations(in.Destinations),
		Document:     *types.NewTripDocument(),
	}
	var err error
	if trip.StartDate, err = parseDate("start_date", in.StartDate); err != nil {
		return nil, err
	}
	if trip.EndDate, err = parseDate("end_date", in.EndDate); err != nil {
		return nil, err
	}
	if err := checkDates(trip); err != nil {
		return nil, err
	}
	if in.Plan != nil {
		plan := in.Plan.document()
		trip.Document.Financials = plan.Financials
		trip.Document.Schedule = plan.Schedule
		trip.Document.Accommodations = plan.Accommodations
	}
	return trip, trip.Document.Validate()
}

func applyPatch(trip *types.Trip, patch Patch) (bool, error) {
	changed := false
	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			return false, types.NewValidationError("name", "must not be empty")
		}
		changed = changed || name != trip.Name
		trip.Name = name
	}
	if patch.Status != nil {
		status, err := types.ParseStatus(*patch.Status)
		if err != nil {
			return false, err
		}
		changed = changed || status != trip.Status
		trip.Status = status
	}
	if patch.Destinations != nil {
		trip.Destinations = cleanDestinations(patch.Destinations)
		changed = true
	}
	if patch.StartDate != nil {
		d, err := parseDate("start_date", *patch.StartDate)
		if err != nil {
			return false, err
		}
		changed = changed || !d.Equal(trip.StartDate)
		trip.StartDate = d
	}
	if patch.EndDate != nil {
		d, err := parseDate("end_date", *patch.EndDate)
		if err != nil {
			return false, err
		}
		changed = changed || !d.Equal(trip.EndDate)
		trip.EndDate = d
	}
	if err := checkDates(trip); err != nil {
		return false, err
	}
	if patch.Plan != nil {
		if err := patch.Plan.document().Validate(); err != nil {
			return false, err
		}
	}
	return changed, nil
}

func (p *Plan) document() *types.TripDocument {
	doc := types.NewTripDocument()
	doc.Financials = p.Financials
	doc.Schedule = p.Schedule
	doc.Accommodations = p.Accommodations
	return doc
}

func parseDate(field, raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(dateLayout, raw)
	if err != nil {
		return time.Time{}, types.NewValidationError(field, "must be a date in YYYY-MM-DD format")
	}
	return t, nil
}

func checkDates(trip *types.Trip) error {
	if !trip.StartDate.IsZero() && !trip.EndDate.IsZero() && trip.EndDate.Before(trip.StartDate) {
		return types.NewValidationError("end_date", "must not be before start_date")
	}
	return nil
}

func cleanDestinations(in []string) []string {
	out := make([]string, 0, len(in))
	for _, d := range in {
		if d = strings.TrimSpace(d); d != "" {
			out = append(out, d)
		}
	}
	return out
}
