package consistency

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/dshills/tripdesk-mcp/pkg/types"
)

// Store is the storage the manager writes both representations through
type Store interface {
	UpsertAssignment(ctx context.Context, a *types.ClientAssignment) error
	DeleteAssignments(ctx context.Context, tripID int64, clientEmail string) (int, error)
	ListAssignments(ctx context.Context, tripID int64) ([]types.ClientAssignment, error)
	ReadClients(ctx context.Context, tripID int64) ([]types.ClientAssignment, error)
	WriteClients(ctx context.Context, tripID int64, clients []types.ClientAssignment) error
	ListTrips(ctx context.Context) ([]*types.Trip, error)
}

// Manager keeps the normalized assignment rows and the embedded client list
// of each trip in agreement. The assignment table is authoritative; the
// embedded list is rewritten from it after every change.
type Manager struct {
	store     Store
	propagate *Propagator
	logger    *zap.Logger
}

// AssignRequest describes one client assignment
type AssignRequest struct {
	TripID int64
	Email  string
	Role   string // Empty means traveler
	Name   string
}

// WriteResult reports the outcome of an assignment write. The write
// succeeded whenever a WriteResult is returned; Consistent is false when the
// embedded list could not be brought in line.
type WriteResult struct {
	TripID     int64                   `json:"trip_id"`
	Assignment *types.ClientAssignment `json:"assignment,omitempty"`
	Removed    int                     `json:"removed,omitempty"`
	Consistent bool                    `json:"consistent"`
	Warning    string                  `json:"warning,omitempty"`

	// Divergence is set when Consistent is false
	Divergence *types.ConsistencyError `json:"-"`
}

// Diff is the reconciliation result of one trip
type Diff struct {
	TripID     int64                 `json:"trip_id"`
	Consistent bool                  `json:"consistent"`
	Missing    []types.AssignmentKey `json:"missing,omitempty"`
	Extra      []types.AssignmentKey `json:"extra,omitempty"`
	Repaired   bool                  `json:"repaired,omitempty"`
	Warning    string                `json:"warning,omitempty"`
}

// Report summarizes a reconciliation over every trip
type Report struct {
	Checked      int      `json:"checked"`
	Inconsistent int      `json:"inconsistent"`
	Repaired     int      `json:"repaired"`
	Diffs        []Diff   `json:"diffs"`
	Errors       []string `json:"errors,omitempty"`
}

// NewManager creates a Manager. propagate may be nil when no side effects
// are wanted.
func NewManager(store Store, propagate *Propagator, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	if propagate == nil {
		propagate = NewPropagator(nil, nil, nil, logger)
	}
	return &Manager{store: store, propagate: propagate, logger: logger}
}

// AssignClient records a client on a trip. Invalid input and failures of
// the authoritative write are returned as errors; everything after that
// degrades to a warning on the result.
func (m *Manager) AssignClient(ctx context.Context, req AssignRequest) (*WriteResult, error) {
	if req.TripID <= 0 {
		return nil, types.NewValidationError("trip_id", "must be a positive integer")
	}
	email := types.NormalizeEmail(req.Email)
	if !types.IsEmail(email) {
		return nil, types.NewValidationError("client_email", fmt.Sprintf("%q is not a valid email address", req.Email))
	}
	role, err := types.ParseRole(req.Role)
	if err != nil {
		return nil, err
	}

	assignment := &types.ClientAssignment{
		TripID:      req.TripID,
		ClientEmail: email,
		ClientName:  req.Name,
		Role:        role,
	}
	if err := m.store.UpsertAssignment(ctx, assignment); err != nil {
		return nil, err
	}

	result := m.syncEmbedded(ctx, req.TripID)
	result.Assignment = assignment
	m.finish(ctx, result, "assignment")
	return result, nil
}

// UnassignClient removes every role of a client on a trip. Removing a client
// that is not assigned is not an error; an unknown trip is
// storage.ErrNotFound.
func (m *Manager) UnassignClient(ctx context.Context, tripID int64, email string) (*WriteResult, error) {
	if tripID <= 0 {
		return nil, types.NewValidationError("trip_id", "must be a positive integer")
	}
	normalized := types.NormalizeEmail(email)
	if !types.IsEmail(normalized) {
		return nil, types.NewValidationError("client_email", fmt.Sprintf("%q is not a valid email address", email))
	}

	// The delete matches nothing for an unknown trip, so check first
	if _, err := m.store.ReadClients(ctx, tripID); err != nil {
		return nil, err
	}

	removed, err := m.store.DeleteAssignments(ctx, tripID, normalized)
	if err != nil {
		return nil, err
	}

	result := m.syncEmbedded(ctx, tripID)
	result.Removed = removed
	m.finish(ctx, result, "unassignment")
	return result, nil
}

// syncEmbedded rewrites the embedded list from the authoritative rows
func (m *Manager) syncEmbedded(ctx context.Context, tripID int64) *WriteResult {
	result := &WriteResult{TripID: tripID, Consistent: true}

	rows, err := m.store.ListAssignments(ctx, tripID)
	if err != nil {
		result.diverged(&types.ConsistencyError{TripID: tripID, Cause: err})
		m.logDivergence(result)
		return result
	}
	if err := m.store.WriteClients(ctx, tripID, rows); err != nil {
		cerr := &types.ConsistencyError{TripID: tripID, Cause: err}
		if embedded, readErr := m.store.ReadClients(ctx, tripID); readErr == nil {
			cerr.Missing, cerr.Extra = diffKeys(tripID, rows, embedded)
		} else {
			cerr.Missing = keys(tripID, rows)
		}
		result.diverged(cerr)
		m.logDivergence(result)
	}
	return result
}

// finish runs propagation; its failures become a warning
func (m *Manager) finish(ctx context.Context, result *WriteResult, op string) {
	if err := m.propagate.Propagate(ctx, result.TripID, types.ReasonClientAssignment); err != nil {
		result.warn(op + " saved but derived data was not refreshed: " + err.Error())
	}
}

func (r *WriteResult) diverged(err *types.ConsistencyError) {
	r.Consistent = false
	r.Divergence = err
	r.warn(err.Error())
}

func (r *WriteResult) warn(msg string) {
	if r.Warning == "" {
		r.Warning = msg
		return
	}
	r.Warning += "; " + msg
}

func (m *Manager) logDivergence(r *WriteResult) {
	m.logger.Warn("dual write diverged",
		zap.Int64("trip_id", r.TripID),
		zap.Int("missing", len(r.Divergence.Missing)),
		zap.Int("extra", len(r.Divergence.Extra)),
		zap.Error(r.Divergence.Cause),
	)
}

// Reconcile compares both representations of a trip's clients
func (m *Manager) Reconcile(ctx context.Context, tripID int64) (*Diff, error) {
	rows, err := m.store.ListAssignments(ctx, tripID)
	if err != nil {
		return nil, err
	}
	embedded, err := m.store.ReadClients(ctx, tripID)
	if err != nil {
		return nil, err
	}
	diff := &Diff{TripID: tripID}
	diff.Missing, diff.Extra = diffKeys(tripID, rows, embedded)
	diff.Consistent = len(diff.Missing) == 0 && len(diff.Extra) == 0
	return diff, nil
}

// Repair rewrites the embedded list of a divergent trip from the
// authoritative rows. The returned diff describes the state before repair.
func (m *Manager) Repair(ctx context.Context, tripID int64) (*Diff, error) {
	diff, err := m.Reconcile(ctx, tripID)
	if err != nil {
		return nil, err
	}
	if diff.Consistent {
		return diff, nil
	}

	rows, err := m.store.ListAssignments(ctx, tripID)
	if err != nil {
		return nil, err
	}
	if err := m.store.WriteClients(ctx, tripID, rows); err != nil {
		return nil, fmt.Errorf("failed to repair trip %d: %w", tripID, err)
	}
	diff.Repaired = true
	m.logger.Info("repaired embedded client list",
		zap.Int64("trip_id", tripID),
		zap.Int("missing", len(diff.Missing)),
		zap.Int("extra", len(diff.Extra)),
	)
	if err := m.propagate.Propagate(ctx, tripID, types.ReasonClientAssignment); err != nil {
		diff.Warning = "repair saved but derived data was not refreshed: " + err.Error()
	}
	return diff, nil
}

// ReconcileAll audits every trip, repairing divergent ones when repair is
// set. Per-trip failures are collected rather than aborting the audit.
func (m *Manager) ReconcileAll(ctx context.Context, repair bool) (*Report, error) {
	trips, err := m.store.ListTrips(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list trips: %w", err)
	}

	report := &Report{Diffs: []Diff{}}
	for _, trip := range trips {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var diff *Diff
		if repair {
			diff, err = m.Repair(ctx, trip.ID)
		} else {
			diff, err = m.Reconcile(ctx, trip.ID)
		}
		if err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("trip %d: %v", trip.ID, err))
			continue
		}
		report.Checked++
		if diff.Consistent {
			continue
		}
		report.Inconsistent++
		if diff.Repaired {
			report.Repaired++
		}
		report.Diffs = append(report.Diffs, *diff)
	}
	return report, nil
}

// diffKeys returns the keys present only in rows (missing from the
// embedded list) and only in embedded (extra)
func diffKeys(tripID int64, rows, embedded []types.ClientAssignment) (missing, extra []types.AssignmentKey) {
	want := keySet(tripID, rows)
	have := keySet(tripID, embedded)
	for k := range want {
		if _, ok := have[k]; !ok {
			missing = append(missing, k)
		}
	}
	for k := range have {
		if _, ok := want[k]; !ok {
			extra = append(extra, k)
		}
	}
	sortKeys(missing)
	sortKeys(extra)
	return missing, extra
}

func keySet(tripID int64, list []types.ClientAssignment) map[types.AssignmentKey]struct{} {
	set := make(map[types.AssignmentKey]struct{}, len(list))
	for _, k := range keys(tripID, list) {
		set[k] = struct{}{}
	}
	return set
}

func keys(tripID int64, list []types.ClientAssignment) []types.AssignmentKey {
	out := make([]types.AssignmentKey, 0, len(list))
	for _, a := range list {
		role := a.Role
		if role == "" {
			role = types.RoleTraveler
		}
		out = append(out, types.AssignmentKey{TripID: tripID, ClientEmail: types.NormalizeEmail(a.ClientEmail), Role: role})
	}
	return out
}

func sortKeys(ks []types.AssignmentKey) {
	sort.Slice(ks, func(i, j int) bool {
		if ks[i].ClientEmail != ks[j].ClientEmail {
			return ks[i].ClientEmail < ks[j].ClientEmail
		}
		return ks[i].Role < ks[j].Role
	})
}
