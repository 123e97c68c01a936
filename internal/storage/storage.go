package storage

import (
	"context"
	"time"

	"github.com/dshills/tripdesk-mcp/pkg/types"
)

// Storage defines the interface for persisting trips and their derived data
type Storage interface {
	TripStore
	DocumentStore
	AssignmentStore
	FactStore
	DirtyQueue
	ComponentStore

	// Status operations
	GetStatus(ctx context.Context) (*Status, error)

	// Database operations
	Close() error
}

// TripStore persists trip attribute columns and the slug index
type TripStore interface {
	CreateTrip(ctx context.Context, trip *types.Trip) error
	GetTrip(ctx context.Context, tripID int64) (*types.Trip, error)
	GetTripBySlug(ctx context.Context, slug string) (*types.Trip, error)
	ListTrips(ctx context.Context) ([]*types.Trip, error)
	UpdateTrip(ctx context.Context, trip *types.Trip) error
	SetTripSlug(ctx context.Context, tripID int64, slug string) error
	UpdateSearchText(ctx context.Context, tripID int64, text string) error
	ListSearchRows(ctx context.Context) ([]SearchRow, error)
}

// DocumentStore reads and writes the embedded trip document. Each storage
// engine provides its own implementation of the dialect-specific JSON access.
type DocumentStore interface {
	ReadDocument(ctx context.Context, tripID int64) (*types.TripDocument, error)
	ReadClients(ctx context.Context, tripID int64) ([]types.ClientAssignment, error)
	WriteClients(ctx context.Context, tripID int64, clients []types.ClientAssignment) error
	WritePlan(ctx context.Context, tripID int64, doc *types.TripDocument) error
}

// AssignmentStore persists the normalized (authoritative) assignment rows
type AssignmentStore interface {
	UpsertAssignment(ctx context.Context, a *types.ClientAssignment) error
	DeleteAssignments(ctx context.Context, tripID int64, clientEmail string) (int, error)
	ListAssignments(ctx context.Context, tripID int64) ([]types.ClientAssignment, error)
	ListAllAssignments(ctx context.Context) ([]types.ClientAssignment, error)
}

// FactStore persists derived trip facts
type FactStore interface {
	// UpsertFacts writes the metrics and bumps the version in one statement.
	// facts.Version is set to the stored version on return.
	UpsertFacts(ctx context.Context, facts *types.TripFacts) error
	GetFacts(ctx context.Context, tripID int64) (*types.TripFacts, error)
}

// DirtyQueue persists dirty markers grouped into processing cycles
type DirtyQueue interface {
	// EnqueueDirty inserts (trip, reason) markers into the open cycle,
	// ignoring duplicates. It returns the number of new markers.
	EnqueueDirty(ctx context.Context, tripIDs []int64, reason string, at time.Time) (int, error)
	// CloseCycle ends the open cycle and returns its number. Markers enqueued
	// afterwards belong to the next cycle.
	CloseCycle(ctx context.Context) (int64, error)
	// ClaimDirty returns up to limit distinct trip ids with markers in cycles
	// up to and including maxCycle, oldest first.
	ClaimDirty(ctx context.Context, maxCycle int64, limit int) ([]int64, error)
	// ClearDirty removes a trip's markers in cycles up to maxCycle.
	ClearDirty(ctx context.Context, tripID int64, maxCycle int64) error
	ListDirty(ctx context.Context) ([]types.DirtyMarker, error)
	CountDirtyTrips(ctx context.Context) (int, error)
}

// ComponentStore persists semantic components
type ComponentStore interface {
	// ReplaceComponents swaps a trip's components atomically
	ReplaceComponents(ctx context.Context, tripID int64, components []types.TripComponent) error
	ListComponents(ctx context.Context, tripID int64) ([]types.TripComponent, error)
	// FindComponents returns every component whose value is in values
	FindComponents(ctx context.Context, values []string) ([]types.TripComponent, error)
}

// SearchRow is the denormalized search representation of one trip
type SearchRow struct {
	TripID     int64
	Name       string
	Slug       string
	SearchText string
	UpdatedAt  time.Time
}

// Status contains statistics about the store
type Status struct {
	TripsCount       int
	AssignmentsCount int
	ComponentsCount  int
	FactsCount       int
	DirtyMarkers     int
	DirtyTrips       int
	SizeMB           float64
	SchemaVersion    string
	Health           HealthStatus
}

// HealthStatus represents the health of the store
type HealthStatus struct {
	DatabaseAccessible bool
	JSONFunctions      bool
	SearchTextBuilt    bool
}
