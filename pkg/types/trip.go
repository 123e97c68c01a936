package types

import (
	"strings"
	"time"
)

// TripStatus is the lifecycle state of a trip. Cancellation is a status
// transition; trips are never hard-deleted.
type TripStatus string

const (
	StatusPlanning    TripStatus = "planning"
	StatusConfirmed   TripStatus = "confirmed"
	StatusDepositPaid TripStatus = "deposit_paid"
	StatusPaidInFull  TripStatus = "paid_in_full"
	StatusInProgress  TripStatus = "in_progress"
	StatusCompleted   TripStatus = "completed"
	StatusCancelled   TripStatus = "cancelled"
)

// AllStatuses lists every valid trip status in lifecycle order
var AllStatuses = []TripStatus{
	StatusPlanning, StatusConfirmed, StatusDepositPaid, StatusPaidInFull,
	StatusInProgress, StatusCompleted, StatusCancelled,
}

// Valid reports whether s is a known status
func (s TripStatus) Valid() bool {
	for _, v := range AllStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// ParseStatus converts user input into a TripStatus
func ParseStatus(raw string) (TripStatus, error) {
	s := TripStatus(strings.ToLower(strings.TrimSpace(raw)))
	if s == "canceled" {
		s = StatusCancelled
	}
	if !s.Valid() {
		return "", NewValidationError("status", "must be one of planning, confirmed, deposit_paid, paid_in_full, in_progress, completed, cancelled")
	}
	return s, nil
}

// Role is the part a client plays on a trip
type Role string

const (
	RoleTraveler          Role = "traveler"
	RolePrimaryTraveler   Role = "primary_traveler"
	RoleSecondaryTraveler Role = "secondary_traveler"
)

// Valid reports whether r is a known role
func (r Role) Valid() bool {
	switch r {
	case RoleTraveler, RolePrimaryTraveler, RoleSecondaryTraveler:
		return true
	}
	return false
}

// ParseRole converts user input into a Role. Empty input means traveler.
func ParseRole(raw string) (Role, error) {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if raw == "" {
		return RoleTraveler, nil
	}
	r := Role(raw)
	if !r.Valid() {
		return "", NewValidationError("role", "must be one of traveler, primary_traveler, secondary_traveler")
	}
	return r, nil
}

// Trip is the aggregate the engine keeps consistent and resolves queries to
type Trip struct {
	// Identification
	ID   int64
	Slug string // Empty when no slug has been assigned yet

	// Attributes
	Name         string
	Status       TripStatus
	Destinations []string
	StartDate    time.Time // Zero when unknown
	EndDate      time.Time // Zero when unknown

	// Embedded, read-optimized document (clients, financials, plan)
	Document TripDocument

	// Denormalized search representation maintained by the indexer
	SearchText string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// PrimaryDestination returns the first destination or an empty string
func (t *Trip) PrimaryDestination() string {
	if len(t.Destinations) == 0 {
		return ""
	}
	return t.Destinations[0]
}

// PrimaryClient returns the assignment that best identifies the trip's
// client: the primary traveler if any, otherwise the first assignment.
func (t *Trip) PrimaryClient() (ClientAssignment, bool) {
	for _, c := range t.Document.Clients {
		if c.Role == RolePrimaryTraveler {
			return c, true
		}
	}
	if len(t.Document.Clients) > 0 {
		return t.Document.Clients[0], true
	}
	return ClientAssignment{}, false
}

// Year returns the start year of the trip, or 0 when no start date is set
func (t *Trip) Year() int {
	if t.StartDate.IsZero() {
		return 0
	}
	return t.StartDate.Year()
}

// ClientAssignment links a client identity (email) to a trip with a role.
// The (TripID, ClientEmail, Role) tuple is the identity; ClientName is a
// display attribute only.
type ClientAssignment struct {
	TripID      int64  `json:"trip_id"`
	ClientEmail string `json:"client_email"`
	ClientName  string `json:"client_name,omitempty"`
	Role        Role   `json:"role"`
}

// Key returns the identity tuple of the assignment
func (a ClientAssignment) Key() AssignmentKey {
	return AssignmentKey{TripID: a.TripID, ClientEmail: a.ClientEmail, Role: a.Role}
}

// AssignmentKey is the (trip_id, client_email, role) identity of an assignment
type AssignmentKey struct {
	TripID      int64  `json:"trip_id"`
	ClientEmail string `json:"client_email"`
	Role        Role   `json:"role"`
}

// SlugRecord pairs a trip with its globally unique slug
type SlugRecord struct {
	TripID int64
	Slug   string
}
