package types

import "time"

// TripFacts is the derived aggregate cache row for one trip. Values may be
// stale between recomputations; Version never decreases.
type TripFacts struct {
	TripID         int64     `json:"trip_id"`
	Nights         int       `json:"nights"`
	HotelCount     int       `json:"hotel_count"`
	ActivityCount  int       `json:"activity_count"`
	TotalCost      float64   `json:"total_cost"`
	TransitMinutes int       `json:"transit_minutes"`
	LastComputed   time.Time `json:"last_computed"`
	Version        int64     `json:"version"`
}

// SameMetrics reports whether two fact rows carry identical metric values,
// ignoring bookkeeping fields
func (f TripFacts) SameMetrics(o TripFacts) bool {
	return f.Nights == o.Nights &&
		f.HotelCount == o.HotelCount &&
		f.ActivityCount == o.ActivityCount &&
		f.TotalCost == o.TotalCost &&
		f.TransitMinutes == o.TransitMinutes
}

// DirtyMarker signals that a trip's facts are stale. Markers are unique per
// (TripID, Reason, Cycle); duplicates within a cycle collapse.
type DirtyMarker struct {
	TripID    int64     `json:"trip_id"`
	Reason    string    `json:"reason"`
	Cycle     int64     `json:"cycle"`
	CreatedAt time.Time `json:"created_at"`
}

// Dirty reasons raised by the engine itself
const (
	ReasonClientAssignment = "client_assignment"
	ReasonCreated          = "created"
	ReasonScheduleChanged  = "schedule_changed"
	ReasonTripUpdated      = "trip_updated"
)
