package types

import (
	"encoding/json"
	"fmt"
	"strings"
)

// CurrentDocumentVersion is the schema version written for embedded trip documents
const CurrentDocumentVersion = 2

// TripDocument is the embedded, read-optimized part of a trip record.
// It is stored as JSON and upgraded to CurrentDocumentVersion on read.
type TripDocument struct {
	SchemaVersion  int                `json:"schema_version"`
	Clients        []ClientAssignment `json:"clients"`
	Financials     FinancialSummary   `json:"financials"`
	Schedule       []ScheduleDay      `json:"schedule,omitempty"`
	Accommodations []Accommodation    `json:"accommodations,omitempty"`
}

// FinancialSummary holds the trip's money totals
type FinancialSummary struct {
	TotalCost float64 `json:"total_cost"`
	Deposit   float64 `json:"deposit,omitempty"`
	Currency  string  `json:"currency,omitempty"`
}

// ScheduleDay is one day of the itinerary
type ScheduleDay struct {
	Date       string     `json:"date,omitempty"` // YYYY-MM-DD
	Activities []Activity `json:"activities,omitempty"`
}

// Activity is a scheduled item on a day
type Activity struct {
	Name           string  `json:"name"`
	Cost           float64 `json:"cost,omitempty"`
	TransitMinutes int     `json:"transit_minutes,omitempty"`
}

// Accommodation is a hotel (or similar) stay
type Accommodation struct {
	Name   string  `json:"name"`
	Nights int     `json:"nights"`
	Cost   float64 `json:"cost,omitempty"`
}

// documentV1 is the legacy flat layout: a list of traveler emails and a cost
type documentV1 struct {
	Travelers []string `json:"travelers"`
	TotalCost float64  `json:"total_cost"`
}

// documentMigrations upgrade a raw document from version N to N+1
var documentMigrations = map[int]func(raw json.RawMessage) (json.RawMessage, error){
	1: migrateDocumentV1,
}

// DecodeTripDocument parses a stored document, upgrading older versions.
// Empty input yields an empty current-version document.
func DecodeTripDocument(raw []byte) (*TripDocument, error) {
	if len(strings.TrimSpace(string(raw))) == 0 {
		return NewTripDocument(), nil
	}

	var head struct {
		SchemaVersion int `json:"schema_version"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return nil, fmt.Errorf("decode trip document: %w", err)
	}

	version := head.SchemaVersion
	if version == 0 {
		version = 1
	}
	if version > CurrentDocumentVersion {
		return nil, fmt.Errorf("trip document version %d is newer than supported %d", version, CurrentDocumentVersion)
	}

	current := json.RawMessage(raw)
	for v := version; v < CurrentDocumentVersion; v++ {
		migrate, ok := documentMigrations[v]
		if !ok {
			return nil, fmt.Errorf("no migration from trip document version %d", v)
		}
		next, err := migrate(current)
		if err != nil {
			return nil, fmt.Errorf("migrate trip document v%d: %w", v, err)
		}
		current = next
	}

	var doc TripDocument
	if err := json.Unmarshal(current, &doc); err != nil {
		return nil, fmt.Errorf("decode trip document: %w", err)
	}
	doc.SchemaVersion = CurrentDocumentVersion
	if doc.Clients == nil {
		doc.Clients = []ClientAssignment{}
	}
	return &doc, nil
}

// NewTripDocument returns an empty document at the current version
func NewTripDocument() *TripDocument {
	return &TripDocument{
		SchemaVersion: CurrentDocumentVersion,
		Clients:       []ClientAssignment{},
	}
}

func migrateDocumentV1(raw json.RawMessage) (json.RawMessage, error) {
	var old documentV1
	if err := json.Unmarshal(raw, &old); err != nil {
		return nil, err
	}
	doc := TripDocument{
		SchemaVersion: 2,
		Clients:       make([]ClientAssignment, 0, len(old.Travelers)),
		Financials:    FinancialSummary{TotalCost: old.TotalCost},
	}
	for _, email := range old.Travelers {
		email = strings.ToLower(strings.TrimSpace(email))
		if email == "" {
			continue
		}
		doc.Clients = append(doc.Clients, ClientAssignment{ClientEmail: email, Role: RoleTraveler})
	}
	return json.Marshal(doc)
}

// Encode serializes the document at the current version
func (d *TripDocument) Encode() ([]byte, error) {
	d.SchemaVersion = CurrentDocumentVersion
	if d.Clients == nil {
		d.Clients = []ClientAssignment{}
	}
	return json.Marshal(d)
}

// Validate checks the document at the storage boundary
func (d *TripDocument) Validate() error {
	for i, c := range d.Clients {
		if !IsEmail(c.ClientEmail) {
			return NewValidationError(fmt.Sprintf("clients[%d].client_email", i), "must be an email address")
		}
		if !c.Role.Valid() {
			return NewValidationError(fmt.Sprintf("clients[%d].role", i), "unknown role")
		}
	}
	if d.Financials.TotalCost < 0 {
		return NewValidationError("financials.total_cost", "must not be negative")
	}
	if d.Financials.Deposit < 0 {
		return NewValidationError("financials.deposit", "must not be negative")
	}
	for i, a := range d.Accommodations {
		if a.Nights < 0 {
			return NewValidationError(fmt.Sprintf("accommodations[%d].nights", i), "must not be negative")
		}
		if a.Cost < 0 {
			return NewValidationError(fmt.Sprintf("accommodations[%d].cost", i), "must not be negative")
		}
	}
	for i, day := range d.Schedule {
		for j, act := range day.Activities {
			if act.Cost < 0 || act.TransitMinutes < 0 {
				return NewValidationError(fmt.Sprintf("schedule[%d].activities[%d]", i, j), "cost and transit minutes must not be negative")
			}
		}
	}
	return nil
}
