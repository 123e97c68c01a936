package semantic

import (
	"sort"
	"strings"
	"time"

	"github.com/dshills/tripdesk-mcp/internal/matcher"
	"github.com/dshills/tripdesk-mcp/internal/normalize"
	"github.com/dshills/tripdesk-mcp/pkg/types"
)

// Component weights
const (
	WeightClientEmail = 3.0
	WeightClientName  = 2.0
	WeightDate        = 1.8
	WeightDestination = 1.5
	WeightStatus      = 1.2
	WeightActivity    = 1.0
	WeightDescriptor  = 1.0
	WeightCost        = 0.8
)

// Cost bucket upper bounds (exclusive), in the trip's currency
const (
	budgetCeiling = 2000.0
	midCeiling    = 7500.0
)

// maxMonths bounds the month components of very long trips
const maxMonths = 24

// TypeWeight is the query weight of a component type
func TypeWeight(t types.ComponentType) float64 {
	switch t {
	case types.ComponentClient:
		return WeightClientName
	case types.ComponentDate:
		return WeightDate
	case types.ComponentDestination:
		return WeightDestination
	case types.ComponentStatus:
		return WeightStatus
	case types.ComponentCost:
		return WeightCost
	default:
		return WeightActivity
	}
}

// Extractor decomposes trips into semantic components
type Extractor struct {
	norm     *normalize.Normalizer
	synonyms *Synonyms
}

// NewExtractor creates an Extractor
func NewExtractor(n *normalize.Normalizer, synonyms *Synonyms) *Extractor {
	return &Extractor{norm: n, synonyms: synonyms}
}

type componentSet struct {
	tripID int64
	byKey  map[string]*types.TripComponent
}

func (s *componentSet) add(kind types.ComponentType, value string, weight float64, synonyms []string) {
	if value == "" {
		return
	}
	key := string(kind) + "\x00" + value
	if existing, ok := s.byKey[key]; ok {
		if weight > existing.Weight {
			existing.Weight = weight
		}
		return
	}
	s.byKey[key] = &types.TripComponent{
		TripID:   s.tripID,
		Type:     kind,
		Value:    value,
		Weight:   weight,
		Synonyms: synonyms,
	}
}

func (s *componentSet) has(value string) bool {
	for _, c := range s.byKey {
		if c.Value == value {
			return true
		}
	}
	return false
}

func (s *componentSet) list() []types.TripComponent {
	out := make([]types.TripComponent, 0, len(s.byKey))
	for _, c := range s.byKey {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Type != out[j].Type {
			return out[i].Type < out[j].Type
		}
		return out[i].Value < out[j].Value
	})
	return out
}

// Extract returns the components of trip. clients should be the
// authoritative assignment rows; the embedded list is used when nil.
func (e *Extractor) Extract(trip *types.Trip, clients []types.ClientAssignment) []types.TripComponent {
	if clients == nil {
		clients = trip.Document.Clients
	}
	set := &componentSet{tripID: trip.ID, byKey: map[string]*types.TripComponent{}}

	e.extractClients(set, clients)
	e.extractDestinations(set, trip.Destinations)
	extractDates(set, trip.StartDate, trip.EndDate)

	for _, day := range trip.Document.Schedule {
		for _, act := range day.Activities {
			if phrase := e.norm.Normalize(act.Name).Text; phrase != "" {
				set.add(types.ComponentActivity, phrase, WeightActivity, e.synonyms.Expand(phrase))
			}
		}
	}

	if bucket := costBucket(tripCost(&trip.Document)); bucket != "" {
		set.add(types.ComponentCost, bucket, WeightCost, e.synonyms.Expand(bucket))
	}

	if trip.Status != "" {
		status := e.norm.Normalize(strings.ReplaceAll(string(trip.Status), "_", " ")).Text
		set.add(types.ComponentStatus, status, WeightStatus, e.synonyms.Expand(status))
	}

	e.extractDescriptors(set, trip)
	return set.list()
}

func (e *Extractor) extractClients(set *componentSet, clients []types.ClientAssignment) {
	for _, c := range clients {
		email := types.NormalizeEmail(c.ClientEmail)
		if types.IsEmail(email) {
			set.add(types.ComponentClient, email, WeightClientEmail, nil)
		}
		names := e.norm.Tokens(c.ClientName)
		if len(names) == 0 && email != "" {
			names = e.norm.Tokens(strings.NewReplacer(".", " ", "_", " ", "+", " ").Replace(types.EmailLocalPart(email)))
		}
		for _, name := range names {
			if len(name) > 1 && !normalize.IsStopword(name) {
				set.add(types.ComponentClient, name, WeightClientName, nil)
			}
		}
	}
}

func (e *Extractor) extractDestinations(set *componentSet, destinations []string) {
	for _, dest := range destinations {
		phrase := e.norm.Normalize(dest).Text
		if phrase == "" {
			continue
		}
		set.add(types.ComponentDestination, phrase, WeightDestination, e.synonyms.Expand(phrase))
	}
}

// extractDates adds the years and months the trip spans
func extractDates(set *componentSet, start, end time.Time) {
	if start.IsZero() {
		return
	}
	if end.IsZero() || end.Before(start) {
		end = start
	}
	month := firstOfMonth(start)
	for i := 0; i < maxMonths && !month.After(end); i++ {
		set.add(types.ComponentDate, YearKey(month.Year()), WeightDate, nil)
		set.add(types.ComponentDate, MonthKey(month.Year(), month.Month()), WeightDate, nil)
		month = month.AddDate(0, 1, 0)
	}
}

// extractDescriptors adds trip-name and hotel words not already covered
func (e *Extractor) extractDescriptors(set *componentSet, trip *types.Trip) {
	covered := map[string]struct{}{}
	for _, c := range set.byKey {
		for _, tok := range strings.Fields(c.Value) {
			covered[tok] = struct{}{}
		}
	}

	words := e.norm.Tokens(trip.Name)
	for _, acc := range trip.Document.Accommodations {
		words = append(words, e.norm.Tokens(acc.Name)...)
	}
	for _, w := range words {
		if _, ok := covered[w]; ok {
			continue
		}
		if len(w) < 2 || normalize.IsStopword(w) || matcher.IsDateToken(w) || set.has(w) {
			continue
		}
		set.add(types.ComponentDescriptor, w, WeightDescriptor, e.synonyms.Expand(w))
	}
}

// tripCost is the financial total, or the itemized sum when no total is set
func tripCost(doc *types.TripDocument) float64 {
	if doc.Financials.TotalCost > 0 {
		return doc.Financials.TotalCost
	}
	var sum float64
	for _, a := range doc.Accommodations {
		sum += a.Cost
	}
	for _, day := range doc.Schedule {
		for _, act := range day.Activities {
			sum += act.Cost
		}
	}
	return sum
}

func costBucket(cost float64) string {
	switch {
	case cost <= 0:
		return ""
	case cost < budgetCeiling:
		return "budget"
	case cost < midCeiling:
		return "mid"
	default:
		return "luxury"
	}
}
