package types

// ComponentType classifies a semantic component of a trip
type ComponentType string

const (
	ComponentClient      ComponentType = "client"
	ComponentDestination ComponentType = "destination"
	ComponentDate        ComponentType = "date"
	ComponentActivity    ComponentType = "activity"
	ComponentCost        ComponentType = "cost"
	ComponentDescriptor  ComponentType = "descriptor"
	ComponentStatus      ComponentType = "status"
)

// AllComponentTypes lists every component type
var AllComponentTypes = []ComponentType{
	ComponentClient, ComponentDestination, ComponentDate, ComponentActivity,
	ComponentCost, ComponentDescriptor, ComponentStatus,
}

// TripComponent is a typed, weighted fact extracted from a trip
type TripComponent struct {
	TripID   int64         `json:"trip_id"`
	Type     ComponentType `json:"component_type"`
	Value    string        `json:"value"`
	Weight   float64       `json:"weight"`
	Synonyms []string      `json:"synonyms,omitempty"`
}
