// Package slug derives human-readable trip identifiers and keeps them
// unique.
//
// A slug is built from the client, the primary destination and the start
// year:
//
//	slug.Generate(slug.Attributes{ClientName: "Sara Jones", PrimaryDestination: "Hawaii", Year: 2024})
//	// "sara-hawaii-2024"
//
// Generate is pure. The Registry persists slugs through the storage layer's
// unique index and appends -2, -3, ... when the base slug already belongs
// to a different trip.
package slug
