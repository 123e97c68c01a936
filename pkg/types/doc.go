// Package types provides shared domain types for the tripdesk MCP server.
//
// # Core Types
//
// Trip is the aggregate every component works on. Besides its attribute
// columns it carries an embedded TripDocument holding the read-optimized
// client list, the financial summary and the itinerary:
//
//	trip := &types.Trip{
//	    Name:         "Sara's Hawaii Adventure",
//	    Status:       types.StatusPlanning,
//	    Destinations: []string{"Hawaii"},
//	}
//
// ClientAssignment exists twice: as a normalized row (authoritative) and
// inside TripDocument.Clients (read-optimized). Both are compared by their
// AssignmentKey, the (trip_id, client_email, role) tuple.
//
// TripFacts, DirtyMarker and TripComponent are derived data owned by the
// fact cache and the semantic index.
//
// # Documents
//
// Embedded documents are versioned. DecodeTripDocument upgrades older
// layouts to CurrentDocumentVersion and Validate checks them at the
// storage boundary:
//
//	doc, err := types.DecodeTripDocument(raw)
//	if err != nil {
//	    return err
//	}
//	if err := doc.Validate(); err != nil {
//	    return err
//	}
//
// # Errors
//
// The error taxonomy is ValidationError, NotFoundError, ConsistencyError,
// ComplexityError and TimeoutError. Callers discriminate with errors.As:
//
//	var nf *types.NotFoundError
//	if errors.As(err, &nf) {
//	    for _, s := range nf.Suggestions { ... }
//	}
package types
