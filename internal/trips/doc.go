// Package trips creates and updates trips.
//
// The service is the write entry point for trip attributes and plans.
// Every write ends with the consistency Propagator so the search text,
// semantic components, dirty queue and resolver cache follow the change.
// Cancelling a trip is a status update; trips are never deleted.
package trips
