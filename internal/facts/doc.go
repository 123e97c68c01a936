// Package facts maintains the derived TripFacts aggregates.
//
// Writers call MarkDirty whenever trip data changes. Markers are unique per
// (trip, reason, cycle), so a burst of identical marks queues one
// recomputation. Recompute closes the open cycle, claims at most limit
// trips from closed cycles and rewrites their facts, bumping the version in
// the same statement. Markers raised while a pass runs belong to the next
// cycle and are picked up by the next pass.
package facts
