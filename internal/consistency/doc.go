// Package consistency keeps the two representations of client assignments
// in agreement.
//
// The normalized trip_assignments rows are authoritative. Every write
// updates them first, then replaces the trip's embedded client list with
// the authoritative set, then runs the Propagator (search data refresh,
// dirty marking, resolver invalidation). The two writes are not one
// transaction: a failed embedded write is reported as a
// *types.ConsistencyError on an otherwise successful result, and
// Reconcile/Repair close the gap later.
package consistency
