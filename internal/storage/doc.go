// Package storage provides SQLite-based persistence for trips and the data
// derived from them.
//
// The storage layer manages:
//   - Trip attribute columns and the unique slug index
//   - The embedded trip document (clients, financials, itinerary)
//   - Normalized client assignments
//   - Derived trip facts and the dirty queue
//   - Semantic components
//
// # Database Schema
//
// Tables:
//   - trips: attributes, slug, embedded JSON document, search text
//   - trip_assignments: (trip_id, client_email, role) rows, authoritative
//   - trip_facts: cached aggregates with a monotonic version
//   - fact_cycle: the open dirty-marking cycle (single row)
//   - dirty_queue: (trip_id, reason, cycle) markers
//   - trip_components: typed, weighted semantic components
//
// # Basic Usage
//
//	db, err := storage.NewSQLiteStorage("~/.tripdesk/tripdesk.db")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
//	trip := &types.Trip{Name: "Hawaii 2025", Destinations: []string{"Hawaii"}}
//	if err := db.CreateTrip(ctx, trip); err != nil {
//	    return err
//	}
//
// # Embedded Documents
//
// The document column is accessed through SQLite's JSON1 functions.
// WriteClients and WritePlan each update only their own paths with
// json_set, so concurrent client and plan writes do not overwrite each
// other. Documents written by older versions are upgraded on open by
// MigrateDocuments and on write by a full rewrite.
//
// # Dirty Queue
//
// Markers are inserted into the open cycle with INSERT OR IGNORE, so
// repeated marking within a cycle is idempotent. A recomputation closes
// the cycle first and only clears markers from closed cycles; anything
// marked while it runs stays queued for the next pass.
//
// # Build Tags
//
// The storage package supports two build configurations:
//
// CGO Build (sqlite_cgo tag):
//
//   - Uses github.com/mattn/go-sqlite3 driver
//
//   - Requires C compiler
//
//     CGO_ENABLED=1 go build -tags "sqlite_cgo"
//
// Pure Go Build (default, or purego tag):
//
//   - Uses modernc.org/sqlite driver
//
//   - No C compiler needed
//
//     CGO_ENABLED=0 go build -tags "purego"
package storage
