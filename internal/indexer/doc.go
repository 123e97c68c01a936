// Package indexer maintains the derived search data of trips.
//
// Two artifacts are derived from a trip and its authoritative client
// assignments:
//
//   - the search text, a de-duplicated token string consumed by the
//     weighted matcher
//   - the semantic components, typed (type, value, weight) triples consumed
//     by the semantic index
//
// # Basic Usage
//
//	idx := indexer.New(store, normalizer, extractor, logger)
//
//	// After any change to a trip or its assignments
//	if _, err := idx.RefreshTrip(ctx, tripID); err != nil {
//	    return err
//	}
//
//	// Rebuild everything, e.g. after changing the synonym dictionary
//	stats, err := idx.RebuildAll(ctx, &indexer.Config{Workers: 4})
//	fmt.Printf("Indexed %d trips in %v\n", stats.TripsIndexed, stats.Duration)
//
// # Concurrency
//
// RebuildAll fans trips out to a bounded errgroup. A failing trip is
// recorded in Statistics.ErrorMessages and does not stop the rebuild.
// IndexLock refuses overlapping rebuilds with ErrIndexingInProgress.
package indexer
