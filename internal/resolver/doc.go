// Package resolver maps free-text trip references to trips.
//
// Resolution is a state machine:
//
//	SLUG_LOOKUP -> WEIGHTED_MATCH -> SEMANTIC_MATCH -> NO_MATCH
//
// Each stage either produces a confident match, which ends resolution, or
// escalates. A stage that rejects the query as too complex escalates too;
// the reason is kept in the explanation. NO_MATCH returns a
// *types.NotFoundError carrying the candidates of the furthest stage that
// produced any, plus concrete alternatives.
//
// # Caching
//
// Resolutions are cached in an LRU keyed by a SHA-256 of the query and
// limit, with a TTL. Invalidate purges the cache and marks the classifier
// vocabulary stale; it is rebuilt from storage on the next resolution.
// Facts are never cached and are read fresh when requested.
//
// # Basic Usage
//
//	r, err := resolver.New(store, normalizer, resolver.Stages{
//	    Slugs:    registry,
//	    Weighted: matcher.New(matcher.Options{}),
//	    Semantic: semantic.NewIndex(store, synonyms, semantic.Options{}),
//	}, resolver.Options{Facts: factCache})
//
//	res, err := r.Resolve(ctx, resolver.Request{Query: "Sara Hawaii 2025"})
//	var nf *types.NotFoundError
//	if errors.As(err, &nf) {
//	    // nf.Suggestions, nf.Alternatives
//	}
package resolver
