// Package semantic decomposes trips into typed, weighted components and
// matches free-text queries against them.
//
// The Extractor turns a trip into components:
//
//	client       email 3.0, name parts 2.0
//	destination  1.5 (with synonyms: "uk" <-> "united kingdom" <-> "britain")
//	date         1.8 (years and YYYY-MM months the trip spans)
//	status       1.2
//	activity     1.0
//	descriptor   1.0 (remaining trip-name and hotel words)
//	cost         0.8 (budget, mid or luxury bucket)
//
// The Index parses a query into components with the same classification
// rules, expands synonyms, resolves relative dates ("next month", "this
// summer") against a clock, and scores each candidate trip as the matched
// query weight divided by the total query weight. Synonym hits count at
// 0.9 of an exact hit.
package semantic
