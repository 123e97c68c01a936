// Package matcher scores trips against a query by weighted term overlap.
//
// Each query token is classified into a category whose weight reflects how
// strongly it identifies a trip:
//
//	email        3.0
//	client name  2.0
//	date         1.8
//	destination  1.5
//	generic      1.0
//
// Classification uses patterns (emails, years, months, ISO dates) and a
// Vocabulary of client names and destinations built from the stored trips.
// Tokens found in both dictionaries are ambiguous and fall back to generic.
//
// A trip's score is the sum over matched query terms of weight times match
// quality (exact 1.0, prefix 0.75, substring 0.5; for emails exact 1.0 and
// local part 0.6). Confidence is the score divided by the total query
// weight, so it lies in [0,1]. Ties are broken by matched term count, then
// by the most recently updated trip, then by the lower trip id.
package matcher
