// Package normalize turns raw query and record text into a canonical token
// stream.
//
// Normalization lowercases, folds accents to ASCII, collapses whitespace and
// treats punctuation as separators, with two exceptions: email addresses are
// kept as a single token, and "&" is spelled out as "and" so that
// "Sara & Darren" and "Sara and Darren" normalize identically.
//
//	n := normalize.New(normalize.Options{Budget: 50 * time.Millisecond, Logger: log})
//	res := n.Normalize("Contact jane.doe@example.com re: Bristol & Bath")
//	// res.Tokens: [contact jane.doe@example.com re bristol and bath]
//
// Normalize is idempotent: normalizing res.Text again yields the same
// result. When the time budget runs out the remaining input is only
// lowercased and split, and Result.Partial is set.
package normalize
