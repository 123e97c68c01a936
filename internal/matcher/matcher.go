package matcher

import (
	"sort"
	"strings"
	"time"

	"github.com/dshills/tripdesk-mcp/internal/normalize"
	"github.com/dshills/tripdesk-mcp/internal/storage"
	"github.com/dshills/tripdesk-mcp/pkg/types"
)

const (
	// DefaultTopN is the number of candidates returned by default
	DefaultTopN = 5
	// DefaultThreshold is the minimum confidence for a confident match
	DefaultThreshold = 0.60
	// DefaultMaxTerms bounds the number of scored query terms
	DefaultMaxTerms = 32

	// StageName identifies this stage in errors and explanations
	StageName = "weighted"
)

// Match qualities
const (
	QualityExact     = 1.0
	QualityPrefix    = 0.75
	QualitySubstring = 0.5
	QualityLocalPart = 0.6

	minPartialLength = 3
)

// Options configures a Matcher
type Options struct {
	TopN      int
	Threshold float64
	MaxTerms  int
}

// Matcher scores search rows against a normalized query
type Matcher struct {
	opts Options
}

// Term is a classified query token
type Term struct {
	Text     string   `json:"text"`
	Category Category `json:"category"`
	Weight   float64  `json:"weight"`
}

// Candidate is a scored trip
type Candidate struct {
	TripID       int64     `json:"trip_id"`
	Name         string    `json:"name"`
	Slug         string    `json:"slug,omitempty"`
	Score        float64   `json:"score"`
	Confidence   float64   `json:"confidence"`
	Matched      int       `json:"matched"`
	MatchedTerms []string  `json:"matched_terms"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Result holds the ranked candidates of one match
type Result struct {
	Terms       []Term      `json:"terms"`
	TotalWeight float64     `json:"total_weight"`
	Candidates  []Candidate `json:"candidates"`
	Confident   bool        `json:"confident"`
}

// Top returns the best candidate, if any
func (r *Result) Top() (Candidate, bool) {
	if r == nil || len(r.Candidates) == 0 {
		return Candidate{}, false
	}
	return r.Candidates[0], true
}

// New creates a Matcher, filling in defaults for unset options
func New(opts Options) *Matcher {
	if opts.TopN <= 0 {
		opts.TopN = DefaultTopN
	}
	if opts.Threshold <= 0 {
		opts.Threshold = DefaultThreshold
	}
	if opts.MaxTerms <= 0 {
		opts.MaxTerms = DefaultMaxTerms
	}
	return &Matcher{opts: opts}
}

// Threshold returns the confidence cutoff of the matcher
func (m *Matcher) Threshold() float64 {
	return m.opts.Threshold
}

// Terms classifies the scorable tokens of a query. Stopwords and duplicates
// are dropped.
func (m *Matcher) Terms(query normalize.Result, classifier *Classifier) ([]Term, error) {
	seen := make(map[string]struct{}, len(query.Tokens))
	terms := make([]Term, 0, len(query.Tokens))
	for _, tok := range query.Tokens {
		if normalize.IsStopword(tok) {
			continue
		}
		if _, dup := seen[tok]; dup {
			continue
		}
		seen[tok] = struct{}{}
		cat := classifier.Classify(tok)
		terms = append(terms, Term{Text: tok, Category: cat, Weight: cat.Weight()})
	}
	if len(terms) > m.opts.MaxTerms {
		return nil, &types.ComplexityError{Stage: StageName, Limit: m.opts.MaxTerms, Actual: len(terms)}
	}
	return terms, nil
}

// Match scores every row and returns the top candidates
func (m *Matcher) Match(query normalize.Result, classifier *Classifier, rows []storage.SearchRow) (*Result, error) {
	terms, err := m.Terms(query, classifier)
	if err != nil {
		return nil, err
	}

	result := &Result{Terms: terms, Candidates: []Candidate{}}
	for _, t := range terms {
		result.TotalWeight += t.Weight
	}
	if result.TotalWeight == 0 {
		return result, nil
	}

	for _, row := range rows {
		cand, ok := scoreRow(terms, row)
		if !ok {
			continue
		}
		cand.Confidence = cand.Score / result.TotalWeight
		if cand.Confidence > 1 {
			cand.Confidence = 1
		}
		result.Candidates = append(result.Candidates, cand)
	}

	rank(result.Candidates)
	if len(result.Candidates) > m.opts.TopN {
		result.Candidates = result.Candidates[:m.opts.TopN]
	}
	if top, ok := result.Top(); ok {
		result.Confident = top.Confidence >= m.opts.Threshold
	}
	return result, nil
}

func scoreRow(terms []Term, row storage.SearchRow) (Candidate, bool) {
	tokens := strings.Fields(row.SearchText)
	if len(tokens) == 0 {
		return Candidate{}, false
	}
	set := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		set[t] = struct{}{}
	}

	cand := Candidate{
		TripID:       row.TripID,
		Name:         row.Name,
		Slug:         row.Slug,
		UpdatedAt:    row.UpdatedAt,
		MatchedTerms: []string{},
	}
	for _, term := range terms {
		var q float64
		if term.Category == CategoryEmail {
			q = emailQuality(term.Text, set, tokens)
		} else {
			q = tokenQuality(term.Text, set, tokens)
		}
		if q == 0 {
			continue
		}
		cand.Score += term.Weight * q
		cand.Matched++
		cand.MatchedTerms = append(cand.MatchedTerms, term.Text)
	}
	return cand, cand.Matched > 0
}

func emailQuality(email string, set map[string]struct{}, tokens []string) float64 {
	if _, ok := set[email]; ok {
		return QualityExact
	}
	local := types.EmailLocalPart(email)
	for _, t := range tokens {
		if types.EmailPattern.MatchString(t) && types.EmailLocalPart(t) == local {
			return QualityLocalPart
		}
	}
	return 0
}

func tokenQuality(term string, set map[string]struct{}, tokens []string) float64 {
	if _, ok := set[term]; ok {
		return QualityExact
	}
	if len(term) < minPartialLength {
		return 0
	}
	best := 0.0
	for _, t := range tokens {
		if len(t) < minPartialLength {
			continue
		}
		switch {
		case strings.HasPrefix(t, term) || strings.HasPrefix(term, t):
			return QualityPrefix
		case strings.Contains(t, term):
			best = QualitySubstring
		}
	}
	return best
}

// rank orders candidates by score, matched term count, recency and id
func rank(cands []Candidate) {
	sort.Slice(cands, func(i, j int) bool {
		a, b := cands[i], cands[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.Matched != b.Matched {
			return a.Matched > b.Matched
		}
		if !a.UpdatedAt.Equal(b.UpdatedAt) {
			return a.UpdatedAt.After(b.UpdatedAt)
		}
		return a.TripID < b.TripID
	})
}
