package semantic

import (
	"context"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/dshills/tripdesk-mcp/internal/matcher"
	"github.com/dshills/tripdesk-mcp/internal/normalize"
	"github.com/dshills/tripdesk-mcp/pkg/types"
)

const (
	// DefaultThreshold is the minimum confidence for a confident match
	DefaultThreshold = 0.45
	// DefaultTopN is the number of candidates returned by default
	DefaultTopN = 5
	// DefaultMaxComponents bounds the number of query components
	DefaultMaxComponents = 32

	// StageName identifies this stage in errors and explanations
	StageName = "semantic"

	// QualitySynonym is the match quality of a synonym hit
	QualitySynonym = 0.9

	maxNGram = 3
)

// ComponentFinder looks up stored components by value
type ComponentFinder interface {
	FindComponents(ctx context.Context, values []string) ([]types.TripComponent, error)
}

// Options configures an Index
type Options struct {
	Threshold     float64
	TopN          int
	MaxComponents int
	Now           func() time.Time
	Logger        *zap.Logger
}

// Index matches queries against stored trip components
type Index struct {
	finder   ComponentFinder
	synonyms *Synonyms
	opts     Options
}

// QueryComponent is one typed unit of a query. Values maps each accepted
// stored value to its match quality.
type QueryComponent struct {
	Text   string              `json:"text"`
	Type   types.ComponentType `json:"type,omitempty"`
	Weight float64             `json:"weight"`
	Values map[string]float64  `json:"-"`
}

// Candidate is a trip scored by component overlap
type Candidate struct {
	TripID        int64                 `json:"trip_id"`
	Confidence    float64               `json:"confidence"`
	MatchedWeight float64               `json:"matched_weight"`
	MatchedTypes  []types.ComponentType `json:"matched_types"`
	Matched       []string              `json:"matched"`
}

// Result holds the parsed query and ranked candidates
type Result struct {
	Components  []QueryComponent `json:"components"`
	TotalWeight float64          `json:"total_weight"`
	Candidates  []Candidate      `json:"candidates"`
	Confident   bool             `json:"confident"`
}

// Top returns the best candidate, if any
func (r *Result) Top() (Candidate, bool) {
	if r == nil || len(r.Candidates) == 0 {
		return Candidate{}, false
	}
	return r.Candidates[0], true
}

// NewIndex creates an Index over finder
func NewIndex(finder ComponentFinder, synonyms *Synonyms, opts Options) *Index {
	if opts.Threshold <= 0 {
		opts.Threshold = DefaultThreshold
	}
	if opts.TopN <= 0 {
		opts.TopN = DefaultTopN
	}
	if opts.MaxComponents <= 0 {
		opts.MaxComponents = DefaultMaxComponents
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Index{finder: finder, synonyms: synonyms, opts: opts}
}

// Threshold returns the confidence cutoff of the index
func (ix *Index) Threshold() float64 {
	return ix.opts.Threshold
}

// Match parses query into components and scores the trips that share any
// of them
func (ix *Index) Match(ctx context.Context, query normalize.Result, classifier *matcher.Classifier) (*Result, error) {
	tokens := query.Tokens
	consumed := make([]bool, len(tokens))
	result := &Result{Components: []QueryComponent{}, Candidates: []Candidate{}}

	// Dates first: "next month" must not be read as two generic words
	now := ix.opts.Now()
	for i := 0; i < len(tokens); i++ {
		values, n := parseDatePhrase(tokens, i, now)
		if n == 0 {
			continue
		}
		qc := QueryComponent{
			Text:   strings.Join(tokens[i:i+n], " "),
			Type:   types.ComponentDate,
			Weight: WeightDate,
			Values: map[string]float64{},
		}
		for _, v := range values {
			qc.Values[v] = 1.0
		}
		result.Components = append(result.Components, qc)
		for j := i; j < i+n; j++ {
			consumed[j] = true
		}
		i += n - 1
	}

	// One lookup for every phrase the remaining tokens could form
	lookup := map[string]struct{}{}
	for _, qc := range result.Components {
		for v := range qc.Values {
			lookup[v] = struct{}{}
		}
	}
	for i := range tokens {
		for n := 1; n <= maxNGram; n++ {
			phrase, ok := ngram(tokens, consumed, i, n)
			if !ok {
				continue
			}
			lookup[phrase] = struct{}{}
			for _, syn := range ix.synonyms.Expand(phrase) {
				lookup[syn] = struct{}{}
			}
		}
	}
	values := make([]string, 0, len(lookup))
	for v := range lookup {
		values = append(values, v)
	}
	sort.Strings(values)

	var found []types.TripComponent
	if len(values) > 0 {
		var err error
		found, err = ix.finder.FindComponents(ctx, values)
		if err != nil {
			return nil, err
		}
	}
	byValue := map[string][]types.TripComponent{}
	for _, c := range found {
		byValue[c.Value] = append(byValue[c.Value], c)
	}

	// Longest known phrase wins; everything else is a single token.
	// Known phrases may start or end with a stopword ("in progress").
	for i := 0; i < len(tokens); i++ {
		if consumed[i] {
			continue
		}
		n := 0
		for size := maxNGram; size > 1; size-- {
			phrase, ok := ngram(tokens, consumed, i, size)
			if ok && (len(byValue[phrase]) > 0 || ix.synonyms.Known(phrase)) {
				n = size
				break
			}
		}
		if n == 0 {
			if normalize.IsStopword(tokens[i]) {
				continue
			}
			n = 1
		}
		phrase := strings.Join(tokens[i:i+n], " ")
		result.Components = append(result.Components, ix.queryComponent(phrase, n == 1, classifier, byValue))
		i += n - 1
	}

	if len(result.Components) > ix.opts.MaxComponents {
		return nil, &types.ComplexityError{Stage: StageName, Limit: ix.opts.MaxComponents, Actual: len(result.Components)}
	}
	for _, qc := range result.Components {
		result.TotalWeight += qc.Weight
	}
	if result.TotalWeight == 0 {
		return result, nil
	}

	result.Candidates = score(result.Components, result.TotalWeight, found)
	if len(result.Candidates) > ix.opts.TopN {
		result.Candidates = result.Candidates[:ix.opts.TopN]
	}
	if top, ok := result.Top(); ok {
		result.Confident = top.Confidence >= ix.opts.Threshold
	}
	return result, nil
}

// queryComponent classifies a phrase and collects the values it accepts
func (ix *Index) queryComponent(phrase string, single bool, classifier *matcher.Classifier, byValue map[string][]types.TripComponent) QueryComponent {
	qc := QueryComponent{Text: phrase, Weight: WeightActivity, Values: map[string]float64{phrase: 1.0}}
	for _, syn := range ix.synonyms.Expand(phrase) {
		qc.Values[syn] = QualitySynonym
	}

	if types.EmailPattern.MatchString(phrase) {
		qc.Type = types.ComponentClient
		qc.Weight = WeightClientEmail
		return qc
	}

	if single {
		switch classifier.Classify(phrase) {
		case matcher.CategoryClient:
			qc.Type, qc.Weight = types.ComponentClient, WeightClientName
			return qc
		case matcher.CategoryDestination:
			qc.Type, qc.Weight = types.ComponentDestination, WeightDestination
			return qc
		}
	}

	// Otherwise take the heaviest type the stored components give it
	for v := range qc.Values {
		for _, c := range byValue[v] {
			if w := TypeWeight(c.Type); qc.Type == "" || w > qc.Weight {
				qc.Type, qc.Weight = c.Type, w
			}
		}
	}
	return qc
}

// ngram returns tokens[i:i+n] joined when none of them is consumed. A lone
// stopword is not a phrase.
func ngram(tokens []string, consumed []bool, i, n int) (string, bool) {
	if i+n > len(tokens) {
		return "", false
	}
	for j := i; j < i+n; j++ {
		if consumed[j] {
			return "", false
		}
	}
	if n == 1 && normalize.IsStopword(tokens[i]) {
		return "", false
	}
	return strings.Join(tokens[i:i+n], " "), true
}

type tripScore struct {
	matched float64
	kinds   map[types.ComponentType]struct{}
	hits    []string
}

func score(components []QueryComponent, total float64, found []types.TripComponent) []Candidate {
	byTrip := map[int64]map[string][]types.TripComponent{}
	for _, c := range found {
		if byTrip[c.TripID] == nil {
			byTrip[c.TripID] = map[string][]types.TripComponent{}
		}
		byTrip[c.TripID][c.Value] = append(byTrip[c.TripID][c.Value], c)
	}

	cands := make([]Candidate, 0, len(byTrip))
	for tripID, values := range byTrip {
		s := tripScore{kinds: map[types.ComponentType]struct{}{}}
		for _, qc := range components {
			best := 0.0
			var bestType types.ComponentType
			for v, quality := range qc.Values {
				for _, c := range values[v] {
					if quality < best || (quality == best && TypeWeight(c.Type) <= TypeWeight(bestType)) {
						continue
					}
					best = quality
					bestType = c.Type
				}
			}
			if best == 0 {
				continue
			}
			s.matched += qc.Weight * best
			s.kinds[bestType] = struct{}{}
			s.hits = append(s.hits, qc.Text)
		}
		if len(s.hits) == 0 {
			continue
		}

		matchedTypes := make([]types.ComponentType, 0, len(s.kinds))
		for t := range s.kinds {
			matchedTypes = append(matchedTypes, t)
		}
		sort.Slice(matchedTypes, func(i, j int) bool { return matchedTypes[i] < matchedTypes[j] })

		confidence := s.matched / total
		if confidence > 1 {
			confidence = 1
		}
		cands = append(cands, Candidate{
			TripID:        tripID,
			Confidence:    confidence,
			MatchedWeight: s.matched,
			MatchedTypes:  matchedTypes,
			Matched:       s.hits,
		})
	}

	sort.Slice(cands, func(i, j int) bool {
		a, b := cands[i], cands[j]
		if a.Confidence != b.Confidence {
			return a.Confidence > b.Confidence
		}
		if len(a.Matched) != len(b.Matched) {
			return len(a.Matched) > len(b.Matched)
		}
		return a.TripID < b.TripID
	})
	return cands
}
