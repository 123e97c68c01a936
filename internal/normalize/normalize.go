package normalize

import (
	"strings"
	"time"
	"unicode"

	"go.uber.org/zap"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/dshills/tripdesk-mcp/pkg/types"
)

// DefaultBudget is the preprocessing time budget for one input
const DefaultBudget = 50 * time.Millisecond

// Alternate weights relative to the canonical rendering
const (
	WeightCanonical   = 1.0
	WeightConjunction = 0.9
	WeightSlug        = 0.8
)

// Options configures a Normalizer
type Options struct {
	Budget time.Duration // Zero means DefaultBudget
	Logger *zap.Logger
}

// Normalizer produces canonical token streams. It is safe for concurrent use.
type Normalizer struct {
	budget time.Duration
	logger *zap.Logger
	now    func() time.Time
}

// Alternate is another rendering of the same input with a confidence weight
type Alternate struct {
	Text   string  `json:"text"`
	Weight float64 `json:"weight"`
}

// Result is the output of one normalization
type Result struct {
	Text       string      `json:"text"`
	Tokens     []string    `json:"tokens"`
	Alternates []Alternate `json:"alternates"`
	Partial    bool        `json:"partial,omitempty"`
}

// Empty reports whether normalization produced no tokens
func (r Result) Empty() bool {
	return len(r.Tokens) == 0
}

// Slug returns the hyphen-joined rendering of the tokens
func (r Result) Slug() string {
	return strings.Join(r.Tokens, "-")
}

// New creates a Normalizer
func New(opts Options) *Normalizer {
	if opts.Budget <= 0 {
		opts.Budget = DefaultBudget
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Normalizer{
		budget: opts.Budget,
		logger: opts.Logger,
		now:    time.Now,
	}
}

// Normalize tokenizes raw text
func (n *Normalizer) Normalize(raw string) Result {
	start := n.now()
	fields := strings.Fields(raw)
	tokens := make([]string, 0, len(fields))
	partial := false

	for i, field := range fields {
		if n.now().Sub(start) > n.budget {
			n.logger.Warn("normalization budget exceeded, falling back to plain splitting",
				zap.Duration("budget", n.budget),
				zap.Int("fields_done", i),
				zap.Int("fields_total", len(fields)),
			)
			for _, rest := range fields[i:] {
				if t := strings.TrimFunc(strings.ToLower(rest), notAlnum); t != "" {
					tokens = append(tokens, t)
				}
			}
			partial = true
			break
		}
		tokens = appendFieldTokens(tokens, field)
	}

	return Result{
		Text:       strings.Join(tokens, " "),
		Tokens:     tokens,
		Alternates: alternates(tokens),
		Partial:    partial,
	}
}

// Tokens is a convenience for callers that need only the token stream
func (n *Normalizer) Tokens(raw string) []string {
	return n.Normalize(raw).Tokens
}

func alternates(tokens []string) []Alternate {
	canonical := strings.Join(tokens, " ")
	alts := []Alternate{{Text: canonical, Weight: WeightCanonical}}
	if canonical == "" {
		return alts
	}

	withoutAnd := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if t != "and" {
			withoutAnd = append(withoutAnd, t)
		}
	}
	if len(withoutAnd) != len(tokens) && len(withoutAnd) > 0 {
		alts = append(alts, Alternate{Text: strings.Join(withoutAnd, " "), Weight: WeightConjunction})
	}

	if len(tokens) > 1 {
		alts = append(alts, Alternate{Text: strings.Join(tokens, "-"), Weight: WeightSlug})
	}
	return alts
}

// appendFieldTokens normalizes one whitespace-delimited field
func appendFieldTokens(tokens []string, field string) []string {
	folded := Fold(field)

	if core := strings.TrimFunc(folded, notAlnum); types.EmailPattern.MatchString(core) {
		return append(tokens, core)
	}

	var b strings.Builder
	b.Grow(len(folded))
	for _, r := range folded {
		switch {
		case r == '&':
			b.WriteString(" & ")
		case r == '\'':
			b.WriteRune(r)
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		default:
			b.WriteByte(' ')
		}
	}

	for _, word := range strings.Fields(b.String()) {
		if word == "&" {
			tokens = append(tokens, "and")
			continue
		}
		word = strings.TrimSuffix(word, "'s")
		word = strings.ReplaceAll(word, "'", "")
		if word != "" {
			tokens = append(tokens, word)
		}
	}
	return tokens
}

// quoteFolder maps typographic quotes and dashes to their ASCII forms
var quoteFolder = strings.NewReplacer(
	"‘", "'", "’", "'", "ʼ", "'", "`", "'", "´", "'",
	"“", "\"", "”", "\"",
	"‐", "-", "‑", "-", "‒", "-", "–", "-", "—", "-", "−", "-",
)

// Fold lowercases s, folds typographic quotes and dashes, and strips
// diacritics ("Zürich" becomes "zurich")
func Fold(s string) string {
	s = quoteFolder.Replace(strings.ToLower(s))
	// transform.Chain is stateful, so build one per call
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

func notAlnum(r rune) bool {
	return !unicode.IsLetter(r) && !unicode.IsDigit(r)
}

var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "the": {}, "and": {}, "or": {}, "of": {}, "for": {},
	"to": {}, "in": {}, "on": {}, "at": {}, "with": {}, "my": {}, "our": {},
	"their": {}, "his": {}, "her": {}, "trip": {}, "find": {}, "show": {},
	"me": {}, "please": {}, "is": {}, "was": {}, "about": {},
}

// IsStopword reports whether a token carries no matching signal
func IsStopword(token string) bool {
	_, ok := stopwords[token]
	return ok
}
