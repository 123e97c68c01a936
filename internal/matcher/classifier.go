package matcher

import (
	"regexp"
	"strings"

	"github.com/dshills/tripdesk-mcp/pkg/types"
)

// Category is the semantic class of a query token
type Category string

const (
	CategoryEmail       Category = "email"
	CategoryClient      Category = "client"
	CategoryDate        Category = "date"
	CategoryDestination Category = "destination"
	CategoryGeneric     Category = "generic"
)

// Weight returns the scoring weight of the category
func (c Category) Weight() float64 {
	switch c {
	case CategoryEmail:
		return 3.0
	case CategoryClient:
		return 2.0
	case CategoryDate:
		return 1.8
	case CategoryDestination:
		return 1.5
	default:
		return 1.0
	}
}

var yearPattern = regexp.MustCompile(`^(19|20)\d{2}$`)

// Months maps month names and common abbreviations to their number
var Months = map[string]int{
	"january": 1, "jan": 1, "february": 2, "feb": 2, "march": 3, "mar": 3,
	"april": 4, "apr": 4, "may": 5, "june": 6, "jun": 6, "july": 7, "jul": 7,
	"august": 8, "aug": 8, "september": 9, "sep": 9, "sept": 9,
	"october": 10, "oct": 10, "november": 11, "nov": 11, "december": 12, "dec": 12,
}

// IsDateToken reports whether a normalized token looks like a date part
func IsDateToken(token string) bool {
	if yearPattern.MatchString(token) {
		return true
	}
	_, ok := Months[token]
	return ok
}

// Classifier assigns categories to normalized tokens
type Classifier struct {
	vocab *Vocabulary
}

// NewClassifier creates a Classifier over vocab. A nil vocabulary
// classifies only by pattern.
func NewClassifier(vocab *Vocabulary) *Classifier {
	if vocab == nil {
		vocab = EmptyVocabulary()
	}
	return &Classifier{vocab: vocab}
}

// Classify returns the category of a normalized token
func (c *Classifier) Classify(token string) Category {
	token = strings.ToLower(token)
	if types.EmailPattern.MatchString(token) {
		return CategoryEmail
	}
	if IsDateToken(token) {
		return CategoryDate
	}

	isName := c.vocab.IsClientName(token)
	isDest := c.vocab.IsDestination(token)
	switch {
	case isName && isDest:
		return CategoryGeneric
	case isName:
		return CategoryClient
	case isDest:
		return CategoryDestination
	}
	return CategoryGeneric
}
