package normalize

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	n := New(Options{})

	tests := []struct {
		name   string
		input  string
		tokens []string
	}{
		{"empty", "   ", []string{}},
		{"lowercase and collapse", "  Sara   HAWAII ", []string{"sara", "hawaii"}},
		{"possessive", "Sara's Hawaii Adventure", []string{"sara", "hawaii", "adventure"}},
		{"smart quote possessive", "Sara’s trip", []string{"sara", "trip"}},
		{"ampersand spelled out", "Bristol & Bath", []string{"bristol", "and", "bath"}},
		{"glued ampersand", "Bristol&Bath", []string{"bristol", "and", "bath"}},
		{"dash variants", "Bristol–Bath — 2025", []string{"bristol", "bath", "2025"}},
		{"hyphenated slug", "sara-hawaii-2024", []string{"sara", "hawaii", "2024"}},
		{"accents folded", "Zürich Café", []string{"zurich", "cafe"}},
		{"email kept whole", "contact jane.doe@example.com now", []string{"contact", "jane.doe@example.com", "now"}},
		{"email with punctuation around", "<Jane.Doe@Example.com>,", []string{"jane.doe@example.com"}},
		{"not an email", "sara@home", []string{"sara", "home"}},
		{"ordinal", "25th Anniversary!", []string{"25th", "anniversary"}},
		{"apostrophe inside", "O'Neil", []string{"oneil"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := n.Normalize(tt.input)
			assert.Equal(t, tt.tokens, res.Tokens)
			assert.False(t, res.Partial)
		})
	}
}

func TestNormalize_PunctuationEquivalence(t *testing.T) {
	n := New(Options{})
	assert.Equal(t, n.Normalize("Sara and Darren Jones"), n.Normalize("Sara & Darren Jones"))
	assert.Equal(t, n.Normalize("Sara and Darren Jones"), n.Normalize("Sara&Darren Jones"))
}

func TestNormalize_Alternates(t *testing.T) {
	n := New(Options{})

	res := n.Normalize("Bristol & Bath")
	require.Len(t, res.Alternates, 3)
	assert.Equal(t, Alternate{Text: "bristol and bath", Weight: WeightCanonical}, res.Alternates[0])
	assert.Equal(t, Alternate{Text: "bristol bath", Weight: WeightConjunction}, res.Alternates[1])
	assert.Equal(t, Alternate{Text: "bristol-and-bath", Weight: WeightSlug}, res.Alternates[2])

	single := n.Normalize("Hawaii")
	assert.Equal(t, []Alternate{{Text: "hawaii", Weight: WeightCanonical}}, single.Alternates)
	assert.Equal(t, "hawaii", single.Slug())
}

func TestNormalize_BudgetExceeded(t *testing.T) {
	n := New(Options{Budget: time.Millisecond})

	// Each clock read advances by one millisecond, so the budget runs out
	// after the first field
	clock := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	n.now = func() time.Time {
		clock = clock.Add(time.Millisecond)
		return clock
	}

	res := n.Normalize("Sara's Bristol&Bath trip")
	assert.True(t, res.Partial)
	assert.Equal(t, "sara", res.Tokens[0])
	assert.Contains(t, res.Tokens, "bristol&bath")
}

func TestFold(t *testing.T) {
	assert.Equal(t, "sao paulo", Fold("São Paulo"))
	assert.Equal(t, "it's", Fold("It’s"))
	assert.Equal(t, "a-b", Fold("A–B"))
}

func TestIsStopword(t *testing.T) {
	assert.True(t, IsStopword("and"))
	assert.True(t, IsStopword("the"))
	assert.False(t, IsStopword("hawaii"))
}
