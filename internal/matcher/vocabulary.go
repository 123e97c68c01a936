package matcher

import (
	"strings"

	"github.com/dshills/tripdesk-mcp/internal/normalize"
	"github.com/dshills/tripdesk-mcp/pkg/types"
)

// Vocabulary holds the client-name and destination dictionaries derived
// from stored trips. It is immutable once built.
type Vocabulary struct {
	names        map[string]struct{}
	destinations map[string]struct{}
	emails       map[string]struct{}
}

// EmptyVocabulary returns a vocabulary with no entries
func EmptyVocabulary() *Vocabulary {
	return &Vocabulary{
		names:        map[string]struct{}{},
		destinations: map[string]struct{}{},
		emails:       map[string]struct{}{},
	}
}

// NewVocabulary builds the dictionaries from trips and their assignments
func NewVocabulary(n *normalize.Normalizer, trips []*types.Trip, assignments []types.ClientAssignment) *Vocabulary {
	v := EmptyVocabulary()

	addClient := func(a types.ClientAssignment) {
		email := types.NormalizeEmail(a.ClientEmail)
		if email != "" {
			v.emails[email] = struct{}{}
			for _, part := range splitLocalPart(types.EmailLocalPart(email)) {
				v.addName(part)
			}
		}
		for _, tok := range n.Tokens(a.ClientName) {
			v.addName(tok)
		}
	}

	for _, trip := range trips {
		for _, dest := range trip.Destinations {
			for _, tok := range n.Tokens(dest) {
				if !normalize.IsStopword(tok) && !IsDateToken(tok) {
					v.destinations[tok] = struct{}{}
				}
			}
		}
		for _, c := range trip.Document.Clients {
			addClient(c)
		}
	}
	for _, a := range assignments {
		addClient(a)
	}
	return v
}

func (v *Vocabulary) addName(tok string) {
	if len(tok) < 2 || normalize.IsStopword(tok) || IsDateToken(tok) {
		return
	}
	v.names[tok] = struct{}{}
}

// IsClientName reports whether token is a known client name part
func (v *Vocabulary) IsClientName(token string) bool {
	_, ok := v.names[token]
	return ok
}

// IsDestination reports whether token is part of a known destination
func (v *Vocabulary) IsDestination(token string) bool {
	_, ok := v.destinations[token]
	return ok
}

// IsKnownEmail reports whether an email belongs to any assigned client
func (v *Vocabulary) IsKnownEmail(email string) bool {
	_, ok := v.emails[email]
	return ok
}

// Size returns the number of distinct names, destinations and emails
func (v *Vocabulary) Size() (names, destinations, emails int) {
	return len(v.names), len(v.destinations), len(v.emails)
}

// splitLocalPart splits "jane.doe_88" into its name-like parts
func splitLocalPart(local string) []string {
	return strings.FieldsFunc(local, func(r rune) bool {
		return r == '.' || r == '_' || r == '-' || r == '+' || (r >= '0' && r <= '9')
	})
}
