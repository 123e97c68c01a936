package semantic

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/dshills/tripdesk-mcp/internal/normalize"
)

// defaultGroups are the synonym groups every index starts with. The first
// entry of a group is its canonical form.
var defaultGroups = [][]string{
	{"united kingdom", "uk", "britain", "great britain", "england"},
	{"united states", "usa", "america"},
	{"new york", "nyc", "new york city", "manhattan"},
	{"los angeles", "la"},
	{"united arab emirates", "uae", "dubai"},
	{"hawaii", "hawaiian islands"},
	{"netherlands", "holland"},
	{"czech republic", "czechia"},
	{"budget", "cheap", "affordable", "economy", "inexpensive"},
	{"mid", "midrange", "moderate", "standard"},
	{"luxury", "luxurious", "premium", "upscale", "expensive", "deluxe"},
	{"honeymoon", "romantic", "anniversary"},
	{"cancelled", "canceled"},
	{"planning", "planned", "draft"},
	{"confirmed", "booked"},
	{"in progress", "ongoing", "current", "traveling"},
	{"completed", "finished", "past"},
	{"paid in full", "fully paid"},
	{"deposit paid", "deposit"},
	{"hotel", "resort", "lodge", "inn"},
	{"tour", "excursion", "sightseeing"},
}

// Synonyms holds bidirectional synonym groups over normalized phrases
type Synonyms struct {
	norm   *normalize.Normalizer
	groups map[string]int
	sets   [][]string
}

// SynonymFile is the YAML layout accepted by LoadSynonyms:
//
//	groups:
//	  - [scotland, highlands]
//	  - [italy, italia]
type SynonymFile struct {
	Groups [][]string `yaml:"groups"`
}

// NewSynonyms returns the built-in synonym groups
func NewSynonyms(n *normalize.Normalizer) *Synonyms {
	s := &Synonyms{norm: n, groups: map[string]int{}}
	for _, g := range defaultGroups {
		s.Add(g...)
	}
	return s
}

// LoadSynonyms returns the built-in groups merged with the groups in the
// YAML file at path. An empty path yields the defaults.
func LoadSynonyms(n *normalize.Normalizer, path string) (*Synonyms, error) {
	s := NewSynonyms(n)
	if path == "" {
		return s, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read synonyms file: %w", err)
	}
	var file SynonymFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse synonyms file %s: %w", path, err)
	}
	for _, g := range file.Groups {
		s.Add(g...)
	}
	return s, nil
}

// Add registers a synonym group. Phrases that already belong to groups
// merge those groups with the new phrases into one; the canonical form of
// the first existing group is kept.
func (s *Synonyms) Add(phrases ...string) {
	normalized := make([]string, 0, len(phrases))
	target := -1
	for _, p := range phrases {
		text := s.norm.Normalize(p).Text
		if text == "" {
			continue
		}
		normalized = append(normalized, text)
		if idx, ok := s.groups[text]; ok && target < 0 {
			target = idx
		}
	}
	if len(normalized) < 2 && target < 0 {
		return
	}
	if target < 0 {
		target = len(s.sets)
		s.sets = append(s.sets, nil)
	}
	for _, text := range normalized {
		idx, ok := s.groups[text]
		if ok && idx == target {
			continue
		}
		if ok {
			s.merge(target, idx)
			continue
		}
		s.groups[text] = target
		s.sets[target] = append(s.sets[target], text)
	}
}

// merge moves every phrase of group from into group into
func (s *Synonyms) merge(into, from int) {
	for _, p := range s.sets[from] {
		s.groups[p] = into
		s.sets[into] = append(s.sets[into], p)
	}
	s.sets[from] = nil
}

// Expand returns the other phrases in the group of a normalized phrase
func (s *Synonyms) Expand(phrase string) []string {
	idx, ok := s.groups[phrase]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(s.sets[idx])-1)
	for _, p := range s.sets[idx] {
		if p != phrase {
			out = append(out, p)
		}
	}
	return out
}

// Canonical returns the canonical form of a phrase, or the phrase itself
func (s *Synonyms) Canonical(phrase string) string {
	if idx, ok := s.groups[phrase]; ok {
		return s.sets[idx][0]
	}
	return phrase
}

// Known reports whether a normalized phrase belongs to any group
func (s *Synonyms) Known(phrase string) bool {
	_, ok := s.groups[phrase]
	return ok
}

// Phrases returns every phrase in sorted order
func (s *Synonyms) Phrases() []string {
	out := make([]string, 0, len(s.groups))
	for p := range s.groups {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}
