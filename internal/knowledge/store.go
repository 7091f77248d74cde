// Package knowledge accumulates what the agent has learned about the game
// world across turns and sessions: locations and their exits, item insights,
// puzzle hints, a capped fact log and a coarse navigation graph. The session
// controller feeds it extraction results and asks it for a condensed prompt
// context; nothing else mutates its collections.
package knowledge

import (
	"fmt"
	"log"
	"strings"

	"github.com/gruebot/gruebot/internal/extract"
)

const (
	maxFacts        = 20
	maxSnippets     = 3
	promptLocations = 5
	promptFacts     = 5
	promptItems     = 3
	recallFacts     = 3
)

// Location is one place in the game world, keyed by its display name.
type Location struct {
	Name     string   `json:"name"`
	Exits    []string `json:"exits,omitempty"`
	Snippets []string `json:"snippets,omitempty"`
}

// Store owns the learned collections for a single game file.
type Store struct {
	path    string
	verbose bool

	turn      int
	current   string
	locations map[string]*Location
	recent    []string // location keys, most recent last, deduped
	items     map[string]string
	itemOrder []string // item keys, most recent last
	puzzles   map[string]string
	facts     []string
	visited   map[string]bool
	nav       map[string][]string

	recall *factIndex
}

// NewStore creates an empty store persisting to the given snapshot path.
func NewStore(path string, verbose bool) *Store {
	s := &Store{
		path:      path,
		verbose:   verbose,
		locations: make(map[string]*Location),
		items:     make(map[string]string),
		puzzles:   make(map[string]string),
		visited:   make(map[string]bool),
		nav:       make(map[string][]string),
	}

	idx, err := newFactIndex()
	if err != nil {
		// Recall is an enhancement on top of the recency window; the store
		// works without it.
		s.debugf("fact recall index unavailable: %v", err)
	} else {
		s.recall = idx
	}
	return s
}

func (s *Store) debugf(format string, args ...any) {
	if s.verbose {
		log.Printf("knowledge: "+format, args...)
	}
}

// CurrentLocation returns the last extracted location name, if any.
func (s *Store) CurrentLocation() string { return s.current }

// Turn returns the last recorded turn index.
func (s *Store) Turn() int { return s.turn }

// Record merges one turn's extraction result into the collections.
// Missing fields leave their sub-collection untouched.
func (s *Store) Record(res extract.Result, turn int) {
	s.turn = turn

	if res.Location != "" {
		s.current = res.Location
		s.visited[res.Location] = true

		loc, ok := s.locations[res.Location]
		if !ok {
			loc = &Location{Name: res.Location}
			s.locations[res.Location] = loc
		}
		if len(res.Snippets) > 0 {
			// Revisits overwrite: the freshest description wins.
			loc.Snippets = capStrings(res.Snippets, maxSnippets)
		}
		loc.Exits = mergeSet(loc.Exits, res.Exits)
		s.touchRecent(res.Location)
	}

	if s.current != "" && len(res.Exits) > 0 {
		s.nav[s.current] = mergeSet(s.nav[s.current], res.Exits)
	}

	for _, item := range res.Items {
		if _, ok := s.items[item]; !ok {
			s.itemOrder = append(s.itemOrder, item)
		}
		where := s.current
		if where == "" {
			where = "an unknown place"
		}
		s.items[item] = fmt.Sprintf("%s: seen at %s", item, where)
	}

	if res.Fact != "" {
		s.appendFact(res.Fact)
	}

	if res.PuzzleCategory != "" && res.PuzzleHint != "" {
		s.puzzles[res.PuzzleCategory] = res.PuzzleHint
	}
}

func (s *Store) appendFact(fact string) {
	s.facts = append(s.facts, fact)
	if len(s.facts) > maxFacts {
		s.facts = s.facts[len(s.facts)-maxFacts:]
	}
	if s.recall != nil {
		if err := s.recall.Add(fact, s.turn); err != nil {
			s.debugf("failed to index fact: %v", err)
		}
	}
}

func (s *Store) touchRecent(name string) {
	for i, n := range s.recent {
		if n == name {
			s.recent = append(s.recent[:i], s.recent[i+1:]...)
			break
		}
	}
	s.recent = append(s.recent, name)
}

// PromptContext renders the condensed knowledge summary injected into the
// agent's prompt: current location, recent locations with exits, recent and
// recalled facts, recent item insights, and every known puzzle hint. Empty
// sections are omitted and every list is capped, so the result stays small.
func (s *Store) PromptContext() string {
	var b strings.Builder

	if s.current != "" {
		fmt.Fprintf(&b, "Current location: %s\n", s.current)
	}

	if len(s.recent) > 0 {
		b.WriteString("Known locations:\n")
		start := len(s.recent) - promptLocations
		if start < 0 {
			start = 0
		}
		for _, name := range s.recent[start:] {
			loc := s.locations[name]
			if loc != nil && len(loc.Exits) > 0 {
				fmt.Fprintf(&b, "- %s (exits: %s)\n", name, strings.Join(loc.Exits, ", "))
			} else {
				fmt.Fprintf(&b, "- %s\n", name)
			}
		}
	}

	facts := s.promptFacts()
	if len(facts) > 0 {
		b.WriteString("Recent discoveries:\n")
		for _, f := range facts {
			fmt.Fprintf(&b, "- %s\n", f)
		}
	}

	if len(s.itemOrder) > 0 {
		b.WriteString("Items of note:\n")
		start := len(s.itemOrder) - promptItems
		if start < 0 {
			start = 0
		}
		for _, item := range s.itemOrder[start:] {
			fmt.Fprintf(&b, "- %s\n", s.items[item])
		}
	}

	if len(s.puzzles) > 0 {
		b.WriteString("Puzzle hints:\n")
		for category, hint := range s.puzzles {
			fmt.Fprintf(&b, "- [%s] %s\n", category, hint)
		}
	}

	return strings.TrimSpace(b.String())
}

// promptFacts returns the recency window of facts, topped up with recalled
// facts relevant to the current location when the index is available.
func (s *Store) promptFacts() []string {
	start := len(s.facts) - promptFacts
	if start < 0 {
		start = 0
	}
	out := append([]string(nil), s.facts[start:]...)

	if s.recall == nil || s.current == "" {
		return out
	}
	recalled, err := s.recall.Search(s.current, recallFacts)
	if err != nil {
		s.debugf("fact recall failed: %v", err)
		return out
	}
	seen := make(map[string]bool, len(out))
	for _, f := range out {
		seen[f] = true
	}
	for _, f := range recalled {
		if !seen[f] {
			out = append(out, f)
		}
	}
	return out
}

// Visited reports whether a location has been recorded before.
func (s *Store) Visited(name string) bool { return s.visited[name] }

// VisitedCount returns the size of the visited set.
func (s *Store) VisitedCount() int { return len(s.visited) }

func capStrings(in []string, n int) []string {
	if len(in) <= n {
		return append([]string(nil), in...)
	}
	return append([]string(nil), in[:n]...)
}

func mergeSet(existing, add []string) []string {
	seen := make(map[string]bool, len(existing))
	for _, v := range existing {
		seen[v] = true
	}
	out := existing
	for _, v := range add {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}
