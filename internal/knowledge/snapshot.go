package knowledge

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/docker/go-units"
	"github.com/xeipuuv/gojsonschema"
)

// Snapshot is the single persisted document for one game file. All
// collections are captured together in one write so the file always holds
// a consistent point-in-time view.
type Snapshot struct {
	Turn            int                  `json:"turn"`
	CurrentLocation string               `json:"current_location,omitempty"`
	Locations       map[string]*Location `json:"locations"`
	Recent          []string             `json:"recent,omitempty"`
	Items           map[string]string    `json:"items"`
	ItemOrder       []string             `json:"item_order,omitempty"`
	Puzzles         map[string]string    `json:"puzzles"`
	Facts           []string             `json:"facts"`
	Visited         []string             `json:"visited"`
	NavGraph        map[string][]string  `json:"nav_graph"`
	SavedAt         time.Time            `json:"saved_at"`
}

// snapshotSchema guards against loading a mangled or foreign document.
// A snapshot that fails validation is treated as absent, not as an error:
// learned knowledge is an optimization, never a requirement.
const snapshotSchema = `{
	"type": "object",
	"required": ["turn", "locations", "items", "puzzles", "facts", "visited", "nav_graph"],
	"properties": {
		"turn":             {"type": "integer", "minimum": 0},
		"current_location": {"type": "string"},
		"locations":        {"type": "object", "additionalProperties": {"type": "object"}},
		"recent":           {"type": "array", "items": {"type": "string"}},
		"items":            {"type": "object", "additionalProperties": {"type": "string"}},
		"item_order":       {"type": "array", "items": {"type": "string"}},
		"puzzles":          {"type": "object", "additionalProperties": {"type": "string"}},
		"facts":            {"type": "array", "items": {"type": "string"}},
		"visited":          {"type": "array", "items": {"type": "string"}},
		"nav_graph":        {"type": "object", "additionalProperties": {"type": "array", "items": {"type": "string"}}}
	}
}`

// SaveSnapshot writes the entire store state as one JSON document. The
// write goes to a temp file in the same directory followed by a rename,
// so a crash mid-write never leaves a partial snapshot behind.
func (s *Store) SaveSnapshot() error {
	snap := Snapshot{
		Turn:            s.turn,
		CurrentLocation: s.current,
		Locations:       s.locations,
		Recent:          s.recent,
		Items:           s.items,
		ItemOrder:       s.itemOrder,
		Puzzles:         s.puzzles,
		Facts:           s.facts,
		Visited:         setToSlice(s.visited),
		NavGraph:        s.nav,
		SavedAt:         time.Now().UTC(),
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal knowledge snapshot: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create snapshot directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".knowledge-*.json")
	if err != nil {
		return fmt.Errorf("failed to create snapshot temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close snapshot temp file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace snapshot: %w", err)
	}

	s.debugf("snapshot written to %s (%s)", s.path, units.HumanSize(float64(len(data))))
	return nil
}

// LoadSnapshot restores the store from disk. A missing file means no prior
// knowledge and returns (false, nil); so does a document that fails schema
// validation, since stale or corrupt knowledge must not kill a session.
func (s *Store) LoadSnapshot() (bool, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read knowledge snapshot: %w", err)
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(snapshotSchema),
		gojsonschema.NewBytesLoader(data),
	)
	if err != nil || !result.Valid() {
		if err == nil {
			err = fmt.Errorf("%d schema violations", len(result.Errors()))
		}
		s.debugf("discarding invalid snapshot %s: %v", s.path, err)
		return false, nil
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		s.debugf("discarding unreadable snapshot %s: %v", s.path, err)
		return false, nil
	}

	s.turn = snap.Turn
	s.current = snap.CurrentLocation
	s.locations = snap.Locations
	if s.locations == nil {
		s.locations = make(map[string]*Location)
	}
	s.recent = snap.Recent
	s.items = snap.Items
	if s.items == nil {
		s.items = make(map[string]string)
	}
	s.itemOrder = snap.ItemOrder
	s.puzzles = snap.Puzzles
	if s.puzzles == nil {
		s.puzzles = make(map[string]string)
	}
	s.facts = snap.Facts
	if len(s.facts) > maxFacts {
		s.facts = s.facts[len(s.facts)-maxFacts:]
	}
	s.visited = make(map[string]bool, len(snap.Visited))
	for _, v := range snap.Visited {
		s.visited[v] = true
	}
	s.nav = snap.NavGraph
	if s.nav == nil {
		s.nav = make(map[string][]string)
	}

	// Rebuild the recall index from the restored facts.
	if s.recall != nil {
		for _, f := range s.facts {
			if err := s.recall.Add(f, s.turn); err != nil {
				s.debugf("failed to reindex fact: %v", err)
				break
			}
		}
	}

	s.debugf("snapshot loaded from %s: %d locations, %d facts", s.path, len(s.locations), len(s.facts))
	return true, nil
}

func setToSlice(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for v := range set {
		out = append(out, v)
	}
	return out
}
