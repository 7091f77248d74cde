package knowledge

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strings"
	"testing"

	"github.com/gruebot/gruebot/internal/extract"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	tmpDir, err := os.MkdirTemp("", "gruebot-knowledge-test")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(tmpDir) })
	return NewStore(filepath.Join(tmpDir, "knowledge.json"), false)
}

func TestRecordIdempotent(t *testing.T) {
	s := newTestStore(t)

	res := extract.Result{
		Location: "West of House",
		Snippets: []string{"You are standing in an open field.", "There is a small mailbox here."},
		Exits:    []string{"north", "east"},
	}
	s.Record(res, 1)
	s.Record(res, 2)

	if s.VisitedCount() != 1 {
		t.Errorf("VisitedCount = %d, want 1", s.VisitedCount())
	}
	loc := s.locations["West of House"]
	if loc == nil {
		t.Fatal("location not recorded")
	}
	if len(loc.Snippets) > 3 {
		t.Errorf("got %d snippets, want at most 3", len(loc.Snippets))
	}
	if !reflect.DeepEqual(loc.Exits, []string{"north", "east"}) {
		t.Errorf("Exits = %v, want [north east]", loc.Exits)
	}
}

func TestSnippetCap(t *testing.T) {
	s := newTestStore(t)
	s.Record(extract.Result{
		Location: "Attic",
		Snippets: []string{"one snippet long enough", "two snippet long enough", "three snippet long enough", "four snippet long enough"},
	}, 1)

	if got := len(s.locations["Attic"].Snippets); got != 3 {
		t.Errorf("got %d snippets, want 3", got)
	}
}

func TestFactLogEviction(t *testing.T) {
	s := newTestStore(t)

	for i := 0; i < 25; i++ {
		s.Record(extract.Result{Fact: fmt.Sprintf("fact %02d", i)}, i)
	}

	if len(s.facts) != 20 {
		t.Fatalf("got %d facts, want 20", len(s.facts))
	}
	if s.facts[0] != "fact 05" {
		t.Errorf("oldest retained fact = %q, want %q", s.facts[0], "fact 05")
	}
	if s.facts[19] != "fact 24" {
		t.Errorf("newest fact = %q, want %q", s.facts[19], "fact 24")
	}
}

func TestPromptContextSections(t *testing.T) {
	s := newTestStore(t)

	s.Record(extract.Result{
		Location: "Kitchen",
		Exits:    []string{"west", "up"},
		Items:    []string{"sack"},
		Fact:     `"OPEN SACK" worked`,
	}, 1)
	s.Record(extract.Result{
		PuzzleCategory: extract.PuzzleBlockedPassage,
		PuzzleHint:     "Perhaps a rusty key would fit.",
	}, 2)

	ctx := s.PromptContext()
	for _, want := range []string{
		"Current location: Kitchen",
		"Kitchen (exits: west, up)",
		`"OPEN SACK" worked`,
		"sack: seen at Kitchen",
		"[blocked-passage] Perhaps a rusty key would fit.",
	} {
		if !strings.Contains(ctx, want) {
			t.Errorf("PromptContext missing %q:\n%s", want, ctx)
		}
	}
}

func TestPromptContextEmptyStore(t *testing.T) {
	s := newTestStore(t)
	if ctx := s.PromptContext(); ctx != "" {
		t.Errorf("empty store context = %q, want empty", ctx)
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "gruebot-snapshot-test")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tmpDir)
	path := filepath.Join(tmpDir, "knowledge.json")

	s := NewStore(path, false)
	s.Record(extract.Result{
		Location: "Cellar",
		Snippets: []string{"You are in a dark and damp cellar."},
		Exits:    []string{"north", "up"},
		Items:    []string{"lantern"},
	}, 3)
	s.Record(extract.Result{Location: "Troll Room", Exits: []string{"east"}}, 4)
	for i := 0; i < 25; i++ {
		s.Record(extract.Result{Fact: fmt.Sprintf("fact %02d", i)}, 5+i)
	}
	s.Record(extract.Result{
		PuzzleCategory: extract.PuzzleBlockedPassage,
		PuzzleHint:     "The gate needs a password.",
	}, 30)

	if err := s.SaveSnapshot(); err != nil {
		t.Fatalf("SaveSnapshot failed: %v", err)
	}

	fresh := NewStore(path, false)
	ok, err := fresh.LoadSnapshot()
	if err != nil {
		t.Fatalf("LoadSnapshot failed: %v", err)
	}
	if !ok {
		t.Fatal("LoadSnapshot reported no snapshot")
	}

	if !reflect.DeepEqual(fresh.facts, s.facts) {
		t.Errorf("facts differ after round trip")
	}
	if !reflect.DeepEqual(fresh.locations, s.locations) {
		t.Errorf("locations differ after round trip")
	}
	if !reflect.DeepEqual(fresh.puzzles, s.puzzles) {
		t.Errorf("puzzles differ after round trip")
	}
	if !reflect.DeepEqual(fresh.nav, s.nav) {
		t.Errorf("nav graph differs after round trip")
	}
	if fresh.current != s.current {
		t.Errorf("current location = %q, want %q", fresh.current, s.current)
	}

	gotVisited := setToSlice(fresh.visited)
	wantVisited := setToSlice(s.visited)
	sort.Strings(gotVisited)
	sort.Strings(wantVisited)
	if !reflect.DeepEqual(gotVisited, wantVisited) {
		t.Errorf("visited = %v, want %v", gotVisited, wantVisited)
	}
}

func TestLoadSnapshotMissingFile(t *testing.T) {
	s := newTestStore(t)
	ok, err := s.LoadSnapshot()
	if err != nil {
		t.Fatalf("LoadSnapshot failed: %v", err)
	}
	if ok {
		t.Error("expected no snapshot for missing file")
	}
}

func TestLoadSnapshotRejectsInvalidDocument(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "gruebot-snapshot-test")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tmpDir)
	path := filepath.Join(tmpDir, "knowledge.json")

	// Valid JSON, wrong shape: turn is a string and the required
	// collections are missing.
	if err := os.WriteFile(path, []byte(`{"turn": "three"}`), 0644); err != nil {
		t.Fatalf("failed to seed snapshot: %v", err)
	}

	s := NewStore(path, false)
	ok, err := s.LoadSnapshot()
	if err != nil {
		t.Fatalf("LoadSnapshot failed: %v", err)
	}
	if ok {
		t.Error("expected invalid snapshot to be discarded")
	}
}

func TestLoadSnapshotRejectsNullLocation(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "gruebot-snapshot-test")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tmpDir)
	path := filepath.Join(tmpDir, "knowledge.json")

	// All required collections present, but a location entry is null.
	// Loading it naively would leave a nil *Location behind and blow up
	// on the next Record for that name.
	doc := `{
		"turn": 3,
		"locations": {"West of House": null},
		"items": {},
		"puzzles": {},
		"facts": [],
		"visited": ["West of House"],
		"nav_graph": {}
	}`
	if err := os.WriteFile(path, []byte(doc), 0644); err != nil {
		t.Fatalf("failed to seed snapshot: %v", err)
	}

	s := NewStore(path, false)
	ok, err := s.LoadSnapshot()
	if err != nil {
		t.Fatalf("LoadSnapshot failed: %v", err)
	}
	if ok {
		t.Error("expected snapshot with null location to be discarded")
	}

	s.Record(extract.Result{
		Location: "West of House",
		Snippets: []string{"You are standing in an open field."},
		Exits:    []string{"north"},
	}, 4)
	if !s.Visited("West of House") {
		t.Error("location should be recordable after the discarded snapshot")
	}
}
