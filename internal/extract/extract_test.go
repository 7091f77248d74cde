package extract

import (
	"reflect"
	"testing"

	"github.com/gruebot/gruebot/internal/config"
)

func TestExtractLocationStatusLine(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{
			name: "echoed command then status line",
			raw:  "LOOK\nWest of House                                   Score: 0        Moves: 1\nYou are standing in an open field.",
			want: "West of House",
		},
		{
			name: "two word echoed command",
			raw:  "GO NORTH\nNorth of House Score: 0 Moves: 2",
			want: "North of House",
		},
		{
			name: "long upper case line is not a command echo",
			raw:  "THIS IS A LOUD SIGN NOT A COMMAND\nKitchen Score: 10 Moves: 5",
			want: "",
		},
		{
			name: "you are in fallback",
			raw:  "Suddenly you are in a damp cellar.",
			want: "Suddenly you are in a damp cellar.",
		},
		{
			name: "nothing matches",
			raw:  "Taken.",
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Extract(tt.raw, "LOOK", config.DefaultProfile())
			if res.Location != tt.want {
				t.Errorf("Location = %q, want %q", res.Location, tt.want)
			}
		})
	}
}

func TestExtractLocationRequiresMovesKeyword(t *testing.T) {
	// A prose line mentioning the score keyword is not a status line.
	raw := "LOOK\nThe sign reads Score: visitors welcome."
	if res := Extract(raw, "LOOK", config.DefaultProfile()); res.Location != "" {
		t.Errorf("Location = %q, want none for a non-status line", res.Location)
	}

	// An empty moves keyword disables the check.
	profile := config.DefaultProfile()
	profile.MovesKeyword = ""
	res := Extract("LOOK\nKitchen Score: 10", "LOOK", profile)
	if res.Location != "Kitchen" {
		t.Errorf("Location = %q, want %q", res.Location, "Kitchen")
	}
}

func TestExtractLocationCustomProfile(t *testing.T) {
	profile := config.DefaultProfile()
	profile.ScoreKeyword = "Points:"

	raw := "LOOK\nThrone Room Points: 3 Moves: 9"
	res := Extract(raw, "LOOK", profile)
	if res.Location != "Throne Room" {
		t.Errorf("Location = %q, want %q", res.Location, "Throne Room")
	}
}

func TestExtractSnippets(t *testing.T) {
	raw := "LOOK\n" +
		"West of House Score: 0 Moves: 1\n" +
		"You are standing in an open field west of a white house.\n" +
		"There is a small mailbox here.\n" +
		"A rubber mat saying 'Welcome to Zork!' lies by the door.\n" +
		"The door is boarded and you can't remove the boards."

	res := Extract(raw, "LOOK", nil)
	if len(res.Snippets) != 3 {
		t.Fatalf("got %d snippets, want 3: %v", len(res.Snippets), res.Snippets)
	}
	if res.Snippets[0] != "You are standing in an open field west of a white house." {
		t.Errorf("Snippets[0] = %q", res.Snippets[0])
	}
}

func TestExtractExits(t *testing.T) {
	raw := "There is a path to the north and a small door leading east.\n" +
		"A staircase goes down into darkness.\n" +
		"You could also go north again."

	res := Extract(raw, "LOOK", nil)
	want := []string{"north", "east", "down"}
	if !reflect.DeepEqual(res.Exits, want) {
		t.Errorf("Exits = %v, want %v", res.Exits, want)
	}
}

func TestExtractExitsCompoundDirections(t *testing.T) {
	res := Extract("A tunnel winds to the northeast.", "LOOK", nil)

	seen := make(map[string]bool)
	for _, e := range res.Exits {
		seen[e] = true
	}
	// Substring matching is deliberately crude: northeast also brings in
	// north and east, and the compound form must be present.
	if !seen["northeast"] {
		t.Errorf("Exits = %v, expected northeast to be present", res.Exits)
	}
}

func TestExtractItems(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []string
	}{
		{
			name: "take with article",
			raw:  "You take the lamp.",
			want: []string{"lamp"},
		},
		{
			name: "see plain token",
			raw:  "You see sword gleaming here.",
			want: []string{"sword"},
		},
		{
			name: "lower case style ignored",
			raw:  "you take the rope.",
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Extract(tt.raw, "LOOK", nil)
			if !reflect.DeepEqual(res.Items, tt.want) {
				t.Errorf("Items = %v, want %v", res.Items, tt.want)
			}
		})
	}
}

func TestExtractFact(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		command string
		want    string
	}{
		{
			name:    "refusal",
			raw:     "You can't open the grating.",
			command: "OPEN GRATING",
			want:    `"OPEN GRATING" was refused`,
		},
		{
			name:    "affirmative take",
			raw:     "You take the brass lantern.",
			command: "TAKE LANTERN",
			want:    `"TAKE LANTERN" worked`,
		},
		{
			name:    "neutral output yields no fact",
			raw:     "It is pitch black.",
			command: "GO NORTH",
			want:    "",
		},
		{
			name:    "no prior command yields no fact",
			raw:     "You can't do that.",
			command: "",
			want:    "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Extract(tt.raw, tt.command, nil)
			if res.Fact != tt.want {
				t.Errorf("Fact = %q, want %q", res.Fact, tt.want)
			}
		})
	}
}

func TestExtractPuzzleHint(t *testing.T) {
	raw := "You can't open the iron door.\nYou need something to unlock it.\nPerhaps a rusty key would fit."

	res := Extract(raw, "OPEN DOOR", nil)
	if res.PuzzleCategory != PuzzleBlockedPassage {
		t.Fatalf("PuzzleCategory = %q, want %q", res.PuzzleCategory, PuzzleBlockedPassage)
	}
	if res.PuzzleHint != "Perhaps a rusty key would fit." {
		t.Errorf("PuzzleHint = %q", res.PuzzleHint)
	}
}

func TestExtractPuzzleRequiresBothPhrases(t *testing.T) {
	// "You can't" alone, without a stated requirement, is not a puzzle.
	res := Extract("You can't open the door.", "OPEN DOOR", nil)
	if res.PuzzleCategory != "" {
		t.Errorf("PuzzleCategory = %q, want empty", res.PuzzleCategory)
	}
}

func TestIsDeathSignature(t *testing.T) {
	if !IsDeathSignature("Your hand passes through the table.", nil) {
		t.Error("expected passes through to be a death signature")
	}
	if !IsDeathSignature("You are but a GHOST now.", nil) {
		t.Error("expected ghost to be a death signature")
	}
	if IsDeathSignature("You are standing in an open field.", nil) {
		t.Error("unexpected death signature")
	}
}
