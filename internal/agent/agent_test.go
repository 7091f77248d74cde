package agent

import (
	"strings"
	"testing"
)

func TestFirstLine(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"single line", "GO NORTH", "GO NORTH"},
		{"trailing whitespace", "  OPEN MAILBOX  \n", "OPEN MAILBOX"},
		{"multi line keeps first", "TAKE LAMP\nThen I would go north.", "TAKE LAMP"},
		{"leading blank lines", "\n\n  EAST\n", "EAST"},
		{"all blank", " \n\t\n", ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := firstLine(tc.in); got != tc.want {
				t.Errorf("firstLine(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestUserTurn(t *testing.T) {
	got := UserTurn("West of House\nYou are standing in an open field.")
	if !strings.HasPrefix(got, "Game output:\n") {
		t.Errorf("UserTurn missing prefix: %q", got)
	}
	if !strings.HasSuffix(got, "What's your next command?") {
		t.Errorf("UserTurn missing question: %q", got)
	}
	if !strings.Contains(got, "West of House") {
		t.Errorf("UserTurn lost the game output: %q", got)
	}
}

func TestFlattenPromptWindowsHistory(t *testing.T) {
	history := make([]Message, 0, localHistoryWindow+4)
	for i := 0; i < localHistoryWindow+4; i++ {
		role := RoleUser
		if i%2 == 1 {
			role = RoleAssistant
		}
		history = append(history, Message{Role: role, Content: marker(i)})
	}

	prompt := flattenPrompt("", history, "You see a rug.")

	for i := 0; i < 4; i++ {
		if strings.Contains(prompt, marker(i)) {
			t.Errorf("flattenPrompt kept entry %d outside the window", i)
		}
	}
	for i := 4; i < localHistoryWindow+4; i++ {
		if !strings.Contains(prompt, marker(i)) {
			t.Errorf("flattenPrompt dropped entry %d inside the window", i)
		}
	}
	if !strings.HasSuffix(prompt, "Command: ") {
		t.Errorf("flattenPrompt must end at the completion point, got %q", prompt[len(prompt)-30:])
	}
	if !strings.Contains(prompt, "You see a rug.") {
		t.Error("flattenPrompt dropped the latest game output")
	}
}

func TestFlattenPromptRoleLabels(t *testing.T) {
	history := []Message{
		{Role: RoleUser, Content: "West of House"},
		{Role: RoleAssistant, Content: "OPEN MAILBOX"},
	}

	prompt := flattenPrompt("Known locations:\n- West of House", history, "Opening the mailbox reveals a leaflet.")

	if !strings.Contains(prompt, "Game:\nWest of House") {
		t.Error("user entries should carry the Game label")
	}
	if !strings.Contains(prompt, "Command: OPEN MAILBOX") {
		t.Error("assistant entries should carry the Command label")
	}
	if !strings.Contains(prompt, "Known locations:") {
		t.Error("knowledge context should be part of the prompt")
	}
}

func marker(i int) string {
	return "entry-" + string(rune('A'+i))
}
