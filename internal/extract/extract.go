// Package extract derives structured knowledge from one turn of raw game
// text. Everything here is a best-effort heuristic over semi-structured
// adventure-game prose: a miss is normal and never an error, the caller
// simply skips updating whatever was not found.
package extract

import (
	"strings"

	"github.com/gruebot/gruebot/internal/config"
)

// PuzzleBlockedPassage is the single puzzle category currently inferred:
// the game refused movement and named a requirement.
const PuzzleBlockedPassage = "blocked-passage"

// Result is the structured outcome of scanning one turn's output.
// Zero-valued fields mean "nothing found this turn".
type Result struct {
	Location       string
	Snippets       []string
	Exits          []string
	Items          []string
	Fact           string
	PuzzleCategory string
	PuzzleHint     string
}

// maxSnippets bounds how many salient description lines one turn yields.
const maxSnippets = 3

// directionWords is scanned in order; longer compound directions come first
// so they are at least recorded before their substrings match too.
var directionWords = []string{
	"northeast", "northwest", "southeast", "southwest",
	"north", "south", "east", "west", "up", "down",
}

// itemVerbs trigger item extraction. Matching is case-sensitive against the
// game's capitalized sentence style ("You take the lamp.").
var itemVerbs = []string{"You take", "You find", "You see"}

// hintWords is the fixed vocabulary a puzzle hint line must mention.
var hintWords = []string{"key", "lever", "button", "switch", "password"}

// Extract parses one turn's raw output given the command that produced it.
// It is a pure function: no I/O, no state.
func Extract(raw, priorCommand string, profile *config.GameProfile) Result {
	if profile == nil {
		profile = config.DefaultProfile()
	}

	var res Result
	lines := strings.Split(raw, "\n")

	res.Location = extractLocation(lines, profile)
	res.Snippets = extractSnippets(lines, profile)
	res.Exits = extractExits(lines)
	res.Items = extractItems(lines)
	res.Fact = extractFact(raw, priorCommand)
	res.PuzzleCategory, res.PuzzleHint = extractPuzzle(raw, lines)
	return res
}

// extractLocation applies the two location heuristics in priority order.
//
// First: dfrotz echoes the typed command in upper case, and the next line
// is the status line "West of House        Score: 0        Moves: 1".
// The location is everything before the score keyword.
//
// Fallback: any line containing "you are in" or "you are at" is taken
// whole as the location name.
func extractLocation(lines []string, profile *config.GameProfile) string {
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || i+1 >= len(lines) {
			continue
		}
		if !isEchoedCommand(trimmed, profile.CommandEchoMaxWords) {
			continue
		}
		next := strings.TrimSpace(lines[i+1])
		idx := strings.Index(next, profile.ScoreKeyword)
		if idx <= 0 {
			continue
		}
		// A real status line carries the moves counter after the score;
		// a prose line that merely mentions the score keyword does not.
		if profile.MovesKeyword != "" && !strings.Contains(next[idx:], profile.MovesKeyword) {
			continue
		}
		if name := strings.TrimSpace(next[:idx]); name != "" {
			return name
		}
	}

	for _, line := range lines {
		lower := strings.ToLower(line)
		if strings.Contains(lower, "you are in") || strings.Contains(lower, "you are at") {
			return strings.TrimSpace(line)
		}
	}
	return ""
}

// isEchoedCommand reports whether a line looks like the interpreter's echo
// of the player's command: short and entirely upper case.
func isEchoedCommand(line string, maxWords int) bool {
	words := strings.Fields(line)
	if len(words) == 0 || len(words) > maxWords {
		return false
	}
	if line != strings.ToUpper(line) {
		return false
	}
	// A line of pure punctuation or digits is not a command echo.
	hasLetter := false
	for _, r := range line {
		if r >= 'A' && r <= 'Z' {
			hasLetter = true
			break
		}
	}
	return hasLetter
}

// extractSnippets keeps up to three prose lines as salient description
// material for the location: long enough to carry meaning, not a command
// echo, not the status line.
func extractSnippets(lines []string, profile *config.GameProfile) []string {
	var snippets []string
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if len(trimmed) < 20 {
			continue
		}
		if isEchoedCommand(trimmed, profile.CommandEchoMaxWords) {
			continue
		}
		if strings.Contains(trimmed, profile.ScoreKeyword) {
			continue
		}
		snippets = append(snippets, trimmed)
		if len(snippets) == maxSnippets {
			break
		}
	}
	return snippets
}

// extractExits scans every line for direction mentions and collects them
// as a deduplicated, order-preserving set. Lines describing doors, passages,
// staircases, ladders or tunnels contribute through the same substring
// check, so the result is a crude hint, not a verified connection: the text
// "a door to the northeast" also matches "north" and "east".
func extractExits(lines []string) []string {
	var exits []string
	seen := make(map[string]bool)

	for _, line := range lines {
		lower := strings.ToLower(line)
		for _, dir := range directionWords {
			if strings.Contains(lower, dir) && !seen[dir] {
				seen[dir] = true
				exits = append(exits, dir)
			}
		}
	}
	return exits
}

// extractItems takes the word immediately following "You take"/"You find"/
// "You see" as the item token, stripped of trailing punctuation and a
// leading article.
func extractItems(lines []string) []string {
	var items []string
	seen := make(map[string]bool)

	for _, line := range lines {
		for _, verb := range itemVerbs {
			idx := strings.Index(line, verb)
			if idx < 0 {
				continue
			}
			rest := strings.TrimSpace(line[idx+len(verb):])
			words := strings.Fields(rest)
			if len(words) == 0 {
				continue
			}
			token := words[0]
			if (token == "a" || token == "an" || token == "the") && len(words) > 1 {
				token = words[1]
			}
			token = strings.ToLower(strings.Trim(token, ".,!;:\"'"))
			if token != "" && !seen[token] {
				seen[token] = true
				items = append(items, token)
			}
		}
	}
	return items
}

// extractFact synthesizes at most one short cause/effect note per turn:
// a refusal when the game answered "You can't", an affirmative when the
// output confirms a take or open.
func extractFact(raw, priorCommand string) string {
	cmd := strings.TrimSpace(priorCommand)
	if cmd == "" {
		return ""
	}
	lower := strings.ToLower(raw)

	if strings.Contains(raw, "You can't") {
		return "\"" + cmd + "\" was refused"
	}
	if strings.Contains(lower, "you take") || strings.Contains(lower, "you open") {
		return "\"" + cmd + "\" worked"
	}
	return ""
}

// extractPuzzle classifies the blocked-passage pattern: the game refused an
// action and separately named a requirement, in the context of a door, gate
// or passage. The hint is the first line mentioning the fixed vocabulary
// (key/lever/button/switch/password).
func extractPuzzle(raw string, lines []string) (category, hint string) {
	if !strings.Contains(raw, "You can't") || !strings.Contains(raw, "You need") {
		return "", ""
	}
	lower := strings.ToLower(raw)
	if !strings.Contains(lower, "door") && !strings.Contains(lower, "gate") &&
		!strings.Contains(lower, "passage") && !strings.Contains(lower, "open") {
		return "", ""
	}

	for _, line := range lines {
		lineLower := strings.ToLower(line)
		for _, w := range hintWords {
			if strings.Contains(lineLower, w) {
				return PuzzleBlockedPassage, strings.TrimSpace(line)
			}
		}
	}
	return PuzzleBlockedPassage, ""
}

// IsDeathSignature reports whether the output carries one of the profile's
// fixed dead/ghost markers.
func IsDeathSignature(raw string, profile *config.GameProfile) bool {
	if profile == nil {
		profile = config.DefaultProfile()
	}
	lower := strings.ToLower(raw)
	for _, phrase := range profile.DeathPhrases {
		if strings.Contains(lower, strings.ToLower(phrase)) {
			return true
		}
	}
	return false
}
