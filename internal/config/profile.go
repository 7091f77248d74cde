package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// GameProfile captures the per-game text conventions the extractor and
// controller key on. The status-line heuristic ("NAME Score: n Moves: n"
// after an echoed command) is an observation about Zork under dfrotz, not
// a contract every interpreter honors, so all of it is overridable from a
// small YAML file.
type GameProfile struct {
	// PromptRune is the character the interpreter prints when it is ready
	// for the next command.
	PromptRune string `yaml:"prompt_rune"`

	// ScoreKeyword and MovesKeyword delimit the status line. The location
	// name is the text preceding ScoreKeyword; MovesKeyword must follow it
	// for the line to count as a status line (empty disables that check).
	ScoreKeyword string `yaml:"score_keyword"`
	MovesKeyword string `yaml:"moves_keyword"`

	// CommandEchoMaxWords bounds how long an all-caps line may be and still
	// be treated as the echoed command preceding a status line.
	CommandEchoMaxWords int `yaml:"command_echo_max_words"`

	// DeathPhrases are substrings of game output that mark the player as
	// dead or ghosted; the controller honors QUIT once one appears.
	DeathPhrases []string `yaml:"death_phrases"`
}

// DefaultProfile returns the Zork I / dfrotz conventions.
func DefaultProfile() *GameProfile {
	return &GameProfile{
		PromptRune:          ">",
		ScoreKeyword:        "Score:",
		MovesKeyword:        "Moves:",
		CommandEchoMaxWords: 3,
		DeathPhrases:        []string{"passes through", "ghost"},
	}
}

// LoadProfile reads a YAML game profile, filling unset fields from the
// defaults. An empty path returns the defaults unchanged.
func LoadProfile(path string) (*GameProfile, error) {
	p := DefaultProfile()
	if path == "" {
		return p, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read game profile: %w", err)
	}
	if err := yaml.Unmarshal(data, p); err != nil {
		return nil, fmt.Errorf("failed to parse game profile: %w", err)
	}

	if p.PromptRune == "" {
		p.PromptRune = ">"
	}
	if p.ScoreKeyword == "" {
		p.ScoreKeyword = "Score:"
	}
	if p.CommandEchoMaxWords <= 0 {
		p.CommandEchoMaxWords = 3
	}
	if len(p.DeathPhrases) == 0 {
		p.DeathPhrases = DefaultProfile().DeathPhrases
	}
	return p, nil
}
