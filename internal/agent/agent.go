// Package agent abstracts over the command-suggestion backends. A Provider
// turns the accumulated knowledge context, the conversation so far and the
// latest game output into the next command to play. The provider is chosen
// once at session construction; the turn loop never branches on which one
// it got.
package agent

import (
	"context"
	"strings"
)

// Role labels one side of the conversation.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one entry of the conversation history. The session controller
// owns the history; providers only read it.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Provider produces the next game command. gameOutput is the latest game
// response, not yet part of history; the controller appends it (and the
// returned command) to its history after the call.
type Provider interface {
	NextCommand(ctx context.Context, knowledgeContext string, history []Message, gameOutput string) (string, error)
	Name() string
}

// FallbackCommand is the always-safe command substituted when a local
// provider cannot produce an answer. It never changes game state.
const FallbackCommand = "LOOK"

// UserTurn formats a game response the way providers present it to the
// model. The session controller uses the same shape when it appends the
// output to its history, so past and present turns look identical.
func UserTurn(gameOutput string) string {
	return "Game output:\n" + gameOutput + "\n\nWhat's your next command?"
}

// firstLine trims the model output down to a single command: the first
// non-empty line, whitespace-trimmed.
func firstLine(s string) string {
	for _, line := range strings.Split(s, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
