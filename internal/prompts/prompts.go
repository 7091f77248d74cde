// Package prompts holds the system prompt text and a small builder for
// composing it with per-turn fragments.
package prompts

import (
	_ "embed"
	"fmt"
	"strings"
)

//go:embed system_zork.txt
var systemPrompt string

// Builder renders a prompt text with {{key}} variable substitution.
type Builder struct {
	base      string
	variables map[string]string
}

// NewSystemBuilder starts a builder seeded with the embedded system prompt.
func NewSystemBuilder() *Builder {
	return &Builder{
		base:      systemPrompt,
		variables: make(map[string]string),
	}
}

// SetVariable sets a variable for {{key}} substitution.
func (b *Builder) SetVariable(key, value string) *Builder {
	b.variables[key] = value
	return b
}

// Build constructs the final prompt string. Variables without a value are
// substituted with the empty string so no placeholder leaks into a request.
func (b *Builder) Build() string {
	result := b.base
	for key, value := range b.variables {
		placeholder := fmt.Sprintf("{{%s}}", key)
		result = strings.ReplaceAll(result, placeholder, value)
	}
	if idx := strings.Index(result, "{{"); idx >= 0 {
		// Unfilled placeholders collapse to nothing.
		result = stripPlaceholders(result)
	}
	return strings.TrimSpace(result)
}

// System renders the system prompt with the accumulated knowledge context
// embedded, or without the section when there is nothing to inject.
func System(knowledgeContext string) string {
	b := NewSystemBuilder()
	if knowledgeContext != "" {
		b.SetVariable("knowledge", "WHAT YOU HAVE LEARNED SO FAR:\n"+knowledgeContext)
	}
	return b.Build()
}

func stripPlaceholders(s string) string {
	for {
		start := strings.Index(s, "{{")
		if start < 0 {
			return s
		}
		end := strings.Index(s[start:], "}}")
		if end < 0 {
			return s
		}
		s = s[:start] + s[start+end+2:]
	}
}
