package agent

import (
	"context"
	"fmt"
	"log"

	anthropic "github.com/liushuangls/go-anthropic/v2"

	"github.com/gruebot/gruebot/internal/prompts"
)

// AnthropicProvider suggests commands through the Anthropic Messages API.
// Hosted-provider failures are returned to the caller; unlike the local
// provider there is no silent fallback, a dead API key or exhausted quota
// should stop the session rather than play LOOK forever.
type AnthropicProvider struct {
	client      *anthropic.Client
	model       string
	maxTokens   int
	temperature float32
	verbose     bool
}

// NewAnthropicProvider creates a provider over the hosted Anthropic API.
func NewAnthropicProvider(apiKey, model string, maxTokens int, temperature float32, verbose bool) (*AnthropicProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("ANTHROPIC_API_KEY not set")
	}

	return &AnthropicProvider{
		client:      anthropic.NewClient(apiKey),
		model:       model,
		maxTokens:   maxTokens,
		temperature: temperature,
		verbose:     verbose,
	}, nil
}

// Name implements Provider.
func (p *AnthropicProvider) Name() string { return "anthropic" }

// NextCommand implements Provider. The knowledge context rides in the system
// prompt so the conversation history stays pure user/assistant turns.
func (p *AnthropicProvider) NextCommand(ctx context.Context, knowledgeContext string, history []Message, gameOutput string) (string, error) {
	system := prompts.System(knowledgeContext)

	msgs := make([]anthropic.Message, 0, len(history)+1)
	for _, msg := range history {
		switch msg.Role {
		case RoleUser:
			msgs = append(msgs, anthropic.Message{
				Role:    anthropic.RoleUser,
				Content: []anthropic.MessageContent{anthropic.NewTextMessageContent(msg.Content)},
			})
		case RoleAssistant:
			msgs = append(msgs, anthropic.Message{
				Role:    anthropic.RoleAssistant,
				Content: []anthropic.MessageContent{anthropic.NewTextMessageContent(msg.Content)},
			})
		}
	}
	msgs = append(msgs, anthropic.Message{
		Role:    anthropic.RoleUser,
		Content: []anthropic.MessageContent{anthropic.NewTextMessageContent(UserTurn(gameOutput))},
	})

	temperature := p.temperature
	req := anthropic.MessagesRequest{
		Model:       anthropic.Model(p.model),
		Messages:    msgs,
		MaxTokens:   p.maxTokens,
		Temperature: &temperature,
		MultiSystem: []anthropic.MessageSystemPart{
			{Type: "text", Text: system},
		},
	}

	resp, err := p.client.CreateMessages(ctx, req)
	if err != nil {
		return "", fmt.Errorf("anthropic request failed: %w", err)
	}

	var text string
	for _, block := range resp.Content {
		if block.Type == anthropic.MessagesContentTypeText && block.Text != nil {
			text += *block.Text
		}
	}

	command := firstLine(text)
	if command == "" {
		return "", fmt.Errorf("anthropic returned no usable command (stop reason %q)", resp.StopReason)
	}

	if p.verbose {
		log.Printf("anthropic: %d in / %d out tokens, command %q",
			resp.Usage.InputTokens, resp.Usage.OutputTokens, command)
	}

	return command, nil
}
