package agent

import (
	"context"
	"fmt"
	"log"
	"strings"

	openai "github.com/meguminnnnnnnnn/go-openai"

	"github.com/gruebot/gruebot/internal/prompts"
)

// localHistoryWindow caps how many history entries the flattened prompt
// carries. Small local models lose the plot (and the context window) fast.
const localHistoryWindow = 10

// OllamaProvider suggests commands through a local Ollama server using its
// OpenAI-compatible completion endpoint. Local models are flaky, so a failed
// or empty generation degrades to FallbackCommand instead of killing the
// session.
type OllamaProvider struct {
	client      *openai.Client
	model       string
	maxTokens   int
	temperature float32
	topP        float32
	verbose     bool
}

// NewOllamaProvider creates a provider over a local Ollama server and probes
// it once. An unreachable server is a construction error: there is no point
// starting a session that can never get a command.
func NewOllamaProvider(ctx context.Context, baseURL, model string, maxTokens int, temperature, topP float32, verbose bool) (*OllamaProvider, error) {
	cfg := openai.DefaultConfig("ollama")
	cfg.BaseURL = baseURL
	client := openai.NewClientWithConfig(cfg)

	if _, err := client.ListModels(ctx); err != nil {
		return nil, fmt.Errorf("ollama server unreachable at %s: %w", baseURL, err)
	}

	return &OllamaProvider{
		client:      client,
		model:       model,
		maxTokens:   maxTokens,
		temperature: temperature,
		topP:        topP,
		verbose:     verbose,
	}, nil
}

// Name implements Provider.
func (p *OllamaProvider) Name() string { return "ollama" }

// NextCommand implements Provider.
func (p *OllamaProvider) NextCommand(ctx context.Context, knowledgeContext string, history []Message, gameOutput string) (string, error) {
	prompt := flattenPrompt(knowledgeContext, history, gameOutput)

	resp, err := p.client.CreateCompletion(ctx, openai.CompletionRequest{
		Model:       p.model,
		Prompt:      prompt,
		MaxTokens:   p.maxTokens,
		Temperature: p.temperature,
		TopP:        p.topP,
	})
	if err != nil {
		log.Printf("ollama generation failed, falling back to %s: %v", FallbackCommand, err)
		return FallbackCommand, nil
	}
	if len(resp.Choices) == 0 {
		log.Printf("ollama returned no choices, falling back to %s", FallbackCommand)
		return FallbackCommand, nil
	}

	command := firstLine(resp.Choices[0].Text)
	if command == "" {
		log.Printf("ollama returned empty text, falling back to %s", FallbackCommand)
		return FallbackCommand, nil
	}

	if p.verbose {
		log.Printf("ollama: command %q", command)
	}

	return command, nil
}

// flattenPrompt renders the system prompt, knowledge context and a window of
// recent conversation into a single completion prompt. Legacy completion
// endpoints have no role structure, so the roles become plain labels.
func flattenPrompt(knowledgeContext string, history []Message, gameOutput string) string {
	var sb strings.Builder
	sb.WriteString(prompts.System(knowledgeContext))
	sb.WriteString("\n\n")

	recent := history
	if len(recent) > localHistoryWindow {
		recent = recent[len(recent)-localHistoryWindow:]
	}
	for _, msg := range recent {
		switch msg.Role {
		case RoleUser:
			sb.WriteString("Game:\n")
		case RoleAssistant:
			sb.WriteString("Command: ")
		}
		sb.WriteString(msg.Content)
		sb.WriteString("\n\n")
	}

	sb.WriteString("Game:\n")
	sb.WriteString(gameOutput)
	sb.WriteString("\n\nCommand: ")
	return sb.String()
}
