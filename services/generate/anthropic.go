package generate

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

type AnthropicGenerator struct {
	client *anthropic.Client
	model  anthropic.Model
}

func NewAnthropicGenerator(apiKey, model string) *AnthropicGenerator {
	client := anthropic.NewClient(option.WithAPIKey(apiKey))
	return &AnthropicGenerator{
		client: &client,
		model:  anthropic.Model(model),
	}
}

func (g *AnthropicGenerator) Generate(ctx context.Context, prompt, systemInstruction string) (string, error) {
	params := anthropic.MessageNewParams{
		Model:     g.model,
		MaxTokens: 2048,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}
	if systemInstruction != "" {
		params.System = []anthropic.TextBlockParam{{Text: systemInstruction}}
	}

	response, err := g.client.Messages.New(ctx, params)
	if err != nil {
		log.Printf("[ERROR] Failed to call Anthropic API: %v", err)
		return "", fmt.Errorf("failed to call Anthropic API: %w", err)
	}

	var out strings.Builder
	for _, block := range response.Content {
		switch block := block.AsAny().(type) {
		case anthropic.TextBlock:
			out.WriteString(block.Text)
		}
	}
	return strings.TrimSpace(out.String()), nil
}
