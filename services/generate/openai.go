package generate

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"github.com/tmc/langchaingo/schema"
)

type OpenAIGenerator struct {
	llm llms.Model
}

func NewOpenAIGenerator(apiKey, model string) (*OpenAIGenerator, error) {
	llm, err := openai.New(
		openai.WithModel(model),
		openai.WithToken(apiKey),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OpenAI client: %w", err)
	}
	return &OpenAIGenerator{llm: llm}, nil
}

func (g *OpenAIGenerator) Generate(ctx context.Context, prompt, systemInstruction string) (string, error) {
	var history []llms.MessageContent
	if systemInstruction != "" {
		history = append(history, llms.TextParts(schema.ChatMessageTypeSystem, systemInstruction))
	}
	history = append(history, llms.TextParts(schema.ChatMessageTypeHuman, prompt))

	resp, err := g.llm.GenerateContent(ctx, history, llms.WithTemperature(0.7))
	if err != nil {
		log.Printf("[ERROR] Failed to generate LLM response: %v", err)
		return "", fmt.Errorf("failed to generate LLM response: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices in LLM response")
	}
	return strings.TrimSpace(resp.Choices[0].Content), nil
}
