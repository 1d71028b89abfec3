package generator

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"github.com/Turnstyle/ria-hunter-sub000/core/config"
)

type OpenAIChatConnector struct {
	client *openai.Client
	model  string
}

func NewOpenAIChatConnector(cfg config.OpenAIConfig) *OpenAIChatConnector {
	return &OpenAIChatConnector{
		client: openai.NewClient(cfg.APIKey),
		model:  cfg.Model,
	}
}

func (oc *OpenAIChatConnector) Complete(ctx context.Context, system, prompt string) (string, error) {
	response, err := oc.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: oc.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("openai completion failed: %w", err)
	}
	if len(response.Choices) == 0 {
		return "", fmt.Errorf("openai completion returned no choices")
	}
	return response.Choices[0].Message.Content, nil
}
