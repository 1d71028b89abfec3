package engine

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"github.com/Turnstyle/ria-hunter-sub000/core/config"
	"github.com/Turnstyle/ria-hunter-sub000/core/data"
)

type OpenAIConnector struct {
	client *openai.Client
	model  string
}

func NewOpenAIConnector(cfg config.OpenAIConfig) *OpenAIConnector {
	return &OpenAIConnector{
		client: openai.NewClient(cfg.APIKey),
		model:  cfg.Model,
	}
}

func (oc *OpenAIConnector) Embed(ctx context.Context, text string) (data.Vector, error) {
	resp, err := oc.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model: openai.EmbeddingModel(oc.model),
		Input: []string{text},
	})
	if err != nil {
		return nil, fmt.Errorf("openai embedding request failed: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("openai embedding response contained no data")
	}
	return data.Vector(resp.Data[0].Embedding), nil
}
