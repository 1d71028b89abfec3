package generator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/Turnstyle/ria-hunter-sub000/core/config"
)

type OllamaChatConnector struct {
	Model    string
	Endpoint string
}

func NewOllamaChatConnector(cfg config.OllamaConfig) *OllamaChatConnector {
	return &OllamaChatConnector{Model: cfg.Model, Endpoint: cfg.Endpoint}
}

func (oc *OllamaChatConnector) Complete(ctx context.Context, system, prompt string) (string, error) {
	type generateRequest struct {
		Model  string `json:"model"`
		System string `json:"system"`
		Prompt string `json:"prompt"`
		Stream bool   `json:"stream"`
	}
	type generateResponse struct {
		Response string `json:"response"`
	}

	body, _ := json.Marshal(generateRequest{
		Model:  oc.Model,
		System: system,
		Prompt: prompt,
		Stream: false,
	})

	url := oc.Endpoint + "/api/generate"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(body))
	if err != nil {
		return "", fmt.Errorf("creating generate request failed: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("generate request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("generate request failed with status %d: %s", resp.StatusCode, respBody)
	}

	var parsed generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decoding generate response failed: %w", err)
	}
	if parsed.Response == "" {
		return "", fmt.Errorf("generate response was empty")
	}
	return parsed.Response, nil
}
