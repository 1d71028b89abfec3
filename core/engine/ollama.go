package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/Turnstyle/ria-hunter-sub000/core/config"
	"github.com/Turnstyle/ria-hunter-sub000/core/data"
)

type OllamaConnector struct {
	Model    string
	Endpoint string
}

func NewOllamaConnector(ctx context.Context, cfg config.OllamaConfig) (*OllamaConnector, error) {
	connector := OllamaConnector{Model: cfg.Model, Endpoint: cfg.Endpoint}
	if err := connector.pullModel(ctx); err != nil {
		return nil, err
	}
	return &connector, nil
}

func (oc *OllamaConnector) pullModel(ctx context.Context) error {
	logger := ctx.Value("logger").(*slog.Logger)

	reqBody := map[string]string{"name": oc.Model}
	jsonData, _ := json.Marshal(reqBody)
	url := oc.Endpoint + "/api/pull"

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("creating pull request failed: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	logger.Info("pulling model", slog.String("model", oc.Model), slog.String("endpoint", oc.Endpoint), slog.String("component", "engine"))
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		logger.Error("could not pull the desired model", slog.String("model", oc.Model), slog.String("endpoint", oc.Endpoint), slog.String("component", "engine"))
		return fmt.Errorf("model pull failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		logger.Error("could not pull the desired model", slog.String("model", oc.Model), slog.String("endpoint", oc.Endpoint), slog.String("component", "engine"), slog.String("body", string(body)))
		return fmt.Errorf("model pull failed: %s", body)
	}

	// Drain the streamed pull progress
	if _, err := io.Copy(io.Discard, resp.Body); err != nil {
		return fmt.Errorf("error pulling model: %w", err)
	}

	return nil
}

func (oc *OllamaConnector) Embed(ctx context.Context, text string) (data.Vector, error) {
	type embedRequest struct {
		Model  string `json:"model"`
		Prompt string `json:"prompt"`
	}
	type embedResponse struct {
		Embedding []float32 `json:"embedding"`
	}

	body, _ := json.Marshal(embedRequest{
		Model:  oc.Model,
		Prompt: text,
	})

	url := oc.Endpoint + "/api/embeddings"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(body))
	if err != nil {
		return nil, fmt.Errorf("creating embedding request failed: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("embedding request failed with status %d: %s", resp.StatusCode, respBody)
	}

	var parsed embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decoding embedding response failed: %w", err)
	}

	return data.Vector(parsed.Embedding), nil
}
