package ollama

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/RetrivaAI/retriva/engine/domain"
)

// EmbedClient turns text into a fixed-length embedding via Ollama's
// /api/embeddings endpoint.
type EmbedClient struct {
	baseURL string
	model   string
	client  *http.Client
}

// NewEmbedClient creates an Ollama embedding client. The model is not
// pulled here; call Preload during startup before serving traffic.
func NewEmbedClient(baseURL, model string) *EmbedClient {
	return &EmbedClient{
		baseURL: baseURL,
		model:   model,
		client:  &http.Client{},
	}
}

// Preload pulls the embedding model. Run once before first use.
func (c *EmbedClient) Preload(ctx context.Context) error {
	return preload(ctx, c.client, c.baseURL, c.model)
}

type embedReq struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type embedResp struct {
	Embedding []float64 `json:"embedding"`
}

// Embed generates an embedding for text. Single attempt, no retries.
func (c *EmbedClient) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := domain.ValidateText("text", text); err != nil {
		return nil, err
	}

	resp, err := postJSON(ctx, c.client, c.baseURL+"/api/embeddings", embedReq{Model: c.model, Prompt: text})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("ollama embed: %w: %w", domain.ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("ollama embed: status %d: %w", resp.StatusCode, domain.ErrUpstreamUnavailable)
	}

	var result embedResp
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("ollama embed decode: %w: %w", domain.ErrMalformedResponse, err)
	}
	if len(result.Embedding) == 0 {
		return nil, fmt.Errorf("ollama embed: empty embedding: %w", domain.ErrMalformedResponse)
	}

	out := make([]float32, len(result.Embedding))
	for i, v := range result.Embedding {
		out[i] = float32(v)
	}
	return out, nil
}
