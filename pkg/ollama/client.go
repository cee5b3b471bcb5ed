// Package ollama provides thin HTTP clients for an Ollama-compatible model
// endpoint: embeddings, text generation, and one-time model pulls. All calls
// are single-attempt; failures surface immediately.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/RetrivaAI/retriva/engine/domain"
)

type pullReq struct {
	Name string `json:"name"`
}

// preload pulls a model so it is resident before first use. HTTP success is
// the only readiness signal the endpoint offers.
func preload(ctx context.Context, client *http.Client, baseURL, model string) error {
	body, _ := json.Marshal(pullReq{Name: model})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/api/pull", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("ollama pull %s: %w", model, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("ollama pull %s: %w: %w", model, domain.ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("ollama pull %s: status %d: %w", model, resp.StatusCode, domain.ErrUpstreamUnavailable)
	}
	return nil
}

func postJSON(ctx context.Context, client *http.Client, url string, payload any) (*http.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return client.Do(req)
}
