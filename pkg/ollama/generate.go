package ollama

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/RetrivaAI/retriva/engine/domain"
)

// GenerateClient turns a prompt into a natural-language answer via Ollama's
// /api/generate endpoint. An optional rate limiter guards the model-serving
// endpoint against concurrent fan-out from large result sets.
type GenerateClient struct {
	baseURL string
	model   string
	client  *http.Client
	limiter *rate.Limiter
}

// NewGenerateClient creates an Ollama generation client. The model is not
// pulled here; call Preload during startup before serving traffic.
func NewGenerateClient(baseURL, model string) *GenerateClient {
	return &GenerateClient{
		baseURL: baseURL,
		model:   model,
		client:  &http.Client{},
	}
}

// WithLimiter sets an outbound rate limit of r calls per second with the
// given burst. Returns the client for chaining during wiring.
func (c *GenerateClient) WithLimiter(r float64, burst int) *GenerateClient {
	c.limiter = rate.NewLimiter(rate.Limit(r), burst)
	return c
}

// Preload pulls the generation model. Run once before first use.
func (c *GenerateClient) Preload(ctx context.Context) error {
	return preload(ctx, c.client, c.baseURL, c.model)
}

type generateReq struct {
	Model  string `json:"model"`
	Stream bool   `json:"stream"`
	Prompt string `json:"prompt"`
}

type generateResp struct {
	Model      string    `json:"model"`
	CreatedAt  time.Time `json:"created_at"`
	Response   string    `json:"response"`
	Done       bool      `json:"done"`
	DoneReason string    `json:"done_reason"`
	Context    []int     `json:"context"`
}

// Respond generates an answer for prompt. Single attempt, no retries.
// Cancellation of ctx while waiting on the limiter or in flight propagates
// as the context's error.
func (c *GenerateClient) Respond(ctx context.Context, prompt string) (*domain.Answer, error) {
	if err := domain.ValidateText("prompt", prompt); err != nil {
		return nil, err
	}
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	resp, err := postJSON(ctx, c.client, c.baseURL+"/api/generate", generateReq{Model: c.model, Stream: false, Prompt: prompt})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("ollama generate: %w: %w", domain.ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("ollama generate: status %d: %w", resp.StatusCode, domain.ErrUpstreamUnavailable)
	}

	var result generateResp
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("ollama generate decode: %w: %w", domain.ErrMalformedResponse, err)
	}
	if result.Response == "" && !result.Done {
		return nil, fmt.Errorf("ollama generate: empty response: %w", domain.ErrMalformedResponse)
	}

	return &domain.Answer{
		Model:      result.Model,
		CreatedAt:  result.CreatedAt,
		Response:   result.Response,
		Done:       result.Done,
		DoneReason: result.DoneReason,
		Context:    result.Context,
	}, nil
}
