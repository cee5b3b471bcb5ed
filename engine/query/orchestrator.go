// Package query orchestrates the retrieval-augmented pipelines. It embeds
// free text, searches the vector store with score-threshold filtering,
// decodes payloads into their typed variants, and optionally augments
// results with a language model; for data queries it resolves the stored
// template against the time-series store first.
package query

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/RetrivaAI/retriva/engine/domain"
	"github.com/RetrivaAI/retriva/engine/semantic"
	"github.com/RetrivaAI/retriva/engine/timeseries"
	"github.com/RetrivaAI/retriva/pkg/fn"
)

// Embedder turns text into a fixed-length embedding.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Responder turns a prompt into a natural-language answer.
type Responder interface {
	Respond(ctx context.Context, prompt string) (*domain.Answer, error)
}

// Store abstracts the vector store operations the orchestrator needs.
type Store interface {
	Upsert(ctx context.Context, rec semantic.VectorRecord) error
	Search(ctx context.Context, vector []float32, limit int, minScore float32) ([]semantic.SearchResult, error)
	Count(ctx context.Context) (uint64, error)
}

// TimeSeries executes an opaque query string and returns raw rows.
type TimeSeries interface {
	Query(ctx context.Context, flux string) ([]timeseries.Row, error)
}

// Augmenter is the explicit optional responder dependency. The zero value
// means "no augmentation"; the skip branch is a first-class path, not a nil
// check buried in the pipeline.
type Augmenter struct {
	responder Responder
}

// WithResponder returns an Augmenter that generates answers via r.
func WithResponder(r Responder) Augmenter {
	return Augmenter{responder: r}
}

// NoAugment returns an Augmenter that skips answer generation.
func NoAugment() Augmenter {
	return Augmenter{}
}

// Enabled reports whether answers will be generated.
func (a Augmenter) Enabled() bool { return a.responder != nil }

func (a Augmenter) respond(ctx context.Context, prompt string) (*domain.Answer, error) {
	if a.responder == nil {
		return nil, nil
	}
	return a.responder.Respond(ctx, prompt)
}

// Options configures pipeline behaviour.
type Options struct {
	// AugmentWorkers bounds concurrent responder calls during search
	// fan-out. Zero means DefaultAugmentWorkers.
	AugmentWorkers int
}

// DefaultAugmentWorkers is the fan-out bound when none is configured.
const DefaultAugmentWorkers = 4

// Orchestrator composes the embedding provider, vector store, and optional
// collaborators into the three use cases. It holds no per-request state.
type Orchestrator struct {
	embed   Embedder
	store   Store
	workers int
	logger  *slog.Logger
}

// New creates an Orchestrator.
func New(embed Embedder, store Store, opts Options, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	workers := opts.AugmentWorkers
	if workers <= 0 {
		workers = DefaultAugmentWorkers
	}
	return &Orchestrator{
		embed:   embed,
		store:   store,
		workers: workers,
		logger:  logger,
	}
}

// AddDocument embeds the payload's document text and upserts it under id.
// Validation failures are returned before any outbound call.
func (o *Orchestrator) AddDocument(ctx context.Context, id string, p domain.DocumentPayload) error {
	if err := domain.ValidateText("id", id); err != nil {
		return err
	}
	if err := domain.ValidateText("document", p.Document); err != nil {
		return err
	}
	return o.add(ctx, id, p.Document, domain.EncodeDocument(p))
}

// AddDataQuery embeds the record's document text and upserts it under id.
// The query template is required.
func (o *Orchestrator) AddDataQuery(ctx context.Context, id string, p domain.DataQueryPayload) error {
	if err := domain.ValidateText("id", id); err != nil {
		return err
	}
	if err := domain.ValidateText("document", p.Document); err != nil {
		return err
	}
	if err := domain.ValidateText("query", p.Query); err != nil {
		return err
	}
	return o.add(ctx, id, p.Document, domain.EncodeDataQuery(p))
}

func (o *Orchestrator) add(ctx context.Context, id, text string, payload domain.Payload) error {
	embedding, err := o.embed.Embed(ctx, text)
	if err != nil {
		return fmt.Errorf("query: embed document: %w", err)
	}
	if err := o.store.Upsert(ctx, semantic.VectorRecord{ID: id, Embedding: embedding, Payload: payload}); err != nil {
		return fmt.Errorf("query: upsert %s: %w", id, err)
	}
	o.logger.Debug("document stored", "id", id, "dims", len(embedding))
	return nil
}

// SearchDocuments embeds queryText, searches the store, decodes each hit
// into the document variant, and optionally generates one answer per hit.
// Responder calls run concurrently under the configured bound; the returned
// slice preserves the store's score-descending order. A payload that fails
// to decode fails the whole call; it is never silently skipped.
func (o *Orchestrator) SearchDocuments(ctx context.Context, aug Augmenter, queryText string, minScore float32, maxResults int) ([]domain.SearchResponse, error) {
	if err := domain.ValidateText("searchString", queryText); err != nil {
		return nil, err
	}
	if err := domain.ValidateScore(minScore); err != nil {
		return nil, err
	}
	if err := domain.ValidateLimit(maxResults); err != nil {
		return nil, err
	}

	embedding, err := o.embed.Embed(ctx, queryText)
	if err != nil {
		return nil, fmt.Errorf("query: embed search string: %w", err)
	}

	o.logTotal(ctx)

	hits, err := o.store.Search(ctx, embedding, maxResults, minScore)
	if err != nil {
		return nil, fmt.Errorf("query: search: %w", err)
	}

	type decoded struct {
		hit     semantic.SearchResult
		payload domain.DocumentPayload
	}
	items := make([]decoded, len(hits))
	for i, hit := range hits {
		p, err := domain.DecodeDocument(hit.Payload)
		if err != nil {
			return nil, fmt.Errorf("query: decode result %s: %w", hit.ID, err)
		}
		items[i] = decoded{hit: hit, payload: p}
	}

	results := fn.ParMapResult(ctx, items, o.workers, func(ctx context.Context, d decoded) fn.Result[domain.SearchResponse] {
		answer, err := aug.respond(ctx, documentPrompt(d.payload, queryText))
		if err != nil {
			return fn.Err[domain.SearchResponse](fmt.Errorf("query: respond for %s: %w", d.hit.ID, err))
		}
		return fn.Ok(domain.SearchResponse{
			Vector: domain.VectorMatch{ID: d.hit.ID, Score: d.hit.Score, Text: d.payload.Document},
			Answer: answer,
		})
	})

	responses, err := fn.Collect(results).Unwrap()
	if err != nil {
		return nil, err
	}
	return responses, nil
}

// AnswerDataQuery embeds queryText and retrieves the single best-matching
// stored query template (only the top hit can hold the template for this
// question). Zero hits is a legitimate outcome returned as (nil, nil). The
// template is executed against ts and the rows optionally summarized.
func (o *Orchestrator) AnswerDataQuery(ctx context.Context, aug Augmenter, ts TimeSeries, queryText string, minScore float32) (*domain.DataQueryResponse, error) {
	if err := domain.ValidateText("queryString", queryText); err != nil {
		return nil, err
	}
	if err := domain.ValidateScore(minScore); err != nil {
		return nil, err
	}

	embedding, err := o.embed.Embed(ctx, queryText)
	if err != nil {
		return nil, fmt.Errorf("query: embed query string: %w", err)
	}

	o.logTotal(ctx)

	hits, err := o.store.Search(ctx, embedding, 1, minScore)
	if err != nil {
		return nil, fmt.Errorf("query: search: %w", err)
	}
	if len(hits) == 0 {
		o.logger.Debug("no stored query template matched", "query", queryText, "min_score", minScore)
		return nil, nil
	}

	hit := hits[0]
	p, err := domain.DecodeDataQuery(hit.Payload)
	if err != nil {
		return nil, fmt.Errorf("query: decode template %s: %w", hit.ID, err)
	}

	rows, err := ts.Query(ctx, p.Query)
	if err != nil {
		return nil, fmt.Errorf("query: execute template %s: %w", hit.ID, err)
	}

	answer, err := aug.respond(ctx, dataPrompt(rows, queryText))
	if err != nil {
		return nil, fmt.Errorf("query: respond for %s: %w", hit.ID, err)
	}

	return &domain.DataQueryResponse{
		Vector: domain.VectorMatch{ID: hit.ID, Score: hit.Score, Text: p.Document},
		Rows:   rows,
		Answer: answer,
	}, nil
}

// logTotal reports the collection size. Observability only: a count failure
// never fails the pipeline.
func (o *Orchestrator) logTotal(ctx context.Context) {
	total, err := o.store.Count(ctx)
	if err != nil {
		o.logger.Warn("count failed, continuing", "err", err)
		return
	}
	o.logger.Debug("collection size", "total", total)
}
