// Package main implements the Retriva API server: document search and
// data-query resolution over a vector store, with optional language-model
// augmentation.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/RetrivaAI/retriva/engine/domain"
	"github.com/RetrivaAI/retriva/engine/query"
	"github.com/RetrivaAI/retriva/engine/semantic"
	"github.com/RetrivaAI/retriva/engine/timeseries"
	"github.com/RetrivaAI/retriva/pkg/metrics"
	"github.com/RetrivaAI/retriva/pkg/mid"
	"github.com/RetrivaAI/retriva/pkg/ollama"
	"github.com/RetrivaAI/retriva/pkg/resilience"
)

// Config holds all environment-based configuration.
type Config struct {
	Port           string
	OllamaURL      string
	EmbedModel     string
	ResponseModel  string
	QdrantURL      string
	Collection     string
	VectorDims     int
	InfluxURL      string
	InfluxToken    string
	InfluxOrg      string
	NATSURL        string
	CORSOrigin     string
	AugmentWorkers int
	GenerateRate   float64
	GenerateBurst  int
}

func loadConfig() Config {
	return Config{
		Port:           envOr("PORT", "8080"),
		OllamaURL:      envOr("OLLAMA_URL", "http://localhost:11434"),
		EmbedModel:     envOr("EMBED_MODEL", "mxbai-embed-large"),
		ResponseModel:  envOr("RESPONSE_MODEL", "llama3"),
		QdrantURL:      envOr("QDRANT_URL", "localhost:6334"),
		Collection:     envOr("QDRANT_COLLECTION", "retriva"),
		VectorDims:     envIntOr("VECTOR_DIMS", 1024),
		InfluxURL:      envOr("INFLUX_URL", "http://localhost:8086"),
		InfluxToken:    envOr("INFLUX_TOKEN", ""),
		InfluxOrg:      envOr("INFLUX_ORG", "retriva"),
		NATSURL:        os.Getenv("NATS_URL"),
		CORSOrigin:     envOr("CORS_ORIGIN", "*"),
		AugmentWorkers: envIntOr("SEARCH_AUGMENT_WORKERS", query.DefaultAugmentWorkers),
		GenerateRate:   envFloatOr("GENERATE_RATE", 4),
		GenerateBurst:  envIntOr("GENERATE_BURST", 4),
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envFloatOr(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg := loadConfig()

	if err := run(cfg, logger); err != nil {
		logger.Error("server exited with error", "err", err)
		os.Exit(1)
	}
}

// breakerResponder shields the model endpoint behind a circuit breaker.
type breakerResponder struct {
	inner   query.Responder
	breaker *resilience.Breaker
}

func (b *breakerResponder) Respond(ctx context.Context, prompt string) (*domain.Answer, error) {
	var answer *domain.Answer
	err := b.breaker.Do(ctx, func(ctx context.Context) error {
		var err error
		answer, err = b.inner.Respond(ctx, prompt)
		return err
	})
	return answer, err
}

func run(cfg Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Connect to Qdrant ---
	vectorStore, err := semantic.New(cfg.QdrantURL, cfg.Collection)
	if err != nil {
		return fmt.Errorf("qdrant connect: %w", err)
	}
	defer vectorStore.Close()

	// --- Connect to InfluxDB ---
	influx := timeseries.New(cfg.InfluxURL, cfg.InfluxToken, cfg.InfluxOrg)
	defer influx.Close()

	// --- Model clients ---
	embedder := ollama.NewEmbedClient(cfg.OllamaURL, cfg.EmbedModel)
	generator := ollama.NewGenerateClient(cfg.OllamaURL, cfg.ResponseModel).
		WithLimiter(cfg.GenerateRate, cfg.GenerateBurst)

	// --- Optional NATS ---
	var nc *nats.Conn
	if cfg.NATSURL != "" {
		nc, err = nats.Connect(cfg.NATSURL)
		if err != nil {
			return fmt.Errorf("nats connect: %w", err)
		}
		defer nc.Close()
	}

	orch := query.New(embedder, vectorStore, query.Options{AugmentWorkers: cfg.AugmentWorkers}, logger)

	srv := &server{
		orch: orch,
		ts:   influx,
		responder: &breakerResponder{
			inner:   generator,
			breaker: resilience.NewBreaker(resilience.DefaultBreakerOpts),
		},
		nc:     nc,
		logger: logger,
		reg:    metrics.NewRegistry(),
	}

	handler := mid.Chain(srv.routes(),
		mid.Recover(logger),
		mid.Logger(logger),
		mid.CORS(cfg.CORSOrigin),
		mid.Trace("retriva-api"),
	)

	httpSrv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Initialization runs alongside the listener; /api/ready flips to 200
	// only once the models are pulled and the collection exists. No
	// constructor blocks on network I/O.
	go func() {
		initCtx, cancel := context.WithTimeout(ctx, 10*time.Minute)
		defer cancel()
		if err := initialize(initCtx, cfg, embedder, generator, vectorStore, logger); err != nil {
			logger.Error("initialization failed", "err", err)
			stop()
			return
		}
		srv.ready.Store(true)
		logger.Info("service ready")
	}()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("api server starting", "port", cfg.Port)
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpSrv.Shutdown(shutCtx)
}

// initialize pulls both models and ensures the collection exists.
func initialize(ctx context.Context, cfg Config, embedder *ollama.EmbedClient, generator *ollama.GenerateClient, store *semantic.VectorStore, logger *slog.Logger) error {
	logger.Info("pulling embedding model", "model", cfg.EmbedModel)
	if err := embedder.Preload(ctx); err != nil {
		return fmt.Errorf("preload embed model: %w", err)
	}
	logger.Info("pulling response model", "model", cfg.ResponseModel)
	if err := generator.Preload(ctx); err != nil {
		return fmt.Errorf("preload response model: %w", err)
	}
	if err := store.EnsureCollection(ctx, cfg.VectorDims); err != nil {
		return fmt.Errorf("ensure collection: %w", err)
	}
	return nil
}
