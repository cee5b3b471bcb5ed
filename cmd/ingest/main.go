// Command ingest bulk-loads a JSON file of documents or data-query
// records into the vector store via the query orchestrator.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/RetrivaAI/retriva/engine/domain"
	"github.com/RetrivaAI/retriva/engine/query"
	"github.com/RetrivaAI/retriva/engine/semantic"
	"github.com/RetrivaAI/retriva/pkg/ollama"
	"github.com/google/uuid"
)

func main() {
	var (
		file       = flag.String("file", "", "JSON file to load (required)")
		kind       = flag.String("kind", "doc", "record kind: doc or query")
		ollamaURL  = flag.String("ollama", "http://localhost:11434", "Ollama base URL")
		embedModel = flag.String("model", "mxbai-embed-large", "Ollama embedding model")
		qdrantAddr = flag.String("qdrant", "localhost:6334", "Qdrant gRPC address")
		collection = flag.String("collection", "retriva", "Qdrant collection name")
		vectorDims = flag.Int("dims", 1024, "embedding dimensions")
		timeout    = flag.Duration("timeout", 10*time.Minute, "overall run timeout")
	)
	flag.Parse()

	log := slog.Default()
	if *file == "" {
		log.Error("missing -file")
		os.Exit(2)
	}
	if *kind != "doc" && *kind != "query" {
		log.Error("invalid -kind, want doc or query", "kind", *kind)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	vs, err := semantic.New(*qdrantAddr, *collection)
	if err != nil {
		log.Error("qdrant connect failed", "error", err)
		os.Exit(1)
	}
	defer vs.Close()
	if err := vs.EnsureCollection(ctx, *vectorDims); err != nil {
		log.Error("qdrant ensure collection failed", "error", err)
		os.Exit(1)
	}
	log.Info("connected to Qdrant", "collection", *collection, "dims", *vectorDims)

	embedder := ollama.NewEmbedClient(*ollamaURL, *embedModel)
	if err := embedder.Preload(ctx); err != nil {
		log.Error("embedding model pull failed", "model", *embedModel, "error", err)
		os.Exit(1)
	}
	log.Info("using Ollama embeddings", "model", *embedModel)

	orch := query.New(embedder, vs, query.Options{}, log)

	var count, errs int
	switch *kind {
	case "doc":
		count, errs = loadDocuments(ctx, log, orch, *file)
	case "query":
		count, errs = loadDataQueries(ctx, log, orch, *file)
	}
	log.Info("done", "kind", *kind, "ingested", count, "errors", errs)
	if errs > 0 {
		os.Exit(1)
	}
}

func loadDocuments(ctx context.Context, log *slog.Logger, orch *query.Orchestrator, path string) (int, int) {
	var records []domain.DocumentPayload
	if err := readRecords(path, &records); err != nil {
		log.Error("read failed", "file", path, "error", err)
		return 0, 1
	}
	count, errs := 0, 0
	for _, rec := range records {
		if ctx.Err() != nil {
			break
		}
		id := uuid.NewString()
		if err := orch.AddDocument(ctx, id, rec); err != nil {
			log.Error("add document failed", "error", err)
			errs++
			continue
		}
		count++
	}
	return count, errs
}

func loadDataQueries(ctx context.Context, log *slog.Logger, orch *query.Orchestrator, path string) (int, int) {
	var records []domain.DataQueryPayload
	if err := readRecords(path, &records); err != nil {
		log.Error("read failed", "file", path, "error", err)
		return 0, 1
	}
	count, errs := 0, 0
	for _, rec := range records {
		if ctx.Err() != nil {
			break
		}
		id := uuid.NewString()
		if err := orch.AddDataQuery(ctx, id, rec); err != nil {
			log.Error("add data query failed", "error", err)
			errs++
			continue
		}
		count++
	}
	return count, errs
}

func readRecords(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}
