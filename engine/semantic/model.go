package semantic

import "github.com/RetrivaAI/retriva/engine/domain"

// SearchResult is a single similarity hit: the stored id, the similarity
// score in [0, 1], and the raw payload for the codec to decode.
type SearchResult struct {
	ID      string
	Score   float32
	Payload domain.Payload
}

// VectorRecord is what gets upserted: a UUID, the embedding, and the
// encoded payload. Records are never mutated in place; an upsert with the
// same id replaces the previous record wholesale.
type VectorRecord struct {
	ID        string
	Embedding []float32
	Payload   domain.Payload
}
