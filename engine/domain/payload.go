// Package domain holds the typed payload variants stored alongside vectors,
// the explicit codec between those variants and the store's key/value payload
// representation, and the error taxonomy shared across the engine.
package domain

import "time"

// Wire-level payload keys. Lower-case on both encode and decode.
const (
	KeyDocument = "document"
	KeyTags     = "tags"
	KeyFileName = "filename"
	KeyPage     = "page"
	KeyQuery    = "query"
)

// DocumentPayload is a free-text knowledge-base entry. Document is required;
// everything else is optional and omitted from the wire form when empty.
type DocumentPayload struct {
	Document string `json:"document"`
	Tags     string `json:"tags,omitempty"`
	FileName string `json:"filename,omitempty"`
	Page     string `json:"page,omitempty"`
}

// DataQueryPayload stores a time-series query template rather than prose.
// Document (the text matched by similarity search) and Query are required.
type DataQueryPayload struct {
	Document string `json:"document"`
	Tags     string `json:"tags,omitempty"`
	Query    string `json:"query"`
}

// DocumentText returns the text that gets embedded for this payload.
func (p DocumentPayload) DocumentText() string { return p.Document }

// DocumentText returns the text that gets embedded for this payload.
func (p DataQueryPayload) DocumentText() string { return p.Document }

// Answer is the natural-language output of a responder model. Present only
// when augmentation was requested and succeeded.
type Answer struct {
	Model      string    `json:"model"`
	CreatedAt  time.Time `json:"created_at"`
	Response   string    `json:"response"`
	Done       bool      `json:"done"`
	DoneReason string    `json:"done_reason"`
	Context    []int     `json:"context,omitempty"`
}

// VectorMatch is the store-side half of a response: one similarity hit.
type VectorMatch struct {
	ID    string  `json:"id"`
	Score float32 `json:"score"`
	Text  string  `json:"text"`
}

// SearchResponse pairs a vector hit with its optional generated answer.
type SearchResponse struct {
	Vector VectorMatch `json:"vector"`
	Answer *Answer     `json:"answer,omitempty"`
}

// DataQueryResponse is the combined outcome of a resolved data query: the
// matched template, the raw time-series rows, and the optional answer.
type DataQueryResponse struct {
	Vector VectorMatch      `json:"vector"`
	Rows   []map[string]any `json:"rows"`
	Answer *Answer          `json:"answer,omitempty"`
}
