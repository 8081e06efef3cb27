package model

import "time"

// Chunk is a bounded slice of a source document
type Chunk struct {
	Content  string `json:"content"`
	SourceID string `json:"sourceId"`
}

// VectorEntry is an embedded chunk owned by the vector retrieval engine
type VectorEntry struct {
	Content   string    `json:"content"`
	Embedding []float32 `json:"embedding"`
	Source    string    `json:"source"`
}

// VectorSnapshot is the persisted corpus index. Files maps each indexed
// file name to its modification time in milliseconds.
type VectorSnapshot struct {
	Model     string           `json:"model"`
	Files     map[string]int64 `json:"files"`
	Entries   []*VectorEntry   `json:"entries"`
	IndexedAt time.Time        `json:"indexedAt"`
}
