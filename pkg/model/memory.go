package model

import (
	"time"

	"github.com/google/uuid"
)

type MemoryID string

// NewMemoryID generates a new unique MemoryID
func NewMemoryID() MemoryID {
	return MemoryID(uuid.New().String())
}

// MemoryEntry is a summarized chat exchange kept by the episodic memory engine
type MemoryEntry struct {
	ID             MemoryID  `json:"id"`
	Summary        string    `json:"summary"`
	Embedding      []float32 `json:"embedding"`
	TimestampMs    int64     `json:"timestamp"`
	RetrievalCount int       `json:"retrievalCount"`
}

// HasEmbedding reports whether the entry has been embedded
func (e *MemoryEntry) HasEmbedding() bool {
	return len(e.Embedding) > 0
}

// Time returns the creation time of the entry
func (e *MemoryEntry) Time() time.Time {
	return time.UnixMilli(e.TimestampMs)
}

// Copy returns a deep copy of the entry
func (e *MemoryEntry) Copy() *MemoryEntry {
	c := *e
	if e.Embedding != nil {
		c.Embedding = append([]float32(nil), e.Embedding...)
	}
	return &c
}

// MemorySnapshot is the persisted form of the memory store. Model tags the
// embedding model the entries were embedded with.
type MemorySnapshot struct {
	Model   string         `json:"model"`
	Entries []*MemoryEntry `json:"entries"`
}

type RecordStatus string

const (
	RecordStored         RecordStatus = "stored"
	RecordTooShort       RecordStatus = "too_short"
	RecordTrivial        RecordStatus = "trivial"
	RecordDeniedByPolicy RecordStatus = "denied_by_policy"
	RecordDuplicate      RecordStatus = "duplicate"
)

// RecordResult is the outcome of offering a chat exchange to the memory engine
type RecordResult struct {
	Status RecordStatus
	Entry  *MemoryEntry
}
