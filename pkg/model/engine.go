package model

import "time"

// EngineState is the lifecycle state shared by the retrieval engines
type EngineState string

const (
	StateUninitialized EngineState = "uninitialized"
	StateConnecting    EngineState = "connecting"
	StateAvailable     EngineState = "available"
	StateUnavailable   EngineState = "unavailable"
	StateIndexing      EngineState = "indexing"
	StateRefreshing    EngineState = "refreshing"
)

// EngineStatus is reported by every engine to its callers
type EngineStatus struct {
	State           EngineState `json:"state"`
	Entries         int         `json:"entries"`
	Files           int         `json:"files,omitempty"`
	LastRefreshedAt time.Time   `json:"lastRefreshedAt,omitzero"`
}

type RunStatus string

const (
	RunCompleted      RunStatus = "completed"
	RunCached         RunStatus = "cached"
	RunAlreadyRunning RunStatus = "already_running"
	RunFailed         RunStatus = "failed"
)

// RunResult is the outcome of an index or refresh pass
type RunResult struct {
	Status  RunStatus `json:"status"`
	Files   int       `json:"files"`
	Entries int       `json:"entries"`
}

// ProbeResult is the answer of an embedding backend health probe
type ProbeResult struct {
	Available    bool
	ModelPresent bool
}

// OK reports whether the backend can serve the configured model
func (p *ProbeResult) OK() bool {
	return p != nil && p.Available && p.ModelPresent
}

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn passed to an LLM backend
type Message struct {
	Role    Role
	Content string
}
