package chat

import (
	"context"
	"sync"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/recall/pkg/adapter"
	"github.com/m-mizutani/recall/pkg/model"
	"github.com/m-mizutani/recall/pkg/utils/logging"
)

const (
	defaultMaxTokens     = 1024
	defaultTemperature   = 0.3
	defaultHistoryBudget = 6000
)

// ErrNoLLM is returned by Send when the session has no LLM backend
var ErrNoLLM = goerr.New("no LLM backend is configured")

// Retriever returns formatted context for a query, or "" when nothing matches
type Retriever interface {
	RetrieveContext(ctx context.Context, query string) string
}

type MemoryEngine interface {
	Retrieve(ctx context.Context, query string) string
	Record(ctx context.Context, userText, assistantText string) (*model.RecordResult, error)
}

type SchemaEngine interface {
	FilteredSchema(ctx context.Context, query string) string
}

// Session holds one conversation grounded on the retrieval engines
type Session struct {
	llm       adapter.LLM
	documents Retriever
	knowledge Retriever
	memory    MemoryEngine
	schema    SchemaEngine

	mu            sync.Mutex
	history       []model.Message
	historyBudget int
	maxTokens     int
	temperature   float64

	records sync.WaitGroup
}

type Option func(*Session)

func WithDocuments(r Retriever) Option {
	return func(s *Session) {
		s.documents = r
	}
}

func WithKnowledge(r Retriever) Option {
	return func(s *Session) {
		s.knowledge = r
	}
}

func WithMemory(m MemoryEngine) Option {
	return func(s *Session) {
		s.memory = m
	}
}

func WithSchema(e SchemaEngine) Option {
	return func(s *Session) {
		s.schema = e
	}
}

// WithHistoryBudget sets the token count above which older turns are
// summarized
func WithHistoryBudget(tokens int) Option {
	return func(s *Session) {
		s.historyBudget = tokens
	}
}

func WithMaxTokens(n int) Option {
	return func(s *Session) {
		s.maxTokens = n
	}
}

// New creates a session. llm may be nil when the session only gathers context.
func New(llm adapter.LLM, opts ...Option) *Session {
	s := &Session{
		llm:           llm,
		historyBudget: defaultHistoryBudget,
		maxTokens:     defaultMaxTokens,
		temperature:   defaultTemperature,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// History returns a copy of the conversation so far
func (s *Session) History() []model.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Message(nil), s.history...)
}

// Send answers message with the context of every engine. The exchange is
// offered to episodic memory in the background; Wait blocks until those
// offers are done.
func (s *Session) Send(ctx context.Context, message string) (string, error) {
	if s.llm == nil {
		return "", ErrNoLLM
	}
	logger := logging.From(ctx)

	system, err := s.Gather(ctx, message).Prompt()
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	history := append([]model.Message(nil), s.history...)
	s.mu.Unlock()

	if historyTokens(history) > s.historyBudget {
		compressed, err := compressHistory(ctx, s.llm, history)
		if err != nil {
			logger.Warn("failed to compress history", "error", err)
		} else {
			history = compressed
		}
	}

	messages := make([]model.Message, 0, len(history)+2)
	messages = append(messages, model.Message{Role: model.RoleSystem, Content: system})
	messages = append(messages, history...)
	messages = append(messages, model.Message{Role: model.RoleUser, Content: message})

	answer, err := s.llm.Complete(ctx, messages, s.maxTokens, s.temperature)
	if err != nil {
		return "", goerr.Wrap(err, "failed to complete chat")
	}

	history = append(history,
		model.Message{Role: model.RoleUser, Content: message},
		model.Message{Role: model.RoleAssistant, Content: answer},
	)
	s.mu.Lock()
	s.history = history
	s.mu.Unlock()

	if s.memory != nil {
		s.records.Add(1)
		go func() {
			defer s.records.Done()
			s.record(context.WithoutCancel(ctx), message, answer)
		}()
	}

	return answer, nil
}

func (s *Session) record(ctx context.Context, userText, assistantText string) {
	result, err := s.memory.Record(ctx, userText, assistantText)
	if err != nil {
		logging.From(ctx).Warn("failed to record memory", "error", err)
		return
	}
	logging.From(ctx).Debug("exchange offered to memory", "status", result.Status)
}

// Wait blocks until background memory records finish
func (s *Session) Wait() {
	s.records.Wait()
}
