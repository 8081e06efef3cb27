package chat_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/recall/pkg/model"
	"github.com/m-mizutani/recall/pkg/usecase/chat"
)

type mockLLM struct {
	completeFn func(ctx context.Context, messages []model.Message, maxTokens int, temperature float64) (string, error)
}

func (m *mockLLM) Complete(ctx context.Context, messages []model.Message, maxTokens int, temperature float64) (string, error) {
	return m.completeFn(ctx, messages, maxTokens, temperature)
}

type mockRetriever struct {
	text string
}

func (m *mockRetriever) RetrieveContext(ctx context.Context, query string) string {
	return m.text
}

type mockSchema struct {
	text string
}

func (m *mockSchema) FilteredSchema(ctx context.Context, query string) string {
	return m.text
}

type mockMemory struct {
	mu       sync.Mutex
	text     string
	recorded [][2]string
}

func (m *mockMemory) Retrieve(ctx context.Context, query string) string {
	return m.text
}

func (m *mockMemory) Record(ctx context.Context, userText, assistantText string) (*model.RecordResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recorded = append(m.recorded, [2]string{userText, assistantText})
	return &model.RecordResult{Status: model.RecordStored}, nil
}

func TestSend(t *testing.T) {
	ctx := context.Background()

	t.Run("grounds the answer and records the exchange", func(t *testing.T) {
		var got []model.Message
		llm := &mockLLM{completeFn: func(ctx context.Context, messages []model.Message, maxTokens int, temperature float64) (string, error) {
			got = messages
			return "Las ventas de marzo fueron 120.", nil
		}}
		mem := &mockMemory{text: "Relevant memories:\n1. User tracks monthly sales"}
		session := chat.New(llm,
			chat.WithKnowledge(&mockRetriever{text: "La tienda abre a las 9."}),
			chat.WithDocuments(&mockRetriever{text: "[ventas.md] Marzo: 120 unidades"}),
			chat.WithSchema(&mockSchema{text: "Database schema: 1 tables, showing 1\nventas: id integer PK"}),
			chat.WithMemory(mem),
		)

		answer, err := session.Send(ctx, "¿Cuántas ventas hubo en marzo?")
		gt.NoError(t, err)
		gt.Equal(t, answer, "Las ventas de marzo fueron 120.")

		gt.A(t, got).Length(2)
		gt.Equal(t, got[0].Role, model.RoleSystem)
		gt.S(t, got[0].Content).Contains("## Knowledge base\nLa tienda abre a las 9.")
		gt.S(t, got[0].Content).Contains("[ventas.md] Marzo: 120 unidades")
		gt.S(t, got[0].Content).Contains("ventas: id integer PK")
		gt.S(t, got[0].Content).Contains("1. User tracks monthly sales")
		gt.Equal(t, got[1].Role, model.RoleUser)

		session.Wait()
		gt.A(t, mem.recorded).Length(1)
		gt.Equal(t, mem.recorded[0][1], "Las ventas de marzo fueron 120.")

		history := session.History()
		gt.A(t, history).Length(2)
		gt.Equal(t, history[1].Role, model.RoleAssistant)
	})

	t.Run("history is sent on the next turn", func(t *testing.T) {
		var calls [][]model.Message
		llm := &mockLLM{completeFn: func(ctx context.Context, messages []model.Message, maxTokens int, temperature float64) (string, error) {
			calls = append(calls, messages)
			return "ok", nil
		}}
		session := chat.New(llm)

		_, err := session.Send(ctx, "first question")
		gt.NoError(t, err)
		_, err = session.Send(ctx, "second question")
		gt.NoError(t, err)

		gt.A(t, calls).Length(2)
		gt.A(t, calls[1]).Length(4)
		gt.Equal(t, calls[1][1].Content, "first question")
		gt.Equal(t, calls[1][3].Content, "second question")
	})

	t.Run("empty sections are omitted", func(t *testing.T) {
		var system string
		llm := &mockLLM{completeFn: func(ctx context.Context, messages []model.Message, maxTokens int, temperature float64) (string, error) {
			system = messages[0].Content
			return "hi", nil
		}}
		session := chat.New(llm, chat.WithDocuments(&mockRetriever{}))

		_, err := session.Send(ctx, "hello")
		gt.NoError(t, err)
		gt.S(t, system).NotContains("## Documents")
		gt.S(t, system).NotContains("## Database")
	})

	t.Run("llm failure keeps history and memory untouched", func(t *testing.T) {
		llm := &mockLLM{completeFn: func(ctx context.Context, messages []model.Message, maxTokens int, temperature float64) (string, error) {
			return "", goerr.New("rate limited")
		}}
		mem := &mockMemory{}
		session := chat.New(llm, chat.WithMemory(mem))

		_, err := session.Send(ctx, "hello there, how are sales going")
		gt.Error(t, err)
		session.Wait()
		gt.A(t, mem.recorded).Length(0)
		gt.A(t, session.History()).Length(0)
	})

	t.Run("no llm", func(t *testing.T) {
		session := chat.New(nil)
		_, err := session.Send(ctx, "hello")
		gt.True(t, errors.Is(err, chat.ErrNoLLM))
	})
}

func TestGather(t *testing.T) {
	ctx := context.Background()

	t.Run("no engines", func(t *testing.T) {
		c := chat.New(nil).Gather(ctx, "anything")
		gt.True(t, c.Empty())
	})

	t.Run("each engine fills its field", func(t *testing.T) {
		c := chat.New(nil,
			chat.WithKnowledge(&mockRetriever{text: "k"}),
			chat.WithDocuments(&mockRetriever{text: "d"}),
			chat.WithSchema(&mockSchema{text: "s"}),
			chat.WithMemory(&mockMemory{text: "m"}),
		).Gather(ctx, "anything")
		gt.False(t, c.Empty())
		gt.Equal(t, c.Knowledge, "k")
		gt.Equal(t, c.Documents, "d")
		gt.Equal(t, c.Schema, "s")
		gt.Equal(t, c.Memories, "m")
	})
}

func TestCompressHistory(t *testing.T) {
	ctx := context.Background()
	turn := strings.Repeat("word ", 50)
	history := []model.Message{
		{Role: model.RoleUser, Content: turn},
		{Role: model.RoleAssistant, Content: turn},
		{Role: model.RoleUser, Content: turn},
		{Role: model.RoleAssistant, Content: turn},
	}

	t.Run("oldest turns are summarized", func(t *testing.T) {
		var summarized int
		llm := &mockLLM{completeFn: func(ctx context.Context, messages []model.Message, maxTokens int, temperature float64) (string, error) {
			summarized = len(messages) - 1
			return "User asked about words.", nil
		}}

		compressed, err := chat.CompressHistoryForTest(ctx, llm, history)
		gt.NoError(t, err)
		gt.Equal(t, summarized, 3)
		gt.A(t, compressed).Length(2)
		gt.S(t, compressed[0].Content).Contains("User asked about words.")
		gt.Equal(t, compressed[1].Role, model.RoleAssistant)
	})

	t.Run("summary failure", func(t *testing.T) {
		llm := &mockLLM{completeFn: func(ctx context.Context, messages []model.Message, maxTokens int, temperature float64) (string, error) {
			return "  ", nil
		}}
		_, err := chat.CompressHistoryForTest(ctx, llm, history)
		gt.Error(t, err)
	})

	t.Run("single message cannot be compressed", func(t *testing.T) {
		llm := &mockLLM{}
		_, err := chat.CompressHistoryForTest(ctx, llm, history[:1])
		gt.Error(t, err)
	})

	t.Run("send compresses above budget", func(t *testing.T) {
		var calls int
		llm := &mockLLM{completeFn: func(ctx context.Context, messages []model.Message, maxTokens int, temperature float64) (string, error) {
			calls++
			return turn, nil
		}}
		session := chat.New(llm, chat.WithHistoryBudget(60))

		_, err := session.Send(ctx, turn)
		gt.NoError(t, err)
		gt.Equal(t, calls, 1)

		// two messages are not enough to compress
		_, err = session.Send(ctx, turn)
		gt.NoError(t, err)
		gt.Equal(t, calls, 2)

		_, err = session.Send(ctx, turn)
		gt.NoError(t, err)
		gt.Equal(t, calls, 4)
		gt.A(t, session.History()).Length(4)
		gt.S(t, session.History()[0].Content).Contains("=== Previous Conversation Summary ===")
	})
}
