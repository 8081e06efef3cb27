package mcp

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/recall/pkg/model"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const noContext = "No relevant context found."

// Retriever returns formatted context for a query, or "" when nothing matches
type Retriever interface {
	RetrieveContext(ctx context.Context, query string) string
}

// MemoryEngine is the subset of the episodic memory engine exposed as tools
type MemoryEngine interface {
	Retrieve(ctx context.Context, query string) string
	Record(ctx context.Context, userText, assistantText string) (*model.RecordResult, error)
	Forget(ctx context.Context, keyword string) int
}

// SchemaEngine renders the tables relevant to a query
type SchemaEngine interface {
	FilteredSchema(ctx context.Context, query string) string
}

// StatusReporter is implemented by every engine
type StatusReporter interface {
	Status() model.EngineStatus
}

// Server exposes the retrieval engines as MCP tools
type Server struct {
	server    *mcp.Server
	documents Retriever
	knowledge Retriever
	memory    MemoryEngine
	schema    SchemaEngine
	statuses  map[string]StatusReporter
}

type Option func(*Server)

func WithDocuments(r Retriever) Option {
	return func(s *Server) {
		s.documents = r
		s.addStatus("documents", r)
	}
}

func WithKnowledge(r Retriever) Option {
	return func(s *Server) {
		s.knowledge = r
		s.addStatus("knowledge", r)
	}
}

func WithMemory(m MemoryEngine) Option {
	return func(s *Server) {
		s.memory = m
		s.addStatus("memory", m)
	}
}

func WithSchema(e SchemaEngine) Option {
	return func(s *Server) {
		s.schema = e
		s.addStatus("schema", e)
	}
}

func (s *Server) addStatus(name string, v any) {
	if r, ok := v.(StatusReporter); ok {
		s.statuses[name] = r
	}
}

type queryInput struct {
	Query string `json:"query"`
}

type keywordInput struct {
	Keyword string `json:"keyword"`
}

type exchangeInput struct {
	User      string `json:"user"`
	Assistant string `json:"assistant"`
}

func stringProperty(desc string) *jsonschema.Schema {
	return &jsonschema.Schema{Type: "string", Description: desc}
}

func objectSchema(required []string, props map[string]*jsonschema.Schema) *jsonschema.Schema {
	return &jsonschema.Schema{
		Type:       "object",
		Properties: props,
		Required:   required,
	}
}

var querySchema = objectSchema([]string{"query"}, map[string]*jsonschema.Schema{
	"query": stringProperty("Natural language question or search phrase"),
})

// NewServer creates an MCP server with one tool per configured engine
func NewServer(version string, opts ...Option) *Server {
	s := &Server{
		server: mcp.NewServer(&mcp.Implementation{
			Name:    "recall",
			Version: version,
		}, nil),
		statuses: make(map[string]StatusReporter),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.documents != nil {
		mcp.AddTool(s.server, &mcp.Tool{
			Name:        "search_documents",
			Description: "Search the indexed document folder by semantic similarity",
			InputSchema: querySchema,
		}, s.searchDocuments)
	}
	if s.knowledge != nil {
		mcp.AddTool(s.server, &mcp.Tool{
			Name:        "search_knowledge",
			Description: "Search the knowledge base text by keyword overlap",
			InputSchema: querySchema,
		}, s.searchKnowledge)
	}
	if s.memory != nil {
		mcp.AddTool(s.server, &mcp.Tool{
			Name:        "search_memories",
			Description: "Recall summaries of past conversations related to the query",
			InputSchema: querySchema,
		}, s.searchMemories)
		mcp.AddTool(s.server, &mcp.Tool{
			Name:        "record_memory",
			Description: "Offer a finished user/assistant exchange to episodic memory",
			InputSchema: objectSchema([]string{"user", "assistant"}, map[string]*jsonschema.Schema{
				"user":      stringProperty("User message"),
				"assistant": stringProperty("Assistant reply"),
			}),
		}, s.recordMemory)
		mcp.AddTool(s.server, &mcp.Tool{
			Name:        "forget_memories",
			Description: "Delete every memory whose summary contains the keyword",
			InputSchema: objectSchema([]string{"keyword"}, map[string]*jsonschema.Schema{
				"keyword": stringProperty("Case-insensitive keyword"),
			}),
		}, s.forgetMemories)
	}
	if s.schema != nil {
		mcp.AddTool(s.server, &mcp.Tool{
			Name:        "get_schema",
			Description: "Describe the database tables relevant to a question",
			InputSchema: querySchema,
		}, s.getSchema)
	}
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "engine_status",
		Description: "Report the state of every retrieval engine",
		InputSchema: &jsonschema.Schema{Type: "object"},
	}, s.engineStatus)

	return s
}

func textResult(text string) *mcp.CallToolResult {
	if text == "" {
		text = noContext
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}
}

func (s *Server) searchDocuments(ctx context.Context, req *mcp.CallToolRequest, in queryInput) (*mcp.CallToolResult, any, error) {
	return textResult(s.documents.RetrieveContext(ctx, in.Query)), nil, nil
}

func (s *Server) searchKnowledge(ctx context.Context, req *mcp.CallToolRequest, in queryInput) (*mcp.CallToolResult, any, error) {
	return textResult(s.knowledge.RetrieveContext(ctx, in.Query)), nil, nil
}

func (s *Server) searchMemories(ctx context.Context, req *mcp.CallToolRequest, in queryInput) (*mcp.CallToolResult, any, error) {
	return textResult(s.memory.Retrieve(ctx, in.Query)), nil, nil
}

func (s *Server) getSchema(ctx context.Context, req *mcp.CallToolRequest, in queryInput) (*mcp.CallToolResult, any, error) {
	return textResult(s.schema.FilteredSchema(ctx, in.Query)), nil, nil
}

func (s *Server) recordMemory(ctx context.Context, req *mcp.CallToolRequest, in exchangeInput) (*mcp.CallToolResult, any, error) {
	result, err := s.memory.Record(ctx, in.User, in.Assistant)
	if err != nil {
		return nil, nil, goerr.Wrap(err, "failed to record memory")
	}
	return textResult(string(result.Status)), nil, nil
}

func (s *Server) forgetMemories(ctx context.Context, req *mcp.CallToolRequest, in keywordInput) (*mcp.CallToolResult, any, error) {
	n := s.memory.Forget(ctx, in.Keyword)
	raw, err := json.Marshal(map[string]int{"removed": n})
	if err != nil {
		return nil, nil, goerr.Wrap(err, "failed to marshal result")
	}
	return textResult(string(raw)), nil, nil
}

func (s *Server) engineStatus(ctx context.Context, req *mcp.CallToolRequest, in map[string]any) (*mcp.CallToolResult, any, error) {
	statuses := make(map[string]model.EngineStatus, len(s.statuses))
	for name, r := range s.statuses {
		statuses[name] = r.Status()
	}
	raw, err := json.Marshal(statuses)
	if err != nil {
		return nil, nil, goerr.Wrap(err, "failed to marshal status")
	}
	return textResult(string(raw)), nil, nil
}

// MCPServer returns the underlying SDK server
func (s *Server) MCPServer() *mcp.Server {
	return s.server
}

// RunStdio serves over stdin/stdout until the client disconnects or ctx is done
func (s *Server) RunStdio(ctx context.Context) error {
	if err := s.server.Run(ctx, &mcp.StdioTransport{}); err != nil {
		return goerr.Wrap(err, "mcp stdio server stopped")
	}
	return nil
}

// Handler returns a streamable HTTP handler serving this server
func (s *Server) Handler() http.Handler {
	return mcp.NewStreamableHTTPHandler(func(r *http.Request) *mcp.Server {
		return s.server
	}, nil)
}
