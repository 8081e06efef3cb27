package chat

import (
	"context"
	_ "embed"
	"strings"
	"sync"
	"text/template"

	"github.com/m-mizutani/goerr/v2"
)

//go:embed prompt/system.md
var systemPromptRaw string

var systemPromptTmpl = template.Must(template.New("system").Parse(systemPromptRaw))

// Context is the retrieved context of one user message, one field per engine
type Context struct {
	Knowledge string
	Documents string
	Schema    string
	Memories  string
}

// Empty reports whether no engine returned context
func (c *Context) Empty() bool {
	return c.Knowledge == "" && c.Documents == "" && c.Schema == "" && c.Memories == ""
}

// Prompt renders the system prompt carrying the context
func (c *Context) Prompt() (string, error) {
	var b strings.Builder
	if err := systemPromptTmpl.Execute(&b, c); err != nil {
		return "", goerr.Wrap(err, "failed to render system prompt")
	}
	return b.String(), nil
}

// Gather queries the configured engines concurrently
func (s *Session) Gather(ctx context.Context, query string) *Context {
	var (
		result Context
		wg     sync.WaitGroup
	)

	run := func(dst *string, fn func() string) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			*dst = fn()
		}()
	}

	if s.knowledge != nil {
		run(&result.Knowledge, func() string { return s.knowledge.RetrieveContext(ctx, query) })
	}
	if s.documents != nil {
		run(&result.Documents, func() string { return s.documents.RetrieveContext(ctx, query) })
	}
	if s.schema != nil {
		run(&result.Schema, func() string { return s.schema.FilteredSchema(ctx, query) })
	}
	if s.memory != nil {
		run(&result.Memories, func() string { return s.memory.Retrieve(ctx, query) })
	}

	wg.Wait()
	return &result
}
