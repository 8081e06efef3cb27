package memory

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/recall/pkg/utils/logging"
	"github.com/open-policy-agent/opa/v1/rego"
	"github.com/open-policy-agent/opa/v1/topdown/print"
)

const policyQuery = "data.memory.deny"

// Policy vetoes exchanges with Rego rules. A rule set named deny in package
// memory receives {"user": ..., "assistant": ...} as input; any element in
// the set denies the exchange.
type Policy struct {
	query *rego.PreparedEvalQuery
}

type regoPrintHook struct{}

func (h *regoPrintHook) Print(ctx print.Context, message string) error {
	logging.Default().Debug("rego print", "message", message)
	return nil
}

// LoadPolicy reads all .rego files of policyDir. It returns nil when the
// directory has no policy file.
func LoadPolicy(ctx context.Context, policyDir string) (*Policy, error) {
	files, err := filepath.Glob(filepath.Join(policyDir, "*.rego"))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to glob policy files", goerr.V("dir", policyDir))
	}
	if len(files) == 0 {
		return nil, nil
	}

	modules := make(map[string]string, len(files))
	for _, file := range files {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to read policy file", goerr.V("path", file))
		}
		modules[file] = string(data)
	}

	return NewPolicy(ctx, modules)
}

// NewPolicy prepares the deny query over modules, keyed by file name
func NewPolicy(ctx context.Context, modules map[string]string) (*Policy, error) {
	names := make([]string, 0, len(modules))
	for name := range modules {
		names = append(names, name)
	}
	sort.Strings(names)

	options := []func(*rego.Rego){
		rego.Query(policyQuery),
		rego.EnablePrintStatements(true),
		rego.PrintHook(&regoPrintHook{}),
	}
	for _, name := range names {
		options = append(options, rego.Module(name, modules[name]))
	}

	prepared, err := rego.New(options...).PrepareForEval(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to prepare policy", goerr.V("query", policyQuery))
	}

	return &Policy{query: &prepared}, nil
}

// Deny evaluates the policy and returns the reasons the exchange is denied.
// No reason means the exchange is allowed.
func (p *Policy) Deny(ctx context.Context, userText, assistantText string) ([]string, error) {
	input := map[string]any{
		"user":      userText,
		"assistant": assistantText,
	}

	rs, err := p.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to evaluate policy")
	}
	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return nil, nil
	}

	values, ok := rs[0].Expressions[0].Value.([]any)
	if !ok {
		return nil, goerr.New("invalid policy result: deny is not a set",
			goerr.V("value", rs[0].Expressions[0].Value))
	}

	reasons := make([]string, 0, len(values))
	for _, v := range values {
		reasons = append(reasons, fmt.Sprint(v))
	}
	return reasons, nil
}
