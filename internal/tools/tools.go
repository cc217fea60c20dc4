// Package tools implements the ToolBelt: a uniform, stateless-beyond-
// the-underlying-indexes façade over retrieval and market-data
// operations, presented to agents as name -> JSON-shaped schema ->
// handler. A Belt is built by a no-argument New plus one Register call
// per tool. The two boundary-marker tools spec.md §6 calls out,
// search_news and get_price, follow the teacher's *obs decorator idiom
// (llmobs.Wrap/brokerobs.Wrap).
package tools

import (
	"context"
	"fmt"

	"github.com/SeanStafford/ENTROPY/internal/obslog"
)

// Handler executes a tool call. Per spec.md §7, tools never raise:
// upstream/invalid-input failures are reported inside the returned
// value (an absent snapshot, an empty hit list), not as an error.
// Handler still returns error for truly exceptional argument shapes
// (missing required field) so the Agent can surface a message turn.
type Handler func(ctx context.Context, args map[string]any) (any, error)

// Tool is one entry in the belt.
type Tool struct {
	Name        string
	Description string
	Parameters  map[string]any // JSON schema for the argument object
	Handler     Handler
}

// boundaryTools names the tools spec.md §6 requires "[BOUNDARY: Src→Dst]"
// diagnostic markers around, mapped to the external system they cross into.
var boundaryTools = map[string]string{
	"search_news": "NewsCorpus",
	"get_price":   "QuotesSource",
}

// Belt is the ToolBelt component: a registry of Tools, shared across
// agents, with no per-agent state.
type Belt struct {
	tools map[string]Tool
}

// New builds an empty Belt. Callers Register each tool at startup, the
// way teacher's bootstrap.go wires each collaborator explicitly.
func New() *Belt {
	return &Belt{tools: make(map[string]Tool)}
}

// Register adds a tool to the belt. Registering a name twice overwrites
// the previous entry.
func (b *Belt) Register(t Tool) {
	b.tools[t.Name] = t
}

// List returns every registered tool, for building a provider tool-schema payload.
func (b *Belt) List() []Tool {
	out := make([]Tool, 0, len(b.tools))
	for _, t := range b.tools {
		out = append(out, t)
	}
	return out
}

// Subset returns only the named tools, in the order names is given,
// skipping any that aren't registered — used to build an agent kind's
// restricted tool view (spec.md §4.7's per-kind Tools column).
func (b *Belt) Subset(names ...string) []Tool {
	out := make([]Tool, 0, len(names))
	for _, n := range names {
		if t, ok := b.tools[n]; ok {
			out = append(out, t)
		}
	}
	return out
}

// Call invokes the named tool with args. search_news and get_price emit
// a [BOUNDARY: ToolBelt→<Dst>] marker at entry and a
// [BOUNDARY: <Dst>→ToolBelt] marker at exit.
func (b *Belt) Call(ctx context.Context, name string, args map[string]any) (any, error) {
	t, ok := b.tools[name]
	if !ok {
		return nil, fmt.Errorf("tools: unknown tool %q", name)
	}

	if dst, boundary := boundaryTools[name]; boundary {
		obslog.Boundary(ctx, "ToolBelt", dst, "tool", name, "args", args)
		result, err := t.Handler(ctx, args)
		obslog.Boundary(ctx, dst, "ToolBelt", "tool", name, "ok", err == nil)
		return result, err
	}

	return t.Handler(ctx, args)
}
