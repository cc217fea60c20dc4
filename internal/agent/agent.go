// Package agent implements the tool-using loop shared by all three
// agent kinds, grounded directly in the teacher's Engine.Step: fetch →
// compute → decide → act becomes call → maybe-tool-call → append →
// loop, with an explicit bounded step count where teacher's loop was
// implicitly one decision per Step invocation.
package agent

import (
	"context"
	"encoding/json"
	"time"

	"github.com/SeanStafford/ENTROPY/internal/entropytypes"
	"github.com/SeanStafford/ENTROPY/internal/llmclient"
	"github.com/SeanStafford/ENTROPY/internal/obslog"
	"github.com/SeanStafford/ENTROPY/internal/tools"
)

const defaultMaxSteps = 6

// LLM is the subset of llmclient.Client's contract Agent needs.
type LLM interface {
	Call(ctx context.Context, sessionID, system string, messages []llmclient.Message, model string, temperature float64, toolDefs []llmclient.ToolDef, cacheSystem bool) (llmclient.CallResult, error)
}

// ToolCaller is the subset of tools.Belt's contract Agent needs.
type ToolCaller interface {
	Call(ctx context.Context, name string, args map[string]any) (any, error)
	Subset(names ...string) []tools.Tool
}

// Agent runs the tool-using loop for any of the three configured kinds.
type Agent struct {
	llm      LLM
	belt     ToolCaller
	maxSteps int
}

func New(llm LLM, belt ToolCaller, maxSteps int) *Agent {
	if maxSteps <= 0 {
		maxSteps = defaultMaxSteps
	}
	return &Agent{llm: llm, belt: belt, maxSteps: maxSteps}
}

// RunRequest is one invocation of the loop.
type RunRequest struct {
	SessionID         string
	SystemPrompt      string
	Messages          []llmclient.Message
	Model             string
	Temperature       float64
	ToolNames         []string
	CacheSystemPrompt bool
}

// RunResult is the outcome of one Run.
type RunResult struct {
	Text           string
	Cost           float64
	ToolTurns      []entropytypes.Turn
	StepsUsed      int
	BudgetExceeded bool
}

// Run executes the loop: call LLM; if it returns tool calls, execute
// each via the ToolBelt, append a tool turn per result, and call again;
// otherwise return the final text and accumulated cost. After
// maxSteps tool rounds without a final answer, appends a synthetic
// "step budget exceeded" turn and returns the last text produced.
func (a *Agent) Run(ctx context.Context, req RunRequest) (RunResult, error) {
	toolDefs := toToolDefs(a.belt.Subset(req.ToolNames...))
	messages := append([]llmclient.Message(nil), req.Messages...)

	var totalCost float64
	var toolTurns []entropytypes.Turn
	var lastText string

	for step := 0; step < a.maxSteps; step++ {
		res, err := a.llm.Call(ctx, req.SessionID, req.SystemPrompt, messages, req.Model, req.Temperature, toolDefs, req.CacheSystemPrompt)
		if err != nil {
			obslog.ErrorWithErr(ctx, "agent: LLM call failed", err, "session_id", req.SessionID, "step", step)
			return RunResult{}, err
		}
		totalCost += res.Cost
		lastText = res.Text

		if len(res.ToolCalls) == 0 {
			return RunResult{Text: res.Text, Cost: totalCost, ToolTurns: toolTurns, StepsUsed: step + 1}, nil
		}

		for _, tc := range res.ToolCalls {
			result, callErr := a.belt.Call(ctx, tc.Name, tc.Arguments)
			if callErr != nil {
				result = map[string]any{"error": callErr.Error()}
			}
			toolTurns = append(toolTurns, entropytypes.Turn{
				Role:      entropytypes.RoleTool,
				ToolCall:  &entropytypes.ToolCallRecord{ToolName: tc.Name, Arguments: tc.Arguments, Result: result},
				Timestamp: time.Now(),
			})
			messages = append(messages, llmclient.Message{
				Role:       llmclient.RoleTool,
				Content:    marshalToolResult(result),
				ToolCallID: tc.ID,
			})
		}
	}

	obslog.Warn(ctx, "agent: step budget exceeded", "session_id", req.SessionID, "max_steps", a.maxSteps)
	toolTurns = append(toolTurns, entropytypes.Turn{
		Role:      entropytypes.RoleAgent,
		Content:   "step budget exceeded",
		Timestamp: time.Now(),
	})
	return RunResult{Text: lastText, Cost: totalCost, ToolTurns: toolTurns, StepsUsed: a.maxSteps, BudgetExceeded: true}, nil
}

func toToolDefs(ts []tools.Tool) []llmclient.ToolDef {
	out := make([]llmclient.ToolDef, len(ts))
	for i, t := range ts {
		out[i] = llmclient.ToolDef{Name: t.Name, Description: t.Description, Parameters: t.Parameters}
	}
	return out
}

func marshalToolResult(result any) string {
	b, err := json.Marshal(result)
	if err != nil {
		return "null"
	}
	return string(b)
}
