// Package llmclient wraps a provider chat-completions API, adapted from
// the teacher's internal/llm/claude/claude.go: the same raw HTTP POST
// against api.anthropic.com/v1/messages (endpoint overridable via env,
// as teacher does with CLAUDE_API_ENDPOINT), generalized to return
// (text, tool_calls, cost, tokens_in, tokens_out) instead of a parsed
// trading Decision, and to carry a cost table and prompt-prefix caching
// teacher's single-shot decider never needed.
package llmclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"

	"github.com/SeanStafford/ENTROPY/internal/obslog"
)

// Role names for Message.Role.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Message is one turn in a provider conversation.
type Message struct {
	Role       string
	Content    string
	ToolCallID string     // set on RoleTool messages: which call this answers
	ToolCalls  []ToolCall // set on RoleAssistant messages that requested tools
}

// ToolCall is one tool invocation the model requested.
type ToolCall struct {
	ID        string
	Name      string
	Arguments map[string]any
}

// ToolDef describes a tool available to the model, JSON-schema-shaped.
type ToolDef struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// CallResult is the outcome of one Call.
type CallResult struct {
	Text      string
	ToolCalls []ToolCall
	Cost      float64
	TokensIn  int
	TokensOut int
}

// ModelCost is the per-model $/token rate. CachedInputPerToken applies to
// a prompt prefix flagged cacheable when the provider reports a cache hit.
type ModelCost struct {
	InputPerToken       float64
	OutputPerToken      float64
	CachedInputPerToken float64
}

// DefaultCostTable is a representative $/token schedule across model
// tiers, keyed the way spec.md's Agent kind table names them (cheap,
// mid, expensive); real deployments override via WithCostTable.
func DefaultCostTable() map[string]ModelCost {
	return map[string]ModelCost{
		"cheap":     {InputPerToken: 0.25e-6, OutputPerToken: 1.25e-6, CachedInputPerToken: 0.025e-6},
		"mid":       {InputPerToken: 1.0e-6, OutputPerToken: 5.0e-6, CachedInputPerToken: 0.1e-6},
		"expensive": {InputPerToken: 3.0e-6, OutputPerToken: 15.0e-6, CachedInputPerToken: 0.3e-6},
	}
}

// Client is the LLMClient component.
type Client struct {
	endpoint  string
	apiKey    string
	costTable map[string]ModelCost
	http      *http.Client

	mu           sync.Mutex
	sessionCosts map[string]float64
}

// Option configures a Client at construction time.
type Option func(*Client)

func WithEndpoint(url string) Option                    { return func(c *Client) { c.endpoint = url } }
func WithCostTable(t map[string]ModelCost) Option        { return func(c *Client) { c.costTable = t } }
func WithHTTPClient(h *http.Client) Option                { return func(c *Client) { c.http = h } }

// New builds a Client. apiKey is read from CLAUDE_API_KEY if empty,
// matching teacher's env-var convention.
func New(apiKey string, opts ...Option) *Client {
	if apiKey == "" {
		apiKey = os.Getenv("CLAUDE_API_KEY")
	}
	endpoint := "https://api.anthropic.com/v1/messages"
	if ep := os.Getenv("CLAUDE_API_ENDPOINT"); ep != "" {
		endpoint = ep
	}
	c := &Client{
		endpoint:     endpoint,
		apiKey:       apiKey,
		costTable:    DefaultCostTable(),
		http:         http.DefaultClient,
		sessionCosts: make(map[string]float64),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type wireMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type wireRequest struct {
	Model        string        `json:"model"`
	Messages     []wireMessage `json:"messages"`
	Temperature  float64       `json:"temperature"`
	MaxTokens    int           `json:"max_tokens"`
	Tools        []ToolDef     `json:"tools,omitempty"`
	CacheControl bool          `json:"cache_system_prompt,omitempty"`
}

type wireUsage struct {
	InputTokens              int `json:"input_tokens"`
	OutputTokens             int `json:"output_tokens"`
	CacheReadInputTokens     int `json:"cache_read_input_tokens"`
	CacheCreationInputTokens int `json:"cache_creation_input_tokens"`
}

type wireToolCall struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

type wireResponse struct {
	Text      string         `json:"text"`
	ToolCalls []wireToolCall `json:"tool_calls"`
	Usage     wireUsage      `json:"usage"`
}

// Call sends system + messages to model at temperature, optionally
// exposing tools, and returns the model's text/tool-call response with
// deterministic per-call cost. If the model emits tool calls, they are
// returned, not executed — execution is the Agent's responsibility.
func (c *Client) Call(ctx context.Context, sessionID, system string, messages []Message, model string, temperature float64, tools []ToolDef, cacheSystem bool) (CallResult, error) {
	if c.apiKey == "" {
		return CallResult{}, errors.New("llmclient: API key missing")
	}

	wireMsgs := make([]wireMessage, 0, len(messages)+1)
	wireMsgs = append(wireMsgs, wireMessage{Role: RoleSystem, Content: system})
	for _, m := range messages {
		wireMsgs = append(wireMsgs, wireMessage{Role: m.Role, Content: m.Content})
	}

	reqBody := wireRequest{
		Model:        model,
		Messages:     wireMsgs,
		Temperature:  temperature,
		MaxTokens:    4096,
		Tools:        tools,
		CacheControl: cacheSystem,
	}
	bb, err := json.Marshal(reqBody)
	if err != nil {
		return CallResult{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(bb))
	if err != nil {
		return CallResult{}, err
	}
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		obslog.ErrorWithErrSkip(ctx, 1, "llmclient: request failed", err, "model", model)
		return CallResult{}, err
	}
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return CallResult{}, err
	}
	if resp.StatusCode >= 300 {
		return CallResult{}, fmt.Errorf("llmclient: provider http %d: %s", resp.StatusCode, string(respBytes))
	}

	var wr wireResponse
	if err := json.Unmarshal(respBytes, &wr); err != nil {
		return CallResult{}, fmt.Errorf("llmclient: malformed response: %w", err)
	}

	cost := c.computeCost(model, wr.Usage)
	c.addSessionCost(sessionID, cost)

	result := CallResult{
		Text:      wr.Text,
		Cost:      cost,
		TokensIn:  wr.Usage.InputTokens,
		TokensOut: wr.Usage.OutputTokens,
	}
	for _, tc := range wr.ToolCalls {
		result.ToolCalls = append(result.ToolCalls, ToolCall{ID: tc.ID, Name: tc.Name, Arguments: tc.Arguments})
	}
	return result, nil
}

func (c *Client) computeCost(model string, usage wireUsage) float64 {
	rate, ok := c.costTable[model]
	if !ok {
		return 0
	}
	cachedTokens := usage.CacheReadInputTokens
	freshInputTokens := usage.InputTokens - cachedTokens
	if freshInputTokens < 0 {
		freshInputTokens = 0
	}
	return float64(freshInputTokens)*rate.InputPerToken +
		float64(cachedTokens)*rate.CachedInputPerToken +
		float64(usage.OutputTokens)*rate.OutputPerToken
}

func (c *Client) addSessionCost(sessionID string, cost float64) {
	if sessionID == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sessionCosts[sessionID] += cost
}

// SessionCost returns the cumulative cost billed to sessionID so far.
func (c *Client) SessionCost(sessionID string) float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionCosts[sessionID]
}
