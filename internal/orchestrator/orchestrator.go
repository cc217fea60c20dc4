// Package orchestrator implements process_query: the end-to-end flow
// that routes one user query through DecisionPolicy, the generalist
// Agent, and (when warranted) a specialist Task run on the
// SpecialistPool, then appends the resulting turns to SessionStore.
//
// Grounded in teacher's internal/engine.Engine — the top-level loop
// that pulls a Decider's verdict and dispatches to a Broker — with the
// trading Decide/Execute step generalized to DecisionPolicy.Classify
// plus the three routing branches spec.md §4.10 names.
package orchestrator

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/SeanStafford/ENTROPY/internal/agent"
	"github.com/SeanStafford/ENTROPY/internal/entropytypes"
	"github.com/SeanStafford/ENTROPY/internal/llmclient"
	"github.com/SeanStafford/ENTROPY/internal/obslog"
	"github.com/SeanStafford/ENTROPY/internal/policy"
	"github.com/SeanStafford/ENTROPY/internal/session"
	"github.com/SeanStafford/ENTROPY/internal/specialistpool"
)

const defaultSpecTimeout = 30 * time.Second

const anchorSystemAddition = "\n\nA specialist is preparing deeper analysis in the background; produce a short anchor answer now."

const synthesisSystemPrompt = "You are fusing a quick anchor answer with a specialist's deeper analysis into one response. " +
	"If the specialist's content conflicts with the anchor answer on any fact, the specialist wins."

var recentTickerRe = regexp.MustCompile(`\b[A-Z]{1,5}\b`)

// Result is process_query's return value.
type Result struct {
	Response       string
	CostUSD        float64
	AgentTag       entropytypes.AgentTag
	SessionID      string
	PrefetchActive bool
}

// Orchestrator wires SessionStore, DecisionPolicy, the generalist Agent,
// and a SpecialistPool whose Executor dispatches to a market or news
// specialist Agent depending on the Task's kind.
type Orchestrator struct {
	sessions      *session.Store
	pool          *specialistpool.Pool
	generalist    *agent.Agent
	generalistCfg agent.KindConfig
	generalistSys string
	specTimeout   time.Duration
}

// Option configures an Orchestrator at construction.
type Option func(*Orchestrator)

func WithSpecialistTimeout(d time.Duration) Option {
	return func(o *Orchestrator) { o.specTimeout = d }
}

func WithGeneralistSystemPrompt(prompt string) Option {
	return func(o *Orchestrator) { o.generalistSys = prompt }
}

// New wires an Orchestrator. marketSpecialist and newsSpecialist run
// inside the pool's Executor, dispatched by entropytypes.SpecialistKind.
func New(generalist *agent.Agent, generalistCfg agent.KindConfig, marketSpecialist, newsSpecialist *agent.Agent, sessions *session.Store, poolOpts []specialistpool.Option, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		sessions:      sessions,
		generalist:    generalist,
		generalistCfg: generalistCfg,
		specTimeout:   defaultSpecTimeout,
	}
	for _, opt := range opts {
		opt(o)
	}

	executor := func(ctx context.Context, task entropytypes.Task) (entropytypes.SpecialistResult, error) {
		var specialist *agent.Agent
		var cfg agent.KindConfig
		switch task.Kind {
		case entropytypes.KindMarket:
			specialist, cfg = marketSpecialist, agent.MarketSpecialistConfig()
		case entropytypes.KindNews:
			specialist, cfg = newsSpecialist, agent.NewsSpecialistConfig()
		default:
			return entropytypes.SpecialistResult{}, fmt.Errorf("orchestrator: unknown specialist kind %q", task.Kind)
		}

		req := agent.RunRequest{
			SessionID:         task.SessionID,
			SystemPrompt:      specialistSystemPrompt(task),
			Messages:          turnsToMessages(task.ContextWindow),
			Model:             cfg.ModelTier,
			Temperature:       cfg.Temperature,
			ToolNames:         cfg.ToolNames,
			CacheSystemPrompt: cfg.CacheSystemPrompt,
		}
		res, err := specialist.Run(ctx, req)
		if err != nil {
			return entropytypes.SpecialistResult{}, err
		}
		return entropytypes.SpecialistResult{
			Kind:      task.Kind,
			Content:   res.Text,
			Cost:      res.Cost,
			CreatedAt: time.Now(),
		}, nil
	}
	o.pool = specialistpool.New(executor, poolOpts...)
	return o
}

// PoolActive reports whether the wired SpecialistPool is ready to accept
// work, for the /diagnostic HTTP endpoint's generation.specialist_pool_active field.
func (o *Orchestrator) PoolActive() bool {
	return o.pool != nil && o.pool.Workers() > 0
}

// ProcessQuery implements spec.md §4.10's eight numbered steps.
func (o *Orchestrator) ProcessQuery(ctx context.Context, query, sessionID string) (Result, error) {
	sess := o.sessions.GetOrCreate(sessionID)
	sid := sess.ID
	o.sessions.AppendTurn(sid, entropytypes.Turn{Role: entropytypes.RoleUser, Content: query, Timestamp: time.Now()})

	snapshot := o.snapshot(sid)
	decision := policy.Classify(query, snapshot)

	var (
		response       string
		totalCost      float64
		agentTag       = entropytypes.TagGeneralist
		prefetchActive bool
		toolTurns      []entropytypes.Turn
	)

	switch decision.Type {
	case policy.TypeImmediateSpecialist:
		response, totalCost, agentTag, toolTurns = o.runImmediateSpecialist(ctx, query, sid, snapshot, decision)
	default:
		res, err := o.runGeneralist(ctx, query, sid, snapshot, "")
		if err != nil {
			return Result{}, err
		}
		response, totalCost = res.Text, res.Cost
		toolTurns = res.ToolTurns
	}

	if decision.Type == policy.TypeGeneralistThenPrefetch && decision.ShouldPrefetch() && o.pool.Workers() > 1 {
		task := buildTask(snapshot, query, decision.Kind, true)
		o.pool.Submit(task) // fire-and-forget
		prefetchActive = true
	}

	classification := classificationFor(decision)
	for _, tt := range toolTurns {
		o.sessions.AppendTurn(sid, tt)
	}
	o.sessions.AppendTurn(sid, entropytypes.Turn{Role: entropytypes.RoleAgent, Content: response, Timestamp: time.Now(), Cost: totalCost})
	o.sessions.UpdateProfileAfter(sid, classification, decision.IsFollowUp, isBrief(response))

	return Result{
		Response:       response,
		CostUSD:        totalCost,
		AgentTag:       agentTag,
		SessionID:      sid,
		PrefetchActive: prefetchActive,
	}, nil
}

// runImmediateSpecialist implements step 3 and the step-6 cache check:
// build the Task, submit it (which transparently serves a matching
// in-flight or cached pre-fetch Future), run the generalist concurrently
// as an anchor, then synthesize or fall back on timeout.
func (o *Orchestrator) runImmediateSpecialist(ctx context.Context, query, sessionID string, snapshot entropytypes.Session, decision policy.Decision) (string, float64, entropytypes.AgentTag, []entropytypes.Turn) {
	task := buildTask(snapshot, query, decision.Kind, false)
	fut := o.pool.Submit(task)

	type anchorOutcome struct {
		res agent.RunResult
		err error
	}
	anchorCh := make(chan anchorOutcome, 1)
	go func() {
		res, err := o.runGeneralist(ctx, query, sessionID, snapshot, anchorSystemAddition)
		anchorCh <- anchorOutcome{res, err}
	}()

	specResult, status := fut.TryGet(o.specTimeout)

	outcome := <-anchorCh
	if outcome.err != nil {
		return "", 0, entropytypes.TagGeneralist, nil
	}
	anchor := outcome.res

	if status != specialistpool.StatusReady {
		obslog.Warn(ctx, "orchestrator: specialist timed out or unavailable", "session_id", sessionID, "kind", decision.Kind)
		note := anchor.Text + "\n\n(Deeper analysis is still being prepared and wasn't ready in time.)"
		return note, anchor.Cost, entropytypes.TagGeneralist, anchor.ToolTurns
	}

	tag := entropytypes.TagGeneralistMarket
	if decision.Kind == entropytypes.KindNews {
		tag = entropytypes.TagGeneralistNews
	}

	synthesis, synErr := o.synthesize(ctx, sessionID, query, anchor.Text, specResult.Content)
	if synErr != nil {
		return anchor.Text, anchor.Cost + specResult.Cost, tag, anchor.ToolTurns
	}
	return synthesis.Text, anchor.Cost + specResult.Cost + synthesis.Cost, tag, anchor.ToolTurns
}

func (o *Orchestrator) runGeneralist(ctx context.Context, query, sessionID string, snapshot entropytypes.Session, systemAddition string) (agent.RunResult, error) {
	messages := append(turnsToMessages(snapshot.Turns), llmclient.Message{Role: llmclient.RoleUser, Content: query})
	req := agent.RunRequest{
		SessionID:         sessionID,
		SystemPrompt:      o.generalistSys + systemAddition,
		Messages:          messages,
		Model:             o.generalistCfg.ModelTier,
		Temperature:       o.generalistCfg.Temperature,
		ToolNames:         o.generalistCfg.ToolNames,
		CacheSystemPrompt: o.generalistCfg.CacheSystemPrompt,
	}
	return o.generalist.Run(ctx, req)
}

// synthesize runs a dedicated, tool-free generalist turn at a fixed low
// temperature that fuses the anchor answer and specialist content.
func (o *Orchestrator) synthesize(ctx context.Context, sessionID, query, anchor, specialistContent string) (agent.RunResult, error) {
	prompt := fmt.Sprintf("Original question: %s\n\nAnchor answer: %s\n\nSpecialist analysis: %s\n\nProduce one fused response.", query, anchor, specialistContent)
	req := agent.RunRequest{
		SessionID:    sessionID,
		SystemPrompt: synthesisSystemPrompt,
		Messages:     []llmclient.Message{{Role: llmclient.RoleUser, Content: prompt}},
		Model:        o.generalistCfg.ModelTier,
		Temperature:  0.3,
	}
	return o.generalist.Run(ctx, req)
}

// Shutdown drains the SpecialistPool cooperatively.
func (o *Orchestrator) Shutdown() {
	o.pool.Shutdown()
}

func (o *Orchestrator) snapshot(sessionID string) entropytypes.Session {
	turns := o.sessions.RecentTurns(sessionID, 50)
	profile := o.sessions.GetProfile(sessionID)
	return entropytypes.Session{ID: sessionID, Turns: turns, Profile: profile}
}

func classificationFor(d policy.Decision) entropytypes.QueryClassification {
	switch d.Type {
	case policy.TypeImmediateSpecialist:
		return entropytypes.ClassImmediateSpec
	case policy.TypeGeneralistThenPrefetch:
		return entropytypes.ClassPrefetch
	default:
		return entropytypes.ClassGeneralistOnly
	}
}

// buildTask constructs a specialist Task from the session's last <=3
// turns plus the query. FocusedBrief resolves to a ticker mentioned in
// the query or, failing that, in the most recent turn that names one, so
// that a pre-fetch submitted on one phrasing and a follow-up submitted
// on a different phrasing of the same topic fingerprint identically —
// this is what lets an instant follow-up observe a pending pre-fetch's
// result per spec.md §5's ordering guarantee.
func buildTask(session entropytypes.Session, query string, kind entropytypes.SpecialistKind, isPrefetch bool) entropytypes.Task {
	window := session.Turns
	if len(window) > 3 {
		window = window[len(window)-3:]
	}
	return entropytypes.Task{
		Kind:          kind,
		FocusedBrief:  focusedBrief(window, query),
		ContextWindow: window,
		SessionID:     session.ID,
		IsPrefetch:    isPrefetch,
	}
}

// focusedBrief resolves to an already-uppercase 1-5 letter ticker token
// mentioned in the query or, failing that, the most recent window turn
// that contains one (deliberately not upcasing first — that would match the first short
// word regardless of case). Falls back to the normalized query text.
func focusedBrief(window []entropytypes.Turn, query string) string {
	if t := recentTickerRe.FindString(query); t != "" {
		return t
	}
	for i := len(window) - 1; i >= 0; i-- {
		if t := recentTickerRe.FindString(window[i].Content); t != "" {
			return t
		}
	}
	return strings.Join(strings.Fields(strings.ToLower(query)), " ")
}

func specialistSystemPrompt(task entropytypes.Task) string {
	return fmt.Sprintf("Focus: %s. Provide a thorough %s analysis.", task.FocusedBrief, task.Kind)
}

func turnsToMessages(turns []entropytypes.Turn) []llmclient.Message {
	out := make([]llmclient.Message, 0, len(turns))
	for _, t := range turns {
		switch t.Role {
		case entropytypes.RoleUser:
			out = append(out, llmclient.Message{Role: llmclient.RoleUser, Content: t.Content})
		case entropytypes.RoleAgent:
			out = append(out, llmclient.Message{Role: llmclient.RoleAssistant, Content: t.Content})
		}
	}
	return out
}

// isBrief is rule 5's "predicted brief" heuristic applied retroactively
// to the response actually produced: no comma/semicolon join before a
// period.
func isBrief(response string) bool {
	firstSentence := response
	if idx := strings.IndexByte(response, '.'); idx >= 0 {
		firstSentence = response[:idx]
	}
	return !strings.ContainsAny(firstSentence, ",;")
}
