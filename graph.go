package compass

import (
	"context"
	"fmt"
	"log/slog"
)

// Reserved node names.
const (
	StartNode      = "__start__"
	EndNode        = "__end__"
	SupervisorNode = "supervisor"
)

// resultKind discriminates NodeResult variants.
type resultKind int

const (
	kindStateUpdate resultKind = iota
	kindGoto
	kindEnd
	kindInterrupt
)

// NodeResult is what a node handler returns: a state patch plus a
// transition. Goto overrides the node's conditional edge; End terminates
// the turn; Interrupt suspends it.
type NodeResult struct {
	kind    resultKind
	patch   StatePatch
	target  string
	request *InterruptRequest
}

// StateUpdate applies the patch and follows the node's conditional edge.
func StateUpdate(patch StatePatch) NodeResult {
	return NodeResult{kind: kindStateUpdate, patch: patch}
}

// Goto applies the patch and jumps to target, ignoring conditional edges.
func Goto(target string, patch StatePatch) NodeResult {
	return NodeResult{kind: kindGoto, patch: patch, target: target}
}

// End applies the patch and terminates the turn.
func End(patch StatePatch) NodeResult {
	return NodeResult{kind: kindEnd, patch: patch}
}

// Interrupt applies the patch, suspends the turn, and surfaces req to the
// caller. The node is re-entered on resume with the decision available
// via ResumeDecision.
func Interrupt(req InterruptRequest, patch StatePatch) NodeResult {
	return NodeResult{kind: kindInterrupt, patch: patch, request: &req}
}

// NodeFunc is a node handler. It must not mutate s; all writes go through
// the returned patch.
type NodeFunc func(ctx context.Context, s State) (NodeResult, error)

// EdgeFunc computes the next node name from the post-patch state. It may
// return the node's own name, which ends the turn awaiting user input, or
// EndNode to terminate.
type EdgeFunc func(s State) string

// Interrupted describes a suspended turn. The pre-suspension state,
// including the pending request, has already been merged and is carried
// alongside by the caller.
type Interrupted struct {
	Node    string
	Request InterruptRequest
}

type resumeKey struct{}

// WithResumeDecision attaches a human review decision for the node being
// re-entered after an interrupt.
func WithResumeDecision(ctx context.Context, decision string) context.Context {
	return context.WithValue(ctx, resumeKey{}, decision)
}

// ResumeDecision returns the decision attached by WithResumeDecision.
func ResumeDecision(ctx context.Context) (string, bool) {
	d, ok := ctx.Value(resumeKey{}).(string)
	return d, ok
}

// Engine runs the node graph for one turn at a time. It holds no
// per-conversation state; the same Engine serves concurrent conversations.
type Engine struct {
	nodes    map[string]NodeFunc
	edges    map[string]EdgeFunc
	entry    string
	maxSteps int
	logger   *slog.Logger
	tracer   Tracer
	events   EventSink
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

func WithEngineLogger(l *slog.Logger) EngineOption {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

func WithEngineTracer(t Tracer) EngineOption {
	return func(e *Engine) { e.tracer = t }
}

func WithEventSink(s EventSink) EngineOption {
	return func(e *Engine) { e.events = s }
}

// WithMaxSteps caps node transitions per turn. The default of 16 is far
// above any legal trace; hitting it means a routing bug.
func WithMaxSteps(n int) EngineOption {
	return func(e *Engine) {
		if n > 0 {
			e.maxSteps = n
		}
	}
}

// NewEngine builds an engine entering at entry.
func NewEngine(entry string, opts ...EngineOption) *Engine {
	e := &Engine{
		nodes:    make(map[string]NodeFunc),
		edges:    make(map[string]EdgeFunc),
		entry:    entry,
		maxSteps: 16,
		logger:   nopLogger,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// AddNode registers a node handler.
func (e *Engine) AddNode(name string, fn NodeFunc) {
	e.nodes[name] = fn
}

// AddEdge registers the conditional edge leaving name.
func (e *Engine) AddEdge(name string, fn EdgeFunc) {
	e.edges[name] = fn
}

// Run executes one turn starting from the entry node. It returns the
// final state, or a non-nil Interrupted when a node suspended the turn.
// On cancellation the input state is returned unchanged with ctx.Err();
// callers must not persist it.
func (e *Engine) Run(ctx context.Context, s State) (State, *Interrupted, error) {
	return e.run(ctx, s, e.entry)
}

// Resume re-enters a previously interrupted turn at the node recorded in
// the pending interrupt, with decision available to the handler.
func (e *Engine) Resume(ctx context.Context, s State, decision string) (State, *Interrupted, error) {
	if s.PendingInterrupt == nil {
		return s, nil, ErrNoPendingInterrupt
	}
	node := s.PendingInterrupt.Node
	ctx = WithResumeDecision(ctx, decision)
	return e.run(ctx, s, node)
}

func (e *Engine) run(ctx context.Context, s State, current string) (State, *Interrupted, error) {
	original := s
	seq := 0
	for step := 0; step < e.maxSteps; step++ {
		if err := ctx.Err(); err != nil {
			return original, nil, err
		}
		if current == EndNode {
			return s, nil, nil
		}
		fn, ok := e.nodes[current]
		if !ok {
			return original, nil, fmt.Errorf("graph: unknown node %q", current)
		}

		e.logger.Debug("node enter", slog.String("node", current), slog.Int("step", step))
		span := startSpan(ctx, e.tracer, "node."+current)
		res, err := fn(ctx, s.Clone())
		endSpan(span, err)
		if err != nil {
			if ctx.Err() != nil {
				return original, nil, ctx.Err()
			}
			return original, nil, fmt.Errorf("graph: node %s: %w", current, err)
		}

		s = s.Merge(res.patch)
		seq++
		emitEvent(ctx, e.events, TurnEvent{Node: current, Seq: seq, State: s})

		switch res.kind {
		case kindEnd:
			return s, nil, nil
		case kindInterrupt:
			req := *res.request
			req.Node = current
			s = s.Merge(StatePatch{
				PendingInterrupt: &req,
				NeedsHumanReview: Ptr(true),
			})
			return s, &Interrupted{Node: current, Request: req}, nil
		case kindGoto:
			e.logger.Debug("goto", slog.String("from", current), slog.String("to", res.target))
			current = res.target
		default:
			edge, ok := e.edges[current]
			if !ok {
				return s, nil, nil
			}
			next := edge(s)
			if next == current {
				// Edge back to self means the node is done until the
				// next user message.
				return s, nil, nil
			}
			current = next
		}
	}
	return original, nil, fmt.Errorf("graph: exceeded %d steps without terminating", e.maxSteps)
}
