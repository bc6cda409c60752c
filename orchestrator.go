package compass

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// TurnStatus classifies the outcome of one turn.
type TurnStatus string

const (
	// TurnCompleted means the conversation is closed.
	TurnCompleted TurnStatus = "completed"
	// TurnAwaitingUser means the turn produced a response and the
	// conversation waits for the next user message.
	TurnAwaitingUser TurnStatus = "awaiting_user"
	// TurnAwaitingHuman means the turn is suspended for human review or
	// was escalated to a human specialist.
	TurnAwaitingHuman TurnStatus = "awaiting_human"
)

// TurnResult is what RunTurn and ResumeTurn return. Review is non-nil
// only while the turn is suspended on an interrupt.
type TurnResult struct {
	Status TurnStatus
	State  State
	Review *InterruptRequest
}

// Orchestrator is the top-level entry point: it owns the graph, the
// persistent state store, and the per-session performance tracker.
// One Orchestrator serves many conversations concurrently.
type Orchestrator struct {
	store     StateStore
	llm       LlmClient
	engine    *Engine
	tracker   *PerformanceTracker
	memory    MemoryStore
	resources ResourceSearch
	analytics AnalyticsSink
	tracer    Tracer
	events    EventSink
	logger    *slog.Logger

	escalationContact string
	extraTools        []Tool
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the structured logger. Defaults to a no-op logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithMemoryStore enables best-effort long-term memory.
func WithMemoryStore(m MemoryStore) Option {
	return func(o *Orchestrator) { o.memory = m }
}

// WithResourceSearch gives specialists the resource_search tool.
func WithResourceSearch(rs ResourceSearch) Option {
	return func(o *Orchestrator) { o.resources = rs }
}

// WithAnalytics enables fire-and-forget per-turn analytics.
func WithAnalytics(a AnalyticsSink) Option {
	return func(o *Orchestrator) { o.analytics = a }
}

// WithTracer enables span creation for turns and nodes.
func WithTracer(t Tracer) Option {
	return func(o *Orchestrator) { o.tracer = t }
}

// WithEvents streams a state snapshot after every node transition.
func WithEvents(s EventSink) Option {
	return func(o *Orchestrator) { o.events = s }
}

// WithEscalationContact sets the contact surfaced in escalation messages.
func WithEscalationContact(contact string) Option {
	return func(o *Orchestrator) { o.escalationContact = contact }
}

// WithTools registers extra tools on the supervisor.
func WithTools(tools ...Tool) Option {
	return func(o *Orchestrator) { o.extraTools = append(o.extraTools, tools...) }
}

// NewOrchestrator wires the supervisor, the specialist nodes, and the
// graph engine around the given store and LLM client.
func NewOrchestrator(store StateStore, llm LlmClient, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		store:   store,
		llm:     llm,
		tracker: NewPerformanceTracker(),
		logger:  nopLogger,
	}
	for _, opt := range opts {
		opt(o)
	}

	tools := NewToolRegistry(o.extraTools...)
	if o.resources != nil {
		tools.Register(newResourceSearchTool(o.resources))
	}
	supervisor := NewSupervisor(SupervisorConfig{
		Llm:               llm,
		Tools:             tools,
		Tracker:           o.tracker,
		Memory:            o.memory,
		Logger:            o.logger,
		EscalationContact: o.escalationContact,
	})

	engine := NewEngine(SupervisorNode,
		WithEngineLogger(o.logger),
		WithEngineTracer(o.tracer),
		WithEventSink(o.events),
	)
	engine.AddNode(SupervisorNode, supervisor.Node())
	engine.AddEdge(SupervisorNode, supervisor.Edge)
	for _, name := range SpecialistNames() {
		sp := NewSpecialist(SpecialistConfig{
			Name:      name,
			Llm:       llm,
			Resources: o.resources,
			Logger:    o.logger,
		})
		engine.AddNode(name, sp.Node())
		engine.AddEdge(name, SpecialistEdge)
	}
	o.engine = engine
	return o
}

// RunTurn consumes one user message for the conversation and drives the
// graph until the turn ends or suspends. The resulting state is persisted
// unless the context was cancelled, in which case the conversation keeps
// its pre-turn state.
func (o *Orchestrator) RunTurn(ctx context.Context, userID, conversationID, text string) (TurnResult, error) {
	s, err := o.loadState(ctx, userID, conversationID)
	if err != nil {
		return TurnResult{}, err
	}
	if text != "" {
		s = s.Merge(StatePatch{Messages: []Message{UserMessage(text)}})
	}

	span := startSpan(ctx, o.tracer, "turn.run",
		StringAttr("conversation_id", conversationID),
		StringAttr("user_id", userID))
	final, interrupted, err := o.engine.Run(ctx, s)
	endSpan(span, err)
	if err != nil {
		return TurnResult{}, err
	}
	return o.finishTurn(ctx, s, final, interrupted)
}

// ResumeTurn re-enters a turn previously suspended for human review,
// delivering the reviewer's decision to the interrupting node.
func (o *Orchestrator) ResumeTurn(ctx context.Context, userID, conversationID, decision string) (TurnResult, error) {
	s, err := o.loadState(ctx, userID, conversationID)
	if err != nil {
		return TurnResult{}, err
	}
	if s.PendingInterrupt == nil {
		return TurnResult{}, ErrNoPendingInterrupt
	}

	span := startSpan(ctx, o.tracer, "turn.resume",
		StringAttr("conversation_id", conversationID),
		StringAttr("decision", decision))
	final, interrupted, err := o.engine.Resume(ctx, s, decision)
	endSpan(span, err)
	if err != nil {
		return TurnResult{}, err
	}
	return o.finishTurn(ctx, s, final, interrupted)
}

func (o *Orchestrator) loadState(ctx context.Context, userID, conversationID string) (State, error) {
	s, err := o.store.Load(ctx, userID, conversationID)
	switch {
	case errors.Is(err, ErrStateNotFound):
		return NewState(userID, conversationID), nil
	case err != nil:
		return State{}, fmt.Errorf("load state: %w", err)
	}
	return s, nil
}

func (o *Orchestrator) finishTurn(ctx context.Context, prior, s State, interrupted *Interrupted) (TurnResult, error) {
	if err := o.store.Save(ctx, s); err != nil {
		return TurnResult{}, fmt.Errorf("save state: %w", err)
	}

	result := TurnResult{State: s}
	switch {
	case interrupted != nil:
		result.Status = TurnAwaitingHuman
		req := interrupted.Request
		result.Review = &req
	case s.WorkflowState == WorkflowPendingHuman:
		result.Status = TurnAwaitingHuman
	case s.ConversationComplete:
		result.Status = TurnCompleted
	default:
		result.Status = TurnAwaitingUser
	}

	o.logTurn(ctx, prior, s, result.Status)
	o.rememberTurn(ctx, s)
	return result, nil
}

// logTurn ships the per-turn analytics payload. Fire and forget. Counters
// that only ever grow are shipped twice: the cumulative value and the
// delta this turn contributed.
func (o *Orchestrator) logTurn(ctx context.Context, prior, s State, status TurnStatus) {
	if o.analytics == nil {
		return
	}
	payload := map[string]any{
		"status":             string(status),
		"handoff_count":      s.HandoffCount,
		"message_count":      len(s.Messages),
		"error_count":        len(s.ErrorRecoveryLog),
		"handoffs_this_turn": s.HandoffCount - prior.HandoffCount,
		"errors_this_turn":   len(s.ErrorRecoveryLog) - len(prior.ErrorRecoveryLog),
	}
	if s.QualityMetrics != nil {
		payload["quality_overall"] = s.QualityMetrics.Overall
		payload["intelligence_level"] = string(s.QualityMetrics.IntelligenceLevel)
	}
	if s.RoutingDecision != nil {
		payload["specialist"] = s.RoutingDecision.SpecialistAssigned
		payload["routing_confidence"] = string(s.RoutingDecision.ConfidenceLevel)
	}
	o.analytics.Log(ctx, s.SessionID(), payload)
}

// rememberTurn stores a compact identity note in long-term memory.
// Best effort: failures are logged and ignored.
func (o *Orchestrator) rememberTurn(ctx context.Context, s State) {
	if o.memory == nil || s.EnhancedIdentity == nil {
		return
	}
	entry := "identity: " + describeIdentity(*s.EnhancedIdentity)
	if err := o.memory.Store(ctx, s.UserID, entry); err != nil {
		o.logger.Debug("memory store failed", slog.String("error", err.Error()))
	}
}

// Tracker exposes the per-session performance tracker, mainly for
// inspection and tests.
func (o *Orchestrator) Tracker() *PerformanceTracker { return o.tracker }
