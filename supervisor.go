package compass

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// defaultSeedPrompt stands in for the user message when a turn starts on
// an empty conversation.
const defaultSeedPrompt = "Hello, I'm looking for career guidance."

const supervisorSystemPrompt = `You are the supervisor of a career-guidance team serving
veterans, international professionals, environmental-justice community members, career
changers, and students. Answer directly when you can, or delegate to exactly one
specialist with the matching delegate_to_ tool. Keep answers concrete and cite programs
or resources by name.`

// Supervisor orchestrates the per-turn decision pipeline: identity
// recognition, routing, delegation or direct response, quality scoring,
// completion detection, and human-review gating.
type Supervisor struct {
	llm        LlmClient
	tools      *ToolRegistry
	recognizer *IdentityRecognizer
	router     *Router
	quality    *QualityAnalyzer
	checker    *CompletionChecker
	humanloop  *HumanLoopCoordinator
	tracker    *PerformanceTracker
	recovery   *ErrorRecovery
	memory     MemoryStore
	logger     *slog.Logger

	maxHandoffs int
}

// SupervisorConfig wires the supervisor's collaborators. Zero-value
// optional fields fall back to sane defaults.
type SupervisorConfig struct {
	Llm               LlmClient
	Tools             *ToolRegistry
	Tracker           *PerformanceTracker
	Memory            MemoryStore
	Logger            *slog.Logger
	EscalationContact string
	MaxHandoffs       int
}

func NewSupervisor(cfg SupervisorConfig) *Supervisor {
	s := &Supervisor{
		llm:         cfg.Llm,
		tools:       cfg.Tools,
		recognizer:  NewIdentityRecognizer(),
		router:      NewRouter(),
		quality:     NewQualityAnalyzer(),
		checker:     NewCompletionChecker(),
		humanloop:   NewHumanLoopCoordinator(cfg.EscalationContact),
		tracker:     cfg.Tracker,
		recovery:    NewErrorRecovery(cfg.Logger),
		memory:      cfg.Memory,
		logger:      cfg.Logger,
		maxHandoffs: cfg.MaxHandoffs,
	}
	if s.tools == nil {
		s.tools = NewToolRegistry()
	}
	for _, name := range SpecialistNames() {
		s.tools.Register(DelegationTool(name))
	}
	if s.tracker == nil {
		s.tracker = NewPerformanceTracker()
	}
	if s.logger == nil {
		s.logger = nopLogger
	}
	if s.maxHandoffs <= 0 {
		s.maxHandoffs = 3
	}
	return s
}

// Node returns the supervisor as a graph node handler.
func (sv *Supervisor) Node() NodeFunc { return sv.run }

// Edge is the supervisor's conditional edge. Priority order:
// completion, assistant metadata flags, fresh routing decision, self.
// Routing only fires while the latest user message has no reply yet;
// otherwise the turn is done and the edge points back to self.
func (sv *Supervisor) Edge(s State) string {
	if s.ConversationComplete {
		return EndNode
	}
	if last, ok := s.LastAssistantMessage(); ok {
		if last.Metadata[MetaConversationDone] == "true" {
			return EndNode
		}
		if to := last.Metadata[MetaHandoffTo]; to != "" && KnownSpecialist(to) {
			return to
		}
	}
	if _, answered := s.AssistantAfterLastUser(); !answered {
		if s.RoutingDecision != nil && KnownSpecialist(s.RoutingDecision.SpecialistAssigned) {
			return s.RoutingDecision.SpecialistAssigned
		}
	}
	return SupervisorNode
}

// pipelineOpts carries resume context through one supervisor pass.
type pipelineOpts struct {
	skipReview     bool
	humanFeedback  string
	clearInterrupt bool
}

func (sv *Supervisor) run(ctx context.Context, s State) (NodeResult, error) {
	if decision, ok := ResumeDecision(ctx); ok && s.PendingInterrupt != nil {
		return sv.resume(ctx, s, decision)
	}

	// A specialist just answered: finalize its response instead of
	// generating another one.
	if reply, ok := s.AssistantAfterLastUser(); ok && reply.Metadata[MetaAgent] != SupervisorNode {
		return sv.finalizeSpecialistReply(s, reply)
	}

	return sv.pipeline(ctx, s, pipelineOpts{})
}

// resume re-enters the turn after a human review decision.
func (sv *Supervisor) resume(ctx context.Context, s State, decision string) (NodeResult, error) {
	sv.logger.Info("resuming after human review",
		slog.String("conversation_id", s.ConversationID),
		slog.String("decision", decision))

	switch decision {
	case DecisionEscalate:
		msg := AssistantMessage(SupervisorNode, sv.escalationText())
		msg.Metadata[MetaEscalation] = "true"
		return End(StatePatch{
			Messages:         []Message{msg},
			WorkflowState:    Ptr(WorkflowPendingHuman),
			NeedsHumanReview: Ptr(true),
			ClearInterrupt:   true,
		}), nil
	case DecisionApprove:
		return sv.pipeline(ctx, s, pipelineOpts{skipReview: true, clearInterrupt: true})
	default:
		// modify_approach and provide_feedback_and_retry re-run the
		// pipeline with the reviewer's steer in context.
		return sv.pipeline(ctx, s, pipelineOpts{
			skipReview:     true,
			humanFeedback:  decision,
			clearInterrupt: true,
		})
	}
}

// pipeline is the main supervisor pass for one user message.
func (sv *Supervisor) pipeline(ctx context.Context, s State, opts pipelineOpts) (NodeResult, error) {
	userText := defaultSeedPrompt
	if m, ok := s.LastUserMessage(); ok {
		userText = m.Content
	}

	// Termination and review gates run before any assistant output is
	// produced.
	if assessment := sv.checker.Check(userText, s, ""); assessment.IsComplete {
		return sv.endComplete(s, assessment, opts), nil
	}
	if s.HandoffCount >= sv.maxHandoffs {
		return sv.endMaxHandoffs(s, opts), nil
	}
	if !opts.skipReview {
		if res, intervened := sv.reviewGate(s, userText); intervened {
			return res, nil
		}
	}

	identity := sv.recognizer.Recognize(userText, sv.memoryContext(ctx, s))
	routing := sv.router.Route(identity)
	nextAction := sv.tracker.NextAction(routing.ConfidenceLevel, sv.lastOverall(s))

	sv.logger.Debug("supervisor pipeline",
		slog.String("primary_identity", identity.PrimaryIdentity),
		slog.String("specialist", routing.SpecialistAssigned),
		slog.String("confidence", string(routing.ConfidenceLevel)),
		slog.String("next_action", string(nextAction)))

	basePatch := StatePatch{
		EnhancedIdentity: &identity,
		RoutingDecision:  &routing,
		ConfidenceScore:  Ptr(identity.ConfidenceScore),
		ClearInterrupt:   opts.clearInterrupt,
	}
	if opts.clearInterrupt {
		basePatch.NeedsHumanReview = Ptr(false)
	}

	completion, err := sv.llm.Complete(ctx, sv.buildRequest(s, identity, routing, nextAction, opts.humanFeedback))
	if err != nil {
		if !Recoverable(err) {
			return NodeResult{}, err
		}
		res := sv.recovery.RecoverLLM(s, err)
		res.patch = mergePatches(basePatch, res.patch)
		return res, nil
	}

	if len(completion.ToolCalls) > 0 {
		return sv.handleToolCalls(ctx, s, completion, basePatch)
	}
	return sv.handleDirectReply(s, userText, completion.Content, basePatch), nil
}

// reviewGate applies the human-loop coordinator before the LLM runs.
// Urgent signals end the turn for a human; high or medium suspend it.
func (sv *Supervisor) reviewGate(s State, userText string) (NodeResult, bool) {
	assessment := sv.humanloop.Assess(s, userText)
	if !assessment.NeedsIntervention {
		return NodeResult{}, false
	}

	switch assessment.Priority {
	case PriorityUrgent:
		msg := AssistantMessage(SupervisorNode, sv.escalationText())
		msg.Metadata[MetaEscalation] = "true"
		return End(StatePatch{
			Messages:         []Message{msg},
			WorkflowState:    Ptr(WorkflowPendingHuman),
			NeedsHumanReview: Ptr(true),
		}), true
	case PriorityHigh, PriorityMedium:
		req := InterruptRequest{
			Question: "Review requested before responding: " + strings.Join(assessment.Reasons, ", "),
			Options:  append([]string(nil), ReviewOptions...),
			Metadata: map[string]string{
				"priority":     string(assessment.Priority),
				"wait_seconds": fmt.Sprintf("%d", assessment.WaitSeconds),
			},
		}
		return Interrupt(req, StatePatch{}), true
	}
	return NodeResult{}, false
}

// handleToolCalls emits the assistant message, runs every tool in
// declaration order, and follows any delegation command.
func (sv *Supervisor) handleToolCalls(ctx context.Context, s State, completion Completion, patch StatePatch) (NodeResult, error) {
	assistant := AssistantMessage(SupervisorNode, completion.Content)
	assistant.ToolCalls = completion.ToolCalls
	patch.Messages = append(patch.Messages, assistant)

	var command *Command
	var delegationCall ToolCall
	for _, call := range completion.ToolCalls {
		result, err := sv.tools.Invoke(ctx, call.Name, call.Args, s)
		if err != nil {
			if ctx.Err() != nil {
				return NodeResult{}, ctx.Err()
			}
			msg, rec := sv.recovery.RecoverTool(call, err)
			patch.Messages = append(patch.Messages, msg)
			patch.ErrorRecoveryLog = append(patch.ErrorRecoveryLog, rec)
			continue
		}
		patch.Messages = append(patch.Messages, ToolResultMessage(call.ID, result.Content))
		// delegation calls redirect control, they are not resource tools
		if _, isDelegation := ParseDelegationTool(call.Name); !isDelegation {
			patch.ToolsUsed = append(patch.ToolsUsed, call.Name)
		}
		if call.Name == ResourceSearchTool && result.Content != "" {
			patch.ResourceRecommendations = append(patch.ResourceRecommendations, result.Content)
		}
		if result.Command != nil && command == nil {
			command = result.Command
			delegationCall = call
		}
	}

	if command == nil || !KnownSpecialist(command.Target) {
		return StateUpdate(patch), nil
	}

	handoff := HandoffRecord{
		ID:              NewID(),
		FromNode:        SupervisorNode,
		ToNode:          command.Target,
		Timestamp:       NowUnix(),
		TaskDescription: command.Patch.CoordinationMetadata["delegation_task"],
		ToolCallID:      delegationCall.ID,
	}
	patch = mergePatches(patch, command.Patch)
	patch.HandoffCount = Ptr(s.HandoffCount + 1)
	patch.CurrentSpecialist = Ptr(command.Target)
	patch.SpecialistHandoffs = append(patch.SpecialistHandoffs, handoff)

	sv.logger.Info("delegating",
		slog.String("specialist", command.Target),
		slog.Int("handoff_count", s.HandoffCount+1))
	return Goto(command.Target, patch), nil
}

// handleDirectReply scores and emits a supervisor-authored answer.
func (sv *Supervisor) handleDirectReply(s State, userText, response string, patch StatePatch) NodeResult {
	if response == "" {
		response = "Could you tell me a bit more about your background and what kind of work you're looking for?"
	}
	identity := FallbackProfile()
	if patch.EnhancedIdentity != nil {
		identity = *patch.EnhancedIdentity
	}

	reply := AssistantMessage(SupervisorNode, response)
	metrics := sv.quality.Analyze(response, identity, nil)
	metrics.ScoredMessageID = reply.ID
	stats := sv.tracker.Record(s.SessionID(), metrics.Overall)
	sv.logger.Debug("response scored",
		slog.Float64("overall", metrics.Overall),
		slog.Float64("session_average", stats.SessionAverage),
		slog.Int("response_count", stats.ResponseCount))

	patch.Messages = append(patch.Messages, reply)
	patch.QualityMetrics = &metrics
	patch.IntelligenceLevel = Ptr(metrics.IntelligenceLevel)

	if assessment := sv.checker.Check(userText, s, response); assessment.IsComplete {
		patch.ConversationComplete = Ptr(true)
		patch.WorkflowState = Ptr(WorkflowCompleted)
		return End(patch)
	}
	return StateUpdate(patch)
}

// finalizeSpecialistReply scores the specialist's answer and closes out
// the turn; the supervisor produces no new assistant output here.
func (sv *Supervisor) finalizeSpecialistReply(s State, reply Message) (NodeResult, error) {
	identity := FallbackProfile()
	if s.EnhancedIdentity != nil {
		identity = *s.EnhancedIdentity
	}
	metrics := sv.quality.Analyze(reply.Content, identity, s.ToolsUsed)
	metrics.ScoredMessageID = reply.ID
	stats := sv.tracker.Record(s.SessionID(), metrics.Overall)
	sv.logger.Debug("specialist response scored",
		slog.String("specialist", reply.Metadata[MetaAgent]),
		slog.Float64("overall", metrics.Overall),
		slog.Float64("session_average", stats.SessionAverage))

	patch := StatePatch{
		QualityMetrics:    &metrics,
		IntelligenceLevel: Ptr(metrics.IntelligenceLevel),
		CurrentSpecialist: Ptr(SupervisorNode),
	}

	userText := defaultSeedPrompt
	if m, ok := s.LastUserMessage(); ok {
		userText = m.Content
	}
	if assessment := sv.checker.Check(userText, s, reply.Content); assessment.IsComplete {
		patch.ConversationComplete = Ptr(true)
		patch.WorkflowState = Ptr(WorkflowCompleted)
		return End(patch), nil
	}
	return StateUpdate(patch), nil
}

// endComplete closes the conversation with a summary message.
func (sv *Supervisor) endComplete(s State, assessment CompletionAssessment, opts pipelineOpts) NodeResult {
	summary := "Glad I could help. Summary of this conversation: " + sv.summarize(s) +
		" Feel free to come back any time."
	msg := AssistantMessage(SupervisorNode, summary)
	msg.Metadata[MetaConversationDone] = "true"
	return End(StatePatch{
		Messages:             []Message{msg},
		ConversationComplete: Ptr(true),
		WorkflowState:        Ptr(WorkflowCompleted),
		ConfidenceScore:      Ptr(assessment.Score),
		ClearInterrupt:       opts.clearInterrupt,
	})
}

// endMaxHandoffs closes the conversation when the handoff cap is hit.
func (sv *Supervisor) endMaxHandoffs(s State, opts pipelineOpts) NodeResult {
	msg := AssistantMessage(SupervisorNode,
		"We've covered a lot of ground across several specialists. Here is where things stand: "+
			sv.summarize(s)+" Let's pick up from here in a fresh conversation.")
	msg.Metadata[MetaMaxHandoffsReached] = "true"
	msg.Metadata[MetaConversationDone] = "true"
	return End(StatePatch{
		Messages:             []Message{msg},
		ConversationComplete: Ptr(true),
		WorkflowState:        Ptr(WorkflowCompleted),
		ClearInterrupt:       opts.clearInterrupt,
	})
}

// summarize builds a one-line recap for closing messages.
func (sv *Supervisor) summarize(s State) string {
	parts := []string{fmt.Sprintf("%d specialist consultations", s.HandoffCount)}
	if s.EnhancedIdentity != nil {
		parts = append(parts, "guidance for a "+s.EnhancedIdentity.PrimaryIdentity)
	}
	if n := len(s.ResourceRecommendations); n > 0 {
		parts = append(parts, fmt.Sprintf("%d resources shared", n))
	}
	return strings.Join(parts, ", ") + "."
}

func (sv *Supervisor) escalationText() string {
	contact := sv.humanloop.escalationContact
	if contact == "" {
		contact = "our support team"
	}
	return "I'm connecting you with a human specialist who can help directly. " +
		"Please reach out to " + contact + "; they have the full context of this conversation."
}

// buildRequest assembles the LLM request for the supervisor pass.
func (sv *Supervisor) buildRequest(s State, identity IdentityProfile, routing RoutingDecision, action SupervisorAction, feedback string) CompletionRequest {
	var b strings.Builder
	b.WriteString(supervisorSystemPrompt)
	fmt.Fprintf(&b, "\n\nUser identity: %s.", describeIdentity(identity))
	fmt.Fprintf(&b, "\nSuggested specialist: %s (%s confidence). %s",
		routing.SpecialistAssigned, routing.ConfidenceLevel, routing.Reasoning)
	fmt.Fprintf(&b, "\nRecommended next action: %s.", action)
	if feedback != "" {
		fmt.Fprintf(&b, "\nA human reviewer asked you to adjust course: %s.", feedback)
	}
	return CompletionRequest{
		System:   b.String(),
		Messages: s.Messages,
		Tools:    sv.tools.Definitions(),
	}
}

// lastOverall returns the most recent overall quality score, or a neutral
// midpoint when none has been recorded yet.
func (sv *Supervisor) lastOverall(s State) float64 {
	if s.QualityMetrics != nil {
		return s.QualityMetrics.Overall
	}
	return 6.0
}

// memoryContext retrieves long-term memory as extra recognition context,
// querying with the latest user message so keyword and tsvector ranking
// have text to match. Best effort: failures are logged and ignored.
func (sv *Supervisor) memoryContext(ctx context.Context, s State) string {
	if sv.memory == nil {
		return ""
	}
	query := defaultSeedPrompt
	if m, ok := s.LastUserMessage(); ok {
		query = m.Content
	}
	entries, err := sv.memory.Retrieve(ctx, s.UserID, query)
	if err != nil {
		sv.logger.Debug("memory retrieval failed", slog.String("error", err.Error()))
		return ""
	}
	return strings.Join(entries, "\n")
}

// mergePatches folds b into a: appends concatenate, overwrites from b win
// when set.
func mergePatches(a, b StatePatch) StatePatch {
	out := a
	if b.CurrentSpecialist != nil {
		out.CurrentSpecialist = b.CurrentSpecialist
	}
	if b.WorkflowState != nil {
		out.WorkflowState = b.WorkflowState
	}
	if b.ConversationComplete != nil {
		out.ConversationComplete = b.ConversationComplete
	}
	if b.HandoffCount != nil {
		out.HandoffCount = b.HandoffCount
	}
	if b.EnhancedIdentity != nil {
		out.EnhancedIdentity = b.EnhancedIdentity
	}
	if b.RoutingDecision != nil {
		out.RoutingDecision = b.RoutingDecision
	}
	if b.QualityMetrics != nil {
		out.QualityMetrics = b.QualityMetrics
	}
	if b.ConfidenceScore != nil {
		out.ConfidenceScore = b.ConfidenceScore
	}
	if b.IntelligenceLevel != nil {
		out.IntelligenceLevel = b.IntelligenceLevel
	}
	if b.NeedsHumanReview != nil {
		out.NeedsHumanReview = b.NeedsHumanReview
	}
	if b.PendingInterrupt != nil {
		out.PendingInterrupt = b.PendingInterrupt
	}
	out.ClearInterrupt = out.ClearInterrupt || b.ClearInterrupt
	out.Messages = append(out.Messages, b.Messages...)
	out.ToolsUsed = append(out.ToolsUsed, b.ToolsUsed...)
	out.SpecialistHandoffs = append(out.SpecialistHandoffs, b.SpecialistHandoffs...)
	out.ResourceRecommendations = append(out.ResourceRecommendations, b.ResourceRecommendations...)
	out.ErrorRecoveryLog = append(out.ErrorRecoveryLog, b.ErrorRecoveryLog...)
	out.ReflectionHistory = append(out.ReflectionHistory, b.ReflectionHistory...)
	if len(b.CoordinationMetadata) > 0 {
		if out.CoordinationMetadata == nil {
			out.CoordinationMetadata = map[string]string{}
		}
		for k, v := range b.CoordinationMetadata {
			out.CoordinationMetadata[k] = v
		}
	}
	return out
}
