package compass

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
)

type recordedAnalytics struct {
	mu       sync.Mutex
	payloads []map[string]any
}

func (r *recordedAnalytics) Log(_ context.Context, _ string, payload map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.payloads = append(r.payloads, payload)
}

type fakeMemory struct {
	mu      sync.Mutex
	entries []string
}

func (f *fakeMemory) Retrieve(_ context.Context, _, _ string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.entries...), nil
}

func (f *fakeMemory) Store(_ context.Context, _, entry string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, entry)
	return nil
}

func delegationCall(specialist, task string) ToolCall {
	args, _ := json.Marshal(map[string]string{"task_description": task})
	return ToolCall{ID: NewID(), Name: DelegationToolName(specialist), Args: args}
}

func TestRunTurnDelegatesToSpecialist(t *testing.T) {
	llm := &scriptedLLM{queue: []Completion{
		{ToolCalls: []ToolCall{delegationCall(VeteransSpecialist, "translate military experience")}},
		{Content: "Here is a plan for translating your MOS into civilian roles."},
	}}
	store := newMemStore()
	orc := NewOrchestrator(store, llm)

	result, err := orc.RunTurn(context.Background(), "u1", "c1", "I'm a veteran looking for my first civilian job")
	if err != nil {
		t.Fatal(err)
	}

	if result.Status != TurnAwaitingUser {
		t.Errorf("Status = %q, want awaiting_user", result.Status)
	}
	if result.State.HandoffCount != 1 {
		t.Errorf("HandoffCount = %d, want 1", result.State.HandoffCount)
	}
	last, ok := result.State.LastAssistantMessage()
	if !ok || last.Metadata[MetaAgent] != VeteransSpecialist {
		t.Errorf("last assistant = %+v, want specialist reply", last)
	}
	if result.State.RoutingDecision == nil || result.State.RoutingDecision.SpecialistAssigned != VeteransSpecialist {
		t.Errorf("RoutingDecision = %+v", result.State.RoutingDecision)
	}
	if result.State.QualityMetrics == nil {
		t.Error("specialist reply must be quality scored")
	}
	if len(result.State.SpecialistHandoffs) != 2 {
		t.Errorf("SpecialistHandoffs = %d records, want delegate plus return", len(result.State.SpecialistHandoffs))
	}
	if _, ok := store.get("u1:c1"); !ok {
		t.Error("turn state not persisted")
	}
	if len(llm.requests) != 2 {
		t.Errorf("llm calls = %d, want 2", len(llm.requests))
	}
}

func TestRunTurnEndsAtHandoffCap(t *testing.T) {
	store := newMemStore()
	seeded := NewState("u1", "c1")
	seeded.HandoffCount = 3
	seeded.Messages = []Message{UserMessage("earlier question")}
	seedState(store, seeded)

	llm := &scriptedLLM{}
	orc := NewOrchestrator(store, llm)

	result, err := orc.RunTurn(context.Background(), "u1", "c1", "can you route me again?")
	if err != nil {
		t.Fatal(err)
	}
	if result.Status != TurnCompleted {
		t.Errorf("Status = %q, want completed", result.Status)
	}
	last, _ := result.State.LastAssistantMessage()
	if last.Metadata[MetaMaxHandoffsReached] != "true" || last.Metadata[MetaConversationDone] != "true" {
		t.Errorf("metadata = %v, want cap flags", last.Metadata)
	}
	if len(llm.requests) != 0 {
		t.Errorf("llm calls = %d, want 0 at the cap", len(llm.requests))
	}
}

func TestRunTurnDetectsNaturalEnding(t *testing.T) {
	llm := &scriptedLLM{}
	orc := NewOrchestrator(newMemStore(), llm)

	result, err := orc.RunTurn(context.Background(), "u1", "c1", "Thanks, that's all I needed.")
	if err != nil {
		t.Fatal(err)
	}
	if result.Status != TurnCompleted {
		t.Errorf("Status = %q, want completed", result.Status)
	}
	if !result.State.ConversationComplete || result.State.WorkflowState != WorkflowCompleted {
		t.Errorf("state = %+v, want completed workflow", result.State.WorkflowState)
	}
	last, _ := result.State.LastAssistantMessage()
	if last.Metadata[MetaConversationDone] != "true" {
		t.Errorf("metadata = %v, want conversation_complete", last.Metadata)
	}
	if len(llm.requests) != 0 {
		t.Errorf("llm calls = %d, want 0 for a detected ending", len(llm.requests))
	}
}

func TestRunTurnEscalatesSensitiveTopic(t *testing.T) {
	llm := &scriptedLLM{}
	orc := NewOrchestrator(newMemStore(), llm, WithEscalationContact("reviewers@example.com"))

	result, err := orc.RunTurn(context.Background(), "u1", "c1", "I'm in crisis after harassment at my last job")
	if err != nil {
		t.Fatal(err)
	}
	if result.Status != TurnAwaitingHuman {
		t.Errorf("Status = %q, want awaiting_human", result.Status)
	}
	if result.Review != nil {
		t.Error("urgent escalation ends the turn, not an interrupt")
	}
	if result.State.WorkflowState != WorkflowPendingHuman || !result.State.NeedsHumanReview {
		t.Errorf("state = %q review=%v, want pending_human", result.State.WorkflowState, result.State.NeedsHumanReview)
	}
	last, _ := result.State.LastAssistantMessage()
	if last.Metadata[MetaEscalation] != "true" || !strings.Contains(last.Content, "reviewers@example.com") {
		t.Errorf("escalation message = %+v", last)
	}
	if len(llm.requests) != 0 {
		t.Errorf("llm calls = %d, want 0 before escalation", len(llm.requests))
	}
}

func TestRunTurnInterruptsOnLowQualityThenResumes(t *testing.T) {
	store := newMemStore()
	seeded := NewState("u1", "c1")
	seeded.Messages = []Message{
		UserMessage("help me plan a career move"),
		AssistantMessage(SupervisorNode, "a first answer"),
	}
	seeded.QualityMetrics = &QualityMetrics{Overall: 4.5}
	seedState(store, seeded)

	llm := &scriptedLLM{}
	orc := NewOrchestrator(store, llm)

	result, err := orc.RunTurn(context.Background(), "u1", "c1", "what else should I do?")
	if err != nil {
		t.Fatal(err)
	}
	if result.Status != TurnAwaitingHuman {
		t.Fatalf("Status = %q, want awaiting_human", result.Status)
	}
	if result.Review == nil {
		t.Fatal("want a pending review")
	}
	if !strings.Contains(result.Review.Question, ReasonLowQuality) {
		t.Errorf("Question = %q, want low-quality reason", result.Review.Question)
	}
	for _, opt := range ReviewOptions {
		found := false
		for _, have := range result.Review.Options {
			if have == opt {
				found = true
			}
		}
		if !found {
			t.Errorf("Options = %v, missing %q", result.Review.Options, opt)
		}
	}
	saved, _ := store.get("u1:c1")
	if saved.PendingInterrupt == nil || saved.PendingInterrupt.Node != SupervisorNode {
		t.Fatalf("PendingInterrupt = %+v, want persisted at supervisor", saved.PendingInterrupt)
	}
	if len(llm.requests) != 0 {
		t.Errorf("llm calls = %d, want 0 before review", len(llm.requests))
	}

	// Approving resumes the pipeline and produces the deferred response.
	result, err = orc.ResumeTurn(context.Background(), "u1", "c1", DecisionApprove)
	if err != nil {
		t.Fatal(err)
	}
	if result.Status != TurnAwaitingUser {
		t.Errorf("Status after approve = %q, want awaiting_user", result.Status)
	}
	if result.State.PendingInterrupt != nil || result.State.NeedsHumanReview {
		t.Error("interrupt not cleared after approval")
	}
	if len(llm.requests) != 1 {
		t.Errorf("llm calls after approve = %d, want 1", len(llm.requests))
	}
	last, ok := result.State.LastAssistantMessage()
	if !ok || last.Metadata[MetaAgent] != SupervisorNode {
		t.Errorf("last assistant = %+v, want supervisor reply", last)
	}
}

func TestResumeTurnEscalateHandsToHuman(t *testing.T) {
	store := newMemStore()
	seeded := NewState("u1", "c1")
	seeded.Messages = []Message{UserMessage("help me decide")}
	seeded.QualityMetrics = &QualityMetrics{Overall: 3.0}
	seedState(store, seeded)

	llm := &scriptedLLM{}
	orc := NewOrchestrator(store, llm, WithEscalationContact("reviewers@example.com"))

	if _, err := orc.RunTurn(context.Background(), "u1", "c1", "still unsure"); err != nil {
		t.Fatal(err)
	}

	result, err := orc.ResumeTurn(context.Background(), "u1", "c1", DecisionEscalate)
	if err != nil {
		t.Fatal(err)
	}
	if result.Status != TurnAwaitingHuman {
		t.Errorf("Status = %q, want awaiting_human", result.Status)
	}
	if result.Review != nil {
		t.Error("escalation must not leave a pending review")
	}
	if result.State.PendingInterrupt != nil {
		t.Error("interrupt survived escalation")
	}
	last, _ := result.State.LastAssistantMessage()
	if last.Metadata[MetaEscalation] != "true" {
		t.Errorf("last message = %+v, want escalation", last)
	}
	if len(llm.requests) != 0 {
		t.Errorf("llm calls = %d, want 0 for escalate", len(llm.requests))
	}
}

func TestResumeTurnWithoutInterrupt(t *testing.T) {
	orc := NewOrchestrator(newMemStore(), &scriptedLLM{})
	_, err := orc.ResumeTurn(context.Background(), "u1", "c1", DecisionApprove)
	if !errors.Is(err, ErrNoPendingInterrupt) {
		t.Errorf("err = %v, want ErrNoPendingInterrupt", err)
	}
}

func TestRunTurnResourceSearchToolPairing(t *testing.T) {
	call := ToolCall{ID: NewID(), Name: ResourceSearchTool, Args: json.RawMessage(`{"query":"solar installer training"}`)}
	llm := &scriptedLLM{queue: []Completion{{ToolCalls: []ToolCall{call}}}}
	orc := NewOrchestrator(newMemStore(), llm, WithResourceSearch(&fakeResources{}))

	result, err := orc.RunTurn(context.Background(), "u1", "c1", "I want clean energy work near my frontline community")
	if err != nil {
		t.Fatal(err)
	}
	if result.Status != TurnAwaitingUser {
		t.Errorf("Status = %q, want awaiting_user", result.Status)
	}

	msgs := result.State.Messages
	if len(msgs) != 3 {
		t.Fatalf("len(Messages) = %d, want user, assistant, tool", len(msgs))
	}
	if len(msgs[1].ToolCalls) != 1 || msgs[2].Role != RoleTool {
		t.Fatalf("messages = %+v", msgs)
	}
	if msgs[2].ToolCallID != msgs[1].ToolCalls[0].ID {
		t.Error("tool message does not answer the assistant's tool call")
	}
	if len(result.State.ToolsUsed) != 1 || result.State.ToolsUsed[0] != ResourceSearchTool {
		t.Errorf("ToolsUsed = %v", result.State.ToolsUsed)
	}
	if len(result.State.ResourceRecommendations) != 1 ||
		!strings.Contains(result.State.ResourceRecommendations[0], "solar installer training") {
		t.Errorf("ResourceRecommendations = %v", result.State.ResourceRecommendations)
	}
}

func TestRunTurnRecoversFromLLMFailure(t *testing.T) {
	llm := &scriptedLLM{err: &ErrLLM{Provider: "openai", Message: "bad gateway"}}
	orc := NewOrchestrator(newMemStore(), llm)

	result, err := orc.RunTurn(context.Background(), "u1", "c1", "I'm switching careers after a layoff")
	if err != nil {
		t.Fatal(err)
	}
	if result.Status != TurnAwaitingUser {
		t.Errorf("Status = %q, want awaiting_user", result.Status)
	}
	if result.State.HandoffCount != 1 {
		t.Errorf("HandoffCount = %d, want 1 after fallback handoff", result.State.HandoffCount)
	}
	// one supervisor failure, one specialist failure, both absorbed
	if len(result.State.ErrorRecoveryLog) != 2 {
		t.Errorf("ErrorRecoveryLog = %+v, want 2 records", result.State.ErrorRecoveryLog)
	}
	last, _ := result.State.LastAssistantMessage()
	if last.Metadata[MetaAgent] != FallbackSpecialist {
		t.Errorf("last assistant agent = %q, want fallback specialist", last.Metadata[MetaAgent])
	}
	if last.Content == "" {
		t.Error("fallback answer must not be empty")
	}
}

func TestRunTurnPropagatesStoreFailure(t *testing.T) {
	store := newMemStore()
	store.fail = &ErrCorruptState{ConversationID: "c1", Cause: errors.New("bad json")}
	orc := NewOrchestrator(store, &scriptedLLM{})

	_, err := orc.RunTurn(context.Background(), "u1", "c1", "hello")
	var corrupt *ErrCorruptState
	if !errors.As(err, &corrupt) {
		t.Errorf("err = %v, want ErrCorruptState", err)
	}
}

func TestRunTurnCancelledContextKeepsPriorState(t *testing.T) {
	store := newMemStore()
	seeded := NewState("u1", "c1")
	seeded.Messages = []Message{UserMessage("first question")}
	seedState(store, seeded)

	orc := NewOrchestrator(store, &scriptedLLM{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := orc.RunTurn(ctx, "u1", "c1", "second question")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	saved, _ := store.get("u1:c1")
	if len(saved.Messages) != 1 {
		t.Error("cancelled turn must not persist new messages")
	}
}

func TestRunTurnShipsAnalyticsAndMemory(t *testing.T) {
	sink := &recordedAnalytics{}
	memory := &fakeMemory{}
	llm := &scriptedLLM{queue: []Completion{{Content: "First, apply to the SkillBridge program."}}}
	orc := NewOrchestrator(newMemStore(), llm, WithAnalytics(sink), WithMemoryStore(memory))

	result, err := orc.RunTurn(context.Background(), "u1", "c1", "I'm an army veteran starting a job search")
	if err != nil {
		t.Fatal(err)
	}
	if result.Status != TurnAwaitingUser {
		t.Fatalf("Status = %q", result.Status)
	}

	if len(sink.payloads) != 1 {
		t.Fatalf("analytics payloads = %d, want 1", len(sink.payloads))
	}
	payload := sink.payloads[0]
	if payload["status"] != string(TurnAwaitingUser) {
		t.Errorf("payload status = %v", payload["status"])
	}
	if payload["specialist"] != VeteransSpecialist {
		t.Errorf("payload specialist = %v", payload["specialist"])
	}
	if _, ok := payload["quality_overall"]; !ok {
		t.Error("payload missing quality_overall")
	}

	if len(memory.entries) != 1 || !strings.Contains(memory.entries[0], IdentityVeteran) {
		t.Errorf("memory entries = %v, want identity note", memory.entries)
	}
}

func TestRunTurnAnalyticsCarriesHandoffDelta(t *testing.T) {
	sink := &recordedAnalytics{}
	store := newMemStore()
	llm := &scriptedLLM{queue: []Completion{
		{ToolCalls: []ToolCall{delegationCall(VeteransSpecialist, "translate military experience")}},
		{Content: "Here is a plan for your transition."},
		{Content: "A direct follow-up answer with next steps."},
	}}
	orc := NewOrchestrator(store, llm, WithAnalytics(sink))

	if _, err := orc.RunTurn(context.Background(), "u1", "c1", "I'm a veteran looking for work"); err != nil {
		t.Fatal(err)
	}
	if _, err := orc.RunTurn(context.Background(), "u1", "c1", "what about certifications?"); err != nil {
		t.Fatal(err)
	}

	if len(sink.payloads) != 2 {
		t.Fatalf("analytics payloads = %d, want 2", len(sink.payloads))
	}
	if got := sink.payloads[0]["handoffs_this_turn"]; got != 1 {
		t.Errorf("first turn handoffs_this_turn = %v, want 1", got)
	}
	// the cumulative counter carries over, the delta does not
	if got := sink.payloads[1]["handoffs_this_turn"]; got != 0 {
		t.Errorf("second turn handoffs_this_turn = %v, want 0", got)
	}
	if got := sink.payloads[1]["handoff_count"]; got != 1 {
		t.Errorf("second turn handoff_count = %v, want 1", got)
	}
}

func TestRunTurnSecondTurnRoutesWithHistory(t *testing.T) {
	store := newMemStore()
	llm := &scriptedLLM{queue: []Completion{
		{Content: "Tell me more about your visa situation."},
		{Content: "Start with a credential evaluation through a NACES member."},
	}}
	orc := NewOrchestrator(store, llm)

	first, err := orc.RunTurn(context.Background(), "u1", "c1", "I'm an international student on OPT")
	if err != nil {
		t.Fatal(err)
	}
	if first.Status != TurnAwaitingUser {
		t.Fatalf("first Status = %q", first.Status)
	}

	second, err := orc.RunTurn(context.Background(), "u1", "c1", "my degree is from abroad")
	if err != nil {
		t.Fatal(err)
	}
	if got := len(second.State.Messages); got != 4 {
		t.Errorf("len(Messages) = %d, want 4 across two turns", got)
	}
	// the second LLM call must carry the full history
	lastReq := llm.requests[len(llm.requests)-1]
	if len(lastReq.Messages) < 3 {
		t.Errorf("llm saw %d messages, want prior turns included", len(lastReq.Messages))
	}
	if second.State.RoutingDecision.SpecialistAssigned != InternationalSpecialist {
		t.Errorf("routing = %+v", second.State.RoutingDecision)
	}
}
