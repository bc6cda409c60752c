package compass

import (
	"context"
	"strings"
	"testing"
)

func TestSpecialistReturnsToSupervisor(t *testing.T) {
	llm := &scriptedLLM{queue: []Completion{{Content: "Here is a concrete plan."}}}
	sp := NewSpecialist(SpecialistConfig{Name: VeteransSpecialist, Llm: llm})

	s := NewState("u1", "c1")
	s.HandoffCount = 1
	s.Messages = []Message{UserMessage("how do I translate my MOS?")}

	res, err := sp.Node()(context.Background(), s)
	if err != nil {
		t.Fatal(err)
	}
	if res.kind != kindGoto || res.target != SupervisorNode {
		t.Fatalf("res = %+v, want goto supervisor", res)
	}

	merged := s.Merge(res.patch)
	last, _ := merged.LastAssistantMessage()
	if last.Metadata[MetaAgent] != VeteransSpecialist {
		t.Errorf("agent = %q", last.Metadata[MetaAgent])
	}
	if merged.CurrentSpecialist != SupervisorNode {
		t.Errorf("CurrentSpecialist = %q, want handed back", merged.CurrentSpecialist)
	}
	if len(merged.SpecialistHandoffs) != 1 || merged.SpecialistHandoffs[0].ToNode != SupervisorNode {
		t.Errorf("SpecialistHandoffs = %+v", merged.SpecialistHandoffs)
	}
	// return trips never count against the handoff budget
	if merged.HandoffCount != 1 {
		t.Errorf("HandoffCount = %d, want unchanged", merged.HandoffCount)
	}
}

func TestSpecialistDetectsCompletion(t *testing.T) {
	llm := &scriptedLLM{queue: []Completion{{Content: "You're ready to start applying."}}}
	sp := NewSpecialist(SpecialistConfig{Name: CareersSpecialist, Llm: llm})

	s := NewState("u1", "c1")
	s.Messages = []Message{UserMessage("thanks, got it, that helps")}

	res, err := sp.Node()(context.Background(), s)
	if err != nil {
		t.Fatal(err)
	}
	if res.kind != kindGoto || res.target != EndNode {
		t.Fatalf("res = %+v, want goto end", res)
	}

	merged := s.Merge(res.patch)
	if !merged.ConversationComplete || merged.WorkflowState != WorkflowCompleted {
		t.Errorf("state = %+v, want completed", merged.WorkflowState)
	}
	last, _ := merged.LastAssistantMessage()
	if last.Metadata[MetaConversationDone] != "true" {
		t.Errorf("metadata = %v", last.Metadata)
	}
}

func TestSpecialistStopsRoundTripsAtBudget(t *testing.T) {
	llm := &scriptedLLM{queue: []Completion{{Content: "Final consultation notes."}}}
	sp := NewSpecialist(SpecialistConfig{Name: EJSpecialist, Llm: llm})

	s := NewState("u1", "c1")
	s.HandoffCount = 2
	s.Messages = []Message{UserMessage("what programs are near me?")}

	res, err := sp.Node()(context.Background(), s)
	if err != nil {
		t.Fatal(err)
	}
	if res.kind != kindGoto || res.target != EndNode {
		t.Fatalf("res = %+v, want goto end at round-trip budget", res)
	}
	merged := s.Merge(res.patch)
	if merged.ConversationComplete {
		t.Error("budget stop must not mark the conversation complete")
	}
}

func TestSpecialistSystemPromptCarriesDelegationContext(t *testing.T) {
	llm := &scriptedLLM{queue: []Completion{{Content: "answer"}}}
	sp := NewSpecialist(SpecialistConfig{Name: InternationalSpecialist, Llm: llm})

	s := NewState("u1", "c1")
	s.Messages = []Message{UserMessage("visa help")}
	s.CoordinationMetadata = map[string]string{"delegation_task": "map the OPT timeline"}
	s.EnhancedIdentity = &IdentityProfile{
		PrimaryIdentity:    IdentityInternational,
		BarriersIdentified: []string{"visa_restrictions"},
	}

	if _, err := sp.Node()(context.Background(), s); err != nil {
		t.Fatal(err)
	}
	system := llm.requests[0].System
	if !strings.Contains(system, "map the OPT timeline") {
		t.Errorf("system prompt missing delegation task: %q", system)
	}
	if !strings.Contains(system, IdentityInternational) || !strings.Contains(system, "visa_restrictions") {
		t.Errorf("system prompt missing identity context: %q", system)
	}
}

func TestSpecialistRunsToolsBeforeAnswering(t *testing.T) {
	call := ToolCall{ID: NewID(), Name: ResourceSearchTool, Args: []byte(`{"query":"solar training"}`)}
	llm := &scriptedLLM{queue: []Completion{
		{ToolCalls: []ToolCall{call}},
		{Content: "Based on the programs I found, start with the local solar training."},
	}}
	sp := NewSpecialist(SpecialistConfig{
		Name:      EJSpecialist,
		Llm:       llm,
		Resources: &fakeResources{},
	})

	s := NewState("u1", "c1")
	s.Messages = []Message{UserMessage("clean energy jobs?")}

	res, err := sp.Node()(context.Background(), s)
	if err != nil {
		t.Fatal(err)
	}
	merged := s.Merge(res.patch)
	if len(merged.ResourceRecommendations) != 1 {
		t.Errorf("ResourceRecommendations = %v", merged.ResourceRecommendations)
	}
	// assistant tool-call message pairs with its tool result
	var assistant, tool *Message
	for i := range merged.Messages {
		m := &merged.Messages[i]
		if len(m.ToolCalls) > 0 {
			assistant = m
		}
		if m.Role == RoleTool {
			tool = m
		}
	}
	if assistant == nil || tool == nil || tool.ToolCallID != assistant.ToolCalls[0].ID {
		t.Error("tool message pairing broken")
	}
	if len(llm.requests) != 2 {
		t.Errorf("llm calls = %d, want tool pass plus final answer", len(llm.requests))
	}
}

func TestSpecialistEdge(t *testing.T) {
	s := NewState("u1", "c1")
	if got := SpecialistEdge(s); got != SupervisorNode {
		t.Errorf("edge = %q, want supervisor", got)
	}

	s.HandoffCount = 3
	if got := SpecialistEdge(s); got != EndNode {
		t.Errorf("edge at cap = %q, want end", got)
	}

	s = NewState("u1", "c1")
	s.ConversationComplete = true
	if got := SpecialistEdge(s); got != EndNode {
		t.Errorf("edge when complete = %q, want end", got)
	}
}
