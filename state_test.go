package compass

import "testing"

func TestMergeOverwriteFields(t *testing.T) {
	s := NewState("u1", "c1")
	s.HandoffCount = 1

	merged := s.Merge(StatePatch{
		CurrentSpecialist:    Ptr(VeteransSpecialist),
		WorkflowState:        Ptr(WorkflowCompleted),
		ConversationComplete: Ptr(true),
		ConfidenceScore:      Ptr(0.8),
	})

	if merged.CurrentSpecialist != VeteransSpecialist {
		t.Errorf("CurrentSpecialist = %q, want %q", merged.CurrentSpecialist, VeteransSpecialist)
	}
	if merged.WorkflowState != WorkflowCompleted {
		t.Errorf("WorkflowState = %q, want completed", merged.WorkflowState)
	}
	if !merged.ConversationComplete {
		t.Error("ConversationComplete not set")
	}
	if merged.ConfidenceScore != 0.8 {
		t.Errorf("ConfidenceScore = %v, want 0.8", merged.ConfidenceScore)
	}
	// untouched fields survive
	if merged.HandoffCount != 1 {
		t.Errorf("HandoffCount = %d, want 1", merged.HandoffCount)
	}
}

func TestMergeAppendsNeverTruncate(t *testing.T) {
	s := NewState("u1", "c1")
	s = s.Merge(StatePatch{Messages: []Message{UserMessage("one")}})
	s = s.Merge(StatePatch{
		Messages:  []Message{UserMessage("two")},
		ToolsUsed: []string{"resource_search"},
	})

	if len(s.Messages) != 2 {
		t.Fatalf("len(Messages) = %d, want 2", len(s.Messages))
	}
	if s.Messages[0].Content != "one" || s.Messages[1].Content != "two" {
		t.Errorf("message order broken: %q, %q", s.Messages[0].Content, s.Messages[1].Content)
	}
	if len(s.ToolsUsed) != 1 {
		t.Errorf("len(ToolsUsed) = %d, want 1", len(s.ToolsUsed))
	}
}

func TestMergeHandoffCountMonotone(t *testing.T) {
	s := NewState("u1", "c1")
	s.HandoffCount = 2

	lowered := s.Merge(StatePatch{HandoffCount: Ptr(1)})
	if lowered.HandoffCount != 2 {
		t.Errorf("HandoffCount lowered to %d, want 2", lowered.HandoffCount)
	}

	raised := s.Merge(StatePatch{HandoffCount: Ptr(3)})
	if raised.HandoffCount != 3 {
		t.Errorf("HandoffCount = %d, want 3", raised.HandoffCount)
	}
}

func TestMergeClearInterrupt(t *testing.T) {
	s := NewState("u1", "c1")
	s.PendingInterrupt = &InterruptRequest{Node: SupervisorNode}

	cleared := s.Merge(StatePatch{ClearInterrupt: true})
	if cleared.PendingInterrupt != nil {
		t.Error("PendingInterrupt not cleared")
	}

	// setting a new interrupt wins over clearing
	req := &InterruptRequest{Node: SupervisorNode, Question: "q"}
	set := s.Merge(StatePatch{PendingInterrupt: req, ClearInterrupt: true})
	if set.PendingInterrupt == nil || set.PendingInterrupt.Question != "q" {
		t.Error("PendingInterrupt overwrite lost")
	}
}

func TestCloneDoesNotAlias(t *testing.T) {
	s := NewState("u1", "c1")
	s.Messages = []Message{AssistantMessage(SupervisorNode, "hi")}
	s.CoordinationMetadata = map[string]string{"k": "v"}
	s.EnhancedIdentity = &IdentityProfile{PrimaryIdentity: IdentityVeteran}

	c := s.Clone()
	c.Messages[0].Content = "changed"
	c.Messages[0].Metadata[MetaAgent] = "other"
	c.CoordinationMetadata["k"] = "changed"
	c.EnhancedIdentity.PrimaryIdentity = IdentityStudent

	if s.Messages[0].Content != "hi" {
		t.Error("clone aliased Messages")
	}
	if s.Messages[0].Metadata[MetaAgent] != SupervisorNode {
		t.Error("clone aliased message metadata")
	}
	if s.CoordinationMetadata["k"] != "v" {
		t.Error("clone aliased CoordinationMetadata")
	}
	if s.EnhancedIdentity.PrimaryIdentity != IdentityVeteran {
		t.Error("clone aliased EnhancedIdentity")
	}
}

func TestAssistantAfterLastUser(t *testing.T) {
	s := NewState("u1", "c1")
	s.Messages = []Message{
		UserMessage("question"),
		AssistantMessage(SupervisorNode, "answer"),
		UserMessage("followup"),
	}
	if _, ok := s.AssistantAfterLastUser(); ok {
		t.Error("followup has no reply yet, want ok=false")
	}

	s.Messages = append(s.Messages, AssistantMessage(VeteransSpecialist, "reply"))
	msg, ok := s.AssistantAfterLastUser()
	if !ok || msg.Metadata[MetaAgent] != VeteransSpecialist {
		t.Errorf("got %v ok=%v, want specialist reply", msg.Metadata, ok)
	}

	// after a delegation the newest assistant message wins, not the
	// supervisor's earlier tool-call message
	toolCallMsg := AssistantMessage(SupervisorNode, "")
	toolCallMsg.ToolCalls = []ToolCall{{ID: "call_1", Name: DelegationToolName(VeteransSpecialist)}}
	s.Messages = []Message{
		UserMessage("question"),
		toolCallMsg,
		ToolResultMessage("call_1", "delegating"),
		AssistantMessage(VeteransSpecialist, "here is the plan"),
	}
	msg, ok = s.AssistantAfterLastUser()
	if !ok || msg.Metadata[MetaAgent] != VeteransSpecialist {
		t.Errorf("got %v ok=%v, want the newest assistant message", msg.Metadata, ok)
	}
}

func TestMergeAppendUnionById(t *testing.T) {
	a := UserMessage("a")
	b := AssistantMessage(SupervisorNode, "b")
	c := UserMessage("c")

	merged := MergeAppend([]Message{a, b}, []Message{a, b, c})
	if len(merged) != 3 {
		t.Fatalf("len = %d, want 3", len(merged))
	}
	if merged[2].ID != c.ID {
		t.Error("new record must append after base records")
	}
}
