package compass

import "maps"

// WorkflowState is the coarse lifecycle phase of a conversation.
type WorkflowState string

const (
	WorkflowActive          WorkflowState = "active"
	WorkflowPendingHuman    WorkflowState = "pending_human"
	WorkflowCompleted       WorkflowState = "completed"
	WorkflowWaitingForInput WorkflowState = "waiting_for_input"
)

// State is the full typed conversation state threaded through the graph.
//
// Fields split into two merge classes. Scalar and struct fields are
// overwrite: a patch value replaces the previous one. Slice fields are
// append-only: patches only ever add entries, never remove or reorder.
type State struct {
	UserID         string `json:"user_id"`
	ConversationID string `json:"conversation_id"`

	Messages []Message `json:"messages"`

	CurrentSpecialist    string        `json:"current_specialist,omitempty"`
	WorkflowState        WorkflowState `json:"workflow_state"`
	ConversationComplete bool          `json:"conversation_complete"`
	HandoffCount         int           `json:"handoff_count"`

	EnhancedIdentity  *IdentityProfile  `json:"enhanced_identity,omitempty"`
	RoutingDecision   *RoutingDecision  `json:"routing_decision,omitempty"`
	QualityMetrics    *QualityMetrics   `json:"quality_metrics,omitempty"`
	ConfidenceScore   float64           `json:"confidence_score"`
	IntelligenceLevel IntelligenceLevel `json:"intelligence_level,omitempty"`

	NeedsHumanReview bool              `json:"needs_human_review"`
	PendingInterrupt *InterruptRequest `json:"pending_interrupt,omitempty"`

	ToolsUsed               []string        `json:"tools_used,omitempty"`
	SpecialistHandoffs      []HandoffRecord `json:"specialist_handoffs,omitempty"`
	ResourceRecommendations []string        `json:"resource_recommendations,omitempty"`
	ErrorRecoveryLog        []ErrorRecord   `json:"error_recovery_log,omitempty"`
	ReflectionHistory       []string        `json:"reflection_history,omitempty"`

	CoordinationMetadata map[string]string `json:"coordination_metadata,omitempty"`
}

// NewState seeds an empty active conversation for the given identifiers.
func NewState(userID, conversationID string) State {
	return State{
		UserID:         userID,
		ConversationID: conversationID,
		WorkflowState:  WorkflowActive,
	}
}

// SessionID is the composite persistence key for a conversation.
func (s State) SessionID() string {
	return s.UserID + ":" + s.ConversationID
}

// LastUserMessage returns the most recent user message, or ok=false when
// the conversation has none.
func (s State) LastUserMessage() (Message, bool) {
	for i := len(s.Messages) - 1; i >= 0; i-- {
		if s.Messages[i].Role == RoleUser {
			return s.Messages[i], true
		}
	}
	return Message{}, false
}

// LastAssistantMessage returns the most recent assistant message, or
// ok=false when the conversation has none.
func (s State) LastAssistantMessage() (Message, bool) {
	for i := len(s.Messages) - 1; i >= 0; i-- {
		if s.Messages[i].Role == RoleAssistant {
			return s.Messages[i], true
		}
	}
	return Message{}, false
}

// AssistantAfterLastUser reports the newest assistant message that follows
// the latest user message. ok=false means the current user message has no
// reply yet, which is what routes the supervisor to a specialist.
func (s State) AssistantAfterLastUser() (Message, bool) {
	for i := len(s.Messages) - 1; i >= 0; i-- {
		switch s.Messages[i].Role {
		case RoleUser:
			return Message{}, false
		case RoleAssistant:
			return s.Messages[i], true
		}
	}
	return Message{}, false
}

// Clone deep-copies the state so node functions can build patches without
// aliasing slices or maps held by the engine's working copy.
func (s State) Clone() State {
	out := s
	out.Messages = cloneMessages(s.Messages)
	out.ToolsUsed = append([]string(nil), s.ToolsUsed...)
	out.SpecialistHandoffs = append([]HandoffRecord(nil), s.SpecialistHandoffs...)
	out.ResourceRecommendations = append([]string(nil), s.ResourceRecommendations...)
	out.ErrorRecoveryLog = append([]ErrorRecord(nil), s.ErrorRecoveryLog...)
	out.ReflectionHistory = append([]string(nil), s.ReflectionHistory...)
	if s.CoordinationMetadata != nil {
		out.CoordinationMetadata = maps.Clone(s.CoordinationMetadata)
	}
	if s.EnhancedIdentity != nil {
		v := *s.EnhancedIdentity
		v.SecondaryIdentities = append([]string(nil), s.EnhancedIdentity.SecondaryIdentities...)
		v.IntersectionalityFactors = append([]string(nil), s.EnhancedIdentity.IntersectionalityFactors...)
		v.BarriersIdentified = append([]string(nil), s.EnhancedIdentity.BarriersIdentified...)
		v.StrengthsIdentified = append([]string(nil), s.EnhancedIdentity.StrengthsIdentified...)
		out.EnhancedIdentity = &v
	}
	if s.RoutingDecision != nil {
		v := *s.RoutingDecision
		v.Alternatives = append([]string(nil), s.RoutingDecision.Alternatives...)
		v.RecommendedTools = append([]string(nil), s.RoutingDecision.RecommendedTools...)
		v.SuccessMetrics = append([]string(nil), s.RoutingDecision.SuccessMetrics...)
		out.RoutingDecision = &v
	}
	if s.QualityMetrics != nil {
		v := *s.QualityMetrics
		out.QualityMetrics = &v
	}
	if s.PendingInterrupt != nil {
		v := *s.PendingInterrupt
		v.Options = append([]string(nil), s.PendingInterrupt.Options...)
		if s.PendingInterrupt.Metadata != nil {
			v.Metadata = maps.Clone(s.PendingInterrupt.Metadata)
		}
		out.PendingInterrupt = &v
	}
	return out
}

func cloneMessages(in []Message) []Message {
	if in == nil {
		return nil
	}
	out := make([]Message, len(in))
	for i, m := range in {
		out[i] = m
		out[i].ToolCalls = append([]ToolCall(nil), m.ToolCalls...)
		if m.Metadata != nil {
			out[i].Metadata = maps.Clone(m.Metadata)
		}
	}
	return out
}

// StatePatch is a partial state update produced by a node. Nil pointer
// fields leave the overwrite field untouched; slice fields append.
type StatePatch struct {
	CurrentSpecialist    *string        `json:"current_specialist,omitempty"`
	WorkflowState        *WorkflowState `json:"workflow_state,omitempty"`
	ConversationComplete *bool          `json:"conversation_complete,omitempty"`
	HandoffCount         *int           `json:"handoff_count,omitempty"`

	EnhancedIdentity  *IdentityProfile   `json:"enhanced_identity,omitempty"`
	RoutingDecision   *RoutingDecision   `json:"routing_decision,omitempty"`
	QualityMetrics    *QualityMetrics    `json:"quality_metrics,omitempty"`
	ConfidenceScore   *float64           `json:"confidence_score,omitempty"`
	IntelligenceLevel *IntelligenceLevel `json:"intelligence_level,omitempty"`

	NeedsHumanReview *bool             `json:"needs_human_review,omitempty"`
	PendingInterrupt *InterruptRequest `json:"pending_interrupt,omitempty"`
	ClearInterrupt   bool              `json:"clear_interrupt,omitempty"`

	Messages                []Message         `json:"messages,omitempty"`
	ToolsUsed               []string          `json:"tools_used,omitempty"`
	SpecialistHandoffs      []HandoffRecord   `json:"specialist_handoffs,omitempty"`
	ResourceRecommendations []string          `json:"resource_recommendations,omitempty"`
	ErrorRecoveryLog        []ErrorRecord     `json:"error_recovery_log,omitempty"`
	ReflectionHistory       []string          `json:"reflection_history,omitempty"`
	CoordinationMetadata    map[string]string `json:"coordination_metadata,omitempty"`
}

// Ptr is a shorthand for taking the address of a literal in patch builders.
func Ptr[T any](v T) *T { return &v }

// Merge applies a patch to the state and returns the result. Overwrite
// fields take the patch value when set. Append-only fields are extended,
// never truncated. HandoffCount is monotone: a patch can only raise it.
func (s State) Merge(p StatePatch) State {
	out := s.Clone()

	if p.CurrentSpecialist != nil {
		out.CurrentSpecialist = *p.CurrentSpecialist
	}
	if p.WorkflowState != nil {
		out.WorkflowState = *p.WorkflowState
	}
	if p.ConversationComplete != nil {
		out.ConversationComplete = *p.ConversationComplete
	}
	if p.HandoffCount != nil && *p.HandoffCount > out.HandoffCount {
		out.HandoffCount = *p.HandoffCount
	}
	if p.EnhancedIdentity != nil {
		out.EnhancedIdentity = p.EnhancedIdentity
	}
	if p.RoutingDecision != nil {
		out.RoutingDecision = p.RoutingDecision
	}
	if p.QualityMetrics != nil {
		out.QualityMetrics = p.QualityMetrics
	}
	if p.ConfidenceScore != nil {
		out.ConfidenceScore = *p.ConfidenceScore
	}
	if p.IntelligenceLevel != nil {
		out.IntelligenceLevel = *p.IntelligenceLevel
	}
	if p.NeedsHumanReview != nil {
		out.NeedsHumanReview = *p.NeedsHumanReview
	}
	if p.PendingInterrupt != nil {
		out.PendingInterrupt = p.PendingInterrupt
	} else if p.ClearInterrupt {
		out.PendingInterrupt = nil
	}

	out.Messages = append(out.Messages, p.Messages...)
	out.ToolsUsed = append(out.ToolsUsed, p.ToolsUsed...)
	out.SpecialistHandoffs = append(out.SpecialistHandoffs, p.SpecialistHandoffs...)
	out.ResourceRecommendations = append(out.ResourceRecommendations, p.ResourceRecommendations...)
	out.ErrorRecoveryLog = append(out.ErrorRecoveryLog, p.ErrorRecoveryLog...)
	out.ReflectionHistory = append(out.ReflectionHistory, p.ReflectionHistory...)

	if len(p.CoordinationMetadata) > 0 {
		if out.CoordinationMetadata == nil {
			out.CoordinationMetadata = make(map[string]string, len(p.CoordinationMetadata))
		}
		maps.Copy(out.CoordinationMetadata, p.CoordinationMetadata)
	}
	return out
}
