package compass

import "encoding/json"

// --- Message protocol types ---

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Reserved metadata keys on assistant messages. The supervisor conditional
// edge inspects these to decide the next node.
const (
	MetaAgent               = "agent"
	MetaConversationDone    = "conversation_complete"
	MetaHandoffTo           = "handoff_to"
	MetaMaxHandoffsReached  = "max_handoffs_reached"
	MetaEscalation          = "escalation"
	MetaHumanReviewDecision = "human_review_decision"
)

// Message is a single conversation record. Assistant messages may carry
// tool calls; tool messages reference the call they answer via ToolCallID.
type Message struct {
	ID         string            `json:"id"`
	Role       string            `json:"role"`
	Content    string            `json:"content"`
	ToolCalls  []ToolCall        `json:"tool_calls,omitempty"`
	ToolCallID string            `json:"tool_call_id,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	CreatedAt  int64             `json:"created_at"`
}

// ToolCall is a single tool invocation request from the LLM.
type ToolCall struct {
	ID   string          `json:"id"`
	Name string          `json:"name"`
	Args json.RawMessage `json:"args"`
}

// --- Message constructors ---

func UserMessage(text string) Message {
	return Message{ID: NewID(), Role: RoleUser, Content: text, CreatedAt: NowUnix()}
}

func AssistantMessage(agent, text string) Message {
	return Message{
		ID:        NewID(),
		Role:      RoleAssistant,
		Content:   text,
		Metadata:  map[string]string{MetaAgent: agent},
		CreatedAt: NowUnix(),
	}
}

func ToolResultMessage(callID, content string) Message {
	return Message{ID: NewID(), Role: RoleTool, Content: content, ToolCallID: callID, CreatedAt: NowUnix()}
}

// --- LLM protocol types ---

// CompletionRequest is the input to an LlmClient.
type CompletionRequest struct {
	System   string           `json:"system,omitempty"`
	Messages []Message        `json:"messages"`
	Tools    []ToolDefinition `json:"tools,omitempty"`
}

// Completion is the LLM's answer: text, optional tool calls, token usage.
type Completion struct {
	Content   string     `json:"content"`
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
	Usage     Usage      `json:"usage"`
}

// Usage tracks token consumption for a single LLM call.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// ToolDefinition describes a callable tool to the LLM.
type ToolDefinition struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"` // JSON Schema
}

// --- Identity ---

// IdentityProfile is the recognizer's view of who the user is.
type IdentityProfile struct {
	PrimaryIdentity          string   `json:"primary_identity"`
	SecondaryIdentities      []string `json:"secondary_identities,omitempty"`
	IntersectionalityFactors []string `json:"intersectionality_factors,omitempty"`
	BarriersIdentified       []string `json:"barriers_identified,omitempty"`
	StrengthsIdentified      []string `json:"strengths_identified,omitempty"`
	GeographicContext        string   `json:"geographic_context,omitempty"`
	ConfidenceScore          float64  `json:"confidence_score"`
}

// --- Routing ---

// Confidence buckets for a routing decision.
type Confidence string

const (
	ConfidenceHigh      Confidence = "high"
	ConfidenceMedium    Confidence = "medium"
	ConfidenceLow       Confidence = "low"
	ConfidenceUncertain Confidence = "uncertain"
)

// RoutingDecision names the specialist chosen for the current identity
// profile together with the evidence behind the choice.
type RoutingDecision struct {
	SpecialistAssigned string     `json:"specialist_assigned"`
	ConfidenceLevel    Confidence `json:"confidence_level"`
	Reasoning          string     `json:"reasoning"`
	Alternatives       []string   `json:"alternatives,omitempty"`
	RecommendedTools   []string   `json:"recommended_tools,omitempty"`
	ExpectedOutcome    string     `json:"expected_outcome,omitempty"`
	SuccessMetrics     []string   `json:"success_metrics,omitempty"`
}

// --- Quality ---

// IntelligenceLevel buckets the overall quality score.
type IntelligenceLevel string

const (
	LevelBasic       IntelligenceLevel = "basic"
	LevelDeveloping  IntelligenceLevel = "developing"
	LevelProficient  IntelligenceLevel = "proficient"
	LevelAdvanced    IntelligenceLevel = "advanced"
	LevelExceptional IntelligenceLevel = "exceptional"
)

// QualityMetrics scores a response on the five rubric dimensions.
// Overall is the fixed weighted sum (0.25, 0.25, 0.20, 0.20, 0.10),
// rounded half-to-even at one decimal. ScoredMessageID records which
// assistant message the score describes; it stays empty when the metrics
// come from outside the pipeline.
type QualityMetrics struct {
	Clarity           float64           `json:"clarity"`
	Actionability     float64           `json:"actionability"`
	Personalization   float64           `json:"personalization"`
	SourceCitation    float64           `json:"source_citation"`
	EJAwareness       float64           `json:"ej_awareness"`
	Overall           float64           `json:"overall"`
	IntelligenceLevel IntelligenceLevel `json:"intelligence_level"`
	ScoredMessageID   string            `json:"scored_message_id,omitempty"`
}

// --- Completion detection ---

// NextAction is the completion checker's recommendation for the turn.
type NextAction string

const (
	ActionComplete NextAction = "complete"
	ActionFollowup NextAction = "followup"
	ActionContinue NextAction = "continue"
)

// CompletionAssessment is the output of the completion checker.
type CompletionAssessment struct {
	Score             float64    `json:"score"`
	Signals           []string   `json:"signals,omitempty"`
	IsComplete        bool       `json:"is_complete"`
	NeedsFollowup     bool       `json:"needs_followup"`
	RecommendedAction NextAction `json:"recommended_action"`
}

// --- Human loop ---

// Priority orders human-intervention urgency. Urgent > high > medium > low.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// rank maps priorities onto a comparable scale.
func (p Priority) rank() int {
	switch p {
	case PriorityUrgent:
		return 3
	case PriorityHigh:
		return 2
	case PriorityMedium:
		return 1
	default:
		return 0
	}
}

// Max returns the higher of two priorities.
func (p Priority) Max(q Priority) Priority {
	if q.rank() > p.rank() {
		return q
	}
	return p
}

// InterventionAssessment is the human-loop coordinator's verdict.
type InterventionAssessment struct {
	NeedsIntervention bool     `json:"needs_human_intervention"`
	Priority          Priority `json:"priority_level"`
	Reasons           []string `json:"reasons,omitempty"`
	WaitSeconds       int      `json:"recommended_wait_seconds"`
	EscalationContact string   `json:"escalation_contact,omitempty"`
}

// Review decision values a human may return through ResumeTurn.
const (
	DecisionApprove  = "approve_and_continue"
	DecisionModify   = "modify_approach"
	DecisionEscalate = "escalate_to_human_specialist"
	DecisionFeedback = "provide_feedback_and_retry"
)

// ReviewOptions is the fixed option set carried by a review interrupt.
var ReviewOptions = []string{DecisionApprove, DecisionModify, DecisionEscalate, DecisionFeedback}

// InterruptRequest is surfaced to the caller when a turn suspends for human
// review. Metadata carries the draft response so an approved resume can
// continue without re-sampling the LLM.
type InterruptRequest struct {
	Node     string            `json:"node"`
	Question string            `json:"question"`
	Options  []string          `json:"options,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// --- Records ---

// HandoffRecord documents one supervisor-to-specialist (or back) transition.
type HandoffRecord struct {
	ID              string `json:"id"`
	FromNode        string `json:"from_node"`
	ToNode          string `json:"to_node"`
	Timestamp       int64  `json:"timestamp"`
	TaskDescription string `json:"task_description,omitempty"`
	ToolCallID      string `json:"tool_call_id,omitempty"`
}

// ErrorRecord documents a recovered failure inside a turn.
type ErrorRecord struct {
	ErrorType        string            `json:"error_type"`
	Message          string            `json:"message"`
	Timestamp        int64             `json:"timestamp"`
	Context          map[string]string `json:"context,omitempty"`
	RecoveryStrategy string            `json:"recovery_strategy,omitempty"`
}
