package compass

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
)

// specialistPersonas map each specialist to its system prompt preamble.
var specialistPersonas = map[string]string{
	VeteransSpecialist: `You are a career specialist for military veterans. Translate
military experience into civilian terms, point to veteran-specific programs (GI Bill,
SkillBridge, veteran hiring initiatives), and be concrete about next steps.`,
	InternationalSpecialist: `You are a career specialist for international professionals.
Address work authorization, credential evaluation, and sponsor-friendly employers.
Never give legal advice; point to accredited resources instead.`,
	EJSpecialist: `You are a career specialist for environmental-justice community members.
Connect people to clean-economy jobs, local training programs, and community
organizations. Center equity and geographic access in every recommendation.`,
	CareersSpecialist: `You are a general career specialist. Help with career changes,
entry-level searches, resumes, and interview preparation. Give one clear, actionable
next step in every answer.`,
}

// Specialist is a leaf node: it answers in its domain and hands control
// back to the supervisor unless it detects completion or the round-trip
// cap. Specialists never increment handoff_count.
type Specialist struct {
	name      string
	llm       LlmClient
	tools     *ToolRegistry
	resources ResourceSearch
	checker   *CompletionChecker
	recovery  *ErrorRecovery
	logger    *slog.Logger

	completeAt   float64
	returnTripAt int
}

// SpecialistConfig wires one specialist node.
type SpecialistConfig struct {
	Name      string
	Llm       LlmClient
	Resources ResourceSearch
	Logger    *slog.Logger
}

func NewSpecialist(cfg SpecialistConfig) *Specialist {
	sp := &Specialist{
		name:         cfg.Name,
		llm:          cfg.Llm,
		resources:    cfg.Resources,
		checker:      NewCompletionChecker(),
		recovery:     NewErrorRecovery(cfg.Logger),
		logger:       cfg.Logger,
		completeAt:   0.6,
		returnTripAt: 2,
	}
	if sp.logger == nil {
		sp.logger = nopLogger
	}
	sp.tools = NewToolRegistry()
	if cfg.Resources != nil {
		sp.tools.Register(newResourceSearchTool(cfg.Resources))
	}
	return sp
}

// Node returns the specialist as a graph node handler.
func (sp *Specialist) Node() NodeFunc { return sp.run }

// Edge is the shared specialist conditional edge: end on completion or
// at the handoff cap, otherwise return to the supervisor.
func SpecialistEdge(s State) string {
	if s.ConversationComplete {
		return EndNode
	}
	if s.HandoffCount >= 3 {
		return EndNode
	}
	return SupervisorNode
}

func (sp *Specialist) run(ctx context.Context, s State) (NodeResult, error) {
	userText := defaultSeedPrompt
	if m, ok := s.LastUserMessage(); ok {
		userText = m.Content
	}

	response, patch, err := sp.respond(ctx, s, userText)
	if err != nil {
		return NodeResult{}, err
	}

	assessment := sp.checker.Check(userText, s, response)
	switch {
	case assessment.Score >= sp.completeAt:
		msg := AssistantMessage(sp.name, response+"\n\nIt sounds like you have what you need. Best of luck!")
		msg.Metadata[MetaConversationDone] = "true"
		patch.Messages = append(patch.Messages, msg)
		patch.ConversationComplete = Ptr(true)
		patch.WorkflowState = Ptr(WorkflowCompleted)
		return Goto(EndNode, patch), nil

	case s.HandoffCount >= sp.returnTripAt:
		// One consultation left in the budget: make it count and stop
		// the round-trips here.
		msg := AssistantMessage(sp.name, response)
		patch.Messages = append(patch.Messages, msg)
		return Goto(EndNode, patch), nil

	default:
		msg := AssistantMessage(sp.name, response)
		patch.Messages = append(patch.Messages, msg)
		patch.SpecialistHandoffs = append(patch.SpecialistHandoffs, HandoffRecord{
			ID:        NewID(),
			FromNode:  sp.name,
			ToNode:    SupervisorNode,
			Timestamp: NowUnix(),
		})
		patch.CurrentSpecialist = Ptr(SupervisorNode)
		return Goto(SupervisorNode, patch), nil
	}
}

// respond produces the specialist's answer, running any tool calls the
// LLM requests. LLM failures degrade to a static fallback answer.
func (sp *Specialist) respond(ctx context.Context, s State, userText string) (string, StatePatch, error) {
	var patch StatePatch

	req := CompletionRequest{
		System:   sp.systemPrompt(s),
		Messages: s.Messages,
		Tools:    sp.tools.Definitions(),
	}
	completion, err := sp.llm.Complete(ctx, req)
	if err != nil {
		if !Recoverable(err) {
			return "", patch, err
		}
		rec := sp.recovery.Record(ErrorTypeLLM, err, RecoveryNeutralDefault, map[string]string{"node": sp.name})
		patch.ErrorRecoveryLog = append(patch.ErrorRecoveryLog, rec)
		return sp.fallbackResponse(), patch, nil
	}

	if len(completion.ToolCalls) == 0 {
		return completion.Content, patch, nil
	}

	assistant := AssistantMessage(sp.name, completion.Content)
	assistant.ToolCalls = completion.ToolCalls
	patch.Messages = append(patch.Messages, assistant)

	var toolNotes []string
	for _, call := range completion.ToolCalls {
		result, err := sp.tools.Invoke(ctx, call.Name, call.Args, s)
		if err != nil {
			if ctx.Err() != nil {
				return "", patch, ctx.Err()
			}
			msg, rec := sp.recovery.RecoverTool(call, err)
			patch.Messages = append(patch.Messages, msg)
			patch.ErrorRecoveryLog = append(patch.ErrorRecoveryLog, rec)
			continue
		}
		patch.Messages = append(patch.Messages, ToolResultMessage(call.ID, result.Content))
		patch.ToolsUsed = append(patch.ToolsUsed, call.Name)
		if call.Name == ResourceSearchTool && result.Content != "" {
			patch.ResourceRecommendations = append(patch.ResourceRecommendations, result.Content)
			toolNotes = append(toolNotes, result.Content)
		}
	}

	// Second pass folds tool output into the final answer.
	followup := CompletionRequest{
		System:   sp.systemPrompt(s) + "\n\nUse the tool results already in the conversation to answer.",
		Messages: append(append([]Message(nil), s.Messages...), patch.Messages...),
	}
	final, err := sp.llm.Complete(ctx, followup)
	if err != nil {
		if !Recoverable(err) {
			return "", patch, err
		}
		rec := sp.recovery.Record(ErrorTypeLLM, err, RecoveryNeutralDefault, map[string]string{"node": sp.name})
		patch.ErrorRecoveryLog = append(patch.ErrorRecoveryLog, rec)
		return sp.fallbackWithNotes(toolNotes), patch, nil
	}
	return final.Content, patch, nil
}

func (sp *Specialist) systemPrompt(s State) string {
	var b strings.Builder
	b.WriteString(specialistPersonas[sp.name])
	if task := s.CoordinationMetadata["delegation_task"]; task != "" {
		fmt.Fprintf(&b, "\n\nThe supervisor delegated this task to you: %s", task)
	}
	if s.EnhancedIdentity != nil {
		fmt.Fprintf(&b, "\nUser identity: %s.", describeIdentity(*s.EnhancedIdentity))
		if len(s.EnhancedIdentity.BarriersIdentified) > 0 {
			fmt.Fprintf(&b, " Known barriers: %s.", strings.Join(s.EnhancedIdentity.BarriersIdentified, ", "))
		}
	}
	return b.String()
}

func (sp *Specialist) fallbackResponse() string {
	return "I wasn't able to pull everything together just now, but here is a solid starting " +
		"point: visit your state workforce development website and search for programs in your " +
		"field, then contact their career services office to schedule an advising session."
}

func (sp *Specialist) fallbackWithNotes(notes []string) string {
	if len(notes) == 0 {
		return sp.fallbackResponse()
	}
	return "Here is what I found:\n" + strings.Join(notes, "\n")
}

// newResourceSearchTool exposes a ResourceSearch as an LLM-callable tool.
// Search failures produce a fallback string, never an error.
func newResourceSearchTool(rs ResourceSearch) Tool {
	params := []byte(`{
		"type": "object",
		"properties": {
			"query": {"type": "string", "description": "what to search for"}
		},
		"required": ["query"]
	}`)
	return FuncTool{
		Def: ToolDefinition{
			Name:        ResourceSearchTool,
			Description: "Look up career programs, training, and support resources for the user.",
			Parameters:  params,
		},
		Fn: func(ctx context.Context, args json.RawMessage, s State) (ToolResult, error) {
			var in struct {
				Query string `json:"query"`
			}
			_ = json.Unmarshal(args, &in)
			queryContext := ""
			if s.EnhancedIdentity != nil {
				queryContext = s.EnhancedIdentity.PrimaryIdentity
			}
			content, err := rs.Search(ctx, in.Query, queryContext)
			if err != nil {
				return ToolResult{Content: "no resources found for \"" + in.Query + "\"; try your state workforce development site"}, nil
			}
			return ToolResult{Content: content}, nil
		},
	}
}
