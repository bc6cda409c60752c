package compass

import (
	"context"
	"errors"
	"log/slog"
)

// Error types recorded in the recovery log.
const (
	ErrorTypeTool       = "tool_error"
	ErrorTypeLLM        = "llm_error"
	ErrorTypeIdentity   = "identity_error"
	ErrorTypeRouting    = "routing_error"
	ErrorTypeQuality    = "quality_error"
	ErrorTypeSupervisor = "supervisor_error"
)

// Recovery strategies recorded alongside each error.
const (
	RecoveryToolMessage     = "tool_message_substitution"
	RecoveryFallbackHandoff = "fallback_specialist_handoff"
	RecoveryNeutralDefault  = "neutral_default_substitution"
)

const llmFallbackResponse = "I ran into a problem generating a full answer. " +
	"Let me connect you with a careers specialist who can help directly."

// ErrorRecovery turns in-turn failures into log records and fallback
// transitions. Everything except store failures and cancellation is
// recovered locally.
type ErrorRecovery struct {
	log *slog.Logger
}

func NewErrorRecovery(log *slog.Logger) *ErrorRecovery {
	if log == nil {
		log = nopLogger
	}
	return &ErrorRecovery{log: log}
}

// Record builds an ErrorRecord for the recovery log.
func (r *ErrorRecovery) Record(errType string, err error, strategy string, ctxInfo map[string]string) ErrorRecord {
	r.log.Warn("recovered error",
		slog.String("type", errType),
		slog.String("strategy", strategy),
		slog.String("error", err.Error()))
	return ErrorRecord{
		ErrorType:        errType,
		Message:          err.Error(),
		Timestamp:        NowUnix(),
		Context:          ctxInfo,
		RecoveryStrategy: strategy,
	}
}

// RecoverTool converts a failed tool invocation into a tool message so the
// pairing invariant holds, plus the matching log record.
func (r *ErrorRecovery) RecoverTool(call ToolCall, err error) (Message, ErrorRecord) {
	msg := ToolResultMessage(call.ID, "tool "+call.Name+" failed: "+err.Error())
	rec := r.Record(ErrorTypeTool, err, RecoveryToolMessage, map[string]string{"tool": call.Name})
	return msg, rec
}

// RecoverLLM converts a supervisor-level LLM failure into a fallback
// assistant message and a forced handoff to the fallback specialist. The
// handoff increments handoff_count like any supervisor delegation.
func (r *ErrorRecovery) RecoverLLM(s State, err error) NodeResult {
	rec := r.Record(ErrorTypeLLM, err, RecoveryFallbackHandoff, map[string]string{
		"conversation_id": s.ConversationID,
	})
	msg := AssistantMessage(SupervisorNode, llmFallbackResponse)
	handoff := HandoffRecord{
		ID:              NewID(),
		FromNode:        SupervisorNode,
		ToNode:          FallbackSpecialist,
		Timestamp:       NowUnix(),
		TaskDescription: "fallback after llm failure",
	}
	patch := StatePatch{
		Messages:           []Message{msg},
		ErrorRecoveryLog:   []ErrorRecord{rec},
		SpecialistHandoffs: []HandoffRecord{handoff},
		HandoffCount:       Ptr(s.HandoffCount + 1),
		CurrentSpecialist:  Ptr(FallbackSpecialist),
	}
	return Goto(FallbackSpecialist, patch)
}

// Recoverable reports whether an error may be absorbed inside the turn.
// Store failures and cancellation always propagate.
func Recoverable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var corrupt *ErrCorruptState
	if errors.As(err, &corrupt) {
		return false
	}
	return true
}
