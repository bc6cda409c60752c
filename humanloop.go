package compass

// sensitiveTopicLexicon triggers an urgent escalation regardless of other
// signals.
var sensitiveTopicLexicon = []string{
	"discrimination", "harassment", "mental health", "crisis", "emergency",
}

// Intervention reasons reported in InterventionAssessment.Reasons.
const (
	ReasonLowQuality       = "quality_below_threshold"
	ReasonUncertainRouting = "routing_uncertain"
	ReasonExcessiveHandoff = "excessive_handoffs"
	ReasonRepeatedErrors   = "repeated_errors"
	ReasonSensitiveTopic   = "sensitive_topic"
)

// HumanLoopCoordinator decides whether a turn needs a human, and how
// urgently. Priority is the maximum across triggered signals.
type HumanLoopCoordinator struct {
	qualityFloor      float64
	handoffCeiling    int
	errorCeiling      int
	escalationContact string
}

func NewHumanLoopCoordinator(escalationContact string) *HumanLoopCoordinator {
	return &HumanLoopCoordinator{
		qualityFloor:      5.0,
		handoffCeiling:    4,
		errorCeiling:      2,
		escalationContact: escalationContact,
	}
}

// Assess evaluates the intervention signals against the current state and
// the latest user message.
func (h *HumanLoopCoordinator) Assess(s State, userMessage string) InterventionAssessment {
	var a InterventionAssessment
	a.Priority = PriorityLow

	add := func(reason string, p Priority) {
		a.NeedsIntervention = true
		a.Priority = a.Priority.Max(p)
		a.Reasons = append(a.Reasons, reason)
	}

	if s.QualityMetrics != nil && s.QualityMetrics.Overall < h.qualityFloor && qualityIsCurrent(s) {
		add(ReasonLowQuality, PriorityMedium)
	}
	if s.RoutingDecision != nil && s.RoutingDecision.ConfidenceLevel == ConfidenceUncertain {
		add(ReasonUncertainRouting, PriorityMedium)
	}
	if s.HandoffCount >= h.handoffCeiling {
		add(ReasonExcessiveHandoff, PriorityHigh)
	}
	if len(s.ErrorRecoveryLog) >= h.errorCeiling {
		add(ReasonRepeatedErrors, PriorityUrgent)
	}
	if countHits(foldText(userMessage), sensitiveTopicLexicon) > 0 {
		add(ReasonSensitiveTopic, PriorityUrgent)
	}

	if a.Priority == PriorityHigh || a.Priority == PriorityUrgent {
		a.WaitSeconds = 60
		a.EscalationContact = h.escalationContact
	} else {
		a.WaitSeconds = 300
	}
	return a
}

// qualityIsCurrent reports whether the quality metrics still describe the
// reply the user is reacting to. Metrics whose scored message precedes the
// latest user message belong to an already-answered exchange. Metrics
// without a scored message id count as current.
func qualityIsCurrent(s State) bool {
	m := s.QualityMetrics
	if m == nil {
		return false
	}
	if m.ScoredMessageID == "" {
		return true
	}
	lastUser, scored := -1, -1
	for i := range s.Messages {
		if s.Messages[i].Role == RoleUser {
			lastUser = i
		}
		if s.Messages[i].ID == m.ScoredMessageID {
			scored = i
		}
	}
	return scored == -1 || scored > lastUser
}
