package compass

import "strings"

// Completion signal lexicons and weights.
var (
	gratitudeLexicon = []string{"thanks", "thank you", "appreciate", "grateful"}
	closureLexicon   = []string{"goodbye", "bye", "that helps", "got it", "perfect"}
	contactLexicon   = []string{"contact", "email", "phone", "apply", "website"}
	endingPhrases    = []string{"that's all i needed", "no other questions", "i'm all set"}
)

// Named signals reported in CompletionAssessment.Signals.
const (
	SignalGratitude     = "gratitude"
	SignalClosure       = "closure"
	SignalMaxHandoffs   = "handoff_threshold"
	SignalResourcesMet  = "resources_delivered"
	SignalContactGiven  = "contact_information"
	SignalNaturalEnding = "natural_ending"
)

// CompletionChecker accumulates weighted termination signals from the
// user message, the conversation state, and the latest response.
type CompletionChecker struct {
	completeAt float64
	followupAt float64
}

// NewCompletionChecker uses the supervisor thresholds: complete at 0.7,
// followup band starting at 0.3.
func NewCompletionChecker() *CompletionChecker {
	return &CompletionChecker{completeAt: 0.7, followupAt: 0.3}
}

// Check classifies whether the turn should end the conversation.
func (c *CompletionChecker) Check(userMessage string, s State, response string) CompletionAssessment {
	folded := foldText(userMessage)
	foldedResponse := foldText(response)

	var a CompletionAssessment
	add := func(signal string, weight float64) {
		a.Score += weight
		a.Signals = append(a.Signals, signal)
	}

	if countHits(folded, gratitudeLexicon) > 0 {
		add(SignalGratitude, 0.3)
	}
	if countHits(folded, closureLexicon) > 0 {
		add(SignalClosure, 0.3)
	}
	if s.HandoffCount >= 3 {
		add(SignalMaxHandoffs, 0.4)
	}
	if len(s.ResourceRecommendations) >= 2 {
		add(SignalResourcesMet, 0.2)
	}
	if countHits(foldedResponse, contactLexicon) > 0 {
		add(SignalContactGiven, 0.3)
	}
	for _, phrase := range endingPhrases {
		if strings.Contains(folded, phrase) {
			add(SignalNaturalEnding, 0.5)
			break
		}
	}

	a.Score = min(max(a.Score, 0), 1)
	switch {
	case a.Score >= c.completeAt:
		a.IsComplete = true
		a.RecommendedAction = ActionComplete
	case a.Score >= c.followupAt:
		a.NeedsFollowup = true
		a.RecommendedAction = ActionFollowup
	default:
		a.RecommendedAction = ActionContinue
	}
	return a
}
