package compass

import "sync"

// SupervisorAction is the tracker's recommendation for the next move.
type SupervisorAction string

const (
	ActionDelegate SupervisorAction = "delegate"
	ActionClarify  SupervisorAction = "clarify"
	ActionGuide    SupervisorAction = "guide"
)

// SessionStats is the rolling quality profile for one session.
type SessionStats struct {
	Scores         []float64 `json:"scores"`
	SessionAverage float64   `json:"session_average"`
	ResponseCount  int       `json:"response_count"`
}

// PerformanceTracker keeps per-session rolling quality averages. Entries
// are private to their session; the mutex only guards the map itself
// against turns of different conversations running concurrently.
type PerformanceTracker struct {
	mu       sync.Mutex
	sessions map[string]*SessionStats

	delegateQualityMin float64
}

func NewPerformanceTracker() *PerformanceTracker {
	return &PerformanceTracker{
		sessions:           make(map[string]*SessionStats),
		delegateQualityMin: 6.0,
	}
}

// Record appends the latest overall score for the session and returns the
// updated stats snapshot.
func (t *PerformanceTracker) Record(sessionID string, overall float64) SessionStats {
	t.mu.Lock()
	defer t.mu.Unlock()

	st, ok := t.sessions[sessionID]
	if !ok {
		st = &SessionStats{}
		t.sessions[sessionID] = st
	}
	st.Scores = append(st.Scores, overall)
	st.ResponseCount = len(st.Scores)
	sum := 0.0
	for _, s := range st.Scores {
		sum += s
	}
	st.SessionAverage = sum / float64(st.ResponseCount)

	out := *st
	out.Scores = append([]float64(nil), st.Scores...)
	return out
}

// Stats returns the session snapshot without recording anything.
func (t *PerformanceTracker) Stats(sessionID string) (SessionStats, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	st, ok := t.sessions[sessionID]
	if !ok {
		return SessionStats{}, false
	}
	out := *st
	out.Scores = append([]float64(nil), st.Scores...)
	return out, true
}

// NextAction selects the supervisor's move from routing confidence and
// the latest overall quality.
func (t *PerformanceTracker) NextAction(confidence Confidence, overall float64) SupervisorAction {
	switch {
	case (confidence == ConfidenceHigh || confidence == ConfidenceMedium) && overall >= t.delegateQualityMin:
		return ActionDelegate
	case confidence == ConfidenceUncertain:
		return ActionClarify
	default:
		return ActionGuide
	}
}
