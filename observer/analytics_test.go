package observer

import (
	"context"
	"testing"
)

// Without Init the global providers are no-ops; Log must still accept any
// payload shape without panicking.
func TestAnalyticsLogTolerantOfPayloadShape(t *testing.T) {
	inst, err := newInstruments()
	if err != nil {
		t.Fatal(err)
	}
	a := NewAnalytics(inst)

	a.Log(context.Background(), "s1", map[string]any{
		"status":             "awaiting_user",
		"specialist":         "veterans_specialist",
		"handoffs_this_turn": 1,
		"errors_this_turn":   0,
		"quality_overall":    7.5,
	})
	a.Log(context.Background(), "s1", map[string]any{"status": "awaiting_human"})
	a.Log(context.Background(), "s2", map[string]any{})
}
