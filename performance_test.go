package compass

import "testing"

func TestRecordRollingAverage(t *testing.T) {
	tr := NewPerformanceTracker()

	st := tr.Record("u1:c1", 8.0)
	if st.ResponseCount != 1 || st.SessionAverage != 8.0 {
		t.Errorf("after first record: %+v", st)
	}

	st = tr.Record("u1:c1", 6.0)
	if st.ResponseCount != 2 || st.SessionAverage != 7.0 {
		t.Errorf("after second record: %+v", st)
	}

	// sessions are independent
	other := tr.Record("u2:c9", 4.0)
	if other.ResponseCount != 1 || other.SessionAverage != 4.0 {
		t.Errorf("other session: %+v", other)
	}
}

func TestStatsSnapshotDoesNotAlias(t *testing.T) {
	tr := NewPerformanceTracker()
	tr.Record("u1:c1", 8.0)

	st, ok := tr.Stats("u1:c1")
	if !ok {
		t.Fatal("Stats not found")
	}
	st.Scores[0] = 0

	again, _ := tr.Stats("u1:c1")
	if again.Scores[0] != 8.0 {
		t.Error("snapshot aliased internal scores")
	}

	if _, ok := tr.Stats("missing"); ok {
		t.Error("Stats for unknown session must report ok=false")
	}
}

func TestNextAction(t *testing.T) {
	tests := []struct {
		confidence Confidence
		overall    float64
		want       SupervisorAction
	}{
		{ConfidenceHigh, 8.0, ActionDelegate},
		{ConfidenceMedium, 6.0, ActionDelegate},
		{ConfidenceHigh, 5.9, ActionGuide},
		{ConfidenceUncertain, 8.0, ActionClarify},
		{ConfidenceLow, 8.0, ActionGuide},
	}

	tr := NewPerformanceTracker()
	for _, tt := range tests {
		if got := tr.NextAction(tt.confidence, tt.overall); got != tt.want {
			t.Errorf("NextAction(%q, %v) = %q, want %q", tt.confidence, tt.overall, got, tt.want)
		}
	}
}
