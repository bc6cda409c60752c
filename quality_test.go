package compass

import "testing"

func TestAnalyzeDimensions(t *testing.T) {
	a := NewQualityAnalyzer()
	m := a.Analyze("First, apply here.", IdentityProfile{}, nil)

	if m.Clarity != 2 {
		t.Errorf("Clarity = %v, want 2", m.Clarity)
	}
	if m.Actionability != 1.5 {
		t.Errorf("Actionability = %v, want 1.5", m.Actionability)
	}
	if m.Personalization != 0 || m.SourceCitation != 0 || m.EJAwareness != 0 {
		t.Errorf("unexpected nonzero dimensions: %+v", m)
	}
	if m.Overall != 0.9 {
		t.Errorf("Overall = %v, want 0.9", m.Overall)
	}
	if m.IntelligenceLevel != LevelBasic {
		t.Errorf("IntelligenceLevel = %q, want basic", m.IntelligenceLevel)
	}
}

func TestAnalyzeToolUsageCountsAsCitation(t *testing.T) {
	a := NewQualityAnalyzer()
	without := a.Analyze("apply now", IdentityProfile{}, nil)
	with := a.Analyze("apply now", IdentityProfile{}, []string{ResourceSearchTool})

	if got := with.SourceCitation - without.SourceCitation; got != 2 {
		t.Errorf("tool bonus = %v, want 2", got)
	}
}

func TestAnalyzeIdentityPersonalizationBonus(t *testing.T) {
	a := NewQualityAnalyzer()
	identity := IdentityProfile{PrimaryIdentity: IdentityVeteran}
	plain := a.Analyze("here is a plan", identity, nil)
	named := a.Analyze("here is a plan for a veteran", identity, nil)

	if got := named.Personalization - plain.Personalization; got != 1.5 {
		t.Errorf("identity bonus = %v, want 1.5", got)
	}
}

func TestAnalyzeDimensionsCapAtTen(t *testing.T) {
	a := NewQualityAnalyzer()
	// six clarity hits at weight 2 would be 12 uncapped
	m := a.Analyze("first second next step specifically for example", IdentityProfile{}, nil)
	if m.Clarity != 10 {
		t.Errorf("Clarity = %v, want capped at 10", m.Clarity)
	}
}

func TestOverallScore(t *testing.T) {
	tests := []struct {
		name string
		m    QualityMetrics
		want float64
	}{
		{"all eights", QualityMetrics{Clarity: 8, Actionability: 8, Personalization: 8, SourceCitation: 8, EJAwareness: 8}, 8.0},
		{"mixed", QualityMetrics{Clarity: 8, Actionability: 6, Personalization: 10, SourceCitation: 4, EJAwareness: 10}, 7.3},
		{"zero", QualityMetrics{}, 0},
		{"all tens", QualityMetrics{Clarity: 10, Actionability: 10, Personalization: 10, SourceCitation: 10, EJAwareness: 10}, 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := OverallScore(tt.m); got != tt.want {
				t.Errorf("OverallScore = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBucketIntelligence(t *testing.T) {
	tests := []struct {
		overall float64
		want    IntelligenceLevel
	}{
		{9.1, LevelExceptional},
		{8.5, LevelExceptional},
		{8.4, LevelAdvanced},
		{7.0, LevelAdvanced},
		{6.9, LevelProficient},
		{5.0, LevelProficient},
		{4.9, LevelDeveloping},
		{3.0, LevelDeveloping},
		{2.9, LevelBasic},
		{0, LevelBasic},
	}
	for _, tt := range tests {
		if got := BucketIntelligence(tt.overall); got != tt.want {
			t.Errorf("BucketIntelligence(%v) = %q, want %q", tt.overall, got, tt.want)
		}
	}
}

func TestNeutralQuality(t *testing.T) {
	m := NeutralQuality()
	if m.Overall != 5.0 {
		t.Errorf("Overall = %v, want 5.0", m.Overall)
	}
	if m.IntelligenceLevel != LevelProficient {
		t.Errorf("IntelligenceLevel = %q, want proficient", m.IntelligenceLevel)
	}
}
