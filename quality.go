package compass

import "math"

// Rubric lexicons. Per-hit weights: clarity 2, actionability 1.5,
// personalization 1.5, source citation 2, environmental-justice
// awareness 1.5. Each dimension caps at 10.
var (
	clarityLexicon = []string{
		"first", "second", "next", "step", "specifically", "for example", "in short", "summary",
	}
	actionabilityLexicon = []string{
		"apply", "contact", "enroll", "register", "schedule", "visit", "submit", "reach out", "sign up", "call",
	}
	personalizationLexicon = []string{
		"your background", "your experience", "as a", "given your", "in your situation", "your skills", "your community", "you mentioned",
	}
	sourceCitationLexicon = []string{
		"according to", "source", "website", ".gov", ".org", "program", "department", "https://",
	}
	ejAwarenessLexicon = []string{
		"environmental justice", "community", "equity", "underserved", "frontline", "clean energy", "sustainable",
	}
)

// Weighted-sum coefficients for the overall score.
const (
	wClarity         = 0.25
	wActionability   = 0.25
	wPersonalization = 0.20
	wSourceCitation  = 0.20
	wEJAwareness     = 0.10
)

// QualityAnalyzer scores response text. Pure function of its inputs,
// reproducible on replay.
type QualityAnalyzer struct{}

func NewQualityAnalyzer() *QualityAnalyzer { return &QualityAnalyzer{} }

func dimensionScore(folded string, lexicon []string, perHit float64) float64 {
	return min(float64(countHits(folded, lexicon))*perHit, 10)
}

// Analyze scores the response on the five rubric dimensions. Tool usage
// counts toward source citation: each tool invoked adds one citation hit
// worth of weight, still capped at 10. Personalization gets one extra hit
// when the response names the user's primary identity.
func (a *QualityAnalyzer) Analyze(response string, identity IdentityProfile, toolsUsed []string) QualityMetrics {
	folded := foldText(response)

	m := QualityMetrics{
		Clarity:         dimensionScore(folded, clarityLexicon, 2),
		Actionability:   dimensionScore(folded, actionabilityLexicon, 1.5),
		Personalization: dimensionScore(folded, personalizationLexicon, 1.5),
		SourceCitation:  dimensionScore(folded, sourceCitationLexicon, 2),
		EJAwareness:     dimensionScore(folded, ejAwarenessLexicon, 1.5),
	}
	m.SourceCitation = min(m.SourceCitation+float64(len(toolsUsed))*2, 10)
	if identity.PrimaryIdentity != "" && countHits(folded, identityKeywords(identity.PrimaryIdentity)) > 0 {
		m.Personalization = min(m.Personalization+1.5, 10)
	}

	m.Overall = OverallScore(m)
	m.IntelligenceLevel = BucketIntelligence(m.Overall)
	return m
}

func identityKeywords(tag string) []string {
	for _, cat := range identityTable {
		if cat.tag == tag {
			return cat.keywords
		}
	}
	return nil
}

// OverallScore computes the fixed weighted sum, rounded half to even at
// one decimal.
func OverallScore(m QualityMetrics) float64 {
	raw := wClarity*m.Clarity +
		wActionability*m.Actionability +
		wPersonalization*m.Personalization +
		wSourceCitation*m.SourceCitation +
		wEJAwareness*m.EJAwareness
	return math.RoundToEven(raw*10) / 10
}

// BucketIntelligence maps an overall score onto its level.
func BucketIntelligence(overall float64) IntelligenceLevel {
	switch {
	case overall >= 8.5:
		return LevelExceptional
	case overall >= 7.0:
		return LevelAdvanced
	case overall >= 5.0:
		return LevelProficient
	case overall >= 3.0:
		return LevelDeveloping
	default:
		return LevelBasic
	}
}

// NeutralQuality is the fallback substituted when analysis cannot run.
func NeutralQuality() QualityMetrics {
	m := QualityMetrics{Clarity: 5, Actionability: 5, Personalization: 5, SourceCitation: 5, EJAwareness: 5}
	m.Overall = 5.0
	m.IntelligenceLevel = BucketIntelligence(m.Overall)
	return m
}
