package compass

import (
	"fmt"
	"strings"
)

// Specialist node names. Declaration order in specialistTable breaks
// score ties.
const (
	VeteransSpecialist      = "veterans_specialist"
	InternationalSpecialist = "international_specialist"
	EJSpecialist            = "ej_specialist"
	CareersSpecialist       = "careers_specialist"
)

// FallbackSpecialist receives handoffs issued by error recovery.
const FallbackSpecialist = CareersSpecialist

// specialistProfile is one row of the capability table.
type specialistProfile struct {
	name              string
	primaryFocus      []string
	secondaryFocus    []string
	recommendedTools  []string
	expectedOutcome   string
	successIndicators []string
	generalist        bool
}

// specialistTable is immutable process-wide configuration.
var specialistTable = []specialistProfile{
	{
		name:             VeteransSpecialist,
		primaryFocus:     []string{IdentityVeteran},
		secondaryFocus:   []string{IdentityTransition},
		recommendedTools: []string{"resource_search", "skills_translation"},
		expectedOutcome:  "a civilian career path that credits military experience",
		successIndicators: []string{
			"credential translated", "gi bill applied", "veteran network engaged",
		},
	},
	{
		name:             InternationalSpecialist,
		primaryFocus:     []string{IdentityInternational},
		secondaryFocus:   []string{IdentityStudent},
		recommendedTools: []string{"resource_search", "credential_evaluation"},
		expectedOutcome:  "a work-authorized role matching foreign credentials",
		successIndicators: []string{
			"visa pathway identified", "credentials evaluated", "sponsor shortlist built",
		},
	},
	{
		name:             EJSpecialist,
		primaryFocus:     []string{IdentityEnvJustice},
		secondaryFocus:   []string{IdentityTransition, IdentityStudent},
		recommendedTools: []string{"resource_search", "community_programs"},
		expectedOutcome:  "a clean-economy role rooted in the user's community",
		successIndicators: []string{
			"local program matched", "training funded", "community partner contacted",
		},
	},
	{
		name:             CareersSpecialist,
		primaryFocus:     []string{IdentityTransition, IdentityStudent},
		secondaryFocus:   []string{IdentityVeteran, IdentityInternational, IdentityEnvJustice},
		recommendedTools: []string{"resource_search", "resume_review"},
		expectedOutcome:  "a concrete next step toward the target role",
		successIndicators: []string{
			"action plan accepted", "application submitted", "interview scheduled",
		},
		generalist: true,
	},
}

// KnownSpecialist reports whether name is a registered specialist node.
func KnownSpecialist(name string) bool {
	for _, sp := range specialistTable {
		if sp.name == name {
			return true
		}
	}
	return false
}

// SpecialistNames lists the registered specialists in table order.
func SpecialistNames() []string {
	out := make([]string, len(specialistTable))
	for i, sp := range specialistTable {
		out[i] = sp.name
	}
	return out
}

// Router scores the capability table against an identity profile and
// produces a RoutingDecision. Deterministic; ties go to the earlier row.
type Router struct{}

func NewRouter() *Router { return &Router{} }

func containsTag(tags []string, tag string) bool {
	for _, t := range tags {
		if t == tag {
			return true
		}
	}
	return false
}

func (r *Router) score(sp specialistProfile, p IdentityProfile) int {
	score := 0
	if containsTag(sp.primaryFocus, p.PrimaryIdentity) {
		score += 5
	} else if containsTag(sp.secondaryFocus, p.PrimaryIdentity) {
		score += 3
	}
	for _, sec := range p.SecondaryIdentities {
		if containsTag(sp.primaryFocus, sec) {
			score += 3
		} else if containsTag(sp.secondaryFocus, sec) {
			score += 2
		}
	}
	if sp.name == EJSpecialist && len(p.IntersectionalityFactors) > 1 {
		score += 2
	}
	if sp.generalist && len(p.SecondaryIdentities) > 1 {
		score++
	}
	return score
}

// Route chooses the best specialist for the profile.
func (r *Router) Route(p IdentityProfile) RoutingDecision {
	type ranked struct {
		sp    specialistProfile
		score int
	}
	rankings := make([]ranked, 0, len(specialistTable))
	best := 0
	for i, sp := range specialistTable {
		rankings = append(rankings, ranked{sp: sp, score: r.score(sp, p)})
		if rankings[i].score > rankings[best].score {
			best = i
		}
	}

	chosen := rankings[best]
	decision := RoutingDecision{
		SpecialistAssigned: chosen.sp.name,
		ConfidenceLevel:    bucketConfidence(chosen.score),
		Reasoning: fmt.Sprintf("matched %s to %s with compatibility score %d",
			describeIdentity(p), chosen.sp.name, chosen.score),
		RecommendedTools: append([]string(nil), chosen.sp.recommendedTools...),
		ExpectedOutcome:  chosen.sp.expectedOutcome,
		SuccessMetrics:   append([]string(nil), chosen.sp.successIndicators...),
	}

	// Alternatives: next two by score, table order on ties, score > 0.
	for range 2 {
		next, nextScore := -1, 0
		for i, rk := range rankings {
			if i == best || rk.score <= 0 || containsName(decision.Alternatives, rk.sp.name) {
				continue
			}
			if next == -1 || rk.score > nextScore {
				next, nextScore = i, rk.score
			}
		}
		if next == -1 {
			break
		}
		decision.Alternatives = append(decision.Alternatives, rankings[next].sp.name)
	}
	return decision
}

func containsName(names []string, name string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}

func bucketConfidence(score int) Confidence {
	switch {
	case score >= 6:
		return ConfidenceHigh
	case score >= 4:
		return ConfidenceMedium
	case score >= 2:
		return ConfidenceLow
	default:
		return ConfidenceUncertain
	}
}

// UncertainRouting is the fallback decision substituted when routing
// cannot run at all.
func UncertainRouting() RoutingDecision {
	return RoutingDecision{
		SpecialistAssigned: FallbackSpecialist,
		ConfidenceLevel:    ConfidenceUncertain,
		Reasoning:          "routing unavailable, defaulting to " + FallbackSpecialist,
	}
}

// DelegationToolName builds the tool name the supervisor LLM calls to
// delegate, e.g. delegate_to_veterans_specialist.
func DelegationToolName(specialist string) string {
	return "delegate_to_" + specialist
}

// ParseDelegationTool extracts the specialist from a delegation tool name.
func ParseDelegationTool(toolName string) (string, bool) {
	name, ok := strings.CutPrefix(toolName, "delegate_to_")
	if !ok || !KnownSpecialist(name) {
		return "", false
	}
	return name, true
}
