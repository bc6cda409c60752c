package compass

import (
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Identity category tags. Declaration order in identityTable breaks ties.
const (
	IdentityVeteran       = "veteran"
	IdentityInternational = "international_professional"
	IdentityEnvJustice    = "environmental_justice"
	IdentityTransition    = "career_transition"
	IdentityStudent       = "student_early_career"
)

// identityCategory pairs detection lexicons with the barriers and strengths
// typically associated with the category.
type identityCategory struct {
	tag       string
	keywords  []string
	context   []string
	barriers  []string
	strengths []string
}

// identityTable is immutable process-wide configuration. Keyword hits score
// 2, context hits score 1. Order matters: earlier entries win score ties.
var identityTable = []identityCategory{
	{
		tag:      IdentityVeteran,
		keywords: []string{"veteran", "military", "army", "navy", "air force", "marines", "coast guard", "national guard", "deployed", "deployment"},
		context:  []string{"service", "discharge", "gi bill", "base", "rank", "enlisted", "officer", "mos", "transition out"},
		barriers: []string{"credential_translation", "civilian_network_gaps"},
		strengths: []string{
			"leadership_under_pressure", "mission_discipline", "security_clearance_eligibility",
		},
	},
	{
		tag:      IdentityInternational,
		keywords: []string{"visa", "h1b", "h-1b", "opt", "cpt", "green card", "immigrant", "international student", "work permit", "sponsorship"},
		context:  []string{"moved to", "relocated", "home country", "english", "foreign degree", "credential evaluation", "abroad"},
		barriers: []string{"visa_restrictions", "credential_recognition", "network_access"},
		strengths: []string{
			"multilingual_communication", "cross_cultural_adaptability", "global_perspective",
		},
	},
	{
		tag:      IdentityEnvJustice,
		keywords: []string{"environmental justice", "frontline community", "pollution", "climate", "clean energy", "solar", "wind", "sustainability", "green jobs"},
		context:  []string{"community organizing", "advocacy", "low income", "underserved", "environmental", "renewable", "grid"},
		barriers: []string{"industry_gatekeeping", "geographic_access"},
		strengths: []string{
			"community_trust", "systems_thinking", "mission_alignment",
		},
	},
	{
		tag:      IdentityTransition,
		keywords: []string{"career change", "switching careers", "pivot", "transition", "new field", "retrain", "reskill", "laid off", "layoff"},
		context:  []string{"years of experience", "different industry", "starting over", "transferable", "midlife", "bootcamp"},
		barriers: []string{"experience_mismatch", "salary_reset_risk"},
		strengths: []string{
			"transferable_skills", "proven_work_history", "motivation_to_learn",
		},
	},
	{
		tag:      IdentityStudent,
		keywords: []string{"student", "graduate", "graduating", "recent grad", "entry level", "internship", "first job", "university", "college"},
		context:  []string{"degree", "major", "gpa", "campus", "thesis", "coursework", "semester"},
		barriers: []string{"no_work_history", "network_gaps"},
		strengths: []string{
			"current_technical_training", "adaptability", "long_runway",
		},
	},
}

// intersectionalityMarker is an additional lexicon scanned independently of
// the category table.
type intersectionalityMarker struct {
	factor   string
	keywords []string
}

var intersectionalityTable = []intersectionalityMarker{
	{factor: "single_parent", keywords: []string{"single mom", "single dad", "single parent", "childcare", "sole provider"}},
	{factor: "racial_ethnic_minority", keywords: []string{"black", "latino", "latina", "hispanic", "indigenous", "native american", "asian american", "person of color", "minority"}},
	{factor: "disability_status", keywords: []string{"disability", "disabled", "chronic illness", "accommodation", "neurodivergent", "wheelchair"}},
	{factor: "lgbtq_plus", keywords: []string{"lgbtq", "queer", "transgender", "nonbinary", "non-binary"}},
}

// fallbackIdentity is returned for empty or unrecognizable input.
const fallbackIdentity = IdentityTransition

// IdentityRecognizer derives an IdentityProfile from message text using
// fixed lexicons. It is deterministic and never fails.
type IdentityRecognizer struct{}

func NewIdentityRecognizer() *IdentityRecognizer { return &IdentityRecognizer{} }

// foldText normalizes text for lexicon matching: NFKC then lower-case.
func foldText(s string) string {
	return strings.ToLower(norm.NFKC.String(s))
}

func countHits(folded string, lexicon []string) int {
	n := 0
	for _, kw := range lexicon {
		if strings.Contains(folded, kw) {
			n++
		}
	}
	return n
}

// Recognize scores every category against the message (plus optional
// profile context) and assembles the profile. Ties go to the earlier
// table entry.
func (r *IdentityRecognizer) Recognize(message, profileContext string) IdentityProfile {
	folded := foldText(message)
	if profileContext != "" {
		folded += "\n" + foldText(profileContext)
	}
	if strings.TrimSpace(folded) == "" {
		return IdentityProfile{PrimaryIdentity: fallbackIdentity}
	}

	scores := make([]int, len(identityTable))
	total := 0
	for i, cat := range identityTable {
		scores[i] = 2*countHits(folded, cat.keywords) + countHits(folded, cat.context)
		total += scores[i]
	}

	best := 0
	for i := 1; i < len(scores); i++ {
		if scores[i] > scores[best] {
			best = i
		}
	}

	profile := IdentityProfile{PrimaryIdentity: fallbackIdentity}
	if scores[best] == 0 {
		return profile
	}
	profile.PrimaryIdentity = identityTable[best].tag

	seenBarrier := map[string]bool{}
	seenStrength := map[string]bool{}
	addSet := func(cat identityCategory) {
		for _, b := range cat.barriers {
			if !seenBarrier[b] {
				seenBarrier[b] = true
				profile.BarriersIdentified = append(profile.BarriersIdentified, b)
			}
		}
		for _, s := range cat.strengths {
			if !seenStrength[s] {
				seenStrength[s] = true
				profile.StrengthsIdentified = append(profile.StrengthsIdentified, s)
			}
		}
	}
	addSet(identityTable[best])

	for i, cat := range identityTable {
		if i == best || scores[i] == 0 {
			continue
		}
		profile.SecondaryIdentities = append(profile.SecondaryIdentities, cat.tag)
		addSet(cat)
	}

	if len(profile.SecondaryIdentities) > 0 {
		profile.IntersectionalityFactors = append(profile.IntersectionalityFactors, "multiple_identities")
	}
	for _, marker := range intersectionalityTable {
		if countHits(folded, marker.keywords) > 0 {
			profile.IntersectionalityFactors = append(profile.IntersectionalityFactors, marker.factor)
		}
	}

	profile.ConfidenceScore = min(float64(total)/10, 1.0)
	profile.GeographicContext = detectGeography(folded)
	return profile
}

// detectGeography picks up coarse location hints; empty when none match.
func detectGeography(folded string) string {
	regions := []struct{ hint, tag string }{
		{"rural", "rural"},
		{"urban", "urban"},
		{"appalachia", "appalachia"},
		{"gulf coast", "gulf_coast"},
		{"midwest", "midwest"},
	}
	for _, r := range regions {
		if strings.Contains(folded, r.hint) {
			return r.tag
		}
	}
	return ""
}

// FallbackProfile is the zero-confidence profile substituted when
// recognition cannot run at all.
func FallbackProfile() IdentityProfile {
	return IdentityProfile{PrimaryIdentity: fallbackIdentity}
}

// describeIdentity renders a short human-readable summary used in routing
// reasoning strings.
func describeIdentity(p IdentityProfile) string {
	if len(p.SecondaryIdentities) == 0 {
		return p.PrimaryIdentity
	}
	return fmt.Sprintf("%s (also: %s)", p.PrimaryIdentity, strings.Join(p.SecondaryIdentities, ", "))
}
