package nlu

import (
	"slices"
	"strings"

	"campus-assistant/internal/domain"
	"campus-assistant/internal/entity"
)

// Referent is what an anaphoric reference in the current turn points to.
type Referent int

const (
	ReferentNone Referent = iota
	ReferentBuilding
	ReferentCourse
)

func (r Referent) String() string {
	switch r {
	case ReferentBuilding:
		return "building"
	case ReferentCourse:
		return "course"
	default:
		return "none"
	}
}

var (
	buildingPronouns = []string{"it", "there", "that", "the building"}
	coursePronouns   = []string{"it", "that", "this", "the course", "the class"}
	// bareTokens trigger pronoun-first routing in the router.
	bareTokens = []string{"it", "that", "this"}
)

// IsBuildingPronoun reports whether phrase is a bare building reference.
func IsBuildingPronoun(phrase string) bool {
	return slices.Contains(buildingPronouns, entity.Normalize(phrase))
}

// IsCoursePronoun reports whether phrase is a bare course reference.
func IsCoursePronoun(phrase string) bool {
	return slices.Contains(coursePronouns, entity.Normalize(phrase))
}

// HasBarePronoun reports whether text contains "it", "that" or "this" as a
// standalone word.
func HasBarePronoun(text string) bool {
	return hasToken(text, bareTokens)
}

// ResolvePronounReferent decides whether a reference in transcript points at
// the remembered building or the remembered course. Signals in the current
// utterance win over the domain of the previous intent.
func ResolvePronounReferent(transcript string, attrs domain.SessionAttributes) Referent {
	hasBuilding := attrs.LastBuilding() != ""
	hasCourse := attrs.LastCourse() != ""

	if (LooksLikeHours(transcript) || LooksLikeLocation(transcript)) && hasBuilding {
		return ReferentBuilding
	}
	if (LooksLikeSchedule(transcript) || LooksLikeInstructor(transcript)) && hasCourse {
		return ReferentCourse
	}
	last := attrs.LastIntent()
	if domain.IsBuildingIntent(last) && hasBuilding {
		return ReferentBuilding
	}
	if domain.IsCourseIntent(last) && hasCourse {
		return ReferentCourse
	}
	return ReferentNone
}

// ResolveBuildingReference substitutes the remembered building for a bare
// pronoun. A non-pronoun candidate is returned unchanged; without a
// candidate the transcript is scanned for a pronoun.
func ResolveBuildingReference(candidate, transcript string, attrs domain.SessionAttributes) string {
	return resolveReference(candidate, transcript, attrs.LastBuilding(), buildingPronouns, func(s string) string { return s })
}

// ResolveCourseReference mirrors ResolveBuildingReference for course codes
// and normalizes non-pronoun candidates.
func ResolveCourseReference(candidate, transcript string, attrs domain.SessionAttributes) string {
	return resolveReference(candidate, transcript, attrs.LastCourse(), coursePronouns, entity.NormalizeCourseCode)
}

func resolveReference(candidate, transcript, remembered string, pronouns []string, normalize func(string) string) string {
	cand := entity.Normalize(candidate)
	if cand != "" {
		if slices.Contains(pronouns, cand) {
			if remembered != "" {
				return remembered
			}
			return strings.TrimSpace(candidate)
		}
		return normalize(strings.TrimSpace(candidate))
	}
	if remembered != "" && hasToken(transcript, pronouns) {
		return remembered
	}
	return ""
}

func hasToken(text string, words []string) bool {
	for _, tok := range Tokens(text) {
		if slices.Contains(words, tok) {
			return true
		}
	}
	return false
}
