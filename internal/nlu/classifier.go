// Package nlu holds the shallow keyword heuristics that classify an
// utterance and resolve pronoun references against session memory.
package nlu

import (
	"strings"
	"unicode"

	"campus-assistant/internal/domain"
	"campus-assistant/internal/entity"
)

var (
	hoursKeywords         = []string{"hours", "open", "opening", "close", "closing"}
	instructorKeywords    = []string{"who teaches", "instructor", "professor", "teacher"}
	buildingNounKeywords  = []string{"building", "hall", "center", "library", "gym", "union", "auditorium", "lab"}
	faqTopicKeywords      = []string{"parking", "dining", "tuition", "admissions", "financial aid", "scholarship"}
	scheduleSubjectTokens = []string{"class", "it", "schedule"}
)

// LooksLikeHours reports whether text asks about opening hours.
func LooksLikeHours(text string) bool {
	return containsAny(entity.Normalize(text), hoursKeywords)
}

// LooksLikeLocation reports whether text asks where something is.
func LooksLikeLocation(text string) bool {
	t := entity.Normalize(text)
	return strings.HasPrefix(t, "where is") ||
		strings.HasPrefix(t, "where's") ||
		strings.Contains(t, "where is") ||
		strings.Contains(t, "location")
}

// LooksLikeSchedule reports whether text asks when a class meets.
func LooksLikeSchedule(text string) bool {
	t := entity.Normalize(text)
	if strings.HasPrefix(t, "when is") || strings.HasPrefix(t, "what time") {
		if containsAny(t, scheduleSubjectTokens) {
			return true
		}
	}
	return strings.Contains(t, "schedule") && (strings.Contains(t, "for") || strings.Contains(t, "of"))
}

// LooksLikeInstructor reports whether text asks who teaches something.
func LooksLikeInstructor(text string) bool {
	return containsAny(entity.Normalize(text), instructorKeywords)
}

// LooksLikeAnyQuery reports whether any of the four query shapes apply.
func LooksLikeAnyQuery(text string) bool {
	return LooksLikeHours(text) || LooksLikeLocation(text) || LooksLikeSchedule(text) || LooksLikeInstructor(text)
}

// MentionsBuildingKeyword reports whether text contains a generic building
// noun, meaning the user named some building even if it did not resolve.
func MentionsBuildingKeyword(text string) bool {
	return containsAny(entity.Normalize(text), buildingNounKeywords)
}

// InferIntentFromRules evaluates rules in order; a rule fires only when all
// of its keywords occur in text, and the first firing rule wins. Without a
// firing rule the built-in fallbacks apply: "where is" maps to location, an
// hours question to hours, and an FAQ topic keyword to FAQ.
func InferIntentFromRules(text string, rules []domain.Rule) (string, bool) {
	t := entity.Normalize(text)
	for _, rule := range rules {
		if rule.Intent == "" || len(rule.Keywords) == 0 {
			continue
		}
		if containsAll(t, rule.Keywords) {
			return rule.Intent, true
		}
	}
	switch {
	case strings.Contains(t, "where is") || strings.HasPrefix(t, "where's"):
		return domain.IntentCampusLocation, true
	case LooksLikeHours(t):
		return domain.IntentBuildingHours, true
	case containsAny(t, faqTopicKeywords):
		return domain.IntentFAQ, true
	}
	return "", false
}

// Tokens splits text into lower-cased words, dropping punctuation so that
// "it?" yields "it".
func Tokens(text string) []string {
	return strings.FieldsFunc(entity.Normalize(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\''
	})
}

func containsAny(t string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(t, k) {
			return true
		}
	}
	return false
}

func containsAll(t string, keywords []string) bool {
	for _, k := range keywords {
		k = entity.Normalize(k)
		if k == "" || !strings.Contains(t, k) {
			return false
		}
	}
	return true
}
