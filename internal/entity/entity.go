// Package entity matches free-text names against canonical building names
// and validates course-code strings.
package entity

import (
	"regexp"
	"slices"
	"strings"
	"unicode"

	"campus-assistant/internal/domain"
)

var (
	leadingArticles  = []string{"the ", "a ", "an "}
	trailingSuffixes = []string{" building", " hall"}

	courseCodePattern = regexp.MustCompile(`^[A-Za-z]{2,5}[ -]?[0-9]{3}[A-Za-z]?$`)
	// courseCodeInText finds course-code shaped tokens inside an utterance.
	courseCodeInText = regexp.MustCompile(`\b[A-Za-z]{2,5}[ -]?[0-9]{3}[A-Za-z]?\b`)
)

// Normalize lower-cases and trims text.
func Normalize(text string) string {
	return strings.ToLower(strings.TrimSpace(text))
}

// NormalizeBuildingPhrase strips one leading article and one trailing generic
// suffix, then collapses internal whitespace.
func NormalizeBuildingPhrase(text string) string {
	t := Normalize(text)
	for _, prefix := range leadingArticles {
		if strings.HasPrefix(t, prefix) {
			t = t[len(prefix):]
			break
		}
	}
	for _, suffix := range trailingSuffixes {
		if strings.HasSuffix(t, suffix) {
			t = t[:len(t)-len(suffix)]
			break
		}
	}
	return strings.Join(strings.Fields(t), " ")
}

// BuildingsMatch reports whether query names the candidate building: equal
// after normalization, or one normalized form contains the other. Empty
// forms never match.
func BuildingsMatch(candidateName, query string) bool {
	a := NormalizeBuildingPhrase(candidateName)
	b := NormalizeBuildingPhrase(query)
	if a == "" || b == "" {
		return false
	}
	if a == b {
		return true
	}
	return strings.Contains(a, b) || strings.Contains(b, a)
}

// FindBuilding returns the first building, in the given order, whose name
// matches query.
func FindBuilding(query string, buildings []domain.Building) (domain.Building, bool) {
	for _, b := range buildings {
		if BuildingsMatch(b.Name, query) {
			return b, true
		}
	}
	return domain.Building{}, false
}

// extractionStopwords never name a building on their own.
var extractionStopwords = map[string]bool{
	"the": true, "a": true, "an": true, "of": true, "and": true, "for": true,
	"is": true, "it": true, "at": true, "in": true, "on": true, "to": true,
	"what": true, "where": true, "when": true, "who": true, "how": true,
	"are": true, "does": true, "do": true, "open": true, "close": true,
	"hours": true, "there": true, "that": true, "this": true,
	"building": true, "hall": true,
}

// ExtractBuilding finds a building named somewhere inside a longer
// utterance. The whole utterance is tried first; then every run of words,
// longest first, that appears as consecutive words of a building name.
func ExtractBuilding(text string, buildings []domain.Building) (domain.Building, bool) {
	if b, ok := FindBuilding(text, buildings); ok {
		return b, true
	}
	words := splitWords(Normalize(text))
	names := make([][]string, len(buildings))
	for i, b := range buildings {
		names[i] = splitWords(NormalizeBuildingPhrase(b.Name))
	}
	for n := len(words); n >= 1; n-- {
		for i := 0; i+n <= len(words); i++ {
			phrase := words[i : i+n]
			if !significant(phrase) {
				continue
			}
			for j, name := range names {
				if containsRun(name, phrase) {
					return buildings[j], true
				}
			}
		}
	}
	return domain.Building{}, false
}

func splitWords(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '.' && r != '\''
	})
}

func significant(phrase []string) bool {
	for _, w := range phrase {
		if len(w) >= 3 && !extractionStopwords[w] {
			return true
		}
	}
	return false
}

func containsRun(name, phrase []string) bool {
	for i := 0; i+len(phrase) <= len(name); i++ {
		if slices.Equal(name[i:i+len(phrase)], phrase) {
			return true
		}
	}
	return false
}

// NormalizeCourseCode upper-cases text and removes spaces and hyphens.
func NormalizeCourseCode(text string) string {
	t := strings.ToUpper(strings.TrimSpace(text))
	return strings.NewReplacer(" ", "", "-", "").Replace(t)
}

// IsValidCourseCode accepts 2-5 letters, an optional space or hyphen, three
// digits and an optional trailing letter (CS101, ECE-301, MATH 201, CPE399A).
func IsValidCourseCode(text string) bool {
	t := strings.TrimSpace(text)
	if t == "" {
		return false
	}
	return courseCodePattern.MatchString(t)
}

// FindCourseCode returns the first valid course code mentioned in text,
// normalized.
func FindCourseCode(text string) (string, bool) {
	for _, m := range courseCodeInText.FindAllString(text, -1) {
		if IsValidCourseCode(m) {
			return NormalizeCourseCode(m), true
		}
	}
	return "", false
}
