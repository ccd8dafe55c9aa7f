package analysis

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/eatwise/labelscan/internal/core/domain"
)

type allergenRule struct {
	keyword  string
	category string
}

var allergenRules = []allergenRule{
	{keyword: "whey", category: "milk"},
	{keyword: "casein", category: "milk"},
	{keyword: "lactose", category: "milk"},
	{keyword: "milk", category: "milk"},
	{keyword: "almond", category: "nuts"},
	{keyword: "hazelnut", category: "nuts"},
	{keyword: "peanut", category: "nuts"},
	{keyword: "cashew", category: "nuts"},
	{keyword: "pistachio", category: "nuts"},
	{keyword: "walnut", category: "nuts"},
	{keyword: "soy", category: "soy"},
	{keyword: "egg", category: "eggs"},
	{keyword: "albumin", category: "eggs"},
	{keyword: "gluten", category: "gluten"},
	{keyword: "wheat", category: "gluten"},
	{keyword: "barley", category: "gluten"},
	{keyword: "rye", category: "gluten"},
	{keyword: "shrimp", category: "shellfish"},
	{keyword: "crab", category: "shellfish"},
	{keyword: "lobster", category: "shellfish"},
	{keyword: "shellfish", category: "shellfish"},
}

// InferPossibleAllergens maps ingredients onto allergen categories by
// substring match. Categories appear once, in first-hit order.
func InferPossibleAllergens(ingredients []string) []string {
	out := make([]string, 0)
	seen := make(map[string]struct{})
	for _, ingredient := range ingredients {
		lower := strings.ToLower(ingredient)
		for _, rule := range allergenRules {
			if !strings.Contains(lower, rule.keyword) {
				continue
			}
			if _, ok := seen[rule.category]; ok {
				continue
			}
			seen[rule.category] = struct{}{}
			out = append(out, rule.category)
		}
	}
	return out
}

// MatchAllergies returns the caller's allergy entries that overlap the
// record, in profile order and without duplicates. An entry matches when an
// ingredient contains it, when an ingredient has its singular form as a whole
// word, or when it names one of the record's allergens or possible allergens.
func MatchAllergies(allergies []string, record domain.AnalysisRecord) []string {
	out := make([]string, 0)
	if len(allergies) == 0 {
		return out
	}

	ingredients := lowerAll(record.Ingredients)
	tags := make(map[string]struct{}, len(record.Allergens)+len(record.PossibleAllergens))
	for _, tag := range append(lowerAll(record.Allergens), lowerAll(record.PossibleAllergens)...) {
		tags[tag] = struct{}{}
	}

	seen := make(map[string]struct{}, len(allergies))
	for _, allergy := range allergies {
		trimmed := strings.TrimSpace(allergy)
		term := strings.ToLower(trimmed)
		if term == "" {
			continue
		}
		if _, dup := seen[term]; dup {
			continue
		}
		seen[term] = struct{}{}

		if matchesAny(term, ingredients, tags) {
			out = append(out, trimmed)
		}
	}
	return out
}

func matchesAny(term string, ingredients []string, tags map[string]struct{}) bool {
	if _, ok := tags[term]; ok {
		return true
	}
	for _, ingredient := range ingredients {
		if strings.Contains(ingredient, term) {
			return true
		}
	}
	for _, stem := range singularStems(term) {
		if _, ok := tags[stem]; ok {
			return true
		}
		for _, ingredient := range ingredients {
			if containsWord(ingredient, stem) {
				return true
			}
		}
	}
	return false
}

// singularStems yields naive singular forms ("peanuts" -> "peanut",
// "tomatoes" -> "tomato"). Stems shorter than three letters are skipped.
func singularStems(term string) []string {
	if strings.HasSuffix(term, "ss") {
		return nil
	}
	var stems []string
	if stem, ok := strings.CutSuffix(term, "es"); ok && len(stem) >= 3 {
		stems = append(stems, stem)
	}
	if stem, ok := strings.CutSuffix(term, "s"); ok && len(stem) >= 3 {
		stems = append(stems, stem)
	}
	return stems
}

// containsWord reports whether word occurs in s bounded by non-letters, so
// "oat" matches "oat flour" but not "chocolate coating".
func containsWord(s, word string) bool {
	for offset := 0; ; {
		i := strings.Index(s[offset:], word)
		if i < 0 {
			return false
		}
		start := offset + i
		end := start + len(word)
		if !isLetterBefore(s, start) && !isLetterAt(s, end) {
			return true
		}
		offset = start + 1
	}
}

func isLetterBefore(s string, i int) bool {
	if i == 0 {
		return false
	}
	r, _ := utf8.DecodeLastRuneInString(s[:i])
	return unicode.IsLetter(r)
}

func isLetterAt(s string, i int) bool {
	if i >= len(s) {
		return false
	}
	r, _ := utf8.DecodeRuneInString(s[i:])
	return unicode.IsLetter(r)
}

func lowerAll(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s := strings.ToLower(strings.TrimSpace(item)); s != "" {
			out = append(out, s)
		}
	}
	return out
}
