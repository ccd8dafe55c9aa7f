package analysis

import (
	"strconv"
	"strings"

	"github.com/eatwise/labelscan/internal/core/domain"
)

func coerceObject(obj map[string]any) Parsed {
	record := emptyRecord()

	if raw, ok := obj["ingredients"].([]any); ok {
		record.Ingredients = coerceIngredients(raw)
	}
	if raw, ok := obj["allergens"].([]any); ok {
		record.Allergens = coerceStrings(raw)
	}
	if raw, ok := firstOf(obj, "possibleAllergens", "possible_allergens").([]any); ok {
		record.PossibleAllergens = coerceStrings(raw)
	}
	if raw, ok := obj["nutrition"].(map[string]any); ok {
		record.Nutrition = raw
	}
	if raw, ok := firstOf(obj, "healthAnalysis", "health_analysis").(string); ok {
		record.HealthAnalysis = strings.TrimSpace(raw)
	}
	if raw, ok := obj["grade"].(string); ok {
		record.Grade = normalizeGrade(raw)
	}
	if raw, ok := obj["name"].(string); ok && strings.TrimSpace(raw) != "" {
		record.Name = strings.TrimSpace(raw)
	}

	allergic, _ := firstOf(obj, "isAllergic", "is_allergic").(bool)
	return Parsed{Record: record, ModelAllergic: allergic}
}

func firstOf(obj map[string]any, keys ...string) any {
	for _, key := range keys {
		if v, ok := obj[key]; ok && v != nil {
			return v
		}
	}
	return nil
}

func coerceIngredients(raw []any) []string {
	out := coerceStrings(raw)
	for i := range out {
		out[i] = strings.ToLower(out[i])
	}
	return out
}

// coerceStrings keeps scalar elements as trimmed strings and drops nulls,
// nested containers and blanks.
func coerceStrings(raw []any) []string {
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		var s string
		switch v := item.(type) {
		case string:
			s = v
		case float64:
			s = strconv.FormatFloat(v, 'f', -1, 64)
		case bool:
			s = strconv.FormatBool(v)
		default:
			continue
		}
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		out = append(out, s)
	}
	return out
}

func normalizeGrade(raw string) string {
	grade := strings.ToUpper(strings.TrimSpace(raw))
	for _, valid := range domain.Grades {
		if grade == valid {
			return grade
		}
	}
	return ""
}

// CoerceRecord rebuilds a record from an arbitrary decoded JSON object using
// the same rules as the model parser. Used for client-held guest analyses.
func CoerceRecord(obj map[string]any) Parsed {
	if obj == nil {
		return Parsed{Record: emptyRecord(), Strategy: StrategyEmpty}
	}
	parsed := coerceObject(obj)
	parsed.Strategy = StrategyObject
	return parsed
}
