// Package analysis turns free-text model replies into canonical analysis
// records and layers the local allergen, grade and compatibility heuristics
// on top. Everything here is pure: the same input always yields the same
// output.
package analysis

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/eatwise/labelscan/internal/core/domain"
)

// Strategy names the parser that recovered the record.
type Strategy string

const (
	StrategyFenced Strategy = "fenced"
	StrategyObject Strategy = "object"
	StrategyArray  Strategy = "array"
	StrategyLines  Strategy = "lines"
	StrategyEmpty  Strategy = "empty"
)

// Parsed is the coerced model output before derived fields are filled.
type Parsed struct {
	Record        domain.AnalysisRecord
	ModelAllergic bool
	Strategy      Strategy
}

type parseStrategy struct {
	name  Strategy
	parse func(text string) (Parsed, bool)
}

// Ordered best fidelity first; the first strategy that succeeds wins.
var strategies = []parseStrategy{
	{name: StrategyFenced, parse: parseFenced},
	{name: StrategyObject, parse: parseEmbeddedObject},
	{name: StrategyArray, parse: parseEmbeddedArray},
	{name: StrategyLines, parse: parseLines},
}

var (
	fencePattern       = regexp.MustCompile("(?is)```(?:json)?\\s*(.*?)```")
	fenceMarkerPattern = regexp.MustCompile("(?i)```(?:json)?")
	lineSplitPattern   = regexp.MustCompile(`\r?\n|,`)
)

// Parse runs the strategy chain over text. It never fails: text without any
// recoverable structure yields an empty record tagged StrategyEmpty.
func Parse(text string) Parsed {
	trimmed := strings.TrimSpace(text)
	if trimmed != "" {
		for _, s := range strategies {
			if parsed, ok := s.parse(trimmed); ok {
				parsed.Strategy = s.name
				return parsed
			}
		}
	}
	return Parsed{Record: emptyRecord(), Strategy: StrategyEmpty}
}

// Normalize parses text and fills derived fields against the caller's
// allergy list.
func Normalize(text string, allergies []string) (domain.AnalysisRecord, Strategy) {
	parsed := Parse(text)
	return Enrich(parsed, allergies), parsed.Strategy
}

// Enrich fills the fields the model left empty and applies the allergy
// overlay. Model-supplied possible allergens and grade are kept as is.
func Enrich(parsed Parsed, allergies []string) domain.AnalysisRecord {
	record := parsed.Record
	if len(record.PossibleAllergens) == 0 {
		record.PossibleAllergens = InferPossibleAllergens(record.Ingredients)
	}
	if record.Grade == "" {
		record.Grade = InferGrade(record.Nutrition)
	}
	record.AllergensMatched = MatchAllergies(allergies, record)
	record.IsAllergic = len(record.AllergensMatched) > 0 || parsed.ModelAllergic
	return record
}

func parseFenced(text string) (Parsed, bool) {
	for _, match := range fencePattern.FindAllStringSubmatch(text, -1) {
		if parsed, ok := fromJSON(match[1]); ok {
			return parsed, true
		}
	}
	return Parsed{}, false
}

func parseEmbeddedObject(text string) (Parsed, bool) {
	return parseBetween(text, "{", "}")
}

func parseEmbeddedArray(text string) (Parsed, bool) {
	return parseBetween(text, "[", "]")
}

func parseBetween(text, open, close string) (Parsed, bool) {
	start := strings.Index(text, open)
	end := strings.LastIndex(text, close)
	if start < 0 || end <= start {
		return Parsed{}, false
	}
	return fromJSON(text[start : end+1])
}

func parseLines(text string) (Parsed, bool) {
	cleaned := fenceMarkerPattern.ReplaceAllString(text, "\n")
	items := make([]string, 0)
	for _, raw := range lineSplitPattern.Split(cleaned, -1) {
		item := strings.TrimSpace(raw)
		item = strings.TrimLeft(item, "-*•")
		item = strings.ToLower(strings.TrimSpace(item))
		if item == "" {
			continue
		}
		items = append(items, item)
	}
	if len(items) == 0 {
		return Parsed{}, false
	}

	record := emptyRecord()
	record.Ingredients = items
	return Parsed{Record: record}, true
}

func fromJSON(raw string) (Parsed, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Parsed{}, false
	}
	var value any
	if err := json.Unmarshal([]byte(raw), &value); err != nil {
		return Parsed{}, false
	}

	switch v := value.(type) {
	case map[string]any:
		return coerceObject(v), true
	case []any:
		record := emptyRecord()
		record.Ingredients = coerceIngredients(v)
		return Parsed{Record: record}, true
	default:
		return Parsed{}, false
	}
}

func emptyRecord() domain.AnalysisRecord {
	return domain.AnalysisRecord{
		Name:              domain.DefaultLabelName,
		Ingredients:       []string{},
		Allergens:         []string{},
		PossibleAllergens: []string{},
		Nutrition:         map[string]any{},
		AllergensMatched:  []string{},
	}
}
