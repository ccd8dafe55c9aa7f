package analysis

import (
	"encoding/json"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/eatwise/labelscan/internal/core/domain"
)

const (
	neutralGradeStep = 2 // C

	proteinThreshold      = 10.0
	sugarThreshold        = 10.0
	saturatedFatThreshold = 5.0
)

var (
	proteinKeys      = []string{"protein", "proteins"}
	sugarKeys        = []string{"sugar", "sugars", "totalsugar", "totalsugars", "addedsugar", "addedsugars"}
	saturatedFatKeys = []string{"saturatedfat", "saturatedfats", "saturates", "satfat"}

	leadingNumberPattern = regexp.MustCompile(`^\s*(-?\d+(?:[.,]\d+)?)`)
)

// InferGrade derives an A..E grade from nutrition when the model gave none.
// Missing or non-numeric values count as zero.
func InferGrade(nutrition map[string]any) string {
	step := neutralGradeStep
	if nutrientValue(nutrition, proteinKeys...) >= proteinThreshold {
		step--
	}
	if nutrientValue(nutrition, sugarKeys...) >= sugarThreshold {
		step++
	}
	if nutrientValue(nutrition, saturatedFatKeys...) >= saturatedFatThreshold {
		step++
	}

	if step < 0 {
		step = 0
	}
	if step > len(domain.Grades)-1 {
		step = len(domain.Grades) - 1
	}
	return domain.Grades[step]
}

// nutrientValue looks keys up ignoring case, spaces, underscores and
// hyphens, so "saturated_fat", "saturatedFat" and "Saturated Fat" agree.
func nutrientValue(nutrition map[string]any, keys ...string) float64 {
	if len(nutrition) == 0 {
		return 0
	}
	wanted := make(map[string]struct{}, len(keys))
	for _, key := range keys {
		wanted[key] = struct{}{}
	}
	// Sorted iteration keeps the result stable when several spellings exist.
	names := make([]string, 0, len(nutrition))
	for name := range nutrition {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		if _, ok := wanted[canonicalKey(name)]; !ok {
			continue
		}
		if v, ok := numericValue(nutrition[name]); ok {
			return v
		}
	}
	return 0
}

func canonicalKey(name string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '_', '-':
			return -1
		default:
			return r
		}
	}, strings.ToLower(strings.TrimSpace(name)))
}

func numericValue(raw any) (float64, bool) {
	switch v := raw.(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	case string:
		match := leadingNumberPattern.FindStringSubmatch(v)
		if match == nil {
			return 0, false
		}
		f, err := strconv.ParseFloat(strings.ReplaceAll(match[1], ",", "."), 64)
		return f, err == nil
	case map[string]any:
		for _, key := range []string{"value", "amount", "quantity"} {
			if inner, ok := v[key]; ok {
				return numericValue(inner)
			}
		}
	}
	return 0, false
}
