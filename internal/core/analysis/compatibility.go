package analysis

import (
	"strings"

	"github.com/eatwise/labelscan/internal/core/domain"
)

const (
	maxCompatibilityScore = 100
	allergyPenaltyPerHit  = 30
	maxAllergyPenalty     = 60

	noConcernsExplanation = "No major concerns detected"
)

var (
	sugarKeywords = []string{
		"sugar", "sucrose", "glucose", "fructose", "dextrose", "corn syrup",
		"high fructose corn syrup", "maltose", "molasses", "syrup",
	}
	proteinKeywords = []string{
		"protein", "whey", "casein", "pea protein", "soy protein", "egg", "albumin",
	}
)

// Compatibility scores a record against the caller's profile.
type Compatibility struct {
	Score       int
	Notes       []string
	Explanation string
}

// EvaluateCompatibility starts from 100, subtracts an allergy penalty and
// applies fitness-goal adjustments, clamping the result to 0..100.
func EvaluateCompatibility(record domain.AnalysisRecord, goal domain.FitnessGoal) Compatibility {
	score := maxCompatibilityScore
	notes := make([]string, 0, 2)

	if hits := len(record.AllergensMatched); hits > 0 {
		score -= min(maxAllergyPenalty, allergyPenaltyPerHit*hits)
		notes = append(notes, "Allergy risk: "+strings.Join(record.AllergensMatched, ", "))
	}

	ingredients := lowerAll(record.Ingredients)
	hasSugar := containsAnyKeyword(ingredients, sugarKeywords)
	hasProtein := containsAnyKeyword(ingredients, proteinKeywords)

	switch goal {
	case domain.GoalWeightLoss:
		if hasSugar {
			score -= 20
			notes = append(notes, "Contains added sugars; not ideal for weight loss")
		}
	case domain.GoalMuscleGain:
		if hasProtein {
			score += 10
			notes = append(notes, "Protein sources detected; supportive for muscle gain")
		} else {
			score -= 10
			notes = append(notes, "Low protein indicators; less supportive for muscle gain")
		}
	case domain.GoalEndurance:
		if hasSugar {
			score -= 10
			notes = append(notes, "Added sugars present; may not be ideal for overall nutrition")
		}
	}

	score = max(0, min(maxCompatibilityScore, score))
	explanation := noConcernsExplanation
	if len(notes) > 0 {
		explanation = strings.Join(notes, ". ")
	}
	return Compatibility{
		Score:       score,
		Notes:       notes,
		Explanation: explanation,
	}
}

func containsAnyKeyword(ingredients, keywords []string) bool {
	for _, ingredient := range ingredients {
		for _, keyword := range keywords {
			if strings.Contains(ingredient, keyword) {
				return true
			}
		}
	}
	return false
}
