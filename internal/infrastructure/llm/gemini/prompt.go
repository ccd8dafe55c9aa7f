package gemini

import (
	"encoding/json"
	"strings"
)

const maxPromptAllergies = 50

func buildLabelPrompt(allergies []string) string {
	cleaned := make([]string, 0, len(allergies))
	for _, allergy := range allergies {
		if allergy = strings.TrimSpace(allergy); allergy != "" {
			cleaned = append(cleaned, allergy)
		}
		if len(cleaned) == maxPromptAllergies {
			break
		}
	}
	encoded, err := json.Marshal(cleaned)
	if err != nil {
		encoded = []byte("[]")
	}

	return `You are given an image of a food product label. Carefully extract all text, especially ingredients and nutrition.

You are a nutrition assistant for EatWise. Analyze and return structured JSON.

User allergies (treat these as high-risk): ` + string(encoded) + `

Return ONLY JSON with these fields:
- name: string (concise product/label name; if missing, derive from visible brand/product text)
- ingredients: array of strings (clean, lowercase)
- allergens: array of confirmed allergens (from label)
- possibleAllergens: array of likely allergens inferred from ingredients (e.g., 'whey' -> 'milk', 'albumin' -> 'eggs', 'soy lecithin' -> 'soy', 'almonds' -> 'nuts', 'gluten', 'shellfish')
- nutrition: object (calories, protein, fat, sugar, fiber, saturated_fat, sodium, etc.)
- health_analysis: short paragraph
- grade: one of 'A','B','C','D','E' (Nutri-Score style, best=A, worst=E) based on overall nutrition
- isAllergic: boolean (true if any ingredient matches the user allergies above)
- allergensMatched: array of strings (which of the user allergies matched)`
}
