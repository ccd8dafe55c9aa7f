package domain

import (
	"strings"
	"time"
)

// Grades ordered best to worst.
var Grades = []string{"A", "B", "C", "D", "E"}

// DefaultLabelName is used when the model does not name the product.
const DefaultLabelName = "Food Label"

// AnalysisRecord is the canonical structured result of one label scan.
type AnalysisRecord struct {
	Name              string         `json:"name"`
	Ingredients       []string       `json:"ingredients"`
	Allergens         []string       `json:"allergens"`
	PossibleAllergens []string       `json:"possibleAllergens"`
	Nutrition         map[string]any `json:"nutrition"`
	HealthAnalysis    string         `json:"healthAnalysis"`
	Grade             string         `json:"grade"`
	IsAllergic        bool           `json:"isAllergic"`
	AllergensMatched  []string       `json:"allergensMatched"`
}

// AnalysisResult is what analyzeLabel returns to the caller.
type AnalysisResult struct {
	AnalysisRecord
	ImageURL           string       `json:"imageUrl,omitempty"`
	Explanation        string       `json:"explanation"`
	CompatibilityScore int          `json:"compatibilityScore"`
	Saved              bool         `json:"saved"`
	ReportID           string       `json:"reportId,omitempty"`
	Quota              *QuotaStatus `json:"quota,omitempty"`
}

// LabelImage is a validated image ready to be sent to the model.
type LabelImage struct {
	Data     []byte
	MimeType string
}

// FitnessGoal drives the compatibility adjustments.
type FitnessGoal string

const (
	GoalNone       FitnessGoal = ""
	GoalWeightLoss FitnessGoal = "weight_loss"
	GoalMuscleGain FitnessGoal = "muscle_gain"
	GoalEndurance  FitnessGoal = "endurance"
)

func ParseFitnessGoal(raw string) (FitnessGoal, bool) {
	switch goal := FitnessGoal(strings.ToLower(strings.TrimSpace(raw))); goal {
	case GoalNone, GoalWeightLoss, GoalMuscleGain, GoalEndurance:
		return goal, true
	default:
		return GoalNone, false
	}
}

// AnalyzeLimits bounds one analyze call.
type AnalyzeLimits struct {
	ModelTimeout  time.Duration `json:"model_timeout"`
	LockTTL       time.Duration `json:"lock_ttl"`
	MaxImageBytes int64         `json:"max_image_bytes"`
}
