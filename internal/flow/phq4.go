package flow

import (
	"fmt"

	"github.com/novamind-health/careflow/internal/models"
)

// PHQ-4 answer bounds. Each of the four items is scored 0-3.
const (
	PHQ4AnswerMin = 0
	PHQ4AnswerMax = 3
)

// PHQ4Result holds the scores derived from a completed PHQ-4 screening.
// Items 1-2 form the depression subscale, items 3-4 the anxiety subscale.
type PHQ4Result struct {
	DepressionScore int
	AnxietyScore    int
	TotalScore      int
	Severity        models.Severity
}

// CalculatePHQ4 computes subscale, total and severity for four answers.
func CalculatePHQ4(answers [4]int) (PHQ4Result, error) {
	for i, a := range answers {
		if a < PHQ4AnswerMin || a > PHQ4AnswerMax {
			return PHQ4Result{}, fmt.Errorf("answer %d out of range: %d", i+1, a)
		}
	}
	result := PHQ4Result{
		DepressionScore: answers[0] + answers[1],
		AnxietyScore:    answers[2] + answers[3],
	}
	result.TotalScore = result.DepressionScore + result.AnxietyScore
	result.Severity = PHQ4Severity(result.TotalScore)
	return result, nil
}

// PHQ4Severity maps a total score to its severity band:
// 0-2 minimal, 3-5 mild, 6-8 moderate, 9-12 severe.
func PHQ4Severity(total int) models.Severity {
	switch {
	case total <= 2:
		return models.SeverityMinimal
	case total <= 5:
		return models.SeverityMild
	case total <= 8:
		return models.SeverityModerate
	default:
		return models.SeveritySevere
	}
}
