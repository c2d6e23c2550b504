package flow

import (
	"testing"

	"github.com/novamind-health/careflow/internal/models"
)

func TestCalculatePHQ4Subscales(t *testing.T) {
	result, err := CalculatePHQ4([4]int{2, 1, 2, 2})
	if err != nil {
		t.Fatalf("CalculatePHQ4 returned error: %v", err)
	}
	if result.DepressionScore != 3 {
		t.Errorf("expected depression score 3, got %d", result.DepressionScore)
	}
	if result.AnxietyScore != 4 {
		t.Errorf("expected anxiety score 4, got %d", result.AnxietyScore)
	}
	if result.TotalScore != 7 {
		t.Errorf("expected total score 7, got %d", result.TotalScore)
	}
	if result.Severity != models.SeverityModerate {
		t.Errorf("expected moderate severity, got %s", result.Severity)
	}
}

func TestCalculatePHQ4RejectsOutOfRange(t *testing.T) {
	if _, err := CalculatePHQ4([4]int{0, 0, 0, 4}); err == nil {
		t.Error("expected error for answer above 3")
	}
	if _, err := CalculatePHQ4([4]int{-1, 0, 0, 0}); err == nil {
		t.Error("expected error for negative answer")
	}
}

func TestPHQ4SeverityBands(t *testing.T) {
	cases := []struct {
		total int
		want  models.Severity
	}{
		{0, models.SeverityMinimal},
		{2, models.SeverityMinimal},
		{3, models.SeverityMild},
		{5, models.SeverityMild},
		{6, models.SeverityModerate},
		{8, models.SeverityModerate},
		{9, models.SeveritySevere},
		{12, models.SeveritySevere},
	}
	for _, tc := range cases {
		if got := PHQ4Severity(tc.total); got != tc.want {
			t.Errorf("PHQ4Severity(%d) = %s, want %s", tc.total, got, tc.want)
		}
	}
}
