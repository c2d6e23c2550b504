package util

import (
	"strings"
	"testing"
	"time"
)

func TestParseBoolEnv(t *testing.T) {
	t.Setenv("CAREFLOW_TEST_BOOL", "yes")
	if !ParseBoolEnv("CAREFLOW_TEST_BOOL", false) {
		t.Error("expected yes to parse as true")
	}
	t.Setenv("CAREFLOW_TEST_BOOL", "off")
	if ParseBoolEnv("CAREFLOW_TEST_BOOL", true) {
		t.Error("expected off to parse as false")
	}
	t.Setenv("CAREFLOW_TEST_BOOL", "banana")
	if !ParseBoolEnv("CAREFLOW_TEST_BOOL", true) {
		t.Error("expected invalid value to return default")
	}
	if ParseBoolEnv("CAREFLOW_TEST_UNSET", false) {
		t.Error("expected unset variable to return default")
	}
}

func TestParseIntEnv(t *testing.T) {
	t.Setenv("CAREFLOW_TEST_INT", " 42 ")
	if got := ParseIntEnv("CAREFLOW_TEST_INT", 7); got != 42 {
		t.Errorf("expected 42, got %d", got)
	}
	t.Setenv("CAREFLOW_TEST_INT", "nope")
	if got := ParseIntEnv("CAREFLOW_TEST_INT", 7); got != 7 {
		t.Errorf("expected default 7, got %d", got)
	}
}

func TestParseDurationEnv(t *testing.T) {
	t.Setenv("CAREFLOW_TEST_DUR", "90m")
	if got := ParseDurationEnv("CAREFLOW_TEST_DUR", time.Hour); got != 90*time.Minute {
		t.Errorf("expected 90m, got %s", got)
	}
	t.Setenv("CAREFLOW_TEST_DUR", "soon")
	if got := ParseDurationEnv("CAREFLOW_TEST_DUR", time.Hour); got != time.Hour {
		t.Errorf("expected default 1h, got %s", got)
	}
}

func TestGeneratedIDPrefixes(t *testing.T) {
	cases := []struct {
		id     string
		prefix string
	}{
		{GenerateAnonymousID(), "anon_"},
		{GenerateAssessmentID(), "asmt_"},
		{GenerateMoodID(), "mood_"},
		{GenerateReferralID(), "ref_"},
	}
	for _, tc := range cases {
		if !strings.HasPrefix(tc.id, tc.prefix) {
			t.Errorf("expected prefix %q, got %q", tc.prefix, tc.id)
		}
		if len(tc.id) <= len(tc.prefix) {
			t.Errorf("expected id body after prefix, got %q", tc.id)
		}
	}
}

func TestGeneratedIDsAreUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := GenerateID("id_")
		if seen[id] {
			t.Fatalf("duplicate id %q", id)
		}
		seen[id] = true
	}
}
