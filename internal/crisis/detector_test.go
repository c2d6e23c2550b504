package crisis

import "testing"

func TestDetectIntentPhrase(t *testing.T) {
	d := NewDetector()
	cases := []struct {
		text string
		lang string
		want Level
	}{
		{"I want to hurt myself", "en", LevelHigh},
		{"sometimes I think about suicide", "en", LevelHigh},
		{"I am going to kill myself tonight", "en", LevelCritical},
		{"I can't go on, I have a plan", "en", LevelCritical},
		{"my friend is suicidal", "en", LevelHigh},
		{"quiero morir", "es", LevelHigh},
		{"voy a matarme esta noche", "es", LevelCritical},
		{"je veux mourir", "fr", LevelHigh},
		{"je vais me tuer ce soir", "fr", LevelCritical},
	}
	for _, tc := range cases {
		if got := d.Detect(tc.text, tc.lang); got != tc.want {
			t.Errorf("Detect(%q, %s) = %s, want %s", tc.text, tc.lang, got, tc.want)
		}
	}
}

func TestDetectBenignText(t *testing.T) {
	d := NewDetector()
	cases := []string{
		"I killed it at work today",
		"this deadline is killing me... of laughter",
		"feeling a bit tired",
		"my phone battery is about to die",
		"",
	}
	for _, text := range cases {
		if got := d.Detect(text, "en"); got != LevelNone {
			t.Errorf("Detect(%q) = %s, want none", text, got)
		}
	}
}

func TestDetectEnglishFallbackForOtherLanguages(t *testing.T) {
	d := NewDetector()
	// A Spanish-language session can still carry English crisis text.
	if got := d.Detect("I want to kill myself", "es"); got != LevelHigh {
		t.Errorf("expected high level for English text in Spanish session, got %s", got)
	}
	// Unknown languages use the English table.
	if got := d.Detect("I want to die", "de"); got != LevelHigh {
		t.Errorf("expected high level for unknown language, got %s", got)
	}
}

func TestDetectApostropheVariants(t *testing.T) {
	d := NewDetector()
	for _, text := range []string{"I don't want to live", "I don’t want to live"} {
		if got := d.Detect(text, "en"); got != LevelHigh {
			t.Errorf("Detect(%q) = %s, want high", text, got)
		}
	}
}

func TestNormalize(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"  Hello,   World! ", "hello world"},
		{"don't", "dont"},
		{"aujourd'hui", "aujourdhui"},
		{"KILL... myself?!", "kill myself"},
		{"", ""},
	}
	for _, tc := range cases {
		if got := Normalize(tc.in); got != tc.want {
			t.Errorf("Normalize(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestLevelString(t *testing.T) {
	if LevelNone.String() != "none" || LevelHigh.String() != "high" || LevelCritical.String() != "critical" {
		t.Error("unexpected level names")
	}
}
