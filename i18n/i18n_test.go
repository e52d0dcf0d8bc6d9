package i18n

import "testing"

func TestDetectLanguage(t *testing.T) {
	if DetectLanguage("en-US,en;q=0.9") != "en" {
		t.Fatalf("expected en")
	}
	if DetectLanguage("SV-se") != "sv" {
		t.Fatalf("expected sv for SV-se")
	}
	if DetectLanguage("sv-SE,sv;q=0.9,en;q=0.8") != "sv" {
		t.Fatalf("expected sv preferred")
	}
	if DetectLanguage("ja-JP") != "en" {
		t.Fatalf("expected en fallback")
	}
	if DetectLanguage("") != "en" {
		t.Fatalf("expected default en")
	}
}

func TestTranslations(t *testing.T) {
	if T("en", "required") != "Required" {
		t.Fatalf("expected Required")
	}
	if T("sv", "required") != "Obligatoriskt" {
		t.Fatalf("expected Obligatoriskt")
	}
	// unknown code -> fallback to code
	if T("en", "__nope__") != "__nope__" {
		t.Fatalf("expected fallback to code")
	}
	// unknown language -> fallback to en translation if exists
	if T("es", "required") != "Required" {
		t.Fatalf("expected en fallback for es lang")
	}
}

func TestViolations(t *testing.T) {
	got := Violations("sv", map[string]string{"quantity": "too_small", "x": "__custom__"})
	if got["quantity"] != "För litet" || got["x"] != "__custom__" {
		t.Fatalf("unexpected translations %v", got)
	}
}
