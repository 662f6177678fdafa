package models

import (
	"errors"
	"testing"
)

func TestParseTier(t *testing.T) {
	tests := []struct {
		input   string
		want    Tier
		wantErr bool
	}{
		{"Free Tier", TierFree, false},
		{"  pro tier ", TierPro, false},
		{"UNLIMITED", TierUnlimited, false},
		{"Gold", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseTier(tt.input)
			if tt.wantErr {
				if !errors.Is(err, ErrUnknownTier) {
					t.Fatalf("Expected ErrUnknownTier, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestTierForPlanCode(t *testing.T) {
	codes := map[string]Tier{
		"fr": TierFree,
		"ba": TierBasic,
		"pr": TierPro,
		"pm": TierPremium,
		"un": TierUnlimited,
		"UN": TierUnlimited,
	}
	for code, want := range codes {
		got, ok := TierForPlanCode(code)
		if !ok || got != want {
			t.Errorf("TierForPlanCode(%q) = %q, %v; want %q", code, got, ok, want)
		}
	}

	if _, ok := TierForPlanCode("gold"); ok {
		t.Error("Expected unknown plan code to be rejected")
	}
}

func TestAllTiersOrder(t *testing.T) {
	tiers := AllTiers()
	if len(tiers) != 5 {
		t.Fatalf("Expected 5 tiers, got %d", len(tiers))
	}
	if tiers[0] != LowestTier {
		t.Errorf("Expected lowest tier first, got %q", tiers[0])
	}
	if !TierPremium.Valid() || Tier("premium tier").Valid() {
		t.Error("Valid should only accept canonical names")
	}
}

func TestParseCategory(t *testing.T) {
	c, err := ParseCategory(" Utility_Save ")
	if err != nil || c != CategoryUtilitySave {
		t.Fatalf("Expected utility_save, got %q (%v)", c, err)
	}
	if !c.IsFeature() {
		t.Error("utility_save should be a feature category")
	}
	if CategoryHistory.IsFeature() {
		t.Error("history should not be a feature category")
	}
	if _, err := ParseCategory("images"); !errors.Is(err, ErrUnknownCategory) {
		t.Errorf("Expected ErrUnknownCategory, got %v", err)
	}
}

func TestUserIDForEmail(t *testing.T) {
	a := UserIDForEmail("Foo@Bar.com")
	b := UserIDForEmail("  foo@bar.com")
	if a != b {
		t.Errorf("Expected case-insensitive ids, got %s and %s", a, b)
	}
	if a == UserIDForEmail("other@bar.com") {
		t.Error("Expected distinct ids for distinct emails")
	}
}
