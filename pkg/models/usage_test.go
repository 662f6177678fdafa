package models

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestNewUsageTrackerZeroed(t *testing.T) {
	tracker := NewUsageTracker("user-1", TierFree)
	for _, c := range AllCategories() {
		if tracker.Items[c] != 0 || tracker.Bytes[c] != 0 {
			t.Errorf("Expected zero counters for %s", c)
		}
	}
}

func TestUsageTrackerApply(t *testing.T) {
	tracker := NewUsageTracker("user-1", TierFree)

	if err := tracker.Apply(CategoryUtilitySave, 1, 200); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if tracker.Items[CategoryUtilitySave] != 1 || tracker.Bytes[CategoryUtilitySave] != 200 {
		t.Errorf("Unexpected counters: %+v", tracker)
	}

	err := tracker.Apply(CategoryUtilitySave, -2, -200)
	if !errors.Is(err, ErrNegativeUsage) {
		t.Fatalf("Expected ErrNegativeUsage, got %v", err)
	}
	if tracker.Items[CategoryUtilitySave] != 1 || tracker.Bytes[CategoryUtilitySave] != 200 {
		t.Error("Tracker should be unchanged after a rejected delta")
	}
}

func TestUsageTrackerRoundTrip(t *testing.T) {
	tracker := NewUsageTracker("user-1", TierPro)
	_ = tracker.Apply(CategoryVisionSave, 3, 4096)
	_ = tracker.Apply(CategoryHistory, 3, 4096)
	tracker.UpdatedAt = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	data, err := json.Marshal(tracker)
	if err != nil {
		t.Fatalf("Failed to marshal: %v", err)
	}

	var decoded UsageTracker
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Failed to unmarshal: %v", err)
	}

	if decoded.UserID != tracker.UserID || decoded.Tier != tracker.Tier {
		t.Errorf("Identity mismatch: %+v", decoded)
	}
	for _, c := range AllCategories() {
		if decoded.Items[c] != tracker.Items[c] || decoded.Bytes[c] != tracker.Bytes[c] {
			t.Errorf("%s: counters differ after round trip", c)
		}
	}
	if !decoded.UpdatedAt.Equal(tracker.UpdatedAt) {
		t.Errorf("UpdatedAt differs: %v", decoded.UpdatedAt)
	}
}

func TestUsageTrackerNormalize(t *testing.T) {
	var tracker UsageTracker
	if err := json.Unmarshal([]byte(`{"user_id":"u","tier":"Free Tier","items":{"history":2}}`), &tracker); err != nil {
		t.Fatalf("Failed to unmarshal: %v", err)
	}
	tracker.Normalize()
	if tracker.Items[CategoryHistory] != 2 {
		t.Error("Normalize should keep existing counters")
	}
	if _, ok := tracker.Bytes[CategoryUtilitySave]; !ok {
		t.Error("Normalize should fill missing categories")
	}
}

func TestDecisionReasons(t *testing.T) {
	d := Denied(DecisionItemLimit, CategoryUtilitySave, TierFree, Cap(100))
	if d.Allow || d.Reason != ReasonItemLimit {
		t.Errorf("Unexpected decision: %+v", d)
	}
	a := Allowed(CategoryHistory, TierUnlimited, Unbounded())
	if !a.Allow || a.Reason != "" {
		t.Errorf("Unexpected decision: %+v", a)
	}

	data, _ := json.Marshal(a)
	var decoded map[string]interface{}
	_ = json.Unmarshal(data, &decoded)
	if decoded["byte_ceiling"] != nil {
		t.Errorf("Unbounded ceiling should encode as null, got %v", decoded["byte_ceiling"])
	}
}
