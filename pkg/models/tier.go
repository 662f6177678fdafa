package models

import (
	"errors"
	"strings"
)

// ErrUnknownTier is returned when a tier name is not one of the five plans
var ErrUnknownTier = errors.New("unknown tier")

// Tier represents a named subscription plan
type Tier string

// Tier constants, in ascending order of entitlement
const (
	TierFree      Tier = "Free Tier"
	TierBasic     Tier = "Basic Tier"
	TierPro       Tier = "Pro Tier"
	TierPremium   Tier = "Premium Tier"
	TierUnlimited Tier = "Unlimited"
)

// LowestTier is assigned when no allow-list entry matches
const LowestTier = TierFree

var allTiers = []Tier{TierFree, TierBasic, TierPro, TierPremium, TierUnlimited}

// planCodes maps allow-list plan codes to tiers
var planCodes = map[string]Tier{
	"fr": TierFree,
	"ba": TierBasic,
	"pr": TierPro,
	"pm": TierPremium,
	"un": TierUnlimited,
}

// AllTiers returns every tier in ascending order
func AllTiers() []Tier {
	out := make([]Tier, len(allTiers))
	copy(out, allTiers)
	return out
}

// ParseTier resolves a tier name, ignoring case and surrounding whitespace
func ParseTier(name string) (Tier, error) {
	trimmed := strings.TrimSpace(name)
	for _, t := range allTiers {
		if strings.EqualFold(string(t), trimmed) {
			return t, nil
		}
	}
	return "", ErrUnknownTier
}

// TierForPlanCode maps an allow-list plan code to its tier
func TierForPlanCode(code string) (Tier, bool) {
	t, ok := planCodes[strings.ToLower(strings.TrimSpace(code))]
	return t, ok
}

// Valid reports whether t is one of the five known tiers
func (t Tier) Valid() bool {
	for _, known := range allTiers {
		if t == known {
			return true
		}
	}
	return false
}

func (t Tier) String() string {
	return string(t)
}
