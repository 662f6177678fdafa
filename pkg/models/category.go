package models

import (
	"errors"
	"strings"
)

// ErrUnknownCategory is returned for resource categories outside the fixed set
var ErrUnknownCategory = errors.New("unknown category")

// Category is a resource bucket that usage is accounted against
type Category string

const (
	// CategoryUtilitySave holds saved outputs of text utilities
	CategoryUtilitySave Category = "utility_save"
	// CategoryVisionSave holds saved outputs of image-assisted utilities
	CategoryVisionSave Category = "vision_save"
	// CategoryHistory is the universal bucket every saved item also counts against
	CategoryHistory Category = "history"
)

var allCategories = []Category{CategoryUtilitySave, CategoryVisionSave, CategoryHistory}

// AllCategories returns the three categories in a stable order
func AllCategories() []Category {
	out := make([]Category, len(allCategories))
	copy(out, allCategories)
	return out
}

// FeatureCategories returns the two feature categories
func FeatureCategories() []Category {
	return []Category{CategoryUtilitySave, CategoryVisionSave}
}

// ParseCategory resolves a category name
func ParseCategory(name string) (Category, error) {
	c := Category(strings.ToLower(strings.TrimSpace(name)))
	for _, known := range allCategories {
		if c == known {
			return c, nil
		}
	}
	return "", ErrUnknownCategory
}

// IsFeature reports whether the category gates access to a feature
func (c Category) IsFeature() bool {
	return c == CategoryUtilitySave || c == CategoryVisionSave
}

func (c Category) String() string {
	return string(c)
}
