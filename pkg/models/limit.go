package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrNegativeLimit is returned when a finite ceiling below zero is configured
var ErrNegativeLimit = errors.New("limit must not be negative")

// Limit is an optional numeric ceiling. The zero value is unbounded.
//
// A finite ceiling of 0 is distinct from unbounded: for feature categories it
// means the plan has no access at all.
type Limit struct {
	value   int64
	bounded bool
}

// Unbounded returns a limit with no finite cap
func Unbounded() Limit {
	return Limit{}
}

// Cap returns a finite limit of n
func Cap(n int64) Limit {
	return Limit{value: n, bounded: true}
}

// Finite returns the cap and true, or 0 and false when unbounded
func (l Limit) Finite() (int64, bool) {
	return l.value, l.bounded
}

// IsUnbounded reports whether the limit has no finite cap
func (l Limit) IsUnbounded() bool {
	return !l.bounded
}

// IsZero reports whether the limit is a finite cap of exactly zero
func (l Limit) IsZero() bool {
	return l.bounded && l.value == 0
}

// Exceeded reports whether current usage has reached the cap
func (l Limit) Exceeded(current int64) bool {
	return l.bounded && current >= l.value
}

// Allows reports whether current+delta stays within the cap
func (l Limit) Allows(current, delta int64) bool {
	return !l.bounded || current+delta <= l.value
}

func (l Limit) String() string {
	if !l.bounded {
		return "unbounded"
	}
	return strconv.FormatInt(l.value, 10)
}

// MarshalJSON encodes unbounded as null
func (l Limit) MarshalJSON() ([]byte, error) {
	if !l.bounded {
		return []byte("null"), nil
	}
	return []byte(strconv.FormatInt(l.value, 10)), nil
}

// UnmarshalJSON accepts a non-negative integer or null
func (l *Limit) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*l = Unbounded()
		return nil
	}
	var n int64
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("failed to decode limit: %w", err)
	}
	return l.set(n)
}

// UnmarshalYAML accepts a non-negative integer, null/~ or the word "unbounded"
func (l *Limit) UnmarshalYAML(node *yaml.Node) error {
	if node.Tag == "!!null" {
		*l = Unbounded()
		return nil
	}
	if strings.EqualFold(strings.TrimSpace(node.Value), "unbounded") {
		*l = Unbounded()
		return nil
	}
	n, err := strconv.ParseInt(strings.TrimSpace(node.Value), 10, 64)
	if err != nil {
		return fmt.Errorf("line %d: invalid limit %q", node.Line, node.Value)
	}
	return l.set(n)
}

// MarshalYAML encodes unbounded as the word "unbounded"
func (l Limit) MarshalYAML() (interface{}, error) {
	if !l.bounded {
		return "unbounded", nil
	}
	return l.value, nil
}

func (l *Limit) set(n int64) error {
	if n < 0 {
		return ErrNegativeLimit
	}
	*l = Cap(n)
	return nil
}
