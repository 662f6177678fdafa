// Package entitlement maps plan tiers to their per-category quotas.
package entitlement

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/therealutkarshpriyadarshi/promptdesk/pkg/models"
)

// ErrIncompleteTable is returned when a table omits a tier or a category
var ErrIncompleteTable = errors.New("entitlement table is incomplete")

const (
	kib int64 = 1024
	mib int64 = 1024 * kib
)

// Table is the static tier -> limits mapping. It is read-only once built.
type Table struct {
	rows map[models.Tier]models.EntitlementRow
}

// tableFile is the on-disk YAML layout
type tableFile struct {
	Tiers []models.EntitlementRow `yaml:"tiers"`
}

// DefaultTable returns the built-in five-tier table
func DefaultTable() *Table {
	rows := []models.EntitlementRow{
		row(models.TierFree,
			models.Cap(5), models.Cap(50*kib),
			models.Cap(0), models.Cap(0),
			models.Cap(20), models.Cap(200*kib)),
		row(models.TierBasic,
			models.Cap(25), models.Cap(512*kib),
			models.Cap(0), models.Cap(0),
			models.Cap(100), models.Cap(1*mib)),
		row(models.TierPro,
			models.Cap(100), models.Cap(5*mib),
			models.Cap(25), models.Cap(5*mib),
			models.Cap(500), models.Cap(10*mib)),
		row(models.TierPremium,
			models.Cap(500), models.Cap(50*mib),
			models.Cap(250), models.Cap(50*mib),
			models.Unbounded(), models.Cap(100*mib)),
		row(models.TierUnlimited,
			models.Unbounded(), models.Unbounded(),
			models.Unbounded(), models.Unbounded(),
			models.Unbounded(), models.Unbounded()),
	}

	t, err := New(rows)
	if err != nil {
		panic(fmt.Sprintf("default entitlement table: %v", err))
	}
	return t
}

func row(tier models.Tier, utilItems, utilBytes, visionItems, visionBytes, histItems, histBytes models.Limit) models.EntitlementRow {
	return models.EntitlementRow{
		Tier: tier,
		MaxItems: map[models.Category]models.Limit{
			models.CategoryUtilitySave: utilItems,
			models.CategoryVisionSave:  visionItems,
			models.CategoryHistory:     histItems,
		},
		ByteCeiling: map[models.Category]models.Limit{
			models.CategoryUtilitySave: utilBytes,
			models.CategoryVisionSave:  visionBytes,
			models.CategoryHistory:     histBytes,
		},
	}
}

// New builds a table from rows and validates it
func New(rows []models.EntitlementRow) (*Table, error) {
	t := &Table{rows: make(map[models.Tier]models.EntitlementRow, len(rows))}
	for _, r := range rows {
		if !r.Tier.Valid() {
			return nil, fmt.Errorf("%w: %q", models.ErrUnknownTier, r.Tier)
		}
		if _, dup := t.rows[r.Tier]; dup {
			return nil, fmt.Errorf("duplicate entitlement row for %q", r.Tier)
		}
		t.rows[r.Tier] = r
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

// Load reads a YAML table override
func Load(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read entitlement table: %w", err)
	}

	var f tableFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse entitlement table: %w", err)
	}

	return New(f.Tiers)
}

// LoadOrDefault loads path, or returns the default table when path is empty
func LoadOrDefault(path string) (*Table, error) {
	if path == "" {
		return DefaultTable(), nil
	}
	return Load(path)
}

// Validate checks that every tier defines every category, which the
// lowest-tier fallback relies on.
func (t *Table) Validate() error {
	for _, tier := range models.AllTiers() {
		r, ok := t.rows[tier]
		if !ok {
			return fmt.Errorf("%w: missing tier %q", ErrIncompleteTable, tier)
		}
		for _, c := range models.AllCategories() {
			if _, ok := r.MaxItems[c]; !ok {
				return fmt.Errorf("%w: tier %q has no max_items for %s", ErrIncompleteTable, tier, c)
			}
			if _, ok := r.ByteCeiling[c]; !ok {
				return fmt.Errorf("%w: tier %q has no byte_ceiling for %s", ErrIncompleteTable, tier, c)
			}
		}
	}
	return nil
}

// LimitsFor returns the row for a tier. Unknown tiers get the lowest tier's row.
func (t *Table) LimitsFor(tier models.Tier) models.EntitlementRow {
	if r, ok := t.rows[tier]; ok {
		return r
	}
	return t.rows[models.LowestTier]
}

// LimitsForName parses name and returns its row. Unknown names are rejected
// rather than silently mapped.
func (t *Table) LimitsForName(name string) (models.EntitlementRow, error) {
	tier, err := models.ParseTier(name)
	if err != nil {
		return models.EntitlementRow{}, fmt.Errorf("%w: %q", err, name)
	}
	return t.LimitsFor(tier), nil
}

// Rows returns all rows in ascending tier order
func (t *Table) Rows() []models.EntitlementRow {
	out := make([]models.EntitlementRow, 0, len(t.rows))
	for _, tier := range models.AllTiers() {
		out = append(out, t.rows[tier])
	}
	return out
}
