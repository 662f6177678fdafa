package models

// EntitlementRow holds the numeric limits attached to one tier
type EntitlementRow struct {
	Tier        Tier               `json:"tier" yaml:"tier"`
	MaxItems    map[Category]Limit `json:"max_items" yaml:"max_items"`
	ByteCeiling map[Category]Limit `json:"byte_ceiling" yaml:"byte_ceiling"`
}

// Items returns the item ceiling for a category. Missing entries are unbounded.
func (r EntitlementRow) Items(c Category) Limit {
	return r.MaxItems[c]
}

// Bytes returns the byte ceiling for a category. Missing entries are unbounded.
func (r EntitlementRow) Bytes(c Category) Limit {
	return r.ByteCeiling[c]
}

// GrantsAccess reports whether the tier may use a feature category at all
func (r EntitlementRow) GrantsAccess(c Category) bool {
	if !c.IsFeature() {
		return true
	}
	return !r.Items(c).IsZero()
}
