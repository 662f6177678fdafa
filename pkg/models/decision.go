package models

// DecisionCode identifies which check produced a decision
type DecisionCode string

// DecisionCode constants
const (
	DecisionAllowed      DecisionCode = "allowed"
	DecisionAccessDenied DecisionCode = "access_denied"
	DecisionItemLimit    DecisionCode = "item_limit"
	DecisionStorageLimit DecisionCode = "storage_limit"
)

// Denial reasons surfaced verbatim to users
const (
	ReasonAccessDenied = "plan does not include access to this feature."
	ReasonItemLimit    = "item limit reached for this plan."
	ReasonStorageLimit = "storage limit reached for this plan."
)

// Decision is the result of a quota check
type Decision struct {
	Allow       bool         `json:"allow"`
	Reason      string       `json:"reason,omitempty"`
	Code        DecisionCode `json:"code"`
	Category    Category     `json:"category"`
	Tier        Tier         `json:"tier"`
	ByteCeiling Limit        `json:"byte_ceiling"`
}

// Allowed builds an admitting decision
func Allowed(c Category, t Tier, ceiling Limit) *Decision {
	return &Decision{Allow: true, Code: DecisionAllowed, Category: c, Tier: t, ByteCeiling: ceiling}
}

// Denied builds a refusing decision with the reason for its code
func Denied(code DecisionCode, c Category, t Tier, ceiling Limit) *Decision {
	return &Decision{Allow: false, Code: code, Reason: reasonFor(code), Category: c, Tier: t, ByteCeiling: ceiling}
}

func reasonFor(code DecisionCode) string {
	switch code {
	case DecisionAccessDenied:
		return ReasonAccessDenied
	case DecisionItemLimit:
		return ReasonItemLimit
	case DecisionStorageLimit:
		return ReasonStorageLimit
	default:
		return ""
	}
}
