// Package change provides change records, field comparators, the
// significance classifier, and the append-only ledger contract.
package change

import "fmt"

// Significance is an ordinal importance tier. Higher values are more
// significant, so stores can order by the numeric value directly.
type Significance int

// Significance tiers.
const (
	SignificanceLow Significance = iota + 1
	SignificanceMedium
	SignificanceHigh
	SignificanceCritical
)

// String returns the tier name.
func (s Significance) String() string {
	switch s {
	case SignificanceCritical:
		return "critical"
	case SignificanceHigh:
		return "high"
	case SignificanceMedium:
		return "medium"
	case SignificanceLow:
		return "low"
	default:
		return fmt.Sprintf("significance(%d)", int(s))
	}
}

// Valid reports whether the tier is one of the four known tiers.
func (s Significance) Valid() bool {
	return s >= SignificanceLow && s <= SignificanceCritical
}

// AtLeast reports whether the tier meets the given minimum.
func (s Significance) AtLeast(minimum Significance) bool {
	return s >= minimum
}

// ParseSignificance converts a tier name to a Significance.
func ParseSignificance(s string) (Significance, error) {
	switch s {
	case "critical":
		return SignificanceCritical, nil
	case "high":
		return SignificanceHigh, nil
	case "medium":
		return SignificanceMedium, nil
	case "low":
		return SignificanceLow, nil
	default:
		return 0, fmt.Errorf("unknown significance %q", s)
	}
}
