package change

import (
	"strings"

	"github.com/trialpulse/trialpulse/domain/entity"
)

// Predicate decides whether a classification rule applies to a change.
// The FieldChange is zero-valued for new_entity changes.
type Predicate func(entityType entity.Type, kind Kind, fc FieldChange) bool

// Rule pairs a predicate with the significance tier it assigns.
type Rule struct {
	name    string
	tier    Significance
	matches Predicate
}

// NewRule creates a classification rule.
func NewRule(name string, tier Significance, matches Predicate) Rule {
	return Rule{name: name, tier: tier, matches: matches}
}

// Name returns the rule name.
func (r Rule) Name() string { return r.name }

// Tier returns the significance the rule assigns.
func (r Rule) Tier() Significance { return r.tier }

// Classifier scores changes with an ordered rule table. Rules are
// evaluated top-down and the first match wins; the constructor appends an
// unconditional low-tier rule so classification is total and can never
// fail to produce a tier.
type Classifier struct {
	rules []Rule
}

// NewClassifier creates a Classifier from ordered rules plus the
// mandatory trailing default.
func NewClassifier(rules ...Rule) Classifier {
	all := make([]Rule, 0, len(rules)+1)
	all = append(all, rules...)
	all = append(all, NewRule("default", SignificanceLow,
		func(entity.Type, Kind, FieldChange) bool { return true }))
	return Classifier{rules: all}
}

// Classify returns the significance tier for a change.
func (c Classifier) Classify(entityType entity.Type, kind Kind, fc FieldChange) Significance {
	for _, rule := range c.rules {
		if rule.matches(entityType, kind, fc) {
			return rule.tier
		}
	}
	// Unreachable: the default rule always matches.
	return SignificanceLow
}

// ClassifyWithRule returns the tier and the name of the matched rule.
func (c Classifier) ClassifyWithRule(entityType entity.Type, kind Kind, fc FieldChange) (Significance, string) {
	for _, rule := range c.rules {
		if rule.matches(entityType, kind, fc) {
			return rule.tier, rule.name
		}
	}
	return SignificanceLow, "default"
}

// terminalTrialStatuses are status values that end a trial.
var terminalTrialStatuses = map[string]bool{
	"terminated": true,
	"completed":  true,
	"withdrawn":  true,
	"suspended":  true,
}

// DefaultClassifier returns the built-in rule table:
// phase transitions are critical, trial termination or completion is high,
// first-seen filings and newly tracked entities are medium, everything
// else is low.
func DefaultClassifier() Classifier {
	return NewClassifier(
		NewRule("phase-transition", SignificanceCritical,
			func(_ entity.Type, kind Kind, _ FieldChange) bool {
				return kind == KindPhaseChange
			}),
		NewRule("trial-termination", SignificanceHigh,
			func(_ entity.Type, kind Kind, fc FieldChange) bool {
				if kind != KindStatusChange {
					return false
				}
				return terminalTrialStatuses[strings.ToLower(FormatValue(fc.NewValue()))]
			}),
		NewRule("first-filing", SignificanceMedium,
			func(_ entity.Type, kind Kind, fc FieldChange) bool {
				if kind != KindFiling {
					return false
				}
				return !fc.OldPresent() || isEmptyValue(fc.OldValue())
			}),
		NewRule("new-entity", SignificanceMedium,
			func(_ entity.Type, kind Kind, _ FieldChange) bool {
				return kind == KindNewEntity
			}),
	)
}

func isEmptyValue(v any) bool {
	switch typed := v.(type) {
	case nil:
		return true
	case string:
		return typed == ""
	case []any:
		return len(typed) == 0
	case []string:
		return len(typed) == 0
	default:
		return false
	}
}
