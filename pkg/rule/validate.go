package rule

import (
	"fmt"
	"strings"
)

// Validate checks a rule at the decode boundary. Evaluation never relies on it:
// an invalid rule that slips through simply never matches.
func Validate(r SegmentRule) []string {
	var errs []string

	if strings.TrimSpace(r.Attribute) == "" {
		errs = append(errs, "rule attribute is empty")
	}

	if _, ok := defaultRegistry.Get(r.Operator); !ok {
		errs = append(errs, fmt.Sprintf("rule on %q has unknown operator %q", r.Attribute, r.Operator))
		return errs
	}

	switch r.Operator {
	case OpIn:
		if !r.Value.IsList {
			errs = append(errs, fmt.Sprintf("rule on %q: operator in requires a list value", r.Attribute))
		} else if len(r.Value.Items) == 0 {
			errs = append(errs, fmt.Sprintf("rule on %q: operator in requires a non-empty list", r.Attribute))
		}
	case OpGt, OpGte, OpLt, OpLte:
		if r.Value.IsList || !r.Value.IsNumber() {
			errs = append(errs, fmt.Sprintf("rule on %q: operator %s requires a numeric value", r.Attribute, r.Operator))
		}
	case OpEq, OpNe:
		if r.Value.IsList {
			errs = append(errs, fmt.Sprintf("rule on %q: operator %s requires a scalar value", r.Attribute, r.Operator))
		}
	}

	return errs
}

// ValidateCondition checks every rule and the combination, prefixing each
// reason with the rule position.
func ValidateCondition(c Condition) []string {
	var errs []string

	if c.Combination != And && c.Combination != Or {
		errs = append(errs, fmt.Sprintf("unknown rules combination %q (expected AND or OR)", c.Combination))
	}

	for i, r := range c.Rules {
		for _, e := range Validate(r) {
			errs = append(errs, fmt.Sprintf("rule %d: %s", i, e))
		}
	}

	return errs
}
