package rule

import (
	"strings"
)

// Evaluate checks one rule against one attribute record using the default registry.
// Unknown operators, missing attributes and type mismatches never match.
func Evaluate(r SegmentRule, attrs Attributes) bool {
	return defaultRegistry.Evaluate(r, attrs)
}

// Evaluate checks one rule against one attribute record.
func (reg *Registry) Evaluate(r SegmentRule, attrs Attributes) bool {
	if strings.TrimSpace(r.Attribute) == "" {
		return false
	}
	cmp, ok := reg.Get(r.Operator)
	if !ok {
		return false
	}
	attr, ok := attrs[r.Attribute]
	if !ok {
		return false
	}
	return safeCompare(cmp, attr, r.Value)
}

// safeCompare keeps a faulty registered comparator from taking down a whole audience pass.
func safeCompare(cmp Comparator, attr, target Value) (matched bool) {
	defer func() {
		if recover() != nil {
			matched = false
		}
	}()
	return cmp(attr, target)
}

// Match evaluates the condition. A condition without rules matches nobody,
// whatever its combination.
func (c Condition) Match(attrs Attributes) bool {
	matched, _ := defaultRegistry.Match(c, attrs, false)
	return matched
}

// MatchedIndices returns whether the condition matched and which rules did.
func (c Condition) MatchedIndices(attrs Attributes) (bool, []int) {
	return defaultRegistry.Match(c, attrs, true)
}

// Match evaluates a condition. When collect is false evaluation short-circuits
// and no indices are returned.
func (reg *Registry) Match(c Condition, attrs Attributes, collect bool) (bool, []int) {
	if len(c.Rules) == 0 {
		return false, nil
	}

	var indices []int
	switch c.Combination {
	case And:
		for i, r := range c.Rules {
			if !reg.Evaluate(r, attrs) {
				return false, nil
			}
			if collect {
				indices = append(indices, i)
			}
		}
		return true, indices
	case Or:
		matched := false
		for i, r := range c.Rules {
			if reg.Evaluate(r, attrs) {
				matched = true
				if !collect {
					return true, nil
				}
				indices = append(indices, i)
			}
		}
		if !matched {
			return false, nil
		}
		return true, indices
	}
	return false, nil
}
