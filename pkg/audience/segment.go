package audience

import (
	"time"

	"github.com/AccelByte/extend-marketing-automation/pkg/rule"
	"github.com/AccelByte/extend-marketing-automation/pkg/service"
)

// Segment is a saved rule set defining a customer audience.
type Segment struct {
	ID             string             `yaml:"id" json:"id" validate:"required"`
	OrganizationID string             `yaml:"organization_id" json:"organizationId" validate:"required"`
	Name           string             `yaml:"name" json:"name"`
	Rules          []rule.SegmentRule `yaml:"rules" json:"rules" validate:"dive"`
	Combination    rule.Combination   `yaml:"combination" json:"combination" validate:"oneof=AND OR"`
	LocationIDs    []string           `yaml:"location_ids,omitempty" json:"locationIds,omitempty"`
	CreatedAt      time.Time          `yaml:"-" json:"createdAt"`
	UpdatedAt      time.Time          `yaml:"-" json:"updatedAt"`
}

// Condition returns the segment's rules joined by its combination.
func (s *Segment) Condition() rule.Condition {
	return rule.Condition{Rules: s.Rules, Combination: s.Combination}
}

// Validate returns every reason the segment definition is unusable.
func (s *Segment) Validate() []string {
	return rule.ValidateCondition(s.Condition())
}

// ReplaceRules swaps the whole rule list. Partial edits are not supported.
// The segment is left untouched when the new rules are invalid.
func (s *Segment) ReplaceRules(rules []rule.SegmentRule, combination rule.Combination, now time.Time) error {
	candidate := rule.Condition{Rules: rules, Combination: combination}
	if errs := rule.ValidateCondition(candidate); len(errs) > 0 {
		return service.NewValidationError("segment.replaceRules", errs)
	}

	replaced := make([]rule.SegmentRule, len(rules))
	copy(replaced, rules)
	s.Rules = replaced
	s.Combination = combination
	s.UpdatedAt = now
	return nil
}
