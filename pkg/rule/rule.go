package rule

// Operator names a comparison between an attribute and a rule value.
type Operator string

const (
	OpEq  Operator = "eq"
	OpNe  Operator = "ne"
	OpGt  Operator = "gt"
	OpGte Operator = "gte"
	OpLt  Operator = "lt"
	OpLte Operator = "lte"
	OpIn  Operator = "in"
)

// SegmentRule compares one customer attribute against a value.
type SegmentRule struct {
	Attribute string   `yaml:"attribute" json:"attribute" validate:"required"`
	Operator  Operator `yaml:"operator" json:"operator" validate:"required"`
	Value     Value    `yaml:"value" json:"value"`
}

// New builds a rule. It is a convenience for tests and seed data.
func New(attribute string, op Operator, value Value) SegmentRule {
	return SegmentRule{Attribute: attribute, Operator: op, Value: value}
}

// Combination decides how multiple rules are joined.
type Combination string

const (
	And Combination = "AND"
	Or  Combination = "OR"
)

// Condition is a rule list joined by a combination. Segments, branch nodes,
// conversion goals and exit rules all evaluate through it.
type Condition struct {
	Rules       []SegmentRule `yaml:"rules" json:"rules" validate:"dive"`
	Combination Combination   `yaml:"combination" json:"combination"`
}

// IsEmpty reports whether the condition has no rules.
func (c Condition) IsEmpty() bool {
	return len(c.Rules) == 0
}
