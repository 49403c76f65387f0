package rule

import "testing"

func TestLabel(t *testing.T) {
	tests := []struct {
		rule     SegmentRule
		expected string
	}{
		{New("orders", OpIn, ListValue(Num(3), Num(5), Num(7))), "orders in [3, 5, 7]"},
		{New("total_spend", OpGte, NumberValue(12.5)), "total_spend >= 12.5"},
		{New("total_spend", OpLt, NumberValue(1000000)), "total_spend < 1000000"},
		{New("city", OpEq, StringValue("Berlin")), `city = "Berlin"`},
		{New("city", OpNe, StringValue(`Sa"o`)), `city != "Sa\"o"`},
		{New("tier", OpIn, ListValue(Str("gold"), Str("silver"))), `tier in ["gold", "silver"]`},
		{New("orders", OpGt, NumberValue(-1)), "orders > -1"},
		{New("orders", OpLte, NumberValue(0.1)), "orders <= 0.1"},
		{New("orders", Operator("between"), NumberValue(2)), "orders between 2"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if got := Label(tt.rule); got != tt.expected {
				t.Errorf("Label() = %q, expected %q", got, tt.expected)
			}
		})
	}
}
