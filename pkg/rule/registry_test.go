package rule

import "testing"

func TestRegistry_Builtins(t *testing.T) {
	reg := NewBuiltinRegistry()

	if reg.Count() != 7 {
		t.Errorf("Count() = %d, expected 7", reg.Count())
	}

	for _, op := range []Operator{OpEq, OpNe, OpGt, OpGte, OpLt, OpLte, OpIn} {
		if _, ok := reg.Get(op); !ok {
			t.Errorf("operator %s not registered", op)
		}
	}

	if err := reg.Register(OpEq, "==", compareEq); err == nil {
		t.Error("expected error registering duplicate operator")
	}
}

func TestRegistry_CustomOperator(t *testing.T) {
	reg := NewBuiltinRegistry()
	prefix := func(attr, target Value) bool {
		if attr.IsList || target.IsList || attr.IsNumber() || target.IsNumber() {
			return false
		}
		return len(attr.Str) >= len(target.Str) && attr.Str[:len(target.Str)] == target.Str
	}

	if err := reg.Register("prefix", "starts with", prefix); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	r := New("postcode", "prefix", StringValue("101"))
	if !reg.Evaluate(r, Attributes{"postcode": StringValue("10115")}) {
		t.Error("expected custom operator to match")
	}
	if got := reg.Label(r); got != `postcode starts with "101"` {
		t.Errorf("Label() = %q", got)
	}
	if Evaluate(r, Attributes{"postcode": StringValue("10115")}) {
		t.Error("default registry should not know the custom operator")
	}
}
