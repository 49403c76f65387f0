package rule

var builtinOperators = []struct {
	op     Operator
	symbol string
	cmp    Comparator
}{
	{OpEq, "=", compareEq},
	{OpNe, "!=", compareNe},
	{OpGt, ">", ordered(func(a, b float64) bool { return a > b })},
	{OpGte, ">=", ordered(func(a, b float64) bool { return a >= b })},
	{OpLt, "<", ordered(func(a, b float64) bool { return a < b })},
	{OpLte, "<=", ordered(func(a, b float64) bool { return a <= b })},
	{OpIn, "in", compareIn},
}

func compareEq(attr, target Value) bool {
	if attr.IsList || target.IsList {
		return false
	}
	return attr.Scalar.Equal(target.Scalar)
}

// compareNe only matches two scalars of the same kind that differ.
func compareNe(attr, target Value) bool {
	if attr.IsList || target.IsList {
		return false
	}
	if attr.Kind != target.Kind {
		return false
	}
	return !attr.Scalar.Equal(target.Scalar)
}

func ordered(cmp func(a, b float64) bool) Comparator {
	return func(attr, target Value) bool {
		if attr.IsList || target.IsList {
			return false
		}
		if !attr.IsNumber() || !target.IsNumber() {
			return false
		}
		return cmp(attr.Num, target.Num)
	}
}

// compareIn matches a scalar attribute that is a member of the list, or a list
// attribute sharing at least one element with it.
func compareIn(attr, target Value) bool {
	if !target.IsList {
		return false
	}
	if !attr.IsList {
		return contains(target.Items, attr.Scalar)
	}
	for _, item := range attr.Items {
		if contains(target.Items, item) {
			return true
		}
	}
	return false
}

func contains(items []Scalar, s Scalar) bool {
	for _, item := range items {
		if item.Equal(s) {
			return true
		}
	}
	return false
}
