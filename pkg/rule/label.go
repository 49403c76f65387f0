package rule

// Label renders a rule as "attribute symbol value", for example
// `orders_count >= 3`, `city = "Berlin"` or `orders in [3, 5, 7]`.
// The output is stable across locales.
func Label(r SegmentRule) string {
	return defaultRegistry.Label(r)
}

// Label renders a rule using this registry's operator symbols.
func (reg *Registry) Label(r SegmentRule) string {
	return r.Attribute + " " + reg.Symbol(r.Operator) + " " + r.Value.String()
}

// Labels renders every rule in order.
func Labels(rules []SegmentRule) []string {
	labels := make([]string, len(rules))
	for i, r := range rules {
		labels[i] = Label(r)
	}
	return labels
}
