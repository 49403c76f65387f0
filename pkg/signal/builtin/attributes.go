package builtin

// Attribute names maintained by the built-in processors.
const (
	AttrOrdersCount  = "orders_count"
	AttrTotalSpend   = "total_spend"
	AttrLastOrderAt  = "last_order_at"
	AttrRegisteredAt = "registered_at"
	AttrLocationID   = "location_id"
)
