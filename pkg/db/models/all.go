package models

// All lists every persisted model, in dependency order, for sqlite AutoMigrate.
func All() []any {
	return []any{
		&Product{},
		&Zone{},
		&Customer{},
		&Order{},
		&OrderItem{},
		&InventoryLog{},
		&LoyaltyLog{},
		&DeliveryAssignment{},
		&Subscription{},
		&SubscriptionItem{},
		&Setting{},
		&OutboxEvent{},
		&OutboxDLQ{},
	}
}
