package models

// All lists every model for gorm AutoMigrate in dev and tests. Production
// schema is owned by the goose migrations.
func All() []any {
	return []any{
		&Product{},
		&Order{},
		&OrderLineItem{},
		&OrderStatusEvent{},
	}
}
