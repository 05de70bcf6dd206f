package models

// All lists the storefront models in dependency order, for AutoMigrate in
// sqlite mode and tests.
func All() []any {
	return []any{
		&User{},
		&Customer{},
		&Product{},
		&Order{},
		&OrderItem{},
	}
}
