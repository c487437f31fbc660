package domain

import "github.com/shopspring/decimal"

// MenuEntry is read-only to the ordering core. Name is the catalog key.
type MenuEntry struct {
	Name        string
	UnitPrice   decimal.Decimal
	PrepMinutes float64
	Available   bool
}
