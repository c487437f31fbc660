package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// RevenueReport aggregates fulfilled orders (delivered or completed) over a
// date range.
type RevenueReport struct {
	From              time.Time
	To                time.Time
	TotalRevenue      decimal.Decimal
	TotalOrders       int
	AverageOrderValue decimal.Decimal
	ByPaymentMethod   map[PaymentMethod]PaymentMethodStat
	Daily             []DailyRevenue
}

type PaymentMethodStat struct {
	Count int
	Total decimal.Decimal
}

type DailyRevenue struct {
	Day        string // YYYY-MM-DD
	Revenue    decimal.Decimal
	OrderCount int
}
