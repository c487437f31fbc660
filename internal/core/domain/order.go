package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPending        OrderStatus = "pending"
	OrderStatusProcessing     OrderStatus = "processing"
	OrderStatusOutForDelivery OrderStatus = "out_for_delivery"
	OrderStatusDelivered      OrderStatus = "delivered"
	OrderStatusCompleted      OrderStatus = "completed"
	OrderStatusCancelled      OrderStatus = "cancelled"
)

type PaymentMethod string

const (
	PaymentMethodCOD  PaymentMethod = "COD"
	PaymentMethodCard PaymentMethod = "CARD"
)

type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "pending"
	PaymentStatusPaid    PaymentStatus = "paid"
	PaymentStatusFailed  PaymentStatus = "failed"
)

// OrderLineItem is a snapshot of a menu entry at order time. UnitPrice is
// captured from the client request, not re-read from the catalog, so an
// order's total never moves when the menu changes later.
type OrderLineItem struct {
	Name      string
	Quantity  int
	UnitPrice decimal.Decimal
}

func (i OrderLineItem) Subtotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type CustomerDetails struct {
	Name     string   `json:"name"`
	Phone    string   `json:"phone"`
	Address  string   `json:"address"`
	Location GeoPoint `json:"location"`
	// ResolvedAddress is the reverse-geocoded form of Location, if the
	// client supplied one. Opaque to the core.
	ResolvedAddress string `json:"resolved_address,omitempty"`
}

type Order struct {
	ID              string
	UserID          string
	Items           []OrderLineItem
	TotalPrice      decimal.Decimal
	Status          OrderStatus
	EstimatedTime   int // minutes, frozen at creation
	PaymentMethod   PaymentMethod
	PaymentStatus   PaymentStatus
	PaymentIntentID string
	Customer        CustomerDetails
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// LineTotal sums the line-item subtotals. Used to validate the declared
// total at creation time; never used to rewrite TotalPrice afterwards.
func LineTotal(items []OrderLineItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.Subtotal())
	}
	return total
}
