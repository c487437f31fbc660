package port

import (
	"context"
	"errors"
	"time"

	"github.com/campuscafe/ordering/internal/core/domain"
)

var (
	// ErrNotFound is returned when a referenced order does not exist.
	ErrNotFound = errors.New("order not found")

	// ErrConflict is returned when a conditional status write loses a race
	// with a concurrent update. Callers may retry with fresh state.
	ErrConflict = errors.New("order status conflict")
)

type OrderRepository interface {
	// InsertOrder persists a new order with its line items atomically.
	InsertOrder(ctx context.Context, order domain.Order) error

	// FindOrder retrieves an order by ID, ErrNotFound if absent.
	FindOrder(ctx context.Context, id string) (*domain.Order, error)

	// FindOrders returns all orders, newest first.
	FindOrders(ctx context.Context) ([]domain.Order, error)

	// FindOrdersByUser returns a user's orders, newest first.
	FindOrdersByUser(ctx context.Context, userID string) ([]domain.Order, error)

	// FindOpenOrders returns every order not in a terminal state.
	FindOpenOrders(ctx context.Context) ([]domain.Order, error)

	// FindOrderByPaymentIntent resolves the order holding a gateway handle.
	FindOrderByPaymentIntent(ctx context.Context, intentID string) (*domain.Order, error)

	// UpdateOrderStatus applies a compare-and-swap status write: the update
	// only lands if the stored status still equals expected. Returns
	// ErrConflict when the stored status moved, ErrNotFound when the order
	// is gone.
	UpdateOrderStatus(ctx context.Context, id string, expected, next domain.OrderStatus) (*domain.Order, error)

	// UpdatePaymentStatus sets the payment axis independently of status.
	UpdatePaymentStatus(ctx context.Context, id string, ps domain.PaymentStatus) error

	// DeleteOrder removes an order outright (abandoned card payments).
	DeleteOrder(ctx context.Context, id string) error

	// RevenueBetween aggregates fulfilled orders over [from, to].
	RevenueBetween(ctx context.Context, from, to time.Time) (*domain.RevenueReport, error)
}
