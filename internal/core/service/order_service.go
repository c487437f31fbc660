package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/campuscafe/ordering/internal/core/domain"
	"github.com/campuscafe/ordering/internal/port"
)

var (
	// ErrPriceMismatch flags a declared total that disagrees with the sum
	// of the submitted line items.
	ErrPriceMismatch = errors.New("declared total does not match line items")

	// ErrPaymentGateway wraps failures from the payment collaborator.
	ErrPaymentGateway = errors.New("payment gateway error")
)

// ValidationError reports a missing or malformed field on order creation.
type ValidationError struct {
	Field string
}

func (e *ValidationError) Error() string {
	return "missing or invalid field: " + e.Field
}

type Config struct {
	// AvailableLabor feeds the estimator; 0.8 matches the fixed staffing
	// assumption of the production kitchen.
	AvailableLabor float64

	// Currency for payment intents.
	Currency string

	// Peak window on the 24h clock, [start, end). Equal values disable it.
	PeakStartHour int
	PeakEndHour   int

	Estimator EstimatorConfig
}

func (c Config) withDefaults() Config {
	if c.AvailableLabor == 0 {
		c.AvailableLabor = 0.8
	}
	if c.Currency == "" {
		c.Currency = "pkr"
	}
	return c
}

// OrderService owns the order mutation path: creation, lifecycle transitions
// and payment confirmation all go through here.
type OrderService struct {
	repo    port.OrderRepository
	loads   *LoadEstimator
	calc    *PrepTimeCalculator
	gateway port.PaymentGateway
	relay   port.RealtimeRelay
	cfg     Config
	now     func() time.Time
}

func NewOrderService(
	repo port.OrderRepository,
	loads *LoadEstimator,
	calc *PrepTimeCalculator,
	gateway port.PaymentGateway,
	relay port.RealtimeRelay,
	cfg Config,
) *OrderService {
	return &OrderService{
		repo:    repo,
		loads:   loads,
		calc:    calc,
		gateway: gateway,
		relay:   relay,
		cfg:     cfg.withDefaults(),
		now:     time.Now,
	}
}

type CreateOrderInput struct {
	UserID          string
	Items           []domain.OrderLineItem
	DeclaredTotal   decimal.Decimal
	PaymentMethod   domain.PaymentMethod
	Customer        domain.CustomerDetails
	SpecialRequests bool
}

// CreatedOrder pairs the persisted order with the gateway client secret a
// card client needs to finish the charge. ClientSecret is empty for COD.
type CreatedOrder struct {
	Order        *domain.Order
	ClientSecret string
}

func validateCreate(in CreateOrderInput) error {
	if in.UserID == "" {
		return &ValidationError{Field: "userId"}
	}
	if len(in.Items) == 0 {
		return &ValidationError{Field: "items"}
	}
	for _, item := range in.Items {
		if item.Name == "" {
			return &ValidationError{Field: "items.name"}
		}
		if item.Quantity < 1 {
			return &ValidationError{Field: "items.quantity"}
		}
		if !item.UnitPrice.IsPositive() {
			return &ValidationError{Field: "items.unitPrice"}
		}
	}
	if !in.DeclaredTotal.IsPositive() {
		return &ValidationError{Field: "totalPrice"}
	}
	if in.PaymentMethod != domain.PaymentMethodCOD && in.PaymentMethod != domain.PaymentMethodCard {
		return &ValidationError{Field: "paymentMethod"}
	}
	if in.Customer.Name == "" || in.Customer.Phone == "" || in.Customer.Address == "" {
		return &ValidationError{Field: "customerDetails"}
	}
	return nil
}

// CreateOrder validates the request, prices the preparation ETA against the
// current backlog, and persists the order as pending. Card orders acquire a
// payment intent first, so a gateway failure leaves nothing behind.
func (s *OrderService) CreateOrder(ctx context.Context, in CreateOrderInput) (*CreatedOrder, error) {
	if err := validateCreate(in); err != nil {
		return nil, err
	}
	if !domain.LineTotal(in.Items).Equal(in.DeclaredTotal) {
		return nil, ErrPriceMismatch
	}

	similar := s.loads.CountSimilarQueued(ctx, in.Items)
	eta, err := s.calc.Estimate(ctx, in.Items, EstimateInput{
		AvailableLabor:  s.cfg.AvailableLabor,
		SimilarQueued:   similar,
		PeakHours:       s.peakNow(),
		SpecialRequests: in.SpecialRequests,
	})
	if err != nil {
		return nil, fmt.Errorf("estimate preparation time: %w", err)
	}

	now := s.now()
	order := domain.Order{
		ID:            uuid.NewString(),
		UserID:        in.UserID,
		Items:         in.Items,
		TotalPrice:    in.DeclaredTotal,
		Status:        domain.OrderStatusPending,
		EstimatedTime: eta,
		PaymentMethod: in.PaymentMethod,
		PaymentStatus: domain.PaymentStatusPending,
		Customer:      in.Customer,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	clientSecret := ""
	if in.PaymentMethod == domain.PaymentMethodCard {
		intent, err := s.gateway.CreateIntent(ctx, in.DeclaredTotal, s.cfg.Currency)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrPaymentGateway, err)
		}
		order.PaymentIntentID = intent.ID
		clientSecret = intent.ClientSecret
	}

	if err := s.repo.InsertOrder(ctx, order); err != nil {
		return nil, fmt.Errorf("insert order: %w", err)
	}

	s.publish(ctx, order.ID, map[string]any{
		"event":          "order_created",
		"status":         order.Status,
		"estimated_time": order.EstimatedTime,
	})

	return &CreatedOrder{Order: &order, ClientSecret: clientSecret}, nil
}

func (s *OrderService) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	return s.repo.FindOrder(ctx, id)
}

// GetOrderStatus returns the current status and the frozen creation-time ETA.
func (s *OrderService) GetOrderStatus(ctx context.Context, id string) (domain.OrderStatus, int, error) {
	order, err := s.repo.FindOrder(ctx, id)
	if err != nil {
		return "", 0, err
	}
	return order.Status, order.EstimatedTime, nil
}

func (s *OrderService) ListOrders(ctx context.Context) ([]domain.Order, error) {
	return s.repo.FindOrders(ctx)
}

func (s *OrderService) ListUserOrders(ctx context.Context, userID string) ([]domain.Order, error) {
	return s.repo.FindOrdersByUser(ctx, userID)
}

// Transition moves an order along the lifecycle graph. The write is
// conditioned on the status observed here, so a concurrent transition on the
// same order surfaces as port.ErrConflict instead of silently overwriting.
func (s *OrderService) Transition(ctx context.Context, id string, target domain.OrderStatus) (*domain.Order, error) {
	order, err := s.repo.FindOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := domain.CanTransition(order.Status, target); err != nil {
		return nil, err
	}

	updated, err := s.repo.UpdateOrderStatus(ctx, id, order.Status, target)
	if err != nil {
		return nil, err
	}

	s.publish(ctx, id, map[string]any{
		"event":  "status_changed",
		"status": updated.Status,
	})
	return updated, nil
}

// Cancel is a thin wrapper over Transition; the lifecycle graph only admits
// cancellation from pending.
func (s *OrderService) Cancel(ctx context.Context, id string) (*domain.Order, error) {
	return s.Transition(ctx, id, domain.OrderStatusCancelled)
}

// ConfirmPayment applies the gateway's asynchronous verdict for a card order.
// Success marks the order paid and dispatches it into processing; failure
// deletes the provisional order outright.
func (s *OrderService) ConfirmPayment(ctx context.Context, intentID string, succeeded bool) error {
	order, err := s.repo.FindOrderByPaymentIntent(ctx, intentID)
	if err != nil {
		return err
	}

	if !succeeded {
		if err := s.repo.DeleteOrder(ctx, order.ID); err != nil {
			return fmt.Errorf("delete provisional order %s: %w", order.ID, err)
		}
		s.publish(ctx, order.ID, map[string]any{"event": "payment_failed"})
		return nil
	}

	if err := s.repo.UpdatePaymentStatus(ctx, order.ID, domain.PaymentStatusPaid); err != nil {
		return fmt.Errorf("mark order %s paid: %w", order.ID, err)
	}

	updated, err := s.repo.UpdateOrderStatus(ctx, order.ID, domain.OrderStatusPending, domain.OrderStatusProcessing)
	if err != nil {
		// The order may already have been dispatched or cancelled by the
		// time the webhook lands; the payment mark above still stands.
		if errors.Is(err, port.ErrConflict) {
			slog.WarnContext(ctx, "order moved before payment confirmation landed", "order_id", order.ID)
			return nil
		}
		return err
	}

	s.publish(ctx, order.ID, map[string]any{
		"event":  "payment_confirmed",
		"status": updated.Status,
	})
	return nil
}

// RelayLocation forwards a delivery location ping to the order's realtime
// channel. The order must exist; the publish itself stays best-effort.
func (s *OrderService) RelayLocation(ctx context.Context, orderID string, payload any) error {
	if _, err := s.repo.FindOrder(ctx, orderID); err != nil {
		return err
	}
	s.publish(ctx, orderID, payload)
	return nil
}

func (s *OrderService) RevenueReport(ctx context.Context, from, to time.Time) (*domain.RevenueReport, error) {
	if to.Before(from) {
		return nil, &ValidationError{Field: "dateRange"}
	}
	return s.repo.RevenueBetween(ctx, from, to)
}

func (s *OrderService) peakNow() bool {
	if s.cfg.PeakStartHour == s.cfg.PeakEndHour {
		return false
	}
	h := s.now().Hour()
	if s.cfg.PeakStartHour < s.cfg.PeakEndHour {
		return h >= s.cfg.PeakStartHour && h < s.cfg.PeakEndHour
	}
	// window wraps midnight
	return h >= s.cfg.PeakStartHour || h < s.cfg.PeakEndHour
}

func (s *OrderService) publish(ctx context.Context, orderID string, payload any) {
	if s.relay == nil {
		return
	}
	if err := s.relay.Publish(ctx, orderID, payload); err != nil {
		slog.WarnContext(ctx, "realtime publish failed", "order_id", orderID, "error", err)
	}
}
