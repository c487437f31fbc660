package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/campuscafe/ordering/internal/core/domain"
	"github.com/campuscafe/ordering/internal/core/service"
	"github.com/campuscafe/ordering/internal/port"
)

// IdempotencyStore dedupes webhook deliveries.
type IdempotencyStore interface {
	SetIdempotency(ctx context.Context, eventID string) (bool, error)
}

type HTTPHandler struct {
	orders *service.OrderService
	idem   IdempotencyStore
}

// NewHTTPHandler wires the order service. idem may be nil; webhook dedupe is
// skipped in that case.
func NewHTTPHandler(orders *service.OrderService, idem IdempotencyStore) *HTTPHandler {
	return &HTTPHandler{orders: orders, idem: idem}
}

type orderItemDTO struct {
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

type createOrderRequest struct {
	UserID          string                 `json:"user_id"`
	Items           []orderItemDTO         `json:"items"`
	TotalPrice      decimal.Decimal        `json:"total_price"`
	PaymentMethod   string                 `json:"payment_method"`
	CustomerDetails domain.CustomerDetails `json:"customer_details"`
	SpecialRequests bool                   `json:"special_requests"`
}

type orderResponse struct {
	ID            string                 `json:"id"`
	UserID        string                 `json:"user_id"`
	Items         []orderItemDTO         `json:"items"`
	TotalPrice    decimal.Decimal        `json:"total_price"`
	Status        string                 `json:"status"`
	EstimatedTime int                    `json:"estimated_time"`
	PaymentMethod string                 `json:"payment_method"`
	PaymentStatus string                 `json:"payment_status"`
	Customer      domain.CustomerDetails `json:"customer_details"`
	CreatedAt     time.Time              `json:"created_at"`
	UpdatedAt     time.Time              `json:"updated_at"`
	ClientSecret  string                 `json:"client_secret,omitempty"`
}

type statusResponse struct {
	Status        string `json:"status"`
	EstimatedTime int    `json:"estimated_time"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

func mapOrder(o *domain.Order) orderResponse {
	items := make([]orderItemDTO, 0, len(o.Items))
	for _, item := range o.Items {
		items = append(items, orderItemDTO{Name: item.Name, Quantity: item.Quantity, UnitPrice: item.UnitPrice})
	}
	return orderResponse{
		ID:            o.ID,
		UserID:        o.UserID,
		Items:         items,
		TotalPrice:    o.TotalPrice,
		Status:        string(o.Status),
		EstimatedTime: o.EstimatedTime,
		PaymentMethod: string(o.PaymentMethod),
		PaymentStatus: string(o.PaymentStatus),
		Customer:      o.Customer,
		CreatedAt:     o.CreatedAt,
		UpdatedAt:     o.UpdatedAt,
	}
}

func (h *HTTPHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}

	items := make([]domain.OrderLineItem, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, domain.OrderLineItem{
			Name:      item.Name,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		})
	}

	created, err := h.orders.CreateOrder(r.Context(), service.CreateOrderInput{
		UserID:          req.UserID,
		Items:           items,
		DeclaredTotal:   req.TotalPrice,
		PaymentMethod:   domain.PaymentMethod(req.PaymentMethod),
		Customer:        req.CustomerDetails,
		SpecialRequests: req.SpecialRequests,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	resp := mapOrder(created.Order)
	resp.ClientSecret = created.ClientSecret
	writeJSON(w, http.StatusCreated, resp)
}

func (h *HTTPHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	order, err := h.orders.GetOrder(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mapOrder(order))
}

func (h *HTTPHandler) GetOrderStatus(w http.ResponseWriter, r *http.Request) {
	status, eta, err := h.orders.GetOrderStatus(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{Status: string(status), EstimatedTime: eta})
}

func (h *HTTPHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.orders.ListOrders(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mapOrders(orders))
}

func (h *HTTPHandler) ListUserOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.orders.ListUserOrders(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mapOrders(orders))
}

type transitionRequest struct {
	Status string `json:"status"`
}

func (h *HTTPHandler) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	var req transitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}

	target := domain.OrderStatus(req.Status)
	if !domain.IsValidStatus(target) {
		writeError(w, http.StatusBadRequest, "unknown_status", req.Status)
		return
	}

	order, err := h.orders.Transition(r.Context(), chi.URLParam(r, "id"), target)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mapOrder(order))
}

func (h *HTTPHandler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	order, err := h.orders.Cancel(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mapOrder(order))
}

type locationPing struct {
	Lat              float64 `json:"lat"`
	Lng              float64 `json:"lng"`
	EstimatedArrival string  `json:"estimated_arrival,omitempty"`
}

func (h *HTTPHandler) RelayLocation(w http.ResponseWriter, r *http.Request) {
	var ping locationPing
	if err := json.NewDecoder(r.Body).Decode(&ping); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}

	err := h.orders.RelayLocation(r.Context(), chi.URLParam(r, "id"), map[string]any{
		"event":             "location_update",
		"lat":               ping.Lat,
		"lng":               ping.Lng,
		"estimated_arrival": ping.EstimatedArrival,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]bool{"received": true})
}

type webhookEvent struct {
	EventID  string `json:"event_id"`
	Type     string `json:"type"`
	IntentID string `json:"intent_id"`
}

// PaymentWebhook receives the gateway's asynchronous verdict. Deliveries are
// deduped on event ID; replays get a 200 so the gateway stops retrying.
func (h *HTTPHandler) PaymentWebhook(w http.ResponseWriter, r *http.Request) {
	var event webhookEvent
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}
	if event.IntentID == "" {
		writeError(w, http.StatusBadRequest, "intent_id_required", "")
		return
	}

	var succeeded bool
	switch event.Type {
	case "payment_intent.succeeded":
		succeeded = true
	case "payment_intent.payment_failed":
		succeeded = false
	default:
		// Unknown event types are acknowledged and ignored.
		writeJSON(w, http.StatusOK, map[string]bool{"received": true})
		return
	}

	if h.idem != nil && event.EventID != "" {
		fresh, err := h.idem.SetIdempotency(r.Context(), event.EventID)
		if err != nil {
			slog.WarnContext(r.Context(), "webhook dedupe unavailable", "error", err)
		} else if !fresh {
			writeJSON(w, http.StatusOK, map[string]bool{"received": true})
			return
		}
	}

	if err := h.orders.ConfirmPayment(r.Context(), event.IntentID, succeeded); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"received": true})
}

func (h *HTTPHandler) RevenueReport(w http.ResponseWriter, r *http.Request) {
	from, err := time.Parse("2006-01-02", r.URL.Query().Get("from"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_from", "expected YYYY-MM-DD")
		return
	}
	to, err := time.Parse("2006-01-02", r.URL.Query().Get("to"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_to", "expected YYYY-MM-DD")
		return
	}
	// Inclusive end of day.
	to = to.AddDate(0, 0, 1).Add(-time.Second)

	report, err := h.orders.RevenueReport(r.Context(), from, to)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (h *HTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func mapOrders(orders []domain.Order) []orderResponse {
	out := make([]orderResponse, 0, len(orders))
	for i := range orders {
		out = append(out, mapOrder(&orders[i]))
	}
	return out
}

func (h *HTTPHandler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *service.ValidationError
	var invalid *domain.InvalidTransitionError

	switch {
	case errors.As(err, &verr):
		writeError(w, http.StatusBadRequest, "validation_error", verr.Error())
	case errors.Is(err, service.ErrPriceMismatch):
		writeError(w, http.StatusBadRequest, "price_mismatch", err.Error())
	case errors.As(err, &invalid):
		writeError(w, http.StatusUnprocessableEntity, "invalid_transition", invalid.Error())
	case errors.Is(err, port.ErrConflict):
		writeError(w, http.StatusConflict, "conflict", "order changed concurrently, retry with fresh state")
	case errors.Is(err, port.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", "")
	case errors.Is(err, service.ErrPaymentGateway):
		writeError(w, http.StatusBadGateway, "payment_gateway_error", err.Error())
	default:
		slog.ErrorContext(r.Context(), "request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "")
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Error: code, Message: message})
}
