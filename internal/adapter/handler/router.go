package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func NewRouter(h *HTTPHandler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/health", h.HealthCheck)

	r.Route("/orders", func(r chi.Router) {
		r.Post("/", h.CreateOrder)
		r.Get("/", h.ListOrders)
		r.Get("/{id}", h.GetOrder)
		r.Get("/{id}/status", h.GetOrderStatus)
		r.Put("/{id}/status", h.UpdateOrderStatus)
		r.Post("/{id}/cancel", h.CancelOrder)
		r.Post("/{id}/location", h.RelayLocation)
	})

	r.Get("/users/{userID}/orders", h.ListUserOrders)
	r.Get("/reports/revenue", h.RevenueReport)
	r.Post("/webhook/payments", h.PaymentWebhook)

	return r
}
