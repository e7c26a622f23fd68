package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	custommiddleware "github.com/janabsyco4-wq/hotelogix-management-system-sub000/internal/middleware"
)

// SetupRouter настраивает HTTP-маршруты и middleware платформы бронирования.
func (h *Handler) SetupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(custommiddleware.GzipMiddleware)
	r.Use(custommiddleware.Logger(h.logger))

	r.Route("/api", func(r chi.Router) {
		r.Route("/user", func(r chi.Router) {
			r.Post("/register", h.Register)
			r.Post("/login", h.Login)
		})

		r.Route("/bookings", func(r chi.Router) {
			r.Use(h.authMiddleware.Middleware)

			r.Post("/", h.CreateBooking)
			r.Get("/", h.ListBookings)
			r.Get("/{id}", h.GetBooking)
			r.Get("/{id}/refund-quote", h.QuoteRefund)
			r.Post("/{id}/confirm", h.ConfirmBooking)
			r.Patch("/{id}/cancel", h.CancelBooking)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(h.authMiddleware.Middleware)
			r.Use(h.authMiddleware.RequireAdmin(h.service))

			r.Get("/bookings", h.AdminListBookings)
			r.Post("/bookings/{id}/refund", h.AdminRefund)
			r.Get("/refund-requests", h.AdminListRefundRequests)
			r.Get("/revenue", h.AdminRevenue)

			r.Route("/notifications", func(r chi.Router) {
				r.Get("/", h.AdminNotifications)
				r.Post("/{id}/read", h.AdminMarkNotificationRead)
				r.Post("/read-all", h.AdminMarkAllNotificationsRead)
				r.Delete("/{id}", h.AdminDeleteNotification)
			})
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
	})

	return r
}
