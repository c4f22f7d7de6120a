package rest

import (
	"database/sql"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	chiMiddleware "github.com/go-chi/chi/middleware"

	"github.com/frahmantamala/account-rental/api"
	"github.com/frahmantamala/account-rental/internal/auth"
	"github.com/frahmantamala/account-rental/internal/booking"
	"github.com/frahmantamala/account-rental/internal/catalog"
	gw "github.com/frahmantamala/account-rental/internal/core/datamodel/paymentgateway"
	"github.com/frahmantamala/account-rental/internal/payment"
	"github.com/frahmantamala/account-rental/internal/transport/middleware"
	"github.com/frahmantamala/account-rental/internal/transport/swagger"
)

// Handlers groups everything the router mounts. Nil handlers leave their routes out.
type Handlers struct {
	Auth    *auth.Handler
	Booking *booking.Handler
	Catalog *catalog.Handler
	Payment *payment.Handler
	VA      *payment.VAHandler
	Webhook *payment.WebhookHandler
}

func RegisterAllRoutes(router *chi.Mux, db *sql.DB, h Handlers, logger *slog.Logger) {
	healthHandler := NewHealthHandler(db)

	router.Use(chiMiddleware.RequestID)
	router.Use(middleware.RequestID)
	router.Use(middleware.RecoveryMiddleware(logger))
	router.Use(middleware.LoggingMiddleware(logger))

	router.Get("/openapi.yml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/yaml")
		_, _ = w.Write(api.Document)
	})
	router.Handle("/swagger/*", swagger.Handler())

	// provider callbacks authenticate by signature, never by bearer token
	if h.Webhook != nil {
		router.Post(h.Webhook.NotifyPath, h.Webhook.Notify)
		router.Post(gw.PathLegacyNotify, h.Webhook.LegacyNotify)
	}
	if h.VA != nil {
		router.Post(h.VA.InquiryPath, h.VA.Inquiry)
		router.Post(h.VA.PaymentPath, h.VA.Payment)
	}

	router.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", healthHandler.healthCheckHandler)
		r.Get("/ping", healthHandler.pingHandler)

		if h.Catalog != nil {
			r.Get("/resources", h.Catalog.ListResources)
			r.Get("/resources/{id}", h.Catalog.GetResource)
		}

		if h.Auth == nil {
			return
		}

		if h.Booking != nil {
			r.Route("/cron", func(cr chi.Router) {
				cr.Use(h.Auth.CronMiddleware)
				cr.Post("/expire-holds", h.Booking.ExpireHolds)
				cr.Post("/complete-reservations", h.Booking.CompleteReservations)
			})
		}

		r.Group(func(pr chi.Router) {
			pr.Use(h.Auth.AuthMiddleware)

			if h.Booking != nil {
				pr.Route("/bookings", func(br chi.Router) {
					br.Post("/", h.Booking.CreateBooking)
					br.Get("/", h.Booking.ListBookings)
					br.Get("/{id}", h.Booking.GetBooking)
					br.Post("/{id}/cancel", h.Booking.CancelBooking)

					if h.Payment != nil {
						br.Post("/{id}/payments", h.Payment.InitiatePayment)
						br.Get("/{id}/payments", h.Payment.ListPayments)
					}
				})
			}

			if h.Payment != nil {
				pr.Get("/payments/{id}", h.Payment.GetPayment)
				pr.Post("/payments/{id}/verify", h.Payment.VerifyPayment)
			}
		})
	})
}
