package ledger_http

import (
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"banking/internal/app/ledger"
	"banking/internal/domain"
	"banking/internal/handler/http/middleware"
)

// RegisterRoutes mounts the ledger endpoints. Every route requires an
// authenticated caller holding the user role.
func RegisterRoutes(r chi.Router, s ledger.Service, l *zap.Logger) {
	logger := l.With(zap.String("component", "LedgerHTTPHandler"))
	handler := NewLedgerHandler(s, logger)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireRole(domain.RoleUser, logger))

		r.Get("/user/balance", handler.BalanceHandler)
		r.Route("/payment", func(r chi.Router) {
			r.Post("/pay", handler.PayHandler)
			r.Get("/payments", handler.ListPaymentsHandler)
		})
		r.Route("/loan", func(r chi.Router) {
			r.Post("/take", handler.TakeLoanHandler)
			r.Get("/loans", handler.ListLoansHandler)
		})
	})
}
