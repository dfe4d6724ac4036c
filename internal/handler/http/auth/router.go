package auth_http

import (
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"banking/internal/app/auth"
)

func RegisterRoutes(r chi.Router, s auth.Service, l *zap.Logger) {
	handler := NewAuthHandler(s, l.With(zap.String("component", "AuthHTTPHandler")))

	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", handler.RegisterHandler)
		r.Post("/login", handler.LoginHandler)
		r.Post("/refresh-token", handler.RefreshHandler)
	})
}
