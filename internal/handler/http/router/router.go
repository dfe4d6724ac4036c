package router

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"banking/internal/app/auth"
	"banking/internal/app/ledger"
	auth_http "banking/internal/handler/http/auth"
	"banking/internal/handler/http/httputil"
	ledger_http "banking/internal/handler/http/ledger"
	authmw "banking/internal/handler/http/middleware"
)

const healthCheckTimeout = 2 * time.Second

type Options struct {
	CORSOrigins    []string
	RequestTimeout time.Duration
}

// NewRouter assembles the public HTTP surface of the service.
func NewRouter(
	db *sql.DB,
	authService auth.Service,
	ledgerService ledger.Service,
	verifier authmw.TokenVerifier,
	opts Options,
	logger *zap.Logger,
) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	if opts.RequestTimeout > 0 {
		r.Use(middleware.Timeout(opts.RequestTimeout))
	}
	if len(opts.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   opts.CORSOrigins,
			AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}
	r.Use(authmw.Authenticator(verifier, authService, logger.With(zap.String("component", "Authenticator"))))

	r.Get("/health", healthHandler(db, logger))

	auth_http.RegisterRoutes(r, authService, logger)
	ledger_http.RegisterRoutes(r, ledgerService, logger)

	return r
}

func healthHandler(db *sql.DB, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		defer cancel()

		if err := db.PingContext(ctx); err != nil {
			logger.Warn("Health check failed", zap.Error(err))
			httputil.WriteJSON(w, logger, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
		httputil.WriteJSON(w, logger, http.StatusOK, map[string]string{"status": "ok"})
	}
}
