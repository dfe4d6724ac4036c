package auth_http

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"banking/internal/app/auth"
	"banking/internal/domain"
	"banking/internal/handler/http/httputil"
)

type AuthHandler struct {
	service auth.Service
	logger  *zap.Logger
}

func NewAuthHandler(s auth.Service, l *zap.Logger) *AuthHandler {
	return &AuthHandler{service: s, logger: l}
}

type CredentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type RefreshRequest struct {
	Email        string `json:"email"`
	RefreshToken string `json:"refresh_token"`
}

type TokenPairResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	Email        string `json:"email"`
}

// validateRegistration applies the full password policy to new accounts.
func (req CredentialsRequest) validateRegistration() error {
	return errors.Join(httputil.ValidateEmail(req.Email), httputil.ValidatePassword(req.Password))
}

// validateLogin checks shape only. The password policy applies at
// registration; a wrong password is for the service to reject.
func (req CredentialsRequest) validateLogin() error {
	var errs []error
	if err := httputil.ValidateEmail(req.Email); err != nil {
		errs = append(errs, err)
	}
	if req.Password == "" {
		errs = append(errs, errors.New("password is required"))
	}
	return errors.Join(errs...)
}

func (h *AuthHandler) RegisterHandler(w http.ResponseWriter, r *http.Request) {
	var req CredentialsRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		h.logger.Warn("Invalid register request body", zap.Error(err))
		httputil.WriteError(w, h.logger, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := req.validateRegistration(); err != nil {
		httputil.WriteError(w, h.logger, http.StatusBadRequest, err.Error())
		return
	}

	if _, err := h.service.Register(r.Context(), req.Email, req.Password); err != nil {
		httputil.WriteServiceError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h *AuthHandler) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req CredentialsRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		h.logger.Warn("Invalid login request body", zap.Error(err))
		httputil.WriteError(w, h.logger, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := req.validateLogin(); err != nil {
		httputil.WriteError(w, h.logger, http.StatusBadRequest, err.Error())
		return
	}

	pair, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		httputil.WriteServiceError(w, h.logger, err)
		return
	}
	httputil.WriteJSON(w, h.logger, http.StatusOK, toTokenPairResponse(pair))
}

func (h *AuthHandler) RefreshHandler(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		h.logger.Warn("Invalid refresh request body", zap.Error(err))
		httputil.WriteError(w, h.logger, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := httputil.ValidateEmail(req.Email); err != nil {
		httputil.WriteError(w, h.logger, http.StatusBadRequest, err.Error())
		return
	}
	if req.RefreshToken == "" {
		httputil.WriteError(w, h.logger, http.StatusBadRequest, "refresh_token is required")
		return
	}

	pair, err := h.service.Refresh(r.Context(), req.Email, req.RefreshToken)
	if err != nil {
		if errors.Is(err, domain.ErrTokenInvalid) {
			h.logger.Info("Refresh token rejected", zap.String("email", req.Email))
		}
		httputil.WriteServiceError(w, h.logger, err)
		return
	}
	httputil.WriteJSON(w, h.logger, http.StatusOK, toTokenPairResponse(pair))
}

func toTokenPairResponse(pair *domain.TokenPair) TokenPairResponse {
	return TokenPairResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		Email:        pair.Email,
	}
}
