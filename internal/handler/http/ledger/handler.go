package ledger_http

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"banking/internal/app/ledger"
	"banking/internal/domain"
	"banking/internal/handler/http/httputil"
	"banking/internal/handler/http/middleware"
	"banking/internal/money"
)

type LedgerHandler struct {
	service ledger.Service
	logger  *zap.Logger
}

func NewLedgerHandler(s ledger.Service, l *zap.Logger) *LedgerHandler {
	return &LedgerHandler{service: s, logger: l}
}

type PayRequest struct {
	ReceiverEmail string       `json:"receiver_email"`
	Amount        money.Amount `json:"amount"`
}

type TakeLoanRequest struct {
	Amount money.Amount `json:"amount"`
}

type PaymentResponse struct {
	ID            int64        `json:"id"`
	SenderEmail   string       `json:"sender_email"`
	ReceiverEmail string       `json:"receiver_email"`
	Amount        money.Amount `json:"amount"`
	CreatedAt     time.Time    `json:"created_at"`
}

type LoanResponse struct {
	ID              int64        `json:"id"`
	Amount          money.Amount `json:"amount"`
	RepaymentAmount money.Amount `json:"repayment_amount"`
	DueDate         time.Time    `json:"due_date"`
	Repaid          bool         `json:"repaid"`
	CreatedAt       time.Time    `json:"created_at"`
}

func (h *LedgerHandler) BalanceHandler(w http.ResponseWriter, r *http.Request) {
	id, _ := middleware.IdentityFrom(r.Context())

	balance, err := h.service.Balance(r.Context(), id.Email)
	if err != nil {
		httputil.WriteServiceError(w, h.logger, err)
		return
	}
	httputil.WriteJSON(w, h.logger, http.StatusOK, balance)
}

func (h *LedgerHandler) PayHandler(w http.ResponseWriter, r *http.Request) {
	id, _ := middleware.IdentityFrom(r.Context())

	var req PayRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		h.logger.Warn("Invalid pay request body", zap.String("email", id.Email), zap.Error(err))
		httputil.WriteError(w, h.logger, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := httputil.ValidateEmail(req.ReceiverEmail); err != nil {
		httputil.WriteError(w, h.logger, http.StatusBadRequest, "receiver_email: "+err.Error())
		return
	}
	if err := httputil.ValidatePositiveAmount(req.Amount); err != nil {
		httputil.WriteError(w, h.logger, http.StatusBadRequest, err.Error())
		return
	}

	payment, err := h.service.Transfer(r.Context(), id.Email, req.ReceiverEmail, req.Amount)
	if err != nil {
		httputil.WriteServiceError(w, h.logger, err)
		return
	}
	httputil.WriteJSON(w, h.logger, http.StatusOK, PaymentResponse{
		ID:            payment.ID,
		SenderEmail:   id.Email,
		ReceiverEmail: domain.NormalizeEmail(req.ReceiverEmail),
		Amount:        payment.Amount,
		CreatedAt:     payment.CreatedAt,
	})
}

func (h *LedgerHandler) ListPaymentsHandler(w http.ResponseWriter, r *http.Request) {
	id, _ := middleware.IdentityFrom(r.Context())

	pageReq, err := httputil.ParsePageRequest(r)
	if err != nil {
		httputil.WriteError(w, h.logger, http.StatusBadRequest, err.Error())
		return
	}

	page, err := h.service.ListPayments(r.Context(), id.Email, pageReq)
	if err != nil {
		httputil.WriteServiceError(w, h.logger, err)
		return
	}
	httputil.WriteJSON(w, h.logger, http.StatusOK, httputil.NewPageResponse(page, toPaymentResponse))
}

func (h *LedgerHandler) TakeLoanHandler(w http.ResponseWriter, r *http.Request) {
	id, _ := middleware.IdentityFrom(r.Context())

	var req TakeLoanRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		h.logger.Warn("Invalid loan request body", zap.String("email", id.Email), zap.Error(err))
		httputil.WriteError(w, h.logger, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := httputil.ValidatePositiveAmount(req.Amount); err != nil {
		httputil.WriteError(w, h.logger, http.StatusBadRequest, err.Error())
		return
	}

	loan, err := h.service.OriginateLoan(r.Context(), id.Email, req.Amount)
	if err != nil {
		httputil.WriteServiceError(w, h.logger, err)
		return
	}
	httputil.WriteJSON(w, h.logger, http.StatusOK, toLoanResponse(*loan))
}

func (h *LedgerHandler) ListLoansHandler(w http.ResponseWriter, r *http.Request) {
	id, _ := middleware.IdentityFrom(r.Context())

	pageReq, err := httputil.ParsePageRequest(r)
	if err != nil {
		httputil.WriteError(w, h.logger, http.StatusBadRequest, err.Error())
		return
	}

	page, err := h.service.ListLoans(r.Context(), id.Email, pageReq)
	if err != nil {
		httputil.WriteServiceError(w, h.logger, err)
		return
	}
	httputil.WriteJSON(w, h.logger, http.StatusOK, httputil.NewPageResponse(page, toLoanResponse))
}

func toPaymentResponse(p domain.PaymentView) PaymentResponse {
	return PaymentResponse{
		ID:            p.ID,
		SenderEmail:   p.SenderEmail,
		ReceiverEmail: p.ReceiverEmail,
		Amount:        p.Amount,
		CreatedAt:     p.CreatedAt,
	}
}

func toLoanResponse(l domain.Loan) LoanResponse {
	return LoanResponse{
		ID:              l.ID,
		Amount:          l.Principal,
		RepaymentAmount: l.RepaymentAmount,
		DueDate:         l.DueDate,
		Repaid:          l.Repaid,
		CreatedAt:       l.CreatedAt,
	}
}
