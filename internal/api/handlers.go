/**
 * @description
 * This file contains the HTTP handlers for the transfer-service's API
 * endpoints. Handlers are responsible for parsing incoming requests, calling
 * the appropriate methods on the application service, and writing the HTTP
 * response. They act as the bridge between the web layer and the business
 * logic layer.
 *
 * Every transfer failure kind maps to a stable, distinguishable status:
 * 400 invalid amount / insufficient balance / daily limit exceeded,
 * 403 fixed-deposit origin or wrong role, 404 account not found,
 * 429 rate limited, 503 storage unavailable.
 *
 * @dependencies
 * - encoding/json, log, net/http: Standard Go libraries.
 * - internal/app, internal/domain: For service logic and models.
 */

package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/sbkbank/transfer-service/internal/app"
	"github.com/sbkbank/transfer-service/internal/domain"
)

const (
	roleUser  = "user"
	roleAdmin = "admin"
)

// Handlers holds the application service and rate limiter that handlers use.
type Handlers struct {
	service            *app.Service
	limiter            *app.RedisTransferRateLimiter
	transfersPerMinute int
}

// NewHandlers creates a new instance of Handlers. limiter may be nil, which
// disables transfer rate limiting.
func NewHandlers(service *app.Service, limiter *app.RedisTransferRateLimiter, transfersPerMinute int) *Handlers {
	return &Handlers{service: service, limiter: limiter, transfersPerMinute: transfersPerMinute}
}

// transferResponse is sent back after a committed transfer. It exposes the
// appended ledger record's fields verbatim.
type transferResponse struct {
	Message       string    `json:"message"`
	TransactionID string    `json:"transaction_id"`
	FromAccount   string    `json:"from_account"`
	ToAccount     string    `json:"to_account"`
	Amount        int64     `json:"amount"`
	Timestamp     time.Time `json:"timestamp"`
}

// authedUser extracts the authenticated user id and enforces the role,
// writing the error response itself when the request does not qualify.
func (h *Handlers) authedUser(w http.ResponseWriter, r *http.Request, requiredRole string) (uuid.UUID, bool) {
	role, ok := GetRole(r.Context())
	if !ok || role != requiredRole {
		h.writeError(w, http.StatusForbidden, "Insufficient role")
		return uuid.Nil, false
	}
	idStr, ok := GetUserID(r.Context())
	if !ok {
		h.writeError(w, http.StatusInternalServerError, "Could not get user ID from context")
		return uuid.Nil, false
	}
	userID, err := uuid.Parse(idStr)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid user ID format")
		return uuid.Nil, false
	}
	return userID, true
}

// TransferHandler handles POST /transaction/transfer.
func (h *Handlers) TransferHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.authedUser(w, r, roleUser)
	if !ok {
		return
	}

	if h.limiter != nil && h.transfersPerMinute > 0 {
		count, retryAfter, err := h.limiter.Consume(r.Context(), userID.String(), time.Minute)
		if err != nil {
			// Fail open: a limiter outage must not block transfers.
			log.Printf("level=warn component=api endpoint=transfer msg=\"rate limiter unavailable\" err=%v", err)
		} else if count > h.transfersPerMinute {
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			h.writeError(w, http.StatusTooManyRequests, "Too many transfer attempts; slow down")
			return
		}
	}

	var req domain.TransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	tx, err := h.service.Transfer(r.Context(), userID, req.ToAccountNumber, req.Amount)
	if err != nil {
		log.Printf("level=warn component=api endpoint=transfer outcome=failed sender_user_id=%s to=%s amount=%d err=%v",
			userID, req.ToAccountNumber, req.Amount, err)
		h.writeTransferError(w, err)
		return
	}

	log.Printf("level=info component=api endpoint=transfer outcome=committed transaction_id=%s from=%s to=%s amount=%d",
		tx.ID, tx.FromAccount, tx.ToAccount, tx.Amount)
	h.writeJSON(w, http.StatusCreated, transferResponse{
		Message:       "Transfer successful",
		TransactionID: tx.ID.String(),
		FromAccount:   tx.FromAccount,
		ToAccount:     tx.ToAccount,
		Amount:        tx.Amount,
		Timestamp:     tx.Timestamp,
	})
}

func (h *Handlers) writeTransferError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, app.ErrInvalidAmount),
		errors.Is(err, app.ErrInsufficientBalance),
		errors.Is(err, app.ErrDailyLimitExceeded):
		h.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, app.ErrTransferNotAllowed):
		h.writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, app.ErrSenderAccountNotFound),
		errors.Is(err, app.ErrReceiverAccountNotFound):
		h.writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, app.ErrStorageUnavailable):
		h.writeError(w, http.StatusServiceUnavailable, "Storage temporarily unavailable; safe to retry")
	default:
		h.writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}

// OpenAccountHandler handles POST /account.
func (h *Handlers) OpenAccountHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.authedUser(w, r, roleUser)
	if !ok {
		return
	}

	var req domain.OpenAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	account, err := h.service.OpenAccount(r.Context(), userID, req.AccountType)
	if err != nil {
		if errors.Is(err, app.ErrInvalidAccountType) {
			h.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		log.Printf("level=error component=api endpoint=open_account user_id=%s err=%v", userID, err)
		h.writeError(w, http.StatusServiceUnavailable, "Could not create account")
		return
	}
	h.writeJSON(w, http.StatusCreated, account)
}

// HistoryHandler handles GET /transaction/history.
func (h *Handlers) HistoryHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.authedUser(w, r, roleUser)
	if !ok {
		return
	}

	entries, err := h.service.History(r.Context(), userID)
	if err != nil {
		if errors.Is(err, app.ErrSenderAccountNotFound) {
			h.writeError(w, http.StatusNotFound, "Account not found")
			return
		}
		log.Printf("level=error component=api endpoint=history user_id=%s err=%v", userID, err)
		h.writeError(w, http.StatusServiceUnavailable, "Could not load history")
		return
	}
	h.writeJSON(w, http.StatusOK, entries)
}

// AdminAccountHandler handles GET /admin/account/{accountNumber}.
func (h *Handlers) AdminAccountHandler(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.authedUser(w, r, roleAdmin); !ok {
		return
	}

	number := chi.URLParam(r, "accountNumber")
	if !domain.ValidAccountNumber(number) {
		h.writeError(w, http.StatusBadRequest, "Invalid account number format")
		return
	}

	view, err := h.service.InspectAccount(r.Context(), number)
	if err != nil {
		if errors.Is(err, app.ErrReceiverAccountNotFound) {
			h.writeError(w, http.StatusNotFound, "Account not found")
			return
		}
		log.Printf("level=error component=api endpoint=admin_account account=%s err=%v", number, err)
		h.writeError(w, http.StatusServiceUnavailable, "Could not load account")
		return
	}
	h.writeJSON(w, http.StatusOK, view)
}

// AdminDeactivateAccountHandler handles DELETE /admin/account/{accountNumber}.
func (h *Handlers) AdminDeactivateAccountHandler(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.authedUser(w, r, roleAdmin); !ok {
		return
	}

	number := chi.URLParam(r, "accountNumber")
	if !domain.ValidAccountNumber(number) {
		h.writeError(w, http.StatusBadRequest, "Invalid account number format")
		return
	}

	if err := h.service.DeactivateAccount(r.Context(), number); err != nil {
		if errors.Is(err, app.ErrReceiverAccountNotFound) {
			h.writeError(w, http.StatusNotFound, "Account not found")
			return
		}
		log.Printf("level=error component=api endpoint=admin_deactivate account=%s err=%v", number, err)
		h.writeError(w, http.StatusServiceUnavailable, "Could not deactivate account")
		return
	}

	log.Printf("level=info component=api endpoint=admin_deactivate account=%s outcome=deactivated", number)
	h.writeJSON(w, http.StatusOK, map[string]string{"message": "Account deactivated"})
}

// AdminUpdateLimitHandler handles PATCH /admin/account/limit.
func (h *Handlers) AdminUpdateLimitHandler(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.authedUser(w, r, roleAdmin); !ok {
		return
	}

	var req domain.UpdateLimitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if !domain.ValidAccountNumber(req.AccountNumber) {
		h.writeError(w, http.StatusBadRequest, "Invalid account number format")
		return
	}

	account, err := h.service.UpdateDailyLimit(r.Context(), req.AccountNumber, req.DailyLimit)
	if err != nil {
		switch {
		case errors.Is(err, app.ErrInvalidDailyLimit):
			h.writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, app.ErrReceiverAccountNotFound):
			h.writeError(w, http.StatusNotFound, "Account not found")
		default:
			log.Printf("level=error component=api endpoint=admin_update_limit account=%s err=%v", req.AccountNumber, err)
			h.writeError(w, http.StatusServiceUnavailable, "Could not update daily limit")
		}
		return
	}

	log.Printf("level=info component=api endpoint=admin_update_limit account=%s daily_limit=%d", account.AccountNumber, account.DailyLimit)
	h.writeJSON(w, http.StatusOK, account)
}

func (h *Handlers) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("level=error component=api msg=\"response encode failed\" err=%v", err)
	}
}

func (h *Handlers) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
