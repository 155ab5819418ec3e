/**
 * @description
 * This file contains the HTTP handlers for the banking-service's API endpoints.
 * Handlers are responsible for parsing incoming requests, calling the
 * appropriate methods on the application service, and writing the HTTP
 * response. They act as the bridge between the web layer and the business
 * logic layer.
 *
 * @dependencies
 * - encoding/json, log, net/http: Standard Go libraries.
 * - github.com/go-chi/chi/v5, github.com/google/uuid.
 * - internal/app, internal/domain, internal/store: For service logic, models, and custom errors.
 *
 * @notes
 * - A transfer that fails a business rule is still a successful HTTP exchange:
 *   the handler returns 200 with a failed transaction record. Only malformed
 *   input and infrastructure faults map to HTTP error codes.
 */

package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/transfa/banking-service/internal/app"
	"github.com/transfa/banking-service/internal/domain"
	"github.com/transfa/banking-service/internal/store"
	"github.com/transfa/banking-service/internal/validation"
)

// TransferRateLimiter is the slice of the app-layer limiter the API needs.
// The limiter carries its own budget and window configuration.
type TransferRateLimiter interface {
	Allow(ctx context.Context, scope, subject string) (allowed bool, retryAfterSeconds int, err error)
}

// BankingHandlers holds the application service that handlers will use.
type BankingHandlers struct {
	service *app.Service

	rateLimiter TransferRateLimiter
}

// NewBankingHandlers creates a new instance of BankingHandlers.
func NewBankingHandlers(service *app.Service) *BankingHandlers {
	return &BankingHandlers{service: service}
}

// SetTransferRateLimiter enables fixed-window limiting of transfer submissions
// per source account. A nil limiter disables it.
func (h *BankingHandlers) SetTransferRateLimiter(limiter TransferRateLimiter) {
	h.rateLimiter = limiter
}

// transactionResponse is the JSON shape returned for any money movement.
// Amounts are serialized as decimal strings so no client is tempted to round.
type transactionResponse struct {
	TransactionID string     `json:"transaction_id"`
	Type          string     `json:"type"`
	Status        string     `json:"status"`
	FromAccountID *uuid.UUID `json:"from_account_id,omitempty"`
	ToAccountID   *uuid.UUID `json:"to_account_id,omitempty"`
	Amount        string     `json:"amount"`
	Description   string     `json:"description,omitempty"`
	FailureReason *string    `json:"failure_reason,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

func buildTransactionResponse(tx *domain.Transaction) transactionResponse {
	return transactionResponse{
		TransactionID: tx.ID.String(),
		Type:          string(tx.Type),
		Status:        string(tx.Status),
		FromAccountID: tx.FromAccountID,
		ToAccountID:   tx.ToAccountID,
		Amount:        tx.Amount.String(),
		Description:   tx.Description,
		FailureReason: tx.FailureReason,
		CreatedAt:     tx.CreatedAt,
	}
}

type accountResponse struct {
	AccountID string    `json:"account_id"`
	OwnerName string    `json:"owner_name"`
	Balance   string    `json:"balance"`
	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"created_at"`
}

func buildAccountResponse(account *domain.Account) accountResponse {
	return accountResponse{
		AccountID: account.ID.String(),
		OwnerName: account.OwnerName,
		Balance:   account.Balance.String(),
		Version:   account.Version,
		CreatedAt: account.CreatedAt,
	}
}

// CreateAccountHandler handles requests to open a new account.
func (h *BankingHandlers) CreateAccountHandler(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("level=warn component=api endpoint=create_account outcome=reject reason=invalid_json err=%v", err)
		h.writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid request body: %v", err))
		return
	}

	account, err := h.service.CreateAccount(r.Context(), req)
	if err != nil {
		if reason, ok := validation.IsFailure(err); ok {
			h.writeError(w, http.StatusUnprocessableEntity, reason)
			return
		}
		if errors.Is(err, store.ErrAccountExists) {
			h.writeError(w, http.StatusConflict, "Account already exists")
			return
		}
		log.Printf("level=error component=api endpoint=create_account msg=\"account creation failed\" err=%v", err)
		h.writeError(w, http.StatusInternalServerError, "Unable to create account")
		return
	}

	h.writeJSON(w, http.StatusCreated, buildAccountResponse(account))
}

// GetAccountHandler returns the current state of one account.
func (h *BankingHandlers) GetAccountHandler(w http.ResponseWriter, r *http.Request) {
	accountID, ok := h.parseAccountID(w, r)
	if !ok {
		return
	}

	account, err := h.service.GetAccount(r.Context(), accountID)
	if err != nil {
		h.writeAccountLookupError(w, "get_account", accountID, err)
		return
	}
	h.writeJSON(w, http.StatusOK, buildAccountResponse(account))
}

// GetBalanceHandler returns just the balance of one account.
func (h *BankingHandlers) GetBalanceHandler(w http.ResponseWriter, r *http.Request) {
	accountID, ok := h.parseAccountID(w, r)
	if !ok {
		return
	}

	balance, err := h.service.GetBalance(r.Context(), accountID)
	if err != nil {
		h.writeAccountLookupError(w, "get_balance", accountID, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{
		"account_id": accountID.String(),
		"balance":    balance.String(),
	})
}

// TransferHandler handles requests to move funds between two accounts.
func (h *BankingHandlers) TransferHandler(w http.ResponseWriter, r *http.Request) {
	var req domain.TransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("level=warn component=api endpoint=transfer outcome=reject reason=invalid_json err=%v", err)
		h.writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid request body: %v", err))
		return
	}

	if !h.allowTransfer(w, r, req.FromAccountID) {
		return
	}

	tx, err := h.service.Transfer(r.Context(), req)
	if err != nil {
		log.Printf("level=error component=api endpoint=transfer msg=\"transfer failed\" from=%s to=%s err=%v",
			req.FromAccountID, req.ToAccountID, err)
		h.writeError(w, http.StatusInternalServerError, "Unable to process transfer")
		return
	}

	h.writeJSON(w, http.StatusOK, buildTransactionResponse(tx))
}

// DepositHandler handles requests to credit an account from outside.
func (h *BankingHandlers) DepositHandler(w http.ResponseWriter, r *http.Request) {
	accountID, ok := h.parseAccountID(w, r)
	if !ok {
		return
	}
	var req domain.AmountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid request body: %v", err))
		return
	}

	tx, err := h.service.Deposit(r.Context(), accountID, req)
	if err != nil {
		log.Printf("level=error component=api endpoint=deposit msg=\"deposit failed\" account_id=%s err=%v", accountID, err)
		h.writeError(w, http.StatusInternalServerError, "Unable to process deposit")
		return
	}
	h.writeJSON(w, http.StatusOK, buildTransactionResponse(tx))
}

// WithdrawHandler handles requests to debit an account towards the outside.
func (h *BankingHandlers) WithdrawHandler(w http.ResponseWriter, r *http.Request) {
	accountID, ok := h.parseAccountID(w, r)
	if !ok {
		return
	}
	var req domain.AmountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid request body: %v", err))
		return
	}

	tx, err := h.service.Withdraw(r.Context(), accountID, req)
	if err != nil {
		log.Printf("level=error component=api endpoint=withdraw msg=\"withdrawal failed\" account_id=%s err=%v", accountID, err)
		h.writeError(w, http.StatusInternalServerError, "Unable to process withdrawal")
		return
	}
	h.writeJSON(w, http.StatusOK, buildTransactionResponse(tx))
}

// GetTransactionHandler returns one transaction record by id.
func (h *BankingHandlers) GetTransactionHandler(w http.ResponseWriter, r *http.Request) {
	rawID := chi.URLParam(r, "transactionID")
	transactionID, err := uuid.Parse(rawID)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid transaction id")
		return
	}

	tx, err := h.service.GetTransaction(r.Context(), transactionID)
	if err != nil {
		if errors.Is(err, store.ErrTransactionNotFound) {
			h.writeError(w, http.StatusNotFound, "Transaction not found")
			return
		}
		log.Printf("level=error component=api endpoint=get_transaction msg=\"lookup failed\" transaction_id=%s err=%v", transactionID, err)
		h.writeError(w, http.StatusInternalServerError, "Unable to load transaction")
		return
	}
	h.writeJSON(w, http.StatusOK, buildTransactionResponse(tx))
}

// ListAccountTransactionsHandler returns the audit trail touching one account.
func (h *BankingHandlers) ListAccountTransactionsHandler(w http.ResponseWriter, r *http.Request) {
	accountID, ok := h.parseAccountID(w, r)
	if !ok {
		return
	}

	transactions, err := h.service.ListAccountTransactions(r.Context(), accountID)
	if err != nil {
		h.writeAccountLookupError(w, "list_transactions", accountID, err)
		return
	}

	responses := make([]transactionResponse, 0, len(transactions))
	for i := range transactions {
		responses = append(responses, buildTransactionResponse(&transactions[i]))
	}
	h.writeJSON(w, http.StatusOK, responses)
}

// allowTransfer consults the rate limiter, writing 429 when the source account
// has exhausted its window. Limiter failures fail open.
func (h *BankingHandlers) allowTransfer(w http.ResponseWriter, r *http.Request, fromAccountID uuid.UUID) bool {
	if h.rateLimiter == nil {
		return true
	}
	allowed, retryAfter, err := h.rateLimiter.Allow(r.Context(), "transfer", fromAccountID.String())
	if err != nil {
		log.Printf("level=warn component=api endpoint=transfer msg=\"rate limiter unavailable; allowing request\" err=%v", err)
		return true
	}
	if !allowed {
		w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
		h.writeError(w, http.StatusTooManyRequests, "Too many transfers from this account, slow down")
		return false
	}
	return true
}

func (h *BankingHandlers) parseAccountID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	rawID := chi.URLParam(r, "accountID")
	accountID, err := uuid.Parse(rawID)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid account id")
		return uuid.Nil, false
	}
	return accountID, true
}

func (h *BankingHandlers) writeAccountLookupError(w http.ResponseWriter, endpoint string, accountID uuid.UUID, err error) {
	if errors.Is(err, store.ErrAccountNotFound) {
		h.writeError(w, http.StatusNotFound, "Account not found")
		return
	}
	log.Printf("level=error component=api endpoint=%s msg=\"account lookup failed\" account_id=%s err=%v", endpoint, accountID, err)
	h.writeError(w, http.StatusInternalServerError, "Unable to load account")
}

func (h *BankingHandlers) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("level=error component=api msg=\"response encode failed\" err=%v", err)
	}
}

func (h *BankingHandlers) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
