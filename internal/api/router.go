/**
 * @description
 * This file sets up the HTTP router for the banking-service. It defines the API
 * endpoints, associates them with their corresponding handlers, and applies
 * standard middleware.
 *
 * @dependencies
 * - net/http: Standard Go library for HTTP functionality.
 * - github.com/go-chi/chi/v5: A lightweight and idiomatic router for Go.
 */

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// BankingRoutes creates and returns a new router for the banking service.
func BankingRoutes(h *BankingHandlers) http.Handler {
	r := chi.NewRouter()

	// Add standard middleware for logging, panic recovery, and timeouts.
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("healthy"))
	})

	r.Post("/accounts", h.CreateAccountHandler)
	r.Get("/accounts/{accountID}", h.GetAccountHandler)
	r.Get("/accounts/{accountID}/balance", h.GetBalanceHandler)
	r.Get("/accounts/{accountID}/transactions", h.ListAccountTransactionsHandler)
	r.Post("/accounts/{accountID}/deposits", h.DepositHandler)
	r.Post("/accounts/{accountID}/withdrawals", h.WithdrawHandler)

	r.Post("/transfers", h.TransferHandler)
	r.Get("/transactions/{transactionID}", h.GetTransactionHandler)

	return r
}
