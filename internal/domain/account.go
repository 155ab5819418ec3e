/**
 * @description
 * This file defines the Account model, the unit of balance tracking in the ledger.
 * Balances are exact decimals; each account carries a monotonically increasing
 * version counter used for optimistic concurrency control.
 *
 * @notes
 * - Amounts use `shopspring/decimal` everywhere. Binary floating point would break
 *   the balance-conservation guarantee, so it never appears in this service.
 * - Accounts are owned by the ledger: balances are mutated only through the
 *   ledger's debit/credit operations, never directly.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Account represents one balance-holding account in the ledger.
// This struct maps directly to the `accounts` table in the database.
type Account struct {
	ID        uuid.UUID       `json:"id"`
	OwnerName string          `json:"owner_name"`
	Balance   decimal.Decimal `json:"balance"`
	Version   int64           `json:"version"` // bumped on every balance write
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// CreateAccountRequest is the DTO for opening a new account.
type CreateAccountRequest struct {
	OwnerName      string          `json:"owner_name"`
	InitialBalance decimal.Decimal `json:"initial_balance"`
}

// TransferRequest is the DTO for a money movement between two accounts.
// It is immutable once constructed; the validation pipeline and the transfer
// executor only ever read it.
type TransferRequest struct {
	FromAccountID uuid.UUID       `json:"from_account_id"`
	ToAccountID   uuid.UUID       `json:"to_account_id"`
	Amount        decimal.Decimal `json:"amount"`
	Description   string          `json:"description"`
}

// AmountRequest is the DTO for single-account movements (deposits, withdrawals).
type AmountRequest struct {
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
}
