/**
 * @description
 * This file defines the Transaction model, the permanent audit record for every
 * money-movement attempt. A transaction is created exactly once per attempt,
 * starts as pending and is driven to exactly one terminal status. Records are
 * never deleted.
 *
 * @notes
 * - Status transitions only pending -> completed or pending -> failed. A record
 *   found pending after a crash is indeterminate and must be reconciled
 *   out-of-band; this service never resurrects or reverses terminal statuses.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionType distinguishes the three kinds of money movement.
type TransactionType string

const (
	TransactionTypeTransfer   TransactionType = "transfer"
	TransactionTypeDeposit    TransactionType = "deposit"
	TransactionTypeWithdrawal TransactionType = "withdrawal"
)

// TransactionStatus is the lifecycle status of a transaction record.
type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "pending"
	TransactionStatusCompleted TransactionStatus = "completed"
	TransactionStatusFailed    TransactionStatus = "failed"
)

// Terminal reports whether the status can no longer change.
func (s TransactionStatus) Terminal() bool {
	return s == TransactionStatusCompleted || s == TransactionStatusFailed
}

// Transaction is the central ledger record for any money movement in the system.
// This struct maps directly to the `transactions` table in the database.
type Transaction struct {
	ID            uuid.UUID         `json:"id"`
	FromAccountID *uuid.UUID        `json:"from_account_id,omitempty"` // nil for deposits
	ToAccountID   *uuid.UUID        `json:"to_account_id,omitempty"`   // nil for withdrawals
	Type          TransactionType   `json:"type"`
	Status        TransactionStatus `json:"status"`
	Amount        decimal.Decimal   `json:"amount"`
	Description   string            `json:"description"`
	FailureReason *string           `json:"failure_reason,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
}

// NewPendingTransaction builds the initial pending record for one attempt.
func NewPendingTransaction(txType TransactionType, from, to *uuid.UUID, amount decimal.Decimal, description string) *Transaction {
	now := time.Now().UTC()
	return &Transaction{
		ID:            uuid.New(),
		FromAccountID: from,
		ToAccountID:   to,
		Type:          txType,
		Status:        TransactionStatusPending,
		Amount:        amount,
		Description:   description,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// MarkCompleted moves the record to its successful terminal status.
func (t *Transaction) MarkCompleted() {
	t.Status = TransactionStatusCompleted
	t.UpdatedAt = time.Now().UTC()
}

// MarkFailed moves the record to its failed terminal status with a
// human-readable reason that callers can surface directly to end users.
func (t *Transaction) MarkFailed(reason string) {
	t.Status = TransactionStatusFailed
	t.FailureReason = &reason
	t.UpdatedAt = time.Now().UTC()
}
