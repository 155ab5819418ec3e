/**
 * @description
 * This file defines the `Repository` interface, the contract for all data access
 * required by the banking-service. The interface exposes only single-row
 * primitives; multi-row atomicity across a debit and a credit is the ledger's
 * responsibility, built from these primitives plus optimistic version checks.
 *
 * @dependencies
 * - context: Standard Go library.
 * - github.com/google/uuid: For account and transaction identifiers.
 * - internal/domain: For the service's domain models.
 */

package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/transfa/banking-service/internal/domain"
)

var (
	ErrAccountNotFound     = errors.New("account not found")
	ErrAccountExists       = errors.New("account already exists")
	ErrInsufficientFunds   = errors.New("insufficient funds")
	ErrVersionConflict     = errors.New("account version conflict")
	ErrTransactionNotFound = errors.New("transaction not found")
)

// Repository defines the set of methods for interacting with the database.
//
// SaveAccount is the only balance write path and is conditional: the write
// succeeds only if the stored version still equals expectedVersion, in which
// case the account's version is incremented atomically with the balance.
// A mismatch reports ErrVersionConflict and leaves the row untouched.
type Repository interface {
	// Account methods
	CreateAccount(ctx context.Context, account *domain.Account) error
	LoadAccount(ctx context.Context, accountID uuid.UUID) (*domain.Account, error)
	SaveAccount(ctx context.Context, account *domain.Account, expectedVersion int64) (int64, error)
	ListAccounts(ctx context.Context) ([]domain.Account, error)

	// Transaction record methods
	SaveTransaction(ctx context.Context, tx *domain.Transaction) error
	UpdateTransaction(ctx context.Context, tx *domain.Transaction) error
	FindTransactionByID(ctx context.Context, transactionID uuid.UUID) (*domain.Transaction, error)
	FindTransactionsByAccount(ctx context.Context, accountID uuid.UUID) ([]domain.Transaction, error)
}
