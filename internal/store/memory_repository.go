/**
 * @description
 * This file provides an in-memory implementation of the `Repository` interface.
 * It backs unit tests and local development where a PostgreSQL instance is not
 * available, and honors the same optimistic-versioning contract as the
 * PostgreSQL implementation.
 *
 * @notes
 * - All maps are guarded by one RWMutex; every method copies domain values on
 *   the way in and out so callers never share memory with the store.
 */

package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/transfa/banking-service/internal/domain"
)

// MemoryRepository is a thread-safe, map-backed Repository.
type MemoryRepository struct {
	mu           sync.RWMutex
	accounts     map[uuid.UUID]*domain.Account
	transactions map[uuid.UUID]*domain.Transaction
}

// NewMemoryRepository creates an empty in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		accounts:     make(map[uuid.UUID]*domain.Account),
		transactions: make(map[uuid.UUID]*domain.Transaction),
	}
}

func (r *MemoryRepository) CreateAccount(ctx context.Context, account *domain.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.accounts[account.ID]; ok {
		return ErrAccountExists
	}
	clone := *account
	r.accounts[account.ID] = &clone
	return nil
}

func (r *MemoryRepository) LoadAccount(ctx context.Context, accountID uuid.UUID) (*domain.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	account, ok := r.accounts[accountID]
	if !ok {
		return nil, ErrAccountNotFound
	}
	clone := *account
	return &clone, nil
}

func (r *MemoryRepository) SaveAccount(ctx context.Context, account *domain.Account, expectedVersion int64) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.accounts[account.ID]
	if !ok {
		return 0, ErrAccountNotFound
	}
	if stored.Version != expectedVersion {
		return 0, ErrVersionConflict
	}
	stored.Balance = account.Balance
	stored.Version++
	stored.UpdatedAt = time.Now().UTC()
	return stored.Version, nil
}

func (r *MemoryRepository) ListAccounts(ctx context.Context) ([]domain.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	accounts := make([]domain.Account, 0, len(r.accounts))
	for _, account := range r.accounts {
		accounts = append(accounts, *account)
	}
	sort.Slice(accounts, func(i, j int) bool {
		return accounts[i].CreatedAt.Before(accounts[j].CreatedAt)
	})
	return accounts, nil
}

func (r *MemoryRepository) SaveTransaction(ctx context.Context, tx *domain.Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	clone := *tx
	r.transactions[tx.ID] = &clone
	return nil
}

func (r *MemoryRepository) UpdateTransaction(ctx context.Context, tx *domain.Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.transactions[tx.ID]
	if !ok {
		return ErrTransactionNotFound
	}
	stored.Status = tx.Status
	stored.FailureReason = tx.FailureReason
	stored.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *MemoryRepository) FindTransactionByID(ctx context.Context, transactionID uuid.UUID) (*domain.Transaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tx, ok := r.transactions[transactionID]
	if !ok {
		return nil, ErrTransactionNotFound
	}
	clone := *tx
	return &clone, nil
}

func (r *MemoryRepository) FindTransactionsByAccount(ctx context.Context, accountID uuid.UUID) ([]domain.Transaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var transactions []domain.Transaction
	for _, tx := range r.transactions {
		if (tx.FromAccountID != nil && *tx.FromAccountID == accountID) ||
			(tx.ToAccountID != nil && *tx.ToAccountID == accountID) {
			transactions = append(transactions, *tx)
		}
	}
	sort.Slice(transactions, func(i, j int) bool {
		return transactions[i].CreatedAt.After(transactions[j].CreatedAt)
	})
	return transactions, nil
}
