/**
 * @description
 * This file implements the account ledger, the only component allowed to mutate
 * balances. It builds multi-account atomicity out of the repository's single-row
 * primitives: per-account exclusive locks serialize ledger writers, and the
 * optimistic version check on every save catches any writer that bypassed the
 * ledger.
 *
 * Key properties:
 * - TransferAtomic leaves either both accounts updated or neither; a failed
 *   credit triggers a compensating write that restores the debited source.
 * - Reads go through the same per-account locks as writes, so no ledger reader
 *   can observe a transfer's debit without its credit.
 * - Account locks are always acquired in ascending account-id order, so two
 *   concurrent transfers over the same pair in opposite directions cannot
 *   deadlock.
 * - Transfers over disjoint account pairs never block each other; contention is
 *   scoped to the accounts involved.
 *
 * @dependencies
 * - bytes, context, fmt, sync: Standard Go libraries.
 * - github.com/google/uuid, github.com/shopspring/decimal.
 * - internal/domain, internal/store.
 */

package ledger

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/transfa/banking-service/internal/domain"
	"github.com/transfa/banking-service/internal/store"
)

// TransferVersions reports the post-transfer version of each touched account.
type TransferVersions struct {
	FromVersion int64
	ToVersion   int64
}

// Ledger is the authoritative store of account balances and versions.
type Ledger struct {
	repo store.Repository

	mu    sync.Mutex
	locks map[uuid.UUID]*sync.Mutex
}

// New creates a ledger over the given repository.
func New(repo store.Repository) *Ledger {
	return &Ledger{
		repo:  repo,
		locks: make(map[uuid.UUID]*sync.Mutex),
	}
}

// Get returns the current state of one account. It takes the account's lock so
// a read never lands between the two writes of an in-flight transfer; callers
// observe an account only before or after a transfer, never mid-way.
func (l *Ledger) Get(ctx context.Context, accountID uuid.UUID) (*domain.Account, error) {
	lock := l.lockFor(accountID)
	lock.Lock()
	defer lock.Unlock()

	return l.repo.LoadAccount(ctx, accountID)
}

// Debit decreases the balance of one account, conditional on expectedVersion.
// It reports store.ErrVersionConflict when another writer intervened,
// store.ErrInsufficientFunds when the balance would go negative, and
// store.ErrAccountNotFound when the account does not exist.
func (l *Ledger) Debit(ctx context.Context, accountID uuid.UUID, amount decimal.Decimal, expectedVersion int64) (int64, error) {
	lock := l.lockFor(accountID)
	lock.Lock()
	defer lock.Unlock()

	account, err := l.repo.LoadAccount(ctx, accountID)
	if err != nil {
		return 0, err
	}
	if account.Version != expectedVersion {
		return 0, store.ErrVersionConflict
	}
	if account.Balance.LessThan(amount) {
		return 0, store.ErrInsufficientFunds
	}
	account.Balance = account.Balance.Sub(amount)
	return l.repo.SaveAccount(ctx, account, expectedVersion)
}

// Credit increases the balance of one account, conditional on expectedVersion.
func (l *Ledger) Credit(ctx context.Context, accountID uuid.UUID, amount decimal.Decimal, expectedVersion int64) (int64, error) {
	lock := l.lockFor(accountID)
	lock.Lock()
	defer lock.Unlock()

	account, err := l.repo.LoadAccount(ctx, accountID)
	if err != nil {
		return 0, err
	}
	if account.Version != expectedVersion {
		return 0, store.ErrVersionConflict
	}
	account.Balance = account.Balance.Add(amount)
	return l.repo.SaveAccount(ctx, account, expectedVersion)
}

// TransferAtomic moves amount from one account to another so that no reader
// ever observes the debit without the credit. Balances are re-read under lock,
// so the insufficient-funds check here is authoritative regardless of what any
// earlier advisory validation saw.
func (l *Ledger) TransferAtomic(ctx context.Context, fromID, toID uuid.UUID, amount decimal.Decimal) (TransferVersions, error) {
	if fromID == toID {
		return TransferVersions{}, fmt.Errorf("transfer source and destination must differ")
	}

	first, second := orderAccounts(fromID, toID)
	firstLock := l.lockFor(first)
	secondLock := l.lockFor(second)
	firstLock.Lock()
	defer firstLock.Unlock()
	secondLock.Lock()
	defer secondLock.Unlock()

	from, err := l.repo.LoadAccount(ctx, fromID)
	if err != nil {
		return TransferVersions{}, err
	}
	to, err := l.repo.LoadAccount(ctx, toID)
	if err != nil {
		return TransferVersions{}, err
	}

	if from.Balance.LessThan(amount) {
		return TransferVersions{}, store.ErrInsufficientFunds
	}

	fromExpected := from.Version
	toExpected := to.Version

	from.Balance = from.Balance.Sub(amount)
	fromVersion, err := l.repo.SaveAccount(ctx, from, fromExpected)
	if err != nil {
		return TransferVersions{}, err
	}

	to.Balance = to.Balance.Add(amount)
	toVersion, err := l.repo.SaveAccount(ctx, to, toExpected)
	if err != nil {
		// The debit is already durable; put the money back before reporting.
		// Only a writer bypassing the ledger can force this path, since both
		// locks are held.
		from.Balance = from.Balance.Add(amount)
		if _, compErr := l.repo.SaveAccount(ctx, from, fromVersion); compErr != nil {
			log.Printf("level=error component=ledger msg=\"compensating credit failed; source debited without credit\" from_account=%s amount=%s err=%v",
				fromID, amount.String(), compErr)
			return TransferVersions{}, fmt.Errorf("credit failed and compensation failed: %w", compErr)
		}
		return TransferVersions{}, err
	}

	return TransferVersions{FromVersion: fromVersion, ToVersion: toVersion}, nil
}

// lockFor returns the mutex guarding one account, creating it on first use.
// Locks are never removed; the registry is bounded by the number of accounts.
func (l *Ledger) lockFor(accountID uuid.UUID) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()

	lock, ok := l.locks[accountID]
	if !ok {
		lock = &sync.Mutex{}
		l.locks[accountID] = lock
	}
	return lock
}

// orderAccounts fixes the global lock acquisition order: ascending account id.
func orderAccounts(a, b uuid.UUID) (uuid.UUID, uuid.UUID) {
	if bytes.Compare(a[:], b[:]) <= 0 {
		return a, b
	}
	return b, a
}
