/**
 * @description
 * Ledger-reading rules: account existence/distinctness and sufficient balance.
 * Both read the ledger through the narrow AccountReader interface and never
 * mutate it. The balance rule is advisory only; the authoritative
 * insufficient-funds check happens inside the ledger's atomic transfer, because
 * the balance may change between validation and execution.
 */

package validation

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/transfa/banking-service/internal/domain"
	"github.com/transfa/banking-service/internal/store"
)

// AccountReader is the read-only slice of the ledger that validation needs.
type AccountReader interface {
	Get(ctx context.Context, accountID uuid.UUID) (*domain.Account, error)
}

// AccountExistenceStrategy rejects transfers whose source or destination does
// not exist, and transfers from an account to itself.
type AccountExistenceStrategy struct {
	accounts AccountReader
}

func NewAccountExistenceStrategy(accounts AccountReader) *AccountExistenceStrategy {
	return &AccountExistenceStrategy{accounts: accounts}
}

func (s *AccountExistenceStrategy) Validate(ctx context.Context, req domain.TransferRequest) error {
	if _, err := s.accounts.Get(ctx, req.FromAccountID); err != nil {
		if errors.Is(err, store.ErrAccountNotFound) {
			return Failf("source account does not exist")
		}
		return err
	}
	if _, err := s.accounts.Get(ctx, req.ToAccountID); err != nil {
		if errors.Is(err, store.ErrAccountNotFound) {
			return Failf("destination account does not exist")
		}
		return err
	}
	if req.FromAccountID == req.ToAccountID {
		return Failf("cannot transfer to the same account")
	}
	return nil
}

// SufficientBalanceStrategy rejects transfers larger than the source account's
// current balance.
type SufficientBalanceStrategy struct {
	accounts AccountReader
}

func NewSufficientBalanceStrategy(accounts AccountReader) *SufficientBalanceStrategy {
	return &SufficientBalanceStrategy{accounts: accounts}
}

func (s *SufficientBalanceStrategy) Validate(ctx context.Context, req domain.TransferRequest) error {
	account, err := s.accounts.Get(ctx, req.FromAccountID)
	if err != nil {
		if errors.Is(err, store.ErrAccountNotFound) {
			return Failf("source account does not exist")
		}
		return err
	}
	if account.Balance.LessThan(req.Amount) {
		return Failf("insufficient funds")
	}
	return nil
}
