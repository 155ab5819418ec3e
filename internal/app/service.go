/**
 * @description
 * This file contains the core business logic for the banking-service. The
 * `Service` struct is the transfer executor: it orchestrates validation, the
 * atomic ledger mutation and the lifecycle of the transaction audit record,
 * and publishes events to RabbitMQ once a record reaches a terminal status.
 *
 * Key features:
 * - A pending transaction record is persisted before anything else happens, so
 *   every attempt is auditable even when it later fails.
 * - Version conflicts from the ledger are retried, bounded, from the
 *   validation step; every other outcome resolves on the first pass.
 * - No code path both mutates a balance and skips the terminal status write.
 *
 * @dependencies
 * - context, errors, fmt, log, strings: Standard Go libraries.
 * - github.com/google/uuid, github.com/shopspring/decimal.
 * - internal/domain, internal/ledger, internal/store, internal/validation.
 * - pkg/rabbitmq: For event publishing.
 */

package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/transfa/banking-service/internal/domain"
	"github.com/transfa/banking-service/internal/ledger"
	"github.com/transfa/banking-service/internal/store"
	"github.com/transfa/banking-service/internal/validation"
	"github.com/transfa/banking-service/pkg/rabbitmq"
)

// DefaultMaxTransferRetries bounds how often a transfer attempt is replayed
// after a ledger version conflict before giving up.
const DefaultMaxTransferRetries = 3

// ReasonConflict is the distinct failure reason recorded when the retry
// budget for version conflicts is exhausted.
const ReasonConflict = "too many concurrent updates, transfer not applied"

// Service provides the core business logic for accounts and money movement.
type Service struct {
	repo          store.Repository
	ledger        *ledger.Ledger
	pipeline      *validation.Pipeline
	eventProducer rabbitmq.Publisher
	maxRetries    int
}

// NewService creates a new banking service instance. A nil producer disables
// event publishing; maxRetries <= 0 falls back to the default bound.
func NewService(repo store.Repository, l *ledger.Ledger, pipeline *validation.Pipeline, producer rabbitmq.Publisher, maxRetries int) *Service {
	if maxRetries <= 0 {
		maxRetries = DefaultMaxTransferRetries
	}
	return &Service{
		repo:          repo,
		ledger:        l,
		pipeline:      pipeline,
		eventProducer: producer,
		maxRetries:    maxRetries,
	}
}

// Ledger exposes the underlying ledger for read paths.
func (s *Service) Ledger() *ledger.Ledger {
	return s.ledger
}

// CreateAccount opens a new account with a non-negative initial balance.
func (s *Service) CreateAccount(ctx context.Context, req domain.CreateAccountRequest) (*domain.Account, error) {
	ownerName := strings.TrimSpace(req.OwnerName)
	if ownerName == "" {
		return nil, validation.Failf("owner name must not be empty")
	}
	if req.InitialBalance.IsNegative() {
		return nil, validation.Failf("initial balance cannot be negative")
	}

	now := time.Now().UTC()
	account := &domain.Account{
		ID:        uuid.New(),
		OwnerName: ownerName,
		Balance:   req.InitialBalance,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.CreateAccount(ctx, account); err != nil {
		return nil, err
	}
	log.Printf("level=info component=app msg=\"account created\" account_id=%s initial_balance=%s", account.ID, account.Balance.String())
	return account, nil
}

// GetAccount returns the current state of one account.
func (s *Service) GetAccount(ctx context.Context, accountID uuid.UUID) (*domain.Account, error) {
	return s.ledger.Get(ctx, accountID)
}

// GetBalance returns the current balance of one account.
func (s *Service) GetBalance(ctx context.Context, accountID uuid.UUID) (decimal.Decimal, error) {
	account, err := s.ledger.Get(ctx, accountID)
	if err != nil {
		return decimal.Decimal{}, err
	}
	return account.Balance, nil
}

// GetTransaction returns one transaction record by id.
func (s *Service) GetTransaction(ctx context.Context, transactionID uuid.UUID) (*domain.Transaction, error) {
	return s.repo.FindTransactionByID(ctx, transactionID)
}

// ListAccountTransactions returns the audit trail touching one account.
func (s *Service) ListAccountTransactions(ctx context.Context, accountID uuid.UUID) ([]domain.Transaction, error) {
	if _, err := s.ledger.Get(ctx, accountID); err != nil {
		return nil, err
	}
	return s.repo.FindTransactionsByAccount(ctx, accountID)
}

// Transfer executes one money transfer end to end and always returns a
// transaction record in a terminal status, unless persistence itself fails.
//
// The algorithm follows the executor contract: persist a pending record, run
// the validation pipeline, apply the atomic ledger mutation, then persist the
// terminal status. Version conflicts replay the attempt from validation, up to
// the configured bound.
func (s *Service) Transfer(ctx context.Context, req domain.TransferRequest) (*domain.Transaction, error) {
	from := req.FromAccountID
	to := req.ToAccountID
	record := domain.NewPendingTransaction(domain.TransactionTypeTransfer, &from, &to, req.Amount, req.Description)
	if err := s.repo.SaveTransaction(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to persist pending transaction: %w", err)
	}

	for attempt := 0; attempt < s.maxRetries; attempt++ {
		if err := s.pipeline.Validate(ctx, req); err != nil {
			reason, ok := validation.IsFailure(err)
			if !ok {
				// Infrastructure fault during validation; the record stays
				// pending and the caller gets a system error.
				return nil, err
			}
			log.Printf("level=info component=app operation=transfer outcome=rejected transaction_id=%s reason=%q", record.ID, reason)
			return s.finalizeFailed(ctx, record, reason)
		}

		versions, err := s.ledger.TransferAtomic(ctx, req.FromAccountID, req.ToAccountID, req.Amount)
		switch {
		case err == nil:
			log.Printf("level=info component=app operation=transfer outcome=completed transaction_id=%s from=%s to=%s amount=%s from_version=%d to_version=%d",
				record.ID, req.FromAccountID, req.ToAccountID, req.Amount.String(), versions.FromVersion, versions.ToVersion)
			return s.finalizeCompleted(ctx, record)
		case errors.Is(err, store.ErrVersionConflict):
			log.Printf("level=warn component=app operation=transfer outcome=conflict transaction_id=%s attempt=%d", record.ID, attempt+1)
			continue
		case errors.Is(err, store.ErrInsufficientFunds):
			return s.finalizeFailed(ctx, record, "insufficient funds")
		case errors.Is(err, store.ErrAccountNotFound):
			return s.finalizeFailed(ctx, record, "account no longer exists")
		default:
			return nil, fmt.Errorf("transfer execution failed: %w", err)
		}
	}

	return s.finalizeFailed(ctx, record, ReasonConflict)
}

// Deposit credits an account from outside the ledger (cash-in).
func (s *Service) Deposit(ctx context.Context, accountID uuid.UUID, req domain.AmountRequest) (*domain.Transaction, error) {
	record := domain.NewPendingTransaction(domain.TransactionTypeDeposit, nil, &accountID, req.Amount, req.Description)
	if err := s.repo.SaveTransaction(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to persist pending transaction: %w", err)
	}

	if !req.Amount.IsPositive() {
		return s.finalizeFailed(ctx, record, "deposit amount must be positive")
	}

	for attempt := 0; attempt < s.maxRetries; attempt++ {
		account, err := s.ledger.Get(ctx, accountID)
		if err != nil {
			if errors.Is(err, store.ErrAccountNotFound) {
				return s.finalizeFailed(ctx, record, "account does not exist")
			}
			return nil, err
		}

		_, err = s.ledger.Credit(ctx, accountID, req.Amount, account.Version)
		switch {
		case err == nil:
			return s.finalizeCompleted(ctx, record)
		case errors.Is(err, store.ErrVersionConflict):
			continue
		case errors.Is(err, store.ErrAccountNotFound):
			return s.finalizeFailed(ctx, record, "account does not exist")
		default:
			return nil, fmt.Errorf("deposit execution failed: %w", err)
		}
	}

	return s.finalizeFailed(ctx, record, ReasonConflict)
}

// Withdraw debits an account towards the outside world (cash-out).
func (s *Service) Withdraw(ctx context.Context, accountID uuid.UUID, req domain.AmountRequest) (*domain.Transaction, error) {
	record := domain.NewPendingTransaction(domain.TransactionTypeWithdrawal, &accountID, nil, req.Amount, req.Description)
	if err := s.repo.SaveTransaction(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to persist pending transaction: %w", err)
	}

	if !req.Amount.IsPositive() {
		return s.finalizeFailed(ctx, record, "withdrawal amount must be positive")
	}

	for attempt := 0; attempt < s.maxRetries; attempt++ {
		account, err := s.ledger.Get(ctx, accountID)
		if err != nil {
			if errors.Is(err, store.ErrAccountNotFound) {
				return s.finalizeFailed(ctx, record, "account does not exist")
			}
			return nil, err
		}

		_, err = s.ledger.Debit(ctx, accountID, req.Amount, account.Version)
		switch {
		case err == nil:
			return s.finalizeCompleted(ctx, record)
		case errors.Is(err, store.ErrVersionConflict):
			continue
		case errors.Is(err, store.ErrInsufficientFunds):
			return s.finalizeFailed(ctx, record, "insufficient funds")
		case errors.Is(err, store.ErrAccountNotFound):
			return s.finalizeFailed(ctx, record, "account does not exist")
		default:
			return nil, fmt.Errorf("withdrawal execution failed: %w", err)
		}
	}

	return s.finalizeFailed(ctx, record, ReasonConflict)
}

// finalizeCompleted persists the successful terminal status and emits the event.
func (s *Service) finalizeCompleted(ctx context.Context, record *domain.Transaction) (*domain.Transaction, error) {
	record.MarkCompleted()
	if err := s.repo.UpdateTransaction(ctx, record); err != nil {
		// The balances moved but the terminal write failed; surface a system
		// error so the caller knows the record may still read as pending.
		return nil, fmt.Errorf("failed to persist completed transaction %s: %w", record.ID, err)
	}
	s.publishTransactionEvent(ctx, record)
	return record, nil
}

// finalizeFailed persists the failed terminal status and emits the event.
// Failed attempts never mutate balances.
func (s *Service) finalizeFailed(ctx context.Context, record *domain.Transaction, reason string) (*domain.Transaction, error) {
	record.MarkFailed(reason)
	if err := s.repo.UpdateTransaction(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to persist failed transaction %s: %w", record.ID, err)
	}
	s.publishTransactionEvent(ctx, record)
	return record, nil
}

func (s *Service) publishTransactionEvent(ctx context.Context, record *domain.Transaction) {
	if s.eventProducer == nil {
		return
	}
	event := rabbitmq.TransactionEvent{
		TransactionID: record.ID,
		Type:          string(record.Type),
		Status:        string(record.Status),
		FromAccountID: record.FromAccountID,
		ToAccountID:   record.ToAccountID,
		Amount:        record.Amount.String(),
		FailureReason: record.FailureReason,
		Timestamp:     record.UpdatedAt,
	}
	routingKey := fmt.Sprintf("%s.%s", record.Type, record.Status)
	if err := s.eventProducer.Publish(ctx, rabbitmq.EventsExchange, routingKey, event); err != nil {
		// Event delivery is best-effort; the durable record is the source of truth.
		log.Printf("level=warn component=app msg=\"event publish failed\" transaction_id=%s routing_key=%s err=%v", record.ID, routingKey, err)
	}
}
