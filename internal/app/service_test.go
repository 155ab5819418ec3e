package app

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/transfa/banking-service/internal/domain"
	"github.com/transfa/banking-service/internal/ledger"
	"github.com/transfa/banking-service/internal/store"
	"github.com/transfa/banking-service/internal/validation"
)

// capturingPublisher records every published routing key.
type capturingPublisher struct {
	mu          sync.Mutex
	routingKeys []string
}

func (p *capturingPublisher) Publish(ctx context.Context, exchange, routingKey string, body interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.routingKeys = append(p.routingKeys, routingKey)
	return nil
}

func (p *capturingPublisher) Close() {}

func (p *capturingPublisher) keys() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.routingKeys))
	copy(out, p.routingKeys)
	return out
}

// conflictingRepo forces every conditional balance write to report a version
// conflict, as if another writer always got there first.
type conflictingRepo struct {
	store.Repository
	mu        sync.Mutex
	saveCalls int
}

func (r *conflictingRepo) SaveAccount(ctx context.Context, account *domain.Account, expectedVersion int64) (int64, error) {
	r.mu.Lock()
	r.saveCalls++
	r.mu.Unlock()
	return 0, store.ErrVersionConflict
}

// brokenTransactionRepo fails every transaction-record write.
type brokenTransactionRepo struct {
	store.Repository
}

func (r *brokenTransactionRepo) SaveTransaction(ctx context.Context, tx *domain.Transaction) error {
	return errors.New("disk full")
}

// faultyStrategy simulates an infrastructure fault inside validation.
type faultyStrategy struct {
	err error
}

func (s *faultyStrategy) Validate(ctx context.Context, req domain.TransferRequest) error {
	return s.err
}

type serviceFixture struct {
	repo      store.Repository
	ledger    *ledger.Ledger
	service   *Service
	publisher *capturingPublisher
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()
	repo := store.NewMemoryRepository()
	return newServiceFixtureWithRepo(t, repo)
}

func newServiceFixtureWithRepo(t *testing.T, repo store.Repository) *serviceFixture {
	t.Helper()
	accountLedger := ledger.New(repo)
	pipeline := validation.NewPipeline(
		validation.NewAmountBoundsStrategy(decimal.RequireFromString("0.01"), decimal.RequireFromString("10000.00")),
		validation.NewAccountExistenceStrategy(accountLedger),
		validation.NewSufficientBalanceStrategy(accountLedger),
	)
	publisher := &capturingPublisher{}
	return &serviceFixture{
		repo:      repo,
		ledger:    accountLedger,
		service:   NewService(repo, accountLedger, pipeline, publisher, DefaultMaxTransferRetries),
		publisher: publisher,
	}
}

func (f *serviceFixture) openAccount(t *testing.T, balance string) uuid.UUID {
	t.Helper()
	account, err := f.service.CreateAccount(context.Background(), domain.CreateAccountRequest{
		OwnerName:      "fixture owner",
		InitialBalance: decimal.RequireFromString(balance),
	})
	if err != nil {
		t.Fatalf("failed to open account: %v", err)
	}
	return account.ID
}

func (f *serviceFixture) balance(t *testing.T, id uuid.UUID) decimal.Decimal {
	t.Helper()
	balance, err := f.service.GetBalance(context.Background(), id)
	if err != nil {
		t.Fatalf("failed to read balance for %s: %v", id, err)
	}
	return balance
}

func assertFailed(t *testing.T, record *domain.Transaction, wantReason string) {
	t.Helper()
	if record.Status != domain.TransactionStatusFailed {
		t.Fatalf("expected failed status, got %s", record.Status)
	}
	if record.FailureReason == nil {
		t.Fatal("failed record must carry a reason")
	}
	if *record.FailureReason != wantReason {
		t.Fatalf("expected reason %q, got %q", wantReason, *record.FailureReason)
	}
}

func TestCreateAccount_TrimsOwnerName(t *testing.T) {
	f := newServiceFixture(t)

	account, err := f.service.CreateAccount(context.Background(), domain.CreateAccountRequest{
		OwnerName:      "  Ada Lovelace  ",
		InitialBalance: decimal.RequireFromString("25.00"),
	})
	if err != nil {
		t.Fatalf("CreateAccount returned error: %v", err)
	}
	if account.OwnerName != "Ada Lovelace" {
		t.Fatalf("expected trimmed owner name, got %q", account.OwnerName)
	}
	if account.Version != 1 {
		t.Fatalf("new accounts start at version 1, got %d", account.Version)
	}
}

func TestCreateAccount_RejectsEmptyOwnerAndNegativeBalance(t *testing.T) {
	f := newServiceFixture(t)

	if _, err := f.service.CreateAccount(context.Background(), domain.CreateAccountRequest{OwnerName: "   "}); err == nil {
		t.Fatal("expected rejection for empty owner name")
	}

	_, err := f.service.CreateAccount(context.Background(), domain.CreateAccountRequest{
		OwnerName:      "someone",
		InitialBalance: decimal.RequireFromString("-1.00"),
	})
	if reason, ok := validation.IsFailure(err); !ok || reason != "initial balance cannot be negative" {
		t.Fatalf("expected negative-balance rejection, got %v", err)
	}
}

func TestTransfer_HappyPath(t *testing.T) {
	f := newServiceFixture(t)
	from := f.openAccount(t, "100.00")
	to := f.openAccount(t, "50.00")

	record, err := f.service.Transfer(context.Background(), domain.TransferRequest{
		FromAccountID: from,
		ToAccountID:   to,
		Amount:        decimal.RequireFromString("30.00"),
		Description:   "rent share",
	})
	if err != nil {
		t.Fatalf("Transfer returned error: %v", err)
	}
	if record.Status != domain.TransactionStatusCompleted {
		t.Fatalf("expected completed status, got %s", record.Status)
	}
	if got := f.balance(t, from); !got.Equal(decimal.RequireFromString("70.00")) {
		t.Fatalf("expected source balance 70.00, got %s", got)
	}
	if got := f.balance(t, to); !got.Equal(decimal.RequireFromString("80.00")) {
		t.Fatalf("expected destination balance 80.00, got %s", got)
	}

	stored, err := f.service.GetTransaction(context.Background(), record.ID)
	if err != nil {
		t.Fatalf("GetTransaction returned error: %v", err)
	}
	if stored.Status != domain.TransactionStatusCompleted {
		t.Fatalf("stored record must be completed, got %s", stored.Status)
	}

	keys := f.publisher.keys()
	if len(keys) != 1 || keys[0] != "transfer.completed" {
		t.Fatalf("expected one transfer.completed event, got %v", keys)
	}
}

func TestTransfer_InsufficientFunds(t *testing.T) {
	f := newServiceFixture(t)
	from := f.openAccount(t, "10.00")
	to := f.openAccount(t, "0.00")

	record, err := f.service.Transfer(context.Background(), domain.TransferRequest{
		FromAccountID: from,
		ToAccountID:   to,
		Amount:        decimal.RequireFromString("50.00"),
	})
	if err != nil {
		t.Fatalf("business failure must not surface as an error: %v", err)
	}
	assertFailed(t, record, "insufficient funds")
	if got := f.balance(t, from); !got.Equal(decimal.RequireFromString("10.00")) {
		t.Fatalf("failed transfer must not touch the source, got %s", got)
	}
	if got := f.balance(t, to); !got.Equal(decimal.RequireFromString("0.00")) {
		t.Fatalf("failed transfer must not touch the destination, got %s", got)
	}

	keys := f.publisher.keys()
	if len(keys) != 1 || keys[0] != "transfer.failed" {
		t.Fatalf("expected one transfer.failed event, got %v", keys)
	}
}

func TestTransfer_ValidationReasonsRecordedVerbatim(t *testing.T) {
	f := newServiceFixture(t)
	from := f.openAccount(t, "100.00")
	to := f.openAccount(t, "100.00")

	cases := []struct {
		name   string
		req    domain.TransferRequest
		reason string
	}{
		{
			name:   "non-positive amount",
			req:    domain.TransferRequest{FromAccountID: from, ToAccountID: to, Amount: decimal.Zero},
			reason: "transfer amount must be positive",
		},
		{
			name:   "above maximum",
			req:    domain.TransferRequest{FromAccountID: from, ToAccountID: to, Amount: decimal.RequireFromString("10000.01")},
			reason: "transfer amount cannot exceed 10000.00",
		},
		{
			name:   "missing source",
			req:    domain.TransferRequest{FromAccountID: uuid.New(), ToAccountID: to, Amount: decimal.RequireFromString("1.00")},
			reason: "source account does not exist",
		},
		{
			name:   "same account",
			req:    domain.TransferRequest{FromAccountID: from, ToAccountID: from, Amount: decimal.RequireFromString("1.00")},
			reason: "cannot transfer to the same account",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			record, err := f.service.Transfer(context.Background(), tc.req)
			if err != nil {
				t.Fatalf("Transfer returned error: %v", err)
			}
			assertFailed(t, record, tc.reason)
		})
	}
}

func TestTransfer_ExactlyOneRecordPerAttempt(t *testing.T) {
	f := newServiceFixture(t)
	from := f.openAccount(t, "100.00")
	to := f.openAccount(t, "0.00")

	if _, err := f.service.Transfer(context.Background(), domain.TransferRequest{
		FromAccountID: from,
		ToAccountID:   to,
		Amount:        decimal.RequireFromString("5.00"),
	}); err != nil {
		t.Fatalf("Transfer returned error: %v", err)
	}

	records, err := f.service.ListAccountTransactions(context.Background(), from)
	if err != nil {
		t.Fatalf("ListAccountTransactions returned error: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected exactly one record for the attempt, got %d", len(records))
	}
}

func TestTransfer_ConflictRetriesExhausted(t *testing.T) {
	inner := store.NewMemoryRepository()
	repo := &conflictingRepo{Repository: inner}
	f := newServiceFixtureWithRepo(t, repo)

	now := time.Now().UTC()
	from := uuid.New()
	to := uuid.New()
	for _, id := range []uuid.UUID{from, to} {
		if err := inner.CreateAccount(context.Background(), &domain.Account{
			ID: id, OwnerName: "x", Balance: decimal.RequireFromString("100.00"),
			Version: 1, CreatedAt: now, UpdatedAt: now,
		}); err != nil {
			t.Fatalf("failed to seed account: %v", err)
		}
	}

	record, err := f.service.Transfer(context.Background(), domain.TransferRequest{
		FromAccountID: from,
		ToAccountID:   to,
		Amount:        decimal.RequireFromString("1.00"),
	})
	if err != nil {
		t.Fatalf("Transfer returned error: %v", err)
	}
	assertFailed(t, record, ReasonConflict)
	if repo.saveCalls != DefaultMaxTransferRetries {
		t.Fatalf("expected %d conditional writes, got %d", DefaultMaxTransferRetries, repo.saveCalls)
	}
}

func TestTransfer_PendingPersistenceFailure(t *testing.T) {
	f := newServiceFixtureWithRepo(t, &brokenTransactionRepo{Repository: store.NewMemoryRepository()})

	_, err := f.service.Transfer(context.Background(), domain.TransferRequest{
		FromAccountID: uuid.New(),
		ToAccountID:   uuid.New(),
		Amount:        decimal.RequireFromString("1.00"),
	})
	if err == nil {
		t.Fatal("expected an error when the pending record cannot be persisted")
	}
	if len(f.publisher.keys()) != 0 {
		t.Fatal("no event may be published when nothing reached a terminal status")
	}
}

func TestTransfer_ValidationSystemErrorLeavesRecordPending(t *testing.T) {
	repo := store.NewMemoryRepository()
	accountLedger := ledger.New(repo)
	systemErr := errors.New("ledger store unavailable")
	pipeline := validation.NewPipeline(&faultyStrategy{err: systemErr})
	service := NewService(repo, accountLedger, pipeline, nil, DefaultMaxTransferRetries)

	now := time.Now().UTC()
	from := uuid.New()
	to := uuid.New()
	for _, id := range []uuid.UUID{from, to} {
		if err := repo.CreateAccount(context.Background(), &domain.Account{
			ID: id, OwnerName: "x", Balance: decimal.RequireFromString("100.00"),
			Version: 1, CreatedAt: now, UpdatedAt: now,
		}); err != nil {
			t.Fatalf("failed to seed account: %v", err)
		}
	}

	_, err := service.Transfer(context.Background(), domain.TransferRequest{
		FromAccountID: from,
		ToAccountID:   to,
		Amount:        decimal.RequireFromString("1.00"),
	})
	if !errors.Is(err, systemErr) {
		t.Fatalf("expected the system error to surface, got %v", err)
	}

	records, err := repo.FindTransactionsByAccount(context.Background(), from)
	if err != nil {
		t.Fatalf("FindTransactionsByAccount returned error: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected the pending record to remain, got %d records", len(records))
	}
	if records[0].Status != domain.TransactionStatusPending {
		t.Fatalf("record must stay pending after a system fault, got %s", records[0].Status)
	}
}

func TestDeposit_CreditsAccount(t *testing.T) {
	f := newServiceFixture(t)
	id := f.openAccount(t, "10.00")

	record, err := f.service.Deposit(context.Background(), id, domain.AmountRequest{
		Amount:      decimal.RequireFromString("2.50"),
		Description: "cash in",
	})
	if err != nil {
		t.Fatalf("Deposit returned error: %v", err)
	}
	if record.Status != domain.TransactionStatusCompleted {
		t.Fatalf("expected completed status, got %s", record.Status)
	}
	if got := f.balance(t, id); !got.Equal(decimal.RequireFromString("12.50")) {
		t.Fatalf("expected balance 12.50, got %s", got)
	}

	keys := f.publisher.keys()
	if len(keys) != 1 || keys[0] != "deposit.completed" {
		t.Fatalf("expected one deposit.completed event, got %v", keys)
	}
}

func TestDeposit_RejectsNonPositiveAmount(t *testing.T) {
	f := newServiceFixture(t)
	id := f.openAccount(t, "10.00")

	record, err := f.service.Deposit(context.Background(), id, domain.AmountRequest{Amount: decimal.Zero})
	if err != nil {
		t.Fatalf("Deposit returned error: %v", err)
	}
	assertFailed(t, record, "deposit amount must be positive")
	if got := f.balance(t, id); !got.Equal(decimal.RequireFromString("10.00")) {
		t.Fatalf("rejected deposit must not touch the balance, got %s", got)
	}
}

func TestWithdraw_DebitsAccount(t *testing.T) {
	f := newServiceFixture(t)
	id := f.openAccount(t, "10.00")

	record, err := f.service.Withdraw(context.Background(), id, domain.AmountRequest{
		Amount: decimal.RequireFromString("4.00"),
	})
	if err != nil {
		t.Fatalf("Withdraw returned error: %v", err)
	}
	if record.Status != domain.TransactionStatusCompleted {
		t.Fatalf("expected completed status, got %s", record.Status)
	}
	if got := f.balance(t, id); !got.Equal(decimal.RequireFromString("6.00")) {
		t.Fatalf("expected balance 6.00, got %s", got)
	}
}

func TestWithdraw_InsufficientFunds(t *testing.T) {
	f := newServiceFixture(t)
	id := f.openAccount(t, "3.00")

	record, err := f.service.Withdraw(context.Background(), id, domain.AmountRequest{
		Amount: decimal.RequireFromString("3.01"),
	})
	if err != nil {
		t.Fatalf("Withdraw returned error: %v", err)
	}
	assertFailed(t, record, "insufficient funds")
	if got := f.balance(t, id); !got.Equal(decimal.RequireFromString("3.00")) {
		t.Fatalf("failed withdrawal must not touch the balance, got %s", got)
	}
}

// A hundred concurrent transfers of 1.00 out of an account holding 50.00: at
// most fifty may complete, the source never goes negative and the pair's total
// is conserved exactly.
func TestTransfer_ConcurrentDrainConservesBalance(t *testing.T) {
	f := newServiceFixture(t)
	from := f.openAccount(t, "50.00")
	to := f.openAccount(t, "0.00")
	amount := decimal.RequireFromString("1.00")

	const attempts = 100
	results := make(chan *domain.Transaction, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			record, err := f.service.Transfer(context.Background(), domain.TransferRequest{
				FromAccountID: from,
				ToAccountID:   to,
				Amount:        amount,
			})
			if err != nil {
				t.Errorf("Transfer returned error: %v", err)
				return
			}
			results <- record
		}()
	}
	wg.Wait()
	close(results)

	completed := 0
	failed := 0
	for record := range results {
		switch record.Status {
		case domain.TransactionStatusCompleted:
			completed++
		case domain.TransactionStatusFailed:
			failed++
		default:
			t.Errorf("record %s left in non-terminal status %s", record.ID, record.Status)
		}
	}
	if completed+failed != attempts {
		t.Fatalf("expected %d terminal records, got %d", attempts, completed+failed)
	}
	if completed > 50 {
		t.Fatalf("at most 50 transfers can complete, got %d", completed)
	}

	fromBalance := f.balance(t, from)
	toBalance := f.balance(t, to)
	if fromBalance.IsNegative() {
		t.Fatalf("source balance went negative: %s", fromBalance)
	}
	if !toBalance.Equal(decimal.NewFromInt(int64(completed))) {
		t.Fatalf("destination must hold exactly the completed total, got %s for %d completed", toBalance, completed)
	}
	if total := fromBalance.Add(toBalance); !total.Equal(decimal.RequireFromString("50.00")) {
		t.Fatalf("total balance not conserved: got %s, want 50.00", total)
	}
}
