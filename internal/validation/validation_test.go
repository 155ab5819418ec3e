package validation

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/transfa/banking-service/internal/domain"
	"github.com/transfa/banking-service/internal/store"
)

// accountReaderStub serves canned accounts keyed by id.
type accountReaderStub struct {
	accounts map[uuid.UUID]*domain.Account
	err      error
}

func (s *accountReaderStub) Get(ctx context.Context, accountID uuid.UUID) (*domain.Account, error) {
	if s.err != nil {
		return nil, s.err
	}
	account, ok := s.accounts[accountID]
	if !ok {
		return nil, store.ErrAccountNotFound
	}
	return account, nil
}

func newReaderWith(balances map[uuid.UUID]string) *accountReaderStub {
	accounts := make(map[uuid.UUID]*domain.Account, len(balances))
	for id, balance := range balances {
		accounts[id] = &domain.Account{ID: id, Balance: decimal.RequireFromString(balance), Version: 1}
	}
	return &accountReaderStub{accounts: accounts}
}

func transferReq(from, to uuid.UUID, amount string) domain.TransferRequest {
	return domain.TransferRequest{
		FromAccountID: from,
		ToAccountID:   to,
		Amount:        decimal.RequireFromString(amount),
	}
}

func assertFailureReason(t *testing.T, err error, want string) {
	t.Helper()
	reason, ok := IsFailure(err)
	if !ok {
		t.Fatalf("expected a business-rule failure, got %v", err)
	}
	if reason != want {
		t.Fatalf("expected reason %q, got %q", want, reason)
	}
}

func TestAmountBounds_RejectsNonPositive(t *testing.T) {
	s := NewAmountBoundsStrategy(decimal.RequireFromString("0.01"), decimal.RequireFromString("10000.00"))

	err := s.Validate(context.Background(), transferReq(uuid.New(), uuid.New(), "0.00"))
	assertFailureReason(t, err, "transfer amount must be positive")

	err = s.Validate(context.Background(), transferReq(uuid.New(), uuid.New(), "-5.00"))
	assertFailureReason(t, err, "transfer amount must be positive")
}

func TestAmountBounds_RejectsBelowMinimum(t *testing.T) {
	s := NewAmountBoundsStrategy(decimal.RequireFromString("0.01"), decimal.RequireFromString("10000.00"))

	err := s.Validate(context.Background(), transferReq(uuid.New(), uuid.New(), "0.005"))
	assertFailureReason(t, err, "transfer amount must be at least 0.01")
}

func TestAmountBounds_RejectsAboveMaximum(t *testing.T) {
	s := NewAmountBoundsStrategy(decimal.RequireFromString("0.01"), decimal.RequireFromString("10000.00"))

	err := s.Validate(context.Background(), transferReq(uuid.New(), uuid.New(), "10000.01"))
	assertFailureReason(t, err, "transfer amount cannot exceed 10000.00")
}

func TestAmountBounds_AcceptsBoundaryValues(t *testing.T) {
	s := NewAmountBoundsStrategy(decimal.RequireFromString("0.01"), decimal.RequireFromString("10000.00"))

	if err := s.Validate(context.Background(), transferReq(uuid.New(), uuid.New(), "0.01")); err != nil {
		t.Fatalf("minimum amount must pass, got %v", err)
	}
	if err := s.Validate(context.Background(), transferReq(uuid.New(), uuid.New(), "10000.00")); err != nil {
		t.Fatalf("maximum amount must pass, got %v", err)
	}
}

func TestAccountExistence_MissingSource(t *testing.T) {
	to := uuid.New()
	s := NewAccountExistenceStrategy(newReaderWith(map[uuid.UUID]string{to: "10.00"}))

	err := s.Validate(context.Background(), transferReq(uuid.New(), to, "1.00"))
	assertFailureReason(t, err, "source account does not exist")
}

func TestAccountExistence_MissingDestination(t *testing.T) {
	from := uuid.New()
	s := NewAccountExistenceStrategy(newReaderWith(map[uuid.UUID]string{from: "10.00"}))

	err := s.Validate(context.Background(), transferReq(from, uuid.New(), "1.00"))
	assertFailureReason(t, err, "destination account does not exist")
}

func TestAccountExistence_SameAccount(t *testing.T) {
	id := uuid.New()
	s := NewAccountExistenceStrategy(newReaderWith(map[uuid.UUID]string{id: "10.00"}))

	err := s.Validate(context.Background(), transferReq(id, id, "1.00"))
	assertFailureReason(t, err, "cannot transfer to the same account")
}

func TestAccountExistence_SystemErrorPassesThrough(t *testing.T) {
	systemErr := errors.New("connection reset")
	s := NewAccountExistenceStrategy(&accountReaderStub{err: systemErr})

	err := s.Validate(context.Background(), transferReq(uuid.New(), uuid.New(), "1.00"))
	if _, ok := IsFailure(err); ok {
		t.Fatalf("infrastructure fault must not read as a business failure: %v", err)
	}
	if !errors.Is(err, systemErr) {
		t.Fatalf("expected the underlying system error, got %v", err)
	}
}

func TestSufficientBalance_RejectsOverdraw(t *testing.T) {
	from := uuid.New()
	to := uuid.New()
	s := NewSufficientBalanceStrategy(newReaderWith(map[uuid.UUID]string{from: "10.00", to: "0.00"}))

	err := s.Validate(context.Background(), transferReq(from, to, "50.00"))
	assertFailureReason(t, err, "insufficient funds")
}

func TestSufficientBalance_AcceptsExactBalance(t *testing.T) {
	from := uuid.New()
	to := uuid.New()
	s := NewSufficientBalanceStrategy(newReaderWith(map[uuid.UUID]string{from: "10.00", to: "0.00"}))

	if err := s.Validate(context.Background(), transferReq(from, to, "10.00")); err != nil {
		t.Fatalf("transfer of the full balance must pass, got %v", err)
	}
}

// recordingStrategy notes whether it ran and returns a fixed result.
type recordingStrategy struct {
	called bool
	result error
}

func (s *recordingStrategy) Validate(ctx context.Context, req domain.TransferRequest) error {
	s.called = true
	return s.result
}

func TestPipeline_ShortCircuitsOnFirstFailure(t *testing.T) {
	first := &recordingStrategy{result: Failf("first rule rejected")}
	second := &recordingStrategy{}
	p := NewPipeline(first, second)

	err := p.Validate(context.Background(), transferReq(uuid.New(), uuid.New(), "1.00"))
	assertFailureReason(t, err, "first rule rejected")
	if second.called {
		t.Fatal("later rules must not run after a failure")
	}
}

func TestPipeline_RunsAllStrategiesOnSuccess(t *testing.T) {
	first := &recordingStrategy{}
	second := &recordingStrategy{}
	p := NewPipeline(first)
	p.Append(second)

	if err := p.Validate(context.Background(), transferReq(uuid.New(), uuid.New(), "1.00")); err != nil {
		t.Fatalf("expected pipeline to pass, got %v", err)
	}
	if !first.called || !second.called {
		t.Fatal("every rule must run when none fails")
	}
}

func TestPipeline_EmptyAcceptsEverything(t *testing.T) {
	p := NewPipeline()
	if err := p.Validate(context.Background(), transferReq(uuid.New(), uuid.New(), "-1.00")); err != nil {
		t.Fatalf("empty pipeline must accept, got %v", err)
	}
}

func TestIsFailure_WrappedError(t *testing.T) {
	wrapped := &wrappingError{inner: Failf("wrapped reason")}
	reason, ok := IsFailure(wrapped)
	if !ok || reason != "wrapped reason" {
		t.Fatalf("expected wrapped failure to unwrap, got (%q, %v)", reason, ok)
	}
}

type wrappingError struct {
	inner error
}

func (e *wrappingError) Error() string { return "wrapped: " + e.inner.Error() }
func (e *wrappingError) Unwrap() error { return e.inner }
