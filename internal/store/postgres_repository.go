/**
 * @description
 * This file provides the PostgreSQL implementation of the `Repository` interface.
 * It contains all the SQL needed for the `accounts` and `transactions` tables.
 *
 * @dependencies
 * - context, errors: Standard Go libraries.
 * - github.com/jackc/pgx/v5: The PostgreSQL driver for database operations.
 * - github.com/shopspring/decimal: Exact decimal amounts.
 * - internal/domain: Contains the domain models used for data transfer.
 *
 * @notes
 * - Amounts travel as NUMERIC in SQL and are scanned through their text form to
 *   keep decimal exactness independent of the driver's numeric codec.
 * - SaveAccount is a single conditional UPDATE guarded by the version column;
 *   this is the optimistic write the ledger builds its atomicity on.
 */

package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/transfa/banking-service/internal/domain"
)

// PostgresRepository is a concrete implementation of the Repository interface for PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository creates a new instance of PostgresRepository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// CreateAccount inserts a new account row with version 1.
func (r *PostgresRepository) CreateAccount(ctx context.Context, account *domain.Account) error {
	query := `
		INSERT INTO accounts (id, owner_name, balance, version, created_at, updated_at)
		VALUES ($1, $2, $3::numeric, $4, $5, $6)
	`
	_, err := r.db.Exec(ctx, query,
		account.ID,
		account.OwnerName,
		account.Balance.String(),
		account.Version,
		account.CreatedAt,
		account.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrAccountExists
		}
		return err
	}
	return nil
}

// LoadAccount fetches one account by id.
func (r *PostgresRepository) LoadAccount(ctx context.Context, accountID uuid.UUID) (*domain.Account, error) {
	query := `
		SELECT id, owner_name, balance::text, version, created_at, updated_at
		FROM accounts
		WHERE id = $1
	`
	var (
		account    domain.Account
		balanceRaw string
	)
	err := r.db.QueryRow(ctx, query, accountID).Scan(
		&account.ID,
		&account.OwnerName,
		&balanceRaw,
		&account.Version,
		&account.CreatedAt,
		&account.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	account.Balance, err = decimal.NewFromString(balanceRaw)
	if err != nil {
		return nil, err
	}
	return &account, nil
}

// SaveAccount writes the balance conditionally on the version column and bumps it.
func (r *PostgresRepository) SaveAccount(ctx context.Context, account *domain.Account, expectedVersion int64) (int64, error) {
	query := `
		UPDATE accounts
		SET balance = $2::numeric, version = version + 1, updated_at = NOW()
		WHERE id = $1 AND version = $3
		RETURNING version
	`
	var newVersion int64
	err := r.db.QueryRow(ctx, query, account.ID, account.Balance.String(), expectedVersion).Scan(&newVersion)
	if err == nil {
		return newVersion, nil
	}
	if err != pgx.ErrNoRows {
		return 0, err
	}

	// No row matched: either the account is gone or another writer moved the version.
	var current int64
	probeErr := r.db.QueryRow(ctx, `SELECT version FROM accounts WHERE id = $1`, account.ID).Scan(&current)
	if probeErr == pgx.ErrNoRows {
		return 0, ErrAccountNotFound
	}
	if probeErr != nil {
		return 0, probeErr
	}
	return 0, ErrVersionConflict
}

// ListAccounts returns every account, oldest first.
func (r *PostgresRepository) ListAccounts(ctx context.Context) ([]domain.Account, error) {
	query := `
		SELECT id, owner_name, balance::text, version, created_at, updated_at
		FROM accounts
		ORDER BY created_at ASC
	`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts []domain.Account
	for rows.Next() {
		var (
			account    domain.Account
			balanceRaw string
		)
		if err := rows.Scan(
			&account.ID,
			&account.OwnerName,
			&balanceRaw,
			&account.Version,
			&account.CreatedAt,
			&account.UpdatedAt,
		); err != nil {
			return nil, err
		}
		if account.Balance, err = decimal.NewFromString(balanceRaw); err != nil {
			return nil, err
		}
		accounts = append(accounts, account)
	}
	return accounts, rows.Err()
}

// SaveTransaction inserts a new transaction record.
func (r *PostgresRepository) SaveTransaction(ctx context.Context, tx *domain.Transaction) error {
	query := `
		INSERT INTO transactions (
			id,
			from_account_id,
			to_account_id,
			type,
			status,
			amount,
			description,
			failure_reason,
			created_at,
			updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6::numeric, $7, $8, $9, $10)
	`
	_, err := r.db.Exec(ctx, query,
		tx.ID,
		tx.FromAccountID,
		tx.ToAccountID,
		string(tx.Type),
		string(tx.Status),
		tx.Amount.String(),
		tx.Description,
		tx.FailureReason,
		tx.CreatedAt,
		tx.UpdatedAt,
	)
	return err
}

// UpdateTransaction persists a status transition on an existing record.
func (r *PostgresRepository) UpdateTransaction(ctx context.Context, tx *domain.Transaction) error {
	query := `
		UPDATE transactions
		SET status = $2, failure_reason = $3, updated_at = NOW()
		WHERE id = $1
	`
	tag, err := r.db.Exec(ctx, query, tx.ID, string(tx.Status), tx.FailureReason)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrTransactionNotFound
	}
	return nil
}

func (r *PostgresRepository) FindTransactionByID(ctx context.Context, transactionID uuid.UUID) (*domain.Transaction, error) {
	query := `
		SELECT id, from_account_id, to_account_id, type, status, amount::text,
		       description, failure_reason, created_at, updated_at
		FROM transactions
		WHERE id = $1
	`
	tx, err := scanTransaction(r.db.QueryRow(ctx, query, transactionID))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrTransactionNotFound
		}
		return nil, err
	}
	return tx, nil
}

// FindTransactionsByAccount returns every record touching the account, newest first.
func (r *PostgresRepository) FindTransactionsByAccount(ctx context.Context, accountID uuid.UUID) ([]domain.Transaction, error) {
	query := `
		SELECT id, from_account_id, to_account_id, type, status, amount::text,
		       description, failure_reason, created_at, updated_at
		FROM transactions
		WHERE from_account_id = $1 OR to_account_id = $1
		ORDER BY created_at DESC
	`
	rows, err := r.db.Query(ctx, query, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var transactions []domain.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, *tx)
	}
	return transactions, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (*domain.Transaction, error) {
	var (
		tx        domain.Transaction
		txType    string
		status    string
		amountRaw string
	)
	err := row.Scan(
		&tx.ID,
		&tx.FromAccountID,
		&tx.ToAccountID,
		&txType,
		&status,
		&amountRaw,
		&tx.Description,
		&tx.FailureReason,
		&tx.CreatedAt,
		&tx.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	tx.Type = domain.TransactionType(txType)
	tx.Status = domain.TransactionStatus(status)
	if tx.Amount, err = decimal.NewFromString(amountRaw); err != nil {
		return nil, err
	}
	return &tx, nil
}
