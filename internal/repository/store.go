package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// PostgresStore is the sqlx backed Store
type PostgresStore struct {
	db  *sqlx.DB
	ext sqlx.ExtContext
}

// NewPostgresStore wraps an open pool
func NewPostgresStore(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{db: db, ext: db}
}

func (s *PostgresStore) Borrowers() BorrowerRepository {
	return &borrowerRepository{db: s.ext}
}

func (s *PostgresStore) Loans() LoanRepository {
	return &loanRepository{db: s.ext}
}

func (s *PostgresStore) Installments() InstallmentRepository {
	return &installmentRepository{db: s.ext}
}

// WithTx runs fn inside a single database transaction. Nested calls join the outer one.
func (s *PostgresStore) WithTx(ctx context.Context, fn func(Store) error) error {
	if s.db == nil {
		return fn(s)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&PostgresStore{ext: tx}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}
