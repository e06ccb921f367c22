package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/segyhp/collection-ledger/internal/domain"
)

const borrowerColumns = `id, user_id, name, area, phone, leader_tag, is_active, created_at, updated_at`

type borrowerRepository struct {
	db sqlx.ExtContext
}

func (r *borrowerRepository) Create(ctx context.Context, borrower *domain.Borrower) error {
	query := `
		INSERT INTO borrowers (` + borrowerColumns + `)
		VALUES (:id, :user_id, :name, :area, :phone, :leader_tag, :is_active, :created_at, :updated_at)
	`

	now := time.Now().UTC()
	if borrower.CreatedAt.IsZero() {
		borrower.CreatedAt = now
	}
	borrower.UpdatedAt = now

	_, err := sqlx.NamedExecContext(ctx, r.db, query, borrower)
	return err
}

func (r *borrowerRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Borrower, error) {
	return r.get(ctx, `SELECT `+borrowerColumns+` FROM borrowers WHERE id = $1`, id)
}

func (r *borrowerRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (*domain.Borrower, error) {
	return r.get(ctx, `SELECT `+borrowerColumns+` FROM borrowers WHERE id = $1 FOR UPDATE`, id)
}

func (r *borrowerRepository) get(ctx context.Context, query string, id uuid.UUID) (*domain.Borrower, error) {
	var borrower domain.Borrower
	if err := sqlx.GetContext(ctx, r.db, &borrower, query, id); err != nil {
		return nil, notFound(err)
	}
	return &borrower, nil
}

func (r *borrowerRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]*domain.Borrower, error) {
	query := `
		SELECT ` + borrowerColumns + `
		FROM borrowers
		WHERE user_id = $1
		ORDER BY name, created_at
	`

	var borrowers []*domain.Borrower
	if err := sqlx.SelectContext(ctx, r.db, &borrowers, query, userID); err != nil {
		return nil, err
	}
	return borrowers, nil
}
