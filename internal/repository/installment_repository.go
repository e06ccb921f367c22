package repository

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/segyhp/collection-ledger/internal/domain"
)

const installmentColumns = `id, loan_id, week_number, due_date, amount_due, amount_paid, paid_date, status,
	notes, created_at, updated_at`

type installmentRepository struct {
	db sqlx.ExtContext
}

func (r *installmentRepository) CreateBatch(ctx context.Context, installments []*domain.Installment) error {
	if len(installments) == 0 {
		return nil
	}

	query := `
		INSERT INTO installments (` + installmentColumns + `)
		VALUES (:id, :loan_id, :week_number, :due_date, :amount_due, :amount_paid, :paid_date, :status,
			:notes, :created_at, :updated_at)
	`

	now := time.Now().UTC()
	for _, inst := range installments {
		if inst.CreatedAt.IsZero() {
			inst.CreatedAt = now
		}
		inst.UpdatedAt = now

		if _, err := sqlx.NamedExecContext(ctx, r.db, query, inst); err != nil {
			return err
		}
	}

	return nil
}

func (r *installmentRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Installment, error) {
	query := `SELECT ` + installmentColumns + ` FROM installments WHERE id = $1`

	var inst domain.Installment
	if err := sqlx.GetContext(ctx, r.db, &inst, query, id); err != nil {
		return nil, notFound(err)
	}
	return &inst, nil
}

func (r *installmentRepository) Update(ctx context.Context, installment *domain.Installment) error {
	query := `
		UPDATE installments
		SET due_date = :due_date, amount_due = :amount_due, amount_paid = :amount_paid,
			paid_date = :paid_date, status = :status, notes = :notes, updated_at = :updated_at
		WHERE id = :id
	`

	installment.UpdatedAt = time.Now().UTC()

	res, err := sqlx.NamedExecContext(ctx, r.db, query, installment)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *installmentRepository) ListByLoan(ctx context.Context, loanID uuid.UUID) ([]*domain.Installment, error) {
	query := `
		SELECT ` + installmentColumns + `
		FROM installments
		WHERE loan_id = $1
		ORDER BY week_number
	`

	var installments []*domain.Installment
	if err := sqlx.SelectContext(ctx, r.db, &installments, query, loanID); err != nil {
		return nil, err
	}
	return installments, nil
}

func (r *installmentRepository) List(ctx context.Context, filter InstallmentFilter) ([]*domain.Installment, error) {
	if filter.LoanIDs != nil && len(filter.LoanIDs) == 0 {
		return nil, nil
	}

	var (
		where []string
		args  []interface{}
	)

	if len(filter.LoanIDs) > 0 {
		where = append(where, "loan_id IN (?)")
		args = append(args, filter.LoanIDs)
	}
	if len(filter.Statuses) > 0 {
		where = append(where, "status IN (?)")
		args = append(args, filter.Statuses)
	}
	if filter.DueFrom != nil {
		where = append(where, "due_date >= ?")
		args = append(args, *filter.DueFrom)
	}
	if filter.DueTo != nil {
		where = append(where, "due_date <= ?")
		args = append(args, *filter.DueTo)
	}
	if filter.PaidFrom != nil {
		where = append(where, "paid_date >= ?")
		args = append(args, *filter.PaidFrom)
	}
	if filter.PaidTo != nil {
		where = append(where, "paid_date <= ?")
		args = append(args, *filter.PaidTo)
	}

	query := `SELECT ` + installmentColumns + ` FROM installments`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY due_date, week_number, loan_id`

	query, args, err := sqlx.In(query, args...)
	if err != nil {
		return nil, err
	}

	var installments []*domain.Installment
	if err := sqlx.SelectContext(ctx, r.db, &installments, r.db.Rebind(query), args...); err != nil {
		return nil, err
	}
	return installments, nil
}
