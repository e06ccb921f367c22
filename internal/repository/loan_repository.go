package repository

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/segyhp/collection-ledger/internal/domain"
)

const loanColumns = `id, user_id, borrower_id, loan_number, principal_amount, weekly_rate, weekly_amount,
	number_of_weeks, total_amount, start_date, first_payment_due_date, collection_day, status,
	foreclosure_date, foreclosure_settlement_amount, created_at, updated_at`

type loanRepository struct {
	db sqlx.ExtContext
}

func (r *loanRepository) Create(ctx context.Context, loan *domain.Loan) error {
	query := `
		INSERT INTO loans (` + loanColumns + `)
		VALUES (:id, :user_id, :borrower_id, :loan_number, :principal_amount, :weekly_rate, :weekly_amount,
			:number_of_weeks, :total_amount, :start_date, :first_payment_due_date, :collection_day, :status,
			:foreclosure_date, :foreclosure_settlement_amount, :created_at, :updated_at)
	`

	now := time.Now().UTC()
	if loan.CreatedAt.IsZero() {
		loan.CreatedAt = now
	}
	loan.UpdatedAt = now

	_, err := sqlx.NamedExecContext(ctx, r.db, query, loan)
	return err
}

func (r *loanRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Loan, error) {
	return r.get(ctx, `SELECT `+loanColumns+` FROM loans WHERE id = $1`, id)
}

func (r *loanRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (*domain.Loan, error) {
	return r.get(ctx, `SELECT `+loanColumns+` FROM loans WHERE id = $1 FOR UPDATE`, id)
}

func (r *loanRepository) get(ctx context.Context, query string, id uuid.UUID) (*domain.Loan, error) {
	var loan domain.Loan
	if err := sqlx.GetContext(ctx, r.db, &loan, query, id); err != nil {
		return nil, notFound(err)
	}
	return &loan, nil
}

func (r *loanRepository) Update(ctx context.Context, loan *domain.Loan) error {
	query := `
		UPDATE loans
		SET principal_amount = :principal_amount, weekly_rate = :weekly_rate, weekly_amount = :weekly_amount,
			number_of_weeks = :number_of_weeks, total_amount = :total_amount, start_date = :start_date,
			first_payment_due_date = :first_payment_due_date, collection_day = :collection_day,
			status = :status, foreclosure_date = :foreclosure_date,
			foreclosure_settlement_amount = :foreclosure_settlement_amount, updated_at = :updated_at
		WHERE id = :id
	`

	loan.UpdatedAt = time.Now().UTC()

	res, err := sqlx.NamedExecContext(ctx, r.db, query, loan)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *loanRepository) List(ctx context.Context, filter LoanFilter) ([]*domain.Loan, error) {
	var (
		where []string
		args  []interface{}
	)

	if filter.UserID != nil {
		where = append(where, "user_id = ?")
		args = append(args, *filter.UserID)
	}
	if filter.BorrowerID != nil {
		where = append(where, "borrower_id = ?")
		args = append(args, *filter.BorrowerID)
	}
	if len(filter.Statuses) > 0 {
		where = append(where, "status IN (?)")
		args = append(args, filter.Statuses)
	}
	if len(filter.ExcludeStatuses) > 0 {
		where = append(where, "status NOT IN (?)")
		args = append(args, filter.ExcludeStatuses)
	}

	query := `SELECT ` + loanColumns + ` FROM loans`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY loan_number, created_at, id`

	query, args, err := sqlx.In(query, args...)
	if err != nil {
		return nil, err
	}

	var loans []*domain.Loan
	if err := sqlx.SelectContext(ctx, r.db, &loans, r.db.Rebind(query), args...); err != nil {
		return nil, err
	}
	return loans, nil
}

func (r *loanRepository) CountByBorrower(ctx context.Context, borrowerID uuid.UUID) (int, error) {
	var count int
	err := sqlx.GetContext(ctx, r.db, &count, `SELECT COUNT(*) FROM loans WHERE borrower_id = $1`, borrowerID)
	return count, err
}

func (r *loanRepository) ListUserIDsWithActiveLoans(ctx context.Context) ([]uuid.UUID, error) {
	query := `
		SELECT DISTINCT user_id
		FROM loans
		WHERE status = $1
		ORDER BY user_id
	`

	var ids []uuid.UUID
	if err := sqlx.SelectContext(ctx, r.db, &ids, query, domain.LoanStatusActive); err != nil {
		return nil, err
	}
	return ids, nil
}
