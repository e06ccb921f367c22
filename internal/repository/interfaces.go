package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/segyhp/collection-ledger/internal/domain"
)

// ErrNotFound is returned when a requested row does not exist
var ErrNotFound = errors.New("record not found")

// BorrowerRepository defines the interface for borrower data operations
type BorrowerRepository interface {
	// Create creates a new borrower
	Create(ctx context.Context, borrower *domain.Borrower) error

	// GetByID retrieves a borrower by id
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Borrower, error)

	// GetForUpdate retrieves a borrower and locks it until the transaction ends
	GetForUpdate(ctx context.Context, id uuid.UUID) (*domain.Borrower, error)

	// ListByUser lists a field agent's borrowers ordered by name
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*domain.Borrower, error)
}

// LoanFilter narrows a loan listing. Zero values mean no restriction.
type LoanFilter struct {
	UserID          *uuid.UUID
	BorrowerID      *uuid.UUID
	Statuses        []string
	ExcludeStatuses []string
}

// LoanRepository defines the interface for loan data operations
type LoanRepository interface {
	// Create creates a new loan
	Create(ctx context.Context, loan *domain.Loan) error

	// GetByID retrieves a loan by id
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Loan, error)

	// GetForUpdate retrieves a loan and locks it until the transaction ends
	GetForUpdate(ctx context.Context, id uuid.UUID) (*domain.Loan, error)

	// Update updates a loan
	Update(ctx context.Context, loan *domain.Loan) error

	// List returns loans matching the filter ordered by loan number
	List(ctx context.Context, filter LoanFilter) ([]*domain.Loan, error)

	// CountByBorrower counts every loan ever issued to a borrower
	CountByBorrower(ctx context.Context, borrowerID uuid.UUID) (int, error)

	// ListUserIDsWithActiveLoans returns the field agents that still carry active loans
	ListUserIDsWithActiveLoans(ctx context.Context) ([]uuid.UUID, error)
}

// InstallmentFilter narrows an installment listing. Date bounds are inclusive.
type InstallmentFilter struct {
	LoanIDs  []uuid.UUID
	Statuses []string
	DueFrom  *time.Time
	DueTo    *time.Time
	PaidFrom *time.Time
	PaidTo   *time.Time
}

// InstallmentRepository defines the interface for installment data operations
type InstallmentRepository interface {
	// CreateBatch inserts a whole schedule
	CreateBatch(ctx context.Context, installments []*domain.Installment) error

	// GetByID retrieves an installment by id
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Installment, error)

	// Update persists amounts, dates, status and notes of an installment
	Update(ctx context.Context, installment *domain.Installment) error

	// ListByLoan returns a loan's installments ordered by week number
	ListByLoan(ctx context.Context, loanID uuid.UUID) ([]*domain.Installment, error)

	// List returns installments matching the filter ordered by due date then week number.
	// A non-nil empty LoanIDs matches nothing.
	List(ctx context.Context, filter InstallmentFilter) ([]*domain.Installment, error)
}

// Store groups the repositories and runs units of work atomically
type Store interface {
	Borrowers() BorrowerRepository
	Loans() LoanRepository
	Installments() InstallmentRepository

	// WithTx runs fn against a transactional view of the store.
	// fn's writes commit together when it returns nil and are discarded otherwise.
	WithTx(ctx context.Context, fn func(Store) error) error
}
