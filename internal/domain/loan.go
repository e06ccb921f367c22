package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	LoanStatusActive     = "active"
	LoanStatusClosed     = "closed"
	LoanStatusForeclosed = "foreclosed"
)

// Loan represents a fixed-term weekly installment loan
type Loan struct {
	ID                          uuid.UUID           `json:"id" db:"id"`
	UserID                      uuid.UUID           `json:"user_id" db:"user_id"`
	BorrowerID                  uuid.UUID           `json:"borrower_id" db:"borrower_id"`
	LoanNumber                  int                 `json:"loan_number" db:"loan_number"`
	PrincipalAmount             decimal.Decimal     `json:"principal_amount" db:"principal_amount"`
	WeeklyRate                  decimal.Decimal     `json:"weekly_rate" db:"weekly_rate"`
	WeeklyAmount                decimal.Decimal     `json:"weekly_amount" db:"weekly_amount"`
	NumberOfWeeks               int                 `json:"number_of_weeks" db:"number_of_weeks"`
	TotalAmount                 decimal.Decimal     `json:"total_amount" db:"total_amount"`
	StartDate                   time.Time           `json:"start_date" db:"start_date"`
	FirstPaymentDueDate         time.Time           `json:"first_payment_due_date" db:"first_payment_due_date"`
	CollectionDay               int                 `json:"collection_day" db:"collection_day"`
	Status                      string              `json:"status" db:"status"`
	ForeclosureDate             *time.Time          `json:"foreclosure_date,omitempty" db:"foreclosure_date"`
	ForeclosureSettlementAmount decimal.NullDecimal `json:"foreclosure_settlement_amount" db:"foreclosure_settlement_amount"`
	CreatedAt                   time.Time           `json:"created_at" db:"created_at"`
	UpdatedAt                   time.Time           `json:"updated_at" db:"updated_at"`
}

// IsActive reports whether the loan still accepts payments
func (l *Loan) IsActive() bool {
	return l.Status == LoanStatusActive
}

// Interest is the flat interest the loan carries over its whole term
func (l *Loan) Interest() decimal.Decimal {
	return l.TotalAmount.Sub(l.PrincipalAmount)
}

// LoanTerms are the inputs the schedule generator works from
type LoanTerms struct {
	Principal        decimal.Decimal
	WeeklyRate       decimal.Decimal // zero means use the configured rate
	NumberOfWeeks    *int            // nil means use the configured default
	StartDate        time.Time
	FirstPaymentDate *time.Time
	CollectionDay    *int // nil means use the configured collection day
}

// LoanWithInstallments is a loan together with its full schedule ordered by week
type LoanWithInstallments struct {
	Loan         *Loan           `json:"loan"`
	Installments []*Installment  `json:"installments"`
	TotalPaid    decimal.Decimal `json:"total_paid"`
	Balance      decimal.Decimal `json:"balance"`
}

// LoanPosition pairs a loan with the total amount recorded against it
type LoanPosition struct {
	Loan      *Loan
	TotalPaid decimal.Decimal
}

// LoanDetailsUpdate carries the editable loan fields; nil means unchanged
type LoanDetailsUpdate struct {
	PrincipalAmount  *decimal.Decimal
	StartDate        *time.Time
	FirstPaymentDate *time.Time
}
