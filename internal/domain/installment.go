package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/segyhp/collection-ledger/pkg/utils"
)

// Installment statuses. Overdue is derived, never stored.
const (
	InstallmentStatusPending    = "pending"
	InstallmentStatusPartial    = "partial"
	InstallmentStatusPaid       = "paid"
	InstallmentStatusForeclosed = "foreclosed"
)

// OutstandingStatuses are the statuses that still owe money
var OutstandingStatuses = []string{InstallmentStatusPending, InstallmentStatusPartial}

// Installment is one weekly obligation on a loan
type Installment struct {
	ID         uuid.UUID       `json:"id" db:"id"`
	LoanID     uuid.UUID       `json:"loan_id" db:"loan_id"`
	WeekNumber int             `json:"week_number" db:"week_number"`
	DueDate    time.Time       `json:"due_date" db:"due_date"`
	AmountDue  decimal.Decimal `json:"amount_due" db:"amount_due"`
	AmountPaid decimal.Decimal `json:"amount_paid" db:"amount_paid"`
	PaidDate   *time.Time      `json:"paid_date,omitempty" db:"paid_date"`
	Status     string          `json:"status" db:"status"`
	Notes      string          `json:"notes" db:"notes"`
	CreatedAt  time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at" db:"updated_at"`
}

// IsOutstanding reports whether the installment still owes money
func (i *Installment) IsOutstanding() bool {
	return i.Status == InstallmentStatusPending || i.Status == InstallmentStatusPartial
}

// IsOverdue is the derived overdue view: unpaid and due before today
func (i *Installment) IsOverdue(today time.Time) bool {
	if !i.IsOutstanding() {
		return false
	}
	return utils.IsDateOverdue(i.DueDate, today)
}

// Owed is what remains to be collected, never negative
func (i *Installment) Owed() decimal.Decimal {
	owed := i.AmountDue.Sub(i.AmountPaid)
	if owed.IsNegative() {
		return decimal.Zero
	}
	return owed
}

// StatusFor derives the payment status from the amounts
func StatusFor(amountPaid, amountDue decimal.Decimal) string {
	switch {
	case amountPaid.GreaterThanOrEqual(amountDue):
		return InstallmentStatusPaid
	case amountPaid.IsPositive():
		return InstallmentStatusPartial
	default:
		return InstallmentStatusPending
	}
}

// RecomputeStatus re-derives Status from AmountPaid/AmountDue.
// Written-off installments keep their terminal status.
func (i *Installment) RecomputeStatus() {
	if i.Status == InstallmentStatusForeclosed {
		return
	}
	i.Status = StatusFor(i.AmountPaid, i.AmountDue)
}

// InstallmentDetail is an installment enriched with loan and borrower context for listings
type InstallmentDetail struct {
	Installment
	LoanNumber   int       `json:"loan_number"`
	LoanStatus   string    `json:"loan_status"`
	BorrowerID   uuid.UUID `json:"borrower_id"`
	BorrowerName string    `json:"borrower_name,omitempty"`
	Overdue      bool      `json:"overdue"`
}

// Allocation records how much of a payment went to one installment
type Allocation struct {
	InstallmentID   uuid.UUID       `json:"installment_id"`
	LoanID          uuid.UUID       `json:"loan_id"`
	WeekNumber      int             `json:"week_number"`
	AmountApplied   decimal.Decimal `json:"amount_applied"`
	ResultingStatus string          `json:"resulting_status"`
}

// AllocationResult is the outcome of a FIFO allocation
type AllocationResult struct {
	Allocations []Allocation    `json:"allocations"`
	Overpayment decimal.Decimal `json:"overpayment"`
	ClosedLoans []uuid.UUID     `json:"closed_loans,omitempty"`
}
