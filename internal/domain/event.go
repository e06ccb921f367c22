package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// EventType names a ledger event
type EventType string

const (
	EventLoanCreated      EventType = "loan.created"
	EventLoanClosed       EventType = "loan.closed"
	EventLoanReopened     EventType = "loan.reopened"
	EventLoanForeclosed   EventType = "loan.foreclosed"
	EventLoanSettled      EventType = "loan.settled"
	EventLoanUpdated      EventType = "loan.updated"
	EventPaymentRecorded  EventType = "payment.recorded"
	EventPaymentReset     EventType = "payment.reset"
	EventPaymentAllocated EventType = "payment.allocated"
)

// LedgerEvent is emitted after a ledger mutation commits
type LedgerEvent struct {
	ID            uuid.UUID       `json:"id"`
	Type          EventType       `json:"type"`
	UserID        uuid.UUID       `json:"user_id"`
	BorrowerID    uuid.UUID       `json:"borrower_id"`
	LoanID        uuid.UUID       `json:"loan_id,omitempty"`
	InstallmentID uuid.UUID       `json:"installment_id,omitempty"`
	Amount        decimal.Decimal `json:"amount"`
	OccurredAt    time.Time       `json:"occurred_at"`
}

// NewLedgerEvent stamps a new event with an id and time
func NewLedgerEvent(eventType EventType, loan *Loan, amount decimal.Decimal) LedgerEvent {
	ev := LedgerEvent{
		ID:         uuid.New(),
		Type:       eventType,
		Amount:     amount,
		OccurredAt: time.Now().UTC(),
	}
	if loan != nil {
		ev.UserID = loan.UserID
		ev.BorrowerID = loan.BorrowerID
		ev.LoanID = loan.ID
	}
	return ev
}
