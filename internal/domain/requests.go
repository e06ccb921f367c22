package domain

import (
	"github.com/shopspring/decimal"
)

// DTOs for requests and responses

type CreateBorrowerRequest struct {
	UserID    string `json:"user_id" validate:"required,uuid"`
	Name      string `json:"name" validate:"required,max=200"`
	Area      string `json:"area" validate:"max=200"`
	Phone     string `json:"phone" validate:"max=30"`
	LeaderTag string `json:"leader_tag" validate:"max=100"`
}

type LoanTermsRequest struct {
	PrincipalAmount  decimal.Decimal  `json:"principal_amount" validate:"required,decimal_gt=0"`
	WeeklyRate       *decimal.Decimal `json:"weekly_rate,omitempty" validate:"omitempty,decimal_gt=0"`
	NumberOfWeeks    *int             `json:"number_of_weeks,omitempty" validate:"omitempty,gt=0,lte=520"`
	StartDate        string           `json:"start_date" validate:"required,datetime=2006-01-02"`
	FirstPaymentDate string           `json:"first_payment_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	CollectionDay    *int             `json:"collection_day,omitempty" validate:"omitempty,gte=0,lte=6"`
}

type CreateLoanRequest struct {
	UserID     string `json:"user_id" validate:"required,uuid"`
	BorrowerID string `json:"borrower_id" validate:"required,uuid"`
	LoanTermsRequest
}

type UpdateLoanRequest struct {
	PrincipalAmount  *decimal.Decimal `json:"principal_amount,omitempty" validate:"omitempty,decimal_gt=0"`
	StartDate        string           `json:"start_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	FirstPaymentDate string           `json:"first_payment_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
}

type RecordPaymentRequest struct {
	Amount   decimal.Decimal `json:"amount" validate:"decimal_gte=0"`
	PaidDate string          `json:"paid_date" validate:"required,datetime=2006-01-02"`
	Notes    string          `json:"notes" validate:"max=500"`
}

type AllocatePaymentRequest struct {
	Amount   decimal.Decimal `json:"amount" validate:"required,decimal_gt=0"`
	PaidDate string          `json:"paid_date" validate:"required,datetime=2006-01-02"`
	Notes    string          `json:"notes" validate:"max=500"`
}

type ForecloseLoanRequest struct {
	SettlementAmount *decimal.Decimal `json:"settlement_amount,omitempty" validate:"omitempty,decimal_gte=0"`
	ForeclosureDate  string           `json:"foreclosure_date" validate:"required,datetime=2006-01-02"`
}

type SettleLoanRequest struct {
	SettlementAmount decimal.Decimal `json:"settlement_amount" validate:"decimal_gte=0"`
	SettlementDate   string          `json:"settlement_date" validate:"required,datetime=2006-01-02"`
}

type ScheduleResponse struct {
	WeeklyAmount     decimal.Decimal `json:"weekly_amount"`
	TotalAmount      decimal.Decimal `json:"total_amount"`
	Interest         decimal.Decimal `json:"interest"`
	FirstPaymentDate string          `json:"first_payment_date"`
	Installments     []*Installment  `json:"installments"`
}

type BackfillResponse struct {
	LoanID   string `json:"loan_id"`
	Recorded int    `json:"recorded"`
}
