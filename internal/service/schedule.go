package service

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/segyhp/collection-ledger/internal/domain"
	customError "github.com/segyhp/collection-ledger/pkg/errors"
	"github.com/segyhp/collection-ledger/pkg/utils"
)

// Schedule is a generated repayment plan. Its installments carry no loan id
// until BindTo is called.
type Schedule struct {
	WeeklyRate       decimal.Decimal
	WeeklyAmount     decimal.Decimal
	TotalAmount      decimal.Decimal
	NumberOfWeeks    int
	CollectionDay    time.Weekday
	FirstPaymentDate time.Time
	Installments     []*domain.Installment
}

// Interest is the flat interest the schedule collects over its term
func (s *Schedule) Interest(principal decimal.Decimal) decimal.Decimal {
	return s.TotalAmount.Sub(principal)
}

// BindTo assigns every installment to the loan
func (s *Schedule) BindTo(loanID uuid.UUID) {
	for _, inst := range s.Installments {
		inst.LoanID = loanID
	}
}

// GenerateSchedule turns loan terms into weekly installments. It has no side
// effects; missing rate, term and collection day come from settings.
//
// Week 1 falls on the first payment date when given, otherwise on the next
// collection day strictly after the start date. Every later week is 7 days on.
func GenerateSchedule(terms domain.LoanTerms, settings domain.LedgerSettings) (*Schedule, error) {
	if !terms.Principal.IsPositive() {
		return nil, customError.WrapInvalidLoanTerms("principal amount must be greater than zero")
	}
	if terms.StartDate.IsZero() {
		return nil, customError.WrapInvalidLoanTerms("start date is required")
	}

	weeks := settings.DefaultWeeks
	if terms.NumberOfWeeks != nil {
		weeks = *terms.NumberOfWeeks
	}
	if weeks <= 0 {
		return nil, customError.WrapInvalidLoanTerms("number of weeks must be greater than zero")
	}

	rate := terms.WeeklyRate
	if rate.IsZero() {
		rate = settings.WeeklyRate
	}
	if !rate.IsPositive() {
		return nil, customError.WrapInvalidLoanTerms("weekly rate must be greater than zero")
	}

	collectionDay := settings.CollectionDay
	if terms.CollectionDay != nil {
		if *terms.CollectionDay < 0 || *terms.CollectionDay > 6 {
			return nil, customError.WrapInvalidLoanTerms("collection day must be between 0 (Sunday) and 6 (Saturday)")
		}
		collectionDay = time.Weekday(*terms.CollectionDay)
	}

	firstPayment := utils.NextCollectionDay(terms.StartDate, collectionDay)
	if terms.FirstPaymentDate != nil && !terms.FirstPaymentDate.IsZero() {
		firstPayment = utils.TruncateToDate(*terms.FirstPaymentDate)
	}

	dueDates, err := utils.WeeklyDueDates(firstPayment, weeks)
	if err != nil {
		return nil, customError.WrapInvalidLoanTerms(err.Error())
	}

	weeklyAmount := utils.CalculateWeeklyAmount(terms.Principal, rate, settings.CurrencyPrecision)

	installments := make([]*domain.Installment, 0, weeks)
	for i, due := range dueDates {
		installments = append(installments, &domain.Installment{
			ID:         uuid.New(),
			WeekNumber: i + 1,
			DueDate:    due,
			AmountDue:  weeklyAmount,
			AmountPaid: decimal.Zero,
			Status:     domain.InstallmentStatusPending,
		})
	}

	return &Schedule{
		WeeklyRate:       rate,
		WeeklyAmount:     weeklyAmount,
		TotalAmount:      utils.CalculateTotalAmount(weeklyAmount, weeks),
		NumberOfWeeks:    weeks,
		CollectionDay:    collectionDay,
		FirstPaymentDate: firstPayment,
		Installments:     installments,
	}, nil
}

// termsOf rebuilds the generator input from a stored loan
func termsOf(loan *domain.Loan) domain.LoanTerms {
	first := loan.FirstPaymentDueDate
	day := loan.CollectionDay
	weeks := loan.NumberOfWeeks
	return domain.LoanTerms{
		Principal:        loan.PrincipalAmount,
		WeeklyRate:       loan.WeeklyRate,
		NumberOfWeeks:    &weeks,
		StartDate:        loan.StartDate,
		FirstPaymentDate: &first,
		CollectionDay:    &day,
	}
}
