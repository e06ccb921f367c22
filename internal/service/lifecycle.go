package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/segyhp/collection-ledger/internal/domain"
	"github.com/segyhp/collection-ledger/internal/repository"
	customError "github.com/segyhp/collection-ledger/pkg/errors"
	"github.com/segyhp/collection-ledger/pkg/utils"
)

const (
	noteForeclosed = "Loan foreclosed - closed as paid"
	noteSettlement = "Settle & close - settlement amount"
)

// evaluateLoan closes an active loan once every installment is paid. A loan
// without installments is never closed.
func (s *LedgerService) evaluateLoan(ctx context.Context, tx repository.Store, loan *domain.Loan, out *outbox) (bool, error) {
	if !loan.IsActive() {
		return false, nil
	}

	installments, err := tx.Installments().ListByLoan(ctx, loan.ID)
	if err != nil {
		return false, err
	}
	if len(installments) == 0 {
		return false, nil
	}
	for _, inst := range installments {
		if inst.Status != domain.InstallmentStatusPaid {
			return false, nil
		}
	}

	loan.Status = domain.LoanStatusClosed
	if err := tx.Loans().Update(ctx, loan); err != nil {
		return false, err
	}

	out.add(domain.EventLoanClosed, loan, totalPaid(installments))
	s.log.WithFields(logrus.Fields{
		"loan_id":     loan.ID,
		"borrower_id": loan.BorrowerID,
	}).Info("Loan fully paid, closed")

	return true, nil
}

// ForecloseLoan ends an active loan early. Every outstanding installment is
// written off as collected in full on the foreclosure date. The settlement
// amount is kept on the loan for reference only.
func (s *LedgerService) ForecloseLoan(ctx context.Context, loanID uuid.UUID, settlementAmount *decimal.Decimal, foreclosureDate time.Time) (*domain.Loan, error) {
	if settlementAmount != nil && settlementAmount.IsNegative() {
		return nil, customError.WrapInvalidPaymentAmount(settlementAmount.String())
	}
	date := utils.TruncateToDate(foreclosureDate)

	var (
		result  *domain.Loan
		cleared int
	)
	err := s.mutate(ctx, func(tx repository.Store, out *outbox) error {
		loan, err := getLoan(ctx, tx, loanID, true)
		if err != nil {
			return err
		}
		if !loan.IsActive() {
			return customError.WrapLoanNotActive(loan.ID.String(), loan.Status)
		}

		installments, err := tx.Installments().ListByLoan(ctx, loan.ID)
		if err != nil {
			return err
		}

		for _, inst := range installments {
			if !inst.IsOutstanding() {
				continue
			}
			inst.AmountPaid = inst.AmountDue
			inst.PaidDate = &date
			inst.Status = domain.InstallmentStatusPaid
			inst.Notes = noteForeclosed
			if err := tx.Installments().Update(ctx, inst); err != nil {
				return err
			}
			cleared++
		}

		loan.Status = domain.LoanStatusForeclosed
		loan.ForeclosureDate = &date
		loan.ForeclosureSettlementAmount = decimal.NullDecimal{}
		amount := decimal.Zero
		if settlementAmount != nil {
			loan.ForeclosureSettlementAmount = decimal.NewNullDecimal(*settlementAmount)
			amount = *settlementAmount
		}
		if err := tx.Loans().Update(ctx, loan); err != nil {
			return err
		}

		out.add(domain.EventLoanForeclosed, loan, amount)
		result = loan
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"loan_id":          loanID,
		"foreclosure_date": date.Format(utils.DateLayout),
		"cleared":          cleared,
	}).Info("Loan foreclosed")

	return result, nil
}

// SettleAndCloseLoan ends an active loan with one real collection. The
// settlement is recorded on the oldest outstanding installment; every other
// outstanding installment is written off without counting as collected.
func (s *LedgerService) SettleAndCloseLoan(ctx context.Context, loanID uuid.UUID, settlementAmount decimal.Decimal, settlementDate time.Time) (*domain.Loan, error) {
	if settlementAmount.IsNegative() {
		return nil, customError.WrapInvalidPaymentAmount(settlementAmount.String())
	}
	date := utils.TruncateToDate(settlementDate)

	var (
		result     *domain.Loan
		writtenOff int
	)
	err := s.mutate(ctx, func(tx repository.Store, out *outbox) error {
		loan, err := getLoan(ctx, tx, loanID, true)
		if err != nil {
			return err
		}
		if !loan.IsActive() {
			return customError.WrapLoanNotActive(loan.ID.String(), loan.Status)
		}

		installments, err := tx.Installments().ListByLoan(ctx, loan.ID)
		if err != nil {
			return err
		}

		settled := false
		for _, inst := range installments {
			if !inst.IsOutstanding() {
				continue
			}
			if !settled {
				inst.AmountPaid = settlementAmount
				inst.PaidDate = &date
				inst.Status = domain.InstallmentStatusPaid
				inst.Notes = noteSettlement
				settled = true
			} else {
				inst.Status = domain.InstallmentStatusForeclosed
				writtenOff++
			}
			if err := tx.Installments().Update(ctx, inst); err != nil {
				return err
			}
		}

		loan.Status = domain.LoanStatusForeclosed
		loan.ForeclosureDate = &date
		loan.ForeclosureSettlementAmount = decimal.NewNullDecimal(settlementAmount)
		if err := tx.Loans().Update(ctx, loan); err != nil {
			return err
		}

		out.add(domain.EventLoanSettled, loan, settlementAmount)
		result = loan
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"loan_id":     loanID,
		"settlement":  settlementAmount.String(),
		"written_off": writtenOff,
	}).Info("Loan settled and closed")

	return result, nil
}
