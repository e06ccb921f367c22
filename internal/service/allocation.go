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

const noteBackfill = "Mass backfill - actual due date"

// RecordSingleInstallment sets what was collected for one installment. The
// amount replaces any earlier figure rather than adding to it, so repeating
// the call with the same input leaves the same state.
func (s *LedgerService) RecordSingleInstallment(ctx context.Context, installmentID uuid.UUID, amount decimal.Decimal, paidDate time.Time, notes string) (*domain.Installment, error) {
	if amount.IsNegative() {
		return nil, customError.WrapInvalidPaymentAmount(amount.String())
	}
	date := utils.TruncateToDate(paidDate)

	var result *domain.Installment
	err := s.mutate(ctx, func(tx repository.Store, out *outbox) error {
		inst, loan, err := getInstallmentLoan(ctx, tx, installmentID)
		if err != nil {
			return err
		}
		if !loan.IsActive() {
			return customError.WrapLoanNotActive(loan.ID.String(), loan.Status)
		}
		if inst.Status == domain.InstallmentStatusForeclosed {
			return customError.WrapInstallmentWrittenOff(inst.ID.String())
		}

		inst.AmountPaid = amount
		inst.PaidDate = &date
		if amount.IsZero() {
			inst.PaidDate = nil
		}
		inst.Notes = notes
		inst.RecomputeStatus()
		if err := tx.Installments().Update(ctx, inst); err != nil {
			return err
		}

		out.add(domain.EventPaymentRecorded, loan, amount)
		if _, err := s.evaluateLoan(ctx, tx, loan, out); err != nil {
			return err
		}

		result = inst
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"installment_id": installmentID,
		"loan_id":        result.LoanID,
		"amount":         amount.String(),
		"status":         result.Status,
	}).Info("Installment payment recorded")

	return result, nil
}

// ResetInstallment reverses whatever was recorded against an installment. A
// loan that had closed is reopened; a foreclosed loan stays foreclosed.
func (s *LedgerService) ResetInstallment(ctx context.Context, installmentID uuid.UUID) (*domain.Installment, error) {
	var result *domain.Installment
	err := s.mutate(ctx, func(tx repository.Store, out *outbox) error {
		inst, loan, err := getInstallmentLoan(ctx, tx, installmentID)
		if err != nil {
			return err
		}

		reversed := inst.AmountPaid
		inst.AmountPaid = decimal.Zero
		inst.PaidDate = nil
		inst.Status = domain.InstallmentStatusPending
		inst.Notes = ""
		if err := tx.Installments().Update(ctx, inst); err != nil {
			return err
		}
		out.add(domain.EventPaymentReset, loan, reversed)

		if loan.Status == domain.LoanStatusClosed {
			loan.Status = domain.LoanStatusActive
			if err := tx.Loans().Update(ctx, loan); err != nil {
				return err
			}
			out.add(domain.EventLoanReopened, loan, reversed)
		}

		result = inst
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"installment_id": installmentID,
		"loan_id":        result.LoanID,
	}).Info("Installment payment reset")

	return result, nil
}

// AllocateFIFO spreads one collection from a borrower across the outstanding
// installments of all their active loans, oldest obligation first. Whatever
// is left once everything owed is paid comes back as overpayment.
func (s *LedgerService) AllocateFIFO(ctx context.Context, borrowerID uuid.UUID, amount decimal.Decimal, paidDate time.Time, notes string) (*domain.AllocationResult, error) {
	if !amount.IsPositive() {
		return nil, customError.WrapInvalidPaymentAmount(amount.String())
	}
	date := utils.TruncateToDate(paidDate)

	result := &domain.AllocationResult{Allocations: []domain.Allocation{}}
	err := s.mutate(ctx, func(tx repository.Store, out *outbox) error {
		// 1. Lock the borrower so concurrent collections queue up
		if _, err := getBorrower(ctx, tx, borrowerID, true); err != nil {
			return err
		}

		loans, err := tx.Loans().List(ctx, repository.LoanFilter{
			BorrowerID: &borrowerID,
			Statuses:   []string{domain.LoanStatusActive},
		})
		if err != nil {
			return err
		}

		// 2. Gather outstanding installments, oldest first
		installments, err := tx.Installments().List(ctx, repository.InstallmentFilter{
			LoanIDs:  loanIDs(loans),
			Statuses: domain.OutstandingStatuses,
		})
		if err != nil {
			return err
		}
		byID := indexLoans(loans)
		sortFIFO(installments, byID)

		// 3. Walk the list until the money runs out
		remaining := amount
		applied := make(map[uuid.UUID]decimal.Decimal)
		var touched []uuid.UUID
		for _, inst := range installments {
			if !remaining.IsPositive() {
				break
			}
			owed := inst.Owed()
			if !owed.IsPositive() {
				continue
			}

			portion := decimal.Min(remaining, owed)
			inst.AmountPaid = inst.AmountPaid.Add(portion)
			inst.PaidDate = &date
			inst.Notes = notes
			inst.RecomputeStatus()
			if err := tx.Installments().Update(ctx, inst); err != nil {
				return err
			}

			remaining = remaining.Sub(portion)
			if _, ok := applied[inst.LoanID]; !ok {
				touched = append(touched, inst.LoanID)
			}
			applied[inst.LoanID] = applied[inst.LoanID].Add(portion)

			result.Allocations = append(result.Allocations, domain.Allocation{
				InstallmentID:   inst.ID,
				LoanID:          inst.LoanID,
				WeekNumber:      inst.WeekNumber,
				AmountApplied:   portion,
				ResultingStatus: inst.Status,
			})
		}
		result.Overpayment = remaining

		// 4. Only loans that received money can have become fully paid
		for _, loanID := range touched {
			loan := byID[loanID]
			out.add(domain.EventPaymentAllocated, loan, applied[loanID])

			closed, err := s.evaluateLoan(ctx, tx, loan, out)
			if err != nil {
				return err
			}
			if closed {
				result.ClosedLoans = append(result.ClosedLoans, loanID)
			}
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	fields := logrus.Fields{
		"borrower_id": borrowerID,
		"amount":      amount.String(),
		"allocations": len(result.Allocations),
	}
	if len(result.Allocations) == 0 {
		s.log.WithFields(fields).Warn("No outstanding installments to allocate against")
	}
	if result.Overpayment.IsPositive() {
		fields["overpayment"] = result.Overpayment.String()
		s.log.WithFields(fields).Info("Overpayment recorded as prepayment")
	} else {
		s.log.WithFields(fields).Info("Payment allocated")
	}

	return result, nil
}

// RecordBulkPastPayments marks every outstanding installment due before
// today as paid in full on its own due date. It returns how many it recorded.
func (s *LedgerService) RecordBulkPastPayments(ctx context.Context, loanID uuid.UUID, today time.Time) (int, error) {
	cutoff := utils.TruncateToDate(today)

	recorded := 0
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

		total := decimal.Zero
		for _, inst := range installments {
			if !inst.IsOutstanding() || !inst.DueDate.Before(cutoff) {
				continue
			}
			due := inst.DueDate
			inst.AmountPaid = inst.AmountDue
			inst.PaidDate = &due
			inst.Notes = noteBackfill
			inst.RecomputeStatus()
			if err := tx.Installments().Update(ctx, inst); err != nil {
				return err
			}
			total = total.Add(inst.AmountDue)
			recorded++
		}

		if recorded == 0 {
			return nil
		}

		out.add(domain.EventPaymentRecorded, loan, total)
		_, err = s.evaluateLoan(ctx, tx, loan, out)
		return err
	})
	if err != nil {
		return 0, err
	}

	s.log.WithFields(logrus.Fields{
		"loan_id":  loanID,
		"recorded": recorded,
	}).Info("Past payments backfilled")

	return recorded, nil
}
