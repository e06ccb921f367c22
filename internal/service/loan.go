package service

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/segyhp/collection-ledger/internal/domain"
	"github.com/segyhp/collection-ledger/internal/repository"
	customError "github.com/segyhp/collection-ledger/pkg/errors"
	"github.com/segyhp/collection-ledger/pkg/utils"
)

// PreviewSchedule runs the schedule generator without persisting anything
func (s *LedgerService) PreviewSchedule(terms domain.LoanTerms) (*Schedule, error) {
	return GenerateSchedule(terms, s.settings)
}

// CreateLoan creates a loan for a borrower together with its full schedule
func (s *LedgerService) CreateLoan(ctx context.Context, userID, borrowerID uuid.UUID, terms domain.LoanTerms) (*domain.LoanWithInstallments, error) {
	// 1. Validate terms before touching the store
	schedule, err := GenerateSchedule(terms, s.settings)
	if err != nil {
		return nil, err
	}

	var result *domain.LoanWithInstallments
	err = s.mutate(ctx, func(tx repository.Store, out *outbox) error {
		// 2. Lock the borrower so loan numbers are assigned one at a time
		borrower, err := getBorrower(ctx, tx, borrowerID, true)
		if err != nil {
			return err
		}
		if borrower.UserID != userID {
			return customError.WrapBorrowerNotFound(borrowerID.String())
		}

		count, err := tx.Loans().CountByBorrower(ctx, borrowerID)
		if err != nil {
			return err
		}

		// 3. Persist the loan and its schedule
		loan := &domain.Loan{
			ID:                  uuid.New(),
			UserID:              userID,
			BorrowerID:          borrowerID,
			LoanNumber:          count + 1,
			PrincipalAmount:     terms.Principal,
			WeeklyRate:          schedule.WeeklyRate,
			WeeklyAmount:        schedule.WeeklyAmount,
			NumberOfWeeks:       schedule.NumberOfWeeks,
			TotalAmount:         schedule.TotalAmount,
			StartDate:           utils.TruncateToDate(terms.StartDate),
			FirstPaymentDueDate: schedule.FirstPaymentDate,
			CollectionDay:       int(schedule.CollectionDay),
			Status:              domain.LoanStatusActive,
		}
		if err := tx.Loans().Create(ctx, loan); err != nil {
			return err
		}

		schedule.BindTo(loan.ID)
		if err := tx.Installments().CreateBatch(ctx, schedule.Installments); err != nil {
			return err
		}

		// 4. Generate if missing
		if _, err := s.ensureSchedule(ctx, tx, loan); err != nil {
			return err
		}

		installments, err := tx.Installments().ListByLoan(ctx, loan.ID)
		if err != nil {
			return err
		}

		out.add(domain.EventLoanCreated, loan, loan.PrincipalAmount)
		result = withInstallments(loan, installments)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"loan_id":     result.Loan.ID,
		"borrower_id": borrowerID,
		"loan_number": result.Loan.LoanNumber,
		"principal":   result.Loan.PrincipalAmount.String(),
		"weeks":       result.Loan.NumberOfWeeks,
	}).Info("Loan created")

	return result, nil
}

// EnsureSchedule generates the schedule of a loan that has none. It reports
// how many installments were created, zero when the schedule already existed.
func (s *LedgerService) EnsureSchedule(ctx context.Context, loanID uuid.UUID) (*domain.LoanWithInstallments, int, error) {
	var (
		result  *domain.LoanWithInstallments
		created int
	)
	err := s.mutate(ctx, func(tx repository.Store, out *outbox) error {
		loan, err := getLoan(ctx, tx, loanID, true)
		if err != nil {
			return err
		}

		created, err = s.ensureSchedule(ctx, tx, loan)
		if err != nil {
			return err
		}

		installments, err := tx.Installments().ListByLoan(ctx, loan.ID)
		if err != nil {
			return err
		}
		result = withInstallments(loan, installments)
		return nil
	})
	if err != nil {
		return nil, 0, err
	}

	if created > 0 {
		s.log.WithFields(logrus.Fields{
			"loan_id": loanID,
			"created": created,
		}).Warn("Generated missing schedule")
	}

	return result, created, nil
}

func (s *LedgerService) ensureSchedule(ctx context.Context, tx repository.Store, loan *domain.Loan) (int, error) {
	existing, err := tx.Installments().ListByLoan(ctx, loan.ID)
	if err != nil {
		return 0, err
	}
	if len(existing) > 0 {
		return 0, nil
	}

	schedule, err := GenerateSchedule(termsOf(loan), s.settings)
	if err != nil {
		return 0, customError.WrapLedgerInconsistent("stored loan terms do not produce a schedule: " + err.Error())
	}
	for _, inst := range schedule.Installments {
		inst.AmountDue = loan.WeeklyAmount
	}

	schedule.BindTo(loan.ID)
	if err := tx.Installments().CreateBatch(ctx, schedule.Installments); err != nil {
		return 0, err
	}
	return len(schedule.Installments), nil
}

// UpdateLoanDetails edits principal and dates of an active loan. A principal
// change reprices the installments that are still owed; a date change re-walks
// every due date from the new anchor.
func (s *LedgerService) UpdateLoanDetails(ctx context.Context, loanID uuid.UUID, update domain.LoanDetailsUpdate) (*domain.LoanWithInstallments, error) {
	if update.PrincipalAmount == nil && update.StartDate == nil && update.FirstPaymentDate == nil {
		return nil, customError.WrapInvalidRequest("no loan details to update", nil)
	}
	if update.PrincipalAmount != nil && !update.PrincipalAmount.IsPositive() {
		return nil, customError.WrapInvalidLoanTerms("principal amount must be greater than zero")
	}

	var result *domain.LoanWithInstallments
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
		changed := make(map[uuid.UUID]bool)

		if update.PrincipalAmount != nil {
			loan.PrincipalAmount = *update.PrincipalAmount
			loan.WeeklyAmount = utils.CalculateWeeklyAmount(loan.PrincipalAmount, loan.WeeklyRate, s.settings.CurrencyPrecision)
			loan.TotalAmount = utils.CalculateTotalAmount(loan.WeeklyAmount, loan.NumberOfWeeks)

			for _, inst := range installments {
				if !inst.IsOutstanding() {
					continue
				}
				inst.AmountDue = loan.WeeklyAmount
				inst.RecomputeStatus()
				changed[inst.ID] = true
			}
		}

		if update.StartDate != nil {
			loan.StartDate = utils.TruncateToDate(*update.StartDate)
		}

		var anchor *time.Time
		switch {
		case update.FirstPaymentDate != nil:
			first := utils.TruncateToDate(*update.FirstPaymentDate)
			anchor = &first
		case update.StartDate != nil:
			first := utils.NextCollectionDay(loan.StartDate, time.Weekday(loan.CollectionDay))
			anchor = &first
		}

		if anchor != nil {
			loan.FirstPaymentDueDate = *anchor
			if len(installments) > 0 {
				dueDates, err := utils.WeeklyDueDates(*anchor, len(installments))
				if err != nil {
					return customError.WrapInvalidLoanTerms(err.Error())
				}
				for _, inst := range installments {
					if inst.WeekNumber < 1 || inst.WeekNumber > len(dueDates) {
						return customError.WrapLedgerInconsistent("loan " + loan.ID.String() + " has a gap in its week numbers")
					}
					inst.DueDate = dueDates[inst.WeekNumber-1]
					changed[inst.ID] = true
				}
			}
		}

		for _, inst := range installments {
			if changed[inst.ID] {
				if err := tx.Installments().Update(ctx, inst); err != nil {
					return err
				}
			}
		}
		if err := tx.Loans().Update(ctx, loan); err != nil {
			return err
		}

		if _, err := s.ensureSchedule(ctx, tx, loan); err != nil {
			return err
		}
		if _, err := s.evaluateLoan(ctx, tx, loan, out); err != nil {
			return err
		}

		installments, err = tx.Installments().ListByLoan(ctx, loan.ID)
		if err != nil {
			return err
		}

		out.add(domain.EventLoanUpdated, loan, loan.PrincipalAmount)
		result = withInstallments(loan, installments)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"loan_id":       loanID,
		"weekly_amount": result.Loan.WeeklyAmount.String(),
		"first_due":     result.Loan.FirstPaymentDueDate.Format(utils.DateLayout),
	}).Info("Loan details updated")

	return result, nil
}

// GetLoanWithInstallments returns a loan and its schedule ordered by week
func (s *LedgerService) GetLoanWithInstallments(ctx context.Context, loanID uuid.UUID) (*domain.LoanWithInstallments, error) {
	loan, err := getLoan(ctx, s.store, loanID, false)
	if err != nil {
		return nil, storeError(err)
	}

	installments, err := s.store.Installments().ListByLoan(ctx, loan.ID)
	if err != nil {
		return nil, customError.WrapDatabaseError(err)
	}

	return withInstallments(loan, installments), nil
}

// ListUnpaidForLoan returns a loan's outstanding installments ordered by week
func (s *LedgerService) ListUnpaidForLoan(ctx context.Context, loanID uuid.UUID) ([]*domain.InstallmentDetail, error) {
	loan, err := getLoan(ctx, s.store, loanID, false)
	if err != nil {
		return nil, storeError(err)
	}

	installments, err := s.store.Installments().ListByLoan(ctx, loan.ID)
	if err != nil {
		return nil, customError.WrapDatabaseError(err)
	}

	today := s.today()
	details := make([]*domain.InstallmentDetail, 0, len(installments))
	for _, inst := range installments {
		if inst.IsOutstanding() {
			details = append(details, detailOf(inst, loan, nil, today))
		}
	}
	return details, nil
}

// ListUnpaidForBorrower returns the outstanding installments across a
// borrower's active loans, oldest obligation first
func (s *LedgerService) ListUnpaidForBorrower(ctx context.Context, borrowerID uuid.UUID) ([]*domain.InstallmentDetail, error) {
	borrower, err := getBorrower(ctx, s.store, borrowerID, false)
	if err != nil {
		return nil, storeError(err)
	}

	loans, err := s.store.Loans().List(ctx, repository.LoanFilter{
		BorrowerID: &borrowerID,
		Statuses:   []string{domain.LoanStatusActive},
	})
	if err != nil {
		return nil, customError.WrapDatabaseError(err)
	}

	installments, err := s.store.Installments().List(ctx, repository.InstallmentFilter{
		LoanIDs:  loanIDs(loans),
		Statuses: domain.OutstandingStatuses,
	})
	if err != nil {
		return nil, customError.WrapDatabaseError(err)
	}

	byID := indexLoans(loans)
	sortFIFO(installments, byID)

	today := s.today()
	details := make([]*domain.InstallmentDetail, 0, len(installments))
	for _, inst := range installments {
		details = append(details, detailOf(inst, byID[inst.LoanID], borrower, today))
	}
	return details, nil
}

// CreateBorrower registers a borrower under a field agent
func (s *LedgerService) CreateBorrower(ctx context.Context, userID uuid.UUID, name, area, phone, leaderTag string) (*domain.Borrower, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, customError.WrapInvalidRequest("borrower name is required", nil)
	}

	borrower := &domain.Borrower{
		ID:        uuid.New(),
		UserID:    userID,
		Name:      name,
		Area:      strings.TrimSpace(area),
		Phone:     strings.TrimSpace(phone),
		LeaderTag: strings.TrimSpace(leaderTag),
		IsActive:  true,
	}
	if err := s.store.Borrowers().Create(ctx, borrower); err != nil {
		return nil, customError.WrapDatabaseError(err)
	}

	s.log.WithFields(logrus.Fields{
		"borrower_id": borrower.ID,
		"user_id":     userID,
	}).Info("Borrower created")

	return borrower, nil
}

// GetBorrower returns one borrower
func (s *LedgerService) GetBorrower(ctx context.Context, borrowerID uuid.UUID) (*domain.Borrower, error) {
	borrower, err := getBorrower(ctx, s.store, borrowerID, false)
	if err != nil {
		return nil, storeError(err)
	}
	return borrower, nil
}

// ListBorrowers returns a field agent's borrowers ordered by name
func (s *LedgerService) ListBorrowers(ctx context.Context, userID uuid.UUID) ([]*domain.Borrower, error) {
	borrowers, err := s.store.Borrowers().ListByUser(ctx, userID)
	if err != nil {
		return nil, customError.WrapDatabaseError(err)
	}
	return borrowers, nil
}

func withInstallments(loan *domain.Loan, installments []*domain.Installment) *domain.LoanWithInstallments {
	paid := totalPaid(installments)
	balance := loan.TotalAmount.Sub(paid)
	if balance.IsNegative() {
		balance = decimal.Zero
	}
	return &domain.LoanWithInstallments{
		Loan:         loan,
		Installments: installments,
		TotalPaid:    paid,
		Balance:      balance,
	}
}

func totalPaid(installments []*domain.Installment) decimal.Decimal {
	sum := decimal.Zero
	for _, inst := range installments {
		sum = sum.Add(inst.AmountPaid)
	}
	return sum
}

func loanIDs(loans []*domain.Loan) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(loans))
	for _, l := range loans {
		ids = append(ids, l.ID)
	}
	return ids
}

func indexLoans(loans []*domain.Loan) map[uuid.UUID]*domain.Loan {
	byID := make(map[uuid.UUID]*domain.Loan, len(loans))
	for _, l := range loans {
		byID[l.ID] = l
	}
	return byID
}

// sortFIFO orders installments oldest obligation first. Ties on due date fall
// back to week number, then loan number, then id, so the order never depends
// on how the store returned them.
func sortFIFO(installments []*domain.Installment, loans map[uuid.UUID]*domain.Loan) {
	sort.SliceStable(installments, func(i, j int) bool {
		a, b := installments[i], installments[j]
		if !a.DueDate.Equal(b.DueDate) {
			return a.DueDate.Before(b.DueDate)
		}
		if a.WeekNumber != b.WeekNumber {
			return a.WeekNumber < b.WeekNumber
		}
		la, lb := loanNumber(loans, a.LoanID), loanNumber(loans, b.LoanID)
		if la != lb {
			return la < lb
		}
		return a.ID.String() < b.ID.String()
	})
}

func loanNumber(loans map[uuid.UUID]*domain.Loan, id uuid.UUID) int {
	if l, ok := loans[id]; ok {
		return l.LoanNumber
	}
	return 0
}

func detailOf(inst *domain.Installment, loan *domain.Loan, borrower *domain.Borrower, today time.Time) *domain.InstallmentDetail {
	d := &domain.InstallmentDetail{
		Installment: *inst,
		Overdue:     inst.IsOverdue(today),
	}
	if loan != nil {
		d.LoanNumber = loan.LoanNumber
		d.LoanStatus = loan.Status
		d.BorrowerID = loan.BorrowerID
	}
	if borrower != nil {
		d.BorrowerName = borrower.Name
	}
	return d
}
