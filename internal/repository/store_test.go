package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/segyhp/collection-ledger/internal/domain"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

type fixture struct {
	userID   uuid.UUID
	borrower *domain.Borrower
	loan     *domain.Loan
	schedule []*domain.Installment
}

func seed(t *testing.T, store Store, loanNumber int) *fixture {
	t.Helper()
	ctx := context.Background()

	f := &fixture{userID: uuid.New()}
	f.borrower = &domain.Borrower{ID: uuid.New(), UserID: f.userID, Name: "Lakshmi", Area: "North", IsActive: true}
	require.NoError(t, store.Borrowers().Create(ctx, f.borrower))

	f.loan = newLoan(f.userID, f.borrower.ID, loanNumber)
	require.NoError(t, store.Loans().Create(ctx, f.loan))

	f.schedule = newSchedule(f.loan, 4)
	require.NoError(t, store.Installments().CreateBatch(ctx, f.schedule))
	return f
}

func newLoan(userID, borrowerID uuid.UUID, number int) *domain.Loan {
	return &domain.Loan{
		ID:                  uuid.New(),
		UserID:              userID,
		BorrowerID:          borrowerID,
		LoanNumber:          number,
		PrincipalAmount:     decimal.NewFromInt(2000),
		WeeklyRate:          decimal.RequireFromString("0.05"),
		WeeklyAmount:        decimal.NewFromInt(100),
		NumberOfWeeks:       4,
		TotalAmount:         decimal.NewFromInt(400),
		StartDate:           date(2024, 1, 1),
		FirstPaymentDueDate: date(2024, 1, 7),
		CollectionDay:       0,
		Status:              domain.LoanStatusActive,
	}
}

func newSchedule(loan *domain.Loan, weeks int) []*domain.Installment {
	out := make([]*domain.Installment, 0, weeks)
	for w := 1; w <= weeks; w++ {
		out = append(out, &domain.Installment{
			ID:         uuid.New(),
			LoanID:     loan.ID,
			WeekNumber: w,
			DueDate:    loan.FirstPaymentDueDate.AddDate(0, 0, 7*(w-1)),
			AmountDue:  loan.WeeklyAmount,
			AmountPaid: decimal.Zero,
			Status:     domain.InstallmentStatusPending,
		})
	}
	return out
}

// runStoreSuite exercises the Store contract against any implementation
func runStoreSuite(t *testing.T, newStore func(t *testing.T) Store) {
	t.Run("borrower round trip", func(t *testing.T) {
		store := newStore(t)
		f := seed(t, store, 1)

		got, err := store.Borrowers().GetByID(context.Background(), f.borrower.ID)
		require.NoError(t, err)
		assert.Equal(t, "Lakshmi", got.Name)
		assert.Equal(t, f.userID, got.UserID)

		list, err := store.Borrowers().ListByUser(context.Background(), f.userID)
		require.NoError(t, err)
		assert.Len(t, list, 1)

		_, err = store.Borrowers().GetByID(context.Background(), uuid.New())
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("loan round trip and update", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()
		f := seed(t, store, 1)

		got, err := store.Loans().GetByID(ctx, f.loan.ID)
		require.NoError(t, err)
		assert.True(t, got.PrincipalAmount.Equal(decimal.NewFromInt(2000)))
		assert.True(t, got.StartDate.Equal(date(2024, 1, 1)))
		assert.False(t, got.ForeclosureSettlementAmount.Valid)

		foreclosed := date(2024, 1, 20)
		got.Status = domain.LoanStatusForeclosed
		got.ForeclosureDate = &foreclosed
		got.ForeclosureSettlementAmount = decimal.NewNullDecimal(decimal.NewFromInt(150))
		require.NoError(t, store.Loans().Update(ctx, got))

		reloaded, err := store.Loans().GetByID(ctx, f.loan.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.LoanStatusForeclosed, reloaded.Status)
		require.NotNil(t, reloaded.ForeclosureDate)
		assert.True(t, reloaded.ForeclosureDate.Equal(foreclosed))
		assert.True(t, reloaded.ForeclosureSettlementAmount.Decimal.Equal(decimal.NewFromInt(150)))

		missing := newLoan(f.userID, f.borrower.ID, 9)
		assert.ErrorIs(t, store.Loans().Update(ctx, missing), ErrNotFound)
	})

	t.Run("loan listing filters", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()
		f := seed(t, store, 1)

		closed := newLoan(f.userID, f.borrower.ID, 2)
		closed.Status = domain.LoanStatusClosed
		require.NoError(t, store.Loans().Create(ctx, closed))

		other := seed(t, store, 1)

		all, err := store.Loans().List(ctx, LoanFilter{UserID: &f.userID})
		require.NoError(t, err)
		require.Len(t, all, 2)
		assert.Equal(t, 1, all[0].LoanNumber)
		assert.Equal(t, 2, all[1].LoanNumber)

		active, err := store.Loans().List(ctx, LoanFilter{UserID: &f.userID, Statuses: []string{domain.LoanStatusActive}})
		require.NoError(t, err)
		require.Len(t, active, 1)
		assert.Equal(t, f.loan.ID, active[0].ID)

		notClosed, err := store.Loans().List(ctx, LoanFilter{BorrowerID: &f.borrower.ID, ExcludeStatuses: []string{domain.LoanStatusClosed}})
		require.NoError(t, err)
		require.Len(t, notClosed, 1)

		count, err := store.Loans().CountByBorrower(ctx, f.borrower.ID)
		require.NoError(t, err)
		assert.Equal(t, 2, count)

		users, err := store.Loans().ListUserIDsWithActiveLoans(ctx)
		require.NoError(t, err)
		assert.ElementsMatch(t, []uuid.UUID{f.userID, other.userID}, users)
	})

	t.Run("installment listing filters", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()
		f := seed(t, store, 1)

		byLoan, err := store.Installments().ListByLoan(ctx, f.loan.ID)
		require.NoError(t, err)
		require.Len(t, byLoan, 4)
		for i, inst := range byLoan {
			assert.Equal(t, i+1, inst.WeekNumber)
		}

		paid := byLoan[1]
		paidOn := date(2024, 1, 16)
		paid.AmountPaid = paid.AmountDue
		paid.PaidDate = &paidOn
		paid.Status = domain.InstallmentStatusPaid
		paid.Notes = "collected late"
		require.NoError(t, store.Installments().Update(ctx, paid))

		due, err := store.Installments().List(ctx, InstallmentFilter{
			LoanIDs: []uuid.UUID{f.loan.ID},
			DueFrom: ptr(date(2024, 1, 7)),
			DueTo:   ptr(date(2024, 1, 14)),
		})
		require.NoError(t, err)
		require.Len(t, due, 2)
		assert.Equal(t, 1, due[0].WeekNumber)
		assert.Equal(t, 2, due[1].WeekNumber)

		outstanding, err := store.Installments().List(ctx, InstallmentFilter{
			LoanIDs:  []uuid.UUID{f.loan.ID},
			Statuses: domain.OutstandingStatuses,
		})
		require.NoError(t, err)
		assert.Len(t, outstanding, 3)

		collected, err := store.Installments().List(ctx, InstallmentFilter{
			LoanIDs:  []uuid.UUID{f.loan.ID},
			PaidFrom: ptr(date(2024, 1, 15)),
			PaidTo:   ptr(date(2024, 1, 21)),
		})
		require.NoError(t, err)
		require.Len(t, collected, 1)
		assert.Equal(t, "collected late", collected[0].Notes)
		assert.True(t, collected[0].AmountPaid.Equal(decimal.NewFromInt(100)))

		none, err := store.Installments().List(ctx, InstallmentFilter{LoanIDs: []uuid.UUID{}})
		require.NoError(t, err)
		assert.Empty(t, none)
	})

	t.Run("transaction rolls back on error", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()
		f := seed(t, store, 1)

		boom := errors.New("boom")
		err := store.WithTx(ctx, func(tx Store) error {
			loan, err := tx.Loans().GetForUpdate(ctx, f.loan.ID)
			if err != nil {
				return err
			}
			loan.Status = domain.LoanStatusClosed
			if err := tx.Loans().Update(ctx, loan); err != nil {
				return err
			}
			return boom
		})
		assert.ErrorIs(t, err, boom)

		loan, err := store.Loans().GetByID(ctx, f.loan.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.LoanStatusActive, loan.Status)
	})

	t.Run("transaction commits on success", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()
		f := seed(t, store, 1)

		err := store.WithTx(ctx, func(tx Store) error {
			loan, err := tx.Loans().GetForUpdate(ctx, f.loan.ID)
			if err != nil {
				return err
			}
			loan.Status = domain.LoanStatusClosed
			return tx.Loans().Update(ctx, loan)
		})
		require.NoError(t, err)

		loan, err := store.Loans().GetByID(ctx, f.loan.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.LoanStatusClosed, loan.Status)
	})
}

func ptr[T any](v T) *T {
	return &v
}
