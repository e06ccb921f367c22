package service

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/segyhp/collection-ledger/internal/cache"
	"github.com/segyhp/collection-ledger/internal/domain"
	"github.com/segyhp/collection-ledger/internal/repository"
	customError "github.com/segyhp/collection-ledger/pkg/errors"
	"github.com/segyhp/collection-ledger/pkg/utils"
)

// ReportService answers the read-side questions over a field agent's book.
// It never writes to the ledger.
type ReportService struct {
	store     repository.Store
	cache     Cache
	cacheTTL  time.Duration
	precision int32
	log       *logrus.Logger
	now       func() time.Time
}

func NewReportService(store repository.Store, cache Cache, cacheTTL time.Duration, settings domain.LedgerSettings, log *logrus.Logger) *ReportService {
	return &ReportService{
		store:     store,
		cache:     cache,
		cacheTTL:  cacheTTL,
		precision: settings.CurrencyPrecision,
		log:       log,
		now:       time.Now,
	}
}

func (s *ReportService) today() time.Time {
	return utils.TruncateToDate(s.now())
}

// DueInRange lists installments due within [start, end]. Only active loans
// count unless includeInactive is set and the range covers today, so past
// weeks are not filled with loans that closed later.
func (s *ReportService) DueInRange(ctx context.Context, userID uuid.UUID, start, end time.Time, includeInactive bool) ([]*domain.InstallmentDetail, error) {
	start, end = utils.TruncateToDate(start), utils.TruncateToDate(end)
	if end.Before(start) {
		return nil, customError.WrapInvalidRequest("end date is before start date", nil)
	}

	filter := repository.LoanFilter{UserID: &userID, Statuses: []string{domain.LoanStatusActive}}
	if includeInactive && utils.InRange(s.today(), start, end) {
		filter.Statuses = nil
	}

	return s.listInstallments(ctx, userID, filter, repository.InstallmentFilter{DueFrom: &start, DueTo: &end})
}

// OverdueAsOf lists unpaid installments due on or before asOf across every
// loan that has not been foreclosed
func (s *ReportService) OverdueAsOf(ctx context.Context, userID uuid.UUID, asOf time.Time) ([]*domain.InstallmentDetail, error) {
	asOf = utils.TruncateToDate(asOf)

	return s.listInstallments(ctx, userID,
		repository.LoanFilter{UserID: &userID, ExcludeStatuses: []string{domain.LoanStatusForeclosed}},
		repository.InstallmentFilter{Statuses: domain.OutstandingStatuses, DueTo: &asOf},
	)
}

// CollectedInRange lists installments whose payment was recorded within
// [start, end], whatever their due date, ordered by payment date
func (s *ReportService) CollectedInRange(ctx context.Context, userID uuid.UUID, start, end time.Time) ([]*domain.InstallmentDetail, error) {
	start, end = utils.TruncateToDate(start), utils.TruncateToDate(end)
	if end.Before(start) {
		return nil, customError.WrapInvalidRequest("end date is before start date", nil)
	}

	details, err := s.listInstallments(ctx, userID,
		repository.LoanFilter{UserID: &userID},
		repository.InstallmentFilter{PaidFrom: &start, PaidTo: &end},
	)
	if err != nil {
		return nil, err
	}

	sort.SliceStable(details, func(i, j int) bool {
		return details[i].PaidDate.Before(*details[j].PaidDate)
	})
	return details, nil
}

func (s *ReportService) listInstallments(ctx context.Context, userID uuid.UUID, loanFilter repository.LoanFilter, filter repository.InstallmentFilter) ([]*domain.InstallmentDetail, error) {
	loans, err := s.store.Loans().List(ctx, loanFilter)
	if err != nil {
		return nil, customError.WrapDatabaseError(err)
	}

	filter.LoanIDs = loanIDs(loans)
	installments, err := s.store.Installments().List(ctx, filter)
	if err != nil {
		return nil, customError.WrapDatabaseError(err)
	}

	borrowers, err := s.store.Borrowers().ListByUser(ctx, userID)
	if err != nil {
		return nil, customError.WrapDatabaseError(err)
	}
	names := make(map[uuid.UUID]*domain.Borrower, len(borrowers))
	for _, b := range borrowers {
		names[b.ID] = b
	}

	byID := indexLoans(loans)
	sortFIFO(installments, byID)

	today := s.today()
	details := make([]*domain.InstallmentDetail, 0, len(installments))
	for _, inst := range installments {
		loan := byID[inst.LoanID]
		details = append(details, detailOf(inst, loan, names[loan.BorrowerID], today))
	}
	return details, nil
}

// InterestEarned splits a field agent's realised interest by loan status
func (s *ReportService) InterestEarned(ctx context.Context, userID uuid.UUID) (domain.InterestEarned, error) {
	positions, _, err := s.positions(ctx, userID)
	if err != nil {
		return domain.InterestEarned{}, err
	}
	return ComputeInterestEarned(positions, s.precision), nil
}

// positions loads every loan of a field agent with the amount recorded against it
func (s *ReportService) positions(ctx context.Context, userID uuid.UUID) ([]domain.LoanPosition, []*domain.Installment, error) {
	loans, err := s.store.Loans().List(ctx, repository.LoanFilter{UserID: &userID})
	if err != nil {
		return nil, nil, customError.WrapDatabaseError(err)
	}

	installments, err := s.store.Installments().List(ctx, repository.InstallmentFilter{LoanIDs: loanIDs(loans)})
	if err != nil {
		return nil, nil, customError.WrapDatabaseError(err)
	}

	paid := make(map[uuid.UUID]decimal.Decimal, len(loans))
	for _, inst := range installments {
		paid[inst.LoanID] = paid[inst.LoanID].Add(inst.AmountPaid)
	}

	positions := make([]domain.LoanPosition, 0, len(loans))
	for _, loan := range loans {
		positions = append(positions, domain.LoanPosition{Loan: loan, TotalPaid: paid[loan.ID]})
	}
	return positions, installments, nil
}

// ComputeInterestEarned applies the flat interest rules. A closed loan has
// earned all of its interest. An active or foreclosed loan has earned the
// interest share of what was collected, in the loan's fixed
// principal to interest ratio, never below zero.
func ComputeInterestEarned(positions []domain.LoanPosition, precision int32) domain.InterestEarned {
	earned := domain.InterestEarned{
		Closed:     decimal.Zero,
		Active:     decimal.Zero,
		Foreclosed: decimal.Zero,
	}

	for _, p := range positions {
		loan := p.Loan
		switch loan.Status {
		case domain.LoanStatusClosed:
			earned.Closed = earned.Closed.Add(loan.Interest())
		case domain.LoanStatusActive:
			earned.Active = earned.Active.Add(proRataInterest(loan, p.TotalPaid))
		case domain.LoanStatusForeclosed:
			earned.Foreclosed = earned.Foreclosed.Add(proRataInterest(loan, p.TotalPaid))
		}
	}

	earned.Closed = earned.Closed.Round(precision)
	earned.Active = earned.Active.Round(precision)
	earned.Foreclosed = earned.Foreclosed.Round(precision)
	earned.Total = earned.Closed.Add(earned.Active).Add(earned.Foreclosed)
	return earned
}

func proRataInterest(loan *domain.Loan, paid decimal.Decimal) decimal.Decimal {
	if !loan.TotalAmount.IsPositive() || !paid.IsPositive() {
		return decimal.Zero
	}
	principalPortion := loan.PrincipalAmount.Mul(paid).Div(loan.TotalAmount)
	interest := paid.Sub(principalPortion)
	if interest.IsNegative() {
		return decimal.Zero
	}
	return interest
}

// PortfolioSummary returns the dashboard figures for a field agent. Today's
// summary is served from cache when present.
func (s *ReportService) PortfolioSummary(ctx context.Context, userID uuid.UUID, asOf time.Time) (*domain.PortfolioSummary, error) {
	asOf = utils.TruncateToDate(asOf)
	if s.cache == nil || !asOf.Equal(s.today()) {
		return s.buildSummary(ctx, userID, asOf)
	}

	key := cache.SummaryKey(userID, summaryVersion(ctx, s.cache, userID))
	return cache.GetOrSet(ctx, s.cache, key, s.cacheTTL, func() (*domain.PortfolioSummary, error) {
		return s.buildSummary(ctx, userID, asOf)
	})
}

// RefreshSummary rebuilds today's summary and stores it in cache
func (s *ReportService) RefreshSummary(ctx context.Context, userID uuid.UUID) (*domain.PortfolioSummary, error) {
	// The generation is read before building so a write that lands meanwhile wins
	var key string
	if s.cache != nil {
		key = cache.SummaryKey(userID, summaryVersion(ctx, s.cache, userID))
	}

	summary, err := s.buildSummary(ctx, userID, s.today())
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, summary, s.cacheTTL); err != nil {
			s.log.WithError(customError.WrapCacheError(err)).Warn("Failed to cache portfolio summary")
		}
	}
	return summary, nil
}

// UsersWithActiveLoans lists the field agents that still carry active loans
func (s *ReportService) UsersWithActiveLoans(ctx context.Context) ([]uuid.UUID, error) {
	ids, err := s.store.Loans().ListUserIDsWithActiveLoans(ctx)
	if err != nil {
		return nil, customError.WrapDatabaseError(err)
	}
	return ids, nil
}

func (s *ReportService) buildSummary(ctx context.Context, userID uuid.UUID, asOf time.Time) (*domain.PortfolioSummary, error) {
	positions, installments, err := s.positions(ctx, userID)
	if err != nil {
		return nil, err
	}

	summary := &domain.PortfolioSummary{
		UserID:                  userID,
		AsOf:                    asOf,
		TotalPrincipalDisbursed: decimal.Zero,
		ActivePrincipal:         decimal.Zero,
		TotalExpected:           decimal.Zero,
		TotalCollected:          decimal.Zero,
		OverdueAmount:           decimal.Zero,
		PotentialInterest:       decimal.Zero,
	}

	statusOf := make(map[uuid.UUID]string, len(positions))
	for _, p := range positions {
		loan := p.Loan
		statusOf[loan.ID] = loan.Status
		summary.TotalPrincipalDisbursed = summary.TotalPrincipalDisbursed.Add(loan.PrincipalAmount)

		switch loan.Status {
		case domain.LoanStatusActive:
			summary.ActiveLoans++
			summary.ActivePrincipal = summary.ActivePrincipal.Add(loan.PrincipalAmount)
			summary.TotalExpected = summary.TotalExpected.Add(loan.TotalAmount)
			summary.TotalCollected = summary.TotalCollected.Add(p.TotalPaid)
			summary.PotentialInterest = summary.PotentialInterest.Add(loan.Interest())
		case domain.LoanStatusClosed:
			summary.ClosedLoans++
		case domain.LoanStatusForeclosed:
			summary.ForeclosedLoans++
		}
	}

	summary.Outstanding = summary.TotalExpected.Sub(summary.TotalCollected)
	if summary.Outstanding.IsNegative() {
		summary.Outstanding = decimal.Zero
	}
	summary.CollectionRate = utils.Percentage(summary.TotalCollected, summary.TotalExpected).Round(2)

	overdueLoans := make(map[uuid.UUID]bool)
	for _, inst := range installments {
		if statusOf[inst.LoanID] == domain.LoanStatusForeclosed {
			continue
		}
		if !inst.IsOutstanding() || inst.DueDate.After(asOf) {
			continue
		}
		summary.OverdueAmount = summary.OverdueAmount.Add(inst.Owed())
		summary.OverdueInstallments++
		overdueLoans[inst.LoanID] = true
	}
	summary.OverdueLoans = len(overdueLoans)

	summary.InterestEarned = ComputeInterestEarned(positions, s.precision)
	summary.PotentialInterest = summary.PotentialInterest.Round(s.precision)

	return summary, nil
}
