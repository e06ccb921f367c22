package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/segyhp/collection-ledger/internal/cache"
	"github.com/segyhp/collection-ledger/internal/domain"
	"github.com/segyhp/collection-ledger/internal/events"
	"github.com/segyhp/collection-ledger/internal/repository"
	customError "github.com/segyhp/collection-ledger/pkg/errors"
	"github.com/segyhp/collection-ledger/pkg/utils"
)

// Cache is the slice of the redis cache the services use
type Cache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// LedgerService owns every write to the ledger: schedule creation, payment
// allocation and loan lifecycle transitions.
type LedgerService struct {
	store     repository.Store
	settings  domain.LedgerSettings
	publisher events.Publisher
	cache     Cache
	log       *logrus.Logger
	now       func() time.Time
}

func NewLedgerService(
	store repository.Store,
	settings domain.LedgerSettings,
	publisher events.Publisher,
	cache Cache,
	log *logrus.Logger,
) *LedgerService {
	if publisher == nil {
		publisher = events.NewNoopPublisher()
	}
	return &LedgerService{
		store:     store,
		settings:  settings,
		publisher: publisher,
		cache:     cache,
		log:       log,
		now:       time.Now,
	}
}

// Settings returns the lending defaults the service was built with
func (s *LedgerService) Settings() domain.LedgerSettings {
	return s.settings
}

func (s *LedgerService) today() time.Time {
	return utils.TruncateToDate(s.now())
}

// outbox collects the side effects of a unit of work until it commits
type outbox struct {
	events []domain.LedgerEvent
	users  map[uuid.UUID]bool
}

func (o *outbox) add(eventType domain.EventType, loan *domain.Loan, amount decimal.Decimal) {
	ev := domain.NewLedgerEvent(eventType, loan, amount)
	o.events = append(o.events, ev)
	if o.users == nil {
		o.users = make(map[uuid.UUID]bool)
	}
	o.users[ev.UserID] = true
}

// mutate runs fn in one transaction. Once it commits the collected events are
// published and the affected portfolio summaries are dropped from cache.
func (s *LedgerService) mutate(ctx context.Context, fn func(tx repository.Store, out *outbox) error) error {
	out := &outbox{}
	err := s.store.WithTx(ctx, func(tx repository.Store) error {
		return fn(tx, out)
	})
	if err != nil {
		return storeError(err)
	}

	for _, ev := range out.events {
		if err := s.publisher.Publish(ctx, ev); err != nil {
			s.log.WithFields(logrus.Fields{
				"event_type": ev.Type,
				"loan_id":    ev.LoanID,
				"error":      err,
			}).Warn("Failed to publish ledger event")
		}
	}

	if s.cache != nil {
		for userID := range out.users {
			s.invalidateSummary(ctx, userID)
		}
	}

	return nil
}

// invalidateSummary starts a new summary generation for the user and drops
// the summary cached under the previous one
func (s *LedgerService) invalidateSummary(ctx context.Context, userID uuid.UUID) {
	previous := summaryVersion(ctx, s.cache, userID)
	if err := s.cache.Set(ctx, cache.SummaryVersionKey(userID), uuid.NewString(), 0); err != nil {
		s.log.WithError(err).WithField("user_id", userID).Warn("Failed to advance portfolio summary version")
	}
	if err := s.cache.Delete(ctx, cache.SummaryKey(userID, previous)); err != nil {
		s.log.WithError(err).WithField("user_id", userID).Warn("Failed to invalidate portfolio summary cache")
	}
}

// summaryVersion reads the user's current summary generation. A missing or
// unreadable version reads as the empty generation.
func summaryVersion(ctx context.Context, c Cache, userID uuid.UUID) string {
	var version string
	if err := c.Get(ctx, cache.SummaryVersionKey(userID), &version); err != nil {
		return ""
	}
	return version
}

// storeError keeps business errors intact and wraps everything else as a database failure
func storeError(err error) error {
	var be *customError.BusinessError
	if errors.As(err, &be) {
		return err
	}
	return customError.WrapDatabaseError(err)
}

func getLoan(ctx context.Context, tx repository.Store, loanID uuid.UUID, forUpdate bool) (*domain.Loan, error) {
	var (
		loan *domain.Loan
		err  error
	)
	if forUpdate {
		loan, err = tx.Loans().GetForUpdate(ctx, loanID)
	} else {
		loan, err = tx.Loans().GetByID(ctx, loanID)
	}
	if errors.Is(err, repository.ErrNotFound) {
		return nil, customError.WrapLoanNotFound(loanID.String())
	}
	return loan, err
}

func getInstallment(ctx context.Context, tx repository.Store, installmentID uuid.UUID) (*domain.Installment, error) {
	inst, err := tx.Installments().GetByID(ctx, installmentID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, customError.WrapInstallmentNotFound(installmentID.String())
	}
	return inst, err
}

// getInstallmentLoan loads an installment and locks its parent loan
func getInstallmentLoan(ctx context.Context, tx repository.Store, installmentID uuid.UUID) (*domain.Installment, *domain.Loan, error) {
	inst, err := getInstallment(ctx, tx, installmentID)
	if err != nil {
		return nil, nil, err
	}

	loan, err := tx.Loans().GetForUpdate(ctx, inst.LoanID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil, customError.WrapLedgerInconsistent("installment " + inst.ID.String() + " references a missing loan")
	}
	if err != nil {
		return nil, nil, err
	}

	return inst, loan, nil
}

func getBorrower(ctx context.Context, tx repository.Store, borrowerID uuid.UUID, forUpdate bool) (*domain.Borrower, error) {
	var (
		borrower *domain.Borrower
		err      error
	)
	if forUpdate {
		borrower, err = tx.Borrowers().GetForUpdate(ctx, borrowerID)
	} else {
		borrower, err = tx.Borrowers().GetByID(ctx, borrowerID)
	}
	if errors.Is(err, repository.ErrNotFound) {
		return nil, customError.WrapBorrowerNotFound(borrowerID.String())
	}
	return borrower, err
}
