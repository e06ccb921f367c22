package service

import (
	"context"
	"encoding/json"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/segyhp/collection-ledger/internal/cache"
	"github.com/segyhp/collection-ledger/internal/domain"
	"github.com/segyhp/collection-ledger/internal/repository"
)

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) Publish(ctx context.Context, event domain.LedgerEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

// published returns the event types in publish order
func (m *mockPublisher) published() []domain.EventType {
	var types []domain.EventType
	for _, call := range m.Calls {
		if call.Method == "Publish" {
			types = append(types, call.Arguments.Get(1).(domain.LedgerEvent).Type)
		}
	}
	return types
}

type mockCache struct {
	mock.Mock
}

func (m *mockCache) Get(ctx context.Context, key string, dest interface{}) error {
	args := m.Called(ctx, key, dest)
	return args.Error(0)
}

func (m *mockCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	args := m.Called(ctx, key, value, expiration)
	return args.Error(0)
}

func (m *mockCache) Delete(ctx context.Context, keys ...string) error {
	args := m.Called(ctx, keys)
	return args.Error(0)
}

// memoryCache keeps JSON encoded values the way the redis cache does
type memoryCache struct {
	values map[string][]byte
}

func newMemoryCache() *memoryCache {
	return &memoryCache{values: make(map[string][]byte)}
}

func (c *memoryCache) Get(ctx context.Context, key string, dest interface{}) error {
	data, ok := c.values[key]
	if !ok {
		return cache.ErrCacheMiss
	}
	return json.Unmarshal(data, dest)
}

func (c *memoryCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.values[key] = data
	return nil
}

func (c *memoryCache) Delete(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		delete(c.values, key)
	}
	return nil
}

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

type testLedger struct {
	svc       *LedgerService
	reports   *ReportService
	store     *repository.MemoryStore
	publisher *mockPublisher
	userID    uuid.UUID
}

// newTestLedger wires the services over an in-memory store with the clock fixed
func newTestLedger(t *testing.T, today time.Time) *testLedger {
	t.Helper()

	store := repository.NewMemoryStore()
	pub := &mockPublisher{}
	pub.On("Publish", mock.Anything, mock.Anything).Return(nil)

	log := quietLogger()
	svc := NewLedgerService(store, domain.DefaultLedgerSettings(), pub, nil, log)
	svc.now = func() time.Time { return today }

	reports := NewReportService(store, nil, time.Minute, domain.DefaultLedgerSettings(), log)
	reports.now = func() time.Time { return today }

	return &testLedger{svc: svc, reports: reports, store: store, publisher: pub, userID: uuid.New()}
}

func (l *testLedger) borrower(t *testing.T, name string) *domain.Borrower {
	t.Helper()
	b, err := l.svc.CreateBorrower(context.Background(), l.userID, name, "Ward 4", "", "")
	require.NoError(t, err)
	return b
}

// loan issues a loan whose week 1 falls on firstDue with 500 due each week
func (l *testLedger) loan(t *testing.T, borrowerID uuid.UUID, weeks int, firstDue time.Time) *domain.LoanWithInstallments {
	t.Helper()
	lw, err := l.svc.CreateLoan(context.Background(), l.userID, borrowerID, domain.LoanTerms{
		Principal:        decimal.NewFromInt(10000),
		NumberOfWeeks:    &weeks,
		StartDate:        firstDue.AddDate(0, 0, -7),
		FirstPaymentDate: &firstDue,
	})
	require.NoError(t, err)
	return lw
}

func (l *testLedger) installments(t *testing.T, loanID uuid.UUID) []*domain.Installment {
	t.Helper()
	insts, err := l.store.Installments().ListByLoan(context.Background(), loanID)
	require.NoError(t, err)
	return insts
}

func (l *testLedger) loanStatus(t *testing.T, loanID uuid.UUID) string {
	t.Helper()
	loan, err := l.store.Loans().GetByID(context.Background(), loanID)
	require.NoError(t, err)
	return loan.Status
}
