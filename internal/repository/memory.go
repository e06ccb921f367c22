package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/segyhp/collection-ledger/internal/domain"
	"github.com/segyhp/collection-ledger/pkg/utils"
)

// MemoryStore keeps the ledger in process memory. It backs tests and
// single-process demos. Transactions work on a copy that replaces the
// live data on commit, and only one transaction runs at a time.
type MemoryStore struct {
	txMu *sync.Mutex
	mu   *sync.RWMutex
	data *memoryData
	inTx bool
}

type memoryData struct {
	borrowers    map[uuid.UUID]domain.Borrower
	loans        map[uuid.UUID]domain.Loan
	installments map[uuid.UUID]domain.Installment
}

// NewMemoryStore creates an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		txMu: &sync.Mutex{},
		mu:   &sync.RWMutex{},
		data: &memoryData{
			borrowers:    make(map[uuid.UUID]domain.Borrower),
			loans:        make(map[uuid.UUID]domain.Loan),
			installments: make(map[uuid.UUID]domain.Installment),
		},
	}
}

func (s *MemoryStore) Borrowers() BorrowerRepository {
	return &memoryBorrowers{s}
}

func (s *MemoryStore) Loans() LoanRepository {
	return &memoryLoans{s}
}

func (s *MemoryStore) Installments() InstallmentRepository {
	return &memoryInstallments{s}
}

func (s *MemoryStore) WithTx(ctx context.Context, fn func(Store) error) error {
	if s.inTx {
		return fn(s)
	}

	s.txMu.Lock()
	defer s.txMu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.RLock()
	snapshot := s.data.clone()
	s.mu.RUnlock()

	tx := &MemoryStore{txMu: s.txMu, mu: &sync.RWMutex{}, data: snapshot, inTx: true}
	if err := fn(tx); err != nil {
		return err
	}

	s.mu.Lock()
	*s.data = *snapshot
	s.mu.Unlock()
	return nil
}

// write applies a single change. Outside a transaction it waits for any
// running transaction so the change is not lost on that commit.
func (s *MemoryStore) write(fn func(d *memoryData) error) error {
	if !s.inTx {
		s.txMu.Lock()
		defer s.txMu.Unlock()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.data)
}

func (s *MemoryStore) read(fn func(d *memoryData)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn(s.data)
}

func (d *memoryData) clone() *memoryData {
	c := &memoryData{
		borrowers:    make(map[uuid.UUID]domain.Borrower, len(d.borrowers)),
		loans:        make(map[uuid.UUID]domain.Loan, len(d.loans)),
		installments: make(map[uuid.UUID]domain.Installment, len(d.installments)),
	}
	for k, v := range d.borrowers {
		c.borrowers[k] = v
	}
	for k, v := range d.loans {
		c.loans[k] = v
	}
	for k, v := range d.installments {
		c.installments[k] = v
	}
	return c
}

func contains(values []string, v string) bool {
	for _, s := range values {
		if s == v {
			return true
		}
	}
	return false
}

type memoryBorrowers struct{ s *MemoryStore }

func (r *memoryBorrowers) Create(ctx context.Context, borrower *domain.Borrower) error {
	now := time.Now().UTC()
	if borrower.CreatedAt.IsZero() {
		borrower.CreatedAt = now
	}
	borrower.UpdatedAt = now

	return r.s.write(func(d *memoryData) error {
		d.borrowers[borrower.ID] = *borrower
		return nil
	})
}

func (r *memoryBorrowers) GetByID(ctx context.Context, id uuid.UUID) (*domain.Borrower, error) {
	var (
		b  domain.Borrower
		ok bool
	)
	r.s.read(func(d *memoryData) { b, ok = d.borrowers[id] })
	if !ok {
		return nil, ErrNotFound
	}
	return &b, nil
}

func (r *memoryBorrowers) GetForUpdate(ctx context.Context, id uuid.UUID) (*domain.Borrower, error) {
	return r.GetByID(ctx, id)
}

func (r *memoryBorrowers) ListByUser(ctx context.Context, userID uuid.UUID) ([]*domain.Borrower, error) {
	var out []*domain.Borrower
	r.s.read(func(d *memoryData) {
		for _, b := range d.borrowers {
			if b.UserID == userID {
				b := b
				out = append(out, &b)
			}
		}
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

type memoryLoans struct{ s *MemoryStore }

func (r *memoryLoans) Create(ctx context.Context, loan *domain.Loan) error {
	now := time.Now().UTC()
	if loan.CreatedAt.IsZero() {
		loan.CreatedAt = now
	}
	loan.UpdatedAt = now

	return r.s.write(func(d *memoryData) error {
		d.loans[loan.ID] = *loan
		return nil
	})
}

func (r *memoryLoans) GetByID(ctx context.Context, id uuid.UUID) (*domain.Loan, error) {
	var (
		l  domain.Loan
		ok bool
	)
	r.s.read(func(d *memoryData) { l, ok = d.loans[id] })
	if !ok {
		return nil, ErrNotFound
	}
	return &l, nil
}

func (r *memoryLoans) GetForUpdate(ctx context.Context, id uuid.UUID) (*domain.Loan, error) {
	return r.GetByID(ctx, id)
}

func (r *memoryLoans) Update(ctx context.Context, loan *domain.Loan) error {
	loan.UpdatedAt = time.Now().UTC()

	return r.s.write(func(d *memoryData) error {
		if _, ok := d.loans[loan.ID]; !ok {
			return ErrNotFound
		}
		d.loans[loan.ID] = *loan
		return nil
	})
}

func (r *memoryLoans) List(ctx context.Context, filter LoanFilter) ([]*domain.Loan, error) {
	var out []*domain.Loan
	r.s.read(func(d *memoryData) {
		for _, l := range d.loans {
			if filter.UserID != nil && l.UserID != *filter.UserID {
				continue
			}
			if filter.BorrowerID != nil && l.BorrowerID != *filter.BorrowerID {
				continue
			}
			if len(filter.Statuses) > 0 && !contains(filter.Statuses, l.Status) {
				continue
			}
			if contains(filter.ExcludeStatuses, l.Status) {
				continue
			}
			l := l
			out = append(out, &l)
		}
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].LoanNumber != out[j].LoanNumber {
			return out[i].LoanNumber < out[j].LoanNumber
		}
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out, nil
}

func (r *memoryLoans) CountByBorrower(ctx context.Context, borrowerID uuid.UUID) (int, error) {
	count := 0
	r.s.read(func(d *memoryData) {
		for _, l := range d.loans {
			if l.BorrowerID == borrowerID {
				count++
			}
		}
	})
	return count, nil
}

func (r *memoryLoans) ListUserIDsWithActiveLoans(ctx context.Context) ([]uuid.UUID, error) {
	seen := make(map[uuid.UUID]bool)
	r.s.read(func(d *memoryData) {
		for _, l := range d.loans {
			if l.Status == domain.LoanStatusActive {
				seen[l.UserID] = true
			}
		}
	})

	ids := make([]uuid.UUID, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	return ids, nil
}

type memoryInstallments struct{ s *MemoryStore }

func (r *memoryInstallments) CreateBatch(ctx context.Context, installments []*domain.Installment) error {
	now := time.Now().UTC()
	for _, inst := range installments {
		if inst.CreatedAt.IsZero() {
			inst.CreatedAt = now
		}
		inst.UpdatedAt = now
	}

	return r.s.write(func(d *memoryData) error {
		for _, inst := range installments {
			d.installments[inst.ID] = *inst
		}
		return nil
	})
}

func (r *memoryInstallments) GetByID(ctx context.Context, id uuid.UUID) (*domain.Installment, error) {
	var (
		inst domain.Installment
		ok   bool
	)
	r.s.read(func(d *memoryData) { inst, ok = d.installments[id] })
	if !ok {
		return nil, ErrNotFound
	}
	return &inst, nil
}

func (r *memoryInstallments) Update(ctx context.Context, installment *domain.Installment) error {
	installment.UpdatedAt = time.Now().UTC()

	return r.s.write(func(d *memoryData) error {
		if _, ok := d.installments[installment.ID]; !ok {
			return ErrNotFound
		}
		d.installments[installment.ID] = *installment
		return nil
	})
}

func (r *memoryInstallments) ListByLoan(ctx context.Context, loanID uuid.UUID) ([]*domain.Installment, error) {
	var out []*domain.Installment
	r.s.read(func(d *memoryData) {
		for _, inst := range d.installments {
			if inst.LoanID == loanID {
				inst := inst
				out = append(out, &inst)
			}
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].WeekNumber < out[j].WeekNumber })
	return out, nil
}

func (r *memoryInstallments) List(ctx context.Context, filter InstallmentFilter) ([]*domain.Installment, error) {
	if filter.LoanIDs != nil && len(filter.LoanIDs) == 0 {
		return nil, nil
	}

	loanIDs := make(map[uuid.UUID]bool, len(filter.LoanIDs))
	for _, id := range filter.LoanIDs {
		loanIDs[id] = true
	}

	var out []*domain.Installment
	r.s.read(func(d *memoryData) {
		for _, inst := range d.installments {
			if len(loanIDs) > 0 && !loanIDs[inst.LoanID] {
				continue
			}
			if len(filter.Statuses) > 0 && !contains(filter.Statuses, inst.Status) {
				continue
			}
			if filter.DueFrom != nil && inst.DueDate.Before(utils.TruncateToDate(*filter.DueFrom)) {
				continue
			}
			if filter.DueTo != nil && inst.DueDate.After(utils.TruncateToDate(*filter.DueTo)) {
				continue
			}
			if filter.PaidFrom != nil || filter.PaidTo != nil {
				if inst.PaidDate == nil {
					continue
				}
				if filter.PaidFrom != nil && inst.PaidDate.Before(utils.TruncateToDate(*filter.PaidFrom)) {
					continue
				}
				if filter.PaidTo != nil && inst.PaidDate.After(utils.TruncateToDate(*filter.PaidTo)) {
					continue
				}
			}
			inst := inst
			out = append(out, &inst)
		}
	})
	sort.Slice(out, func(i, j int) bool {
		if !out[i].DueDate.Equal(out[j].DueDate) {
			return out[i].DueDate.Before(out[j].DueDate)
		}
		if out[i].WeekNumber != out[j].WeekNumber {
			return out[i].WeekNumber < out[j].WeekNumber
		}
		return out[i].LoanID.String() < out[j].LoanID.String()
	})
	return out, nil
}
