package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/segyhp/collection-ledger/internal/domain"
	"github.com/segyhp/collection-ledger/internal/repository"
	"github.com/segyhp/collection-ledger/internal/service"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Code    string          `json:"code"`
	Message string          `json:"message"`
}

type testAPI struct {
	router *mux.Router
	userID uuid.UUID
}

func newTestAPI(t *testing.T, checks map[string]Check) *testAPI {
	t.Helper()

	log := logrus.New()
	log.SetOutput(io.Discard)

	store := repository.NewMemoryStore()
	settings := domain.DefaultLedgerSettings()
	ledger := service.NewLedgerService(store, settings, nil, nil, log)
	reports := service.NewReportService(store, nil, time.Minute, settings, log)

	return &testAPI{
		router: NewRouter(NewLedgerHandler(ledger), NewReportHandler(reports), NewHealthHandler(time.Second, checks), log),
		userID: uuid.New(),
	}
}

func (a *testAPI) do(t *testing.T, method, path string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	t.Helper()

	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)

	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return w, env
}

func decodeData[T any](t *testing.T, env envelope) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(env.Data, &out))
	return out
}

func (a *testAPI) createBorrower(t *testing.T, name string) domain.Borrower {
	t.Helper()
	w, env := a.do(t, http.MethodPost, "/api/v1/borrowers", map[string]string{
		"user_id": a.userID.String(),
		"name":    name,
		"area":    "Ward 4",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decodeData[domain.Borrower](t, env)
}

func (a *testAPI) createLoan(t *testing.T, borrowerID uuid.UUID, weeks int) domain.LoanWithInstallments {
	t.Helper()
	w, env := a.do(t, http.MethodPost, "/api/v1/loans", map[string]interface{}{
		"user_id":          a.userID.String(),
		"borrower_id":      borrowerID.String(),
		"principal_amount": "10000",
		"number_of_weeks":  weeks,
		"start_date":       "2024-01-03",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decodeData[domain.LoanWithInstallments](t, env)
}

func TestHealth(t *testing.T) {
	api := newTestAPI(t, map[string]Check{
		"database": func(ctx context.Context) error { return nil },
	})

	w, env := api.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, env.Success)

	w, env = api.do(t, http.MethodGet, "/health/ready", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	status := decodeData[HealthStatus](t, env)
	assert.Equal(t, "ok", status.Checks["database"])
}

func TestReady_FailingCheck(t *testing.T) {
	api := newTestAPI(t, map[string]Check{
		"database": func(ctx context.Context) error { return nil },
		"redis":    func(ctx context.Context) error { return errors.New("connection refused") },
	})

	w, env := api.do(t, http.MethodGet, "/health/ready", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.False(t, env.Success)

	status := decodeData[HealthStatus](t, env)
	assert.Equal(t, "error", status.Status)
	assert.Equal(t, "ok", status.Checks["database"])
	assert.Equal(t, "failed: connection refused", status.Checks["redis"])
}

func TestLoanLifecycleOverHTTP(t *testing.T) {
	api := newTestAPI(t, nil)
	borrower := api.createBorrower(t, "Meena")

	lw := api.createLoan(t, borrower.ID, 3)
	require.Len(t, lw.Installments, 3)
	assert.Equal(t, 1, lw.Loan.LoanNumber)
	assert.Equal(t, "2024-01-07", lw.Installments[0].DueDate.Format("2006-01-02"))

	w, env := api.do(t, http.MethodPost, "/api/v1/borrowers/"+borrower.ID.String()+"/payments", map[string]string{
		"amount":    "1200",
		"paid_date": "2024-01-21",
		"notes":     "weekly visit",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	result := decodeData[domain.AllocationResult](t, env)
	require.Len(t, result.Allocations, 3)
	assert.Equal(t, domain.InstallmentStatusPartial, result.Allocations[2].ResultingStatus)
	assert.True(t, result.Overpayment.IsZero())

	w, env = api.do(t, http.MethodGet, "/api/v1/loans/"+lw.Loan.ID.String(), nil)
	require.Equal(t, http.StatusOK, w.Code)
	got := decodeData[domain.LoanWithInstallments](t, env)
	assert.True(t, got.TotalPaid.Equal(decimal.NewFromInt(1200)))
	assert.True(t, got.Balance.Equal(decimal.NewFromInt(300)))

	w, env = api.do(t, http.MethodGet, "/api/v1/borrowers/"+borrower.ID.String()+"/unpaid", nil)
	require.Equal(t, http.StatusOK, w.Code)
	unpaid := decodeData[[]domain.InstallmentDetail](t, env)
	require.Len(t, unpaid, 1)
	assert.Equal(t, 3, unpaid[0].WeekNumber)

	// Finish the last week by hand; the loan closes
	w, _ = api.do(t, http.MethodPut, "/api/v1/installments/"+unpaid[0].ID.String()+"/payment", map[string]string{
		"amount":    "500",
		"paid_date": "2024-01-22",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	_, env = api.do(t, http.MethodGet, "/api/v1/loans/"+lw.Loan.ID.String(), nil)
	assert.Equal(t, domain.LoanStatusClosed, decodeData[domain.LoanWithInstallments](t, env).Loan.Status)

	// Reset reopens it
	w, env = api.do(t, http.MethodDelete, "/api/v1/installments/"+unpaid[0].ID.String()+"/payment", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, domain.InstallmentStatusPending, decodeData[domain.Installment](t, env).Status)

	_, env = api.do(t, http.MethodGet, "/api/v1/loans/"+lw.Loan.ID.String(), nil)
	assert.Equal(t, domain.LoanStatusActive, decodeData[domain.LoanWithInstallments](t, env).Loan.Status)

	// Settle, then any further write conflicts
	w, env = api.do(t, http.MethodPost, "/api/v1/loans/"+lw.Loan.ID.String()+"/settle", map[string]string{
		"settlement_amount": "250",
		"settlement_date":   "2024-01-25",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, domain.LoanStatusForeclosed, decodeData[domain.Loan](t, env).Status)

	w, env = api.do(t, http.MethodPost, "/api/v1/loans/"+lw.Loan.ID.String()+"/foreclose", map[string]string{
		"foreclosure_date": "2024-01-26",
	})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "LOAN_NOT_ACTIVE", env.Code)
}

func TestUpdateAndBackfillOverHTTP(t *testing.T) {
	api := newTestAPI(t, nil)
	borrower := api.createBorrower(t, "Meena")
	lw := api.createLoan(t, borrower.ID, 4)
	loanPath := "/api/v1/loans/" + lw.Loan.ID.String()

	w, env := api.do(t, http.MethodPatch, loanPath, map[string]string{
		"principal_amount":   "12000",
		"first_payment_date": "2024-01-10",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	updated := decodeData[domain.LoanWithInstallments](t, env)
	assert.True(t, updated.Loan.WeeklyAmount.Equal(decimal.NewFromInt(600)))
	assert.Equal(t, "2024-01-17", updated.Installments[1].DueDate.Format("2006-01-02"))

	w, env = api.do(t, http.MethodPost, loanPath+"/backfill?today=2024-01-20", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, 2, decodeData[domain.BackfillResponse](t, env).Recorded)

	w, env = api.do(t, http.MethodGet, loanPath+"/unpaid", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decodeData[[]domain.InstallmentDetail](t, env), 2)

	w, env = api.do(t, http.MethodPost, loanPath+"/schedule", nil)
	require.Equal(t, http.StatusOK, w.Code)
	ensured := decodeData[struct {
		Created int `json:"created"`
	}](t, env)
	assert.Zero(t, ensured.Created)
}

func TestPreviewSchedule(t *testing.T) {
	api := newTestAPI(t, nil)

	w, env := api.do(t, http.MethodPost, "/api/v1/loans/schedule/preview", map[string]interface{}{
		"principal_amount": 10000,
		"start_date":       "2024-01-03",
		"collection_day":   5,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	preview := decodeData[domain.ScheduleResponse](t, env)
	assert.True(t, preview.WeeklyAmount.Equal(decimal.NewFromInt(500)))
	assert.True(t, preview.Interest.Equal(decimal.NewFromInt(2000)))
	assert.Equal(t, "2024-01-05", preview.FirstPaymentDate)
	assert.Len(t, preview.Installments, 24)
}

func TestRequestValidation(t *testing.T) {
	api := newTestAPI(t, nil)
	borrower := api.createBorrower(t, "Meena")

	tests := []struct {
		name    string
		method  string
		path    string
		body    interface{}
		status  int
		message string
	}{
		{
			name:    "malformed json",
			method:  http.MethodPost,
			path:    "/api/v1/loans",
			body:    "{not json",
			status:  http.StatusBadRequest,
			message: "Invalid JSON payload",
		},
		{
			name:   "zero principal",
			method: http.MethodPost,
			path:   "/api/v1/loans",
			body: map[string]string{
				"user_id":          api.userID.String(),
				"borrower_id":      borrower.ID.String(),
				"principal_amount": "0",
				"start_date":       "2024-01-03",
			},
			status:  http.StatusBadRequest,
			message: "Validation failed",
		},
		{
			name:   "bad start date",
			method: http.MethodPost,
			path:   "/api/v1/loans",
			body: map[string]string{
				"user_id":          api.userID.String(),
				"borrower_id":      borrower.ID.String(),
				"principal_amount": "1000",
				"start_date":       "03/01/2024",
			},
			status:  http.StatusBadRequest,
			message: "Validation failed",
		},
		{
			name:   "zero weeks",
			method: http.MethodPost,
			path:   "/api/v1/loans",
			body: map[string]interface{}{
				"user_id":          api.userID.String(),
				"borrower_id":      borrower.ID.String(),
				"principal_amount": "1000",
				"number_of_weeks":  0,
				"start_date":       "2024-01-03",
			},
			status:  http.StatusBadRequest,
			message: "Validation failed",
		},
		{
			name:    "negative payment",
			method:  http.MethodPost,
			path:    "/api/v1/borrowers/" + borrower.ID.String() + "/payments",
			body:    map[string]string{"amount": "-5", "paid_date": "2024-01-07"},
			status:  http.StatusBadRequest,
			message: "Validation failed",
		},
		{
			name:    "negative single payment",
			method:  http.MethodPut,
			path:    "/api/v1/installments/" + uuid.NewString() + "/payment",
			body:    map[string]string{"amount": "-1", "paid_date": "2024-01-07"},
			status:  http.StatusBadRequest,
			message: "Validation failed",
		},
		{
			name:    "malformed loan id",
			method:  http.MethodGet,
			path:    "/api/v1/loans/not-a-uuid",
			status:  http.StatusBadRequest,
			message: "Invalid loanId",
		},
		{
			name:    "unknown loan",
			method:  http.MethodGet,
			path:    "/api/v1/loans/" + uuid.NewString(),
			status:  http.StatusNotFound,
			message: "not found",
		},
		{
			name:    "unknown borrower payment",
			method:  http.MethodPost,
			path:    "/api/v1/borrowers/" + uuid.NewString() + "/payments",
			body:    map[string]string{"amount": "100", "paid_date": "2024-01-07"},
			status:  http.StatusNotFound,
			message: "not found",
		},
		{
			name:    "report without range",
			method:  http.MethodGet,
			path:    "/api/v1/reports/due?user_id=" + api.userID.String(),
			status:  http.StatusBadRequest,
			message: "Missing start",
		},
		{
			name:    "report range reversed",
			method:  http.MethodGet,
			path:    "/api/v1/reports/collected?user_id=" + api.userID.String() + "&start=2024-02-01&end=2024-01-01",
			status:  http.StatusBadRequest,
			message: "end date is before start date",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, env := api.do(t, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.status, w.Code, w.Body.String())
			assert.False(t, env.Success)
			assert.Contains(t, env.Message, tt.message)
		})
	}
}

func TestReportsOverHTTP(t *testing.T) {
	api := newTestAPI(t, nil)
	borrower := api.createBorrower(t, "Meena")
	lw := api.createLoan(t, borrower.ID, 4)

	w, _ := api.do(t, http.MethodPost, "/api/v1/borrowers/"+borrower.ID.String()+"/payments", map[string]string{
		"amount":    "700",
		"paid_date": "2024-01-14",
	})
	require.Equal(t, http.StatusOK, w.Code)

	user := "user_id=" + api.userID.String()

	w, env := api.do(t, http.MethodGet, "/api/v1/reports/due?"+user+"&start=2024-01-14&end=2024-01-20", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	due := decodeData[[]domain.InstallmentDetail](t, env)
	require.Len(t, due, 1)
	assert.Equal(t, "Meena", due[0].BorrowerName)

	w, env = api.do(t, http.MethodGet, "/api/v1/reports/overdue?"+user+"&as_of=2024-01-21", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decodeData[[]domain.InstallmentDetail](t, env), 2)

	w, env = api.do(t, http.MethodGet, "/api/v1/reports/collected?"+user+"&start=2024-01-14&end=2024-01-14", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decodeData[[]domain.InstallmentDetail](t, env), 2)

	w, env = api.do(t, http.MethodGet, "/api/v1/reports/interest?"+user, nil)
	require.Equal(t, http.StatusOK, w.Code)
	earned := decodeData[domain.InterestEarned](t, env)
	assert.True(t, earned.Closed.IsZero())

	w, env = api.do(t, http.MethodGet, "/api/v1/reports/summary?"+user+"&as_of=2024-01-21", nil)
	require.Equal(t, http.StatusOK, w.Code)
	summary := decodeData[domain.PortfolioSummary](t, env)
	assert.Equal(t, 1, summary.ActiveLoans)
	assert.True(t, summary.TotalCollected.Equal(decimal.NewFromInt(700)))
	assert.Equal(t, lw.Loan.PrincipalAmount.String(), summary.ActivePrincipal.String())
}
