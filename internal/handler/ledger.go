package handler

import (
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/segyhp/collection-ledger/internal/domain"
	"github.com/segyhp/collection-ledger/internal/service"
	"github.com/segyhp/collection-ledger/pkg/response"
	"github.com/segyhp/collection-ledger/pkg/utils"
)

type LedgerHandler struct {
	service   *service.LedgerService
	validator *validator.Validate
	now       func() time.Time
}

func NewLedgerHandler(service *service.LedgerService) *LedgerHandler {
	return &LedgerHandler{
		service:   service,
		validator: newValidator(),
		now:       time.Now,
	}
}

func termsFrom(req domain.LoanTermsRequest) domain.LoanTerms {
	terms := domain.LoanTerms{
		Principal:        req.PrincipalAmount,
		NumberOfWeeks:    req.NumberOfWeeks,
		StartDate:        mustDate(req.StartDate),
		FirstPaymentDate: optionalDate(req.FirstPaymentDate),
		CollectionDay:    req.CollectionDay,
	}
	if req.WeeklyRate != nil {
		terms.WeeklyRate = *req.WeeklyRate
	}
	return terms
}

// CreateLoan handles POST /loans
func (h *LedgerHandler) CreateLoan(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateLoanRequest
	if !decodeAndValidate(w, r, h.validator, &req) {
		return
	}

	lw, err := h.service.CreateLoan(r.Context(), uuid.MustParse(req.UserID), uuid.MustParse(req.BorrowerID), termsFrom(req.LoanTermsRequest))
	if err != nil {
		response.FromError(w, err)
		return
	}

	response.Created(w, lw)
}

// PreviewSchedule handles POST /loans/schedule/preview
func (h *LedgerHandler) PreviewSchedule(w http.ResponseWriter, r *http.Request) {
	var req domain.LoanTermsRequest
	if !decodeAndValidate(w, r, h.validator, &req) {
		return
	}

	schedule, err := h.service.PreviewSchedule(termsFrom(req))
	if err != nil {
		response.FromError(w, err)
		return
	}

	response.Success(w, domain.ScheduleResponse{
		WeeklyAmount:     schedule.WeeklyAmount,
		TotalAmount:      schedule.TotalAmount,
		Interest:         schedule.Interest(req.PrincipalAmount),
		FirstPaymentDate: schedule.FirstPaymentDate.Format(utils.DateLayout),
		Installments:     schedule.Installments,
	})
}

// GetLoan handles GET /loans/{loanId}
func (h *LedgerHandler) GetLoan(w http.ResponseWriter, r *http.Request) {
	loanID, ok := pathUUID(w, r, "loanId")
	if !ok {
		return
	}

	lw, err := h.service.GetLoanWithInstallments(r.Context(), loanID)
	if err != nil {
		response.FromError(w, err)
		return
	}

	response.Success(w, lw)
}

// UpdateLoan handles PATCH /loans/{loanId}
func (h *LedgerHandler) UpdateLoan(w http.ResponseWriter, r *http.Request) {
	loanID, ok := pathUUID(w, r, "loanId")
	if !ok {
		return
	}

	var req domain.UpdateLoanRequest
	if !decodeAndValidate(w, r, h.validator, &req) {
		return
	}

	lw, err := h.service.UpdateLoanDetails(r.Context(), loanID, domain.LoanDetailsUpdate{
		PrincipalAmount:  req.PrincipalAmount,
		StartDate:        optionalDate(req.StartDate),
		FirstPaymentDate: optionalDate(req.FirstPaymentDate),
	})
	if err != nil {
		response.FromError(w, err)
		return
	}

	response.Success(w, lw)
}

// EnsureSchedule handles POST /loans/{loanId}/schedule
func (h *LedgerHandler) EnsureSchedule(w http.ResponseWriter, r *http.Request) {
	loanID, ok := pathUUID(w, r, "loanId")
	if !ok {
		return
	}

	lw, created, err := h.service.EnsureSchedule(r.Context(), loanID)
	if err != nil {
		response.FromError(w, err)
		return
	}

	response.Success(w, map[string]interface{}{
		"loan":    lw,
		"created": created,
	})
}

// ListUnpaidForLoan handles GET /loans/{loanId}/unpaid
func (h *LedgerHandler) ListUnpaidForLoan(w http.ResponseWriter, r *http.Request) {
	loanID, ok := pathUUID(w, r, "loanId")
	if !ok {
		return
	}

	details, err := h.service.ListUnpaidForLoan(r.Context(), loanID)
	if err != nil {
		response.FromError(w, err)
		return
	}

	response.Success(w, details)
}

// Backfill handles POST /loans/{loanId}/backfill?today=YYYY-MM-DD
func (h *LedgerHandler) Backfill(w http.ResponseWriter, r *http.Request) {
	loanID, ok := pathUUID(w, r, "loanId")
	if !ok {
		return
	}

	today := utils.TruncateToDate(h.now())
	cutoff, ok := queryDate(w, r, "today", &today)
	if !ok {
		return
	}

	recorded, err := h.service.RecordBulkPastPayments(r.Context(), loanID, cutoff)
	if err != nil {
		response.FromError(w, err)
		return
	}

	response.Success(w, domain.BackfillResponse{LoanID: loanID.String(), Recorded: recorded})
}

// Foreclose handles POST /loans/{loanId}/foreclose
func (h *LedgerHandler) Foreclose(w http.ResponseWriter, r *http.Request) {
	loanID, ok := pathUUID(w, r, "loanId")
	if !ok {
		return
	}

	var req domain.ForecloseLoanRequest
	if !decodeAndValidate(w, r, h.validator, &req) {
		return
	}

	loan, err := h.service.ForecloseLoan(r.Context(), loanID, req.SettlementAmount, mustDate(req.ForeclosureDate))
	if err != nil {
		response.FromError(w, err)
		return
	}

	response.Success(w, loan)
}

// Settle handles POST /loans/{loanId}/settle
func (h *LedgerHandler) Settle(w http.ResponseWriter, r *http.Request) {
	loanID, ok := pathUUID(w, r, "loanId")
	if !ok {
		return
	}

	var req domain.SettleLoanRequest
	if !decodeAndValidate(w, r, h.validator, &req) {
		return
	}

	loan, err := h.service.SettleAndCloseLoan(r.Context(), loanID, req.SettlementAmount, mustDate(req.SettlementDate))
	if err != nil {
		response.FromError(w, err)
		return
	}

	response.Success(w, loan)
}

// RecordPayment handles PUT /installments/{installmentId}/payment
func (h *LedgerHandler) RecordPayment(w http.ResponseWriter, r *http.Request) {
	installmentID, ok := pathUUID(w, r, "installmentId")
	if !ok {
		return
	}

	var req domain.RecordPaymentRequest
	if !decodeAndValidate(w, r, h.validator, &req) {
		return
	}

	inst, err := h.service.RecordSingleInstallment(r.Context(), installmentID, req.Amount, mustDate(req.PaidDate), req.Notes)
	if err != nil {
		response.FromError(w, err)
		return
	}

	response.Success(w, inst)
}

// ResetPayment handles DELETE /installments/{installmentId}/payment
func (h *LedgerHandler) ResetPayment(w http.ResponseWriter, r *http.Request) {
	installmentID, ok := pathUUID(w, r, "installmentId")
	if !ok {
		return
	}

	inst, err := h.service.ResetInstallment(r.Context(), installmentID)
	if err != nil {
		response.FromError(w, err)
		return
	}

	response.Success(w, inst)
}

// AllocatePayment handles POST /borrowers/{borrowerId}/payments
func (h *LedgerHandler) AllocatePayment(w http.ResponseWriter, r *http.Request) {
	borrowerID, ok := pathUUID(w, r, "borrowerId")
	if !ok {
		return
	}

	var req domain.AllocatePaymentRequest
	if !decodeAndValidate(w, r, h.validator, &req) {
		return
	}

	result, err := h.service.AllocateFIFO(r.Context(), borrowerID, req.Amount, mustDate(req.PaidDate), req.Notes)
	if err != nil {
		response.FromError(w, err)
		return
	}

	response.Success(w, result)
}

// CreateBorrower handles POST /borrowers
func (h *LedgerHandler) CreateBorrower(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateBorrowerRequest
	if !decodeAndValidate(w, r, h.validator, &req) {
		return
	}

	borrower, err := h.service.CreateBorrower(r.Context(), uuid.MustParse(req.UserID), req.Name, req.Area, req.Phone, req.LeaderTag)
	if err != nil {
		response.FromError(w, err)
		return
	}

	response.Created(w, borrower)
}

// ListBorrowers handles GET /borrowers?user_id=
func (h *LedgerHandler) ListBorrowers(w http.ResponseWriter, r *http.Request) {
	userID, ok := queryUUID(w, r, "user_id")
	if !ok {
		return
	}

	borrowers, err := h.service.ListBorrowers(r.Context(), userID)
	if err != nil {
		response.FromError(w, err)
		return
	}

	response.Success(w, borrowers)
}

// GetBorrower handles GET /borrowers/{borrowerId}
func (h *LedgerHandler) GetBorrower(w http.ResponseWriter, r *http.Request) {
	borrowerID, ok := pathUUID(w, r, "borrowerId")
	if !ok {
		return
	}

	borrower, err := h.service.GetBorrower(r.Context(), borrowerID)
	if err != nil {
		response.FromError(w, err)
		return
	}

	response.Success(w, borrower)
}

// ListUnpaidForBorrower handles GET /borrowers/{borrowerId}/unpaid
func (h *LedgerHandler) ListUnpaidForBorrower(w http.ResponseWriter, r *http.Request) {
	borrowerID, ok := pathUUID(w, r, "borrowerId")
	if !ok {
		return
	}

	details, err := h.service.ListUnpaidForBorrower(r.Context(), borrowerID)
	if err != nil {
		response.FromError(w, err)
		return
	}

	response.Success(w, details)
}
