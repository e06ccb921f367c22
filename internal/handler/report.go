package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/segyhp/collection-ledger/internal/service"
	customError "github.com/segyhp/collection-ledger/pkg/errors"
	"github.com/segyhp/collection-ledger/pkg/response"
	"github.com/segyhp/collection-ledger/pkg/utils"
)

type ReportHandler struct {
	service *service.ReportService
	now     func() time.Time
}

func NewReportHandler(service *service.ReportService) *ReportHandler {
	return &ReportHandler{
		service: service,
		now:     time.Now,
	}
}

// Due handles GET /reports/due?user_id=&start=&end=&include_inactive=
func (h *ReportHandler) Due(w http.ResponseWriter, r *http.Request) {
	userID, ok := queryUUID(w, r, "user_id")
	if !ok {
		return
	}
	start, ok := queryDate(w, r, "start", nil)
	if !ok {
		return
	}
	end, ok := queryDate(w, r, "end", nil)
	if !ok {
		return
	}

	includeInactive := false
	if raw := r.URL.Query().Get("include_inactive"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			response.BadRequest(w, "Invalid include_inactive", customError.WrapInvalidRequest("include_inactive must be a boolean", err))
			return
		}
		includeInactive = v
	}

	details, err := h.service.DueInRange(r.Context(), userID, start, end, includeInactive)
	if err != nil {
		response.FromError(w, err)
		return
	}

	response.Success(w, details)
}

// Overdue handles GET /reports/overdue?user_id=&as_of=
func (h *ReportHandler) Overdue(w http.ResponseWriter, r *http.Request) {
	userID, ok := queryUUID(w, r, "user_id")
	if !ok {
		return
	}
	today := utils.TruncateToDate(h.now())
	asOf, ok := queryDate(w, r, "as_of", &today)
	if !ok {
		return
	}

	details, err := h.service.OverdueAsOf(r.Context(), userID, asOf)
	if err != nil {
		response.FromError(w, err)
		return
	}

	response.Success(w, details)
}

// Collected handles GET /reports/collected?user_id=&start=&end=
func (h *ReportHandler) Collected(w http.ResponseWriter, r *http.Request) {
	userID, ok := queryUUID(w, r, "user_id")
	if !ok {
		return
	}
	start, ok := queryDate(w, r, "start", nil)
	if !ok {
		return
	}
	end, ok := queryDate(w, r, "end", nil)
	if !ok {
		return
	}

	details, err := h.service.CollectedInRange(r.Context(), userID, start, end)
	if err != nil {
		response.FromError(w, err)
		return
	}

	response.Success(w, details)
}

// Interest handles GET /reports/interest?user_id=
func (h *ReportHandler) Interest(w http.ResponseWriter, r *http.Request) {
	userID, ok := queryUUID(w, r, "user_id")
	if !ok {
		return
	}

	earned, err := h.service.InterestEarned(r.Context(), userID)
	if err != nil {
		response.FromError(w, err)
		return
	}

	response.Success(w, earned)
}

// Summary handles GET /reports/summary?user_id=&as_of=
func (h *ReportHandler) Summary(w http.ResponseWriter, r *http.Request) {
	userID, ok := queryUUID(w, r, "user_id")
	if !ok {
		return
	}
	today := utils.TruncateToDate(h.now())
	asOf, ok := queryDate(w, r, "as_of", &today)
	if !ok {
		return
	}

	summary, err := h.service.PortfolioSummary(r.Context(), userID, asOf)
	if err != nil {
		response.FromError(w, err)
		return
	}

	response.Success(w, summary)
}
