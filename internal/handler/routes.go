package handler

import (
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/segyhp/collection-ledger/pkg/response"
)

// NewRouter mounts the health probes and the versioned ledger API
func NewRouter(ledger *LedgerHandler, reports *ReportHandler, health *HealthHandler, log *logrus.Logger) *mux.Router {
	router := mux.NewRouter()
	router.Use(response.LoggingMiddleware(log))
	router.Use(response.CORSMiddleware)

	// Health check
	router.HandleFunc("/health", health.Health).Methods("GET")
	router.HandleFunc("/health/ready", health.Ready).Methods("GET")

	// API routes
	api := router.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/borrowers", ledger.CreateBorrower).Methods("POST")
	api.HandleFunc("/borrowers", ledger.ListBorrowers).Methods("GET")
	api.HandleFunc("/borrowers/{borrowerId}", ledger.GetBorrower).Methods("GET")
	api.HandleFunc("/borrowers/{borrowerId}/unpaid", ledger.ListUnpaidForBorrower).Methods("GET")
	api.HandleFunc("/borrowers/{borrowerId}/payments", ledger.AllocatePayment).Methods("POST")

	api.HandleFunc("/loans", ledger.CreateLoan).Methods("POST")
	api.HandleFunc("/loans/schedule/preview", ledger.PreviewSchedule).Methods("POST")
	api.HandleFunc("/loans/{loanId}", ledger.GetLoan).Methods("GET")
	api.HandleFunc("/loans/{loanId}", ledger.UpdateLoan).Methods("PATCH")
	api.HandleFunc("/loans/{loanId}/schedule", ledger.EnsureSchedule).Methods("POST")
	api.HandleFunc("/loans/{loanId}/unpaid", ledger.ListUnpaidForLoan).Methods("GET")
	api.HandleFunc("/loans/{loanId}/backfill", ledger.Backfill).Methods("POST")
	api.HandleFunc("/loans/{loanId}/foreclose", ledger.Foreclose).Methods("POST")
	api.HandleFunc("/loans/{loanId}/settle", ledger.Settle).Methods("POST")

	api.HandleFunc("/installments/{installmentId}/payment", ledger.RecordPayment).Methods("PUT")
	api.HandleFunc("/installments/{installmentId}/payment", ledger.ResetPayment).Methods("DELETE")

	api.HandleFunc("/reports/due", reports.Due).Methods("GET")
	api.HandleFunc("/reports/overdue", reports.Overdue).Methods("GET")
	api.HandleFunc("/reports/collected", reports.Collected).Methods("GET")
	api.HandleFunc("/reports/interest", reports.Interest).Methods("GET")
	api.HandleFunc("/reports/summary", reports.Summary).Methods("GET")

	return router
}
