package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// InterestEarned splits realised interest by loan status
type InterestEarned struct {
	Closed     decimal.Decimal `json:"closed"`
	Active     decimal.Decimal `json:"active"`
	Foreclosed decimal.Decimal `json:"foreclosed"`
	Total      decimal.Decimal `json:"total"`
}

// PortfolioSummary is the dashboard view of one field agent's book
type PortfolioSummary struct {
	UserID                  uuid.UUID       `json:"user_id"`
	AsOf                    time.Time       `json:"as_of"`
	ActiveLoans             int             `json:"active_loans"`
	ClosedLoans             int             `json:"closed_loans"`
	ForeclosedLoans         int             `json:"foreclosed_loans"`
	TotalPrincipalDisbursed decimal.Decimal `json:"total_principal_disbursed"`
	ActivePrincipal         decimal.Decimal `json:"active_principal"`
	TotalExpected           decimal.Decimal `json:"total_expected"`
	TotalCollected          decimal.Decimal `json:"total_collected"`
	Outstanding             decimal.Decimal `json:"outstanding"`
	CollectionRate          decimal.Decimal `json:"collection_rate"`
	OverdueAmount           decimal.Decimal `json:"overdue_amount"`
	OverdueInstallments     int             `json:"overdue_installments"`
	OverdueLoans            int             `json:"overdue_loans"`
	InterestEarned          InterestEarned  `json:"interest_earned"`
	PotentialInterest       decimal.Decimal `json:"potential_interest"`
}
