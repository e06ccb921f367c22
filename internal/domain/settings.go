package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// LedgerSettings are the lending defaults applied when a loan is created.
// They are passed explicitly so schedule generation stays free of global state.
type LedgerSettings struct {
	WeeklyRate        decimal.Decimal
	DefaultWeeks      int
	CollectionDay     time.Weekday
	CurrencyPrecision int32
}

// DefaultLedgerSettings mirrors the values a new field agent starts with
func DefaultLedgerSettings() LedgerSettings {
	return LedgerSettings{
		WeeklyRate:        decimal.RequireFromString("0.05"),
		DefaultWeeks:      24,
		CollectionDay:     time.Sunday,
		CurrencyPrecision: 2,
	}
}
