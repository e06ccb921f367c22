package utils

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/teambition/rrule-go"
)

// DateLayout is the wire format for calendar dates
const DateLayout = "2006-01-02"

// CalculateWeeklyAmount calculates the flat weekly installment
// Formula: Principal * WeeklyRate, rounded to currency precision
func CalculateWeeklyAmount(principal decimal.Decimal, weeklyRate decimal.Decimal, precision int32) decimal.Decimal {
	return principal.Mul(weeklyRate).Round(precision)
}

// CalculateTotalAmount calculates the total repayable amount
func CalculateTotalAmount(weeklyAmount decimal.Decimal, weeks int) decimal.Decimal {
	return weeklyAmount.Mul(decimal.NewFromInt(int64(weeks)))
}

// TruncateToDate drops the clock part, keeping the calendar date in UTC
func TruncateToDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a YYYY-MM-DD string into a UTC date
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return t, nil
}

// NextCollectionDay returns the next occurrence of weekday strictly after start.
// A start date that already falls on the weekday moves a full week ahead.
func NextCollectionDay(start time.Time, weekday time.Weekday) time.Time {
	start = TruncateToDate(start)
	days := (int(weekday) - int(start.Weekday()) + 7) % 7
	if days == 0 {
		days = 7
	}
	return start.AddDate(0, 0, days)
}

// WeeklyDueDates expands the weekly cadence anchored at firstPaymentDate into count dates
func WeeklyDueDates(firstPaymentDate time.Time, count int) ([]time.Time, error) {
	if count <= 0 {
		return nil, fmt.Errorf("count must be positive, got %d", count)
	}

	rule, err := rrule.NewRRule(rrule.ROption{
		Freq:    rrule.WEEKLY,
		Count:   count,
		Dtstart: TruncateToDate(firstPaymentDate),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build weekly recurrence: %w", err)
	}

	dates := rule.All()
	for i := range dates {
		dates[i] = TruncateToDate(dates[i])
	}
	if len(dates) != count {
		return nil, fmt.Errorf("weekly recurrence produced %d dates, expected %d", len(dates), count)
	}

	return dates, nil
}

// IsDateOverdue checks if a due date is strictly before today
func IsDateOverdue(dueDate time.Time, today time.Time) bool {
	return TruncateToDate(dueDate).Before(TruncateToDate(today))
}

// InRange reports whether date falls within [start, end], comparing calendar dates only
func InRange(date, start, end time.Time) bool {
	d := TruncateToDate(date)
	return !d.Before(TruncateToDate(start)) && !d.After(TruncateToDate(end))
}

// Percentage returns part / whole * 100, or zero when whole is not positive
func Percentage(part, whole decimal.Decimal) decimal.Decimal {
	if !whole.IsPositive() {
		return decimal.Zero
	}
	return part.Div(whole).Mul(decimal.NewFromInt(100))
}
