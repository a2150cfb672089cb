// AngelaMos | 2026
// period.go

package billing

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/carterperez-dev/templates/media-rental/internal/core"
)

// Period is a recurring billing interval. Its string form doubles as the
// provider's recurring interval.
type Period string

const (
	PeriodDay   Period = "day"
	PeriodWeek  Period = "week"
	PeriodMonth Period = "month"
	PeriodYear  Period = "year"
)

var periodAliases = map[string]Period{
	"day":     PeriodDay,
	"daily":   PeriodDay,
	"week":    PeriodWeek,
	"weekly":  PeriodWeek,
	"month":   PeriodMonth,
	"monthly": PeriodMonth,
	"year":    PeriodYear,
	"yearly":  PeriodYear,
}

// ParsePeriod accepts both the unit form (month) and the adverb form
// (monthly). Anything else is a validation error.
func ParsePeriod(s string) (Period, error) {
	p, ok := periodAliases[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return "", core.Invalid(fmt.Sprintf("invalid subscription type %q", s))
	}
	return p, nil
}

func (p Period) Valid() bool {
	switch p {
	case PeriodDay, PeriodWeek, PeriodMonth, PeriodYear:
		return true
	}
	return false
}

func (p Period) String() string {
	return string(p)
}

// AddTo returns t plus one period. Month and year steps clamp the day to
// the last day of the target month, so Jan 31 + 1 month is Feb 28 (or 29)
// rather than rolling into March.
func (p Period) AddTo(t time.Time) time.Time {
	switch p {
	case PeriodDay:
		return t.AddDate(0, 0, 1)
	case PeriodWeek:
		return t.AddDate(0, 0, 7)
	case PeriodMonth:
		return addMonthsClamped(t, 1)
	case PeriodYear:
		return addMonthsClamped(t, 12)
	default:
		return t
	}
}

func addMonthsClamped(t time.Time, months int) time.Time {
	y, m, d := t.Date()
	first := time.Date(y, m+time.Month(months), 1,
		t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())

	if last := daysIn(first.Year(), first.Month()); d > last {
		d = last
	}
	return first.AddDate(0, 0, d-1)
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// UnitAmount converts a decimal price minus discount into the provider's
// minor currency unit.
func UnitAmount(price, discount float64) (int64, error) {
	amount := math.Round((price - discount) * 100)
	if amount <= 0 {
		return 0, core.Invalid("price after discount must be positive")
	}
	return int64(amount), nil
}
