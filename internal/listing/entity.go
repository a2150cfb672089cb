// AngelaMos | 2026
// entity.go

package listing

import (
	"time"

	"github.com/carterperez-dev/templates/media-rental/internal/billing"
)

type Listing struct {
	ID              string    `db:"id"`
	SellerID        string    `db:"seller_id"`
	Title           string    `db:"title"`
	Description     string    `db:"description"`
	Image           string    `db:"image"`
	Width           string    `db:"width"`
	Height          string    `db:"height"`
	DailyPrice      float64   `db:"daily_price"`
	DailyDiscount   float64   `db:"daily_discount"`
	WeeklyPrice     float64   `db:"weekly_price"`
	WeeklyDiscount  float64   `db:"weekly_discount"`
	MonthlyPrice    float64   `db:"monthly_price"`
	MonthlyDiscount float64   `db:"monthly_discount"`
	YearlyPrice     float64   `db:"yearly_price"`
	YearlyDiscount  float64   `db:"yearly_discount"`
	IsListed        bool      `db:"is_listed"`
	IsDeleted       bool      `db:"is_deleted"`
	CreatedAt       time.Time `db:"created_at"`
	UpdatedAt       time.Time `db:"updated_at"`
}

type Pricing struct {
	Price    float64 `json:"price"`
	Discount float64 `json:"discount"`
}

// IsPurchasable reports whether customers may check out this listing.
func (l *Listing) IsPurchasable() bool {
	return l.IsListed && !l.IsDeleted
}

func (l *Listing) PricingFor(p billing.Period) (Pricing, bool) {
	switch p {
	case billing.PeriodDay:
		return Pricing{l.DailyPrice, l.DailyDiscount}, true
	case billing.PeriodWeek:
		return Pricing{l.WeeklyPrice, l.WeeklyDiscount}, true
	case billing.PeriodMonth:
		return Pricing{l.MonthlyPrice, l.MonthlyDiscount}, true
	case billing.PeriodYear:
		return Pricing{l.YearlyPrice, l.YearlyDiscount}, true
	}
	return Pricing{}, false
}

func (l *Listing) setPricing(p billing.Period, pr Pricing) {
	switch p {
	case billing.PeriodDay:
		l.DailyPrice, l.DailyDiscount = pr.Price, pr.Discount
	case billing.PeriodWeek:
		l.WeeklyPrice, l.WeeklyDiscount = pr.Price, pr.Discount
	case billing.PeriodMonth:
		l.MonthlyPrice, l.MonthlyDiscount = pr.Price, pr.Discount
	case billing.PeriodYear:
		l.YearlyPrice, l.YearlyDiscount = pr.Price, pr.Discount
	}
}
