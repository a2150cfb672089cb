// AngelaMos | 2026
// dto.go

package subscription

import (
	"time"

	"github.com/carterperez-dev/templates/media-rental/internal/billing"
)

type RenewRequest struct {
	Unit string `json:"unit" validate:"required,max=20"`
}

type CancelRequest struct {
	IsCancel *bool `json:"is_cancel" validate:"required"`
}

type SubscriptionResponse struct {
	ID                     string         `json:"id"`
	ListingID              string         `json:"listing_id"`
	SellerID               string         `json:"seller_id"`
	UserID                 string         `json:"user_id"`
	ProviderSubscriptionID string         `json:"provider_subscription_id"`
	Period                 billing.Period `json:"period"`
	StartDate              time.Time      `json:"start_date"`
	EndDate                time.Time      `json:"end_date"`
	Status                 string         `json:"status"`
	MarkedForCancel        bool           `json:"marked_for_cancel"`
	CreatedAt              time.Time      `json:"created_at"`
}

// View is a stored subscription annotated with live provider state.
type View struct {
	Subscription
	MarkedForCancel bool
}

func ToSubscriptionResponse(v View) SubscriptionResponse {
	return SubscriptionResponse{
		ID:                     v.ID,
		ListingID:              v.ListingID,
		SellerID:               v.SellerID,
		UserID:                 v.UserID,
		ProviderSubscriptionID: v.ProviderSubscriptionID,
		Period:                 v.Period,
		StartDate:              v.StartDate,
		EndDate:                v.EndDate,
		Status:                 v.Status,
		MarkedForCancel:        v.MarkedForCancel,
		CreatedAt:              v.CreatedAt,
	}
}

func ToSubscriptionResponseList(views []View) []SubscriptionResponse {
	out := make([]SubscriptionResponse, 0, len(views))
	for _, v := range views {
		out = append(out, ToSubscriptionResponse(v))
	}
	return out
}

type CancelResponse struct {
	Confirmed         bool `json:"confirmed"`
	CancelAtPeriodEnd bool `json:"cancel_at_period_end"`
}
