// AngelaMos | 2026
// dto.go

package listing

import (
	"time"

	"github.com/carterperez-dev/templates/media-rental/internal/billing"
)

type PricingInput struct {
	Price    float64 `json:"price"    validate:"gt=0"`
	Discount float64 `json:"discount" validate:"gte=0,ltfield=Price"`
}

type CreateListingRequest struct {
	Title       string       `json:"title"       validate:"required,min=1,max=200"`
	Description string       `json:"description" validate:"required,max=5000"`
	Image       string       `json:"image"       validate:"required,url,max=2048"`
	Width       string       `json:"width"       validate:"required,max=50"`
	Height      string       `json:"height"      validate:"required,max=50"`
	Daily       PricingInput `json:"daily"`
	Weekly      PricingInput `json:"weekly"`
	Monthly     PricingInput `json:"monthly"`
	Yearly      PricingInput `json:"yearly"`
	IsListed    *bool        `json:"is_listed,omitempty"`
}

type UpdateListingRequest struct {
	Title       *string       `json:"title,omitempty"       validate:"omitempty,min=1,max=200"`
	Description *string       `json:"description,omitempty" validate:"omitempty,max=5000"`
	Image       *string       `json:"image,omitempty"       validate:"omitempty,url,max=2048"`
	Width       *string       `json:"width,omitempty"       validate:"omitempty,max=50"`
	Height      *string       `json:"height,omitempty"      validate:"omitempty,max=50"`
	Daily       *PricingInput `json:"daily,omitempty"`
	Weekly      *PricingInput `json:"weekly,omitempty"`
	Monthly     *PricingInput `json:"monthly,omitempty"`
	Yearly      *PricingInput `json:"yearly,omitempty"`
	IsListed    *bool         `json:"is_listed,omitempty"`
}

type ListParams struct {
	Skip     int
	Limit    int
	Search   string
	SellerID string
	// Public restricts results to purchasable listings.
	Public bool
}

type ListingResponse struct {
	ID          string    `json:"id"`
	SellerID    string    `json:"seller_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Image       string    `json:"image"`
	Width       string    `json:"width"`
	Height      string    `json:"height"`
	Daily       Pricing   `json:"daily"`
	Weekly      Pricing   `json:"weekly"`
	Monthly     Pricing   `json:"monthly"`
	Yearly      Pricing   `json:"yearly"`
	IsListed    bool      `json:"is_listed"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func ToListingResponse(l *Listing) ListingResponse {
	tier := func(p billing.Period) Pricing {
		pr, _ := l.PricingFor(p)
		return pr
	}
	return ListingResponse{
		ID:          l.ID,
		SellerID:    l.SellerID,
		Title:       l.Title,
		Description: l.Description,
		Image:       l.Image,
		Width:       l.Width,
		Height:      l.Height,
		Daily:       tier(billing.PeriodDay),
		Weekly:      tier(billing.PeriodWeek),
		Monthly:     tier(billing.PeriodMonth),
		Yearly:      tier(billing.PeriodYear),
		IsListed:    l.IsListed,
		CreatedAt:   l.CreatedAt,
		UpdatedAt:   l.UpdatedAt,
	}
}

func ToListingResponseList(listings []Listing) []ListingResponse {
	out := make([]ListingResponse, 0, len(listings))
	for i := range listings {
		out = append(out, ToListingResponse(&listings[i]))
	}
	return out
}
