// AngelaMos | 2026
// dto.go

package offer

import (
	"time"
)

// Details is what a checkout contributes to a new offer.
type Details struct {
	ItemName       string   `validate:"required,max=300"`
	SessionID      string   `validate:"required,max=255"`
	ListingID      string   `validate:"required,max=64"`
	CheckoutURL    string   `validate:"required,url"`
	AttachmentURLs []string `validate:"max=5,dive,url"`
}

type ResolveOfferRequest struct {
	ItemName  string `json:"item_name"  validate:"required,max=300"`
	SessionID string `json:"session_id" validate:"omitempty,max=255"`
}

type DeleteOfferRequest struct {
	ItemName  string `json:"item_name"  validate:"required,max=300"`
	SessionID string `json:"session_id" validate:"omitempty,max=255"`
}

type AdminDeleteOfferRequest struct {
	SellerEmail string `json:"seller_email" validate:"required,email,max=255"`
	ItemName    string `json:"item_name"    validate:"required,max=300"`
	SessionID   string `json:"session_id"   validate:"omitempty,max=255"`
}

type OfferResponse struct {
	ID             string     `json:"id"`
	CustomerEmail  string     `json:"customer_email"`
	ItemName       string     `json:"item_name"`
	SessionID      string     `json:"session_id"`
	ListingID      string     `json:"listing_id"`
	AttachmentURLs []string   `json:"attachment_urls"`
	Permission     Permission `json:"permission"`
	CheckoutURL    string     `json:"checkout_url"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// RepairReport summarizes one reconciliation pass.
type RepairReport struct {
	MirrorsCreated    int `json:"mirrors_created"`
	SellerDropped     int `json:"seller_records_dropped"`
	CustomerDropped   int `json:"customer_records_dropped"`
	PermissionsSynced int `json:"permissions_synced"`
}

func (r RepairReport) Total() int {
	return r.MirrorsCreated + r.SellerDropped + r.CustomerDropped + r.PermissionsSynced
}

func ToOfferResponse(o *OfferRecord) OfferResponse {
	urls := []string(o.AttachmentURLs)
	if urls == nil {
		urls = []string{}
	}
	return OfferResponse{
		ID:             o.ID,
		CustomerEmail:  o.CustomerEmail,
		ItemName:       o.ItemName,
		SessionID:      o.SessionID,
		ListingID:      o.ListingID,
		AttachmentURLs: urls,
		Permission:     o.Permission,
		CheckoutURL:    o.CheckoutURL,
		CreatedAt:      o.CreatedAt,
		UpdatedAt:      o.UpdatedAt,
	}
}

func ToOfferResponseList(offers []OfferRecord) []OfferResponse {
	out := make([]OfferResponse, 0, len(offers))
	for i := range offers {
		out = append(out, ToOfferResponse(&offers[i]))
	}
	return out
}
