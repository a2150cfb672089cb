// AngelaMos | 2026
// entity.go

package subscription

import (
	"time"

	"github.com/carterperez-dev/templates/media-rental/internal/billing"
)

const (
	StatusActive   = "active"
	StatusInactive = "inactive"
)

// Subscription entitles UserID to ListingID over [StartDate, EndDate).
type Subscription struct {
	ID                     string         `db:"id"`
	ListingID              string         `db:"listing_id"`
	SellerID               string         `db:"seller_id"`
	UserID                 string         `db:"user_id"`
	ProviderSubscriptionID string         `db:"provider_subscription_id"`
	BillingCustomerID      string         `db:"billing_customer_id"`
	Period                 billing.Period `db:"period"`
	StartDate              time.Time      `db:"start_date"`
	EndDate                time.Time      `db:"end_date"`
	Status                 string         `db:"status"`
	CreatedAt              time.Time      `db:"created_at"`
	UpdatedAt              time.Time      `db:"updated_at"`
}

// ActiveAt reports whether the entitlement window still covers t. The
// stored status is written once and is not updated when the window ends.
func (s *Subscription) ActiveAt(t time.Time) bool {
	return s.EndDate.After(t)
}

// OwnerRole selects which side of a subscription a listing is for.
type OwnerRole string

const (
	OwnerCustomer OwnerRole = "customer"
	OwnerSeller   OwnerRole = "seller"
)

// Grant is what a paid invoice contributes to a new entitlement.
type Grant struct {
	ListingID              string
	SellerID               string
	UserID                 string
	ProviderSubscriptionID string
	BillingCustomerID      string
	Period                 billing.Period
}

func lockKey(listingID, userID string) string {
	return "entitlement:" + listingID + ":" + userID
}
