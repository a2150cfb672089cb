// AngelaMos | 2026
// gateway.go

package billing

import (
	"context"
)

// Customer metadata keys stamped at checkout and read back when invoice
// events arrive.
const (
	MetaListingID  = "_listing"
	MetaUserID     = "_user"
	MetaPeriod     = "subscriptionType"
	MetaSeller     = "sellerEmail"
	MetaListingRef = "listingId"
)

type Gateway interface {
	CreateCustomer(ctx context.Context, req CustomerRequest) (*Customer, error)
	RetrieveCustomer(ctx context.Context, id string) (*Customer, error)
	CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*Session, error)
	RetrieveSubscription(ctx context.Context, id string) (*Subscription, error)
	UpdateSubscriptionCancelFlag(ctx context.Context, id string, cancel bool) (*Subscription, error)
}

// EventVerifier authenticates raw provider callbacks.
type EventVerifier interface {
	VerifyEvent(payload []byte, signature string) (*Event, error)
}

type CustomerRequest struct {
	Email     string
	Name      string
	UserID    string
	ListingID string
	Period    Period
}

type Customer struct {
	ID       string
	Email    string
	Metadata map[string]string
}

func (c *Customer) ListingID() string { return c.Metadata[MetaListingID] }

func (c *Customer) UserID() string { return c.Metadata[MetaUserID] }

func (c *Customer) Period() (Period, error) {
	return ParsePeriod(c.Metadata[MetaPeriod])
}

type CheckoutRequest struct {
	CustomerID  string
	ListingID   string
	ItemName    string
	SellerEmail string
	Period      Period
	UnitAmount  int64
}

type Session struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

type Subscription struct {
	ID                string `json:"id"`
	CustomerID        string `json:"customer_id"`
	Status            string `json:"status"`
	CancelAtPeriodEnd bool   `json:"cancel_at_period_end"`
}
