// AngelaMos | 2026
// gateway.go

// Package billingtest provides an in-memory billing.Gateway.
package billingtest

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/carterperez-dev/templates/media-rental/internal/billing"
	"github.com/carterperez-dev/templates/media-rental/internal/core"
)

// Gateway records every call and serves customers and subscriptions from
// memory. Fail* fields inject upstream failures.
type Gateway struct {
	mu            sync.Mutex
	customers     map[string]*billing.Customer
	subscriptions map[string]*billing.Subscription

	Checkouts []billing.CheckoutRequest

	FailCustomer bool
	FailCheckout bool
	// FailSubscription makes lookups and updates of these ids fail.
	FailSubscription map[string]bool
	// IgnoreCancelUpdate makes updates report the old flag.
	IgnoreCancelUpdate bool
}

func NewGateway() *Gateway {
	return &Gateway{
		customers:        map[string]*billing.Customer{},
		subscriptions:    map[string]*billing.Subscription{},
		FailSubscription: map[string]bool{},
	}
}

func (g *Gateway) CreateCustomer(_ context.Context, req billing.CustomerRequest) (*billing.Customer, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.FailCustomer {
		return nil, fmt.Errorf("create customer: %w", core.ErrUpstream)
	}
	c := &billing.Customer{
		ID:    "cus_" + uuid.NewString()[:8],
		Email: req.Email,
		Metadata: map[string]string{
			billing.MetaUserID:    req.UserID,
			billing.MetaListingID: req.ListingID,
			billing.MetaPeriod:    req.Period.String(),
		},
	}
	g.customers[c.ID] = c
	return c, nil
}

// PutCustomer stores a customer as if created out of band.
func (g *Gateway) PutCustomer(c *billing.Customer) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.customers[c.ID] = c
}

func (g *Gateway) RetrieveCustomer(_ context.Context, id string) (*billing.Customer, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	c, ok := g.customers[id]
	if !ok {
		return nil, fmt.Errorf("retrieve customer %s: %w", id, core.ErrNotFound)
	}
	cp := *c
	return &cp, nil
}

func (g *Gateway) CreateCheckoutSession(_ context.Context, req billing.CheckoutRequest) (*billing.Session, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.FailCheckout {
		return nil, fmt.Errorf("create checkout session: %w", core.ErrUpstream)
	}
	g.Checkouts = append(g.Checkouts, req)
	id := "cs_" + uuid.NewString()[:8]
	return &billing.Session{ID: id, URL: "https://checkout.test/" + id}, nil
}

// PutSubscription stores a provider subscription.
func (g *Gateway) PutSubscription(s *billing.Subscription) {
	g.mu.Lock()
	defer g.mu.Unlock()
	cp := *s
	g.subscriptions[s.ID] = &cp
}

func (g *Gateway) RetrieveSubscription(_ context.Context, id string) (*billing.Subscription, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.FailSubscription[id] {
		return nil, fmt.Errorf("retrieve subscription %s: %w", id, core.ErrUpstream)
	}
	s, ok := g.subscriptions[id]
	if !ok {
		return nil, fmt.Errorf("retrieve subscription %s: %w", id, core.ErrNotFound)
	}
	cp := *s
	return &cp, nil
}

func (g *Gateway) UpdateSubscriptionCancelFlag(
	_ context.Context,
	id string,
	cancel bool,
) (*billing.Subscription, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.FailSubscription[id] {
		return nil, fmt.Errorf("update subscription %s: %w", id, core.ErrUpstream)
	}
	s, ok := g.subscriptions[id]
	if !ok {
		return nil, fmt.Errorf("update subscription %s: %w", id, core.ErrNotFound)
	}
	if !g.IgnoreCancelUpdate {
		s.CancelAtPeriodEnd = cancel
	}
	cp := *s
	return &cp, nil
}

var _ billing.Gateway = (*Gateway)(nil)
