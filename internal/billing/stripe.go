// AngelaMos | 2026
// stripe.go

package billing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	stripelib "github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"

	"github.com/carterperez-dev/templates/media-rental/internal/core"
)

type StripeConfig struct {
	SecretKey      string
	WebhookSecret  string
	Currency       string
	SuccessURL     string
	CancelURL      string
	RequestTimeout time.Duration
}

// StripeGateway is constructed once at startup and shared by every
// component that talks to the provider.
type StripeGateway struct {
	client        *stripelib.Client
	webhookSecret string
	currency      string
	successURL    string
	cancelURL     string
	timeout       time.Duration
}

func NewStripeGateway(cfg StripeConfig) *StripeGateway {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &StripeGateway{
		client:        stripelib.NewClient(cfg.SecretKey),
		webhookSecret: cfg.WebhookSecret,
		currency:      strings.ToLower(cfg.Currency),
		successURL:    cfg.SuccessURL,
		cancelURL:     cfg.CancelURL,
		timeout:       timeout,
	}
}

func (g *StripeGateway) CreateCustomer(
	ctx context.Context,
	req CustomerRequest,
) (*Customer, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	params := &stripelib.CustomerCreateParams{
		Email: stripelib.String(req.Email),
	}
	if req.Name != "" {
		params.Name = stripelib.String(req.Name)
	}
	params.AddMetadata(MetaUserID, req.UserID)
	params.AddMetadata(MetaListingID, req.ListingID)
	params.AddMetadata(MetaPeriod, req.Period.String())

	c, err := g.client.V1Customers.Create(ctx, params)
	if err != nil {
		return nil, upstream("create customer", err)
	}
	return toCustomer(c), nil
}

func (g *StripeGateway) RetrieveCustomer(
	ctx context.Context,
	id string,
) (*Customer, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	c, err := g.client.V1Customers.Retrieve(ctx, id, &stripelib.CustomerRetrieveParams{})
	if err != nil {
		return nil, upstream("retrieve customer", err)
	}
	if c.Deleted {
		return nil, fmt.Errorf("retrieve customer %s: %w", id, core.ErrNotFound)
	}
	return toCustomer(c), nil
}

func (g *StripeGateway) CreateCheckoutSession(
	ctx context.Context,
	req CheckoutRequest,
) (*Session, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	params := &stripelib.CheckoutSessionCreateParams{
		Mode:                stripelib.String(string(stripelib.CheckoutSessionModeSubscription)),
		Customer:            stripelib.String(req.CustomerID),
		PaymentMethodTypes:  stripelib.StringSlice([]string{"card"}),
		AllowPromotionCodes: stripelib.Bool(true),
		SuccessURL:          stripelib.String(g.successURL),
		CancelURL:           stripelib.String(g.cancelURL),
		SubscriptionData: &stripelib.CheckoutSessionCreateSubscriptionDataParams{
			Metadata: map[string]string{MetaSeller: req.SellerEmail},
		},
		LineItems: []*stripelib.CheckoutSessionCreateLineItemParams{
			{
				Quantity: stripelib.Int64(1),
				PriceData: &stripelib.CheckoutSessionCreateLineItemPriceDataParams{
					Currency:   stripelib.String(g.currency),
					UnitAmount: stripelib.Int64(req.UnitAmount),
					ProductData: &stripelib.CheckoutSessionCreateLineItemPriceDataProductDataParams{
						Name: stripelib.String(req.ItemName),
					},
					Recurring: &stripelib.CheckoutSessionCreateLineItemPriceDataRecurringParams{
						Interval: stripelib.String(req.Period.String()),
					},
				},
			},
		},
	}
	params.AddMetadata(MetaSeller, req.SellerEmail)
	params.AddMetadata(MetaListingRef, req.ListingID)

	s, err := g.client.V1CheckoutSessions.Create(ctx, params)
	if err != nil {
		return nil, upstream("create checkout session", err)
	}
	return &Session{ID: s.ID, URL: s.URL}, nil
}

func (g *StripeGateway) RetrieveSubscription(
	ctx context.Context,
	id string,
) (*Subscription, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	s, err := g.client.V1Subscriptions.Retrieve(ctx, id, &stripelib.SubscriptionRetrieveParams{})
	if err != nil {
		return nil, upstream("retrieve subscription", err)
	}
	return toSubscription(s), nil
}

func (g *StripeGateway) UpdateSubscriptionCancelFlag(
	ctx context.Context,
	id string,
	cancelAtPeriodEnd bool,
) (*Subscription, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	s, err := g.client.V1Subscriptions.Update(ctx, id, &stripelib.SubscriptionUpdateParams{
		CancelAtPeriodEnd: stripelib.Bool(cancelAtPeriodEnd),
	})
	if err != nil {
		return nil, upstream("update subscription", err)
	}
	return toSubscription(s), nil
}

// VerifyEvent checks the signature header against the webhook secret.
// The reason for a failure is deliberately collapsed into ErrSignature.
func (g *StripeGateway) VerifyEvent(payload []byte, signature string) (*Event, error) {
	if strings.TrimSpace(signature) == "" || g.webhookSecret == "" {
		return nil, core.ErrSignature
	}

	ev, err := webhook.ConstructEventWithOptions(
		payload,
		signature,
		g.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true},
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrSignature, err)
	}

	var object []byte
	if ev.Data != nil {
		object = ev.Data.Raw
	}

	return &Event{
		ID:     ev.ID,
		Type:   string(ev.Type),
		Kind:   KindOf(string(ev.Type)),
		Object: object,
	}, nil
}

func toCustomer(c *stripelib.Customer) *Customer {
	return &Customer{
		ID:       c.ID,
		Email:    c.Email,
		Metadata: c.Metadata,
	}
}

func toSubscription(s *stripelib.Subscription) *Subscription {
	out := &Subscription{
		ID:                s.ID,
		Status:            string(s.Status),
		CancelAtPeriodEnd: s.CancelAtPeriodEnd,
	}
	if s.Customer != nil {
		out.CustomerID = s.Customer.ID
	}
	return out
}

func upstream(op string, err error) error {
	var serr *stripelib.Error
	if errors.As(err, &serr) && serr.Code == stripelib.ErrorCodeResourceMissing {
		return fmt.Errorf("stripe %s: %w", op, core.ErrNotFound)
	}
	return fmt.Errorf("stripe %s: %w: %w", op, core.ErrUpstream, err)
}
