// AngelaMos | 2026
// engine.go

package webhook

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/carterperez-dev/templates/media-rental/internal/billing"
	"github.com/carterperez-dev/templates/media-rental/internal/core"
	"github.com/carterperez-dev/templates/media-rental/internal/listing"
	"github.com/carterperez-dev/templates/media-rental/internal/metrics"
	"github.com/carterperez-dev/templates/media-rental/internal/subscription"
	"github.com/carterperez-dev/templates/media-rental/internal/user"
)

type Listings interface {
	Resolve(ctx context.Context, id string) (*listing.Listing, error)
}

type Accounts interface {
	GetUser(ctx context.Context, id string) (*user.User, error)
}

type Offers interface {
	PurgeBySession(ctx context.Context, sessionID string) (int64, error)
}

type Entitlements interface {
	Grant(ctx context.Context, g subscription.Grant) (*subscription.Subscription, bool, error)
	Revoke(ctx context.Context, listingID, userID string) (int64, error)
}

type Customers interface {
	RetrieveCustomer(ctx context.Context, id string) (*billing.Customer, error)
}

// errUnresolved marks an event whose listing or user no longer exists.
var errUnresolved = errors.New("event target unresolved")

// Engine applies verified billing events to the offer queue and the
// entitlement store. Every branch is safe to run twice.
type Engine struct {
	listings     Listings
	accounts     Accounts
	offers       Offers
	entitlements Entitlements
	customers    Customers
	logger       *slog.Logger
}

func NewEngine(
	listings Listings,
	accounts Accounts,
	offers Offers,
	entitlements Entitlements,
	customers Customers,
	logger *slog.Logger,
) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		listings:     listings,
		accounts:     accounts,
		offers:       offers,
		entitlements: entitlements,
		customers:    customers,
		logger:       logger,
	}
}

// Dispatch routes ev to its handler and returns the recorded outcome.
func (e *Engine) Dispatch(ctx context.Context, ev *billing.Event) (string, error) {
	ctx, span := core.StartSpan(ctx, "webhook.dispatch",
		attribute.String("event.id", ev.ID),
		attribute.String("event.kind", ev.Kind.String()),
	)
	defer span.End()

	start := time.Now()
	logger := e.logger.With("event_id", ev.ID, "event_type", ev.Type)

	var (
		outcome string
		err     error
	)
	switch ev.Kind {
	case billing.EventCheckoutCompleted:
		outcome, err = e.checkoutCompleted(ctx, ev)
	case billing.EventCheckoutExpired:
		outcome, err = e.checkoutExpired(ctx, ev)
	case billing.EventInvoicePaid:
		outcome, err = e.invoicePaid(ctx, logger, ev)
	case billing.EventInvoiceFailed:
		outcome, err = e.invoiceFailed(ctx, logger, ev)
	case billing.EventSubscriptionDeleted:
		outcome, err = e.subscriptionDeleted(ctx, logger, ev)
	default:
		logger.InfoContext(ctx, "unhandled billing event")
		outcome = metrics.OutcomeIgnored
	}

	if errors.Is(err, errUnresolved) {
		logger.WarnContext(ctx, "billing event target not found", "error", err)
		outcome, err = metrics.OutcomeIgnored, nil
	}
	if err != nil {
		outcome = metrics.OutcomeFailed
		core.SetSpanError(ctx, err)
		logger.ErrorContext(ctx, "billing event failed", "error", err)
	}

	span.SetAttributes(attribute.String("event.outcome", outcome))
	metrics.WebhookEventsTotal.WithLabelValues(ev.Kind.String(), outcome).Inc()
	metrics.WebhookDuration.WithLabelValues(ev.Kind.String()).
		Observe(time.Since(start).Seconds())

	if outcome == metrics.OutcomeApplied {
		logger.InfoContext(ctx, "billing event applied")
	}
	return outcome, err
}

func (e *Engine) checkoutCompleted(ctx context.Context, ev *billing.Event) (string, error) {
	cs, err := ev.CheckoutSession()
	if err != nil {
		return "", err
	}
	if cs.PaymentStatus != billing.PaymentStatusPaid {
		return metrics.OutcomeIgnored, nil
	}
	return e.purge(ctx, cs.ID)
}

func (e *Engine) checkoutExpired(ctx context.Context, ev *billing.Event) (string, error) {
	cs, err := ev.CheckoutSession()
	if err != nil {
		return "", err
	}
	return e.purge(ctx, cs.ID)
}

func (e *Engine) purge(ctx context.Context, sessionID string) (string, error) {
	n, err := e.offers.PurgeBySession(ctx, sessionID)
	if err != nil {
		return "", fmt.Errorf("purge offer: %w", err)
	}
	if n == 0 {
		return metrics.OutcomeNoop, nil
	}
	return metrics.OutcomeApplied, nil
}

func (e *Engine) invoicePaid(
	ctx context.Context,
	logger *slog.Logger,
	ev *billing.Event,
) (string, error) {
	inv, err := ev.Invoice()
	if err != nil {
		return "", err
	}

	t, err := e.resolve(ctx, inv.Customer)
	if err != nil {
		return "", err
	}

	sub, created, err := e.entitlements.Grant(ctx, subscription.Grant{
		ListingID:              t.listing.ID,
		SellerID:               t.listing.SellerID,
		UserID:                 t.user.ID,
		ProviderSubscriptionID: inv.SubscriptionID(),
		BillingCustomerID:      inv.Customer,
		Period:                 t.period,
	})
	if err != nil {
		return "", fmt.Errorf("grant entitlement: %w", err)
	}
	if !created {
		return metrics.OutcomeNoop, nil
	}

	logger.InfoContext(ctx, "entitlement granted",
		"subscription_id", sub.ID,
		"listing_id", sub.ListingID,
		"user_id", sub.UserID,
		"end_date", sub.EndDate,
	)
	return metrics.OutcomeApplied, nil
}

func (e *Engine) invoiceFailed(
	ctx context.Context,
	logger *slog.Logger,
	ev *billing.Event,
) (string, error) {
	inv, err := ev.Invoice()
	if err != nil {
		return "", err
	}
	return e.revoke(ctx, logger, inv.Customer)
}

func (e *Engine) subscriptionDeleted(
	ctx context.Context,
	logger *slog.Logger,
	ev *billing.Event,
) (string, error) {
	sub, err := ev.Subscription()
	if err != nil {
		return "", err
	}
	return e.revoke(ctx, logger, sub.Customer)
}

func (e *Engine) revoke(
	ctx context.Context,
	logger *slog.Logger,
	customerID string,
) (string, error) {
	t, err := e.resolve(ctx, customerID)
	if err != nil {
		return "", err
	}

	n, err := e.entitlements.Revoke(ctx, t.listing.ID, t.user.ID)
	if err != nil {
		return "", fmt.Errorf("revoke entitlement: %w", err)
	}
	if n == 0 {
		return metrics.OutcomeNoop, nil
	}

	logger.InfoContext(ctx, "entitlement revoked",
		"listing_id", t.listing.ID,
		"user_id", t.user.ID,
		"removed", n,
	)
	return metrics.OutcomeApplied, nil
}

type target struct {
	listing *listing.Listing
	user    *user.User
	period  billing.Period
}

// resolve reads the listing, user and period stamped on the provider
// customer at checkout.
func (e *Engine) resolve(ctx context.Context, customerID string) (*target, error) {
	if customerID == "" {
		return nil, fmt.Errorf("%w: event has no customer", errUnresolved)
	}

	c, err := e.customers.RetrieveCustomer(ctx, customerID)
	if err != nil {
		return nil, unresolved("customer", err)
	}

	period, err := c.Period()
	if err != nil {
		return nil, fmt.Errorf("%w: customer %s: %w", errUnresolved, customerID, err)
	}

	l, err := e.listings.Resolve(ctx, c.ListingID())
	if err != nil {
		return nil, unresolved("listing", err)
	}

	u, err := e.accounts.GetUser(ctx, c.UserID())
	if err != nil {
		return nil, unresolved("user", err)
	}

	return &target{listing: l, user: u, period: period}, nil
}

func unresolved(what string, err error) error {
	if errors.Is(err, core.ErrNotFound) {
		return fmt.Errorf("%w: %s: %w", errUnresolved, what, err)
	}
	return fmt.Errorf("resolve %s: %w", what, err)
}
