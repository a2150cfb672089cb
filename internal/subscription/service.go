// AngelaMos | 2026
// service.go

package subscription

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/carterperez-dev/templates/media-rental/internal/billing"
	"github.com/carterperez-dev/templates/media-rental/internal/core"
	"github.com/carterperez-dev/templates/media-rental/internal/metrics"
)

const lookupConcurrency = 8

type Service struct {
	repo    Repository
	gateway billing.Gateway
	locker  core.Locker
	logger  *slog.Logger
	now     func() time.Time
}

func NewService(
	repo Repository,
	gateway billing.Gateway,
	locker core.Locker,
	logger *slog.Logger,
) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if locker == nil {
		locker = core.NewLocalLocker()
	}
	return &Service{
		repo:    repo,
		gateway: gateway,
		locker:  locker,
		logger:  logger,
		now:     time.Now,
	}
}

// Grant creates an entitlement for g unless the pair already holds one
// that is still running. Calls for the same (listing, user) are
// serialized, so concurrent duplicates observe the first insert.
func (s *Service) Grant(ctx context.Context, g Grant) (*Subscription, bool, error) {
	if !g.Period.Valid() {
		return nil, false, core.Invalid(fmt.Sprintf("invalid period %q", g.Period))
	}

	unlock, err := s.locker.Lock(ctx, lockKey(g.ListingID, g.UserID))
	if err != nil {
		return nil, false, fmt.Errorf("grant subscription: %w", err)
	}
	defer unlock()

	now := s.now().UTC()
	sub := &Subscription{
		ID:                     uuid.New().String(),
		ListingID:              g.ListingID,
		SellerID:               g.SellerID,
		UserID:                 g.UserID,
		ProviderSubscriptionID: g.ProviderSubscriptionID,
		BillingCustomerID:      g.BillingCustomerID,
		Period:                 g.Period,
		StartDate:              now,
		EndDate:                g.Period.AddTo(now),
		Status:                 StatusActive,
	}

	created, err := s.repo.CreateIfNoActive(ctx, sub, now)
	if err != nil {
		return nil, false, err
	}
	return sub, created, nil
}

// Revoke drops every subscription of the pair. Revoking nothing is not an
// error.
func (s *Service) Revoke(ctx context.Context, listingID, userID string) (int64, error) {
	unlock, err := s.locker.Lock(ctx, lockKey(listingID, userID))
	if err != nil {
		return 0, fmt.Errorf("revoke subscription: %w", err)
	}
	defer unlock()

	return s.repo.DeleteByListingAndUser(ctx, listingID, userID)
}

// List returns a page of subscriptions with live cancellation state. A
// failed provider lookup degrades that record to MarkedForCancel=false
// and never fails the page. Rows past their end date report as inactive.
func (s *Service) List(
	ctx context.Context,
	ownerID string,
	role OwnerRole,
	skip, limit int,
) ([]View, int, error) {
	subs, total, err := s.repo.ListByOwner(ctx, ownerID, role, skip, limit)
	if err != nil {
		return nil, 0, err
	}

	now := s.now()
	views := make([]View, len(subs))
	var g errgroup.Group
	g.SetLimit(lookupConcurrency)

	for i := range subs {
		views[i].Subscription = subs[i]
		if !subs[i].ActiveAt(now) {
			views[i].Status = StatusInactive
		}
		providerID := subs[i].ProviderSubscriptionID
		if providerID == "" {
			continue
		}

		g.Go(func() error {
			remote, err := s.gateway.RetrieveSubscription(ctx, providerID)
			if err != nil {
				metrics.SubscriptionLookupFailures.Inc()
				s.logger.WarnContext(ctx, "subscription lookup failed",
					"subscription_id", providerID,
					"error", err,
				)
				return nil
			}
			views[i].MarkedForCancel = remote.CancelAtPeriodEnd
			return nil
		})
	}

	//nolint:errcheck // lookups never return an error
	_ = g.Wait()

	return views, total, nil
}

// Renew restarts the window from now with the given unit.
func (s *Service) Renew(
	ctx context.Context,
	id, ownerID, unit string,
) (*Subscription, error) {
	period, err := billing.ParsePeriod(unit)
	if err != nil {
		return nil, err
	}

	if err := core.CheckID("subscription", id); err != nil {
		return nil, err
	}
	sub, err := s.repo.GetForOwner(ctx, id, ownerID)
	if err != nil {
		return nil, err
	}

	end := period.AddTo(s.now().UTC())
	if err := s.repo.UpdateWindow(ctx, sub.ID, period.String(), end); err != nil {
		return nil, err
	}

	sub.Period = period
	sub.EndDate = end
	sub.Status = StatusActive
	return sub, nil
}

// CancelOrReactivate sets the provider's cancel-at-period-end flag on a
// subscription the caller owns. confirmed reports whether the provider
// now holds the requested flag.
func (s *Service) CancelOrReactivate(
	ctx context.Context,
	ownerID, providerID string,
	isCancel bool,
) (confirmed bool, remote *billing.Subscription, err error) {
	if _, err := s.repo.GetByProviderID(ctx, providerID, ownerID); err != nil {
		return false, nil, err
	}

	remote, err = s.gateway.UpdateSubscriptionCancelFlag(ctx, providerID, isCancel)
	if err != nil {
		return false, nil, fmt.Errorf("cancel or reactivate: %w", err)
	}

	s.logger.InfoContext(ctx, "subscription auto-renew changed",
		"subscription_id", providerID,
		"user_id", ownerID,
		"cancel_at_period_end", remote.CancelAtPeriodEnd,
	)
	return remote.CancelAtPeriodEnd == isCancel, remote, nil
}

// Status returns the provider's view of a subscription the caller owns.
func (s *Service) Status(
	ctx context.Context,
	ownerID, providerID string,
) (*billing.Subscription, error) {
	if _, err := s.repo.GetByProviderID(ctx, providerID, ownerID); err != nil {
		return nil, err
	}

	remote, err := s.gateway.RetrieveSubscription(ctx, providerID)
	if err != nil {
		return nil, fmt.Errorf("subscription status: %w", err)
	}
	return remote, nil
}

func (s *Service) CountActive(ctx context.Context) (int, error) {
	return s.repo.CountActive(ctx, s.now())
}
