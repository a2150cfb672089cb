// AngelaMos | 2026
// service.go

package checkout

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/carterperez-dev/templates/media-rental/internal/billing"
	"github.com/carterperez-dev/templates/media-rental/internal/core"
	"github.com/carterperez-dev/templates/media-rental/internal/listing"
	"github.com/carterperez-dev/templates/media-rental/internal/offer"
	"github.com/carterperez-dev/templates/media-rental/internal/user"
)

type Listings interface {
	GetPurchasable(ctx context.Context, id string) (*listing.Listing, error)
}

type Accounts interface {
	GetUser(ctx context.Context, id string) (*user.User, error)
}

type Offers interface {
	CreateOffer(
		ctx context.Context,
		sellerEmail, customerEmail string,
		d offer.Details,
	) (*offer.OfferRecord, error)
}

type Request struct {
	SubscriptionType string   `json:"subscription_type" validate:"required"`
	AttachmentURLs   []string `json:"attachment_urls"   validate:"max=5,dive,url"`
}

// Service starts a provider checkout for a customer. No entitlement is
// created here; that waits for the paid invoice event.
type Service struct {
	listings Listings
	accounts Accounts
	offers   Offers
	gateway  billing.Gateway
	logger   *slog.Logger
}

func NewService(
	listings Listings,
	accounts Accounts,
	offers Offers,
	gateway billing.Gateway,
	logger *slog.Logger,
) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		listings: listings,
		accounts: accounts,
		offers:   offers,
		gateway:  gateway,
		logger:   logger,
	}
}

func (s *Service) Start(
	ctx context.Context,
	customerID, listingID string,
	req Request,
) (*billing.Session, error) {
	period, err := billing.ParsePeriod(req.SubscriptionType)
	if err != nil {
		return nil, err
	}

	l, err := s.listings.GetPurchasable(ctx, listingID)
	if err != nil {
		return nil, err
	}

	pricing, ok := l.PricingFor(period)
	if !ok {
		return nil, core.Invalid("listing has no price for " + period.String())
	}
	amount, err := billing.UnitAmount(pricing.Price, pricing.Discount)
	if err != nil {
		return nil, err
	}

	customer, err := s.accounts.GetUser(ctx, customerID)
	if err != nil {
		return nil, err
	}
	if !customer.Is(user.TypeCustomer) {
		return nil, fmt.Errorf("checkout: %w", core.ErrForbidden)
	}

	seller, err := s.accounts.GetUser(ctx, l.SellerID)
	if err != nil {
		return nil, fmt.Errorf("checkout seller: %w", err)
	}

	bc, err := s.gateway.CreateCustomer(ctx, billing.CustomerRequest{
		Email:     customer.Email,
		Name:      customer.Name,
		UserID:    customer.ID,
		ListingID: l.ID,
		Period:    period,
	})
	if err != nil {
		return nil, fmt.Errorf("checkout: %w", err)
	}

	session, err := s.gateway.CreateCheckoutSession(ctx, billing.CheckoutRequest{
		CustomerID:  bc.ID,
		ListingID:   l.ID,
		ItemName:    l.Title,
		SellerEmail: seller.Email,
		Period:      period,
		UnitAmount:  amount,
	})
	if err != nil {
		return nil, fmt.Errorf("checkout: %w", err)
	}

	_, err = s.offers.CreateOffer(ctx, seller.Email, customer.Email, offer.Details{
		ItemName:       l.Title,
		SessionID:      session.ID,
		ListingID:      l.ID,
		CheckoutURL:    session.URL,
		AttachmentURLs: req.AttachmentURLs,
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "checkout session has no offer",
			"session_id", session.ID,
			"listing_id", l.ID,
			"user_id", customer.ID,
			"error", err,
		)
		return nil, fmt.Errorf("checkout offer: %w", err)
	}

	s.logger.InfoContext(ctx, "checkout started",
		"session_id", session.ID,
		"listing_id", l.ID,
		"user_id", customer.ID,
		"period", period.String(),
		"unit_amount", amount,
	)
	return session, nil
}
