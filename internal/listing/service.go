// AngelaMos | 2026
// service.go

package listing

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/carterperez-dev/templates/media-rental/internal/billing"
	"github.com/carterperez-dev/templates/media-rental/internal/core"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) Create(
	ctx context.Context,
	sellerID string,
	req CreateListingRequest,
) (*Listing, error) {
	l := &Listing{
		ID:          uuid.New().String(),
		SellerID:    sellerID,
		Title:       req.Title,
		Description: req.Description,
		Image:       req.Image,
		Width:       req.Width,
		Height:      req.Height,
		IsListed:    true,
	}
	if req.IsListed != nil {
		l.IsListed = *req.IsListed
	}
	l.setPricing(billing.PeriodDay, Pricing(req.Daily))
	l.setPricing(billing.PeriodWeek, Pricing(req.Weekly))
	l.setPricing(billing.PeriodMonth, Pricing(req.Monthly))
	l.setPricing(billing.PeriodYear, Pricing(req.Yearly))

	if err := s.repo.Create(ctx, l); err != nil {
		return nil, err
	}
	return l, nil
}

// Get returns a listing visible to viewerID. Unlisted listings are only
// visible to their seller.
func (s *Service) Get(ctx context.Context, id, viewerID string) (*Listing, error) {
	l, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if l.IsDeleted || (!l.IsListed && l.SellerID != viewerID) {
		return nil, fmt.Errorf("get listing: %w", core.ErrNotFound)
	}
	return l, nil
}

// GetPurchasable returns the listing only when customers may buy it.
func (s *Service) GetPurchasable(ctx context.Context, id string) (*Listing, error) {
	l, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if !l.IsPurchasable() {
		return nil, fmt.Errorf("get listing: %w", core.ErrNotFound)
	}
	return l, nil
}

// Resolve returns any listing that has not been deleted, listed or not.
// Renewals keep flowing for listings the seller has since hidden.
func (s *Service) Resolve(ctx context.Context, id string) (*Listing, error) {
	l, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if l.IsDeleted {
		return nil, fmt.Errorf("resolve listing: %w", core.ErrNotFound)
	}
	return l, nil
}

func (s *Service) Update(
	ctx context.Context,
	id, sellerID string,
	req UpdateListingRequest,
) (*Listing, error) {
	l, err := s.owned(ctx, id, sellerID)
	if err != nil {
		return nil, err
	}

	if req.Title != nil {
		l.Title = *req.Title
	}
	if req.Description != nil {
		l.Description = *req.Description
	}
	if req.Image != nil {
		l.Image = *req.Image
	}
	if req.Width != nil {
		l.Width = *req.Width
	}
	if req.Height != nil {
		l.Height = *req.Height
	}
	if req.IsListed != nil {
		l.IsListed = *req.IsListed
	}

	for period, in := range map[billing.Period]*PricingInput{
		billing.PeriodDay:   req.Daily,
		billing.PeriodWeek:  req.Weekly,
		billing.PeriodMonth: req.Monthly,
		billing.PeriodYear:  req.Yearly,
	} {
		if in != nil {
			l.setPricing(period, Pricing(*in))
		}
	}

	if err := s.repo.Update(ctx, l); err != nil {
		return nil, err
	}
	return l, nil
}

func (s *Service) Delete(ctx context.Context, id, sellerID string) error {
	if _, err := s.owned(ctx, id, sellerID); err != nil {
		return err
	}
	return s.repo.SoftDelete(ctx, id, sellerID)
}

func (s *Service) Browse(ctx context.Context, params ListParams) ([]Listing, int, error) {
	params.Public = true
	params.SellerID = ""
	return s.repo.List(ctx, params)
}

func (s *Service) ListBySeller(
	ctx context.Context,
	sellerID string,
	params ListParams,
) ([]Listing, int, error) {
	params.Public = false
	params.SellerID = sellerID
	return s.repo.List(ctx, params)
}

func (s *Service) Count(ctx context.Context) (int, error) {
	return s.repo.Count(ctx)
}

func (s *Service) owned(ctx context.Context, id, sellerID string) (*Listing, error) {
	l, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if l.IsDeleted {
		return nil, fmt.Errorf("listing %s: %w", id, core.ErrNotFound)
	}
	if l.SellerID != sellerID {
		return nil, fmt.Errorf("listing %s: %w", id, core.ErrForbidden)
	}
	return l, nil
}

func (s *Service) find(ctx context.Context, id string) (*Listing, error) {
	if err := core.CheckID("listing", id); err != nil {
		return nil, err
	}
	return s.repo.GetByID(ctx, id)
}
