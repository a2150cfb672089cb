// AngelaMos | 2026
// service.go

package offer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/carterperez-dev/templates/media-rental/internal/core"
	"github.com/carterperez-dev/templates/media-rental/internal/metrics"
	"github.com/carterperez-dev/templates/media-rental/internal/user"
)

// Accounts resolves marketplace accounts. user.Service satisfies it.
type Accounts interface {
	FindAccount(ctx context.Context, email, userType string) (*user.User, error)
	GetUser(ctx context.Context, id string) (*user.User, error)
}

// Service keeps the seller copy and the customer copy of every offer in
// step. Writes go seller side first. A failed customer write after a
// committed seller write is logged as partial consistency and left for
// RepairOrphans, except on create where the seller write is compensated.
type Service struct {
	repo      Repository
	accounts  Accounts
	logger    *slog.Logger
	validator *validator.Validate
	now       func() time.Time
}

func NewService(repo Repository, accounts Accounts, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:      repo,
		accounts:  accounts,
		logger:    logger,
		validator: validator.New(validator.WithRequiredStructEnabled()),
		now:       time.Now,
	}
}

func (s *Service) CreateOffer(
	ctx context.Context,
	sellerEmail, customerEmail string,
	d Details,
) (*OfferRecord, error) {
	if err := s.validator.Struct(d); err != nil {
		return nil, core.Invalid(core.FormatValidationError(err))
	}

	seller, err := s.account(ctx, sellerEmail, user.TypeSeller)
	if err != nil {
		return nil, err
	}
	customer, err := s.account(ctx, customerEmail, user.TypeCustomer)
	if err != nil {
		return nil, err
	}

	rec := &OfferRecord{
		ID:             uuid.New().String(),
		OwnerID:        seller.ID,
		Side:           SideSeller,
		CustomerEmail:  customer.Email,
		ItemName:       d.ItemName,
		SessionID:      d.SessionID,
		ListingID:      d.ListingID,
		AttachmentURLs: StringList(append([]string{}, d.AttachmentURLs...)),
		Permission:     PermissionPending,
		CheckoutURL:    d.CheckoutURL,
	}
	if err := s.repo.Insert(ctx, rec); err != nil {
		return nil, fmt.Errorf("create offer: %w", err)
	}

	mirror := rec.mirrorFor(uuid.New().String(), customer.ID, SideCustomer)
	if err := s.repo.Insert(ctx, mirror); err != nil {
		cerr := s.repo.DeleteByID(context.WithoutCancel(ctx), rec.ID)
		s.partial(ctx, "create_offer", rec, errors.Join(err, cerr))
		return nil, fmt.Errorf("create offer %s: %w: %w", rec.SessionID, core.ErrPartialConsistency, err)
	}

	s.logger.InfoContext(ctx, "offer created",
		"session_id", rec.SessionID,
		"listing_id", rec.ListingID,
		"seller_id", seller.ID,
		"customer_id", customer.ID,
	)
	return rec, nil
}

// ResolveOffer records the seller's decision on both copies. An empty
// sessionID falls back to the first offer with itemName.
func (s *Service) ResolveOffer(
	ctx context.Context,
	sellerEmail, itemName, sessionID string,
	decision Permission,
) (*OfferRecord, error) {
	if !decision.Decision() {
		return nil, core.Invalid(fmt.Sprintf("decision must be accepted or rejected, got %q", decision))
	}

	rec, err := s.sellerRecord(ctx, sellerEmail, itemName, sessionID)
	if err != nil {
		return nil, err
	}

	if err := s.repo.UpdatePermission(ctx, rec.ID, decision); err != nil {
		return nil, fmt.Errorf("resolve offer: %w", err)
	}
	rec.Permission = decision

	mirror, err := s.findMirror(ctx, rec)
	if err == nil {
		err = s.repo.UpdatePermission(ctx, mirror.ID, decision)
	}
	if err != nil {
		s.partial(ctx, "resolve_offer", rec, err)
	}
	return rec, nil
}

// DeleteOffer removes both copies and returns the removed seller copy.
func (s *Service) DeleteOffer(
	ctx context.Context,
	sellerEmail, itemName, sessionID string,
) (*OfferRecord, error) {
	rec, err := s.sellerRecord(ctx, sellerEmail, itemName, sessionID)
	if err != nil {
		return nil, err
	}

	if err := s.repo.DeleteByID(ctx, rec.ID); err != nil {
		return nil, fmt.Errorf("delete offer: %w", err)
	}

	mirror, err := s.findMirror(ctx, rec)
	if err == nil {
		err = s.repo.DeleteByID(ctx, mirror.ID)
	}
	if err != nil {
		s.partial(ctx, "delete_offer", rec, err)
	}
	return rec, nil
}

// PurgeBySession removes every copy of every offer tied to a checkout
// session. Purging an unknown session removes nothing and succeeds.
func (s *Service) PurgeBySession(ctx context.Context, sessionID string) (int64, error) {
	if sessionID == "" {
		return 0, nil
	}

	n, err := s.repo.DeleteBySession(ctx, sessionID)
	if err != nil {
		return 0, fmt.Errorf("purge session %s: %w", sessionID, err)
	}
	if n%2 != 0 {
		s.logger.WarnContext(ctx, "purged unpaired offer copies",
			"session_id", sessionID,
			"rows", n,
		)
	}
	return n, nil
}

func (s *Service) ListForSeller(
	ctx context.Context,
	sellerID string,
	skip, limit int,
) ([]OfferRecord, int, error) {
	return s.repo.ListForOwner(ctx, sellerID, SideSeller, skip, limit)
}

func (s *Service) ListForCustomer(
	ctx context.Context,
	customerID string,
	skip, limit int,
) ([]OfferRecord, int, error) {
	return s.repo.ListForOwner(ctx, customerID, SideCustomer, skip, limit)
}

func (s *Service) CountByPermission(ctx context.Context) (map[Permission]int, error) {
	return s.repo.CountByPermission(ctx)
}

// EmailOf returns the email of the account with id.
func (s *Service) EmailOf(ctx context.Context, id string) (string, error) {
	u, err := s.accounts.GetUser(ctx, id)
	if err != nil {
		return "", err
	}
	return u.Email, nil
}

func (s *Service) sellerRecord(
	ctx context.Context,
	sellerEmail, itemName, sessionID string,
) (*OfferRecord, error) {
	seller, err := s.account(ctx, sellerEmail, user.TypeSeller)
	if err != nil {
		return nil, err
	}
	return s.repo.Find(ctx, seller.ID, SideSeller, itemName, sessionID)
}

func (s *Service) findMirror(ctx context.Context, rec *OfferRecord) (*OfferRecord, error) {
	customer, err := s.account(ctx, rec.CustomerEmail, user.TypeCustomer)
	if err != nil {
		return nil, err
	}
	return s.repo.FindMirror(ctx, customer.ID, rec.Key())
}

// account hides which of the two parties was missing.
func (s *Service) account(ctx context.Context, email, userType string) (*user.User, error) {
	u, err := s.accounts.FindAccount(ctx, email, userType)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, fmt.Errorf("offer account: %w", core.ErrNotFound)
		}
		return nil, fmt.Errorf("offer account: %w", err)
	}
	return u, nil
}

func (s *Service) partial(ctx context.Context, op string, rec *OfferRecord, err error) {
	metrics.PartialConsistencyTotal.WithLabelValues(op).Inc()
	s.logger.ErrorContext(ctx, "offer mirror out of step",
		"partial_consistency", true,
		"operation", op,
		"session_id", rec.SessionID,
		"item_name", rec.ItemName,
		"listing_id", rec.ListingID,
		"error", err,
	)
}
