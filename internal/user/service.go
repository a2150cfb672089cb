// AngelaMos | 2026
// service.go

package user

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/carterperez-dev/templates/media-rental/internal/auth"
	"github.com/carterperez-dev/templates/media-rental/internal/core"
)

var _ auth.UserProvider = (*Service)(nil)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) GetByID(ctx context.Context, id string) (*auth.UserInfo, error) {
	return info(s.GetUser(ctx, id))
}

func (s *Service) GetByEmail(ctx context.Context, email string) (*auth.UserInfo, error) {
	return info(s.repo.GetByEmail(ctx, normalizeEmail(email)))
}

func (s *Service) Create(
	ctx context.Context,
	email, passwordHash, name, userType string,
) (*auth.UserInfo, error) {
	if !registrable(userType) {
		return nil, core.Invalid(fmt.Sprintf("type must be seller or customer, got %q", userType))
	}

	u := &User{
		ID:           uuid.New().String(),
		Email:        normalizeEmail(email),
		PasswordHash: passwordHash,
		Name:         strings.TrimSpace(name),
		Type:         userType,
	}
	if err := s.repo.Create(ctx, u); err != nil {
		return nil, err
	}
	return info(u, nil)
}

func (s *Service) IncrementTokenVersion(ctx context.Context, userID string) error {
	return s.repo.IncrementTokenVersion(ctx, userID)
}

// FindAccount resolves an email to an account of exactly userType.
func (s *Service) FindAccount(ctx context.Context, email, userType string) (*User, error) {
	return s.repo.GetByEmailAndType(ctx, normalizeEmail(email), userType)
}

func (s *Service) GetUser(ctx context.Context, id string) (*User, error) {
	if err := core.CheckID("user", id); err != nil {
		return nil, err
	}
	return s.repo.GetByID(ctx, id)
}

func (s *Service) UpdateProfile(ctx context.Context, id string, req UpdateUserRequest) (*User, error) {
	if id == "" {
		return nil, fmt.Errorf("update profile: %w", core.ErrUnauthorized)
	}
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Name == nil {
		return u, nil
	}

	u.Name = strings.TrimSpace(*req.Name)
	if err := s.repo.UpdateName(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// CloseAccount soft-deletes the caller's own account. Existing
// subscriptions keep running until the provider reports otherwise.
func (s *Service) CloseAccount(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("close account: %w", core.ErrUnauthorized)
	}
	return s.repo.SoftDelete(ctx, id)
}

func (s *Service) ListUsers(ctx context.Context, params ListUsersParams) ([]User, int, error) {
	if params.Type != "" && !ValidType(params.Type) {
		return nil, 0, core.Invalid(fmt.Sprintf("unknown account type %q", params.Type))
	}
	return s.repo.List(ctx, params)
}

// RemoveUser is the operator removal path. Admin accounts cannot be
// removed through it.
func (s *Service) RemoveUser(ctx context.Context, id string) error {
	target, err := s.GetUser(ctx, id)
	if err != nil {
		return err
	}
	if target.Is(TypeAdmin) {
		return fmt.Errorf("remove admin %s: %w", id, core.ErrForbidden)
	}
	return s.repo.SoftDelete(ctx, id)
}

func (s *Service) CountByType(ctx context.Context) (map[string]int, error) {
	return s.repo.CountByType(ctx)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func info(u *User, err error) (*auth.UserInfo, error) {
	if err != nil {
		return nil, err
	}
	return &auth.UserInfo{
		ID:           u.ID,
		Email:        u.Email,
		Name:         u.Name,
		PasswordHash: u.PasswordHash,
		Type:         u.Type,
		TokenVersion: u.TokenVersion,
		CreatedAt:    u.CreatedAt,
	}, nil
}
