// AngelaMos | 2026
// service.go

package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/carterperez-dev/templates/media-rental/internal/core"
	"github.com/carterperez-dev/templates/media-rental/internal/middleware"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrTokenReuse         = errors.New("token reuse detected")
	ErrEmailExists        = errors.New("email already exists")
)

const denyKeyPrefix = "auth:deny:"

// UserInfo is the slice of an account the session layer needs. Type is
// the marketplace role (seller, customer or admin).
type UserInfo struct {
	ID           string
	Email        string
	Name         string
	PasswordHash string
	Type         string
	TokenVersion int
	CreatedAt    time.Time
}

type UserProvider interface {
	GetByEmail(ctx context.Context, email string) (*UserInfo, error)
	GetByID(ctx context.Context, id string) (*UserInfo, error)
	Create(
		ctx context.Context,
		email, passwordHash, name, userType string,
	) (*UserInfo, error)
	IncrementTokenVersion(ctx context.Context, userID string) error
}

// client identifies the device a refresh token was issued to.
type client struct {
	userAgent string
	ip        string
}

type Service struct {
	repo  Repository
	jwt   *JWTManager
	users UserProvider
	redis *redis.Client
}

func NewService(
	repo Repository,
	jwt *JWTManager,
	users UserProvider,
	redisClient *redis.Client,
) *Service {
	return &Service{
		repo:  repo,
		jwt:   jwt,
		users: users,
		redis: redisClient,
	}
}

// VerifyAccessToken checks the signature, then the deny list and the
// account's token version. A redis outage skips the deny list.
func (s *Service) VerifyAccessToken(
	ctx context.Context,
	token string,
) (*middleware.AccessTokenClaims, error) {
	claims, err := s.jwt.VerifyAccessToken(ctx, token)
	if err != nil {
		return nil, err
	}

	if claims.JTI != "" {
		if denied, err := s.IsAccessTokenBlacklisted(ctx, claims.JTI); err == nil && denied {
			return nil, fmt.Errorf("verify token: %w", core.ErrTokenRevoked)
		}
	}

	err = s.ValidateTokenVersion(ctx, claims.UserID, claims.TokenVersion)
	if errors.Is(err, core.ErrNotFound) {
		return nil, fmt.Errorf("verify token: %w", core.ErrTokenInvalid)
	}
	if err != nil {
		return nil, err
	}
	return claims, nil
}

func (s *Service) Login(
	ctx context.Context,
	req LoginRequest,
	userAgent, ipAddress string,
) (*AuthResponse, error) {
	u, err := s.users.GetByEmail(ctx, req.Email)
	var hash *string
	switch {
	case err == nil:
		hash = &u.PasswordHash
	case !errors.Is(err, core.ErrNotFound):
		return nil, fmt.Errorf("login: %w", err)
	}

	// An unknown email still pays for one hash so both paths take as long.
	valid, err := core.VerifyPasswordTimingSafe(req.Password, hash)
	if err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}
	if hash == nil || !valid {
		return nil, ErrInvalidCredentials
	}

	return s.issue(ctx, u, client{userAgent, ipAddress}, nil)
}

func (s *Service) Register(
	ctx context.Context,
	req RegisterRequest,
	userAgent, ipAddress string,
) (*AuthResponse, error) {
	hash, err := core.HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("register: %w", err)
	}

	u, err := s.users.Create(ctx, req.Email, hash, req.Name, req.Type)
	if errors.Is(err, core.ErrDuplicateKey) {
		return nil, ErrEmailExists
	}
	if err != nil {
		return nil, fmt.Errorf("register: %w", err)
	}

	return s.issue(ctx, u, client{userAgent, ipAddress}, nil)
}

// Refresh rotates a refresh token. Presenting a token that was already
// rotated revokes its whole family.
func (s *Service) Refresh(
	ctx context.Context,
	refreshToken, userAgent, ipAddress string,
) (*AuthResponse, error) {
	stored, err := s.repo.FindByHash(ctx, core.HashToken(refreshToken))
	if errors.Is(err, core.ErrNotFound) {
		return nil, fmt.Errorf("refresh: %w", core.ErrTokenInvalid)
	}
	if err != nil {
		return nil, fmt.Errorf("refresh: %w", err)
	}

	switch stored.StateAt(time.Now()) {
	case TokenRotated:
		//nolint:errcheck // the caller is rejected either way
		_ = s.repo.RevokeByFamilyID(ctx, stored.FamilyID)
		return nil, ErrTokenReuse
	case TokenRevoked:
		return nil, fmt.Errorf("refresh: %w", core.ErrTokenRevoked)
	case TokenExpired:
		return nil, fmt.Errorf("refresh: %w", core.ErrTokenExpired)
	}

	u, err := s.users.GetByID(ctx, stored.UserID)
	if err != nil {
		return nil, fmt.Errorf("refresh: %w", err)
	}

	return s.issue(ctx, u, client{userAgent, ipAddress}, stored)
}

// Logout revokes one refresh token. Unknown tokens are already logged out.
func (s *Service) Logout(ctx context.Context, refreshToken, userID string) error {
	stored, err := s.repo.FindByHash(ctx, core.HashToken(refreshToken))
	if errors.Is(err, core.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("logout: %w", err)
	}

	if stored.UserID != userID {
		return fmt.Errorf("logout: %w", core.ErrForbidden)
	}

	if err := s.repo.RevokeByID(ctx, stored.ID); err != nil && !errors.Is(err, core.ErrNotFound) {
		return fmt.Errorf("logout: %w", err)
	}
	return nil
}

// LogoutAll revokes every refresh token and bumps the token version so
// outstanding access tokens stop verifying too.
func (s *Service) LogoutAll(ctx context.Context, userID string) error {
	if err := s.repo.RevokeAllForUser(ctx, userID); err != nil {
		return fmt.Errorf("logout all: %w", err)
	}
	if err := s.users.IncrementTokenVersion(ctx, userID); err != nil {
		return fmt.Errorf("logout all: %w", err)
	}
	return nil
}

// RevokeAccessToken denies jti until it would have expired anyway.
func (s *Service) RevokeAccessToken(ctx context.Context, jti string, expiresAt time.Time) error {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return nil
	}

	if err := s.redis.Set(ctx, denyKeyPrefix+jti, "1", ttl).Err(); err != nil {
		return fmt.Errorf("deny access token: %w", err)
	}
	return nil
}

func (s *Service) IsAccessTokenBlacklisted(ctx context.Context, jti string) (bool, error) {
	n, err := s.redis.Exists(ctx, denyKeyPrefix+jti).Result()
	if err != nil {
		return false, fmt.Errorf("check deny list: %w", err)
	}
	return n > 0, nil
}

func (s *Service) GetActiveSessions(ctx context.Context, userID string) ([]SessionInfo, error) {
	tokens, err := s.repo.GetActiveSessionsForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}

	sessions := make([]SessionInfo, len(tokens))
	for i := range tokens {
		sessions[i] = sessionFrom(&tokens[i])
	}
	return sessions, nil
}

func (s *Service) RevokeSession(ctx context.Context, userID, sessionID string) error {
	token, err := s.repo.FindByID(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	if token.UserID != userID {
		return fmt.Errorf("revoke session: %w", core.ErrForbidden)
	}

	if err := s.repo.RevokeByID(ctx, sessionID); err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	return nil
}

func (s *Service) ValidateTokenVersion(ctx context.Context, userID string, version int) error {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("token version: %w", err)
	}
	if version < u.TokenVersion {
		return fmt.Errorf("token version: %w", core.ErrTokenRevoked)
	}
	return nil
}

func (s *Service) GetCurrentUser(ctx context.Context, userID string) (*UserResponse, error) {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	resp := toUserResponse(u)
	return &resp, nil
}

// PurgeExpiredTokens drops refresh tokens past their expiry. It runs from
// the maintenance loop.
func (s *Service) PurgeExpiredTokens(ctx context.Context) (int64, error) {
	n, err := s.repo.DeleteExpired(ctx)
	if err != nil {
		return 0, fmt.Errorf("purge expired tokens: %w", err)
	}
	return n, nil
}

// issue mints an access token and a refresh token for u. When rotating,
// the new refresh token joins the old one's family and the old one is
// marked used.
func (s *Service) issue(
	ctx context.Context,
	u *UserInfo,
	c client,
	rotated *RefreshToken,
) (*AuthResponse, error) {
	access, err := s.jwt.CreateAccessToken(AccessTokenClaims{
		UserID:       u.ID,
		Role:         u.Type,
		TokenVersion: u.TokenVersion,
	})
	if err != nil {
		return nil, fmt.Errorf("issue tokens: %w", err)
	}

	var family string
	if rotated != nil {
		family = rotated.FamilyID
	}
	refresh, err := s.jwt.CreateRefreshToken(family)
	if err != nil {
		return nil, fmt.Errorf("issue tokens: %w", err)
	}

	record := &RefreshToken{
		ID:        uuid.NewString(),
		UserID:    u.ID,
		TokenHash: refresh.Hash,
		FamilyID:  refresh.FamilyID,
		ExpiresAt: refresh.ExpiresAt,
		UserAgent: c.userAgent,
		IPAddress: c.ip,
	}
	if err := s.repo.Create(ctx, record); err != nil {
		return nil, fmt.Errorf("issue tokens: %w", err)
	}

	if rotated != nil {
		//nolint:errcheck // chain tracking only; reuse detection reads IsUsed
		_ = s.repo.MarkAsUsed(ctx, rotated.ID, record.ID)
	}

	return &AuthResponse{
		User:   toUserResponse(u),
		Tokens: bearerTokens(access, refresh.Token, s.jwt.AccessTokenTTL()),
	}, nil
}
