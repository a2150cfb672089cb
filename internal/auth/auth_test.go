// AngelaMos | 2026
// auth_test.go

package auth

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/templates/media-rental/internal/config"
	"github.com/carterperez-dev/templates/media-rental/internal/core"
)

type memTokens struct {
	mu     sync.Mutex
	tokens map[string]*RefreshToken
}

func newMemTokens() *memTokens {
	return &memTokens{tokens: map[string]*RefreshToken{}}
}

func (m *memTokens) Create(_ context.Context, t *RefreshToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t.CreatedAt = time.Now()
	cp := *t
	m.tokens[t.ID] = &cp
	return nil
}

func (m *memTokens) FindByHash(_ context.Context, hash string) (*RefreshToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.tokens {
		if t.TokenHash == hash {
			cp := *t
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("find: %w", core.ErrNotFound)
}

func (m *memTokens) FindByID(_ context.Context, id string) (*RefreshToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tokens[id]
	if !ok {
		return nil, fmt.Errorf("find: %w", core.ErrNotFound)
	}
	cp := *t
	return &cp, nil
}

func (m *memTokens) MarkAsUsed(_ context.Context, id, replacedBy string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.tokens[id]; ok {
		t.MarkAsUsed(replacedBy)
	}
	return nil
}

func (m *memTokens) RevokeByID(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.tokens[id]; ok {
		t.Revoke()
	}
	return nil
}

func (m *memTokens) RevokeByFamilyID(_ context.Context, family string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.tokens {
		if t.FamilyID == family {
			t.Revoke()
		}
	}
	return nil
}

func (m *memTokens) RevokeAllForUser(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.tokens {
		if t.UserID == userID {
			t.Revoke()
		}
	}
	return nil
}

func (m *memTokens) GetActiveSessionsForUser(_ context.Context, userID string) ([]RefreshToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []RefreshToken
	for _, t := range m.tokens {
		if t.UserID == userID && t.IsValid() {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (m *memTokens) DeleteExpired(context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, t := range m.tokens {
		if t.IsExpired() {
			delete(m.tokens, id)
			n++
		}
	}
	return n, nil
}

type memUsers struct {
	mu    sync.Mutex
	users map[string]*UserInfo
}

func (m *memUsers) GetByEmail(_ context.Context, email string) (*UserInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == strings.ToLower(email) {
			return u, nil
		}
	}
	return nil, fmt.Errorf("get: %w", core.ErrNotFound)
}

func (m *memUsers) GetByID(_ context.Context, id string) (*UserInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, fmt.Errorf("get: %w", core.ErrNotFound)
	}
	return u, nil
}

func (m *memUsers) Create(_ context.Context, email, hash, name, userType string) (*UserInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == strings.ToLower(email) {
			return nil, fmt.Errorf("create: %w", core.ErrDuplicateKey)
		}
	}
	u := &UserInfo{
		ID:           uuid.New().String(),
		Email:        strings.ToLower(email),
		Name:         name,
		PasswordHash: hash,
		Type:         userType,
	}
	m.users[u.ID] = u
	return u, nil
}

func (m *memUsers) IncrementTokenVersion(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[id]; ok {
		u.TokenVersion++
	}
	return nil
}

func newTestService(t *testing.T) (*Service, *memTokens) {
	t.Helper()

	dir := t.TempDir()
	priv := filepath.Join(dir, "private.pem")
	pub := filepath.Join(dir, "public.pem")
	require.NoError(t, GenerateKeyPair(priv, pub))

	jwtManager, err := NewJWTManager(config.JWTConfig{
		PrivateKeyPath:     priv,
		PublicKeyPath:      pub,
		AccessTokenExpire:  15 * time.Minute,
		RefreshTokenExpire: 24 * time.Hour,
		Issuer:             "media-rental",
		Audience:           "media-rental-api",
	})
	require.NoError(t, err)

	tokens := newMemTokens()
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1})
	t.Cleanup(func() { _ = rdb.Close() })

	return NewService(tokens, jwtManager, &memUsers{users: map[string]*UserInfo{}}, rdb), tokens
}

func TestRegisterCarriesAccountTypeIntoToken(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	resp, err := svc.Register(ctx, RegisterRequest{
		Email:    "Seller@Example.com",
		Password: "password123",
		Name:     "Sam",
		Type:     "seller",
	}, "test", "127.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, "seller", resp.User.Type)
	assert.Equal(t, 900, resp.Tokens.ExpiresIn)

	claims, err := svc.VerifyAccessToken(ctx, resp.Tokens.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "seller", claims.Role)
	assert.Equal(t, resp.User.ID, claims.UserID)
	assert.NotEmpty(t, claims.JTI)
}

func TestLoginRejectsWrongPasswordAndUnknownEmail(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, RegisterRequest{
		Email: "c@example.com", Password: "password123", Name: "C", Type: "customer",
	}, "", "")
	require.NoError(t, err)

	_, err = svc.Login(ctx, LoginRequest{Email: "c@example.com", Password: "nope-nope"}, "", "")
	require.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Login(ctx, LoginRequest{Email: "ghost@example.com", Password: "password123"}, "", "")
	require.ErrorIs(t, err, ErrInvalidCredentials)

	resp, err := svc.Login(ctx, LoginRequest{Email: "c@example.com", Password: "password123"}, "", "")
	require.NoError(t, err)
	assert.Equal(t, "customer", resp.User.Type)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	req := RegisterRequest{Email: "d@example.com", Password: "password123", Name: "D", Type: "customer"}
	_, err := svc.Register(ctx, req, "", "")
	require.NoError(t, err)

	_, err = svc.Register(ctx, req, "", "")
	require.ErrorIs(t, err, ErrEmailExists)
}

func TestRefreshReuseRevokesFamily(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	first, err := svc.Register(ctx, RegisterRequest{
		Email: "r@example.com", Password: "password123", Name: "R", Type: "customer",
	}, "", "")
	require.NoError(t, err)

	second, err := svc.Refresh(ctx, first.Tokens.RefreshToken, "", "")
	require.NoError(t, err)

	_, err = svc.Refresh(ctx, first.Tokens.RefreshToken, "", "")
	require.ErrorIs(t, err, ErrTokenReuse)

	_, err = svc.Refresh(ctx, second.Tokens.RefreshToken, "", "")
	require.ErrorIs(t, err, core.ErrTokenRevoked)
}

func TestLogoutAllInvalidatesAccessTokens(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	resp, err := svc.Register(ctx, RegisterRequest{
		Email: "l@example.com", Password: "password123", Name: "L", Type: "seller",
	}, "", "")
	require.NoError(t, err)

	require.NoError(t, svc.LogoutAll(ctx, resp.User.ID))

	_, err = svc.VerifyAccessToken(ctx, resp.Tokens.AccessToken)
	require.ErrorIs(t, err, core.ErrTokenRevoked)
}

func TestPurgeExpiredTokens(t *testing.T) {
	svc, tokens := newTestService(t)
	ctx := context.Background()

	require.NoError(t, tokens.Create(ctx, &RefreshToken{
		ID: "old", UserID: "u", TokenHash: "h", FamilyID: "f",
		ExpiresAt: time.Now().Add(-time.Hour),
	}))

	n, err := svc.PurgeExpiredTokens(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestJWTManagerRejectsMismatchedPublicKey(t *testing.T) {
	dir := t.TempDir()
	privA, pubA := filepath.Join(dir, "a.pem"), filepath.Join(dir, "a.pub")
	privB, pubB := filepath.Join(dir, "b.pem"), filepath.Join(dir, "b.pub")
	require.NoError(t, GenerateKeyPair(privA, pubA))
	require.NoError(t, GenerateKeyPair(privB, pubB))

	_, err := NewJWTManager(config.JWTConfig{PrivateKeyPath: privA, PublicKeyPath: pubB})
	require.Error(t, err)

	m, err := NewJWTManager(config.JWTConfig{PrivateKeyPath: privA, PublicKeyPath: filepath.Join(dir, "absent.pub")})
	require.NoError(t, err)
	assert.Len(t, m.GetKeyID(), 8)
}
