// AngelaMos | 2026
// user_test.go

package user

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/templates/media-rental/internal/core"
	"github.com/carterperez-dev/templates/media-rental/internal/middleware"
)

type memRepo struct {
	mu    sync.Mutex
	users map[string]*User
}

func newMemRepo() *memRepo {
	return &memRepo{users: map[string]*User{}}
}

func (m *memRepo) live(match func(*User) bool) (*User, error) {
	for _, u := range m.users {
		if u.DeletedAt == nil && match(u) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("get user: %w", core.ErrNotFound)
}

func (m *memRepo) Create(_ context.Context, u *User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, err := m.live(func(x *User) bool { return x.Email == u.Email }); err == nil {
		return fmt.Errorf("create user: %w", core.ErrDuplicateKey)
	}
	u.CreatedAt = time.Now()
	u.UpdatedAt = u.CreatedAt
	cp := *u
	m.users[u.ID] = &cp
	return nil
}

func (m *memRepo) GetByID(_ context.Context, id string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.live(func(u *User) bool { return u.ID == id })
}

func (m *memRepo) GetByEmail(_ context.Context, email string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.live(func(u *User) bool { return u.Email == email })
}

func (m *memRepo) GetByEmailAndType(_ context.Context, email, userType string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.live(func(u *User) bool { return u.Email == email && u.Type == userType })
}

func (m *memRepo) UpdateName(_ context.Context, u *User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.users[u.ID]
	if !ok || stored.DeletedAt != nil {
		return fmt.Errorf("update user: %w", core.ErrNotFound)
	}
	stored.Name = u.Name
	return nil
}

func (m *memRepo) IncrementTokenVersion(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[id]; ok {
		u.TokenVersion++
	}
	return nil
}

func (m *memRepo) SoftDelete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok || u.DeletedAt != nil {
		return fmt.Errorf("delete user: %w", core.ErrNotFound)
	}
	now := time.Now()
	u.DeletedAt = &now
	return nil
}

func (m *memRepo) List(_ context.Context, p ListUsersParams) ([]User, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []User
	for _, u := range m.users {
		if u.DeletedAt == nil && (p.Type == "" || u.Type == p.Type) {
			out = append(out, *u)
		}
	}
	return out, len(out), nil
}

func (m *memRepo) CountByType(context.Context) (map[string]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	counts := map[string]int{}
	for _, u := range m.users {
		if u.DeletedAt == nil {
			counts[u.Type]++
		}
	}
	return counts, nil
}

func TestCreateNormalizesAndRejectsAdmin(t *testing.T) {
	ctx := context.Background()
	svc := NewService(newMemRepo())

	info, err := svc.Create(ctx, "  Seller@Example.COM ", "hash", "Ann", TypeSeller)
	require.NoError(t, err)
	assert.Equal(t, "seller@example.com", info.Email)

	_, err = svc.Create(ctx, "root@example.com", "hash", "Root", TypeAdmin)
	require.ErrorIs(t, err, core.ErrInvalidInput)

	_, err = svc.Create(ctx, "seller@example.com", "hash", "Dup", TypeCustomer)
	require.ErrorIs(t, err, core.ErrDuplicateKey)
}

func TestFindAccountMatchesType(t *testing.T) {
	ctx := context.Background()
	svc := NewService(newMemRepo())

	_, err := svc.Create(ctx, "c@example.com", "hash", "Cat", TypeCustomer)
	require.NoError(t, err)

	u, err := svc.FindAccount(ctx, "C@example.com", TypeCustomer)
	require.NoError(t, err)
	assert.True(t, u.Is(TypeCustomer))

	_, err = svc.FindAccount(ctx, "c@example.com", TypeSeller)
	require.ErrorIs(t, err, core.ErrNotFound)
}

func TestRemoveUserProtectsAdmins(t *testing.T) {
	ctx := context.Background()
	repo := newMemRepo()
	svc := NewService(repo)

	adminID := uuid.New().String()
	require.NoError(t, repo.Create(ctx, &User{ID: adminID, Email: "ops@example.com", Type: TypeAdmin}))
	require.ErrorIs(t, svc.RemoveUser(ctx, adminID), core.ErrForbidden)
	require.ErrorIs(t, svc.RemoveUser(ctx, "admin-1"), core.ErrNotFound)

	c, err := svc.Create(ctx, "c@example.com", "hash", "Cat", TypeCustomer)
	require.NoError(t, err)
	require.NoError(t, svc.RemoveUser(ctx, c.ID))

	_, err = svc.GetUser(ctx, c.ID)
	require.ErrorIs(t, err, core.ErrNotFound)
}

func TestGetUserMalformedIDIsNotFound(t *testing.T) {
	_, err := NewService(newMemRepo()).GetUser(context.Background(), "abc")
	require.ErrorIs(t, err, core.ErrNotFound)
}

func TestListRejectsUnknownType(t *testing.T) {
	_, _, err := NewService(newMemRepo()).ListUsers(context.Background(), ListUsersParams{Type: "vendor"})
	require.ErrorIs(t, err, core.ErrInvalidInput)
}

func as(id, role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := middleware.WithClaims(r.Context(), &middleware.AccessTokenClaims{UserID: id, Role: role})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func TestProfileRoutes(t *testing.T) {
	ctx := context.Background()
	svc := NewService(newMemRepo())
	c, err := svc.Create(ctx, "c@example.com", "hash", "Cat", TypeCustomer)
	require.NoError(t, err)

	r := chi.NewRouter()
	NewHandler(svc).RegisterRoutes(r, as(c.ID, TypeCustomer))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/users/me", strings.NewReader(`{"name":" Kit "}`)))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"name":"Kit"`)
	assert.NotContains(t, rec.Body.String(), "hash")

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/users/me", strings.NewReader(`{"name":""}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/users/me", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/users/me", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
