// AngelaMos | 2026
// listing_test.go

package listing

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/templates/media-rental/internal/billing"
	"github.com/carterperez-dev/templates/media-rental/internal/core"
	"github.com/carterperez-dev/templates/media-rental/internal/middleware"
)

type memRepo struct {
	mu       sync.Mutex
	listings map[string]*Listing
	order    []string
}

func newMemRepo() *memRepo {
	return &memRepo{listings: map[string]*Listing{}}
}

func (m *memRepo) Create(_ context.Context, l *Listing) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *l
	m.listings[l.ID] = &cp
	m.order = append(m.order, l.ID)
	return nil
}

func (m *memRepo) GetByID(_ context.Context, id string) (*Listing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.listings[id]
	if !ok {
		return nil, fmt.Errorf("get listing: %w", core.ErrNotFound)
	}
	cp := *l
	return &cp, nil
}

func (m *memRepo) Update(_ context.Context, l *Listing) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *l
	m.listings[l.ID] = &cp
	return nil
}

func (m *memRepo) SoftDelete(_ context.Context, id, sellerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.listings[id]
	if !ok || l.SellerID != sellerID || l.IsDeleted {
		return fmt.Errorf("delete listing: %w", core.ErrNotFound)
	}
	l.IsDeleted, l.IsListed = true, false
	return nil
}

func (m *memRepo) List(_ context.Context, p ListParams) ([]Listing, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Listing
	for _, id := range m.order {
		l := m.listings[id]
		if l.IsDeleted || (p.Public && !l.IsListed) {
			continue
		}
		if p.SellerID != "" && l.SellerID != p.SellerID {
			continue
		}
		if p.Search != "" && !strings.Contains(strings.ToLower(l.Title), strings.ToLower(p.Search)) {
			continue
		}
		out = append(out, *l)
	}
	return out, len(out), nil
}

func (m *memRepo) Count(context.Context) (int, error) {
	return len(m.listings), nil
}

func sampleRequest(title string) CreateListingRequest {
	return CreateListingRequest{
		Title:       title,
		Description: "a large poster",
		Image:       "https://cdn.test/p.png",
		Width:       "100",
		Height:      "200",
		Daily:       PricingInput{Price: 2},
		Weekly:      PricingInput{Price: 10, Discount: 1},
		Monthly:     PricingInput{Price: 20, Discount: 2},
		Yearly:      PricingInput{Price: 200, Discount: 20},
	}
}

func TestPricingForEachPeriod(t *testing.T) {
	svc := NewService(newMemRepo())
	l, err := svc.Create(context.Background(), "seller-1", sampleRequest("Dune"))
	require.NoError(t, err)

	pr, ok := l.PricingFor(billing.PeriodMonth)
	require.True(t, ok)
	assert.Equal(t, Pricing{Price: 20, Discount: 2}, pr)

	pr, ok = l.PricingFor(billing.PeriodYear)
	require.True(t, ok)
	assert.Equal(t, Pricing{Price: 200, Discount: 20}, pr)

	_, ok = l.PricingFor(billing.Period("fortnight"))
	assert.False(t, ok)
}

func TestIsPurchasable(t *testing.T) {
	assert.True(t, (&Listing{IsListed: true}).IsPurchasable())
	assert.False(t, (&Listing{IsListed: false}).IsPurchasable())
	assert.False(t, (&Listing{IsListed: true, IsDeleted: true}).IsPurchasable())
}

func TestUnlistedVisibleOnlyToSeller(t *testing.T) {
	ctx := context.Background()
	svc := NewService(newMemRepo())

	req := sampleRequest("Hidden")
	hidden := false
	req.IsListed = &hidden
	l, err := svc.Create(ctx, "seller-1", req)
	require.NoError(t, err)

	_, err = svc.Get(ctx, l.ID, "someone-else")
	require.ErrorIs(t, err, core.ErrNotFound)

	_, err = svc.Get(ctx, l.ID, "seller-1")
	require.NoError(t, err)

	_, err = svc.GetPurchasable(ctx, l.ID)
	require.ErrorIs(t, err, core.ErrNotFound)
}

func TestUpdateRequiresOwnership(t *testing.T) {
	ctx := context.Background()
	svc := NewService(newMemRepo())

	l, err := svc.Create(ctx, "seller-1", sampleRequest("Dune"))
	require.NoError(t, err)

	title := "Dune Part Two"
	_, err = svc.Update(ctx, l.ID, "seller-2", UpdateListingRequest{Title: &title})
	require.ErrorIs(t, err, core.ErrForbidden)

	monthly := &PricingInput{Price: 25, Discount: 5}
	updated, err := svc.Update(ctx, l.ID, "seller-1", UpdateListingRequest{
		Title:   &title,
		Monthly: monthly,
	})
	require.NoError(t, err)
	assert.Equal(t, title, updated.Title)
	assert.InDelta(t, 25.0, updated.MonthlyPrice, 0.001)
	assert.InDelta(t, 2.0, updated.DailyPrice, 0.001)
}

func TestDeleteHidesListing(t *testing.T) {
	ctx := context.Background()
	svc := NewService(newMemRepo())

	l, err := svc.Create(ctx, "seller-1", sampleRequest("Dune"))
	require.NoError(t, err)
	require.NoError(t, svc.Delete(ctx, l.ID, "seller-1"))

	_, err = svc.GetPurchasable(ctx, l.ID)
	require.ErrorIs(t, err, core.ErrNotFound)

	listings, total, err := svc.Browse(ctx, ListParams{Limit: 10})
	require.NoError(t, err)
	assert.Empty(t, listings)
	assert.Zero(t, total)
}

func TestResolveIgnoresListedFlag(t *testing.T) {
	ctx := context.Background()
	svc := NewService(newMemRepo())

	req := sampleRequest("Renewing")
	hidden := false
	req.IsListed = &hidden
	l, err := svc.Create(ctx, "seller-1", req)
	require.NoError(t, err)

	got, err := svc.Resolve(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, "seller-1", got.SellerID)

	require.NoError(t, svc.Delete(ctx, l.ID, "seller-1"))
	_, err = svc.Resolve(ctx, l.ID)
	require.ErrorIs(t, err, core.ErrNotFound)
}

func asSeller(id string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := middleware.WithClaims(r.Context(), &middleware.AccessTokenClaims{
				UserID: id,
				Role:   middleware.RoleSeller,
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func TestHandlerCreateValidatesDiscount(t *testing.T) {
	r := chi.NewRouter()
	NewHandler(NewService(newMemRepo())).RegisterRoutes(r, asSeller("seller-1"))

	body := `{"title":"T","description":"d","image":"https://cdn.test/a.png","width":"1","height":"1",
		"daily":{"price":1},"weekly":{"price":1},"monthly":{"price":5,"discount":6},"yearly":{"price":1}}`
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/listings", strings.NewReader(body)))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandlerBrowseSearch(t *testing.T) {
	ctx := context.Background()
	svc := NewService(newMemRepo())
	_, err := svc.Create(ctx, "seller-1", sampleRequest("Dune"))
	require.NoError(t, err)
	_, err = svc.Create(ctx, "seller-1", sampleRequest("Alien"))
	require.NoError(t, err)

	r := chi.NewRouter()
	NewHandler(svc).RegisterRoutes(r, asSeller("seller-1"))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/listings?search=dune&limit=5", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"title":"Dune"`)
	assert.NotContains(t, rec.Body.String(), `"title":"Alien"`)
	assert.Contains(t, rec.Body.String(), `"limit":5`)
}

func TestMalformedListingIDIsNotFound(t *testing.T) {
	ctx := context.Background()
	svc := NewService(newMemRepo())

	_, err := svc.Resolve(ctx, "abc")
	require.ErrorIs(t, err, core.ErrNotFound)

	r := chi.NewRouter()
	NewHandler(svc).RegisterRoutes(r, asSeller("seller-1"))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/listings/abc", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code, rec.Body.String())

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/listings/abc", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code, rec.Body.String())
}
