// AngelaMos | 2026
// subscription_test.go

package subscription_test

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
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/templates/media-rental/internal/billing"
	"github.com/carterperez-dev/templates/media-rental/internal/billing/billingtest"
	"github.com/carterperez-dev/templates/media-rental/internal/core"
	"github.com/carterperez-dev/templates/media-rental/internal/middleware"
	"github.com/carterperez-dev/templates/media-rental/internal/subscription"
	"github.com/carterperez-dev/templates/media-rental/internal/subscription/subscriptiontest"
)

func newService() (*subscription.Service, *subscriptiontest.Repository, *billingtest.Gateway) {
	repo := subscriptiontest.NewRepository()
	gw := billingtest.NewGateway()
	return subscription.NewService(repo, gw, core.NewLocalLocker(), nil), repo, gw
}

func grant(listingID, userID string) subscription.Grant {
	return subscription.Grant{
		ListingID:              listingID,
		SellerID:               "seller-1",
		UserID:                 userID,
		ProviderSubscriptionID: "sub_" + listingID,
		BillingCustomerID:      "cus_1",
		Period:                 billing.PeriodMonth,
	}
}

func TestGrantConcurrentDuplicatesCreateOne(t *testing.T) {
	svc, repo, _ := newService()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		created int
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, ok, err := svc.Grant(context.Background(), grant("listing-1", "user-1"))
			if !assert.NoError(t, err) {
				return
			}
			if ok {
				mu.Lock()
				created++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, created)
	assert.Len(t, repo.All(), 1)
}

func TestGrantWindowAndExpiry(t *testing.T) {
	svc, repo, _ := newService()
	ctx := context.Background()

	anchor := time.Date(2025, time.January, 31, 9, 0, 0, 0, time.UTC)
	subscription.SetClock(svc, func() time.Time { return anchor })

	sub, created, err := svc.Grant(ctx, grant("listing-1", "user-1"))
	require.NoError(t, err)
	require.True(t, created)
	assert.Equal(t, anchor, sub.StartDate)
	assert.Equal(t, time.Date(2025, time.February, 28, 9, 0, 0, 0, time.UTC), sub.EndDate)

	_, created, err = svc.Grant(ctx, grant("listing-1", "user-1"))
	require.NoError(t, err)
	assert.False(t, created)

	subscription.SetClock(svc, func() time.Time { return anchor.AddDate(0, 2, 0) })
	_, created, err = svc.Grant(ctx, grant("listing-1", "user-1"))
	require.NoError(t, err)
	assert.True(t, created, "an expired window does not block a new one")
	assert.Len(t, repo.All(), 2)
}

func TestGrantRejectsUnknownPeriod(t *testing.T) {
	svc, _, _ := newService()
	g := grant("listing-1", "user-1")
	g.Period = "fortnight"

	_, _, err := svc.Grant(context.Background(), g)
	require.ErrorIs(t, err, core.ErrInvalidInput)
}

func TestRevokeIsIdempotent(t *testing.T) {
	svc, repo, _ := newService()
	ctx := context.Background()

	_, _, err := svc.Grant(ctx, grant("listing-1", "user-1"))
	require.NoError(t, err)

	n, err := svc.Revoke(ctx, "listing-1", "user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = svc.Revoke(ctx, "listing-1", "user-1")
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, repo.All())
}

func TestListDegradesFailedLookup(t *testing.T) {
	svc, repo, gw := newService()

	for i := 0; i < 5; i++ {
		id := fmt.Sprintf("sub_%d", i)
		repo.Put(subscription.Subscription{
			ID:                     fmt.Sprintf("local-%d", i),
			ListingID:              fmt.Sprintf("listing-%d", i),
			SellerID:               "seller-1",
			UserID:                 "user-1",
			ProviderSubscriptionID: id,
			Period:                 billing.PeriodMonth,
			EndDate:                time.Now().Add(time.Hour),
		})
		gw.PutSubscription(&billing.Subscription{ID: id, CancelAtPeriodEnd: true})
	}
	gw.FailSubscription["sub_2"] = true

	views, total, err := svc.List(context.Background(), "user-1", subscription.OwnerCustomer, 0, 20)
	require.NoError(t, err)
	require.Len(t, views, 5)
	assert.Equal(t, 5, total)

	for _, v := range views {
		if v.ProviderSubscriptionID == "sub_2" {
			assert.False(t, v.MarkedForCancel)
		} else {
			assert.True(t, v.MarkedForCancel, v.ProviderSubscriptionID)
		}
	}

	sold, _, err := svc.List(context.Background(), "seller-1", subscription.OwnerSeller, 0, 2)
	require.NoError(t, err)
	require.Len(t, sold, 2)
	assert.Equal(t, "local-0", sold[0].ID)
}

func TestListReportsLapsedAsInactive(t *testing.T) {
	svc, repo, _ := newService()
	now := time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)
	subscription.SetClock(svc, func() time.Time { return now })

	repo.Put(subscription.Subscription{
		ID: "live", UserID: "user-1", Status: subscription.StatusActive,
		EndDate: now.Add(time.Hour),
	})
	repo.Put(subscription.Subscription{
		ID: "lapsed", UserID: "user-1", Status: subscription.StatusActive,
		EndDate: now.Add(-time.Hour),
	})

	views, _, err := svc.List(context.Background(), "user-1", subscription.OwnerCustomer, 0, 10)
	require.NoError(t, err)
	require.Len(t, views, 2)

	status := map[string]string{}
	for _, v := range views {
		status[v.ID] = v.Status
	}
	assert.Equal(t, subscription.StatusActive, status["live"])
	assert.Equal(t, subscription.StatusInactive, status["lapsed"])

	n, err := svc.CountActive(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestRenew(t *testing.T) {
	svc, _, _ := newService()
	ctx := context.Background()

	sub, _, err := svc.Grant(ctx, grant("listing-1", "user-1"))
	require.NoError(t, err)

	anchor := time.Date(2024, time.January, 31, 12, 0, 0, 0, time.UTC)
	subscription.SetClock(svc, func() time.Time { return anchor })

	renewed, err := svc.Renew(ctx, sub.ID, "user-1", "monthly")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, time.February, 29, 12, 0, 0, 0, time.UTC), renewed.EndDate)
	assert.Equal(t, billing.PeriodMonth, renewed.Period)

	_, err = svc.Renew(ctx, sub.ID, "user-2", "month")
	require.ErrorIs(t, err, core.ErrNotFound)

	_, err = svc.Renew(ctx, sub.ID, "user-1", "decade")
	require.ErrorIs(t, err, core.ErrInvalidInput)
}

func TestCancelOrReactivate(t *testing.T) {
	svc, _, gw := newService()
	ctx := context.Background()

	_, _, err := svc.Grant(ctx, grant("listing-1", "user-1"))
	require.NoError(t, err)
	gw.PutSubscription(&billing.Subscription{ID: "sub_listing-1"})

	confirmed, remote, err := svc.CancelOrReactivate(ctx, "user-1", "sub_listing-1", true)
	require.NoError(t, err)
	assert.True(t, confirmed)
	assert.True(t, remote.CancelAtPeriodEnd)

	confirmed, _, err = svc.CancelOrReactivate(ctx, "user-1", "sub_listing-1", false)
	require.NoError(t, err)
	assert.True(t, confirmed)

	gw.IgnoreCancelUpdate = true
	confirmed, _, err = svc.CancelOrReactivate(ctx, "user-1", "sub_listing-1", true)
	require.NoError(t, err)
	assert.False(t, confirmed)

	_, _, err = svc.CancelOrReactivate(ctx, "user-2", "sub_listing-1", true)
	require.ErrorIs(t, err, core.ErrNotFound)

	gw.FailSubscription["sub_listing-1"] = true
	_, _, err = svc.CancelOrReactivate(ctx, "user-1", "sub_listing-1", true)
	require.ErrorIs(t, err, core.ErrUpstream)
}

func asCustomer(id string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := middleware.WithClaims(r.Context(), &middleware.AccessTokenClaims{
				UserID: id,
				Role:   middleware.RoleCustomer,
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func TestHandlerListAndCancel(t *testing.T) {
	svc, _, gw := newService()
	_, _, err := svc.Grant(context.Background(), grant("listing-1", "user-1"))
	require.NoError(t, err)
	gw.PutSubscription(&billing.Subscription{ID: "sub_listing-1"})

	r := chi.NewRouter()
	subscription.NewHandler(svc).RegisterRoutes(r, asCustomer("user-1"))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/subscriptions", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"marked_for_cancel":false`)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/subscriptions/sub_listing-1/cancel",
		strings.NewReader(`{"is_cancel":true}`)))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"confirmed":true`)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/subscriptions/sub_listing-1/cancel",
		strings.NewReader(`{}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/subscriptions/sub_other/status", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandlerRenewMalformedIDIsNotFound(t *testing.T) {
	svc, _, _ := newService()
	_, _, err := svc.Grant(context.Background(), grant("listing-1", "user-1"))
	require.NoError(t, err)

	r := chi.NewRouter()
	subscription.NewHandler(svc).RegisterRoutes(r, asCustomer("user-1"))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/subscriptions/abc/renew",
		strings.NewReader(`{"unit":"month"}`)))
	assert.Equal(t, http.StatusNotFound, rec.Code, rec.Body.String())
}
