// AngelaMos | 2026
// offer_test.go

package offer_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/templates/media-rental/internal/core"
	"github.com/carterperez-dev/templates/media-rental/internal/middleware"
	"github.com/carterperez-dev/templates/media-rental/internal/offer"
	"github.com/carterperez-dev/templates/media-rental/internal/offer/offertest"
	"github.com/carterperez-dev/templates/media-rental/internal/user"
)

type fixture struct {
	repo     *offertest.Repository
	accounts *offertest.Accounts
	svc      *offer.Service
	seller   *user.User
	customer *user.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	repo := offertest.NewRepository()
	accounts := offertest.NewAccounts()
	return &fixture{
		repo:     repo,
		accounts: accounts,
		svc:      offer.NewService(repo, accounts, nil),
		seller:   accounts.Add("seller@example.com", user.TypeSeller),
		customer: accounts.Add("customer@example.com", user.TypeCustomer),
	}
}

func details(session, item string) offer.Details {
	return offer.Details{
		ItemName:       item,
		SessionID:      session,
		ListingID:      "listing-1",
		CheckoutURL:    "https://checkout.test/" + session,
		AttachmentURLs: []string{"https://cdn.test/a.png"},
	}
}

func (f *fixture) create(t *testing.T, session, item string) *offer.OfferRecord {
	t.Helper()
	rec, err := f.svc.CreateOffer(context.Background(), f.seller.Email, f.customer.Email, details(session, item))
	require.NoError(t, err)
	return rec
}

func bySide(all []offer.OfferRecord, side offer.Side) []offer.OfferRecord {
	var out []offer.OfferRecord
	for _, o := range all {
		if o.Side == side {
			out = append(out, o)
		}
	}
	return out
}

func TestCreateOfferMirrorsBothSides(t *testing.T) {
	f := newFixture(t)
	f.create(t, "cs_1", "Dune")

	all := f.repo.All()
	require.Len(t, all, 2)

	s, c := bySide(all, offer.SideSeller), bySide(all, offer.SideCustomer)
	require.Len(t, s, 1)
	require.Len(t, c, 1)

	assert.Equal(t, f.seller.ID, s[0].OwnerID)
	assert.Equal(t, f.customer.ID, c[0].OwnerID)
	assert.Equal(t, s[0].Key(), c[0].Key())
	assert.Equal(t, offer.PermissionPending, c[0].Permission)
	assert.Equal(t, s[0].AttachmentURLs, c[0].AttachmentURLs)
	assert.Equal(t, s[0].CheckoutURL, c[0].CheckoutURL)
	assert.Equal(t, s[0].ListingID, c[0].ListingID)
	assert.NotEqual(t, s[0].ID, c[0].ID)
}

func TestCreateOfferRequiresBothRoles(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.CreateOffer(ctx, f.customer.Email, f.customer.Email, details("cs_1", "Dune"))
	require.ErrorIs(t, err, core.ErrNotFound)

	_, err = f.svc.CreateOffer(ctx, f.seller.Email, "nobody@example.com", details("cs_1", "Dune"))
	require.ErrorIs(t, err, core.ErrNotFound)

	assert.Empty(t, f.repo.All())
}

func TestCreateOfferRejectsTooManyAttachments(t *testing.T) {
	f := newFixture(t)
	d := details("cs_1", "Dune")
	for i := 0; i < 5; i++ {
		d.AttachmentURLs = append(d.AttachmentURLs, "https://cdn.test/x.png")
	}

	_, err := f.svc.CreateOffer(context.Background(), f.seller.Email, f.customer.Email, d)
	require.ErrorIs(t, err, core.ErrInvalidInput)
}

func TestCreateOfferCompensatesFailedMirror(t *testing.T) {
	f := newFixture(t)
	f.repo.FailInsert = offer.SideCustomer

	_, err := f.svc.CreateOffer(context.Background(), f.seller.Email, f.customer.Email, details("cs_1", "Dune"))
	require.ErrorIs(t, err, core.ErrPartialConsistency)
	assert.Empty(t, f.repo.All())

	rec := httptest.NewRecorder()
	core.HandleError(rec, err, "offer")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "please retry")
}

func TestResolveOfferUpdatesMirror(t *testing.T) {
	f := newFixture(t)
	f.create(t, "cs_1", "Dune")

	rec, err := f.svc.ResolveOffer(context.Background(), f.seller.Email, "Dune", "", offer.PermissionAccepted)
	require.NoError(t, err)
	assert.Equal(t, offer.PermissionAccepted, rec.Permission)

	for _, o := range f.repo.All() {
		assert.Equal(t, offer.PermissionAccepted, o.Permission, string(o.Side))
	}
}

func TestResolveOfferBySessionDisambiguates(t *testing.T) {
	f := newFixture(t)
	f.create(t, "cs_1", "Dune")
	f.create(t, "cs_2", "Dune")

	_, err := f.svc.ResolveOffer(context.Background(), f.seller.Email, "Dune", "cs_2", offer.PermissionRejected)
	require.NoError(t, err)

	for _, o := range f.repo.All() {
		want := offer.PermissionPending
		if o.SessionID == "cs_2" {
			want = offer.PermissionRejected
		}
		assert.Equal(t, want, o.Permission, o.SessionID+"/"+string(o.Side))
	}
}

func TestResolveOfferMissingMirrorStillSucceeds(t *testing.T) {
	f := newFixture(t)
	f.create(t, "cs_1", "Dune")
	f.repo.FailUpdate = offer.SideCustomer

	rec, err := f.svc.ResolveOffer(context.Background(), f.seller.Email, "Dune", "cs_1", offer.PermissionAccepted)
	require.NoError(t, err)
	assert.Equal(t, offer.PermissionAccepted, rec.Permission)

	c := bySide(f.repo.All(), offer.SideCustomer)
	require.Len(t, c, 1)
	assert.Equal(t, offer.PermissionPending, c[0].Permission)
}

func TestResolveOfferRejectsUnknownDecision(t *testing.T) {
	f := newFixture(t)
	f.create(t, "cs_1", "Dune")

	_, err := f.svc.ResolveOffer(context.Background(), f.seller.Email, "Dune", "", offer.PermissionPending)
	require.ErrorIs(t, err, core.ErrInvalidInput)

	_, err = f.svc.ResolveOffer(context.Background(), f.seller.Email, "Alien", "", offer.PermissionAccepted)
	require.ErrorIs(t, err, core.ErrNotFound)
}

func TestDeleteOfferRemovesBothCopies(t *testing.T) {
	f := newFixture(t)
	f.create(t, "cs_1", "Dune")
	f.create(t, "cs_2", "Alien")

	_, err := f.svc.DeleteOffer(context.Background(), f.seller.Email, "Dune", "cs_1")
	require.NoError(t, err)

	for _, o := range f.repo.All() {
		assert.NotEqual(t, "cs_1", o.SessionID)
	}
	assert.Len(t, f.repo.All(), 2)

	_, err = f.svc.DeleteOffer(context.Background(), f.seller.Email, "Dune", "cs_1")
	require.ErrorIs(t, err, core.ErrNotFound)
}

func TestPurgeBySessionIsIdempotent(t *testing.T) {
	f := newFixture(t)
	f.create(t, "cs_1", "Dune")
	f.create(t, "cs_2", "Alien")
	ctx := context.Background()

	n, err := f.svc.PurgeBySession(ctx, "cs_1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	n, err = f.svc.PurgeBySession(ctx, "cs_1")
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = f.svc.PurgeBySession(ctx, "")
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Len(t, f.repo.All(), 2)
}

func TestRepairOrphans(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.create(t, "cs_drift", "Dune")
	f.repo.FailUpdate = offer.SideCustomer
	_, err := f.svc.ResolveOffer(ctx, f.seller.Email, "Dune", "cs_drift", offer.PermissionAccepted)
	require.NoError(t, err)
	f.repo.FailUpdate = ""

	missing := f.create(t, "cs_missing", "Alien")
	for _, o := range f.repo.All() {
		if o.SessionID == "cs_missing" && o.Side == offer.SideCustomer {
			require.NoError(t, f.repo.DeleteByID(ctx, o.ID))
		}
	}

	f.create(t, "cs_lonely", "Heat")
	seller := bySide(f.repo.All(), offer.SideSeller)
	for _, o := range seller {
		if o.SessionID == "cs_lonely" {
			require.NoError(t, f.repo.DeleteByID(ctx, o.ID))
		}
	}

	gone := f.accounts.Add("gone@example.com", user.TypeCustomer)
	_, err = f.svc.CreateOffer(ctx, f.seller.Email, gone.Email, details("cs_gone", "Ran"))
	require.NoError(t, err)
	for _, o := range f.repo.All() {
		if o.SessionID == "cs_gone" && o.Side == offer.SideCustomer {
			require.NoError(t, f.repo.DeleteByID(ctx, o.ID))
		}
	}
	f.accounts.Remove(gone.ID)

	report, err := f.svc.RepairOrphans(ctx)
	require.NoError(t, err)
	assert.Zero(t, report.Total(), "young records are left alone")

	f.repo.Backdate(2 * time.Minute)

	report, err = f.svc.RepairOrphans(ctx)
	require.NoError(t, err)
	assert.Equal(t, offer.RepairReport{
		MirrorsCreated:    1,
		SellerDropped:     1,
		CustomerDropped:   1,
		PermissionsSynced: 1,
	}, report)

	all := f.repo.All()
	require.Len(t, all, 4)
	for _, o := range all {
		assert.Contains(t, []string{"cs_drift", missing.SessionID}, o.SessionID)
		if o.SessionID == "cs_drift" {
			assert.Equal(t, offer.PermissionAccepted, o.Permission)
		}
	}

	report, err = f.svc.RepairOrphans(ctx)
	require.NoError(t, err)
	assert.Zero(t, report.Total())
}

func TestRepairOrphansUsesClock(t *testing.T) {
	f := newFixture(t)
	f.create(t, "cs_1", "Dune")
	for _, o := range f.repo.All() {
		if o.Side == offer.SideCustomer {
			require.NoError(t, f.repo.DeleteByID(context.Background(), o.ID))
		}
	}

	offer.SetClock(f.svc, func() time.Time { return time.Now().Add(time.Hour) })

	report, err := f.svc.RepairOrphans(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.MirrorsCreated)
}

func as(u *user.User) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := middleware.WithClaims(r.Context(), &middleware.AccessTokenClaims{
				UserID: u.ID,
				Role:   u.Type,
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func TestHandlerAcceptAndCustomerView(t *testing.T) {
	f := newFixture(t)
	f.create(t, "cs_1", "Dune")

	sellerRouter := chi.NewRouter()
	offer.NewHandler(f.svc).RegisterRoutes(sellerRouter, as(f.seller))

	rec := httptest.NewRecorder()
	sellerRouter.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/offers/accept",
		strings.NewReader(`{"item_name":"Dune"}`)))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	customerRouter := chi.NewRouter()
	offer.NewHandler(f.svc).RegisterRoutes(customerRouter, as(f.customer))

	rec = httptest.NewRecorder()
	customerRouter.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/offers/customer", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"permission":"accepted"`)

	rec = httptest.NewRecorder()
	customerRouter.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/offers/seller", nil))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestHandlerDeleteMissingIsNotFound(t *testing.T) {
	f := newFixture(t)
	r := chi.NewRouter()
	offer.NewHandler(f.svc).RegisterRoutes(r, as(f.seller))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/offers",
		strings.NewReader(`{"item_name":"Nope"}`)))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
