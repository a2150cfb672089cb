// AngelaMos | 2026
// webhook_test.go

package webhook_test

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
	stripewebhook "github.com/stripe/stripe-go/v82/webhook"

	"github.com/carterperez-dev/templates/media-rental/internal/billing"
	"github.com/carterperez-dev/templates/media-rental/internal/billing/billingtest"
	"github.com/carterperez-dev/templates/media-rental/internal/checkout"
	"github.com/carterperez-dev/templates/media-rental/internal/core"
	"github.com/carterperez-dev/templates/media-rental/internal/listing"
	"github.com/carterperez-dev/templates/media-rental/internal/metrics"
	"github.com/carterperez-dev/templates/media-rental/internal/offer"
	"github.com/carterperez-dev/templates/media-rental/internal/offer/offertest"
	"github.com/carterperez-dev/templates/media-rental/internal/subscription"
	"github.com/carterperez-dev/templates/media-rental/internal/subscription/subscriptiontest"
	"github.com/carterperez-dev/templates/media-rental/internal/user"
	"github.com/carterperez-dev/templates/media-rental/internal/webhook"
)

const secret = "whsec_webhook_test"

type listingMap map[string]*listing.Listing

func (m listingMap) Resolve(_ context.Context, id string) (*listing.Listing, error) {
	l, ok := m[id]
	if !ok || l.IsDeleted {
		return nil, fmt.Errorf("resolve listing: %w", core.ErrNotFound)
	}
	return l, nil
}

func (m listingMap) GetPurchasable(_ context.Context, id string) (*listing.Listing, error) {
	l, ok := m[id]
	if !ok || !l.IsPurchasable() {
		return nil, fmt.Errorf("get listing: %w", core.ErrNotFound)
	}
	return l, nil
}

type fixture struct {
	engine   *webhook.Engine
	handler  *webhook.Handler
	router   *chi.Mux
	checkout *checkout.Service
	gateway  *billingtest.Gateway
	accounts *offertest.Accounts
	offers   *offertest.Repository
	subs     *subscriptiontest.Repository
	seller   *user.User
	customer *user.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	accounts := offertest.NewAccounts()
	seller := accounts.Add("seller@example.com", user.TypeSeller)
	customer := accounts.Add("customer@example.com", user.TypeCustomer)

	listings := listingMap{
		"listing-1": {
			ID:              "listing-1",
			SellerID:        seller.ID,
			Title:           "Blade Runner stills",
			MonthlyPrice:    20,
			MonthlyDiscount: 2,
			IsListed:        true,
		},
	}

	gateway := billingtest.NewGateway()
	offerRepo := offertest.NewRepository()
	subRepo := subscriptiontest.NewRepository()

	offers := offer.NewService(offerRepo, accounts, nil)
	subs := subscription.NewService(subRepo, gateway, core.NewLocalLocker(), nil)

	engine := webhook.NewEngine(listings, accounts, offers, subs, gateway, nil)
	handler := webhook.NewHandler(webhook.HandlerConfig{
		Verifier:     billing.NewStripeGateway(billing.StripeConfig{SecretKey: "sk_test_x", WebhookSecret: secret}),
		Dispatcher:   engine,
		EventTimeout: 5 * time.Second,
	})

	r := chi.NewRouter()
	handler.RegisterRoutes(r)

	return &fixture{
		engine:   engine,
		handler:  handler,
		router:   r,
		checkout: checkout.NewService(listings, accounts, offers, gateway, nil),
		gateway:  gateway,
		accounts: accounts,
		offers:   offerRepo,
		subs:     subRepo,
		seller:   seller,
		customer: customer,
	}
}

func eventJSON(id, eventType, object string) string {
	return fmt.Sprintf(
		`{"id":%q,"object":"event","type":%q,"data":{"object":%s}}`,
		id, eventType, object,
	)
}

func (f *fixture) deliver(t *testing.T, payload, signingSecret string) *httptest.ResponseRecorder {
	t.Helper()
	signed := stripewebhook.GenerateTestSignedPayload(&stripewebhook.UnsignedPayload{
		Payload:   []byte(payload),
		Secret:    signingSecret,
		Timestamp: time.Now(),
		Scheme:    "v1",
	})

	req := httptest.NewRequest(http.MethodPost, webhook.Path, strings.NewReader(string(signed.Payload)))
	req.Header.Set(webhook.SignatureHeader, signed.Header)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func (f *fixture) drain(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, f.handler.Wait(ctx))
}

func (f *fixture) startCheckout(t *testing.T) (*billing.Session, string) {
	t.Helper()
	session, err := f.checkout.Start(context.Background(), f.customer.ID, "listing-1",
		checkout.Request{SubscriptionType: "month"})
	require.NoError(t, err)
	require.NotEmpty(t, f.gateway.Checkouts)
	return session, f.gateway.Checkouts[len(f.gateway.Checkouts)-1].CustomerID
}

func TestSignatureRejectionMutatesNothing(t *testing.T) {
	f := newFixture(t)
	session, customerID := f.startCheckout(t)
	_, _, err := subscription.NewService(f.subs, f.gateway, nil, nil).Grant(context.Background(), subscription.Grant{
		ListingID: "listing-1",
		SellerID:  f.seller.ID,
		UserID:    f.customer.ID,
		Period:    billing.PeriodMonth,
	})
	require.NoError(t, err)

	offersBefore := f.offers.All()
	subsBefore := f.subs.All()

	rec := f.deliver(t,
		eventJSON("evt_bad1", "checkout.session.expired", fmt.Sprintf(`{"id":%q}`, session.ID)),
		"whsec_forged")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.NotContains(t, rec.Body.String(), "signature")

	rec = f.deliver(t,
		eventJSON("evt_bad2", "customer.subscription.deleted", fmt.Sprintf(`{"id":"sub_1","customer":%q}`, customerID)),
		"whsec_forged")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req := httptest.NewRequest(http.MethodPost, webhook.Path, strings.NewReader(`{}`))
	rec = httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	f.drain(t)
	assert.Equal(t, offersBefore, f.offers.All())
	assert.Equal(t, subsBefore, f.subs.All())
}

func TestCheckoutToEntitlementScenario(t *testing.T) {
	f := newFixture(t)
	session, customerID := f.startCheckout(t)
	require.Len(t, f.offers.All(), 2)

	rec := f.deliver(t, eventJSON("evt_1", "checkout.session.completed",
		fmt.Sprintf(`{"id":%q,"payment_status":"paid","customer":%q}`, session.ID, customerID)), secret)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"received":true}`, rec.Body.String())
	f.drain(t)
	assert.Empty(t, f.offers.All())

	rec = f.deliver(t, eventJSON("evt_2", "invoice.payment_succeeded",
		fmt.Sprintf(`{"id":"in_1","customer":%q,"subscription":"sub_1"}`, customerID)), secret)
	require.Equal(t, http.StatusOK, rec.Code)
	f.drain(t)

	subs := f.subs.All()
	require.Len(t, subs, 1)
	sub := subs[0]
	assert.Equal(t, "listing-1", sub.ListingID)
	assert.Equal(t, f.customer.ID, sub.UserID)
	assert.Equal(t, f.seller.ID, sub.SellerID)
	assert.Equal(t, "sub_1", sub.ProviderSubscriptionID)
	assert.Equal(t, customerID, sub.BillingCustomerID)
	assert.Equal(t, billing.PeriodMonth, sub.Period)
	assert.Equal(t, billing.PeriodMonth.AddTo(sub.StartDate), sub.EndDate)

	outcome, err := f.engine.Dispatch(context.Background(), &billing.Event{
		ID:     "evt_3",
		Kind:   billing.EventInvoiceFailed,
		Object: []byte(fmt.Sprintf(`{"id":"in_2","customer":%q}`, customerID)),
	})
	require.NoError(t, err)
	assert.Equal(t, metrics.OutcomeApplied, outcome)
	assert.Empty(t, f.subs.All())

	outcome, err = f.engine.Dispatch(context.Background(), &billing.Event{
		ID:     "evt_4",
		Kind:   billing.EventSubscriptionDeleted,
		Object: []byte(fmt.Sprintf(`{"id":"sub_1","customer":%q,"status":"canceled"}`, customerID)),
	})
	require.NoError(t, err)
	assert.Equal(t, metrics.OutcomeNoop, outcome)
}

func TestSubscriptionDeletedRevokesLiveEntitlement(t *testing.T) {
	f := newFixture(t)
	_, customerID := f.startCheckout(t)

	outcome, err := f.engine.Dispatch(context.Background(), &billing.Event{
		ID:     "evt_1",
		Kind:   billing.EventInvoicePaid,
		Object: []byte(fmt.Sprintf(`{"id":"in_1","customer":%q,"subscription":"sub_1"}`, customerID)),
	})
	require.NoError(t, err)
	assert.Equal(t, metrics.OutcomeApplied, outcome)
	require.Len(t, f.subs.All(), 1)

	outcome, err = f.engine.Dispatch(context.Background(), &billing.Event{
		ID:     "evt_2",
		Kind:   billing.EventSubscriptionDeleted,
		Object: []byte(fmt.Sprintf(`{"id":"sub_1","customer":%q,"status":"canceled"}`, customerID)),
	})
	require.NoError(t, err)
	assert.Equal(t, metrics.OutcomeApplied, outcome)
	assert.Empty(t, f.subs.All())
}

func TestDrainRefusesNewDeliveries(t *testing.T) {
	f := newFixture(t)
	_, customerID := f.startCheckout(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, f.handler.Drain(ctx))

	rec := f.deliver(t, eventJSON("evt_late", "invoice.payment_succeeded",
		fmt.Sprintf(`{"id":"in_1","customer":%q,"subscription":"sub_1"}`, customerID)), secret)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "SERVICE_UNAVAILABLE")

	require.NoError(t, f.handler.Wait(ctx))
	assert.Empty(t, f.subs.All())
}

func TestReplayedCheckoutCompletedIsNoop(t *testing.T) {
	f := newFixture(t)
	session, _ := f.startCheckout(t)

	ev := &billing.Event{
		ID:     "evt_1",
		Kind:   billing.EventCheckoutCompleted,
		Object: []byte(fmt.Sprintf(`{"id":%q,"payment_status":"paid"}`, session.ID)),
	}

	outcome, err := f.engine.Dispatch(context.Background(), ev)
	require.NoError(t, err)
	assert.Equal(t, metrics.OutcomeApplied, outcome)

	outcome, err = f.engine.Dispatch(context.Background(), ev)
	require.NoError(t, err)
	assert.Equal(t, metrics.OutcomeNoop, outcome)
	assert.Empty(t, f.offers.All())
}

func TestUnpaidCheckoutKeepsOffer(t *testing.T) {
	f := newFixture(t)
	session, _ := f.startCheckout(t)

	outcome, err := f.engine.Dispatch(context.Background(), &billing.Event{
		ID:     "evt_1",
		Kind:   billing.EventCheckoutCompleted,
		Object: []byte(fmt.Sprintf(`{"id":%q,"payment_status":"unpaid"}`, session.ID)),
	})
	require.NoError(t, err)
	assert.Equal(t, metrics.OutcomeIgnored, outcome)
	assert.Len(t, f.offers.All(), 2)

	outcome, err = f.engine.Dispatch(context.Background(), &billing.Event{
		ID:     "evt_2",
		Kind:   billing.EventCheckoutExpired,
		Object: []byte(fmt.Sprintf(`{"id":%q}`, session.ID)),
	})
	require.NoError(t, err)
	assert.Equal(t, metrics.OutcomeApplied, outcome)
	assert.Empty(t, f.offers.All())
}

func TestConcurrentInvoiceDeliveriesCreateOneEntitlement(t *testing.T) {
	f := newFixture(t)
	_, customerID := f.startCheckout(t)

	payload := eventJSON("evt_dup", "invoice.payment_succeeded",
		fmt.Sprintf(`{"id":"in_1","customer":%q,"subscription":"sub_1"}`, customerID))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rec := f.deliver(t, payload, secret)
			assert.Equal(t, http.StatusOK, rec.Code)
		}()
	}
	wg.Wait()
	f.drain(t)

	assert.Len(t, f.subs.All(), 1)
}

func TestUnresolvedAndUnknownEventsAreIgnored(t *testing.T) {
	f := newFixture(t)
	_, customerID := f.startCheckout(t)
	f.accounts.Remove(f.customer.ID)

	outcome, err := f.engine.Dispatch(context.Background(), &billing.Event{
		ID:     "evt_1",
		Kind:   billing.EventInvoicePaid,
		Object: []byte(fmt.Sprintf(`{"id":"in_1","customer":%q}`, customerID)),
	})
	require.NoError(t, err)
	assert.Equal(t, metrics.OutcomeIgnored, outcome)
	assert.Empty(t, f.subs.All())

	outcome, err = f.engine.Dispatch(context.Background(), &billing.Event{
		ID:     "evt_2",
		Kind:   billing.EventInvoicePaid,
		Object: []byte(`{"id":"in_2","customer":"cus_missing"}`),
	})
	require.NoError(t, err)
	assert.Equal(t, metrics.OutcomeIgnored, outcome)

	outcome, err = f.engine.Dispatch(context.Background(), &billing.Event{
		ID:   "evt_3",
		Type: "charge.refunded",
		Kind: billing.KindOf("charge.refunded"),
	})
	require.NoError(t, err)
	assert.Equal(t, metrics.OutcomeIgnored, outcome)
}

func TestMalformedObjectFails(t *testing.T) {
	f := newFixture(t)

	outcome, err := f.engine.Dispatch(context.Background(), &billing.Event{
		ID:     "evt_1",
		Kind:   billing.EventInvoicePaid,
		Object: []byte(`"not an object"`),
	})
	require.Error(t, err)
	assert.Equal(t, metrics.OutcomeFailed, outcome)
}
