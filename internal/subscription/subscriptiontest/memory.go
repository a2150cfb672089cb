// AngelaMos | 2026
// memory.go

// Package subscriptiontest provides an in-memory entitlement store.
package subscriptiontest

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/carterperez-dev/templates/media-rental/internal/billing"
	"github.com/carterperez-dev/templates/media-rental/internal/core"
	"github.com/carterperez-dev/templates/media-rental/internal/subscription"
)

// Repository mimics the store without its transaction: the existence
// check and the insert are separate steps with a yield between them, so
// only the caller's locking keeps concurrent grants apart.
type Repository struct {
	mu   sync.Mutex
	rows map[string]subscription.Subscription
	seq  int
}

func NewRepository() *Repository {
	return &Repository{rows: map[string]subscription.Subscription{}}
}

func (m *Repository) CreateIfNoActive(
	_ context.Context,
	sub *subscription.Subscription,
	now time.Time,
) (bool, error) {
	m.mu.Lock()
	exists := false
	for _, s := range m.rows {
		if s.ListingID == sub.ListingID && s.UserID == sub.UserID && s.EndDate.After(now) {
			exists = true
			break
		}
	}
	m.mu.Unlock()

	if exists {
		return false, nil
	}

	time.Sleep(2 * time.Millisecond)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	sub.CreatedAt = now.Add(time.Duration(m.seq) * time.Microsecond)
	sub.UpdatedAt = sub.CreatedAt
	m.rows[sub.ID] = *sub
	return true, nil
}

func (m *Repository) DeleteByListingAndUser(_ context.Context, listingID, userID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, s := range m.rows {
		if s.ListingID == listingID && s.UserID == userID {
			delete(m.rows, id)
			n++
		}
	}
	return n, nil
}

func (m *Repository) ListByOwner(
	_ context.Context,
	ownerID string,
	role subscription.OwnerRole,
	skip, limit int,
) ([]subscription.Subscription, int, error) {
	all := m.filter(func(s subscription.Subscription) bool {
		if role == subscription.OwnerSeller {
			return s.SellerID == ownerID
		}
		return s.UserID == ownerID
	})
	total := len(all)
	skip = min(skip, total)
	return all[skip:min(skip+limit, total)], total, nil
}

func (m *Repository) GetForOwner(_ context.Context, id, userID string) (*subscription.Subscription, error) {
	return m.first(func(s subscription.Subscription) bool {
		return s.ID == id && s.UserID == userID
	})
}

func (m *Repository) GetByProviderID(_ context.Context, providerID, userID string) (*subscription.Subscription, error) {
	return m.first(func(s subscription.Subscription) bool {
		return s.ProviderSubscriptionID == providerID && s.UserID == userID
	})
}

func (m *Repository) UpdateWindow(_ context.Context, id string, period string, end time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.rows[id]
	if !ok {
		return fmt.Errorf("renew subscription: %w", core.ErrNotFound)
	}
	s.Period = billing.Period(period)
	s.EndDate = end
	s.Status = subscription.StatusActive
	m.rows[id] = s
	return nil
}

func (m *Repository) CountActive(_ context.Context, now time.Time) (int, error) {
	return len(m.filter(func(s subscription.Subscription) bool { return s.ActiveAt(now) })), nil
}

// Put stores s directly.
func (m *Repository) Put(s subscription.Subscription) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().Add(time.Duration(m.seq) * time.Microsecond)
	}
	m.rows[s.ID] = s
}

// All returns every row ordered by creation.
func (m *Repository) All() []subscription.Subscription {
	return m.filter(func(subscription.Subscription) bool { return true })
}

func (m *Repository) first(match func(subscription.Subscription) bool) (*subscription.Subscription, error) {
	found := m.filter(match)
	if len(found) == 0 {
		return nil, fmt.Errorf("get subscription: %w", core.ErrNotFound)
	}
	return &found[0], nil
}

func (m *Repository) filter(match func(subscription.Subscription) bool) []subscription.Subscription {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []subscription.Subscription{}
	for _, s := range m.rows {
		if match(s) {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

var _ subscription.Repository = (*Repository)(nil)
