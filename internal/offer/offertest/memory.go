// AngelaMos | 2026
// memory.go

// Package offertest provides in-memory collaborators for tests that drive
// offer.Service without a database.
package offertest

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/carterperez-dev/templates/media-rental/internal/core"
	"github.com/carterperez-dev/templates/media-rental/internal/offer"
	"github.com/carterperez-dev/templates/media-rental/internal/user"
)

type Repository struct {
	mu   sync.Mutex
	seq  int64
	rows map[string]offer.OfferRecord

	// FailInsert makes Insert fail for records on that side.
	FailInsert offer.Side
	// FailUpdate makes UpdatePermission fail for records on that side.
	FailUpdate offer.Side
}

func NewRepository() *Repository {
	return &Repository{rows: map[string]offer.OfferRecord{}}
}

func (m *Repository) Insert(_ context.Context, rec *offer.OfferRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailInsert != "" && rec.Side == m.FailInsert {
		return fmt.Errorf("insert %s offer: injected failure", rec.Side)
	}
	m.seq++
	now := time.Now()
	rec.Seq, rec.CreatedAt, rec.UpdatedAt = m.seq, now, now
	m.rows[rec.ID] = clone(*rec)
	return nil
}

func (m *Repository) Find(
	_ context.Context,
	ownerID string,
	side offer.Side,
	itemName, sessionID string,
) (*offer.OfferRecord, error) {
	return m.first(func(o offer.OfferRecord) bool {
		return o.OwnerID == ownerID && o.Side == side && o.ItemName == itemName &&
			(sessionID == "" || o.SessionID == sessionID)
	})
}

func (m *Repository) FindMirror(
	_ context.Context,
	ownerID string,
	key offer.MirrorKey,
) (*offer.OfferRecord, error) {
	return m.first(func(o offer.OfferRecord) bool {
		return o.OwnerID == ownerID && o.Side == offer.SideCustomer && o.Key() == key
	})
}

func (m *Repository) UpdatePermission(_ context.Context, id string, p offer.Permission) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.rows[id]
	if !ok {
		return fmt.Errorf("update offer permission: %w", core.ErrNotFound)
	}
	if m.FailUpdate != "" && o.Side == m.FailUpdate {
		return fmt.Errorf("update offer permission: injected failure")
	}
	o.Permission = p
	o.UpdatedAt = time.Now()
	m.rows[id] = o
	return nil
}

func (m *Repository) DeleteByID(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[id]; !ok {
		return fmt.Errorf("delete offer: %w", core.ErrNotFound)
	}
	delete(m.rows, id)
	return nil
}

func (m *Repository) DeleteBySession(_ context.Context, sessionID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, o := range m.rows {
		if o.SessionID == sessionID {
			delete(m.rows, id)
			n++
		}
	}
	return n, nil
}

func (m *Repository) ListForOwner(
	_ context.Context,
	ownerID string,
	side offer.Side,
	skip, limit int,
) ([]offer.OfferRecord, int, error) {
	all := m.filter(func(o offer.OfferRecord) bool {
		return o.OwnerID == ownerID && o.Side == side
	})
	total := len(all)
	if skip > total {
		skip = total
	}
	end := min(skip+limit, total)
	return all[skip:end], total, nil
}

func (m *Repository) ListBySide(_ context.Context, side offer.Side) ([]offer.OfferRecord, error) {
	return m.filter(func(o offer.OfferRecord) bool { return o.Side == side }), nil
}

func (m *Repository) CountByPermission(context.Context) (map[offer.Permission]int, error) {
	counts := map[offer.Permission]int{}
	for _, o := range m.filter(func(o offer.OfferRecord) bool { return o.Side == offer.SideSeller }) {
		counts[o.Permission]++
	}
	return counts, nil
}

// All returns every stored record in insertion order.
func (m *Repository) All() []offer.OfferRecord {
	return m.filter(func(offer.OfferRecord) bool { return true })
}

// Backdate moves every record's creation time back by d.
func (m *Repository) Backdate(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, o := range m.rows {
		o.CreatedAt = o.CreatedAt.Add(-d)
		m.rows[id] = o
	}
}

func (m *Repository) first(match func(offer.OfferRecord) bool) (*offer.OfferRecord, error) {
	found := m.filter(match)
	if len(found) == 0 {
		return nil, fmt.Errorf("find offer: %w", core.ErrNotFound)
	}
	return &found[0], nil
}

func (m *Repository) filter(match func(offer.OfferRecord) bool) []offer.OfferRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []offer.OfferRecord{}
	for _, o := range m.rows {
		if match(o) {
			out = append(out, clone(o))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out
}

func clone(o offer.OfferRecord) offer.OfferRecord {
	o.AttachmentURLs = append(offer.StringList{}, o.AttachmentURLs...)
	return o
}

// Accounts is an in-memory account directory.
type Accounts struct {
	mu    sync.Mutex
	users map[string]*user.User
}

func NewAccounts() *Accounts {
	return &Accounts{users: map[string]*user.User{}}
}

// Add registers an account and returns it.
func (a *Accounts) Add(email, userType string) *user.User {
	a.mu.Lock()
	defer a.mu.Unlock()
	u := &user.User{
		ID:        uuid.New().String(),
		Email:     strings.ToLower(email),
		Name:      strings.Split(email, "@")[0],
		Type:      userType,
		CreatedAt: time.Now(),
	}
	a.users[u.ID] = u
	return u
}

func (a *Accounts) Remove(id string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.users, id)
}

func (a *Accounts) FindAccount(_ context.Context, email, userType string) (*user.User, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, u := range a.users {
		if u.Email == strings.ToLower(email) && u.Type == userType {
			cp := *u
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("find account: %w", core.ErrNotFound)
}

func (a *Accounts) GetUser(_ context.Context, id string) (*user.User, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	u, ok := a.users[id]
	if !ok {
		return nil, fmt.Errorf("get user: %w", core.ErrNotFound)
	}
	cp := *u
	return &cp, nil
}

var (
	_ offer.Repository = (*Repository)(nil)
	_ offer.Accounts   = (*Accounts)(nil)
)
