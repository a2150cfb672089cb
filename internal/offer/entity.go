// AngelaMos | 2026
// entity.go

package offer

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

type Side string

const (
	SideSeller   Side = "seller"
	SideCustomer Side = "customer"
)

type Permission string

const (
	PermissionPending  Permission = "pending"
	PermissionAccepted Permission = "accepted"
	PermissionRejected Permission = "rejected"
)

const MaxAttachments = 5

// Decision reports whether p is a valid seller decision.
func (p Permission) Decision() bool {
	return p == PermissionAccepted || p == PermissionRejected
}

// OfferRecord is one side of a mirrored offer. The seller copy and the
// customer copy share (SessionID, ItemName, CustomerEmail) and nothing
// else ties them together.
type OfferRecord struct {
	Seq            int64      `db:"seq"`
	ID             string     `db:"id"`
	OwnerID        string     `db:"owner_id"`
	Side           Side       `db:"side"`
	CustomerEmail  string     `db:"customer_email"`
	ItemName       string     `db:"item_name"`
	SessionID      string     `db:"session_id"`
	ListingID      string     `db:"listing_id"`
	AttachmentURLs StringList `db:"attachment_urls"`
	Permission     Permission `db:"permission"`
	CheckoutURL    string     `db:"checkout_url"`
	CreatedAt      time.Time  `db:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at"`
}

// MirrorKey identifies both copies of one offer.
type MirrorKey struct {
	SessionID     string
	ItemName      string
	CustomerEmail string
}

func (o *OfferRecord) Key() MirrorKey {
	return MirrorKey{o.SessionID, o.ItemName, o.CustomerEmail}
}

// mirrorFor copies o onto the other side, owned by ownerID.
func (o *OfferRecord) mirrorFor(id, ownerID string, side Side) *OfferRecord {
	urls := make(StringList, len(o.AttachmentURLs))
	copy(urls, o.AttachmentURLs)
	return &OfferRecord{
		ID:             id,
		OwnerID:        ownerID,
		Side:           side,
		CustomerEmail:  o.CustomerEmail,
		ItemName:       o.ItemName,
		SessionID:      o.SessionID,
		ListingID:      o.ListingID,
		AttachmentURLs: urls,
		Permission:     o.Permission,
		CheckoutURL:    o.CheckoutURL,
	}
}

// StringList is stored as a JSONB array.
type StringList []string

func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return []byte("[]"), nil
	}
	b, err := json.Marshal([]string(l))
	if err != nil {
		return nil, fmt.Errorf("encode string list: %w", err)
	}
	return b, nil
}

func (l *StringList) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*l = StringList{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("scan string list: unsupported type %T", src)
	}

	var out []string
	if err := json.Unmarshal(raw, &out); err != nil {
		return fmt.Errorf("scan string list: %w", err)
	}
	if out == nil {
		out = []string{}
	}
	*l = out
	return nil
}
