// AngelaMos | 2026
// entity.go

package auth

import (
	"time"
)

// RefreshToken is one link in a rotation family. Only the hash of the
// opaque token is persisted.
type RefreshToken struct {
	ID           string     `db:"id"`
	UserID       string     `db:"user_id"`
	TokenHash    string     `db:"token_hash"`
	FamilyID     string     `db:"family_id"`
	ExpiresAt    time.Time  `db:"expires_at"`
	CreatedAt    time.Time  `db:"created_at"`
	IsUsed       bool       `db:"is_used"`
	UsedAt       *time.Time `db:"used_at"`
	RevokedAt    *time.Time `db:"revoked_at"`
	ReplacedByID *string    `db:"replaced_by_id"`
	UserAgent    string     `db:"user_agent"`
	IPAddress    string     `db:"ip_address"`
}

type TokenState int

const (
	TokenActive TokenState = iota
	// TokenRotated has already been exchanged; presenting it again is reuse.
	TokenRotated
	TokenRevoked
	TokenExpired
)

// StateAt reports the token's state at now. Rotation wins over revocation
// so a replayed token is always detected as reuse.
func (t *RefreshToken) StateAt(now time.Time) TokenState {
	switch {
	case t.IsUsed:
		return TokenRotated
	case t.RevokedAt != nil:
		return TokenRevoked
	case !now.Before(t.ExpiresAt):
		return TokenExpired
	default:
		return TokenActive
	}
}

func (t *RefreshToken) IsExpired() bool {
	return !time.Now().Before(t.ExpiresAt)
}

func (t *RefreshToken) IsValid() bool {
	return t.StateAt(time.Now()) == TokenActive
}

func (t *RefreshToken) MarkAsUsed(replacedByID string) {
	now := time.Now()
	t.IsUsed, t.UsedAt, t.ReplacedByID = true, &now, &replacedByID
}

func (t *RefreshToken) Revoke() {
	if t.RevokedAt == nil {
		now := time.Now()
		t.RevokedAt = &now
	}
}
