// AngelaMos | 2026
// entity.go

package user

import (
	"time"
)

const (
	TypeSeller   = "seller"
	TypeCustomer = "customer"
	TypeAdmin    = "admin"
)

// User is a marketplace account. Type is fixed at registration; only
// sellers own listings and only customers check out.
type User struct {
	ID           string     `db:"id"`
	Email        string     `db:"email"`
	PasswordHash string     `db:"password_hash"`
	Name         string     `db:"name"`
	Type         string     `db:"type"`
	TokenVersion int        `db:"token_version"`
	CreatedAt    time.Time  `db:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at"`
	DeletedAt    *time.Time `db:"deleted_at"`
}

func (u *User) Is(userType string) bool {
	return u.Type == userType
}

func ValidType(t string) bool {
	return t == TypeSeller || t == TypeCustomer || t == TypeAdmin
}

// registrable reports whether t may be chosen at sign-up. Admin accounts
// are provisioned out of band.
func registrable(t string) bool {
	return t == TypeSeller || t == TypeCustomer
}
