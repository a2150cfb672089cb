// AngelaMos | 2026
// dto.go

package user

import (
	"time"
)

type UpdateUserRequest struct {
	Name *string `json:"name,omitempty" validate:"omitempty,min=1,max=100"`
}

type UserResponse struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Type      string    `json:"type"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func ToUserResponse(u *User) UserResponse {
	return UserResponse{
		ID:        u.ID,
		Email:     u.Email,
		Name:      u.Name,
		Type:      u.Type,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

// ListUsersParams filters the operator listing. Type, when set, is one of
// seller, customer or admin.
type ListUsersParams struct {
	Skip   int
	Limit  int
	Search string
	Type   string
}

func (p *ListUsersParams) Normalize() {
	p.Skip = max(p.Skip, 0)
	switch {
	case p.Limit < 1:
		p.Limit = 20
	case p.Limit > 100:
		p.Limit = 100
	}
}
