// AngelaMos | 2026
// repository.go

package user

import (
	"context"
	"fmt"
	"strings"

	"github.com/carterperez-dev/templates/media-rental/internal/core"
)

const userColumns = `id, email, password_hash, name, type, token_version,
	created_at, updated_at, deleted_at`

type Repository interface {
	Create(ctx context.Context, u *User) error
	GetByID(ctx context.Context, id string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByEmailAndType(ctx context.Context, email, userType string) (*User, error)
	UpdateName(ctx context.Context, u *User) error
	IncrementTokenVersion(ctx context.Context, id string) error
	SoftDelete(ctx context.Context, id string) error
	List(ctx context.Context, params ListUsersParams) ([]User, int, error)
	CountByType(ctx context.Context) (map[string]int, error)
}

type repository struct {
	db core.DBTX
}

func NewRepository(db core.DBTX) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, u *User) error {
	err := r.db.GetContext(ctx, u, `
		INSERT INTO users (id, email, password_hash, name, type)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at, token_version`,
		u.ID, u.Email, u.PasswordHash, u.Name, u.Type,
	)
	switch {
	case core.IsDuplicateKeyError(err):
		return fmt.Errorf("create user: %w", core.ErrDuplicateKey)
	case err != nil:
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (r *repository) GetByID(ctx context.Context, id string) (*User, error) {
	return r.one(ctx, "get user", "id = $1", id)
}

func (r *repository) GetByEmail(ctx context.Context, email string) (*User, error) {
	return r.one(ctx, "get user by email", "email = $1", email)
}

// GetByEmailAndType only matches an account of the given variant, so a
// seller email never resolves as a customer.
func (r *repository) GetByEmailAndType(
	ctx context.Context,
	email, userType string,
) (*User, error) {
	return r.one(ctx, "get "+userType+" by email", "email = $1 AND type = $2", email, userType)
}

func (r *repository) one(ctx context.Context, op, where string, args ...any) (*User, error) {
	var u User
	err := r.db.GetContext(ctx, &u,
		`SELECT `+userColumns+` FROM users WHERE `+where+` AND deleted_at IS NULL`,
		args...,
	)
	if core.IsNoRows(err) {
		return nil, fmt.Errorf("%s: %w", op, core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &u, nil
}

func (r *repository) UpdateName(ctx context.Context, u *User) error {
	err := r.db.GetContext(ctx, &u.UpdatedAt, `
		UPDATE users SET name = $2, updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL
		RETURNING updated_at`,
		u.ID, u.Name,
	)
	if core.IsNoRows(err) {
		return fmt.Errorf("update user: %w", core.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	return nil
}

func (r *repository) IncrementTokenVersion(ctx context.Context, id string) error {
	return r.touch(ctx, "increment token version",
		`UPDATE users SET token_version = token_version + 1, updated_at = NOW()
		 WHERE id = $1 AND deleted_at IS NULL`, id)
}

func (r *repository) SoftDelete(ctx context.Context, id string) error {
	return r.touch(ctx, "delete user",
		`UPDATE users SET deleted_at = NOW(), updated_at = NOW()
		 WHERE id = $1 AND deleted_at IS NULL`, id)
}

// touch runs a single-row update and reports ErrNotFound when no live row
// matched.
func (r *repository) touch(ctx context.Context, op, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, core.ErrNotFound)
	}
	return nil
}

func (r *repository) List(ctx context.Context, params ListUsersParams) ([]User, int, error) {
	params.Normalize()

	where := []string{"deleted_at IS NULL"}
	var args []any
	if params.Search != "" {
		args = append(args, "%"+escapeLike(params.Search)+"%")
		where = append(where, fmt.Sprintf("(email ILIKE $%[1]d OR name ILIKE $%[1]d)", len(args)))
	}
	if params.Type != "" {
		args = append(args, params.Type)
		where = append(where, fmt.Sprintf("type = $%d", len(args)))
	}
	filter := strings.Join(where, " AND ")

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM users WHERE "+filter, args...); err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}

	page := fmt.Sprintf(
		"SELECT %s FROM users WHERE %s ORDER BY created_at ASC LIMIT $%d OFFSET $%d",
		userColumns, filter, len(args)+1, len(args)+2,
	)
	users := []User{}
	if err := r.db.SelectContext(ctx, &users, page, append(args, params.Limit, params.Skip)...); err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}
	return users, total, nil
}

func (r *repository) CountByType(ctx context.Context) (map[string]int, error) {
	var rows []struct {
		Type string `db:"type"`
		N    int    `db:"n"`
	}
	if err := r.db.SelectContext(ctx, &rows, `
		SELECT type, COUNT(*) AS n FROM users
		WHERE deleted_at IS NULL
		GROUP BY type`,
	); err != nil {
		return nil, fmt.Errorf("count users by type: %w", err)
	}

	counts := make(map[string]int, len(rows))
	for _, row := range rows {
		counts[row.Type] = row.N
	}
	return counts, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
