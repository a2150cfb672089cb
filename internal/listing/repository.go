// AngelaMos | 2026
// repository.go

package listing

import (
	"context"
	"fmt"
	"strings"

	"github.com/carterperez-dev/templates/media-rental/internal/core"
)

const listingColumns = `
	id, seller_id, title, description, image, width, height,
	daily_price, daily_discount, weekly_price, weekly_discount,
	monthly_price, monthly_discount, yearly_price, yearly_discount,
	is_listed, is_deleted, created_at, updated_at`

type Repository interface {
	Create(ctx context.Context, l *Listing) error
	GetByID(ctx context.Context, id string) (*Listing, error)
	Update(ctx context.Context, l *Listing) error
	SoftDelete(ctx context.Context, id, sellerID string) error
	List(ctx context.Context, params ListParams) ([]Listing, int, error)
	Count(ctx context.Context) (int, error)
}

type repository struct {
	db core.DBTX
}

func NewRepository(db core.DBTX) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, l *Listing) error {
	query := `
		INSERT INTO listings (
			id, seller_id, title, description, image, width, height,
			daily_price, daily_discount, weekly_price, weekly_discount,
			monthly_price, monthly_discount, yearly_price, yearly_discount,
			is_listed
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16
		)
		RETURNING created_at, updated_at`

	err := r.db.GetContext(ctx, l, query,
		l.ID, l.SellerID, l.Title, l.Description, l.Image, l.Width, l.Height,
		l.DailyPrice, l.DailyDiscount, l.WeeklyPrice, l.WeeklyDiscount,
		l.MonthlyPrice, l.MonthlyDiscount, l.YearlyPrice, l.YearlyDiscount,
		l.IsListed,
	)
	if err != nil {
		return fmt.Errorf("create listing: %w", err)
	}
	return nil
}

// GetByID returns soft-deleted listings too; callers decide visibility.
func (r *repository) GetByID(ctx context.Context, id string) (*Listing, error) {
	query := `SELECT ` + listingColumns + ` FROM listings WHERE id = $1`

	var l Listing
	err := r.db.GetContext(ctx, &l, query, id)
	if core.IsNoRows(err) {
		return nil, fmt.Errorf("get listing: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get listing: %w", err)
	}
	return &l, nil
}

func (r *repository) Update(ctx context.Context, l *Listing) error {
	query := `
		UPDATE listings
		SET title = $2, description = $3, image = $4, width = $5, height = $6,
		    daily_price = $7, daily_discount = $8,
		    weekly_price = $9, weekly_discount = $10,
		    monthly_price = $11, monthly_discount = $12,
		    yearly_price = $13, yearly_discount = $14,
		    is_listed = $15, updated_at = NOW()
		WHERE id = $1 AND is_deleted = false
		RETURNING updated_at`

	err := r.db.GetContext(ctx, &l.UpdatedAt, query,
		l.ID, l.Title, l.Description, l.Image, l.Width, l.Height,
		l.DailyPrice, l.DailyDiscount, l.WeeklyPrice, l.WeeklyDiscount,
		l.MonthlyPrice, l.MonthlyDiscount, l.YearlyPrice, l.YearlyDiscount,
		l.IsListed,
	)
	if core.IsNoRows(err) {
		return fmt.Errorf("update listing: %w", core.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("update listing: %w", err)
	}
	return nil
}

func (r *repository) SoftDelete(ctx context.Context, id, sellerID string) error {
	query := `
		UPDATE listings
		SET is_deleted = true, is_listed = false, updated_at = NOW()
		WHERE id = $1 AND seller_id = $2 AND is_deleted = false`

	result, err := r.db.ExecContext(ctx, query, id, sellerID)
	if err != nil {
		return fmt.Errorf("delete listing: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete listing: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("delete listing: %w", core.ErrNotFound)
	}
	return nil
}

func (r *repository) List(
	ctx context.Context,
	params ListParams,
) ([]Listing, int, error) {
	conditions := []string{"is_deleted = false"}
	var args []any
	argIdx := 1

	if params.Public {
		conditions = append(conditions, "is_listed = true")
	}

	if params.SellerID != "" {
		conditions = append(conditions, fmt.Sprintf("seller_id = $%d", argIdx))
		args = append(args, params.SellerID)
		argIdx++
	}

	if params.Search != "" {
		conditions = append(conditions, fmt.Sprintf(
			"(title ILIKE $%d OR description ILIKE $%d)", argIdx, argIdx))
		args = append(args, "%"+escapeLike(params.Search)+"%")
		argIdx++
	}

	whereClause := strings.Join(conditions, " AND ")

	var total int
	countQuery := "SELECT COUNT(*) FROM listings WHERE " + whereClause
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count listings: %w", err)
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM listings
		WHERE %s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d`,
		listingColumns, whereClause, argIdx, argIdx+1)
	args = append(args, params.Limit, params.Skip)

	listings := []Listing{}
	if err := r.db.SelectContext(ctx, &listings, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list listings: %w", err)
	}
	return listings, total, nil
}

func (r *repository) Count(ctx context.Context) (int, error) {
	var n int
	query := `SELECT COUNT(*) FROM listings WHERE is_deleted = false`
	if err := r.db.GetContext(ctx, &n, query); err != nil {
		return 0, fmt.Errorf("count listings: %w", err)
	}
	return n, nil
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
