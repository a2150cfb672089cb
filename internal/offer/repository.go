// AngelaMos | 2026
// repository.go

package offer

import (
	"context"
	"fmt"

	"github.com/carterperez-dev/templates/media-rental/internal/core"
)

const offerColumns = `
	seq, id, owner_id, side, customer_email, item_name, session_id,
	listing_id, attachment_urls, permission, checkout_url, created_at, updated_at`

// Repository stores each side of an offer as its own row. Every method
// touches one row or one session; mirrors are kept in step by Service.
type Repository interface {
	Insert(ctx context.Context, rec *OfferRecord) error
	// Find returns the first record in insertion order. An empty
	// sessionID matches any session.
	Find(ctx context.Context, ownerID string, side Side, itemName, sessionID string) (*OfferRecord, error)
	FindMirror(ctx context.Context, ownerID string, key MirrorKey) (*OfferRecord, error)
	UpdatePermission(ctx context.Context, id string, p Permission) error
	DeleteByID(ctx context.Context, id string) error
	DeleteBySession(ctx context.Context, sessionID string) (int64, error)
	ListForOwner(ctx context.Context, ownerID string, side Side, skip, limit int) ([]OfferRecord, int, error)
	ListBySide(ctx context.Context, side Side) ([]OfferRecord, error)
	CountByPermission(ctx context.Context) (map[Permission]int, error)
}

type repository struct {
	db core.DBTX
}

func NewRepository(db core.DBTX) Repository {
	return &repository{db: db}
}

func (r *repository) Insert(ctx context.Context, rec *OfferRecord) error {
	query := `
		INSERT INTO offers (
			id, owner_id, side, customer_email, item_name, session_id,
			listing_id, attachment_urls, permission, checkout_url
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING seq, created_at, updated_at`

	err := r.db.GetContext(ctx, rec, query,
		rec.ID,
		rec.OwnerID,
		rec.Side,
		rec.CustomerEmail,
		rec.ItemName,
		rec.SessionID,
		rec.ListingID,
		rec.AttachmentURLs,
		rec.Permission,
		rec.CheckoutURL,
	)
	if err != nil {
		return fmt.Errorf("insert %s offer: %w", rec.Side, err)
	}
	return nil
}

func (r *repository) Find(
	ctx context.Context,
	ownerID string,
	side Side,
	itemName, sessionID string,
) (*OfferRecord, error) {
	query := `SELECT ` + offerColumns + `
		FROM offers
		WHERE owner_id = $1 AND side = $2 AND item_name = $3
		  AND ($4 = '' OR session_id = $4)
		ORDER BY seq ASC
		LIMIT 1`

	return r.getOne(ctx, "find "+string(side)+" offer", query,
		ownerID, side, itemName, sessionID)
}

func (r *repository) FindMirror(
	ctx context.Context,
	ownerID string,
	key MirrorKey,
) (*OfferRecord, error) {
	query := `SELECT ` + offerColumns + `
		FROM offers
		WHERE owner_id = $1 AND side = 'customer'
		  AND session_id = $2 AND item_name = $3 AND customer_email = $4
		ORDER BY seq ASC
		LIMIT 1`

	return r.getOne(ctx, "find customer mirror", query,
		ownerID, key.SessionID, key.ItemName, key.CustomerEmail)
}

func (r *repository) getOne(
	ctx context.Context,
	op, query string,
	args ...any,
) (*OfferRecord, error) {
	var rec OfferRecord
	err := r.db.GetContext(ctx, &rec, query, args...)
	if core.IsNoRows(err) {
		return nil, fmt.Errorf("%s: %w", op, core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &rec, nil
}

func (r *repository) UpdatePermission(
	ctx context.Context,
	id string,
	p Permission,
) error {
	query := `UPDATE offers SET permission = $2, updated_at = NOW() WHERE id = $1`
	return r.execOne(ctx, "update offer permission", query, id, p)
}

func (r *repository) DeleteByID(ctx context.Context, id string) error {
	return r.execOne(ctx, "delete offer", `DELETE FROM offers WHERE id = $1`, id)
}

func (r *repository) DeleteBySession(
	ctx context.Context,
	sessionID string,
) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM offers WHERE session_id = $1`, sessionID)
	if err != nil {
		return 0, fmt.Errorf("purge offers by session: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("purge offers by session: %w", err)
	}
	return rows, nil
}

func (r *repository) ListForOwner(
	ctx context.Context,
	ownerID string,
	side Side,
	skip, limit int,
) ([]OfferRecord, int, error) {
	var total int
	countQuery := `SELECT COUNT(*) FROM offers WHERE owner_id = $1 AND side = $2`
	if err := r.db.GetContext(ctx, &total, countQuery, ownerID, side); err != nil {
		return nil, 0, fmt.Errorf("count offers: %w", err)
	}

	query := `SELECT ` + offerColumns + `
		FROM offers
		WHERE owner_id = $1 AND side = $2
		ORDER BY seq ASC
		LIMIT $3 OFFSET $4`

	offers := []OfferRecord{}
	if err := r.db.SelectContext(ctx, &offers, query, ownerID, side, limit, skip); err != nil {
		return nil, 0, fmt.Errorf("list offers: %w", err)
	}
	return offers, total, nil
}

func (r *repository) ListBySide(ctx context.Context, side Side) ([]OfferRecord, error) {
	query := `SELECT ` + offerColumns + ` FROM offers WHERE side = $1 ORDER BY seq ASC`

	offers := []OfferRecord{}
	if err := r.db.SelectContext(ctx, &offers, query, side); err != nil {
		return nil, fmt.Errorf("list %s offers: %w", side, err)
	}
	return offers, nil
}

func (r *repository) CountByPermission(ctx context.Context) (map[Permission]int, error) {
	query := `
		SELECT permission, COUNT(*) AS n
		FROM offers
		WHERE side = 'seller'
		GROUP BY permission`

	var rows []struct {
		Permission Permission `db:"permission"`
		N          int        `db:"n"`
	}
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("count offers: %w", err)
	}

	counts := make(map[Permission]int, len(rows))
	for _, row := range rows {
		counts[row.Permission] = row.N
	}
	return counts, nil
}

func (r *repository) execOne(ctx context.Context, op, query string, args ...any) error {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if rows == 0 {
		return fmt.Errorf("%s: %w", op, core.ErrNotFound)
	}
	return nil
}
