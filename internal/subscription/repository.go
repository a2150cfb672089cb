// AngelaMos | 2026
// repository.go

package subscription

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/carterperez-dev/templates/media-rental/internal/core"
)

const subscriptionColumns = `
	id, listing_id, seller_id, user_id, provider_subscription_id,
	billing_customer_id, period, start_date, end_date, status,
	created_at, updated_at`

// Repository is the entitlement store.
type Repository interface {
	// CreateIfNoActive inserts sub unless (listing, user) already holds a
	// subscription ending after now. created is false on the no-op path.
	CreateIfNoActive(ctx context.Context, sub *Subscription, now time.Time) (created bool, err error)
	DeleteByListingAndUser(ctx context.Context, listingID, userID string) (int64, error)
	ListByOwner(ctx context.Context, ownerID string, role OwnerRole, skip, limit int) ([]Subscription, int, error)
	GetForOwner(ctx context.Context, id, userID string) (*Subscription, error)
	GetByProviderID(ctx context.Context, providerID, userID string) (*Subscription, error)
	UpdateWindow(ctx context.Context, id string, period string, end time.Time) error
	CountActive(ctx context.Context, now time.Time) (int, error)
}

type repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

func (r *repository) CreateIfNoActive(
	ctx context.Context,
	sub *Subscription,
	now time.Time,
) (bool, error) {
	created := false

	err := core.InTx(ctx, r.db, func(tx *sqlx.Tx) error {
		if err := core.AdvisoryXactLock(ctx, tx, lockKey(sub.ListingID, sub.UserID)); err != nil {
			return err
		}

		var exists bool
		err := tx.GetContext(ctx, &exists, `
			SELECT EXISTS(
				SELECT 1 FROM listing_subscriptions
				WHERE listing_id = $1 AND user_id = $2 AND end_date > $3
			)`, sub.ListingID, sub.UserID, now)
		if err != nil {
			return fmt.Errorf("check active subscription: %w", err)
		}
		if exists {
			return nil
		}

		err = tx.GetContext(ctx, sub, `
			INSERT INTO listing_subscriptions (
				id, listing_id, seller_id, user_id, provider_subscription_id,
				billing_customer_id, period, start_date, end_date, status
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			RETURNING created_at, updated_at`,
			sub.ID, sub.ListingID, sub.SellerID, sub.UserID, sub.ProviderSubscriptionID,
			sub.BillingCustomerID, sub.Period, sub.StartDate, sub.EndDate, sub.Status,
		)
		if err != nil {
			return fmt.Errorf("insert subscription: %w", err)
		}
		created = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("create subscription: %w", err)
	}
	return created, nil
}

func (r *repository) DeleteByListingAndUser(
	ctx context.Context,
	listingID, userID string,
) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM listing_subscriptions WHERE listing_id = $1 AND user_id = $2`,
		listingID, userID)
	if err != nil {
		return 0, fmt.Errorf("delete subscription: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete subscription: %w", err)
	}
	return rows, nil
}

func (r *repository) ListByOwner(
	ctx context.Context,
	ownerID string,
	role OwnerRole,
	skip, limit int,
) ([]Subscription, int, error) {
	column := "user_id"
	if role == OwnerSeller {
		column = "seller_id"
	}

	var total int
	countQuery := `SELECT COUNT(*) FROM listing_subscriptions WHERE ` + column + ` = $1`
	if err := r.db.GetContext(ctx, &total, countQuery, ownerID); err != nil {
		return nil, 0, fmt.Errorf("count subscriptions: %w", err)
	}

	query := `SELECT ` + subscriptionColumns + `
		FROM listing_subscriptions
		WHERE ` + column + ` = $1
		ORDER BY created_at ASC, id ASC
		LIMIT $2 OFFSET $3`

	subs := []Subscription{}
	if err := r.db.SelectContext(ctx, &subs, query, ownerID, limit, skip); err != nil {
		return nil, 0, fmt.Errorf("list subscriptions: %w", err)
	}
	return subs, total, nil
}

func (r *repository) GetForOwner(
	ctx context.Context,
	id, userID string,
) (*Subscription, error) {
	query := `SELECT ` + subscriptionColumns + `
		FROM listing_subscriptions
		WHERE id = $1 AND user_id = $2`
	return r.getOne(ctx, query, id, userID)
}

func (r *repository) GetByProviderID(
	ctx context.Context,
	providerID, userID string,
) (*Subscription, error) {
	query := `SELECT ` + subscriptionColumns + `
		FROM listing_subscriptions
		WHERE provider_subscription_id = $1 AND user_id = $2
		ORDER BY created_at DESC
		LIMIT 1`
	return r.getOne(ctx, query, providerID, userID)
}

func (r *repository) getOne(ctx context.Context, query string, args ...any) (*Subscription, error) {
	var sub Subscription
	err := r.db.GetContext(ctx, &sub, query, args...)
	if core.IsNoRows(err) {
		return nil, fmt.Errorf("get subscription: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get subscription: %w", err)
	}
	return &sub, nil
}

func (r *repository) UpdateWindow(
	ctx context.Context,
	id string,
	period string,
	end time.Time,
) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE listing_subscriptions
		SET period = $2, end_date = $3, status = 'active', updated_at = NOW()
		WHERE id = $1`, id, period, end)
	if err != nil {
		return fmt.Errorf("renew subscription: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("renew subscription: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("renew subscription: %w", core.ErrNotFound)
	}
	return nil
}

func (r *repository) CountActive(ctx context.Context, now time.Time) (int, error) {
	var n int
	err := r.db.GetContext(ctx, &n,
		`SELECT COUNT(*) FROM listing_subscriptions WHERE end_date > $1`, now)
	if err != nil {
		return 0, fmt.Errorf("count active subscriptions: %w", err)
	}
	return n, nil
}
