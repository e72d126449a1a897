package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/kkkkikiki/fcfs-coupon/internal/model"
)

// DBExecutor interface for database operations (can be *sqlx.DB or *sqlx.Tx)
type DBExecutor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
}

// campaignColumns selects a campaign row joined with its coupon
// definition into model.CampaignWithCoupon.
const campaignColumns = `
	f.id, f.coupon_id, f.total_quantity, f.stock_quantity,
	f.start_date, f.end_date, f.created_at, f.updated_at,
	c.id AS "coupon.id",
	c.discount_type AS "coupon.discount_type",
	c.amount AS "coupon.amount",
	c.min_order_amount AS "coupon.min_order_amount",
	c.valid_days AS "coupon.valid_days",
	c.created_at AS "coupon.created_at"
`

// CampaignRepository handles FCFS campaign data operations
type CampaignRepository struct {
	// DB-only repository - tables: fcfs_campaigns, coupons
}

// NewCampaignRepository creates a new campaign repository
func NewCampaignRepository() *CampaignRepository {
	return &CampaignRepository{}
}

// Get retrieves a campaign with its coupon definition. Returns
// (nil, nil) when the campaign does not exist.
func (r *CampaignRepository) Get(ctx context.Context, db DBExecutor, id int64) (*model.CampaignWithCoupon, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM fcfs_campaigns f
		JOIN coupons c ON c.id = f.coupon_id
		WHERE f.id = $1
	`, campaignColumns)

	var campaign model.CampaignWithCoupon
	if err := db.GetContext(ctx, &campaign, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get campaign: %w", err)
	}

	return &campaign, nil
}

// GetForUpdate retrieves a campaign with its coupon definition and
// takes a row-level lock on the campaign row for the duration of the
// surrounding transaction.
func (r *CampaignRepository) GetForUpdate(ctx context.Context, tx DBExecutor, id int64) (*model.CampaignWithCoupon, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM fcfs_campaigns f
		JOIN coupons c ON c.id = f.coupon_id
		WHERE f.id = $1
		FOR UPDATE OF f
	`, campaignColumns)

	var campaign model.CampaignWithCoupon
	if err := tx.GetContext(ctx, &campaign, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get campaign for update: %w", err)
	}

	return &campaign, nil
}

// DecrementStock decrements stock by one only while it is positive,
// issued as a single conditional update so the check and the write are
// atomic with respect to concurrent transactions.
func (r *CampaignRepository) DecrementStock(ctx context.Context, db DBExecutor, campaignID int64) (bool, error) {
	query := `
		UPDATE fcfs_campaigns
		SET stock_quantity = stock_quantity - 1, updated_at = $2
		WHERE id = $1 AND stock_quantity > 0
	`

	result, err := db.ExecContext(ctx, query, campaignID, time.Now())
	if err != nil {
		return false, fmt.Errorf("failed to decrement stock: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected > 0, nil
}

// ListAvailable retrieves campaigns whose window contains now and whose
// stock is positive, ordered by start date.
func (r *CampaignRepository) ListAvailable(ctx context.Context, db DBExecutor, now time.Time, limit, offset int) ([]model.CampaignWithCoupon, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM fcfs_campaigns f
		JOIN coupons c ON c.id = f.coupon_id
		WHERE f.start_date <= $1 AND f.end_date >= $1 AND f.stock_quantity > 0
		ORDER BY f.start_date ASC, f.id ASC
		LIMIT $2 OFFSET $3
	`, campaignColumns)

	campaigns := []model.CampaignWithCoupon{}
	if err := db.SelectContext(ctx, &campaigns, query, now, limit, offset); err != nil {
		return nil, fmt.Errorf("failed to list available campaigns: %w", err)
	}

	return campaigns, nil
}

// CountAvailable returns the total number of currently available campaigns.
func (r *CampaignRepository) CountAvailable(ctx context.Context, db DBExecutor, now time.Time) (int64, error) {
	query := `
		SELECT COUNT(*)
		FROM fcfs_campaigns f
		WHERE f.start_date <= $1 AND f.end_date >= $1 AND f.stock_quantity > 0
	`

	var total int64
	if err := db.GetContext(ctx, &total, query, now); err != nil {
		return 0, fmt.Errorf("failed to count available campaigns: %w", err)
	}

	return total, nil
}
