package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/kkkkikiki/fcfs-coupon/internal/model"
)

// pq error code for unique_violation
const pqUniqueViolation = "23505"

// UserCouponRepository handles the issuance ledger: one row per
// (user_id, coupon_id) pair, enforced by a unique constraint.
type UserCouponRepository struct {
	// DB-only repository - table: user_coupons
}

// NewUserCouponRepository creates a new user coupon repository
func NewUserCouponRepository() *UserCouponRepository {
	return &UserCouponRepository{}
}

// Exists reports whether an issuance record already exists for the
// (user, coupon definition) pair. Read inside the issuance transaction
// so no duplicate can slip in between check and insert.
func (r *UserCouponRepository) Exists(ctx context.Context, db DBExecutor, userID, couponID int64) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM user_coupons WHERE user_id = $1 AND coupon_id = $2
		)
	`

	var exists bool
	if err := db.GetContext(ctx, &exists, query, userID, couponID); err != nil {
		return false, fmt.Errorf("failed to check user coupon existence: %w", err)
	}

	return exists, nil
}

// Insert records an issuance. A (user_id, coupon_id) duplicate fails
// with ErrUniqueViolation rather than a generic error, so callers can
// treat a lost duplicate race as "already issued".
func (r *UserCouponRepository) Insert(ctx context.Context, db DBExecutor, uc *model.UserCoupon) error {
	query := `
		INSERT INTO user_coupons (user_id, coupon_id, status, expiry_date, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`

	uc.CreatedAt = time.Now()

	err := db.GetContext(ctx, &uc.ID, query,
		uc.UserID, uc.CouponID, uc.Status, uc.ExpiryDate, uc.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == pqUniqueViolation {
			return ErrUniqueViolation
		}
		return fmt.Errorf("failed to insert user coupon: %w", err)
	}

	return nil
}

// ListByUser retrieves a user's issued coupons, newest first.
func (r *UserCouponRepository) ListByUser(ctx context.Context, db DBExecutor, userID int64, limit, offset int) ([]model.UserCoupon, error) {
	query := `
		SELECT id, user_id, coupon_id, status, expiry_date, created_at
		FROM user_coupons
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3
	`

	coupons := []model.UserCoupon{}
	if err := db.SelectContext(ctx, &coupons, query, userID, limit, offset); err != nil {
		return nil, fmt.Errorf("failed to list user coupons: %w", err)
	}

	return coupons, nil
}

// CountByUser returns how many coupons the user holds.
func (r *UserCouponRepository) CountByUser(ctx context.Context, db DBExecutor, userID int64) (int64, error) {
	query := `SELECT COUNT(*) FROM user_coupons WHERE user_id = $1`

	var total int64
	if err := db.GetContext(ctx, &total, query, userID); err != nil {
		return 0, fmt.Errorf("failed to count user coupons: %w", err)
	}

	return total, nil
}
