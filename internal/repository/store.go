package repository

import (
	"context"
	"errors"
	"time"

	"github.com/kkkkikiki/fcfs-coupon/internal/model"
)

// ErrUniqueViolation reports that an insert hit a storage-level
// uniqueness constraint. For user coupons this is the (user_id,
// coupon_id) constraint backing duplicate suppression.
var ErrUniqueViolation = errors.New("repository: unique constraint violation")

// Store is the persistence boundary handed to the services. Campaign
// and ledger mutation happens only through InTx; the remaining methods
// are unprotected reads for the catalog, which may observe slightly
// stale stock counts.
type Store interface {
	// InTx runs fn inside one atomic transaction. Any error from fn
	// rolls the whole transaction back and is returned unchanged.
	InTx(ctx context.Context, fn func(Tx) error) error

	// GetCampaign loads a campaign joined with its coupon definition.
	// Returns (nil, nil) when the campaign does not exist.
	GetCampaign(ctx context.Context, id int64) (*model.CampaignWithCoupon, error)

	// ListAvailableCampaigns pages over campaigns whose window contains
	// now and whose stock is positive, returning items and total count.
	ListAvailableCampaigns(ctx context.Context, now time.Time, limit, offset int) ([]model.CampaignWithCoupon, int64, error)

	// ListUserCoupons pages over a user's issued coupons, newest first.
	ListUserCoupons(ctx context.Context, userID int64, limit, offset int) ([]model.UserCoupon, int64, error)
}

// Tx is the transactional view the issuance engine works against. All
// reads see the same snapshot the eventual writes commit into.
type Tx interface {
	// GetCampaignForUpdate loads a campaign joined with its coupon
	// definition and takes a row-level lock on the campaign row.
	// Returns (nil, nil) when the campaign does not exist.
	GetCampaignForUpdate(ctx context.Context, id int64) (*model.CampaignWithCoupon, error)

	// DecrementStock decrements the campaign's stock by one only when
	// the current value is positive, as a single conditional update.
	// Returns false when no row qualified (stock exhausted).
	DecrementStock(ctx context.Context, campaignID int64) (bool, error)

	// UserCouponExists reports whether the user already holds a coupon
	// for the given definition.
	UserCouponExists(ctx context.Context, userID, couponID int64) (bool, error)

	// InsertUserCoupon records an issuance, filling in the record ID and
	// creation time. A duplicate (user_id, coupon_id) pair fails with
	// ErrUniqueViolation.
	InsertUserCoupon(ctx context.Context, uc *model.UserCoupon) error
}
