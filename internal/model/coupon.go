package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// DiscountType describes how a coupon definition discounts an order.
type DiscountType string

const (
	DiscountTypePercentage DiscountType = "PERCENTAGE"
	DiscountTypeFixed      DiscountType = "FIXED"
)

// CouponStatus is the lifecycle state of an issued user coupon.
// Issuance always creates coupons as AVAILABLE.
type CouponStatus string

const (
	CouponStatusAvailable CouponStatus = "AVAILABLE"
	CouponStatusUsed      CouponStatus = "USED"
	CouponStatusExpired   CouponStatus = "EXPIRED"
)

// Coupon is the reusable discount template referenced by campaigns.
// Immutable once a campaign references it.
type Coupon struct {
	ID             int64           `db:"id" json:"id"`
	DiscountType   DiscountType    `db:"discount_type" json:"discount_type"`
	Amount         decimal.Decimal `db:"amount" json:"amount"`
	MinOrderAmount decimal.Decimal `db:"min_order_amount" json:"min_order_amount"`
	ValidDays      int             `db:"valid_days" json:"valid_days"`
	CreatedAt      time.Time       `db:"created_at" json:"created_at"`
}

// FcfsCampaign is a time-boxed, stock-limited issuance offer for one
// coupon definition. StockQuantity only moves down, floor 0, and only
// through the issuance engine's conditional decrement.
type FcfsCampaign struct {
	ID            int64     `db:"id" json:"id"`
	CouponID      int64     `db:"coupon_id" json:"coupon_id"`
	TotalQuantity int32     `db:"total_quantity" json:"total_quantity"`
	StockQuantity int32     `db:"stock_quantity" json:"stock_quantity"`
	StartDate     time.Time `db:"start_date" json:"start_date"`
	EndDate       time.Time `db:"end_date" json:"end_date"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}

// CampaignWithCoupon is a campaign row joined with its coupon definition,
// the shape issuance validation and catalog reads work with.
type CampaignWithCoupon struct {
	FcfsCampaign
	Coupon Coupon `db:"coupon" json:"coupon"`
}

// WindowContains reports whether now falls inside the campaign's
// issuance window, bounds inclusive.
func (c *FcfsCampaign) WindowContains(now time.Time) bool {
	return !now.Before(c.StartDate) && !now.After(c.EndDate)
}

// UserCoupon records that a user was granted a coupon definition.
// At most one row exists per (user_id, coupon_id) system-wide.
type UserCoupon struct {
	ID         int64        `db:"id" json:"id"`
	UserID     int64        `db:"user_id" json:"user_id"`
	CouponID   int64        `db:"coupon_id" json:"coupon_id"`
	Status     CouponStatus `db:"status" json:"status"`
	ExpiryDate time.Time    `db:"expiry_date" json:"expiry_date"`
	CreatedAt  time.Time    `db:"created_at" json:"created_at"`
}
