package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/kkkkikiki/fcfs-coupon/internal/model"
)

// Postgres implements Store on a PostgreSQL database.
type Postgres struct {
	db          *sqlx.DB
	campaigns   *CampaignRepository
	userCoupons *UserCouponRepository
}

// NewPostgres creates a PostgreSQL-backed store.
func NewPostgres(db *sqlx.DB) *Postgres {
	return &Postgres{
		db:          db,
		campaigns:   NewCampaignRepository(),
		userCoupons: NewUserCouponRepository(),
	}
}

// InTx implements Store. The deferred rollback is a no-op once the
// transaction committed.
func (p *Postgres) InTx(ctx context.Context, fn func(Tx) error) error {
	tx, err := p.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&postgresTx{tx: tx, store: p}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// GetCampaign implements Store.
func (p *Postgres) GetCampaign(ctx context.Context, id int64) (*model.CampaignWithCoupon, error) {
	return p.campaigns.Get(ctx, p.db, id)
}

// ListAvailableCampaigns implements Store.
func (p *Postgres) ListAvailableCampaigns(ctx context.Context, now time.Time, limit, offset int) ([]model.CampaignWithCoupon, int64, error) {
	items, err := p.campaigns.ListAvailable(ctx, p.db, now, limit, offset)
	if err != nil {
		return nil, 0, err
	}

	total, err := p.campaigns.CountAvailable(ctx, p.db, now)
	if err != nil {
		return nil, 0, err
	}

	return items, total, nil
}

// ListUserCoupons implements Store.
func (p *Postgres) ListUserCoupons(ctx context.Context, userID int64, limit, offset int) ([]model.UserCoupon, int64, error) {
	items, err := p.userCoupons.ListByUser(ctx, p.db, userID, limit, offset)
	if err != nil {
		return nil, 0, err
	}

	total, err := p.userCoupons.CountByUser(ctx, p.db, userID)
	if err != nil {
		return nil, 0, err
	}

	return items, total, nil
}

// postgresTx is the transactional view over one *sqlx.Tx.
type postgresTx struct {
	tx    *sqlx.Tx
	store *Postgres
}

func (t *postgresTx) GetCampaignForUpdate(ctx context.Context, id int64) (*model.CampaignWithCoupon, error) {
	return t.store.campaigns.GetForUpdate(ctx, t.tx, id)
}

func (t *postgresTx) DecrementStock(ctx context.Context, campaignID int64) (bool, error) {
	return t.store.campaigns.DecrementStock(ctx, t.tx, campaignID)
}

func (t *postgresTx) UserCouponExists(ctx context.Context, userID, couponID int64) (bool, error) {
	return t.store.userCoupons.Exists(ctx, t.tx, userID, couponID)
}

func (t *postgresTx) InsertUserCoupon(ctx context.Context, uc *model.UserCoupon) error {
	return t.store.userCoupons.Insert(ctx, t.tx, uc)
}
