package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/kkkkikiki/fcfs-coupon/internal/model"
)

type userCouponKey struct {
	userID   int64
	couponID int64
}

// Memory is an in-process Store for tests and single-node runs. A
// single mutex serializes transactions; writes happen on a copy of the
// state and are swapped in on commit, so a failed transaction leaves
// nothing behind.
type Memory struct {
	mu           sync.Mutex
	coupons      map[int64]model.Coupon
	campaigns    map[int64]model.FcfsCampaign
	userCoupons  map[int64]model.UserCoupon
	byUserCoupon map[userCouponKey]int64
	nextID       int64
}

// NewMemory creates an empty in-process store.
func NewMemory() *Memory {
	return &Memory{
		coupons:      make(map[int64]model.Coupon),
		campaigns:    make(map[int64]model.FcfsCampaign),
		userCoupons:  make(map[int64]model.UserCoupon),
		byUserCoupon: make(map[userCouponKey]int64),
	}
}

// PutCoupon seeds or replaces a coupon definition.
func (m *Memory) PutCoupon(c model.Coupon) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.coupons[c.ID] = c
}

// PutCampaign seeds or replaces a campaign.
func (m *Memory) PutCampaign(c model.FcfsCampaign) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.campaigns[c.ID] = c
}

// StockQuantity reads a campaign's current stock, 0 for unknown ids.
func (m *Memory) StockQuantity(campaignID int64) int32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.campaigns[campaignID].StockQuantity
}

// InTx implements Store.
func (m *Memory) InTx(_ context.Context, fn func(Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	tx := &memoryTx{
		store:        m,
		campaigns:    cloneMap(m.campaigns),
		userCoupons:  cloneMap(m.userCoupons),
		byUserCoupon: cloneMap(m.byUserCoupon),
		nextID:       m.nextID,
	}

	if err := fn(tx); err != nil {
		return err
	}

	m.campaigns = tx.campaigns
	m.userCoupons = tx.userCoupons
	m.byUserCoupon = tx.byUserCoupon
	m.nextID = tx.nextID
	return nil
}

// GetCampaign implements Store.
func (m *Memory) GetCampaign(_ context.Context, id int64) (*model.CampaignWithCoupon, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return joinCampaign(m.campaigns, m.coupons, id), nil
}

// ListAvailableCampaigns implements Store.
func (m *Memory) ListAvailableCampaigns(_ context.Context, now time.Time, limit, offset int) ([]model.CampaignWithCoupon, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	available := []model.CampaignWithCoupon{}
	for id, campaign := range m.campaigns {
		if campaign.StockQuantity > 0 && campaign.WindowContains(now) {
			if joined := joinCampaign(m.campaigns, m.coupons, id); joined != nil {
				available = append(available, *joined)
			}
		}
	}

	sort.Slice(available, func(i, j int) bool {
		if !available[i].StartDate.Equal(available[j].StartDate) {
			return available[i].StartDate.Before(available[j].StartDate)
		}
		return available[i].ID < available[j].ID
	})

	total := int64(len(available))
	return pageOf(available, limit, offset), total, nil
}

// ListUserCoupons implements Store.
func (m *Memory) ListUserCoupons(_ context.Context, userID int64, limit, offset int) ([]model.UserCoupon, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	owned := []model.UserCoupon{}
	for _, uc := range m.userCoupons {
		if uc.UserID == userID {
			owned = append(owned, uc)
		}
	}

	sort.Slice(owned, func(i, j int) bool {
		if !owned[i].CreatedAt.Equal(owned[j].CreatedAt) {
			return owned[i].CreatedAt.After(owned[j].CreatedAt)
		}
		return owned[i].ID > owned[j].ID
	})

	total := int64(len(owned))
	return pageOf(owned, limit, offset), total, nil
}

// memoryTx mutates cloned state; Memory.InTx swaps it in on commit.
type memoryTx struct {
	store        *Memory
	campaigns    map[int64]model.FcfsCampaign
	userCoupons  map[int64]model.UserCoupon
	byUserCoupon map[userCouponKey]int64
	nextID       int64
}

func (t *memoryTx) GetCampaignForUpdate(_ context.Context, id int64) (*model.CampaignWithCoupon, error) {
	return joinCampaign(t.campaigns, t.store.coupons, id), nil
}

func (t *memoryTx) DecrementStock(_ context.Context, campaignID int64) (bool, error) {
	campaign, ok := t.campaigns[campaignID]
	if !ok || campaign.StockQuantity <= 0 {
		return false, nil
	}

	campaign.StockQuantity--
	campaign.UpdatedAt = time.Now()
	t.campaigns[campaignID] = campaign
	return true, nil
}

func (t *memoryTx) UserCouponExists(_ context.Context, userID, couponID int64) (bool, error) {
	_, ok := t.byUserCoupon[userCouponKey{userID: userID, couponID: couponID}]
	return ok, nil
}

func (t *memoryTx) InsertUserCoupon(_ context.Context, uc *model.UserCoupon) error {
	key := userCouponKey{userID: uc.UserID, couponID: uc.CouponID}
	if _, ok := t.byUserCoupon[key]; ok {
		return ErrUniqueViolation
	}

	t.nextID++
	uc.ID = t.nextID
	uc.CreatedAt = time.Now()
	t.userCoupons[uc.ID] = *uc
	t.byUserCoupon[key] = uc.ID
	return nil
}

func joinCampaign(campaigns map[int64]model.FcfsCampaign, coupons map[int64]model.Coupon, id int64) *model.CampaignWithCoupon {
	campaign, ok := campaigns[id]
	if !ok {
		return nil
	}
	return &model.CampaignWithCoupon{
		FcfsCampaign: campaign,
		Coupon:       coupons[campaign.CouponID],
	}
}

func cloneMap[K comparable, V any](src map[K]V) map[K]V {
	dst := make(map[K]V, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

func pageOf[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return []T{}
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}
