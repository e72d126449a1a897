package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kkkkikiki/fcfs-coupon/internal/model"
	"github.com/kkkkikiki/fcfs-coupon/internal/repository"
)

func newCatalogFixture(t *testing.T) (*CatalogService, *repository.Memory, time.Time) {
	t.Helper()

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	store := repository.NewMemory()
	store.PutCoupon(model.Coupon{ID: 1, DiscountType: model.DiscountTypePercentage, Amount: decimal.NewFromInt(10), ValidDays: 7})

	// Three open campaigns, one exhausted, one not started, one ended.
	for i, c := range []model.FcfsCampaign{
		{CouponID: 1, StockQuantity: 5, StartDate: now.Add(-3 * time.Hour), EndDate: now.Add(time.Hour)},
		{CouponID: 1, StockQuantity: 1, StartDate: now.Add(-2 * time.Hour), EndDate: now.Add(time.Hour)},
		{CouponID: 1, StockQuantity: 9, StartDate: now.Add(-time.Hour), EndDate: now.Add(time.Hour)},
		{CouponID: 1, StockQuantity: 0, StartDate: now.Add(-time.Hour), EndDate: now.Add(time.Hour)},
		{CouponID: 1, StockQuantity: 5, StartDate: now.Add(time.Hour), EndDate: now.Add(2 * time.Hour)},
		{CouponID: 1, StockQuantity: 5, StartDate: now.Add(-2 * time.Hour), EndDate: now.Add(-time.Hour)},
	} {
		c.ID = int64(i + 1)
		c.TotalQuantity = 10
		store.PutCampaign(c)
	}

	svc := NewCatalogService(store)
	svc.now = func() time.Time { return now }

	return svc, store, now
}

func TestCatalogService_ListAvailable(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newCatalogFixture(t)

	page, err := svc.ListAvailable(ctx, 1, 2)
	if err != nil {
		t.Fatalf("list available: %v", err)
	}

	if page.Total != 3 {
		t.Errorf("expected 3 available campaigns, got %d", page.Total)
	}
	if len(page.Items) != 2 {
		t.Fatalf("expected 2 items on page 1, got %d", len(page.Items))
	}
	// Ordered by start date: campaign 1 opened first.
	if page.Items[0].ID != 1 || page.Items[1].ID != 2 {
		t.Errorf("unexpected page order: %d, %d", page.Items[0].ID, page.Items[1].ID)
	}
	if page.Items[0].Coupon.ID != 1 {
		t.Errorf("expected joined coupon definition, got %+v", page.Items[0].Coupon)
	}

	page, err = svc.ListAvailable(ctx, 2, 2)
	if err != nil {
		t.Fatalf("list available page 2: %v", err)
	}
	if len(page.Items) != 1 || page.Items[0].ID != 3 {
		t.Errorf("expected campaign 3 alone on page 2, got %+v", page.Items)
	}

	// Out-of-range pages are empty, not errors.
	page, err = svc.ListAvailable(ctx, 5, 2)
	if err != nil {
		t.Fatalf("list available page 5: %v", err)
	}
	if len(page.Items) != 0 || page.Total != 3 {
		t.Errorf("expected empty page with total 3, got %+v", page)
	}
}

func TestCatalogService_ListAvailable_NormalizesPagination(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newCatalogFixture(t)

	page, err := svc.ListAvailable(ctx, 0, -1)
	if err != nil {
		t.Fatalf("list available: %v", err)
	}
	if page.Page != 1 || page.Limit != defaultPageLimit {
		t.Errorf("expected normalized page=1 limit=%d, got page=%d limit=%d",
			defaultPageLimit, page.Page, page.Limit)
	}

	page, err = svc.ListAvailable(ctx, 1, 10000)
	if err != nil {
		t.Fatalf("list available: %v", err)
	}
	if page.Limit != maxPageLimit {
		t.Errorf("expected limit capped at %d, got %d", maxPageLimit, page.Limit)
	}
}

func TestCatalogService_GetCampaign(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newCatalogFixture(t)

	campaign, err := svc.GetCampaign(ctx, 4)
	if err != nil {
		t.Fatalf("get campaign: %v", err)
	}
	// Exhausted campaigns are still addressable by id.
	if campaign.ID != 4 || campaign.StockQuantity != 0 {
		t.Errorf("unexpected campaign: %+v", campaign)
	}

	if _, err := svc.GetCampaign(ctx, 999); !errors.Is(err, ErrCampaignNotFound) {
		t.Fatalf("expected ErrCampaignNotFound, got: %v", err)
	}
}

func TestCatalogService_ListUserCoupons(t *testing.T) {
	ctx := context.Background()
	svc, store, now := newCatalogFixture(t)

	// Issue two coupons to user 42 directly through the store.
	err := store.InTx(ctx, func(tx repository.Tx) error {
		for _, couponID := range []int64{1, 2} {
			uc := &model.UserCoupon{
				UserID:     42,
				CouponID:   couponID,
				Status:     model.CouponStatusAvailable,
				ExpiryDate: now.AddDate(0, 0, 7),
			}
			if err := tx.InsertUserCoupon(ctx, uc); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("seed user coupons: %v", err)
	}

	page, err := svc.ListUserCoupons(ctx, 42, 1, 10)
	if err != nil {
		t.Fatalf("list user coupons: %v", err)
	}
	if page.Total != 2 || len(page.Items) != 2 {
		t.Fatalf("expected 2 coupons, got total=%d items=%d", page.Total, len(page.Items))
	}
	for _, uc := range page.Items {
		if uc.Status != model.CouponStatusAvailable {
			t.Errorf("expected AVAILABLE status, got %q", uc.Status)
		}
	}

	empty, err := svc.ListUserCoupons(ctx, 7, 1, 10)
	if err != nil {
		t.Fatalf("list user coupons for empty user: %v", err)
	}
	if empty.Total != 0 || len(empty.Items) != 0 {
		t.Errorf("expected empty result, got %+v", empty)
	}
}
