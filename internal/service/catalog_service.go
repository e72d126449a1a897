package service

import (
	"context"
	"time"

	"github.com/kkkkikiki/fcfs-coupon/internal/model"
	"github.com/kkkkikiki/fcfs-coupon/internal/repository"
)

const (
	defaultPageLimit = 20
	maxPageLimit     = 100
)

// CampaignPage is one page of available campaigns.
type CampaignPage struct {
	Items []model.CampaignWithCoupon `json:"items"`
	Total int64                      `json:"total"`
	Page  int                        `json:"page"`
	Limit int                        `json:"limit"`
}

// UserCouponPage is one page of a user's issued coupons.
type UserCouponPage struct {
	Items []model.UserCoupon `json:"items"`
	Total int64              `json:"total"`
	Page  int                `json:"page"`
	Limit int                `json:"limit"`
}

// CatalogService serves the query side: paginated campaign browsing and
// a user's coupons. No lock or transaction coordination; reads may
// trail issuance slightly, allocation is enforced at issuance time.
type CatalogService struct {
	store repository.Store

	now func() time.Time
}

// NewCatalogService wires the catalog reader.
func NewCatalogService(store repository.Store) *CatalogService {
	return &CatalogService{store: store, now: time.Now}
}

// ListAvailable returns campaigns currently open for issuance.
func (s *CatalogService) ListAvailable(ctx context.Context, page, limit int) (*CampaignPage, error) {
	page, limit = normalizePage(page, limit)

	items, total, err := s.store.ListAvailableCampaigns(ctx, s.now(), limit, (page-1)*limit)
	if err != nil {
		return nil, err
	}

	return &CampaignPage{Items: items, Total: total, Page: page, Limit: limit}, nil
}

// GetCampaign returns one campaign with its coupon definition.
func (s *CatalogService) GetCampaign(ctx context.Context, id int64) (*model.CampaignWithCoupon, error) {
	campaign, err := s.store.GetCampaign(ctx, id)
	if err != nil {
		return nil, err
	}
	if campaign == nil {
		return nil, ErrCampaignNotFound
	}
	return campaign, nil
}

// ListUserCoupons returns the user's issued coupons, newest first.
func (s *CatalogService) ListUserCoupons(ctx context.Context, userID int64, page, limit int) (*UserCouponPage, error) {
	page, limit = normalizePage(page, limit)

	items, total, err := s.store.ListUserCoupons(ctx, userID, limit, (page-1)*limit)
	if err != nil {
		return nil, err
	}

	return &UserCouponPage{Items: items, Total: total, Page: page, Limit: limit}, nil
}

func normalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defaultPageLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}
	return page, limit
}
