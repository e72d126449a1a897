package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/kkkkikiki/fcfs-coupon/internal/metrics"
	"github.com/kkkkikiki/fcfs-coupon/internal/model"
	"github.com/kkkkikiki/fcfs-coupon/internal/service"
)

// issuer is the issuance engine as the HTTP layer sees it
type issuer interface {
	Issue(ctx context.Context, userID, campaignID int64) (*model.UserCoupon, error)
}

// catalog is the query side as the HTTP layer sees it
type catalog interface {
	ListAvailable(ctx context.Context, page, limit int) (*service.CampaignPage, error)
	GetCampaign(ctx context.Context, id int64) (*model.CampaignWithCoupon, error)
	ListUserCoupons(ctx context.Context, userID int64, page, limit int) (*service.UserCouponPage, error)
}

// CouponHandler handles HTTP requests for campaign browsing and issuance
type CouponHandler struct {
	issuer  issuer
	catalog catalog
}

// NewCouponHandler creates a new CouponHandler
func NewCouponHandler(issuer issuer, catalog catalog) *CouponHandler {
	return &CouponHandler{
		issuer:  issuer,
		catalog: catalog,
	}
}

// RegisterRoutes mounts the coupon endpoints on the router
func (h *CouponHandler) RegisterRoutes(r chi.Router) {
	r.Get("/v1/campaigns", h.ListCampaigns)
	r.Get("/v1/campaigns/{campaignID}", h.GetCampaign)
	r.Post("/v1/campaigns/{campaignID}/issue", h.IssueCoupon)
	r.Get("/v1/users/{userID}/coupons", h.ListUserCoupons)
}

type issueRequest struct {
	UserID int64 `json:"user_id"`
}

// IssueCoupon handles POST /v1/campaigns/{campaignID}/issue
func (h *CouponHandler) IssueCoupon(w http.ResponseWriter, r *http.Request) {
	campaignID, err := pathID(r, "campaignID")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid campaign id")
		return
	}

	var req issueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID <= 0 {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	userCoupon, err := h.issuer.Issue(r.Context(), req.UserID, campaignID)
	if err != nil {
		writeIssueError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, userCoupon)
}

// ListCampaigns handles GET /v1/campaigns
func (h *CouponHandler) ListCampaigns(w http.ResponseWriter, r *http.Request) {
	metrics.CatalogRequests.WithLabelValues("list_campaigns").Inc()

	page, limit := pagination(r)
	result, err := h.catalog.ListAvailable(r.Context(), page, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// GetCampaign handles GET /v1/campaigns/{campaignID}
func (h *CouponHandler) GetCampaign(w http.ResponseWriter, r *http.Request) {
	metrics.CatalogRequests.WithLabelValues("get_campaign").Inc()

	campaignID, err := pathID(r, "campaignID")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid campaign id")
		return
	}

	campaign, err := h.catalog.GetCampaign(r.Context(), campaignID)
	if err != nil {
		if errors.Is(err, service.ErrCampaignNotFound) {
			writeError(w, http.StatusNotFound, service.ErrCampaignNotFound.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, campaign)
}

// ListUserCoupons handles GET /v1/users/{userID}/coupons
func (h *CouponHandler) ListUserCoupons(w http.ResponseWriter, r *http.Request) {
	metrics.CatalogRequests.WithLabelValues("list_user_coupons").Inc()

	userID, err := pathID(r, "userID")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	page, limit := pagination(r)
	result, err := h.catalog.ListUserCoupons(r.Context(), userID, page, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// writeIssueError maps the issuance error taxonomy onto HTTP statuses:
// not-found 404, business rejections 400, lock contention 409, backend
// faults 503.
func writeIssueError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrCampaignNotFound):
		writeError(w, http.StatusNotFound, service.ErrCampaignNotFound.Error())
	case errors.Is(err, service.ErrOutOfStock),
		errors.Is(err, service.ErrWindowClosed),
		errors.Is(err, service.ErrAlreadyIssued):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrLockContention):
		writeError(w, http.StatusConflict, service.ErrLockContention.Error())
	case errors.Is(err, service.ErrStorageUnavailable):
		writeError(w, http.StatusServiceUnavailable, service.ErrStorageUnavailable.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.New("invalid id")
	}
	return id, nil
}

func pagination(r *http.Request) (page, limit int) {
	page, _ = strconv.Atoi(r.URL.Query().Get("page"))
	limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
	return page, limit
}
