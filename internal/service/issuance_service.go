package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/kkkkikiki/fcfs-coupon/internal/lock"
	"github.com/kkkkikiki/fcfs-coupon/internal/metrics"
	"github.com/kkkkikiki/fcfs-coupon/internal/model"
	"github.com/kkkkikiki/fcfs-coupon/internal/repository"
)

// IssuanceService is the contention engine: it hands out a strictly
// limited stock of coupons first-come-first-served, at most one per
// (user, coupon definition) pair, only inside the campaign's window.
//
// Every attempt is serialized per campaign by a distributed lock, and
// all validation and mutation happen inside one transaction, so both
// layers independently prevent overselling.
type IssuanceService struct {
	store   repository.Store
	locks   *lock.Locker
	lockTTL time.Duration
	logger  zerolog.Logger

	// now is injected for window-enforcement tests.
	now func() time.Time
}

// NewIssuanceService wires the issuance engine.
func NewIssuanceService(store repository.Store, locks *lock.Locker, lockTTL time.Duration, logger zerolog.Logger) *IssuanceService {
	return &IssuanceService{
		store:   store,
		locks:   locks,
		lockTTL: lockTTL,
		logger:  logger,
		now:     time.Now,
	}
}

func campaignLockKey(campaignID int64) string {
	return fmt.Sprintf("fcfs-coupon:%d", campaignID)
}

// Issue attempts to grant the campaign's coupon to the user.
//
// Order of operations: acquire the campaign lock (fail fast on
// contention), then inside a single transaction load the campaign with
// a row lock, check stock, check the issuance window, check the
// duplicate ledger, decrement stock conditionally, and insert the
// issuance record. Any failure rolls the whole transaction back; the
// lock is released on every exit path.
func (s *IssuanceService) Issue(ctx context.Context, userID, campaignID int64) (*model.UserCoupon, error) {
	start := time.Now()
	result := "error"
	defer func() {
		metrics.RecordIssueDuration(result, time.Since(start).Seconds())
	}()

	handle, err := s.locks.Acquire(ctx, campaignLockKey(campaignID), s.lockTTL)
	if err != nil {
		if errors.Is(err, lock.ErrNotAcquired) {
			result = "lock_contention"
			metrics.LockContention.Inc()
			return nil, ErrLockContention
		}
		result = "lock_error"
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	defer func() {
		// Unconditional. A failed release is only logged: the TTL
		// bounds how long the lock can leak.
		if relErr := s.locks.Release(ctx, handle); relErr != nil {
			s.logger.Error().Err(relErr).
				Int64("campaign_id", campaignID).
				Msg("failed to release campaign lock")
		}
	}()

	var issued *model.UserCoupon
	err = s.store.InTx(ctx, func(tx repository.Tx) error {
		campaign, err := tx.GetCampaignForUpdate(ctx, campaignID)
		if err != nil {
			return err
		}
		if campaign == nil {
			return ErrCampaignNotFound
		}

		if campaign.StockQuantity <= 0 {
			return ErrOutOfStock
		}

		now := s.now()
		if !campaign.WindowContains(now) {
			return ErrWindowClosed
		}

		exists, err := tx.UserCouponExists(ctx, userID, campaign.CouponID)
		if err != nil {
			return err
		}
		if exists {
			return ErrAlreadyIssued
		}

		decremented, err := tx.DecrementStock(ctx, campaignID)
		if err != nil {
			return err
		}
		if !decremented {
			// Lost the race despite the lock; the conditional update is
			// the second, independent guard against overselling.
			return ErrOutOfStock
		}

		issued = &model.UserCoupon{
			UserID:     userID,
			CouponID:   campaign.CouponID,
			Status:     model.CouponStatusAvailable,
			ExpiryDate: now.AddDate(0, 0, campaign.Coupon.ValidDays),
		}
		if err := tx.InsertUserCoupon(ctx, issued); err != nil {
			if errors.Is(err, repository.ErrUniqueViolation) {
				return ErrAlreadyIssued
			}
			return err
		}

		return nil
	})
	if err != nil {
		result = issueResult(err)
		if !isIssuanceOutcome(err) {
			return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
		}
		return nil, err
	}

	result = "success"
	s.logger.Info().
		Int64("user_id", userID).
		Int64("campaign_id", campaignID).
		Int64("user_coupon_id", issued.ID).
		Time("expiry_date", issued.ExpiryDate).
		Msg("coupon issued")

	return issued, nil
}

// isIssuanceOutcome reports whether err is a business outcome rather
// than a backend fault.
func isIssuanceOutcome(err error) bool {
	return errors.Is(err, ErrCampaignNotFound) ||
		errors.Is(err, ErrOutOfStock) ||
		errors.Is(err, ErrWindowClosed) ||
		errors.Is(err, ErrAlreadyIssued)
}

func issueResult(err error) string {
	switch {
	case errors.Is(err, ErrCampaignNotFound):
		return "not_found"
	case errors.Is(err, ErrOutOfStock):
		return "out_of_stock"
	case errors.Is(err, ErrWindowClosed):
		return "window_closed"
	case errors.Is(err, ErrAlreadyIssued):
		return "already_issued"
	default:
		return "error"
	}
}
