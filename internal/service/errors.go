package service

import "errors"

// Issuance outcome taxonomy. The first four are legitimate business
// outcomes detected inside the transaction; ErrLockContention is raised
// before any transaction opens; ErrStorageUnavailable wraps backend
// faults and is never retried by the engine itself.
var (
	ErrCampaignNotFound   = errors.New("campaign not found")
	ErrOutOfStock         = errors.New("coupon stock is empty")
	ErrWindowClosed       = errors.New("coupon is not available at this time")
	ErrAlreadyIssued      = errors.New("coupon already issued to this user")
	ErrLockContention     = errors.New("failed to acquire campaign lock")
	ErrStorageUnavailable = errors.New("storage unavailable")
)
