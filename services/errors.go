package services

import (
	"errors"
	"fmt"
)

// Sentinel errors for every points operation. Handlers translate these with
// errors.Is; nothing past the service boundary is a bare gorm error.
var (
	// ErrInvalidAmount is returned for nonpositive points or a negative
	// monetary amount.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrInsufficientPoints is returned when a redeem or gift exceeds the
	// current balance. No mutation occurs.
	ErrInsufficientPoints = errors.New("insufficient points")

	// ErrRewardNotFound is returned when the referenced reward is missing at
	// redemption time.
	ErrRewardNotFound = errors.New("reward not found")

	// ErrRewardUnavailable is returned when the reward exists but is not
	// currently redeemable.
	ErrRewardUnavailable = errors.New("reward unavailable")

	// ErrRecipientNotFound is returned when a gift recipient has no account.
	ErrRecipientNotFound = errors.New("recipient not found")

	// ErrCannotGiftSelf is returned when sender and recipient match.
	ErrCannotGiftSelf = errors.New("cannot gift points to yourself")

	// ErrConcurrentModification is returned when a compare-and-set update
	// kept losing to other writers. The caller should re-fetch and retry.
	ErrConcurrentModification = errors.New("concurrent modification detected")

	// ErrStoreUnavailable wraps transport-level store failures. The outcome
	// of the attempted operation is unknown; reconcile by re-reading.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrUnauthorized is returned for admin operations without the admin role.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrAccountNotFound is returned when a points account does not exist
	// and the operation cannot create one implicitly.
	ErrAccountNotFound = errors.New("points account not found")

	// ErrReferralCodeNotFound is returned when a referral code does not
	// resolve to a referrer.
	ErrReferralCodeNotFound = errors.New("referral code not found")

	// ErrAlreadyReferred is returned when a user tries to complete a second
	// referral.
	ErrAlreadyReferred = errors.New("user was already referred")
)

// InsufficientPointsError carries the shortfall for UI display.
type InsufficientPointsError struct {
	UserID    string
	Available int64
	Requested int64
}

func (e *InsufficientPointsError) Error() string {
	return fmt.Sprintf("insufficient points: have %d, need %d", e.Available, e.Requested)
}

func (e *InsufficientPointsError) Unwrap() error {
	return ErrInsufficientPoints
}

// IsClientError reports whether the error is the caller's fault (maps to a
// 4xx status) as opposed to a store problem.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrInsufficientPoints) ||
		errors.Is(err, ErrRewardNotFound) ||
		errors.Is(err, ErrRewardUnavailable) ||
		errors.Is(err, ErrRecipientNotFound) ||
		errors.Is(err, ErrCannotGiftSelf) ||
		errors.Is(err, ErrReferralCodeNotFound) ||
		errors.Is(err, ErrAlreadyReferred) ||
		errors.Is(err, ErrAccountNotFound) ||
		errors.Is(err, ErrUnauthorized)
}

// IsRetryable reports whether a retry with fresh state might succeed.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrentModification)
}
