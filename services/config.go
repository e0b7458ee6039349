package services

import (
	"log"

	"github.com/kelseyhightower/envconfig"
)

// LoyaltyConfig holds the business constants that were hard-coded all over
// the old client: bonus sizes, scan award, retry bounds. Loaded from the
// environment with the LOYALTY_ prefix.
type LoyaltyConfig struct {
	// Points granted for a checkout QR scan.
	ScanAwardPoints int64 `envconfig:"SCAN_AWARD_POINTS" default:"50"`

	// Referral payouts: the referrer gets the big one, the new user the small.
	ReferralBonusReferrer int64 `envconfig:"REFERRAL_BONUS_REFERRER" default:"100"`
	ReferralBonusReferred int64 `envconfig:"REFERRAL_BONUS_REFERRED" default:"50"`

	// Bounded retries for compare-and-set balance updates before surfacing
	// ErrConcurrentModification.
	CASRetryLimit int `envconfig:"CAS_RETRY_LIMIT" default:"3"`

	// Outbox dispatch tuning.
	OutboxBatchSize   int `envconfig:"OUTBOX_BATCH_SIZE" default:"25"`
	OutboxMaxAttempts int `envconfig:"OUTBOX_MAX_ATTEMPTS" default:"5"`
}

// LoadLoyaltyConfig reads LOYALTY_* env vars, falling back to defaults.
func LoadLoyaltyConfig() LoyaltyConfig {
	var cfg LoyaltyConfig
	if err := envconfig.Process("loyalty", &cfg); err != nil {
		log.Fatalf("failed to load loyalty config: %v", err)
	}
	return cfg
}
