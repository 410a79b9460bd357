package keymanager

import "time"

// Config holds the tunables for key material management.
type Config struct {
	// SignedPreKeyRotation is the maximum age of the current SPK before
	// RotateSignedPreKeyIfNeeded generates a replacement.
	SignedPreKeyRotation time.Duration
	// OneTimePreKeyBatchSize is how many OPKs Initialize and a refill
	// generate at a time.
	OneTimePreKeyBatchSize int
	// OneTimePreKeyRefillThreshold is the server-visible OPK count below
	// which NeedsOPKRefill reports true.
	OneTimePreKeyRefillThreshold int
}

// DefaultConfig returns the recommended defaults.
func DefaultConfig() Config {
	return Config{
		SignedPreKeyRotation:         30 * 24 * time.Hour,
		OneTimePreKeyBatchSize:       100,
		OneTimePreKeyRefillThreshold: 20,
	}
}
