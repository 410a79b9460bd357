package domain

import "errors"

// Sentinel errors exposed to the host. Callers match these with errors.Is;
// wrapped context is added with fmt.Errorf("...: %w").
var (
	// ErrNoSession is returned when Encrypt is called for a peer with no
	// session and no bundle was supplied to bootstrap one.
	ErrNoSession = errors.New("no session with peer")

	// ErrInvalidBundle is returned when a fetched PreKeyBundle fails
	// signature verification.
	ErrInvalidBundle = errors.New("invalid pre-key bundle")

	// ErrInvalidKey is returned when a Diffie-Hellman operation would
	// produce a degenerate (low-order / all-zero) shared secret.
	ErrInvalidKey = errors.New("invalid key material")

	// ErrAuthFailed is returned when AEAD authentication fails on open.
	ErrAuthFailed = errors.New("message authentication failed")

	// ErrTooManySkipped is returned when a single decrypt would need to
	// advance a receive chain by more than MaxSkip messages.
	ErrTooManySkipped = errors.New("too many skipped messages")

	// ErrNotFound is returned when a referenced key (signed pre-key,
	// one-time pre-key, session) does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateMessage is returned when Decrypt is called with a
	// message id already present in the session's recent-id ring, meaning
	// the frame was already delivered and applied to the ratchet.
	ErrDuplicateMessage = errors.New("duplicate or already-consumed message")

	// ErrStorageFailure wraps failures from the secure store; the core
	// guarantees it leaves persisted state unchanged when this occurs.
	ErrStorageFailure = errors.New("storage failure")

	// ErrIdentityExists reports an attempt to create an identity a second
	// time without wiping. KeyManager.Initialize does not return it: a
	// second call reports NewDevice=false instead.
	ErrIdentityExists = errors.New("identity already initialized")
)
