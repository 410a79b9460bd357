package types

import "time"

// SignedPreKey is a mid-lived X25519 key pair, signed by the owning
// device's identity Ed25519 key and rotated periodically
// (KeyManager.RotateSignedPreKeyIfNeeded).
type SignedPreKey struct {
	ID        SignedPreKeyID `json:"id"`
	Pub       X25519Public   `json:"pub"`
	Priv      X25519Private  `json:"priv"`
	Signature []byte         `json:"signature"`
	CreatedAt time.Time      `json:"created_at"`
}

// Public returns the publishable half of the signed pre-key.
func (s SignedPreKey) Public() SignedPreKeyPublic {
	return SignedPreKeyPublic{ID: s.ID, Pub: s.Pub, Signature: s.Signature}
}

// SignedPreKeyPublic is the public-only half of a SignedPreKey, as carried
// in a PreKeyBundle.
type SignedPreKeyPublic struct {
	ID        SignedPreKeyID `json:"id"`
	Pub       X25519Public   `json:"pub"`
	Signature []byte         `json:"signature"`
}

// OneTimePreKey is an X25519 key pair consumed at most once during an
// inbound X3DH handshake (KeyManager.ConsumeOneTimePreKey).
type OneTimePreKey struct {
	ID   OneTimePreKeyID `json:"id"`
	Pub  X25519Public    `json:"pub"`
	Priv X25519Private   `json:"priv"`
}

// Public returns the publishable half of the one-time pre-key.
func (o OneTimePreKey) Public() OneTimePreKeyPublic {
	return OneTimePreKeyPublic{ID: o.ID, Pub: o.Pub}
}

// OneTimePreKeyPublic is the public-only half of a OneTimePreKey.
type OneTimePreKeyPublic struct {
	ID  OneTimePreKeyID `json:"id"`
	Pub X25519Public    `json:"pub"`
}

// PreKeyBundle is the public-only tuple published to the directory service
// and fetched by a sender wishing to initiate a session.
type PreKeyBundle struct {
	PeerID                PeerID               `json:"peer_id"`
	DeviceID              DeviceID             `json:"device_id"`
	IdentityPublic        X25519Public         `json:"identity_public"`
	IdentitySigningPublic Ed25519Public        `json:"identity_signing_public"`
	SignedPreKeyID        SignedPreKeyID       `json:"signed_pre_key_id"`
	SignedPreKeyPublic    X25519Public         `json:"signed_pre_key_public"`
	SignedPreKeySignature []byte               `json:"signed_pre_key_signature"`
	OneTimePreKeyID       OneTimePreKeyID      `json:"one_time_pre_key_id,omitempty"`
	OneTimePreKeyPublic   *X25519Public        `json:"one_time_pre_key_public,omitempty"`
}

// HasOneTimePreKey reports whether the bundle carries a one-time pre-key.
func (b PreKeyBundle) HasOneTimePreKey() bool {
	return b.OneTimePreKeyID != 0 && b.OneTimePreKeyPublic != nil
}
