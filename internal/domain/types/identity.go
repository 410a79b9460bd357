package types

// IdentityKey is the long-lived per-account key pair: an X25519 pair for
// Diffie-Hellman and an Ed25519 pair for signing signed pre-keys. Created
// once at registration (KeyManager.Initialize) and destroyed only on
// KeyManager.WipeAll.
type IdentityKey struct {
	XPub   X25519Public   `json:"x_pub"`
	XPriv  X25519Private  `json:"x_priv"`
	EdPub  Ed25519Public  `json:"ed_pub"`
	EdPriv Ed25519Private `json:"ed_priv"`
}
