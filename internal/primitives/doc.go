// Package primitives exposes the minimal cryptographic building blocks used
// by the X3DH and Double Ratchet layers: X25519 key agreement, Ed25519
// signing, HKDF, a ChaCha20-Poly1305 AEAD, and best-effort memory wiping.
//
// The X25519 and Ed25519 functions operate on the fixed-size key types in
// ciphera/internal/domain/types to avoid accidental slice aliasing or
// reallocation of sensitive material; HKDF, HMAC, the AEAD and Wipe take
// byte slices. Nothing in this package is aware of
// sessions, ratchets, or the wire format; it is pure algorithm plumbing.
package primitives
