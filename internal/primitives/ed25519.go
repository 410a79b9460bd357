package primitives

import (
	"crypto/ed25519"
	"crypto/rand"

	"ciphera/internal/domain/types"
)

// GenerateEd25519 returns a fresh Ed25519 signing key pair.
func GenerateEd25519() (priv types.Ed25519Private, pub types.Ed25519Public, err error) {
	pk, sk, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return priv, pub, err
	}
	copy(priv[:], sk)
	copy(pub[:], pk)
	return priv, pub, nil
}

// Sign signs msg with priv.
func Sign(priv types.Ed25519Private, msg []byte) []byte {
	return ed25519.Sign(ed25519.PrivateKey(priv.Slice()), msg)
}

// Verify reports whether sig is a valid Ed25519 signature over msg by pub.
func Verify(pub types.Ed25519Public, msg, sig []byte) bool {
	return ed25519.Verify(ed25519.PublicKey(pub.Slice()), msg, sig)
}
