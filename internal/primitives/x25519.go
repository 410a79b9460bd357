package primitives

import (
	"crypto/rand"
	"fmt"

	"golang.org/x/crypto/curve25519"

	"ciphera/internal/domain"
	"ciphera/internal/domain/types"
)

// GenerateX25519 generates a fresh X25519 key pair, clamping the private
// scalar per RFC 7748.
func GenerateX25519() (priv types.X25519Private, pub types.X25519Public, err error) {
	if _, err = rand.Read(priv[:]); err != nil {
		return priv, pub, fmt.Errorf("primitives: generate x25519 private key: %w", err)
	}
	ClampX25519(&priv)
	if err = derivePublic(&priv, &pub); err != nil {
		return priv, pub, err
	}
	return priv, pub, nil
}

// ClampX25519 applies RFC 7748 clamping to a scalar in place.
func ClampX25519(priv *types.X25519Private) {
	priv[0] &= 248
	priv[31] &= 127
	priv[31] |= 64
}

// DH performs a Curve25519 Diffie-Hellman between priv and pub, rejecting
// the all-zero result that a malicious or degenerate public key produces.
func DH(priv types.X25519Private, pub types.X25519Public) (shared [32]byte, err error) {
	out, err := curve25519.X25519(priv.Slice(), pub.Slice())
	if err != nil {
		return shared, fmt.Errorf("primitives: x25519 dh: %w", err)
	}
	copy(shared[:], out)
	if isAllZero(shared[:]) {
		return shared, domain.ErrInvalidKey
	}
	return shared, nil
}

func derivePublic(priv *types.X25519Private, pub *types.X25519Public) error {
	out, err := curve25519.X25519(priv.Slice(), curve25519.Basepoint)
	if err != nil {
		return fmt.Errorf("primitives: derive x25519 public key: %w", err)
	}
	copy(pub[:], out)
	return nil
}

func isAllZero(b []byte) bool {
	var v byte
	for _, c := range b {
		v |= c
	}
	return v == 0
}
