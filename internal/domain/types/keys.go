package types

import "fmt"

// X25519Public is a Curve25519 Diffie-Hellman public key.
type X25519Public [32]byte

// Slice returns the key as a []byte.
func (p X25519Public) Slice() []byte { return p[:] }

// X25519Private is a Curve25519 Diffie-Hellman private (clamped scalar) key.
type X25519Private [32]byte

// Slice returns the key as a []byte.
func (k X25519Private) Slice() []byte { return k[:] }

// MustX25519Public builds an X25519Public from exactly 32 bytes, panicking
// otherwise. Intended for trusted, length-checked call sites (store
// deserialization), never for wire input.
func MustX25519Public(b []byte) X25519Public {
	if len(b) != 32 {
		panic(fmt.Errorf("x25519 public: want 32 bytes, got %d", len(b)))
	}
	var out X25519Public
	copy(out[:], b)
	return out
}

// MustX25519Private builds an X25519Private from exactly 32 bytes, panicking
// otherwise.
func MustX25519Private(b []byte) X25519Private {
	if len(b) != 32 {
		panic(fmt.Errorf("x25519 private: want 32 bytes, got %d", len(b)))
	}
	var out X25519Private
	copy(out[:], b)
	return out
}

// Ed25519Public is an Ed25519 signature verification key.
type Ed25519Public [32]byte

// Slice returns the key as a []byte.
func (p Ed25519Public) Slice() []byte { return p[:] }

// Ed25519Private is an Ed25519 signing key (seed||public, stdlib layout).
type Ed25519Private [64]byte

// Slice returns the key as a []byte.
func (k Ed25519Private) Slice() []byte { return k[:] }

// MustEd25519Public builds an Ed25519Public from exactly 32 bytes.
func MustEd25519Public(b []byte) Ed25519Public {
	if len(b) != 32 {
		panic(fmt.Errorf("ed25519 public: want 32 bytes, got %d", len(b)))
	}
	var out Ed25519Public
	copy(out[:], b)
	return out
}

// MustEd25519Private builds an Ed25519Private from exactly 64 bytes.
func MustEd25519Private(b []byte) Ed25519Private {
	if len(b) != 64 {
		panic(fmt.Errorf("ed25519 private: want 64 bytes, got %d", len(b)))
	}
	var out Ed25519Private
	copy(out[:], b)
	return out
}
