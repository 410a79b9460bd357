package primitives

import (
	"crypto/rand"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

// AEADKeySize and AEADNonceSize are the ChaCha20-Poly1305 parameters this
// package uses for every sealed value, from message ciphertexts to
// at-rest store entries.
const (
	AEADKeySize   = chacha20poly1305.KeySize
	AEADNonceSize = chacha20poly1305.NonceSize
)

// Seal encrypts plaintext under key (exactly AEADKeySize bytes), using a
// random nonce, and returns nonce||ciphertext with the given associated
// data authenticated but not encrypted.
func Seal(key, ad, plaintext []byte) (nonceAndCiphertext []byte, err error) {
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, fmt.Errorf("primitives: aead init: %w", err)
	}
	nonce := make([]byte, AEADNonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("primitives: aead nonce: %w", err)
	}
	ct := aead.Seal(nil, nonce, plaintext, ad)
	return append(nonce, ct...), nil
}

// Open reverses Seal.
func Open(key, ad, nonceAndCiphertext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, fmt.Errorf("primitives: aead init: %w", err)
	}
	if len(nonceAndCiphertext) < AEADNonceSize {
		return nil, fmt.Errorf("primitives: ciphertext shorter than nonce")
	}
	nonce, ct := nonceAndCiphertext[:AEADNonceSize], nonceAndCiphertext[AEADNonceSize:]
	return aead.Open(nil, nonce, ct, ad)
}

// SealWithNonce encrypts plaintext under key using the given 12-byte nonce
// verbatim, returning ciphertext||tag. Used where the nonce is derived
// alongside the key (e.g. the Double Ratchet's per-message IV) rather than
// chosen at random.
func SealWithNonce(key, nonce, ad, plaintext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, fmt.Errorf("primitives: aead init: %w", err)
	}
	if len(nonce) != AEADNonceSize {
		return nil, fmt.Errorf("primitives: nonce must be %d bytes, got %d", AEADNonceSize, len(nonce))
	}
	return aead.Seal(nil, nonce, plaintext, ad), nil
}

// OpenWithNonce reverses SealWithNonce.
func OpenWithNonce(key, nonce, ad, ciphertext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, fmt.Errorf("primitives: aead init: %w", err)
	}
	if len(nonce) != AEADNonceSize {
		return nil, fmt.Errorf("primitives: nonce must be %d bytes, got %d", AEADNonceSize, len(nonce))
	}
	return aead.Open(nil, nonce, ciphertext, ad)
}
