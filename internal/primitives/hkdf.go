package primitives

import (
	"crypto/sha256"
	"io"

	"golang.org/x/crypto/hkdf"
)

// HKDF derives outLen bytes from ikm using HKDF-SHA-256 (RFC 5869) with the
// given salt and info. A nil salt is treated as a string of zeros, per the
// RFC.
func HKDF(ikm, salt, info []byte, outLen int) ([]byte, error) {
	r := hkdf.New(sha256.New, ikm, salt, info)
	out := make([]byte, outLen)
	if _, err := io.ReadFull(r, out); err != nil {
		return nil, err
	}
	return out, nil
}
