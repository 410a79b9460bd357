package primitives

import (
	"crypto/hmac"
	"crypto/sha256"
)

// HMACSHA256 computes HMAC-SHA-256(key, data).
func HMACSHA256(key, data []byte) []byte {
	h := hmac.New(sha256.New, key)
	h.Write(data)
	return h.Sum(nil)
}
