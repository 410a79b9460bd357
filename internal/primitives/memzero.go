package primitives

import (
	"crypto/subtle"
	"runtime"
)

// Wipe zeroes b in place. Best-effort only: it prevents the obvious
// compiler elision but cannot reach copies the runtime made earlier.
//
//go:noinline
func Wipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
	runtime.KeepAlive(&b)
}

// ConstantTimeCompare reports whether a and b are equal, in constant time
// with respect to their contents (not their lengths).
func ConstantTimeCompare(a, b []byte) bool {
	return len(a) == len(b) && subtle.ConstantTimeCompare(a, b) == 1
}
