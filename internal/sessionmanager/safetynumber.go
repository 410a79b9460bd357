package sessionmanager

import (
	"bytes"
	"crypto/sha256"
	"strings"

	"ciphera/internal/domain/types"
	"ciphera/internal/primitives"
)

const safetyNumberIterations = 5200

var safetyNumberDigitsInfo = []byte("ciphera-safety-number-digits")

// SafetyNumber computes the deterministic pairwise fingerprint two devices
// can compare out of band to confirm they share the same identity keys:
// SHA-256 iterated 5200 times (Signal fingerprint v2) over the sorted
// identity key pair, appId, and iteration count, expanded to 60 decimal
// digits grouped 5x12. Symmetric in (a, b).
func SafetyNumber(a, b types.X25519Public, appID []byte) string {
	lo, hi := a, b
	if bytes.Compare(lo[:], hi[:]) > 0 {
		lo, hi = hi, lo
	}

	input := make([]byte, 0, 64+len(appID)+4)
	input = append(input, lo.Slice()...)
	input = append(input, hi.Slice()...)
	input = append(input, appID...)
	input = appendU32BE(input, safetyNumberIterations)

	digest := sha256.Sum256(input)
	for i := 1; i < safetyNumberIterations; i++ {
		digest = sha256.Sum256(digest[:])
	}

	// HKDF-SHA-256 has no 255*32-byte ceiling issue at 60 bytes; used here
	// purely to expand the 32-byte digest into 60 bytes of digit material.
	expanded, err := primitives.HKDF(digest[:], nil, safetyNumberDigitsInfo, 60)
	if err != nil {
		// HKDF only fails when out_len exceeds 255*32; 60 never does.
		panic(err)
	}

	var sb strings.Builder
	for chunk := 0; chunk < 12; chunk++ {
		block := expanded[chunk*5 : chunk*5+5]
		var v uint64
		for _, bb := range block {
			v = v<<8 | uint64(bb)
		}
		v %= 100000
		sb.WriteString(padDigits(v))
	}
	digits := sb.String()

	var groups []string
	for i := 0; i < len(digits); i += 5 {
		groups = append(groups, digits[i:i+5])
	}
	return strings.Join(groups, " ")
}

func padDigits(v uint64) string {
	s := make([]byte, 5)
	for i := 4; i >= 0; i-- {
		s[i] = byte('0' + v%10)
		v /= 10
	}
	return string(s)
}
