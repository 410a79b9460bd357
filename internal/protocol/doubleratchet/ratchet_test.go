package doubleratchet_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ciphera/internal/domain"
	"ciphera/internal/domain/types"
	"ciphera/internal/primitives"
	"ciphera/internal/protocol/doubleratchet"
)

func sharedMaster(t *testing.T) [32]byte {
	t.Helper()
	var m [32]byte
	for i := range m {
		m[i] = byte(i)
	}
	return m
}

// setup returns an Alice sender state and a Bob receiver state that share
// the same master secret, as X3DH would hand them.
func setup(t *testing.T) (alice *types.RatchetState, bob *types.RatchetState) {
	t.Helper()
	master := sharedMaster(t)

	bobSPKPriv, bobSPKPub, err := primitives.GenerateX25519()
	require.NoError(t, err)

	a, err := doubleratchet.InitSender(master, bobSPKPub)
	require.NoError(t, err)
	b := doubleratchet.InitReceiver(master, bobSPKPriv, bobSPKPub)
	return &a, &b
}

func TestRoundTrip(t *testing.T) {
	alice, bob := setup(t)

	header, ct, err := doubleratchet.Encrypt(alice, []byte("Hello Bob!"), nil)
	require.NoError(t, err)
	pt, err := doubleratchet.Decrypt(bob, doubleratchet.DefaultLimits(), header, ct, nil)
	require.NoError(t, err)
	assert.Equal(t, "Hello Bob!", string(pt))
}

func TestOutOfOrderDelivery(t *testing.T) {
	alice, bob := setup(t)

	var headers []types.RatchetHeader
	var cts [][]byte
	for _, msg := range []string{"m1", "m2", "m3"} {
		h, ct, err := doubleratchet.Encrypt(alice, []byte(msg), nil)
		require.NoErrorf(t, err, "Encrypt(%q)", msg)
		headers = append(headers, h)
		cts = append(cts, ct)
	}

	order := []int{2, 0, 1}
	want := []string{"m3", "m1", "m2"}
	limits := doubleratchet.DefaultLimits()
	for i, idx := range order {
		pt, err := doubleratchet.Decrypt(bob, limits, headers[idx], cts[idx], nil)
		require.NoErrorf(t, err, "Decrypt(index %d)", idx)
		assert.Equalf(t, want[i], string(pt), "Decrypt(index %d)", idx)
	}
	assert.Empty(t, bob.Skipped, "expected skipped cache drained")
}

func TestTooManySkipped(t *testing.T) {
	alice, bob := setup(t)

	limits := doubleratchet.Limits{MaxSkip: 5, MaxCachedKeys: 100}
	var last types.RatchetHeader
	var lastCT []byte
	for i := 0; i < 10; i++ {
		h, ct, err := doubleratchet.Encrypt(alice, []byte("x"), nil)
		require.NoError(t, err)
		last, lastCT = h, ct
	}

	before := *bob
	_, err := doubleratchet.Decrypt(bob, limits, last, lastCT, nil)
	require.ErrorIs(t, err, domain.ErrTooManySkipped)
	assert.Equal(t, before.Nr, bob.Nr, "state mutated on TooManySkipped failure")
	assert.Equal(t, before.Ns, bob.Ns, "state mutated on TooManySkipped failure")
}

func TestTamperedCiphertextFailsAndPreservesState(t *testing.T) {
	alice, bob := setup(t)

	header, ct, err := doubleratchet.Encrypt(alice, []byte("hello"), nil)
	require.NoError(t, err)
	tampered := append([]byte{}, ct...)
	tampered[len(tampered)-1] ^= 0xFF

	beforeNr, beforeNs := bob.Nr, bob.Ns
	_, err = doubleratchet.Decrypt(bob, doubleratchet.DefaultLimits(), header, tampered, nil)
	require.ErrorIs(t, err, domain.ErrAuthFailed)
	assert.Equal(t, beforeNr, bob.Nr, "state mutated on tamper failure")
	assert.Equal(t, beforeNs, bob.Ns, "state mutated on tamper failure")

	// A subsequent valid message still decrypts.
	pt, err := doubleratchet.Decrypt(bob, doubleratchet.DefaultLimits(), header, ct, nil)
	require.NoError(t, err, "Decrypt valid message after tamper attempt")
	assert.Equal(t, "hello", string(pt))
}

func TestSenderRatchetsAfterReceivingNewDH(t *testing.T) {
	alice, bob := setup(t)

	h1, ct1, err := doubleratchet.Encrypt(alice, []byte("a1"), nil)
	require.NoError(t, err)
	_, err = doubleratchet.Decrypt(bob, doubleratchet.DefaultLimits(), h1, ct1, nil)
	require.NoError(t, err)

	h2, ct2, err := doubleratchet.Encrypt(bob, []byte("b1"), nil)
	require.NoError(t, err, "Bob Encrypt")

	priorDHsPub := alice.DHsPub
	_, err = doubleratchet.Decrypt(alice, doubleratchet.DefaultLimits(), h2, ct2, nil)
	require.NoError(t, err, "Alice Decrypt")
	assert.NotEqual(t, priorDHsPub, alice.DHsPub, "alice did not generate a fresh DH key pair after a new remote header")
}
