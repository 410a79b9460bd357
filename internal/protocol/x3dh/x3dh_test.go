package x3dh_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ciphera/internal/domain"
	"ciphera/internal/domain/types"
	"ciphera/internal/primitives"
	"ciphera/internal/protocol/x3dh"
)

func makeIdentity(t *testing.T) types.IdentityKey {
	t.Helper()
	xPriv, xPub, err := primitives.GenerateX25519()
	require.NoError(t, err)
	edPriv, edPub, err := primitives.GenerateEd25519()
	require.NoError(t, err)
	return types.IdentityKey{XPub: xPub, XPriv: xPriv, EdPub: edPub, EdPriv: edPriv}
}

func makeBundle(t *testing.T, bob types.IdentityKey, withOPK bool) (types.PreKeyBundle, types.X25519Private, *types.X25519Private) {
	t.Helper()
	spkPriv, spkPub, err := primitives.GenerateX25519()
	require.NoError(t, err)
	sig := primitives.Sign(bob.EdPriv, spkPub.Slice())

	bundle := types.PreKeyBundle{
		PeerID:                "bob",
		IdentityPublic:        bob.XPub,
		IdentitySigningPublic: bob.EdPub,
		SignedPreKeyID:        1,
		SignedPreKeyPublic:    spkPub,
		SignedPreKeySignature: sig,
	}

	var opkPriv *types.X25519Private
	if withOPK {
		priv, pub, err := primitives.GenerateX25519()
		require.NoError(t, err)
		bundle.OneTimePreKeyID = 10
		bundle.OneTimePreKeyPublic = &pub
		opkPriv = &priv
	}
	return bundle, spkPriv, opkPriv
}

func TestSenderReceiverAgreeNoOPK(t *testing.T) {
	alice := makeIdentity(t)
	bob := makeIdentity(t)
	bundle, spkPriv, _ := makeBundle(t, bob, false)

	senderResult, header, err := x3dh.Sender(alice, bundle)
	require.NoError(t, err)

	receiverResult, err := x3dh.Receiver(bob, spkPriv, nil, header)
	require.NoError(t, err)

	assert.Equal(t, senderResult.Master, receiverResult.Master)
	assert.Equal(t, senderResult.AssociatedData, receiverResult.AssociatedData)
}

func TestSenderReceiverAgreeWithOPK(t *testing.T) {
	alice := makeIdentity(t)
	bob := makeIdentity(t)
	bundle, spkPriv, opkPriv := makeBundle(t, bob, true)

	senderResult, header, err := x3dh.Sender(alice, bundle)
	require.NoError(t, err)
	require.NotZero(t, header.OneTimePreKeyID, "expected header to carry the one-time pre-key id")

	receiverResult, err := x3dh.Receiver(bob, spkPriv, opkPriv, header)
	require.NoError(t, err)
	assert.Equal(t, senderResult.Master, receiverResult.Master, "master mismatch with OPK path")
}

func TestSenderRejectsBadSignature(t *testing.T) {
	alice := makeIdentity(t)
	bob := makeIdentity(t)
	bundle, _, _ := makeBundle(t, bob, false)
	bundle.SignedPreKeySignature[0] ^= 0xFF

	_, _, err := x3dh.Sender(alice, bundle)
	require.ErrorIs(t, err, domain.ErrInvalidBundle)
}

func TestReceiverFailsWithoutOPKWhenHeaderNeedsOne(t *testing.T) {
	alice := makeIdentity(t)
	bob := makeIdentity(t)
	bundle, spkPriv, _ := makeBundle(t, bob, true)

	_, header, err := x3dh.Sender(alice, bundle)
	require.NoError(t, err)

	_, err = x3dh.Receiver(bob, spkPriv, nil, header)
	require.ErrorIs(t, err, domain.ErrNotFound)
}
