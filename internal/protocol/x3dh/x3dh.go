package x3dh

import (
	"fmt"

	"ciphera/internal/domain"
	"ciphera/internal/domain/types"
	"ciphera/internal/primitives"
)

var (
	// curveDomainSeparator is F: 32 bytes of 0xFF, prepended to the DH
	// concatenation to domain-separate this construction from other uses
	// of Curve25519.
	curveDomainSeparator = [32]byte{
		0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF,
		0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF,
		0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF,
		0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF,
	}
	masterSecretInfo = []byte("WhisperText")
)

// Result is what both x3dh_sender and x3dh_receiver converge on: the master
// secret feeding doubleratchet.InitSender/InitReceiver and the associated
// data bound into every subsequent ratchet header.
type Result struct {
	Master         [32]byte
	AssociatedData []byte
}

// Sender verifies the bundle's signed pre-key signature, generates a
// fresh ephemeral key, and derives the master secret plus the header the
// receiver needs to mirror the computation.
func Sender(myIdentity types.IdentityKey, bundle types.PreKeyBundle) (Result, types.PreKeyHeader, error) {
	if !primitives.Verify(bundle.IdentitySigningPublic, bundle.SignedPreKeyPublic.Slice(), bundle.SignedPreKeySignature) {
		return Result{}, types.PreKeyHeader{}, domain.ErrInvalidBundle
	}

	ekPriv, ekPub, err := primitives.GenerateX25519()
	if err != nil {
		return Result{}, types.PreKeyHeader{}, fmt.Errorf("x3dh: generate ephemeral key: %w", err)
	}

	dh1, err := primitives.DH(myIdentity.XPriv, bundle.SignedPreKeyPublic)
	if err != nil {
		return Result{}, types.PreKeyHeader{}, err
	}
	dh2, err := primitives.DH(ekPriv, bundle.IdentityPublic)
	if err != nil {
		return Result{}, types.PreKeyHeader{}, err
	}
	dh3, err := primitives.DH(ekPriv, bundle.SignedPreKeyPublic)
	if err != nil {
		return Result{}, types.PreKeyHeader{}, err
	}

	ikm := make([]byte, 0, 32*4)
	ikm = append(ikm, curveDomainSeparator[:]...)
	ikm = append(ikm, dh1[:]...)
	ikm = append(ikm, dh2[:]...)
	ikm = append(ikm, dh3[:]...)
	primitives.Wipe(dh1[:])
	primitives.Wipe(dh2[:])
	primitives.Wipe(dh3[:])

	header := types.PreKeyHeader{
		InitiatorIdentityPublic: myIdentity.XPub,
		EphemeralPublic:         ekPub,
		SignedPreKeyID:          bundle.SignedPreKeyID,
	}

	if bundle.HasOneTimePreKey() {
		dh4, err := primitives.DH(ekPriv, *bundle.OneTimePreKeyPublic)
		if err != nil {
			return Result{}, types.PreKeyHeader{}, err
		}
		ikm = append(ikm, dh4[:]...)
		primitives.Wipe(dh4[:])
		header.OneTimePreKeyID = bundle.OneTimePreKeyID
	}
	primitives.Wipe(ekPriv[:])

	result, err := deriveResult(ikm, myIdentity.XPub, bundle.IdentityPublic)
	primitives.Wipe(ikm)
	return result, header, err
}

// Receiver mirrors Sender's DH composition using the receiver's private
// keys. opkPriv is nil when the initial header carries no one-time
// pre-key id.
func Receiver(myIdentity types.IdentityKey, spkPriv types.X25519Private, opkPriv *types.X25519Private, header types.PreKeyHeader) (Result, error) {
	dh1, err := primitives.DH(spkPriv, header.InitiatorIdentityPublic)
	if err != nil {
		return Result{}, err
	}
	dh2, err := primitives.DH(myIdentity.XPriv, header.EphemeralPublic)
	if err != nil {
		return Result{}, err
	}
	dh3, err := primitives.DH(spkPriv, header.EphemeralPublic)
	if err != nil {
		return Result{}, err
	}

	ikm := make([]byte, 0, 32*4)
	ikm = append(ikm, curveDomainSeparator[:]...)
	ikm = append(ikm, dh1[:]...)
	ikm = append(ikm, dh2[:]...)
	ikm = append(ikm, dh3[:]...)
	primitives.Wipe(dh1[:])
	primitives.Wipe(dh2[:])
	primitives.Wipe(dh3[:])

	if header.OneTimePreKeyID != 0 {
		if opkPriv == nil {
			return Result{}, domain.ErrNotFound
		}
		dh4, err := primitives.DH(*opkPriv, header.EphemeralPublic)
		if err != nil {
			return Result{}, err
		}
		ikm = append(ikm, dh4[:]...)
		primitives.Wipe(dh4[:])
	}

	result, err := deriveResult(ikm, header.InitiatorIdentityPublic, myIdentity.XPub)
	primitives.Wipe(ikm)
	return result, err
}

func deriveResult(ikm []byte, senderIdentity, recipientIdentity types.X25519Public) (Result, error) {
	zeroSalt := make([]byte, 32)
	master, err := primitives.HKDF(ikm, zeroSalt, masterSecretInfo, 32)
	if err != nil {
		return Result{}, err
	}
	var result Result
	copy(result.Master[:], master)
	primitives.Wipe(master)

	result.AssociatedData = append(append([]byte{}, senderIdentity.Slice()...), recipientIdentity.Slice()...)
	return result, nil
}
