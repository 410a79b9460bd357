package doubleratchet

import (
	"errors"

	"ciphera/internal/domain"
	"ciphera/internal/domain/types"
	"ciphera/internal/primitives"
)

// Limits bounds the two attacker-controllable quantities in Decrypt.
type Limits struct {
	// MaxSkip caps how many chain steps a single Decrypt call may advance
	// CKr by, before the call fails TooManySkipped.
	MaxSkip int
	// MaxCachedKeys caps |SKIPPED|; oldest entries are evicted FIFO.
	MaxCachedKeys int
}

// DefaultLimits returns conservative MaxSkip/MaxCachedKeys defaults.
func DefaultLimits() Limits {
	return Limits{MaxSkip: 1000, MaxCachedKeys: 2000}
}

// errNotReady signals use of a chain that is not initialized: an Encrypt
// before CKs exists, or a Decrypt whose header names the current DHr while
// CKr is still absent. SessionManager always establishes CKs (via
// InitSender, or the first DH ratchet step on the receiving side) before
// it calls Encrypt, so only the Decrypt case can reach its callers.
var errNotReady = errors.New("doubleratchet: chain not initialized")

var (
	whisperRatchetInfo    = []byte("WhisperRatchet")
	whisperMessageKeyInfo = []byte("WhisperMessageKeys")
)

// InitSender builds the sending side's ratchet state immediately after an
// X3DH handshake.
func InitSender(master [32]byte, peerSPKPub types.X25519Public) (types.RatchetState, error) {
	dhPriv, dhPub, err := primitives.GenerateX25519()
	if err != nil {
		return types.RatchetState{}, err
	}
	dhOut, err := primitives.DH(dhPriv, peerSPKPub)
	if err != nil {
		return types.RatchetState{}, err
	}
	rk, ck, err := kdfRK(master[:], dhOut[:])
	primitives.Wipe(dhOut[:])
	if err != nil {
		return types.RatchetState{}, err
	}

	peer := peerSPKPub
	return types.RatchetState{
		DHs:     dhPriv,
		DHsPub:  dhPub,
		DHr:     &peer,
		RK:      rk,
		CKs:     &ck,
		Skipped: make(map[types.SkippedKey]types.SkippedMessageKey),
	}, nil
}

// InitReceiver builds the receiving side's ratchet state. The first DH
// ratchet step happens lazily, on the first Decrypt call whose header
// carries a new DH public key.
func InitReceiver(master [32]byte, spkPriv types.X25519Private, spkPub types.X25519Public) types.RatchetState {
	return types.RatchetState{
		DHs:     spkPriv,
		DHsPub:  spkPub,
		RK:      master,
		Skipped: make(map[types.SkippedKey]types.SkippedMessageKey),
	}
}

// Encrypt advances the sending chain by one step and seals plaintext.
func Encrypt(state *types.RatchetState, plaintext, aad []byte) (types.RatchetHeader, []byte, error) {
	if state.CKs == nil {
		return types.RatchetHeader{}, nil, errNotReady
	}

	mk, nextCK := kdfCK(*state.CKs)
	primitives.Wipe((*state.CKs)[:])
	*state.CKs = nextCK

	header := types.RatchetHeader{DHPub: state.DHsPub, PN: state.PN, N: state.Ns}

	encKey, authKey, iv, err := deriveMessageKeys(mk[:])
	primitives.Wipe(mk[:])
	if err != nil {
		return types.RatchetHeader{}, nil, err
	}
	primitives.Wipe(authKey) // vestigial under an AEAD construction.

	ad := append(append([]byte{}, aad...), header.Encode()...)
	ct, err := primitives.SealWithNonce(encKey, iv, ad, plaintext)
	primitives.Wipe(encKey)
	if err != nil {
		return types.RatchetHeader{}, nil, err
	}

	state.Ns++
	return header, ct, nil
}

// Decrypt reverses Encrypt, transparently handling out-of-order delivery
// and DH ratchet steps. On any failure the state pointed to by state is
// left byte-for-byte as it was on entry.
func Decrypt(state *types.RatchetState, limits Limits, header types.RatchetHeader, ciphertext, aad []byte) ([]byte, error) {
	ad := append(append([]byte{}, aad...), header.Encode()...)

	// 1. Skipped-key lookup: does not touch state beyond the one entry.
	skKey := types.SkippedKey{DH: header.DHPub, N: header.N}
	if mk, ok := state.Skipped[skKey]; ok {
		pt, err := openWithMessageKey(mk.Key[:], ad, ciphertext)
		if err == nil {
			delete(state.Skipped, skKey)
		}
		if err != nil {
			return nil, domain.ErrAuthFailed
		}
		return pt, nil
	}

	// Work on a private copy so any failure below leaves *state untouched.
	work := cloneState(state)

	if work.DHr == nil || *work.DHr != header.DHPub {
		if work.CKr != nil {
			if err := skipMessageKeys(&work, limits, header.PN); err != nil {
				return nil, err
			}
		}
		if err := dhRatchetStep(&work, header.DHPub); err != nil {
			return nil, err
		}
	}

	if header.N > work.Nr {
		if err := skipMessageKeys(&work, limits, header.N); err != nil {
			return nil, err
		}
	}

	if work.CKr == nil {
		return nil, errNotReady
	}
	mk, nextCKr := kdfCK(*work.CKr)
	pt, err := openWithMessageKey(mk[:], ad, ciphertext)
	primitives.Wipe(mk[:])
	if err != nil {
		return nil, domain.ErrAuthFailed
	}

	work.CKr = &nextCKr
	work.Nr++

	*state = work
	return pt, nil
}

// skipMessageKeys advances CKr up to (but not including) upTo, caching each
// intermediate message key so a later out-of-order arrival can still
// decrypt.
func skipMessageKeys(state *types.RatchetState, limits Limits, upTo uint32) error {
	if state.CKr == nil {
		return nil
	}
	if int(upTo)-int(state.Nr) > limits.MaxSkip {
		return domain.ErrTooManySkipped
	}
	for state.Nr < upTo {
		mk, nextCKr := kdfCK(*state.CKr)
		state.CKr = &nextCKr

		key := types.SkippedKey{DH: *state.DHr, N: state.Nr}
		insertSkipped(state, key, mk, limits.MaxCachedKeys)
		state.Nr++
	}
	return nil
}

func insertSkipped(state *types.RatchetState, key types.SkippedKey, mk [32]byte, maxCached int) {
	state.Skipped[key] = types.SkippedMessageKey{Key: mk, Inserted: state.NextInsertSeq}
	state.NextInsertSeq++

	for len(state.Skipped) > maxCached {
		var oldestKey types.SkippedKey
		var oldestSeq uint64
		first := true
		for k, v := range state.Skipped {
			if first || v.Inserted < oldestSeq {
				oldestKey, oldestSeq, first = k, v.Inserted, false
			}
		}
		delete(state.Skipped, oldestKey)
	}
}

// dhRatchetStep performs one DH ratchet turn in response to a new remote
// DH public key.
func dhRatchetStep(state *types.RatchetState, remoteDH types.X25519Public) error {
	dh1, err := primitives.DH(state.DHs, remoteDH)
	if err != nil {
		return err
	}
	rk1, ckr, err := kdfRK(state.RK[:], dh1[:])
	primitives.Wipe(dh1[:])
	if err != nil {
		return err
	}

	newPriv, newPub, err := primitives.GenerateX25519()
	if err != nil {
		return err
	}
	dh2, err := primitives.DH(newPriv, remoteDH)
	if err != nil {
		return err
	}
	rk2, cks, err := kdfRK(rk1[:], dh2[:])
	primitives.Wipe(dh2[:])
	if err != nil {
		return err
	}

	state.PN = state.Ns
	state.Ns, state.Nr = 0, 0
	state.RK = rk2
	state.CKr = &ckr
	state.CKs = &cks
	state.DHs = newPriv
	state.DHsPub = newPub
	remote := remoteDH
	state.DHr = &remote
	return nil
}

func cloneState(state *types.RatchetState) types.RatchetState {
	work := *state
	work.Skipped = make(map[types.SkippedKey]types.SkippedMessageKey, len(state.Skipped))
	for k, v := range state.Skipped {
		work.Skipped[k] = v
	}
	if state.DHr != nil {
		dhr := *state.DHr
		work.DHr = &dhr
	}
	if state.CKs != nil {
		cks := *state.CKs
		work.CKs = &cks
	}
	if state.CKr != nil {
		ckr := *state.CKr
		work.CKr = &ckr
	}
	return work
}

// kdfRK is KDF_RK: HKDF(ikm=dh_out, salt=rk, info=..., len=64).
func kdfRK(rk, dhOut []byte) (newRK [32]byte, ck [32]byte, err error) {
	out, err := primitives.HKDF(dhOut, rk, whisperRatchetInfo, 64)
	if err != nil {
		return newRK, ck, err
	}
	copy(newRK[:], out[:32])
	copy(ck[:], out[32:64])
	return newRK, ck, nil
}

// kdfCK is KDF_CK: mk = HMAC(ck, 0x01), ck' = HMAC(ck, 0x02).
func kdfCK(ck [32]byte) (mk [32]byte, nextCK [32]byte) {
	copy(mk[:], primitives.HMACSHA256(ck[:], []byte{0x01}))
	copy(nextCK[:], primitives.HMACSHA256(ck[:], []byte{0x02}))
	return mk, nextCK
}

// deriveMessageKeys is derive_message_keys: HKDF(ikm=mk, salt=zero32,
// info=..., len=80) split into enc(32), auth(32), iv(16) truncated to the
// AEAD's 12-byte nonce. The auth key is
// vestigial now that AEAD provides integrity directly; it traces back to
// this construction's MAC-then-encrypt ancestry.
func deriveMessageKeys(mk []byte) (enc, auth, iv []byte, err error) {
	zeroSalt := make([]byte, 32)
	out, err := primitives.HKDF(mk, zeroSalt, whisperMessageKeyInfo, 80)
	if err != nil {
		return nil, nil, nil, err
	}
	return out[:32], out[32:64], out[64 : 64+primitives.AEADNonceSize], nil
}

func openWithMessageKey(mk, ad, ciphertext []byte) ([]byte, error) {
	encKey, authKey, iv, err := deriveMessageKeys(mk)
	if err != nil {
		return nil, err
	}
	primitives.Wipe(authKey)
	defer primitives.Wipe(encKey)
	return primitives.OpenWithNonce(encKey, iv, ad, ciphertext)
}
