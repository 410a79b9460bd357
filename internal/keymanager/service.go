package keymanager

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"ciphera/internal/domain"
	"ciphera/internal/domain/interfaces"
	"ciphera/internal/domain/types"
	"ciphera/internal/primitives"
)

// InitializeResult is what Initialize returns.
type InitializeResult struct {
	NewDevice bool
	Bundle    types.PreKeyBundle
}

// RotationResult is what RotateSignedPreKeyIfNeeded returns.
type RotationResult struct {
	Rotated   bool
	NewBundle *types.PreKeyBundle
}

// Service is KeyManager: identity key, signed pre-key rotation, and the
// one-time pre-key pool. The identity private key is read-only after
// Initialize; the OPK pool is guarded by poolMu to serialize consume and
// append against each other.
type Service struct {
	store  interfaces.SecureStore
	cfg    Config
	poolMu sync.Mutex
}

// New builds a KeyManager over the given secure store.
func New(store interfaces.SecureStore, cfg Config) *Service {
	return &Service{store: store, cfg: cfg}
}

// Initialize is idempotent: if no identity exists yet it creates one along
// with the first signed pre-key and one-time pre-key batch; otherwise it
// reports the existing device.
func (s *Service) Initialize(ctx context.Context, now time.Time) (InitializeResult, error) {
	_, ok, err := s.store.Get(ctx, nsIKPrivate)
	if err != nil {
		return InitializeResult{}, fmt.Errorf("keymanager: check identity: %w", domain.ErrStorageFailure)
	}
	if ok {
		return InitializeResult{NewDevice: false}, nil
	}

	identity, err := s.generateIdentity(ctx)
	if err != nil {
		return InitializeResult{}, err
	}

	spk, err := s.generateAndStoreSignedPreKey(ctx, identity, 1, now)
	if err != nil {
		return InitializeResult{}, err
	}

	opks, err := s.GenerateOneTimePreKeys(ctx, s.cfg.OneTimePreKeyBatchSize)
	if err != nil {
		return InitializeResult{}, err
	}

	bundle := types.PreKeyBundle{
		IdentityPublic:        identity.XPub,
		IdentitySigningPublic: identity.EdPub,
		SignedPreKeyID:        spk.ID,
		SignedPreKeyPublic:    spk.Pub,
		SignedPreKeySignature: spk.Signature,
	}
	if len(opks) > 0 {
		bundle.OneTimePreKeyID = opks[0].ID
		pub := opks[0].Pub
		bundle.OneTimePreKeyPublic = &pub
	}

	return InitializeResult{NewDevice: true, Bundle: bundle}, nil
}

func (s *Service) generateIdentity(ctx context.Context) (types.IdentityKey, error) {
	xPriv, xPub, err := primitives.GenerateX25519()
	if err != nil {
		return types.IdentityKey{}, fmt.Errorf("keymanager: generate identity x25519: %w", err)
	}
	edPriv, edPub, err := primitives.GenerateEd25519()
	if err != nil {
		return types.IdentityKey{}, fmt.Errorf("keymanager: generate identity ed25519: %w", err)
	}

	if err := s.store.Set(ctx, nsIKPrivate, xPriv[:]); err != nil {
		return types.IdentityKey{}, domain.ErrStorageFailure
	}
	if err := s.store.Set(ctx, nsIKPublic, xPub[:]); err != nil {
		return types.IdentityKey{}, domain.ErrStorageFailure
	}
	if err := s.store.Set(ctx, nsIKSignPrivate, edPriv[:]); err != nil {
		return types.IdentityKey{}, domain.ErrStorageFailure
	}
	if err := s.store.Set(ctx, nsIKSignPublic, edPub[:]); err != nil {
		return types.IdentityKey{}, domain.ErrStorageFailure
	}
	return types.IdentityKey{XPub: xPub, XPriv: xPriv, EdPub: edPub, EdPriv: edPriv}, nil
}

// Identity loads the device's long-lived identity key pair.
func (s *Service) Identity(ctx context.Context) (types.IdentityKey, error) {
	xPriv, ok, err := s.store.Get(ctx, nsIKPrivate)
	if err != nil || !ok {
		return types.IdentityKey{}, notFoundOrStorage(err, ok)
	}
	xPub, ok, err := s.store.Get(ctx, nsIKPublic)
	if err != nil || !ok {
		return types.IdentityKey{}, notFoundOrStorage(err, ok)
	}
	edPriv, ok, err := s.store.Get(ctx, nsIKSignPrivate)
	if err != nil || !ok {
		return types.IdentityKey{}, notFoundOrStorage(err, ok)
	}
	edPub, ok, err := s.store.Get(ctx, nsIKSignPublic)
	if err != nil || !ok {
		return types.IdentityKey{}, notFoundOrStorage(err, ok)
	}
	return types.IdentityKey{
		XPriv:  types.MustX25519Private(xPriv),
		XPub:   types.MustX25519Public(xPub),
		EdPriv: types.MustEd25519Private(edPriv),
		EdPub:  types.MustEd25519Public(edPub),
	}, nil
}

// CurrentSignedPreKey returns the active SPK.
func (s *Service) CurrentSignedPreKey(ctx context.Context) (types.SignedPreKey, error) {
	idBytes, ok, err := s.store.Get(ctx, nsSPKCurrentID)
	if err != nil || !ok {
		return types.SignedPreKey{}, notFoundOrStorage(err, ok)
	}
	return s.SignedPreKey(ctx, types.SignedPreKeyID(binary.BigEndian.Uint32(idBytes)))
}

// SignedPreKey retrieves a historical SPK still retained under id.
func (s *Service) SignedPreKey(ctx context.Context, id types.SignedPreKeyID) (types.SignedPreKey, error) {
	raw, ok, err := s.store.Get(ctx, nsSPK(uint32(id)))
	if err != nil || !ok {
		return types.SignedPreKey{}, notFoundOrStorage(err, ok)
	}
	var spk types.SignedPreKey
	if err := json.Unmarshal(raw, &spk); err != nil {
		return types.SignedPreKey{}, fmt.Errorf("keymanager: decode signed pre-key %d: %w", id, err)
	}
	return spk, nil
}

func (s *Service) generateAndStoreSignedPreKey(ctx context.Context, identity types.IdentityKey, id types.SignedPreKeyID, now time.Time) (types.SignedPreKey, error) {
	priv, pub, err := primitives.GenerateX25519()
	if err != nil {
		return types.SignedPreKey{}, fmt.Errorf("keymanager: generate signed pre-key: %w", err)
	}
	sig := primitives.Sign(identity.EdPriv, pub.Slice())

	spk := types.SignedPreKey{ID: id, Pub: pub, Priv: priv, Signature: sig, CreatedAt: now}
	raw, err := json.Marshal(spk)
	if err != nil {
		return types.SignedPreKey{}, err
	}
	if err := s.store.Set(ctx, nsSPK(uint32(id)), raw); err != nil {
		return types.SignedPreKey{}, domain.ErrStorageFailure
	}

	idBytes := make([]byte, 4)
	binary.BigEndian.PutUint32(idBytes, uint32(id))
	if err := s.store.Set(ctx, nsSPKCurrentID, idBytes); err != nil {
		return types.SignedPreKey{}, domain.ErrStorageFailure
	}
	tsBytes := make([]byte, 8)
	binary.BigEndian.PutUint64(tsBytes, uint64(now.Unix()))
	if err := s.store.Set(ctx, nsSPKRotationTS, tsBytes); err != nil {
		return types.SignedPreKey{}, domain.ErrStorageFailure
	}
	return spk, nil
}

// RotateSignedPreKeyIfNeeded rotates the SPK when it is older than
// SignedPreKeyRotation, retaining the previous SPK under its id for the
// grace period a late-arriving first message needs.
func (s *Service) RotateSignedPreKeyIfNeeded(ctx context.Context, now time.Time) (RotationResult, error) {
	tsBytes, ok, err := s.store.Get(ctx, nsSPKRotationTS)
	if err != nil {
		return RotationResult{}, domain.ErrStorageFailure
	}
	if ok {
		last := time.Unix(int64(binary.BigEndian.Uint64(tsBytes)), 0)
		if now.Sub(last) < s.cfg.SignedPreKeyRotation {
			return RotationResult{Rotated: false}, nil
		}
	}

	current, err := s.CurrentSignedPreKey(ctx)
	if err != nil {
		return RotationResult{}, err
	}
	identity, err := s.Identity(ctx)
	if err != nil {
		return RotationResult{}, err
	}

	newSPK, err := s.generateAndStoreSignedPreKey(ctx, identity, current.ID+1, now)
	if err != nil {
		return RotationResult{}, err
	}

	bundle := types.PreKeyBundle{
		IdentityPublic:        identity.XPub,
		IdentitySigningPublic: identity.EdPub,
		SignedPreKeyID:        newSPK.ID,
		SignedPreKeyPublic:    newSPK.Pub,
		SignedPreKeySignature: newSPK.Signature,
	}
	return RotationResult{Rotated: true, NewBundle: &bundle}, nil
}

// ConsumeOneTimePreKey atomically removes and returns the OPK identified by
// id. Each OPK is consumed at most once.
func (s *Service) ConsumeOneTimePreKey(ctx context.Context, id types.OneTimePreKeyID) (types.OneTimePreKey, error) {
	s.poolMu.Lock()
	defer s.poolMu.Unlock()

	raw, ok, err := s.store.Get(ctx, nsOPK(uint32(id)))
	if err != nil {
		return types.OneTimePreKey{}, domain.ErrStorageFailure
	}
	if !ok {
		return types.OneTimePreKey{}, domain.ErrNotFound
	}
	var opk types.OneTimePreKey
	if err := json.Unmarshal(raw, &opk); err != nil {
		return types.OneTimePreKey{}, fmt.Errorf("keymanager: decode one-time pre-key %d: %w", id, err)
	}
	if err := s.store.Remove(ctx, nsOPK(uint32(id))); err != nil {
		return types.OneTimePreKey{}, domain.ErrStorageFailure
	}
	return opk, nil
}

// RestoreOneTimePreKey re-inserts an OPK previously removed by
// ConsumeOneTimePreKey. SessionManager calls this to roll back a failed
// inbound X3DH, so that no OPK consumption commits on a decrypt failure
// even though the OPK was already popped to attempt it.
func (s *Service) RestoreOneTimePreKey(ctx context.Context, opk types.OneTimePreKey) error {
	s.poolMu.Lock()
	defer s.poolMu.Unlock()

	raw, err := json.Marshal(opk)
	if err != nil {
		return err
	}
	if err := s.store.Set(ctx, nsOPK(uint32(opk.ID)), raw); err != nil {
		return domain.ErrStorageFailure
	}
	return nil
}

// GenerateOneTimePreKeys appends count new OPKs, assigning dense ascending
// ids from the persistent opk/index counter.
func (s *Service) GenerateOneTimePreKeys(ctx context.Context, count int) ([]types.OneTimePreKeyPublic, error) {
	s.poolMu.Lock()
	defer s.poolMu.Unlock()

	nextID, err := s.loadOPKIndexLocked(ctx)
	if err != nil {
		return nil, err
	}

	publics := make([]types.OneTimePreKeyPublic, 0, count)
	for i := 0; i < count; i++ {
		priv, pub, err := primitives.GenerateX25519()
		if err != nil {
			return nil, fmt.Errorf("keymanager: generate one-time pre-key: %w", err)
		}
		opk := types.OneTimePreKey{ID: types.OneTimePreKeyID(nextID), Pub: pub, Priv: priv}
		raw, err := json.Marshal(opk)
		if err != nil {
			return nil, err
		}
		if err := s.store.Set(ctx, nsOPK(nextID), raw); err != nil {
			return nil, domain.ErrStorageFailure
		}
		publics = append(publics, opk.Public())
		nextID++
	}

	idxBytes := make([]byte, 4)
	binary.BigEndian.PutUint32(idxBytes, nextID)
	if err := s.store.Set(ctx, nsOPKIndex, idxBytes); err != nil {
		return nil, domain.ErrStorageFailure
	}
	return publics, nil
}

func (s *Service) loadOPKIndexLocked(ctx context.Context) (uint32, error) {
	raw, ok, err := s.store.Get(ctx, nsOPKIndex)
	if err != nil {
		return 0, domain.ErrStorageFailure
	}
	if !ok {
		return 1, nil
	}
	return binary.BigEndian.Uint32(raw), nil
}

// NeedsOPKRefill reports whether the directory-visible count has fallen
// below OneTimePreKeyRefillThreshold.
func (s *Service) NeedsOPKRefill(serverCount int) bool {
	return serverCount < s.cfg.OneTimePreKeyRefillThreshold
}

// WipeAll erases every persisted key.
func (s *Service) WipeAll(ctx context.Context) error {
	if err := s.store.Clear(ctx); err != nil {
		return domain.ErrStorageFailure
	}
	return nil
}

func notFoundOrStorage(err error, found bool) error {
	if err != nil {
		return domain.ErrStorageFailure
	}
	if !found {
		return domain.ErrNotFound
	}
	return nil
}
