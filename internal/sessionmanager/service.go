package sessionmanager

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"ciphera/internal/domain"
	"ciphera/internal/domain/interfaces"
	"ciphera/internal/domain/types"
	"ciphera/internal/primitives"
	"ciphera/internal/protocol/doubleratchet"
	"ciphera/internal/protocol/x3dh"
)

// KeyManager is the subset of keymanager.Service that SessionManager
// depends on, expressed as an interface rather than a concrete type so
// tests can substitute a fake.
type KeyManager interface {
	Identity(ctx context.Context) (types.IdentityKey, error)
	SignedPreKey(ctx context.Context, id types.SignedPreKeyID) (types.SignedPreKey, error)
	ConsumeOneTimePreKey(ctx context.Context, id types.OneTimePreKeyID) (types.OneTimePreKey, error)
	RestoreOneTimePreKey(ctx context.Context, opk types.OneTimePreKey) error
}

// Service is SessionManager (L5).
type Service struct {
	store  interfaces.SecureStore
	keys   KeyManager
	limits doubleratchet.Limits
	appID  []byte

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

// New builds a SessionManager over the given store and KeyManager.
func New(store interfaces.SecureStore, keys KeyManager, limits doubleratchet.Limits, appID []byte) *Service {
	return &Service{
		store:  store,
		keys:   keys,
		limits: limits,
		appID:  appID,
		locks:  make(map[string]*sync.Mutex),
	}
}

func sessionKey(peer types.PeerID, device types.DeviceID) string {
	return fmt.Sprintf("session/%s/%s", peer, device)
}

func sessionIndexKey(peer types.PeerID) string {
	return fmt.Sprintf("session_index/%s", peer)
}

func peerIdentityKey(peer types.PeerID, device types.DeviceID) string {
	return fmt.Sprintf("peer_identity/%s/%s", peer, device)
}

// lockFor returns the exclusive lock for a (peer, device) pair, held for
// the entire duration of one Encrypt or Decrypt call so concurrent calls
// against the same session can't race on its persisted state.
func (s *Service) lockFor(peer types.PeerID, device types.DeviceID) *sync.Mutex {
	key := sessionKey(peer, device)
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	lock, ok := s.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[key] = lock
	}
	return lock
}

// HasSession reports whether a persisted RatchetState exists for peer.
func (s *Service) HasSession(ctx context.Context, peer types.PeerID, device types.DeviceID) (bool, error) {
	_, ok, err := s.store.Get(ctx, sessionKey(peer, device))
	if err != nil {
		return false, domain.ErrStorageFailure
	}
	return ok, nil
}

func (s *Service) loadSession(ctx context.Context, peer types.PeerID, device types.DeviceID) (types.Session, bool, error) {
	raw, ok, err := s.store.Get(ctx, sessionKey(peer, device))
	if err != nil {
		return types.Session{}, false, domain.ErrStorageFailure
	}
	if !ok {
		return types.Session{}, false, nil
	}
	var sess types.Session
	if err := json.Unmarshal(raw, &sess); err != nil {
		return types.Session{}, false, fmt.Errorf("sessionmanager: decode session %s/%s: %w", peer, device, err)
	}
	return sess, true, nil
}

func (s *Service) saveSession(ctx context.Context, sess types.Session) error {
	raw, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	if err := s.store.Set(ctx, sessionKey(sess.PeerID, sess.DeviceID), raw); err != nil {
		return domain.ErrStorageFailure
	}
	return s.addToSessionIndex(ctx, sess.PeerID, sess.DeviceID)
}

// addToSessionIndex tracks which devices have a session or a pinned
// identity under a peer, since
// the flat SecureStore has no prefix-enumeration capability and
// DeleteAllSessions needs to discover them.
func (s *Service) addToSessionIndex(ctx context.Context, peer types.PeerID, device types.DeviceID) error {
	devices, err := s.loadSessionIndex(ctx, peer)
	if err != nil {
		return err
	}
	for _, d := range devices {
		if d == device {
			return nil
		}
	}
	devices = append(devices, device)
	raw, err := json.Marshal(devices)
	if err != nil {
		return err
	}
	if err := s.store.Set(ctx, sessionIndexKey(peer), raw); err != nil {
		return domain.ErrStorageFailure
	}
	return nil
}

func (s *Service) loadSessionIndex(ctx context.Context, peer types.PeerID) ([]types.DeviceID, error) {
	raw, ok, err := s.store.Get(ctx, sessionIndexKey(peer))
	if err != nil {
		return nil, domain.ErrStorageFailure
	}
	if !ok {
		return nil, nil
	}
	var devices []types.DeviceID
	if err := json.Unmarshal(raw, &devices); err != nil {
		return nil, err
	}
	return devices, nil
}

// Encrypt seals plaintext for (peer, device), running X3DH first if no
// session exists yet. bundle must be supplied on the first call to a
// peer; it is ignored once a session exists. The returned messageID is a
// client-generated idempotency id the caller hands to the transport
// alongside the wire bytes, so a redelivered frame can be recognized as a
// duplicate.
func (s *Service) Encrypt(ctx context.Context, peer types.PeerID, device types.DeviceID, plaintext []byte, bundle *types.PreKeyBundle) (wireBytes []byte, messageID string, err error) {
	lock := s.lockFor(peer, device)
	lock.Lock()
	defer lock.Unlock()

	sess, found, err := s.loadSession(ctx, peer, device)
	if err != nil {
		return nil, "", err
	}

	wireType := types.WireTypeWhisper
	if !found {
		if bundle == nil {
			return nil, "", domain.ErrNoSession
		}
		identity, err := s.keys.Identity(ctx)
		if err != nil {
			return nil, "", err
		}
		result, header, err := x3dh.Sender(identity, *bundle)
		if err != nil {
			return nil, "", err
		}
		ratchetState, err := doubleratchet.InitSender(result.Master, bundle.SignedPreKeyPublic)
		if err != nil {
			return nil, "", err
		}
		sess = types.Session{
			PeerID:               peer,
			DeviceID:             device,
			Ratchet:              ratchetState,
			RemoteIdentityPublic: bundle.IdentityPublic,
			CreatedAt:            time.Now(),
			PendingX3DHHeader:    &header,
			AssociatedData:       result.AssociatedData,
		}
		wireType = types.WireTypePreKey
	}

	header, ct, err := doubleratchet.Encrypt(&sess.Ratchet, plaintext, sess.AssociatedData)
	if err != nil {
		return nil, "", err
	}

	frame := types.WireFrame{Type: wireType, Version: types.WireVersion, Header: header, Ciphertext: ct}
	if wireType == types.WireTypePreKey {
		frame.PreKeyHeader = sess.PendingX3DHHeader
	}
	encoded, err := EncodeWireFrame(frame)
	if err != nil {
		return nil, "", err
	}

	// Persist only after AEAD success, so a cancelled call never advances
	// the ratchet without also producing ciphertext the caller can use.
	if err := s.saveSession(ctx, sess); err != nil {
		return nil, "", domain.ErrStorageFailure
	}
	return encoded, uuid.NewString(), nil
}

// Decrypt opens a wire frame from (peer, device), bootstrapping a session
// via X3DH if the frame is a PreKey message and none exists yet. messageID
// is the idempotency id the sender generated for this frame (the value
// Encrypt returned on the other end); a messageID already present in the
// session's recent-id ring is rejected as a duplicate without touching the
// ratchet.
func (s *Service) Decrypt(ctx context.Context, peer types.PeerID, device types.DeviceID, messageID string, wireBytes []byte) (types.DecryptedMessage, error) {
	lock := s.lockFor(peer, device)
	lock.Lock()
	defer lock.Unlock()

	frame, err := DecodeWireFrame(wireBytes)
	if err != nil {
		return types.DecryptedMessage{}, err
	}

	sess, found, err := s.loadSession(ctx, peer, device)
	if err != nil {
		return types.DecryptedMessage{}, err
	}

	if found && messageID != "" {
		for _, seen := range sess.RecentMessageIDs {
			if seen == messageID {
				return types.DecryptedMessage{}, domain.ErrDuplicateMessage
			}
		}
	}

	var consumedOPK *types.OneTimePreKey
	if !found {
		if frame.PreKeyHeader == nil {
			return types.DecryptedMessage{}, domain.ErrNoSession
		}
		identity, err := s.keys.Identity(ctx)
		if err != nil {
			return types.DecryptedMessage{}, err
		}
		spk, err := s.keys.SignedPreKey(ctx, frame.PreKeyHeader.SignedPreKeyID)
		if err != nil {
			return types.DecryptedMessage{}, err
		}

		var opkPriv *types.X25519Private
		if frame.PreKeyHeader.OneTimePreKeyID != 0 {
			opk, err := s.keys.ConsumeOneTimePreKey(ctx, frame.PreKeyHeader.OneTimePreKeyID)
			if err != nil {
				return types.DecryptedMessage{}, err
			}
			consumedOPK = &opk
			opkPriv = &opk.Priv
		}

		result, err := x3dh.Receiver(identity, spk.Priv, opkPriv, *frame.PreKeyHeader)
		if err != nil {
			s.rollbackOPK(ctx, consumedOPK)
			return types.DecryptedMessage{}, err
		}
		ratchetState := doubleratchet.InitReceiver(result.Master, spk.Priv, spk.Pub)
		sess = types.Session{
			PeerID:               peer,
			DeviceID:             device,
			Ratchet:              ratchetState,
			RemoteIdentityPublic: frame.PreKeyHeader.InitiatorIdentityPublic,
			CreatedAt:            time.Now(),
			AssociatedData:       result.AssociatedData,
		}
	}

	plaintext, err := doubleratchet.Decrypt(&sess.Ratchet, s.limits, frame.Header, frame.Ciphertext, sess.AssociatedData)
	if err != nil {
		s.rollbackOPK(ctx, consumedOPK)
		return types.DecryptedMessage{}, err
	}

	// The peer acknowledged our PreKey message by sending Whisper: the
	// handshake is complete, so the initiator's pending header is cleared.
	if sess.PendingX3DHHeader != nil && frame.Type == types.WireTypeWhisper {
		sess.PendingX3DHHeader = nil
	}

	if messageID != "" {
		sess.RecentMessageIDs = append(sess.RecentMessageIDs, messageID)
		if overflow := len(sess.RecentMessageIDs) - types.MaxRecentMessageIDs; overflow > 0 {
			sess.RecentMessageIDs = sess.RecentMessageIDs[overflow:]
		}
	}

	if err := s.saveSession(ctx, sess); err != nil {
		return types.DecryptedMessage{}, domain.ErrStorageFailure
	}
	return types.DecryptedMessage{PeerID: peer, DeviceID: device, Plaintext: plaintext}, nil
}

func (s *Service) rollbackOPK(ctx context.Context, opk *types.OneTimePreKey) {
	if opk == nil {
		return
	}
	_ = s.keys.RestoreOneTimePreKey(ctx, *opk)
}

// VerifyRemoteIdentity compares observedIdentityPublic against the pinned
// identity for (peer, device). A peer observed for the first time is
// trusted on first use.
func (s *Service) VerifyRemoteIdentity(ctx context.Context, peer types.PeerID, device types.DeviceID, observedIdentityPublic types.X25519Public) (changed bool, safetyNumber string, err error) {
	stored, ok, err := s.store.Get(ctx, peerIdentityKey(peer, device))
	if err != nil {
		return false, "", domain.ErrStorageFailure
	}
	if !ok {
		if err := s.store.Set(ctx, peerIdentityKey(peer, device), observedIdentityPublic.Slice()); err != nil {
			return false, "", domain.ErrStorageFailure
		}
		// Index the device so DeleteAllSessions can clear this pin even if
		// no session is ever saved for it.
		if err := s.addToSessionIndex(ctx, peer, device); err != nil {
			return false, "", err
		}
		return false, "", nil
	}

	if primitives.ConstantTimeCompare(stored, observedIdentityPublic.Slice()) {
		return false, "", nil
	}

	identity, err := s.keys.Identity(ctx)
	if err != nil {
		return true, "", err
	}
	sn := SafetyNumber(identity.XPub, observedIdentityPublic, s.appID)
	return true, sn, nil
}

// DeleteAllSessions erases every device-indexed session for peer, and the
// pinned identity each device's VerifyRemoteIdentity recorded, so the next
// observation re-establishes trust on first use.
func (s *Service) DeleteAllSessions(ctx context.Context, peer types.PeerID) error {
	devices, err := s.loadSessionIndex(ctx, peer)
	if err != nil {
		return err
	}
	for _, device := range devices {
		if err := s.store.Remove(ctx, sessionKey(peer, device)); err != nil {
			return domain.ErrStorageFailure
		}
		if err := s.store.Remove(ctx, peerIdentityKey(peer, device)); err != nil {
			return domain.ErrStorageFailure
		}
	}
	if err := s.store.Remove(ctx, sessionIndexKey(peer)); err != nil {
		return domain.ErrStorageFailure
	}
	return nil
}
