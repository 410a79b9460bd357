package sessionmanager_test

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ciphera/internal/domain"
	"ciphera/internal/domain/types"
	"ciphera/internal/primitives"
	"ciphera/internal/protocol/doubleratchet"
	"ciphera/internal/sessionmanager"
)

// memStore is a minimal in-memory interfaces.SecureStore for tests.
type memStore struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemStore() *memStore { return &memStore{data: map[string][]byte{}} }

func (m *memStore) Set(_ context.Context, name string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[name] = append([]byte{}, value...)
	return nil
}

func (m *memStore) Get(_ context.Context, name string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[name]
	if !ok {
		return nil, false, nil
	}
	return append([]byte{}, v...), true, nil
}

func (m *memStore) Remove(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, name)
	return nil
}

func (m *memStore) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = map[string][]byte{}
	return nil
}

// fakeKeyManager stands in for keymanager.Service: one identity, one SPK,
// and a small pool of OPKs that can be consumed and rolled back.
type fakeKeyManager struct {
	mu       sync.Mutex
	identity types.IdentityKey
	spk      types.SignedPreKey
	opks     map[types.OneTimePreKeyID]types.OneTimePreKey
}

func newFakeKeyManager(t *testing.T) *fakeKeyManager {
	t.Helper()
	xPriv, xPub, err := primitives.GenerateX25519()
	require.NoError(t, err, "generate identity x25519")
	edPriv, edPub, err := primitives.GenerateEd25519()
	require.NoError(t, err, "generate identity ed25519")
	identity := types.IdentityKey{XPub: xPub, XPriv: xPriv, EdPub: edPub, EdPriv: edPriv}

	spkPriv, spkPub, err := primitives.GenerateX25519()
	require.NoError(t, err, "generate spk")
	spk := types.SignedPreKey{
		ID:        1,
		Pub:       spkPub,
		Priv:      spkPriv,
		Signature: primitives.Sign(edPriv, spkPub.Slice()),
	}

	return &fakeKeyManager{identity: identity, spk: spk, opks: map[types.OneTimePreKeyID]types.OneTimePreKey{}}
}

func (f *fakeKeyManager) Identity(_ context.Context) (types.IdentityKey, error) {
	return f.identity, nil
}

func (f *fakeKeyManager) SignedPreKey(_ context.Context, id types.SignedPreKeyID) (types.SignedPreKey, error) {
	if id != f.spk.ID {
		return types.SignedPreKey{}, domain.ErrNotFound
	}
	return f.spk, nil
}

func (f *fakeKeyManager) addOneTimePreKey(t *testing.T, id types.OneTimePreKeyID) types.OneTimePreKeyPublic {
	t.Helper()
	priv, pub, err := primitives.GenerateX25519()
	require.NoError(t, err, "generate opk")
	opk := types.OneTimePreKey{ID: id, Pub: pub, Priv: priv}
	f.mu.Lock()
	f.opks[id] = opk
	f.mu.Unlock()
	return opk.Public()
}

func (f *fakeKeyManager) ConsumeOneTimePreKey(_ context.Context, id types.OneTimePreKeyID) (types.OneTimePreKey, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	opk, ok := f.opks[id]
	if !ok {
		return types.OneTimePreKey{}, domain.ErrNotFound
	}
	delete(f.opks, id)
	return opk, nil
}

func (f *fakeKeyManager) RestoreOneTimePreKey(_ context.Context, opk types.OneTimePreKey) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.opks[opk.ID] = opk
	return nil
}

func (f *fakeKeyManager) bundle(peer types.PeerID, device types.DeviceID, opk *types.OneTimePreKeyPublic) types.PreKeyBundle {
	b := types.PreKeyBundle{
		PeerID:                peer,
		DeviceID:              device,
		IdentityPublic:        f.identity.XPub,
		IdentitySigningPublic: f.identity.EdPub,
		SignedPreKeyID:        f.spk.ID,
		SignedPreKeyPublic:    f.spk.Pub,
		SignedPreKeySignature: f.spk.Signature,
	}
	if opk != nil {
		b.OneTimePreKeyID = opk.ID
		pub := opk.Pub
		b.OneTimePreKeyPublic = &pub
	}
	return b
}

const testAppID = "ciphera-test"

func TestEncryptDecryptRoundTrip(t *testing.T) {
	ctx := context.Background()
	bobKeys := newFakeKeyManager(t)
	opkPub := bobKeys.addOneTimePreKey(t, 1)
	bundle := bobKeys.bundle("bob", "device1", &opkPub)

	alice := sessionmanager.New(newMemStore(), newFakeKeyManager(t), doubleratchet.DefaultLimits(), []byte(testAppID))
	bob := sessionmanager.New(newMemStore(), bobKeys, doubleratchet.DefaultLimits(), []byte(testAppID))

	wire, msgID, err := alice.Encrypt(ctx, "bob", "device1", []byte("hello bob"), &bundle)
	require.NoError(t, err, "alice.Encrypt")
	require.NotEmpty(t, msgID, "expected a non-empty message id")

	msg, err := bob.Decrypt(ctx, "alice", "device1", msgID, wire)
	require.NoError(t, err, "bob.Decrypt")
	assert.Equal(t, "hello bob", string(msg.Plaintext))

	_, err = bob.Decrypt(ctx, "alice", "device1", msgID, wire)
	require.ErrorIs(t, err, domain.ErrDuplicateMessage, "redelivered frame")

	reply, replyID, err := bob.Encrypt(ctx, "alice", "device1", []byte("hi alice"), nil)
	require.NoError(t, err, "bob.Encrypt reply")
	back, err := alice.Decrypt(ctx, "bob", "device1", replyID, reply)
	require.NoError(t, err, "alice.Decrypt reply")
	assert.Equal(t, "hi alice", string(back.Plaintext))
}

func TestEncryptWithoutSessionRequiresBundle(t *testing.T) {
	ctx := context.Background()
	alice := sessionmanager.New(newMemStore(), newFakeKeyManager(t), doubleratchet.DefaultLimits(), []byte(testAppID))
	_, _, err := alice.Encrypt(ctx, "bob", "device1", []byte("hi"), nil)
	require.ErrorIs(t, err, domain.ErrNoSession)
}

func TestDecryptRollsBackConsumedOneTimePreKeyOnFailure(t *testing.T) {
	ctx := context.Background()
	bobKeys := newFakeKeyManager(t)
	opkPub := bobKeys.addOneTimePreKey(t, 7)
	bundle := bobKeys.bundle("bob", "device1", &opkPub)

	alice := sessionmanager.New(newMemStore(), newFakeKeyManager(t), doubleratchet.DefaultLimits(), []byte(testAppID))
	bob := sessionmanager.New(newMemStore(), bobKeys, doubleratchet.DefaultLimits(), []byte(testAppID))

	wire, msgID, err := alice.Encrypt(ctx, "bob", "device1", []byte("hello"), &bundle)
	require.NoError(t, err, "alice.Encrypt")
	wire[len(wire)-1] ^= 0xFF

	_, err = bob.Decrypt(ctx, "alice", "device1", msgID, wire)
	require.ErrorIs(t, err, domain.ErrAuthFailed)

	_, err = bobKeys.ConsumeOneTimePreKey(ctx, 7)
	require.NoError(t, err, "expected one-time pre-key 7 to be restored after the failed decrypt")
}

func TestHasSessionAndDeleteAllSessions(t *testing.T) {
	ctx := context.Background()
	bobKeys := newFakeKeyManager(t)
	opkPub := bobKeys.addOneTimePreKey(t, 1)
	bundle := bobKeys.bundle("bob", "device1", &opkPub)

	alice := sessionmanager.New(newMemStore(), newFakeKeyManager(t), doubleratchet.DefaultLimits(), []byte(testAppID))
	bobStore := newMemStore()
	bob := sessionmanager.New(bobStore, bobKeys, doubleratchet.DefaultLimits(), []byte(testAppID))

	wire, msgID, err := alice.Encrypt(ctx, "bob", "device1", []byte("hello"), &bundle)
	require.NoError(t, err, "alice.Encrypt")
	_, err = bob.Decrypt(ctx, "alice", "device1", msgID, wire)
	require.NoError(t, err, "bob.Decrypt")

	has, err := bob.HasSession(ctx, "alice", "device1")
	require.NoError(t, err)
	assert.True(t, has)

	err = bob.DeleteAllSessions(ctx, "alice")
	require.NoError(t, err)

	has, err = bob.HasSession(ctx, "alice", "device1")
	require.NoError(t, err)
	assert.False(t, has, "HasSession after delete")
}

func TestVerifyRemoteIdentityTrustsOnFirstUseAndDetectsChange(t *testing.T) {
	ctx := context.Background()
	sm := sessionmanager.New(newMemStore(), newFakeKeyManager(t), doubleratchet.DefaultLimits(), []byte(testAppID))

	var firstSeen types.X25519Public
	firstSeen[0] = 0x01
	changed, _, err := sm.VerifyRemoteIdentity(ctx, "bob", "device1", firstSeen)
	require.NoError(t, err, "VerifyRemoteIdentity (first)")
	assert.False(t, changed, "first observation should be trusted, not reported as changed")

	changed, _, err = sm.VerifyRemoteIdentity(ctx, "bob", "device1", firstSeen)
	require.NoError(t, err, "VerifyRemoteIdentity (repeat)")
	assert.False(t, changed, "repeated observation of the same identity should not be reported as changed")

	var differentKey types.X25519Public
	differentKey[0] = 0x02
	changed, safetyNumber, err := sm.VerifyRemoteIdentity(ctx, "bob", "device1", differentKey)
	require.NoError(t, err, "VerifyRemoteIdentity (changed)")
	assert.True(t, changed, "a different observed identity should be reported as changed")
	assert.NotEmpty(t, safetyNumber, "expected a non-empty safety number on identity change")
}

func TestSafetyNumberIsSymmetric(t *testing.T) {
	var a, b types.X25519Public
	a[0], b[0] = 0x01, 0x02
	ab := sessionmanager.SafetyNumber(a, b, []byte(testAppID))
	ba := sessionmanager.SafetyNumber(b, a, []byte(testAppID))
	assert.Equal(t, ab, ba, "safety number not symmetric")
}

func TestSafetyNumberFormat(t *testing.T) {
	var a, b types.X25519Public
	a[0], b[0] = 0x01, 0x02
	sn := sessionmanager.SafetyNumber(a, b, []byte(testAppID))

	groups := strings.Split(sn, " ")
	require.Len(t, groups, 12, "expected 12 groups")
	var digits strings.Builder
	for _, g := range groups {
		require.Len(t, g, 5, "expected each group to be 5 digits")
		for _, r := range g {
			assert.True(t, r >= '0' && r <= '9', "expected only decimal digits, got %q", g)
		}
		digits.WriteString(g)
	}
	assert.Len(t, digits.String(), 60, "expected 60 decimal digits total")
}
