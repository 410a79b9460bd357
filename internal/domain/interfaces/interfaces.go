// Package interfaces collects the capability contracts the protocol core
// depends on. The core never depends on a concrete store or transport,
// only on these capability sets.
package interfaces

import (
	"context"
	"time"

	"ciphera/internal/domain/types"
)

// SecureStore is the single flat, namespaced key/value capability the core
// persists through. Implementations are free to encrypt values at rest;
// callers treat names as opaque paths such as "ik/private" or
// "session/<peer_id>/<device_id>".
type SecureStore interface {
	// Set stores value under name, replacing any existing entry.
	Set(ctx context.Context, name string, value []byte) error
	// Get returns the stored value for name, or (nil, false, nil) if absent.
	Get(ctx context.Context, name string) ([]byte, bool, error)
	// Remove deletes name if present; it is not an error if absent.
	Remove(ctx context.Context, name string) error
	// Clear deletes every entry under the store, for device wipe/logout.
	Clear(ctx context.Context) error
}

// DirectoryClient is the read/write contract against the key-distribution
// service: publish a device's public material and fetch a peer's bundle
// to start a session.
type DirectoryClient interface {
	// UploadBundle publishes identity, signed pre-key, and a batch of
	// one-time pre-keys for the calling device.
	UploadBundle(ctx context.Context, upload types.DirectoryUpload) error
	// FetchBundle retrieves a bundle for peerID/deviceID, atomically
	// consuming one one-time pre-key from the server's pool if any remain.
	FetchBundle(ctx context.Context, peerID types.PeerID, deviceID types.DeviceID) (types.PreKeyBundle, error)
	// OneTimePreKeyCount reports how many unconsumed one-time pre-keys the
	// server currently holds for the calling device.
	OneTimePreKeyCount(ctx context.Context, peerID types.PeerID, deviceID types.DeviceID) (int, error)
}

// Transport is an ordered-within-direction but not-strictly-ordered-
// end-to-end bytes channel: the core is handed a frame plus (peer_id,
// device_id) and a client-generated idempotency id to send over, and a
// recipient polls for queued frames addressed to it. The protocol core
// itself never depends on this interface directly; only cmd/ciphera's
// send/recv commands do, since delivery lives outside X3DH, Double
// Ratchet, and SessionManager.
type Transport interface {
	// Send enqueues frame for (to, toDevice) on the transport, tagged with
	// messageID and the sending (from, fromDevice).
	Send(ctx context.Context, from types.PeerID, fromDevice types.DeviceID, to types.PeerID, toDevice types.DeviceID, messageID string, frame []byte) error
	// Fetch returns up to limit queued messages for (peerID, deviceID) in
	// enqueue order, without removing them. limit<=0 means no limit.
	Fetch(ctx context.Context, peerID types.PeerID, deviceID types.DeviceID, limit int) ([]types.QueuedMessage, error)
	// Ack drops the first count queued messages for (peerID, deviceID).
	Ack(ctx context.Context, peerID types.PeerID, deviceID types.DeviceID, count int) error
}

// Clock abstracts time so rotation/expiry logic is deterministic in tests.
type Clock interface {
	Now() time.Time
}
