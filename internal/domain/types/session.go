package types

import "time"

// PreKeyHeader carries the X3DH handshake parameters in the first message
// of a session.
type PreKeyHeader struct {
	InitiatorIdentityPublic X25519Public    `json:"initiator_identity_public"`
	EphemeralPublic         X25519Public    `json:"ephemeral_public"`
	SignedPreKeyID          SignedPreKeyID  `json:"signed_pre_key_id"`
	OneTimePreKeyID         OneTimePreKeyID `json:"one_time_pre_key_id,omitempty"`
}

// Session is the per-peer-device session record.
type Session struct {
	PeerID               PeerID        `json:"peer_id"`
	DeviceID             DeviceID      `json:"device_id"`
	Ratchet              RatchetState  `json:"ratchet"`
	RemoteIdentityPublic X25519Public  `json:"remote_identity_public"`
	CreatedAt            time.Time     `json:"created_at"`
	PendingX3DHHeader    *PreKeyHeader `json:"pending_x3dh_header,omitempty"`
	// AssociatedData is the X3DH-derived initiator_identity||responder_identity
	// pair, passed as associated data (ahead of the encoded ratchet header)
	// to every AEAD seal and open on this session. Computed once at
	// session creation since it is deterministic from data already in this
	// struct, but persisted directly to avoid re-deriving initiator order.
	AssociatedData []byte `json:"associated_data"`
	// RecentMessageIDs holds the client-generated idempotency ids of the
	// most recently decrypted frames, FIFO bounded, so an at-least-once
	// transport redelivering the same frame is rejected as a duplicate
	// rather than re-run through the ratchet.
	RecentMessageIDs []string `json:"recent_message_ids,omitempty"`
}

// MaxRecentMessageIDs bounds the Session.RecentMessageIDs ring.
const MaxRecentMessageIDs = 32

// WireFrame is the decoded form of the wire bytes:
//
//	type_tag(1) | version(1) | [x3dh_header if type==PreKey] | header | ciphertext
type WireFrame struct {
	Type         WireType
	Version      uint8
	PreKeyHeader *PreKeyHeader
	Header       RatchetHeader
	Ciphertext   []byte
}

// DecryptedMessage is what SessionManager.Decrypt returns on success.
type DecryptedMessage struct {
	PeerID    PeerID
	DeviceID  DeviceID
	Plaintext []byte
}
