package types

// PeerID identifies an account on the directory service.
type PeerID string

// String returns the string form of the peer id.
func (p PeerID) String() string { return string(p) }

// DeviceID identifies one of a peer's devices. Sessions are keyed on the
// pair (PeerID, DeviceID).
type DeviceID string

// String returns the string form of the device id.
func (d DeviceID) String() string { return string(d) }

// SignedPreKeyID is a dense, monotonically increasing 32-bit identifier for
// a SignedPreKey. Ids are never reused across a device's lifetime.
type SignedPreKeyID uint32

// OneTimePreKeyID is a dense, monotonically increasing 32-bit identifier
// for a OneTimePreKey. Zero means "absent" on the wire (see PreKeyHeader).
type OneTimePreKeyID uint32

// WireType tags a Double Ratchet ciphertext frame as either the first
// message of a session (carrying an X3DH header) or a steady-state message.
type WireType uint8

const (
	// WireTypeWhisper tags a steady-state Double Ratchet message.
	WireTypeWhisper WireType = iota + 1
	// WireTypePreKey tags a first message, carrying an X3DH header.
	WireTypePreKey
)

// String renders the wire type for logging.
func (t WireType) String() string {
	switch t {
	case WireTypeWhisper:
		return "Whisper"
	case WireTypePreKey:
		return "PreKey"
	default:
		return "Unknown"
	}
}

// WireVersion is the current wire frame version.
const WireVersion uint8 = 1
