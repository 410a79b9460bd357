// Package sessionmanager implements SessionManager (L5): per-peer-device
// session lifecycle, the X3DH trigger on first send, wire framing,
// identity-change detection, and the safety number used for manual
// verification. It is the only layer that knows about peers and devices;
// X3DH and DoubleRatchet below it operate on bare key material.
package sessionmanager
