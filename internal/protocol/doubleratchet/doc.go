// Package doubleratchet implements the Double Ratchet algorithm (L4): a
// symmetric-key chain ratchet layered under a Diffie-Hellman ratchet,
// giving per-message forward secrecy and, on each DH step, post-compromise
// healing. It knows nothing about peers, wire framing, or persistence;
// SessionManager owns that.
package doubleratchet
