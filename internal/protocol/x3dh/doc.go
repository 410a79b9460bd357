// Package x3dh implements the Extended Triple Diffie-Hellman handshake
// (L3): given a published pre-key bundle, derive a shared master secret and
// associated data without any round trip to the bundle's owner.
package x3dh
