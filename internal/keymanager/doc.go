// Package keymanager implements KeyManager (L2): the long-lived identity
// key, signed pre-key generation and rotation, and the one-time pre-key
// pool with consume-on-use semantics. It is the only component that ever
// touches the identity private key or an unconsumed one-time pre-key.
package keymanager
