// Package store implements a passphrase-encrypted, file-backed
// interfaces.SecureStore: every namespaced entry (identity keys, signed
// pre-keys, one-time pre-keys, session records) is sealed with a key
// derived once from the caller's passphrase and written to its own file
// under a root directory.
package store
