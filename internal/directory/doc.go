// Package directory implements the HTTP client side of the key
// distribution service: publishing a device's pre-key bundle, fetching a
// peer's bundle to start a session, and checking a device's remaining
// one-time pre-key count so KeyManager knows when to top up.
package directory
