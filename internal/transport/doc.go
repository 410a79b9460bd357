// Package transport implements the HTTP client side of the per-device
// message mailbox cmd/keyserver also serves: posting a wire frame to a
// recipient's queue, polling a device's own queue, and acknowledging
// delivered frames so they are dropped from it.
package transport
