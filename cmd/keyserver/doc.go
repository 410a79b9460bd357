// Command keyserver runs a reference implementation of the key
// distribution service: devices upload their identity keys, signed
// pre-key, and a batch of one-time pre-keys, and peers fetch a
// PreKeyBundle to start a session. It also serves a small per-device
// mailbox (POST/GET/ack under /messages/...) so cmd/ciphera's send/recv
// commands have somewhere to deliver wire frames.
package main
