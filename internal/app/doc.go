// Package app wires the concrete store, directory client, transport
// client, KeyManager, and SessionManager together behind the small
// surface cmd/ciphera's commands need.
package app
