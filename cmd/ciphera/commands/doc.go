// Package commands defines the ciphera CLI and wires dependencies for
// subcommands.
//
// Commands
//
//   - init           Create the local identity
//   - fingerprint    Print the identity fingerprint
//   - register       Publish your prekey bundle to the directory server
//   - rotate         Rotate the signed pre-key if it has aged out
//   - verify         Show or compare a peer's safety number
//   - send           Encrypt and send a message to a peer device
//   - recv           Fetch and decrypt queued messages
//
// # Implementation
//
// The root command builds an HTTP client and the full dependency graph
// (encrypted store, KeyManager, SessionManager, directory and transport
// clients) in PersistentPreRunE before any subcommand body runs, so
// handlers share one app context with sane timeouts and connection
// pooling.
package commands
