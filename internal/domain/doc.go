// Package domain defines the core data models and interfaces shared across
// the Ciphera protocol core. It contains plain types (wire/state, in the
// types subpackage) and contracts (interfaces, in the interfaces
// subpackage) only; no protocol logic lives here.
package domain
