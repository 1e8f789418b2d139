// Package tokenstore persists the current session's token record.
//
// Four backends with different tradeoffs:
//   - File: local filesystem storage with atomic writes, secure permissions,
//     and change notification so concurrent processes sharing the same
//     credential file stay consistent
//   - Keyring: OS-native credential storage (macOS Keychain, Windows
//     Credential Manager, Secret Service)
//   - Env: read-only bootstrap from an environment variable
//   - Mem: in-process storage for tests and wiring
//
// A missing or malformed stored record degrades to "no stored session"
// rather than an error; the session layer treats that as unauthenticated.
package tokenstore
