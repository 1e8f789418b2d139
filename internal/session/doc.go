// Package session owns the current token record and its lifecycle.
//
// The Store serializes every observe-then-act operation (validity check,
// refresh, invalidation, adoption of externally stored records) through a
// single-consumer op channel, so at most one refresh exchange is ever in
// flight and queued operations run in strict FIFO order. Waiters block on a
// change broadcast channel that is re-created on every authoritative state
// change; nothing busy-polls.
//
// Refresh failures are terminal for the session: the store transitions to
// Unauthenticated and it is the caller's job (account manager, CLI) to
// establish a new identity.
package session
