package torrent

import "errors"

// Error taxonomy from spec.md §7. The teacher never bothers with typed
// errors — every failure is an ad hoc fmt.Errorf — but the session/
// coordinator boundary the spec draws (session errors are absorbed, only
// InternalError may surface) is easiest to enforce when callers can
// errors.Is against a sentinel, so these wrap the teacher's message style
// instead of replacing it.
var (
	// ErrProtocol marks a wire format violation: bad handshake, malformed
	// framed message, or an id with the wrong payload length. Session-local.
	ErrProtocol = errors.New("torrent: protocol error")

	// ErrTransport marks a TCP connect/read/write failure or timeout.
	// Session-local.
	ErrTransport = errors.New("torrent: transport error")

	// ErrPeerMismatch marks a handshake whose info_hash differs from ours.
	// Session-local; like any handshake failure, the session closes the
	// connection, backs off and retries the peer.
	ErrPeerMismatch = errors.New("torrent: peer info_hash mismatch")

	// ErrInternal marks an assembly-time invariant violation: the
	// completion predicate fired but a block is not DOWNLOADED. This is a
	// bug, not a peer misbehavior, and is the one error class allowed to
	// abort the download. Assembly also wraps failures to open or write the
	// output file in ErrInternal.
	ErrInternal = errors.New("torrent: internal invariant violated")
)
