// Package udperr enumerates the sentinel error values used across the
// fragmentation/reassembly engine. Construction errors propagate to the
// caller; per-fragment and per-frame admission errors are absorbed by the
// owning component, logged, and in one case (ErrFrameTruncated) returned
// as an optionally-observable sentinel.
package udperr

import "github.com/pkg/errors"

var (
	// ErrSocketInit is returned when the underlying OS socket cannot be
	// created at all.
	ErrSocketInit = errors.New("udpframe: socket init failed")
	// ErrBindFailed is returned when binding a listen-role socket fails.
	ErrBindFailed = errors.New("udpframe: bind failed")
	// ErrInvalidAddress is returned for an invalid (zero) destination address.
	ErrInvalidAddress = errors.New("udpframe: invalid address")

	// ErrFrameTooLarge is returned by the Packetizer when a frame's size
	// exceeds proto.MaxFrameSize, and logged by the Reassembler when an
	// arriving frame's declared total_frags would exceed the configured
	// MaxFrameBytes ceiling.
	ErrFrameTooLarge = errors.New("udpframe: frame exceeds maximum frame size")

	// ErrMalformedFragment covers a fragment whose FragIndex/TotalFrags
	// are structurally invalid or inconsistent with its frame, or whose
	// payload exceeds proto.MaxPayload. Logged and dropped by the
	// Reassembler.
	ErrMalformedFragment = errors.New("udpframe: malformed fragment")
	// ErrDuplicateFragment marks a fragment index already received for
	// its frame. Logged and dropped by the Reassembler.
	ErrDuplicateFragment = errors.New("udpframe: duplicate fragment")
	// ErrTableFull is logged when the reassembly table is at capacity and
	// eviction could not make room for a new frame-id.
	ErrTableFull = errors.New("udpframe: reassembly table full")

	// ErrSendFatal marks a send error that is not transient (not
	// EINTR/EAGAIN/EWOULDBLOCK); the current frame is abandoned.
	ErrSendFatal = errors.New("udpframe: fatal send error")

	// ErrFrameTruncated is returned by adapter.SourceAdapter.Generate when
	// a received frame's length differs from the caller's fixed output
	// buffer: a larger frame is truncated, a smaller one is zero-padded.
	// Callers may ignore it.
	ErrFrameTruncated = errors.New("udpframe: received frame truncated to fit output buffer")
)
