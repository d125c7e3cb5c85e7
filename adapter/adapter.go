// Package adapter implements the Runtime-adapter contract: the thin
// shim a host dataflow runtime plugs into, wrapping a sink.Sink or
// source.Source behind a (data, frame-id) / (out-buffer, timeout) call
// shape instead of the engine's own richer API.
package adapter

import (
	"net/netip"
	"time"

	"github.com/lysShub/udpframe/sink"
	"github.com/lysShub/udpframe/source"
	"github.com/lysShub/udpframe/udperr"
)

// noCopy marks both adapters non-copyable, mirroring the Sink/Source
// guard they wrap.
type noCopy struct{}

func (*noCopy) Lock()   {}
func (*noCopy) Unlock() {}

// SinkAdapter presents sink.Sink as a runtime-facing Send(data) call.
// Frame-ids are assigned internally by the wrapped Sink; Send returns the
// id assigned to each frame so the caller can observe it.
type SinkAdapter struct {
	_ noCopy

	snk *sink.Sink
}

// NewSinkAdapter opens a Sink targeting dest and wraps it.
func NewSinkAdapter(dest netip.AddrPort, config *sink.Config) (*SinkAdapter, error) {
	snk, err := sink.New(dest, config)
	if err != nil {
		return nil, err
	}
	return &SinkAdapter{snk: snk}, nil
}

// Send forwards data to the underlying Sink. The returned frameID is the
// id the engine assigned to this frame.
func (a *SinkAdapter) Send(data []byte) (frameID uint32, err error) {
	frameID = a.snk.FrameCounter()
	if err := a.snk.SendFrame(data); err != nil {
		return 0, err
	}
	return frameID, nil
}

// Close releases the underlying Sink.
func (a *SinkAdapter) Close() error { return a.snk.Close() }

// SourceAdapter presents source.Source as a runtime-facing
// Generate(out, timeout) call: it owns Start/Stop of the wrapped Source,
// starting it at construction and stopping it on Close.
type SourceAdapter struct {
	_ noCopy

	src *source.Source
}

// NewSourceAdapter opens and starts a Source bound to port.
func NewSourceAdapter(port uint16, config *source.Config) (*SourceAdapter, error) {
	src, err := source.New(port, config)
	if err != nil {
		return nil, err
	}
	src.Start()
	return &SourceAdapter{src: src}, nil
}

// Generate waits up to timeout for the next completed frame and copies it
// into out. On timeout, out is zero-filled and Generate returns false with
// a nil error. On success, it copies min(len(out), len(received)) bytes
// and zero-pads any remainder of out; if the received frame was larger or
// smaller than out, Generate returns udperr.ErrFrameTruncated alongside
// true. A caller that doesn't care about exact-size frames can ignore the
// error and use the copied/padded bytes as-is.
func (a *SourceAdapter) Generate(out []byte, timeout time.Duration) (ok bool, err error) {
	data, _, ok := a.src.PopFrame(timeout)
	if !ok {
		zero(out)
		return false, nil
	}

	n := copy(out, data)
	zero(out[n:])

	if n < len(data) || n < len(out) {
		return true, udperr.ErrFrameTruncated
	}
	return true, nil
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// LocalAddr returns the bound local address of the underlying Source.
func (a *SourceAdapter) LocalAddr() netip.AddrPort { return a.src.LocalAddr() }

// Close stops the underlying Source and releases its socket.
func (a *SourceAdapter) Close() error { return a.src.Close() }
