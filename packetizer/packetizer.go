// Package packetizer builds the zero-copy scatter/gather descriptors for
// one outgoing frame: each fragment is expressed as a two-element
// golang.org/x/net/ipv4.Message whose Buffers[0] is a packetizer-owned
// header and Buffers[1] aliases a slice of the caller's buffer. No payload
// bytes are copied.
package packetizer

import (
	"github.com/lysShub/udpframe/proto"
	"github.com/lysShub/udpframe/udperr"
	"golang.org/x/net/ipv4"
)

// initialCapacity is the descriptor pool's pre-reserved size: enough for a
// ~11MB frame (8000 * proto.MaxPayload) without growing.
const initialCapacity = 8000

// Packetizer owns a pool of packet descriptors, reused across frames for
// the lifetime of the process. PrepareFrame is its single operation; the
// batch it returns is valid only until the next PrepareFrame call.
type Packetizer struct {
	headers [][proto.HeaderSize]byte
	msgs    []ipv4.Message
	count   int
}

// New returns a Packetizer with its descriptor pool pre-reserved.
func New() *Packetizer {
	p := &Packetizer{}
	p.grow(initialCapacity)
	return p
}

func (p *Packetizer) grow(n int) {
	if n <= len(p.headers) {
		return
	}
	headers := make([][proto.HeaderSize]byte, n)
	msgs := make([]ipv4.Message, n)
	copy(headers, p.headers)
	p.headers = headers
	p.msgs = msgs
}

// PrepareFrame fragments buf (frame frameID) into ceil(len(buf)/MaxPayload)
// descriptors (clamped to 1 for an empty buffer), writing the header for
// each and pointing its scatter/gather vector at the packetizer-owned
// header and the corresponding slice of buf. buf must remain valid and
// unmodified until the caller's send of the returned batch completes; the
// returned slice aliases buf and is overwritten by the next PrepareFrame
// call.
func (p *Packetizer) PrepareFrame(buf []byte, frameID uint32) ([]ipv4.Message, error) {
	size := uint64(len(buf))
	if size > proto.MaxFrameSize {
		return nil, udperr.ErrFrameTooLarge
	}

	n := proto.FragmentCount(size)
	p.grow(int(n))

	for i := uint32(0); i < n; i++ {
		h := proto.Header{FrameID: frameID, FragIndex: i, TotalFrags: n}
		_ = h.Encode(p.headers[i][:])

		start := int(i) * proto.MaxPayload
		end := start + proto.MaxPayload
		if end > len(buf) {
			end = len(buf)
		}
		p.msgs[i].Buffers = [][]byte{p.headers[i][:], buf[start:end]}
		p.msgs[i].Addr = nil
		p.msgs[i].N = 0
	}
	p.count = int(n)
	return p.msgs[:p.count], nil
}

// Packets returns the batch built by the most recent PrepareFrame call.
func (p *Packetizer) Packets() []ipv4.Message { return p.msgs[:p.count] }

// Count returns len(Packets()).
func (p *Packetizer) Count() int { return p.count }
