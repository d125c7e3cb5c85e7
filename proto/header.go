// Package proto defines the wire framing for fragmented UDP frames: a fixed
// 12-byte little-endian descriptor prepended to every datagram.
package proto

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

// HeaderSize is the exact on-wire size of Header. No alignment padding.
const HeaderSize = 12

// MaxPayload is the largest payload, in bytes, a single datagram carries.
// Chosen as a safety margin below the 1500-byte Ethernet MTU once IP, UDP,
// the Header itself and common tunnel/VLAN overhead are accounted for.
const MaxPayload = 1400

// MaxFrameSize is the largest frame this protocol can describe: the widest
// fragment index (uint32) times the per-fragment payload ceiling.
const MaxFrameSize = uint64(^uint32(0)) * uint64(MaxPayload)

// Header is the 12-byte packed, little-endian on-wire descriptor carried by
// every fragment: FrameID, FragIndex, TotalFrags in that order.
type Header struct {
	FrameID    uint32
	FragIndex  uint32
	TotalFrags uint32
}

// Valid reports whether h satisfies the protocol's structural invariants:
// FragIndex < TotalFrags and TotalFrags >= 1.
func (h Header) Valid() bool {
	return h.TotalFrags >= 1 && h.FragIndex < h.TotalFrags
}

// Encode writes h into buf[:HeaderSize], little-endian. buf must have
// length >= HeaderSize.
func (h Header) Encode(buf []byte) error {
	if len(buf) < HeaderSize {
		return errors.Errorf("header buffer too short: %d < %d", len(buf), HeaderSize)
	}
	binary.LittleEndian.PutUint32(buf[0:4], h.FrameID)
	binary.LittleEndian.PutUint32(buf[4:8], h.FragIndex)
	binary.LittleEndian.PutUint32(buf[8:12], h.TotalFrags)
	return nil
}

// Marshal returns h encoded as a fresh HeaderSize-byte array.
func (h Header) Marshal() [HeaderSize]byte {
	var b [HeaderSize]byte
	_ = h.Encode(b[:])
	return b
}

// Decode parses a Header from the leading HeaderSize bytes of buf. It does
// not validate h.Valid(); callers that need to reject malformed headers
// check that separately, since on the receive path a short/garbled header
// is a silently-dropped fragment, not a decode error.
func Decode(buf []byte) (Header, error) {
	if len(buf) < HeaderSize {
		return Header{}, errors.Errorf("fragment too short for header: %d < %d", len(buf), HeaderSize)
	}
	return Header{
		FrameID:    binary.LittleEndian.Uint32(buf[0:4]),
		FragIndex:  binary.LittleEndian.Uint32(buf[4:8]),
		TotalFrags: binary.LittleEndian.Uint32(buf[8:12]),
	}, nil
}

// FragmentCount returns ceil(size / MaxPayload), clamped to 1 when size is
// zero (an empty frame still emits one zero-payload datagram).
func FragmentCount(size uint64) uint32 {
	if size == 0 {
		return 1
	}
	n := (size + MaxPayload - 1) / MaxPayload
	return uint32(n)
}
