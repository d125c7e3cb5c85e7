// Package reassembler accepts arriving UDP fragments, groups them by
// frame-id, and emits completed frames. It owns a bounded reassembly table
// with timeout-based and forced eviction, and is designed to be owned
// exclusively by one goroutine (source.Source's receive loop) — it does no
// internal locking.
package reassembler

import (
	"log/slog"
	"os"
	"time"

	"github.com/lysShub/udpframe/proto"
	"github.com/lysShub/udpframe/udperr"
)

// Defaults for the bounded reassembly table and its eviction policy.
const (
	// DefaultMaxPendingFrames bounds the reassembly table.
	DefaultMaxPendingFrames = 10
	// DefaultFrameTimeout is how long a pending frame may sit without a
	// new fragment before it becomes eligible for eviction.
	DefaultFrameTimeout = time.Second
	// DefaultMaxFrameBytes bounds the reassembly buffer allocated per
	// admitted frame-id, well below proto.MaxFrameSize, so a sender
	// declaring a huge total_frags cannot force an unbounded allocation.
	DefaultMaxFrameBytes = 64 * 1024 * 1024
)

// Config carries construction-time tuning: public fields plus a private
// logger filled in by init() so the zero value still works.
type Config struct {
	MaxPendingFrames int
	FrameTimeout     time.Duration
	MaxFrameBytes    uint64

	LogPath string
	logger  *slog.Logger
}

func (c *Config) init() *Config {
	if c == nil {
		c = &Config{}
	}
	if c.MaxPendingFrames <= 0 {
		c.MaxPendingFrames = DefaultMaxPendingFrames
	}
	if c.FrameTimeout <= 0 {
		c.FrameTimeout = DefaultFrameTimeout
	}
	if c.MaxFrameBytes == 0 {
		c.MaxFrameBytes = DefaultMaxFrameBytes
	}

	var fh *os.File
	var err error
	if c.LogPath == "" {
		fh = os.Stdout
	} else {
		fh, err = os.OpenFile(c.LogPath, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0o666)
		if err != nil {
			panic(err)
		}
	}
	c.logger = slog.New(slog.NewJSONHandler(fh, nil))
	return c
}

type pendingFrame struct {
	buf           []byte
	received      []bool
	receivedCount uint32
	totalFrags    uint32
	finalDataSize uint64
	lastUpdate    time.Time
}

// Result is the outcome of one AddFragment call.
type Result struct {
	Complete bool
	Data     []byte
	FrameID  uint32
}

// Reassembler owns the bounded frame-id -> pendingFrame table.
type Reassembler struct {
	config *Config
	table  map[uint32]*pendingFrame
}

// New returns a Reassembler ready to accept fragments.
func New(config *Config) *Reassembler {
	return &Reassembler{
		config: config.init(),
		table:  make(map[uint32]*pendingFrame, DefaultMaxPendingFrames),
	}
}

// AddFragment feeds one fragment into the reassembler. now is passed in
// explicitly (rather than read from time.Now internally) so tests can drive
// eviction deterministically.
func (r *Reassembler) AddFragment(h proto.Header, payload []byte, now time.Time) Result {
	if len(payload) > proto.MaxPayload {
		r.drop(h.FrameID, udperr.ErrMalformedFragment)
		return Result{}
	}
	if !h.Valid() {
		// total_frags == 0, and any frag_index >= total_frags, is rejected
		// outright rather than coerced to a valid value.
		r.drop(h.FrameID, udperr.ErrMalformedFragment)
		return Result{}
	}

	f, exists := r.table[h.FrameID]
	if !exists {
		if len(r.table) >= r.config.MaxPendingFrames {
			r.evictStale(now)
		}
		if len(r.table) >= r.config.MaxPendingFrames {
			r.evictOldestByFrameID()
		}
		if len(r.table) >= r.config.MaxPendingFrames {
			r.drop(h.FrameID, udperr.ErrTableFull)
			return Result{}
		}

		totalMax := uint64(h.TotalFrags) * uint64(proto.MaxPayload)
		if totalMax > proto.MaxFrameSize || totalMax > r.config.MaxFrameBytes {
			r.drop(h.FrameID, udperr.ErrFrameTooLarge)
			return Result{}
		}

		f = &pendingFrame{
			buf:           make([]byte, totalMax),
			received:      make([]bool, h.TotalFrags),
			totalFrags:    h.TotalFrags,
			finalDataSize: totalMax,
		}
		r.table[h.FrameID] = f
	}

	f.lastUpdate = now

	if h.TotalFrags != f.totalFrags || h.FragIndex >= f.totalFrags {
		r.drop(h.FrameID, udperr.ErrMalformedFragment)
		return Result{}
	}
	if f.received[h.FragIndex] {
		r.drop(h.FrameID, udperr.ErrDuplicateFragment)
		return Result{}
	}

	start := int(h.FragIndex) * proto.MaxPayload
	copy(f.buf[start:], payload)

	if h.FragIndex == f.totalFrags-1 {
		f.finalDataSize = uint64(start) + uint64(len(payload))
	}

	f.received[h.FragIndex] = true
	f.receivedCount++

	if f.receivedCount == f.totalFrags {
		data := f.buf[:f.finalDataSize]
		delete(r.table, h.FrameID)
		return Result{Complete: true, Data: data, FrameID: h.FrameID}
	}
	return Result{}
}

// drop logs a fragment/frame admission failure at the reason's
// granularity; the caller still always returns a bare Result{} since
// AddFragment has no error channel of its own.
func (r *Reassembler) drop(frameID uint32, reason error) {
	r.config.logger.Warn(reason.Error(), slog.Uint64("frame_id", uint64(frameID)))
}

// Pending returns the number of frame-ids currently in the table.
func (r *Reassembler) Pending() int { return len(r.table) }

// Reset drops every pending frame, freeing their buffers. Called when the
// owning receive loop stops.
func (r *Reassembler) Reset() {
	r.table = make(map[uint32]*pendingFrame, r.config.MaxPendingFrames)
}

func (r *Reassembler) evictStale(now time.Time) {
	for id, f := range r.table {
		if now.Sub(f.lastUpdate) >= r.config.FrameTimeout {
			delete(r.table, id)
		}
	}
}

// evictOldestByFrameID deterministically picks, among currently pending
// frame-ids, the one that is "oldest" in wraparound-aware sequence order,
// and evicts it to make room for a newly-arriving frame-id when nothing
// is stale enough to free by timeout.
func (r *Reassembler) evictOldestByFrameID() {
	var victim uint32
	has := false
	for id := range r.table {
		if !has || seqBefore(id, victim) {
			victim = id
			has = true
		}
	}
	if has {
		delete(r.table, victim)
	}
}

// seqBefore reports whether a precedes b in 32-bit wraparound sequence
// order.
func seqBefore(a, b uint32) bool {
	return a != b && uint32(b-a) < (1<<31)
}
