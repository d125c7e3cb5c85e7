// Package source implements the receive half: a background goroutine that
// batches reads off a udpsock.Socket, feeds a reassembler.Reassembler, and
// pushes completed frames onto a framequeue.Queue a caller drains with
// PopFrame.
package source

import (
	"log/slog"
	"net/netip"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lysShub/netkit/debug"
	"github.com/lysShub/netkit/errorx"
	"github.com/lysShub/udpframe/framequeue"
	"github.com/lysShub/udpframe/netbatch"
	"github.com/lysShub/udpframe/proto"
	"github.com/lysShub/udpframe/reassembler"
	"github.com/lysShub/udpframe/udpsock"
	"golang.org/x/net/ipv4"
)

// batchSize is the number of datagrams read per batched receive call.
const batchSize = 64

// recvTimeout bounds each batched receive so the loop periodically wakes
// to re-check the running flag.
const recvTimeout = time.Second

// Config carries construction-time tuning: public fields plus a private
// logger filled in by init() so the zero value still works.
type Config struct {
	LogPath string

	Reassembler *reassembler.Config

	logger *slog.Logger
}

func (c *Config) init() *Config {
	if c == nil {
		c = &Config{}
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

// noCopy marks Source non-copyable: a copy would duplicate ownership of
// the socket and the goroutine-exclusive reassembler, and two receivers
// cannot bind the same port.
type noCopy struct{}

func (*noCopy) Lock()   {}
func (*noCopy) Unlock() {}

// Source is the background receiver: one Socket (bind mode), one
// goroutine-owned Reassembler, and a bounded-wait output queue.
type Source struct {
	_ noCopy

	sock *udpsock.Socket
	pc   *ipv4.PacketConn
	ra   *reassembler.Reassembler
	q    *framequeue.Queue

	running atomic.Bool
	wg      sync.WaitGroup

	config   *Config
	closeErr errorx.CloseErr
}

// New opens a receive-role socket bound to port. The receive goroutine is
// not started until Start is called.
func New(port uint16, config *Config) (*Source, error) {
	s := &Source{
		config: config.init(),
		q:      framequeue.New(),
	}
	s.ra = reassembler.New(s.config.Reassembler)

	sock, err := udpsock.Bind(port, nil)
	if err != nil {
		return nil, s.close(err)
	}
	s.sock = sock
	s.sock.SetRecvTimeout(recvTimeout)
	s.pc = ipv4.NewPacketConn(sock.Conn())
	return s, nil
}

// Start launches the receive loop. Idempotent.
func (s *Source) Start() {
	if !s.running.CompareAndSwap(false, true) {
		return
	}
	s.wg.Add(1)
	go s.recvLoop()
}

// Stop signals the receive loop to exit and waits for it to do so.
// Idempotent.
func (s *Source) Stop() {
	if !s.running.CompareAndSwap(true, false) {
		return
	}
	s.wg.Wait()
}

func (s *Source) close(cause error) error {
	return s.closeErr.Close(func() (errs []error) {
		errs = append(errs, cause)
		if s.sock != nil {
			errs = append(errs, s.sock.Close())
		}
		return errs
	})
}

// Close stops the receive loop (if running), releases the socket, and
// wakes every blocked PopFrame caller. Idempotent.
func (s *Source) Close() error {
	s.Stop()
	s.q.Close()
	return s.close(nil)
}

// LocalAddr returns the bound local address, for peers that need to
// target this Source (e.g. a Sink dialing it).
func (s *Source) LocalAddr() netip.AddrPort {
	return s.sock.LocalAddr()
}

// PopFrame waits up to timeout for the next completed frame: a negative
// timeout blocks indefinitely, zero polls without blocking, and a
// positive timeout bounds the wait.
func (s *Source) PopFrame(timeout time.Duration) ([]byte, uint32, bool) {
	f, ok := s.q.Pop(timeout)
	if !ok {
		return nil, 0, false
	}
	return f.Data, f.FrameID, true
}

func (s *Source) recvLoop() {
	defer s.wg.Done()
	defer s.ra.Reset()

	bufs := make([][]byte, batchSize)
	msgs := make([]ipv4.Message, batchSize)
	for i := range msgs {
		bufs[i] = make([]byte, proto.HeaderSize+proto.MaxPayload+64)
		msgs[i] = ipv4.Message{Buffers: [][]byte{bufs[i]}}
	}

	for s.running.Load() {
		if err := s.sock.ArmReadDeadline(); err != nil {
			s.config.logger.Error(err.Error(), errorx.Trace(err))
			return
		}

		n, err := netbatch.ReadBatch(s.pc, msgs, 0)
		if err != nil {
			if netbatch.IsTimeout(err) {
				continue
			}
			s.config.logger.Error(err.Error(), errorx.Trace(err))
			return
		}

		for i := 0; i < n; i++ {
			s.handleDatagram(bufs[i][:msgs[i].N])
		}
	}
}

func (s *Source) handleDatagram(dgram []byte) {
	if len(dgram) < proto.HeaderSize {
		if debug.Debug() {
			s.config.logger.Warn("short datagram dropped", slog.Int("len", len(dgram)))
		}
		return
	}

	h, err := proto.Decode(dgram)
	if err != nil {
		return
	}
	payload := dgram[proto.HeaderSize:]

	res := s.ra.AddFragment(h, payload, time.Now())
	if res.Complete {
		s.q.Push(framequeue.Frame{FrameID: res.FrameID, Data: res.Data})
	}
}
