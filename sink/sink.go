// Package sink implements the per-frame transmit half: drives a
// packetizer.Packetizer and submits the resulting batch through a
// udpsock.Socket via netbatch's sendmmsg-backed writer.
package sink

import (
	"log/slog"
	"net"
	"net/netip"
	"os"

	"github.com/lysShub/netkit/errorx"
	"github.com/lysShub/udpframe/netbatch"
	"github.com/lysShub/udpframe/packetizer"
	"github.com/lysShub/udpframe/udperr"
	"github.com/lysShub/udpframe/udpsock"
	"github.com/pkg/errors"
	"golang.org/x/net/ipv4"
)

// Config carries construction-time tuning: public fields plus a private
// logger filled in by init() so the zero value still works.
type Config struct {
	LogPath string

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

// noCopy marks Sink non-copyable: cloning it would share the destination
// socket and the monotonic frame-id counter between callers, corrupting
// frame-id ordering.
type noCopy struct{}

func (*noCopy) Lock()   {}
func (*noCopy) Unlock() {}

// Sink is the per-frame transmitter: one Socket (dial mode) plus one
// Packetizer, single-threaded from its caller's perspective.
type Sink struct {
	_ noCopy

	sock *udpsock.Socket
	pc   *ipv4.PacketConn
	pz   *packetizer.Packetizer

	frameCounter uint32

	config   *Config
	closeErr errorx.CloseErr
}

// New opens a send-role socket targeting dest and returns a ready Sink.
func New(dest netip.AddrPort, config *Config) (*Sink, error) {
	s := &Sink{config: config.init(), pz: packetizer.New()}

	sock, err := udpsock.Dial(dest, nil)
	if err != nil {
		return nil, s.close(err)
	}
	s.sock = sock
	s.pc = ipv4.NewPacketConn(sock.Conn())
	return s, nil
}

func (s *Sink) close(cause error) error {
	return s.closeErr.Close(func() (errs []error) {
		errs = append(errs, cause)
		if s.sock != nil {
			errs = append(errs, s.sock.Close())
		}
		return errs
	})
}

// Close releases the underlying socket. Idempotent.
func (s *Sink) Close() error { return s.close(nil) }

// SendFrame fragments buf and submits the batch synchronously. buf must
// remain valid and unmodified until SendFrame returns. Frame-ids are
// assigned monotonically and wrap after 2^32 sends; the Reassembler
// tolerates wraparound because frame-ids are opaque keys.
func (s *Sink) SendFrame(buf []byte) error {
	id := s.frameCounter
	s.frameCounter++

	msgs, err := s.pz.PrepareFrame(buf, id)
	if err != nil {
		return err
	}

	dest := s.sock.Destination()
	addr := &net.UDPAddr{IP: dest.Addr().AsSlice(), Port: int(dest.Port())}
	for i := range msgs {
		msgs[i].Addr = addr
	}

	if err := netbatch.WriteAll(s.pc, msgs, 0); err != nil {
		s.config.logger.Error(err.Error(), errorx.Trace(err))
		return errors.Wrap(udperr.ErrSendFatal, err.Error())
	}
	return nil
}

// FrameCounter returns the next frame-id SendFrame will assign, for tests
// and diagnostics.
func (s *Sink) FrameCounter() uint32 { return s.frameCounter }
