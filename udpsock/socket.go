// Package udpsock wraps a single UDP endpoint with scoped acquisition:
// constructed open via Bind or Dial, released with Close, single owner,
// copy forbidden. It tunes kernel socket buffers on construction and
// exposes the raw connection so netbatch can drive sendmmsg/recvmmsg-backed
// batched I/O against it.
package udpsock

import (
	"log/slog"
	"net"
	"net/netip"
	"os"
	"time"

	"github.com/lysShub/netkit/errorx"
	"github.com/lysShub/udpframe/udperr"
	"github.com/pkg/errors"
)

// wantBufBytes is the kernel send/receive buffer size requested on every
// socket. The OS silently caps this to its own ceiling (see
// net.core.rmem_max/wmem_max on Linux).
const wantBufBytes = 32 * 1024 * 1024

// Config carries construction-time tuning: public fields, a private
// logger filled by init().
type Config struct {
	// LogPath, if empty, logs to stdout.
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

// Socket is one UDP endpoint: scoped acquisition, single owner, not copyable
// (its only usable form is *Socket; there is no exported zero-cost copy
// constructor).
type Socket struct {
	conn *net.UDPConn
	dest netip.AddrPort

	recvTimeout time.Duration

	config   *Config
	closeErr errorx.CloseErr
}

// Bind opens a receive-role socket listening on all interfaces at port.
func Bind(port uint16, config *Config) (*Socket, error) {
	s := &Socket{config: config.init()}

	conn, err := net.ListenUDP("udp", &net.UDPAddr{Port: int(port)})
	if err != nil {
		return nil, s.close(errors.Wrapf(udperr.ErrBindFailed, "port %d: %v", port, err))
	}
	s.conn = conn

	if err := tuneBuffers(conn); err != nil {
		s.config.logger.Warn(err.Error())
	}
	return s, nil
}

// Dial opens a send-role socket and stores addr as its destination (see
// Destination). The socket is not connected: every write submitted through
// it must carry its destination address explicitly.
func Dial(addr netip.AddrPort, config *Config) (*Socket, error) {
	s := &Socket{config: config.init(), dest: addr}

	if !addr.IsValid() {
		return nil, s.close(errors.Wrapf(udperr.ErrInvalidAddress, "%v", addr))
	}

	conn, err := net.ListenUDP("udp", &net.UDPAddr{})
	if err != nil {
		return nil, s.close(errors.Wrap(udperr.ErrSocketInit, err.Error()))
	}
	s.conn = conn

	if err := tuneBuffers(conn); err != nil {
		s.config.logger.Warn(err.Error())
	}
	return s, nil
}

// SetRecvTimeout sets the receive timeout that ArmReadDeadline applies; it
// does not set a deadline itself. A receive loop that calls ArmReadDeadline
// before every blocking receive wakes periodically and can re-check a
// running flag instead of blocking forever.
func (s *Socket) SetRecvTimeout(d time.Duration) {
	s.recvTimeout = d
}

// ArmReadDeadline re-applies the configured receive timeout. Call this
// immediately before every blocking read/batched-read.
func (s *Socket) ArmReadDeadline() error {
	if s.recvTimeout <= 0 {
		return nil
	}
	return s.conn.SetReadDeadline(time.Now().Add(s.recvTimeout))
}

// Conn exposes the underlying *net.UDPConn for vectored/batched I/O helpers
// (see package netbatch) that need direct access to the socket descriptor.
func (s *Socket) Conn() *net.UDPConn { return s.conn }

// Destination returns the address set by Dial, or the zero value for a
// Bind-constructed (receive-role) Socket.
func (s *Socket) Destination() netip.AddrPort { return s.dest }

// LocalAddr returns the socket's bound local address.
func (s *Socket) LocalAddr() netip.AddrPort {
	if s.conn == nil {
		return netip.AddrPort{}
	}
	a, _ := netip.ParseAddrPort(s.conn.LocalAddr().String())
	return a
}

func (s *Socket) close(cause error) error {
	return s.closeErr.Close(func() (errs []error) {
		errs = append(errs, cause)
		if s.conn != nil {
			errs = append(errs, s.conn.Close())
		}
		return errs
	})
}

// Close releases the socket. Idempotent.
func (s *Socket) Close() error { return s.close(nil) }
