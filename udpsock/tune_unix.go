//go:build !windows

package udpsock

import (
	"net"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// tuneBuffers requests a wantBufBytes send/receive kernel buffer and
// enables address reuse for fast rebind. The kernel silently caps the
// buffer request to its own ceiling (net.core.rmem_max/wmem_max).
func tuneBuffers(conn *net.UDPConn) error {
	raw, err := conn.SyscallConn()
	if err != nil {
		return errors.WithStack(err)
	}

	var setErr error
	err = raw.Control(func(fd uintptr) {
		if setErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_RCVBUF, wantBufBytes); setErr != nil {
			return
		}
		if setErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_SNDBUF, wantBufBytes); setErr != nil {
			return
		}
		setErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
	})
	if err != nil {
		return errors.WithStack(err)
	}
	return errors.WithStack(setErr)
}
