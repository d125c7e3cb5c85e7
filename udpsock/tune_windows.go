//go:build windows

package udpsock

import (
	"net"

	"github.com/pkg/errors"
	"golang.org/x/sys/windows"
)

// tuneBuffers mirrors tune_unix.go's socket-buffer/reuse tuning using the
// Windows sockopt equivalents.
func tuneBuffers(conn *net.UDPConn) error {
	raw, err := conn.SyscallConn()
	if err != nil {
		return errors.WithStack(err)
	}

	var setErr error
	err = raw.Control(func(fd uintptr) {
		h := windows.Handle(fd)
		if setErr = windows.SetsockoptInt(h, windows.SOL_SOCKET, windows.SO_RCVBUF, wantBufBytes); setErr != nil {
			return
		}
		if setErr = windows.SetsockoptInt(h, windows.SOL_SOCKET, windows.SO_SNDBUF, wantBufBytes); setErr != nil {
			return
		}
		setErr = windows.SetsockoptInt(h, windows.SOL_SOCKET, windows.SO_REUSEADDR, 1)
	})
	if err != nil {
		return errors.WithStack(err)
	}
	return errors.WithStack(setErr)
}
