// Package netbatch drives golang.org/x/net/ipv4's WriteBatch/ReadBatch,
// which submit/receive multiple UDP datagrams in a single sendmmsg/recvmmsg
// syscall on Linux and fall back to a per-datagram loop on platforms
// without batch syscall support.
package netbatch

import (
	"errors"
	"net"
	"syscall"

	"golang.org/x/net/ipv4"
)

// isTemporary reports whether err is a transient condition (EINTR,
// EAGAIN/EWOULDBLOCK) that a caller should retry without treating as
// frame/fragment loss.
func isTemporary(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, syscall.EINTR) || errors.Is(err, syscall.EAGAIN) || errors.Is(err, syscall.EWOULDBLOCK) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		// A deadline expiry also reports Temporary(); it is not retried so
		// that callers observe it via IsTimeout.
		return netErr.Temporary() && !netErr.Timeout()
	}
	return false
}

// IsTimeout reports whether err is a deadline expiry set by
// udpsock.Socket.SetRecvTimeout/ArmReadDeadline.
func IsTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// WriteAll submits every message in msgs via pc.WriteBatch, resubmitting
// the remainder on partial completion and retrying transparently on
// transient errors. It returns as soon as all messages are sent or a
// non-transient error occurs.
func WriteAll(pc *ipv4.PacketConn, msgs []ipv4.Message, flags int) error {
	sent := 0
	for sent < len(msgs) {
		n, err := pc.WriteBatch(msgs[sent:], flags)
		sent += n
		if err != nil {
			if isTemporary(err) {
				continue
			}
			return err
		}
	}
	return nil
}

// ReadBatch issues one batched receive into msgs, retrying transparently on
// EINTR/EAGAIN. It returns the number of datagrams filled, or an error for
// deadline expiry (IsTimeout) or a fatal socket error.
func ReadBatch(pc *ipv4.PacketConn, msgs []ipv4.Message, flags int) (int, error) {
	for {
		n, err := pc.ReadBatch(msgs, flags)
		if err != nil {
			if isTemporary(err) {
				continue
			}
			return n, err
		}
		return n, nil
	}
}
