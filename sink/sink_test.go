package sink_test

import (
	"testing"
	"time"

	"github.com/lysShub/udpframe/proto"
	"github.com/lysShub/udpframe/sink"
	"github.com/lysShub/udpframe/udpsock"
	"github.com/stretchr/testify/require"
)

func Test_SendFrame_EmitsExpectedFragmentCount(t *testing.T) {
	rx, err := udpsock.Bind(0, nil)
	require.NoError(t, err)
	defer rx.Close()

	s, err := sink.New(rx.LocalAddr(), nil)
	require.NoError(t, err)
	defer s.Close()

	buf := make([]byte, 2*proto.MaxPayload+7)
	require.NoError(t, s.SendFrame(buf))

	require.NoError(t, rx.Conn().SetReadDeadline(time.Now().Add(2*time.Second)))
	got := make([]proto.Header, 0, 3)
	recvBuf := make([]byte, 2048)
	for len(got) < 3 {
		n, _, err := rx.Conn().ReadFromUDP(recvBuf)
		require.NoError(t, err)
		h, err := proto.Decode(recvBuf[:n])
		require.NoError(t, err)
		got = append(got, h)
	}

	require.Len(t, got, 3)
	for i, h := range got {
		require.Equal(t, uint32(0), h.FrameID)
		require.Equal(t, uint32(i), h.FragIndex)
		require.Equal(t, uint32(3), h.TotalFrags)
	}
}

func Test_SendFrame_FrameIDIncrements(t *testing.T) {
	rx, err := udpsock.Bind(0, nil)
	require.NoError(t, err)
	defer rx.Close()

	s, err := sink.New(rx.LocalAddr(), nil)
	require.NoError(t, err)
	defer s.Close()

	require.Equal(t, uint32(0), s.FrameCounter())
	require.NoError(t, s.SendFrame([]byte("a")))
	require.Equal(t, uint32(1), s.FrameCounter())
	require.NoError(t, s.SendFrame([]byte("b")))
	require.Equal(t, uint32(2), s.FrameCounter())
}
