package packetizer_test

import (
	"testing"

	"github.com/lysShub/udpframe/packetizer"
	"github.com/lysShub/udpframe/proto"
	"github.com/stretchr/testify/require"
)

func Test_PrepareFrame_FragmentCount(t *testing.T) {
	p := packetizer.New()

	cases := []struct {
		size int
		want int
	}{
		{0, 1},
		{1, 1},
		{proto.MaxPayload, 1},
		{proto.MaxPayload + 1, 2},
		{3 * proto.MaxPayload, 3},
		{1407, 2},
	}
	for _, c := range cases {
		buf := make([]byte, c.size)
		msgs, err := p.PrepareFrame(buf, 1)
		require.NoError(t, err)
		require.Equal(t, c.want, len(msgs))
		require.Equal(t, c.want, p.Count())
	}
}

func Test_PrepareFrame_HeaderFields(t *testing.T) {
	p := packetizer.New()
	buf := make([]byte, 3*proto.MaxPayload)

	msgs, err := p.PrepareFrame(buf, 42)
	require.NoError(t, err)
	require.Len(t, msgs, 3)

	for i, m := range msgs {
		require.Len(t, m.Buffers, 2)
		h, err := proto.Decode(m.Buffers[0])
		require.NoError(t, err)
		require.Equal(t, uint32(42), h.FrameID)
		require.Equal(t, uint32(i), h.FragIndex)
		require.Equal(t, uint32(3), h.TotalFrags)
	}
}

func Test_PrepareFrame_ShortFinalFragment(t *testing.T) {
	p := packetizer.New()
	buf := make([]byte, proto.MaxPayload+7)

	msgs, err := p.PrepareFrame(buf, 1)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	require.Len(t, msgs[0].Buffers[1], proto.MaxPayload)
	require.Len(t, msgs[1].Buffers[1], 7)
}

func Test_PrepareFrame_EmptyFrame(t *testing.T) {
	p := packetizer.New()

	msgs, err := p.PrepareFrame(nil, 1)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	require.Len(t, msgs[0].Buffers[1], 0)

	h, err := proto.Decode(msgs[0].Buffers[0])
	require.NoError(t, err)
	require.Equal(t, uint32(1), h.TotalFrags)
	require.Equal(t, uint32(0), h.FragIndex)
}

func Test_PrepareFrame_ZeroCopyPayload(t *testing.T) {
	p := packetizer.New()
	buf := make([]byte, proto.MaxPayload)
	for i := range buf {
		buf[i] = 0xAA
	}

	msgs, err := p.PrepareFrame(buf, 1)
	require.NoError(t, err)

	buf[0] = 0xFF // mutate after preparation
	require.Equal(t, byte(0xFF), msgs[0].Buffers[1][0], "payload slice must alias the caller's buffer")
}

