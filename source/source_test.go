package source_test

import (
	"net"
	"testing"
	"time"

	"bou.ke/monkey"
	"github.com/lysShub/netkit/debug"
	"github.com/lysShub/udpframe/proto"
	"github.com/lysShub/udpframe/sink"
	"github.com/lysShub/udpframe/source"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func Test_SinkToSource_RoundTrip_SmallFrame(t *testing.T) {
	src, err := source.New(0, nil)
	require.NoError(t, err)
	defer src.Close()
	src.Start()

	snk, err := sink.New(src.LocalAddr(), nil)
	require.NoError(t, err)
	defer snk.Close()

	require.NoError(t, snk.SendFrame([]byte("hello")))

	data, id, ok := src.PopFrame(2 * time.Second)
	require.True(t, ok)
	require.Equal(t, uint32(0), id)
	require.Equal(t, []byte("hello"), data)
}

func Test_SinkToSource_RoundTrip_MultiFragment(t *testing.T) {
	src, err := source.New(0, nil)
	require.NoError(t, err)
	defer src.Close()
	src.Start()

	snk, err := sink.New(src.LocalAddr(), nil)
	require.NoError(t, err)
	defer snk.Close()

	buf := make([]byte, 3*proto.MaxPayload+123)
	for i := range buf {
		buf[i] = byte(i)
	}
	require.NoError(t, snk.SendFrame(buf))

	data, id, ok := src.PopFrame(2 * time.Second)
	require.True(t, ok)
	require.Equal(t, uint32(0), id)
	require.Equal(t, buf, data)
}

func Test_SinkToSource_RoundTrip_MultipleFrames(t *testing.T) {
	src, err := source.New(0, nil)
	require.NoError(t, err)
	defer src.Close()
	src.Start()

	snk, err := sink.New(src.LocalAddr(), nil)
	require.NoError(t, err)
	defer snk.Close()

	for i := 0; i < 5; i++ {
		require.NoError(t, snk.SendFrame([]byte{byte(i)}))
	}

	for i := 0; i < 5; i++ {
		data, id, ok := src.PopFrame(2 * time.Second)
		require.True(t, ok)
		require.Equal(t, uint32(i), id)
		require.Equal(t, []byte{byte(i)}, data)
	}
}

func Test_PopFrame_TimesOutWhenIdle(t *testing.T) {
	src, err := source.New(0, nil)
	require.NoError(t, err)
	defer src.Close()
	src.Start()

	_, _, ok := src.PopFrame(50 * time.Millisecond)
	require.False(t, ok)
}

func Test_StartStop_Idempotent(t *testing.T) {
	src, err := source.New(0, nil)
	require.NoError(t, err)
	defer src.Close()

	src.Start()
	src.Start()
	src.Stop()
	src.Stop()
}

func Test_Close_WakesBlockedPopFrame(t *testing.T) {
	src, err := source.New(0, nil)
	require.NoError(t, err)
	src.Start()

	done := make(chan bool, 1)
	go func() {
		_, _, ok := src.PopFrame(-1)
		done <- ok
	}()

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, src.Close())

	select {
	case ok := <-done:
		require.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("PopFrame did not wake on Close")
	}
}

// Test_ShortDatagramDropped_DebugLogged forces debug.Debug() to true so the
// short-datagram warning branch in handleDatagram runs, then confirms the
// malformed datagram was silently dropped rather than surfaced as a frame.
func Test_ShortDatagramDropped_DebugLogged(t *testing.T) {
	monkey.Patch(debug.Debug, func() bool { return true })
	defer monkey.Unpatch(debug.Debug)

	src, err := source.New(0, nil)
	require.NoError(t, err)
	defer src.Close()
	src.Start()

	conn, err := net.Dial("udp", src.LocalAddr().String())
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte{1, 2, 3})
	require.NoError(t, err)

	_, _, ok := src.PopFrame(100 * time.Millisecond)
	require.False(t, ok)
}

// Test_ConcurrentSinks_AllFramesDelivered drives several independent Sinks
// at one Source concurrently, mirroring the corpus's errgroup-coordinated
// client/server test shape: each sink's frame-ids are only monotonic
// within that sink, so delivery is checked by count, not global order.
func Test_ConcurrentSinks_AllFramesDelivered(t *testing.T) {
	const nSinks = 4
	const framesPerSink = 5

	src, err := source.New(0, nil)
	require.NoError(t, err)
	defer src.Close()
	src.Start()

	var eg errgroup.Group
	for i := 0; i < nSinks; i++ {
		eg.Go(func() error {
			snk, err := sink.New(src.LocalAddr(), nil)
			if err != nil {
				return err
			}
			defer snk.Close()
			for j := 0; j < framesPerSink; j++ {
				if err := snk.SendFrame([]byte{byte(j)}); err != nil {
					return err
				}
			}
			return nil
		})
	}
	require.NoError(t, eg.Wait())

	received := 0
	for received < nSinks*framesPerSink {
		_, _, ok := src.PopFrame(2 * time.Second)
		require.True(t, ok)
		received++
	}
	require.Equal(t, nSinks*framesPerSink, received)
}
