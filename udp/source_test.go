package udp

import (
	"context"
	"net"
	"testing"

	"github.com/squadracorsepolito/bletel/connector"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_Source(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	out := connector.NewChannel[[]byte](8)

	cfg := NewDefaultConfig()
	cfg.Port = 0

	src := NewSource(out, cfg)
	require.NoError(src.Init(t.Context()))

	ctx, cancel := context.WithCancel(t.Context())

	done := make(chan struct{})
	go func() {
		src.Run(ctx)
		close(done)
	}()

	conn, err := net.Dial("udp", src.Addr().String())
	require.NoError(err)
	defer conn.Close()

	datagrams := [][]byte{{0x01, 0x02, 0x03}, {0xff}, {0x10, 0x20}}
	for _, dg := range datagrams {
		_, err := conn.Write(dg)
		require.NoError(err)
	}

	for _, expected := range datagrams {
		got, err := out.Read()
		require.NoError(err)
		assert.Equal(expected, got)
	}

	cancel()
	<-done

	// The output is closed once the source stops
	_, err = out.Read()
	assert.ErrorIs(err, connector.ErrClosed)

	src.Stop()
}

func Test_Source_InvalidAddress(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.IPAddr = "not an address"

	src := NewSource(connector.NewChannel[[]byte](1), cfg)
	assert.Error(t, src.Init(t.Context()))
}

func Test_Source_Truncated(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	out := connector.NewChannel[[]byte](8)

	cfg := NewDefaultConfig()
	cfg.Port = 0
	cfg.PayloadSize = 4

	src := NewSource(out, cfg)
	require.NoError(src.Init(t.Context()))

	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()

	go src.Run(ctx)

	conn, err := net.Dial("udp", src.Addr().String())
	require.NoError(err)
	defer conn.Close()

	_, err = conn.Write([]byte{1, 2, 3, 4})
	require.NoError(err)
	_, err = conn.Write([]byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10})
	require.NoError(err)

	exact, err := out.Read()
	require.NoError(err)
	assert.Equal([]byte{1, 2, 3, 4}, exact)

	// A longer datagram never reaches the session with a valid length
	long, err := out.Read()
	require.NoError(err)
	assert.Len(long, 5)

	assert.Equal(int64(1), src.Truncated())
}

func Test_Config_FitPacket(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.PayloadSize = 16

	cfg.FitPacket(16)
	assert.Equal(t, 17, cfg.PayloadSize)

	cfg.FitPacket(4)
	assert.Equal(t, 17, cfg.PayloadSize)

	cfg = NewDefaultConfig()
	cfg.FitPacket(114)
	assert.Equal(t, defaultUDPPayloadSize, cfg.PayloadSize)
}
