package replay

import (
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	"github.com/squadracorsepolito/bletel/connector"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturedDatagram struct {
	dstPort uint16
	payload []byte
}

func writeCapture(t *testing.T, datagrams []capturedDatagram, gap time.Duration) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "capture.pcap")

	file, err := os.Create(path)
	require.NoError(t, err)
	defer file.Close()

	w := pcapgo.NewWriter(file)
	require.NoError(t, w.WriteFileHeader(65536, layers.LinkTypeEthernet))

	start := time.Unix(1_700_000_000, 0)

	for idx, dg := range datagrams {
		eth := &layers.Ethernet{
			SrcMAC:       net.HardwareAddr{0x02, 0, 0, 0, 0, 1},
			DstMAC:       net.HardwareAddr{0x02, 0, 0, 0, 0, 2},
			EthernetType: layers.EthernetTypeIPv4,
		}
		ip := &layers.IPv4{
			Version:  4,
			TTL:      64,
			Protocol: layers.IPProtocolUDP,
			SrcIP:    net.IPv4(127, 0, 0, 1),
			DstIP:    net.IPv4(127, 0, 0, 1),
		}
		udp := &layers.UDP{
			SrcPort: 40_000,
			DstPort: layers.UDPPort(dg.dstPort),
		}
		require.NoError(t, udp.SetNetworkLayerForChecksum(ip))

		buf := gopacket.NewSerializeBuffer()
		opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
		require.NoError(t, gopacket.SerializeLayers(buf, opts, eth, ip, udp, gopacket.Payload(dg.payload)))

		data := buf.Bytes()
		ci := gopacket.CaptureInfo{
			Timestamp:     start.Add(time.Duration(idx) * gap),
			CaptureLength: len(data),
			Length:        len(data),
		}
		require.NoError(t, w.WritePacket(ci, data))
	}

	return path
}

func runSource(t *testing.T, cfg *Config, out connector.Connector[[]byte]) *Source {
	t.Helper()

	src := NewSource(out, cfg)
	require.NoError(t, src.Init(t.Context()))
	t.Cleanup(src.Stop)

	done := make(chan struct{})
	go func() {
		src.Run(t.Context())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("replay did not end")
	}

	return src
}

func readAll(t *testing.T, out connector.Connector[[]byte]) [][]byte {
	t.Helper()

	res := [][]byte{}
	for {
		item, err := out.Read()
		if err != nil {
			require.ErrorIs(t, err, connector.ErrClosed)
			return res
		}
		res = append(res, item)
	}
}

func Test_Source(t *testing.T) {
	assert := assert.New(t)

	path := writeCapture(t, []capturedDatagram{
		{dstPort: 20_000, payload: []byte{0x01, 0x02}},
		{dstPort: 9_999, payload: []byte{0xaa}},
		{dstPort: 20_000, payload: []byte{0x03, 0x04, 0x05}},
	}, time.Millisecond)

	cfg := NewDefaultConfig()
	cfg.File = path

	out := connector.NewChannel[[]byte](8)
	src := runSource(t, cfg, out)

	assert.Equal([][]byte{{0x01, 0x02}, {0x03, 0x04, 0x05}, {}}, readAll(t, out))
	assert.Equal(int64(2), src.Replayed())
}

func Test_Source_AnyPortNoDisconnect(t *testing.T) {
	path := writeCapture(t, []capturedDatagram{
		{dstPort: 1, payload: []byte{0x01}},
		{dstPort: 2, payload: []byte{0x02}},
	}, time.Millisecond)

	cfg := NewDefaultConfig()
	cfg.File = path
	cfg.Port = 0
	cfg.DisconnectAtEOF = false

	out := connector.NewChannel[[]byte](8)
	runSource(t, cfg, out)

	assert.Equal(t, [][]byte{{0x01}, {0x02}}, readAll(t, out))
}

func Test_Source_Realtime(t *testing.T) {
	path := writeCapture(t, []capturedDatagram{
		{dstPort: 20_000, payload: []byte{0x01}},
		{dstPort: 20_000, payload: []byte{0x02}},
		{dstPort: 20_000, payload: []byte{0x03}},
	}, 40*time.Millisecond)

	cfg := NewDefaultConfig()
	cfg.File = path
	cfg.Realtime = true

	out := connector.NewChannel[[]byte](8)

	start := time.Now()
	runSource(t, cfg, out)

	assert.GreaterOrEqual(t, time.Since(start), 80*time.Millisecond)
	assert.Len(t, readAll(t, out), 4)
}

func Test_Source_MissingFile(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.File = filepath.Join(t.TempDir(), "missing.pcap")

	src := NewSource(connector.NewChannel[[]byte](1), cfg)
	assert.Error(t, src.Init(t.Context()))
}
