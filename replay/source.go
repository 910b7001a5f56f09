// Package replay contains a source that replays the UDP payloads
// of a pcap capture, as if they were received from a BLE bridge.
package replay

import (
	"context"
	"os"
	"sync/atomic"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	"github.com/squadracorsepolito/bletel/connector"
	"github.com/squadracorsepolito/bletel/internal"
	"go.opentelemetry.io/otel/attribute"
)

// Source writes the UDP payloads of a capture into its output connector.
type Source struct {
	tel *internal.Telemetry

	out connector.Connector[[]byte]

	path            string
	port            uint16
	realtime        bool
	speed           float64
	disconnectAtEOF bool

	file   *os.File
	reader *pcapgo.Reader

	// Telemetry metrics
	replayedPackets atomic.Int64
	skippedPackets  atomic.Int64
}

func NewSource(out connector.Connector[[]byte], cfg *Config) *Source {
	speed := cfg.Speed
	if speed <= 0 {
		speed = 1
	}

	return &Source{
		tel: internal.NewTelemetry(string(internal.StageKindSource), cfg.Name),

		out: out,

		path:            cfg.File,
		port:            cfg.Port,
		realtime:        cfg.Realtime,
		speed:           speed,
		disconnectAtEOF: cfg.DisconnectAtEOF,
	}
}

func (s *Source) Init(_ context.Context) error {
	file, err := os.Open(s.path)
	if err != nil {
		return err
	}

	reader, err := pcapgo.NewReader(file)
	if err != nil {
		file.Close()
		return err
	}

	s.file = file
	s.reader = reader

	s.tel.NewObservableCounter("replayed_packets", func() int64 { return s.replayedPackets.Load() })
	s.tel.NewObservableCounter("skipped_packets", func() int64 { return s.skippedPackets.Load() })

	s.tel.LogInfo("initialized", "file", s.path, "link_type", reader.LinkType().String(), "realtime", s.realtime)

	return nil
}

// Replayed returns the number of payloads written into the output.
func (s *Source) Replayed() int64 {
	return s.replayedPackets.Load()
}

// Run replays the capture until its end or until the context is done.
// The output connector is closed on return.
func (s *Source) Run(ctx context.Context) {
	defer s.out.Close()

	packetSource := gopacket.NewPacketSource(s.reader, s.reader.LinkType())
	packetSource.DecodeOptions = gopacket.DecodeOptions{Lazy: true, NoCopy: true}

	var lastCaptureTime time.Time

	for {
		select {
		case <-ctx.Done():
			return

		case packet, ok := <-packetSource.Packets():
			if !ok || packet == nil {
				s.tel.LogInfo("capture replayed", "packets", s.replayedPackets.Load())
				if s.disconnectAtEOF {
					_ = s.out.Write([]byte{})
				}
				return
			}

			captureTime := packet.Metadata().Timestamp
			if s.realtime && !lastCaptureTime.IsZero() {
				if !s.wait(ctx, captureTime.Sub(lastCaptureTime)) {
					return
				}
			}
			lastCaptureTime = captureTime

			payload, ok := s.extractPayload(packet)
			if !ok {
				s.skippedPackets.Add(1)
				continue
			}

			if err := s.out.Write(s.handlePayload(ctx, payload)); err != nil {
				s.tel.LogWarn("output closed, stopping")
				return
			}
		}
	}
}

func (s *Source) wait(ctx context.Context, delay time.Duration) bool {
	scaled := time.Duration(float64(delay) / s.speed)
	if scaled <= 0 {
		return true
	}

	timer := time.NewTimer(scaled)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func (s *Source) extractPayload(packet gopacket.Packet) ([]byte, bool) {
	udpLayer := packet.Layer(layers.LayerTypeUDP)
	if udpLayer == nil {
		return nil, false
	}

	udp, ok := udpLayer.(*layers.UDP)
	if !ok {
		return nil, false
	}

	if s.port != 0 && uint16(udp.DstPort) != s.port {
		return nil, false
	}

	return udp.Payload, true
}

func (s *Source) handlePayload(ctx context.Context, payload []byte) []byte {
	_, span := s.tel.NewTrace(ctx, "replay UDP payload")
	defer span.End()

	buf := make([]byte, len(payload))
	copy(buf, payload)

	span.SetAttributes(attribute.Int("payload_size", len(buf)))

	s.replayedPackets.Add(1)

	return buf
}

// Stop closes the capture file.
func (s *Source) Stop() {
	if s.file != nil {
		s.file.Close()
	}
}
