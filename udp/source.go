// Package udp contains a source that receives raw packets
// forwarded as UDP datagrams by a BLE bridge.
package udp

import (
	"context"
	"errors"
	"net"
	"net/netip"
	"sync/atomic"

	"github.com/squadracorsepolito/bletel/connector"
	"github.com/squadracorsepolito/bletel/internal"
	"go.opentelemetry.io/otel/attribute"
)

// Source writes the payload of every datagram into its output connector.
// An empty datagram is forwarded as is and reaches the session
// as a disconnection.
type Source struct {
	tel *internal.Telemetry

	out connector.Connector[[]byte]

	ipAddr      string
	port        uint16
	payloadSize int

	conn *net.UDPConn

	// Telemetry metrics
	receivedBytes      atomic.Int64
	receivedDatagrams  atomic.Int64
	truncatedDatagrams atomic.Int64
}

func NewSource(out connector.Connector[[]byte], cfg *Config) *Source {
	payloadSize := cfg.PayloadSize
	if payloadSize <= 0 {
		payloadSize = defaultUDPPayloadSize
	}

	return &Source{
		tel: internal.NewTelemetry(string(internal.StageKindSource), cfg.Name),

		out: out,

		ipAddr:      cfg.IPAddr,
		port:        cfg.Port,
		payloadSize: payloadSize,
	}
}

func (s *Source) Init(_ context.Context) error {
	parsedAddr, err := netip.ParseAddr(s.ipAddr)
	if err != nil {
		return err
	}

	addr := net.UDPAddrFromAddrPort(netip.AddrPortFrom(parsedAddr, s.port))
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return err
	}

	s.conn = conn

	s.initMetrics()

	s.tel.LogInfo("initialized", "address", conn.LocalAddr().String())

	return nil
}

func (s *Source) initMetrics() {
	s.tel.NewObservableCounter("received_bytes", func() int64 { return s.receivedBytes.Load() })
	s.tel.NewObservableCounter("received_datagrams", func() int64 { return s.receivedDatagrams.Load() })
	s.tel.NewObservableCounter("truncated_datagrams", func() int64 { return s.truncatedDatagrams.Load() })
}

// Truncated returns the number of datagrams longer than the payload size.
func (s *Source) Truncated() int64 {
	return s.truncatedDatagrams.Load()
}

// Addr returns the local address the source listens on.
func (s *Source) Addr() net.Addr {
	return s.conn.LocalAddr()
}

// Run reads datagrams until the context is done or the connection fails.
// The output connector is closed on return.
func (s *Source) Run(ctx context.Context) {
	defer s.out.Close()

	// Closing the connection is the only way to unblock a pending read
	go func() {
		<-ctx.Done()
		s.conn.Close()
	}()

	// One extra byte tells a datagram of exactly payloadSize bytes
	// from a longer one cut by the read
	buf := make([]byte, s.payloadSize+1)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		n, err := s.conn.Read(buf)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				select {
				case <-ctx.Done():
				default:
					s.tel.LogError("failed to read connection", err)
				}
				return
			}

			s.tel.LogError("failed to read datagram", err)

			return
		}

		if n > s.payloadSize {
			s.truncatedDatagrams.Add(1)
			s.tel.LogWarn("datagram truncated", "payload_size", s.payloadSize)
		}

		if err := s.out.Write(s.handleBuf(ctx, buf[:n])); err != nil {
			s.tel.LogWarn("output closed, stopping")
			return
		}
	}
}

func (s *Source) handleBuf(ctx context.Context, buf []byte) []byte {
	_, span := s.tel.NewTrace(ctx, "receive UDP datagram")
	defer span.End()

	// The read buffer is reused, so the payload is copied
	payload := make([]byte, len(buf))
	copy(payload, buf)

	span.SetAttributes(attribute.Int("payload_size", len(payload)))

	s.receivedBytes.Add(int64(len(payload)))
	s.receivedDatagrams.Add(1)

	return payload
}

// Stop closes the connection.
func (s *Source) Stop() {
	if s.conn != nil {
		s.conn.Close()
	}
}
