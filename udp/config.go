package udp

const defaultUDPPayloadSize = 1474

type Config struct {
	Name string

	IPAddr string
	Port   uint16

	// PayloadSize is the size of the read buffer.
	// Longer datagrams are truncated.
	PayloadSize int
}

func NewDefaultConfig() *Config {
	return &Config{
		Name: "udp",

		IPAddr: "127.0.0.1",
		Port:   20_000,

		PayloadSize: defaultUDPPayloadSize,
	}
}

// FitPacket grows the payload size so that a packet of rawLength bytes
// and any longer datagram are received without being cut to a valid length.
func (c *Config) FitPacket(rawLength int) {
	if c.PayloadSize <= rawLength {
		c.PayloadSize = rawLength + 1
	}
}
