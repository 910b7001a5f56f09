package router

// DefaultLineWindow is the number of packets a line sink keeps
// for every occurrence of its signal in a packet.
const DefaultLineWindow = 100

type Config struct {
	// LineWindow is multiplied by the repeat count of a signal
	// to obtain the window of its line sink.
	LineWindow int
}

func NewDefaultConfig() *Config {
	return &Config{
		LineWindow: DefaultLineWindow,
	}
}
