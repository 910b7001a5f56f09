package replay

type Config struct {
	Name string

	// File is the path of the pcap capture.
	File string
	// Port filters the UDP datagrams by destination port.
	// Zero accepts every port.
	Port uint16

	// Realtime paces the replay with the capture timestamps.
	Realtime bool
	// Speed scales the pacing of a realtime replay.
	Speed float64

	// DisconnectAtEOF forwards an empty packet once the capture is over.
	DisconnectAtEOF bool
}

func NewDefaultConfig() *Config {
	return &Config{
		Name: "replay",

		Port: 20_000,

		Realtime: false,
		Speed:    1,

		DisconnectAtEOF: true,
	}
}
