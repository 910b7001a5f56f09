package config

import (
	"fmt"
	"strings"

	"github.com/squadracorsepolito/bletel/replay"
	"github.com/squadracorsepolito/bletel/schema"
	"github.com/squadracorsepolito/bletel/session"
	"github.com/squadracorsepolito/bletel/udp"
)

// GetQueueSize returns the capacity of the connector between
// the source and the session of the device.
func (d *DeviceFile) GetQueueSize() int {
	if d.QueueSize == 0 {
		return defaultQueueSize
	}
	return d.QueueSize
}

// GetSourceKind returns the kind of the source, udp by default.
func (d *DeviceFile) GetSourceKind() SourceKind {
	if d.Source.Kind == "" {
		return SourceUDP
	}
	return d.Source.Kind
}

// SessionConfig converts the device into the configuration of its session.
// Schema errors are reported later, when the session is created.
func (d *DeviceFile) SessionConfig() (*session.Config, error) {
	cfg := session.NewDefaultConfig()

	cfg.Name = d.Name

	if d.LineWindow != 0 {
		cfg.LineWindow = d.LineWindow
	}
	if d.StopOnDisconnect != nil {
		cfg.StopOnDisconnect = *d.StopOnDisconnect
	}

	signals := make([]schema.Signal, 0, len(d.Signals))
	for _, sf := range d.Signals {
		sig, err := sf.toSignal()
		if err != nil {
			return nil, fmt.Errorf("device %q: %w", d.Name, err)
		}
		signals = append(signals, sig)
	}
	cfg.Signals = signals

	tmpl := make(schema.Template, 0, len(d.Packet))
	for _, gf := range d.Packet {
		tmpl = append(tmpl, schema.Group{Signal: gf.Signal, Repeat: gf.Repeat})
	}
	cfg.Template = tmpl

	return cfg, nil
}

// UDPConfig returns the configuration of a udp source.
func (d *DeviceFile) UDPConfig() *udp.Config {
	cfg := udp.NewDefaultConfig()

	cfg.Name = d.Name

	if d.Source.Address != "" {
		cfg.IPAddr = d.Source.Address
	}
	if d.Source.Port != 0 {
		cfg.Port = d.Source.Port
	}
	if d.Source.PayloadSize != 0 {
		cfg.PayloadSize = d.Source.PayloadSize
	}

	return cfg
}

// ReplayConfig returns the configuration of a replay source.
func (d *DeviceFile) ReplayConfig() *replay.Config {
	cfg := replay.NewDefaultConfig()

	cfg.Name = d.Name
	cfg.File = d.Source.File
	cfg.Realtime = d.Source.Realtime

	if d.Source.Port != 0 {
		cfg.Port = d.Source.Port
	}
	if d.Source.Speed > 0 {
		cfg.Speed = d.Source.Speed
	}
	if d.Source.DisconnectAtEOF != nil {
		cfg.DisconnectAtEOF = *d.Source.DisconnectAtEOF
	}

	return cfg
}

func (sf *SignalFile) toSignal() (schema.Signal, error) {
	datatype, err := schema.ParseDatatype(sf.Type)
	if err != nil {
		return schema.Signal{}, fmt.Errorf("signal %q: %w", sf.Name, err)
	}

	sig := schema.Signal{
		Name:     sf.Name,
		Length:   sf.Length,
		Datatype: datatype,
	}

	if sf.Plot == nil {
		return sig, nil
	}

	plot, err := sf.Plot.toPlotDirective()
	if err != nil {
		return schema.Signal{}, fmt.Errorf("signal %q: %w", sf.Name, err)
	}
	sig.Plot = plot

	return sig, nil
}

func (pf *PlotFile) toPlotDirective() (*schema.PlotDirective, error) {
	pd := &schema.PlotDirective{}

	switch strings.ToLower(pf.Kind) {
	case "line", "":
		pd.Kind = schema.PlotLine
	case "heatmap":
		pd.Kind = schema.PlotHeatmap
		pd.Rows = pf.Rows
		pd.Cols = pf.Cols
	default:
		return nil, fmt.Errorf("%w %q", ErrUnknownPlotKind, pf.Kind)
	}

	if pf.Color != "" {
		color, err := schema.ParseColor(pf.Color)
		if err != nil {
			return nil, err
		}
		pd.Color = &color
	}

	if pf.Range != nil {
		if len(pf.Range) != 2 {
			return nil, ErrInvalidRange
		}
		pd.Range = &schema.Range{Min: pf.Range[0], Max: pf.Range[1]}
	}

	return pd, nil
}
