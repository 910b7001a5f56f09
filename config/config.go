// Package config loads the description of the devices
// and of their packets from a YAML file.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/squadracorsepolito/bletel/telemetry"
	"gopkg.in/yaml.v3"
)

const defaultQueueSize = 1024

// SourceKind selects the transport a device is read from.
type SourceKind string

const (
	SourceUDP    SourceKind = "udp"
	SourceReplay SourceKind = "replay"
)

var (
	ErrNoDevices         = errors.New("config: no devices")
	ErrDuplicateDevice   = errors.New("config: duplicate device")
	ErrUnknownSourceKind = errors.New("config: unknown source kind")
	ErrUnknownPlotKind   = errors.New("config: unknown plot kind")
	ErrInvalidRange      = errors.New("config: range must have two values")
	ErrInvalidLogLevel   = errors.New("config: invalid log level")
	ErrMissingReplayFile = errors.New("config: replay source without file")
	ErrInvalidQueueSize  = errors.New("config: queue size must be positive")
)

// File is the root of the configuration file.
type File struct {
	LogLevel  string         `yaml:"log_level"`
	Telemetry *TelemetryFile `yaml:"telemetry"`
	Devices   []*DeviceFile  `yaml:"devices"`
}

type TelemetryFile struct {
	Enabled        bool          `yaml:"enabled"`
	ServiceName    string        `yaml:"service_name"`
	TraceEndpoint  string        `yaml:"trace_endpoint"`
	MetricEndpoint string        `yaml:"metric_endpoint"`
	SampleRatio    *float64      `yaml:"sample_ratio"`
	ExportInterval time.Duration `yaml:"export_interval"`
}

type DeviceFile struct {
	Name             string        `yaml:"name"`
	QueueSize        int           `yaml:"queue_size"`
	LineWindow       int           `yaml:"line_window"`
	StopOnDisconnect *bool         `yaml:"stop_on_disconnect"`
	Source           SourceFile    `yaml:"source"`
	Signals          []*SignalFile `yaml:"signals"`
	Packet           []GroupFile   `yaml:"packet"`
}

type SourceFile struct {
	Kind SourceKind `yaml:"kind"`

	Address     string `yaml:"address"`
	Port        uint16 `yaml:"port"`
	PayloadSize int    `yaml:"payload_size"`

	File            string  `yaml:"file"`
	Realtime        bool    `yaml:"realtime"`
	Speed           float64 `yaml:"speed"`
	DisconnectAtEOF *bool   `yaml:"disconnect_at_eof"`
}

type SignalFile struct {
	Name   string    `yaml:"name"`
	Length int       `yaml:"length"`
	Type   string    `yaml:"type"`
	Plot   *PlotFile `yaml:"plot"`
}

type PlotFile struct {
	Kind  string    `yaml:"kind"`
	Rows  int       `yaml:"rows"`
	Cols  int       `yaml:"cols"`
	Color string    `yaml:"color"`
	Range []float64 `yaml:"range"`
}

type GroupFile struct {
	Signal string `yaml:"signal"`
	Repeat int    `yaml:"repeat"`
}

// Load reads and validates the configuration file at path.
func Load(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return Parse(f)
}

// Parse decodes and validates a configuration. Unknown keys are rejected.
func Parse(r io.Reader) (*File, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	file := &File{}
	if err := dec.Decode(file); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	if err := file.validate(); err != nil {
		return nil, err
	}

	return file, nil
}

func (f *File) validate() error {
	if _, err := f.Level(); err != nil {
		return err
	}

	if len(f.Devices) == 0 {
		return ErrNoDevices
	}

	names := make(map[string]struct{}, len(f.Devices))
	for _, dev := range f.Devices {
		if _, ok := names[dev.Name]; ok {
			return fmt.Errorf("%w: %q", ErrDuplicateDevice, dev.Name)
		}
		names[dev.Name] = struct{}{}

		if dev.QueueSize < 0 {
			return fmt.Errorf("device %q: %w", dev.Name, ErrInvalidQueueSize)
		}

		switch dev.Source.Kind {
		case SourceUDP, "":
		case SourceReplay:
			if dev.Source.File == "" {
				return fmt.Errorf("device %q: %w", dev.Name, ErrMissingReplayFile)
			}
		default:
			return fmt.Errorf("device %q: %w %q", dev.Name, ErrUnknownSourceKind, dev.Source.Kind)
		}
	}

	return nil
}

// Level returns the configured log level, info by default.
func (f *File) Level() (slog.Level, error) {
	if f.LogLevel == "" {
		return slog.LevelInfo, nil
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(f.LogLevel)); err != nil {
		return level, fmt.Errorf("%w: %q", ErrInvalidLogLevel, f.LogLevel)
	}

	return level, nil
}

// TelemetryConfig returns the telemetry configuration,
// or nil when the telemetry is disabled.
func (f *File) TelemetryConfig() *telemetry.Config {
	if f.Telemetry == nil || !f.Telemetry.Enabled {
		return nil
	}

	cfg := telemetry.NewDefaultConfig()

	if f.Telemetry.ServiceName != "" {
		cfg.ServiceName = f.Telemetry.ServiceName
	}
	if f.Telemetry.TraceEndpoint != "" {
		cfg.TraceEndpoint = f.Telemetry.TraceEndpoint
	}
	if f.Telemetry.MetricEndpoint != "" {
		cfg.MetricEndpoint = f.Telemetry.MetricEndpoint
	}
	if f.Telemetry.SampleRatio != nil {
		cfg.SampleRatio = *f.Telemetry.SampleRatio
	}
	if f.Telemetry.ExportInterval > 0 {
		cfg.ExportInterval = f.Telemetry.ExportInterval
	}

	return cfg
}
