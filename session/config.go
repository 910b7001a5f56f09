package session

import (
	"github.com/squadracorsepolito/bletel/router"
	"github.com/squadracorsepolito/bletel/schema"
)

type Config struct {
	*router.Config

	// Name identifies the device in logs and metrics.
	Name string

	Signals  []schema.Signal
	Template schema.Template

	// StopOnDisconnect ends the session when the device disconnects.
	StopOnDisconnect bool
}

func NewDefaultConfig() *Config {
	return &Config{
		Config: router.NewDefaultConfig(),

		Name: "device",

		StopOnDisconnect: true,
	}
}
