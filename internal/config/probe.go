package config

import "github.com/caarlos0/env/v11"

type ProbeConfig struct {
	WSURL  string `env:"WS_URL" envDefault:"ws://localhost:8080/ws"`
	Token  string `env:"PROBE_TOKEN" envDefault:"GUEST_probe"`
	RoomID string `env:"PROBE_ROOM" envDefault:"probe-room"`
	Create bool   `env:"PROBE_CREATE" envDefault:"true"`
}

func LoadProbe() (ProbeConfig, error) {
	var cfg ProbeConfig
	err := env.Parse(&cfg)
	return cfg, err
}
