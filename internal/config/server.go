package config

import (
	"errors"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

const (
	AccountStorePostgres = "postgres"
	AccountStoreRedis    = "redis"
	AccountStoreNone     = "none"
)

type ServerConfig struct {
	HTTPAddr string `env:"HTTP_ADDR" envDefault:":8080"`

	JWTSecret        string `env:"JWT_SECRET,required,notEmpty"`
	GuestTokenPrefix string `env:"GUEST_TOKEN_PREFIX" envDefault:"GUEST_"`

	AccountStore string `env:"ACCOUNT_STORE" envDefault:"postgres"`
	PostgresDSN  string `env:"POSTGRES_DSN"`
	RedisURL     string `env:"REDIS_URL"`

	RoomGrace         time.Duration `env:"ROOM_GRACE" envDefault:"30s"`
	ConnRemovalGrace  time.Duration `env:"CONN_REMOVAL_GRACE" envDefault:"30.1s"`
	SettleAbandonment bool          `env:"SETTLE_ABANDONMENT" envDefault:"false"`

	WSSendBuffer   int      `env:"WS_SEND_BUFFER" envDefault:"64"`
	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envSeparator:","`
}

func LoadServer() (ServerConfig, error) {
	var cfg ServerConfig
	if err := env.Parse(&cfg); err != nil {
		return cfg, err
	}
	cfg.AccountStore = strings.ToLower(strings.TrimSpace(cfg.AccountStore))
	return cfg, cfg.Validate()
}

// Validate checks cross-field constraints env tags cannot express.
func (c ServerConfig) Validate() error {
	if c.RoomGrace <= 0 {
		return errors.New("ROOM_GRACE must be positive")
	}
	// Connection removal must never run ahead of room cleanup.
	if c.ConnRemovalGrace <= c.RoomGrace {
		return errors.New("CONN_REMOVAL_GRACE must be greater than ROOM_GRACE")
	}
	switch c.AccountStore {
	case AccountStorePostgres:
		if c.PostgresDSN == "" {
			return errors.New("POSTGRES_DSN is required when ACCOUNT_STORE=postgres")
		}
	case AccountStoreRedis:
		if c.RedisURL == "" {
			return errors.New("REDIS_URL is required when ACCOUNT_STORE=redis")
		}
	case AccountStoreNone:
	default:
		return errors.New("ACCOUNT_STORE must be one of postgres, redis, none")
	}
	return nil
}
