// Package config loads service settings from the environment.
package config

import (
	"fmt"

	"atelier-server-go/db"

	"github.com/caarlos0/env/v11"
)

// Config holds every setting the service reads at startup
type Config struct {
	HTTPAddr string `env:"HTTP_ADDR" envDefault:":8080"`
	GinMode  string `env:"GIN_MODE" envDefault:"release"`

	RedisAddr     string `env:"REDIS_ADDR" envDefault:"127.0.0.1:6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"8"`
	RedisPrefix   string `env:"REDIS_PREFIX" envDefault:"atelier:"`

	LocalStoreDriver db.Driver `env:"LOCAL_STORE_DRIVER" envDefault:"sqlite"`
	LocalStorePath   string    `env:"LOCAL_STORE_PATH" envDefault:"atelier.db"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"console"`

	DefaultClassroomName string `env:"DEFAULT_CLASSROOM_NAME" envDefault:"Classe 1"`
}

// Load parses the process environment
func Load() (Config, error) {
	return LoadFrom(nil)
}

// LoadFrom parses the given variables instead of the process environment when vars is non-nil
func LoadFrom(vars map[string]string) (Config, error) {
	var cfg Config
	opts := env.Options{}
	if vars != nil {
		opts.Environment = vars
	}
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	switch cfg.LocalStoreDriver {
	case db.DriverMemory, db.DriverSQLite, db.DriverBolt:
	default:
		return Config{}, fmt.Errorf("unknown LOCAL_STORE_DRIVER %q", cfg.LocalStoreDriver)
	}
	return cfg, nil
}
