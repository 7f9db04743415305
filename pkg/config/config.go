// Daemon and rack configuration loading
//
// Copyright (C) 2026 Go binding
//
// This file may be distributed under the terms of the GNU GPLv3 license.

// Package config loads the daemon configuration: which rack layout to
// open, how the simulation is clocked, remote I/O gateway addresses,
// the control server's bind and auth settings, and logging. Files are
// YAML; every key can be overridden from the environment with the AXL
// prefix (AXL_SERVER_BIND, AXL_MONITOR_DSN, ...).
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Rack    RackConfig    `mapstructure:"rack"`
	Server  ServerConfig  `mapstructure:"server"`
	Monitor MonitorConfig `mapstructure:"monitor"`
	Log     LogConfig     `mapstructure:"log"`
}

// RackConfig selects the rack layout and simulation clocking.
type RackConfig struct {
	// LayoutFile is a rack layout JSON file. Empty uses the built-in
	// default rack.
	LayoutFile string `mapstructure:"layout_file"`

	// LockFile overrides the hardware ownership lock path.
	LockFile string `mapstructure:"lock_file"`

	// TickPeriod is the rack clock period in seconds.
	TickPeriod float64 `mapstructure:"tick_period"`

	// TimeScale is simulated seconds per wall second.
	TimeScale float64 `mapstructure:"time_scale"`

	// Gateways mirrors digital modules onto remote Modbus-TCP devices.
	Gateways []GatewayConfig `mapstructure:"gateways"`
}

// GatewayConfig binds one digital module to a remote Modbus-TCP word
// image.
type GatewayConfig struct {
	Module  int           `mapstructure:"module"`
	Address string        `mapstructure:"address"`
	SlaveID uint16        `mapstructure:"slave_id"`
	InBase  uint16        `mapstructure:"in_base"`
	OutBase uint16        `mapstructure:"out_base"`
	Period  time.Duration `mapstructure:"period"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type ServerConfig struct {
	Bind string `mapstructure:"bind"`

	// PasswordHash is the argon2id-encoded operator password. Empty
	// disables authentication (development racks only).
	PasswordHash string `mapstructure:"password_hash"`

	// JWTSecretEnv names the environment variable carrying the token
	// signing secret.
	JWTSecretEnv string `mapstructure:"jwt_secret_env"`

	TokenTTL        time.Duration `mapstructure:"token_ttl"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type MonitorConfig struct {
	// DSN enables the Postgres sample archive when non-empty.
	DSN string `mapstructure:"dsn"`
}

type LogConfig struct {
	Level    string `mapstructure:"level"`
	Encoding string `mapstructure:"encoding"`
	File     string `mapstructure:"file"`
}

func setDefaults(v *viper.Viper) {
	// Optional keys get empty defaults so environment overrides reach
	// them even without a config file.
	v.SetDefault("rack.layout_file", "")
	v.SetDefault("rack.lock_file", "")
	v.SetDefault("rack.tick_period", 0.001)
	v.SetDefault("rack.time_scale", 1.0)

	v.SetDefault("server.bind", ":8417")
	v.SetDefault("server.password_hash", "")
	v.SetDefault("server.jwt_secret_env", "AXL_JWT_SECRET")
	v.SetDefault("server.token_ttl", "12h")
	v.SetDefault("server.shutdown_timeout", "10s")

	v.SetDefault("monitor.dsn", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.encoding", "console")
	v.SetDefault("log.file", "")
}

// Load reads a YAML config file and applies defaults and environment
// overrides. An empty path loads defaults and environment only.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("AXL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Rack.TickPeriod <= 0 {
		return fmt.Errorf("rack.tick_period must be positive, got %g", c.Rack.TickPeriod)
	}
	if c.Rack.TimeScale <= 0 {
		return fmt.Errorf("rack.time_scale must be positive, got %g", c.Rack.TimeScale)
	}
	for i, gw := range c.Rack.Gateways {
		if gw.Address == "" {
			return fmt.Errorf("rack.gateways[%d]: address is required", i)
		}
	}
	switch c.Log.Encoding {
	case "console", "json":
	default:
		return fmt.Errorf("log.encoding must be console or json, got %q", c.Log.Encoding)
	}
	return nil
}

// JWTSecret resolves the token signing secret from the environment. A
// development fallback is used when the variable is unset.
func (s *ServerConfig) JWTSecret() []byte {
	env := s.JWTSecretEnv
	if env == "" {
		env = "AXL_JWT_SECRET"
	}
	if secret := os.Getenv(env); secret != "" {
		return []byte(secret)
	}
	return []byte("axl-dev-secret-change-in-production")
}

// AuthEnabled reports whether the server requires operator login.
func (s *ServerConfig) AuthEnabled() bool { return s.PasswordHash != "" }
