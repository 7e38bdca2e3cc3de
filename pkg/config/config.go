// Package config loads the broker's YAML configuration and applies the
// environment-variable overrides a deployment needs without a restart of
// the build-time header.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/Compdog-inc/pico-radio/pkg/ntserr"
)

// Config is the root configuration for the NT4 broker process.
type Config struct {
	Server ServerConfig `yaml:"server"`
	Cache  CacheConfig  `yaml:"cache"`
	Clock  ClockConfig  `yaml:"clock"`
}

// ServerConfig controls the TCP listener, WebSocket upgrade and framing.
type ServerConfig struct {
	ListenAddr       string        `yaml:"listen_addr"`       // e.g. ":5810"
	Subprotocol      string        `yaml:"subprotocol"`       // "v4.1.networktables.first.wpi.edu"
	MaxClients       int           `yaml:"max_clients"`       // compile-time MAX_CLIENTS equivalent
	MaxPacketSize    int           `yaml:"max_packet_size"`   // link MTU; payloads above this are fragmented
	SendMutexTimeout time.Duration `yaml:"send_mutex_timeout"`
	HandshakeTimeout time.Duration `yaml:"handshake_timeout"`
	DispatchQueueLen int           `yaml:"dispatch_queue_len"` // 0 disables the ISR-safe dispatch queue
}

// CacheConfig controls the per-client outbound batching thresholds (§4.D.2/.3).
type CacheConfig struct {
	MaxTextCacheLength   int `yaml:"max_text_cache_length"`
	MaxBinaryCacheLength int `yaml:"max_binary_cache_length"`
}

// ClockConfig controls server-time behavior (§4.D.5, §9).
type ClockConfig struct {
	InitialOffsetMicros int64 `yaml:"initial_offset_micros"`
}

// Default returns the configuration the spec's defaults describe.
func Default() Config {
	return Config{
		Server: ServerConfig{
			ListenAddr:       ":5810",
			Subprotocol:      "v4.1.networktables.first.wpi.edu",
			MaxClients:       32,
			MaxPacketSize:    1460, // typical Ethernet MSS
			SendMutexTimeout: 750 * time.Millisecond,
			HandshakeTimeout: 5 * time.Second,
			DispatchQueueLen: 64,
		},
		Cache: CacheConfig{
			MaxTextCacheLength:   512,
			MaxBinaryCacheLength: 512,
		},
		Clock: ClockConfig{
			InitialOffsetMicros: 0,
		},
	}
}

// Load reads a YAML config file (if path is non-empty) over the defaults,
// then applies NT_* environment overrides, matching the teacher's
// file-then-env layering in pkg/config/config.go.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return cfg, fmt.Errorf("open config: %w", err)
		}
		defer f.Close()
		if err := DecodeStrict(f, &cfg); err != nil {
			return cfg, err
		}
	}
	applyEnvOverrides(&cfg)
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate rejects configuration values the broker cannot run with,
// returning a ntserr.ValidationError naming the offending field.
func (c Config) Validate() error {
	if c.Server.ListenAddr == "" {
		return ntserr.NewValidationError("server.listen_addr", "must not be empty")
	}
	if c.Server.MaxPacketSize <= 0 {
		return ntserr.NewValidationError("server.max_packet_size", "must be positive")
	}
	if c.Cache.MaxTextCacheLength <= 0 {
		return ntserr.NewValidationError("cache.max_text_cache_length", "must be positive")
	}
	if c.Cache.MaxBinaryCacheLength <= 0 {
		return ntserr.NewValidationError("cache.max_binary_cache_length", "must be positive")
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("NT_LISTEN_ADDR"); v != "" {
		cfg.Server.ListenAddr = v
	}
	if v := os.Getenv("NT_MAX_CLIENTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Server.MaxClients = n
		}
	}
	if v := os.Getenv("NT_MAX_PACKET_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Server.MaxPacketSize = n
		}
	}
}
