// Package config provides the configuration schema, loader and endpoint
// resolution for the voxwire client.
package config

import "log/slog"

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Slog maps l to the corresponding slog level. Unknown or empty levels map
// to info.
func (l LogLevel) Slog() slog.Level {
	switch l {
	case LogDebug:
		return slog.LevelDebug
	case LogWarn:
		return slog.LevelWarn
	case LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Config is the root configuration structure for voxwire.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Audio   AudioConfig   `yaml:"audio"`
	Observe ObserveConfig `yaml:"observe"`
	Log     LogConfig     `yaml:"log"`
}

// ServerConfig identifies the voice server to connect to.
type ServerConfig struct {
	// URL is the full WebSocket endpoint, e.g. "wss://voice.example.com/voice".
	// When set it wins over Host.
	URL string `yaml:"url"`

	// Host is the server host (with optional port) from which the endpoint
	// URL is derived when URL is empty.
	Host string `yaml:"host"`

	// Insecure derives a ws:// endpoint instead of wss:// when the URL is
	// built from Host. It has no effect when URL is set.
	Insecure bool `yaml:"insecure"`
}

// AudioConfig holds capture settings.
type AudioConfig struct {
	// MuteOnStart starts the microphone muted.
	MuteOnStart bool `yaml:"mute_on_start"`
}

// ObserveConfig controls the local observability endpoint.
type ObserveConfig struct {
	// Enabled turns on a local HTTP server exposing /metrics, /healthz and
	// /readyz.
	Enabled bool `yaml:"enabled"`

	// ListenAddr is the TCP address of the observability server.
	// Defaults to [DefaultObserveAddr].
	ListenAddr string `yaml:"listen_addr"`
}

// LogConfig controls logging.
type LogConfig struct {
	// Level controls verbosity. Defaults to "info".
	Level LogLevel `yaml:"level"`
}
