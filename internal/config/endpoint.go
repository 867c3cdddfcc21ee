package config

import (
	"errors"
	"fmt"
)

// ErrNoEndpoint is returned by [ResolveEndpoint] when neither the command
// line nor the configuration names a server. The client never guesses where
// to connect.
var ErrNoEndpoint = errors.New("config: no server endpoint: set -server, server.url or server.host")

// VoicePath is the WebSocket path appended when the endpoint is derived
// from a bare host.
const VoicePath = "/voice"

// ResolveEndpoint returns the WebSocket URL to dial. flagURL comes from the
// command line and wins over everything; otherwise server.url is used as
// given; otherwise a wss:// URL (ws:// when server.insecure) is derived
// from server.host. The chosen URL is validated before it is returned.
func ResolveEndpoint(flagURL string, cfg *Config) (string, error) {
	var endpoint string
	switch {
	case flagURL != "":
		endpoint = flagURL
	case cfg.Server.URL != "":
		endpoint = cfg.Server.URL
	case cfg.Server.Host != "":
		scheme := "wss"
		if cfg.Server.Insecure {
			scheme = "ws"
		}
		endpoint = scheme + "://" + cfg.Server.Host + VoicePath
	default:
		return "", ErrNoEndpoint
	}

	if err := checkEndpointURL(endpoint); err != nil {
		return "", fmt.Errorf("config: endpoint %q: %w", endpoint, err)
	}
	return endpoint, nil
}
