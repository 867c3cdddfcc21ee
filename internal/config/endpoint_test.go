package config_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/MrWong99/voxwire/internal/config"
)

func TestResolveEndpoint_FlagWins(t *testing.T) {
	t.Parallel()
	cfg := &config.Config{Server: config.ServerConfig{
		URL:  "wss://config.example.com/voice",
		Host: "host.example.com",
	}}

	got, err := config.ResolveEndpoint("ws://flag.example.com:9000/voice", cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "ws://flag.example.com:9000/voice" {
		t.Errorf("endpoint: got %q, want the flag URL", got)
	}
}

func TestResolveEndpoint_ConfigURL(t *testing.T) {
	t.Parallel()
	cfg := &config.Config{Server: config.ServerConfig{
		URL:  "wss://config.example.com/voice",
		Host: "host.example.com",
	}}

	got, err := config.ResolveEndpoint("", cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "wss://config.example.com/voice" {
		t.Errorf("endpoint: got %q, want server.url", got)
	}
}

func TestResolveEndpoint_DerivedFromHost(t *testing.T) {
	t.Parallel()
	cfg := &config.Config{Server: config.ServerConfig{Host: "voice.example.com:8443"}}

	got, err := config.ResolveEndpoint("", cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "wss://voice.example.com:8443"+config.VoicePath {
		t.Errorf("endpoint: got %q", got)
	}
}

func TestResolveEndpoint_InsecureHostDerivesWS(t *testing.T) {
	t.Parallel()
	cfg := &config.Config{Server: config.ServerConfig{Host: "localhost:8080", Insecure: true}}

	got, err := config.ResolveEndpoint("", cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "ws://localhost:8080"+config.VoicePath {
		t.Errorf("endpoint: got %q", got)
	}
}

func TestResolveEndpoint_NothingConfigured(t *testing.T) {
	t.Parallel()
	_, err := config.ResolveEndpoint("", config.Default())
	if !errors.Is(err, config.ErrNoEndpoint) {
		t.Errorf("expected ErrNoEndpoint, got: %v", err)
	}
}

func TestResolveEndpoint_RejectsNonWebSocketScheme(t *testing.T) {
	t.Parallel()
	_, err := config.ResolveEndpoint("https://voice.example.com/voice", config.Default())
	if err == nil {
		t.Fatal("expected error for https scheme, got nil")
	}
	if !strings.Contains(err.Error(), "not ws or wss") {
		t.Errorf("error should mention the allowed schemes, got: %v", err)
	}
}

func TestResolveEndpoint_BadHostFailsValidation(t *testing.T) {
	t.Parallel()
	cfg := &config.Config{Server: config.ServerConfig{Host: "bad host"}}

	_, err := config.ResolveEndpoint("", cfg)
	if err == nil {
		t.Fatal("expected error for unparsable host, got nil")
	}
}
