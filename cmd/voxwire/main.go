// Command voxwire is a full-duplex voice client: it streams microphone
// audio to a voice server over a WebSocket and plays the server's audio
// replies while printing its sentences.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MrWong99/voxwire/internal/app"
	"github.com/MrWong99/voxwire/internal/config"
	"github.com/MrWong99/voxwire/pkg/audio/device"
	"github.com/MrWong99/voxwire/pkg/codec/opus"
)

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	serverURL := flag.String("server", "", "voice server WebSocket URL (overrides the config file)")
	logLevel := flag.String("log-level", "", "log level: debug, info, warn or error (overrides the config file)")
	mute := flag.Bool("mute", false, "start with the microphone muted")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, fromFile, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "voxwire: %v\n", err)
		return 2
	}

	// ── Flag overrides ────────────────────────────────────────────────────────
	if *logLevel != "" {
		lv := config.LogLevel(*logLevel)
		if !lv.IsValid() {
			fmt.Fprintf(os.Stderr, "voxwire: invalid -log-level %q (want debug, info, warn or error)\n", *logLevel)
			return 2
		}
		cfg.Log.Level = lv
	}
	if *mute {
		cfg.Audio.MuteOnStart = true
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	// The level lives in a LevelVar so a config reload can adjust it live.
	level := new(slog.LevelVar)
	level.Set(cfg.Log.Level.Slog())
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	// ── Endpoint ──────────────────────────────────────────────────────────────
	endpoint, err := config.ResolveEndpoint(*serverURL, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "voxwire: %v\n", err)
		fmt.Fprintln(os.Stderr, "voxwire: pass -server wss://host/voice or set server.url in the config file")
		return 2
	}

	// ── Audio devices and codecs ──────────────────────────────────────────────
	encoder, err := opus.NewEncoder()
	if err != nil {
		slog.Error("failed to create Opus encoder", "err", err)
		return 1
	}
	decoder, err := opus.NewDecoder()
	if err != nil {
		slog.Error("failed to create Opus decoder", "err", err)
		return 1
	}
	devices := app.Devices{
		Mic:     device.NewMicrophone(opus.SampleRate, opus.FrameSamples),
		Speaker: device.NewSpeaker(opus.SampleRate),
		Encoder: encoder,
		Decoder: decoder,
	}

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Startup summary ───────────────────────────────────────────────────────
	printStartupSummary(cfg, endpoint, *configPath, fromFile)

	application, err := app.New(ctx, cfg, endpoint, devices, app.WithLogLevel(level))
	if err != nil {
		slog.Error("failed to initialise client", "err", err)
		return 1
	}

	// ── Config reload watcher ─────────────────────────────────────────────────
	if fromFile {
		watcher, err := config.NewWatcher(*configPath, application.ApplyConfig)
		if err != nil {
			slog.Warn("config reloads disabled", "err", err)
		} else {
			defer watcher.Stop()
		}
	}

	slog.Info("client ready, press Ctrl+C to hang up")

	runErr := application.Run(ctx)

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := application.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
		return 1
	}
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		slog.Error("run error", "err", runErr)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// loadConfig loads the YAML configuration. A missing file is only an error
// when -config was given explicitly; the default path falls back to built-in
// defaults so the client runs with nothing but -server.
func loadConfig(path string) (*config.Config, bool, error) {
	explicit := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == "config" {
			explicit = true
		}
	})

	cfg, err := config.Load(path)
	switch {
	case err == nil:
		return cfg, true, nil
	case errors.Is(err, os.ErrNotExist) && !explicit:
		return config.Default(), false, nil
	case errors.Is(err, os.ErrNotExist):
		return nil, false, fmt.Errorf("config file %q not found", path)
	default:
		return nil, false, err
	}
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config, endpoint, configPath string, fromFile bool) {
	mic := "live"
	if cfg.Audio.MuteOnStart {
		mic = "muted"
	}
	obs := "(disabled)"
	if cfg.Observe.Enabled {
		obs = cfg.Observe.ListenAddr
	}
	source := "(defaults)"
	if fromFile {
		source = configPath
	}

	fmt.Println("╔════════════════════════════════════════════════╗")
	fmt.Println("║            voxwire startup summary             ║")
	fmt.Println("╠════════════════════════════════════════════════╣")
	printRow("Endpoint", endpoint)
	printRow("Microphone", mic)
	printRow("Observability", obs)
	printRow("Log level", string(cfg.Log.Level))
	printRow("Config", source)
	fmt.Println("╚════════════════════════════════════════════════╝")
}

func printRow(label, value string) {
	if len(value) > 30 {
		value = value[:29] + "…"
	}
	fmt.Printf("║ %-13s : %-30s ║\n", label, value)
}
