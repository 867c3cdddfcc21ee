// Package app wires the voxwire subsystems into a running client.
//
// The App struct owns the full lifecycle: New builds the playback, capture
// and session components against the injected audio devices and codecs, Run
// connects and blocks until the session ends or the context is cancelled,
// and Shutdown tears everything down in order. While connected, inbound
// text paints a live transcript to stdout unless a sentence handler takes
// over presentation.
//
// Real devices and codecs come from main; tests inject mocks through the
// [Devices] struct and functional options.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/voxwire/internal/capture"
	"github.com/MrWong99/voxwire/internal/config"
	"github.com/MrWong99/voxwire/internal/health"
	"github.com/MrWong99/voxwire/internal/observe"
	"github.com/MrWong99/voxwire/internal/playback"
	"github.com/MrWong99/voxwire/internal/sentence"
	"github.com/MrWong99/voxwire/internal/session"
	"github.com/MrWong99/voxwire/pkg/audio"
)

// Devices bundles the audio endpoints and codecs the client runs against.
// main builds the real PortAudio and Opus implementations; tests pass mocks.
type Devices struct {
	// Mic is the capture source. A mic that fails to start leaves the
	// client in listen-only mode rather than aborting the session.
	Mic audio.Source

	// Speaker is the playback sink. The client cannot run without it.
	Speaker audio.Sink

	// Encoder compresses outbound capture frames.
	Encoder capture.Encoder

	// Decoder decompresses inbound audio chunks.
	Decoder playback.Decoder
}

// App owns all subsystem lifetimes for one client run.
type App struct {
	cfg      *config.Config
	endpoint string
	devices  Devices

	metrics   *observe.Metrics
	session   *session.Session
	scheduler *playback.Scheduler
	capture   *capture.Pipeline
	assembler *sentence.Assembler
	view      *transcriptView

	logLevel   *slog.LevelVar
	viewOut    io.Writer
	onSentence func(text string)

	captureUp atomic.Bool

	// closers are called in order during Shutdown.
	closers []func() error

	// stopOnce guards the Shutdown path.
	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithLogLevel hands the App the process log level so config reloads can
// adjust verbosity live.
func WithLogLevel(lv *slog.LevelVar) Option {
	return func(a *App) { a.logLevel = lv }
}

// WithSentenceHandler replaces the console transcript view: instead of
// painting to stdout, fn is called once per completed sentence, in arrival
// order.
func WithSentenceHandler(fn func(text string)) Option {
	return func(a *App) { a.onSentence = fn }
}

// WithTranscriptWriter redirects the console transcript view from stdout to
// w. Ignored when a sentence handler replaces the view.
func WithTranscriptWriter(w io.Writer) Option {
	return func(a *App) { a.viewOut = w }
}

// ─── New ─────────────────────────────────────────────────────────────────────

// New builds the client against the resolved endpoint. All construction is
// synchronous and local; nothing dials or touches a device until Run.
func New(ctx context.Context, cfg *config.Config, endpoint string, devices Devices, opts ...Option) (*App, error) {
	if cfg == nil {
		return nil, errors.New("app: nil config")
	}
	if endpoint == "" {
		return nil, errors.New("app: no endpoint")
	}
	if devices.Mic == nil || devices.Speaker == nil || devices.Encoder == nil || devices.Decoder == nil {
		return nil, errors.New("app: all devices and codecs must be set")
	}

	a := &App{
		cfg:      cfg,
		endpoint: endpoint,
		devices:  devices,
	}
	for _, o := range opts {
		o(a)
	}
	if a.viewOut == nil {
		a.viewOut = os.Stdout
	}

	// ── 1. Observability ─────────────────────────────────────────────────
	if cfg.Observe.Enabled {
		shutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceName: "voxwire"})
		if err != nil {
			return nil, fmt.Errorf("app: init observability: %w", err)
		}
		a.closers = append(a.closers, func() error {
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return shutdown(sctx)
		})
	}
	a.metrics = observe.DefaultMetrics()

	// ── 2. Playback chain ────────────────────────────────────────────────
	a.scheduler = playback.New(devices.Decoder, devices.Speaker,
		playback.WithMetrics(a.metrics))

	// ── 3. Text chain ────────────────────────────────────────────────────
	a.assembler = sentence.New(sentence.WithSentenceHook(a.sentenceDone))
	if a.onSentence == nil {
		a.view = newTranscriptView(a.viewOut, a.assembler)
	}

	// ── 4. Session ───────────────────────────────────────────────────────
	a.session = session.New(
		session.Config{
			URL:    endpoint,
			Header: http.Header{"User-Agent": []string{"voxwire"}},
		},
		session.WithAudioHandler(func(payload []byte) { a.scheduler.Enqueue(payload) }),
		session.WithTextHandler(a.onTextFragment),
		session.WithConnectHook(a.startCapture),
		session.WithMetrics(a.metrics),
	)

	// ── 5. Capture chain ─────────────────────────────────────────────────
	a.capture = capture.New(devices.Mic, devices.Encoder, a.sendFrame,
		capture.WithMuted(cfg.Audio.MuteOnStart),
		capture.WithMetrics(a.metrics))

	// Stop order: stop producing, hang up, stop scheduling, release output.
	a.closers = append([]func() error{
		a.capture.Close,
		a.session.Close,
		a.scheduler.Close,
		a.devices.Speaker.Close,
	}, a.closers...)

	return a, nil
}

// sendFrame forwards one encoded capture frame to the session. Drops while
// not connected are counted by the session, not treated as failures.
func (a *App) sendFrame(encoded []byte) {
	if err := a.session.Send(encoded); err != nil {
		slog.Warn("failed to send audio frame", "error", err)
	}
}

// onTextFragment feeds one inbound text fragment to the assembler and
// repaints the console view with the updated transcript.
func (a *App) onTextFragment(fragment string) {
	a.metrics.TextFragments.Add(context.Background(), 1)
	a.assembler.Push(fragment)
	if a.view != nil {
		a.view.Refresh()
	}
}

// sentenceDone counts one completed sentence and hands it to the injected
// handler. Under the console view the sentence appears in the repaint that
// follows the completing fragment, so there is nothing to print here.
func (a *App) sentenceDone(text string) {
	a.metrics.SentencesCompleted.Add(context.Background(), 1)
	if a.onSentence != nil {
		a.onSentence(text)
	}
}

// startCapture brings up the microphone pipeline. It runs as the session's
// connect hook. A missing or denied microphone leaves the client
// listen-only rather than failing the run.
func (a *App) startCapture(ctx context.Context) {
	if err := a.capture.Start(ctx); err != nil {
		slog.Warn("microphone unavailable, running listen-only", "error", err)
		return
	}
	a.captureUp.Store(true)
}

// ─── Run ─────────────────────────────────────────────────────────────────────

// Run connects and blocks until the session reaches a terminal state or ctx
// is cancelled. A clean remote hang-up returns nil; a session failure
// returns the underlying error; cancellation returns ctx's error.
func (a *App) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	// ── Observability endpoint ───────────────────────────────────────────
	if a.cfg.Observe.Enabled {
		a.serveObservability(gctx, g)
	}

	// ── Playback output ──────────────────────────────────────────────────
	if err := a.devices.Speaker.Start(ctx); err != nil {
		return fmt.Errorf("app: start playback device: %w", err)
	}

	// ── Session ──────────────────────────────────────────────────────────
	// Capture starts through the connect hook once the dial succeeds.
	if err := a.session.Connect(ctx); err != nil {
		return fmt.Errorf("app: connect: %w", err)
	}

	slog.Info("client running",
		"session", a.session.ID(),
		"endpoint", a.endpoint,
		"muted", a.capture.Muted(),
	)

	g.Go(func() error { return a.watchSession(gctx) })

	return g.Wait()
}

// watchSession drains session state changes until a terminal state.
func (a *App) watchSession(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-a.session.Events():
			slog.Info("session state changed", "from", ev.From, "to", ev.To)
			if a.view != nil {
				a.view.SetState(ev.To)
			}
			switch ev.To {
			case session.StateClosed:
				slog.Info("session ended")
				return nil
			case session.StateError:
				err := ev.Err
				if err == nil {
					err = a.session.Err()
				}
				return fmt.Errorf("app: session failed: %w", err)
			}
		}
	}
}

// serveObservability starts the local HTTP endpoint with /metrics, /healthz
// and /readyz, and ties its lifetime to ctx.
func (a *App) serveObservability(ctx context.Context, g *errgroup.Group) {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.Handler())

	h := health.New(
		health.Checker{Name: "session", Check: a.checkSession},
		health.Checker{Name: "capture", Check: a.checkCapture},
	)
	h.Register(mux)

	srv := &http.Server{
		Addr:         a.cfg.Observe.ListenAddr,
		Handler:      observe.Middleware(a.metrics)(mux),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	g.Go(func() error {
		slog.Info("observability endpoint listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("app: observability server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(sctx)
	})
}

// checkSession reports readiness of the voice connection.
func (a *App) checkSession(context.Context) error {
	if st := a.session.State(); st != session.StateConnected {
		return fmt.Errorf("session %s", st)
	}
	return nil
}

// checkCapture reports readiness of the microphone pipeline. A muted mic is
// still ready; one that never started is not.
func (a *App) checkCapture(context.Context) error {
	if !a.captureUp.Load() {
		return errors.New("capture not running")
	}
	return nil
}

// ─── Config reload ───────────────────────────────────────────────────────────

// ApplyConfig reacts to a config file reload. The log level changes live;
// everything else is built once at startup, so changes there only produce a
// restart hint.
func (a *App) ApplyConfig(old, new *config.Config) {
	d := config.Diff(old, new)
	if !d.Changed() {
		return
	}
	if d.LogLevelChanged && a.logLevel != nil {
		a.logLevel.Set(d.NewLogLevel.Slog())
		slog.Info("log level changed", "level", d.NewLogLevel)
	}
	if len(d.RequiresRestart) > 0 {
		slog.Warn("config changes need a restart to take effect",
			"sections", d.RequiresRestart)
	}
}

// ─── Shutdown ────────────────────────────────────────────────────────────────

// Shutdown tears down all subsystems in order. It respects the context
// deadline: if ctx expires before all closers finish, remaining closers are
// skipped and the context error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("shutting down", "closers", len(a.closers))

		for i, closer := range a.closers {
			select {
			case <-ctx.Done():
				slog.Warn("shutdown deadline exceeded", "remaining", len(a.closers)-i)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := closer(); err != nil {
				slog.Warn("closer error", "index", i, "err", err)
			}
		}

		slog.Info("shutdown complete")
	})
	return shutdownErr
}
