// Package capture runs the outbound audio pipeline: it reads PCM frames
// from a microphone source, normalizes them to the protocol format, encodes
// them and hands each encoded frame to a callback.
//
// The pipeline is push-driven by the source's own pacing. Muting zeroes
// samples in place instead of pausing the source, so frames keep flowing
// and unmuting takes effect on the very next frame.
package capture

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MrWong99/voxwire/internal/observe"
	"github.com/MrWong99/voxwire/pkg/audio"
)

// Protocol audio format: 80 ms mono frames at 24 kHz.
const (
	protocolRate     = 24000
	protocolChannels = 1
	frameSamples     = 1920

	levelInterval = 50 * time.Millisecond
)

// Encoder compresses exactly one protocol-sized PCM frame. The pcm slice is
// only valid for the duration of the call.
type Encoder interface {
	Encode(pcm []int16) ([]byte, error)
}

// Pipeline reads from an [audio.Source], converts to the protocol format,
// applies mute, encodes and invokes the frame callback. Create one with
// [New] and start it with [Start]; a failed Start leaves the pipeline inert
// so the rest of the application can keep running without a microphone.
type Pipeline struct {
	src     audio.Source
	enc     Encoder
	onFrame func(encoded []byte)
	conv    *audio.Converter
	metrics *observe.Metrics

	muted atomic.Bool
	level atomic.Uint64

	done      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithMuted sets the initial mute state.
func WithMuted(muted bool) Option {
	return func(p *Pipeline) { p.muted.Store(muted) }
}

// WithMetrics enables the capture level gauge.
func WithMetrics(m *observe.Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// New creates a Pipeline that delivers encoded frames to onFrame, which
// must be non-nil and safe to call from the pipeline's goroutine.
func New(src audio.Source, enc Encoder, onFrame func(encoded []byte), opts ...Option) *Pipeline {
	p := &Pipeline{
		src:     src,
		enc:     enc,
		onFrame: onFrame,
		conv: &audio.Converter{
			Target: audio.Format{SampleRate: protocolRate, Channels: protocolChannels},
		},
		done: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start acquires the source and begins reading frames. A source error, such
// as a denied microphone permission, is returned to the caller and leaves
// the pipeline stopped.
func (p *Pipeline) Start(ctx context.Context) error {
	if err := p.src.Start(ctx); err != nil {
		return fmt.Errorf("capture: start source: %w", err)
	}
	p.wg.Add(1)
	go p.loop()
	if p.metrics != nil {
		p.wg.Add(1)
		go p.publishLevel()
	}
	return nil
}

// SetMuted switches the outbound gain between zero and one. Takes effect on
// the next frame.
func (p *Pipeline) SetMuted(muted bool) {
	p.muted.Store(muted)
}

// Muted reports the current mute state.
func (p *Pipeline) Muted() bool {
	return p.muted.Load()
}

// Level reports the average magnitude of the most recent outbound frame,
// scaled to [0, 1]. Zero while muted.
func (p *Pipeline) Level() float64 {
	return math.Float64frombits(p.level.Load())
}

// Close stops the pipeline and releases the source. Safe to call more than
// once, and safe even when Start failed.
func (p *Pipeline) Close() error {
	var err error
	p.closeOnce.Do(func() {
		close(p.done)
		err = p.src.Close()
		p.wg.Wait()
	})
	return err
}

// loop reads source frames until the source fails or is closed. Converted
// samples accumulate until a full protocol frame is available, so device
// frame sizes need not match the protocol's.
func (p *Pipeline) loop() {
	defer p.wg.Done()
	pending := make([]int16, 0, 2*frameSamples)
	for {
		frame, err := p.src.Read()
		if err != nil {
			select {
			case <-p.done:
			default:
				slog.Warn("capture: source read failed, stopping", "error", err)
			}
			return
		}

		converted := p.conv.Convert(frame)
		pending = append(pending, converted.Data...)
		for len(pending) >= frameSamples {
			p.emit(pending[:frameSamples])
			n := copy(pending, pending[frameSamples:])
			pending = pending[:n]
		}
	}
}

// emit mutes, meters and encodes one frame, then delivers it.
func (p *Pipeline) emit(pcm []int16) {
	if p.muted.Load() {
		clear(pcm)
	}
	p.level.Store(math.Float64bits(averageMagnitude(pcm)))

	encoded, err := p.enc.Encode(pcm)
	if err != nil {
		slog.Warn("capture: encode failed, dropping frame", "error", err)
		return
	}
	p.onFrame(encoded)
}

// publishLevel mirrors the level meter into the metrics gauge on an
// animation cadence.
func (p *Pipeline) publishLevel() {
	defer p.wg.Done()
	ticker := time.NewTicker(levelInterval)
	defer ticker.Stop()
	for {
		select {
		case <-p.done:
			return
		case <-ticker.C:
			p.metrics.RecordCaptureLevel(context.Background(), p.Level())
		}
	}
}

func averageMagnitude(pcm []int16) float64 {
	if len(pcm) == 0 {
		return 0
	}
	var sum float64
	for _, v := range pcm {
		if v < 0 {
			sum -= float64(v)
		} else {
			sum += float64(v)
		}
	}
	level := sum / float64(len(pcm)) / 32768
	return min(level, 1)
}
