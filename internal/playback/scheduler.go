// Package playback turns the inbound compressed audio stream into gapless
// scheduled output.
//
// A single goroutine owns both decoding and scheduling, consuming chunks
// from a buffered queue in arrival order. Each chunk starts exactly when the
// previously scheduled audio ends, or immediately when the stream has fallen
// behind the output clock. Because decode and schedule happen as one step in
// one goroutine, chunks can never be scheduled out of order.
package playback

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MrWong99/voxwire/internal/observe"
	"github.com/MrWong99/voxwire/pkg/audio"
)

// Decoder turns one compressed audio payload into PCM samples. A decoder
// may legitimately return zero samples for a packet that carries no audio.
type Decoder interface {
	Decode(packet []byte) ([]int16, error)
}

// Output is the playback half of an audio device: a sample-accurate clock
// plus the ability to start a PCM buffer at a point on that clock. Now must
// be safe for concurrent use.
type Output interface {
	Now() time.Duration
	Play(pcm []int16, at time.Duration) (audio.Handle, error)
}

const (
	defaultQueueCapacity = 64
	defaultSampleRate    = 24000
)

// playing tracks one scheduled buffer until its handle can be released.
type playing struct {
	handle audio.Handle
	end    time.Duration
}

// Scheduler consumes compressed audio chunks and schedules their decoded
// PCM back to back on an Output. Enqueue may be called from any goroutine;
// all decoding and scheduling happens on the scheduler's own goroutine.
type Scheduler struct {
	dec        Decoder
	out        Output
	sampleRate int
	metrics    *observe.Metrics
	hook       func(start, end time.Duration)

	chunks    chan []byte
	done      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once

	// Owned by the run goroutine.
	scheduledEnd time.Duration
	started      bool
	outstanding  []playing

	schedEnd atomic.Int64
	dropped  atomic.Int64
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithQueueCapacity sets how many undecoded chunks may wait in the queue
// before new arrivals are dropped. Default 64.
func WithQueueCapacity(n int) Option {
	return func(s *Scheduler) {
		if n > 0 {
			s.chunks = make(chan []byte, n)
		}
	}
}

// WithSampleRate sets the PCM sample rate used to convert decoded sample
// counts into durations. Default 24000.
func WithSampleRate(rate int) Option {
	return func(s *Scheduler) {
		if rate > 0 {
			s.sampleRate = rate
		}
	}
}

// WithScheduleHook registers fn to run on the scheduler goroutine after
// each chunk is scheduled, with the chunk's start and end on the output
// clock.
func WithScheduleHook(fn func(start, end time.Duration)) Option {
	return func(s *Scheduler) { s.hook = fn }
}

// WithMetrics sets the metrics instance used to count scheduled, dropped
// and undecodable chunks.
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Scheduler) { s.metrics = m }
}

// New creates a Scheduler and starts its goroutine. Call Close to stop it
// and release any audio still scheduled.
func New(dec Decoder, out Output, opts ...Option) *Scheduler {
	s := &Scheduler{
		dec:        dec,
		out:        out,
		sampleRate: defaultSampleRate,
		chunks:     make(chan []byte, defaultQueueCapacity),
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.wg.Add(1)
	go s.run()
	return s
}

// Enqueue queues one compressed chunk for decoding and scheduling. It never
// blocks: when the queue is full or the scheduler is closed the chunk is
// dropped and Enqueue reports false. The caller must not modify payload
// afterwards.
func (s *Scheduler) Enqueue(payload []byte) bool {
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.chunks <- payload:
		return true
	default:
		s.dropped.Add(1)
		if s.metrics != nil {
			s.metrics.ChunksDropped.Add(context.Background(), 1)
		}
		slog.Debug("playback: queue full, dropping chunk", "bytes", len(payload))
		return false
	}
}

// Buffered reports how much audio is scheduled beyond the output clock's
// current position. Zero when playback has caught up with scheduling.
func (s *Scheduler) Buffered() time.Duration {
	end := time.Duration(s.schedEnd.Load())
	now := s.out.Now()
	if end <= now {
		return 0
	}
	return end - now
}

// Dropped reports how many chunks Enqueue has discarded since creation.
func (s *Scheduler) Dropped() int64 {
	return s.dropped.Load()
}

// Close stops the scheduler goroutine and releases all outstanding handles.
// Chunks still waiting in the queue are discarded. Safe to call more than
// once.
func (s *Scheduler) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
		s.wg.Wait()
		for _, p := range s.outstanding {
			p.handle.Release()
		}
		s.outstanding = nil
	})
	return nil
}

func (s *Scheduler) run() {
	defer s.wg.Done()
	for {
		select {
		case <-s.done:
			return
		case payload := <-s.chunks:
			s.process(payload)
		}
	}
}

// process decodes one chunk and schedules it gaplessly after all previously
// scheduled audio, or at the current clock position when the stream has
// fallen behind.
func (s *Scheduler) process(payload []byte) {
	pcm, err := s.dec.Decode(payload)
	if err != nil {
		slog.Warn("playback: dropping undecodable chunk", "bytes", len(payload), "error", err)
		if s.metrics != nil {
			s.metrics.DecodeFailures.Add(context.Background(), 1)
		}
		return
	}
	if len(pcm) == 0 {
		return
	}

	now := s.out.Now()
	start := s.scheduledEnd
	if now > start {
		// The output clock ran past everything we scheduled. Start
		// immediately rather than working through a stale backlog.
		if s.started {
			if s.metrics != nil {
				s.metrics.CatchUps.Add(context.Background(), 1)
			}
			slog.Debug("playback: catching up", "behind", now-start)
		}
		start = now
	}

	handle, err := s.out.Play(pcm, start)
	if err != nil {
		slog.Warn("playback: output rejected chunk", "samples", len(pcm), "error", err)
		return
	}

	end := start + s.duration(len(pcm))
	s.scheduledEnd = end
	s.schedEnd.Store(int64(end))
	s.started = true

	s.releaseFinished(now)
	if handle != nil {
		s.outstanding = append(s.outstanding, playing{handle: handle, end: end})
	}

	if s.metrics != nil {
		s.metrics.RecordChunkScheduled(context.Background(), start-now)
	}
	if s.hook != nil {
		s.hook(start, end)
	}
}

// releaseFinished releases handles whose audio has fully played. Handles
// for audio still playing or not yet started stay held so the output does
// not reclaim their buffers early.
func (s *Scheduler) releaseFinished(now time.Duration) {
	kept := s.outstanding[:0]
	for _, p := range s.outstanding {
		if p.end <= now {
			p.handle.Release()
			continue
		}
		kept = append(kept, p)
	}
	s.outstanding = kept
}

func (s *Scheduler) duration(samples int) time.Duration {
	return time.Duration(samples) * time.Second / time.Duration(s.sampleRate)
}
