//go:build portaudio
// +build portaudio

// Package device provides PortAudio-backed implementations of the
// [audio.Source] and [audio.Sink] interfaces.
//
// The package builds in two flavours: with the portaudio build tag it binds
// the default system devices; without it, stub implementations report that
// the binary was built without audio device support. This keeps the rest of
// the client buildable and testable on machines without the PortAudio C
// library.
package device

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gordonklaus/portaudio"

	"github.com/MrWong99/voxwire/pkg/audio"
)

// silenceChunk is the largest block of gap silence written in one call, so
// Close never waits on a long scheduled gap.
const silenceChunk = 2400 // 100 ms at 24 kHz

// Microphone captures mono PCM from the default input device in fixed-size
// frames.
type Microphone struct {
	sampleRate int
	frameSize  int

	mu        sync.Mutex
	stream    *portaudio.Stream
	buf       []int16
	samples   int64
	closeOnce sync.Once
}

// NewMicrophone creates a capture source that reads frameSize-sample frames
// at sampleRate.
func NewMicrophone(sampleRate, frameSize int) *Microphone {
	return &Microphone{
		sampleRate: sampleRate,
		frameSize:  frameSize,
		buf:        make([]int16, frameSize),
	}
}

// Start acquires the default input device. A missing or permission-blocked
// microphone surfaces here as an error.
func (m *Microphone) Start(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("device: initialize portaudio: %w", err)
	}

	stream, err := portaudio.OpenDefaultStream(1, 0, float64(m.sampleRate), m.frameSize, m.buf)
	if err != nil {
		portaudio.Terminate()
		return fmt.Errorf("device: open input stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		portaudio.Terminate()
		return fmt.Errorf("device: start input stream: %w", err)
	}

	m.mu.Lock()
	m.stream = stream
	m.mu.Unlock()

	slog.Info("microphone started", "sampleRate", m.sampleRate, "frameSize", m.frameSize)
	return nil
}

// Read blocks until the next full frame has been captured.
func (m *Microphone) Read() (audio.Frame, error) {
	m.mu.Lock()
	stream := m.stream
	m.mu.Unlock()
	if stream == nil {
		return audio.Frame{}, fmt.Errorf("device: microphone not started")
	}

	if err := stream.Read(); err != nil {
		return audio.Frame{}, fmt.Errorf("device: read input stream: %w", err)
	}

	data := make([]int16, m.frameSize)
	copy(data, m.buf)

	ts := time.Duration(m.samples) * time.Second / time.Duration(m.sampleRate)
	m.samples += int64(m.frameSize)

	return audio.Frame{
		Data:       data,
		SampleRate: m.sampleRate,
		Channels:   1,
		Timestamp:  ts,
	}, nil
}

// Close stops capture and releases the device.
func (m *Microphone) Close() error {
	m.closeOnce.Do(func() {
		m.mu.Lock()
		stream := m.stream
		m.stream = nil
		m.mu.Unlock()
		if stream != nil {
			stream.Stop()
			stream.Close()
			portaudio.Terminate()
		}
	})
	return nil
}

// Speaker plays mono PCM on the default output device. Buffers queue on a
// writer goroutine that inserts silence up to each buffer's scheduled start,
// so the playback scheduler's timeline is rendered exactly. The output clock
// is the count of samples written.
type Speaker struct {
	sampleRate int

	mu        sync.Mutex
	stream    *portaudio.Stream
	out       []int16
	queue     chan playReq
	done      chan struct{}
	wg        sync.WaitGroup
	written   atomic.Int64
	closeOnce sync.Once
}

type playReq struct {
	pcm []int16
	at  time.Duration
}

// NewSpeaker creates a playback sink at sampleRate.
func NewSpeaker(sampleRate int) *Speaker {
	return &Speaker{
		sampleRate: sampleRate,
		queue:      make(chan playReq, 32),
		done:       make(chan struct{}),
	}
}

// Start opens the default output device and begins the writer loop.
func (s *Speaker) Start(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("device: initialize portaudio: %w", err)
	}

	// Opening with a slice pointer lets each write carry a different length,
	// so chunks are never padded with trailing silence.
	stream, err := portaudio.OpenDefaultStream(0, 1, float64(s.sampleRate), 0, &s.out)
	if err != nil {
		portaudio.Terminate()
		return fmt.Errorf("device: open output stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		portaudio.Terminate()
		return fmt.Errorf("device: start output stream: %w", err)
	}

	s.mu.Lock()
	s.stream = stream
	s.mu.Unlock()

	s.wg.Add(1)
	go s.writeLoop()

	slog.Info("speaker started", "sampleRate", s.sampleRate)
	return nil
}

// Now returns the output-clock position: samples written so far.
func (s *Speaker) Now() time.Duration {
	return time.Duration(s.written.Load()) * time.Second / time.Duration(s.sampleRate)
}

// Play queues pcm to begin at the given output-clock time. The returned
// handle is a no-op: written buffers hold no resources past the write.
func (s *Speaker) Play(pcm []int16, at time.Duration) (audio.Handle, error) {
	select {
	case s.queue <- playReq{pcm: pcm, at: at}:
		return noopHandle{}, nil
	case <-s.done:
		return nil, fmt.Errorf("device: speaker closed")
	}
}

// Close stops the writer loop and releases the device. Queued audio that has
// not been written yet is discarded.
func (s *Speaker) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
		s.wg.Wait()

		s.mu.Lock()
		stream := s.stream
		s.stream = nil
		s.mu.Unlock()
		if stream != nil {
			stream.Stop()
			stream.Close()
			portaudio.Terminate()
		}
	})
	return nil
}

// writeLoop renders queued buffers in FIFO order, writing zero samples for
// any gap between the write clock and a buffer's scheduled start.
func (s *Speaker) writeLoop() {
	defer s.wg.Done()

	for {
		select {
		case <-s.done:
			return
		case req := <-s.queue:
			gap := s.samplesUntil(req.at)
			for gap > 0 {
				n := gap
				if n > silenceChunk {
					n = silenceChunk
				}
				if !s.write(make([]int16, n)) {
					return
				}
				gap -= n
			}
			if !s.write(req.pcm) {
				return
			}
		}
	}
}

// samplesUntil converts the distance from the write clock to at into a
// sample count, clamped at zero for starts already in the past.
func (s *Speaker) samplesUntil(at time.Duration) int {
	target := int64(at) * int64(s.sampleRate) / int64(time.Second)
	gap := target - s.written.Load()
	if gap < 0 {
		return 0
	}
	return int(gap)
}

// write pushes one block to the device and advances the write clock. It
// returns false when the speaker is shutting down or the device fails.
func (s *Speaker) write(pcm []int16) bool {
	select {
	case <-s.done:
		return false
	default:
	}

	s.mu.Lock()
	stream := s.stream
	s.mu.Unlock()
	if stream == nil {
		return false
	}

	s.out = pcm
	if err := stream.Write(); err != nil {
		slog.Warn("speaker write failed", "err", err)
		return false
	}
	s.written.Add(int64(len(pcm)))
	return true
}

type noopHandle struct{}

func (noopHandle) Release() {}

// Interface conformance.
var (
	_ audio.Source = (*Microphone)(nil)
	_ audio.Sink   = (*Speaker)(nil)
)
