// Package mock provides in-memory mock implementations of the
// [audio.Source], [audio.Sink] and [audio.Handle] interfaces for use in unit
// tests.
//
// All mocks are safe for concurrent use. They record every method call so
// that tests can assert on call counts and arguments, and they expose
// exported fields that the test can set to control return values.
//
// Typical usage:
//
//	src := mock.NewSource()
//	src.Push(audio.Frame{Data: make([]int16, 1920), SampleRate: 24000, Channels: 1})
//	sink := &mock.Sink{}
//	sink.SetNow(100 * time.Millisecond)
package mock

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/MrWong99/voxwire/pkg/audio"
)

// ErrSourceClosed is returned by [Source.Read] once the frame stream has
// been closed.
var ErrSourceClosed = errors.New("mock: source closed")

// ─── Source ──────────────────────────────────────────────────────────────────

// Source is a mock implementation of [audio.Source]. Feed it frames with
// [Source.Push]; Read blocks until a frame arrives or [Source.CloseStream]
// is called.
type Source struct {
	mu sync.Mutex

	// StartError is returned by Start. Use it to simulate a denied
	// microphone.
	StartError error

	// CallCountStart records how many times Start was called.
	CallCountStart int

	// CallCountClose records how many times Close was called.
	CallCountClose int

	frames    chan audio.Frame
	closeOnce sync.Once
}

// NewSource creates a Source with room for 16 queued frames.
func NewSource() *Source {
	return &Source{frames: make(chan audio.Frame, 16)}
}

// Start implements [audio.Source]. Returns StartError.
func (s *Source) Start(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CallCountStart++
	return s.StartError
}

// Read implements [audio.Source]. Blocks until a pushed frame is available;
// returns [ErrSourceClosed] once the stream is closed and drained.
func (s *Source) Read() (audio.Frame, error) {
	frame, ok := <-s.frames
	if !ok {
		return audio.Frame{}, ErrSourceClosed
	}
	return frame, nil
}

// Close implements [audio.Source]. Closes the frame stream; pending Reads
// drain queued frames first.
func (s *Source) Close() error {
	s.mu.Lock()
	s.CallCountClose++
	s.mu.Unlock()
	s.closeOnce.Do(func() { close(s.frames) })
	return nil
}

// Push queues a frame for Read. Use this in tests to simulate capture.
func (s *Source) Push(frame audio.Frame) {
	s.frames <- frame
}

// CloseStream ends the frame stream without counting as a Close call.
func (s *Source) CloseStream() {
	s.closeOnce.Do(func() { close(s.frames) })
}

// ─── Sink ────────────────────────────────────────────────────────────────────

// PlayCall records the arguments of a single [Sink.Play] invocation.
type PlayCall struct {
	// PCM is the buffer passed to Play.
	PCM []int16
	// At is the requested output-clock start time.
	At time.Duration
}

// Sink is a mock implementation of [audio.Sink] with a settable output
// clock. Every Play call is recorded together with the handle it returned,
// so tests can assert on scheduling decisions and release behaviour.
type Sink struct {
	mu sync.Mutex

	// StartError is returned by Start.
	StartError error

	// PlayError is returned by Play. When set, no call is recorded as
	// scheduled and the returned handle is nil.
	PlayError error

	// PlayCalls records all Play invocations in order.
	PlayCalls []PlayCall

	// Handles holds the handle returned by each successful Play, in order.
	Handles []*Handle

	// CallCountStart records how many times Start was called.
	CallCountStart int

	// CallCountClose records how many times Close was called.
	CallCountClose int

	now time.Duration
}

// Start implements [audio.Sink]. Returns StartError.
func (s *Sink) Start(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CallCountStart++
	return s.StartError
}

// Now implements [audio.Sink]. Returns the value last set with [Sink.SetNow].
func (s *Sink) Now() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now
}

// SetNow moves the mock output clock. Use this in tests to simulate playback
// progress or scheduler lag.
func (s *Sink) SetNow(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = d
}

// Play implements [audio.Sink]. Records the call and returns a fresh
// [Handle], or PlayError when set.
func (s *Sink) Play(pcm []int16, at time.Duration) (audio.Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.PlayError != nil {
		return nil, s.PlayError
	}
	s.PlayCalls = append(s.PlayCalls, PlayCall{PCM: pcm, At: at})
	h := &Handle{}
	s.Handles = append(s.Handles, h)
	return h, nil
}

// PlayCount returns the number of successful Play calls so far. Unlike
// reading PlayCalls directly, it is safe while playback is still running.
func (s *Sink) PlayCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.PlayCalls)
}

// Close implements [audio.Sink].
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CallCountClose++
	return nil
}

// ─── Handle ──────────────────────────────────────────────────────────────────

// Handle is a mock implementation of [audio.Handle] that records releases.
type Handle struct {
	mu sync.Mutex

	// ReleaseCount records how many times Release was called.
	ReleaseCount int
}

// Release implements [audio.Handle].
func (h *Handle) Release() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.ReleaseCount++
}

// Released reports whether Release has been called at least once.
func (h *Handle) Released() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.ReleaseCount > 0
}

// Interface conformance.
var (
	_ audio.Source = (*Source)(nil)
	_ audio.Sink   = (*Sink)(nil)
	_ audio.Handle = (*Handle)(nil)
)
