//go:build !portaudio
// +build !portaudio

package device

import (
	"context"
	"fmt"
	"time"

	"github.com/MrWong99/voxwire/pkg/audio"
)

// errNoDevice is the failure every stub operation reports.
var errNoDevice = fmt.Errorf("device: audio devices not available: rebuild with -tags portaudio")

// Microphone stub when PortAudio is not compiled in. Start fails with a
// build-tag hint; the client then runs inbound-only.
type Microphone struct{}

// NewMicrophone creates a stub capture source.
func NewMicrophone(_, _ int) *Microphone {
	return &Microphone{}
}

// Start implements [audio.Source]. Always fails.
func (m *Microphone) Start(_ context.Context) error { return errNoDevice }

// Read implements [audio.Source]. Always fails.
func (m *Microphone) Read() (audio.Frame, error) { return audio.Frame{}, errNoDevice }

// Close implements [audio.Source].
func (m *Microphone) Close() error { return nil }

// Speaker stub when PortAudio is not compiled in.
type Speaker struct{}

// NewSpeaker creates a stub playback sink.
func NewSpeaker(_ int) *Speaker {
	return &Speaker{}
}

// Start implements [audio.Sink]. Always fails.
func (s *Speaker) Start(_ context.Context) error { return errNoDevice }

// Now implements [audio.Sink].
func (s *Speaker) Now() time.Duration { return 0 }

// Play implements [audio.Sink]. Always fails.
func (s *Speaker) Play(_ []int16, _ time.Duration) (audio.Handle, error) {
	return nil, errNoDevice
}

// Close implements [audio.Sink].
func (s *Speaker) Close() error { return nil }

// Interface conformance.
var (
	_ audio.Source = (*Microphone)(nil)
	_ audio.Sink   = (*Speaker)(nil)
)
