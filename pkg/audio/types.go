// Package audio defines the PCM frame type, device interfaces, and format
// conversion shared by the capture and playback paths.
package audio

import (
	"context"
	"time"
)

// Frame is one block of PCM samples flowing through the pipeline. Samples
// are interleaved when Channels > 1.
type Frame struct {
	// Data holds the samples. Sample rate and channel count describe the
	// layout; len(Data) = samples-per-channel × Channels.
	Data []int16

	// SampleRate in Hz (24000 for the voice protocol; devices may differ).
	SampleRate int

	// Channels: 1 for mono, 2 for interleaved stereo.
	Channels int

	// Timestamp marks when this frame was captured, relative to stream start.
	Timestamp time.Duration
}

// Duration returns the playback length of the frame.
func (f Frame) Duration() time.Duration {
	if f.SampleRate <= 0 || f.Channels <= 0 {
		return 0
	}
	return time.Duration(len(f.Data)/f.Channels) * time.Second / time.Duration(f.SampleRate)
}

// Source is a capture device delivering PCM frames at a fixed cadence.
// Implementations own exclusive device access; a denied microphone surfaces
// as an error from Start, not from Read.
type Source interface {
	// Start acquires the device and begins capture. Blocks until the device
	// is open or ctx is done.
	Start(ctx context.Context) error

	// Read blocks until the next frame is available. After Close, Read
	// returns an error.
	Read() (Frame, error)

	// Close releases the device. Safe to call more than once.
	Close() error
}

// Sink is a playback device with an output clock. Play places a PCM buffer
// on the timeline at an absolute output-clock time; the sink renders silence
// for any gap between the end of the previous buffer and the requested
// start.
type Sink interface {
	// Start opens the device. Blocks until the output stream is running or
	// ctx is done.
	Start(ctx context.Context) error

	// Now returns the current output-clock position. The clock starts at
	// zero when the sink starts and advances with samples actually played.
	Now() time.Duration

	// Play schedules pcm (mono, protocol rate) to begin at the given
	// output-clock time. If at is already in the past the buffer starts as
	// soon as possible. The returned handle releases the buffer's resources
	// once the caller knows it has finished.
	Play(pcm []int16, at time.Duration) (Handle, error)

	// Close stops playback and releases the device.
	Close() error
}

// Handle refers to one scheduled playback buffer.
type Handle interface {
	// Release frees the buffer's resources. Releasing a buffer that is
	// still playing cuts it off; callers release only finished buffers.
	Release()
}
