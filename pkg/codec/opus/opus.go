// Package opus wraps the Opus codec at the voice protocol's fixed
// parameters: 24 kHz mono, with 80 ms frames on the encode side.
package opus

import (
	"fmt"
	"time"

	"layeh.com/gopus"
)

// Protocol audio parameters. The capture pipeline hands the encoder exactly
// one frame per call; inbound chunks may carry any duration up to the Opus
// maximum, so the decoder sizes for the worst case.
const (
	SampleRate = 24000
	Channels   = 1

	frameMs = 80

	// FrameSamples is the number of samples per channel in one outbound frame.
	FrameSamples = SampleRate * frameMs / 1000 // 1920

	// FrameDuration is the wall-clock length of one outbound frame.
	FrameDuration = frameMs * time.Millisecond

	// maxChunkSamples bounds one inbound decode. 120 ms is the longest frame
	// Opus permits in a single packet.
	maxChunkSamples = SampleRate * 120 / 1000 // 2880

	// maxEncodedBytes is the output budget for one encoded frame. PCM size is
	// a safe upper bound: Opus never inflates speech.
	maxEncodedBytes = FrameSamples * Channels * 2
)

// Encoder turns fixed-size PCM frames into Opus packets. One encoder per
// capture stream; the codec carries state between consecutive frames.
type Encoder struct {
	enc *gopus.Encoder
}

// NewEncoder creates an encoder at the protocol's sample rate and channel
// count.
func NewEncoder() (*Encoder, error) {
	enc, err := gopus.NewEncoder(SampleRate, Channels, gopus.Audio)
	if err != nil {
		return nil, fmt.Errorf("opus: create encoder: %w", err)
	}
	return &Encoder{enc: enc}, nil
}

// Encode compresses exactly one frame of PCM. Inputs that are not
// [FrameSamples] samples long are rejected rather than padded, since a short
// frame would desync the codec state.
func (e *Encoder) Encode(pcm []int16) ([]byte, error) {
	if len(pcm) != FrameSamples*Channels {
		return nil, fmt.Errorf("opus: encode: %d samples, want %d", len(pcm), FrameSamples*Channels)
	}
	data, err := e.enc.Encode(pcm, FrameSamples, maxEncodedBytes)
	if err != nil {
		return nil, fmt.Errorf("opus: encode: %w", err)
	}
	return data, nil
}

// Decoder turns inbound Opus packets back into PCM. One decoder per session;
// decoder state spans consecutive chunks.
type Decoder struct {
	dec *gopus.Decoder
}

// NewDecoder creates a decoder at the protocol's sample rate and channel
// count.
func NewDecoder() (*Decoder, error) {
	dec, err := gopus.NewDecoder(SampleRate, Channels)
	if err != nil {
		return nil, fmt.Errorf("opus: create decoder: %w", err)
	}
	return &Decoder{dec: dec}, nil
}

// Decode decompresses one inbound chunk. The returned slice holds however
// many samples the packet actually carried; zero samples is a valid result,
// not an error.
func (d *Decoder) Decode(packet []byte) ([]int16, error) {
	pcm, err := d.dec.Decode(packet, maxChunkSamples, false)
	if err != nil {
		return nil, fmt.Errorf("opus: decode: %w", err)
	}
	return pcm, nil
}

// Duration converts a decoded sample count into playback time at the
// protocol rate.
func Duration(samples int) time.Duration {
	return time.Duration(samples) * time.Second / (SampleRate * Channels)
}
