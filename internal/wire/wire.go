// Package wire implements the tagged binary frame protocol spoken over the
// voice socket.
//
// The protocol is asymmetric. Outbound messages carry raw compressed audio
// with no tag: microphone frames are the only thing the client sends, so the
// type is implicit. Inbound messages begin with a single tag byte naming the
// payload that follows; everything after the tag is the payload. The
// underlying transport's message framing supplies the boundaries, so there is
// no length prefix and no checksum.
package wire

import "errors"

// Inbound message tags. The session dispatches on these; any other value is
// ignored without error.
const (
	// TagAudio marks a compressed audio payload bound for the playback
	// scheduler.
	TagAudio byte = 1

	// TagText marks a UTF-8 text payload bound for the sentence assembler.
	TagText byte = 2
)

// ErrEmpty is returned by [DecodeInbound] for a zero-length message. Callers
// drop the frame without dispatching a payload.
var ErrEmpty = errors.New("wire: empty message")

// Message is one parsed inbound frame. Payload aliases the input slice, so
// it must be consumed before the read buffer is reused.
type Message struct {
	// Tag identifies the payload type. See [TagAudio] and [TagText].
	Tag byte

	// Payload is every byte after the tag. May be empty.
	Payload []byte
}

// DecodeInbound splits an inbound message into its tag byte and payload.
// The only failure mode is a zero-length input, which returns [ErrEmpty].
func DecodeInbound(data []byte) (Message, error) {
	if len(data) == 0 {
		return Message{}, ErrEmpty
	}
	return Message{Tag: data[0], Payload: data[1:]}, nil
}

// EncodeOutbound frames one encoded audio buffer for sending. The outbound
// direction is untagged, so this is the identity; it exists so both
// directions of the protocol live in one package.
func EncodeOutbound(frame []byte) []byte {
	return frame
}

// Known reports whether tag is one the client dispatches on.
func Known(tag byte) bool {
	return tag == TagAudio || tag == TagText
}
