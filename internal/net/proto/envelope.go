package proto

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// HeaderSize is the fixed envelope prefix: type, channel, flags, length.
const HeaderSize = 8

// MaxPayloadSize bounds a single envelope body.
const MaxPayloadSize = 1 << 20

// Flags annotate an envelope.
type Flags uint8

const (
	// FlagCompressed marks a zstd-compressed payload.
	FlagCompressed Flags = 1 << iota
	// FlagBroadcast marks a message fanned out to every other peer.
	FlagBroadcast
)

// Has reports whether every bit of f2 is set in f.
func (f Flags) Has(f2 Flags) bool {
	return f&f2 == f2
}

var (
	ErrShortEnvelope   = errors.New("envelope shorter than header")
	ErrLengthMismatch  = errors.New("envelope length mismatch")
	ErrPayloadTooLarge = errors.New("envelope payload too large")
	ErrInvalidChannel  = errors.New("envelope channel out of range")
)

// Envelope is one framed message.
type Envelope struct {
	Type    MessageType
	Channel Channel
	Flags   Flags
	Payload []byte
}

// MarshalBinary frames the envelope in network byte order.
func (e Envelope) MarshalBinary() ([]byte, error) {
	if len(e.Payload) > MaxPayloadSize {
		return nil, fmt.Errorf("%s: %d bytes: %w", e.Type, len(e.Payload), ErrPayloadTooLarge)
	}
	if !e.Channel.Valid() {
		return nil, fmt.Errorf("%s: %w", e.Type, ErrInvalidChannel)
	}
	buf := make([]byte, HeaderSize+len(e.Payload))
	binary.BigEndian.PutUint16(buf[0:2], uint16(e.Type))
	buf[2] = byte(e.Channel)
	buf[3] = byte(e.Flags)
	binary.BigEndian.PutUint32(buf[4:8], uint32(len(e.Payload)))
	copy(buf[HeaderSize:], e.Payload)
	return buf, nil
}

// UnmarshalBinary parses a framed message. The payload is copied.
func (e *Envelope) UnmarshalBinary(data []byte) error {
	if len(data) < HeaderSize {
		return ErrShortEnvelope
	}
	length := binary.BigEndian.Uint32(data[4:8])
	if length > MaxPayloadSize {
		return ErrPayloadTooLarge
	}
	if int(length) != len(data)-HeaderSize {
		return fmt.Errorf("header says %d, body has %d: %w", length, len(data)-HeaderSize, ErrLengthMismatch)
	}
	channel := Channel(data[2])
	if !channel.Valid() {
		return ErrInvalidChannel
	}
	e.Type = MessageType(binary.BigEndian.Uint16(data[0:2]))
	e.Channel = channel
	e.Flags = Flags(data[3])
	e.Payload = append([]byte(nil), data[HeaderSize:]...)
	return nil
}

// PeekChannel reads the channel of a framed message without decoding it.
func PeekChannel(data []byte) (Channel, error) {
	if len(data) < HeaderSize {
		return 0, ErrShortEnvelope
	}
	channel := Channel(data[2])
	if !channel.Valid() {
		return 0, ErrInvalidChannel
	}
	return channel, nil
}
