// Package blemidi implements the BLE-MIDI transport packet used on the
// MIDI I/O characteristic: a two-byte header/timestamp prefix followed by
// the raw bytes of exactly one MIDI message.
package blemidi

import (
	"errors"
	"fmt"
	"time"

	"gitlab.com/gomidi/midi/v2"
)

// GATT identifiers of the MIDI I/O service.
const (
	ServiceUUID        = "03b80e5a-ede8-4b33-a751-6ce34ec4c700"
	CharacteristicUUID = "7772e5db-3868-4112-a1a9-f2669d106bf3"
)

const (
	headerSize = 2
	// MinSize is the smallest valid packet: header, timestamp and one
	// status byte.
	MinSize = headerSize + 1
	// Cap bounds a packet to the header plus one full channel voice
	// message. Each packet carries a single message; running-status
	// chaining is not used.
	Cap = headerSize + 3
)

// ErrPacketSize reports a packet or message outside the transport bounds.
var ErrPacketSize = errors.New("blemidi: packet size out of bounds")

// Packet is one transport packet in wire form.
type Packet struct {
	buf [Cap]byte
	n   int
}

// Bytes returns the encoded packet.
func (p *Packet) Bytes() []byte { return p.buf[:p.n] }

// Timestamp converts t to the transport's 13-bit rolling millisecond
// counter. Receivers only use it to reconstruct spacing between events,
// so wrapping every 8.192s is fine.
func Timestamp(t time.Time) uint16 {
	return uint16(t.UnixMilli()) & 0x1fff
}

// Encode renders msg into a packet stamped with the given rolling
// millisecond timestamp. The high timestamp bits ride in the header byte,
// the low seven in the timestamp byte, both with the marker bit set.
func Encode(millis uint16, msg midi.Message) (*Packet, error) {
	if len(msg) == 0 || headerSize+len(msg) > Cap {
		return nil, fmt.Errorf("%w: %d message bytes", ErrPacketSize, len(msg))
	}
	p := &Packet{n: headerSize + len(msg)}
	p.buf[0] = 0x80 | byte(millis>>7)&0x3f
	p.buf[1] = 0x80 | byte(millis)&0x7f
	copy(p.buf[headerSize:], msg)
	return p, nil
}

// EncodeAt is Encode with the timestamp derived from t.
func EncodeAt(t time.Time, msg midi.Message) (*Packet, error) {
	return Encode(Timestamp(t), msg)
}

// Decode stores an inbound packet after checking its size. Payload bytes
// are kept verbatim; this end does not interpret what peers write.
func Decode(data []byte) (*Packet, error) {
	if len(data) < MinSize || len(data) > Cap {
		return nil, fmt.Errorf("%w: %d bytes", ErrPacketSize, len(data))
	}
	p := &Packet{n: len(data)}
	copy(p.buf[:], data)
	return p, nil
}
