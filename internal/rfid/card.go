// Package rfid reads RDM6300 125 kHz tag frames from a serial port and
// turns them into discrete tag events on a bounded queue.
//
// Wire format (14 bytes per read):
//
//	0x02 | 10 ASCII-hex chars (1 version byte + 4 tag bytes) | 2 ASCII-hex
//	checksum chars (XOR of the 5 data bytes) | 0x03
//
// The reader owns the serial connection and runs at the device's cadence
// on its own goroutine; the playback loop only ever sees Events.
package rfid

import (
	"encoding/hex"
	"fmt"
)

// Frame layout constants.
const (
	frameLen  = 14
	frameSTX  = 0x02
	frameETX  = 0x03
	dataChars = 10 // ASCII-hex payload chars inside a frame
)

// Card is one decoded tag read.
type Card struct {
	Version uint8  // customer/version byte, first data byte
	Value   uint64 // 32-bit tag ID as printed on the fob
	Valid   bool   // checksum matched
}

// EventKind discriminates tag events.
type EventKind int

const (
	// EventInserted is a checksum-valid tag read.
	EventInserted EventKind = iota
	// EventInvalid is a read whose checksum failed; observational only.
	EventInvalid
)

func (k EventKind) String() string {
	switch k {
	case EventInserted:
		return "inserted"
	case EventInvalid:
		return "invalid"
	default:
		return "unknown"
	}
}

// Event is what crosses from the reader goroutine to the playback loop.
type Event struct {
	Kind  EventKind
	TagID uint64
}

// parseFrame decodes a complete 14-byte RDM6300 frame.
// The returned Card has Valid=false when the XOR checksum does not match;
// the caller decides whether that surfaces as an invalid-tag event.
func parseFrame(frame []byte) (Card, error) {
	if len(frame) != frameLen {
		return Card{}, fmt.Errorf("rfid: frame length %d, want %d", len(frame), frameLen)
	}
	if frame[0] != frameSTX || frame[frameLen-1] != frameETX {
		return Card{}, fmt.Errorf("rfid: bad frame delimiters %#02x/%#02x", frame[0], frame[frameLen-1])
	}

	data := make([]byte, dataChars/2)
	if _, err := hex.Decode(data, frame[1:1+dataChars]); err != nil {
		return Card{}, fmt.Errorf("rfid: payload not hexadecimal: %w", err)
	}
	sum := make([]byte, 1)
	if _, err := hex.Decode(sum, frame[1+dataChars:1+dataChars+2]); err != nil {
		return Card{}, fmt.Errorf("rfid: checksum not hexadecimal: %w", err)
	}

	var want byte
	for _, b := range data {
		want ^= b
	}

	value := uint64(data[1])<<24 | uint64(data[2])<<16 | uint64(data[3])<<8 | uint64(data[4])

	return Card{
		Version: data[0],
		Value:   value,
		Valid:   want == sum[0],
	}, nil
}
