package rfid

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildFrame assembles a wire frame for the given version and tag value,
// with a correct checksum unless corrupt is set.
func buildFrame(version uint8, value uint32, corrupt bool) []byte {
	data := []byte{
		version,
		byte(value >> 24), byte(value >> 16), byte(value >> 8), byte(value),
	}
	var sum byte
	for _, b := range data {
		sum ^= b
	}
	if corrupt {
		sum ^= 0xFF
	}
	frame := []byte{frameSTX}
	frame = append(frame, fmt.Sprintf("%02X%02X%02X%02X%02X%02X", data[0], data[1], data[2], data[3], data[4], sum)...)
	return append(frame, frameETX)
}

func TestParseFrame_Valid(t *testing.T) {
	card, err := parseFrame(buildFrame(0x0B, 0x0012ABCD, false))
	require.NoError(t, err)
	assert.True(t, card.Valid)
	assert.Equal(t, uint8(0x0B), card.Version)
	assert.Equal(t, uint64(0x0012ABCD), card.Value)
}

func TestParseFrame_BadChecksum(t *testing.T) {
	card, err := parseFrame(buildFrame(0x01, 0x1A2, true))
	require.NoError(t, err)
	assert.False(t, card.Valid)
	assert.Equal(t, uint64(0x1A2), card.Value)
}

func TestParseFrame_Malformed(t *testing.T) {
	_, err := parseFrame([]byte{frameSTX, 'A', frameETX})
	assert.Error(t, err)

	frame := buildFrame(0x01, 0x1A2, false)
	frame[0] = 0x04
	_, err = parseFrame(frame)
	assert.Error(t, err)

	frame = buildFrame(0x01, 0x1A2, false)
	frame[3] = 'z' // not hex
	_, err = parseFrame(frame)
	assert.Error(t, err)
}

// recordingHandler captures callbacks for assertions.
type recordingHandler struct {
	inserts  []Card
	removes  []Card
	invalids []Card
}

func (h *recordingHandler) OnInsert(c Card)  { h.inserts = append(h.inserts, c) }
func (h *recordingHandler) OnRemove(c Card)  { h.removes = append(h.removes, c) }
func (h *recordingHandler) OnInvalid(c Card) { h.invalids = append(h.invalids, c) }
func (h *recordingHandler) Tick()            {}

func testReader(h Handler) *Reader {
	return &Reader{
		handler:   h,
		heartbeat: 500 * time.Millisecond,
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
		frame:     make([]byte, 0, frameLen),
	}
}

func TestReader_DeduplicatesRepeatReads(t *testing.T) {
	h := &recordingHandler{}
	r := testReader(h)

	for range 5 {
		for _, b := range buildFrame(0x01, 0x1A2, false) {
			r.feed(b)
		}
	}

	require.Len(t, h.inserts, 1)
	assert.Equal(t, uint64(0x1A2), h.inserts[0].Value)
	assert.Empty(t, h.removes)
}

func TestReader_HeartbeatExpiresCard(t *testing.T) {
	h := &recordingHandler{}
	r := testReader(h)

	now := time.Now()
	r.observe(Card{Value: 0x1A2, Valid: true}, now)
	require.Len(t, h.inserts, 1)

	r.expireCard(now.Add(100 * time.Millisecond))
	assert.Empty(t, h.removes, "card still within heartbeat window")

	r.expireCard(now.Add(time.Second))
	require.Len(t, h.removes, 1)
	assert.Equal(t, uint64(0x1A2), h.removes[0].Value)

	// same tag again after removal is a fresh insert
	r.observe(Card{Value: 0x1A2, Valid: true}, now.Add(2*time.Second))
	assert.Len(t, h.inserts, 2)
}

func TestReader_CardSwapFiresRemoveThenInsert(t *testing.T) {
	h := &recordingHandler{}
	r := testReader(h)

	now := time.Now()
	r.observe(Card{Value: 0x1, Valid: true}, now)
	r.observe(Card{Value: 0x2, Valid: true}, now.Add(10*time.Millisecond))

	require.Len(t, h.inserts, 2)
	require.Len(t, h.removes, 1)
	assert.Equal(t, uint64(0x1), h.removes[0].Value)
}

func TestReader_InvalidChecksumAlwaysReported(t *testing.T) {
	h := &recordingHandler{}
	r := testReader(h)

	for range 3 {
		for _, b := range buildFrame(0x01, 0x1A2, true) {
			r.feed(b)
		}
	}
	assert.Len(t, h.invalids, 3)
	assert.Empty(t, h.inserts)
}

func TestReader_ResyncsOnNoise(t *testing.T) {
	h := &recordingHandler{}
	r := testReader(h)

	noise := []byte{0xFF, 0x00, 0x41}
	for _, b := range append(noise, buildFrame(0x01, 0xBEEF, false)...) {
		r.feed(b)
	}
	require.Len(t, h.inserts, 1)
	assert.Equal(t, uint64(0xBEEF), h.inserts[0].Value)
}
