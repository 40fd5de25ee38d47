package rfid

import (
	"fmt"
	"log/slog"
	"time"

	"go.bug.st/serial"
)

// Handler receives decoded reader callbacks. Implementations must not
// block: the reader goroutine calls them inline between serial reads.
type Handler interface {
	// OnInsert fires once when a checksum-valid card appears at the reader.
	// Repeat reads of the same present card do not re-fire.
	OnInsert(Card)
	// OnRemove fires when a present card has not been re-read for the
	// heartbeat interval.
	OnRemove(Card)
	// OnInvalid fires for every read whose checksum failed.
	OnInvalid(Card)
	// Tick fires once per poll cycle, card or not.
	Tick()
}

// Reader owns the serial connection to an RDM6300 and feeds a Handler.
type Reader struct {
	port      serial.Port
	portName  string
	handler   Handler
	heartbeat time.Duration

	stop chan struct{}
	done chan struct{}

	// present card tracking, touched only by the Run goroutine
	current  *Card
	lastSeen time.Time

	frame []byte // partial frame accumulator
}

// readTimeout bounds each serial read so the stop signal is observed
// promptly even when no tag is near the antenna.
const readTimeout = 200 * time.Millisecond

// Open connects to the reader's serial port (9600 8N1, per the RDM6300 datasheet).
func Open(portName string, heartbeat time.Duration, h Handler) (*Reader, error) {
	mode := &serial.Mode{
		BaudRate: 9600,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(portName, mode)
	if err != nil {
		return nil, fmt.Errorf("rfid: open %s: %w", portName, err)
	}
	if err := port.SetReadTimeout(readTimeout); err != nil {
		port.Close()
		return nil, fmt.Errorf("rfid: set read timeout on %s: %w", portName, err)
	}

	return &Reader{
		port:      port,
		portName:  portName,
		handler:   h,
		heartbeat: heartbeat,
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
		frame:     make([]byte, 0, frameLen),
	}, nil
}

// Run is the blocking read loop. Call it in a goroutine; it exits when
// SignalStop is called or the port dies.
func (r *Reader) Run() {
	defer close(r.done)
	defer r.port.Close()

	slog.Info("rfid: reader started", "port", r.portName, "heartbeat", r.heartbeat)

	buf := make([]byte, 64)
	for {
		select {
		case <-r.stop:
			slog.Info("rfid: stop signalled, reader exiting", "port", r.portName)
			return
		default:
		}

		n, err := r.port.Read(buf)
		if err != nil {
			slog.Error("rfid: serial read failed, reader exiting", "port", r.portName, "error", err)
			return
		}
		for _, b := range buf[:n] {
			r.feed(b)
		}

		r.expireCard(time.Now())
		r.handler.Tick()
	}
}

// SignalStop asks the read loop to exit. Safe to call more than once.
func (r *Reader) SignalStop() {
	select {
	case <-r.stop:
	default:
		close(r.stop)
	}
}

// Join waits for the read loop to finish, up to timeout.
// Returns false if the loop is still running when the timeout fires.
func (r *Reader) Join(timeout time.Duration) bool {
	select {
	case <-r.done:
		return true
	case <-time.After(timeout):
		return false
	}
}

// feed pushes one serial byte through the frame accumulator.
func (r *Reader) feed(b byte) {
	if len(r.frame) == 0 {
		if b != frameSTX {
			return // resync: discard noise until a start byte
		}
		r.frame = append(r.frame, b)
		return
	}

	r.frame = append(r.frame, b)
	if len(r.frame) < frameLen {
		return
	}

	frame := r.frame
	r.frame = r.frame[:0]

	card, err := parseFrame(frame)
	if err != nil {
		slog.Debug("rfid: discarding malformed frame", "error", err)
		return
	}
	r.observe(card, time.Now())
}

// observe applies de-duplication and dispatches handler callbacks.
// The RDM6300 re-emits the same frame continuously while a card sits on
// the antenna; only the first read becomes an insert event.
func (r *Reader) observe(card Card, now time.Time) {
	if !card.Valid {
		slog.Warn("rfid: tag read with bad checksum", "tag", card.Value)
		r.handler.OnInvalid(card)
		return
	}

	if r.current != nil && r.current.Value == card.Value {
		r.lastSeen = now
		return
	}
	if r.current != nil {
		// a different card replaced the previous one without a silence gap
		r.handler.OnRemove(*r.current)
	}
	c := card
	r.current = &c
	r.lastSeen = now
	slog.Info("rfid: tag inserted", "tag", card.Value, "version", card.Version)
	r.handler.OnInsert(card)
}

// expireCard fires OnRemove once the heartbeat interval passes with no
// re-read of the present card.
func (r *Reader) expireCard(now time.Time) {
	if r.current == nil {
		return
	}
	if now.Sub(r.lastSeen) < r.heartbeat {
		return
	}
	slog.Info("rfid: tag removed", "tag", r.current.Value)
	r.handler.OnRemove(*r.current)
	r.current = nil
}
