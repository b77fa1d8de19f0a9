// Package serialpads feeds the pad bank from a sensor board attached
// over a serial link. The board streams level-mask frames; this side
// applies them to the software pins the sensing engine watches, which
// lets the whole controller run on a desk without GPIO hardware.
package serialpads

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"go.bug.st/serial"

	"github.com/WataNekko/esp-drum-midi-controller/pads"
)

// Bank bridges level-mask frames onto software pins. Mask bit N drives
// pin N; pads beyond the configured pins are ignored.
type Bank struct {
	rc   io.ReadCloser
	pins []*pads.LevelPin
	log  *slog.Logger

	lastMask uint16
}

// Open opens the named serial device at the given baud rate and returns
// a bank driving pins from its frames.
func Open(device string, baud int, pins []*pads.LevelPin, log *slog.Logger) (*Bank, error) {
	mode := &serial.Mode{BaudRate: baud}
	port, err := serial.Open(device, mode)
	if err != nil {
		return nil, fmt.Errorf("serial: open %s: %w", device, err)
	}
	if log == nil {
		log = slog.Default()
	}
	log.Info("serial: port opened", "device", device, "baud", baud)
	return NewBank(port, pins, log), nil
}

// NewBank wraps an already-open byte stream, which is how tests and rigs
// replay recorded pad activity.
func NewBank(rc io.ReadCloser, pins []*pads.LevelPin, log *slog.Logger) *Bank {
	if log == nil {
		log = slog.Default()
	}
	return &Bank{rc: rc, pins: pins, log: log}
}

// Run pumps frames into the pins until ctx is done or the stream dies.
// Malformed frames are logged and skipped after a resync; a dead stream
// is fatal because the pad bank is blind without it.
func (b *Bank) Run(ctx context.Context) error {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			// Unblocks the pending read.
			_ = b.rc.Close()
		case <-done:
		}
	}()

	r := bufio.NewReader(b.rc)
	for {
		mask, err := readFrame(r)
		if errors.Is(err, ErrBadFrame) {
			b.log.Warn("serial: frame dropped", "err", err)
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("serial: read: %w", err)
		}
		b.apply(mask)
	}
}

// Close releases the underlying stream.
func (b *Bank) Close() {
	b.log.Info("serial: closing port")
	_ = b.rc.Close()
}

// apply diffs the new mask against the previous one and updates only the
// pins that changed.
func (b *Bank) apply(mask uint16) {
	changed := mask ^ b.lastMask
	if changed == 0 {
		return
	}
	for i, pin := range b.pins {
		if changed&(1<<i) != 0 {
			pin.Set(mask&(1<<i) != 0)
		}
	}
	b.lastMask = mask
	b.log.Debug("serial: levels applied", "mask", fmt.Sprintf("%#04x", mask))
}
