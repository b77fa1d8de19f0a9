//go:build !baremetal

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/WataNekko/esp-drum-midi-controller/midiout"
	"github.com/WataNekko/esp-drum-midi-controller/pads"
	"github.com/WataNekko/esp-drum-midi-controller/serialpads"
)

// rootContext ends on SIGINT/SIGTERM so the service loops unwind and the
// deferred cleanups run.
func rootContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// openPadSource attaches the serial sensor board and returns its frame
// pump plus the software pins in padLayout order.
func openPadSource(device string, baud int) (runner, []*pads.LevelPin, func(), error) {
	pins := make([]*pads.LevelPin, len(padLayout))
	for i := range pins {
		pins[i] = pads.NewLevelPin()
	}
	bank, err := serialpads.Open(device, baud, pins, logger)
	if err != nil {
		return nil, nil, nil, err
	}
	return bank, pins, bank.Close, nil
}

// openHitSink picks the transmitter: a local MIDI port when requested,
// the BLE link otherwise.
func openHitSink(midiOut string, status *pads.StatusSignal, queue *pads.HitQueue) (runner, func(), error) {
	if midiOut != "" {
		sink, err := midiout.Open(midiOut, queue, logger)
		if err != nil {
			return nil, nil, err
		}
		return sink, sink.Close, nil
	}
	mgr, err := openBLE(status, queue, nil)
	if err != nil {
		return nil, nil, err
	}
	return mgr, func() {}, nil
}
