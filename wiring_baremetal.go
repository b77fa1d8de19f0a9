//go:build baremetal

package main

import (
	"context"
	"machine"

	"github.com/WataNekko/esp-drum-midi-controller/gpiopads"
	"github.com/WataNekko/esp-drum-midi-controller/pads"
)

// rootContext never ends on its own; firmware runs until power-off.
func rootContext() (context.Context, context.CancelFunc) {
	return context.WithCancel(context.Background())
}

// Firmware builds always transmit over BLE; the -midiout flag only
// applies to the host rig.
func openHitSink(_ string, status *pads.StatusSignal, queue *pads.HitQueue) (runner, func(), error) {
	mgr, err := openBLE(status, queue, gpiopads.NewLED(machine.LED))
	if err != nil {
		return nil, nil, err
	}
	return mgr, func() {}, nil
}
