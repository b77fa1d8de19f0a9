//go:build baremetal && !touchpads

package main

import (
	"context"
	"machine"

	"github.com/WataNekko/esp-drum-midi-controller/gpiopads"
	"github.com/WataNekko/esp-drum-midi-controller/pads"
)

// padPins wires padLayout to the board, index for index.
var padPins = []machine.Pin{
	machine.D0, machine.D1, machine.D2, machine.D3, machine.D4,
	machine.D5, machine.D6, machine.D7, machine.D8, machine.D9,
}

// idle fills the source runner slot on builds where the input needs no
// pump; the pin-change interrupts push levels on their own.
type idle struct{}

func (idle) Run(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}

func openPadSource(string, int) (runner, []*pads.LevelPin, func(), error) {
	pins := make([]*pads.LevelPin, len(padLayout))
	for i := range pins {
		pins[i] = pads.NewLevelPin()
		if err := gpiopads.Bind(padPins[i], pins[i]); err != nil {
			return nil, nil, nil, err
		}
	}
	return idle{}, pins, func() {}, nil
}
