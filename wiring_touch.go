//go:build baremetal && touchpads

package main

import (
	"machine"

	"github.com/WataNekko/esp-drum-midi-controller/gpiopads"
	"github.com/WataNekko/esp-drum-midi-controller/pads"
)

// Touch-sensing build: the pads are MPR121 electrodes instead of
// discrete GPIO contacts. Electrode order matches padLayout.
func openPadSource(string, int) (runner, []*pads.LevelPin, func(), error) {
	machine.I2C0.Configure(machine.I2CConfig{})

	pins := make([]*pads.LevelPin, len(padLayout))
	for i := range pins {
		pins[i] = pads.NewLevelPin()
	}
	return gpiopads.NewTouchBank(machine.I2C0, pins), pins, func() {}, nil
}
