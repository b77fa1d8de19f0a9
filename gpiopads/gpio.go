//go:build baremetal

// Package gpiopads binds on-chip hardware (GPIO inputs, the MPR121 touch
// controller, the status LED) to the software pins and indicators the
// rest of the controller runs on.
package gpiopads

import (
	"machine"

	"github.com/WataNekko/esp-drum-midi-controller/pads"
)

// Bind configures pin as a pulled-down input and mirrors its level onto
// lp from the pin-change interrupt.
func Bind(pin machine.Pin, lp *pads.LevelPin) error {
	pin.Configure(machine.PinConfig{Mode: machine.PinInputPulldown})
	if err := pin.SetInterrupt(machine.PinRising|machine.PinFalling, func(p machine.Pin) {
		lp.Set(p.Get())
	}); err != nil {
		return err
	}
	lp.Set(pin.Get())
	return nil
}

// LED drives an active-low indicator pin.
type LED struct {
	pin machine.Pin
}

func NewLED(pin machine.Pin) *LED {
	pin.Configure(machine.PinConfig{Mode: machine.PinOutput})
	pin.High() // dark until the link asks for it
	return &LED{pin: pin}
}

func (l *LED) Set(on bool) {
	if on {
		l.pin.Low()
	} else {
		l.pin.High()
	}
}
