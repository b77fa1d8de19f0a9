//go:build baremetal

package gpiopads

import (
	"context"
	"time"

	"tinygo.org/x/drivers"
	"tinygo.org/x/drivers/mpr121"

	"github.com/WataNekko/esp-drum-midi-controller/pads"
)

const (
	touchElectrodes   = 12
	touchPollInterval = time.Millisecond
)

// TouchBank mirrors an MPR121 capacitive controller's touch mask onto
// software pins. Electrode N drives pin N; electrodes beyond the
// configured pins are ignored.
type TouchBank struct {
	dev      mpr121.Device
	pins     []*pads.LevelPin
	lastMask uint16
}

// NewTouchBank brings the controller up on the given I2C bus.
func NewTouchBank(bus drivers.I2C, pins []*pads.LevelPin) *TouchBank {
	dev := mpr121.New(bus, touchElectrodes)
	dev.Configure(mpr121.Config{
		TouchThreshold:   12,
		ReleaseThreshold: 6,
	})
	return &TouchBank{dev: dev, pins: pins}
}

// Run polls the touch mask until ctx is done. Polling at 1ms sits well
// inside the sensing engine's stability window.
func (t *TouchBank) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		mask := t.dev.IsTouched()
		if changed := mask ^ t.lastMask; changed != 0 {
			for i, pin := range t.pins {
				if changed&(1<<i) != 0 {
					pin.Set(mask&(1<<i) != 0)
				}
			}
			t.lastMask = mask
		}
		time.Sleep(touchPollInterval)
	}
}
