// Package pads turns raw drum-pad level transitions into classified,
// debounced hit events and a bank-wide on/off status.
//
// The package is hardware-free: input sources (GPIO interrupts, a serial
// sensor rig, a touch controller) drive LevelPin values, and everything
// above that is plain Go that can be exercised in tests.
package pads

import "fmt"

// Rendering policy shared by every transmitter: hits play on the GM
// percussion channel (channel 10, zero-based 9) at a fixed velocity.
const (
	MIDIChannel uint8 = 9
	Velocity    uint8 = 100
)

// DrumNote is the General MIDI percussion note a pad reports. The
// pin-to-note mapping is compiled in, one note per physical pad;
// ClosedHiHat is virtual and only ever produced by reclassifying an
// OpenHiHat release while the pedal is held.
type DrumNote uint8

const (
	BassDrum     DrumNote = 36
	Snare        DrumNote = 38
	ClosedHiHat  DrumNote = 42
	FloorTom     DrumNote = 43
	PedalHiHat   DrumNote = 44
	LowTom       DrumNote = 45
	OpenHiHat    DrumNote = 46
	HighTom      DrumNote = 48
	CrashCymbal1 DrumNote = 49
	RideCymbal   DrumNote = 51
	CrashCymbal2 DrumNote = 57
)

var noteNames = map[DrumNote]string{
	BassDrum:     "BassDrum",
	Snare:        "Snare",
	ClosedHiHat:  "ClosedHiHat",
	FloorTom:     "FloorTom",
	PedalHiHat:   "PedalHiHat",
	LowTom:       "LowTom",
	OpenHiHat:    "OpenHiHat",
	HighTom:      "HighTom",
	CrashCymbal1: "CrashCymbal1",
	RideCymbal:   "RideCymbal",
	CrashCymbal2: "CrashCymbal2",
}

func (n DrumNote) String() string {
	if name, ok := noteNames[n]; ok {
		return name
	}
	return fmt.Sprintf("DrumNote(%d)", uint8(n))
}
