// Package midiout delivers hits to a MIDI output port on this machine.
// It is the desk-testing peer of the BLE link: same queue, same note
// policy, but the events land in a local synth instead of a remote peer.
package midiout

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	"gitlab.com/gomidi/midi/v2/drivers/rtmididrv"

	"github.com/WataNekko/esp-drum-midi-controller/pads"
)

// Virtual/system ports that are never auto-picked.
var excludedPatterns = []string{"Midi Through", "Through Port", "Dummy"}

// Sink drains the hit queue into a local MIDI out port, reusing the BLE
// notifier's channel and velocity policy.
type Sink struct {
	drv   *rtmididrv.Driver
	out   drivers.Out
	send  func(midi.Message) error
	queue *pads.HitQueue
	log   *slog.Logger
}

// Open initialises the rtmidi driver and connects to the first output
// port matching pattern (case-insensitive). With an empty pattern the
// first non-excluded port wins.
func Open(pattern string, queue *pads.HitQueue, log *slog.Logger) (*Sink, error) {
	if log == nil {
		log = slog.Default()
	}
	drv, err := rtmididrv.New()
	if err != nil {
		return nil, fmt.Errorf("rtmididrv: %w", err)
	}

	out, err := pickOutput(drv, pattern, log)
	if err != nil {
		drv.Close()
		return nil, err
	}
	if err := out.Open(); err != nil {
		drv.Close()
		return nil, fmt.Errorf("open %q: %w", out.String(), err)
	}
	send, err := midi.SendTo(out)
	if err != nil {
		_ = out.Close()
		drv.Close()
		return nil, fmt.Errorf("sender for %q: %w", out.String(), err)
	}

	log.Info("midi: output connected", "device", out.String())
	return &Sink{drv: drv, out: out, send: send, queue: queue, log: log}, nil
}

func pickOutput(drv *rtmididrv.Driver, pattern string, log *slog.Logger) (drivers.Out, error) {
	outs, err := drv.Outs()
	if err != nil {
		return nil, fmt.Errorf("list outputs: %w", err)
	}

	var names []string
	var candidates []drivers.Out
	for _, out := range outs {
		name := out.String()
		if excludedOutput(name) {
			log.Debug("midi: output excluded", "device", name)
			continue
		}
		candidates = append(candidates, out)
		names = append(names, name)
	}
	log.Debug("midi: outputs found", "count", len(candidates), "devices", strings.Join(names, ", "))

	for _, out := range candidates {
		if pattern == "" || containsCI(out.String(), pattern) {
			return out, nil
		}
	}
	return nil, fmt.Errorf("no MIDI output matching %q", pattern)
}

func excludedOutput(name string) bool {
	for _, pat := range excludedPatterns {
		if containsCI(name, pat) {
			return true
		}
	}
	return false
}

func containsCI(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}

// Run drains hits until ctx is done. Send failures are logged and
// skipped.
func (s *Sink) Run(ctx context.Context) error {
	for {
		ev, err := s.queue.Receive(ctx)
		if err != nil {
			return err
		}
		if err := s.send(midi.NoteOn(pads.MIDIChannel, uint8(ev.Note), pads.Velocity)); err != nil {
			s.log.Warn("midi: send failed", "note", ev.Note, "err", err)
			continue
		}
		s.log.Debug("midi: hit played", "note", ev.Note)
	}
}

// Close shuts the port and the driver down.
func (s *Sink) Close() {
	s.log.Info("midi: closing output", "device", s.out.String())
	_ = s.out.Close()
	s.drv.Close()
}
