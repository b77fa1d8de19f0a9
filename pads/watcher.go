package pads

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"
)

const (
	// StabilityWindow is how long a level change must persist before it
	// is accepted as a genuine transition. A reversal inside the window
	// discards the change as contact noise.
	StabilityWindow = 150 * time.Microsecond
	// HitDebounce masks mechanical bounce on a pad after its hit has been
	// accepted.
	HitDebounce = 30 * time.Millisecond
)

// roundState is the bookkeeping shared by all watchers of one
// sensor-active round. It is allocated fresh per round, so a watcher
// cancelled mid-round cannot leak counts or pedal state into the next.
type roundState struct {
	active    atomic.Int32
	pedalHeld atomic.Bool
}

// padWatcher runs the debounce and classification state machine for a
// single pad during one round.
type padWatcher struct {
	pin      Pin
	note     DrumNote
	queue    *HitQueue
	now      func() time.Time
	window   time.Duration
	debounce time.Duration
	log      *slog.Logger
}

// watch filters pin transitions until the round ends. It returns nil when
// this pad's own release drops the round's active count to zero, and the
// context error when the round is torn down from outside.
//
// Each accepted press increments the active count; each accepted release
// decrements it, classifies the hit and pushes it onto the queue. The
// PedalHiHat pad additionally drives the pedal-held flag (pressed clears
// it, released sets it), and an OpenHiHat release while the pedal is held
// is reported as ClosedHiHat for that hit only.
func (w *padWatcher) watch(ctx context.Context, st *roundState) error {
	for {
		if err := w.waitStable(ctx, true); err != nil {
			return err
		}
		st.active.Add(1)
		if w.note == PedalHiHat {
			st.pedalHeld.Store(false)
		}

		if err := w.waitStable(ctx, false); err != nil {
			return err
		}
		remaining := st.active.Add(-1)

		note := w.note
		switch {
		case w.note == PedalHiHat:
			st.pedalHeld.Store(true)
		case w.note == OpenHiHat && st.pedalHeld.Load():
			note = ClosedHiHat
		}

		w.queue.ForceSend(HitEvent{At: w.now(), Note: note})
		w.log.Debug("hit accepted", "note", note, "active", remaining)

		if remaining == 0 {
			return nil
		}
		if err := sleep(ctx, w.debounce); err != nil {
			return err
		}
	}
}

// waitStable waits until the pin reaches level and holds it for the full
// stability window. A reversal inside the window restarts the wait.
func (w *padWatcher) waitStable(ctx context.Context, level bool) error {
	wait, reverse := w.pin.WaitLow, w.pin.WaitHigh
	if level {
		wait, reverse = reverse, wait
	}

	for {
		if err := wait(ctx); err != nil {
			return err
		}
		stable, err := holdsFor(ctx, reverse, w.window)
		if err != nil {
			return err
		}
		if stable {
			return nil
		}
	}
}

// holdsFor reports whether reverse stays untriggered for d.
func holdsFor(ctx context.Context, reverse func(context.Context) error, d time.Duration) (bool, error) {
	wctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	if err := reverse(wctx); err == nil {
		// The level flipped back inside the window.
		return false, nil
	}
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	return true, nil
}

// sleep is a context-aware time.Sleep.
func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
