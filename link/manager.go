package link

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gitlab.com/gomidi/midi/v2"
	"golang.org/x/sync/errgroup"

	"github.com/WataNekko/esp-drum-midi-controller/blemidi"
	"github.com/WataNekko/esp-drum-midi-controller/pads"
)

// AdvertiseTimeout bounds one advertising attempt before the manager logs
// the miss and re-checks whether the bank is still on.
const AdvertiseTimeout = 60 * time.Second

// ErrAdvertiseTimeout reports that no peer connected within one
// advertising window.
var ErrAdvertiseTimeout = errors.New("link: no peer connected within the advertising window")

// Manager walks the session lifecycle one phase at a time: gated idle
// while the sensor bank is off, advertising while it is on, then one
// served connection until either side gives up. A status flip to off
// tears the current phase down immediately; sessions are never resumed.
type Manager struct {
	radio  Radio
	status *pads.StatusSignal
	queue  *pads.HitQueue
	led    StatusLED
	log    *slog.Logger

	advTimeout time.Duration
}

// NewManager wires a radio to the sensor bank's status signal and hit
// queue. led may be nil on builds without an indicator.
func NewManager(radio Radio, status *pads.StatusSignal, queue *pads.HitQueue, led StatusLED, log *slog.Logger) *Manager {
	if log == nil {
		log = slog.Default()
	}
	return &Manager{
		radio:      radio,
		status:     status,
		queue:      queue,
		led:        led,
		log:        log,
		advTimeout: AdvertiseTimeout,
	}
}

// Run drives the radio's service routine and the sensor-gated session
// loop until ctx is done. A radio failure is fatal and becomes the
// returned error.
func (m *Manager) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := m.radio.Run(gctx); err != nil {
			return fmt.Errorf("radio service: %w", err)
		}
		return nil
	})
	g.Go(func() error { return m.sessionLoop(gctx) })
	return g.Wait()
}

func (m *Manager) sessionLoop(ctx context.Context) error {
	for {
		if err := m.waitStatus(ctx, pads.StatusOn); err != nil {
			return err
		}
		m.log.Info("sensors on; link cycle starting")
		if err := m.runCycle(ctx); err != nil {
			return err
		}
	}
}

// runCycle serves advertising and connection attempts until the bank
// reports off or ctx is done. The off watcher races the serving loop so
// a status flip interrupts even a connected session.
func (m *Manager) runCycle(ctx context.Context) error {
	cctx, cancel := context.WithCancel(ctx)
	defer cancel()

	off := make(chan error, 1)
	go func() { off <- m.waitStatus(cctx, pads.StatusOff) }()

	served := make(chan error, 1)
	go func() { served <- m.serve(cctx) }()

	select {
	case err := <-off:
		cancel()
		<-served
		if err != nil {
			return err
		}
		m.log.Info("sensors off; abandoning link cycle")
		return nil
	case err := <-served:
		cancel()
		<-off
		return err
	}
}

// serve runs bounded advertising attempts and serves each connection
// until the bank is no longer on.
func (m *Manager) serve(ctx context.Context) error {
	for {
		if m.status.Current() != pads.StatusOn {
			return nil
		}
		err := m.advertise(ctx)
		switch {
		case errors.Is(err, ErrAdvertiseTimeout):
			m.log.Warn("advertising window elapsed without a peer")
			continue
		case err != nil:
			return err
		}
		m.serveConnection(ctx)
	}
}

// advertise runs one bounded advertising attempt and waits for a peer.
func (m *Manager) advertise(ctx context.Context) error {
	if err := m.radio.Advertise(); err != nil {
		return fmt.Errorf("start advertising: %w", err)
	}
	stopBlink := m.ledBlink(advertiseBlink, false)
	defer func() {
		stopBlink()
		if err := m.radio.StopAdvertising(); err != nil {
			m.log.Debug("stop advertising", "err", err)
		}
	}()
	m.log.Info("advertising", "timeout", m.advTimeout)

	timer := time.NewTimer(m.advTimeout)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			return ErrAdvertiseTimeout
		case ev := <-m.radio.Events():
			if ev.Kind == EventConnected {
				m.log.Info("peer connected")
				return nil
			}
			// A stale disconnect from an earlier session; keep waiting.
		}
	}
}

// serveConnection runs the two session duties until one finishes:
// watching for the disconnect event and streaming hits as notifications.
// The queue is cleared first so the fresh peer only sees strikes played
// after it connected. The LED's connect burst runs alongside the duties
// and is joined before the session is declared closed.
func (m *Manager) serveConnection(ctx context.Context) {
	m.queue.Clear()
	m.log.Info("session open; hit queue cleared")

	sctx, cancel := context.WithCancel(ctx)
	defer cancel()

	flashed := make(chan struct{})
	go func() {
		defer close(flashed)
		m.ledConnectFlash(sctx)
	}()

	done := make(chan struct{}, 2)
	go func() {
		m.watchDisconnect(sctx)
		done <- struct{}{}
	}()
	go func() {
		m.notifyHits(sctx)
		done <- struct{}{}
	}()

	<-done
	cancel()
	<-done
	<-flashed
	m.ledSet(false)
	m.log.Info("session closed")
}

func (m *Manager) watchDisconnect(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-m.radio.Events():
			if ev.Kind == EventDisconnected {
				m.log.Info("peer disconnected", "reason", ev.Reason)
				return
			}
		}
	}
}

func (m *Manager) notifyHits(ctx context.Context) {
	for {
		ev, err := m.queue.Receive(ctx)
		if err != nil {
			m.flushHits()
			return
		}
		if !m.notifyHit(ev) {
			return
		}
	}
}

// flushHits delivers hits that were already queued when the session began
// tearing down. The release that ends a round both queues its hit and
// flips the bank off, so the teardown it triggers must not outrun the
// hit's own delivery.
func (m *Manager) flushHits() {
	for {
		ev, ok := m.queue.TryReceive()
		if !ok {
			return
		}
		if !m.notifyHit(ev) {
			return
		}
	}
}

// notifyHit encodes and pushes one hit, reporting whether the session is
// still usable.
func (m *Manager) notifyHit(ev pads.HitEvent) bool {
	pkt, err := blemidi.EncodeAt(ev.At, midi.NoteOn(pads.MIDIChannel, uint8(ev.Note), pads.Velocity))
	if err != nil {
		m.log.Error("encode hit", "note", ev.Note, "err", err)
		return true
	}
	if err := m.radio.Notify(pkt.Bytes()); err != nil {
		m.log.Warn("notify failed", "err", err)
		return false
	}
	m.log.Debug("hit sent", "note", ev.Note, "ts", blemidi.Timestamp(ev.At))
	return true
}

// waitStatus consumes status values until want appears or ctx is done.
func (m *Manager) waitStatus(ctx context.Context, want pads.Status) error {
	for {
		v, err := m.status.Wait(ctx)
		if err != nil {
			return err
		}
		if v == want {
			return nil
		}
	}
}
