package link

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/WataNekko/esp-drum-midi-controller/pads"
)

// fakeRadio is a scripted Radio: tests inject connection events and read
// back what was advertised and notified.
type fakeRadio struct {
	events chan Event
	runErr chan error

	mu          sync.Mutex
	advertising bool
	advStarts   int
	notified    [][]byte
	notifyErr   error
}

func newFakeRadio() *fakeRadio {
	return &fakeRadio{
		events: make(chan Event, 8),
		runErr: make(chan error, 1),
	}
}

func (f *fakeRadio) Advertise() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.advertising = true
	f.advStarts++
	return nil
}

func (f *fakeRadio) StopAdvertising() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.advertising = false
	return nil
}

func (f *fakeRadio) Events() <-chan Event { return f.events }

func (f *fakeRadio) Notify(p []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.notifyErr != nil {
		return f.notifyErr
	}
	cp := make([]byte, len(p))
	copy(cp, p)
	f.notified = append(f.notified, cp)
	return nil
}

func (f *fakeRadio) Run(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return nil
	case err := <-f.runErr:
		return err
	}
}

func (f *fakeRadio) connect() { f.events <- Event{Kind: EventConnected} }

func (f *fakeRadio) disconnect(r Reason) {
	f.events <- Event{Kind: EventDisconnected, Reason: r}
}

func (f *fakeRadio) starts() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.advStarts
}

func (f *fakeRadio) isAdvertising() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.advertising
}

func (f *fakeRadio) sent() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]byte, len(f.notified))
	copy(out, f.notified)
	return out
}

func (f *fakeRadio) failNotifies(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notifyErr = err
}

type fakeLED struct {
	mu    sync.Mutex
	state bool
	sets  int
}

func (l *fakeLED) Set(on bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.state = on
	l.sets++
}

func (l *fakeLED) snapshot() (bool, int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state, l.sets
}

type managerFixture struct {
	status *pads.StatusSignal
	queue  *pads.HitQueue
	radio  *fakeRadio
	mgr    *Manager
	cancel context.CancelFunc

	exited chan struct{}
	runErr error // valid after exited is closed
}

func startManager(t *testing.T, led StatusLED) *managerFixture {
	t.Helper()
	f := &managerFixture{
		status: pads.NewStatusSignal(),
		queue:  pads.NewHitQueue(),
		radio:  newFakeRadio(),
		exited: make(chan struct{}),
	}
	f.mgr = NewManager(f.radio, f.status, f.queue, led, slog.Default())
	f.mgr.advTimeout = 200 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	f.cancel = cancel
	go func() {
		f.runErr = f.mgr.Run(ctx)
		close(f.exited)
	}()
	t.Cleanup(func() {
		cancel()
		select {
		case <-f.exited:
		case <-time.After(2 * time.Second):
			t.Error("manager did not shut down")
		}
	})
	return f
}

func (f *managerFixture) waitSessionOpen(t *testing.T) {
	t.Helper()
	require.Eventually(t, func() bool { return !f.radio.isAdvertising() },
		2*time.Second, 5*time.Millisecond)
	// Small settle so the session's queue clear has happened before the
	// test enqueues fresh hits.
	time.Sleep(50 * time.Millisecond)
}

func TestManagerIdlesUntilSensorsOn(t *testing.T) {
	f := startManager(t, nil)

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 0, f.radio.starts(), "no advertising while the bank is off")

	f.status.Set(pads.StatusOn)
	require.Eventually(t, func() bool { return f.radio.starts() == 1 },
		2*time.Second, 5*time.Millisecond)
	assert.True(t, f.radio.isAdvertising())
}

func TestManagerStreamsHitsToPeer(t *testing.T) {
	f := startManager(t, nil)
	f.status.Set(pads.StatusOn)
	require.Eventually(t, func() bool { return f.radio.isAdvertising() },
		2*time.Second, 5*time.Millisecond)

	f.radio.connect()
	f.waitSessionOpen(t)

	f.queue.ForceSend(pads.HitEvent{At: time.UnixMilli(1000), Note: pads.BassDrum})
	require.Eventually(t, func() bool { return len(f.radio.sent()) == 1 },
		2*time.Second, 5*time.Millisecond)
	assert.Equal(t, []byte{0x87, 0xe8, 0x99, 0x24, 0x64}, f.radio.sent()[0])
}

func TestManagerClearsStaleHitsOnConnect(t *testing.T) {
	f := startManager(t, nil)
	f.status.Set(pads.StatusOn)
	require.Eventually(t, func() bool { return f.radio.isAdvertising() },
		2*time.Second, 5*time.Millisecond)

	// Queued before any peer is listening: must not be replayed.
	f.queue.ForceSend(pads.HitEvent{At: time.UnixMilli(500), Note: pads.Snare})

	f.radio.connect()
	f.waitSessionOpen(t)

	assert.Empty(t, f.radio.sent(), "stale hits must not reach a fresh peer")
	assert.Equal(t, 0, f.queue.Len())
}

func TestManagerReAdvertisesAfterDisconnect(t *testing.T) {
	f := startManager(t, nil)
	f.status.Set(pads.StatusOn)
	require.Eventually(t, func() bool { return f.radio.isAdvertising() },
		2*time.Second, 5*time.Millisecond)

	f.radio.connect()
	f.waitSessionOpen(t)

	f.radio.disconnect(ReasonRemoteTerminated)
	require.Eventually(t, func() bool { return f.radio.starts() == 2 },
		2*time.Second, 5*time.Millisecond)
}

func TestManagerEndsSessionOnNotifyError(t *testing.T) {
	f := startManager(t, nil)
	f.status.Set(pads.StatusOn)
	require.Eventually(t, func() bool { return f.radio.isAdvertising() },
		2*time.Second, 5*time.Millisecond)

	f.radio.connect()
	f.waitSessionOpen(t)

	f.radio.failNotifies(errors.New("peer unsubscribed"))
	f.queue.ForceSend(pads.HitEvent{At: time.UnixMilli(1), Note: pads.Snare})

	require.Eventually(t, func() bool { return f.radio.starts() == 2 },
		2*time.Second, 5*time.Millisecond)
}

func TestManagerAbandonsCycleWhenSensorsOff(t *testing.T) {
	f := startManager(t, nil)
	f.status.Set(pads.StatusOn)
	require.Eventually(t, func() bool { return f.radio.isAdvertising() },
		2*time.Second, 5*time.Millisecond)

	f.radio.connect()
	f.waitSessionOpen(t)

	f.status.Set(pads.StatusOff)
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 1, f.radio.starts(), "no advertising until the bank comes back")
	assert.False(t, f.radio.isAdvertising())

	// The next on starts a brand new cycle.
	f.status.Set(pads.StatusOn)
	require.Eventually(t, func() bool { return f.radio.starts() == 2 },
		2*time.Second, 5*time.Millisecond)
}

func TestManagerRetriesAfterAdvertiseTimeout(t *testing.T) {
	f := startManager(t, nil)
	f.mgr.advTimeout = 50 * time.Millisecond
	f.status.Set(pads.StatusOn)

	require.Eventually(t, func() bool { return f.radio.starts() >= 2 },
		2*time.Second, 5*time.Millisecond)
}

func TestManagerPropagatesRadioFailure(t *testing.T) {
	f := startManager(t, nil)
	f.radio.runErr <- errors.New("hci transport wedged")

	select {
	case <-f.exited:
		assert.ErrorContains(t, f.runErr, "radio service")
		assert.ErrorContains(t, f.runErr, "hci transport wedged")
	case <-time.After(2 * time.Second):
		t.Fatal("radio failure did not stop the manager")
	}
}

func TestManagerDrivesStatusLED(t *testing.T) {
	led := &fakeLED{}
	f := startManager(t, led)

	f.status.Set(pads.StatusOn)
	require.Eventually(t, func() bool {
		_, sets := led.snapshot()
		return sets > 0
	}, 2*time.Second, 5*time.Millisecond, "advertising should blink the LED")

	f.cancel()
	require.Eventually(t, func() bool {
		state, _ := led.snapshot()
		return !state
	}, 2*time.Second, 5*time.Millisecond, "the LED ends up off after shutdown")
}

func TestManagerLEDParksSolidDuringSession(t *testing.T) {
	led := &fakeLED{}
	f := startManager(t, led)

	f.status.Set(pads.StatusOn)
	require.Eventually(t, func() bool { return f.radio.isAdvertising() },
		2*time.Second, 5*time.Millisecond)

	f.radio.connect()
	f.waitSessionOpen(t)

	// Once the connect burst has run its course the LED holds solid until
	// the session ends.
	time.Sleep(connectBurst + 200*time.Millisecond)
	state, _ := led.snapshot()
	assert.True(t, state, "LED should be solid on after the connect burst")

	f.radio.disconnect(ReasonRemoteTerminated)
	require.Eventually(t, func() bool { return f.radio.starts() == 2 },
		2*time.Second, 5*time.Millisecond)
}

// A lone strike is both the round's only hit and the round's terminator;
// the session teardown the release triggers must still deliver it.
func TestLoneStrikeStillReachesPeer(t *testing.T) {
	snare := pads.NewLevelPin()
	status := pads.NewStatusSignal()
	queue := pads.NewHitQueue()
	bank := pads.NewSensorBank([]pads.PadConfig{{Pin: snare, Note: pads.Snare}},
		status, queue, slog.Default())

	radio := newFakeRadio()
	mgr := NewManager(radio, status, queue, nil, slog.Default())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	bankDone := make(chan error, 1)
	mgrDone := make(chan error, 1)
	go func() { bankDone <- bank.Run(ctx) }()
	go func() { mgrDone <- mgr.Run(ctx) }()

	// Press opens the round; the peer attaches while the pad is held.
	time.Sleep(250 * time.Millisecond) // sensor settle
	snare.Set(true)
	require.Eventually(t, func() bool { return radio.starts() == 1 },
		2*time.Second, 5*time.Millisecond)
	radio.connect()
	require.Eventually(t, func() bool { return !radio.isAdvertising() },
		2*time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)

	snare.Set(false)
	require.Eventually(t, func() bool { return len(radio.sent()) == 1 },
		2*time.Second, 5*time.Millisecond)
	assert.Equal(t, []byte{0x99, 0x26, 0x64}, radio.sent()[0][2:])
	require.Eventually(t, func() bool { return status.Current() == pads.StatusOff },
		2*time.Second, 5*time.Millisecond)

	cancel()
	<-bankDone
	<-mgrDone
}

// A strike played while a peer is connected travels the whole path:
// watcher, queue, manager and codec.
func TestStrikeReachesPeerEndToEnd(t *testing.T) {
	kick := pads.NewLevelPin()
	snare := pads.NewLevelPin()
	status := pads.NewStatusSignal()
	queue := pads.NewHitQueue()
	bank := pads.NewSensorBank([]pads.PadConfig{
		{Pin: kick, Note: pads.BassDrum},
		{Pin: snare, Note: pads.Snare},
	}, status, queue, slog.Default())

	radio := newFakeRadio()
	mgr := NewManager(radio, status, queue, nil, slog.Default())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	bankDone := make(chan error, 1)
	mgrDone := make(chan error, 1)
	go func() { bankDone <- bank.Run(ctx) }()
	go func() { mgrDone <- mgr.Run(ctx) }()

	// Hold the kick to open a round, then attach the peer.
	time.Sleep(250 * time.Millisecond) // sensor settle
	kick.Set(true)
	require.Eventually(t, func() bool { return radio.starts() == 1 },
		2*time.Second, 5*time.Millisecond)
	radio.connect()
	require.Eventually(t, func() bool { return !radio.isAdvertising() },
		2*time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)

	// Strike the snare while the session is live.
	snare.Set(true)
	time.Sleep(20 * time.Millisecond)
	snare.Set(false)

	require.Eventually(t, func() bool { return len(radio.sent()) == 1 },
		2*time.Second, 5*time.Millisecond)
	pkt := radio.sent()[0]
	require.Len(t, pkt, 5)
	assert.Equal(t, []byte{0x99, 0x26, 0x64}, pkt[2:], "note on, channel 10, snare, fixed velocity")

	// Releasing the kick ends the round and the session with it.
	kick.Set(false)
	require.Eventually(t, func() bool { return status.Current() == pads.StatusOff },
		2*time.Second, 5*time.Millisecond)

	cancel()
	<-bankDone
	<-mgrDone
}
