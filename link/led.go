package link

import (
	"context"
	"time"
)

// StatusLED mirrors the link state on an indicator: off while idle, a
// slow blink while advertising, a short fast burst when a peer connects,
// then solid for the rest of the session.
type StatusLED interface {
	Set(on bool)
}

const (
	advertiseBlink = time.Second
	connectBlink   = 100 * time.Millisecond
	connectBurst   = time.Second
)

// blink toggles led at the given period until ctx is done, leaving it in
// the requested final state.
func blink(ctx context.Context, led StatusLED, period time.Duration, final bool) {
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	on := true
	for {
		led.Set(on)
		on = !on
		select {
		case <-ctx.Done():
			led.Set(final)
			return
		case <-ticker.C:
		}
	}
}

// ledConnectFlash runs the connect burst inline: a fast blink for one
// second ending solid on. Cut short if ctx ends first.
func (m *Manager) ledConnectFlash(ctx context.Context) {
	if m.led == nil {
		return
	}
	bctx, cancel := context.WithTimeout(ctx, connectBurst)
	defer cancel()
	blink(bctx, m.led, connectBlink, true)
}

func (m *Manager) ledSet(on bool) {
	if m.led != nil {
		m.led.Set(on)
	}
}

// ledBlink starts a blink goroutine and returns its stop function. With
// no LED configured it is a no-op.
func (m *Manager) ledBlink(period time.Duration, final bool) (stop func()) {
	if m.led == nil {
		return func() {}
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		blink(ctx, m.led, period, final)
	}()
	return func() {
		cancel()
		<-done
	}
}
