package pads

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const (
	// InitialSettle lets the sensor hardware stabilize after power-up
	// before the first round can be armed.
	InitialSettle = 200 * time.Millisecond
	// RearmDelay separates consecutive rounds so bank-wide contact bounce
	// from the closing release cannot immediately start a new one.
	RearmDelay = 200 * time.Millisecond
)

// PadConfig binds one input pin to the note it reports.
type PadConfig struct {
	Pin  Pin
	Note DrumNote
}

// SensorBank drives the bank-wide sensing loop. It arms the pads, runs a
// watcher per pad for the duration of each sensor-active round, feeds the
// accepted hits into the shared queue and publishes the aggregate on/off
// status that gates transmission.
type SensorBank struct {
	pads   []PadConfig
	status *StatusSignal
	queue  *HitQueue
	log    *slog.Logger

	now      func() time.Time
	settle   time.Duration
	rearm    time.Duration
	window   time.Duration
	debounce time.Duration
}

func NewSensorBank(pads []PadConfig, status *StatusSignal, queue *HitQueue, log *slog.Logger) *SensorBank {
	if log == nil {
		log = slog.Default()
	}
	return &SensorBank{
		pads:     pads,
		status:   status,
		queue:    queue,
		log:      log,
		now:      time.Now,
		settle:   InitialSettle,
		rearm:    RearmDelay,
		window:   StabilityWindow,
		debounce: HitDebounce,
	}
}

// Run arms and plays rounds until ctx is done. It always returns ctx's
// error; the status is left at off.
func (b *SensorBank) Run(ctx context.Context) error {
	if err := sleep(ctx, b.settle); err != nil {
		return err
	}
	b.log.Info("sensor bank armed", "pads", len(b.pads))

	for {
		if err := b.waitAnyHigh(ctx); err != nil {
			return err
		}
		b.status.Set(StatusOn)
		b.log.Debug("round started")

		err := b.playRound(ctx)
		b.status.Set(StatusOff)
		if err != nil {
			return err
		}
		b.log.Debug("round over")

		if err := sleep(ctx, b.rearm); err != nil {
			return err
		}
	}
}

// waitAnyHigh blocks until any pad reports high. The losing waits are
// cancelled and joined; no per-round state exists yet, so they leave no
// effects behind.
func (b *SensorBank) waitAnyHigh(ctx context.Context) error {
	wctx, cancel := context.WithCancel(ctx)
	defer cancel()

	first := make(chan error, len(b.pads))
	var wg sync.WaitGroup
	for _, p := range b.pads {
		wg.Add(1)
		go func() {
			defer wg.Done()
			first <- p.Pin.WaitHigh(wctx)
		}()
	}

	err := <-first
	cancel()
	wg.Wait()
	return err
}

// playRound races one watcher per pad over fresh round state. The round
// is over when a watcher returns after its own release zeroed the active
// count; the rest are cancelled and joined before the bank reports off.
func (b *SensorBank) playRound(ctx context.Context) error {
	st := &roundState{}
	rctx, cancel := context.WithCancel(ctx)
	defer cancel()

	first := make(chan error, len(b.pads))
	var wg sync.WaitGroup
	for _, p := range b.pads {
		w := &padWatcher{
			pin:      p.Pin,
			note:     p.Note,
			queue:    b.queue,
			now:      b.now,
			window:   b.window,
			debounce: b.debounce,
			log:      b.log,
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			first <- w.watch(rctx, st)
		}()
	}

	err := <-first
	cancel()
	wg.Wait()
	return err
}
