package pads

import (
	"context"
	"sync"
)

// Status is the aggregate state of the sensor bank.
type Status uint8

const (
	// StatusOff means every pad is idle and no round is in progress.
	StatusOff Status = iota
	// StatusOn means a sensor-active round is running.
	StatusOn
)

func (s Status) String() string {
	if s == StatusOn {
		return "on"
	}
	return "off"
}

// StatusSignal is a single-slot, latest-value-wins status cell. Set
// overwrites whatever a consumer has not picked up yet, Wait delivers the
// most recent unseen value, and Current peeks without consuming, so a
// consumer that was busy elsewhere can re-check state before blocking.
type StatusSignal struct {
	mu      sync.Mutex
	current Status
	ch      chan Status
}

func NewStatusSignal() *StatusSignal {
	return &StatusSignal{ch: make(chan Status, 1)}
}

// Set records v as the current status and signals any waiter. An unread
// previous value is replaced, never queued behind.
func (s *StatusSignal) Set(v Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = v
	select {
	case <-s.ch:
	default:
	}
	s.ch <- v
}

// Current returns the most recently Set status without consuming the
// pending signal.
func (s *StatusSignal) Current() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Wait blocks until a status has been Set since the last Wait, then
// returns it.
func (s *StatusSignal) Wait(ctx context.Context) (Status, error) {
	select {
	case v := <-s.ch:
		return v, nil
	case <-ctx.Done():
		return StatusOff, ctx.Err()
	}
}
