package pads

import (
	"context"
	"time"
)

// QueueCapacity is how many unread hits a HitQueue holds before ForceSend
// starts evicting the oldest.
const QueueCapacity = 16

// HitEvent is one accepted strike: the instant the release was accepted
// and the note it classified to.
type HitEvent struct {
	At   time.Time
	Note DrumNote
}

// HitQueue carries hits from the sensing side to a transmitter. Producers
// never block: when the queue is full the oldest unread hit is dropped,
// so a slow or absent consumer only ever loses the stalest events.
type HitQueue struct {
	ch chan HitEvent
}

func NewHitQueue() *HitQueue {
	return &HitQueue{ch: make(chan HitEvent, QueueCapacity)}
}

// ForceSend enqueues ev, evicting the oldest entry if the queue is full.
func (q *HitQueue) ForceSend(ev HitEvent) {
	for {
		select {
		case q.ch <- ev:
			return
		default:
		}
		select {
		case <-q.ch: // full; drop oldest and retry
		default:
		}
	}
}

// Receive blocks until a hit is available or ctx is done.
func (q *HitQueue) Receive(ctx context.Context) (HitEvent, error) {
	select {
	case ev := <-q.ch:
		return ev, nil
	case <-ctx.Done():
		return HitEvent{}, ctx.Err()
	}
}

// TryReceive returns the next hit without blocking; ok is false when the
// queue is empty.
func (q *HitQueue) TryReceive() (ev HitEvent, ok bool) {
	select {
	case ev := <-q.ch:
		return ev, true
	default:
		return HitEvent{}, false
	}
}

// Len reports how many hits are waiting.
func (q *HitQueue) Len() int { return len(q.ch) }

// Clear drops all queued hits. A transmitter calls this when a new
// session starts so the peer is not flooded with strikes recorded while
// nobody was listening.
func (q *HitQueue) Clear() {
	for {
		select {
		case <-q.ch:
		default:
			return
		}
	}
}
