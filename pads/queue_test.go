package pads

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHitQueueDeliversInOrder(t *testing.T) {
	q := NewHitQueue()
	q.ForceSend(HitEvent{Note: BassDrum})
	q.ForceSend(HitEvent{Note: Snare})
	q.ForceSend(HitEvent{Note: RideCymbal})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	for _, want := range []DrumNote{BassDrum, Snare, RideCymbal} {
		ev, err := q.Receive(ctx)
		require.NoError(t, err)
		assert.Equal(t, want, ev.Note)
	}
}

func TestHitQueueForceSendEvictsOldest(t *testing.T) {
	q := NewHitQueue()
	for i := 0; i < QueueCapacity+3; i++ {
		q.ForceSend(HitEvent{Note: DrumNote(i)})
	}
	assert.Equal(t, QueueCapacity, q.Len())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	ev, err := q.Receive(ctx)
	require.NoError(t, err)
	assert.Equal(t, DrumNote(3), ev.Note, "the three oldest hits should have been evicted")
}

func TestHitQueueReceiveHonorsContext(t *testing.T) {
	q := NewHitQueue()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := q.Receive(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestHitQueueTryReceive(t *testing.T) {
	q := NewHitQueue()

	_, ok := q.TryReceive()
	assert.False(t, ok)

	q.ForceSend(HitEvent{Note: HighTom})
	ev, ok := q.TryReceive()
	require.True(t, ok)
	assert.Equal(t, HighTom, ev.Note)
}

func TestHitQueueClear(t *testing.T) {
	q := NewHitQueue()
	for i := 0; i < 5; i++ {
		q.ForceSend(HitEvent{Note: Snare})
	}
	q.Clear()
	assert.Equal(t, 0, q.Len())
}
