package pads

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusSignalLatestValueWins(t *testing.T) {
	s := NewStatusSignal()
	s.Set(StatusOn)
	s.Set(StatusOff)
	s.Set(StatusOn)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	v, err := s.Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, StatusOn, v)

	// Only the newest value was pending; a second Wait blocks.
	short, cancelShort := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancelShort()
	_, err = s.Wait(short)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestStatusSignalCurrentDoesNotConsume(t *testing.T) {
	s := NewStatusSignal()
	s.Set(StatusOn)

	assert.Equal(t, StatusOn, s.Current())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	v, err := s.Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, StatusOn, v)
}

func TestStatusSignalWaitBlocksUntilSet(t *testing.T) {
	s := NewStatusSignal()

	got := make(chan Status, 1)
	go func() {
		v, err := s.Wait(context.Background())
		if err == nil {
			got <- v
		}
	}()

	select {
	case <-got:
		t.Fatal("Wait returned before any Set")
	case <-time.After(20 * time.Millisecond):
	}

	s.Set(StatusOff)
	select {
	case v := <-got:
		assert.Equal(t, StatusOff, v)
	case <-time.After(time.Second):
		t.Fatal("Wait did not wake on Set")
	}
}

func TestStatusStrings(t *testing.T) {
	assert.Equal(t, "on", StatusOn.String())
	assert.Equal(t, "off", StatusOff.String())
}
