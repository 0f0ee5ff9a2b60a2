package sched

import (
	"io"
	"log"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLoop(t *testing.T) *LoopScheduler {
	l := NewLoopScheduler(log.New(io.Discard, "", 0))
	t.Cleanup(l.Close)
	return l
}

func TestLoopScheduler_AfterFires(t *testing.T) {
	l := newTestLoop(t)

	fired := make(chan struct{})
	l.After(5*time.Millisecond, func() { close(fired) })

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for After callback")
	}
}

func TestLoopScheduler_EveryStopsAfterCancelInsideLoop(t *testing.T) {
	l := newTestLoop(t)

	var ticks atomic.Int32
	var cancel Cancel
	l.Do(func() {
		cancel = l.Every(2*time.Millisecond, func() { ticks.Add(1) })
	})

	require.Eventually(t, func() bool { return ticks.Load() >= 3 }, time.Second, time.Millisecond)

	var atCancel int32
	l.Do(func() {
		cancel()
		atCancel = ticks.Load()
	})

	time.Sleep(20 * time.Millisecond)
	l.Do(func() {})
	assert.Equal(t, atCancel, ticks.Load())
}

func TestLoopScheduler_CallbacksAreSerial(t *testing.T) {
	l := newTestLoop(t)

	var running, overlaps atomic.Int32
	done := make(chan struct{}, 20)
	for i := 0; i < 20; i++ {
		l.After(time.Millisecond, func() {
			if running.Add(1) > 1 {
				overlaps.Add(1)
			}
			time.Sleep(100 * time.Microsecond)
			running.Add(-1)
			done <- struct{}{}
		})
	}
	for i := 0; i < 20; i++ {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("timeout")
		}
	}
	assert.Equal(t, int32(0), overlaps.Load())
}

func TestLoopScheduler_PostAfterCloseIsDropped(t *testing.T) {
	l := NewLoopScheduler(log.New(io.Discard, "", 0))
	l.Close()
	l.Close()

	ran := false
	l.Post(func() { ran = true })
	l.Do(func() { ran = true })
	assert.False(t, ran)
}
