package worker

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubmitReturnsResult(t *testing.T) {
	p := New(2)
	v, err := Submit(context.Background(), p, func() int { return 42 })
	require.NoError(t, err)
	assert.Equal(t, 42, v)
}

func TestConcurrencyBound(t *testing.T) {
	p := New(3)
	var running, peak atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := Submit(context.Background(), p, func() struct{} {
				n := running.Add(1)
				for {
					old := peak.Load()
					if n <= old || peak.CompareAndSwap(old, n) {
						break
					}
				}
				time.Sleep(5 * time.Millisecond)
				running.Add(-1)
				return struct{}{}
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.LessOrEqual(t, peak.Load(), int32(3))
	assert.Positive(t, peak.Load())
}

func TestStartedJobOutlivesCaller(t *testing.T) {
	p := New(1)
	started := make(chan struct{})
	release := make(chan struct{})
	var finished atomic.Bool

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error)
	go func() {
		_, err := Submit(ctx, p, func() bool {
			close(started)
			<-release
			finished.Store(true)
			return true
		})
		errc <- err
	}()
	<-started
	cancel()
	assert.ErrorIs(t, <-errc, context.Canceled)

	close(release)
	require.NoError(t, p.Close(context.Background()))
	assert.True(t, finished.Load())
}

func TestQueuedJobDroppedOnCancel(t *testing.T) {
	p := New(1)
	release := make(chan struct{})
	started := make(chan struct{})
	go Submit(context.Background(), p, func() int { close(started); <-release; return 0 })
	<-started

	var ran atomic.Bool
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := Submit(ctx, p, func() int { ran.Store(true); return 1 })
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(release)
	require.NoError(t, p.Close(context.Background()))
	assert.False(t, ran.Load())
}

func TestPanicBecomesError(t *testing.T) {
	p := New(1)
	_, err := Submit(context.Background(), p, func() int { panic("boom") })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")

	v, err := Submit(context.Background(), p, func() string { return "still works" })
	require.NoError(t, err)
	assert.Equal(t, "still works", v)
}

func TestClose(t *testing.T) {
	p := New(2)
	require.NoError(t, p.Close(context.Background()))
	_, err := Submit(context.Background(), p, func() int { return 1 })
	assert.ErrorIs(t, err, ErrClosed)
}

func TestCloseHonoursContext(t *testing.T) {
	p := New(1)
	release := make(chan struct{})
	defer close(release)
	started := make(chan struct{})
	go Submit(context.Background(), p, func() int { close(started); <-release; return 0 })
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, p.Close(ctx), context.DeadlineExceeded)
}

func TestSizeFloor(t *testing.T) {
	assert.Equal(t, 1, New(0).Size())
	assert.Equal(t, 4, New(4).Size())
}
