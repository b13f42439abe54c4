package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestClampInterval(t *testing.T) {
	min, max := 5*time.Second, 300*time.Second
	assert.Equal(t, min, ClampInterval(time.Second, min, max))
	assert.Equal(t, min, ClampInterval(0, min, max))
	assert.Equal(t, 30*time.Second, ClampInterval(30*time.Second, min, max))
	assert.Equal(t, max, ClampInterval(time.Hour, min, max))
}

func TestRunImmediately(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var runs atomic.Int32

	s := NewIntervalScheduler(ctx, time.Hour)
	s.RunImmediately = true
	done := make(chan struct{})
	go func() {
		s.Start(func() {
			runs.Add(1)
			cancel()
		})
		close(done)
	}()

	<-done
	assert.Equal(t, int32(1), runs.Load())
}

func TestIntervalFnRetunesCadence(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var runs atomic.Int32

	// Interval would wait an hour, IntervalFn shrinks it per cycle.
	s := NewIntervalScheduler(ctx, time.Hour)
	s.IntervalFn = func() time.Duration { return 5 * time.Millisecond }
	done := make(chan struct{})
	go func() {
		s.Start(func() {
			if runs.Add(1) >= 3 {
				cancel()
			}
		})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not honor the retuned interval")
	}
	assert.GreaterOrEqual(t, runs.Load(), int32(3))
}

func TestStartRejectsNilTaskAndBadInterval(t *testing.T) {
	s := NewIntervalScheduler(context.Background(), time.Second)
	s.Start(nil)

	s = NewIntervalScheduler(context.Background(), 0)
	s.Start(func() { t.Fatal("task must not run with an invalid interval") })
}
