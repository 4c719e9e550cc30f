package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTickSchedulerRunsAndStops(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := NewTickScheduler(ctx, 5*time.Millisecond)
	s.RunImmediately = true

	runs := 0
	done := make(chan struct{})
	go func() {
		s.Start(func() {
			runs++
			if runs >= 3 {
				cancel()
			}
		})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop after cancel")
	}
	assert.GreaterOrEqual(t, runs, 3)
}

func TestTickSchedulerRejectsBadInterval(t *testing.T) {
	s := NewTickScheduler(context.Background(), 0)
	// Must return immediately instead of spinning.
	s.Start(func() { t.Fatal("task must not run") })
}
