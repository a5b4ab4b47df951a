package schedule

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

type countingRefresher struct {
	calls atomic.Int32
	panic bool
}

func (r *countingRefresher) RefreshAll() {
	r.calls.Add(1)
	if r.panic {
		panic("listener gone")
	}
}

func run(t *testing.T, target Refresher, wait func() bool) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- NewPeriodicUpdate(target, 5*time.Millisecond).Run(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for !wait() {
		if time.Now().After(deadline) {
			cancel()
			t.Fatal("refresh did not happen in time")
		}
		time.Sleep(time.Millisecond)
	}
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("unexpected error %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestPeriodicUpdateTicks(t *testing.T) {
	r := &countingRefresher{}
	run(t, r, func() bool { return r.calls.Load() >= 3 })
}

func TestPeriodicUpdateSurvivesPanic(t *testing.T) {
	r := &countingRefresher{panic: true}
	run(t, r, func() bool { return r.calls.Load() >= 2 })
}
