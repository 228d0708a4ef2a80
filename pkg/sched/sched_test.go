package sched

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestDebouncer_CoalescesRapidTriggers(t *testing.T) {
	d := NewDebouncer(50 * time.Millisecond)

	var callCount atomic.Int32
	var last atomic.Int32

	for i := 0; i < 10; i++ {
		i := i
		d.Trigger(func() {
			callCount.Add(1)
			last.Store(int32(i))
		})
		time.Sleep(10 * time.Millisecond)
	}

	time.Sleep(150 * time.Millisecond)

	if count := callCount.Load(); count != 1 {
		t.Errorf("expected 1 callback invocation, got %d", count)
	}
	if got := last.Load(); got != 9 {
		t.Errorf("expected the latest callback to win, got %d", got)
	}
}

func TestDebouncer_Cancel(t *testing.T) {
	d := NewDebouncer(50 * time.Millisecond)

	var called atomic.Bool
	d.Trigger(func() { called.Store(true) })

	if !d.Pending() {
		t.Fatal("expected pending callback")
	}
	if !d.Cancel() {
		t.Error("expected Cancel to report a pending callback")
	}
	if d.Cancel() {
		t.Error("second Cancel should report nothing pending")
	}

	time.Sleep(100 * time.Millisecond)

	if called.Load() {
		t.Error("callback should not have been invoked after cancel")
	}
}

func TestDebouncer_DefaultDuration(t *testing.T) {
	d := NewDebouncer(0)
	if d.Duration() != DefaultDebounceDuration {
		t.Errorf("expected default duration %v, got %v", DefaultDebounceDuration, d.Duration())
	}
}

func TestFrames_RunsInRequestOrder(t *testing.T) {
	f := NewFrames(5 * time.Millisecond)
	defer f.Stop()

	var (
		mu    sync.Mutex
		order []int
	)
	done := make(chan struct{})
	for i := 0; i < 3; i++ {
		i := i
		f.RequestFrame(func() {
			mu.Lock()
			order = append(order, i)
			n := len(order)
			mu.Unlock()
			if n == 3 {
				close(done)
			}
		})
	}

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("frame callbacks did not run")
	}

	mu.Lock()
	defer mu.Unlock()
	for i, v := range order {
		if v != i {
			t.Fatalf("expected request order, got %v", order)
		}
	}
	if f.Ticks() != 1 {
		t.Errorf("expected a single tick for one batch, got %d", f.Ticks())
	}
}

func TestFrames_NestedRequestWaitsForNextTick(t *testing.T) {
	f := NewFrames(5 * time.Millisecond)
	defer f.Stop()

	done := make(chan uint64, 1)
	f.RequestFrame(func() {
		f.RequestFrame(func() {
			done <- f.Ticks()
		})
	})

	select {
	case ticks := <-done:
		if ticks != 2 {
			t.Errorf("expected nested request on the second tick, got tick %d", ticks)
		}
	case <-time.After(time.Second):
		t.Fatal("nested frame callback did not run")
	}
}

func TestFrames_CancelAndStop(t *testing.T) {
	f := NewFrames(5 * time.Millisecond)

	var called atomic.Bool
	cancel := f.RequestFrame(func() { called.Store(true) })
	cancel()
	time.Sleep(30 * time.Millisecond)
	if called.Load() {
		t.Error("cancelled frame callback ran")
	}

	f.Stop()
	f.Stop()
	f.RequestFrame(func() { called.Store(true) })
	time.Sleep(30 * time.Millisecond)
	if called.Load() {
		t.Error("callback ran after Stop")
	}
}

func TestIdler_WaitsForQuietPeriod(t *testing.T) {
	i := NewIdler(40*time.Millisecond, time.Second)
	defer i.Close()

	i.Busy()
	start := time.Now()
	ran := make(chan time.Duration, 1)
	i.RequestIdle(func() { ran <- time.Since(start) })

	select {
	case waited := <-ran:
		if waited < 30*time.Millisecond {
			t.Errorf("idle callback ran too early: %v", waited)
		}
	case <-time.After(time.Second):
		t.Fatal("idle callback did not run")
	}
}

func TestIdler_TimeoutCapsWait(t *testing.T) {
	i := NewIdler(50*time.Millisecond, 80*time.Millisecond)
	defer i.Close()

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		for {
			select {
			case <-stop:
				return
			default:
				i.Busy()
				time.Sleep(5 * time.Millisecond)
			}
		}
	}()

	ran := make(chan struct{})
	i.RequestIdle(func() { close(ran) })

	select {
	case <-ran:
	case <-time.After(500 * time.Millisecond):
		t.Fatal("idle callback starved by continuous activity")
	}
}

func TestIdler_Cancel(t *testing.T) {
	i := NewIdler(20*time.Millisecond, 100*time.Millisecond)
	defer i.Close()

	var called atomic.Bool
	i.Busy()
	cancel := i.RequestIdle(func() { called.Store(true) })
	cancel()
	cancel()

	time.Sleep(150 * time.Millisecond)
	if called.Load() {
		t.Error("cancelled idle callback ran")
	}
}

func TestImmediateIdle_RunsAsynchronously(t *testing.T) {
	ran := make(chan struct{})
	ImmediateIdle{}.RequestIdle(func() { close(ran) })

	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("immediate idle callback did not run")
	}
}
