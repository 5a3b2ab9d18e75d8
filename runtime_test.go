package excimer_test

import (
	"sync/atomic"
	"testing"
	"time"

	"code.hybscloud.com/excimer"
)

func TestRuntime_SetTimeoutFires(t *testing.T) {
	rt, err := excimer.NewRuntime()
	if err != nil {
		t.Fatalf("NewRuntime failed: %v", err)
	}
	defer rt.Close()

	fired := make(chan int64, 1)
	tm, err := rt.SetTimeout(func(overrun int64) {
		fired <- overrun
	}, 20*time.Millisecond)
	if err != nil {
		t.Fatalf("SetTimeout failed: %v", err)
	}
	defer tm.Stop()

	select {
	case overrun := <-fired:
		if overrun < 1 {
			t.Errorf("one-shot delivered overrun %d, want >= 1", overrun)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("one-shot never fired through the runtime drain loop")
	}
}

func TestRuntime_ProfilerEndToEnd(t *testing.T) {
	rt, err := excimer.NewRuntime()
	if err != nil {
		t.Fatalf("NewRuntime failed: %v", err)
	}
	defer rt.Close()

	p := rt.NewProfiler()
	p.SetPeriod(0.005)
	if err := p.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	// Keep a core busy so the sampled process is actually doing something.
	var spin atomic.Bool
	go func() {
		x := 0
		for !spin.Load() {
			x++
		}
		_ = x
	}()
	time.Sleep(80 * time.Millisecond)
	spin.Store(true)

	if err := p.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	// Quiesce the drain loop before reading the log; an in-flight drained
	// callback may still be appending right after Stop returns.
	if err := rt.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	log := p.GetLog()
	if log.Len() < 3 {
		t.Fatalf("expected at least 3 samples over 80ms at 5ms period, got %d", log.Len())
	}
	if log.EventCount() < int64(log.Len()) {
		t.Errorf("EventCount %d is less than the number of samples %d", log.EventCount(), log.Len())
	}

	collapsed := log.FormatCollapsed()
	if collapsed == "" {
		t.Error("FormatCollapsed returned no output for a non-empty log")
	}

	doc := log.SpeedscopeData()
	if len(doc.Profiles) != 1 || len(doc.Profiles[0].Samples) != log.Len() {
		t.Error("speedscope export does not cover every sample")
	}
}

func TestRuntime_CloseIsIdempotent(t *testing.T) {
	rt, err := excimer.NewRuntime()
	if err != nil {
		t.Fatalf("NewRuntime failed: %v", err)
	}
	if err := rt.Close(); err != nil {
		t.Fatalf("first Close failed: %v", err)
	}
	if err := rt.Close(); err != nil {
		t.Fatalf("second Close failed: %v", err)
	}
}

func TestRuntime_TimerDestroyRace(t *testing.T) {
	rt, err := excimer.NewRuntime()
	if err != nil {
		t.Fatalf("NewRuntime failed: %v", err)
	}
	defer rt.Close()

	var count atomic.Int64
	tm := rt.NewTimer()
	tm.SetPeriod(0.001)
	tm.SetCallback(func(overrun int64) {
		count.Add(1)
	})
	if err := tm.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	time.Sleep(10 * time.Millisecond)
	if err := tm.Destroy(); err != nil {
		t.Fatalf("Destroy failed: %v", err)
	}
	after := count.Load()
	time.Sleep(20 * time.Millisecond)
	if got := count.Load(); got != after {
		t.Errorf("callback observed after Destroy: before=%d after=%d", after, got)
	}
}
