package worker

import (
	"sync/atomic"
	"testing"
)

func TestPool_RunsAll(t *testing.T) {
	p := NewPool(3)
	var n atomic.Int32
	for i := 0; i < 50; i++ {
		p.Submit(func() { n.Add(1) })
	}
	p.Wait()
	if got := n.Load(); got != 50 {
		t.Errorf("ran %d tasks, want 50", got)
	}
}

func TestPool_Bounded(t *testing.T) {
	p := NewPool(2)
	var running, peak atomic.Int32
	release := make(chan struct{})
	for i := 0; i < 6; i++ {
		p.Submit(func() {
			cur := running.Add(1)
			for {
				old := peak.Load()
				if cur <= old || peak.CompareAndSwap(old, cur) {
					break
				}
			}
			<-release
			running.Add(-1)
		})
	}
	close(release)
	p.Wait()
	if got := peak.Load(); got > 2 {
		t.Errorf("peak concurrency = %d, want <= 2", got)
	}
}

func TestPool_RecoversPanics(t *testing.T) {
	p := NewPool(1)
	var ran atomic.Bool
	p.Submit(func() { panic("boom") })
	p.Submit(func() { ran.Store(true) })
	p.Wait()
	if !ran.Load() {
		t.Error("task after panic did not run")
	}
}
