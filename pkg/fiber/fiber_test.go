package fiber

import "testing"

func TestReleaseFiresAtZeroPredecessors(t *testing.T) {
	f := NewFunc(func() {})
	succ := NewFunc(func() {})
	AddEdge(f, succ)
	AddEdge(f, succ) // two predecessors on succ now

	if succ.Ready() {
		t.Fatal("succ should not be ready with two outstanding predecessors")
	}
	if Release(succ) {
		t.Fatal("first release should not make succ ready")
	}
	if !Release(succ) {
		t.Fatal("second release should make succ ready")
	}
	if !succ.Ready() {
		t.Fatal("succ should report ready once predecessors reach zero")
	}
}

func TestExecReturnsBodyStatus(t *testing.T) {
	f := NewFunc(func() {})
	if got := f.Exec(nil); got != StatusFinish {
		t.Fatalf("Exec = %v, want StatusFinish", got)
	}
	if f.Status() != StatusFinish {
		t.Fatalf("Status() = %v, want StatusFinish", f.Status())
	}
}

func TestNotifyReleasesSuccessorsOnce(t *testing.T) {
	f := NewFunc(func() {})
	succ := NewFunc(func() {})
	AddEdge(f, succ)

	f.Exec(nil)

	var scheduled []*Fiber
	Notify(f, func(s *Fiber) { scheduled = append(scheduled, s) })

	if len(scheduled) != 1 || scheduled[0] != succ {
		t.Fatalf("scheduled = %v, want [succ]", scheduled)
	}

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on second Notify")
		}
	}()
	Notify(f, func(*Fiber) {})
}

func TestOnFinishRunsBeforeSuccessorsSchedule(t *testing.T) {
	f := NewFunc(func() {})
	succ := NewFunc(func() {})
	AddEdge(f, succ)

	var order []string
	f.OnFinish(func() { order = append(order, "finish") })
	f.Exec(nil)
	Notify(f, func(*Fiber) { order = append(order, "scheduled") })

	if len(order) != 2 || order[0] != "finish" || order[1] != "scheduled" {
		t.Fatalf("order = %v, want [finish scheduled]", order)
	}
}

func TestSilentFiberIsMarked(t *testing.T) {
	f := NewFunc(func() {})
	if f.Silent() {
		t.Fatal("fresh fiber should not be silent")
	}
	f.MarkSilent()
	if !f.Silent() {
		t.Fatal("MarkSilent should set Silent")
	}
}

func TestRanInline(t *testing.T) {
	f := NewFunc(func() {})
	if f.RanInline() {
		t.Fatal("fresh fiber should not report ranInline")
	}
	f.SetInline()
	if !f.RanInline() {
		t.Fatal("SetInline should set RanInline")
	}
}

func TestCounterAddAndLoad(t *testing.T) {
	var c Counter[int32]
	if c.Load() != 0 {
		t.Fatalf("zero value Load() = %d, want 0", c.Load())
	}
	if got := c.Add(3); got != 3 {
		t.Fatalf("Add(3) = %d, want 3", got)
	}
	if got := c.Add(-1); got != 2 {
		t.Fatalf("Add(-1) = %d, want 2", got)
	}
}
