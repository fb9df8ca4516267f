package deque

import (
	"sync"
	"testing"
)

func TestPushPopLIFO(t *testing.T) {
	d := New[int](8)

	d.PushBottom(1)
	d.PushBottom(2)
	d.PushBottom(3)

	v, ok := d.PopBottom()
	if !ok || v != 3 {
		t.Fatalf("owner expected 3, got %d ok=%v", v, ok)
	}
	v, ok = d.PopBottom()
	if !ok || v != 2 {
		t.Fatalf("owner expected 2, got %d ok=%v", v, ok)
	}
}

func TestStealFIFO(t *testing.T) {
	d := New[int](8)
	for i := 1; i <= 5; i++ {
		d.PushBottom(i)
	}

	v, res := d.StealTop()
	if res != StealOk || v != 1 {
		t.Fatalf("thief expected 1, got %d res=%v", v, res)
	}
	v, res = d.StealTop()
	if res != StealOk || v != 2 {
		t.Fatalf("thief expected 2, got %d res=%v", v, res)
	}
	v, ok := d.PopBottom()
	if !ok || v != 5 {
		t.Fatalf("owner expected 5, got %d ok=%v", v, ok)
	}
	if d.Len() != 2 {
		t.Fatalf("expected 2 remaining, got %d", d.Len())
	}
}

func TestStealEmpty(t *testing.T) {
	d := New[int](8)
	if _, res := d.StealTop(); res != StealEmpty {
		t.Fatalf("expected StealEmpty, got %v", res)
	}
	d.PushBottom(1)
	if _, ok := d.PopBottom(); !ok {
		t.Fatalf("expected pop to succeed")
	}
	if _, res := d.StealTop(); res != StealEmpty {
		t.Fatalf("expected StealEmpty after draining, got %v", res)
	}
}

// TestLastElementRace exercises the owner-pop-vs-thief-steal tie that
// spec.md §4.3 calls out: with exactly one element left, only one of the
// owner's PopBottom or a thief's StealTop may win.
func TestLastElementRace(t *testing.T) {
	for iter := 0; iter < 2000; iter++ {
		d := New[int](8)
		d.PushBottom(42)

		var wg sync.WaitGroup
		results := make(chan int, 2)
		wg.Add(2)
		go func() {
			defer wg.Done()
			if v, ok := d.PopBottom(); ok {
				results <- v
			}
		}()
		go func() {
			defer wg.Done()
			if v, res := d.StealTop(); res == StealOk {
				results <- v
			}
		}()
		wg.Wait()
		close(results)

		count := 0
		for v := range results {
			count++
			if v != 42 {
				t.Fatalf("unexpected value %d", v)
			}
		}
		if count != 1 {
			t.Fatalf("expected exactly one winner, got %d", count)
		}
	}
}

func TestGrowPreservesOrder(t *testing.T) {
	d := New[int](2)
	const n = 1000
	for i := 0; i < n; i++ {
		d.PushBottom(i)
	}
	for i := n - 1; i >= 0; i-- {
		v, ok := d.PopBottom()
		if !ok || v != i {
			t.Fatalf("expected %d, got %d ok=%v", i, v, ok)
		}
	}
}

// TestNoDoubleSteal hammers a single deque with many concurrent thieves and
// checks no value is ever returned twice (spec.md §8: "across all workers,
// no fiber is returned by more than one pop or steal").
func TestNoDoubleSteal(t *testing.T) {
	d := New[int](16)
	const n = 20000
	for i := 0; i < n; i++ {
		d.PushBottom(i)
	}

	const thieves = 8
	seen := make(chan int, n)
	var wg sync.WaitGroup
	wg.Add(thieves)
	for i := 0; i < thieves; i++ {
		go func() {
			defer wg.Done()
			for {
				v, res := d.StealTop()
				switch res {
				case StealOk:
					seen <- v
				case StealEmpty:
					return
				case StealAbort:
					continue
				}
			}
		}()
	}

	owned := 0
	for {
		if _, ok := d.PopBottom(); ok {
			owned++
		} else {
			break
		}
	}
	wg.Wait()
	close(seen)

	dup := make(map[int]bool, n)
	stolen := 0
	for v := range seen {
		if dup[v] {
			t.Fatalf("value %d stolen more than once", v)
		}
		dup[v] = true
		stolen++
	}
	if owned+stolen != n {
		t.Fatalf("expected %d total, got owned=%d stolen=%d", n, owned, stolen)
	}
}

func BenchmarkPushPopBottom(b *testing.B) {
	d := New[int](1024)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		d.PushBottom(i)
		d.PopBottom()
	}
}

func BenchmarkSteal(b *testing.B) {
	d := New[int](1 << 20)
	for i := 0; i < b.N; i++ {
		d.PushBottom(i)
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		d.StealTop()
	}
}
