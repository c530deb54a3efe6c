package loop

import (
	"sync"
	"testing"
	"time"
)

func TestLoopRunsInPostingOrder(t *testing.T) {
	l := New()
	defer l.Close()

	var got []int
	for i := 0; i < 100; i++ {
		i := i
		l.Post(func() { got = append(got, i) })
	}
	l.Flush()

	if len(got) != 100 {
		t.Fatalf("expected 100 closures to run, got %d", len(got))
	}
	for i, v := range got {
		if v != i {
			t.Fatalf("closure %d ran out of order: %d", i, v)
		}
	}
}

func TestLoopPostFromLoopRunsOnLaterTurn(t *testing.T) {
	l := New()
	defer l.Close()

	var order []string
	l.Post(func() {
		l.Post(func() { order = append(order, "inner") })
		order = append(order, "outer")
	})
	l.Flush()
	l.Flush()

	if len(order) != 2 || order[0] != "outer" || order[1] != "inner" {
		t.Fatalf("unexpected order: %v", order)
	}
}

func TestLoopConcurrentPosters(t *testing.T) {
	l := New()
	defer l.Close()

	var mu sync.Mutex
	count := 0
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				l.Post(func() {
					mu.Lock()
					count++
					mu.Unlock()
				})
			}
		}()
	}
	wg.Wait()
	l.Flush()

	mu.Lock()
	defer mu.Unlock()
	if count != 400 {
		t.Fatalf("expected 400, got %d", count)
	}
}

func TestLoopCloseRejectsNewWorkAndDrains(t *testing.T) {
	l := New()
	ran := make(chan struct{})
	l.Post(func() { close(ran) })
	l.Close()

	select {
	case <-l.Stopped():
	case <-time.After(time.Second):
		t.Fatal("loop did not stop")
	}
	select {
	case <-ran:
	default:
		t.Fatal("queued closure was dropped on close")
	}
	if l.Post(func() {}) {
		t.Fatal("expected Post to fail after Close")
	}
}

func TestLoopCloseFromLoop(t *testing.T) {
	l := New()
	l.Post(func() { l.Close() })

	select {
	case <-l.Stopped():
	case <-time.After(time.Second):
		t.Fatal("loop did not stop after closing itself")
	}
}
