package producer

import (
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/rickgao/signal-bridge/internal/protocol"
)

func req(i int) protocol.Request {
	return protocol.NewRequest(strconv.Itoa(i), "trades", protocol.WithLimit(i+1))
}

func TestRequestQueue_FIFOAcrossGrowth(t *testing.T) {
	q := newRequestQueue(4)

	for i := 0; i < 100; i++ {
		if !q.Push(req(i)) {
			t.Fatalf("Push(%d) returned false", i)
		}
	}
	if q.Len() != 100 {
		t.Errorf("Len() = %d, want 100", q.Len())
	}
	pushed, resizes := q.Stats()
	if pushed != 100 {
		t.Errorf("pushed = %d, want 100", pushed)
	}
	if resizes < 3 {
		t.Errorf("resizes = %d, expected at least 3", resizes)
	}

	for i := 0; i < 100; i++ {
		got, ok := q.Pop()
		if !ok {
			t.Fatalf("Pop() returned false for item %d", i)
		}
		if got.RequestID != strconv.Itoa(i) {
			t.Errorf("Pop() = %s, want %d", got.RequestID, i)
		}
	}
}

func TestRequestQueue_WrappedGrowth(t *testing.T) {
	q := newRequestQueue(10)

	// Move head forward so the ring wraps before it grows
	for i := 0; i < 5; i++ {
		q.Push(req(i))
	}
	for i := 0; i < 5; i++ {
		q.Pop()
	}
	for i := 5; i < 30; i++ {
		q.Push(req(i))
	}

	for i := 5; i < 30; i++ {
		got, ok := q.Pop()
		if !ok || got.RequestID != strconv.Itoa(i) {
			t.Fatalf("Pop() = %s, %v; want %d, true", got.RequestID, ok, i)
		}
	}
}

func TestRequestQueue_BlockingPop(t *testing.T) {
	q := newRequestQueue(4)
	got := make(chan protocol.Request, 1)

	go func() {
		if r, ok := q.Pop(); ok {
			got <- r
		}
	}()

	time.Sleep(10 * time.Millisecond)
	q.Push(req(42))

	select {
	case r := <-got:
		if r.RequestID != "42" {
			t.Errorf("Pop() = %s, want 42", r.RequestID)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for blocked Pop")
	}
}

func TestRequestQueue_CloseAbandons(t *testing.T) {
	q := newRequestQueue(4)
	q.Push(req(1))
	q.Push(req(2))

	if n := q.Close(); n != 2 {
		t.Errorf("Close() = %d abandoned, want 2", n)
	}
	if n := q.Close(); n != 0 {
		t.Errorf("second Close() = %d, want 0", n)
	}
	if q.Push(req(3)) {
		t.Error("Push should return false after Close")
	}
	if _, ok := q.Pop(); ok {
		t.Error("Pop should return false after Close")
	}
}

func TestRequestQueue_CloseUnblocksWorkers(t *testing.T) {
	q := newRequestQueue(4)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			q.Pop()
		}()
	}

	time.Sleep(10 * time.Millisecond)
	q.Close()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Close did not unblock Pop")
	}
}

func TestRequestQueue_ConcurrentPushPop(t *testing.T) {
	q := newRequestQueue(4)
	const n = 1000

	go func() {
		for i := 0; i < n; i++ {
			q.Push(req(i))
		}
	}()

	for i := 0; i < n; i++ {
		got, ok := q.Pop()
		if !ok {
			t.Fatalf("Pop() returned false at %d", i)
		}
		if got.RequestID != strconv.Itoa(i) {
			t.Fatalf("Pop() = %s, want %d", got.RequestID, i)
		}
	}
}
