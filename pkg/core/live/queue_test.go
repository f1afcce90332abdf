package live

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestChunkQueue_FIFOAndSingleWorker(t *testing.T) {
	var (
		mu       sync.Mutex
		order    []string
		inFlight atomic.Int32
		maxSeen  atomic.Int32
	)
	q := NewChunkQueue(func(ctx context.Context, c Chunk) {
		n := inFlight.Add(1)
		if n > maxSeen.Load() {
			maxSeen.Store(n)
		}
		time.Sleep(5 * time.Millisecond)
		mu.Lock()
		order = append(order, c.ID)
		mu.Unlock()
		inFlight.Add(-1)
	})

	ctx := context.Background()
	for _, id := range []string{"a", "b", "c", "d"} {
		q.Push(ctx, Chunk{ID: id})
	}
	q.Wait()

	mu.Lock()
	defer mu.Unlock()
	if len(order) != 4 || order[0] != "a" || order[3] != "d" {
		t.Fatalf("order = %v, want [a b c d]", order)
	}
	if maxSeen.Load() != 1 {
		t.Fatalf("max concurrent handlers = %d, want 1", maxSeen.Load())
	}
}

func TestChunkQueue_ClearDropsWaiting(t *testing.T) {
	release := make(chan struct{})
	var handled atomic.Int32
	q := NewChunkQueue(func(ctx context.Context, c Chunk) {
		<-release
		handled.Add(1)
	})

	ctx := context.Background()
	q.Push(ctx, Chunk{ID: "a"})
	q.Push(ctx, Chunk{ID: "b"})
	q.Push(ctx, Chunk{ID: "c"})
	time.Sleep(10 * time.Millisecond)

	if dropped := q.Clear(); dropped != 2 {
		t.Fatalf("dropped = %d, want 2", dropped)
	}
	close(release)
	q.Wait()
	if handled.Load() != 1 {
		t.Fatalf("handled = %d, want 1", handled.Load())
	}
}

func TestChunkQueue_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var handled atomic.Int32
	q := NewChunkQueue(func(ctx context.Context, c Chunk) {
		handled.Add(1)
		cancel()
	})
	q.Push(ctx, Chunk{ID: "a"})
	q.Push(ctx, Chunk{ID: "b"})
	q.Wait()
	if handled.Load() != 1 {
		t.Fatalf("handled = %d, want 1", handled.Load())
	}
}
