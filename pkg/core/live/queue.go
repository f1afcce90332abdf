package live

import (
	"context"
	"sync"
)

// ChunkQueue is a FIFO of finalized chunks drained by at most one worker at a
// time, so utterances are handled strictly in arrival order.
type ChunkQueue struct {
	handler func(context.Context, Chunk)

	mu       sync.Mutex
	items    []Chunk
	draining bool
	wg       sync.WaitGroup
}

// NewChunkQueue creates a queue that hands each chunk to handler.
func NewChunkQueue(handler func(context.Context, Chunk)) *ChunkQueue {
	return &ChunkQueue{handler: handler}
}

// Push enqueues a chunk and starts draining if no drain is running.
func (q *ChunkQueue) Push(ctx context.Context, c Chunk) {
	q.mu.Lock()
	q.items = append(q.items, c)
	if q.draining {
		q.mu.Unlock()
		return
	}
	q.draining = true
	q.wg.Add(1)
	q.mu.Unlock()

	go q.drain(ctx)
}

func (q *ChunkQueue) drain(ctx context.Context) {
	defer q.wg.Done()
	for {
		q.mu.Lock()
		if len(q.items) == 0 || ctx.Err() != nil {
			q.draining = false
			q.mu.Unlock()
			return
		}
		c := q.items[0]
		q.items = q.items[1:]
		q.mu.Unlock()

		q.handler(ctx, c)
	}
}

// Clear drops every waiting chunk and returns how many were dropped.
func (q *ChunkQueue) Clear() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := len(q.items)
	q.items = nil
	return n
}

// Wait blocks until the current drain, if any, has returned.
func (q *ChunkQueue) Wait() {
	q.wg.Wait()
}
