package match

import (
	"context"
	"sync"

	"github.com/vango-go/vai-spy/pkg/core/types"
)

// MemoryStore keeps everything in process memory.
type MemoryStore struct {
	mu      sync.RWMutex
	current *types.MatchSnapshot
	threads map[string]types.Thread
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{threads: make(map[string]types.Thread)}
}

func (s *MemoryStore) GetMatch(ctx context.Context) (*types.MatchSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return nil, ErrNoMatch
	}
	return cloneMatch(s.current), nil
}

func (s *MemoryStore) PutMatch(ctx context.Context, snap *types.MatchSnapshot) error {
	if _, err := encodeMatch(snap); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = cloneMatch(snap)
	return nil
}

func (s *MemoryStore) GetThread(ctx context.Context, matchID, aiID string) (types.Thread, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	th, ok := s.threads[threadKey(matchID, aiID)]
	if !ok {
		return types.Thread{AIID: aiID}, nil
	}
	return cloneThread(th), nil
}

func (s *MemoryStore) PutThread(ctx context.Context, matchID string, thread types.Thread) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.threads[threadKey(matchID, thread.AIID)] = cloneThread(thread)
	return nil
}

func (s *MemoryStore) Close() error { return nil }
