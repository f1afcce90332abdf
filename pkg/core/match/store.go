// Package match persists the match document and the AI conversation threads,
// and exposes them to the discussion engine through Bridge.
package match

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/vango-go/vai-spy/pkg/core/types"
)

// ErrNoMatch is returned when no match has been stored yet.
var ErrNoMatch = errors.New("match: no current match")

// Store holds the current match document and per-AI threads. Implementations
// return an empty thread, not an error, for a thread that was never written.
type Store interface {
	GetMatch(ctx context.Context) (*types.MatchSnapshot, error)
	PutMatch(ctx context.Context, snap *types.MatchSnapshot) error
	GetThread(ctx context.Context, matchID, aiID string) (types.Thread, error)
	PutThread(ctx context.Context, matchID string, thread types.Thread) error
	Close() error
}

// Backend names accepted by Open.
const (
	BackendMemory   = "memory"
	BackendBolt     = "bolt"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

// Open creates a store for backend. dsn is a file path for bolt, a
// connection string for postgres, and a redis URL for redis.
func Open(ctx context.Context, backend, dsn string) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(backend)) {
	case "", BackendMemory:
		return NewMemoryStore(), nil
	case BackendBolt:
		return OpenBolt(dsn)
	case BackendPostgres:
		return OpenPostgres(ctx, dsn)
	case BackendRedis:
		return OpenRedis(ctx, dsn)
	default:
		return nil, fmt.Errorf("match: unknown store backend %q", backend)
	}
}

func threadKey(matchID, aiID string) string {
	return matchID + "/" + aiID
}

func encodeMatch(snap *types.MatchSnapshot) ([]byte, error) {
	if snap == nil || snap.ID == "" {
		return nil, errors.New("match: snapshot needs an id")
	}
	return json.Marshal(snap)
}

func decodeMatch(data []byte) (*types.MatchSnapshot, error) {
	var snap types.MatchSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decode match: %w", err)
	}
	return &snap, nil
}

func decodeThread(data []byte, aiID string) (types.Thread, error) {
	var th types.Thread
	if err := json.Unmarshal(data, &th); err != nil {
		return types.Thread{}, fmt.Errorf("decode thread %s: %w", aiID, err)
	}
	return th, nil
}

func cloneMatch(snap *types.MatchSnapshot) *types.MatchSnapshot {
	cp := *snap
	cp.Participants = append([]types.Participant(nil), snap.Participants...)
	return &cp
}

func cloneThread(th types.Thread) types.Thread {
	th.Entries = append([]types.ThreadEntry(nil), th.Entries...)
	return th
}
