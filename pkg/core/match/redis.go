package match

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/vango-go/vai-spy/pkg/core/types"
)

const redisPrefix = "spyvoice:"

// RedisStore shares the match between screens through a Redis server.
type RedisStore struct {
	client *redis.Client
}

// OpenRedis connects to the server at url (redis://host:port/db).
func OpenRedis(ctx context.Context, url string) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &RedisStore{client: client}, nil
}

// NewRedisStore wraps an existing client.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) GetMatch(ctx context.Context) (*types.MatchSnapshot, error) {
	data, err := s.client.Get(ctx, redisPrefix+"match:current").Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNoMatch
	}
	if err != nil {
		return nil, err
	}
	return decodeMatch(data)
}

func (s *RedisStore) PutMatch(ctx context.Context, snap *types.MatchSnapshot) error {
	enc, err := encodeMatch(snap)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, redisPrefix+"match:current", enc, 0).Err()
}

func (s *RedisStore) GetThread(ctx context.Context, matchID, aiID string) (types.Thread, error) {
	data, err := s.client.Get(ctx, redisPrefix+"thread:"+threadKey(matchID, aiID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return types.Thread{AIID: aiID}, nil
	}
	if err != nil {
		return types.Thread{}, err
	}
	return decodeThread(data, aiID)
}

func (s *RedisStore) PutThread(ctx context.Context, matchID string, thread types.Thread) error {
	enc, err := json.Marshal(thread)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, redisPrefix+"thread:"+threadKey(matchID, thread.AIID), enc, 0).Err()
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
