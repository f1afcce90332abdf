package match

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/vango-go/vai-spy/pkg/core/types"
)

var (
	matchBucket   = []byte("match")
	threadsBucket = []byte("threads")
	currentKey    = []byte("current")
)

// BoltStore keeps the match and threads in a single BoltDB file, one bucket
// per dataset.
type BoltStore struct {
	db *bolt.DB
}

// OpenBolt opens or creates the database at path.
func OpenBolt(path string) (*BoltStore, error) {
	if path == "" {
		return nil, fmt.Errorf("match: bolt store needs a file path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt store: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{matchBucket, threadsBucket} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &BoltStore{db: db}, nil
}

func (s *BoltStore) GetMatch(ctx context.Context) (*types.MatchSnapshot, error) {
	var data []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		if v := tx.Bucket(matchBucket).Get(currentKey); v != nil {
			data = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, ErrNoMatch
	}
	return decodeMatch(data)
}

func (s *BoltStore) PutMatch(ctx context.Context, snap *types.MatchSnapshot) error {
	enc, err := encodeMatch(snap)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(matchBucket).Put(currentKey, enc)
	})
}

func (s *BoltStore) GetThread(ctx context.Context, matchID, aiID string) (types.Thread, error) {
	var data []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		if v := tx.Bucket(threadsBucket).Get([]byte(threadKey(matchID, aiID))); v != nil {
			data = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return types.Thread{}, err
	}
	if data == nil {
		return types.Thread{AIID: aiID}, nil
	}
	return decodeThread(data, aiID)
}

func (s *BoltStore) PutThread(ctx context.Context, matchID string, thread types.Thread) error {
	enc, err := json.Marshal(thread)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(threadsBucket).Put([]byte(threadKey(matchID, thread.AIID)), enc)
	})
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}
