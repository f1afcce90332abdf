package match

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/vango-go/vai-spy/pkg/core/types"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// PostgresStore keeps match and thread documents as JSONB rows. The most
// recently written match is the current one.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// OpenPostgres connects and applies pending migrations.
func OpenPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	return &PostgresStore{pool: pool}, nil
}

// Migrate applies the embedded schema migrations.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	migrations, err := fs.Sub(migrationFS, "migrations")
	if err != nil {
		return err
	}
	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()

	provider, err := goose.NewProvider(goose.DialectPostgres, db, migrations)
	if err != nil {
		return fmt.Errorf("create migration provider: %w", err)
	}
	if _, err := provider.Up(ctx); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetMatch(ctx context.Context) (*types.MatchSnapshot, error) {
	var data []byte
	err := s.pool.QueryRow(ctx,
		`SELECT doc FROM matches ORDER BY updated_at DESC LIMIT 1`).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNoMatch
	}
	if err != nil {
		return nil, err
	}
	return decodeMatch(data)
}

func (s *PostgresStore) PutMatch(ctx context.Context, snap *types.MatchSnapshot) error {
	enc, err := encodeMatch(snap)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO matches (id, doc, updated_at) VALUES ($1, $2, now())
		ON CONFLICT (id) DO UPDATE SET doc = EXCLUDED.doc, updated_at = now()`,
		snap.ID, enc)
	return err
}

func (s *PostgresStore) GetThread(ctx context.Context, matchID, aiID string) (types.Thread, error) {
	var data []byte
	err := s.pool.QueryRow(ctx,
		`SELECT doc FROM ai_threads WHERE match_id = $1 AND ai_id = $2`, matchID, aiID).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return types.Thread{AIID: aiID}, nil
	}
	if err != nil {
		return types.Thread{}, err
	}
	return decodeThread(data, aiID)
}

func (s *PostgresStore) PutThread(ctx context.Context, matchID string, thread types.Thread) error {
	enc, err := json.Marshal(thread)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO ai_threads (match_id, ai_id, doc, updated_at) VALUES ($1, $2, $3, now())
		ON CONFLICT (match_id, ai_id) DO UPDATE SET doc = EXCLUDED.doc, updated_at = now()`,
		matchID, thread.AIID, enc)
	return err
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
