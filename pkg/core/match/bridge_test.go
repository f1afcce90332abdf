package match

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vango-go/vai-spy/pkg/core/types"
)

func sampleMatch() *types.MatchSnapshot {
	return &types.MatchSnapshot{
		ID:         "match-1",
		Status:     types.StatusDiscussion,
		Language:   "ar",
		Category:   "أماكن",
		SecretWord: "مستشفى",
		Participants: []types.Participant{
			{ID: "ai", Name: "العميل صقر", IsAI: true, Role: types.RoleCitizen},
			{ID: "p1", Name: "محمد", Role: types.RoleSpy},
		},
	}
}

// storeContract runs the behaviour every Store must share.
func storeContract(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()

	_, err := store.GetMatch(ctx)
	require.ErrorIs(t, err, ErrNoMatch)

	now := time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC)
	bridge := NewBridge(store, WithClock(func() time.Time { return now }))
	_, err = bridge.StartMatch(ctx, sampleMatch())
	require.NoError(t, err)

	empty, err := bridge.ReadThread(ctx, "ai")
	require.NoError(t, err)
	assert.Empty(t, empty.Entries)

	const n = 5
	for i := 0; i < n; i++ {
		_, err := bridge.AppendMessages(ctx, "ai", []types.ThreadEntry{{
			ID:          fmt.Sprintf("e%d", i),
			Speaker:     types.SpeakerUser,
			SpeakerName: "محمد",
			Text:        fmt.Sprintf("رسالة %d", i),
		}})
		require.NoError(t, err)
	}

	th, err := bridge.ReadThread(ctx, "ai")
	require.NoError(t, err)
	require.Len(t, th.Entries, n)
	for i, e := range th.Entries {
		assert.Equal(t, fmt.Sprintf("رسالة %d", i), e.Text)
		assert.True(t, e.Timestamp.Equal(now))
	}
	assert.NotEmpty(t, th.Summary)
	assert.Equal(t, "ai", th.AIID)

	other, err := bridge.ReadThread(ctx, "p1")
	require.NoError(t, err)
	assert.Empty(t, other.Entries)

	snap, err := bridge.SetStatus(ctx, types.StatusVoting)
	require.NoError(t, err)
	assert.Equal(t, types.StatusVoting, snap.Status)
	got, err := bridge.GetCurrentMatchSnapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, types.StatusVoting, got.Status)
	assert.Len(t, got.Participants, 2)
}

func TestMemoryStore(t *testing.T) {
	storeContract(t, NewMemoryStore())
}

func TestBoltStore(t *testing.T) {
	store, err := OpenBolt(filepath.Join(t.TempDir(), "nested", "match.bolt"))
	require.NoError(t, err)
	defer store.Close()
	storeContract(t, store)
}

func TestBoltStore_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "match.bolt")
	store, err := OpenBolt(path)
	require.NoError(t, err)
	bridge := NewBridge(store)
	_, err = bridge.StartMatch(context.Background(), sampleMatch())
	require.NoError(t, err)
	_, err = bridge.AppendMessages(context.Background(), "ai", []types.ThreadEntry{{Speaker: types.SpeakerAI, Text: "اهلا"}})
	require.NoError(t, err)
	require.NoError(t, store.Close())

	store, err = OpenBolt(path)
	require.NoError(t, err)
	defer store.Close()
	th, err := NewBridge(store).ReadThread(context.Background(), "ai")
	require.NoError(t, err)
	require.Len(t, th.Entries, 1)
	assert.NotEmpty(t, th.Entries[0].ID)
}

func TestRedisStore(t *testing.T) {
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	store := NewRedisStore(client)
	defer store.Close()
	storeContract(t, store)
}

func TestOpenRedis(t *testing.T) {
	srv := miniredis.RunT(t)
	store, err := Open(context.Background(), BackendRedis, "redis://"+srv.Addr()+"/0")
	require.NoError(t, err)
	defer store.Close()
	assert.IsType(t, &RedisStore{}, store)
}

func TestPostgresStore(t *testing.T) {
	dsn := os.Getenv("SPYVOICE_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("SPYVOICE_TEST_POSTGRES_DSN not set")
	}
	ctx := context.Background()
	store, err := OpenPostgres(ctx, dsn)
	require.NoError(t, err)
	defer store.Close()
	_, err = store.pool.Exec(ctx, `TRUNCATE matches, ai_threads`)
	require.NoError(t, err)
	storeContract(t, store)
}

func TestOpen_UnknownBackend(t *testing.T) {
	_, err := Open(context.Background(), "sqlite", "")
	require.Error(t, err)

	store, err := Open(context.Background(), "", "")
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, store)
}

func TestAppendMessages_MergesAgainstLatest(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	bridge := NewBridge(store)
	_, err := bridge.StartMatch(ctx, sampleMatch())
	require.NoError(t, err)

	_, err = bridge.AppendMessages(ctx, "ai", []types.ThreadEntry{{ID: "a", Text: "one"}})
	require.NoError(t, err)

	// Another screen writes directly between the orchestrator's appends.
	th, err := store.GetThread(ctx, "match-1", "ai")
	require.NoError(t, err)
	th.Entries = append(th.Entries, types.ThreadEntry{ID: "ui", SpeakerName: "سارة", Text: "من الشاشة"})
	require.NoError(t, store.PutThread(ctx, "match-1", th))

	merged, err := bridge.AppendMessages(ctx, "ai", []types.ThreadEntry{{ID: "a", Text: "dup"}, {ID: "b", Text: "two"}})
	require.NoError(t, err)
	ids := make([]string, 0, len(merged.Entries))
	for _, e := range merged.Entries {
		ids = append(ids, e.ID)
	}
	assert.Equal(t, []string{"a", "ui", "b"}, ids)
}

func TestAppendMessages_NoMatch(t *testing.T) {
	_, err := NewBridge(NewMemoryStore()).AppendMessages(context.Background(), "ai", nil)
	assert.ErrorIs(t, err, ErrNoMatch)
}

func TestSummarize(t *testing.T) {
	assert.Empty(t, Summarize(nil))

	var entries []types.ThreadEntry
	for i := 0; i < 12; i++ {
		entries = append(entries, types.ThreadEntry{SpeakerName: "محمد", Text: fmt.Sprintf("line %d", i)})
	}
	s := Summarize(entries)
	lines := strings.Split(s, "\n")
	require.Len(t, lines, SummaryLines)
	assert.Equal(t, "محمد: line 4", lines[0])
	assert.Equal(t, "محمد: line 11", lines[7])

	long := []types.ThreadEntry{{SpeakerName: "سارة", Text: strings.Repeat("كلام ", 400)}}
	s = Summarize(long)
	assert.Equal(t, SummaryMaxRunes, utf8.RuneCountInString(s))
	assert.True(t, utf8.ValidString(s))
}
