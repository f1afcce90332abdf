package match

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vango-go/vai-spy/pkg/core/discussion"
	"github.com/vango-go/vai-spy/pkg/core/types"
)

const (
	SummaryLines    = 8
	SummaryMaxRunes = 600
)

// Bridge is the only path between the discussion engine and durable storage.
//
// AppendMessages re-reads the thread immediately before merging, but the
// read-merge-write is not atomic against the store: two writers appending to
// the same thread at once can lose the earlier write.
type Bridge struct {
	store  Store
	now    func() time.Time
	logger *slog.Logger
}

// Option configures a Bridge.
type Option func(*Bridge)

// WithClock replaces the time source.
func WithClock(now func() time.Time) Option {
	return func(b *Bridge) { b.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(b *Bridge) {
		if l != nil {
			b.logger = l
		}
	}
}

// NewBridge creates a bridge over store.
func NewBridge(store Store, opts ...Option) *Bridge {
	b := &Bridge{store: store, now: time.Now, logger: slog.Default()}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Store returns the underlying store.
func (b *Bridge) Store() Store {
	return b.store
}

// GetCurrentMatchSnapshot returns the current match.
func (b *Bridge) GetCurrentMatchSnapshot(ctx context.Context) (*types.MatchSnapshot, error) {
	return b.store.GetMatch(ctx)
}

// StartMatch stores snap as the current match, assigning an id when empty.
func (b *Bridge) StartMatch(ctx context.Context, snap *types.MatchSnapshot) (*types.MatchSnapshot, error) {
	cp := cloneMatch(snap)
	if cp.ID == "" {
		cp.ID = uuid.NewString()
	}
	if cp.Status == "" {
		cp.Status = types.StatusSetup
	}
	cp.UpdatedAt = b.now()
	if err := b.store.PutMatch(ctx, cp); err != nil {
		return nil, err
	}
	return cp, nil
}

// SetStatus moves the current match to status.
func (b *Bridge) SetStatus(ctx context.Context, status types.MatchStatus) (*types.MatchSnapshot, error) {
	snap, err := b.store.GetMatch(ctx)
	if err != nil {
		return nil, err
	}
	snap.Status = status
	snap.UpdatedAt = b.now()
	if err := b.store.PutMatch(ctx, snap); err != nil {
		return nil, err
	}
	b.logger.Info("match status changed", "match_id", snap.ID, "status", status)
	return snap, nil
}

// ReadThread returns aiID's thread in the current match.
func (b *Bridge) ReadThread(ctx context.Context, aiID string) (types.Thread, error) {
	snap, err := b.store.GetMatch(ctx)
	if err != nil {
		return types.Thread{}, err
	}
	return b.store.GetThread(ctx, snap.ID, aiID)
}

// AppendMessages merges entries onto the latest stored thread and recomputes
// its summary. Entries whose id is already present are skipped.
func (b *Bridge) AppendMessages(ctx context.Context, aiID string, entries []types.ThreadEntry) (types.Thread, error) {
	snap, err := b.store.GetMatch(ctx)
	if err != nil {
		return types.Thread{}, err
	}
	latest, err := b.store.GetThread(ctx, snap.ID, aiID)
	if err != nil {
		return types.Thread{}, err
	}

	seen := make(map[string]bool, len(latest.Entries))
	for _, e := range latest.Entries {
		seen[e.ID] = true
	}
	now := b.now()
	for _, e := range entries {
		if e.ID == "" {
			e.ID = uuid.NewString()
		}
		if seen[e.ID] {
			continue
		}
		if e.Timestamp.IsZero() {
			e.Timestamp = now
		}
		seen[e.ID] = true
		latest.Entries = append(latest.Entries, e)
	}
	latest.AIID = aiID
	latest.Summary = Summarize(latest.Entries)
	latest.UpdatedAt = now

	if err := b.store.PutThread(ctx, snap.ID, latest); err != nil {
		return types.Thread{}, err
	}
	return latest, nil
}

// Summarize renders the last SummaryLines entries as "name: text" lines and
// keeps at most the trailing SummaryMaxRunes runes.
func Summarize(entries []types.ThreadEntry) string {
	if len(entries) > SummaryLines {
		entries = entries[len(entries)-SummaryLines:]
	}
	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		if line := discussion.AsNamedLine(e.SpeakerName, e.Text); line != "" {
			lines = append(lines, line)
		}
	}
	summary := []rune(strings.Join(lines, "\n"))
	if len(summary) > SummaryMaxRunes {
		summary = summary[len(summary)-SummaryMaxRunes:]
	}
	return string(summary)
}
