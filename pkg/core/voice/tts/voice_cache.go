package tts

import (
	"sync"
	"time"
)

// DefaultVoiceCacheTTL is how long a resolved voice stays valid.
const DefaultVoiceCacheTTL = 10 * time.Minute

// VoiceCache remembers the last voice resolved per language.
type VoiceCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]voiceEntry
}

type voiceEntry struct {
	voiceID string
	expires time.Time
}

// NewVoiceCache creates a cache. A non-positive ttl uses DefaultVoiceCacheTTL.
func NewVoiceCache(ttl time.Duration) *VoiceCache {
	if ttl <= 0 {
		ttl = DefaultVoiceCacheTTL
	}
	return &VoiceCache{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]voiceEntry),
	}
}

// WithClock replaces the cache clock (tests).
func (c *VoiceCache) WithClock(now func() time.Time) *VoiceCache {
	if now != nil {
		c.now = now
	}
	return c
}

// Get returns the cached voice for a language if it has not expired.
func (c *VoiceCache) Get(language string) (string, bool) {
	if c == nil {
		return "", false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[language]
	if !ok {
		return "", false
	}
	if !c.now().Before(e.expires) {
		delete(c.entries, language)
		return "", false
	}
	return e.voiceID, true
}

// Put stores a resolved voice.
func (c *VoiceCache) Put(language, voiceID string) {
	if c == nil || voiceID == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[language] = voiceEntry{voiceID: voiceID, expires: c.now().Add(c.ttl)}
}

// Invalidate drops the entry for one language.
func (c *VoiceCache) Invalidate(language string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, language)
}

// InvalidateAll drops every entry.
func (c *VoiceCache) InvalidateAll() {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.entries)
}
