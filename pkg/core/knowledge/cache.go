// Package knowledge provides a query-similarity cache for knowledge-base
// lookups. Repeated questions within the TTL are served from memory, and a
// search cooldown prevents back-to-back live searches (and the back-to-back
// filler utterances they would cause).
package knowledge

import (
	"strings"
	"sync"
	"time"
	"unicode"
)

// Config tunes the cache. The similarity threshold and cooldown are
// empirically tuned defaults, not correctness properties.
type Config struct {
	// TTL is how long an entry stays servable. Default: 5 minutes.
	TTL time.Duration `json:"ttl"`

	// SimilarityThreshold is the minimum Jaccard word-overlap for a fuzzy
	// hit. Default: 0.7.
	SimilarityThreshold float64 `json:"similarity_threshold"`

	// SearchCooldown rejects starting a second live search this soon
	// after the previous one began. Default: 3 seconds.
	SearchCooldown time.Duration `json:"search_cooldown"`
}

// DefaultConfig returns the standard cache tuning.
func DefaultConfig() Config {
	return Config{
		TTL:                 5 * time.Minute,
		SimilarityThreshold: 0.7,
		SearchCooldown:      3 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	if c.TTL == 0 {
		c.TTL = 5 * time.Minute
	}
	if c.SimilarityThreshold == 0 {
		c.SimilarityThreshold = 0.7
	}
	if c.SearchCooldown == 0 {
		c.SearchCooldown = 3 * time.Second
	}
	return c
}

type entry struct {
	normalized string
	words      map[string]struct{}
	query      string
	result     string
	storedAt   time.Time
}

// Cache is a TTL cache keyed by normalized query text with Jaccard
// similarity matching. Entries are kept oldest-first; expired entries are
// evicted from the front on every access.
type Cache struct {
	cfg Config

	mu         sync.Mutex
	entries    []entry // oldest first
	lastSearch time.Time

	now func() time.Time // injectable for tests
}

// NewCache creates a cache with the given tuning.
func NewCache(cfg Config) *Cache {
	return &Cache{
		cfg: cfg.withDefaults(),
		now: time.Now,
	}
}

// Lookup returns the cached result for query, matching the normalized text
// exactly first, then by word-overlap similarity against the newest
// non-expired entries.
func (c *Cache) Lookup(query string) (string, bool) {
	normalized, words := normalize(query)
	if normalized == "" {
		return "", false
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.evictExpired()

	// Exact match first.
	for i := len(c.entries) - 1; i >= 0; i-- {
		if c.entries[i].normalized == normalized {
			return c.entries[i].result, true
		}
	}

	// Similarity match, newest entries first.
	for i := len(c.entries) - 1; i >= 0; i-- {
		if jaccard(words, c.entries[i].words) >= c.cfg.SimilarityThreshold {
			return c.entries[i].result, true
		}
	}

	return "", false
}

// Put stores a successful search result.
func (c *Cache) Put(query, result string) {
	normalized, words := normalize(query)
	if normalized == "" {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.evictExpired()

	c.entries = append(c.entries, entry{
		normalized: normalized,
		words:      words,
		query:      query,
		result:     result,
		storedAt:   c.now(),
	})
}

// BeginSearch records the start of a live search. Returns false while the
// cooldown from the previous search is still running; callers should serve
// the cache (or a previously-retrieved-information directive) instead.
func (c *Cache) BeginSearch() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if !c.lastSearch.IsZero() && now.Sub(c.lastSearch) < c.cfg.SearchCooldown {
		return false
	}
	c.lastSearch = now
	return true
}

// Len returns the number of live entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.evictExpired()
	return len(c.entries)
}

// evictExpired drops expired entries from the front. Callers hold c.mu.
func (c *Cache) evictExpired() {
	cutoff := c.now().Add(-c.cfg.TTL)
	i := 0
	for i < len(c.entries) && !c.entries[i].storedAt.After(cutoff) {
		i++
	}
	if i > 0 {
		c.entries = append([]entry(nil), c.entries[i:]...)
	}
}

// normalize lower-cases, strips punctuation, and splits into a word set.
func normalize(query string) (string, map[string]struct{}) {
	var b strings.Builder
	for _, r := range strings.ToLower(query) {
		switch {
		case unicode.IsLetter(r) || unicode.IsNumber(r):
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteByte(' ')
		}
	}

	fields := strings.Fields(b.String())
	if len(fields) == 0 {
		return "", nil
	}

	words := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		words[f] = struct{}{}
	}
	return strings.Join(fields, " "), words
}

// jaccard computes |a∩b| / |a∪b|.
func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	intersection := 0
	for w := range a {
		if _, ok := b[w]; ok {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	return float64(intersection) / float64(union)
}
