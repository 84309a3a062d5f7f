// Package cache provides the intent cache: an LRU with TTL keyed by normalized
// request text, mirrored to a durable Store by a write-behind flusher.
package cache

import (
	"container/list"
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ShayCichocki/intentrouter/internal/metrics"
	"github.com/ShayCichocki/intentrouter/pkg/models"
)

// ErrCorrupt is returned by stores that cannot be read as a whole. The cache
// starts cold and resets the store.
var ErrCorrupt = errors.New("cache store corrupt")

// Store persists cache entries. LoadAll returns an entry it cannot decode with
// only Key set; the cache drops it and deletes it from the store.
type Store interface {
	LoadAll(ctx context.Context) ([]models.CacheEntry, error)
	Upsert(ctx context.Context, entries []models.CacheEntry) error
	Delete(ctx context.Context, keys []string) error
	Clear(ctx context.Context) error
}

// Options configures an IntentCache.
type Options struct {
	// Capacity is the maximum number of entries. Defaults to 1000.
	Capacity int
	// TTL expires entries by creation time. Zero disables expiry.
	TTL time.Duration
	// Store mirrors the cache. Nil keeps the cache in memory only.
	Store Store
	// FlushTimeout bounds a single write-behind flush. Defaults to 5s.
	FlushTimeout time.Duration
	Logger       *zap.Logger
	// Now overrides the clock in tests.
	Now func() time.Time
}

// Stats is a point-in-time view of cache effectiveness.
type Stats struct {
	Hits      int64   `json:"hits"`
	Misses    int64   `json:"misses"`
	Evictions int64   `json:"evictions"`
	HitRate   float64 `json:"hit_rate"`
	Size      int     `json:"size"`
	Capacity  int     `json:"capacity"`
}

// IntentCache is safe for concurrent use.
type IntentCache struct {
	mu       sync.Mutex
	capacity int
	ttl      time.Duration
	ll       *list.List // front = most recently used
	items    map[string]*list.Element

	hits      int64
	misses    int64
	evictions int64

	store        Store
	flushTimeout time.Duration
	// dirty maps key to true for upsert, false for delete.
	dirty        map[string]bool
	clearPending bool
	flushMu      sync.Mutex

	signal    chan struct{}
	done      chan struct{}
	stopped   chan struct{}
	started   bool
	closeOnce sync.Once

	now    func() time.Time
	logger *zap.Logger
}

// New creates an empty cache. Call Open to load persisted entries and start mirroring.
func New(opts Options) *IntentCache {
	if opts.Capacity <= 0 {
		opts.Capacity = 1000
	}
	if opts.FlushTimeout <= 0 {
		opts.FlushTimeout = 5 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &IntentCache{
		capacity:     opts.Capacity,
		ttl:          opts.TTL,
		ll:           list.New(),
		items:        make(map[string]*list.Element, opts.Capacity),
		store:        opts.Store,
		flushTimeout: opts.FlushTimeout,
		dirty:        make(map[string]bool),
		signal:       make(chan struct{}, 1),
		done:         make(chan struct{}),
		stopped:      make(chan struct{}),
		now:          opts.Now,
		logger:       opts.Logger,
	}
}

// Open loads persisted entries, drops expired ones and starts the flusher.
// An unreadable store yields a cold cache, never an error.
func (c *IntentCache) Open(ctx context.Context) {
	if c.store == nil {
		return
	}

	entries, err := c.store.LoadAll(ctx)
	if err != nil {
		c.logger.Warn("cache store unreadable, starting cold", zap.Error(err))
		if errors.Is(err, ErrCorrupt) {
			c.mu.Lock()
			c.clearPending = true
			c.mu.Unlock()
		}
	} else {
		c.load(entries)
	}

	c.mu.Lock()
	c.started = true
	c.mu.Unlock()
	go c.run()
	c.notify()
}

func (c *IntentCache) load(entries []models.CacheEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	live := make([]models.CacheEntry, 0, len(entries))
	unreadable := 0
	for _, e := range entries {
		if e.Text == "" {
			unreadable++
			c.dirty[e.Key] = false
			continue
		}
		if e.Key != hashKey(e.Text) || e.Expired(now, c.ttl) {
			c.dirty[e.Key] = false
			continue
		}
		live = append(live, e)
	}
	if unreadable > 0 {
		c.logger.Warn("dropping unreadable cache entries", zap.Int("count", unreadable))
	}

	// Oldest first so PushFront leaves the most recent entry at the front.
	sort.SliceStable(live, func(i, j int) bool {
		return live[i].LastAccessedAt.Before(live[j].LastAccessedAt)
	})
	for i := range live {
		e := live[i]
		if el, ok := c.items[e.Key]; ok {
			c.ll.Remove(el)
		}
		c.items[e.Key] = c.ll.PushFront(&e)
	}
	for c.ll.Len() > c.capacity {
		c.evictOldest()
	}
	metrics.CacheSize.Set(float64(c.ll.Len()))

	c.logger.Debug("cache loaded",
		zap.Int("persisted", len(entries)),
		zap.Int("live", c.ll.Len()),
	)
}

// Get returns the cached intent for text. Expired entries are removed and count as misses.
func (c *IntentCache) Get(text string) (models.Intent, bool) {
	key := Key(text)

	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		c.misses++
		metrics.CacheMisses.Inc()
		return models.Intent{}, false
	}

	entry := el.Value.(*models.CacheEntry)
	now := c.now()
	if entry.Expired(now, c.ttl) {
		c.removeElement(el)
		c.markLocked(key, false)
		metrics.CacheSize.Set(float64(c.ll.Len()))
		c.misses++
		metrics.CacheMisses.Inc()
		return models.Intent{}, false
	}

	entry.LastAccessedAt = now
	entry.AccessCount++
	c.ll.MoveToFront(el)
	c.markLocked(key, true)
	c.hits++
	metrics.CacheHits.Inc()
	return entry.Intent, true
}

// Put stores intent for text, evicting the least recently used entry when full.
func (c *IntentCache) Put(text string, intent models.Intent) {
	normalized := Normalize(text)
	key := hashKey(normalized)

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if el, ok := c.items[key]; ok {
		entry := el.Value.(*models.CacheEntry)
		entry.Intent = intent
		entry.CreatedAt = now
		entry.LastAccessedAt = now
		c.ll.MoveToFront(el)
		c.markLocked(key, true)
		return
	}

	c.items[key] = c.ll.PushFront(&models.CacheEntry{
		Key:            key,
		Text:           normalized,
		Intent:         intent,
		CreatedAt:      now,
		LastAccessedAt: now,
	})
	c.markLocked(key, true)
	for c.ll.Len() > c.capacity {
		c.evictOldest()
	}
	metrics.CacheSize.Set(float64(c.ll.Len()))
}

// Clear empties the cache and the store.
func (c *IntentCache) Clear() {
	c.mu.Lock()
	c.ll.Init()
	c.items = make(map[string]*list.Element, c.capacity)
	c.dirty = make(map[string]bool)
	c.clearPending = true
	c.mu.Unlock()

	metrics.CacheSize.Set(0)
	c.notify()
}

// Stats returns hit/miss counters and the current size.
func (c *IntentCache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Stats{
		Hits:      c.hits,
		Misses:    c.misses,
		Evictions: c.evictions,
		Size:      c.ll.Len(),
		Capacity:  c.capacity,
	}
	if total := c.hits + c.misses; total > 0 {
		s.HitRate = float64(c.hits) / float64(total)
	}
	return s
}

// Len returns the number of live entries.
func (c *IntentCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ll.Len()
}

// Entries returns a snapshot of all entries, most recently used first.
func (c *IntentCache) Entries() []models.CacheEntry {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]models.CacheEntry, 0, c.ll.Len())
	for el := c.ll.Front(); el != nil; el = el.Next() {
		out = append(out, *el.Value.(*models.CacheEntry))
	}
	return out
}

// Flush writes pending changes to the store synchronously.
func (c *IntentCache) Flush(ctx context.Context) error {
	if c.store == nil {
		return nil
	}

	c.mu.Lock()
	dirty := c.dirty
	c.dirty = make(map[string]bool)
	clearStore := c.clearPending
	c.clearPending = false

	var upserts []models.CacheEntry
	var deletes []string
	for key, live := range dirty {
		el, ok := c.items[key]
		if live && ok {
			upserts = append(upserts, *el.Value.(*models.CacheEntry))
		} else {
			deletes = append(deletes, key)
		}
	}
	c.mu.Unlock()

	if !clearStore && len(upserts) == 0 && len(deletes) == 0 {
		return nil
	}

	c.flushMu.Lock()
	defer c.flushMu.Unlock()

	var err error
	if clearStore {
		err = c.store.Clear(ctx)
	}
	if err == nil && len(deletes) > 0 {
		err = c.store.Delete(ctx, deletes)
	}
	if err == nil && len(upserts) > 0 {
		err = c.store.Upsert(ctx, upserts)
	}
	if err != nil {
		metrics.CacheFlushErrors.Inc()
		c.requeue(dirty, clearStore)
		c.logger.Warn("cache flush failed",
			zap.Error(err),
			zap.Int("upserts", len(upserts)),
			zap.Int("deletes", len(deletes)),
		)
		return err
	}
	return nil
}

// Close stops the flusher after a final flush.
func (c *IntentCache) Close(ctx context.Context) error {
	c.mu.Lock()
	started := c.started
	c.mu.Unlock()

	if !started {
		return c.Flush(ctx)
	}

	c.closeOnce.Do(func() { close(c.done) })
	select {
	case <-c.stopped:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *IntentCache) run() {
	defer close(c.stopped)
	for {
		select {
		case <-c.signal:
			c.flushWithTimeout()
		case <-c.done:
			c.flushWithTimeout()
			return
		}
	}
}

func (c *IntentCache) flushWithTimeout() {
	ctx, cancel := context.WithTimeout(context.Background(), c.flushTimeout)
	defer cancel()
	_ = c.Flush(ctx)
}

// requeue restores changes from a failed flush unless newer ones superseded them.
func (c *IntentCache) requeue(dirty map[string]bool, clearStore bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if clearStore {
		c.clearPending = true
	}
	for key, live := range dirty {
		if _, ok := c.dirty[key]; !ok {
			c.dirty[key] = live
		}
	}
}

func (c *IntentCache) markLocked(key string, live bool) {
	if c.store == nil {
		return
	}
	c.dirty[key] = live
	if c.started {
		c.notify()
	}
}

func (c *IntentCache) notify() {
	select {
	case c.signal <- struct{}{}:
	default:
	}
}

func (c *IntentCache) evictOldest() {
	el := c.ll.Back()
	if el == nil {
		return
	}
	key := el.Value.(*models.CacheEntry).Key
	c.removeElement(el)
	c.markLocked(key, false)
	c.evictions++
	metrics.CacheEvictions.Inc()
}

func (c *IntentCache) removeElement(el *list.Element) {
	entry := el.Value.(*models.CacheEntry)
	delete(c.items, entry.Key)
	c.ll.Remove(el)
}
