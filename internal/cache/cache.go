// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/jeranaias/parley/internal/notify"
)

// ErrNoLoader is returned when a key is refreshed before anything fetched
// it, so the cache does not know how to load it.
var ErrNoLoader = errors.New("cache: no loader registered for key")

// ErrScopeChanged is returned by a fetch that resolved after Reset or
// SetScope. Its result belongs to the previous identity and is dropped.
var ErrScopeChanged = fmt.Errorf("cache: scope changed during fetch: %w", context.Canceled)

// Loader fetches the current value of a key from the backend.
type Loader[V any] func(ctx context.Context) (V, error)

// Snapshotter persists values between runs. Implemented by
// storage.SnapshotStore.
type Snapshotter interface {
	Load(ctx context.Context, key string) ([]byte, bool, error)
	Save(ctx context.Context, key string, data []byte) error
	Delete(ctx context.Context, key string) error
}

// =============================================================================
// MESSAGES
// =============================================================================

// RefreshedMsg reports that a background refetch applied a new value.
type RefreshedMsg struct {
	Key Key
}

// RefreshFailedMsg reports a background refetch failure. The previous value
// is still cached and the sink has already been told.
type RefreshFailedMsg struct {
	Key Key
	Err error
}

// ScopeChangedMsg announces a new backend identity. The owner of the
// cache calls SetScope; every other view drops its state and reloads.
type ScopeChangedMsg struct {
	Scope string
}

// =============================================================================
// CACHE
// =============================================================================

// Options configures a Cache.
type Options struct {
	// Sink receives one report per failed fetch. Defaults to notify.Discard.
	Sink notify.Sink
	// FailureText renders the report. Defaults to DefaultFailureText.
	FailureText func(Key, error) string
	Logger      zerolog.Logger
	// Snapshots, when set, seeds entries on first access and records every
	// applied value.
	Snapshots Snapshotter
	// Scope namespaces snapshot keys, so one store can hold several
	// backends or accounts. See ScopeFor.
	Scope string
	// Context bounds background refetches. Defaults to context.Background.
	Context context.Context
	Now     func() time.Time
}

// Stats counts cache activity.
type Stats struct {
	Hits      uint64
	Misses    uint64
	Fetches   uint64
	Failures  uint64
	Discarded uint64
}

// Status describes a key without returning its value.
type Status struct {
	HasValue  bool
	Stale     bool
	Fetching  bool
	UpdatedAt time.Time
	Err       error
}

type write struct {
	seq uint64
	fn  func(any) any
}

type entry struct {
	value   any
	raw     []byte // snapshot payload, decoded on first typed access
	has     bool
	stale   bool
	updated time.Time
	err     error
	load    func(context.Context) (any, error)

	gen      uint64 // flight generation, globally unique
	issued   uint64 // latest request token
	fetching int
	seq      uint64 // local write counter
	writes   []write
}

// Cache is safe for concurrent use. Values are treated as immutable: every
// write installs a new value and readers never modify what they get.
type Cache struct {
	mu      sync.Mutex
	entries map[Key]*entry
	gens    uint64
	group   singleflight.Group

	sink        notify.Sink
	failureText func(Key, error) string
	logger      zerolog.Logger
	snaps       Snapshotter
	scope       string
	epoch       uint64 // bumped by Reset and SetScope
	ctx         context.Context
	now         func() time.Time

	stats Stats
}

// New creates an empty cache.
func New(opts Options) *Cache {
	c := &Cache{
		entries:     make(map[Key]*entry),
		sink:        opts.Sink,
		failureText: opts.FailureText,
		logger:      opts.Logger.With().Str("component", "cache").Logger(),
		snaps:       opts.Snapshots,
		scope:       opts.Scope,
		ctx:         opts.Context,
		now:         opts.Now,
	}
	if c.sink == nil {
		c.sink = notify.Discard
	}
	if c.failureText == nil {
		c.failureText = DefaultFailureText
	}
	if c.ctx == nil {
		c.ctx = context.Background()
	}
	if c.now == nil {
		c.now = time.Now
	}
	return c
}

// Context returns the context used for background refetches.
func (c *Cache) Context() context.Context {
	return c.ctx
}

// entryFor returns the entry for key, creating it (seeded from the snapshot
// store when one is configured) on first access. Must not be called with
// c.mu held.
func (c *Cache) entryFor(key Key) *entry {
	c.mu.Lock()
	e, ok := c.entries[key]
	snapKey, epoch := c.snapshotKey(key), c.epoch
	c.mu.Unlock()
	if ok {
		return e
	}

	var raw []byte
	if c.snaps != nil {
		data, found, err := c.snaps.Load(c.ctx, snapKey)
		if err != nil {
			c.logger.Warn().Err(err).Str("key", key.String()).Msg("snapshot load failed")
		} else if found {
			raw = data
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[key]; ok {
		return e
	}
	c.gens++
	e = &entry{gen: c.gens}
	if raw != nil && epoch == c.epoch {
		// Snapshot data is a hint; serve it but revalidate on first fetch.
		e.raw, e.has, e.stale = raw, true, true
	}
	c.entries[key] = e
	return e
}

// typedValue returns the entry's value as V, decoding a snapshot payload if
// needed. Must be called with c.mu held.
func typedValue[V any](e *entry) (V, bool) {
	var zero V
	if !e.has {
		return zero, false
	}
	if e.raw != nil {
		var v V
		if err := json.Unmarshal(e.raw, &v); err != nil {
			e.raw, e.has = nil, false
			return zero, false
		}
		e.value, e.raw = v, nil
	}
	v, ok := e.value.(V)
	return v, ok
}

// =============================================================================
// READS
// =============================================================================

// Fetch returns the value for key, loading it when absent or stale.
// Concurrent fetches of the same key share one load. load is remembered so
// that Invalidate can refetch the key later.
func Fetch[V any](ctx context.Context, c *Cache, key Key, load Loader[V]) (V, error) {
	e := c.entryFor(key)

	c.mu.Lock()
	e.load = func(ctx context.Context) (any, error) { return load(ctx) }
	if !e.stale {
		if v, ok := typedValue[V](e); ok {
			c.stats.Hits++
			c.mu.Unlock()
			return v, nil
		}
	}
	c.stats.Misses++
	c.mu.Unlock()

	v, err := c.revalidate(ctx, key, e)
	if err != nil {
		var zero V
		return zero, err
	}
	out, _ := v.(V)
	return out, nil
}

// Peek returns the cached value for key without loading, stale or not.
func Peek[V any](c *Cache, key Key) (V, bool) {
	e := c.entryFor(key)
	c.mu.Lock()
	defer c.mu.Unlock()
	return typedValue[V](e)
}

// Status reports the state of key.
func (c *Cache) Status(key Key) Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return Status{}
	}
	return Status{
		HasValue:  e.has,
		Stale:     e.stale,
		Fetching:  e.fetching > 0,
		UpdatedAt: e.updated,
		Err:       e.err,
	}
}

// Refresh refetches key with its remembered loader, joining a fetch of the
// same generation if one is in flight.
func (c *Cache) Refresh(ctx context.Context, key Key) error {
	e := c.entryFor(key)
	_, err := c.revalidate(ctx, key, e)
	return err
}

func (c *Cache) revalidate(ctx context.Context, key Key, e *entry) (any, error) {
	c.mu.Lock()
	if e.load == nil {
		c.mu.Unlock()
		return nil, ErrNoLoader
	}
	flight := key.String() + "#" + strconv.FormatUint(e.gen, 10)
	c.mu.Unlock()

	v, err, _ := c.group.Do(flight, func() (any, error) {
		return c.fetch(ctx, key, e)
	})
	return v, err
}

// fetch runs one load. It is only ever called inside a singleflight group,
// so each flight takes exactly one token and reports at most one failure.
func (c *Cache) fetch(ctx context.Context, key Key, e *entry) (any, error) {
	c.mu.Lock()
	e.issued++
	token := e.issued
	gen := e.gen
	seq := e.seq
	epoch := c.epoch
	load := e.load
	e.fetching++
	c.stats.Fetches++
	c.mu.Unlock()

	start := c.now()
	v, err := load(ctx)

	c.mu.Lock()
	e.fetching--
	if epoch != c.epoch {
		c.stats.Discarded++
		c.mu.Unlock()
		c.logger.Debug().Str("key", key.String()).Msg("discarded response from previous scope")
		return nil, ErrScopeChanged
	}
	current := token == e.issued
	if err != nil {
		if current {
			e.err = err
		}
		c.stats.Failures++
		c.mu.Unlock()

		c.logger.Warn().Err(err).Str("key", key.String()).Bool("current", current).Msg("fetch failed")
		if current && !errors.Is(err, context.Canceled) {
			c.sink.Error(c.failureText(key, err))
		}
		return nil, err
	}

	if !current {
		c.stats.Discarded++
		cached := v
		if e.has && e.raw == nil {
			cached = e.value
		}
		c.mu.Unlock()
		c.logger.Debug().Str("key", key.String()).Uint64("token", token).Msg("discarded superseded response")
		return cached, nil
	}

	// Rebase local writes made while this fetch was in flight.
	for _, w := range e.writes {
		if w.seq > seq {
			v = w.fn(v)
		}
	}
	e.writes = nil
	e.value, e.raw, e.has, e.err = v, nil, true, nil
	e.stale = e.gen != gen
	e.updated = c.now()
	snapKey := c.snapshotKey(key)
	c.mu.Unlock()

	c.logger.Debug().Str("key", key.String()).Dur("latency", c.now().Sub(start)).Msg("fetch applied")
	c.persist(snapKey, v)
	return v, nil
}

// =============================================================================
// WRITES
// =============================================================================

// Set replaces the value for key. Fetches already in flight for key are
// superseded and their responses discarded.
func Set[V any](c *Cache, key Key, v V) {
	e := c.entryFor(key)
	c.mu.Lock()
	e.issued++
	e.writes = nil
	e.value, e.raw, e.has, e.stale, e.err = v, nil, true, false, nil
	e.updated = c.now()
	snapKey := c.snapshotKey(key)
	c.mu.Unlock()

	c.persist(snapKey, v)
}

// Mutate applies fn to the value for key (the zero V when absent). If a
// fetch is in flight, fn is re-applied to its result when it lands, so fn
// must be idempotent.
func Mutate[V any](c *Cache, key Key, fn func(V) V) {
	e := c.entryFor(key)
	c.mu.Lock()
	cur, ok := typedValue[V](e)
	next := fn(cur)
	if !ok {
		// Without a baseline the value is partial; keep it stale so the next
		// read revalidates.
		e.stale = true
	}
	e.value, e.raw, e.has = next, nil, true
	e.seq++
	if e.fetching > 0 {
		e.writes = append(e.writes, write{seq: e.seq, fn: func(a any) any {
			v, _ := a.(V)
			return fn(v)
		}})
	}
	snapKey := c.snapshotKey(key)
	c.mu.Unlock()

	c.persist(snapKey, next)
}

// Evict drops key entirely, including its snapshot.
func (c *Cache) Evict(key Key) {
	c.mu.Lock()
	delete(c.entries, key)
	snapKey := c.snapshotKey(key)
	c.mu.Unlock()

	if c.snaps != nil {
		if err := c.snaps.Delete(c.ctx, snapKey); err != nil {
			c.logger.Warn().Err(err).Str("key", key.String()).Msg("snapshot delete failed")
		}
	}
}

// Reset drops every entry, used on logout. Fetches in flight resolve with
// ErrScopeChanged and leave no trace. Snapshots are left to the owner of
// the store.
func (c *Cache) Reset() {
	c.mu.Lock()
	c.entries = make(map[Key]*entry)
	c.epoch++
	c.mu.Unlock()
}

// SetScope drops every entry like Reset and switches the snapshot
// namespace, so the next reads warm-start from scope's snapshots only.
func (c *Cache) SetScope(scope string) {
	c.mu.Lock()
	c.entries = make(map[Key]*entry)
	c.epoch++
	c.scope = scope
	c.mu.Unlock()
	c.logger.Debug().Str("scope", scope).Msg("cache scope changed")
}

// Scope returns the snapshot namespace.
func (c *Cache) Scope() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.scope
}

// snapshotKey returns the store key for key. Must be called with c.mu held.
func (c *Cache) snapshotKey(key Key) string {
	if c.scope == "" {
		return key.String()
	}
	return c.scope + "/" + key.String()
}

// =============================================================================
// INVALIDATION
// =============================================================================

// MarkStale marks matching keys stale without refetching. With no ids every
// key of kind matches; id 0 addresses the list. It returns the matched keys
// that have a loader.
func (c *Cache) MarkStale(kind Kind, ids ...int64) []Key {
	c.mu.Lock()
	defer c.mu.Unlock()

	var keys []Key
	for k, e := range c.entries {
		if k.Kind != kind || (len(ids) > 0 && !containsID(ids, k.ID)) {
			continue
		}
		e.stale = true
		c.gens++
		e.gen = c.gens
		if e.load != nil {
			keys = append(keys, k)
		}
	}
	return keys
}

// Invalidate marks matching keys stale and returns a command that refetches
// each of them in the background. Readers keep the previous value until
// the refetch resolves. The command is nil when nothing needs refetching.
func (c *Cache) Invalidate(kind Kind, ids ...int64) tea.Cmd {
	keys := c.MarkStale(kind, ids...)
	cmds := make([]tea.Cmd, 0, len(keys))
	for _, k := range keys {
		k := k
		cmds = append(cmds, func() tea.Msg {
			if err := c.Refresh(c.ctx, k); err != nil {
				return RefreshFailedMsg{Key: k, Err: err}
			}
			return RefreshedMsg{Key: k}
		})
	}
	return tea.Batch(cmds...)
}

func containsID(ids []int64, id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

// Stats returns a snapshot of the counters.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

func (c *Cache) persist(snapKey string, v any) {
	if c.snaps == nil {
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		c.logger.Warn().Err(err).Str("key", snapKey).Msg("snapshot encode failed")
		return
	}
	if err := c.snaps.Save(c.ctx, snapKey, data); err != nil {
		c.logger.Warn().Err(err).Str("key", snapKey).Msg("snapshot save failed")
	}
}
