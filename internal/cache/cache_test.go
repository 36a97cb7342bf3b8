// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/parley/internal/model"
	"github.com/jeranaias/parley/internal/notify"
)

// runCmd executes cmd synchronously, flattening batches.
func runCmd(cmd tea.Cmd) []tea.Msg {
	if cmd == nil {
		return nil
	}
	msg := cmd()
	if batch, ok := msg.(tea.BatchMsg); ok {
		var out []tea.Msg
		for _, c := range batch {
			out = append(out, runCmd(c)...)
		}
		return out
	}
	return []tea.Msg{msg}
}

func newTestCache(t *testing.T) (*Cache, *notify.Recorder) {
	t.Helper()
	rec := notify.NewRecorder()
	return New(Options{Sink: rec}), rec
}

var chatsKey = ListKey(KindChats)

// =============================================================================
// KEY TESTS
// =============================================================================

func TestKey_StringRoundTrip(t *testing.T) {
	for _, k := range []Key{ListKey(KindChats), ItemKey(KindModels, 4), MessagesKey(9)} {
		parsed, err := ParseKey(k.String())
		require.NoError(t, err)
		assert.Equal(t, k, parsed)
	}
	assert.Equal(t, "messages/9", MessagesKey(9).String())

	_, err := ParseKey("chats/abc")
	assert.Error(t, err)
	_, err = ParseKey("")
	assert.Error(t, err)
}

func TestDefaultFailureText(t *testing.T) {
	assert.Equal(t, "Failed to fetch chats", DefaultFailureText(ListKey(KindChats), nil))
	assert.Equal(t, "Failed to fetch chat", DefaultFailureText(ItemKey(KindChats, 1), nil))
	assert.Equal(t, "Failed to fetch messages", DefaultFailureText(MessagesKey(1), nil))
	assert.Equal(t, "Failed to fetch LLM models", DefaultFailureText(ListKey(KindModels), nil))
	assert.Equal(t, "Failed to fetch MCP servers", DefaultFailureText(ListKey(KindServers), nil))
}

// =============================================================================
// FETCH TESTS
// =============================================================================

func TestFetch_CachesUntilInvalidated(t *testing.T) {
	c, _ := newTestCache(t)
	var calls int32
	load := func(ctx context.Context) ([]string, error) {
		n := atomic.AddInt32(&calls, 1)
		if n == 1 {
			return []string{"a"}, nil
		}
		return []string{"a", "b"}, nil
	}

	v, err := Fetch(context.Background(), c, chatsKey, load)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, v)

	v, err = Fetch(context.Background(), c, chatsKey, load)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, v)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

	msgs := runCmd(c.Invalidate(KindChats))
	require.Len(t, msgs, 1)
	assert.Equal(t, RefreshedMsg{Key: chatsKey}, msgs[0])

	got, ok := Peek[[]string](c, chatsKey)
	require.True(t, ok)
	assert.Equal(t, []string{"a", "b"}, got)

	stats := c.Stats()
	assert.Equal(t, uint64(1), stats.Hits)
	assert.Equal(t, uint64(2), stats.Fetches)
}

func TestFetch_ConcurrentCallsShareOneLoad(t *testing.T) {
	c, _ := newTestCache(t)
	var calls int32
	release := make(chan struct{})
	load := func(ctx context.Context) (int, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return 42, nil
	}

	var wg sync.WaitGroup
	results := make(chan int, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := Fetch(context.Background(), c, chatsKey, load)
			if err == nil {
				results <- v
			}
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()
	close(results)

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	n := 0
	for v := range results {
		assert.Equal(t, 42, v)
		n++
	}
	assert.Equal(t, 10, n)
}

func TestFetch_FailureKeepsValueAndNotifiesOnce(t *testing.T) {
	c, rec := newTestCache(t)
	var fail atomic.Bool
	load := func(ctx context.Context) ([]string, error) {
		if fail.Load() {
			return nil, errors.New("boom")
		}
		return []string{"keep"}, nil
	}
	_, err := Fetch(context.Background(), c, chatsKey, load)
	require.NoError(t, err)

	fail.Store(true)
	msgs := runCmd(c.Invalidate(KindChats))
	require.Len(t, msgs, 1)
	failed, ok := msgs[0].(RefreshFailedMsg)
	require.True(t, ok)
	assert.EqualError(t, failed.Err, "boom")

	got, ok := Peek[[]string](c, chatsKey)
	require.True(t, ok, "stale value survives a failed refetch")
	assert.Equal(t, []string{"keep"}, got)
	assert.Equal(t, []string{"Failed to fetch chats"}, rec.Errors())

	st := c.Status(chatsKey)
	assert.True(t, st.Stale)
	assert.EqualError(t, st.Err, "boom")
}

func TestFetch_NoRetryAfterFailure(t *testing.T) {
	c, rec := newTestCache(t)
	var calls int32
	_, err := Fetch(context.Background(), c, chatsKey, func(ctx context.Context) (int, error) {
		atomic.AddInt32(&calls, 1)
		return 0, errors.New("down")
	})
	require.Error(t, err)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.Len(t, rec.Errors(), 1)
}

func TestFetch_CanceledIsNotReported(t *testing.T) {
	c, rec := newTestCache(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Fetch(ctx, c, chatsKey, func(ctx context.Context) (int, error) {
		return 0, ctx.Err()
	})
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, rec.Entries())
}

func TestFetch_CustomFailureText(t *testing.T) {
	rec := notify.NewRecorder()
	c := New(Options{Sink: rec, FailureText: func(k Key, err error) string { return k.String() + ": " + err.Error() }})
	_, _ = Fetch(context.Background(), c, MessagesKey(3), func(ctx context.Context) (int, error) {
		return 0, errors.New("x")
	})
	assert.Equal(t, []string{"messages/3: x"}, rec.Errors())
}

// =============================================================================
// ORDERING TESTS
// =============================================================================

// startBlockedFetch begins a Fetch whose first load waits for release and
// returns first; later loads return later immediately.
func startBlockedFetch(t *testing.T, c *Cache, first, later []string, firstErr error) (release func(), done <-chan []string) {
	t.Helper()
	started := make(chan struct{})
	gate := make(chan struct{})
	var calls int32
	load := func(ctx context.Context) ([]string, error) {
		if atomic.AddInt32(&calls, 1) == 1 {
			close(started)
			<-gate
			return first, firstErr
		}
		return later, nil
	}
	out := make(chan []string, 1)
	go func() {
		v, _ := Fetch(context.Background(), c, chatsKey, load)
		out <- v
	}()
	<-started
	return func() { close(gate) }, out
}

func TestFetch_SupersededResponseIsDiscarded(t *testing.T) {
	c, _ := newTestCache(t)
	release, done := startBlockedFetch(t, c, []string{"old"}, []string{"new"}, nil)

	// A second, newer request resolves first.
	runCmd(c.Invalidate(KindChats))
	got, _ := Peek[[]string](c, chatsKey)
	require.Equal(t, []string{"new"}, got)

	release()
	assert.Equal(t, []string{"new"}, <-done, "late caller sees the current value")

	got, _ = Peek[[]string](c, chatsKey)
	assert.Equal(t, []string{"new"}, got)
	assert.Equal(t, uint64(1), c.Stats().Discarded)
}

func TestFetch_SupersededFailureIsSilent(t *testing.T) {
	c, rec := newTestCache(t)
	release, done := startBlockedFetch(t, c, nil, []string{"new"}, errors.New("late failure"))

	runCmd(c.Invalidate(KindChats))
	release()
	<-done

	got, _ := Peek[[]string](c, chatsKey)
	assert.Equal(t, []string{"new"}, got)
	assert.Empty(t, rec.Errors())
}

func TestMutate_RebasedOntoInFlightResult(t *testing.T) {
	c, _ := newTestCache(t)
	release, done := startBlockedFetch(t, c, []string{"server"}, nil, nil)

	Mutate(c, chatsKey, func(v []string) []string {
		for _, s := range v {
			if s == "local" {
				return v
			}
		}
		return append(append([]string(nil), v...), "local")
	})
	got, _ := Peek[[]string](c, chatsKey)
	assert.Equal(t, []string{"local"}, got)

	release()
	assert.Equal(t, []string{"server", "local"}, <-done)
	assert.False(t, c.Status(chatsKey).Stale)
}

func TestSet_SupersedesInFlightFetch(t *testing.T) {
	c, _ := newTestCache(t)
	release, done := startBlockedFetch(t, c, []string{"server"}, nil, nil)

	Set(c, chatsKey, []string{"authoritative"})
	release()
	<-done

	got, _ := Peek[[]string](c, chatsKey)
	assert.Equal(t, []string{"authoritative"}, got)
}

func TestMarkStale_DuringFlightLeavesValueStale(t *testing.T) {
	c, _ := newTestCache(t)
	release, done := startBlockedFetch(t, c, []string{"v1"}, nil, nil)

	keys := c.MarkStale(KindChats)
	assert.Equal(t, []Key{chatsKey}, keys)
	release()
	<-done

	got, _ := Peek[[]string](c, chatsKey)
	assert.Equal(t, []string{"v1"}, got)
	assert.True(t, c.Status(chatsKey).Stale, "result predates the invalidation")
}

// =============================================================================
// INVALIDATION TESTS
// =============================================================================

func TestInvalidate_FiltersByKindAndID(t *testing.T) {
	c, _ := newTestCache(t)
	var calls sync.Map
	loader := func(k Key) Loader[int] {
		return func(ctx context.Context) (int, error) {
			n, _ := calls.LoadOrStore(k, new(int32))
			atomic.AddInt32(n.(*int32), 1)
			return 1, nil
		}
	}
	for _, k := range []Key{MessagesKey(1), MessagesKey(2), chatsKey} {
		_, err := Fetch(context.Background(), c, k, loader(k))
		require.NoError(t, err)
	}

	msgs := runCmd(c.Invalidate(KindMessages, 2))
	assert.Equal(t, []tea.Msg{RefreshedMsg{Key: MessagesKey(2)}}, msgs)
	assert.False(t, c.Status(MessagesKey(1)).Stale)
	assert.False(t, c.Status(chatsKey).Stale)

	assert.Len(t, runCmd(c.Invalidate(KindMessages)), 2)
	assert.Nil(t, c.Invalidate(KindServers), "nothing cached, nothing to refetch")
}

func TestRefresh_WithoutLoader(t *testing.T) {
	c, _ := newTestCache(t)
	Set(c, chatsKey, 1)
	assert.ErrorIs(t, c.Refresh(context.Background(), chatsKey), ErrNoLoader)
}

func TestEvictAndReset(t *testing.T) {
	c, _ := newTestCache(t)
	Set(c, MessagesKey(5), []string{"x"})
	c.Evict(MessagesKey(5))
	_, ok := Peek[[]string](c, MessagesKey(5))
	assert.False(t, ok)

	Set(c, chatsKey, 1)
	c.Reset()
	assert.Equal(t, Status{}, c.Status(chatsKey))
}

func TestReset_DiscardsFetchInFlight(t *testing.T) {
	c, rec := newTestCache(t)
	snaps := newMemSnapshots()
	c.snaps = snaps
	release, done := startBlockedFetch(t, c, []string{"old identity"}, nil, nil)

	c.Reset()
	release()
	assert.Nil(t, <-done)

	_, ok := Peek[[]string](c, chatsKey)
	assert.False(t, ok, "a response for the previous identity must not repopulate the cache")
	assert.Empty(t, snaps.data)
	assert.Empty(t, rec.Errors())
	assert.Equal(t, uint64(1), c.Stats().Discarded)
}

// =============================================================================
// SNAPSHOT TESTS
// =============================================================================

type memSnapshots struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemSnapshots() *memSnapshots { return &memSnapshots{data: map[string][]byte{}} }

func (m *memSnapshots) Load(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.data[key]
	return d, ok, nil
}

func (m *memSnapshots) Save(_ context.Context, key string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = data
	return nil
}

func (m *memSnapshots) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func TestSnapshots_WarmStartThenRevalidate(t *testing.T) {
	snaps := newMemSnapshots()
	snaps.data["chats"] = []byte(`[{"id": 1, "title": "cached"}]`)
	c := New(Options{Snapshots: snaps})

	chats, ok := Peek[[]model.Chat](c, chatsKey)
	require.True(t, ok)
	require.Len(t, chats, 1)
	assert.Equal(t, "cached", chats[0].Title)
	assert.True(t, c.Status(chatsKey).Stale)

	fresh, err := Fetch(context.Background(), c, chatsKey, func(ctx context.Context) ([]model.Chat, error) {
		return []model.Chat{{ID: 2, Title: "fresh"}}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), fresh[0].ID)
	assert.Contains(t, string(snaps.data["chats"]), `"fresh"`)

	c.Evict(chatsKey)
	_, ok = snaps.data["chats"]
	assert.False(t, ok)
}

func TestSnapshots_ScopedPerIdentity(t *testing.T) {
	snaps := newMemSnapshots()
	scopeA := ScopeFor("http://a.example", "token-a")
	scopeB := ScopeFor("http://b.example", "token-b")
	require.NotEqual(t, scopeA, scopeB)
	assert.NotEqual(t, scopeA, ScopeFor("http://a.example", "token-b"), "same backend, other account")
	assert.Equal(t, scopeA, ScopeFor("http://a.example/", "token-a"))

	a := New(Options{Snapshots: snaps, Scope: scopeA})
	Set(a, chatsKey, []model.Chat{{ID: 2, Title: "from A"}})
	assert.Contains(t, snaps.data, scopeA+"/chats")
	for k := range snaps.data {
		assert.NotContains(t, k, "token-a")
	}

	b := New(Options{Snapshots: snaps, Scope: scopeB})
	_, ok := Peek[[]model.Chat](b, chatsKey)
	assert.False(t, ok, "backend B must not warm-start from A's chats")

	// Switching scope on a live cache drops A and loads only under the new scope.
	a.SetScope(scopeB)
	assert.Equal(t, scopeB, a.Scope())
	_, ok = Peek[[]model.Chat](a, chatsKey)
	assert.False(t, ok)

	a.SetScope(scopeA)
	chats, ok := Peek[[]model.Chat](a, chatsKey)
	require.True(t, ok)
	assert.Equal(t, "from A", chats[0].Title)
}

func TestSnapshots_LateFetchAfterSetScopeIsNotPersisted(t *testing.T) {
	snaps := newMemSnapshots()
	c := New(Options{Snapshots: snaps, Scope: "a"})
	release, done := startBlockedFetch(t, c, []string{"from A"}, nil, nil)

	c.SetScope("b")
	release()
	<-done

	assert.Empty(t, snaps.data)
	_, ok := Peek[[]string](c, chatsKey)
	assert.False(t, ok)
}

func TestSnapshots_CorruptPayloadIsIgnored(t *testing.T) {
	snaps := newMemSnapshots()
	snaps.data["chats"] = []byte(`{not json`)
	c := New(Options{Snapshots: snaps})

	_, ok := Peek[[]model.Chat](c, chatsKey)
	assert.False(t, ok)
}

// =============================================================================
// RESOURCES TESTS
// =============================================================================

type fakeAPI struct {
	chatCalls int32
	chats     []model.Chat
	messages  map[int64][]model.Message
	models    []model.LLMModel
	servers   []model.MCPServer
	err       error
}

func (f *fakeAPI) ListChats(context.Context) ([]model.Chat, error) {
	atomic.AddInt32(&f.chatCalls, 1)
	return f.chats, f.err
}

func (f *fakeAPI) GetChat(_ context.Context, id int64) (*model.Chat, error) {
	if c, ok := model.FindChat(f.chats, id); ok {
		return &c, nil
	}
	return nil, errors.New("not found")
}

func (f *fakeAPI) ListMessages(_ context.Context, chatID int64) ([]model.Message, error) {
	return f.messages[chatID], f.err
}

func (f *fakeAPI) ListLLMModels(context.Context) ([]model.LLMModel, error) { return f.models, f.err }

func (f *fakeAPI) GetLLMModel(_ context.Context, id int64) (*model.LLMModel, error) {
	if m, ok := model.FindEntity(f.models, id); ok {
		return &m, nil
	}
	return nil, errors.New("not found")
}

func (f *fakeAPI) ListMCPServers(context.Context) ([]model.MCPServer, error) { return f.servers, f.err }

func (f *fakeAPI) GetMCPServer(_ context.Context, id int64) (*model.MCPServer, error) {
	if s, ok := model.FindEntity(f.servers, id); ok {
		return &s, nil
	}
	return nil, errors.New("not found")
}

func TestResources_TypedAccess(t *testing.T) {
	api := &fakeAPI{
		chats:    []model.Chat{{ID: 1, Title: "a"}},
		messages: map[int64][]model.Message{1: {{ID: 10, ChatID: 1, Content: "hi"}}},
		models:   []model.LLMModel{{ID: 3, Name: "m", IsActive: true}},
		servers:  []model.MCPServer{{ID: 4, Name: "s"}},
	}
	rec := notify.NewRecorder()
	res := NewResources(api, New(Options{Sink: rec}))
	ctx := context.Background()

	chats, err := res.Chats(ctx)
	require.NoError(t, err)
	assert.Len(t, chats, 1)
	_, err = res.Chats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&api.chatCalls))

	chat, err := res.Chat(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "a", chat.Title)

	msgs, err := res.Messages(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "hi", msgs[0].Content)

	empty, err := res.Messages(ctx, 99)
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)

	m, err := res.Model(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, "m", m.Name)
	s, err := res.Server(ctx, 4)
	require.NoError(t, err)
	assert.Equal(t, "s", s.Name)

	_, err = res.Models(ctx)
	require.NoError(t, err)
	_, err = res.Servers(ctx)
	require.NoError(t, err)
	list, ok := res.PeekModels()
	require.True(t, ok)
	assert.Len(t, list, 1)
	srv, ok := res.PeekServers()
	require.True(t, ok)
	assert.Len(t, srv, 1)

	_, err = res.Server(ctx, 77)
	require.Error(t, err)
	assert.Equal(t, []string{"Failed to fetch MCP server"}, rec.Errors())
}

func TestResources_InvalidateKeepsListVisible(t *testing.T) {
	api := &fakeAPI{chats: []model.Chat{{ID: 1}}}
	res := NewResources(api, New(Options{}))
	_, err := res.Chats(context.Background())
	require.NoError(t, err)

	api.err = errors.New("offline")
	runCmd(res.Invalidate(KindChats))

	chats, ok := res.PeekChats()
	require.True(t, ok)
	assert.Len(t, chats, 1)
}
