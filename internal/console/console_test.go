package console

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glasskit/glassbox/internal/track"
)

func testEnvelope(requestID string) track.Envelope {
	return track.Envelope{
		RequestID: requestID,
		RequestInfo: track.RequestInfo{
			RequestID:   requestID,
			Method:      "GET",
			URL:         "/tasks",
			Status:      200,
			Controller:  "tasks.index",
			ContentType: "text/html",
			Headers:     map[string]string{"Accept": "text/html", "User-Agent": "test"},
		},
		MethodCalls: []track.CallRecord{
			{Name: "tasks.index", DurationMs: 4.0, Sequence: 0},
			{Name: "Task.get_all", DurationMs: 12.5, Sequence: 1},
			{Name: "helpers.format", DurationMs: 0.2, Sequence: 2},
		},
		DBQueries: []track.QueryRecord{
			{Text: "SELECT * FROM tasks", DurationMs: 8.0, Sequence: 0},
			{Text: "SELECT name FROM users WHERE id = ?", DurationMs: 1.0, Sequence: 1},
			{Text: "SELECT name FROM users WHERE id = ?", DurationMs: 60.0, Sequence: 2},
		},
		ViewData: map[string]any{
			"tasks": []any{map[string]any{"title": "write docs"}},
			"count": float64(1),
		},
		Timing: track.Timing{StartEpoch: 100.0, EndEpoch: 100.1},
	}
}

func testOptions() Options {
	return Options{
		SlowCall:        10 * time.Millisecond,
		SlowQuery:       50 * time.Millisecond,
		HistoryCapacity: 20,
	}
}

func TestClassifyCall(t *testing.T) {
	tests := []struct {
		name string
		want CallBucket
	}{
		{"User.validate", BucketModel},
		{"Task.get_all", BucketModel},
		{"tasks.index", BucketController},
		{"users.create", BucketController},
		{"helpers.format", BucketOther},
		{"lowercase.name", BucketOther},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyCall(tt.name))
		})
	}
}

func TestBuildCallViewFilters(t *testing.T) {
	calls := testEnvelope("r1").MethodCalls
	slow := 10 * time.Millisecond

	t.Run("no filter keeps order", func(t *testing.T) {
		view := BuildCallView(calls, CallFilter{}, slow)
		require.Len(t, view.Entries, 3)
		assert.Equal(t, 3, view.Total)
		assert.Equal(t, "tasks.index", view.Entries[0].Name)
		assert.Equal(t, BucketController, view.Entries[0].Bucket)
	})

	t.Run("bucket filter", func(t *testing.T) {
		view := BuildCallView(calls, CallFilter{Bucket: BucketModel}, slow)
		require.Len(t, view.Entries, 1)
		assert.Equal(t, "Task.get_all", view.Entries[0].Name)
	})

	t.Run("text filter is case insensitive", func(t *testing.T) {
		view := BuildCallView(calls, CallFilter{Text: "TASK"}, slow)
		assert.Len(t, view.Entries, 2)
	})

	t.Run("slow only", func(t *testing.T) {
		view := BuildCallView(calls, CallFilter{SlowOnly: true}, slow)
		require.Len(t, view.Entries, 1)
		assert.Equal(t, "Task.get_all", view.Entries[0].Name)
		assert.True(t, view.Entries[0].Slow)
	})

	t.Run("criteria combine", func(t *testing.T) {
		view := BuildCallView(calls, CallFilter{Text: "task", SlowOnly: true, Bucket: BucketController}, slow)
		assert.Empty(t, view.Entries)
	})
}

func TestBuildQueryViewDuplicates(t *testing.T) {
	queries := testEnvelope("r1").DBQueries
	view := BuildQueryView(queries, QueryFilter{}, 50*time.Millisecond)
	require.Len(t, view.Entries, 3)

	assert.Equal(t, 1, view.Entries[0].Occurrences)
	assert.Equal(t, 2, view.Entries[1].Occurrences)
	assert.Equal(t, 2, view.Entries[2].Occurrences)
	assert.False(t, view.Entries[1].Slow)
	assert.True(t, view.Entries[2].Slow)
}

func TestBuildQueryViewCountsBeforeFiltering(t *testing.T) {
	queries := testEnvelope("r1").DBQueries
	view := BuildQueryView(queries, QueryFilter{SlowOnly: true}, 50*time.Millisecond)
	require.Len(t, view.Entries, 1)
	assert.Equal(t, 2, view.Entries[0].Occurrences)
}

func TestBuildNetworkView(t *testing.T) {
	env := testEnvelope("r1")
	view := BuildNetworkView(&env)

	assert.True(t, view.HasData)
	assert.Equal(t, "GET", view.Method)
	assert.Equal(t, "success", view.StatusClass)
	assert.Equal(t, "tasks.index", view.Controller)
	assert.InDelta(t, 100.0, view.DurationMs, 0.001)
	require.Len(t, view.Headers, 2)
	assert.Equal(t, "Accept", view.Headers[0].Name)
	assert.Equal(t, "User-Agent", view.Headers[1].Name)
}

func TestBuildNetworkViewMissingEnvelope(t *testing.T) {
	view := BuildNetworkView(nil)
	assert.False(t, view.HasData)
}

func TestStatusClass(t *testing.T) {
	assert.Equal(t, "success", statusClass(200))
	assert.Equal(t, "redirect", statusClass(302))
	assert.Equal(t, "client-error", statusClass(404))
	assert.Equal(t, "server-error", statusClass(500))
}

func TestDerivePhases(t *testing.T) {
	env := testEnvelope("r1")
	phases := DerivePhases(&env)
	require.Len(t, phases, 4)

	assert.Equal(t, "controller", phases[0].Name)
	assert.InDelta(t, 4.0, phases[0].DurationMs, 0.001)
	assert.Equal(t, "model", phases[1].Name)
	assert.InDelta(t, 12.5, phases[1].DurationMs, 0.001)
	assert.Equal(t, "database", phases[2].Name)
	assert.InDelta(t, 69.0, phases[2].DurationMs, 0.001)
	assert.Equal(t, "render", phases[3].Name)
	assert.InDelta(t, 100.0-4.0-12.5-69.0, phases[3].DurationMs, 0.001)
}

func TestDerivePhasesRenderNeverNegative(t *testing.T) {
	env := track.Envelope{
		MethodCalls: []track.CallRecord{{Name: "Task.get_all", DurationMs: 500}},
		Timing:      track.Timing{StartEpoch: 0, EndEpoch: 0.1},
	}
	phases := DerivePhases(&env)
	assert.GreaterOrEqual(t, phases[3].DurationMs, 0.0)
}

func TestHistoryCapacityEvictsOldest(t *testing.T) {
	h := NewHistory(20, NewMemoryStorage())
	for i := 0; i < 25; i++ {
		h.Push(testEnvelope(fmt.Sprintf("req-%d", i)))
	}

	assert.Equal(t, 20, h.Len())
	entries := h.Entries()
	assert.Equal(t, "req-24", entries[0].Envelope.RequestID)
	assert.Equal(t, "req-5", entries[19].Envelope.RequestID)
	_, ok := h.Get("req-0")
	assert.False(t, ok)
}

func TestHistoryPushDedupesByRequestID(t *testing.T) {
	h := NewHistory(20, NewMemoryStorage())
	assert.True(t, h.Push(testEnvelope("r1")))
	assert.False(t, h.Push(testEnvelope("r1")))
	assert.Equal(t, 1, h.Len())
}

func TestHistoryRestoresFromStorage(t *testing.T) {
	storage := NewMemoryStorage()
	h := NewHistory(20, storage)
	h.Push(testEnvelope("r1"))
	h.Push(testEnvelope("r2"))

	restored := NewHistory(20, storage)
	assert.Equal(t, 2, restored.Len())
	assert.Equal(t, "r2", restored.Entries()[0].Envelope.RequestID)
}

func TestHistorySkipsMalformedPersistedEntries(t *testing.T) {
	storage := NewMemoryStorage()
	good, err := json.Marshal(HistoryEntry{Envelope: testEnvelope("r1")})
	require.NoError(t, err)
	raw, err := json.Marshal([]json.RawMessage{json.RawMessage(`"garbage"`), good, json.RawMessage(`{}`)})
	require.NoError(t, err)
	require.NoError(t, storage.Set(storageKeyHistory, string(raw)))

	h := NewHistory(20, storage)
	assert.Equal(t, 1, h.Len())
	assert.Equal(t, "r1", h.Entries()[0].Envelope.RequestID)
}

type failingStorage struct{ *MemoryStorage }

func (failingStorage) Set(string, string) error { return errors.New("disk full") }

func TestHistorySurvivesStorageFailure(t *testing.T) {
	h := NewHistory(20, failingStorage{NewMemoryStorage()})
	h.Push(testEnvelope("r1"))
	h.Push(testEnvelope("r2"))
	assert.Equal(t, 2, h.Len())
}

func TestStateTreeToggleAndFilter(t *testing.T) {
	tree := NewStateTree(map[string]any{
		"user": map[string]any{"name": "alice", "email": "a@example.com"},
		"tags": []any{"one", "two"},
	})
	require.False(t, tree.Empty())

	t.Run("children start collapsed", func(t *testing.T) {
		root := tree.View().Root
		assert.True(t, root.Expanded)
		for _, child := range root.Children {
			assert.False(t, child.Expanded)
		}
	})

	t.Run("toggle flips a single node", func(t *testing.T) {
		assert.True(t, tree.Toggle("root.user"))
		assert.False(t, tree.Toggle("root.user"))
	})

	t.Run("filter opens ancestors of matches", func(t *testing.T) {
		tree.SetFilter("email")
		var userNode *StateNode
		for _, child := range tree.View().Root.Children {
			if child.Key == "user" {
				userNode = child
			}
		}
		require.NotNil(t, userNode)
		assert.True(t, userNode.Expanded)
	})
}

func TestStateTreeViewIsDetached(t *testing.T) {
	tree := NewStateTree(map[string]any{
		"user": map[string]any{"name": "alice"},
	})
	before := tree.View()
	tree.Toggle("root.user")

	for _, child := range before.Root.Children {
		assert.False(t, child.Expanded, "snapshot is unaffected by later toggles")
	}
	for _, child := range tree.View().Root.Children {
		assert.True(t, child.Expanded)
	}
}

func TestStateTreeConcurrentToggleAndRender(t *testing.T) {
	tree := NewStateTree(map[string]any{
		"user": map[string]any{"name": "alice", "email": "a@example.com"},
		"tags": []any{"one", "two"},
	})

	var wg sync.WaitGroup
	start := make(chan struct{})
	wg.Add(3)
	go func() {
		defer wg.Done()
		<-start
		for i := 0; i < 200; i++ {
			tree.Toggle("root.user")
		}
	}()
	go func() {
		defer wg.Done()
		<-start
		for i := 0; i < 200; i++ {
			tree.SetFilter("name")
			tree.SetFilter("")
		}
	}()
	go func() {
		defer wg.Done()
		<-start
		for i := 0; i < 200; i++ {
			view := tree.View()
			for _, child := range view.Root.Children {
				_ = child.Expanded
				_ = child.Matched
			}
		}
	}()
	close(start)
	wg.Wait()
}

func TestStateTreeExportEmpty(t *testing.T) {
	tree := NewStateTree(nil)
	assert.True(t, tree.Empty())
	assert.Equal(t, "no data\n", tree.Export())
}

func TestConsoleIngestAndHistory(t *testing.T) {
	c := New(testOptions(), NewMemoryStorage())
	require.Nil(t, c.Active())

	c.Ingest(testEnvelope("r1"))
	c.Ingest(testEnvelope("r2"))
	require.NotNil(t, c.Active())
	assert.Equal(t, "r2", c.Active().RequestID)
	assert.Equal(t, 2, len(c.History()))

	t.Run("re-delivery of the same request is a no-op", func(t *testing.T) {
		c.Ingest(testEnvelope("r2"))
		assert.Equal(t, 2, len(c.History()))
	})

	t.Run("selecting history switches the view", func(t *testing.T) {
		c.SelectHistory("r1")
		assert.True(t, c.ViewingHistory())
		assert.Equal(t, "r1", c.Active().RequestID)
	})

	t.Run("a new request returns to the live view", func(t *testing.T) {
		c.Ingest(testEnvelope("r3"))
		assert.False(t, c.ViewingHistory())
		assert.Equal(t, "r3", c.Active().RequestID)
	})

	t.Run("unknown history id is ignored", func(t *testing.T) {
		c.SelectHistory("nope")
		assert.False(t, c.ViewingHistory())
	})

	t.Run("clearing history keeps the live view", func(t *testing.T) {
		c.ClearHistory()
		assert.Equal(t, 0, len(c.History()))
		assert.Equal(t, "r3", c.Active().RequestID)
	})
}

func TestConsoleChromePersists(t *testing.T) {
	storage := NewMemoryStorage()
	c := New(testOptions(), storage)
	assert.False(t, c.Open())
	assert.Equal(t, TabState, c.Tab())

	c.Toggle()
	c.SetTab(TabQueries)
	c.Resize(800, 500)

	restored := New(testOptions(), storage)
	assert.True(t, restored.Open())
	assert.Equal(t, TabQueries, restored.Tab())
	assert.Equal(t, Dims{Width: 800, Height: 500}, restored.Dims())
}

func TestConsoleRejectsBadDims(t *testing.T) {
	c := New(testOptions(), NewMemoryStorage())
	c.Resize(0, 100)
	c.Resize(100, -1)
	assert.Equal(t, defaultDims, c.Dims())
}

func TestConsoleTreeSurvivesTabSwitch(t *testing.T) {
	c := New(testOptions(), NewMemoryStorage())
	c.Ingest(testEnvelope("r1"))

	tree := c.StateTree()
	require.True(t, tree.Toggle("root.tasks"))

	c.SetTab(TabQueries)
	c.SetTab(TabState)

	again := c.StateTree()
	assert.Same(t, tree, again)
	for _, child := range again.View().Root.Children {
		if child.Key == "tasks" {
			assert.True(t, child.Expanded)
		}
	}
}

func TestConsolePrunesCachesWithHistory(t *testing.T) {
	opts := testOptions()
	c := New(opts, NewMemoryStorage())

	for i := 0; i < opts.HistoryCapacity+10; i++ {
		c.Ingest(testEnvelope(fmt.Sprintf("req-%d", i)))
		c.StateTree()
	}

	c.mu.Lock()
	cached := len(c.trees)
	c.mu.Unlock()
	assert.LessOrEqual(t, cached, opts.HistoryCapacity,
		"evicted requests drop their cached trees")

	t.Run("clear keeps only the live request", func(t *testing.T) {
		c.ClearHistory()
		c.mu.Lock()
		trees, animators := len(c.trees), len(c.animators)
		c.mu.Unlock()
		assert.LessOrEqual(t, trees, 1)
		assert.LessOrEqual(t, animators, 1)
	})
}

func TestConsoleInspectorsWithoutData(t *testing.T) {
	c := New(testOptions(), NewMemoryStorage())
	assert.Empty(t, c.Calls().Entries)
	assert.Empty(t, c.Queries().Entries)
	assert.False(t, c.Network().HasData)
	assert.Nil(t, c.Animator())
	assert.True(t, c.StateTree().Empty())
}

func TestConsoleFiltersApply(t *testing.T) {
	c := New(testOptions(), NewMemoryStorage())
	c.Ingest(testEnvelope("r1"))

	c.SetCallFilter(CallFilter{Bucket: BucketModel})
	require.Len(t, c.Calls().Entries, 1)
	assert.Equal(t, "Task.get_all", c.Calls().Entries[0].Name)

	c.SetQueryFilter(QueryFilter{Text: "users"})
	assert.Len(t, c.Queries().Entries, 2)
}

func TestAnimatorPlaysThroughPhases(t *testing.T) {
	env := testEnvelope("r1")
	a := NewAnimator(&env)
	defer a.Stop()

	a.SetSpeed(8)
	a.Play()

	var frames []Frame
	timeout := time.After(5 * time.Second)
	for len(frames) < 4 {
		select {
		case frame := <-a.Frames():
			frames = append(frames, frame)
		case <-timeout:
			t.Fatal("timed out waiting for frames")
		}
	}

	assert.Equal(t, 0, frames[0].Step)
	assert.Equal(t, "controller", frames[0].Phase.Name)
	assert.True(t, frames[3].Done)
	assert.InDelta(t, 1.0, frames[3].Progress, 0.001)
}

func TestAnimatorStopClosesFrames(t *testing.T) {
	env := testEnvelope("r1")
	a := NewAnimator(&env)
	a.SetSpeed(8)
	a.Play()

	select {
	case <-a.Frames():
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for a frame")
	}

	a.Stop()
	a.Stop()

	select {
	case _, ok := <-a.Frames():
		if ok {
			// drain any buffered frame, the channel must close soon after
			for range a.Frames() {
			}
		}
	case <-time.After(5 * time.Second):
		t.Fatal("frames channel never closed")
	}
}

func TestAnimatorPauseStopsFrames(t *testing.T) {
	env := testEnvelope("r1")
	a := NewAnimator(&env)
	defer a.Stop()

	a.SetSpeed(8)
	a.Play()
	select {
	case <-a.Frames():
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for a frame")
	}

	a.Pause()
	// drain anything emitted before the pause landed
	deadline := time.After(300 * time.Millisecond)
drain:
	for {
		select {
		case <-a.Frames():
		case <-deadline:
			break drain
		}
	}

	select {
	case frame := <-a.Frames():
		t.Fatalf("frame %d emitted while paused", frame.Step)
	case <-time.After(300 * time.Millisecond):
	}
}
