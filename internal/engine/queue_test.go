package engine

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/sonora-audio/sonora/internal/config"
	"github.com/sonora-audio/sonora/internal/playback"
	"github.com/sonora-audio/sonora/internal/store"
)

func newTestEngine(t *testing.T) (*Engine, context.Context) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"), false, false)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	cfg := &config.Config{}
	cfg.Audio.SampleRate = 44100
	cfg.Audio.Channels = 2
	cfg.Audio.RingSeconds = 1
	cfg.Audio.DefaultVolume = 70
	cfg.Heartbeat.IntervalMs = 250
	cfg.Heartbeat.PreProbeMs = 3000
	cfg.Heartbeat.PreviousResetMs = 3000
	cfg.Import.MaxScanDepth = 8
	cfg.Import.ScanRatePerSec = 200

	e := New(cfg, st)
	ctx := context.Background()
	if err := e.initDefaults(ctx); err != nil {
		t.Fatalf("init defaults: %v", err)
	}
	return e, ctx
}

func seedLibraryItem(t *testing.T, e *Engine, ctx context.Context, id string) {
	t.Helper()
	if err := e.AddLibraryItem(ctx, id, map[string]any{
		"path":  "/nonexistent/" + id + ".mp3",
		"title": id,
	}); err != nil {
		t.Fatalf("seed library item %s: %v", id, err)
	}
}

func setQueue(e *Engine, items []string, index int) {
	e.queueMu.Lock()
	e.queue = playback.Queue{Items: items, Index: index}
	e.queueMu.Unlock()
}

func setRepeat(e *Engine, mode playback.RepeatMode) {
	e.stateMu.Lock()
	e.state.Repeat = mode
	e.stateMu.Unlock()
}

// dispatchPlay fails for these ids since their paths don't exist on disk;
// that's fine — Advance/Retreat commit the queue move before dispatching,
// so the move itself is observable regardless of the play outcome.

func TestAdvanceMovesToNextItem(t *testing.T) {
	e, ctx := newTestEngine(t)
	for _, id := range []string{"a", "b", "c"} {
		seedLibraryItem(t, e, ctx, id)
	}
	setQueue(e, []string{"a", "b", "c"}, 0)

	_ = e.Advance(ctx)

	if q := e.QueueState(); q.Index != 1 {
		t.Fatalf("expected index 1, got %d", q.Index)
	}
}

func TestAdvanceAtEndWithRepeatOffStops(t *testing.T) {
	e, ctx := newTestEngine(t)
	for _, id := range []string{"a", "b"} {
		seedLibraryItem(t, e, ctx, id)
	}
	setQueue(e, []string{"a", "b"}, 1)
	setRepeat(e, playback.RepeatOff)

	_ = e.Advance(ctx)

	if q := e.QueueState(); q.Index != 1 {
		t.Fatalf("expected index to remain 1 at end with repeat off, got %d", q.Index)
	}
	if st := e.PlaybackState(); st.Playing {
		t.Fatal("expected playback to stop at end of queue with repeat off")
	}
}

func TestAdvanceAtEndWithRepeatAllWraps(t *testing.T) {
	e, ctx := newTestEngine(t)
	for _, id := range []string{"a", "b"} {
		seedLibraryItem(t, e, ctx, id)
	}
	setQueue(e, []string{"a", "b"}, 1)
	setRepeat(e, playback.RepeatAll)

	_ = e.Advance(ctx)

	if q := e.QueueState(); q.Index != 0 {
		t.Fatalf("expected wrap to index 0, got %d", q.Index)
	}
}

func TestAdvanceWithRepeatOneReplaysCurrent(t *testing.T) {
	e, ctx := newTestEngine(t)
	for _, id := range []string{"a", "b"} {
		seedLibraryItem(t, e, ctx, id)
	}
	setQueue(e, []string{"a", "b"}, 0)
	setRepeat(e, playback.RepeatOne)

	_ = e.Advance(ctx)

	if q := e.QueueState(); q.Index != 0 {
		t.Fatalf("expected index to remain 0 under repeat-one, got %d", q.Index)
	}
}

func TestRetreatWrapsToLastItem(t *testing.T) {
	e, ctx := newTestEngine(t)
	for _, id := range []string{"a", "b", "c"} {
		seedLibraryItem(t, e, ctx, id)
	}
	setQueue(e, []string{"a", "b", "c"}, 0)

	_ = e.Retreat(ctx)

	if q := e.QueueState(); q.Index != 2 {
		t.Fatalf("expected wrap to last index 2, got %d", q.Index)
	}
}

func TestGenerateShuffleOrderIsPermutationWithCurrentFirst(t *testing.T) {
	const n = 8
	for current := 0; current < n; current++ {
		order := generateShuffleOrder(n, current)
		if len(order) != n {
			t.Fatalf("expected length %d, got %d", n, len(order))
		}
		if order[0] != current {
			t.Fatalf("expected current index %d first, got %d", current, order[0])
		}
		seen := make(map[int]bool, n)
		for _, v := range order {
			if v < 0 || v >= n {
				t.Fatalf("value %d out of range [0,%d)", v, n)
			}
			if seen[v] {
				t.Fatalf("duplicate value %d in shuffle order", v)
			}
			seen[v] = true
		}
	}
}
