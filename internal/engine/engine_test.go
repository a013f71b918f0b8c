package engine

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/sonora-audio/sonora/internal/config"
	"github.com/sonora-audio/sonora/internal/store"
)

func TestRecordPlayAccumulatesStats(t *testing.T) {
	e, ctx := newTestEngine(t)

	e.recordPlay(ctx, "track-1", 180000)
	e.recordPlay(ctx, "track-1", 180000)

	stats, ok, err := e.Stats(ctx, "track-1")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if !ok {
		t.Fatal("expected stats to exist after recordPlay")
	}
	if stats.PlayCount != 2 {
		t.Fatalf("expected play_count=2, got %d", stats.PlayCount)
	}
	if stats.TotalPlayedMs != 360000 {
		t.Fatalf("expected total_played_ms=360000, got %d", stats.TotalPlayedMs)
	}
}

func newShutdownTestEngine(t *testing.T) *Engine {
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
	cfg.Heartbeat.IntervalMs = 20
	cfg.Heartbeat.PreProbeMs = 3000
	cfg.Heartbeat.PreviousResetMs = 3000
	cfg.Import.MaxScanDepth = 8
	cfg.Import.ScanRatePerSec = 200

	return New(cfg, st)
}

func TestShutdownIsIdempotent(t *testing.T) {
	e := newShutdownTestEngine(t)
	ctx := context.Background()

	if err := e.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}

	if err := e.Shutdown(ctx); err != nil {
		t.Fatalf("first shutdown: %v", err)
	}
	if err := e.Shutdown(ctx); err != nil {
		t.Fatalf("second shutdown: %v", err)
	}
}
