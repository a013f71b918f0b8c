// Package engine ties the store, audio pipeline, command dispatcher,
// queue controller, and heartbeat into the headless playback engine.
// Every front-end (CLI, GUI-via-C-ABI, remote client) is expected to
// interact with an Engine only through the store's documents; the public
// methods here exist to let an in-process front end (this module's own
// CLI) and tests drive the same surface directly.
package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/sonora-audio/sonora/internal/clock"
	"github.com/sonora-audio/sonora/internal/config"
	"github.com/sonora-audio/sonora/internal/dsp"
	"github.com/sonora-audio/sonora/internal/importer"
	"github.com/sonora-audio/sonora/internal/pipeline"
	"github.com/sonora-audio/sonora/internal/playback"
	"github.com/sonora-audio/sonora/internal/search"
	"github.com/sonora-audio/sonora/internal/store"
)

// Engine is the concurrent state machine described by the component
// design: it owns the in-memory authoritative playback-state and queue
// documents, the audio pipeline, and the background threads that watch
// the store for commands and import requests and that drive the
// heartbeat.
type Engine struct {
	cfg   *config.Config
	st    store.Store
	pipe  *pipeline.Pipeline
	debug bool

	stateMu sync.Mutex
	state   playback.State

	queueMu sync.Mutex
	queue   playback.Queue

	clk      *clock.Clock
	search   *search.Engine
	importer *importer.Importer
	limiter  *rate.Limiter

	shuttingDown atomic.Bool
	wg           sync.WaitGroup
	cancel       context.CancelFunc
}

// New constructs an Engine against an already-open store. Callers own
// the store's lifetime; Engine.Shutdown does not close it.
func New(cfg *config.Config, st store.Store) *Engine {
	e := &Engine{
		cfg:     cfg,
		st:      st,
		debug:   cfg.Debug,
		pipe: pipeline.New(pipeline.Config{
			RingSeconds:     cfg.Audio.RingSeconds,
			DefaultChannels: cfg.Audio.Channels,
			Debug:           cfg.Debug,
		}),
		limiter: rate.NewLimiter(rate.Limit(cfg.Import.ScanRatePerSec), cfg.Import.ScanRatePerSec),
	}
	e.search = search.New(st, cfg.Search.FuzzyThreshold, cfg.Search.MaxResults)
	e.importer = importer.New(st, cfg.Import.MaxScanDepth, e.limiter)
	return e
}

func (e *Engine) logf(format string, args ...any) {
	if e.debug {
		log.Printf("[ENGINE] "+format, args...)
	}
}

// Start initializes default documents (if absent), loads clock config,
// and launches the command-watch, import-watch, eq-watch, and heartbeat
// threads.
func (e *Engine) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel

	if err := e.initDefaults(ctx); err != nil {
		return fmt.Errorf("engine: start: %w", err)
	}

	e.clk = clock.New(e.loadClockConfig(ctx))

	e.wg.Add(4)
	go e.commandWatchLoop(runCtx)
	go e.importWatchLoop(runCtx)
	go e.eqWatchLoop(runCtx)
	go e.heartbeatLoop(runCtx)

	e.logf("started")
	return nil
}

// Shutdown is idempotent: it sets the shutdown flag, stops the pipeline,
// writes sentinel records to the watched command/import/eq paths to wake
// any blocked watcher, then joins every thread.
func (e *Engine) Shutdown(ctx context.Context) error {
	if !e.shuttingDown.CompareAndSwap(false, true) {
		return nil
	}

	e.pipe.Stop()

	if e.cancel != nil {
		e.cancel()
	}

	sentinel := playback.ShutdownSentinelCommand()
	if _, err := e.st.Put(ctx, store.PlaybackCommand, sentinel); err != nil {
		e.logf("shutdown: sentinel write failed: %v", err)
	}
	if _, err := e.st.Put(ctx, store.ImportRequest, map[string]any{"shutdown": true}); err != nil {
		e.logf("shutdown: import sentinel write failed: %v", err)
	}
	if _, err := e.st.Put(ctx, store.PlaybackEQ, dsp.ChainSpec{}); err != nil {
		e.logf("shutdown: eq sentinel write failed: %v", err)
	}

	e.wg.Wait()
	e.logf("shutdown complete")
	return nil
}

func (e *Engine) initDefaults(ctx context.Context) error {
	if _, ok, err := e.st.Get(ctx, store.PlaybackState); err != nil {
		return err
	} else if !ok {
		state := playback.DefaultState()
		state.Volume = float64(e.cfg.Audio.DefaultVolume) / 100
		if _, err := e.st.Put(ctx, store.PlaybackState, state); err != nil {
			return err
		}
		e.state = state
	} else {
		e.state = e.readState(ctx)
	}

	if _, ok, err := e.st.Get(ctx, store.QueueCurrent); err != nil {
		return err
	} else if !ok {
		q := playback.DefaultQueue()
		if _, err := e.st.Put(ctx, store.QueueCurrent, q); err != nil {
			return err
		}
		e.queue = q
	} else {
		e.queue = e.readQueue(ctx)
	}

	settingsAudio := map[string]any{
		"sample_rate":      e.cfg.Audio.SampleRate,
		"ring_seconds":     e.cfg.Audio.RingSeconds,
		"resample_quality": e.cfg.Audio.ResampleQuality,
	}
	if _, err := e.st.Put(ctx, store.SettingsAudio, settingsAudio); err != nil {
		return err
	}
	settingsStorage := map[string]any{
		"root":       e.cfg.Store.Root,
		"wal_enabled": e.cfg.Store.EnableWAL,
	}
	if _, err := e.st.Put(ctx, store.SettingsStorage, settingsStorage); err != nil {
		return err
	}

	return nil
}

func (e *Engine) loadClockConfig(ctx context.Context) clock.Config {
	rec, ok, err := e.st.Get(ctx, store.ClockConfig)
	if err != nil || !ok {
		return clock.DefaultConfig()
	}
	var cfg struct {
		Partitions []clock.Partition `json:"partitions"`
		Pulses     []clock.Pulse     `json:"pulses"`
	}
	if err := json.Unmarshal(rec.Data, &cfg); err != nil {
		log.Printf("[CLOCK] invalid /clock/config document, using defaults: %v", err)
		return clock.DefaultConfig()
	}
	c := clock.Config{Partitions: cfg.Partitions, Pulses: cfg.Pulses}
	if !c.Valid() {
		log.Printf("[CLOCK] /clock/config failed validation, using defaults")
		return clock.DefaultConfig()
	}
	return c
}

func (e *Engine) readState(ctx context.Context) playback.State {
	rec, ok, err := e.st.Get(ctx, store.PlaybackState)
	if err != nil || !ok {
		return playback.DefaultState()
	}
	return playback.DecodeState(rec.Data)
}

func (e *Engine) readQueue(ctx context.Context) playback.Queue {
	rec, ok, err := e.st.Get(ctx, store.QueueCurrent)
	if err != nil || !ok {
		return playback.DefaultQueue()
	}
	return playback.DecodeQueue(rec.Data)
}

func (e *Engine) writeState(ctx context.Context) {
	if _, err := e.st.Put(ctx, store.PlaybackState, e.state); err != nil {
		e.logf("state mirror write failed: %v", err)
	}
}

func (e *Engine) writeQueue(ctx context.Context) {
	if _, err := e.st.Put(ctx, store.QueueCurrent, e.queue); err != nil {
		e.logf("queue mirror write failed: %v", err)
	}
}

// PlaybackState returns a snapshot of the in-memory authoritative
// playback state.
func (e *Engine) PlaybackState() playback.State {
	e.stateMu.Lock()
	defer e.stateMu.Unlock()
	return e.state
}

// QueueState returns a snapshot of the in-memory authoritative queue.
func (e *Engine) QueueState() playback.Queue {
	e.queueMu.Lock()
	defer e.queueMu.Unlock()
	return e.queue
}

// SetQueue replaces the queue with items starting at index, clearing any
// shuffle order.
func (e *Engine) SetQueue(ctx context.Context, items []string, index int) error {
	e.queueMu.Lock()
	e.queue = playback.Queue{Items: items, Index: index}
	e.writeQueue(ctx)
	e.queueMu.Unlock()
	return nil
}

// Favorites/SetFavorites round-trip the single /favorites document.
func (e *Engine) Favorites(ctx context.Context) ([]string, error) {
	rec, ok, err := e.st.Get(ctx, store.Favorites)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	var f struct {
		IDs []string `json:"ids"`
	}
	if err := json.Unmarshal(rec.Data, &f); err != nil {
		return nil, err
	}
	return f.IDs, nil
}

func (e *Engine) SetFavorites(ctx context.Context, ids []string) error {
	_, err := e.st.Put(ctx, store.Favorites, map[string]any{"ids": ids})
	return err
}

// ConfigureClock validates and stores a new clock configuration, taking
// effect on the next heartbeat tick.
func (e *Engine) ConfigureClock(ctx context.Context, cfg clock.Config) error {
	if !cfg.Valid() {
		return fmt.Errorf("engine: configure clock: invalid config")
	}
	if _, err := e.st.Put(ctx, store.ClockConfig, cfg); err != nil {
		return err
	}
	e.clk = clock.New(cfg)
	return nil
}

// ClockState returns the clock's most recently written snapshot.
func (e *Engine) ClockState(ctx context.Context) (clock.Snapshot, bool, error) {
	rec, ok, err := e.st.Get(ctx, store.ClockTick)
	if err != nil || !ok {
		return clock.Snapshot{}, ok, err
	}
	var snap clock.Snapshot
	if err := json.Unmarshal(rec.Data, &snap); err != nil {
		return clock.Snapshot{}, false, err
	}
	return snap, true, nil
}

// SetEQ validates and stores a DSP chain spec and applies it to the live
// pipeline immediately.
func (e *Engine) SetEQ(ctx context.Context, spec dsp.ChainSpec) error {
	chain, err := dsp.ChainFromSpec(spec, e.cfg.Audio.SampleRate)
	if err != nil {
		return err
	}
	if _, err := e.st.Put(ctx, store.PlaybackEQ, spec); err != nil {
		return err
	}
	e.pipe.SetEQ(chain)
	return nil
}

func nowEpochMs() int64 {
	return time.Now().UnixNano() / int64(time.Millisecond)
}
