package engine

import (
	"context"
	"encoding/json"
	"time"

	"github.com/sonora-audio/sonora/internal/enginerr"
	"github.com/sonora-audio/sonora/internal/store"
)

// heartbeatLoop runs the ~4Hz reconciliation loop: error check, natural
// end detection, progress sync, gapless pre-probe, and the structural
// clock tick, in that order, per §4.5.
func (e *Engine) heartbeatLoop(ctx context.Context) {
	defer e.wg.Done()

	interval := time.Duration(e.cfg.Heartbeat.IntervalMs) * time.Millisecond
	if interval <= 0 {
		interval = 250 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.heartbeatTick(ctx)
		}
	}
}

func (e *Engine) heartbeatTick(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			e.logf("heartbeat: recovered from panic: %v", r)
		}
	}()

	// 1. Error check.
	if e.pipe.IsError() {
		e.pipe.Stop()
		e.stateMu.Lock()
		e.state.Playing = false
		e.state.Error = enginerr.AudioDeviceOrDecodeError
		e.writeState(ctx)
		e.stateMu.Unlock()
		return
	}

	playing := e.pipe.IsPlaying()
	paused := e.pipe.IsPaused()
	finished := e.pipe.IsFinished()

	// 2. Natural end.
	if !playing && !paused && finished {
		e.stateMu.Lock()
		currentID := e.state.CurrentID
		positionMs := e.state.PositionMs
		e.stateMu.Unlock()

		if currentID != nil {
			e.recordPlay(ctx, *currentID, positionMs)
		}
		if err := e.Advance(ctx); err != nil {
			e.logf("heartbeat: advance failed: %v", err)
		}
	} else {
		// 3. Progress sync.
		if playing || paused {
			pos := e.pipe.PositionMs()
			dur := e.pipe.DurationMs()
			e.stateMu.Lock()
			e.state.PositionMs = pos
			if dur > 0 {
				e.state.DurationMs = dur
			}
			e.state.Playing = playing && !paused
			e.writeState(ctx)
			e.stateMu.Unlock()
		}

		// 4. Gapless pre-probe.
		e.stateMu.Lock()
		dur := e.state.DurationMs
		pos := e.state.PositionMs
		e.stateMu.Unlock()

		preProbeMs := int64(e.cfg.Heartbeat.PreProbeMs)
		if playing && !paused && dur > preProbeMs && pos > dur-preProbeMs {
			if nextID, ok := e.peekNextID(); ok {
				if rec, ok, err := e.st.Get(ctx, store.LibraryPath(nextID)); err == nil && ok {
					var item libraryItem
					if json.Unmarshal(rec.Data, &item) == nil && item.Path != "" {
						if err := e.pipe.PrepareNext(item.Path); err != nil {
							e.logf("heartbeat: prepare_next failed: %v", err)
						}
					}
				}
			}
		}
	}

	// 5. Clock tick.
	fired := e.clk.Tick()
	snap := e.clk.State(fired)
	if _, err := e.st.Put(ctx, store.ClockTick, snap); err != nil {
		e.logf("heartbeat: clock tick write failed: %v", err)
	}
	for _, name := range fired {
		pulse := map[string]any{"name": name, "tick": snap.Tick, "epoch": snap.Epoch}
		if _, err := e.st.Put(ctx, store.ClockPulsePath(name), pulse); err != nil {
			e.logf("heartbeat: clock pulse write failed: %v", err)
		}
	}
}

// recordPlay writes /history/<now> and read-modify-writes /stats/<id>,
// per §4.5.1.
func (e *Engine) recordPlay(ctx context.Context, mediaID string, durationPlayedMs int64) {
	now := nowEpochMs()

	history := map[string]any{
		"media_id":           mediaID,
		"played_at_ms":       now,
		"duration_played_ms": durationPlayedMs,
	}
	if _, err := e.st.Put(ctx, store.HistoryPath(now), history); err != nil {
		e.logf("recordPlay: history write failed: %v", err)
	}

	statsPath := store.StatsPath(mediaID)
	var stats struct {
		PlayCount     int64 `json:"play_count"`
		TotalPlayedMs int64 `json:"total_played_ms"`
		LastPlayedMs  int64 `json:"last_played_ms"`
	}
	if rec, ok, err := e.st.Get(ctx, statsPath); err == nil && ok {
		_ = json.Unmarshal(rec.Data, &stats)
	}
	stats.PlayCount++
	stats.TotalPlayedMs += durationPlayedMs
	stats.LastPlayedMs = now

	if _, err := e.st.Put(ctx, statsPath, stats); err != nil {
		e.logf("recordPlay: stats write failed: %v", err)
	}
}
