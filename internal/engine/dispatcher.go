package engine

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sonora-audio/sonora/internal/enginerr"
	"github.com/sonora-audio/sonora/internal/playback"
	"github.com/sonora-audio/sonora/internal/store"
)

// commandWatchLoop watches /playback/command and dispatches every
// non-sentinel, valid command it observes.
func (e *Engine) commandWatchLoop(ctx context.Context) {
	defer e.wg.Done()

	ch, cancel, err := e.st.Watch(ctx, store.PlaybackCommand)
	if err != nil {
		e.logf("command watch failed to start: %v", err)
		return
	}
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return
		case rec, ok := <-ch:
			if !ok {
				return
			}
			if rec.IsShutdownSentinel() {
				return
			}
			e.handleCommandRecord(context.Background(), rec)
		}
	}
}

func (e *Engine) handleCommandRecord(ctx context.Context, rec store.Record) {
	defer func() {
		if r := recover(); r != nil {
			e.logf("dispatcher: recovered from panic handling command: %v", r)
		}
	}()

	cmd, err := playback.ParseCommand(rec.Data)
	if err != nil || cmd.IsShutdownSentinel() {
		return
	}
	if !cmd.Valid() {
		e.logf("dispatcher: %v: %q", enginerr.ErrBadCommand, cmd.Action)
		return
	}
	if err := e.HandleCommand(ctx, cmd); err != nil {
		e.logf("dispatcher: command %q failed: %v", cmd.Action, err)
	}
}

// HandleCommand executes one playback command, per §4.3's dispatch
// semantics.
func (e *Engine) HandleCommand(ctx context.Context, cmd playback.Command) error {
	switch cmd.Action {
	case playback.ActionPlay:
		return e.dispatchPlay(ctx, cmd.ID)
	case playback.ActionPause:
		e.pipe.Pause()
		e.stateMu.Lock()
		e.state.Playing = false
		e.writeState(ctx)
		e.stateMu.Unlock()
		return nil
	case playback.ActionResume:
		e.pipe.Resume()
		e.stateMu.Lock()
		e.state.Playing = true
		e.writeState(ctx)
		e.stateMu.Unlock()
		return nil
	case playback.ActionStop:
		e.pipe.Stop()
		e.stateMu.Lock()
		e.state = playback.DefaultState()
		e.writeState(ctx)
		e.stateMu.Unlock()
		return nil
	case playback.ActionSeek:
		e.pipe.Seek(cmd.PositionMs)
		e.stateMu.Lock()
		e.state.PositionMs = cmd.PositionMs
		e.writeState(ctx)
		e.stateMu.Unlock()
		return nil
	case playback.ActionSetVolume:
		v := cmd.Volume
		if v < 0 {
			v = 0
		}
		if v > 1 {
			v = 1
		}
		e.pipe.SetVolume(int64(v * 100))
		e.stateMu.Lock()
		e.state.Volume = v
		e.writeState(ctx)
		e.stateMu.Unlock()
		return nil
	case playback.ActionNext:
		return e.Advance(ctx)
	case playback.ActionPrevious:
		return e.Previous(ctx)
	case playback.ActionSetShuffle:
		return e.setShuffle(ctx, cmd.Enabled)
	case playback.ActionSetRepeat:
		e.stateMu.Lock()
		e.state.Repeat = playback.ParseRepeatMode(cmd.Mode)
		e.writeState(ctx)
		e.stateMu.Unlock()
		return nil
	default:
		return fmt.Errorf("%w: %q", enginerr.ErrBadCommand, cmd.Action)
	}
}

// dispatchPlay looks up /library/<id>; on a missing entry it silently
// no-ops, per the NotFound policy for play{id}.
func (e *Engine) dispatchPlay(ctx context.Context, id string) error {
	rec, ok, err := e.st.Get(ctx, store.LibraryPath(id))
	if err != nil {
		return fmt.Errorf("%w: %w", enginerr.ErrStoreIO, err)
	}
	if !ok {
		return nil
	}

	var item libraryItem
	if err := decodeJSON(rec.Data, &item); err != nil || item.Path == "" {
		return nil
	}

	e.stateMu.Lock()
	volume := e.state.Volume
	shuffle := e.state.Shuffle
	repeat := e.state.Repeat
	e.stateMu.Unlock()

	if err := e.pipe.Play(item.Path); err != nil {
		e.stateMu.Lock()
		e.state.Error = enginerr.AudioDeviceOrDecodeError
		e.writeState(ctx)
		e.stateMu.Unlock()
		return err
	}

	e.stateMu.Lock()
	e.state = playback.State{
		Playing:    true,
		CurrentID:  &id,
		Title:      item.Title,
		Artist:     item.Artist,
		Album:      item.Album,
		PositionMs: 0,
		DurationMs: item.DurationMs,
		Volume:     volume,
		Shuffle:    shuffle,
		Repeat:     repeat,
	}
	e.writeState(ctx)
	e.stateMu.Unlock()

	return nil
}

// Previous implements the `previous` command's dispatcher-level
// heuristic: restart the current track if more than the configured
// threshold has elapsed, otherwise retreat the queue.
func (e *Engine) Previous(ctx context.Context) error {
	e.stateMu.Lock()
	pos := e.state.PositionMs
	e.stateMu.Unlock()

	threshold := int64(e.cfg.Heartbeat.PreviousResetMs)
	if pos > threshold {
		e.pipe.Seek(0)
		e.stateMu.Lock()
		e.state.PositionMs = 0
		e.writeState(ctx)
		e.stateMu.Unlock()
		return nil
	}
	return e.Retreat(ctx)
}

func (e *Engine) setShuffle(ctx context.Context, enabled bool) error {
	e.stateMu.Lock()
	e.state.Shuffle = enabled
	e.stateMu.Unlock()

	e.queueMu.Lock()
	defer e.queueMu.Unlock()

	if enabled {
		current := e.queue.Index
		if e.queue.Shuffle && len(e.queue.ShuffleOrder) == len(e.queue.Items) && e.queue.Index < len(e.queue.ShuffleOrder) {
			current = e.queue.ShuffleOrder[e.queue.Index]
		}
		e.queue.Shuffle = true
		e.queue.ShuffleOrder = generateShuffleOrder(len(e.queue.Items), current)
		e.queue.Index = 0
	} else {
		if len(e.queue.ShuffleOrder) == len(e.queue.Items) && e.queue.Index < len(e.queue.ShuffleOrder) {
			e.queue.Index = e.queue.ShuffleOrder[e.queue.Index]
		}
		e.queue.Shuffle = false
		e.queue.ShuffleOrder = nil
	}
	e.writeQueue(ctx)

	e.stateMu.Lock()
	e.writeState(ctx)
	e.stateMu.Unlock()

	return nil
}

type libraryItem struct {
	ID         string `json:"id"`
	Path       string `json:"path"`
	Title      string `json:"title"`
	Artist     string `json:"artist"`
	Album      string `json:"album"`
	DurationMs int64  `json:"duration_ms"`
}

func decodeJSON(raw []byte, v any) error {
	if len(raw) == 0 {
		return fmt.Errorf("empty document")
	}
	return json.Unmarshal(raw, v)
}
