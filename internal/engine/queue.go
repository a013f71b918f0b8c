package engine

import (
	"context"
	"time"

	"github.com/sonora-audio/sonora/internal/playback"
)

// Advance computes the next queue position under the current repeat
// mode and dispatches play for the resulting track, per §4.4.1. It is
// called by the `next` command and by the heartbeat on natural end.
//
// Lock ordering: state before queue, matching every other producer of
// playback state that also reads the queue.
func (e *Engine) Advance(ctx context.Context) error {
	e.stateMu.Lock()
	repeat := e.state.Repeat
	e.stateMu.Unlock()

	e.queueMu.Lock()
	if len(e.queue.Items) == 0 {
		e.queueMu.Unlock()
		return nil
	}

	if repeat == playback.RepeatOne {
		id, ok := e.queue.CurrentID()
		e.queueMu.Unlock()
		if !ok {
			return nil
		}
		return e.dispatchPlay(ctx, id)
	}

	next := e.queue.Index + 1
	if next >= len(e.queue.Items) {
		if repeat == playback.RepeatAll {
			next = 0
		} else {
			e.queueMu.Unlock()
			e.pipe.Stop()
			e.stateMu.Lock()
			e.state = playback.DefaultState()
			e.state.Repeat = repeat
			e.writeState(ctx)
			e.stateMu.Unlock()
			return nil
		}
	}

	e.queue.Index = next
	e.writeQueue(ctx)
	id, ok := e.queue.CurrentID()
	e.queueMu.Unlock()
	if !ok {
		return nil
	}
	return e.dispatchPlay(ctx, id)
}

// Retreat moves the queue one position back, wrapping to the last item.
func (e *Engine) Retreat(ctx context.Context) error {
	e.queueMu.Lock()
	if len(e.queue.Items) == 0 {
		e.queueMu.Unlock()
		return nil
	}
	next := e.queue.Index - 1
	if next < 0 {
		next = len(e.queue.Items) - 1
	}
	e.queue.Index = next
	e.writeQueue(ctx)
	id, ok := e.queue.CurrentID()
	e.queueMu.Unlock()
	if !ok {
		return nil
	}
	return e.dispatchPlay(ctx, id)
}

// peekNextID computes, without mutating state, the media id that would
// become current after one Advance — used by the heartbeat's gapless
// pre-probe. It returns ok=false when no pre-probe should occur (queue
// empty, repeat=one, or at the end with repeat=off).
func (e *Engine) peekNextID() (id string, ok bool) {
	e.stateMu.Lock()
	repeat := e.state.Repeat
	e.stateMu.Unlock()

	e.queueMu.Lock()
	defer e.queueMu.Unlock()

	if len(e.queue.Items) == 0 || repeat == playback.RepeatOne {
		return "", false
	}

	next := e.queue.Index + 1
	if next >= len(e.queue.Items) {
		if repeat != playback.RepeatAll {
			return "", false
		}
		next = 0
	}

	idx := next
	if e.queue.Shuffle && len(e.queue.ShuffleOrder) == len(e.queue.Items) {
		if idx < 0 || idx >= len(e.queue.ShuffleOrder) {
			return "", false
		}
		idx = e.queue.ShuffleOrder[idx]
	}
	if idx < 0 || idx >= len(e.queue.Items) {
		return "", false
	}
	return e.queue.Items[idx], true
}

// generateShuffleOrder produces a permutation of [0,n) with current
// first, the remainder Fisher-Yates shuffled using a xorshift generator
// seeded from wall-clock nanoseconds. Adequate for user-facing shuffle,
// not cryptographic use.
func generateShuffleOrder(n, current int) []int {
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	if n <= 1 {
		return order
	}

	if current < 0 || current >= n {
		current = 0
	}
	order[0], order[current] = order[current], order[0]

	state := uint64(time.Now().UnixNano())
	if state == 0 {
		state = 0x9E3779B97F4A7C15
	}
	next := func() uint64 {
		state ^= state << 13
		state ^= state >> 7
		state ^= state << 17
		return state
	}

	for i := n - 1; i > 1; i-- {
		j := 1 + int(next()%uint64(i))
		order[i], order[j] = order[j], order[i]
	}
	return order
}
