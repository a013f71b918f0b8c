package engine

import (
	"context"
	"encoding/json"

	"github.com/sonora-audio/sonora/internal/dsp"
	"github.com/sonora-audio/sonora/internal/store"
)

// eqWatchLoop watches /playback/eq and rebuilds the pipeline's live DSP
// chain on every change, so a front end that writes the document directly
// takes effect without an in-process SetEQ call.
func (e *Engine) eqWatchLoop(ctx context.Context) {
	defer e.wg.Done()

	ch, cancel, err := e.st.Watch(ctx, store.PlaybackEQ)
	if err != nil {
		e.logf("eq watch failed to start: %v", err)
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
			e.handleEQRecord(rec)
		}
	}
}

func (e *Engine) handleEQRecord(rec store.Record) {
	defer func() {
		if r := recover(); r != nil {
			e.logf("eq: recovered from panic handling document: %v", r)
		}
	}()

	var spec dsp.ChainSpec
	if err := json.Unmarshal(rec.Data, &spec); err != nil {
		e.logf("eq: invalid /playback/eq document: %v", err)
		return
	}
	chain, err := dsp.ChainFromSpec(spec, e.cfg.Audio.SampleRate)
	if err != nil {
		e.logf("eq: %v", err)
		return
	}
	e.pipe.SetEQ(chain)
}
