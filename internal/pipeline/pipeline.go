// Package pipeline implements the audio pipeline: the decoder thread,
// the real-time output callback, and the atomic flags that coordinate
// them, per the engine's play/pause/resume/stop/seek/prepare_next
// capability set.
package pipeline

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"

	"github.com/sonora-audio/sonora/internal/dsp"
	"github.com/sonora-audio/sonora/internal/enginerr"
	"github.com/sonora-audio/sonora/internal/ring"
)

// Config holds the pipeline's fixed construction-time settings.
type Config struct {
	RingSeconds     float64
	DefaultChannels int
	Debug           bool
}

// Pipeline is the decoder+output engine for exactly one track at a time.
// All state atoms use sequentially consistent visibility via sync/atomic;
// the ring buffer and next-probe cache each have their own small mutex.
type Pipeline struct {
	cfg Config

	playing  atomic.Bool
	paused   atomic.Bool
	volume   atomic.Int64 // 0-100
	position atomic.Int64 // ms
	duration atomic.Int64 // ms
	rate     atomic.Int64 // decoder sample rate
	channels atomic.Int64 // decoder channel count
	outChans atomic.Int64 // device/output channel count
	stopSig  atomic.Bool
	seekToMs atomic.Int64
	finished atomic.Bool
	errored  atomic.Bool

	// negotiatedRate is set once by the output thread after device
	// negotiation so the decoder thread knows whether to resample.
	negotiatedRate atomic.Int64

	ring *ring.Ring

	probeMu sync.Mutex
	probe   *probeResult

	eqMu    sync.Mutex
	eqChain *dsp.Chain

	lifecycleMu sync.Mutex // serializes play()/stop() transitions
	wg          sync.WaitGroup
	cancel      context.CancelFunc
}

type probeResult struct {
	path     string
	rate     int
	channels int
}

// New constructs an idle pipeline with default volume 100.
func New(cfg Config) *Pipeline {
	if cfg.DefaultChannels <= 0 {
		cfg.DefaultChannels = 2
	}
	p := &Pipeline{cfg: cfg}
	p.volume.Store(100)
	p.eqChain = &dsp.Chain{}
	return p
}

func (p *Pipeline) logf(format string, args ...any) {
	if p.cfg.Debug {
		log.Printf("[AUDIO] "+format, args...)
	}
}

// IsPlaying, IsPaused, IsFinished, IsError are the pipeline's read-only
// capability surface used by the dispatcher and heartbeat.
func (p *Pipeline) IsPlaying() bool  { return p.playing.Load() }
func (p *Pipeline) IsPaused() bool   { return p.paused.Load() }
func (p *Pipeline) IsFinished() bool { return p.finished.Load() }
func (p *Pipeline) IsError() bool    { return p.errored.Load() }
func (p *Pipeline) PositionMs() int64 { return p.position.Load() }
func (p *Pipeline) DurationMs() int64 { return p.duration.Load() }

// SetVolume clamps v to [0,100] and applies it immediately.
func (p *Pipeline) SetVolume(v int64) {
	if v < 0 {
		v = 0
	}
	if v > 100 {
		v = 100
	}
	p.volume.Store(v)
}

// SetEQ replaces the active DSP chain; an empty chain is identity.
func (p *Pipeline) SetEQ(chain *dsp.Chain) {
	p.eqMu.Lock()
	defer p.eqMu.Unlock()
	if chain == nil {
		chain = &dsp.Chain{}
	}
	p.eqChain = chain
}

func (p *Pipeline) activeEQ() *dsp.Chain {
	p.eqMu.Lock()
	defer p.eqMu.Unlock()
	return p.eqChain
}

// PrepareNext synchronously probes path and caches (rate, channels) so a
// subsequent Play(path) can skip its own probe, keeping gapless
// transitions prompt.
func (p *Pipeline) PrepareNext(path string) error {
	rate, channels, err := probeFile(path)
	if err != nil {
		return fmt.Errorf("pipeline: prepare_next: %w: %w", enginerr.ErrDecode, err)
	}
	p.probeMu.Lock()
	p.probe = &probeResult{path: path, rate: rate, channels: channels}
	p.probeMu.Unlock()
	return nil
}

func (p *Pipeline) takeProbe(path string) (rate, channels int, cached bool) {
	p.probeMu.Lock()
	defer p.probeMu.Unlock()
	if p.probe != nil && p.probe.path == path {
		r, c := p.probe.rate, p.probe.channels
		p.probe = nil
		return r, c, true
	}
	return 0, 0, false
}

// Play stops any in-flight track, then starts decoding and outputting
// path. It blocks the caller until any prior decoder/output threads have
// been joined, matching the engine's single-flight play() contract.
func (p *Pipeline) Play(path string) error {
	p.lifecycleMu.Lock()
	defer p.lifecycleMu.Unlock()

	p.stopLocked()

	p.playing.Store(false)
	p.paused.Store(false)
	p.stopSig.Store(false)
	p.seekToMs.Store(0)
	p.finished.Store(false)
	p.errored.Store(false)
	p.position.Store(0)
	p.duration.Store(0)
	p.negotiatedRate.Store(0)

	rate, channels, cached := p.takeProbe(path)
	if !cached {
		var err error
		rate, channels, err = probeFile(path)
		if err != nil {
			p.errored.Store(true)
			return fmt.Errorf("pipeline: play %s: %w: %w", path, enginerr.ErrDecode, err)
		}
	}
	if channels <= 0 {
		channels = p.cfg.DefaultChannels
	}
	p.rate.Store(int64(rate))
	p.channels.Store(int64(channels))

	capacity := ring.CapacityForSeconds(p.cfg.RingSeconds, rate, channels)
	p.ring = ring.New(capacity)

	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel

	p.wg.Add(1)
	go p.decodeLoop(ctx, path)

	p.wg.Add(1)
	go p.outputLoop(ctx)

	p.playing.Store(true)
	return nil
}

// Pause toggles the paused atom; the decoder and output loops observe it
// without holding any lock.
func (p *Pipeline) Pause()  { p.paused.Store(true) }
func (p *Pipeline) Resume() { p.paused.Store(false) }

// Stop halts and joins the decoder and output threads. No ghost threads
// may survive a Stop call.
func (p *Pipeline) Stop() {
	p.lifecycleMu.Lock()
	defer p.lifecycleMu.Unlock()
	p.stopLocked()
}

func (p *Pipeline) stopLocked() {
	p.stopSig.Store(true)
	if p.ring != nil {
		p.ring.Clear()
	}
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()
	p.playing.Store(false)
	p.paused.Store(false)
}

// Seek requests the decoder thread seek to positionMs on its next loop
// iteration.
func (p *Pipeline) Seek(positionMs int64) {
	if positionMs < 0 {
		positionMs = 0
	}
	p.seekToMs.Store(positionMs + 1) // +1 so 0 always means "no pending seek"
}

func (p *Pipeline) takeSeek() (ms int64, pending bool) {
	v := p.seekToMs.Swap(0)
	if v == 0 {
		return 0, false
	}
	return v - 1, true
}
