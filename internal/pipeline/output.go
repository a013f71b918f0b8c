package pipeline

import (
	"context"
	"time"

	"github.com/gordonklaus/portaudio"

	"github.com/sonora-audio/sonora/internal/resample"
)

const drainTickMs = 25 * time.Millisecond

// outputLoop picks a device configuration, installs the real-time
// callback, and blocks in a drain loop until playback genuinely ends.
func (p *Pipeline) outputLoop(ctx context.Context) {
	defer p.wg.Done()

	decoderRate := int(p.rate.Load())
	decoderChannels := int(p.channels.Load())
	if decoderChannels <= 0 {
		decoderChannels = p.cfg.DefaultChannels
	}

	if err := portaudio.Initialize(); err != nil {
		p.errored.Store(true)
		p.logf("portaudio init failed: %v", err)
		return
	}
	defer portaudio.Terminate()

	outChannels := decoderChannels
	sampleRate := float64(decoderRate)
	framesPerBuffer := decoderRate / 50 // ~20ms
	if framesPerBuffer <= 0 {
		framesPerBuffer = 1024
	}

	scratch := make([]float32, framesPerBuffer*decoderChannels)
	deviceCallback := func(out [][]float32) {
		p.callback(out, decoderChannels, scratch)
	}

	stream, err := portaudio.OpenDefaultStream(0, outChannels, sampleRate, framesPerBuffer, deviceCallback)
	if err != nil {
		// Fall back to the default device's reported rate; if it cannot
		// offer float32 output there is nothing further to try.
		dev, devErr := portaudio.DefaultOutputDevice()
		if devErr != nil || dev == nil {
			p.errored.Store(true)
			p.logf("output device open failed: %v", err)
			return
		}
		sampleRate = dev.DefaultSampleRate
		outChannels = decoderChannels
		if outChannels > dev.MaxOutputChannels {
			outChannels = dev.MaxOutputChannels
		}
		stream, err = portaudio.OpenDefaultStream(0, outChannels, sampleRate, framesPerBuffer, deviceCallback)
		if err != nil {
			p.errored.Store(true)
			p.logf("output device fallback open failed: %v", err)
			return
		}
	}
	defer stream.Close()

	p.outChans.Store(int64(outChannels))
	p.negotiatedRate.Store(int64(sampleRate))

	if err := stream.Start(); err != nil {
		p.errored.Store(true)
		p.logf("output stream start failed: %v", err)
		return
	}
	defer stream.Stop()

	ticker := time.NewTicker(drainTickMs)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			ringEmpty := p.ring.Len() == 0
			if p.stopSig.Load() && ringEmpty {
				return
			}
			if p.finished.Load() && ringEmpty {
				return
			}
			if !p.playing.Load() && !p.finished.Load() && ringEmpty {
				return
			}
		}
	}
}

// callback is the real-time output callback. It must never block longer
// than the device's real-time budget: it only takes the ring's own brief
// lock and does arithmetic.
func (p *Pipeline) callback(out [][]float32, decoderChannels int, scratch []float32) {
	frames := 0
	if len(out) > 0 {
		frames = len(out[0])
	}
	outChannels := len(out)

	if p.paused.Load() {
		for c := range out {
			for i := range out[c] {
				out[c][i] = 0
			}
		}
		return
	}

	need := frames * decoderChannels
	if cap(scratch) < need {
		scratch = make([]float32, need)
	}
	scratch = scratch[:need]
	p.ring.Pull(scratch)

	if chain := p.activeEQ(); chain != nil && !chain.Empty() {
		chain.Process(scratch, decoderChannels)
	}

	vol := float32(p.volume.Load()) / 100

	adapted := scratch
	if decoderChannels != outChannels {
		adapted = make([]float32, frames*outChannels)
		resample.AdaptChannels(scratch, decoderChannels, outChannels, adapted)
	}

	for c := 0; c < outChannels; c++ {
		for i := 0; i < frames; i++ {
			out[c][i] = adapted[i*outChannels+c] * vol
		}
	}
}
