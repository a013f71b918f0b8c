package pipeline

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/mp3"
	"github.com/gopxl/beep/wav"

	"github.com/sonora-audio/sonora/internal/resample"
)

const (
	decodeChunkFrames = 2048
	pauseSleepMs      = 10 * time.Millisecond
	backoffSleepMs    = 5 * time.Millisecond
)

// decodeLoop is the decoder thread: it owns the decoder, reads packets,
// resamples if the negotiated output rate differs, and pushes interleaved
// float32 frames into the ring with backpressure.
func (p *Pipeline) decodeLoop(ctx context.Context, path string) {
	defer p.wg.Done()
	defer func() {
		p.finished.Store(true)
	}()

	f, err := os.Open(path)
	if err != nil {
		p.errored.Store(true)
		p.logf("decode open failed: %v", err)
		return
	}
	defer f.Close()

	var streamer beep.StreamSeekCloser
	var format beep.Format

	switch strings.ToLower(extOf(path)) {
	case ".mp3":
		streamer, format, err = mp3.Decode(f)
	case ".wav":
		streamer, format, err = wav.Decode(f)
	default:
		p.errored.Store(true)
		p.logf("decode: unsupported format %q", extOf(path))
		return
	}
	if err != nil {
		p.errored.Store(true)
		p.logf("decode init failed: %v", err)
		return
	}
	defer streamer.Close()

	rate := int(format.SampleRate)
	if rate <= 0 {
		rate = 44100
	}
	channels := format.NumChannels
	if channels <= 0 {
		channels = 2
	}

	totalFrames := streamer.Len()
	if totalFrames > 0 {
		p.duration.Store(int64(totalFrames) * 1000 / int64(rate))
	}

	outRate := p.waitForNegotiatedRate(rate)
	var resampler *resample.Linear
	if outRate != rate {
		resampler = resample.NewLinear(rate, outRate, channels)
	}

	decodedFrames := int64(0)
	buf := make([][2]float64, decodeChunkFrames)
	scratch := make([]float32, decodeChunkFrames*channels)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if ms, pending := p.takeSeek(); pending {
			target := int(int64(rate) * ms / 1000)
			if err := streamer.Seek(target); err != nil {
				p.logf("seek failed: %v", err)
			} else {
				decodedFrames = int64(target)
				p.ring.Clear()
				p.position.Store(ms)
			}
		}

		for p.paused.Load() && !p.stopSig.Load() {
			select {
			case <-ctx.Done():
				return
			case <-time.After(pauseSleepMs):
			}
		}
		if p.stopSig.Load() {
			return
		}

		n, ok := streamer.Stream(buf)
		if !ok {
			if err := streamer.Err(); err != nil {
				p.errored.Store(true)
				p.logf("decode stream error: %v", err)
			}
			return
		}
		if n == 0 {
			continue
		}

		for i := 0; i < n; i++ {
			base := i * channels
			if channels >= 2 {
				scratch[base] = float32(buf[i][0])
				scratch[base+1] = float32(buf[i][1])
				for c := 2; c < channels; c++ {
					scratch[base+c] = 0
				}
			} else {
				scratch[base] = float32((buf[i][0] + buf[i][1]) / 2)
			}
		}
		frames := scratch[:n*channels]

		decodedFrames += int64(n)
		p.position.Store(decodedFrames * 1000 / int64(rate))

		if resampler != nil && !resampler.Identity() {
			frames = resampler.Process(frames)
		}

		p.pushWithBackoff(ctx, frames)
	}
}

func (p *Pipeline) pushWithBackoff(ctx context.Context, samples []float32) {
	for len(samples) > 0 {
		n := p.ring.Push(samples)
		samples = samples[n:]
		if len(samples) == 0 {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoffSleepMs):
		}
		if p.stopSig.Load() {
			return
		}
	}
}

// waitForNegotiatedRate gives the output thread a brief window to report
// the device's actual negotiated sample rate; if none arrives, the
// decoder proceeds assuming no resampling is required.
func (p *Pipeline) waitForNegotiatedRate(decoderRate int) int {
	deadline := time.Now().Add(200 * time.Millisecond)
	for time.Now().Before(deadline) {
		if r := p.negotiatedRate.Load(); r != 0 {
			return int(r)
		}
		time.Sleep(2 * time.Millisecond)
	}
	return decoderRate
}
