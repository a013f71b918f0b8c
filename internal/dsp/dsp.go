// Package dsp implements the supplemental effects chain applied to
// output samples: a peaking-biquad equalizer stage and a gain stage,
// configured from the /playback/eq document. The chain defaults to
// identity when no document or an empty filter list is present.
package dsp

import (
	"fmt"
	"math"
)

// Filter transforms a buffer of interleaved multi-channel samples in place.
type Filter interface {
	Process(samples []float32, channels int)
}

// Gain scales every sample by a linear factor derived from gain_db.
type Gain struct {
	Linear float32
}

// NewGain builds a Gain stage from a decibel value.
func NewGain(gainDB float64) *Gain {
	return &Gain{Linear: float32(math.Pow(10, gainDB/20))}
}

func (g *Gain) Process(samples []float32, channels int) {
	for i := range samples {
		samples[i] *= g.Linear
	}
}

// Biquad is a Direct-Form-I peaking EQ biquad filter, with independent
// per-channel state so multi-channel streams are filtered without
// cross-talk between channels.
type Biquad struct {
	b0, b1, b2 float64
	a1, a2     float64

	// per-channel delay state
	x1, x2 []float64
	y1, y2 []float64
}

// NewBiquadPeaking builds a peaking-EQ biquad at the given sample rate,
// center frequency, Q, and gain in dB (RBJ cookbook formulas).
func NewBiquadPeaking(sampleRate, freq, q, gainDB float64) *Biquad {
	if sampleRate <= 0 {
		sampleRate = 44100
	}
	if q <= 0 {
		q = 0.707
	}
	a := math.Pow(10, gainDB/40)
	w0 := 2 * math.Pi * freq / sampleRate
	alpha := math.Sin(w0) / (2 * q)
	cosw0 := math.Cos(w0)

	b0 := 1 + alpha*a
	b1 := -2 * cosw0
	b2 := 1 - alpha*a
	a0 := 1 + alpha/a
	a1 := -2 * cosw0
	a2 := 1 - alpha/a

	return &Biquad{
		b0: b0 / a0,
		b1: b1 / a0,
		b2: b2 / a0,
		a1: a1 / a0,
		a2: a2 / a0,
	}
}

func (b *Biquad) ensureState(channels int) {
	if len(b.x1) == channels {
		return
	}
	b.x1 = make([]float64, channels)
	b.x2 = make([]float64, channels)
	b.y1 = make([]float64, channels)
	b.y2 = make([]float64, channels)
}

func (b *Biquad) Process(samples []float32, channels int) {
	if channels <= 0 {
		return
	}
	b.ensureState(channels)
	frames := len(samples) / channels
	for f := 0; f < frames; f++ {
		for c := 0; c < channels; c++ {
			i := f*channels + c
			x0 := float64(samples[i])
			y0 := b.b0*x0 + b.b1*b.x1[c] + b.b2*b.x2[c] - b.a1*b.y1[c] - b.a2*b.y2[c]
			b.x2[c] = b.x1[c]
			b.x1[c] = x0
			b.y2[c] = b.y1[c]
			b.y1[c] = y0
			samples[i] = float32(y0)
		}
	}
}

// Chain applies an ordered list of filters in sequence.
type Chain struct {
	filters []Filter
}

// Process runs every filter in the chain over samples in place.
func (c *Chain) Process(samples []float32, channels int) {
	for _, f := range c.filters {
		f.Process(samples, channels)
	}
}

// Empty reports whether the chain has no stages (identity).
func (c *Chain) Empty() bool {
	return c == nil || len(c.filters) == 0
}

// FilterSpec is one element of the /playback/eq document's "filters" list.
type FilterSpec struct {
	Type   string  `json:"type"`
	Freq   float64 `json:"freq,omitempty"`
	Q      float64 `json:"q,omitempty"`
	GainDB float64 `json:"gain_db,omitempty"`
}

// ChainSpec is the JSON schema stored at /playback/eq.
type ChainSpec struct {
	Filters []FilterSpec `json:"filters"`
}

// ChainFromSpec builds a Chain from a parsed ChainSpec at the given
// sample rate. An empty or nil spec produces an identity chain.
func ChainFromSpec(spec ChainSpec, sampleRate int) (*Chain, error) {
	c := &Chain{}
	for _, f := range spec.Filters {
		switch f.Type {
		case "peaking":
			c.filters = append(c.filters, NewBiquadPeaking(float64(sampleRate), f.Freq, f.Q, f.GainDB))
		case "gain":
			c.filters = append(c.filters, NewGain(f.GainDB))
		default:
			return nil, fmt.Errorf("dsp: unknown filter type %q", f.Type)
		}
	}
	return c, nil
}
