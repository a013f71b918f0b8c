package dsp

import "testing"

func TestGainDoublesAmplitude(t *testing.T) {
	g := NewGain(6.0206) // ~+6dB = x2
	samples := []float32{0.1, -0.2}
	g.Process(samples, 1)
	if samples[0] < 0.199 || samples[0] > 0.201 {
		t.Fatalf("samples[0] = %v want ~0.2", samples[0])
	}
}

func TestChainFromSpecEmpty(t *testing.T) {
	c, err := ChainFromSpec(ChainSpec{}, 44100)
	if err != nil {
		t.Fatal(err)
	}
	if !c.Empty() {
		t.Fatal("expected empty chain")
	}
}

func TestChainFromSpecEQAndGain(t *testing.T) {
	spec := ChainSpec{Filters: []FilterSpec{
		{Type: "peaking", Freq: 1000, Q: 0.7, GainDB: 3},
		{Type: "gain", GainDB: -3},
	}}
	c, err := ChainFromSpec(spec, 44100)
	if err != nil {
		t.Fatal(err)
	}
	if c.Empty() {
		t.Fatal("expected non-empty chain")
	}
	samples := []float32{0.1, 0.2, 0.3, 0.4}
	c.Process(samples, 1)
}

func TestBiquadUnityGainPassesNearThrough(t *testing.T) {
	b := NewBiquadPeaking(44100, 1000, 0.707, 0)
	samples := []float32{0.5, 0.5, 0.5, 0.5, 0.5}
	b.Process(samples, 1)
	for _, s := range samples {
		if s < 0.4 || s > 0.6 {
			t.Fatalf("unity-gain biquad drifted too far: %v", s)
		}
	}
}

func TestChainFromSpecUnknownFilterErrors(t *testing.T) {
	_, err := ChainFromSpec(ChainSpec{Filters: []FilterSpec{{Type: "notch"}}}, 44100)
	if err == nil {
		t.Fatal("expected error for unknown filter type")
	}
}
