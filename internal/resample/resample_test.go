package resample

import "testing"

func TestLinearIdentityWhenRatesEqual(t *testing.T) {
	r := NewLinear(44100, 44100, 2)
	in := []float32{0.1, 0.2, 0.3, 0.4}
	out := r.Process(in)
	if len(out) != len(in) {
		t.Fatalf("len(out) = %d want %d", len(out), len(in))
	}
	for i := range in {
		if out[i] != in[i] {
			t.Fatalf("out[%d] = %v want %v", i, out[i], in[i])
		}
	}
}

func TestLinearUpsampleProducesMoreFrames(t *testing.T) {
	r := NewLinear(22050, 44100, 1)
	in := make([]float32, 100)
	for i := range in {
		in[i] = float32(i)
	}
	out := r.Process(in)
	if len(out) < len(in) {
		t.Fatalf("upsample shrank: got %d from %d", len(out), len(in))
	}
}

func TestLinearDownsampleProducesFewerFrames(t *testing.T) {
	r := NewLinear(44100, 22050, 1)
	in := make([]float32, 100)
	for i := range in {
		in[i] = float32(i)
	}
	out := r.Process(in)
	if len(out) >= len(in) {
		t.Fatalf("downsample did not shrink: got %d from %d", len(out), len(in))
	}
}

func TestAdaptChannelsMonoToStereoDuplicates(t *testing.T) {
	src := []float32{0.5, -0.5}
	out := make([]float32, 4)
	AdaptChannels(src, 1, 2, out)
	want := []float32{0.5, 0.5, -0.5, -0.5}
	for i := range want {
		if out[i] != want[i] {
			t.Fatalf("out[%d] = %v want %v", i, out[i], want[i])
		}
	}
}

func TestAdaptChannelsStereoToMonoAverages(t *testing.T) {
	src := []float32{1, 3, 2, 4}
	out := make([]float32, 2)
	AdaptChannels(src, 2, 1, out)
	if out[0] != 2 || out[1] != 3 {
		t.Fatalf("out = %v want [2 3]", out)
	}
}

func TestAdaptChannelsEqualPassesThrough(t *testing.T) {
	src := []float32{1, 2, 3, 4}
	out := make([]float32, 4)
	AdaptChannels(src, 2, 2, out)
	for i := range src {
		if out[i] != src[i] {
			t.Fatalf("out[%d] = %v want %v", i, out[i], src[i])
		}
	}
}

func TestAdaptChannelsExtraSourceDropped(t *testing.T) {
	src := []float32{1, 2, 3}
	out := make([]float32, 2)
	AdaptChannels(src, 3, 2, out)
	if out[0] != 1 || out[1] != 2 {
		t.Fatalf("out = %v want [1 2]", out)
	}
}
