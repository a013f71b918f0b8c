package ring

import "testing"

func TestPushPullRoundTrip(t *testing.T) {
	r := New(8)
	in := []float32{1, 2, 3, 4}
	if n := r.Push(in); n != 4 {
		t.Fatalf("push: got %d want 4", n)
	}
	out := make([]float32, 4)
	if n := r.Pull(out); n != 4 {
		t.Fatalf("pull: got %d want 4", n)
	}
	for i := range in {
		if out[i] != in[i] {
			t.Fatalf("out[%d] = %v want %v", i, out[i], in[i])
		}
	}
}

func TestPullShortageZeroFills(t *testing.T) {
	r := New(8)
	r.Push([]float32{1, 2})
	out := make([]float32, 5)
	n := r.Pull(out)
	if n != 2 {
		t.Fatalf("n = %d want 2", n)
	}
	want := []float32{1, 2, 0, 0, 0}
	for i := range want {
		if out[i] != want[i] {
			t.Fatalf("out[%d] = %v want %v", i, out[i], want[i])
		}
	}
}

func TestPushOverflowDropsExcess(t *testing.T) {
	r := New(4)
	n := r.Push([]float32{1, 2, 3, 4, 5, 6})
	if n != 4 {
		t.Fatalf("n = %d want 4", n)
	}
	if r.Len() != 4 {
		t.Fatalf("len = %d want 4", r.Len())
	}
}

func TestClearResets(t *testing.T) {
	r := New(4)
	r.Push([]float32{1, 2, 3})
	r.Clear()
	if r.Len() != 0 {
		t.Fatalf("len after clear = %d want 0", r.Len())
	}
	out := make([]float32, 3)
	if n := r.Pull(out); n != 0 {
		t.Fatalf("pull after clear = %d want 0", n)
	}
}

func TestWraparound(t *testing.T) {
	r := New(4)
	r.Push([]float32{1, 2, 3})
	out := make([]float32, 2)
	r.Pull(out) // consumes 1,2 ; read cursor now at 2
	r.Push([]float32{4, 5, 6})
	rest := make([]float32, 4)
	n := r.Pull(rest)
	if n != 4 {
		t.Fatalf("n = %d want 4", n)
	}
	want := []float32{3, 4, 5, 6}
	for i := range want {
		if rest[i] != want[i] {
			t.Fatalf("rest[%d] = %v want %v", i, rest[i], want[i])
		}
	}
}

func TestCapacityForSeconds(t *testing.T) {
	if got := CapacityForSeconds(4, 48000, 2); got != 4*48000*2 {
		t.Fatalf("got %d", got)
	}
}
