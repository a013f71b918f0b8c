package clock

import (
	"reflect"
	"testing"
)

func TestDefaultClockFourTicks(t *testing.T) {
	c := New(DefaultConfig())
	var fired []string
	for i := 0; i < 4; i++ {
		fired = c.Tick()
	}
	snap := c.State(fired)
	if snap.Partitions["sub"] != 0 {
		t.Fatalf("sub = %d want 0", snap.Partitions["sub"])
	}
	if snap.Partitions["beat"] != 1 {
		t.Fatalf("beat = %d want 1", snap.Partitions["beat"])
	}
	if !reflect.DeepEqual(fired, []string{"beat"}) {
		t.Fatalf("fired = %v want [beat]", fired)
	}
}

func TestInvalidConfigFallsBackToDefault(t *testing.T) {
	c := New(Config{Partitions: []Partition{{Name: "x", Modulus: 0}}})
	if len(c.cfg.Partitions) != len(DefaultConfig().Partitions) {
		t.Fatal("expected fallback to default config")
	}
}

func TestEpochAdvancesOnMostSignificantOverflow(t *testing.T) {
	cfg := Config{
		Partitions: []Partition{{Name: "a", Modulus: 2}},
		Pulses:     []Pulse{{Name: "p", Every: 1}},
	}
	c := New(cfg)
	c.Tick() // a=1
	c.Tick() // a=0, carry out -> epoch=1
	snap := c.State(nil)
	if snap.Epoch != 1 {
		t.Fatalf("epoch = %d want 1", snap.Epoch)
	}
}
