// Package clock implements the heartbeat's structural clock: a
// positional counter over named partitions (least-significant first)
// that carries on overflow and emits named pulses at configured
// multiples of the tick count.
package clock

import "log"

// Partition is a named digit with a modulus; partitions[0] is the
// least-significant.
type Partition struct {
	Name    string
	Modulus int
}

// Pulse is a named event firing when tick % Every == 0.
type Pulse struct {
	Name  string
	Every int
}

// Config describes the clock's partitions and pulses.
type Config struct {
	Partitions []Partition
	Pulses     []Pulse
}

// DefaultConfig returns the clock's built-in default: partitions
// sub(4), beat(4), bar(4); pulses beat/4, bar/16, phrase/64.
func DefaultConfig() Config {
	return Config{
		Partitions: []Partition{
			{Name: "sub", Modulus: 4},
			{Name: "beat", Modulus: 4},
			{Name: "bar", Modulus: 4},
		},
		Pulses: []Pulse{
			{Name: "beat", Every: 4},
			{Name: "bar", Every: 16},
			{Name: "phrase", Every: 64},
		},
	}
}

// Valid reports whether at least one partition is configured and every
// modulus and every pulse period is > 0.
func (c Config) Valid() bool {
	if len(c.Partitions) == 0 {
		return false
	}
	for _, p := range c.Partitions {
		if p.Modulus <= 0 {
			return false
		}
	}
	for _, p := range c.Pulses {
		if p.Every <= 0 {
			return false
		}
	}
	return true
}

// Clock is a structural counter advanced once per heartbeat iteration.
type Clock struct {
	cfg        Config
	tick       uint64
	epoch      uint64
	partitions []int // current value of each partition, indices match cfg.Partitions
}

// New builds a Clock from cfg, falling back to DefaultConfig and logging
// a warning if cfg is invalid.
func New(cfg Config) *Clock {
	if !cfg.Valid() {
		log.Printf("[CLOCK] invalid clock config, using defaults")
		cfg = DefaultConfig()
	}
	return &Clock{
		cfg:        cfg,
		partitions: make([]int, len(cfg.Partitions)),
	}
}

// Tick advances the counter by one and returns the fired pulse names.
func (c *Clock) Tick() (fired []string) {
	c.tick++

	carry := 1
	for i := 0; i < len(c.partitions) && carry > 0; i++ {
		c.partitions[i] += carry
		if c.partitions[i] >= c.cfg.Partitions[i].Modulus {
			c.partitions[i] = 0
			carry = 1
		} else {
			carry = 0
		}
	}
	if carry > 0 {
		c.epoch++
	}

	for _, p := range c.cfg.Pulses {
		if c.tick%uint64(p.Every) == 0 {
			fired = append(fired, p.Name)
		}
	}
	return fired
}

// Snapshot is the JSON-serializable view written to /clock/tick.
type Snapshot struct {
	Tick       uint64         `json:"tick"`
	Epoch      uint64         `json:"epoch"`
	Partitions map[string]int `json:"partitions"`
	Pulses     []string       `json:"pulses"`
	Overflowed bool           `json:"overflowed"`
}

// State returns the clock's current snapshot without advancing it; the
// Pulses field reflects the most recently fired set passed in.
func (c *Clock) State(firedPulses []string) Snapshot {
	partitions := make(map[string]int, len(c.partitions))
	for i, p := range c.cfg.Partitions {
		partitions[p.Name] = c.partitions[i]
	}
	return Snapshot{
		Tick:       c.tick,
		Epoch:      c.epoch,
		Partitions: partitions,
		Pulses:     firedPulses,
		Overflowed: c.epoch > 0,
	}
}
