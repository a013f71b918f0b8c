package pipeline

import "testing"

func TestSetVolumeClamps(t *testing.T) {
	p := New(Config{})
	p.SetVolume(150)
	if p.volume.Load() != 100 {
		t.Fatalf("volume = %d want 100", p.volume.Load())
	}
	p.SetVolume(-5)
	if p.volume.Load() != 0 {
		t.Fatalf("volume = %d want 0", p.volume.Load())
	}
}

func TestPrepareNextMissingFileErrors(t *testing.T) {
	p := New(Config{})
	if err := p.PrepareNext("/does/not/exist.mp3"); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestSeekEncodesZeroAsNoPendingSeek(t *testing.T) {
	p := New(Config{})
	if _, pending := p.takeSeek(); pending {
		t.Fatal("expected no pending seek initially")
	}
	p.Seek(0)
	ms, pending := p.takeSeek()
	if !pending || ms != 0 {
		t.Fatalf("ms=%d pending=%v want 0,true", ms, pending)
	}
}
