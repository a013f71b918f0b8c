package platform

import (
	"path/filepath"
	"testing"
)

func TestRootHonorsEnvOverride(t *testing.T) {
	t.Setenv(RootEnvVar, "")
	want, err := GetDataDir()
	if err != nil {
		t.Fatalf("data dir: %v", err)
	}
	got, err := Root()
	if err != nil {
		t.Fatalf("root: %v", err)
	}
	if got != want {
		t.Fatalf("expected Root() to fall back to GetDataDir() %q, got %q", want, got)
	}

	override := filepath.Join(t.TempDir(), "custom-root")
	t.Setenv(RootEnvVar, override)
	got, err = Root()
	if err != nil {
		t.Fatalf("root with override: %v", err)
	}
	if got != override {
		t.Fatalf("expected Root() to honor %s=%q, got %q", RootEnvVar, override, got)
	}
}

func TestDirsNonEmptyAndDataDistinctFromCache(t *testing.T) {
	data, err := GetDataDir()
	if err != nil {
		t.Fatalf("data dir: %v", err)
	}
	cache, err := GetCacheDir()
	if err != nil {
		t.Fatalf("cache dir: %v", err)
	}
	cfg, err := GetConfigDir()
	if err != nil {
		t.Fatalf("config dir: %v", err)
	}
	if data == "" || cache == "" || cfg == "" {
		t.Fatal("expected non-empty platform directories")
	}
	if data == cache {
		t.Fatalf("expected data dir %q to differ from cache dir", data)
	}
}
