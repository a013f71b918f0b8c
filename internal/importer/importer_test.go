package importer

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/time/rate"

	"github.com/sonora-audio/sonora/internal/store"
)

func newTestImporter(t *testing.T) (*Importer, store.Store) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"), false, false)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return New(st, 8, rate.NewLimiter(rate.Inf, 1)), st
}

func TestStableIDDeterministic(t *testing.T) {
	a := stableID("/music/song.mp3")
	b := stableID("/music/song.mp3")
	if a != b {
		t.Fatalf("stableID not deterministic: %q vs %q", a, b)
	}
}

func TestStableIDDiffersForDifferentPaths(t *testing.T) {
	a := stableID("/music/song.mp3")
	b := stableID("/other/song.mp3")
	if a == b {
		t.Fatalf("stableID collided: %q", a)
	}
}

func TestImportFileSkipsUnsupportedExtension(t *testing.T) {
	im, _ := newTestImporter(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "notes.txt")
	if err := os.WriteFile(path, []byte("hello"), 0o644); err != nil {
		t.Fatal(err)
	}
	imported, err := im.ImportFile(context.Background(), path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if imported {
		t.Fatal("expected unsupported extension to be skipped")
	}
}

func TestImportFileSkipsMissingFile(t *testing.T) {
	im, _ := newTestImporter(t)
	imported, err := im.ImportFile(context.Background(), "/does/not/exist.mp3")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if imported {
		t.Fatal("expected missing file to be skipped")
	}
}

func TestImportFileDedupsOnRescan(t *testing.T) {
	im, st := newTestImporter(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "song.mp3")
	if err := os.WriteFile(path, []byte("not actually audio, just bytes"), 0o644); err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	imported, err := im.ImportFile(ctx, path)
	if err != nil {
		t.Fatalf("first import: %v", err)
	}
	if !imported {
		t.Fatal("expected first import to succeed")
	}

	imported, err = im.ImportFile(ctx, path)
	if err != nil {
		t.Fatalf("second import: %v", err)
	}
	if imported {
		t.Fatal("expected rescan to dedup")
	}

	id := stableID(path)
	if _, ok, err := st.Get(ctx, store.LibraryPath(id)); err != nil || !ok {
		t.Fatalf("expected library entry to exist: ok=%v err=%v", ok, err)
	}
}

func TestScanDirectoryRespectsMaxDepth(t *testing.T) {
	im, _ := newTestImporter(t)
	im.maxScanDepth = 0

	root := t.TempDir()
	nested := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(nested, "deep.mp3"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	res := im.ScanDirectory(context.Background(), root)
	if res.Imported != 0 {
		t.Fatalf("expected depth limit to block nested import, got imported=%d", res.Imported)
	}
}
