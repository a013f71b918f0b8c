package store

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dir := t.TempDir()
	s, err := Open(filepath.Join(dir, "sonora.db"), false, false)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestPutGetRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	type payload struct {
		Title string `json:"title"`
	}
	if _, err := s.Put(ctx, LibraryPath("abc"), payload{Title: "song"}); err != nil {
		t.Fatal(err)
	}

	rec, ok, err := s.Get(ctx, LibraryPath("abc"))
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}

	var got payload
	if err := json.Unmarshal(rec.Data, &got); err != nil {
		t.Fatal(err)
	}
	if got.Title != "song" {
		t.Fatalf("title = %q want song", got.Title)
	}
}

func TestListExcludesSoftDeleted(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	s.Put(ctx, LibraryPath("a"), map[string]any{"title": "a"})
	s.Put(ctx, LibraryPath("b"), map[string]any{
		"title":    "b",
		"metadata": map[string]any{"deleted": true},
	})

	paths, err := s.List(ctx, LibraryPrefix)
	if err != nil {
		t.Fatal(err)
	}
	if len(paths) != 1 || paths[0] != LibraryPath("a") {
		t.Fatalf("paths = %v want [%s]", paths, LibraryPath("a"))
	}

	rec, ok, err := s.Get(ctx, LibraryPath("b"))
	if err != nil || !ok {
		t.Fatalf("get deleted record: ok=%v err=%v", ok, err)
	}
	if !rec.Deleted() {
		t.Fatal("expected Deleted() == true")
	}
}
