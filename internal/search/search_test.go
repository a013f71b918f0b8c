package search

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/sonora-audio/sonora/internal/store"
)

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"), false, false)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func seedLibrary(t *testing.T, st store.Store, items ...Item) {
	t.Helper()
	ctx := context.Background()
	for _, it := range items {
		if _, err := st.Put(ctx, store.LibraryPath(it.ID), it); err != nil {
			t.Fatalf("seed %s: %v", it.ID, err)
		}
	}
}

func TestSearchEmptyQueryReturnsNothing(t *testing.T) {
	st := newTestStore(t)
	eng := New(st, 0.5, 10)
	results, err := eng.Search(context.Background(), "")
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 0 {
		t.Fatalf("expected no results, got %d", len(results))
	}
}

func TestSearchMatchesTitleAndExcludesNonMatching(t *testing.T) {
	st := newTestStore(t)
	seedLibrary(t, st,
		Item{ID: "a", Title: "Moonlight Sonata", Artist: "Beethoven"},
		Item{ID: "b", Title: "Sunshine", Artist: "Someone"},
	)
	eng := New(st, 0.5, 10)
	results, err := eng.Search(context.Background(), "moonlight")
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || results[0].ID != "a" {
		t.Fatalf("expected [a], got %+v", results)
	}
}

func TestSearchMatchesArtist(t *testing.T) {
	st := newTestStore(t)
	seedLibrary(t, st, Item{ID: "a", Title: "Song", Artist: "Beethoven"})
	eng := New(st, 0.5, 10)
	results, err := eng.Search(context.Background(), "beethoven")
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || results[0].ID != "a" {
		t.Fatalf("expected [a], got %+v", results)
	}
}

func TestFilterByArtistExactCaseInsensitive(t *testing.T) {
	st := newTestStore(t)
	seedLibrary(t, st,
		Item{ID: "a", Title: "Song A", Artist: "Beethoven"},
		Item{ID: "b", Title: "Song B", Artist: "Mozart"},
	)
	eng := New(st, 0.5, 10)
	results, err := eng.Filter(context.Background(), "artist", "BEETHOVEN")
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || results[0].ID != "a" {
		t.Fatalf("expected [a], got %+v", results)
	}
}

func TestSearchExcludesSoftDeleted(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	seedLibrary(t, st, Item{ID: "a", Title: "Moonlight"})

	rec, _, _ := st.Get(ctx, store.LibraryPath("a"))
	_ = rec
	if _, err := st.Put(ctx, store.LibraryPath("a"), map[string]any{
		"id": "a", "title": "Moonlight", "metadata": map[string]any{"deleted": true},
	}); err != nil {
		t.Fatal(err)
	}

	eng := New(st, 0.5, 10)
	results, err := eng.Search(ctx, "moonlight")
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 0 {
		t.Fatalf("expected soft-deleted item excluded, got %+v", results)
	}
}
