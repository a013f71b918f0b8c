package engine

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/sonora-audio/sonora/internal/enginerr"
	"github.com/sonora-audio/sonora/internal/search"
	"github.com/sonora-audio/sonora/internal/store"
)

// AddLibraryItem writes a new (or replaces an existing) library entry.
// Callers supply id explicitly so that importer-derived stable ids and
// manual additions share one path.
func (e *Engine) AddLibraryItem(ctx context.Context, id string, data map[string]any) error {
	if id == "" {
		return fmt.Errorf("engine: add library item: empty id")
	}
	data["id"] = id
	if _, err := e.st.Put(ctx, store.LibraryPath(id), data); err != nil {
		return fmt.Errorf("%w: %w", enginerr.ErrStoreIO, err)
	}
	return nil
}

// LibraryItem returns the raw document at /library/<id>, including
// soft-deleted entries (callers that must honor soft-delete should
// check Record.Deleted()).
func (e *Engine) LibraryItem(ctx context.Context, id string) (store.Record, bool, error) {
	return e.st.Get(ctx, store.LibraryPath(id))
}

// ListLibrary returns every non-deleted library entry.
func (e *Engine) ListLibrary(ctx context.Context) ([]search.Item, error) {
	paths, err := e.st.List(ctx, store.LibraryPrefix)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", enginerr.ErrStoreIO, err)
	}
	items := make([]search.Item, 0, len(paths))
	for _, p := range paths {
		rec, ok, err := e.st.Get(ctx, p)
		if err != nil || !ok || rec.Deleted() {
			continue
		}
		var it search.Item
		if json.Unmarshal(rec.Data, &it) == nil {
			items = append(items, it)
		}
	}
	return items, nil
}

// DeleteLibraryItem soft-deletes a library entry by rewriting its
// document with metadata.deleted=true, per the store's soft-delete
// convention — the record remains readable via Get/LibraryItem.
func (e *Engine) DeleteLibraryItem(ctx context.Context, id string) error {
	rec, ok, err := e.st.Get(ctx, store.LibraryPath(id))
	if err != nil {
		return fmt.Errorf("%w: %w", enginerr.ErrStoreIO, err)
	}
	if !ok {
		return nil
	}
	var doc map[string]any
	if err := json.Unmarshal(rec.Data, &doc); err != nil {
		doc = map[string]any{}
	}
	meta, _ := doc["metadata"].(map[string]any)
	if meta == nil {
		meta = map[string]any{}
	}
	meta["deleted"] = true
	doc["metadata"] = meta
	if _, err := e.st.Put(ctx, store.LibraryPath(id), doc); err != nil {
		return fmt.Errorf("%w: %w", enginerr.ErrStoreIO, err)
	}
	return nil
}

// Search delegates to the search engine's scored substring/fuzzy match.
func (e *Engine) Search(ctx context.Context, query string) ([]search.Item, error) {
	return e.search.Search(ctx, query)
}

// Filter delegates to the search engine's exact-field match.
func (e *Engine) Filter(ctx context.Context, field, value string) ([]search.Item, error) {
	return e.search.Filter(ctx, field, value)
}

// ImportDir synchronously scans a directory and imports recognized
// audio files, returning the counts. The watch-driven /import/request
// path is for asynchronous front ends; this is the in-process shortcut
// used by the CLI and tests.
func (e *Engine) ImportDir(ctx context.Context, dir string) (imported, skipped int, err error) {
	res := e.importer.ScanDirectory(ctx, dir)
	if len(res.Errors) > 0 {
		return res.Imported, res.Skipped, fmt.Errorf("engine: import dir: %s", strings.Join(res.Errors, "; "))
	}
	return res.Imported, res.Skipped, nil
}

// ImportFile synchronously imports a single file.
func (e *Engine) ImportFile(ctx context.Context, path string) (bool, error) {
	return e.importer.ImportFile(ctx, path)
}

// AlbumArt returns the raw bytes and mime type for /library/<id>/art,
// i.e. /art/<id>.
func (e *Engine) AlbumArt(ctx context.Context, id string) (data []byte, mimeType string, ok bool, err error) {
	rec, ok, err := e.st.Get(ctx, store.ArtPath(id))
	if err != nil || !ok || rec.Deleted() {
		return nil, "", false, err
	}
	var doc struct {
		Data     string `json:"data"`
		MimeType string `json:"mime_type"`
	}
	if err := json.Unmarshal(rec.Data, &doc); err != nil {
		return nil, "", false, err
	}
	raw, err := base64.StdEncoding.DecodeString(doc.Data)
	if err != nil {
		return nil, "", false, err
	}
	return raw, doc.MimeType, true, nil
}

// Playlist mirrors a /playlists/<id> document.
type Playlist struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Items     []string `json:"items"`
	CreatedMs int64    `json:"created_ms"`
}

// CreatePlaylist writes a new /playlists/<id> document and returns its id.
func (e *Engine) CreatePlaylist(ctx context.Context, name string, items []string) (string, error) {
	id := uuid.NewString()
	pl := Playlist{ID: id, Name: name, Items: items, CreatedMs: nowEpochMs()}
	if _, err := e.st.Put(ctx, store.PlaylistPath(id), pl); err != nil {
		return "", fmt.Errorf("%w: %w", enginerr.ErrStoreIO, err)
	}
	return id, nil
}

// RenamePlaylist read-modify-writes a playlist's name field.
func (e *Engine) RenamePlaylist(ctx context.Context, id, name string) error {
	rec, ok, err := e.st.Get(ctx, store.PlaylistPath(id))
	if err != nil {
		return fmt.Errorf("%w: %w", enginerr.ErrStoreIO, err)
	}
	if !ok || rec.Deleted() {
		return fmt.Errorf("%w: playlist %q", enginerr.ErrNotFound, id)
	}
	var pl Playlist
	if err := json.Unmarshal(rec.Data, &pl); err != nil {
		return err
	}
	pl.Name = name
	_, err = e.st.Put(ctx, store.PlaylistPath(id), pl)
	return err
}

// DeletePlaylist soft-deletes a playlist.
func (e *Engine) DeletePlaylist(ctx context.Context, id string) error {
	rec, ok, err := e.st.Get(ctx, store.PlaylistPath(id))
	if err != nil {
		return fmt.Errorf("%w: %w", enginerr.ErrStoreIO, err)
	}
	if !ok {
		return nil
	}
	var doc map[string]any
	if err := json.Unmarshal(rec.Data, &doc); err != nil {
		doc = map[string]any{}
	}
	meta, _ := doc["metadata"].(map[string]any)
	if meta == nil {
		meta = map[string]any{}
	}
	meta["deleted"] = true
	doc["metadata"] = meta
	_, err = e.st.Put(ctx, store.PlaylistPath(id), doc)
	return err
}

// Playlists returns every non-deleted playlist.
func (e *Engine) Playlists(ctx context.Context) ([]Playlist, error) {
	paths, err := e.st.List(ctx, store.PlaylistPrefix)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", enginerr.ErrStoreIO, err)
	}
	out := make([]Playlist, 0, len(paths))
	for _, p := range paths {
		rec, ok, err := e.st.Get(ctx, p)
		if err != nil || !ok || rec.Deleted() {
			continue
		}
		var pl Playlist
		if json.Unmarshal(rec.Data, &pl) == nil {
			out = append(out, pl)
		}
	}
	return out, nil
}

// HistoryEntry mirrors a /history/<epoch_ms> document.
type HistoryEntry struct {
	MediaID          string `json:"media_id"`
	PlayedAtMs       int64  `json:"played_at_ms"`
	DurationPlayedMs int64  `json:"duration_played_ms"`
}

// History returns the most recent play-history entries, newest first,
// bounded by limit (0 means unbounded).
func (e *Engine) History(ctx context.Context, limit int) ([]HistoryEntry, error) {
	paths, err := e.st.List(ctx, store.HistoryPrefix)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", enginerr.ErrStoreIO, err)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(paths)))

	out := make([]HistoryEntry, 0, len(paths))
	for _, p := range paths {
		rec, ok, err := e.st.Get(ctx, p)
		if err != nil || !ok {
			continue
		}
		var h HistoryEntry
		if json.Unmarshal(rec.Data, &h) == nil {
			out = append(out, h)
		}
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// MediaStats mirrors a /stats/<id> document.
type MediaStats struct {
	PlayCount     int64 `json:"play_count"`
	TotalPlayedMs int64 `json:"total_played_ms"`
	LastPlayedMs  int64 `json:"last_played_ms"`
}

// Stats returns the play statistics for a media id, if any.
func (e *Engine) Stats(ctx context.Context, id string) (MediaStats, bool, error) {
	rec, ok, err := e.st.Get(ctx, store.StatsPath(id))
	if err != nil || !ok {
		return MediaStats{}, ok, err
	}
	var s MediaStats
	if err := json.Unmarshal(rec.Data, &s); err != nil {
		return MediaStats{}, false, err
	}
	return s, true, nil
}

// TopPlayed returns up to limit media ids ordered by descending play_count.
func (e *Engine) TopPlayed(ctx context.Context, limit int) ([]string, error) {
	paths, err := e.st.List(ctx, store.StatsPrefix)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", enginerr.ErrStoreIO, err)
	}

	type entry struct {
		id    string
		count int64
	}
	entries := make([]entry, 0, len(paths))
	for _, p := range paths {
		rec, ok, err := e.st.Get(ctx, p)
		if err != nil || !ok {
			continue
		}
		var s MediaStats
		if json.Unmarshal(rec.Data, &s) != nil {
			continue
		}
		id := strings.TrimPrefix(p, store.StatsPrefix)
		entries = append(entries, entry{id: id, count: s.PlayCount})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].count != entries[j].count {
			return entries[i].count > entries[j].count
		}
		return entries[i].id < entries[j].id
	})

	out := make([]string, 0, len(entries))
	for _, ent := range entries {
		out = append(out, ent.id)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}
