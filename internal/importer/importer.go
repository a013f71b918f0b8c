// Package importer scans directories for media files, extracts audio
// metadata, and writes /library and /art documents. A file's library id
// is derived from its path, so repeated scans of the same tree dedupe
// rather than create duplicate entries.
package importer

import (
	"context"
	"encoding/base64"
	"fmt"
	"hash/fnv"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/dhowden/tag"
	"golang.org/x/time/rate"

	"github.com/sonora-audio/sonora/internal/enginerr"
	"github.com/sonora-audio/sonora/internal/store"
)

const maxScanDepthHardCap = 256

var audioExtensions = map[string]bool{
	".mp3": true, ".flac": true, ".m4a": true, ".aac": true, ".ogg": true,
	".wav": true, ".opus": true, ".wma": true, ".aiff": true, ".alac": true,
}

// Result reports the outcome of a directory or single-file import.
type Result struct {
	Imported int      `json:"imported"`
	Skipped  int      `json:"skipped"`
	Errors   []string `json:"errors,omitempty"`
}

// Importer scans the filesystem for recognized audio files and writes
// them into the store's library.
type Importer struct {
	st            store.Store
	maxScanDepth  int
	limiter       *rate.Limiter
	debug         bool
}

// New constructs an Importer. maxScanDepth bounds directory recursion;
// limiter throttles the rate at which files are classified and read,
// protecting the store and disk from a very large tree.
func New(st store.Store, maxScanDepth int, limiter *rate.Limiter) *Importer {
	if maxScanDepth <= 0 || maxScanDepth > maxScanDepthHardCap {
		maxScanDepth = maxScanDepthHardCap
	}
	return &Importer{st: st, maxScanDepth: maxScanDepth, limiter: limiter}
}

func (im *Importer) logf(format string, args ...any) {
	if im.debug {
		log.Printf("[IMPORT] "+format, args...)
	}
}

// ImportFile imports a single file, returning true if it was newly
// written (false if skipped: unsupported extension, missing file, or
// already present).
func (im *Importer) ImportFile(ctx context.Context, path string) (bool, error) {
	if im.limiter != nil {
		if err := im.limiter.Wait(ctx); err != nil {
			return false, err
		}
	}

	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return false, nil
	}

	ext := strings.ToLower(filepath.Ext(path))
	if !audioExtensions[ext] {
		return false, nil
	}

	id := stableID(path)
	libPath := store.LibraryPath(id)

	if _, ok, err := im.st.Get(ctx, libPath); err != nil {
		return false, fmt.Errorf("%w: %w", enginerr.ErrStoreIO, err)
	} else if ok {
		return false, nil
	}

	meta, art, artMime := im.readMetadata(path)

	item := map[string]any{
		"id":     id,
		"path":   path,
		"format": strings.TrimPrefix(ext, "."),
		"title":  meta.title,
	}
	if meta.artist != "" {
		item["artist"] = meta.artist
	}
	if meta.album != "" {
		item["album"] = meta.album
	}
	if meta.genre != "" {
		item["genre"] = meta.genre
	}
	if meta.durationMs > 0 {
		item["duration_ms"] = meta.durationMs
	}

	if _, err := im.st.Put(ctx, libPath, item); err != nil {
		return false, fmt.Errorf("%w: %w", enginerr.ErrStoreIO, err)
	}

	if len(art) > 0 {
		artDoc := map[string]any{
			"data":      base64.StdEncoding.EncodeToString(art),
			"mime_type": artMime,
		}
		if _, err := im.st.Put(ctx, store.ArtPath(id), artDoc); err != nil {
			im.logf("art write failed for %s: %v", path, err)
		}
	}

	return true, nil
}

// ScanDirectory walks dirPath recursively, importing every recognized
// audio file found, bounded by the Importer's max scan depth and
// avoiding directory-symlink loops.
func (im *Importer) ScanDirectory(ctx context.Context, dirPath string) Result {
	var res Result
	im.scanDirAt(ctx, dirPath, 0, &res)
	return res
}

func (im *Importer) scanDirAt(ctx context.Context, dirPath string, depth int, res *Result) {
	if depth > im.maxScanDepth {
		im.logf("scan depth limit reached at %s", dirPath)
		return
	}
	if ctx.Err() != nil {
		return
	}

	entries, err := os.ReadDir(dirPath)
	if err != nil {
		res.Errors = append(res.Errors, fmt.Sprintf("%s: %v", dirPath, err))
		return
	}

	for _, entry := range entries {
		full := filepath.Join(dirPath, entry.Name())

		if entry.Type()&os.ModeSymlink != 0 {
			target, err := os.Stat(full)
			if err != nil {
				continue
			}
			if target.IsDir() {
				continue // avoid directory-symlink loops
			}
			if imported, err := im.ImportFile(ctx, full); err != nil {
				res.Errors = append(res.Errors, fmt.Sprintf("%s: %v", full, err))
			} else if imported {
				res.Imported++
			} else {
				res.Skipped++
			}
			continue
		}

		if entry.IsDir() {
			im.scanDirAt(ctx, full, depth+1, res)
			continue
		}

		imported, err := im.ImportFile(ctx, full)
		if err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("%s: %v", full, err))
			continue
		}
		if imported {
			res.Imported++
		} else {
			res.Skipped++
		}
	}
}

type audioMeta struct {
	title      string
	artist     string
	album      string
	genre      string
	durationMs int64
}

// readMetadata extracts tag metadata and embedded art, falling back to
// the filename stem for the title when tags are unreadable (per
// ErrMetadataRead — a missing or corrupt tag is not fatal to import).
func (im *Importer) readMetadata(path string) (audioMeta, []byte, string) {
	fallback := audioMeta{title: strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))}

	f, err := os.Open(path)
	if err != nil {
		im.logf("%v: %s: %v", enginerr.ErrMetadataRead, path, err)
		return fallback, nil, ""
	}
	defer f.Close()

	m, err := tag.ReadFrom(f)
	if err != nil {
		im.logf("%v: %s: %v", enginerr.ErrMetadataRead, path, err)
		return fallback, nil, ""
	}

	meta := audioMeta{title: fallback.title, artist: m.Artist(), album: m.Album(), genre: m.Genre()}
	if m.Title() != "" {
		meta.title = m.Title()
	}

	var art []byte
	var mime string
	if pic := m.Picture(); pic != nil {
		art = pic.Data
		mime = pic.MIMEType
		if mime == "" {
			mime = "image/jpeg"
		}
	}
	return meta, art, mime
}

// stableID derives a deterministic library id from a file's path using
// FNV-1a, so repeated scans of the same tree always resolve to the same
// document.
func stableID(path string) string {
	h := fnv.New64a()
	_, _ = h.Write([]byte(path))
	return fmt.Sprintf("%s_%016x", sanitizeID(filepath.Base(path)), h.Sum64())
}

func sanitizeID(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	return b.String()
}
