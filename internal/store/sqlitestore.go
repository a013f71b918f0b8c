package store

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	_ "modernc.org/sqlite"

	"github.com/sonora-audio/sonora/internal/enginerr"
)

// pollInterval matches the heartbeat's own cadence so a watcher never
// lags behind the state it is meant to mirror.
const pollInterval = 250 * time.Millisecond

// SQLiteStore backs Store with a single-file sqlite database, following
// this codebase's own connection-pool and pragma conventions: one
// connection, WAL mode, a generous busy timeout.
type SQLiteStore struct {
	db      *sql.DB
	debug   bool
	path    string
	watcher *fsnotify.Watcher

	mu        sync.Mutex
	closed    bool
	shutdownC chan struct{}
	watches   map[int]*watchHandle
	nextWatch int
}

type watchHandle struct {
	prefix   string
	lastSeen int64
	out      chan Record
	done     chan struct{}
}

// Open creates or opens the sqlite database at dbPath, enabling WAL mode
// if enableWAL is set, and starts the fsnotify watcher used to give
// Watch() a lower-latency wakeup than its poll ticker alone.
func Open(dbPath string, enableWAL bool, debug bool) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("store: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("store: %w: %w", enginerr.ErrStoreIO, err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	pragmas := []string{
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=30000",
		"PRAGMA cache_size=-64000",
		"PRAGMA synchronous=NORMAL",
	}
	if enableWAL {
		pragmas = append(pragmas, "PRAGMA journal_mode=WAL")
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("store: pragma %q: %w", p, err)
		}
	}

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS records (
		path TEXT PRIMARY KEY,
		data TEXT NOT NULL,
		deleted INTEGER NOT NULL DEFAULT 0,
		updated_at INTEGER NOT NULL
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: migrate: %w", err)
	}
	if _, err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_records_updated ON records(updated_at)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: migrate index: %w", err)
	}

	s := &SQLiteStore{
		db:        db,
		debug:     debug,
		path:      dbPath,
		shutdownC: make(chan struct{}),
		watches:   make(map[int]*watchHandle),
	}

	if w, err := fsnotify.NewWatcher(); err == nil {
		s.watcher = w
		_ = w.Add(filepath.Dir(dbPath))
		go s.fsnotifyLoop()
	} else if debug {
		log.Printf("[STORE] fsnotify unavailable, falling back to poll-only watch: %v", err)
	}

	if debug {
		log.Printf("[STORE] opened %s", dbPath)
	}

	return s, nil
}

func (s *SQLiteStore) fsnotifyLoop() {
	for {
		select {
		case <-s.shutdownC:
			return
		case ev, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if strings.Contains(ev.Name, filepath.Base(s.path)) {
				s.pollAll()
			}
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			if s.debug {
				log.Printf("[STORE] fsnotify error: %v", err)
			}
		}
	}
}

func (s *SQLiteStore) Get(ctx context.Context, path string) (Record, bool, error) {
	row := s.db.QueryRowContext(ctx, `SELECT path, data, updated_at FROM records WHERE path = ?`, path)
	var rec Record
	if err := row.Scan(&rec.Path, &rec.Data, &rec.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return Record{}, false, nil
		}
		return Record{}, false, fmt.Errorf("store get %s: %w: %w", path, enginerr.ErrStoreIO, err)
	}
	return rec, true, nil
}

func (s *SQLiteStore) Put(ctx context.Context, path string, data any) (Record, error) {
	raw, err := marshal(data)
	if err != nil {
		return Record{}, fmt.Errorf("store put %s: %w", path, err)
	}
	rec := Record{Path: path, Data: raw, UpdatedAt: time.Now().UnixNano()}
	if err := s.PutRecord(ctx, rec); err != nil {
		return Record{}, err
	}
	return rec, nil
}

func (s *SQLiteStore) PutRecord(ctx context.Context, rec Record) error {
	if rec.UpdatedAt == 0 {
		rec.UpdatedAt = time.Now().UnixNano()
	}
	deleted := 0
	if rec.Deleted() {
		deleted = 1
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO records(path, data, deleted, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET data=excluded.data, deleted=excluded.deleted, updated_at=excluded.updated_at
	`, rec.Path, string(rec.Data), deleted, rec.UpdatedAt)
	if err != nil {
		return fmt.Errorf("store put %s: %w: %w", rec.Path, enginerr.ErrStoreIO, err)
	}
	return nil
}

func (s *SQLiteStore) List(ctx context.Context, prefix string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT path FROM records WHERE path LIKE ? AND deleted = 0 ORDER BY path ASC`,
		escapeLike(prefix)+"%")
	if err != nil {
		return nil, fmt.Errorf("store list %s: %w: %w", prefix, enginerr.ErrStoreIO, err)
	}
	defer rows.Close()

	var paths []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("store list %s: %w", prefix, err)
		}
		paths = append(paths, p)
	}
	return paths, nil
}

func escapeLike(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "%", "\\%")
	s = strings.ReplaceAll(s, "_", "\\_")
	return s
}

func (s *SQLiteStore) Watch(ctx context.Context, pathOrPrefix string) (<-chan Record, func(), error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, nil, fmt.Errorf("store: closed")
	}
	id := s.nextWatch
	s.nextWatch++
	h := &watchHandle{
		prefix:   pathOrPrefix,
		lastSeen: time.Now().UnixNano(),
		out:      make(chan Record, 16),
		done:     make(chan struct{}),
	}
	s.watches[id] = h
	s.mu.Unlock()

	go s.watchLoop(id, h)

	cancel := func() {
		s.mu.Lock()
		if hh, ok := s.watches[id]; ok {
			close(hh.done)
			delete(s.watches, id)
		}
		s.mu.Unlock()
	}
	return h.out, cancel, nil
}

func (s *SQLiteStore) watchLoop(id int, h *watchHandle) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	defer close(h.out)

	poll := func() {
		recs, err := s.changedSince(h.prefix, h.lastSeen)
		if err != nil {
			if s.debug {
				log.Printf("[STORE] watch poll error: %v", err)
			}
			return
		}
		for _, r := range recs {
			if r.UpdatedAt > h.lastSeen {
				h.lastSeen = r.UpdatedAt
			}
			select {
			case h.out <- r:
			case <-h.done:
				return
			}
		}
	}

	for {
		select {
		case <-h.done:
			return
		case <-s.shutdownC:
			select {
			case h.out <- Record{Path: shutdownSentinelPath, UpdatedAt: time.Now().UnixNano()}:
			default:
			}
			return
		case <-ticker.C:
			poll()
		}
	}
}

func (s *SQLiteStore) pollAll() {
	s.mu.Lock()
	handles := make([]*watchHandle, 0, len(s.watches))
	for _, h := range s.watches {
		handles = append(handles, h)
	}
	s.mu.Unlock()

	for _, h := range handles {
		recs, err := s.changedSince(h.prefix, h.lastSeen)
		if err != nil {
			continue
		}
		for _, r := range recs {
			if r.UpdatedAt > h.lastSeen {
				h.lastSeen = r.UpdatedAt
			}
			select {
			case h.out <- r:
			default:
			}
		}
	}
}

func (s *SQLiteStore) changedSince(prefix string, since int64) ([]Record, error) {
	isExact := !strings.HasSuffix(prefix, "/")
	var rows *sql.Rows
	var err error
	if isExact {
		rows, err = s.db.Query(`SELECT path, data, updated_at FROM records WHERE path = ? AND updated_at > ? ORDER BY updated_at ASC`, prefix, since)
	} else {
		rows, err = s.db.Query(`SELECT path, data, updated_at FROM records WHERE path LIKE ? AND updated_at > ? ORDER BY updated_at ASC`, escapeLike(prefix)+"%", since)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.Path, &r.Data, &r.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.shutdownC)
	s.mu.Unlock()

	if s.watcher != nil {
		s.watcher.Close()
	}
	if s.debug {
		log.Printf("[STORE] closing %s", s.path)
	}
	return s.db.Close()
}
