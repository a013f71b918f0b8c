// Package store implements the hierarchical JSON-document key-value store
// every engine component talks to. Documents are path-addressed JSON
// blobs; soft-delete is expressed as a metadata.deleted=true field inside
// the document itself, matching the convention the rest of this codebase
// uses for mirrored state.
package store

import (
	"context"
	"encoding/json"
)

// Record is one JSON document at a path, plus the store's own bookkeeping.
type Record struct {
	Path      string          `json:"path"`
	Data      json.RawMessage `json:"data"`
	UpdatedAt int64           `json:"updated_at"`
}

type metadataEnvelope struct {
	Metadata struct {
		Deleted bool `json:"deleted"`
	} `json:"metadata"`
}

// Deleted reports whether this record carries metadata.deleted=true.
func (r Record) Deleted() bool {
	var env metadataEnvelope
	if len(r.Data) == 0 {
		return false
	}
	_ = json.Unmarshal(r.Data, &env)
	return env.Metadata.Deleted
}

// IsShutdownSentinel reports whether this record is the synthetic
// wake-up record a watcher receives when its store is closed.
func (r Record) IsShutdownSentinel() bool {
	return r.Path == shutdownSentinelPath
}

const shutdownSentinelPath = "\x00shutdown"

// Store is the engine's sole dependency on persistence: get, put,
// list-by-prefix, and watch.
type Store interface {
	// Get fetches the record at path, or ok=false if absent.
	Get(ctx context.Context, path string) (rec Record, ok bool, err error)
	// Put marshals data to JSON and creates or replaces the document at
	// path. If data is already a json.RawMessage or []byte it is used
	// verbatim.
	Put(ctx context.Context, path string, data any) (Record, error)
	// PutRecord writes back a previously-fetched record verbatim,
	// preserving whatever metadata it carries.
	PutRecord(ctx context.Context, rec Record) error
	// List returns every non-deleted path with the given prefix, ordered
	// lexically.
	List(ctx context.Context, prefix string) ([]string, error)
	// Watch returns a channel of records changed at or under
	// pathOrPrefix, plus a cancel function. The channel is closed after
	// cancel is called or the store itself is closed. On close the store
	// first offers a shutdown-sentinel record without blocking; it is
	// dropped if the channel's buffer is full.
	Watch(ctx context.Context, pathOrPrefix string) (<-chan Record, func(), error)
	// Close stops background watchers and releases the backing database.
	Close() error
}

func marshal(data any) (json.RawMessage, error) {
	switch v := data.(type) {
	case json.RawMessage:
		return v, nil
	case []byte:
		return json.RawMessage(v), nil
	default:
		b, err := json.Marshal(data)
		if err != nil {
			return nil, err
		}
		return b, nil
	}
}
