package engine

import (
	"context"
	"encoding/json"

	"github.com/sonora-audio/sonora/internal/store"
)

// importRequest mirrors the /import/request document: either dir or
// file is set, never both.
type importRequest struct {
	Dir      string `json:"dir,omitempty"`
	File     string `json:"file,omitempty"`
	Shutdown bool   `json:"shutdown,omitempty"`
}

// importWatchLoop watches /import/request and drives the importer,
// publishing progress and the final result to /import/status.
func (e *Engine) importWatchLoop(ctx context.Context) {
	defer e.wg.Done()

	ch, cancel, err := e.st.Watch(ctx, store.ImportRequest)
	if err != nil {
		e.logf("import watch failed to start: %v", err)
		return
	}
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return
		case rec, ok := <-ch:
			if !ok {
				return
			}
			if rec.IsShutdownSentinel() {
				return
			}
			e.handleImportRecord(context.Background(), rec)
		}
	}
}

func (e *Engine) handleImportRecord(ctx context.Context, rec store.Record) {
	defer func() {
		if r := recover(); r != nil {
			e.logf("importer: recovered from panic handling request: %v", r)
		}
	}()

	var req importRequest
	if err := json.Unmarshal(rec.Data, &req); err != nil {
		e.logf("importer: invalid /import/request document: %v", err)
		return
	}
	if req.Shutdown {
		return
	}

	e.writeImportStatus(ctx, map[string]any{"scanning": true, "dir": req.Dir})

	switch {
	case req.Dir != "":
		res := e.importer.ScanDirectory(ctx, req.Dir)
		e.writeImportStatus(ctx, map[string]any{
			"scanning": false,
			"dir":      req.Dir,
			"imported": res.Imported,
			"skipped":  res.Skipped,
			"errors":   res.Errors,
		})
	case req.File != "":
		imported, err := e.importer.ImportFile(ctx, req.File)
		status := map[string]any{"scanning": false, "file": req.File, "imported": imported}
		if err != nil {
			status["error"] = err.Error()
		}
		e.writeImportStatus(ctx, status)
	default:
		e.writeImportStatus(ctx, map[string]any{"scanning": false, "error": "empty import request"})
	}
}

func (e *Engine) writeImportStatus(ctx context.Context, status map[string]any) {
	if _, err := e.st.Put(ctx, store.ImportStatus, status); err != nil {
		e.logf("importer: status write failed: %v", err)
	}
}
