package pdfstow

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/pdfstow/pdfstow/internal/pdf"
)

// Archive is a decoded container. It holds the parsed object graph
// read-only; file payloads are materialized one entry at a time.
type Archive struct {
	r       *pdf.Reader
	entries []FileEntry
}

// Decode parses a container and locates its archive catalog. The listing
// page is ignored entirely; the catalog stream is the only metadata the
// decoder trusts.
func Decode(data []byte) (*Archive, error) {
	r, err := pdf.NewReader(data)
	if err != nil {
		return nil, err
	}
	root, err := r.Root()
	if err != nil {
		return nil, err
	}

	ref, ok := root[catalogRootKey]
	if !ok {
		return nil, ErrMissingCatalog
	}
	obj, err := r.Resolve(ref)
	if err != nil {
		return nil, fmt.Errorf("locate catalog: %w", err)
	}
	s, ok := obj.(pdf.Stream)
	if !ok {
		return nil, fmt.Errorf("%w: catalog object is not a stream", ErrMalformed)
	}
	raw, err := r.StreamData(s)
	if err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	entries, err := unmarshalCatalog(raw)
	if err != nil {
		return nil, err
	}
	return &Archive{r: r, entries: entries}, nil
}

// Entries returns the catalog records in archive order.
func (a *Archive) Entries() []FileEntry {
	out := make([]FileEntry, len(a.entries))
	copy(out, a.entries)
	return out
}

// ReadFile materializes one entry's content. The decompressed byte count
// must match both the stream's recorded length and the catalog size, and
// the content must match the recorded digest when one is present.
func (a *Archive) ReadFile(e FileEntry) ([]byte, error) {
	obj, err := a.r.Get(e.streamID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", e.Path, err)
	}
	s, ok := obj.(pdf.Stream)
	if !ok {
		return nil, fmt.Errorf("%s: %w: object %s is not a stream", e.Path, ErrBrokenReference, e.streamID)
	}

	data, err := a.r.StreamData(s)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", e.Path, err)
	}

	if declared, ok := s.Dict["Length1"].(pdf.Integer); ok && int64(declared) != int64(len(data)) {
		return nil, fmt.Errorf("%s: %w: stream declares %d, inflated to %d", e.Path, ErrLengthMismatch, declared, len(data))
	}
	if int64(len(data)) != e.Size {
		return nil, fmt.Errorf("%s: %w: catalog records %d, inflated to %d", e.Path, ErrLengthMismatch, e.Size, len(data))
	}
	if e.Digest != "" {
		if err := e.Digest.Validate(); err != nil {
			return nil, fmt.Errorf("%s: %w: malformed digest %q", e.Path, ErrDigestMismatch, e.Digest)
		}
		if !e.Digest.Algorithm().Available() {
			return nil, fmt.Errorf("%s: %w: unavailable digest algorithm %q", e.Path, ErrDigestMismatch, e.Digest.Algorithm())
		}
		if e.Digest.Algorithm().FromBytes(data) != e.Digest {
			return nil, fmt.Errorf("%s: %w", e.Path, ErrDigestMismatch)
		}
	}
	return data, nil
}

// ExtractAll restores every entry under destDir, creating parent
// directories as needed and applying recorded modification times.
//
// A failed entry does not stop the run: remaining entries are still
// restored, and the failures come back joined into one error alongside
// the stats. Paths are written exactly as recorded; callers handling
// untrusted containers must sandbox destDir themselves.
func (a *Archive) ExtractAll(ctx context.Context, destDir string, opts ...ExtractOption) (*ExtractStats, error) {
	cfg := extractConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}
	logger := cfg.log()
	logger.Info("extracting archive", "files", len(a.entries), "dest", destDir)

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return nil, fmt.Errorf("create destination directory: %w", err)
	}

	var written, totalBytes atomic.Int64
	failures := make([]error, len(a.entries))

	restore := func(e FileEntry) error {
		logger.Info("extracting file", "path", e.Path)
		n, err := a.restoreEntry(e, destDir, cfg.preserve())
		if err != nil {
			return err
		}
		written.Add(1)
		totalBytes.Add(n)
		return nil
	}

	if cfg.workerCount() <= 1 || len(a.entries) <= 1 {
		for i, e := range a.entries {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			failures[i] = restore(e)
		}
	} else {
		eg, gctx := errgroup.WithContext(ctx)
		eg.SetLimit(cfg.workerCount())
		for i, e := range a.entries {
			i, e := i, e
			eg.Go(func() error {
				// Per-entry failures are collected, not returned: one bad
				// entry must not cancel the rest of the batch.
				if err := gctx.Err(); err != nil {
					return err
				}
				failures[i] = restore(e)
				return nil
			})
		}
		if err := eg.Wait(); err != nil {
			return nil, err
		}
	}

	failed := 0
	for _, err := range failures {
		if err != nil {
			failed++
			logger.Error("entry failed", "error", err)
		}
	}

	stats := &ExtractStats{
		FileCount:  int(written.Load()),
		TotalBytes: totalBytes.Load(),
		Failed:     failed,
	}
	logger.Info("extraction finished", "files", stats.FileCount, "failed", stats.Failed)
	return stats, errors.Join(failures...)
}

// restoreEntry writes one entry to disk and returns the byte count.
func (a *Archive) restoreEntry(e FileEntry, destDir string, preserveTimes bool) (int64, error) {
	data, err := a.ReadFile(e)
	if err != nil {
		return 0, err
	}

	target := filepath.Join(destDir, filepath.FromSlash(e.Path))
	if dir := filepath.Dir(target); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return 0, fmt.Errorf("%s: create parent directory: %w", e.Path, err)
		}
	}
	if err := os.WriteFile(target, data, 0o644); err != nil {
		return 0, fmt.Errorf("%s: %w", e.Path, err)
	}
	if preserveTimes && !e.ModTime.IsZero() {
		if err := os.Chtimes(target, e.ModTime, e.ModTime); err != nil {
			return 0, fmt.Errorf("%s: set modification time: %w", e.Path, err)
		}
	}
	return int64(len(data)), nil
}
