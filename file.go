package pdfstow

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// CreateFile archives files into a container at path.
//
// The container is written atomically (temp file + rename), so a failed
// run never leaves a truncated archive behind. Parent directories are
// created as needed.
func CreateFile(ctx context.Context, path string, files []Source, opts ...CreateOption) (*CreateStats, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".pdfstow-*")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	stats, err := Create(ctx, tmp, files, opts...)
	if err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return nil, err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("close %s: %w", tmpPath, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return nil, err
	}
	return stats, nil
}

// CreateDirFile archives every regular file under dir into a container
// at path, with CreateFile's atomic-write behavior.
func CreateDirFile(ctx context.Context, path, dir string, opts ...CreateOption) (*CreateStats, error) {
	files, err := WalkSources(dir)
	if err != nil {
		return nil, err
	}
	return CreateFile(ctx, path, files, opts...)
}

// DecodeFile loads and decodes the container at path. The whole file is
// read into memory; stream payloads are still materialized lazily.
func DecodeFile(path string) (*Archive, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Decode(data)
}
