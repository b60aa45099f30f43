package crawler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// DecodeMetadata parses one provenance file.
func DecodeMetadata(r io.Reader) (Metadata, error) {
	var meta Metadata
	if err := json.NewDecoder(r).Decode(&meta); err != nil {
		return Metadata{}, fmt.Errorf("decode metadata: %w", err)
	}
	return meta, nil
}

// ReadMetadataFile opens and parses the provenance file at path.
func ReadMetadataFile(path string) (Metadata, error) {
	f, err := os.Open(path)
	if err != nil {
		return Metadata{}, fmt.Errorf("open metadata: %w", err)
	}
	defer func() { _ = f.Close() }()
	return DecodeMetadata(f)
}

// IsMetadataFile reports whether name is a provenance file.
func IsMetadataFile(name string) bool {
	return strings.EqualFold(filepath.Ext(name), MetadataExt)
}

// IsHiddenFile reports whether name is a dot file, such as the frontier ledger
// or an in-progress download.
func IsHiddenFile(name string) bool {
	return strings.HasPrefix(name, ".")
}

// DirRecords scans directories of persisted records. Missing directories are
// treated as empty.
type DirRecords struct {
	Dirs   []string
	Logger *zap.Logger
}

// SourceURLs implements RecordStore. Unreadable or corrupt metadata files are
// logged and skipped.
func (d DirRecords) SourceURLs(ctx context.Context) ([]string, error) {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	var urls []string
	for _, dir := range d.Dirs {
		if dir == "" {
			continue
		}
		entries, err := os.ReadDir(dir)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", dir, err)
		}
		for _, entry := range entries {
			if err := ctx.Err(); err != nil {
				return nil, fmt.Errorf("scan records: %w", err)
			}
			if entry.IsDir() || IsHiddenFile(entry.Name()) || !IsMetadataFile(entry.Name()) {
				continue
			}
			path := filepath.Join(dir, entry.Name())
			meta, err := ReadMetadataFile(path)
			if err != nil {
				logger.Warn("skipping unreadable metadata", zap.String("path", path), zap.Error(err))
				continue
			}
			if meta.SourceURL != "" {
				urls = append(urls, meta.SourceURL)
			}
		}
	}
	return urls, nil
}
