// Package local implements durable record storage on the local filesystem.
package local

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/Kolo-Naukowe-Data-Science-PW/Chatbot-MiNI/internal/crawler"
)

// Config captures the parameters for the local durable store.
type Config struct {
	// Dir is the durable directory files are promoted into.
	Dir string `mapstructure:"dir" yaml:"dir"`
	// StagingDir is scanned alongside Dir when resuming. Optional.
	StagingDir string `mapstructure:"staging_dir" yaml:"staging_dir"`
}

// Store promotes staged files into a directory without overwriting anything
// already there.
type Store struct {
	dir     string
	records crawler.DirRecords
	logger  *zap.Logger
}

// New creates the durable directory if needed and checks that it is writable.
func New(cfg Config, logger *zap.Logger) (*Store, error) {
	if strings.TrimSpace(cfg.Dir) == "" {
		return nil, fmt.Errorf("storage directory is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	info, err := os.Stat(cfg.Dir)
	switch {
	case errors.Is(err, os.ErrNotExist):
		if mkErr := os.MkdirAll(cfg.Dir, 0o750); mkErr != nil {
			return nil, fmt.Errorf("failed to create storage directory: %w", mkErr)
		}
	case err != nil:
		return nil, fmt.Errorf("failed to stat storage directory: %w", err)
	case !info.IsDir():
		return nil, fmt.Errorf("storage path %q is not a directory", cfg.Dir)
	}

	testFile := filepath.Join(cfg.Dir, ".writable_test")
	if err := os.WriteFile(testFile, []byte("test"), 0o600); err != nil {
		return nil, fmt.Errorf("storage directory is not writable: %w", err)
	}
	if err := os.Remove(testFile); err != nil {
		return nil, fmt.Errorf("failed to clean up test file: %w", err)
	}

	return &Store{
		dir:     cfg.Dir,
		records: crawler.DirRecords{Dirs: []string{cfg.Dir, cfg.StagingDir}, Logger: logger},
		logger:  logger,
	}, nil
}

// Dir returns the durable directory.
func (s *Store) Dir() string {
	return s.dir
}

// SourceURLs implements crawler.RecordStore over the durable and staging
// directories.
func (s *Store) SourceURLs(ctx context.Context) ([]string, error) {
	urls, err := s.records.SourceURLs(ctx)
	if err != nil {
		return nil, fmt.Errorf("scan local records: %w", err)
	}
	return urls, nil
}

// Promote moves each path into the durable directory unless a file with the
// same name already exists there, in which case the source is left in place.
// It returns the destinations that were written.
func (s *Store) Promote(ctx context.Context, paths []string) ([]string, error) {
	moved := make([]string, 0, len(paths))
	var errs []error
	for _, src := range paths {
		if err := ctx.Err(); err != nil {
			return moved, fmt.Errorf("promote: %w", err)
		}
		dest := filepath.Join(s.dir, filepath.Base(src))
		ok, err := moveNoClobber(src, dest)
		if err != nil {
			errs = append(errs, fmt.Errorf("promote %s: %w", src, err))
			continue
		}
		if !ok {
			s.logger.Debug("destination exists; skipping", zap.String("path", dest))
			continue
		}
		moved = append(moved, dest)
	}
	return moved, errors.Join(errs...)
}

// moveNoClobber hard-links src to dest, which fails if dest exists, and then
// removes src. When linking is impossible (another device, no hard link
// support) it copies into an exclusively created dest instead.
func moveNoClobber(src, dest string) (bool, error) {
	err := os.Link(src, dest)
	switch {
	case err == nil:
		if rmErr := os.Remove(src); rmErr != nil {
			return true, fmt.Errorf("remove staged file: %w", rmErr)
		}
		return true, nil
	case errors.Is(err, os.ErrExist):
		return false, nil
	case errors.Is(err, os.ErrNotExist):
		return false, fmt.Errorf("link: %w", err)
	}
	return copyExclusive(src, dest)
}

func copyExclusive(src, dest string) (bool, error) {
	in, err := os.Open(src)
	if err != nil {
		return false, fmt.Errorf("open staged file: %w", err)
	}
	defer func() { _ = in.Close() }()

	out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if errors.Is(err, os.ErrExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("create destination: %w", err)
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		_ = os.Remove(dest)
		return false, fmt.Errorf("copy: %w", err)
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(dest)
		return false, fmt.Errorf("close destination: %w", err)
	}
	if err := os.Remove(src); err != nil {
		return true, fmt.Errorf("remove staged file: %w", err)
	}
	return true, nil
}
