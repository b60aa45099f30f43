// Package gcs provides durable record storage backed by Google Cloud Storage.
package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"cloud.google.com/go/storage"
	"go.uber.org/zap"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"

	"github.com/Kolo-Naukowe-Data-Science-PW/Chatbot-MiNI/internal/crawler"
)

// Config captures the bucket layout.
type Config struct {
	Bucket string
	// Prefix is prepended to every object name, e.g. "final_storage".
	Prefix string
	// StagingDir is scanned alongside the bucket when resuming. Optional.
	StagingDir string
}

// objectStore is the subset of bucket operations the Store relies on.
type objectStore interface {
	List(ctx context.Context, prefix string) ([]string, error)
	Open(ctx context.Context, name string) (io.ReadCloser, error)
	// CreateIfAbsent uploads r unless the object already exists, reporting
	// whether it was created.
	CreateIfAbsent(ctx context.Context, name, contentType string, r io.Reader) (bool, error)
}

// Store promotes staged files into a bucket without overwriting existing
// objects.
type Store struct {
	objects objectStore
	bucket  string
	prefix  string
	staging crawler.DirRecords
	logger  *zap.Logger
}

// New creates a GCS-backed store.
func New(client *storage.Client, cfg Config, logger *zap.Logger) (*Store, error) {
	if client == nil {
		return nil, fmt.Errorf("storage client is required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket name is required")
	}
	return newStore(&bucketObjects{bucket: client.Bucket(cfg.Bucket)}, cfg, logger), nil
}

func newStore(objects objectStore, cfg Config, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	prefix := strings.Trim(cfg.Prefix, "/")
	if prefix != "" {
		prefix += "/"
	}
	return &Store{
		objects: objects,
		bucket:  cfg.Bucket,
		prefix:  prefix,
		staging: crawler.DirRecords{Dirs: []string{cfg.StagingDir}, Logger: logger},
		logger:  logger,
	}
}

// SourceURLs implements crawler.RecordStore over the bucket prefix and the
// staging directory.
func (s *Store) SourceURLs(ctx context.Context) ([]string, error) {
	names, err := s.objects.List(ctx, s.prefix)
	if err != nil {
		return nil, fmt.Errorf("list objects: %w", err)
	}
	var urls []string
	for _, name := range names {
		if !crawler.IsMetadataFile(name) {
			continue
		}
		meta, err := s.readMetadata(ctx, name)
		if err != nil {
			s.logger.Warn("skipping unreadable metadata object", zap.String("object", name), zap.Error(err))
			continue
		}
		if meta.SourceURL != "" {
			urls = append(urls, meta.SourceURL)
		}
	}
	staged, err := s.staging.SourceURLs(ctx)
	if err != nil {
		return nil, fmt.Errorf("scan staging records: %w", err)
	}
	return append(urls, staged...), nil
}

func (s *Store) readMetadata(ctx context.Context, name string) (crawler.Metadata, error) {
	r, err := s.objects.Open(ctx, name)
	if err != nil {
		return crawler.Metadata{}, err
	}
	defer func() { _ = r.Close() }()
	return crawler.DecodeMetadata(r)
}

// Promote uploads each path unless an object with the same name exists.
// Uploaded files are removed from staging; it returns gs:// URIs of the
// objects created.
func (s *Store) Promote(ctx context.Context, paths []string) ([]string, error) {
	created := make([]string, 0, len(paths))
	var errs []error
	for _, src := range paths {
		name := s.prefix + filepath.Base(src)
		ok, err := s.upload(ctx, src, name)
		if err != nil {
			errs = append(errs, fmt.Errorf("promote %s: %w", src, err))
			continue
		}
		if !ok {
			s.logger.Debug("object exists; skipping", zap.String("object", name))
			continue
		}
		if err := os.Remove(src); err != nil {
			s.logger.Warn("remove promoted staging file", zap.String("path", src), zap.Error(err))
		}
		created = append(created, s.URI(name))
	}
	return created, errors.Join(errs...)
}

func (s *Store) upload(ctx context.Context, src, name string) (bool, error) {
	f, err := os.Open(src)
	if err != nil {
		return false, fmt.Errorf("open staged file: %w", err)
	}
	defer func() { _ = f.Close() }()
	return s.objects.CreateIfAbsent(ctx, name, contentTypeFor(src), f)
}

// URI returns the gs:// URI of an object.
func (s *Store) URI(name string) string {
	return fmt.Sprintf("gs://%s/%s", s.bucket, name)
}

func contentTypeFor(p string) string {
	ext := strings.ToLower(path.Ext(p))
	switch ext {
	case crawler.CategoryHTML:
		return "text/html; charset=utf-8"
	case crawler.MetadataExt:
		return "application/json"
	}
	if ct := mime.TypeByExtension(ext); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

type bucketObjects struct {
	bucket *storage.BucketHandle
}

func (b *bucketObjects) List(ctx context.Context, prefix string) ([]string, error) {
	it := b.bucket.Objects(ctx, &storage.Query{Prefix: prefix})
	var names []string
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			return names, nil
		}
		if err != nil {
			return nil, fmt.Errorf("iterate objects: %w", err)
		}
		names = append(names, attrs.Name)
	}
}

func (b *bucketObjects) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	r, err := b.bucket.Object(name).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("open object %s: %w", name, err)
	}
	return r, nil
}

func (b *bucketObjects) CreateIfAbsent(ctx context.Context, name, contentType string, r io.Reader) (bool, error) {
	writer := b.bucket.Object(name).If(storage.Conditions{DoesNotExist: true}).NewWriter(ctx)
	writer.ContentType = contentType
	if _, err := io.Copy(writer, r); err != nil {
		closeErr := writer.Close()
		if isPreconditionFailed(closeErr) {
			return false, nil
		}
		if closeErr != nil {
			return false, fmt.Errorf("copy object: %w (close writer: %v)", err, closeErr)
		}
		return false, fmt.Errorf("copy object: %w", err)
	}
	if err := writer.Close(); err != nil {
		if isPreconditionFailed(err) {
			return false, nil
		}
		return false, fmt.Errorf("close writer: %w", err)
	}
	return true, nil
}

func isPreconditionFailed(err error) bool {
	var gerr *googleapi.Error
	return errors.As(err, &gerr) && gerr.Code == http.StatusPreconditionFailed
}
