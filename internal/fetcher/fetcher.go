// Package fetcher downloads one URL at a time into the staging directory,
// writing the body and its provenance metadata as sibling files.
package fetcher

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/Kolo-Naukowe-Data-Science-PW/Chatbot-MiNI/internal/crawler"
)

// DefaultUserAgent identifies the crawler to the department site.
const DefaultUserAgent = "Mozilla/5.0 (compatible; MiNI-Chatbot-Crawler/1.0; +https://ww2.mini.pw.edu.pl/)"

// Waiter blocks until a request to rawURL may proceed.
type Waiter interface {
	Wait(ctx context.Context, rawURL string) error
}

// Config controls request headers.
type Config struct {
	UserAgent string
}

// Option customises a Fetcher.
type Option func(*Fetcher)

// WithRateLimiter paces requests through w.
func WithRateLimiter(w Waiter) Option {
	return func(f *Fetcher) { f.limiter = w }
}

// WithRobots consults policy before every request.
func WithRobots(policy crawler.RobotsPolicy) Option {
	return func(f *Fetcher) { f.robots = policy }
}

// Fetcher implements crawler.Fetcher over a shared Session.
type Fetcher struct {
	client  *http.Client
	cfg     Config
	limiter Waiter
	robots  crawler.RobotsPolicy
	logger  *zap.Logger
}

// New builds a Fetcher that issues requests through session.
func New(session *Session, cfg Config, logger *zap.Logger, opts ...Option) *Fetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	f := &Fetcher{
		client: session.Client(),
		cfg:    cfg,
		logger: logger,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch downloads rawURL into outputDir. Network failures, non-2xx responses
// and image responses are logged and yield a nil record with a nil error; an
// error is only returned when outputDir is unusable.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string, outputDir string) (*crawler.FetchRecord, error) {
	if outputDir == "" {
		return nil, errors.New("fetcher: output dir is required")
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	logger := f.logger.With(zap.String("url", rawURL))

	if f.robots != nil && !f.robots.Allowed(ctx, rawURL) {
		logger.Info("disallowed by robots.txt")
		return nil, nil
	}
	if f.limiter != nil {
		if err := f.limiter.Wait(ctx, rawURL); err != nil {
			logger.Warn("rate limiter aborted request", zap.Error(err))
			return nil, nil
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		logger.Warn("build request failed", zap.Error(err))
		return nil, nil
	}
	req.Header.Set("User-Agent", f.cfg.UserAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		logger.Warn("request failed", zap.Error(err))
		return nil, nil
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			logger.Debug("close response body", zap.Error(cerr))
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		logger.Warn("unexpected status", zap.Int("status", resp.StatusCode))
		return nil, nil
	}
	contentType := resp.Header.Get("Content-Type")
	if IsImage(contentType) {
		logger.Info("skipping image response", zap.String("content_type", contentType))
		return nil, nil
	}

	name := crawler.SanitizeFilename(rawURL)
	record := &crawler.FetchRecord{
		ContentPath:  filepath.Join(outputDir, name+Extension(contentType, rawURL)),
		MetadataPath: filepath.Join(outputDir, name+crawler.MetadataExt),
		Metadata: crawler.Metadata{
			SourceURL:        rawURL,
			ContentType:      contentType,
			OriginalFilename: crawler.OriginalFilename(rawURL),
		},
	}

	written, err := writeAtomic(record.ContentPath, resp.Body)
	if err != nil {
		logger.Warn("write content failed", zap.String("path", record.ContentPath), zap.Error(err))
		return nil, nil
	}
	meta, err := json.MarshalIndent(record.Metadata, "", "  ")
	if err != nil {
		logger.Error("encode metadata failed", zap.Error(err))
		f.discard(record.ContentPath)
		return nil, nil
	}
	if _, err := writeAtomic(record.MetadataPath, bytes.NewReader(meta)); err != nil {
		logger.Warn("write metadata failed", zap.String("path", record.MetadataPath), zap.Error(err))
		f.discard(record.ContentPath)
		return nil, nil
	}

	logger.Debug("fetched",
		zap.String("path", record.ContentPath),
		zap.String("content_type", contentType),
		zap.Int64("bytes", written),
	)
	return record, nil
}

// discard removes a content file whose metadata could not be written so that
// no half record is left behind.
func (f *Fetcher) discard(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		f.logger.Warn("remove orphaned content", zap.String("path", path), zap.Error(err))
	}
}

// writeAtomic streams r into a temp file next to dest and renames it into
// place, so dest is either absent or complete.
func writeAtomic(dest string, r io.Reader) (int64, error) {
	tmp, err := os.CreateTemp(filepath.Dir(dest), ".fetch-*.part")
	if err != nil {
		return 0, fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() {
		_ = os.Remove(tmpName)
	}

	n, err := io.Copy(tmp, r)
	if err != nil {
		_ = tmp.Close()
		cleanup()
		return n, fmt.Errorf("stream body: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return n, fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, dest); err != nil {
		cleanup()
		return n, fmt.Errorf("rename into place: %w", err)
	}
	return n, nil
}
