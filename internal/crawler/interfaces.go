package crawler

import (
	"context"
	"io"
	"time"
)

// Fetcher downloads a URL into outputDir. A nil record with a nil error means
// the URL failed or was rejected; the failure has already been logged.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string, outputDir string) (*FetchRecord, error)
}

// LinkExtractor mines same-domain candidate URLs from an HTML document.
type LinkExtractor interface {
	Extract(html io.Reader, baseURL string) map[string]struct{}
}

// RecordStore exposes the source URLs of FetchRecords already persisted, which
// is how a run resumes without a separate journal.
type RecordStore interface {
	SourceURLs(ctx context.Context) ([]string, error)
}

// Promoter moves freshly fetched files into durable storage without
// overwriting existing content and returns the destinations actually written.
type Promoter interface {
	Promote(ctx context.Context, paths []string) ([]string, error)
}

// Storage is a durable store that can both be scanned and promoted into.
type Storage interface {
	RecordStore
	Promoter
}

// PromotionEvent notifies downstream ingestion about a newly promoted file.
type PromotionEvent struct {
	RunID       string `json:"run_id"`
	SourceURL   string `json:"source_url"`
	Object      string `json:"object"`
	ContentType string `json:"content_type"`
}

// Publisher pushes promotion events to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, event PromotionEvent) (string, error)
}

// RunStore keeps the history of crawl runs.
type RunStore interface {
	RecordRun(ctx context.Context, summary RunSummary) error
	ListRuns(ctx context.Context, limit int) ([]RunSummary, error)
}

// RobotsPolicy decides whether robots.txt allows fetching a URL.
type RobotsPolicy interface {
	Allowed(ctx context.Context, rawURL string) bool
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces run IDs (UUIDs).
type IDGenerator interface {
	NewID() (string, error)
}
