package crawler

import (
	"time"
)

// UnknownSourceURL is substituted when a content file has no readable metadata.
const UnknownSourceURL = "unknown"

// Metadata is the provenance record persisted next to every content file.
type Metadata struct {
	SourceURL        string `json:"source_url"`
	ContentType      string `json:"content_type"`
	OriginalFilename string `json:"original_filename"`
}

// FetchRecord is one persisted artifact: a content file plus its sibling
// metadata file. Identity is the sanitized base name shared by both paths.
type FetchRecord struct {
	ContentPath  string
	MetadataPath string
	Metadata     Metadata
}

// IsHTML reports whether the record was classified as an HTML document.
func (r *FetchRecord) IsHTML() bool {
	return r != nil && Category(r.ContentPath) == CategoryHTML
}

// Paths returns the content and metadata paths in promotion order.
func (r *FetchRecord) Paths() []string {
	if r == nil {
		return nil
	}
	return []string{r.ContentPath, r.MetadataPath}
}

// RunSummary is reported at the end of every scheduler pass.
type RunSummary struct {
	RunID      string        `json:"run_id"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	Rounds     int           `json:"rounds"`
	Resumed    int           `json:"resumed"`
	Carried    int           `json:"carried"`
	Dispatched int           `json:"dispatched"`
	Fetched    int           `json:"fetched"`
	Failed     int           `json:"failed"`
	Skipped    int           `json:"skipped"`
	Discovered int           `json:"discovered"`
	Pending    int           `json:"pending"`
	NewFiles   []string      `json:"new_files,omitempty"`
	Records    []FetchRecord `json:"-"`
	Promoted   []string      `json:"promoted,omitempty"`
	Published  int           `json:"published"`
	Error      string        `json:"error,omitempty"`
}

// Duration returns the wall time of the run.
func (s RunSummary) Duration() time.Duration {
	if s.FinishedAt.IsZero() {
		return 0
	}
	return s.FinishedAt.Sub(s.StartedAt)
}
