// Package corpus reads the durable crawl output the way ingestion consumes
// it: one Document per content file, paired with its provenance metadata,
// plus helpers that turn HTML, PDF and DOCX files into plain text chunks.
package corpus

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"go.uber.org/zap"

	"github.com/Kolo-Naukowe-Data-Science-PW/Chatbot-MiNI/internal/crawler"
)

// Document is one content file and the provenance recorded beside it.
type Document struct {
	Path             string `json:"path"`
	Category         string `json:"category"`
	SourceURL        string `json:"source_url"`
	ContentType      string `json:"content_type,omitempty"`
	OriginalFilename string `json:"original_filename,omitempty"`
	// HasMetadata is false when the sibling .json was missing or unreadable.
	HasMetadata bool `json:"has_metadata"`
}

// ErrUnsupported is returned by Text for categories without a text extractor.
var ErrUnsupported = errors.New("corpus: no text extractor for category")

// List returns every non-metadata file in dir, sorted by name. The source URL
// falls back to "unknown" when the metadata file is absent or corrupt.
func List(dir string, logger *zap.Logger) ([]Document, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read corpus dir: %w", err)
	}
	docs := make([]Document, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || crawler.IsHiddenFile(entry.Name()) || crawler.IsMetadataFile(entry.Name()) {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		doc := Document{
			Path:      path,
			Category:  crawler.Category(path),
			SourceURL: crawler.UnknownSourceURL,
		}
		metaPath := crawler.MetadataPathFor(path)
		meta, err := crawler.ReadMetadataFile(metaPath)
		switch {
		case errors.Is(err, os.ErrNotExist):
			logger.Warn("no metadata for document", zap.String("path", path))
		case err != nil:
			logger.Warn("could not read metadata", zap.String("path", metaPath), zap.Error(err))
		default:
			doc.HasMetadata = true
			doc.ContentType = meta.ContentType
			doc.OriginalFilename = meta.OriginalFilename
			if meta.SourceURL != "" {
				doc.SourceURL = meta.SourceURL
			}
		}
		docs = append(docs, doc)
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].Path < docs[j].Path })
	return docs, nil
}

// Text returns the cleaned text of doc. HTML, PDF and DOCX are supported;
// other categories return ErrUnsupported.
func Text(doc Document) (string, error) {
	switch doc.Category {
	case crawler.CategoryHTML, crawler.CategoryPDF, crawler.CategoryDOCX:
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupported, doc.Category)
	}
	f, err := os.Open(doc.Path)
	if err != nil {
		return "", fmt.Errorf("open document: %w", err)
	}
	defer func() { _ = f.Close() }()

	if doc.Category == crawler.CategoryHTML {
		return HTMLText(f)
	}
	info, err := f.Stat()
	if err != nil {
		return "", fmt.Errorf("stat document: %w", err)
	}
	if doc.Category == crawler.CategoryPDF {
		return PDFText(f, info.Size())
	}
	return DOCXText(f, info.Size())
}
