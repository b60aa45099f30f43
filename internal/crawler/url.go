package crawler

import (
	"fmt"
	"net/url"
	"path"
	"path/filepath"
	"strings"
	"unicode"
)

// Content categories derived from the response content type or URL suffix.
const (
	CategoryHTML = ".html"
	CategoryPDF  = ".pdf"
	CategoryDOCX = ".docx"
	CategoryDOC  = ".doc"
	CategoryZip  = ".zip"
)

// MetadataExt is the extension of the provenance files.
const MetadataExt = ".json"

// NormalizeURL turns rawURL into a CrawlURL: absolute, fragment stripped,
// otherwise left exactly as given so equality stays case-sensitive.
func NormalizeURL(rawURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	if !u.IsAbs() || u.Host == "" {
		return "", fmt.Errorf("url %q is not absolute", rawURL)
	}
	u.Fragment = ""
	u.RawFragment = ""
	return u.String(), nil
}

// Host returns the network location of rawURL, or "" if it cannot be parsed.
func Host(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Host
}

// SanitizeFilename replaces every rune that is not a letter, digit, '-', '_'
// or '.' with '_'. Distinct URLs may map to the same name; callers treat that
// as a known limitation rather than deduplicating further.
func SanitizeFilename(rawURL string) string {
	var b strings.Builder
	b.Grow(len(rawURL))
	for _, r := range rawURL {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r), r == '-', r == '_', r == '.':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}

// OriginalFilename returns the last path segment of rawURL, falling back to
// the sanitized URL when the path has no usable segment.
func OriginalFilename(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return SanitizeFilename(rawURL)
	}
	base := path.Base(u.Path)
	if base == "." || base == "/" || base == "" {
		return SanitizeFilename(rawURL)
	}
	if unescaped, err := url.PathUnescape(base); err == nil {
		return unescaped
	}
	return base
}

// SuffixCategory guesses a category from the URL path suffix alone.
func SuffixCategory(rawURL string) string {
	p := rawURL
	if u, err := url.Parse(rawURL); err == nil {
		p = u.Path
	}
	switch strings.ToLower(path.Ext(p)) {
	case ".pdf":
		return CategoryPDF
	case ".docx":
		return CategoryDOCX
	case ".doc":
		return CategoryDOC
	case ".zip":
		return CategoryZip
	default:
		return CategoryHTML
	}
}

// Category returns the category of a stored content file by its extension.
func Category(filePath string) string {
	switch ext := strings.ToLower(filepath.Ext(filePath)); ext {
	case CategoryPDF, CategoryDOCX, CategoryDOC, CategoryZip:
		return ext
	case CategoryHTML, ".htm":
		return CategoryHTML
	default:
		return ""
	}
}

// MetadataPathFor returns the sibling metadata path of a content file.
func MetadataPathFor(contentPath string) string {
	return strings.TrimSuffix(contentPath, filepath.Ext(contentPath)) + MetadataExt
}
