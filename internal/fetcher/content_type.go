package fetcher

import (
	"mime"
	"strings"

	"github.com/Kolo-Naukowe-Data-Science-PW/Chatbot-MiNI/internal/crawler"
)

var mediaTypeExtensions = map[string]string{
	"application/pdf": crawler.CategoryPDF,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": crawler.CategoryDOCX,
	"application/msword":           crawler.CategoryDOC,
	"application/zip":              crawler.CategoryZip,
	"application/x-zip-compressed": crawler.CategoryZip,
	"text/html":                    crawler.CategoryHTML,
	"application/xhtml+xml":        crawler.CategoryHTML,
}

// mediaType returns the lowercased media type of a Content-Type header
// without parameters.
func mediaType(contentType string) string {
	if contentType == "" {
		return ""
	}
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mt, _, _ = strings.Cut(contentType, ";")
	}
	return strings.ToLower(strings.TrimSpace(mt))
}

// IsImage reports whether the header declares an image.
func IsImage(contentType string) bool {
	return strings.HasPrefix(mediaType(contentType), "image/")
}

// Extension chooses the stored file extension. A recognised Content-Type
// header wins; a missing or generic one defers to the URL suffix, which in
// turn defaults to .html.
func Extension(contentType, rawURL string) string {
	if ext, ok := mediaTypeExtensions[mediaType(contentType)]; ok {
		return ext
	}
	return crawler.SuffixCategory(rawURL)
}
