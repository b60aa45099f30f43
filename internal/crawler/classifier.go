package crawler

import (
	"net/url"
	"path"
	"strings"

	"go.uber.org/zap"
)

// DefaultImageExtensions lists path suffixes that are never fetched.
var DefaultImageExtensions = []string{".jpg", ".jpeg", ".png", ".gif", ".bmp", ".webp", ".svg", ".ico"}

// DefaultGalleryMarkers are substrings of sanitized filenames that identify
// gallery widget pages (NextGEN gallery tokens and photo-gallery listings).
var DefaultGalleryMarkers = []string{"nggallery", "ngg_", "photo-gallery"}

// Classifier decides whether a discovered URL is worth fetching.
type Classifier struct {
	hosts      map[string]struct{}
	extensions map[string]struct{}
	markers    []string
	logger     *zap.Logger
}

// ClassifierConfig configures a Classifier. Empty slices fall back to defaults.
type ClassifierConfig struct {
	RootHosts       []string
	ImageExtensions []string
	GalleryMarkers  []string
}

// NewClassifier builds a Classifier confined to the configured root hosts.
func NewClassifier(cfg ClassifierConfig, logger *zap.Logger) *Classifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	exts := cfg.ImageExtensions
	if len(exts) == 0 {
		exts = DefaultImageExtensions
	}
	markers := cfg.GalleryMarkers
	if len(markers) == 0 {
		markers = DefaultGalleryMarkers
	}
	c := &Classifier{
		hosts:      make(map[string]struct{}, len(cfg.RootHosts)),
		extensions: make(map[string]struct{}, len(exts)),
		logger:     logger,
	}
	for _, h := range cfg.RootHosts {
		if h = strings.TrimSpace(h); h != "" {
			c.hosts[h] = struct{}{}
		}
	}
	for _, ext := range exts {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		c.extensions[ext] = struct{}{}
	}
	for _, m := range markers {
		if m = strings.ToLower(strings.TrimSpace(m)); m != "" {
			c.markers = append(c.markers, m)
		}
	}
	return c
}

// ShouldFetch reports whether rawURL passes the image, gallery and domain
// filters. Rejections are logged at info level.
func (c *Classifier) ShouldFetch(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		c.logger.Info("skipping unparsable url", zap.String("url", rawURL), zap.Error(err))
		return false
	}
	if _, ok := c.extensions[strings.ToLower(path.Ext(u.Path))]; ok {
		c.logger.Info("skipping image url", zap.String("url", rawURL))
		return false
	}
	sanitized := strings.ToLower(SanitizeFilename(rawURL))
	for _, marker := range c.markers {
		if strings.Contains(sanitized, marker) {
			c.logger.Info("skipping gallery url", zap.String("url", rawURL), zap.String("marker", marker))
			return false
		}
	}
	if !c.AllowedHost(u.Host) {
		c.logger.Info("skipping off-domain url", zap.String("url", rawURL), zap.String("host", u.Host))
		return false
	}
	return true
}

// AllowedHost reports whether host is one of the configured roots.
func (c *Classifier) AllowedHost(host string) bool {
	_, ok := c.hosts[host]
	return ok
}
