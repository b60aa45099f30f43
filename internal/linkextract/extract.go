// Package linkextract mines same-host anchor targets from HTML documents.
package linkextract

import (
	"errors"
	"io"
	"net/url"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/net/html"
)

// Extractor implements crawler.LinkExtractor with the x/net/html tokenizer.
type Extractor struct {
	logger *zap.Logger
}

// New returns an Extractor. A nil logger discards output.
func New(logger *zap.Logger) *Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{logger: logger}
}

// Extract returns the set of absolute, fragment-free URLs referenced by
// anchor hrefs in doc whose host equals the host of baseURL. A document that
// fails to tokenize yields an empty set.
func (e *Extractor) Extract(doc io.Reader, baseURL string) (links map[string]struct{}) {
	links = make(map[string]struct{})
	defer func() {
		if rec := recover(); rec != nil {
			e.logger.Warn("link extraction panicked", zap.String("url", baseURL), zap.Any("panic", rec))
			links = map[string]struct{}{}
		}
	}()

	base, err := url.Parse(baseURL)
	if err != nil || base.Host == "" {
		e.logger.Warn("invalid base url for link extraction", zap.String("url", baseURL), zap.Error(err))
		return links
	}

	z := html.NewTokenizer(doc)
	for {
		switch z.Next() {
		case html.ErrorToken:
			if err := z.Err(); err != nil && !errors.Is(err, io.EOF) {
				e.logger.Warn("html tokenize failed", zap.String("url", baseURL), zap.Error(err))
				return map[string]struct{}{}
			}
			return links
		case html.StartTagToken, html.SelfClosingTagToken:
			name, hasAttr := z.TagName()
			if len(name) != 1 || name[0] != 'a' || !hasAttr {
				continue
			}
			if link, ok := resolve(base, hrefOf(z)); ok {
				links[link] = struct{}{}
			}
		}
	}
}

func hrefOf(z *html.Tokenizer) string {
	for {
		key, val, more := z.TagAttr()
		if string(key) == "href" {
			return string(val)
		}
		if !more {
			return ""
		}
	}
}

func resolve(base *url.URL, href string) (string, bool) {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(strings.ToLower(href), "javascript:") {
		return "", false
	}
	ref, err := url.Parse(href)
	if err != nil {
		return "", false
	}
	abs := base.ResolveReference(ref)
	if abs.Host != base.Host {
		return "", false
	}
	abs.Fragment = ""
	abs.RawFragment = ""
	return abs.String(), true
}
