package corpus

import (
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// Chunking defaults used by ingestion.
const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200
)

// HTMLText strips script and style elements and returns the visible text with
// whitespace collapsed to single spaces. Entities are decoded by the parser.
func HTMLText(r io.Reader) (string, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}
	doc.Find("script, style").Remove()

	var sb strings.Builder
	for _, n := range doc.Nodes {
		collectText(n, &sb)
	}
	return strings.Join(strings.Fields(sb.String()), " "), nil
}

func collectText(n *html.Node, sb *strings.Builder) {
	if n.Type == html.TextNode {
		sb.WriteString(n.Data)
		sb.WriteByte(' ')
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(c, sb)
	}
}

// Chunk splits text into pieces of at most size characters on whitespace
// boundaries. Consecutive chunks share up to overlap characters of trailing
// words. Words longer than size are cut.
func Chunk(text string, size, overlap int) []string {
	if size <= 0 {
		size = DefaultChunkSize
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}
	words := splitLong(strings.Fields(text), size)
	if len(words) == 0 {
		return nil
	}

	var chunks []string
	start := 0
	for start < len(words) {
		end, length := start, 0
		for end < len(words) {
			n := utf8.RuneCountInString(words[end])
			if end > start {
				n++
			}
			if length+n > size {
				break
			}
			length += n
			end++
		}
		chunks = append(chunks, strings.Join(words[start:end], " "))
		if end == len(words) {
			break
		}

		next, shared := end, 0
		for next > start+1 {
			n := utf8.RuneCountInString(words[next-1]) + 1
			if shared+n > overlap {
				break
			}
			shared += n
			next--
		}
		start = next
	}
	return chunks
}

func splitLong(words []string, size int) []string {
	out := make([]string, 0, len(words))
	for _, w := range words {
		r := []rune(w)
		for len(r) > size {
			out = append(out, string(r[:size]))
			r = r[size:]
		}
		if len(r) > 0 {
			out = append(out, string(r))
		}
	}
	return out
}
