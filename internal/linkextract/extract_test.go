package linkextract

import (
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

const base = "https://ww2.mini.pw.edu.pl/wydzial/"

func keys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

func TestExtract(t *testing.T) {
	doc := `<html><body>
<a href="/studia">Studia</a>
<a href="kontakt#mapa">Kontakt</a>
<a href="kontakt">Kontakt again</a>
<A HREF="https://ww2.mini.pw.edu.pl/files/regulamin.pdf">PDF</A>
<a href="https://www.pw.edu.pl/">PW</a>
<a href="//ww2.mini.pw.edu.pl/news?id=3">News</a>
<a href=" JavaScript:void(0)">noop</a>
<a href="mailto:dziekanat@mini.pw.edu.pl">mail</a>
<a name="anchor-only">no href</a>
<a href="">empty</a>
<link href="/style.css">
<img src="/logo.png">
<a href="#top"/>
</body></html>`

	got := New(nil).Extract(strings.NewReader(doc), base)

	assert.ElementsMatch(t, []string{
		"https://ww2.mini.pw.edu.pl/studia",
		"https://ww2.mini.pw.edu.pl/wydzial/kontakt",
		"https://ww2.mini.pw.edu.pl/files/regulamin.pdf",
		"https://ww2.mini.pw.edu.pl/news?id=3",
		"https://ww2.mini.pw.edu.pl/wydzial/",
	}, keys(got))
}

func TestExtract_PortIsPartOfHost(t *testing.T) {
	doc := `<a href="https://ww2.mini.pw.edu.pl:8443/admin">x</a><a href="/ok">y</a>`
	got := New(nil).Extract(strings.NewReader(doc), base)
	assert.ElementsMatch(t, []string{"https://ww2.mini.pw.edu.pl/ok"}, keys(got))
}

func TestExtract_InvalidBase(t *testing.T) {
	got := New(nil).Extract(strings.NewReader(`<a href="/x">x</a>`), "not-absolute")
	assert.Empty(t, got)
}

type failingReader struct {
	r io.Reader
}

func (f *failingReader) Read(p []byte) (int, error) {
	n, err := f.r.Read(p)
	if errors.Is(err, io.EOF) {
		return n, errors.New("connection reset")
	}
	return n, err
}

func TestExtract_ReadErrorYieldsEmptySet(t *testing.T) {
	doc := &failingReader{r: strings.NewReader(`<a href="/studia">Studia</a><p>`)}
	got := New(nil).Extract(doc, base)
	assert.Empty(t, got)
	assert.NotNil(t, got)
}

func TestExtract_EmptyDocument(t *testing.T) {
	got := New(nil).Extract(strings.NewReader(""), base)
	assert.Empty(t, got)
}
