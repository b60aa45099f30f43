package corpus

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/Kolo-Naukowe-Data-Science-PW/Chatbot-MiNI/internal/crawler"
)

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
}

func TestList_PairsMetadata(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "studia.html"), "<p>Studia</p>")
	writeFile(t, filepath.Join(dir, "studia.json"),
		`{"source_url":"https://ww2.mini.pw.edu.pl/studia","content_type":"text/html","original_filename":"studia.html"}`)
	writeFile(t, filepath.Join(dir, "regulamin.pdf"), "%PDF")
	writeFile(t, filepath.Join(dir, "broken.docx"), "PK")
	writeFile(t, filepath.Join(dir, "broken.json"), "{not json")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested"), 0o755))

	core, logs := observer.New(zapcore.WarnLevel)
	docs, err := List(dir, zap.New(core))
	require.NoError(t, err)
	require.Len(t, docs, 3)

	byName := map[string]Document{}
	for _, d := range docs {
		byName[filepath.Base(d.Path)] = d
	}
	studia := byName["studia.html"]
	assert.True(t, studia.HasMetadata)
	assert.Equal(t, "https://ww2.mini.pw.edu.pl/studia", studia.SourceURL)
	assert.Equal(t, crawler.CategoryHTML, studia.Category)

	assert.Equal(t, crawler.UnknownSourceURL, byName["regulamin.pdf"].SourceURL)
	assert.False(t, byName["regulamin.pdf"].HasMetadata)
	assert.Equal(t, crawler.UnknownSourceURL, byName["broken.docx"].SourceURL)
	assert.Equal(t, crawler.CategoryDOCX, byName["broken.docx"].Category)

	assert.Equal(t, 1, logs.FilterMessage("no metadata for document").Len())
	assert.Equal(t, 1, logs.FilterMessage("could not read metadata").Len())
}

func TestList_MissingDir(t *testing.T) {
	_, err := List(filepath.Join(t.TempDir(), "absent"), nil)
	require.Error(t, err)
}

func TestText(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "kontakt.html")
	writeFile(t, path, "<html><body><h1>Kontakt</h1><p>Koszykowa&nbsp;75</p></body></html>")

	text, err := Text(Document{Path: path, Category: crawler.CategoryHTML})
	require.NoError(t, err)
	assert.Equal(t, "Kontakt Koszykowa 75", text)

	_, err = Text(Document{Path: path, Category: crawler.CategoryDOC})
	require.ErrorIs(t, err, ErrUnsupported)
	_, err = Text(Document{Path: path, Category: crawler.CategoryZip})
	require.ErrorIs(t, err, ErrUnsupported)

	_, err = Text(Document{Path: path, Category: crawler.CategoryPDF})
	require.Error(t, err, "html bytes are not a pdf")
	assert.NotErrorIs(t, err, ErrUnsupported)
}

func TestHTMLText_StripsScriptsAndStyles(t *testing.T) {
	page := `<html><head><style>body{color:red}</style><script>var x = 1;</script></head>
<body>
  <div>Wydział   Matematyki</div><div>i&amp;Nauk
  Informacyjnych</div>
  <script type="text/javascript">alert("hi")</script>
</body></html>`

	text, err := HTMLText(strings.NewReader(page))
	require.NoError(t, err)
	assert.Equal(t, "Wydział Matematyki i&Nauk Informacyjnych", text)
}

func TestHTMLText_Empty(t *testing.T) {
	text, err := HTMLText(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, text)
}

func TestChunk_ShortText(t *testing.T) {
	assert.Equal(t, []string{"jeden dwa trzy"}, Chunk("  jeden\n dwa   trzy ", DefaultChunkSize, DefaultChunkOverlap))
	assert.Nil(t, Chunk("   ", 10, 2))
}

func TestChunk_SizeAndOverlap(t *testing.T) {
	words := make([]string, 0, 600)
	for i := 0; i < 600; i++ {
		words = append(words, "słowo"+strings.Repeat("x", i%7))
	}
	text := strings.Join(words, " ")

	chunks := Chunk(text, DefaultChunkSize, DefaultChunkOverlap)
	require.Greater(t, len(chunks), 1)
	for i, c := range chunks {
		assert.LessOrEqual(t, utf8.RuneCountInString(c), DefaultChunkSize, "chunk %d", i)
		assert.Equal(t, strings.TrimSpace(c), c)
	}
	for i := 1; i < len(chunks); i++ {
		prev := strings.Fields(chunks[i-1])
		first := strings.Fields(chunks[i])[0]
		assert.Contains(t, prev[len(prev)/2:], first, "chunk %d starts inside the tail of the previous chunk", i)
	}
	assert.True(t, strings.HasSuffix(text, chunks[len(chunks)-1]))
}

func TestChunk_NoOverlap(t *testing.T) {
	chunks := Chunk("aa bb cc dd", 5, 0)
	assert.Equal(t, []string{"aa bb", "cc dd"}, chunks)
}

func TestChunk_LongWordIsCut(t *testing.T) {
	chunks := Chunk(strings.Repeat("a", 12), 5, 2)
	assert.Equal(t, []string{"aaaaa", "aaaaa", "aa"}, chunks)
}
