package local

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestNew_CreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "final_storage")
	store, err := New(Config{Dir: dir}, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, dir, store.Dir())
	assert.DirExists(t, dir)
	assert.NoFileExists(t, filepath.Join(dir, ".writable_test"))
}

func TestNew_Validation(t *testing.T) {
	_, err := New(Config{Dir: "  "}, nil)
	require.Error(t, err)

	file := filepath.Join(t.TempDir(), "plain")
	writeFile(t, file, "x")
	_, err = New(Config{Dir: file}, nil)
	require.Error(t, err)
}

func TestPromote_MovesWithoutClobbering(t *testing.T) {
	staging := t.TempDir()
	final := t.TempDir()
	store, err := New(Config{Dir: final, StagingDir: staging}, zap.NewNop())
	require.NoError(t, err)

	writeFile(t, filepath.Join(staging, "page.html"), "new page")
	writeFile(t, filepath.Join(staging, "page.json"), `{"source_url":"https://ww2.mini.pw.edu.pl/page"}`)
	writeFile(t, filepath.Join(staging, "old.pdf"), "new pdf")
	writeFile(t, filepath.Join(final, "old.pdf"), "original pdf")

	moved, err := store.Promote(context.Background(), []string{
		filepath.Join(staging, "page.html"),
		filepath.Join(staging, "page.json"),
		filepath.Join(staging, "old.pdf"),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(final, "page.html"), filepath.Join(final, "page.json")}, moved)

	data, err := os.ReadFile(filepath.Join(final, "old.pdf"))
	require.NoError(t, err)
	assert.Equal(t, "original pdf", string(data), "existing file is never overwritten")
	assert.FileExists(t, filepath.Join(staging, "old.pdf"), "conflicting source stays in staging")
	assert.NoFileExists(t, filepath.Join(staging, "page.html"))

	again, err := store.Promote(context.Background(), []string{filepath.Join(staging, "old.pdf")})
	require.NoError(t, err)
	assert.Empty(t, again)
}

func TestPromote_MissingSource(t *testing.T) {
	store, err := New(Config{Dir: t.TempDir()}, nil)
	require.NoError(t, err)

	moved, err := store.Promote(context.Background(), []string{filepath.Join(t.TempDir(), "absent.html")})
	require.Error(t, err)
	assert.Empty(t, moved)
}

func TestCopyExclusive(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.html")
	dest := filepath.Join(dir, "dest.html")
	writeFile(t, src, "body")

	ok, err := copyExclusive(src, dest)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoFileExists(t, src)

	writeFile(t, src, "second")
	ok, err = copyExclusive(src, dest)
	require.NoError(t, err)
	assert.False(t, ok)
	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "body", string(data))
}

func TestSourceURLs_ScansDurableAndStaging(t *testing.T) {
	staging := t.TempDir()
	final := t.TempDir()
	store, err := New(Config{Dir: final, StagingDir: staging}, zap.NewNop())
	require.NoError(t, err)

	writeFile(t, filepath.Join(final, "a.json"), `{"source_url":"https://ww2.mini.pw.edu.pl/a"}`)
	writeFile(t, filepath.Join(staging, "b.json"), `{"source_url":"https://ww2.mini.pw.edu.pl/b"}`)
	writeFile(t, filepath.Join(staging, "c.json"), `garbage`)

	urls, err := store.SourceURLs(context.Background())
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"https://ww2.mini.pw.edu.pl/a", "https://ww2.mini.pw.edu.pl/b"}, urls)
}
