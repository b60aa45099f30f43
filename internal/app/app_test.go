package app_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Kolo-Naukowe-Data-Science-PW/Chatbot-MiNI/internal/app"
	"github.com/Kolo-Naukowe-Data-Science-PW/Chatbot-MiNI/internal/config"
	"github.com/Kolo-Naukowe-Data-Science-PW/Chatbot-MiNI/internal/crawler"
	pubmemory "github.com/Kolo-Naukowe-Data-Science-PW/Chatbot-MiNI/internal/publisher/memory"
)

func newDepartmentSite(t *testing.T) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(`<html><body>
<a href="/studia">Studia</a>
<a href="/files/regulamin.pdf">Regulamin</a>
<a href="/img/logo.png">Logo</a>
<a href="https://www.pw.edu.pl/">PW</a>
<a href="javascript:void(0)">menu</a>
</body></html>`))
	})
	mux.HandleFunc("/studia", func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<a href="/">home</a><a href="/studia#plan">plan</a>`))
	})
	mux.HandleFunc("/files/regulamin.pdf", func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "application/pdf")
		_, _ = w.Write([]byte("%PDF-1.4"))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, &hits
}

func testConfig(t *testing.T, seed string) config.Config {
	t.Helper()
	root := t.TempDir()
	return config.Config{
		Crawler: config.CrawlerConfig{
			Seeds:       []string{seed},
			Concurrency: 2,
			UserAgent:   "mini-test",
		},
		Fetcher:   config.FetcherConfig{Timeout: 5 * time.Second, MaxIdleConnsPerHost: 2},
		Storage:   config.StorageConfig{OutputDir: filepath.Join(root, "raw"), Provider: config.ProviderLocal, Dir: filepath.Join(root, "final")},
		Schedule:  config.ScheduleConfig{Interval: time.Hour},
		Publisher: config.PublisherConfig{Provider: config.ProviderMemory},
		Runs:      config.RunsConfig{Provider: config.ProviderMemory},
	}
}

func countFiles(t *testing.T, dir string) (content, meta int) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		if crawler.IsMetadataFile(e.Name()) {
			meta++
		} else {
			content++
		}
	}
	return content, meta
}

func TestApp_CrawlPromotePublishAndResume(t *testing.T) {
	srv, hits := newDepartmentSite(t)
	cfg := testConfig(t, srv.URL+"/")

	a, err := app.New(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	summary, err := a.Pipeline().RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Fetched)
	assert.Len(t, summary.Promoted, 6)
	assert.Equal(t, 3, summary.Published)

	content, meta := countFiles(t, cfg.Storage.Dir)
	assert.Equal(t, 3, content)
	assert.Equal(t, 3, meta)
	staged, _ := countFiles(t, cfg.Storage.OutputDir)
	assert.Zero(t, staged, "promoted files leave staging")

	pub, ok := a.Publisher().(*pubmemory.Publisher)
	require.True(t, ok)
	events := pub.Events()
	require.Len(t, events, 3)
	for _, ev := range events {
		assert.Equal(t, summary.RunID, ev.RunID)
		assert.NotEqual(t, crawler.MetadataExt, filepath.Ext(ev.Object))
	}

	runs, err := a.Runs().ListRuns(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, summary.RunID, runs[0].RunID)

	before := hits.Load()
	again, err := a.Pipeline().RunOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, again.Dispatched)
	assert.Equal(t, 3, again.Resumed)
	assert.Equal(t, before, hits.Load(), "resumed run fetches nothing")
	assert.NotEqual(t, summary.RunID, again.RunID)
}

func TestApp_UnknownProviders(t *testing.T) {
	cases := map[string]func(*config.Config){
		"storage":   func(c *config.Config) { c.Storage.Provider = "s3" },
		"publisher": func(c *config.Config) { c.Publisher.Provider = "kafka" },
		"runs":      func(c *config.Config) { c.Runs.Provider = "redis" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := testConfig(t, "https://ww2.mini.pw.edu.pl/")
			mutate(&cfg)
			_, err := app.New(context.Background(), cfg, nil)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "unknown")
		})
	}
}

func TestApp_NoValidSeeds(t *testing.T) {
	cfg := testConfig(t, "not-a-url")
	_, err := app.New(context.Background(), cfg, nil)
	require.ErrorIs(t, err, crawler.ErrNoSeeds)
}

func TestApp_NoPublisher(t *testing.T) {
	cfg := testConfig(t, "https://ww2.mini.pw.edu.pl/")
	cfg.Publisher.Provider = config.ProviderNone
	a, err := app.New(context.Background(), cfg, nil)
	require.NoError(t, err)
	assert.Nil(t, a.Publisher())
	require.NoError(t, a.Close())
}
