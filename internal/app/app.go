// Package app builds the long-lived services of the crawler from
// configuration and owns their shutdown.
package app

import (
	"context"
	"errors"
	"fmt"

	gcstorage "cloud.google.com/go/storage"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/Kolo-Naukowe-Data-Science-PW/Chatbot-MiNI/internal/config"
	"github.com/Kolo-Naukowe-Data-Science-PW/Chatbot-MiNI/internal/crawler"
	"github.com/Kolo-Naukowe-Data-Science-PW/Chatbot-MiNI/internal/fetcher"
	"github.com/Kolo-Naukowe-Data-Science-PW/Chatbot-MiNI/internal/id/uuid"
	"github.com/Kolo-Naukowe-Data-Science-PW/Chatbot-MiNI/internal/linkextract"
	"github.com/Kolo-Naukowe-Data-Science-PW/Chatbot-MiNI/internal/policy/ratelimit"
	pubmemory "github.com/Kolo-Naukowe-Data-Science-PW/Chatbot-MiNI/internal/publisher/memory"
	"github.com/Kolo-Naukowe-Data-Science-PW/Chatbot-MiNI/internal/publisher/pubsub"
	"github.com/Kolo-Naukowe-Data-Science-PW/Chatbot-MiNI/internal/storage/gcs"
	"github.com/Kolo-Naukowe-Data-Science-PW/Chatbot-MiNI/internal/storage/local"
	"github.com/Kolo-Naukowe-Data-Science-PW/Chatbot-MiNI/internal/storage/memory"
	"github.com/Kolo-Naukowe-Data-Science-PW/Chatbot-MiNI/internal/storage/postgres"
)

// durableStore is both the resume source and the promotion target.
type durableStore interface {
	crawler.RecordStore
	crawler.Promoter
}

// Option customises New.
type Option func(*options)

type options struct {
	clientOpts []option.ClientOption
}

// WithClientOptions passes Google API client options (endpoints, credentials)
// to the GCS and Pub/Sub clients.
func WithClientOptions(opts ...option.ClientOption) Option {
	return func(o *options) { o.clientOpts = append(o.clientOpts, opts...) }
}

// App holds the shared services built from one Config.
type App struct {
	cfg       config.Config
	logger    *zap.Logger
	session   *fetcher.Session
	store     durableStore
	publisher crawler.Publisher
	runs      crawler.RunStore
	scheduler *crawler.Scheduler
	pipeline  *crawler.Pipeline
	closers   []func() error
}

// New wires every component named by cfg. Resources opened before a failure
// are released before returning the error.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger, opts ...Option) (_ *App, err error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	a := &App{cfg: cfg, logger: logger}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	a.session = fetcher.NewSession(fetcher.SessionConfig{
		Timeout:             cfg.Fetcher.Timeout,
		MaxIdleConnsPerHost: cfg.Fetcher.MaxIdleConnsPerHost,
	})
	a.closers = append(a.closers, func() error {
		a.session.Close()
		return nil
	})

	if a.store, err = a.buildStore(ctx, o); err != nil {
		return nil, err
	}
	if a.publisher, err = a.buildPublisher(ctx, o); err != nil {
		return nil, err
	}
	if a.runs, err = a.buildRunStore(ctx); err != nil {
		return nil, err
	}

	fetchOpts := []fetcher.Option{
		fetcher.WithRobots(crawler.NewRobotsEnforcer(cfg.Crawler.RespectRobots, cfg.Crawler.UserAgent, a.session.Client(), logger)),
	}
	if cfg.Crawler.RequestsPerSecond > 0 {
		fetchOpts = append(fetchOpts, fetcher.WithRateLimiter(ratelimit.New(ratelimit.Config{
			DefaultRPS:   cfg.Crawler.RequestsPerSecond,
			DefaultBurst: cfg.Crawler.Burst,
		})))
	}
	fetch := fetcher.New(a.session, fetcher.Config{UserAgent: cfg.Crawler.UserAgent}, logger, fetchOpts...)

	a.scheduler, err = crawler.NewScheduler(crawler.SchedulerConfig{
		Seeds:       cfg.Crawler.Seeds,
		OutputDir:   cfg.Storage.OutputDir,
		Concurrency: cfg.Crawler.Concurrency,
		MaxPages:    cfg.Crawler.MaxPages,
	}, crawler.SchedulerDeps{
		Classifier: crawler.NewClassifier(crawler.ClassifierConfig{
			RootHosts:      seedHosts(cfg.Crawler.Seeds),
			GalleryMarkers: cfg.Crawler.GalleryMarkers,
		}, logger),
		Fetcher:   fetch,
		Extractor: linkextract.New(logger),
		Records:   a.store,
		IDs:       uuid.New(),
		Logger:    logger,
	})
	if err != nil {
		return nil, fmt.Errorf("build scheduler: %w", err)
	}
	a.pipeline = crawler.NewPipeline(a.scheduler, a.store, a.publisher, a.runs, logger)

	logger.Info("application services initialized",
		zap.String("storage", cfg.Storage.Provider),
		zap.String("publisher", cfg.Publisher.Provider),
		zap.String("runs", cfg.Runs.Provider),
		zap.Strings("seeds", a.scheduler.Seeds()),
	)
	return a, nil
}

func (a *App) buildStore(ctx context.Context, o options) (durableStore, error) {
	switch a.cfg.Storage.Provider {
	case config.ProviderLocal, "":
		store, err := local.New(local.Config{Dir: a.cfg.Storage.Dir, StagingDir: a.cfg.Storage.OutputDir}, a.logger)
		if err != nil {
			return nil, fmt.Errorf("init local storage: %w", err)
		}
		return store, nil
	case config.ProviderGCS:
		client, err := gcstorage.NewClient(ctx, o.clientOpts...)
		if err != nil {
			return nil, fmt.Errorf("create gcs client: %w", err)
		}
		a.closers = append(a.closers, client.Close)
		store, err := gcs.New(client, gcs.Config{
			Bucket:     a.cfg.Storage.GCS.Bucket,
			Prefix:     a.cfg.Storage.GCS.Prefix,
			StagingDir: a.cfg.Storage.OutputDir,
		}, a.logger)
		if err != nil {
			return nil, fmt.Errorf("init gcs storage: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown storage provider: %s", a.cfg.Storage.Provider)
	}
}

func (a *App) buildPublisher(ctx context.Context, o options) (crawler.Publisher, error) {
	switch a.cfg.Publisher.Provider {
	case config.ProviderNone, "":
		return nil, nil
	case config.ProviderMemory:
		return pubmemory.New(), nil
	case config.ProviderPubSub:
		pub, err := pubsub.New(ctx, a.cfg.Publisher.ProjectID, a.cfg.Publisher.Topic, o.clientOpts...)
		if err != nil {
			return nil, fmt.Errorf("init pubsub publisher: %w", err)
		}
		a.closers = append(a.closers, pub.Close)
		return pub, nil
	default:
		return nil, fmt.Errorf("unknown publisher provider: %s", a.cfg.Publisher.Provider)
	}
}

func (a *App) buildRunStore(ctx context.Context) (crawler.RunStore, error) {
	switch a.cfg.Runs.Provider {
	case config.ProviderMemory, "":
		return memory.NewRunStore(a.cfg.Runs.Capacity), nil
	case config.ProviderPostgres:
		store, err := postgres.NewRunStore(ctx, postgres.RunStoreConfig{DSN: a.cfg.Runs.DSN, Table: a.cfg.Runs.Table})
		if err != nil {
			return nil, fmt.Errorf("init postgres run store: %w", err)
		}
		a.closers = append(a.closers, func() error {
			store.Close()
			return nil
		})
		if err := store.EnsureSchema(ctx); err != nil {
			return nil, fmt.Errorf("ensure run table: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown runs provider: %s", a.cfg.Runs.Provider)
	}
}

func seedHosts(seeds []string) []string {
	hosts := make([]string, 0, len(seeds))
	for _, seed := range seeds {
		normalized, err := crawler.NormalizeURL(seed)
		if err != nil {
			continue
		}
		hosts = append(hosts, crawler.Host(normalized))
	}
	return hosts
}

// Config returns the configuration the App was built from.
func (a *App) Config() config.Config { return a.cfg }

// Logger returns the shared logger.
func (a *App) Logger() *zap.Logger { return a.logger }

// Pipeline returns the crawl pipeline.
func (a *App) Pipeline() *crawler.Pipeline { return a.pipeline }

// Runs returns the run history store.
func (a *App) Runs() crawler.RunStore { return a.runs }

// Publisher returns the configured publisher, or nil.
func (a *App) Publisher() crawler.Publisher { return a.publisher }

// Close releases clients in reverse order of creation.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	if err := errors.Join(errs...); err != nil {
		a.logger.Warn("error closing application services", zap.Error(err))
		return err
	}
	return nil
}
