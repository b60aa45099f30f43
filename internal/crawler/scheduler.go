package crawler

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Kolo-Naukowe-Data-Science-PW/Chatbot-MiNI/internal/metrics"
)

// DefaultConcurrency is the fetch pool size used when none is configured.
const DefaultConcurrency = 10

// ErrNoSeeds is returned when a scheduler is built without any usable seed.
var ErrNoSeeds = errors.New("crawler: no valid seed urls")

// SchedulerConfig controls one breadth-first crawl pass.
type SchedulerConfig struct {
	Seeds       []string
	OutputDir   string
	Concurrency int
	// MaxPages caps the URLs dispatched per run. Zero means unlimited.
	MaxPages int
}

// SchedulerDeps groups the collaborators a Scheduler drives.
type SchedulerDeps struct {
	Classifier *Classifier
	Fetcher    Fetcher
	Extractor  LinkExtractor
	Records    RecordStore
	IDs        IDGenerator
	Clock      Clock
	Logger     *zap.Logger
}

// Scheduler owns the VisitedSet and Frontier for a run and dispatches each
// drained batch to a bounded pool of fetch tasks.
type Scheduler struct {
	cfg        SchedulerConfig
	seeds      []string
	classifier *Classifier
	fetcher    Fetcher
	extractor  LinkExtractor
	records    RecordStore
	ids        IDGenerator
	clock      Clock
	ledger     *FrontierLedger
	logger     *zap.Logger
}

// NewScheduler validates cfg and wires a Scheduler.
func NewScheduler(cfg SchedulerConfig, deps SchedulerDeps) (*Scheduler, error) {
	if deps.Fetcher == nil {
		return nil, errors.New("crawler: fetcher is required")
	}
	if deps.Extractor == nil {
		return nil, errors.New("crawler: link extractor is required")
	}
	if cfg.OutputDir == "" {
		return nil, errors.New("crawler: output dir is required")
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	seeds := make([]string, 0, len(cfg.Seeds))
	hosts := make([]string, 0, len(cfg.Seeds))
	for _, raw := range cfg.Seeds {
		seed, err := NormalizeURL(raw)
		if err != nil {
			deps.Logger.Warn("ignoring invalid seed", zap.String("seed", raw), zap.Error(err))
			continue
		}
		seeds = append(seeds, seed)
		hosts = append(hosts, Host(seed))
	}
	if len(seeds) == 0 {
		return nil, ErrNoSeeds
	}
	if deps.Classifier == nil {
		deps.Classifier = NewClassifier(ClassifierConfig{RootHosts: hosts}, deps.Logger)
	}
	if deps.Clock == nil {
		deps.Clock = systemClock{}
	}
	metrics.Init()
	return &Scheduler{
		cfg:        cfg,
		seeds:      seeds,
		classifier: deps.Classifier,
		fetcher:    deps.Fetcher,
		extractor:  deps.Extractor,
		records:    deps.Records,
		ids:        deps.IDs,
		clock:      deps.Clock,
		ledger:     NewFrontierLedger(cfg.OutputDir),
		logger:     deps.Logger,
	}, nil
}

// Seeds returns the normalized seed URLs.
func (s *Scheduler) Seeds() []string {
	out := make([]string, len(s.seeds))
	copy(out, s.seeds)
	return out
}

type taskResult struct {
	record  *FetchRecord
	links   []string
	skipped bool
}

// Run performs one resumable breadth-first crawl. It returns when a drain
// yields an empty batch or the page budget is spent, or with ctx.Err() when
// the context ends between rounds. The summary is populated in every case.
// URLs still queued when the run stops are saved to the frontier ledger and
// queued again by the next run.
func (s *Scheduler) Run(ctx context.Context) (RunSummary, error) {
	summary := RunSummary{StartedAt: s.clock.Now()}
	if s.ids != nil {
		id, err := s.ids.NewID()
		if err != nil {
			return summary, fmt.Errorf("generate run id: %w", err)
		}
		summary.RunID = id
	}
	logger := s.logger.With(zap.String("run_id", summary.RunID))

	visited, err := s.resume(ctx, logger)
	if err != nil {
		summary.FinishedAt = s.clock.Now()
		return summary, err
	}
	summary.Resumed = visited.Len()

	frontier := NewFrontier(visited)
	for _, seed := range s.seeds {
		frontier.Push(seed)
	}
	summary.Carried = s.carryOver(frontier, logger)
	logger.Info("crawl starting",
		zap.Strings("seeds", s.seeds),
		zap.Int("resumed", summary.Resumed),
		zap.Int("carried", summary.Carried),
		zap.Int("frontier", frontier.Len()),
		zap.Int("concurrency", s.cfg.Concurrency),
	)

	for {
		if err := ctx.Err(); err != nil {
			summary.FinishedAt = s.clock.Now()
			summary.Pending = s.saveFrontier(summary.RunID, frontier, logger)
			logger.Warn("crawl interrupted",
				zap.Int("rounds", summary.Rounds),
				zap.Int("pending", summary.Pending),
				zap.Error(err),
			)
			return summary, fmt.Errorf("crawl interrupted: %w", err)
		}
		limit := 0
		if s.cfg.MaxPages > 0 {
			limit = s.cfg.MaxPages - summary.Dispatched
			if limit <= 0 {
				logger.Info("page budget exhausted", zap.Int("max_pages", s.cfg.MaxPages))
				break
			}
		}
		batch := frontier.Drain(limit)
		if len(batch) == 0 {
			break
		}
		summary.Rounds++
		start := time.Now()
		results := s.dispatch(ctx, batch, logger)

		roundFetched, roundDiscovered := 0, 0
		for _, res := range results {
			switch {
			case res.skipped:
				summary.Skipped++
			case res.record == nil:
				summary.Failed++
			default:
				roundFetched++
				summary.Records = append(summary.Records, *res.record)
				summary.NewFiles = append(summary.NewFiles, res.record.ContentPath)
			}
			for _, link := range res.links {
				if frontier.Push(link) {
					roundDiscovered++
				}
			}
		}
		summary.Dispatched += len(batch)
		summary.Fetched += roundFetched
		summary.Discovered += roundDiscovered

		elapsed := time.Since(start)
		metrics.ObserveRound(len(batch), elapsed)
		logger.Info("round complete",
			zap.Int("round", summary.Rounds),
			zap.Int("batch", len(batch)),
			zap.Int("fetched", roundFetched),
			zap.Int("discovered", roundDiscovered),
			zap.Int("visited", visited.Len()),
			zap.Duration("elapsed", elapsed),
		)
	}

	summary.FinishedAt = s.clock.Now()
	summary.Pending = s.saveFrontier(summary.RunID, frontier, logger)
	logger.Info("crawl finished",
		zap.Int("rounds", summary.Rounds),
		zap.Int("pending", summary.Pending),
		zap.Int("dispatched", summary.Dispatched),
		zap.Int("fetched", summary.Fetched),
		zap.Int("failed", summary.Failed),
		zap.Int("skipped", summary.Skipped),
		zap.Duration("duration", summary.Duration()),
	)
	return summary, nil
}

// resume seeds a VisitedSet from the source URLs of persisted records.
func (s *Scheduler) resume(ctx context.Context, logger *zap.Logger) (*VisitedSet, error) {
	visited := NewVisitedSet()
	if s.records == nil {
		return visited, nil
	}
	urls, err := s.records.SourceURLs(ctx)
	if err != nil {
		return nil, fmt.Errorf("scan persisted records: %w", err)
	}
	for _, raw := range urls {
		if raw == "" || raw == UnknownSourceURL {
			continue
		}
		normalized, err := NormalizeURL(raw)
		if err != nil {
			logger.Warn("ignoring persisted source url", zap.String("source_url", raw), zap.Error(err))
			continue
		}
		visited.Add(normalized)
	}
	return visited, nil
}

// carryOver queues the URLs saved by a previous run that stopped early. The
// frontier drops any that have since been visited.
func (s *Scheduler) carryOver(frontier *Frontier, logger *zap.Logger) int {
	urls, err := s.ledger.Load()
	if err != nil {
		logger.Warn("ignoring frontier ledger", zap.String("path", s.ledger.Path()), zap.Error(err))
		return 0
	}
	carried := 0
	for _, raw := range urls {
		normalized, err := NormalizeURL(raw)
		if err != nil {
			continue
		}
		if frontier.Push(normalized) {
			carried++
		}
	}
	return carried
}

// saveFrontier writes the still-queued URLs to the ledger, or removes the
// ledger when nothing is left, and returns how many were saved.
func (s *Scheduler) saveFrontier(runID string, frontier *Frontier, logger *zap.Logger) int {
	pending := frontier.Pending()
	if err := s.ledger.Save(runID, pending, s.clock.Now()); err != nil {
		logger.Warn("save frontier ledger", zap.String("path", s.ledger.Path()), zap.Error(err))
		return 0
	}
	return len(pending)
}

// dispatch fans batch out to at most Concurrency tasks and waits for all of
// them. Each task writes only its own slot of the result slice.
func (s *Scheduler) dispatch(ctx context.Context, batch []string, logger *zap.Logger) []taskResult {
	results := make([]taskResult, len(batch))
	var g errgroup.Group
	g.SetLimit(s.cfg.Concurrency)
	for i, rawURL := range batch {
		g.Go(func() error {
			results[i] = s.process(ctx, rawURL, logger)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (s *Scheduler) process(ctx context.Context, rawURL string, logger *zap.Logger) (res taskResult) {
	defer func() {
		if rec := recover(); rec != nil {
			logger.Error("fetch task panicked", zap.String("url", rawURL), zap.Any("panic", rec))
			metrics.ObserveFetch(rawURL, metrics.StatusFailed, 0)
			res = taskResult{}
		}
	}()

	if !s.classifier.ShouldFetch(rawURL) {
		metrics.ObserveFetch(rawURL, metrics.StatusSkipped, 0)
		return taskResult{skipped: true}
	}

	record, err := s.fetch(ctx, rawURL)
	if err != nil {
		logger.Error("fetch failed", zap.String("url", rawURL), zap.Error(err))
	}
	if record == nil {
		metrics.ObserveFetch(rawURL, metrics.StatusFailed, 0)
		return taskResult{}
	}
	metrics.ObserveFetch(rawURL, metrics.StatusFetched, fileSize(record.ContentPath))

	res.record = record
	if record.IsHTML() {
		res.links = s.extractLinks(record.ContentPath, rawURL, logger)
	}
	return res
}

func (s *Scheduler) fetch(ctx context.Context, rawURL string) (*FetchRecord, error) {
	metrics.IncActiveFetches()
	defer metrics.DecActiveFetches()
	return s.fetcher.Fetch(ctx, rawURL, s.cfg.OutputDir)
}

func (s *Scheduler) extractLinks(contentPath, baseURL string, logger *zap.Logger) []string {
	f, err := os.Open(contentPath)
	if err != nil {
		logger.Warn("open fetched html", zap.String("path", contentPath), zap.Error(err))
		return nil
	}
	defer func() {
		if cerr := f.Close(); cerr != nil {
			logger.Debug("close fetched html", zap.String("path", contentPath), zap.Error(cerr))
		}
	}()
	set := s.extractor.Extract(f, baseURL)
	links := make([]string, 0, len(set))
	for link := range set {
		normalized, err := NormalizeURL(link)
		if err != nil {
			continue
		}
		links = append(links, normalized)
	}
	sort.Strings(links)
	return links
}

func fileSize(path string) int64 {
	info, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return info.Size()
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }
