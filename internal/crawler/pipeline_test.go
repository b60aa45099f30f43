package crawler

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type mockPromoter struct{ mock.Mock }

func (m *mockPromoter) Promote(ctx context.Context, paths []string) ([]string, error) {
	args := m.Called(ctx, paths)
	switch v := args.Get(0).(type) {
	case func(context.Context, []string) []string:
		return v(ctx, paths), args.Error(1)
	case []string:
		return v, args.Error(1)
	}
	return nil, args.Error(1)
}

type mockPublisher struct{ mock.Mock }

func (m *mockPublisher) Publish(ctx context.Context, event PromotionEvent) (string, error) {
	args := m.Called(ctx, event)
	return args.String(0), args.Error(1)
}

type mockRunStore struct{ mock.Mock }

func (m *mockRunStore) RecordRun(ctx context.Context, summary RunSummary) error {
	return m.Called(ctx, summary).Error(0)
}

func (m *mockRunStore) ListRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	args := m.Called(ctx, limit)
	runs, _ := args.Get(0).([]RunSummary)
	return runs, args.Error(1)
}

// durableDest maps a staging path to the name it would get in durable storage.
func durableDest(path string) string {
	return filepath.Join("/final", filepath.Base(path))
}

func TestPipeline_PromotesPublishesAndRecords(t *testing.T) {
	site := newFakeSite(map[string]fakePage{
		testRoot:                         {links: []string{testRoot + "files/regulamin.pdf"}},
		testRoot + "files/regulamin.pdf": {ext: CategoryPDF},
	})
	s := newTestScheduler(t, site, nil, nil)

	promoter := &mockPromoter{}
	promoter.On("Promote", mock.Anything, mock.Anything).Return(func(_ context.Context, paths []string) []string {
		out := make([]string, 0, len(paths))
		for _, p := range paths {
			out = append(out, durableDest(p))
		}
		return out
	}, nil)

	publisher := &mockPublisher{}
	publisher.On("Publish", mock.Anything, mock.MatchedBy(func(ev PromotionEvent) bool {
		return ev.RunID == "run-1" && strings.HasPrefix(ev.Object, "/final/") && !strings.HasSuffix(ev.Object, MetadataExt)
	})).Return("msg-1", nil)

	runs := &mockRunStore{}
	runs.On("RecordRun", mock.Anything, mock.MatchedBy(func(sum RunSummary) bool {
		return sum.RunID == "run-1" && sum.Published == 2 && sum.Error == ""
	})).Return(nil).Once()

	p := NewPipeline(s, promoter, publisher, runs, zap.NewNop())
	summary, err := p.RunOnce(context.Background())
	require.NoError(t, err)

	assert.Len(t, summary.Promoted, 4)
	assert.Equal(t, 2, summary.Published)
	promoter.AssertNumberOfCalls(t, "Promote", 2)
	publisher.AssertNumberOfCalls(t, "Publish", 2)
	runs.AssertExpectations(t)
}

func TestPipeline_SkippedPromotionIsNotPublished(t *testing.T) {
	site := newFakeSite(map[string]fakePage{testRoot: {}})
	s := newTestScheduler(t, site, nil, nil)

	promoter := &mockPromoter{}
	promoter.On("Promote", mock.Anything, mock.Anything).Return([]string(nil), nil)
	publisher := &mockPublisher{}

	p := NewPipeline(s, promoter, publisher, nil, nil)
	summary, err := p.RunOnce(context.Background())
	require.NoError(t, err)

	assert.Empty(t, summary.Promoted)
	assert.Zero(t, summary.Published)
	publisher.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
}

func TestPipeline_PublishAndRecordFailuresDoNotFailRun(t *testing.T) {
	site := newFakeSite(map[string]fakePage{testRoot: {}})
	s := newTestScheduler(t, site, nil, nil)

	promoter := &mockPromoter{}
	promoter.On("Promote", mock.Anything, mock.Anything).Return([]string{"/final/a.html", "/final/a.json"}, nil)
	publisher := &mockPublisher{}
	publisher.On("Publish", mock.Anything, mock.Anything).Return("", errors.New("topic missing"))
	runs := &mockRunStore{}
	runs.On("RecordRun", mock.Anything, mock.Anything).Return(errors.New("db down"))

	p := NewPipeline(s, promoter, publisher, runs, nil)
	summary, err := p.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, summary.Published)
	assert.Len(t, summary.Promoted, 2)
}

func TestPipeline_PromoteErrorIsReported(t *testing.T) {
	site := newFakeSite(map[string]fakePage{testRoot: {}})
	s := newTestScheduler(t, site, nil, nil)

	promoter := &mockPromoter{}
	promoter.On("Promote", mock.Anything, mock.Anything).Return([]string(nil), errors.New("bucket gone"))
	runs := &mockRunStore{}
	runs.On("RecordRun", mock.Anything, mock.MatchedBy(func(sum RunSummary) bool {
		return strings.Contains(sum.Error, "bucket gone")
	})).Return(nil)

	p := NewPipeline(s, promoter, nil, runs, nil)
	_, err := p.RunOnce(context.Background())
	require.Error(t, err)
	runs.AssertExpectations(t)
}

func TestPipeline_InterruptedCrawlIsRecorded(t *testing.T) {
	site := newFakeSite(map[string]fakePage{testRoot: {}})
	s := newTestScheduler(t, site, nil, nil)
	runs := &mockRunStore{}
	runs.On("RecordRun", mock.Anything, mock.MatchedBy(func(sum RunSummary) bool {
		return sum.Error != "" && sum.Rounds == 0
	})).Return(nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := NewPipeline(s, nil, nil, runs, nil)
	_, err := p.RunOnce(ctx)
	require.ErrorIs(t, err, context.Canceled)
	runs.AssertExpectations(t)
}

// blockingFetcher holds every fetch until release is closed.
type blockingFetcher struct {
	started chan struct{}
	release chan struct{}
}

func (b *blockingFetcher) Fetch(ctx context.Context, _ string, _ string) (*FetchRecord, error) {
	select {
	case b.started <- struct{}{}:
	default:
	}
	<-b.release
	return nil, nil
}

func TestPipeline_RunsDoNotOverlap(t *testing.T) {
	fetcher := &blockingFetcher{started: make(chan struct{}, 1), release: make(chan struct{})}
	s := newTestScheduler(t, fetcher, nil, nil)
	p := NewPipeline(s, nil, nil, nil, nil)

	done := make(chan error, 1)
	go func() {
		_, err := p.RunOnce(context.Background())
		done <- err
	}()
	<-fetcher.started
	assert.True(t, p.Running())

	_, err := p.RunOnce(context.Background())
	require.ErrorIs(t, err, ErrRunInProgress)

	close(fetcher.release)
	require.NoError(t, <-done)
	assert.False(t, p.Running())
}
