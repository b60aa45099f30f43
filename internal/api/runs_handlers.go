package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/Kolo-Naukowe-Data-Science-PW/Chatbot-MiNI/internal/crawler"
)

const (
	defaultRunLimit = 20
	maxRunLimit     = 200
	runsTimeout     = 3 * time.Second
)

// RunsHandler exposes read-only run history.
type RunsHandler struct {
	repo    crawler.RunStore
	timeout time.Duration
	logger  *zap.Logger
}

// NewRunsHandler wires the run store and logger.
func NewRunsHandler(repo crawler.RunStore, logger *zap.Logger) *RunsHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RunsHandler{
		repo:    repo,
		timeout: runsTimeout,
		logger:  logger,
	}
}

// ListRuns handles GET /v1/runs?limit=. It returns {"runs": [...]} newest
// first, 400 for an invalid limit, 503 when no store is configured, or 500 if
// the store call fails.
func (h *RunsHandler) ListRuns(w http.ResponseWriter, r *http.Request) {
	if h.repo == nil {
		writeError(w, http.StatusServiceUnavailable, "run store unavailable")
		return
	}
	limit, err := parseLimit(r, defaultRunLimit, maxRunLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	runs, err := h.repo.ListRuns(ctx, limit)
	if err != nil {
		h.logger.Error("list runs failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list runs")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": toRunDTOs(runs)})
}

func parseLimit(r *http.Request, def, maxLimit int) (int, error) {
	limStr := r.URL.Query().Get("limit")
	if limStr == "" {
		return def, nil
	}
	val, err := strconv.Atoi(limStr)
	if err != nil || val <= 0 {
		return 0, errors.New("invalid limit")
	}
	if val > maxLimit {
		val = maxLimit
	}
	return val, nil
}

func toRunDTOs(in []crawler.RunSummary) []runDTO {
	out := make([]runDTO, 0, len(in))
	for _, run := range in {
		out = append(out, toRunDTO(run))
	}
	return out
}

func toRunDTO(run crawler.RunSummary) runDTO {
	dto := runDTO{
		RunID:      run.RunID,
		StartedAt:  run.StartedAt,
		Rounds:     run.Rounds,
		Dispatched: run.Dispatched,
		Fetched:    run.Fetched,
		Failed:     run.Failed,
		Skipped:    run.Skipped,
		NewFiles:   len(run.NewFiles),
		Promoted:   len(run.Promoted),
		Published:  run.Published,
		Status:     crawler.RunSucceeded,
	}
	if !run.FinishedAt.IsZero() {
		finished := run.FinishedAt
		dto.FinishedAt = &finished
		dto.DurationMs = run.Duration().Milliseconds()
	}
	if run.Error != "" {
		errMsg := run.Error
		dto.Error = &errMsg
		dto.Status = crawler.RunFailed
	}
	return dto
}

type runDTO struct {
	RunID      string     `json:"run_id"`
	Status     string     `json:"status"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	DurationMs int64      `json:"duration_ms,omitempty"`
	Rounds     int        `json:"rounds"`
	Dispatched int        `json:"dispatched"`
	Fetched    int        `json:"fetched"`
	Failed     int        `json:"failed"`
	Skipped    int        `json:"skipped"`
	NewFiles   int        `json:"new_files"`
	Promoted   int        `json:"promoted"`
	Published  int        `json:"published"`
	Error      *string    `json:"error,omitempty"`
}
