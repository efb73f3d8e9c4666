// Package scheduler runs periodic maintenance on a cron schedule.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/coderheist/rest.ai-sub000/internal/db"
	"github.com/coderheist/rest.ai-sub000/internal/logging"
	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// DefaultJobTimeout bounds one job's rank recomputation.
const DefaultJobTimeout = 30 * time.Second

// JobLister lists the jobs whose rankings are kept fresh.
type JobLister interface {
	ListActiveJobs(ctx context.Context) ([]db.JobRef, error)
}

// Ranker recomputes the rankings of one job.
type Ranker interface {
	UpdateRankings(ctx context.Context, tenantID, jobID uuid.UUID) (int, error)
}

// RankRefresher recomputes rankings for every active job, either on demand
// or on a cron schedule.
type RankRefresher struct {
	jobs       JobLister
	ranker     Ranker
	logger     *zap.Logger
	jobTimeout time.Duration
	cron       *cron.Cron
}

// NewRankRefresher creates a refresher. It does nothing until Start or RefreshAll.
func NewRankRefresher(jobs JobLister, ranker Ranker, logger *zap.Logger) *RankRefresher {
	return &RankRefresher{
		jobs:       jobs,
		ranker:     ranker,
		logger:     logging.OrNop(logger),
		jobTimeout: DefaultJobTimeout,
	}
}

// RefreshAll recomputes rankings job by job. A failing job is logged and
// skipped; the returned error joins every failure.
func (r *RankRefresher) RefreshAll(ctx context.Context) (int, error) {
	refs, err := r.jobs.ListActiveJobs(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list active jobs: %w", err)
	}

	var errs []error
	refreshed := 0
	for _, ref := range refs {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}

		jobCtx, cancel := context.WithTimeout(ctx, r.jobTimeout)
		n, err := r.ranker.UpdateRankings(jobCtx, ref.TenantID, ref.JobID)
		cancel()
		if err != nil {
			r.logger.Warn("rank refresh failed",
				logging.Tenant(ref.TenantID), logging.Job(ref.JobID), zap.Error(err))
			errs = append(errs, fmt.Errorf("job %s: %w", ref.JobID, err))
			continue
		}
		refreshed++
		r.logger.Debug("ranks refreshed",
			logging.Tenant(ref.TenantID), logging.Job(ref.JobID), zap.Int("count", n))
	}

	r.logger.Info("rank refresh finished",
		zap.Int("jobs", len(refs)), zap.Int("refreshed", refreshed), zap.Int("failed", len(errs)))
	return refreshed, errors.Join(errs...)
}

// Start schedules RefreshAll with a standard five-field cron spec.
// Overlapping runs are skipped.
func (r *RankRefresher) Start(spec string) error {
	logger := cronLogger{r.logger.Sugar()}
	c := cron.New(cron.WithLogger(logger), cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)))

	if _, err := c.AddFunc(spec, func() {
		_, _ = r.RefreshAll(context.Background())
	}); err != nil {
		return fmt.Errorf("invalid refresh schedule %q: %w", spec, err)
	}

	r.cron = c
	c.Start()
	r.logger.Info("rank refresher started", zap.String("schedule", spec))
	return nil
}

// Stop stops scheduling and waits for a running refresh, or for ctx.
func (r *RankRefresher) Stop(ctx context.Context) {
	if r.cron == nil {
		return
	}
	select {
	case <-r.cron.Stop().Done():
	case <-ctx.Done():
		r.logger.Warn("rank refresher did not stop in time")
	}
}

// ValidateSchedule reports whether spec parses as a five-field cron spec.
func ValidateSchedule(spec string) error {
	if _, err := cron.ParseStandard(spec); err != nil {
		return fmt.Errorf("invalid refresh schedule %q: %w", spec, err)
	}
	return nil
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct {
	s *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.s.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.s.Errorw(msg, append(keysAndValues, "error", err)...)
}
