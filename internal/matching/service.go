// Package matching orchestrates match calculation, ranking, statistics and
// the recruiter workflow on top of a Store.
package matching

import (
	"context"
	"fmt"
	"time"

	"github.com/coderheist/rest.ai-sub000/internal/logging"
	"github.com/coderheist/rest.ai-sub000/internal/ranking"
	"github.com/coderheist/rest.ai-sub000/internal/scoring"
	"github.com/coderheist/rest.ai-sub000/internal/types"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// DefaultWorkers is the batch scoring concurrency when none is configured.
const DefaultWorkers = 4

// Options configures a Service. Zero values select defaults.
type Options struct {
	Workers int
	Cache   StatsCache
	Logger  *zap.Logger
	Now     func() time.Time
}

// Service is the match orchestrator.
type Service struct {
	store   Store
	usage   UsageRecorder
	scorer  scoring.Scorer
	cache   StatsCache
	logger  *zap.Logger
	workers int
	now     func() time.Time
	tracer  trace.Tracer
}

// NewService builds a Service. scorer is usually scoring.WithFallback of an
// AIScorer and a RuleScorer, or a RuleScorer alone when no oracle is configured.
func NewService(store Store, usage UsageRecorder, scorer scoring.Scorer, opts Options) *Service {
	workers := opts.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	if scorer == nil {
		scorer = scoring.NewRuleScorer(scoring.DefaultWeights())
	}
	return &Service{
		store:   store,
		usage:   usage,
		scorer:  scorer,
		cache:   opts.Cache,
		logger:  logging.OrNop(opts.Logger),
		workers: workers,
		now:     now,
		tracer:  otel.Tracer("matchengine/matching"),
	}
}

func (s *Service) span(ctx context.Context, name string, tenantID uuid.UUID, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append(attrs, attribute.String("tenant.id", tenantID.String()))
	return s.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// CalculateMatch returns the match for (job, resume), scoring and storing it
// on first request. An existing match is returned unchanged and costs nothing.
func (s *Service) CalculateMatch(ctx context.Context, tenantID, jobID, resumeID uuid.UUID) (_ *types.Match, err error) {
	ctx, span := s.span(ctx, "matching.CalculateMatch", tenantID,
		attribute.String("job.id", jobID.String()), attribute.String("resume.id", resumeID.String()))
	defer func() { endSpan(span, err) }()

	existing, err := s.store.GetMatchByKey(ctx, tenantID, jobID, resumeID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up match: %w", err)
	}
	if existing != nil {
		span.SetAttributes(attribute.Bool("match.existing", true))
		return existing, nil
	}

	job, err := s.store.GetJob(ctx, tenantID, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to load job: %w", err)
	}
	if job == nil {
		return nil, &ErrNotFound{Resource: ResourceJob, ID: jobID}
	}

	resume, err := s.store.GetResume(ctx, tenantID, resumeID)
	if err != nil {
		return nil, fmt.Errorf("failed to load resume: %w", err)
	}
	if resume == nil {
		return nil, &ErrNotFound{Resource: ResourceResume, ID: resumeID}
	}

	return s.scoreAndStore(ctx, tenantID, job, resume)
}

func (s *Service) scoreAndStore(ctx context.Context, tenantID uuid.UUID, job *types.Job, resume *types.Resume) (*types.Match, error) {
	log := s.logger.With(logging.Tenant(tenantID), logging.Job(job.ID), logging.Resume(resume.ID))

	result, err := s.scorer.Score(ctx, job, resume)
	if err != nil {
		return nil, fmt.Errorf("failed to score match: %w", err)
	}

	now := s.now().UTC()
	candidate := newMatch(tenantID, job.ID, resume.ID, result, now)

	stored, created, err := s.store.CreateMatch(ctx, candidate)
	if err != nil {
		return nil, fmt.Errorf("failed to store match: %w", err)
	}
	if !created {
		log.Debug("match created concurrently, returning stored row", logging.Match(stored.ID))
		return stored, nil
	}

	log.Info("match calculated",
		logging.Match(stored.ID),
		logging.Method(result.Method),
		zap.Int("overall_score", stored.OverallScore),
		zap.String("recommendation", string(stored.Recommendation)))

	if result.Method == types.MethodAI && s.usage != nil {
		if err := s.usage.IncrementUsage(ctx, tenantID, types.CounterLLMCalls, 1); err != nil {
			log.Warn("failed to record llm usage", zap.Error(err))
		}
	}
	s.invalidateStats(ctx, tenantID, job.ID)

	return stored, nil
}

func newMatch(tenantID, jobID, resumeID uuid.UUID, r *scoring.Result, now time.Time) *types.Match {
	return &types.Match{
		ID:                   uuid.New(),
		TenantID:             tenantID,
		JobID:                jobID,
		ResumeID:             resumeID,
		OverallScore:         r.OverallScore,
		SkillMatch:           r.SkillMatch,
		ExperienceMatch:      r.ExperienceMatch,
		EducationMatch:       r.EducationMatch,
		SemanticSimilarity:   r.SemanticSimilarity,
		Strengths:            r.Strengths,
		Concerns:             r.Concerns,
		Recommendation:       r.Recommendation,
		AIReasoning:          r.Reasoning,
		ScoringMethod:        r.Method,
		Status:               types.StatusCompleted,
		AssignedInterviewers: []types.InterviewerAssignment{},
		CalculatedAt:         now,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
}

// CalculateJobMatches scores every completed resume of the job, then
// recomputes the job's rankings. Matches are returned in resume order.
// The first failure cancels the remaining work.
func (s *Service) CalculateJobMatches(ctx context.Context, tenantID, jobID uuid.UUID) (_ []types.Match, err error) {
	ctx, span := s.span(ctx, "matching.CalculateJobMatches", tenantID, attribute.String("job.id", jobID.String()))
	defer func() { endSpan(span, err) }()

	job, err := s.store.GetJob(ctx, tenantID, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to load job: %w", err)
	}
	if job == nil {
		return nil, &ErrNotFound{Resource: ResourceJob, ID: jobID}
	}

	resumes, err := s.store.ListCompletedResumes(ctx, tenantID, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to list resumes: %w", err)
	}
	span.SetAttributes(attribute.Int("resumes.count", len(resumes)))

	matches := make([]types.Match, len(resumes))
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)

	for i := range resumes {
		resume := &resumes[i]
		g.Go(func() error {
			m, err := s.store.GetMatchByKey(gCtx, tenantID, jobID, resume.ID)
			if err != nil {
				return fmt.Errorf("failed to look up match for resume %s: %w", resume.ID, err)
			}
			if m == nil {
				m, err = s.scoreAndStore(gCtx, tenantID, job, resume)
				if err != nil {
					return fmt.Errorf("resume %s: %w", resume.ID, err)
				}
			}
			matches[i] = *m
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	if _, err := s.UpdateRankings(ctx, tenantID, jobID); err != nil {
		return nil, err
	}

	s.logger.Info("job matches calculated",
		logging.Tenant(tenantID), logging.Job(jobID), zap.Int("count", len(matches)))
	return matches, nil
}

// UpdateRankings recomputes ranks for all matches of the job.
func (s *Service) UpdateRankings(ctx context.Context, tenantID, jobID uuid.UUID) (_ int, err error) {
	ctx, span := s.span(ctx, "matching.UpdateRankings", tenantID, attribute.String("job.id", jobID.String()))
	defer func() { endSpan(span, err) }()

	n, err := s.store.UpdateRankings(ctx, tenantID, jobID)
	if err != nil {
		return 0, fmt.Errorf("failed to update rankings: %w", err)
	}
	span.SetAttributes(attribute.Int("matches.ranked", n))
	if n > 0 {
		s.invalidateStats(ctx, tenantID, jobID)
	}

	s.logger.Debug("rankings updated", logging.Tenant(tenantID), logging.Job(jobID), zap.Int("count", n))
	return n, nil
}

// UpdateMatchStatus moves a match through its lifecycle. reviewer may be nil.
func (s *Service) UpdateMatchStatus(ctx context.Context, tenantID, matchID uuid.UUID, status string, reviewer *uuid.UUID, notes string) (_ *types.Match, err error) {
	if !types.ValidStatus(status) {
		return nil, &ErrInvalidStatus{Status: status}
	}

	ctx, span := s.span(ctx, "matching.UpdateMatchStatus", tenantID, attribute.String("match.id", matchID.String()))
	defer func() { endSpan(span, err) }()

	review := Review{Status: status, Notes: notes}
	if reviewer != nil {
		at := s.now().UTC()
		review.Reviewer = reviewer
		review.ReviewedAt = &at
	}

	m, err := s.store.UpdateMatchReview(ctx, tenantID, matchID, review)
	if err != nil {
		return nil, fmt.Errorf("failed to update match status: %w", err)
	}
	if m == nil {
		return nil, &ErrNotFound{Resource: ResourceMatch, ID: matchID}
	}

	s.invalidateStats(ctx, tenantID, m.JobID)
	s.logger.Info("match status updated",
		logging.Tenant(tenantID), logging.Match(matchID), zap.String("status", status))
	return m, nil
}

// GetMatch returns one match of the tenant.
func (s *Service) GetMatch(ctx context.Context, tenantID, matchID uuid.UUID) (*types.Match, error) {
	m, err := s.store.GetMatch(ctx, tenantID, matchID)
	if err != nil {
		return nil, fmt.Errorf("failed to get match: %w", err)
	}
	if m == nil {
		return nil, &ErrNotFound{Resource: ResourceMatch, ID: matchID}
	}
	return m, nil
}

// GetRankedCandidates lists a job's matches, best first.
func (s *Service) GetRankedCandidates(ctx context.Context, tenantID, jobID uuid.UUID, opts types.MatchListOptions) ([]types.Match, error) {
	if opts.Status != "" && !types.ValidStatus(opts.Status) {
		return nil, &ErrInvalidStatus{Status: opts.Status}
	}
	if opts.Skip < 0 {
		opts.Skip = 0
	}
	opts.Limit = types.ClampLimit(opts.Limit, types.DefaultJobMatchLimit)

	matches, err := s.store.ListJobMatches(ctx, tenantID, jobID, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to get ranked candidates: %w", err)
	}
	return matches, nil
}

// GetResumeMatches lists the matches of one resume across jobs, best first.
func (s *Service) GetResumeMatches(ctx context.Context, tenantID, resumeID uuid.UUID, opts types.MatchListOptions) ([]types.Match, error) {
	opts.Limit = types.ClampLimit(opts.Limit, types.DefaultResumeMatchLimit)
	opts.Skip = 0
	opts.Status = ""

	matches, err := s.store.ListResumeMatches(ctx, tenantID, resumeID, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to get resume matches: %w", err)
	}
	return matches, nil
}

// GetJobStats returns the statistical rollup of a job's matches, served from
// the stats cache when possible.
func (s *Service) GetJobStats(ctx context.Context, tenantID, jobID uuid.UUID) (_ *types.JobStats, err error) {
	ctx, span := s.span(ctx, "matching.GetJobStats", tenantID, attribute.String("job.id", jobID.String()))
	defer func() { endSpan(span, err) }()

	var gen int64
	cacheable := false
	if s.cache != nil {
		cached, g, ok, err := s.cache.Get(ctx, tenantID, jobID)
		switch {
		case err != nil:
			s.logger.Warn("stats cache read failed", logging.Tenant(tenantID), logging.Job(jobID), zap.Error(err))
		case ok:
			span.SetAttributes(attribute.Bool("cache.hit", true))
			return cached, nil
		default:
			gen, cacheable = g, true
		}
	}

	matches, err := s.store.ListAllJobMatches(ctx, tenantID, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to get match stats: %w", err)
	}

	stats := ranking.ComputeStats(matches)

	// an invalidation since Get moved the generation on, so this write is never read
	if cacheable {
		if err := s.cache.Set(ctx, tenantID, jobID, gen, &stats); err != nil {
			s.logger.Warn("stats cache write failed", logging.Tenant(tenantID), logging.Job(jobID), zap.Error(err))
		}
	}
	return &stats, nil
}

// GetTopMatches returns the tenant's best completed matches across all jobs.
func (s *Service) GetTopMatches(ctx context.Context, tenantID uuid.UUID, limit int) ([]types.Match, error) {
	matches, err := s.store.ListTopMatches(ctx, tenantID, types.ClampLimit(limit, types.DefaultTopMatchLimit))
	if err != nil {
		return nil, fmt.Errorf("failed to get top matches: %w", err)
	}
	return matches, nil
}

// SearchMatches runs a filtered tenant-wide search.
func (s *Service) SearchMatches(ctx context.Context, tenantID uuid.UUID, filter types.MatchSearchFilter) ([]types.Match, error) {
	if filter.Status != "" && !types.ValidStatus(filter.Status) {
		return nil, &ErrInvalidStatus{Status: filter.Status}
	}
	if filter.Recommendation != "" && !filter.Recommendation.Valid() {
		return nil, &ErrValidation{Field: "recommendation", Message: "unknown recommendation"}
	}
	if filter.MaxScore != nil && filter.MinScore > *filter.MaxScore {
		return nil, &ErrValidation{Field: "minScore", Message: "must not exceed maxScore"}
	}
	filter.Limit = types.ClampLimit(filter.Limit, types.DefaultSearchLimit)

	matches, err := s.store.SearchMatches(ctx, tenantID, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to search matches: %w", err)
	}
	return matches, nil
}

// ToggleShortlist flips the shortlist flag of a match. Shortlisting records
// who and when; removing from the shortlist clears both.
func (s *Service) ToggleShortlist(ctx context.Context, tenantID, matchID, userID uuid.UUID) (*types.Match, error) {
	current, err := s.GetMatch(ctx, tenantID, matchID)
	if err != nil {
		return nil, err
	}

	shortlisted := !current.IsShortlisted
	var by *uuid.UUID
	var at *time.Time
	if shortlisted {
		now := s.now().UTC()
		by, at = &userID, &now
	}

	m, err := s.store.SetShortlist(ctx, tenantID, matchID, shortlisted, by, at)
	if err != nil {
		return nil, fmt.Errorf("failed to toggle shortlist: %w", err)
	}
	if m == nil {
		return nil, &ErrNotFound{Resource: ResourceMatch, ID: matchID}
	}

	s.invalidateStats(ctx, tenantID, m.JobID)
	s.logger.Info("shortlist toggled",
		logging.Tenant(tenantID), logging.Match(matchID), logging.User(userID), zap.Bool("shortlisted", shortlisted))
	return m, nil
}

// GetShortlisted lists shortlisted matches, most recently shortlisted first.
func (s *Service) GetShortlisted(ctx context.Context, tenantID uuid.UUID, filter types.ShortlistFilter) ([]types.Match, error) {
	filter.Limit = types.ClampLimit(filter.Limit, types.DefaultSearchLimit)

	matches, err := s.store.ListShortlisted(ctx, tenantID, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to get shortlisted candidates: %w", err)
	}
	return matches, nil
}

// AssignInterviewer adds userID to the match's interviewers. Assigning an
// already assigned user leaves the match unchanged.
func (s *Service) AssignInterviewer(ctx context.Context, tenantID, matchID, userID, assignedBy uuid.UUID) (*types.Match, error) {
	current, err := s.GetMatch(ctx, tenantID, matchID)
	if err != nil {
		return nil, err
	}
	for _, a := range current.AssignedInterviewers {
		if a.UserID == userID {
			return current, nil
		}
	}

	m, err := s.store.AddInterviewer(ctx, tenantID, matchID, types.InterviewerAssignment{
		UserID:     userID,
		AssignedBy: assignedBy,
		AssignedAt: s.now().UTC(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to assign interviewer: %w", err)
	}
	if m == nil {
		return nil, &ErrNotFound{Resource: ResourceMatch, ID: matchID}
	}

	s.invalidateStats(ctx, tenantID, m.JobID)
	s.logger.Info("interviewer assigned", logging.Tenant(tenantID), logging.Match(matchID), logging.User(userID))
	return m, nil
}

// UnassignInterviewer removes userID from the match's interviewers.
func (s *Service) UnassignInterviewer(ctx context.Context, tenantID, matchID, userID uuid.UUID) (*types.Match, error) {
	if _, err := s.GetMatch(ctx, tenantID, matchID); err != nil {
		return nil, err
	}

	m, err := s.store.RemoveInterviewer(ctx, tenantID, matchID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to unassign interviewer: %w", err)
	}
	if m == nil {
		return nil, &ErrNotFound{Resource: ResourceMatch, ID: matchID}
	}

	s.invalidateStats(ctx, tenantID, m.JobID)
	s.logger.Info("interviewer unassigned", logging.Tenant(tenantID), logging.Match(matchID), logging.User(userID))
	return m, nil
}

// GetCurrentUsage returns the tenant's usage for the current period.
func (s *Service) GetCurrentUsage(ctx context.Context, tenantID uuid.UUID) (*types.Usage, error) {
	if s.usage == nil {
		start, end := types.UsagePeriod(s.now())
		return &types.Usage{TenantID: tenantID, PeriodStart: start, PeriodEnd: end}, nil
	}
	u, err := s.usage.GetOrCreateUsage(ctx, tenantID, s.now())
	if err != nil {
		return nil, fmt.Errorf("failed to get usage: %w", err)
	}
	return u, nil
}

func (s *Service) invalidateStats(ctx context.Context, tenantID, jobID uuid.UUID) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, tenantID, jobID); err != nil {
		s.logger.Warn("stats cache invalidation failed", logging.Tenant(tenantID), logging.Job(jobID), zap.Error(err))
	}
}
