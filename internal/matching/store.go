package matching

import (
	"context"
	"time"

	"github.com/coderheist/rest.ai-sub000/internal/types"
	"github.com/google/uuid"
)

// Store is the persistence the service needs. Lookups return (nil, nil)
// when the record does not exist in the tenant.
type Store interface {
	GetJob(ctx context.Context, tenantID, jobID uuid.UUID) (*types.Job, error)
	GetResume(ctx context.Context, tenantID, resumeID uuid.UUID) (*types.Resume, error)
	ListCompletedResumes(ctx context.Context, tenantID, jobID uuid.UUID) ([]types.Resume, error)

	// CreateMatch inserts m unless a match with the same key exists, and
	// returns the stored row. created is false when the row already existed.
	CreateMatch(ctx context.Context, m *types.Match) (stored *types.Match, created bool, err error)
	GetMatchByKey(ctx context.Context, tenantID, jobID, resumeID uuid.UUID) (*types.Match, error)
	GetMatch(ctx context.Context, tenantID, matchID uuid.UUID) (*types.Match, error)

	ListJobMatches(ctx context.Context, tenantID, jobID uuid.UUID, opts types.MatchListOptions) ([]types.Match, error)
	ListResumeMatches(ctx context.Context, tenantID, resumeID uuid.UUID, opts types.MatchListOptions) ([]types.Match, error)
	ListAllJobMatches(ctx context.Context, tenantID, jobID uuid.UUID) ([]types.Match, error)
	ListTopMatches(ctx context.Context, tenantID uuid.UUID, limit int) ([]types.Match, error)
	SearchMatches(ctx context.Context, tenantID uuid.UUID, filter types.MatchSearchFilter) ([]types.Match, error)
	ListShortlisted(ctx context.Context, tenantID uuid.UUID, filter types.ShortlistFilter) ([]types.Match, error)

	UpdateMatchReview(ctx context.Context, tenantID, matchID uuid.UUID, review Review) (*types.Match, error)
	SetShortlist(ctx context.Context, tenantID, matchID uuid.UUID, shortlisted bool, by *uuid.UUID, at *time.Time) (*types.Match, error)
	AddInterviewer(ctx context.Context, tenantID, matchID uuid.UUID, a types.InterviewerAssignment) (*types.Match, error)
	RemoveInterviewer(ctx context.Context, tenantID, matchID, userID uuid.UUID) (*types.Match, error)

	// UpdateRankings recomputes the rank of every match of the job in one
	// transaction and returns how many were ranked.
	UpdateRankings(ctx context.Context, tenantID, jobID uuid.UUID) (int, error)
}

// Review is a status change. Reviewer and Notes are optional.
type Review struct {
	Status     string
	Reviewer   *uuid.UUID
	ReviewedAt *time.Time
	Notes      string
}

// UsageRecorder tracks per-tenant consumption.
type UsageRecorder interface {
	IncrementUsage(ctx context.Context, tenantID uuid.UUID, counter string, n int) error
	GetOrCreateUsage(ctx context.Context, tenantID uuid.UUID, at time.Time) (*types.Usage, error)
}

// StatsCache caches job statistics per generation. Get reports a miss with
// ok=false together with the current generation; Set stores under the
// generation it is given, and Invalidate moves the job to a new one, so stats
// computed before an invalidation are never served after it.
type StatsCache interface {
	Get(ctx context.Context, tenantID, jobID uuid.UUID) (stats *types.JobStats, gen int64, ok bool, err error)
	Set(ctx context.Context, tenantID, jobID uuid.UUID, gen int64, stats *types.JobStats) error
	Invalidate(ctx context.Context, tenantID, jobID uuid.UUID) error
}
