package matching

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/coderheist/rest.ai-sub000/internal/scoring"
	"github.com/coderheist/rest.ai-sub000/internal/types"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2024, 6, 15, 9, 30, 0, 0, time.UTC)

type fixture struct {
	store  *memStore
	usage  *memUsage
	cache  *memCache
	scorer *scriptedScorer
	svc    *Service
	tenant uuid.UUID
	job    types.Job
}

func newFixture(t *testing.T, workers int) *fixture {
	t.Helper()
	f := &fixture{
		store:  newMemStore(),
		usage:  newMemUsage(),
		cache:  newMemCache(),
		scorer: &scriptedScorer{scores: map[uuid.UUID]int{}, fail: map[uuid.UUID]bool{}},
		tenant: uuid.New(),
	}
	f.job = types.Job{ID: uuid.New(), TenantID: f.tenant, Title: "Backend Engineer", Status: types.JobStatusActive}
	f.store.addJob(f.job)
	f.svc = NewService(f.store, f.usage, f.scorer, Options{
		Workers: workers,
		Cache:   f.cache,
		Now:     func() time.Time { return testNow },
	})
	return f
}

func (f *fixture) addResume(score int, status string, offset time.Duration) types.Resume {
	jobID := f.job.ID
	r := types.Resume{
		ID:            uuid.New(),
		TenantID:      f.tenant,
		JobID:         &jobID,
		ParsingStatus: status,
		CreatedAt:     testNow.Add(offset),
	}
	f.store.addResume(r)
	f.scorer.scores[r.ID] = score
	return r
}

func TestCalculateMatch_CreatesCompletedMatch(t *testing.T) {
	f := newFixture(t, 1)
	r := f.addResume(77, types.ParsingCompleted, 0)

	m, err := f.svc.CalculateMatch(context.Background(), f.tenant, f.job.ID, r.ID)
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, m.ID)
	assert.Equal(t, f.tenant, m.TenantID)
	assert.Equal(t, 77, m.OverallScore)
	assert.Equal(t, types.GoodMatch, m.Recommendation)
	assert.Equal(t, types.StatusCompleted, m.Status)
	assert.Equal(t, types.MethodRuleBased, m.ScoringMethod)
	assert.Equal(t, testNow, m.CalculatedAt)
	assert.Equal(t, 0, f.usage.get(f.tenant, types.CounterLLMCalls), "rule-based scoring is free")
	assert.Equal(t, 1, f.cache.invalidated)
}

func TestCalculateMatch_Idempotent(t *testing.T) {
	f := newFixture(t, 1)
	f.scorer.method = types.MethodAI
	r := f.addResume(88, types.ParsingCompleted, 0)

	first, err := f.svc.CalculateMatch(context.Background(), f.tenant, f.job.ID, r.ID)
	require.NoError(t, err)

	// a different score on the second call must not leak into the stored match
	f.scorer.scores[r.ID] = 10
	second, err := f.svc.CalculateMatch(context.Background(), f.tenant, f.job.ID, r.ID)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 88, second.OverallScore)
	assert.Equal(t, 1, f.scorer.callCount())
	assert.Equal(t, 1, f.store.count())
	assert.Equal(t, 1, f.usage.get(f.tenant, types.CounterLLMCalls))
}

func TestCalculateMatch_ConcurrentInsertDoesNotCharge(t *testing.T) {
	f := newFixture(t, 1)
	f.scorer.method = types.MethodAI
	r := f.addResume(70, types.ParsingCompleted, 0)

	winner := uuid.New()
	f.store.beforeCreate = func(m *types.Match) {
		f.store.mu.Lock()
		defer f.store.mu.Unlock()
		if f.store.findByKey(m.TenantID, m.JobID, m.ResumeID) == nil {
			w := *m
			w.ID = winner
			f.store.matches[winner] = &w
		}
	}

	m, err := f.svc.CalculateMatch(context.Background(), f.tenant, f.job.ID, r.ID)
	require.NoError(t, err)
	assert.Equal(t, winner, m.ID)
	assert.Equal(t, 1, f.store.count())
	assert.Equal(t, 0, f.usage.get(f.tenant, types.CounterLLMCalls))
}

func TestCalculateMatch_NotFound(t *testing.T) {
	f := newFixture(t, 1)
	r := f.addResume(50, types.ParsingCompleted, 0)

	tests := []struct {
		name     string
		tenant   uuid.UUID
		jobID    uuid.UUID
		resumeID uuid.UUID
		resource string
	}{
		{name: "missing job", tenant: f.tenant, jobID: uuid.New(), resumeID: r.ID, resource: ResourceJob},
		{name: "missing resume", tenant: f.tenant, jobID: f.job.ID, resumeID: uuid.New(), resource: ResourceResume},
		{name: "other tenant", tenant: uuid.New(), jobID: f.job.ID, resumeID: r.ID, resource: ResourceJob},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := f.svc.CalculateMatch(context.Background(), tt.tenant, tt.jobID, tt.resumeID)
			assert.Nil(t, m)

			var notFound *ErrNotFound
			require.ErrorAs(t, err, &notFound)
			assert.Equal(t, tt.resource, notFound.Resource)
		})
	}
	assert.Equal(t, 0, f.store.count())
	assert.Equal(t, 0, f.scorer.callCount())
}

func TestCalculateMatch_StoreFailure(t *testing.T) {
	f := newFixture(t, 1)
	f.scorer.method = types.MethodAI
	r := f.addResume(50, types.ParsingCompleted, 0)
	f.store.failCreate = errors.New("disk full")

	_, err := f.svc.CalculateMatch(context.Background(), f.tenant, f.job.ID, r.ID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.Equal(t, 0, f.usage.get(f.tenant, types.CounterLLMCalls))
}

func TestCalculateMatch_UsesRuleFallback(t *testing.T) {
	f := newFixture(t, 1)
	r := f.addResume(0, types.ParsingCompleted, 0)

	failing := &scriptedScorer{fail: map[uuid.UUID]bool{r.ID: true}}
	rules := &scoring.RuleScorer{Now: func() time.Time { return testNow }}
	svc := NewService(f.store, f.usage, scoring.WithFallback(failing, rules, nil), Options{})

	m, err := svc.CalculateMatch(context.Background(), f.tenant, f.job.ID, r.ID)
	require.NoError(t, err)
	assert.Equal(t, types.MethodRuleBased, m.ScoringMethod)
	assert.Equal(t, 1, failing.callCount())
	assert.Equal(t, 0, f.usage.get(f.tenant, types.CounterLLMCalls))
}

func TestCalculateJobMatches(t *testing.T) {
	for _, workers := range []int{1, 4} {
		t.Run("workers", func(t *testing.T) {
			f := newFixture(t, workers)
			a := f.addResume(61, types.ParsingCompleted, 1*time.Minute)
			b := f.addResume(90, types.ParsingCompleted, 2*time.Minute)
			f.addResume(99, types.ParsingPending, 3*time.Minute)
			c := f.addResume(72, types.ParsingCompleted, 4*time.Minute)

			matches, err := f.svc.CalculateJobMatches(context.Background(), f.tenant, f.job.ID)
			require.NoError(t, err)
			require.Len(t, matches, 3)

			assert.Equal(t, []uuid.UUID{a.ID, b.ID, c.ID},
				[]uuid.UUID{matches[0].ResumeID, matches[1].ResumeID, matches[2].ResumeID})

			ranked, err := f.svc.GetRankedCandidates(context.Background(), f.tenant, f.job.ID, types.MatchListOptions{})
			require.NoError(t, err)
			require.Len(t, ranked, 3)
			for i, m := range ranked {
				require.NotNil(t, m.Rank)
				assert.Equal(t, i+1, *m.Rank)
			}
			assert.Equal(t, []int{90, 72, 61},
				[]int{ranked[0].OverallScore, ranked[1].OverallScore, ranked[2].OverallScore})

			// second run reuses every match
			_, err = f.svc.CalculateJobMatches(context.Background(), f.tenant, f.job.ID)
			require.NoError(t, err)
			assert.Equal(t, 3, f.scorer.callCount())
			assert.Equal(t, 3, f.store.count())
		})
	}
}

func TestCalculateJobMatches_FirstErrorAborts(t *testing.T) {
	f := newFixture(t, 2)
	f.addResume(61, types.ParsingCompleted, time.Minute)
	bad := f.addResume(90, types.ParsingCompleted, 2*time.Minute)
	f.scorer.fail[bad.ID] = true

	matches, err := f.svc.CalculateJobMatches(context.Background(), f.tenant, f.job.ID)
	assert.Nil(t, matches)
	assert.ErrorIs(t, err, errScripted)
}

func TestCalculateJobMatches_UnknownJob(t *testing.T) {
	f := newFixture(t, 1)

	_, err := f.svc.CalculateJobMatches(context.Background(), f.tenant, uuid.New())
	var notFound *ErrNotFound
	assert.ErrorAs(t, err, &notFound)
}

func TestCalculateJobMatches_NoResumes(t *testing.T) {
	f := newFixture(t, 1)

	matches, err := f.svc.CalculateJobMatches(context.Background(), f.tenant, f.job.ID)
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestUpdateRankings_Empty(t *testing.T) {
	f := newFixture(t, 1)

	n, err := f.svc.UpdateRankings(context.Background(), f.tenant, f.job.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Equal(t, 0, f.cache.invalidated)
}

func TestUpdateMatchStatus(t *testing.T) {
	f := newFixture(t, 1)
	r := f.addResume(70, types.ParsingCompleted, 0)
	m, err := f.svc.CalculateMatch(context.Background(), f.tenant, f.job.ID, r.ID)
	require.NoError(t, err)

	t.Run("invalid status is rejected before any write", func(t *testing.T) {
		_, err := f.svc.UpdateMatchStatus(context.Background(), f.tenant, m.ID, "archived", nil, "")
		var invalid *ErrInvalidStatus
		require.ErrorAs(t, err, &invalid)
		assert.Equal(t, "Invalid status", err.Error())
		assert.Equal(t, 0, f.store.reviewCalls)
	})

	t.Run("missing match", func(t *testing.T) {
		_, err := f.svc.UpdateMatchStatus(context.Background(), f.tenant, uuid.New(), types.StatusReviewed, nil, "")
		var notFound *ErrNotFound
		assert.ErrorAs(t, err, &notFound)
	})

	t.Run("reviewer and notes", func(t *testing.T) {
		reviewer := uuid.New()
		updated, err := f.svc.UpdateMatchStatus(context.Background(), f.tenant, m.ID, types.StatusReviewed, &reviewer, "Strong systems background")
		require.NoError(t, err)

		assert.Equal(t, types.StatusReviewed, updated.Status)
		require.NotNil(t, updated.ReviewedBy)
		assert.Equal(t, reviewer, *updated.ReviewedBy)
		require.NotNil(t, updated.ReviewedAt)
		assert.Equal(t, testNow, *updated.ReviewedAt)
		assert.Equal(t, "Strong systems background", updated.ReviewNotes)
		assert.Equal(t, 70, updated.OverallScore)
	})

	t.Run("empty notes keep previous notes", func(t *testing.T) {
		updated, err := f.svc.UpdateMatchStatus(context.Background(), f.tenant, m.ID, types.StatusRejected, nil, "")
		require.NoError(t, err)
		assert.Equal(t, types.StatusRejected, updated.Status)
		assert.Equal(t, "Strong systems background", updated.ReviewNotes)
	})
}

func TestGetJobStats(t *testing.T) {
	f := newFixture(t, 1)
	for i, score := range []int{90, 72, 61, 45, 30} {
		r := f.addResume(score, types.ParsingCompleted, time.Duration(i)*time.Minute)
		_, err := f.svc.CalculateMatch(context.Background(), f.tenant, f.job.ID, r.ID)
		require.NoError(t, err)
	}

	stats, err := f.svc.GetJobStats(context.Background(), f.tenant, f.job.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, stats.TotalMatches)
	assert.Equal(t, 60, stats.AverageScore)
	assert.Equal(t, types.Distribution{Excellent: 1, VeryGood: 1, Good: 1, Poor: 2}, stats.Distribution)
	require.NotNil(t, stats.BestMatch)
	assert.Equal(t, 90, stats.BestMatch.OverallScore)
	assert.Len(t, stats.TopCandidates, 5)

	// cached
	_, err = f.svc.GetJobStats(context.Background(), f.tenant, f.job.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, f.cache.hits)

	// a new match invalidates
	r := f.addResume(99, types.ParsingCompleted, time.Hour)
	_, err = f.svc.CalculateMatch(context.Background(), f.tenant, f.job.ID, r.ID)
	require.NoError(t, err)

	stats, err = f.svc.GetJobStats(context.Background(), f.tenant, f.job.ID)
	require.NoError(t, err)
	assert.Equal(t, 6, stats.TotalMatches)
	assert.Equal(t, 1, f.cache.hits)
}

func TestGetJobStats_MatchCreatedDuringRead(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()
	first := f.addResume(80, types.ParsingCompleted, 0)
	_, err := f.svc.CalculateMatch(ctx, f.tenant, f.job.ID, first.ID)
	require.NoError(t, err)

	second := f.addResume(60, types.ParsingCompleted, time.Minute)
	f.store.afterListAll = func() {
		f.store.afterListAll = nil
		_, err := f.svc.CalculateMatch(ctx, f.tenant, f.job.ID, second.ID)
		require.NoError(t, err)
	}

	stats, err := f.svc.GetJobStats(ctx, f.tenant, f.job.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalMatches)
	assert.Equal(t, 1, f.cache.sets)

	stats, err = f.svc.GetJobStats(ctx, f.tenant, f.job.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalMatches)
	assert.Equal(t, 2, f.store.count())
	assert.Equal(t, 0, f.cache.hits)

	// the fresh result is cached under the current generation
	_, err = f.svc.GetJobStats(ctx, f.tenant, f.job.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, f.cache.hits)
}

func TestGetJobStats_CacheErrorFallsThrough(t *testing.T) {
	f := newFixture(t, 1)
	f.cache.getErr = errors.New("redis down")

	stats, err := f.svc.GetJobStats(context.Background(), f.tenant, f.job.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.TotalMatches)
	assert.Nil(t, stats.BestMatch)
	assert.Equal(t, 0, f.cache.sets)
}

func TestListings(t *testing.T) {
	f := newFixture(t, 1)
	var resumeIDs []uuid.UUID
	for i, score := range []int{95, 40, 82} {
		r := f.addResume(score, types.ParsingCompleted, time.Duration(i)*time.Minute)
		resumeIDs = append(resumeIDs, r.ID)
		_, err := f.svc.CalculateMatch(context.Background(), f.tenant, f.job.ID, r.ID)
		require.NoError(t, err)
	}
	ctx := context.Background()

	top, err := f.svc.GetTopMatches(ctx, f.tenant, 0)
	require.NoError(t, err)
	assert.Equal(t, types.DefaultTopMatchLimit, f.store.lastLimit)
	assert.Equal(t, 95, top[0].OverallScore)

	_, err = f.svc.GetTopMatches(ctx, f.tenant, 1000)
	require.NoError(t, err)
	assert.Equal(t, types.MaxListLimit, f.store.lastLimit)

	filtered, err := f.svc.GetRankedCandidates(ctx, f.tenant, f.job.ID, types.MatchListOptions{MinScore: 80, Limit: 1})
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.Equal(t, 95, filtered[0].OverallScore)

	skipped, err := f.svc.GetRankedCandidates(ctx, f.tenant, f.job.ID, types.MatchListOptions{Skip: 1})
	require.NoError(t, err)
	assert.Len(t, skipped, 2)

	_, err = f.svc.GetRankedCandidates(ctx, f.tenant, f.job.ID, types.MatchListOptions{Status: "bogus"})
	var invalid *ErrInvalidStatus
	assert.ErrorAs(t, err, &invalid)

	byResume, err := f.svc.GetResumeMatches(ctx, f.tenant, resumeIDs[1], types.MatchListOptions{})
	require.NoError(t, err)
	require.Len(t, byResume, 1)
	assert.Equal(t, types.DefaultResumeMatchLimit, f.store.lastLimit)

	maxScore := 90
	found, err := f.svc.SearchMatches(ctx, f.tenant, types.MatchSearchFilter{MinScore: 50, MaxScore: &maxScore})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, 82, found[0].OverallScore)

	found, err = f.svc.SearchMatches(ctx, f.tenant, types.MatchSearchFilter{Recommendation: types.StrongMatch})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, 95, found[0].OverallScore)

	_, err = f.svc.SearchMatches(ctx, f.tenant, types.MatchSearchFilter{Recommendation: "great"})
	var validation *ErrValidation
	assert.ErrorAs(t, err, &validation)

	tooLow := 10
	_, err = f.svc.SearchMatches(ctx, f.tenant, types.MatchSearchFilter{MinScore: 90, MaxScore: &tooLow})
	assert.ErrorAs(t, err, &validation)

	other, err := f.svc.GetTopMatches(ctx, uuid.New(), 10)
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestSearchMatches_ZeroMaxScore(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()
	for i, score := range []int{0, 70} {
		r := f.addResume(score, types.ParsingCompleted, time.Duration(i)*time.Minute)
		_, err := f.svc.CalculateMatch(ctx, f.tenant, f.job.ID, r.ID)
		require.NoError(t, err)
	}

	zero := 0
	found, err := f.svc.SearchMatches(ctx, f.tenant, types.MatchSearchFilter{MaxScore: &zero})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, 0, found[0].OverallScore)

	_, err = f.svc.SearchMatches(ctx, f.tenant, types.MatchSearchFilter{MinScore: 10, MaxScore: &zero})
	var validation *ErrValidation
	assert.ErrorAs(t, err, &validation)

	all, err := f.svc.SearchMatches(ctx, f.tenant, types.MatchSearchFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestGetMatch(t *testing.T) {
	f := newFixture(t, 1)
	r := f.addResume(70, types.ParsingCompleted, 0)
	m, err := f.svc.CalculateMatch(context.Background(), f.tenant, f.job.ID, r.ID)
	require.NoError(t, err)

	got, err := f.svc.GetMatch(context.Background(), f.tenant, m.ID)
	require.NoError(t, err)
	assert.Equal(t, m.ID, got.ID)

	_, err = f.svc.GetMatch(context.Background(), uuid.New(), m.ID)
	var notFound *ErrNotFound
	assert.ErrorAs(t, err, &notFound)
}

func TestToggleShortlist(t *testing.T) {
	f := newFixture(t, 1)
	r := f.addResume(70, types.ParsingCompleted, 0)
	m, err := f.svc.CalculateMatch(context.Background(), f.tenant, f.job.ID, r.ID)
	require.NoError(t, err)
	user := uuid.New()

	on, err := f.svc.ToggleShortlist(context.Background(), f.tenant, m.ID, user)
	require.NoError(t, err)
	assert.True(t, on.IsShortlisted)
	require.NotNil(t, on.ShortlistedBy)
	assert.Equal(t, user, *on.ShortlistedBy)
	require.NotNil(t, on.ShortlistedAt)
	assert.Equal(t, testNow, *on.ShortlistedAt)

	listed, err := f.svc.GetShortlisted(context.Background(), f.tenant, types.ShortlistFilter{JobID: &f.job.ID})
	require.NoError(t, err)
	require.Len(t, listed, 1)

	off, err := f.svc.ToggleShortlist(context.Background(), f.tenant, m.ID, user)
	require.NoError(t, err)
	assert.False(t, off.IsShortlisted)
	assert.Nil(t, off.ShortlistedBy)
	assert.Nil(t, off.ShortlistedAt)

	listed, err = f.svc.GetShortlisted(context.Background(), f.tenant, types.ShortlistFilter{})
	require.NoError(t, err)
	assert.Empty(t, listed)

	_, err = f.svc.ToggleShortlist(context.Background(), f.tenant, uuid.New(), user)
	var notFound *ErrNotFound
	assert.ErrorAs(t, err, &notFound)
}

func TestInterviewers(t *testing.T) {
	f := newFixture(t, 1)
	r := f.addResume(70, types.ParsingCompleted, 0)
	m, err := f.svc.CalculateMatch(context.Background(), f.tenant, f.job.ID, r.ID)
	require.NoError(t, err)
	interviewer, recruiter := uuid.New(), uuid.New()

	assigned, err := f.svc.AssignInterviewer(context.Background(), f.tenant, m.ID, interviewer, recruiter)
	require.NoError(t, err)
	require.Len(t, assigned.AssignedInterviewers, 1)
	assert.Equal(t, types.InterviewerAssignment{UserID: interviewer, AssignedBy: recruiter, AssignedAt: testNow},
		assigned.AssignedInterviewers[0])

	again, err := f.svc.AssignInterviewer(context.Background(), f.tenant, m.ID, interviewer, uuid.New())
	require.NoError(t, err)
	require.Len(t, again.AssignedInterviewers, 1)
	assert.Equal(t, recruiter, again.AssignedInterviewers[0].AssignedBy)

	removed, err := f.svc.UnassignInterviewer(context.Background(), f.tenant, m.ID, interviewer)
	require.NoError(t, err)
	assert.Empty(t, removed.AssignedInterviewers)

	noop, err := f.svc.UnassignInterviewer(context.Background(), f.tenant, m.ID, uuid.New())
	require.NoError(t, err)
	assert.Empty(t, noop.AssignedInterviewers)

	_, err = f.svc.AssignInterviewer(context.Background(), f.tenant, uuid.New(), interviewer, recruiter)
	var notFound *ErrNotFound
	assert.ErrorAs(t, err, &notFound)
}

func TestGetCurrentUsage(t *testing.T) {
	f := newFixture(t, 1)
	f.scorer.method = types.MethodAI
	r := f.addResume(70, types.ParsingCompleted, 0)
	_, err := f.svc.CalculateMatch(context.Background(), f.tenant, f.job.ID, r.ID)
	require.NoError(t, err)

	u, err := f.svc.GetCurrentUsage(context.Background(), f.tenant)
	require.NoError(t, err)
	assert.Equal(t, 1, u.LLMCalls)
	assert.Equal(t, time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC), u.PeriodStart)
	assert.Equal(t, time.Date(2024, 6, 30, 23, 59, 59, 0, time.UTC), u.PeriodEnd)

	noUsage := NewService(f.store, nil, f.scorer, Options{Now: func() time.Time { return testNow }})
	u, err = noUsage.GetCurrentUsage(context.Background(), f.tenant)
	require.NoError(t, err)
	assert.Equal(t, 0, u.LLMCalls)
}
