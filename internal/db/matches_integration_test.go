//go:build integration

package db

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/coderheist/rest.ai-sub000/internal/matching"
	"github.com/coderheist/rest.ai-sub000/internal/types"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func getTestDB(t *testing.T) *DB {
	t.Helper()

	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping integration test")
	}

	ctx := context.Background()
	db, err := Connect(ctx, dsn)
	require.NoError(t, err, "failed to connect to test database")
	require.NoError(t, db.Migrate(ctx))
	return db
}

// seed inserts a job and n completed resumes for a fresh tenant.
func seed(t *testing.T, db *DB, n int) (tenantID, jobID uuid.UUID, resumeIDs []uuid.UUID) {
	t.Helper()
	ctx := context.Background()
	tenantID, jobID = uuid.New(), uuid.New()

	_, err := db.pool.Exec(ctx,
		`INSERT INTO jobs (id, tenant_id, title, required_skills, experience_min, experience_max, education_level, status)
		 VALUES ($1, $2, 'Backend Engineer', ARRAY['go','postgresql'], 3, 5, 'bachelor', 'active')`,
		jobID, tenantID)
	require.NoError(t, err)

	for i := 0; i < n; i++ {
		id := uuid.New()
		_, err := db.pool.Exec(ctx,
			`INSERT INTO resumes (id, tenant_id, job_id, file_name, personal_info, skills, parsing_status, created_at)
			 VALUES ($1, $2, $3, 'cv.pdf', '{"fullName":"Ada Lovelace","email":"ada@example.com"}',
			         '{"technical":["Go"]}', 'completed', $4)`,
			id, tenantID, jobID, time.Now().Add(time.Duration(i)*time.Second))
		require.NoError(t, err)
		resumeIDs = append(resumeIDs, id)
	}

	t.Cleanup(func() {
		_, _ = db.pool.Exec(context.Background(), "DELETE FROM matches WHERE tenant_id = $1", tenantID)
		_, _ = db.pool.Exec(context.Background(), "DELETE FROM resumes WHERE tenant_id = $1", tenantID)
		_, _ = db.pool.Exec(context.Background(), "DELETE FROM jobs WHERE tenant_id = $1", tenantID)
		_, _ = db.pool.Exec(context.Background(), "DELETE FROM tenant_usage WHERE tenant_id = $1", tenantID)
	})
	return tenantID, jobID, resumeIDs
}

func newTestMatch(tenantID, jobID, resumeID uuid.UUID, score int) *types.Match {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &types.Match{
		ID:           uuid.New(),
		TenantID:     tenantID,
		JobID:        jobID,
		ResumeID:     resumeID,
		OverallScore: score,
		SkillMatch: types.SkillMatch{
			Score:         score,
			MatchedSkills: []types.MatchedSkill{{Skill: "go", Confidence: 1, Source: types.SourceExact}},
			MissingSkills: []string{"postgresql"},
		},
		ExperienceMatch:    types.ExperienceMatch{Score: 100, RequiredYears: "3-5", CandidateYears: 4},
		EducationMatch:     types.EducationMatch{Score: 100, Meets: true},
		SemanticSimilarity: 0.75,
		Strengths:          []string{"Strong skill match"},
		Concerns:           []string{},
		Recommendation:     types.GoodMatch,
		ScoringMethod:      types.MethodRuleBased,
		Status:             types.StatusCompleted,
		CalculatedAt:       now,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
}

func TestIntegration_Reads(t *testing.T) {
	db := getTestDB(t)
	defer db.Close()
	ctx := context.Background()
	tenantID, jobID, resumeIDs := seed(t, db, 2)

	job, err := db.GetJob(ctx, tenantID, jobID)
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, []string{"go", "postgresql"}, job.RequiredSkills)
	assert.Equal(t, 3.0, job.ExperienceYears.Min)

	other, err := db.GetJob(ctx, uuid.New(), jobID)
	require.NoError(t, err)
	assert.Nil(t, other, "jobs are tenant scoped")

	resume, err := db.GetResume(ctx, tenantID, resumeIDs[0])
	require.NoError(t, err)
	require.NotNil(t, resume)
	assert.Equal(t, "Ada Lovelace", resume.PersonalInfo.FullName)
	assert.Equal(t, []string{"Go"}, resume.Skills.Technical)

	resumes, err := db.ListCompletedResumes(ctx, tenantID, jobID)
	require.NoError(t, err)
	assert.Len(t, resumes, 2)
	assert.Equal(t, resumeIDs[0], resumes[0].ID)

	refs, err := db.ListActiveJobs(ctx)
	require.NoError(t, err)
	assert.Contains(t, refs, JobRef{TenantID: tenantID, JobID: jobID})
}

func TestIntegration_CreateMatch_Unique(t *testing.T) {
	db := getTestDB(t)
	defer db.Close()
	ctx := context.Background()
	tenantID, jobID, resumeIDs := seed(t, db, 1)

	first, created, err := db.CreateMatch(ctx, newTestMatch(tenantID, jobID, resumeIDs[0], 80))
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "3-5", first.ExperienceMatch.RequiredYears)
	assert.Equal(t, types.GoodMatch, first.Recommendation)

	second, created, err := db.CreateMatch(ctx, newTestMatch(tenantID, jobID, resumeIDs[0], 10))
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 80, second.OverallScore)
}

func TestIntegration_CreateMatch_Concurrent(t *testing.T) {
	db := getTestDB(t)
	defer db.Close()
	ctx := context.Background()
	tenantID, jobID, resumeIDs := seed(t, db, 1)

	var wg sync.WaitGroup
	var mu sync.Mutex
	createdCount := 0
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, created, err := db.CreateMatch(ctx, newTestMatch(tenantID, jobID, resumeIDs[0], 70))
			assert.NoError(t, err)
			if created {
				mu.Lock()
				createdCount++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, createdCount)
	all, err := db.ListAllJobMatches(ctx, tenantID, jobID)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestIntegration_RankingsAndListings(t *testing.T) {
	db := getTestDB(t)
	defer db.Close()
	ctx := context.Background()
	tenantID, jobID, resumeIDs := seed(t, db, 3)

	for i, score := range []int{61, 90, 72} {
		_, _, err := db.CreateMatch(ctx, newTestMatch(tenantID, jobID, resumeIDs[i], score))
		require.NoError(t, err)
	}

	n, err := db.UpdateRankings(ctx, tenantID, jobID)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	ranked, err := db.ListJobMatches(ctx, tenantID, jobID, types.MatchListOptions{Limit: 10})
	require.NoError(t, err)
	require.Len(t, ranked, 3)
	for i, want := range []int{90, 72, 61} {
		assert.Equal(t, want, ranked[i].OverallScore)
		require.NotNil(t, ranked[i].Rank)
		assert.Equal(t, i+1, *ranked[i].Rank)
	}
	require.NotNil(t, ranked[0].Job)
	assert.Equal(t, "Backend Engineer", ranked[0].Job.Title)
	require.NotNil(t, ranked[0].Resume)
	assert.Equal(t, "Ada Lovelace", ranked[0].Resume.CandidateName)

	page, err := db.ListJobMatches(ctx, tenantID, jobID, types.MatchListOptions{Skip: 1, Limit: 1})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, 72, page[0].OverallScore)

	maxScore := 85
	found, err := db.SearchMatches(ctx, tenantID, types.MatchSearchFilter{MinScore: 65, MaxScore: &maxScore})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, 72, found[0].OverallScore)

	top, err := db.ListTopMatches(ctx, tenantID, 2)
	require.NoError(t, err)
	assert.Len(t, top, 2)
}

func TestIntegration_Workflow(t *testing.T) {
	db := getTestDB(t)
	defer db.Close()
	ctx := context.Background()
	tenantID, jobID, resumeIDs := seed(t, db, 1)

	m, _, err := db.CreateMatch(ctx, newTestMatch(tenantID, jobID, resumeIDs[0], 75))
	require.NoError(t, err)

	reviewer := uuid.New()
	at := time.Now().UTC().Truncate(time.Microsecond)
	reviewed, err := db.UpdateMatchReview(ctx, tenantID, m.ID, matching.Review{
		Status: types.StatusReviewed, Reviewer: &reviewer, ReviewedAt: &at, Notes: "good call",
	})
	require.NoError(t, err)
	assert.Equal(t, types.StatusReviewed, reviewed.Status)
	assert.Equal(t, reviewer, *reviewed.ReviewedBy)
	assert.Equal(t, "good call", reviewed.ReviewNotes)

	rejected, err := db.UpdateMatchReview(ctx, tenantID, m.ID, matching.Review{Status: types.StatusRejected})
	require.NoError(t, err)
	assert.Equal(t, "good call", rejected.ReviewNotes)
	assert.Equal(t, reviewer, *rejected.ReviewedBy)

	missing, err := db.UpdateMatchReview(ctx, uuid.New(), m.ID, matching.Review{Status: types.StatusRejected})
	require.NoError(t, err)
	assert.Nil(t, missing)

	user := uuid.New()
	on, err := db.SetShortlist(ctx, tenantID, m.ID, true, &user, &at)
	require.NoError(t, err)
	assert.True(t, on.IsShortlisted)

	listed, err := db.ListShortlisted(ctx, tenantID, types.ShortlistFilter{JobID: &jobID})
	require.NoError(t, err)
	assert.Len(t, listed, 1)

	off, err := db.SetShortlist(ctx, tenantID, m.ID, false, nil, nil)
	require.NoError(t, err)
	assert.False(t, off.IsShortlisted)
	assert.Nil(t, off.ShortlistedBy)

	interviewer := uuid.New()
	a := types.InterviewerAssignment{UserID: interviewer, AssignedBy: user, AssignedAt: at}
	withOne, err := db.AddInterviewer(ctx, tenantID, m.ID, a)
	require.NoError(t, err)
	require.Len(t, withOne.AssignedInterviewers, 1)

	again, err := db.AddInterviewer(ctx, tenantID, m.ID, a)
	require.NoError(t, err)
	assert.Len(t, again.AssignedInterviewers, 1)

	none, err := db.RemoveInterviewer(ctx, tenantID, m.ID, interviewer)
	require.NoError(t, err)
	assert.Empty(t, none.AssignedInterviewers)
}

func TestIntegration_Usage(t *testing.T) {
	db := getTestDB(t)
	defer db.Close()
	ctx := context.Background()
	tenantID, _, _ := seed(t, db, 0)

	zero, err := db.GetOrCreateUsage(ctx, tenantID, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 0, zero.LLMCalls)

	require.NoError(t, db.IncrementUsage(ctx, tenantID, types.CounterLLMCalls, 1))
	require.NoError(t, db.IncrementUsage(ctx, tenantID, types.CounterLLMCalls, 2))

	u, err := db.GetOrCreateUsage(ctx, tenantID, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 3, u.LLMCalls)

	var unknown *ErrUnknownCounter
	assert.ErrorAs(t, db.IncrementUsage(ctx, tenantID, "tokens", 1), &unknown)
}
