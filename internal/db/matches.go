package db

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/coderheist/rest.ai-sub000/internal/matching"
	"github.com/coderheist/rest.ai-sub000/internal/ranking"
	"github.com/coderheist/rest.ai-sub000/internal/types"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const matchColumns = `m.id, m.tenant_id, m.job_id, m.resume_id, m.overall_score,
	m.skill_match, m.experience_match, m.education_match, m.semantic_similarity,
	m.strengths, m.concerns, m.recommendation, m.ai_reasoning, m.scoring_method,
	m.status, m.reviewed_by, m.reviewed_at, m.review_notes, m.rank,
	m.is_shortlisted, m.shortlisted_by, m.shortlisted_at, m.assigned_interviewers,
	m.calculated_at, m.created_at, m.updated_at`

// Listings embed a job title and a candidate summary.
const (
	summaryColumns = `, j.title, r.file_name, r.personal_info->>'fullName', r.personal_info->>'email'`
	summaryJoins   = ` LEFT JOIN jobs j ON j.id = m.job_id LEFT JOIN resumes r ON r.id = m.resume_id`
)

// rankOrder matches ranking.AssignRanks: score desc, then oldest, then id.
const rankOrder = `m.overall_score DESC, m.created_at ASC, m.id ASC`

var _ matching.Store = (*DB)(nil)

func scanMatch(row pgx.Row, withSummary bool) (*types.Match, error) {
	var m types.Match
	var recommendation string
	var skill, experience, education, interviewers []byte
	var title, fileName, candidateName, email *string

	dest := []any{
		&m.ID, &m.TenantID, &m.JobID, &m.ResumeID, &m.OverallScore,
		&skill, &experience, &education, &m.SemanticSimilarity,
		&m.Strengths, &m.Concerns, &recommendation, &m.AIReasoning, &m.ScoringMethod,
		&m.Status, &m.ReviewedBy, &m.ReviewedAt, &m.ReviewNotes, &m.Rank,
		&m.IsShortlisted, &m.ShortlistedBy, &m.ShortlistedAt, &interviewers,
		&m.CalculatedAt, &m.CreatedAt, &m.UpdatedAt,
	}
	if withSummary {
		dest = append(dest, &title, &fileName, &candidateName, &email)
	}
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	m.Recommendation = types.Recommendation(recommendation)

	for _, part := range []struct {
		name string
		raw  []byte
		dst  any
	}{
		{"skill_match", skill, &m.SkillMatch},
		{"experience_match", experience, &m.ExperienceMatch},
		{"education_match", education, &m.EducationMatch},
		{"assigned_interviewers", interviewers, &m.AssignedInterviewers},
	} {
		if len(part.raw) == 0 {
			continue
		}
		if err := json.Unmarshal(part.raw, part.dst); err != nil {
			return nil, fmt.Errorf("failed to unmarshal match %s: %w", part.name, err)
		}
	}

	m.Strengths = nonNilStrings(m.Strengths)
	m.Concerns = nonNilStrings(m.Concerns)
	if m.AssignedInterviewers == nil {
		m.AssignedInterviewers = []types.InterviewerAssignment{}
	}

	if title != nil {
		m.Job = &types.JobSummary{ID: m.JobID, Title: *title}
	}
	if fileName != nil || candidateName != nil {
		m.Resume = &types.ResumeSummary{
			ID:            m.ResumeID,
			FileName:      deref(fileName),
			CandidateName: deref(candidateName),
			Email:         deref(email),
		}
	}
	return &m, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func nonNilStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// CreateMatch inserts a match unless one already exists for the same
// tenant, job and resume. The stored row is returned either way; created
// reports whether this call inserted it.
func (db *DB) CreateMatch(ctx context.Context, m *types.Match) (*types.Match, bool, error) {
	skill, err := json.Marshal(m.SkillMatch)
	if err != nil {
		return nil, false, fmt.Errorf("failed to marshal skill match: %w", err)
	}
	experience, err := json.Marshal(m.ExperienceMatch)
	if err != nil {
		return nil, false, fmt.Errorf("failed to marshal experience match: %w", err)
	}
	education, err := json.Marshal(m.EducationMatch)
	if err != nil {
		return nil, false, fmt.Errorf("failed to marshal education match: %w", err)
	}
	interviewers := m.AssignedInterviewers
	if interviewers == nil {
		interviewers = []types.InterviewerAssignment{}
	}
	interviewersJSON, err := json.Marshal(interviewers)
	if err != nil {
		return nil, false, fmt.Errorf("failed to marshal interviewers: %w", err)
	}

	stored, err := scanMatch(db.pool.QueryRow(ctx,
		`INSERT INTO matches AS m (id, tenant_id, job_id, resume_id, overall_score,
		     skill_match, experience_match, education_match, semantic_similarity,
		     strengths, concerns, recommendation, ai_reasoning, scoring_method, status,
		     assigned_interviewers, calculated_at, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
		 ON CONFLICT (tenant_id, job_id, resume_id) DO NOTHING
		 RETURNING `+matchColumns,
		m.ID, m.TenantID, m.JobID, m.ResumeID, m.OverallScore,
		skill, experience, education, m.SemanticSimilarity,
		nonNilStrings(m.Strengths), nonNilStrings(m.Concerns), string(m.Recommendation),
		m.AIReasoning, m.ScoringMethod, m.Status,
		interviewersJSON, m.CalculatedAt, m.CreatedAt, m.UpdatedAt,
	), false)
	if err == nil {
		return stored, true, nil
	}
	if !isNoRows(err) {
		return nil, false, fmt.Errorf("failed to create match: %w", err)
	}

	// Lost the race: another request stored this pair first.
	existing, err := db.GetMatchByKey(ctx, m.TenantID, m.JobID, m.ResumeID)
	if err != nil {
		return nil, false, err
	}
	if existing == nil {
		return nil, false, fmt.Errorf("match for job %s and resume %s vanished after conflict", m.JobID, m.ResumeID)
	}
	return existing, false, nil
}

// GetMatchByKey retrieves the match of a job and resume. Returns nil if not found.
func (db *DB) GetMatchByKey(ctx context.Context, tenantID, jobID, resumeID uuid.UUID) (*types.Match, error) {
	m, err := scanMatch(db.pool.QueryRow(ctx,
		`SELECT `+matchColumns+` FROM matches m
		 WHERE m.tenant_id = $1 AND m.job_id = $2 AND m.resume_id = $3`,
		tenantID, jobID, resumeID,
	), false)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get match: %w", err)
	}
	return m, nil
}

// GetMatch retrieves a match with its job and candidate summaries. Returns nil if not found.
func (db *DB) GetMatch(ctx context.Context, tenantID, matchID uuid.UUID) (*types.Match, error) {
	m, err := scanMatch(db.pool.QueryRow(ctx,
		`SELECT `+matchColumns+summaryColumns+` FROM matches m`+summaryJoins+`
		 WHERE m.tenant_id = $1 AND m.id = $2`,
		tenantID, matchID,
	), true)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get match: %w", err)
	}
	return m, nil
}

// matchQuery accumulates WHERE conditions with positional arguments.
type matchQuery struct {
	conds []string
	args  []any
}

func newMatchQuery(tenantID uuid.UUID) *matchQuery {
	q := &matchQuery{}
	q.where("m.tenant_id = $%d", tenantID)
	return q
}

// where adds cond, whose single %d verb becomes the argument's placeholder.
func (q *matchQuery) where(cond string, arg any) {
	q.args = append(q.args, arg)
	q.conds = append(q.conds, fmt.Sprintf(cond, len(q.args)))
}

func (q *matchQuery) build(orderBy string, limit, skip int) (string, []any) {
	var sb strings.Builder
	sb.WriteString(`SELECT ` + matchColumns + summaryColumns + ` FROM matches m` + summaryJoins)
	sb.WriteString(` WHERE ` + strings.Join(q.conds, " AND "))
	sb.WriteString(` ORDER BY ` + orderBy)

	args := q.args
	if limit > 0 {
		args = append(args, limit)
		fmt.Fprintf(&sb, " LIMIT $%d", len(args))
	}
	if skip > 0 {
		args = append(args, skip)
		fmt.Fprintf(&sb, " OFFSET $%d", len(args))
	}
	return sb.String(), args
}

func jobMatchesQuery(tenantID, jobID uuid.UUID, opts types.MatchListOptions) (string, []any) {
	q := newMatchQuery(tenantID)
	q.where("m.job_id = $%d", jobID)
	if opts.MinScore > 0 {
		q.where("m.overall_score >= $%d", opts.MinScore)
	}
	if opts.Status != "" {
		q.where("m.status = $%d", opts.Status)
	}
	return q.build(rankOrder, opts.Limit, opts.Skip)
}

func resumeMatchesQuery(tenantID, resumeID uuid.UUID, opts types.MatchListOptions) (string, []any) {
	q := newMatchQuery(tenantID)
	q.where("m.resume_id = $%d", resumeID)
	if opts.MinScore > 0 {
		q.where("m.overall_score >= $%d", opts.MinScore)
	}
	return q.build(rankOrder, opts.Limit, 0)
}

func searchMatchesQuery(tenantID uuid.UUID, f types.MatchSearchFilter) (string, []any) {
	q := newMatchQuery(tenantID)
	if f.JobID != nil {
		q.where("m.job_id = $%d", *f.JobID)
	}
	if f.MinScore > 0 {
		q.where("m.overall_score >= $%d", f.MinScore)
	}
	if f.MaxScore != nil {
		q.where("m.overall_score <= $%d", *f.MaxScore)
	}
	if f.Recommendation != "" {
		q.where("m.recommendation = $%d", string(f.Recommendation))
	}
	if f.Status != "" {
		q.where("m.status = $%d", f.Status)
	}
	return q.build(rankOrder, f.Limit, 0)
}

func shortlistedQuery(tenantID uuid.UUID, f types.ShortlistFilter) (string, []any) {
	q := newMatchQuery(tenantID)
	q.where("m.is_shortlisted = $%d", true)
	if f.JobID != nil {
		q.where("m.job_id = $%d", *f.JobID)
	}
	if f.MinScore > 0 {
		q.where("m.overall_score >= $%d", f.MinScore)
	}
	return q.build("m.shortlisted_at DESC, m.id ASC", f.Limit, 0)
}

func (db *DB) queryMatches(ctx context.Context, query string, args []any) ([]types.Match, error) {
	rows, err := db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	matches := []types.Match{}
	for rows.Next() {
		m, err := scanMatch(rows, true)
		if err != nil {
			return nil, fmt.Errorf("failed to scan match: %w", err)
		}
		matches = append(matches, *m)
	}
	return matches, rows.Err()
}

// ListJobMatches lists a job's matches, best first.
func (db *DB) ListJobMatches(ctx context.Context, tenantID, jobID uuid.UUID, opts types.MatchListOptions) ([]types.Match, error) {
	query, args := jobMatchesQuery(tenantID, jobID, opts)
	matches, err := db.queryMatches(ctx, query, args)
	if err != nil {
		return nil, fmt.Errorf("failed to list job matches: %w", err)
	}
	return matches, nil
}

// ListResumeMatches lists a resume's matches across jobs, best first.
func (db *DB) ListResumeMatches(ctx context.Context, tenantID, resumeID uuid.UUID, opts types.MatchListOptions) ([]types.Match, error) {
	query, args := resumeMatchesQuery(tenantID, resumeID, opts)
	matches, err := db.queryMatches(ctx, query, args)
	if err != nil {
		return nil, fmt.Errorf("failed to list resume matches: %w", err)
	}
	return matches, nil
}

// ListAllJobMatches returns every match of the job without pagination.
func (db *DB) ListAllJobMatches(ctx context.Context, tenantID, jobID uuid.UUID) ([]types.Match, error) {
	query, args := jobMatchesQuery(tenantID, jobID, types.MatchListOptions{})
	matches, err := db.queryMatches(ctx, query, args)
	if err != nil {
		return nil, fmt.Errorf("failed to list job matches: %w", err)
	}
	return matches, nil
}

// ListTopMatches returns the tenant's best completed matches.
func (db *DB) ListTopMatches(ctx context.Context, tenantID uuid.UUID, limit int) ([]types.Match, error) {
	query, args := searchMatchesQuery(tenantID, types.MatchSearchFilter{Status: types.StatusCompleted, Limit: limit})
	matches, err := db.queryMatches(ctx, query, args)
	if err != nil {
		return nil, fmt.Errorf("failed to list top matches: %w", err)
	}
	return matches, nil
}

// SearchMatches runs a filtered search over the tenant's matches.
func (db *DB) SearchMatches(ctx context.Context, tenantID uuid.UUID, filter types.MatchSearchFilter) ([]types.Match, error) {
	query, args := searchMatchesQuery(tenantID, filter)
	matches, err := db.queryMatches(ctx, query, args)
	if err != nil {
		return nil, fmt.Errorf("failed to search matches: %w", err)
	}
	return matches, nil
}

// ListShortlisted lists shortlisted matches, most recently shortlisted first.
func (db *DB) ListShortlisted(ctx context.Context, tenantID uuid.UUID, filter types.ShortlistFilter) ([]types.Match, error) {
	query, args := shortlistedQuery(tenantID, filter)
	matches, err := db.queryMatches(ctx, query, args)
	if err != nil {
		return nil, fmt.Errorf("failed to list shortlisted matches: %w", err)
	}
	return matches, nil
}

func (db *DB) updateMatch(ctx context.Context, op, set string, args ...any) (*types.Match, error) {
	m, err := scanMatch(db.pool.QueryRow(ctx,
		`UPDATE matches m SET `+set+`, updated_at = NOW()
		 WHERE m.tenant_id = $1 AND m.id = $2
		 RETURNING `+matchColumns,
		args...,
	), false)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to %s: %w", op, err)
	}
	return m, nil
}

// UpdateMatchReview sets the status. Reviewer and notes are only
// overwritten when given. Returns nil if the match does not exist.
func (db *DB) UpdateMatchReview(ctx context.Context, tenantID, matchID uuid.UUID, review matching.Review) (*types.Match, error) {
	return db.updateMatch(ctx, "update match review",
		`status = $3,
		 reviewed_by = COALESCE($4::uuid, m.reviewed_by),
		 reviewed_at = COALESCE($5::timestamptz, m.reviewed_at),
		 review_notes = CASE WHEN $6::text = '' THEN m.review_notes ELSE $6::text END`,
		tenantID, matchID, review.Status, review.Reviewer, review.ReviewedAt, review.Notes,
	)
}

// SetShortlist writes the shortlist flag with its actor and time.
func (db *DB) SetShortlist(ctx context.Context, tenantID, matchID uuid.UUID, shortlisted bool, by *uuid.UUID, at *time.Time) (*types.Match, error) {
	return db.updateMatch(ctx, "set shortlist",
		`is_shortlisted = $3, shortlisted_by = $4::uuid, shortlisted_at = $5::timestamptz`,
		tenantID, matchID, shortlisted, by, at,
	)
}

// AddInterviewer appends an assignment unless the user is already assigned.
func (db *DB) AddInterviewer(ctx context.Context, tenantID, matchID uuid.UUID, a types.InterviewerAssignment) (*types.Match, error) {
	entry, err := json.Marshal([]types.InterviewerAssignment{a})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal interviewer: %w", err)
	}

	m, err := db.updateMatch(ctx, "assign interviewer",
		`assigned_interviewers = CASE
		     WHEN m.assigned_interviewers @> jsonb_build_array(jsonb_build_object('userId', $4::text))
		     THEN m.assigned_interviewers
		     ELSE m.assigned_interviewers || $3::jsonb
		 END`,
		tenantID, matchID, entry, a.UserID.String(),
	)
	return m, err
}

// RemoveInterviewer drops the user's assignment, if any.
func (db *DB) RemoveInterviewer(ctx context.Context, tenantID, matchID, userID uuid.UUID) (*types.Match, error) {
	return db.updateMatch(ctx, "unassign interviewer",
		`assigned_interviewers = COALESCE(
		     (SELECT jsonb_agg(a) FROM jsonb_array_elements(m.assigned_interviewers) a
		      WHERE a->>'userId' <> $3::text),
		     '[]'::jsonb)`,
		tenantID, matchID, userID.String(),
	)
}

// UpdateRankings locks the job's matches, recomputes their ranks and writes
// them back in one transaction.
func (db *DB) UpdateRankings(ctx context.Context, tenantID, jobID uuid.UUID) (int, error) {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	rows, err := tx.Query(ctx,
		`SELECT id, overall_score, created_at FROM matches
		 WHERE tenant_id = $1 AND job_id = $2
		 FOR UPDATE`,
		tenantID, jobID,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to lock matches: %w", err)
	}
	var entries []ranking.Entry
	for rows.Next() {
		var e ranking.Entry
		if err := rows.Scan(&e.ID, &e.Score, &e.CreatedAt); err != nil {
			rows.Close()
			return 0, fmt.Errorf("failed to scan match: %w", err)
		}
		entries = append(entries, e)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("failed to read matches: %w", err)
	}
	if len(entries) == 0 {
		return 0, nil
	}

	batch := &pgx.Batch{}
	for _, e := range ranking.AssignRanks(entries) {
		batch.Queue(`UPDATE matches SET rank = $1, updated_at = NOW() WHERE id = $2`, e.Rank, e.ID)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return 0, fmt.Errorf("failed to write ranks: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit ranks: %w", err)
	}
	return len(entries), nil
}
