package db

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/coderheist/rest.ai-sub000/internal/types"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const resumeColumns = `id, tenant_id, job_id, file_name, personal_info, skills, experience,
	education, raw_text, parsing_status, created_at`

func scanResume(row pgx.Row) (*types.Resume, error) {
	var r types.Resume
	var personalInfo, skills, experience, education []byte
	if err := row.Scan(&r.ID, &r.TenantID, &r.JobID, &r.FileName, &personalInfo, &skills,
		&experience, &education, &r.RawText, &r.ParsingStatus, &r.CreatedAt); err != nil {
		return nil, err
	}

	for _, part := range []struct {
		name string
		raw  []byte
		dst  any
	}{
		{"personal_info", personalInfo, &r.PersonalInfo},
		{"skills", skills, &r.Skills},
		{"experience", experience, &r.Experience},
		{"education", education, &r.Education},
	} {
		if len(part.raw) == 0 {
			continue
		}
		if err := json.Unmarshal(part.raw, part.dst); err != nil {
			return nil, fmt.Errorf("failed to unmarshal resume %s: %w", part.name, err)
		}
	}
	return &r, nil
}

// GetResume retrieves a resume of the tenant. Returns nil if not found.
func (db *DB) GetResume(ctx context.Context, tenantID, resumeID uuid.UUID) (*types.Resume, error) {
	r, err := scanResume(db.pool.QueryRow(ctx,
		`SELECT `+resumeColumns+` FROM resumes WHERE tenant_id = $1 AND id = $2`,
		tenantID, resumeID,
	))
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get resume: %w", err)
	}
	return r, nil
}

// ListCompletedResumes returns the fully parsed resumes submitted to a job,
// oldest first.
func (db *DB) ListCompletedResumes(ctx context.Context, tenantID, jobID uuid.UUID) ([]types.Resume, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT `+resumeColumns+` FROM resumes
		 WHERE tenant_id = $1 AND job_id = $2 AND parsing_status = $3
		 ORDER BY created_at ASC, id ASC`,
		tenantID, jobID, types.ParsingCompleted,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list resumes: %w", err)
	}
	defer rows.Close()

	var resumes []types.Resume
	for rows.Next() {
		r, err := scanResume(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan resume: %w", err)
		}
		resumes = append(resumes, *r)
	}
	return resumes, rows.Err()
}
