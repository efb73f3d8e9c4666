package db

import (
	"context"
	"fmt"

	"github.com/coderheist/rest.ai-sub000/internal/types"
	"github.com/google/uuid"
)

const jobColumns = `id, tenant_id, title, description, required_skills, preferred_skills,
	experience_min, experience_max, education_level, qualifications, responsibilities,
	status, created_at`

// GetJob retrieves a job of the tenant. Returns nil if not found.
func (db *DB) GetJob(ctx context.Context, tenantID, jobID uuid.UUID) (*types.Job, error) {
	var j types.Job
	err := db.pool.QueryRow(ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE tenant_id = $1 AND id = $2`,
		tenantID, jobID,
	).Scan(&j.ID, &j.TenantID, &j.Title, &j.Description, &j.RequiredSkills, &j.PreferredSkills,
		&j.ExperienceYears.Min, &j.ExperienceYears.Max, &j.EducationLevel, &j.Qualifications,
		&j.Responsibilities, &j.Status, &j.CreatedAt)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return &j, nil
}

// JobRef identifies a job across tenants.
type JobRef struct {
	TenantID uuid.UUID
	JobID    uuid.UUID
}

// ListActiveJobs returns every active job of every tenant, oldest first.
func (db *DB) ListActiveJobs(ctx context.Context) ([]JobRef, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT tenant_id, id FROM jobs WHERE status = $1 ORDER BY created_at ASC`,
		types.JobStatusActive,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list active jobs: %w", err)
	}
	defer rows.Close()

	var refs []JobRef
	for rows.Next() {
		var ref JobRef
		if err := rows.Scan(&ref.TenantID, &ref.JobID); err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		refs = append(refs, ref)
	}
	return refs, rows.Err()
}
