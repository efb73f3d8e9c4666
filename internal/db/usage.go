package db

import (
	"context"
	"fmt"
	"time"

	"github.com/coderheist/rest.ai-sub000/internal/matching"
	"github.com/coderheist/rest.ai-sub000/internal/types"
	"github.com/google/uuid"
)

// usageColumns maps counter names to tenant_usage columns. Only these
// names may be interpolated into SQL.
var usageColumns = map[string]string{
	types.CounterResumesProcessed:       "resumes_processed",
	types.CounterJobsCreated:            "jobs_created",
	types.CounterInterviewKitsGenerated: "interview_kits_generated",
	types.CounterEmbeddingCalls:         "embedding_calls",
	types.CounterLLMCalls:               "llm_calls",
}

var _ matching.UsageRecorder = (*DB)(nil)

// ErrUnknownCounter is returned for a counter name with no column.
type ErrUnknownCounter struct {
	Counter string
}

func (e *ErrUnknownCounter) Error() string {
	return fmt.Sprintf("unknown usage counter: %s", e.Counter)
}

// IncrementUsage adds n to a counter of the tenant's current period,
// creating the period row when needed.
func (db *DB) IncrementUsage(ctx context.Context, tenantID uuid.UUID, counter string, n int) error {
	column, ok := usageColumns[counter]
	if !ok {
		return &ErrUnknownCounter{Counter: counter}
	}
	start, end := types.UsagePeriod(db.now())

	_, err := db.pool.Exec(ctx,
		fmt.Sprintf(`INSERT INTO tenant_usage (tenant_id, period_start, period_end, %[1]s)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (tenant_id, period_start) DO UPDATE SET
		     %[1]s = tenant_usage.%[1]s + EXCLUDED.%[1]s,
		     updated_at = NOW()`, column),
		tenantID, start, end, n,
	)
	if err != nil {
		return fmt.Errorf("failed to increment %s: %w", counter, err)
	}
	return nil
}

// GetOrCreateUsage returns the usage row of the period containing at,
// inserting a zero row if there is none.
func (db *DB) GetOrCreateUsage(ctx context.Context, tenantID uuid.UUID, at time.Time) (*types.Usage, error) {
	start, end := types.UsagePeriod(at)

	_, err := db.pool.Exec(ctx,
		`INSERT INTO tenant_usage (tenant_id, period_start, period_end)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (tenant_id, period_start) DO NOTHING`,
		tenantID, start, end,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create usage: %w", err)
	}

	var u types.Usage
	err = db.pool.QueryRow(ctx,
		`SELECT tenant_id, period_start, period_end, resumes_processed, jobs_created,
		        interview_kits_generated, embedding_calls, llm_calls, llm_tokens_used,
		        estimated_cost_usd, updated_at
		 FROM tenant_usage WHERE tenant_id = $1 AND period_start = $2`,
		tenantID, start,
	).Scan(&u.TenantID, &u.PeriodStart, &u.PeriodEnd, &u.ResumesProcessed, &u.JobsCreated,
		&u.InterviewKitsGenerated, &u.EmbeddingCalls, &u.LLMCalls, &u.LLMTokensUsed,
		&u.EstimatedCostUSD, &u.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to get usage: %w", err)
	}
	u.PeriodStart = u.PeriodStart.UTC()
	u.PeriodEnd = u.PeriodEnd.UTC()
	return &u, nil
}
