package types

import (
	"time"

	"github.com/google/uuid"
)

// Usage counter names accepted by the usage store.
const (
	CounterResumesProcessed       = "resumes_processed"
	CounterJobsCreated            = "jobs_created"
	CounterInterviewKitsGenerated = "interview_kits_generated"
	CounterEmbeddingCalls         = "embedding_calls"
	CounterLLMCalls               = "llm_calls"
)

// Usage is one tenant's consumption for a calendar month.
type Usage struct {
	TenantID               uuid.UUID `json:"tenantId"`
	PeriodStart            time.Time `json:"periodStart"`
	PeriodEnd              time.Time `json:"periodEnd"`
	ResumesProcessed       int       `json:"resumesProcessed"`
	JobsCreated            int       `json:"jobsCreated"`
	InterviewKitsGenerated int       `json:"interviewKitsGenerated"`
	EmbeddingCalls         int       `json:"embeddingCalls"`
	LLMCalls               int       `json:"llmCalls"`
	LLMTokensUsed          int64     `json:"llmTokensUsed"`
	EstimatedCostUSD       float64   `json:"estimatedCostUSD"`
	UpdatedAt              time.Time `json:"updatedAt"`
}

// UsagePeriod returns the monthly billing window containing t, in UTC.
// The end is the last second of the month.
func UsagePeriod(t time.Time) (start, end time.Time) {
	t = t.UTC()
	start = time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	end = start.AddDate(0, 1, 0).Add(-time.Second)
	return start, end
}
