package types

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Parsing statuses set by the upload pipeline. Only completed resumes are matched in bulk.
const (
	ParsingPending    = "pending"
	ParsingProcessing = "processing"
	ParsingCompleted  = "completed"
	ParsingFailed     = "failed"
)

// Resume is a parsed candidate record owned by the upload workflow.
type Resume struct {
	ID            uuid.UUID    `json:"id" yaml:"id"`
	TenantID      uuid.UUID    `json:"tenantId" yaml:"tenantId"`
	JobID         *uuid.UUID   `json:"jobId,omitempty" yaml:"jobId"`
	FileName      string       `json:"fileName,omitempty" yaml:"fileName"`
	PersonalInfo  PersonalInfo `json:"personalInfo" yaml:"personalInfo"`
	Skills        Skills       `json:"skills" yaml:"skills"`
	Experience    []Experience `json:"experience" yaml:"experience" validate:"dive"`
	Education     []Education  `json:"education" yaml:"education"`
	RawText       string       `json:"rawText,omitempty" yaml:"rawText"`
	ParsingStatus string       `json:"parsingStatus,omitempty" yaml:"parsingStatus"`
	CreatedAt     time.Time    `json:"createdAt" yaml:"createdAt"`
}

// PersonalInfo holds the candidate contact block.
type PersonalInfo struct {
	FullName string `json:"fullName,omitempty" yaml:"fullName"`
	Email    string `json:"email,omitempty" yaml:"email" validate:"omitempty,email"`
	Phone    string `json:"phone,omitempty" yaml:"phone"`
	Location string `json:"location,omitempty" yaml:"location"`
}

// Skills groups the candidate skills by category.
type Skills struct {
	Technical []string `json:"technical" yaml:"technical"`
	Soft      []string `json:"soft" yaml:"soft"`
	Tools     []string `json:"tools" yaml:"tools"`
	Languages []string `json:"languages" yaml:"languages"`
}

// Flatten returns the candidate skills as one case-insensitive set: every
// skill lowercased and trimmed, in category order, keeping the first
// occurrence of a duplicate. Blank entries are dropped.
func (s Skills) Flatten() []string {
	out := make([]string, 0, len(s.Technical)+len(s.Soft)+len(s.Tools)+len(s.Languages))
	seen := make(map[string]bool, cap(out))
	for _, group := range [][]string{s.Technical, s.Soft, s.Tools, s.Languages} {
		for _, skill := range group {
			skill = strings.ToLower(strings.TrimSpace(skill))
			if skill == "" || seen[skill] {
				continue
			}
			seen[skill] = true
			out = append(out, skill)
		}
	}
	return out
}

// Experience is one work history entry.
type Experience struct {
	Company     string     `json:"company,omitempty" yaml:"company"`
	Position    string     `json:"position,omitempty" yaml:"position"`
	StartDate   *time.Time `json:"startDate,omitempty" yaml:"startDate"`
	EndDate     *time.Time `json:"endDate,omitempty" yaml:"endDate"`
	Current     bool       `json:"current,omitempty" yaml:"current"`
	Description string     `json:"description,omitempty" yaml:"description"`
}

// Education is one education entry. Degree is a level keyword such as "bachelor".
type Education struct {
	Degree         string `json:"degree" yaml:"degree"`
	Field          string `json:"field,omitempty" yaml:"field"`
	Institution    string `json:"institution,omitempty" yaml:"institution"`
	GraduationYear int    `json:"graduationYear,omitempty" yaml:"graduationYear"`
}

// ResumeSummary is the slice of a resume embedded in match listings.
type ResumeSummary struct {
	ID            uuid.UUID `json:"id"`
	FileName      string    `json:"fileName,omitempty"`
	CandidateName string    `json:"candidateName,omitempty"`
	Email         string    `json:"email,omitempty"`
}
