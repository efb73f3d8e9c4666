// Package types provides type definitions for the records exchanged between the
// matching core, its stores and its HTTP boundary.
//
//nolint:revive // types is a standard Go package name pattern
package types

import (
	"time"

	"github.com/google/uuid"
)

// Job statuses as written by the recruiting workflow.
const (
	JobStatusDraft  = "draft"
	JobStatusActive = "active"
	JobStatusClosed = "closed"
)

// Job is a job posting owned by the recruiting workflow. The matching core only reads it.
type Job struct {
	ID               uuid.UUID       `json:"id" yaml:"id"`
	TenantID         uuid.UUID       `json:"tenantId" yaml:"tenantId"`
	Title            string          `json:"title" yaml:"title" validate:"required"`
	Description      string          `json:"description" yaml:"description"`
	RequiredSkills   []string        `json:"requiredSkills" yaml:"requiredSkills"`
	PreferredSkills  []string        `json:"preferredSkills,omitempty" yaml:"preferredSkills"`
	ExperienceYears  ExperienceRange `json:"experienceYears" yaml:"experienceYears"`
	EducationLevel   string          `json:"educationLevel,omitempty" yaml:"educationLevel"`
	Qualifications   []string        `json:"qualifications,omitempty" yaml:"qualifications"`
	Responsibilities []string        `json:"responsibilities,omitempty" yaml:"responsibilities"`
	Status           string          `json:"status,omitempty" yaml:"status"`
	CreatedAt        time.Time       `json:"createdAt" yaml:"createdAt"`
}

// ExperienceRange is the required years of experience. A zero Max means no upper bound.
type ExperienceRange struct {
	Min float64 `json:"min" yaml:"min" validate:"gte=0"`
	Max float64 `json:"max" yaml:"max" validate:"gte=0"`
}

// JobSummary is the slice of a job embedded in match listings.
type JobSummary struct {
	ID     uuid.UUID `json:"id"`
	Title  string    `json:"title"`
	Status string    `json:"status,omitempty"`
}
