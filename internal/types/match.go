package types

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Recommendation is the categorical verdict derived from the overall score.
type Recommendation string

// Recommendation values, highest tier first.
const (
	StrongMatch    Recommendation = "strong_match"
	GoodMatch      Recommendation = "good_match"
	PotentialMatch Recommendation = "potential_match"
	WeakMatch      Recommendation = "weak_match"
	NotRecommended Recommendation = "not_recommended"
)

// Valid reports whether r is one of the five known recommendations.
func (r Recommendation) Valid() bool {
	switch r {
	case StrongMatch, GoodMatch, PotentialMatch, WeakMatch, NotRecommended:
		return true
	}
	return false
}

// Match lifecycle statuses.
const (
	StatusPending   = "pending"
	StatusCompleted = "completed"
	StatusReviewed  = "reviewed"
	StatusRejected  = "rejected"
)

// ValidStatus reports whether s is a lifecycle status.
func ValidStatus(s string) bool {
	switch s {
	case StatusPending, StatusCompleted, StatusReviewed, StatusRejected:
		return true
	}
	return false
}

// Scoring methods recorded on a match.
const (
	MethodAI        = "ai"
	MethodRuleBased = "rule_based"
)

// Skill match sources.
const (
	SourceExact    = "exact"
	SourceSemantic = "semantic"
	SourceInferred = "inferred"
)

// Match is a scored pairing of one job and one resume inside one tenant.
// Score fields never change after creation.
type Match struct {
	ID       uuid.UUID `json:"id"`
	TenantID uuid.UUID `json:"tenantId"`
	JobID    uuid.UUID `json:"jobId"`
	ResumeID uuid.UUID `json:"resumeId"`

	OverallScore       int             `json:"overallScore"`
	SkillMatch         SkillMatch      `json:"skillMatch"`
	ExperienceMatch    ExperienceMatch `json:"experienceMatch"`
	EducationMatch     EducationMatch  `json:"educationMatch"`
	SemanticSimilarity float64         `json:"semanticSimilarity"`
	Strengths          []string        `json:"strengths"`
	Concerns           []string        `json:"concerns"`
	Recommendation     Recommendation  `json:"recommendation"`
	AIReasoning        string          `json:"aiReasoning,omitempty"`
	ScoringMethod      string          `json:"scoringMethod"`

	Status      string     `json:"status"`
	ReviewedBy  *uuid.UUID `json:"reviewedBy,omitempty"`
	ReviewedAt  *time.Time `json:"reviewedAt,omitempty"`
	ReviewNotes string     `json:"reviewNotes,omitempty"`

	Rank *int `json:"rank,omitempty"`

	IsShortlisted        bool                    `json:"isShortlisted"`
	ShortlistedBy        *uuid.UUID              `json:"shortlistedBy,omitempty"`
	ShortlistedAt        *time.Time              `json:"shortlistedAt,omitempty"`
	AssignedInterviewers []InterviewerAssignment `json:"assignedInterviewers"`

	CalculatedAt time.Time `json:"calculatedAt"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`

	Job    *JobSummary    `json:"job,omitempty"`
	Resume *ResumeSummary `json:"resume,omitempty"`
}

// MarshalJSON adds the derived qualityLabel to the wire form.
func (m Match) MarshalJSON() ([]byte, error) {
	type alias Match
	return json.Marshal(struct {
		alias
		QualityLabel string `json:"qualityLabel"`
	}{alias: alias(m), QualityLabel: QualityLabel(m.OverallScore)})
}

// SkillMatch is the skill component of a match.
type SkillMatch struct {
	Score            int            `json:"score"`
	MatchedSkills    []MatchedSkill `json:"matchedSkills"`
	MissingSkills    []string       `json:"missingSkills"`
	AdditionalSkills []string       `json:"additionalSkills"`
}

// MatchedSkill is one required skill the candidate covers.
type MatchedSkill struct {
	Skill      string  `json:"skill"`
	Confidence float64 `json:"confidence"`
	Source     string  `json:"source"`
}

// ExperienceMatch is the experience component of a match.
type ExperienceMatch struct {
	Score          int     `json:"score"`
	RequiredYears  string  `json:"requiredYears"`
	CandidateYears float64 `json:"candidateYears"`
	Relevant       bool    `json:"relevant"`
	Details        string  `json:"details"`
}

// EducationMatch is the education component of a match.
type EducationMatch struct {
	Score   int    `json:"score"`
	Meets   bool   `json:"meets"`
	Details string `json:"details"`
}

// InterviewerAssignment records who was assigned to interview a candidate and by whom.
type InterviewerAssignment struct {
	UserID     uuid.UUID `json:"userId"`
	AssignedBy uuid.UUID `json:"assignedBy"`
	AssignedAt time.Time `json:"assignedAt"`
}

// Quality labels, shared with the job stats distribution buckets.
const (
	QualityExcellent = "Excellent"
	QualityVeryGood  = "Very Good"
	QualityGood      = "Good"
	QualityFair      = "Fair"
	QualityPoor      = "Poor"
)

// QualityLabel maps an overall score to its quality label.
func QualityLabel(score int) string {
	switch {
	case score >= 80:
		return QualityExcellent
	case score >= 70:
		return QualityVeryGood
	case score >= 60:
		return QualityGood
	case score >= 50:
		return QualityFair
	default:
		return QualityPoor
	}
}
