package types

import (
	"github.com/go-playground/validator/v10"
)

// CalculateMatchRequest is the body of POST /api/matches/calculate.
type CalculateMatchRequest struct {
	JobID    string `json:"jobId" validate:"required,uuid"`
	ResumeID string `json:"resumeId" validate:"required,uuid"`
}

// UpdateStatusRequest is the body of PATCH /api/matches/{id}/status.
// Membership in the lifecycle set is checked by the matching service so the
// error text stays "Invalid status".
type UpdateStatusRequest struct {
	Status string `json:"status" validate:"required"`
	Notes  string `json:"notes,omitempty" validate:"max=5000"`
}

// AssignInterviewerRequest is the body of POST /api/matches/{id}/assign-interviewer.
type AssignInterviewerRequest struct {
	UserID string `json:"userId" validate:"required,uuid"`
}

// Validate validates the CalculateMatchRequest using the validator.
func (r *CalculateMatchRequest) Validate() error {
	validate := validator.New()
	return validate.Struct(r)
}

// Validate validates the UpdateStatusRequest using the validator.
func (r *UpdateStatusRequest) Validate() error {
	validate := validator.New()
	return validate.Struct(r)
}

// Validate validates the AssignInterviewerRequest using the validator.
func (r *AssignInterviewerRequest) Validate() error {
	validate := validator.New()
	return validate.Struct(r)
}

// ValidateJob checks the structural rules on a job document loaded outside the store.
func ValidateJob(job *Job) error {
	validate := validator.New()
	return validate.Struct(job)
}

// ValidateResume checks the structural rules on a resume document loaded outside the store.
func ValidateResume(resume *Resume) error {
	validate := validator.New()
	return validate.Struct(resume)
}
