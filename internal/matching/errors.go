package matching

import (
	"fmt"

	"github.com/google/uuid"
)

// Resource names used in ErrNotFound.
const (
	ResourceJob    = "job"
	ResourceResume = "resume"
	ResourceMatch  = "match"
)

// ErrNotFound indicates a tenant-scoped record does not exist
type ErrNotFound struct {
	Resource string
	ID       uuid.UUID
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// ErrInvalidStatus indicates a status outside the match lifecycle
type ErrInvalidStatus struct {
	Status string
}

func (e *ErrInvalidStatus) Error() string {
	return "Invalid status"
}

// ErrValidation indicates request validation failure
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("validation error: %s - %s", e.Field, e.Message)
}
