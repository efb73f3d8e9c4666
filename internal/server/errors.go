package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/coderheist/rest.ai-sub000/internal/matching"
	"github.com/go-playground/validator/v10"
)

// ErrInvalidID indicates a path or query parameter that is not a UUID
type ErrInvalidID struct {
	Param string
	Value string
}

func (e *ErrInvalidID) Error() string {
	return fmt.Sprintf("Invalid %s: %q", e.Param, e.Value)
}

// ErrBadRequest indicates a request body that could not be decoded
type ErrBadRequest struct {
	Message string
}

func (e *ErrBadRequest) Error() string {
	return e.Message
}

// HTTPStatus returns the appropriate HTTP status code for an error
func HTTPStatus(err error) int {
	var (
		notFound      *matching.ErrNotFound
		invalidStatus *matching.ErrInvalidStatus
		invalid       *matching.ErrValidation
		invalidID     *ErrInvalidID
		badRequest    *ErrBadRequest
		fields        validator.ValidationErrors
	)
	switch {
	case err == nil:
		return http.StatusInternalServerError
	case errors.As(err, &notFound):
		return http.StatusNotFound
	case errors.As(err, &invalidStatus),
		errors.As(err, &invalid),
		errors.As(err, &invalidID),
		errors.As(err, &badRequest),
		errors.As(err, &fields):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
