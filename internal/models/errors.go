package models

import (
	"errors"
	"fmt"
)

// NotFoundError represents a resource not found error
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

func (e *NotFoundError) IsTransient() bool {
	return false
}

// InvalidInputError is returned when a caller-supplied value cannot be estimated.
// The caller must correct the input and resubmit.
type InvalidInputError struct {
	Field   string
	Value   string
	Message string
}

func (e *InvalidInputError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

func (e *InvalidInputError) IsTransient() bool {
	return false
}

// ValidationError represents a data validation error in catalog or ingested records
type ValidationError struct {
	Field   string
	Value   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// IsTransient returns false as validation errors are permanent
func (e *ValidationError) IsTransient() bool {
	return false
}

// DataGapWarning flags a missing optional catalog field that forced a fallback.
// It is carried in results and never returned as an error.
type DataGapWarning struct {
	CropID  string `json:"crop_id"`
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (w DataGapWarning) Error() string {
	return fmt.Sprintf("%s: %s for crop %s", w.Field, w.Message, w.CropID)
}

// IsNotFound reports whether err wraps a NotFoundError
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// IsInvalidInput reports whether err wraps an InvalidInputError
func IsInvalidInput(err error) bool {
	var ie *InvalidInputError
	return errors.As(err, &ie)
}
