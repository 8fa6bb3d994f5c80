package model

import "errors"

var (
	// ErrNotFound signals an unknown id. Callers translate it to 404,
	// never to a validation failure.
	ErrNotFound = errors.New("not found")

	// ErrValidation signals a malformed payload (bad enum, bad
	// timestamp, confidence out of range). Rejected before any store
	// mutation.
	ErrValidation = errors.New("validation error")

	// ErrRunInProgress signals that an analysis run for the same
	// account already holds the run lock.
	ErrRunInProgress = errors.New("analysis run already in progress")

	// ErrUnknownAccount signals an account id outside the configured set.
	ErrUnknownAccount = errors.New("unknown account")
)
