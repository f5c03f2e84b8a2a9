package types

import "errors"

// Domain errors for type validation
var (
	ErrInvalidLineRange = errors.New("invalid line range")
	ErrEmptyOverview    = errors.New("file context overview cannot be empty")
	ErrUnnamedBlock     = errors.New("named block requires a name")

	// ErrContentViolation signals that annotated output no longer carries
	// exactly the original code.
	ErrContentViolation = errors.New("content violation")
)
