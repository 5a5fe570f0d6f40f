package initiatives

import "errors"

var (
	ErrNotFound          = errors.New("initiative not found")
	ErrForbidden         = errors.New("not allowed")
	ErrInvalidState      = errors.New("operation not valid in current initiative state")
	ErrValidation        = errors.New("invalid initiative input")
	ErrScoreRange        = errors.New("score must be between 1 and 10")
	ErrExtensionConflict = errors.New("a pending extension already exists")
	ErrExtensionBlocks   = errors.New("pending extension must be resolved before submission")
)
