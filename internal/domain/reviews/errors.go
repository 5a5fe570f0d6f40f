package reviews

import "errors"

var (
	ErrNotFound       = errors.New("review entity not found")
	ErrForbidden      = errors.New("not allowed")
	ErrInvalidState   = errors.New("operation not valid in current state")
	ErrValidation     = errors.New("invalid review input")
	ErrRatingRange    = errors.New("rating must be between 1 and 10")
	ErrNotApplicable  = errors.New("trait does not apply to this user")
	ErrTypeDisabled   = errors.New("review type is disabled for this cycle")
	ErrWrongReviewer  = errors.New("assignment belongs to another reviewer")
	ErrDuplicateReply = errors.New("question already answered for this assignment")
)
