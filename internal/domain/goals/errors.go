package goals

import "errors"

var (
	ErrNotFound        = errors.New("goal not found")
	ErrForbidden       = errors.New("not allowed")
	ErrInvalidState    = errors.New("operation not valid in current goal state")
	ErrValidation      = errors.New("invalid goal input")
	ErrGoalFrozen      = errors.New("goal is frozen")
	ErrHasChildren     = errors.New("goal progress is derived from children")
	ErrCascadeDepth    = errors.New("goal tree exceeds maximum depth")
	ErrInvalidParent   = errors.New("goal type not allowed under parent")
	ErrReasonRequired  = errors.New("rejection reason is required")
	ErrQuarterRequired = errors.New("individual goals require quarter and year")
)
