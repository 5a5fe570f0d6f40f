package auth

import "errors"

var (
	ErrNotFound           = errors.New("user or role not found")
	ErrForbidden          = errors.New("forbidden")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserNotActive      = errors.New("user account is not active")
	ErrUnknownPermission  = errors.New("unknown permission")
)
