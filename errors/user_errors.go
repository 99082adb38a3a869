package errors

import "errors"

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrUserConflict       = errors.New("user conflict")
	ErrInvalidUserData    = errors.New("invalid user data")
	ErrUserLocked         = errors.New("user account is locked")
	ErrUserInactive       = errors.New("user account is inactive")
	ErrTierExceedsMaximum = errors.New("tier exceeds user maximum")
	ErrInvalidCredentials = errors.New("invalid credentials")
)
