package services

import "errors"

// Sentinel errors returned by the service layer. All of them map to a
// user-facing rejection; anything else coming out of a service is a
// storage failure wrapped with ErrStorage.
var (
	ErrInvalidAccessKey      = errors.New("invalid access key")
	ErrUsernameTaken         = errors.New("username already taken")
	ErrDuplicateKey          = errors.New("duplicate access key")
	ErrInvalidCredentials    = errors.New("invalid username or password")
	ErrInvalidOrExpiredToken = errors.New("invalid or expired token")
	ErrAccountDisabled       = errors.New("account disabled")
	ErrInsufficientBalance   = errors.New("insufficient balance")
	ErrNotFound              = errors.New("not found")
	ErrValidation            = errors.New("validation error")

	ErrStorage = errors.New("storage error")
)
