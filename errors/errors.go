package errors

import "fmt"

var (
	ErrInvalidArgument    = fmt.Errorf("invalid argument")
	ErrBackendUnavailable = fmt.Errorf("backend unavailable")
	ErrPermissionDenied   = fmt.Errorf("permission denied")
	ErrNotAuthenticated   = fmt.Errorf("not authenticated")
	ErrNotFound           = fmt.Errorf("document not found")
	ErrAlreadyExists      = fmt.Errorf("document already exists")

	ErrIncompleteMessage  = fmt.Errorf("incomplete message")
	ErrUserAlreadyExists  = fmt.Errorf("user already exists")
	ErrInvalidCredentials = fmt.Errorf("invalid credentials")
	ErrInvalidPassword    = fmt.Errorf("password does not meet complexity requirements")
	ErrTokenGeneration    = fmt.Errorf("token generation failed")
)
