package shared

import "fmt"

var (
	// Configuration errors
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")
	ErrUnsupportedDriver  = fmt.Errorf("unsupported database driver")

	// Authorization flow errors
	ErrStateMismatch  = fmt.Errorf("state mismatch")
	ErrMissingCode    = fmt.Errorf("missing authorization code")
	ErrTokenExchange  = fmt.Errorf("token exchange failed")
	ErrRefreshFailed  = fmt.Errorf("token refresh failed")
	ErrNoRefreshToken = fmt.Errorf("no refresh token available")

	// API and storage errors
	ErrAPIRequest = fmt.Errorf("API request failed")
	ErrNotFound   = fmt.Errorf("record not found")

	// Input validation errors
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
)
