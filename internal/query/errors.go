package query

import "errors"

// Request errors, the HTTP layer reports them as invalid parameters
var (
	ErrInvalidFilter   = errors.New("invalid filter")
	ErrInvalidSort     = errors.New("invalid sort")
	ErrInvalidTimezone = errors.New("invalid timezone")
)
