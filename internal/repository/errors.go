package repository

import "errors"

// Common repository errors
var (
	ErrCollectionNotFound = errors.New("collection not found")
	ErrCollectionExists   = errors.New("collection already registered")
	ErrScopeNotFound      = errors.New("scope not found")
)
