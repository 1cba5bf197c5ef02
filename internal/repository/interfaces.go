package repository

import (
	"context"

	"gorm.io/gorm"
	gormschema "gorm.io/gorm/schema"

	"liana-gateway/internal/model"
)

// ScopeFunc narrows a collection, it is applied through gorm Scopes
type ScopeFunc func(*gorm.DB) *gorm.DB

// Collection defines the read operations the admin panel runs on a model
type Collection interface {
	// Name returns the model name
	Name() string

	// Schema returns the gorm metadata of the model
	Schema() *gormschema.Schema

	// Count returns the number of records matching opts, ignoring pagination
	Count(ctx context.Context, opts *model.FindOptions) (int64, error)

	// FindAll returns the page of records matching opts
	FindAll(ctx context.Context, opts *model.FindOptions) ([]model.Record, error)

	// Scope returns the collection restricted by a named scope, which
	// replaces the default scope
	Scope(name string) (Collection, error)

	// Unscoped returns the collection without its default scope
	Unscoped() Collection
}
