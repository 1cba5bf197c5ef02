package schema

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"gorm.io/gorm"
)

// ErrUnknownModel is returned when a model has no registered schema
var ErrUnknownModel = errors.New("unknown model")

// Logger receives configuration warnings and per-item failures. It is
// satisfied by gorm's logger.Interface.
type Logger interface {
	Warn(ctx context.Context, msg string, data ...interface{})
	Error(ctx context.Context, msg string, data ...interface{})
}

// Registry holds the schemas of every registered model. It is built once at
// startup and only read afterwards, so it needs no locking.
type Registry struct {
	schemas map[string]*Schema
	names   []string
}

// NewRegistry creates a registry from built schemas
func NewRegistry(schemas ...*Schema) (*Registry, error) {
	r := &Registry{schemas: make(map[string]*Schema, len(schemas))}
	for _, s := range schemas {
		if s == nil || s.Name == "" {
			return nil, errors.New("schema without name")
		}
		if _, exists := r.schemas[s.Name]; exists {
			return nil, fmt.Errorf("model %s registered twice", s.Name)
		}
		r.schemas[s.Name] = s
		r.names = append(r.names, s.Name)
	}
	sort.Strings(r.names)
	return r, nil
}

// Get returns the schema of a model
func (r *Registry) Get(name string) (*Schema, error) {
	s, ok := r.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownModel, name)
	}
	return s, nil
}

// Lookup returns the schema of a model and whether it exists
func (r *Registry) Lookup(name string) (*Schema, bool) {
	s, ok := r.schemas[name]
	return s, ok
}

// Names returns the registered model names, sorted
func (r *Registry) Names() []string {
	return append([]string(nil), r.names...)
}

// All returns every schema, sorted by model name
func (r *Registry) All() []*Schema {
	all := make([]*Schema, 0, len(r.names))
	for _, name := range r.names {
		all = append(all, r.schemas[name])
	}
	return all
}

// Model is a GORM model to register, with its customizations
type Model struct {
	Value   interface{}
	Options []Option
}

// Load parses every model with GORM, builds its schema and returns the
// resulting registry. Issues are reported to logger and never abort loading.
func Load(ctx context.Context, db *gorm.DB, models []Model, logger Logger) (*Registry, error) {
	schemas := make([]*Schema, 0, len(models))
	for _, m := range models {
		stmt := &gorm.Statement{DB: db}
		if err := stmt.Parse(m.Value); err != nil {
			return nil, fmt.Errorf("failed to parse model %T: %w", m.Value, err)
		}

		columns, associations := DescribeModel(stmt.Schema)
		s, issues := Build(stmt.Schema.Name, columns, associations, m.Options...)
		ReportIssues(ctx, logger, issues)
		schemas = append(schemas, s)
	}
	return NewRegistry(schemas...)
}

// ReportIssues logs every issue as an error
func ReportIssues(ctx context.Context, logger Logger, issues []Issue) {
	if logger == nil {
		return
	}
	for _, issue := range issues {
		logger.Error(ctx, "schema field skipped: %v", issue)
	}
}
