package collections

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormschema "gorm.io/gorm/schema"

	"liana-gateway/internal/repository"
	"liana-gateway/internal/schema"
	"liana-gateway/internal/security"
)

// SQLSegment is a segment whose records are the primary keys returned by a
// raw SELECT
type SQLSegment struct {
	Name  string
	Query string
}

// Definition declares a model served by the gateway
type Definition struct {
	// Model is a pointer to a gorm model struct
	Model        interface{}
	Options      []schema.Option
	Scopes       map[string]repository.ScopeFunc
	DefaultScope repository.ScopeFunc
	SQLSegments  []SQLSegment
}

// Bootstrap builds the schema registry and the collection registry from the
// same definitions. Invalid SQL segments are logged and skipped.
func Bootstrap(ctx context.Context, db *gorm.DB, defs []Definition, validator *security.SQLValidator, logger schema.Logger) (*schema.Registry, *repository.Registry, error) {
	if validator == nil {
		validator = security.NewSQLValidator(0, 0)
	}

	models := make([]schema.Model, 0, len(defs))
	collections := make([]repository.Collection, 0, len(defs))
	for _, def := range defs {
		collection, err := repository.NewCollection(db, def.Model, collectionOptions(def)...)
		if err != nil {
			return nil, nil, err
		}

		opts := append([]schema.Option(nil), def.Options...)
		if len(def.SQLSegments) > 0 {
			segments, issues := sqlSegments(collection.Schema(), def.SQLSegments, validator)
			schema.ReportIssues(ctx, logger, issues)
			if len(segments) > 0 {
				opts = append(opts, schema.WithSegments(segments...))
			}
		}

		models = append(models, schema.Model{Value: def.Model, Options: opts})
		collections = append(collections, collection)
	}

	schemas, err := schema.Load(ctx, db, models, logger)
	if err != nil {
		return nil, nil, err
	}
	registry, err := repository.NewRegistry(collections...)
	if err != nil {
		return nil, nil, err
	}
	return schemas, registry, nil
}

func collectionOptions(def Definition) []repository.CollectionOption {
	var opts []repository.CollectionOption
	for name, scope := range def.Scopes {
		opts = append(opts, repository.WithScope(name, scope))
	}
	if def.DefaultScope != nil {
		opts = append(opts, repository.WithDefaultScope(def.DefaultScope))
	}
	return opts
}

// sqlSegments turns every valid query into a "<pk> IN (<query>)" condition
func sqlSegments(s *gormschema.Schema, defs []SQLSegment, validator *security.SQLValidator) ([]schema.Segment, []schema.Issue) {
	var segments []schema.Segment
	var issues []schema.Issue
	for _, def := range defs {
		expr, err := sqlCondition(s, def.Query, validator)
		if err != nil {
			issues = append(issues, schema.Issue{Model: s.Name, Field: "segment " + def.Name, Err: err})
			continue
		}
		segments = append(segments, schema.Segment{Name: def.Name, Where: schema.StaticCondition{Expr: expr}})
	}
	return segments, issues
}

func sqlCondition(s *gormschema.Schema, query string, validator *security.SQLValidator) (clause.Expression, error) {
	if len(s.PrimaryFields) != 1 {
		return nil, errors.New("SQL segments need a single primary key")
	}
	normalized, err := validator.ValidateStatement(query)
	if err != nil {
		return nil, err
	}
	// gorm would bind placeholders inside the subquery
	if strings.Contains(normalized, "?") {
		return nil, fmt.Errorf("%w: placeholders are not supported", security.ErrSQLInjection)
	}
	return clause.Expr{
		SQL:  "? IN (" + normalized + ")",
		Vars: []interface{}{clause.Column{Table: clause.CurrentTable, Name: s.PrimaryFields[0].DBName}},
	}, nil
}
