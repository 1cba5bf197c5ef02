package repository

import (
	"context"
	"fmt"
	"reflect"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormschema "gorm.io/gorm/schema"

	"liana-gateway/internal/model"
	"liana-gateway/internal/schema"
)

// CollectionOption configures a collection
type CollectionOption func(*gormCollection)

// WithScope registers a named scope
func WithScope(name string, scope ScopeFunc) CollectionOption {
	return func(c *gormCollection) {
		c.scopes[name] = scope
	}
}

// WithDefaultScope sets the scope applied unless the collection is scoped
// by name or unscoped
func WithDefaultScope(scope ScopeFunc) CollectionOption {
	return func(c *gormCollection) {
		c.defaultScope = scope
	}
}

type gormCollection struct {
	db           *gorm.DB
	model        interface{}
	schema       *gormschema.Schema
	scopes       map[string]ScopeFunc
	defaultScope ScopeFunc
	active       ScopeFunc
	unscoped     bool
}

// NewCollection creates a gorm backed collection for model, a pointer to a
// struct such as &model.Article{}
func NewCollection(db *gorm.DB, value interface{}, opts ...CollectionOption) (Collection, error) {
	stmt := &gorm.Statement{DB: db}
	if err := stmt.Parse(value); err != nil {
		return nil, fmt.Errorf("failed to parse model %T: %w", value, err)
	}

	c := &gormCollection{
		db:     db,
		model:  value,
		schema: stmt.Schema,
		scopes: make(map[string]ScopeFunc),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *gormCollection) Name() string {
	return c.schema.Name
}

func (c *gormCollection) Schema() *gormschema.Schema {
	return c.schema
}

func (c *gormCollection) Scope(name string) (Collection, error) {
	scope, ok := c.scopes[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s on %s", ErrScopeNotFound, name, c.schema.Name)
	}
	scoped := *c
	scoped.active = scope
	scoped.unscoped = false
	return &scoped, nil
}

// Unscoped drops the default scope. Soft-deleted rows stay hidden, gorm
// treats them apart from scopes.
func (c *gormCollection) Unscoped() Collection {
	unscoped := *c
	unscoped.active = nil
	unscoped.unscoped = true
	return &unscoped
}

// Count returns the number of records matching opts
func (c *gormCollection) Count(ctx context.Context, opts *model.FindOptions) (int64, error) {
	var count int64
	if err := c.query(ctx, opts).Model(c.model).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// FindAll returns the records matching opts with their joined relations
func (c *gormCollection) FindAll(ctx context.Context, opts *model.FindOptions) ([]model.Record, error) {
	tx := c.query(ctx, opts)

	var selected map[string]bool
	if len(opts.Select) > 0 {
		selected = make(map[string]bool, len(opts.Select))
		columns := make([]string, 0, len(opts.Select))
		stmt := &gorm.Statement{DB: c.db, Table: c.schema.Table}
		for _, name := range opts.Select {
			selected[name] = true
			columns = append(columns, stmt.Quote(clause.Column{Table: c.schema.Table, Name: name}))
		}
		tx = tx.Select(columns)
	}
	for _, order := range opts.Order {
		tx = tx.Order(order)
	}
	if opts.Offset > 0 {
		tx = tx.Offset(opts.Offset)
	}
	if opts.Limit > 0 {
		tx = tx.Limit(opts.Limit)
	}

	rows := reflect.New(reflect.SliceOf(c.schema.ModelType))
	if err := tx.Find(rows.Interface()).Error; err != nil {
		return nil, err
	}

	rows = rows.Elem()
	records := make([]model.Record, 0, rows.Len())
	for i := 0; i < rows.Len(); i++ {
		record := toRecord(ctx, c.schema, rows.Index(i), selected)
		for _, name := range opts.Include {
			if rel, ok := c.schema.Relationships.Relations[name]; ok {
				record[schema.AssociationName(rel.Field)] = relatedRecord(ctx, rel, rows.Index(i))
			}
		}
		records = append(records, record)
	}
	return records, nil
}

func (c *gormCollection) query(ctx context.Context, opts *model.FindOptions) *gorm.DB {
	tx := c.db.WithContext(ctx)
	switch {
	case c.active != nil:
		tx = tx.Scopes(c.active)
	case !c.unscoped && c.defaultScope != nil:
		tx = tx.Scopes(c.defaultScope)
	}

	for _, relation := range opts.Include {
		tx = tx.Joins(relation)
	}
	if len(opts.Where.Exprs) > 0 {
		tx = tx.Where(opts.Where)
	}
	return tx
}

func toRecord(ctx context.Context, s *gormschema.Schema, rv reflect.Value, selected map[string]bool) model.Record {
	record := make(model.Record, len(s.DBNames))
	for _, f := range s.Fields {
		if f.DBName == "" || !f.Readable {
			continue
		}
		if selected != nil && !selected[f.DBName] {
			continue
		}
		value, _ := f.ValueOf(ctx, rv)
		record[schema.FieldName(f)] = value
	}
	return record
}

func relatedRecord(ctx context.Context, rel *gormschema.Relationship, rv reflect.Value) interface{} {
	value := rel.Field.ReflectValueOf(ctx, rv)
	if value.Kind() == reflect.Ptr {
		if value.IsNil() {
			return nil
		}
		value = value.Elem()
	}
	return toRecord(ctx, rel.FieldSchema, value, nil)
}
