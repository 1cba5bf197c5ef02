package query

import (
	"fmt"
	"strings"

	"gorm.io/gorm/clause"

	"liana-gateway/internal/schema"
)

// Separators of association paths. Filters use "author:name", sort and
// search fields use "author.name".
const (
	FilterPathSeparator = ":"
	SortPathSeparator   = "."
)

// ResolveColumn returns the column a field path points to. Association
// paths resolve to the joined table, aliased by the relation name, the way
// gorm Joins aliases it.
func ResolveColumn(registry *schema.Registry, s *schema.Schema, path, sep string) (clause.Column, *schema.Field, error) {
	name, sub, nested := strings.Cut(path, sep)
	if !nested {
		f, ok := s.FieldByName(path)
		if !ok || !f.IsColumn() {
			return clause.Column{}, nil, fmt.Errorf("%w: unknown field %s on %s", ErrInvalidFilter, path, s.Name)
		}
		return clause.Column{Table: clause.CurrentTable, Name: f.ColumnName}, f, nil
	}

	association, ok := s.Association(name)
	if !ok || !association.Kind.IsSingle() {
		return clause.Column{}, nil, fmt.Errorf("%w: unknown association %s on %s", ErrInvalidFilter, name, s.Name)
	}
	target, err := registry.Get(association.Target)
	if err != nil {
		return clause.Column{}, nil, fmt.Errorf("%w: %v", ErrInvalidFilter, err)
	}
	f, ok := target.FieldByName(sub)
	if !ok || !f.IsColumn() {
		return clause.Column{}, nil, fmt.Errorf("%w: unknown field %s on %s", ErrInvalidFilter, sub, target.Name)
	}
	return clause.Column{Table: association.Relationship, Name: f.ColumnName}, f, nil
}

// AssociationOf returns the association part of a path, "" for plain fields
func AssociationOf(path, sep string) string {
	name, _, nested := strings.Cut(path, sep)
	if !nested {
		return ""
	}
	return name
}
