package query

import (
	"strconv"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm/clause"

	"liana-gateway/internal/model"
	"liana-gateway/internal/schema"
)

// SearchScope narrows which fields take part in free-text search
type SearchScope struct {
	// Fields lists the searchable columns, ignored unless Restricted
	Fields []string
	// Associations maps an association to its searchable fields, nil
	// meaning every string field of the target
	Associations map[string][]string
	Restricted   bool
}

// SearchBuilder builds the free-text search condition of a request
type SearchBuilder interface {
	Build(s *schema.Schema, scope SearchScope, params *model.ListParams, requested []string) clause.Expression
}

type searchBuilder struct {
	registry *schema.Registry
}

// NewSearchBuilder creates the default search builder
func NewSearchBuilder(registry *schema.Registry) SearchBuilder {
	return &searchBuilder{registry: registry}
}

// Build returns the alternatives matching the search term. A single
// alternative is returned as is, and a term matching no field yields a
// condition that is never true.
func (b *searchBuilder) Build(s *schema.Schema, scope SearchScope, params *model.ListParams, requested []string) clause.Expression {
	term := strings.TrimSpace(params.Search)
	var exprs []clause.Expression

	for i := range s.Fields {
		f := &s.Fields[i]
		if !f.IsColumn() || (scope.Restricted && !contains(scope.Fields, f.Field)) {
			continue
		}
		if expr := fieldCondition(clause.Column{Table: clause.CurrentTable, Name: f.ColumnName}, f, term); expr != nil {
			exprs = append(exprs, expr)
		}
	}

	for i := range s.Fields {
		association := &s.Fields[i]
		if !association.IsAssociation() || !association.Kind.IsSingle() {
			continue
		}
		fields, declared := scope.Associations[association.Field]
		if !params.SearchExtended && !declared {
			continue
		}
		if requested != nil && !contains(requested, association.Field) {
			continue
		}
		target, ok := b.registry.Lookup(association.Target)
		if !ok {
			continue
		}
		for j := range target.Fields {
			f := &target.Fields[j]
			if !f.IsColumn() || f.Type.Tag != schema.TypeString || (fields != nil && !contains(fields, f.Field)) {
				continue
			}
			exprs = append(exprs, like(clause.Column{Table: association.Relationship, Name: f.ColumnName}, term))
		}
	}

	switch len(exprs) {
	case 0:
		return clause.Expr{SQL: "0 = 1"}
	case 1:
		// a lone OR condition would be joined to the filters with OR
		return exprs[0]
	}
	return clause.OrConditions{Exprs: exprs}
}

func fieldCondition(column clause.Column, f *schema.Field, term string) clause.Expression {
	if f.Type.IsMany() {
		return nil
	}

	switch f.Type.Tag {
	case schema.TypeString:
		if f.PrimaryKey {
			if _, err := uuid.Parse(term); err == nil {
				return clause.Eq{Column: column, Value: term}
			}
		}
		return like(column, term)
	case schema.TypeEnum:
		for _, value := range f.Enums {
			if strings.EqualFold(value, term) {
				return clause.Eq{Column: column, Value: value}
			}
		}
	case schema.TypeNumber:
		if i, err := strconv.ParseInt(term, 10, 64); err == nil {
			return clause.Eq{Column: column, Value: i}
		}
		if n, err := strconv.ParseFloat(term, 64); err == nil {
			return clause.Eq{Column: column, Value: n}
		}
	}
	return nil
}

func like(column clause.Column, term string) clause.Expression {
	return clause.Expr{
		SQL:  "LOWER(?) LIKE ?",
		Vars: []interface{}{column, "%" + strings.ToLower(term) + "%"},
	}
}

func contains(values []string, value string) bool {
	for _, v := range values {
		if v == value {
			return true
		}
	}
	return false
}
