package model

import (
	"gorm.io/gorm/clause"
)

// CompositePrimaryKeyField is the attribute attached to records of models
// declaring more than one primary key. It is also used as their idField.
const CompositePrimaryKeyField = "forestCompositePrimary"

// Record is a fetched row keyed by schema field names. Eager-loaded
// associations are nested records.
type Record map[string]interface{}

// FindOptions describes one count or list execution against a collection
type FindOptions struct {
	// Select restricts the fetched columns, empty means every column
	Select []string
	// Where is the top-level "all of" condition
	Where clause.AndConditions
	// Include lists the relations joined and eager-loaded
	Include []string
	Order   []clause.OrderByColumn
	Offset  int
	Limit   int

	hasSearch bool
}

// SetSearch places the free-text search condition first in Where
func (o *FindOptions) SetSearch(expr clause.Expression) {
	if expr == nil {
		return
	}
	expr = unwrapSingle(expr)
	if o.hasSearch {
		o.Where.Exprs[0] = expr
		return
	}
	o.Where.Exprs = append([]clause.Expression{expr}, o.Where.Exprs...)
	o.hasSearch = true
}

// AddCondition appends a condition to Where, nil conditions are ignored
func (o *FindOptions) AddCondition(expr clause.Expression) {
	if expr == nil {
		return
	}
	o.Where.Exprs = append(o.Where.Exprs, unwrapSingle(expr))
}

// Search returns the search condition, if any
func (o *FindOptions) Search() (clause.Expression, bool) {
	if !o.hasSearch {
		return nil, false
	}
	return o.Where.Exprs[0], true
}

// ExtendSearch adds alternatives to the search condition, so a record
// matching any of them is returned. It reports false when no search
// condition is present.
func (o *FindOptions) ExtendSearch(exprs ...clause.Expression) bool {
	current, ok := o.Search()
	if !ok {
		return false
	}

	or, isOr := current.(clause.OrConditions)
	if !isOr {
		or = clause.OrConditions{Exprs: []clause.Expression{current}}
	}
	merged := make([]clause.Expression, 0, len(or.Exprs)+len(exprs))
	merged = append(merged, or.Exprs...)
	merged = append(merged, exprs...)
	o.Where.Exprs[0] = unwrapSingle(clause.OrConditions{Exprs: merged})
	return true
}

// unwrapSingle returns the only alternative of a one-element OR. GORM joins
// such a condition to the previous one with OR instead of AND.
func unwrapSingle(expr clause.Expression) clause.Expression {
	if or, ok := expr.(clause.OrConditions); ok && len(or.Exprs) == 1 {
		return or.Exprs[0]
	}
	return expr
}

// Clone returns a copy that can be mutated without touching o
func (o *FindOptions) Clone() *FindOptions {
	clone := *o
	clone.Select = copyStrings(o.Select)
	clone.Include = copyStrings(o.Include)
	if o.Order != nil {
		clone.Order = append(make([]clause.OrderByColumn, 0, len(o.Order)), o.Order...)
	}
	clone.Where = clause.AndConditions{Exprs: copyExprs(o.Where.Exprs)}
	if o.hasSearch {
		if or, ok := o.Where.Exprs[0].(clause.OrConditions); ok {
			clone.Where.Exprs[0] = clause.OrConditions{Exprs: copyExprs(or.Exprs)}
		}
	}
	return &clone
}

func copyStrings(values []string) []string {
	if values == nil {
		return nil
	}
	return append(make([]string, 0, len(values)), values...)
}

func copyExprs(exprs []clause.Expression) []clause.Expression {
	if exprs == nil {
		return nil
	}
	return append(make([]clause.Expression, 0, len(exprs)), exprs...)
}
