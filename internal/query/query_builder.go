package query

import (
	"fmt"
	"math"
	"strings"

	"gorm.io/gorm/clause"

	"liana-gateway/internal/model"
	"liana-gateway/internal/schema"
)

// Pagination defaults
const (
	DefaultPageSize = 15
	MaxPageSize     = 1000
)

// QueryBuilder computes the eager-loading, ordering and pagination options
// of a list request
type QueryBuilder interface {
	Includes(s *schema.Schema, requested []string) []string
	Order(s *schema.Schema, sort string) ([]clause.OrderByColumn, error)
	Skip(page model.Page) int
	Limit(page model.Page) int
}

type queryBuilder struct {
	registry        *schema.Registry
	defaultPageSize int
	maxPageSize     int
}

// NewQueryBuilder creates the default query builder. Non-positive sizes
// fall back to DefaultPageSize and MaxPageSize.
func NewQueryBuilder(registry *schema.Registry, defaultPageSize, maxPageSize int) QueryBuilder {
	if defaultPageSize <= 0 {
		defaultPageSize = DefaultPageSize
	}
	if maxPageSize <= 0 {
		maxPageSize = MaxPageSize
	}
	return &queryBuilder{
		registry:        registry,
		defaultPageSize: defaultPageSize,
		maxPageSize:     maxPageSize,
	}
}

// Includes returns the relations to join: every single-valued association,
// limited to the requested ones when a field subset was asked
func (b *queryBuilder) Includes(s *schema.Schema, requested []string) []string {
	includes := []string{}
	for i := range s.Fields {
		f := &s.Fields[i]
		if !f.IsAssociation() || !f.Kind.IsSingle() {
			continue
		}
		if requested != nil && !contains(requested, f.Field) {
			continue
		}
		includes = append(includes, f.Relationship)
	}
	return includes
}

// Order reads "field", "-field" or "association.field". Without sort the
// records come newest primary key first.
func (b *queryBuilder) Order(s *schema.Schema, sort string) ([]clause.OrderByColumn, error) {
	sort = strings.TrimSpace(sort)
	if sort == "" {
		order := make([]clause.OrderByColumn, 0, len(s.PrimaryKeys))
		for _, pk := range s.PrimaryKeys {
			if f, ok := s.FieldByName(pk); ok {
				order = append(order, clause.OrderByColumn{
					Column: clause.Column{Table: clause.CurrentTable, Name: f.ColumnName},
					Desc:   true,
				})
			}
		}
		return order, nil
	}

	desc := strings.HasPrefix(sort, "-")
	column, _, err := ResolveColumn(b.registry, s, strings.TrimPrefix(sort, "-"), SortPathSeparator)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidSort, sort)
	}
	return []clause.OrderByColumn{{Column: column, Desc: desc}}, nil
}

// Skip returns the offset of the page, saturating at math.MaxInt so a page
// far past the end stays empty
func (b *queryBuilder) Skip(page model.Page) int {
	number := page.Number
	if number < 1 {
		number = 1
	}
	limit := b.Limit(page)
	if limit > 0 && number-1 > math.MaxInt/limit {
		return math.MaxInt
	}
	return (number - 1) * limit
}

func (b *queryBuilder) Limit(page model.Page) int {
	switch {
	case page.Size <= 0:
		return b.defaultPageSize
	case page.Size > b.maxPageSize:
		return b.maxPageSize
	default:
		return page.Size
	}
}
