package schema

import (
	"context"
	"errors"

	"gorm.io/gorm/clause"

	"liana-gateway/internal/model"
)

// SegmentCondition is the where-condition of a segment, either a
// StaticCondition or a DynamicCondition
type SegmentCondition interface {
	isSegmentCondition()
}

// StaticCondition is a condition fixed at declaration time
type StaticCondition struct {
	Expr clause.Expression
}

// DynamicCondition is computed from the request parameters
type DynamicCondition struct {
	Resolve func(ctx context.Context, params *model.ListParams) (clause.Expression, error)
}

func (StaticCondition) isSegmentCondition()  {}
func (DynamicCondition) isSegmentCondition() {}

// Segment is a named predefined view on a collection. Scope names a
// collection scope, Where an extra condition, both optional.
type Segment struct {
	Name  string           `json:"name"`
	Scope string           `json:"-"`
	Where SegmentCondition `json:"-"`
}

// ResolveCondition evaluates the segment condition for a request. A segment
// without condition resolves to nil.
func (s *Segment) ResolveCondition(ctx context.Context, params *model.ListParams) (clause.Expression, error) {
	switch c := s.Where.(type) {
	case nil:
		return nil, nil
	case StaticCondition:
		return c.Expr, nil
	case DynamicCondition:
		if c.Resolve == nil {
			return nil, errors.New("segment " + s.Name + " has no resolver")
		}
		return c.Resolve(ctx, params)
	default:
		return nil, errors.New("segment " + s.Name + " has an unsupported condition")
	}
}
