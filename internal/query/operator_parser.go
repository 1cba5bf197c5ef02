package query

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"gorm.io/gorm/clause"

	"liana-gateway/internal/schema"
	"liana-gateway/internal/utils"
)

// OperatorValueParser turns one raw filter value into a condition on column
type OperatorValueParser interface {
	Parse(s *schema.Schema, column clause.Column, key, raw string, loc *time.Location) (clause.Expression, error)
}

var previousDaysPattern = regexp.MustCompile(`^\$previous(\d+)Days$`)

type operatorValueParser struct {
	registry *schema.Registry
	mapper   *utils.DataTypeMapper
	now      func() time.Time
}

// NewOperatorValueParser creates the default parser. It understands
// "!v", ">v", "<v", "*v*", "v*", "*v", "null", "$present", "$blank" and the
// date keywords "$today", "$yesterday", "$previousXDays", "$past", "$future".
func NewOperatorValueParser(registry *schema.Registry) OperatorValueParser {
	return &operatorValueParser{
		registry: registry,
		mapper:   utils.NewDataTypeMapper(),
		now:      time.Now,
	}
}

func (p *operatorValueParser) Parse(s *schema.Schema, column clause.Column, key, raw string, loc *time.Location) (clause.Expression, error) {
	_, field, err := ResolveColumn(p.registry, s, key, FilterPathSeparator)
	if err != nil {
		return nil, err
	}
	if loc == nil {
		loc = time.UTC
	}
	isString := field.Type.Tag == schema.TypeString || field.Type.Tag == schema.TypeEnum

	switch {
	case raw == "null":
		return clause.Eq{Column: column, Value: nil}, nil
	case raw == "$present":
		if isString {
			return clause.AndConditions{Exprs: []clause.Expression{
				clause.Neq{Column: column, Value: nil},
				clause.Neq{Column: column, Value: ""},
			}}, nil
		}
		return clause.Neq{Column: column, Value: nil}, nil
	case raw == "$blank":
		if isString {
			return clause.Expr{SQL: "(? IS NULL OR ? = '')", Vars: []interface{}{column, column}}, nil
		}
		return clause.Eq{Column: column, Value: nil}, nil
	case strings.HasPrefix(raw, "$"):
		return p.parseDateKeyword(field, column, key, raw, loc)
	case strings.HasPrefix(raw, "!"):
		value, err := p.value(field, key, raw[1:], loc)
		if err != nil {
			return nil, err
		}
		return clause.Neq{Column: column, Value: value}, nil
	case strings.HasPrefix(raw, ">"):
		value, err := p.value(field, key, raw[1:], loc)
		if err != nil {
			return nil, err
		}
		return clause.Gt{Column: column, Value: value}, nil
	case strings.HasPrefix(raw, "<"):
		value, err := p.value(field, key, raw[1:], loc)
		if err != nil {
			return nil, err
		}
		return clause.Lt{Column: column, Value: value}, nil
	case len(raw) > 1 && (strings.HasPrefix(raw, "*") || strings.HasSuffix(raw, "*")):
		if !isString {
			return nil, fmt.Errorf("%w: %s does not support pattern %q", ErrInvalidFilter, key, raw)
		}
		pattern := strings.TrimSuffix(strings.TrimPrefix(raw, "*"), "*")
		if strings.HasPrefix(raw, "*") {
			pattern = "%" + pattern
		}
		if strings.HasSuffix(raw, "*") {
			pattern += "%"
		}
		return clause.Like{Column: column, Value: pattern}, nil
	default:
		value, err := p.value(field, key, raw, loc)
		if err != nil {
			return nil, err
		}
		return clause.Eq{Column: column, Value: value}, nil
	}
}

func (p *operatorValueParser) value(field *schema.Field, key, raw string, loc *time.Location) (interface{}, error) {
	value, err := p.mapper.StandardizeValue(raw, field.Type, loc)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidFilter, key, err)
	}
	return value, nil
}

func (p *operatorValueParser) parseDateKeyword(field *schema.Field, column clause.Column, key, raw string, loc *time.Location) (clause.Expression, error) {
	if field.Type.Tag != schema.TypeDate && field.Type.Tag != schema.TypeDateonly {
		return nil, fmt.Errorf("%w: %s is not a date, %s unsupported", ErrInvalidFilter, key, raw)
	}

	now := p.now().In(loc)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)

	switch raw {
	case "$past":
		return clause.Lt{Column: column, Value: now}, nil
	case "$future":
		return clause.Gt{Column: column, Value: now}, nil
	case "$today":
		return between(column, today, today.AddDate(0, 0, 1)), nil
	case "$yesterday":
		return between(column, today.AddDate(0, 0, -1), today), nil
	}

	if m := previousDaysPattern.FindStringSubmatch(raw); m != nil {
		days, err := strconv.Atoi(m[1])
		if err != nil || days <= 0 {
			return nil, fmt.Errorf("%w: %s: invalid day count in %s", ErrInvalidFilter, key, raw)
		}
		return between(column, today.AddDate(0, 0, -days), today), nil
	}

	return nil, fmt.Errorf("%w: %s: unknown operator %s", ErrInvalidFilter, key, raw)
}

// between matches from <= column < to
func between(column clause.Column, from, to time.Time) clause.Expression {
	return clause.AndConditions{Exprs: []clause.Expression{
		clause.Gte{Column: column, Value: from},
		clause.Lt{Column: column, Value: to},
	}}
}
