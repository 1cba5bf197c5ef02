package schema

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Validation rule types understood by the admin panel
const (
	ValidationPresent     = "is present"
	ValidationGreaterThan = "is greater than"
	ValidationLessThan    = "is less than"
	ValidationBefore      = "is before"
	ValidationAfter       = "is after"
	ValidationLongerThan  = "is longer than"
	ValidationShorterThan = "is shorter than"
	ValidationContains    = "contains"
	ValidationLike        = "is like"
)

// Validation is a client-side rule attached to a field
type Validation struct {
	Type    string      `json:"type"`
	Value   interface{} `json:"value,omitempty"`
	Message string      `json:"message,omitempty"`
}

var dateLayouts = []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"}

// buildValidations derives the rules of a column. Autogenerated columns never
// get any rule, server-generated values must not block writes.
func buildValidations(column ColumnDescriptor) ([]Validation, error) {
	if column.AutoGenerated {
		return nil, nil
	}

	var validations []Validation
	if !column.AllowNull {
		validations = append(validations, Validation{Type: ValidationPresent})
	}

	c := column.Validate
	if c.IsEmpty() {
		return validations, nil
	}

	if c.Min != nil {
		validations = append(validations, Validation{Type: ValidationGreaterThan, Value: numericValue(c.Min.Value), Message: c.Min.Message})
	}
	if c.Max != nil {
		validations = append(validations, Validation{Type: ValidationLessThan, Value: numericValue(c.Max.Value), Message: c.Max.Message})
	}
	if c.Before != nil {
		date, err := parseDate(c.Before.Value)
		if err != nil {
			return nil, fmt.Errorf("before constraint: %w", err)
		}
		validations = append(validations, Validation{Type: ValidationBefore, Value: date, Message: c.Before.Message})
	}
	if c.After != nil {
		date, err := parseDate(c.After.Value)
		if err != nil {
			return nil, fmt.Errorf("after constraint: %w", err)
		}
		validations = append(validations, Validation{Type: ValidationAfter, Value: date, Message: c.After.Message})
	}
	if c.Len != nil {
		bounds, err := lengthBounds(c.Len.Value)
		if err != nil {
			return nil, err
		}
		// a single bound is always a minimum
		validations = append(validations, Validation{Type: ValidationLongerThan, Value: bounds[0], Message: c.Len.Message})
		if len(bounds) == 2 {
			validations = append(validations, Validation{Type: ValidationShorterThan, Value: bounds[1], Message: c.Len.Message})
		}
	}
	if c.Contains != nil {
		validations = append(validations, Validation{Type: ValidationContains, Value: c.Contains.Value, Message: c.Contains.Message})
	}
	if c.Pattern != nil {
		if _, err := regexp.Compile(c.Pattern.Value); err != nil {
			return nil, fmt.Errorf("pattern constraint: %w", err)
		}
		validations = append(validations, Validation{Type: ValidationLike, Value: "/" + c.Pattern.Value + "/", Message: c.Pattern.Message})
	}

	return validations, nil
}

func numericValue(raw string) interface{} {
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return f
	}
	return raw
}

func lengthBounds(raw string) ([]int, error) {
	parts := strings.Split(raw, "~")
	if len(parts) > 2 {
		return nil, fmt.Errorf("length constraint %q has too many bounds", raw)
	}
	bounds := make([]int, 0, len(parts))
	for _, part := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil, fmt.Errorf("length constraint %q: %w", raw, err)
		}
		bounds = append(bounds, n)
	}
	return bounds, nil
}

func parseDate(raw string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q", raw)
}
