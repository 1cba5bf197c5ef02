package utils

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"liana-gateway/internal/schema"
)

// DataTypeMapper converts raw request values to the Go values matching a
// schema field type
type DataTypeMapper struct{}

// NewDataTypeMapper creates a new DataTypeMapper instance
func NewDataTypeMapper() *DataTypeMapper {
	return &DataTypeMapper{}
}

// StandardizeValue converts raw according to the semantic type of a field.
// Dates without zone are read in loc.
func (dtm *DataTypeMapper) StandardizeValue(raw string, fieldType schema.FieldType, loc *time.Location) (interface{}, error) {
	if fieldType.IsMany() {
		return raw, nil
	}

	switch fieldType.Tag {
	case schema.TypeNumber:
		return dtm.convertToNumber(raw)
	case schema.TypeBoolean:
		return dtm.convertToBoolean(raw)
	case schema.TypeDate:
		return dtm.convertToTime(raw, loc)
	case schema.TypeDateonly:
		return dtm.convertToDate(raw, loc)
	default:
		return raw, nil
	}
}

// convertToNumber keeps integers as int64 so they compare exactly
func (dtm *DataTypeMapper) convertToNumber(raw string) (interface{}, error) {
	raw = strings.TrimSpace(raw)
	if i, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return i, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, fmt.Errorf("cannot convert %q to number", raw)
	}
	return f, nil
}

func (dtm *DataTypeMapper) convertToBoolean(raw string) (interface{}, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "true", "1", "t", "yes":
		return true, nil
	case "false", "0", "f", "no":
		return false, nil
	default:
		return nil, fmt.Errorf("cannot convert %q to boolean", raw)
	}
}

func (dtm *DataTypeMapper) convertToDate(raw string, loc *time.Location) (interface{}, error) {
	t, err := time.ParseInLocation("2006-01-02", strings.TrimSpace(raw), loc)
	if err != nil {
		return nil, fmt.Errorf("cannot convert %q to date", raw)
	}
	return t, nil
}

func (dtm *DataTypeMapper) convertToTime(raw string, loc *time.Location) (interface{}, error) {
	raw = strings.TrimSpace(raw)
	if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return t, nil
	}

	formats := []string{
		"2006-01-02 15:04:05",
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05.999",
		"2006-01-02",
	}
	for _, format := range formats {
		if t, err := time.ParseInLocation(format, raw, loc); err == nil {
			return t, nil
		}
	}
	return nil, fmt.Errorf("cannot parse time string: %s", raw)
}
