package schema

import (
	"strings"
)

// MapType maps a native column type to its semantic type. Unknown types
// map to the undefined tag.
func MapType(t NativeType) FieldType {
	name := normalizeTypeName(t.Name)

	switch name {
	case "array":
		if t.Elem == nil {
			return FieldType{}
		}
		return ManyOf(MapType(*t.Elem))
	case "string", "varchar", "char", "character", "character varying", "nvarchar", "nchar",
		"text", "tinytext", "mediumtext", "longtext", "uuid", "citext":
		return Scalar(TypeString)
	case "enum":
		return Scalar(TypeEnum)
	case "bool", "boolean":
		return Scalar(TypeBoolean)
	case "date":
		return Scalar(TypeDateonly)
	case "datetime", "timestamp", "timestamptz", "timestamp with time zone", "timestamp without time zone":
		return Scalar(TypeDate)
	case "time", "timetz":
		return Scalar(TypeTime)
	case "int", "integer", "tinyint", "smallint", "mediumint", "bigint", "serial", "bigserial",
		"float", "double", "double precision", "real", "decimal", "numeric":
		return Scalar(TypeNumber)
	case "json", "jsonb":
		return Scalar(TypeJSON)
	default:
		return FieldType{}
	}
}

// normalizeTypeName lower-cases the type and removes size constraints,
// "varchar(255)" becomes "varchar"
func normalizeTypeName(name string) string {
	normalized := strings.ToLower(strings.TrimSpace(name))

	if start := strings.Index(normalized, "("); start != -1 {
		if end := strings.LastIndex(normalized, ")"); end > start {
			normalized = normalized[:start] + normalized[end+1:]
		}
	}
	normalized = strings.TrimSuffix(normalized, " unsigned")

	return strings.Join(strings.Fields(normalized), " ")
}
