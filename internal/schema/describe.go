package schema

import (
	"reflect"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	gormschema "gorm.io/gorm/schema"
)

var (
	uuidType = reflect.TypeOf(uuid.UUID{})
	timeType = reflect.TypeOf(time.Time{})
	namer    = gormschema.NamingStrategy{}
)

// DescribeModel turns a GORM-parsed model into column and association
// descriptors, both in struct declaration order
func DescribeModel(s *gormschema.Schema) ([]ColumnDescriptor, []AssociationDescriptor) {
	var (
		columns      []ColumnDescriptor
		associations []AssociationDescriptor
	)

	for _, f := range s.Fields {
		if rel, ok := s.Relationships.Relations[f.Name]; ok {
			associations = append(associations, describeRelationship(s, rel))
			continue
		}
		if f.DBName == "" || !f.Readable {
			continue
		}
		columns = append(columns, describeColumn(f))
	}

	return columns, associations
}

// FieldName is the name a column is exposed under, its json name when set
func FieldName(f *gormschema.Field) string {
	if name := jsonName(f); name != "" {
		return name
	}
	return f.DBName
}

// AssociationName is the name an association is exposed under
func AssociationName(f *gormschema.Field) string {
	if name := jsonName(f); name != "" {
		return name
	}
	return namer.ColumnName("", f.Name)
}

func jsonName(f *gormschema.Field) string {
	name := strings.Split(f.Tag.Get("json"), ",")[0]
	if name == "-" {
		return ""
	}
	return name
}

func describeColumn(f *gormschema.Field) ColumnDescriptor {
	constraints, required := parseValidateTag(f.Tag.Get("validate"), f.Tag.Get("validate_msg"))

	column := ColumnDescriptor{
		Field:         FieldName(f),
		ColumnName:    f.DBName,
		Type:          nativeType(f),
		AllowNull:     !(f.NotNull || f.PrimaryKey || required),
		PrimaryKey:    f.PrimaryKey,
		AutoGenerated: f.AutoIncrement || f.AutoCreateTime != 0 || f.AutoUpdateTime != 0,
		Validate:      constraints,
	}
	if f.HasDefaultValue && f.DefaultValueInterface != nil {
		column.DefaultValue = f.DefaultValueInterface
	}
	return column
}

func nativeType(f *gormschema.Field) NativeType {
	t := f.IndirectFieldType
	if t == uuidType {
		return NativeType{Name: "uuid"}
	}
	if t.Kind() == reflect.Slice && t.Elem().Kind() != reflect.Uint8 {
		elem := goNativeType(t.Elem())
		return NativeType{Name: "array", Elem: &elem}
	}
	if raw, ok := f.TagSettings["TYPE"]; ok {
		return sqlNativeType(raw)
	}

	switch f.DataType {
	case gormschema.Bool:
		return NativeType{Name: "boolean"}
	case gormschema.Int, gormschema.Uint:
		if f.Size == 64 {
			return NativeType{Name: "bigint"}
		}
		return NativeType{Name: "integer"}
	case gormschema.Float:
		if f.Size == 64 {
			return NativeType{Name: "double"}
		}
		return NativeType{Name: "float"}
	case gormschema.String:
		return NativeType{Name: "varchar"}
	case gormschema.Time:
		return NativeType{Name: "timestamp"}
	case gormschema.Bytes:
		return NativeType{Name: "blob"}
	default:
		return sqlNativeType(string(f.DataType))
	}
}

func goNativeType(t reflect.Type) NativeType {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t == uuidType {
		return NativeType{Name: "uuid"}
	}
	if t == timeType {
		return NativeType{Name: "timestamp"}
	}

	switch t.Kind() {
	case reflect.String:
		return NativeType{Name: "varchar"}
	case reflect.Bool:
		return NativeType{Name: "boolean"}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return NativeType{Name: "integer"}
	case reflect.Float32, reflect.Float64:
		return NativeType{Name: "double"}
	case reflect.Slice:
		elem := goNativeType(t.Elem())
		return NativeType{Name: "array", Elem: &elem}
	default:
		return NativeType{Name: t.Kind().String()}
	}
}

// sqlNativeType reads a column type declaration such as "varchar(64)",
// "enum('a','b')" or "text[]"
func sqlNativeType(raw string) NativeType {
	raw = strings.TrimSpace(raw)
	if strings.HasSuffix(raw, "[]") {
		elem := sqlNativeType(strings.TrimSuffix(raw, "[]"))
		return NativeType{Name: "array", Elem: &elem}
	}

	name := normalizeTypeName(raw)
	if name != "enum" {
		return NativeType{Name: name}
	}

	var values []string
	if start, end := strings.Index(raw, "("), strings.LastIndex(raw, ")"); start != -1 && end > start {
		for _, value := range strings.Split(raw[start+1:end], ",") {
			value = strings.Trim(strings.TrimSpace(value), `'"`)
			if value != "" {
				values = append(values, value)
			}
		}
	}
	return NativeType{Name: name, Values: values}
}

var tagValueUnescaper = strings.NewReplacer("0x2C", ",", "0x7C", "|")

// parseValidateTag reads validator-style rules, `validate:"required,min=1"`,
// with optional messages in `validate_msg:"min=must be positive"`. As with
// the validator, a comma inside a rule value is written 0x2C and a pipe 0x7C.
func parseValidateTag(tag, messagesTag string) (*Constraints, bool) {
	if tag == "" {
		return nil, false
	}

	messages := make(map[string]string)
	for _, entry := range strings.Split(messagesTag, ";") {
		if key, msg, ok := strings.Cut(entry, "="); ok {
			messages[strings.TrimSpace(key)] = strings.TrimSpace(msg)
		}
	}

	c := &Constraints{}
	required := false
	for _, rule := range strings.Split(tag, ",") {
		key, value, _ := strings.Cut(strings.TrimSpace(rule), "=")
		value = tagValueUnescaper.Replace(value)
		constraint := &Constraint{Value: value, Message: messages[key]}

		switch key {
		case "required":
			required = true
		case "min", "gte", "gt":
			c.Min = constraint
		case "max", "lte", "lt":
			c.Max = constraint
		case "before":
			c.Before = constraint
		case "after":
			c.After = constraint
		case "len":
			c.Len = constraint
		case "contains":
			c.Contains = constraint
		case "startswith":
			constraint.Value = "^" + regexp.QuoteMeta(value)
			c.Pattern = constraint
		case "pattern":
			c.Pattern = constraint
		}
	}

	if c.IsEmpty() {
		return nil, required
	}
	return c, required
}

func describeRelationship(s *gormschema.Schema, rel *gormschema.Relationship) AssociationDescriptor {
	association := AssociationDescriptor{
		Accessor:     AssociationName(rel.Field),
		Relationship: rel.Name,
		Kind:         associationKind(rel.Type),
		Target:       rel.FieldSchema.Name,
		InverseOf:    inverseOf(s, rel),
	}

	var targetKey *gormschema.Field
	switch rel.Type {
	case gormschema.BelongsTo:
		for _, ref := range rel.References {
			if ref.PrimaryKey != nil && ref.ForeignKey != nil && !ref.OwnPrimaryKey {
				association.ForeignKey = ref.ForeignKey.DBName
				targetKey = ref.PrimaryKey
				break
			}
		}
	case gormschema.HasOne, gormschema.HasMany:
		for _, ref := range rel.References {
			if ref.ForeignKey != nil && ref.OwnPrimaryKey {
				association.ForeignKey = ref.ForeignKey.DBName
				break
			}
		}
		targetKey = rel.FieldSchema.PrioritizedPrimaryField
	default:
		targetKey = rel.FieldSchema.PrioritizedPrimaryField
	}

	if targetKey != nil {
		association.TargetKey = FieldName(targetKey)
		t := nativeType(targetKey)
		association.TargetType = &t
	}
	return association
}

func associationKind(t gormschema.RelationshipType) AssociationKind {
	switch t {
	case gormschema.BelongsTo:
		return BelongsTo
	case gormschema.HasOne:
		return HasOne
	case gormschema.HasMany:
		return HasMany
	case gormschema.Many2Many:
		return BelongsToMany
	default:
		return AssociationKind(t)
	}
}

// inverseOf finds the association of the target model that relies on the
// same foreign key or join table
func inverseOf(s *gormschema.Schema, rel *gormschema.Relationship) string {
	key := relationKey(rel)
	if key == "" {
		return ""
	}
	for _, candidate := range rel.FieldSchema.Relationships.Relations {
		if candidate == rel || candidate.FieldSchema == nil || candidate.FieldSchema.Table != s.Table {
			continue
		}
		if relationKey(candidate) == key {
			return AssociationName(candidate.Field)
		}
	}
	return ""
}

func relationKey(rel *gormschema.Relationship) string {
	if rel.JoinTable != nil {
		return "join:" + rel.JoinTable.Table
	}
	for _, ref := range rel.References {
		if ref.PrimaryKey != nil && ref.ForeignKey != nil && ref.ForeignKey.Schema != nil {
			return ref.ForeignKey.Schema.Table + "." + ref.ForeignKey.DBName
		}
	}
	return ""
}
