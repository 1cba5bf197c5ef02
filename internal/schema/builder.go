package schema

import (
	"errors"
	"fmt"

	"liana-gateway/internal/model"
)

// Issue reports a field that could not be described. The field is left out
// of the schema, the rest of the model is still built.
type Issue struct {
	Model string
	Field string
	Err   error
}

func (i Issue) Error() string {
	if i.Field == "" {
		return fmt.Sprintf("model %s: %v", i.Model, i.Err)
	}
	return fmt.Sprintf("model %s, field %s: %v", i.Model, i.Field, i.Err)
}

func (i Issue) Unwrap() error {
	return i.Err
}

// Option customizes a schema after its fields are built
type Option func(*Schema) error

// Build produces the schema of a model from its column and association
// descriptors. Columns come first in the field list, associations after,
// both in declaration order.
func Build(name string, columns []ColumnDescriptor, associations []AssociationDescriptor, opts ...Option) (*Schema, []Issue) {
	s := &Schema{
		Name:        name,
		PrimaryKeys: []string{},
		Fields:      []Field{},
	}
	var issues []Issue

	foreignKeys := make(map[string]bool)
	for _, a := range associations {
		if a.Kind == BelongsTo && a.ForeignKey != "" {
			foreignKeys[a.ForeignKey] = true
		}
	}

	for _, column := range columns {
		if column.PrimaryKey {
			s.PrimaryKeys = append(s.PrimaryKeys, column.Field)
		}
		if foreignKeys[column.ColumnName] && !column.PrimaryKey {
			continue
		}

		field, err := buildColumnField(column)
		if err != nil {
			issues = append(issues, Issue{Model: name, Field: column.Field, Err: err})
			continue
		}
		s.Fields = append(s.Fields, field)
	}

	for _, association := range associations {
		field, err := buildAssociationField(association)
		if err != nil {
			issues = append(issues, Issue{Model: name, Field: association.Accessor, Err: err})
			continue
		}
		s.Fields = append(s.Fields, field)
	}

	switch len(s.PrimaryKeys) {
	case 0:
	case 1:
		s.IDField = s.PrimaryKeys[0]
	default:
		s.IsCompositePrimary = true
		s.IDField = model.CompositePrimaryKeyField
	}

	for _, opt := range opts {
		if err := opt(s); err != nil {
			issues = append(issues, Issue{Model: name, Err: err})
		}
	}

	return s, issues
}

func buildColumnField(column ColumnDescriptor) (Field, error) {
	if column.Field == "" {
		return Field{}, errors.New("column has no field name")
	}

	field := Field{
		Field:      column.Field,
		Type:       MapType(column.Type),
		ColumnName: column.ColumnName,
		PrimaryKey: column.PrimaryKey,
		IsRequired: !column.AllowNull && !column.AutoGenerated && column.DefaultValue == nil,
	}

	if field.Type.Base() == TypeEnum {
		values := enumValues(column.Type)
		if len(values) == 0 {
			return Field{}, errors.New("enum declares no values")
		}
		field.Enums = values
	}

	// primary key defaults are server-side markers, never exposed
	if !column.PrimaryKey {
		field.DefaultValue = column.DefaultValue
	}

	validations, err := buildValidations(column)
	if err != nil {
		return Field{}, err
	}
	field.Validations = validations

	return field, nil
}

func enumValues(t NativeType) []string {
	for t.Elem != nil {
		t = *t.Elem
	}
	if len(t.Values) == 0 {
		return nil
	}
	return append([]string(nil), t.Values...)
}

func buildAssociationField(association AssociationDescriptor) (Field, error) {
	if association.Accessor == "" {
		return Field{}, errors.New("association has no accessor")
	}
	if association.Target == "" {
		return Field{}, errors.New("association has no target model")
	}

	fieldType := Scalar(TypeNumber)
	if association.TargetType != nil {
		fieldType = MapType(*association.TargetType)
	}

	switch association.Kind {
	case BelongsTo, HasOne:
	case HasMany, BelongsToMany:
		fieldType = ManyOf(fieldType)
	default:
		return Field{}, fmt.Errorf("unknown association kind %q", association.Kind)
	}

	relationship := association.Relationship
	if relationship == "" {
		relationship = association.Accessor
	}

	field := Field{
		Field:        association.Accessor,
		Type:         fieldType,
		InverseOf:    association.InverseOf,
		Relationship: relationship,
		Kind:         association.Kind,
		Target:       association.Target,
	}
	if association.TargetKey != "" {
		field.Reference = association.Target + "." + association.TargetKey
	}

	return field, nil
}
