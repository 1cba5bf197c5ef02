package schema

import (
	"context"
	"encoding/json"

	"liana-gateway/internal/model"
)

// Semantic type tags exposed to the admin panel
const (
	TypeString   = "String"
	TypeEnum     = "Enum"
	TypeBoolean  = "Boolean"
	TypeDate     = "Date"
	TypeDateonly = "Dateonly"
	TypeTime     = "Time"
	TypeNumber   = "Number"
	TypeJSON     = "Json"
)

// FieldType is either a scalar tag or a one-element collection of another
// FieldType. The zero value is the undefined tag.
type FieldType struct {
	Tag  string
	Elem *FieldType
}

// Scalar returns the scalar type for tag
func Scalar(tag string) FieldType {
	return FieldType{Tag: tag}
}

// ManyOf wraps t into a collection type
func ManyOf(t FieldType) FieldType {
	return FieldType{Elem: &t}
}

// IsMany reports whether t denotes a collection
func (t FieldType) IsMany() bool {
	return t.Elem != nil
}

// IsDefined reports whether the type could be resolved
func (t FieldType) IsDefined() bool {
	if t.Elem != nil {
		return t.Elem.IsDefined()
	}
	return t.Tag != ""
}

// Base returns the innermost scalar tag
func (t FieldType) Base() string {
	if t.Elem != nil {
		return t.Elem.Base()
	}
	return t.Tag
}

// MarshalJSON renders "Tag", ["Tag"] or null for the undefined tag
func (t FieldType) MarshalJSON() ([]byte, error) {
	if t.Elem != nil {
		return json.Marshal([]FieldType{*t.Elem})
	}
	if t.Tag == "" {
		return []byte("null"), nil
	}
	return json.Marshal(t.Tag)
}

// AssociationKind is the cardinality of an association
type AssociationKind string

const (
	BelongsTo     AssociationKind = "BelongsTo"
	HasOne        AssociationKind = "HasOne"
	HasMany       AssociationKind = "HasMany"
	BelongsToMany AssociationKind = "BelongsToMany"
)

// IsSingle reports whether the association points to at most one record
func (k AssociationKind) IsSingle() bool {
	return k == BelongsTo || k == HasOne
}

// SearchHook lets a field take part in free-text search by mutating the
// count and list options, typically through FindOptions.ExtendSearch.
type SearchHook func(ctx context.Context, opts *model.FindOptions, term string) error

// Field describes a column or an association of a model
type Field struct {
	Field        string       `json:"field"`
	Type         FieldType    `json:"type"`
	ColumnName   string       `json:"columnName,omitempty"`
	PrimaryKey   bool         `json:"primaryKey,omitempty"`
	Enums        []string     `json:"enums,omitempty"`
	IsRequired   bool         `json:"isRequired,omitempty"`
	DefaultValue interface{}  `json:"defaultValue,omitempty"`
	Validations  []Validation `json:"validations,omitempty"`
	Reference    string       `json:"reference,omitempty"`
	InverseOf    string       `json:"inverseOf,omitempty"`
	IsVirtual    bool         `json:"isVirtual,omitempty"`

	// Relationship is the ORM relation name, set on associations only
	Relationship string          `json:"-"`
	Kind         AssociationKind `json:"-"`
	Target       string          `json:"-"`
	Search       SearchHook      `json:"-"`
}

// IsAssociation reports whether f describes an association
func (f *Field) IsAssociation() bool {
	return f.Kind != ""
}

// IsColumn reports whether f is backed by a column of the model table
func (f *Field) IsColumn() bool {
	return !f.IsAssociation() && !f.IsVirtual
}

// Schema is the normalized description of a model. It is never mutated
// once registered.
type Schema struct {
	Name               string    `json:"name"`
	IDField            string    `json:"idField"`
	PrimaryKeys        []string  `json:"primaryKeys"`
	IsCompositePrimary bool      `json:"isCompositePrimary"`
	Fields             []Field   `json:"fields"`
	SearchFields       []string  `json:"searchFields,omitempty"`
	Segments           []Segment `json:"segments,omitempty"`
}

// FieldByName returns the field named name
func (s *Schema) FieldByName(name string) (*Field, bool) {
	for i := range s.Fields {
		if s.Fields[i].Field == name {
			return &s.Fields[i], true
		}
	}
	return nil, false
}

// Association returns the association field named name
func (s *Schema) Association(name string) (*Field, bool) {
	f, ok := s.FieldByName(name)
	if !ok || !f.IsAssociation() {
		return nil, false
	}
	return f, true
}

// Segment returns the segment named name
func (s *Schema) Segment(name string) (*Segment, bool) {
	for i := range s.Segments {
		if s.Segments[i].Name == name {
			return &s.Segments[i], true
		}
	}
	return nil, false
}

// IsPrimaryKey reports whether name is one of the primary keys
func (s *Schema) IsPrimaryKey(name string) bool {
	for _, pk := range s.PrimaryKeys {
		if pk == name {
			return true
		}
	}
	return false
}
