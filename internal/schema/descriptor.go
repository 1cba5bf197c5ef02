package schema

// NativeType is the ORM-level type of a column. Name is lower-cased and
// stripped of size constraints ("varchar", "enum", "array"...).
type NativeType struct {
	Name   string
	Values []string
	Elem   *NativeType
}

// ColumnDescriptor is the input description of a model column
type ColumnDescriptor struct {
	Field         string
	ColumnName    string
	Type          NativeType
	AllowNull     bool
	DefaultValue  interface{}
	Validate      *Constraints
	PrimaryKey    bool
	AutoGenerated bool
}

// Constraints holds the declared validation rules of a column
type Constraints struct {
	Min      *Constraint
	Max      *Constraint
	Before   *Constraint
	After    *Constraint
	Contains *Constraint
	Pattern  *Constraint
	// Len is "min" or "min~max"
	Len *Constraint
}

// IsEmpty reports whether no rule is declared
func (c *Constraints) IsEmpty() bool {
	return c == nil || (c.Min == nil && c.Max == nil && c.Before == nil && c.After == nil &&
		c.Contains == nil && c.Pattern == nil && c.Len == nil)
}

// Constraint is a single rule argument with an optional custom message
type Constraint struct {
	Value   string
	Message string
}

// AssociationDescriptor is the input description of a model association
type AssociationDescriptor struct {
	Accessor     string
	Relationship string
	Kind         AssociationKind
	Target       string
	// ForeignKey is the column name holding the key
	ForeignKey string
	TargetKey  string
	TargetType *NativeType
	InverseOf  string
}
