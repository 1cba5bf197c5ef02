package schema

import (
	"fmt"
)

// WithSearchFields restricts free-text search to the given fields. Dotted
// names ("author.name") target association fields.
func WithSearchFields(fields ...string) Option {
	return func(s *Schema) error {
		s.SearchFields = append([]string(nil), fields...)
		return nil
	}
}

// WithSegments declares segments on the collection
func WithSegments(segments ...Segment) Option {
	return func(s *Schema) error {
		for _, segment := range segments {
			if segment.Name == "" {
				return fmt.Errorf("segment without name")
			}
			if _, exists := s.Segment(segment.Name); exists {
				return fmt.Errorf("segment %s declared twice", segment.Name)
			}
			s.Segments = append(s.Segments, segment)
		}
		return nil
	}
}

// WithSearchHook attaches a custom search hook to a field
func WithSearchHook(field string, hook SearchHook) Option {
	return func(s *Schema) error {
		f, ok := s.FieldByName(field)
		if !ok {
			return fmt.Errorf("search hook on unknown field %s", field)
		}
		f.Search = hook
		return nil
	}
}

// WithSmartField adds a virtual field computed outside the database. The
// field is listed in the schema but never selected.
func WithSmartField(field Field) Option {
	return func(s *Schema) error {
		if _, exists := s.FieldByName(field.Field); exists {
			return fmt.Errorf("smart field %s collides with an existing field", field.Field)
		}
		field.IsVirtual = true
		s.Fields = append(s.Fields, field)
		return nil
	}
}
