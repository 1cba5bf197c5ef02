package query

import (
	"fmt"
	"strings"

	"liana-gateway/internal/model"
	"liana-gateway/internal/schema"
)

// CompositeKeySeparator joins the primary-key values of a record
const CompositeKeySeparator = "|"

// CompositeKeysManager computes the identifier of composite-primary records
type CompositeKeysManager interface {
	Value(s *schema.Schema, record model.Record) string
}

type compositeKeysManager struct{}

// NewCompositeKeysManager creates the default manager
func NewCompositeKeysManager() CompositeKeysManager {
	return compositeKeysManager{}
}

func (compositeKeysManager) Value(s *schema.Schema, record model.Record) string {
	parts := make([]string, 0, len(s.PrimaryKeys))
	for _, pk := range s.PrimaryKeys {
		value, ok := record[pk]
		if !ok || value == nil {
			parts = append(parts, "null")
			continue
		}
		parts = append(parts, fmt.Sprint(value))
	}
	return strings.Join(parts, CompositeKeySeparator)
}
