package model

import (
	"strings"
)

// Filter combination modes accepted in ListParams.FilterType
const (
	FilterTypeAnd = "and"
	FilterTypeOr  = "or"
)

// ListParams represents a list request sent by the admin panel
type ListParams struct {
	Filters        map[string]string `json:"filter,omitempty"` // field or association path (assoc:field) -> comma-joined values
	FilterType     string            `json:"filterType,omitempty" validate:"omitempty,oneof=and or"`
	Search         string            `json:"search,omitempty"`
	SearchExtended bool              `json:"searchExtended,omitempty"`
	Fields         map[string]string `json:"fields,omitempty"` // model name -> comma-joined field names
	Sort           string            `json:"sort,omitempty"`
	Page           Page              `json:"page"`
	Segment        string            `json:"segment,omitempty"`
	Timezone       string            `json:"timezone,omitempty"`
}

// Page holds the requested pagination window
type Page struct {
	Number int `json:"number" validate:"omitempty,min=1"`
	Size   int `json:"size" validate:"omitempty,min=1"`
}

// ListResponse is returned by the list endpoint
type ListResponse struct {
	Count   int64    `json:"count"`
	Records []Record `json:"records"`
}

// RequestedFields returns the field subset asked for modelName, or nil when
// the client did not restrict the fields of that model.
func (p *ListParams) RequestedFields(modelName string) []string {
	if p == nil || p.Fields == nil {
		return nil
	}
	raw, ok := p.Fields[modelName]
	if !ok {
		return nil
	}

	fields := []string{}
	for _, name := range strings.Split(raw, ",") {
		if name = strings.TrimSpace(name); name != "" {
			fields = append(fields, name)
		}
	}
	return fields
}

// HasSearch reports whether a free-text search term was sent
func (p *ListParams) HasSearch() bool {
	return p != nil && strings.TrimSpace(p.Search) != ""
}
