package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	"gorm.io/gorm/clause"

	"liana-gateway/internal/model"
	"liana-gateway/internal/query"
	"liana-gateway/internal/repository"
	"liana-gateway/internal/schema"
)

// ResourcesGetter runs the count and list queries of the admin panel
type ResourcesGetter interface {
	// Get returns the number of records matching params, ignoring
	// pagination, and the requested page of records
	Get(ctx context.Context, modelName string, params *model.ListParams) (int64, []model.Record, error)
}

// GetterOption replaces a collaborator of the getter
type GetterOption func(*resourcesGetter)

// WithOperatorValueParser sets the filter value parser
func WithOperatorValueParser(parser query.OperatorValueParser) GetterOption {
	return func(g *resourcesGetter) { g.parser = parser }
}

// WithSearchBuilder sets the free-text search builder
func WithSearchBuilder(builder query.SearchBuilder) GetterOption {
	return func(g *resourcesGetter) { g.search = builder }
}

// WithQueryBuilder sets the include, order and pagination builder
func WithQueryBuilder(builder query.QueryBuilder) GetterOption {
	return func(g *resourcesGetter) { g.builder = builder }
}

// WithCompositeKeysManager sets the composite key computation
func WithCompositeKeysManager(keys query.CompositeKeysManager) GetterOption {
	return func(g *resourcesGetter) { g.keys = keys }
}

// WithDefaultLocation sets the timezone used when a request sends none
func WithDefaultLocation(loc *time.Location) GetterOption {
	return func(g *resourcesGetter) { g.location = loc }
}

// WithMetricsCollector records every execution in collector
func WithMetricsCollector(collector *MetricsCollector) GetterOption {
	return func(g *resourcesGetter) { g.metrics = collector }
}

type resourcesGetter struct {
	schemas     *schema.Registry
	collections *repository.Registry
	parser      query.OperatorValueParser
	search      query.SearchBuilder
	builder     query.QueryBuilder
	keys        query.CompositeKeysManager
	logger      schema.Logger
	location    *time.Location
	metrics     *MetricsCollector
}

// NewResourcesGetter creates a getter reading schemas and collections from
// the given registries. Collaborators default to the query package ones.
func NewResourcesGetter(schemas *schema.Registry, collections *repository.Registry, logger schema.Logger, opts ...GetterOption) ResourcesGetter {
	g := &resourcesGetter{
		schemas:     schemas,
		collections: collections,
		parser:      query.NewOperatorValueParser(schemas),
		search:      query.NewSearchBuilder(schemas),
		builder:     query.NewQueryBuilder(schemas, query.DefaultPageSize, query.MaxPageSize),
		keys:        query.NewCompositeKeysManager(),
		logger:      logger,
		location:    time.UTC,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *resourcesGetter) Get(ctx context.Context, modelName string, params *model.ListParams) (int64, []model.Record, error) {
	startTime := time.Now()
	count, records, err := g.get(ctx, modelName, params)
	if g.metrics != nil {
		g.metrics.RecordExecution(modelName, len(records), time.Since(startTime), err)
	}
	return count, records, err
}

func (g *resourcesGetter) get(ctx context.Context, modelName string, params *model.ListParams) (int64, []model.Record, error) {
	s, err := g.schemas.Get(modelName)
	if err != nil {
		return 0, nil, err
	}
	collection, err := g.collections.Get(modelName)
	if err != nil {
		return 0, nil, err
	}
	if params == nil {
		params = &model.ListParams{}
	}

	requested := requestedFields(s, params)

	scope := g.searchScope(ctx, s)
	if requested != nil && params.HasSearch() {
		for _, association := range sortedKeys(scope.Associations) {
			requested = appendUnique(requested, association)
		}
	}

	var segment *schema.Segment
	var segmentWhere clause.Expression
	if params.Segment != "" {
		if found, ok := s.Segment(params.Segment); ok {
			segment = found
			if segmentWhere, err = segment.ResolveCondition(ctx, params); err != nil {
				return 0, nil, err
			}
		}
	}

	loc, err := g.resolveLocation(params.Timezone)
	if err != nil {
		return 0, nil, err
	}

	countOpts := &model.FindOptions{Include: g.builder.Includes(s, requested)}
	if params.HasSearch() {
		countOpts.SetSearch(g.search.Build(s, scope, params, requested))
	}
	filter, err := g.filterCondition(s, params, loc)
	if err != nil {
		return 0, nil, err
	}
	countOpts.AddCondition(filter)
	countOpts.AddCondition(segmentWhere)

	listOpts := countOpts.Clone()
	listOpts.Select = selectedColumns(s, requested)
	if listOpts.Order, err = g.builder.Order(s, params.Sort); err != nil {
		return 0, nil, err
	}
	listOpts.Offset = g.builder.Skip(params.Page)
	listOpts.Limit = g.builder.Limit(params.Page)

	if params.HasSearch() {
		g.runSearchHooks(ctx, s, strings.TrimSpace(params.Search), countOpts, listOpts)
	}

	target := collection.Unscoped()
	if segment != nil && segment.Scope != "" {
		if target, err = collection.Scope(segment.Scope); err != nil {
			return 0, nil, err
		}
	}

	var (
		count   int64
		records []model.Record
	)
	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		var err error
		count, err = target.Count(egCtx, countOpts)
		return err
	})
	eg.Go(func() error {
		var err error
		records, err = target.FindAll(egCtx, listOpts)
		return err
	})
	if err := eg.Wait(); err != nil {
		return 0, nil, err
	}

	if s.IsCompositePrimary {
		for _, record := range records {
			record[model.CompositePrimaryKeyField] = g.keys.Value(s, record)
		}
	}

	return count, records, nil
}

// requestedFields returns nil when the client asked for every field.
// Otherwise primary keys and the associations needed by filters and sort
// are added to the requested fields.
func requestedFields(s *schema.Schema, params *model.ListParams) []string {
	fields := params.RequestedFields(s.Name)
	if fields == nil {
		return nil
	}

	requested := make([]string, 0, len(s.PrimaryKeys)+len(fields))
	for _, pk := range s.PrimaryKeys {
		requested = appendUnique(requested, pk)
	}
	for _, f := range fields {
		requested = appendUnique(requested, f)
	}
	for key := range params.Filters {
		if association := query.AssociationOf(key, query.FilterPathSeparator); association != "" {
			requested = appendUnique(requested, association)
		}
	}
	if association := query.AssociationOf(strings.TrimPrefix(params.Sort, "-"), query.SortPathSeparator); association != "" {
		requested = appendUnique(requested, association)
	}
	return requested
}

// searchScope narrows search to the declared search fields and warns once
// about the ones that match nothing
func (g *resourcesGetter) searchScope(ctx context.Context, s *schema.Schema) query.SearchScope {
	if s.SearchFields == nil {
		return query.SearchScope{}
	}

	scope := query.SearchScope{
		Fields:       []string{},
		Associations: map[string][]string{},
		Restricted:   true,
	}
	var unmatched []string
	for _, name := range s.SearchFields {
		associationName, sub, nested := strings.Cut(name, query.SortPathSeparator)
		if !nested {
			f, ok := s.FieldByName(name)
			switch {
			case ok && f.IsColumn():
				scope.Fields = append(scope.Fields, name)
			case ok && f.Search != nil:
			default:
				unmatched = append(unmatched, name)
			}
			continue
		}

		association, ok := s.Association(associationName)
		if !ok || !association.Kind.IsSingle() {
			unmatched = append(unmatched, name)
			continue
		}
		target, ok := g.schemas.Lookup(association.Target)
		if !ok {
			unmatched = append(unmatched, name)
			continue
		}
		if f, ok := target.FieldByName(sub); !ok || !f.IsColumn() {
			unmatched = append(unmatched, name)
			continue
		}
		scope.Associations[associationName] = append(scope.Associations[associationName], sub)
	}

	if len(unmatched) > 0 && g.logger != nil {
		g.logger.Warn(ctx, "search fields of %s match no field: %s", s.Name, strings.Join(unmatched, ", "))
	}
	return scope
}

// filterCondition parses every comma separated value of every filter. The
// conditions are combined by the filter type, or left as a plain list.
func (g *resourcesGetter) filterCondition(s *schema.Schema, params *model.ListParams, loc *time.Location) (clause.Expression, error) {
	if len(params.Filters) == 0 {
		return nil, nil
	}

	var conditions []clause.Expression
	for _, key := range sortedKeys(params.Filters) {
		column, _, err := query.ResolveColumn(g.schemas, s, key, query.FilterPathSeparator)
		if err != nil {
			return nil, err
		}
		for _, raw := range strings.Split(params.Filters[key], ",") {
			condition, err := g.parser.Parse(s, column, key, strings.TrimSpace(raw), loc)
			if err != nil {
				return nil, err
			}
			conditions = append(conditions, condition)
		}
	}

	// a lone OR condition would be joined to its neighbours with OR
	if len(conditions) == 1 {
		return conditions[0], nil
	}
	switch params.FilterType {
	case model.FilterTypeAnd:
		return clause.AndConditions{Exprs: conditions}, nil
	case model.FilterTypeOr:
		return clause.OrConditions{Exprs: conditions}, nil
	default:
		return clause.Where{Exprs: conditions}, nil
	}
}

func (g *resourcesGetter) runSearchHooks(ctx context.Context, s *schema.Schema, term string, optsList ...*model.FindOptions) {
	for i := range s.Fields {
		f := &s.Fields[i]
		if f.Search == nil {
			continue
		}
		for _, opts := range optsList {
			if err := f.Search(ctx, opts, term); err != nil && g.logger != nil {
				g.logger.Error(ctx, "search hook of %s.%s failed: %v", s.Name, f.Field, err)
			}
		}
	}
}

func (g *resourcesGetter) resolveLocation(timezone string) (*time.Location, error) {
	if timezone == "" {
		return g.location, nil
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", query.ErrInvalidTimezone, timezone)
	}
	return loc, nil
}

// selectedColumns returns nil when every column is fetched
func selectedColumns(s *schema.Schema, requested []string) []string {
	if requested == nil {
		return nil
	}
	columns := []string{}
	for _, name := range requested {
		if f, ok := s.FieldByName(name); ok && f.IsColumn() {
			columns = append(columns, f.ColumnName)
		}
	}
	return columns
}

func appendUnique(values []string, value string) []string {
	for _, v := range values {
		if v == value {
			return values
		}
	}
	return append(values, value)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
