package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm/clause"
	gormschema "gorm.io/gorm/schema"

	"liana-gateway/internal/model"
	"liana-gateway/internal/query"
	"liana-gateway/internal/repository"
	"liana-gateway/internal/schema"
)

// fakeCollection records the options it receives and returns canned rows
type fakeCollection struct {
	name    string
	scope   string
	records []model.Record
	count   int64
	err     error

	mu        sync.Mutex
	countOpts []*model.FindOptions
	listOpts  []*model.FindOptions
	scopes    []string
}

func (c *fakeCollection) Name() string               { return c.name }
func (c *fakeCollection) Schema() *gormschema.Schema { return nil }

func (c *fakeCollection) Unscoped() repository.Collection {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.scopes = append(c.scopes, "")
	return c
}

func (c *fakeCollection) Scope(name string) (repository.Collection, error) {
	if name != c.scope {
		return nil, fmt.Errorf("%w: %s", repository.ErrScopeNotFound, name)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.scopes = append(c.scopes, name)
	return c, nil
}

func (c *fakeCollection) Count(_ context.Context, opts *model.FindOptions) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.countOpts = append(c.countOpts, opts)
	return c.count, c.err
}

func (c *fakeCollection) FindAll(_ context.Context, opts *model.FindOptions) ([]model.Record, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listOpts = append(c.listOpts, opts)
	if c.err != nil {
		return nil, c.err
	}
	return c.records, nil
}

type logEntry struct {
	level string
	msg   string
}

type recordingLogger struct {
	mu      sync.Mutex
	entries []logEntry
}

func (l *recordingLogger) Warn(_ context.Context, msg string, data ...interface{}) {
	l.add("warn", msg, data)
}

func (l *recordingLogger) Error(_ context.Context, msg string, data ...interface{}) {
	l.add("error", msg, data)
}

func (l *recordingLogger) add(level, msg string, data []interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, logEntry{level: level, msg: fmt.Sprintf(msg, data...)})
}

type fixture struct {
	getter      ResourcesGetter
	collections map[string]*fakeCollection
	logger      *recordingLogger
	metrics     *MetricsCollector
}

func newFixture(t *testing.T, opts map[string][]schema.Option, fakes ...*fakeCollection) *fixture {
	t.Helper()
	cache := &sync.Map{}
	var built []*schema.Schema
	for _, value := range []interface{}{&model.Article{}, &model.Author{}, &model.Comment{}, &model.Category{}, &model.Order{}, &model.OrderLine{}} {
		parsed, err := gormschema.Parse(value, cache, gormschema.NamingStrategy{})
		require.NoError(t, err)
		columns, associations := schema.DescribeModel(parsed)
		s, issues := schema.Build(parsed.Name, columns, associations, opts[parsed.Name]...)
		require.Empty(t, issues)
		built = append(built, s)
	}
	schemas, err := schema.NewRegistry(built...)
	require.NoError(t, err)

	f := &fixture{
		collections: map[string]*fakeCollection{},
		logger:      &recordingLogger{},
		metrics:     NewMetricsCollector(24 * time.Hour),
	}
	var collections []repository.Collection
	for _, fake := range fakes {
		f.collections[fake.name] = fake
		collections = append(collections, fake)
	}
	registry, err := repository.NewRegistry(collections...)
	require.NoError(t, err)

	f.getter = NewResourcesGetter(schemas, registry, f.logger, WithMetricsCollector(f.metrics))
	return f
}

func current(name string) clause.Column {
	return clause.Column{Table: clause.CurrentTable, Name: name}
}

func titleLike(term string) clause.Expression {
	return clause.Expr{SQL: "LOWER(?) LIKE ?", Vars: []interface{}{current("title"), "%" + term + "%"}}
}

func TestGetSearchWithFieldSubset(t *testing.T) {
	articles := &fakeCollection{
		name:    "Article",
		count:   1,
		records: []model.Record{{"id": uint(1), "title": "Hello world"}},
	}
	f := newFixture(t, map[string][]schema.Option{
		"Article": {schema.WithSearchFields("title")},
	}, articles)

	count, records, err := f.getter.Get(context.Background(), "Article", &model.ListParams{
		Search: "hello",
		Fields: map[string]string{"Article": "title"},
	})
	require.NoError(t, err)
	require.Equal(t, int64(1), count)
	require.Equal(t, []model.Record{{"id": uint(1), "title": "Hello world"}}, records)

	require.Len(t, articles.countOpts, 1)
	require.Len(t, articles.listOpts, 1)
	countOpts, listOpts := articles.countOpts[0], articles.listOpts[0]

	require.Equal(t, clause.AndConditions{Exprs: []clause.Expression{titleLike("hello")}}, countOpts.Where)
	require.Equal(t, countOpts.Where, listOpts.Where)
	require.Equal(t, []string{}, countOpts.Include)
	require.Equal(t, countOpts.Include, listOpts.Include)

	require.Equal(t, []string{"id", "title"}, listOpts.Select)
	require.Empty(t, countOpts.Select)
	require.Equal(t, []clause.OrderByColumn{{Column: current("id"), Desc: true}}, listOpts.Order)
	require.Equal(t, query.DefaultPageSize, listOpts.Limit)
	require.Zero(t, listOpts.Offset)
	require.Zero(t, countOpts.Limit)
	require.Nil(t, countOpts.Order)

	require.Equal(t, []string{""}, articles.scopes)
	require.Empty(t, f.logger.entries)
}

func TestGetFilterCombination(t *testing.T) {
	articles := &fakeCollection{name: "Article"}
	f := newFixture(t, nil, articles)
	ctx := context.Background()

	_, _, err := f.getter.Get(ctx, "Article", &model.ListParams{
		Filters:    map[string]string{"score": "18,21"},
		FilterType: model.FilterTypeOr,
	})
	require.NoError(t, err)
	require.Equal(t, clause.AndConditions{Exprs: []clause.Expression{
		clause.OrConditions{Exprs: []clause.Expression{
			clause.Eq{Column: current("score"), Value: int64(18)},
			clause.Eq{Column: current("score"), Value: int64(21)},
		}},
	}}, articles.countOpts[0].Where)

	_, _, err = f.getter.Get(ctx, "Article", &model.ListParams{
		Filters:    map[string]string{"score": ">10", "featured": "true"},
		FilterType: model.FilterTypeAnd,
	})
	require.NoError(t, err)
	require.Equal(t, clause.AndConditions{Exprs: []clause.Expression{
		clause.AndConditions{Exprs: []clause.Expression{
			clause.Eq{Column: current("featured"), Value: true},
			clause.Gt{Column: current("score"), Value: int64(10)},
		}},
	}}, articles.countOpts[1].Where)

	_, _, err = f.getter.Get(ctx, "Article", &model.ListParams{
		Filters: map[string]string{"score": "<5", "status": "draft"},
	})
	require.NoError(t, err)
	require.Equal(t, clause.AndConditions{Exprs: []clause.Expression{
		clause.Where{Exprs: []clause.Expression{
			clause.Lt{Column: current("score"), Value: int64(5)},
			clause.Eq{Column: current("status"), Value: "draft"},
		}},
	}}, articles.countOpts[2].Where)

	_, _, err = f.getter.Get(ctx, "Article", &model.ListParams{
		Filters:    map[string]string{"title": "*go*"},
		FilterType: model.FilterTypeOr,
	})
	require.NoError(t, err)
	require.Equal(t, clause.AndConditions{Exprs: []clause.Expression{
		clause.Like{Column: current("title"), Value: "%go%"},
	}}, articles.countOpts[3].Where)
}

func TestGetAssociationFilterAddsInclude(t *testing.T) {
	articles := &fakeCollection{name: "Article"}
	f := newFixture(t, nil, articles)

	_, _, err := f.getter.Get(context.Background(), "Article", &model.ListParams{
		Filters: map[string]string{"author:name": "Ada"},
		Fields:  map[string]string{"Article": "title"},
		Sort:    "-title",
	})
	require.NoError(t, err)

	countOpts, listOpts := articles.countOpts[0], articles.listOpts[0]
	require.Equal(t, []string{"Author"}, countOpts.Include)
	require.Equal(t, []string{"Author"}, listOpts.Include)
	require.Equal(t, clause.AndConditions{Exprs: []clause.Expression{
		clause.Eq{Column: clause.Column{Table: "Author", Name: "name"}, Value: "Ada"},
	}}, countOpts.Where)
	require.Equal(t, []string{"id", "title"}, listOpts.Select)
	require.Equal(t, []clause.OrderByColumn{{Column: current("title"), Desc: true}}, listOpts.Order)
}

func TestGetAssociationSortAddsInclude(t *testing.T) {
	articles := &fakeCollection{name: "Article"}
	f := newFixture(t, nil, articles)

	_, _, err := f.getter.Get(context.Background(), "Article", &model.ListParams{
		Fields: map[string]string{"Article": "title"},
		Sort:   "-author.name",
		Page:   model.Page{Number: 3, Size: 10},
	})
	require.NoError(t, err)

	listOpts := articles.listOpts[0]
	require.Equal(t, []string{"Author"}, listOpts.Include)
	require.Equal(t, []clause.OrderByColumn{{Column: clause.Column{Table: "Author", Name: "name"}, Desc: true}}, listOpts.Order)
	require.Equal(t, 20, listOpts.Offset)
	require.Equal(t, 10, listOpts.Limit)
}

func TestGetSegments(t *testing.T) {
	published := clause.Eq{Column: current("status"), Value: "published"}
	var resolvedWith *model.ListParams

	articles := &fakeCollection{name: "Article", scope: "Drafts"}
	f := newFixture(t, map[string][]schema.Option{
		"Article": {schema.WithSegments(
			schema.Segment{Name: "Published", Where: schema.StaticCondition{Expr: published}},
			schema.Segment{Name: "Recent", Where: schema.DynamicCondition{
				Resolve: func(_ context.Context, params *model.ListParams) (clause.Expression, error) {
					resolvedWith = params
					return clause.Gte{Column: current("created_at"), Value: "2024-01-01"}, nil
				},
			}},
			schema.Segment{Name: "Drafts", Scope: "Drafts"},
			schema.Segment{Name: "Broken", Where: schema.DynamicCondition{
				Resolve: func(context.Context, *model.ListParams) (clause.Expression, error) {
					return nil, errors.New("segment query failed")
				},
			}},
			schema.Segment{Name: "Archived", Scope: "Archived"},
		)},
	}, articles)
	ctx := context.Background()

	_, _, err := f.getter.Get(ctx, "Article", &model.ListParams{
		Segment: "Published",
		Filters: map[string]string{"featured": "true"},
	})
	require.NoError(t, err)
	require.Equal(t, clause.AndConditions{Exprs: []clause.Expression{
		clause.Eq{Column: current("featured"), Value: true},
		published,
	}}, articles.countOpts[0].Where)
	require.Equal(t, articles.countOpts[0].Where, articles.listOpts[0].Where)

	params := &model.ListParams{Segment: "Recent"}
	_, _, err = f.getter.Get(ctx, "Article", params)
	require.NoError(t, err)
	require.Same(t, params, resolvedWith)
	require.Equal(t, clause.AndConditions{Exprs: []clause.Expression{
		clause.Gte{Column: current("created_at"), Value: "2024-01-01"},
	}}, articles.listOpts[1].Where)

	_, _, err = f.getter.Get(ctx, "Article", &model.ListParams{Segment: "Drafts"})
	require.NoError(t, err)
	require.Equal(t, []string{"", "", "Drafts"}, articles.scopes)
	require.Empty(t, articles.countOpts[2].Where.Exprs)

	_, _, err = f.getter.Get(ctx, "Article", &model.ListParams{Segment: "Broken"})
	require.EqualError(t, err, "segment query failed")

	_, _, err = f.getter.Get(ctx, "Article", &model.ListParams{Segment: "Archived"})
	require.ErrorIs(t, err, repository.ErrScopeNotFound)

	// unknown segments are ignored
	_, _, err = f.getter.Get(ctx, "Article", &model.ListParams{Segment: "Nope"})
	require.NoError(t, err)
	require.Len(t, articles.countOpts, 4)
}

func TestGetCompositeKeys(t *testing.T) {
	lines := &fakeCollection{
		name: "OrderLine",
		records: []model.Record{
			{"order_id": uint(12), "line_number": 1, "sku": "A-1"},
			{"order_id": uint(12), "line_number": 2, "sku": "B-2"},
		},
	}
	articles := &fakeCollection{
		name:    "Article",
		records: []model.Record{{"id": uint(1)}},
	}
	f := newFixture(t, nil, lines, articles)
	ctx := context.Background()

	_, records, err := f.getter.Get(ctx, "OrderLine", &model.ListParams{Fields: map[string]string{"OrderLine": "sku"}})
	require.NoError(t, err)
	require.Equal(t, "12|1", records[0][model.CompositePrimaryKeyField])
	require.Equal(t, "12|2", records[1][model.CompositePrimaryKeyField])
	require.Equal(t, []string{"order_id", "line_number", "sku"}, lines.listOpts[0].Select)

	_, records, err = f.getter.Get(ctx, "Article", nil)
	require.NoError(t, err)
	require.NotContains(t, records[0], model.CompositePrimaryKeyField)
	require.Nil(t, articles.listOpts[0].Select)
	require.Equal(t, []string{"Author"}, articles.listOpts[0].Include)
}

func TestGetSearchHooks(t *testing.T) {
	extra := clause.Eq{Column: current("name"), Value: "ADA"}
	var calls int

	authors := &fakeCollection{name: "Author"}
	f := newFixture(t, map[string][]schema.Option{
		"Author": {
			schema.WithSearchFields("name", "nickname", "articles.title"),
			schema.WithSearchHook("name", func(_ context.Context, opts *model.FindOptions, term string) error {
				calls++
				if calls == 1 {
					return errors.New("hook exploded")
				}
				opts.ExtendSearch(clause.Eq{Column: current("name"), Value: "ADA"})
				return nil
			}),
		},
	}, authors)

	_, _, err := f.getter.Get(context.Background(), "Author", &model.ListParams{Search: " ada "})
	require.NoError(t, err)
	require.Equal(t, 2, calls)

	like := clause.Expr{SQL: "LOWER(?) LIKE ?", Vars: []interface{}{current("name"), "%ada%"}}
	require.Equal(t, clause.AndConditions{Exprs: []clause.Expression{like}}, authors.countOpts[0].Where)
	require.Equal(t, clause.AndConditions{Exprs: []clause.Expression{
		clause.OrConditions{Exprs: []clause.Expression{like, extra}},
	}}, authors.listOpts[0].Where)

	require.Len(t, f.logger.entries, 2)
	require.Equal(t, "warn", f.logger.entries[0].level)
	require.Equal(t, "search fields of Author match no field: nickname, articles.title", f.logger.entries[0].msg)
	require.Equal(t, "error", f.logger.entries[1].level)
	require.Contains(t, f.logger.entries[1].msg, "hook exploded")
}

func TestGetSearchThroughAssociation(t *testing.T) {
	articles := &fakeCollection{name: "Article"}
	f := newFixture(t, map[string][]schema.Option{
		"Article": {schema.WithSearchFields("title", "author.name")},
	}, articles)

	_, _, err := f.getter.Get(context.Background(), "Article", &model.ListParams{
		Search: "ada",
		Fields: map[string]string{"Article": "title"},
	})
	require.NoError(t, err)

	countOpts := articles.countOpts[0]
	require.Equal(t, []string{"Author"}, countOpts.Include)
	require.Equal(t, clause.OrConditions{Exprs: []clause.Expression{
		titleLike("ada"),
		clause.Expr{SQL: "LOWER(?) LIKE ?", Vars: []interface{}{clause.Column{Table: "Author", Name: "name"}, "%ada%"}},
	}}, countOpts.Where.Exprs[0])
}

func TestGetErrors(t *testing.T) {
	failure := errors.New("connection refused")
	articles := &fakeCollection{name: "Article", err: failure}
	f := newFixture(t, nil, articles)
	ctx := context.Background()

	_, _, err := f.getter.Get(ctx, "Article", nil)
	require.ErrorIs(t, err, failure)

	_, _, err = f.getter.Get(ctx, "Missing", nil)
	require.ErrorIs(t, err, schema.ErrUnknownModel)

	_, _, err = f.getter.Get(ctx, "Author", nil)
	require.ErrorIs(t, err, repository.ErrCollectionNotFound)

	articles.err = nil
	_, _, err = f.getter.Get(ctx, "Article", &model.ListParams{Filters: map[string]string{"score": "abc"}})
	require.ErrorIs(t, err, query.ErrInvalidFilter)

	_, _, err = f.getter.Get(ctx, "Article", &model.ListParams{Sort: "nope"})
	require.ErrorIs(t, err, query.ErrInvalidSort)

	_, _, err = f.getter.Get(ctx, "Article", &model.ListParams{Timezone: "Not/AZone"})
	require.ErrorIs(t, err, query.ErrInvalidTimezone)

	metrics, err := f.metrics.GetCollectionMetrics("Article")
	require.NoError(t, err)
	require.Equal(t, int64(4), metrics.TotalLists)
	require.Equal(t, int64(4), metrics.FailedLists)
	require.Equal(t, "invalid timezone: Not/AZone", metrics.LastError)
}
