package query

import (
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm/clause"
	gormschema "gorm.io/gorm/schema"

	"liana-gateway/internal/model"
	"liana-gateway/internal/schema"
)

func testRegistry(t *testing.T, opts map[string][]schema.Option) *schema.Registry {
	t.Helper()
	cache := &sync.Map{}
	var schemas []*schema.Schema
	for _, value := range []interface{}{&model.Article{}, &model.Author{}, &model.Comment{}, &model.Category{}, &model.Order{}, &model.OrderLine{}} {
		parsed, err := gormschema.Parse(value, cache, gormschema.NamingStrategy{})
		require.NoError(t, err)
		columns, associations := schema.DescribeModel(parsed)
		s, issues := schema.Build(parsed.Name, columns, associations, opts[parsed.Name]...)
		require.Empty(t, issues)
		schemas = append(schemas, s)
	}
	registry, err := schema.NewRegistry(schemas...)
	require.NoError(t, err)
	return registry
}

func mustSchema(t *testing.T, registry *schema.Registry, name string) *schema.Schema {
	t.Helper()
	s, err := registry.Get(name)
	require.NoError(t, err)
	return s
}

func current(name string) clause.Column {
	return clause.Column{Table: clause.CurrentTable, Name: name}
}

func TestResolveColumn(t *testing.T) {
	registry := testRegistry(t, nil)
	article := mustSchema(t, registry, "Article")

	column, field, err := ResolveColumn(registry, article, "title", FilterPathSeparator)
	require.NoError(t, err)
	require.Equal(t, current("title"), column)
	require.Equal(t, "title", field.Field)

	column, field, err = ResolveColumn(registry, article, "author:name", FilterPathSeparator)
	require.NoError(t, err)
	require.Equal(t, clause.Column{Table: "Author", Name: "name"}, column)
	require.Equal(t, schema.TypeString, field.Type.Tag)

	_, _, err = ResolveColumn(registry, article, "comments:body", FilterPathSeparator)
	require.ErrorIs(t, err, ErrInvalidFilter)

	_, _, err = ResolveColumn(registry, article, "author_id", FilterPathSeparator)
	require.ErrorIs(t, err, ErrInvalidFilter)

	_, _, err = ResolveColumn(registry, article, "author:missing", FilterPathSeparator)
	require.ErrorIs(t, err, ErrInvalidFilter)

	require.Equal(t, "author", AssociationOf("author:name", FilterPathSeparator))
	require.Equal(t, "", AssociationOf("title", FilterPathSeparator))
}

func TestOperatorValueParser(t *testing.T) {
	registry := testRegistry(t, nil)
	article := mustSchema(t, registry, "Article")
	parser := NewOperatorValueParser(registry)

	tests := []struct {
		key  string
		raw  string
		want clause.Expression
	}{
		{"score", "42", clause.Eq{Column: current("score"), Value: int64(42)}},
		{"score", "!4.5", clause.Neq{Column: current("score"), Value: 4.5}},
		{"score", ">10", clause.Gt{Column: current("score"), Value: int64(10)}},
		{"score", "<10", clause.Lt{Column: current("score"), Value: int64(10)}},
		{"featured", "true", clause.Eq{Column: current("featured"), Value: true}},
		{"title", "*hello*", clause.Like{Column: current("title"), Value: "%hello%"}},
		{"title", "hello*", clause.Like{Column: current("title"), Value: "hello%"}},
		{"title", "*hello", clause.Like{Column: current("title"), Value: "%hello"}},
		{"title", "null", clause.Eq{Column: current("title"), Value: nil}},
		{"score", "$present", clause.Neq{Column: current("score"), Value: nil}},
		{"score", "$blank", clause.Eq{Column: current("score"), Value: nil}},
		{"status", "draft", clause.Eq{Column: current("status"), Value: "draft"}},
	}

	for _, tt := range tests {
		got, err := parser.Parse(article, current(tt.key), tt.key, tt.raw, time.UTC)
		require.NoError(t, err, "%s=%s", tt.key, tt.raw)
		require.Equal(t, tt.want, got, "%s=%s", tt.key, tt.raw)
	}

	blank, err := parser.Parse(article, current("title"), "title", "$blank", time.UTC)
	require.NoError(t, err)
	require.IsType(t, clause.Expr{}, blank)

	present, err := parser.Parse(article, current("title"), "title", "$present", time.UTC)
	require.NoError(t, err)
	require.Len(t, present.(clause.AndConditions).Exprs, 2)
}

func TestOperatorValueParserRejectsMalformedValues(t *testing.T) {
	registry := testRegistry(t, nil)
	article := mustSchema(t, registry, "Article")
	parser := NewOperatorValueParser(registry)

	for _, tt := range []struct{ key, raw string }{
		{"score", "abc"},
		{"featured", "maybe"},
		{"score", "*1*"},
		{"title", "$today"},
		{"created_at", "$previousDays"},
		{"created_at", "$tomorrow"},
		{"unknown", "1"},
	} {
		_, err := parser.Parse(article, current(tt.key), tt.key, tt.raw, time.UTC)
		require.ErrorIs(t, err, ErrInvalidFilter, "%s=%s", tt.key, tt.raw)
	}
}

func TestOperatorValueParserDateKeywords(t *testing.T) {
	registry := testRegistry(t, nil)
	article := mustSchema(t, registry, "Article")
	cet := time.FixedZone("CET", 3600)

	parser := &operatorValueParser{
		registry: registry,
		now:      func() time.Time { return time.Date(2024, 3, 15, 22, 30, 0, 0, time.UTC) },
	}
	column := current("created_at")

	// 22:30 UTC is already the 15th at 23:30 CET
	today := time.Date(2024, 3, 15, 0, 0, 0, 0, cet)

	got, err := parser.Parse(article, column, "created_at", "$today", cet)
	require.NoError(t, err)
	require.Equal(t, between(column, today, today.AddDate(0, 0, 1)), got)

	got, err = parser.Parse(article, column, "created_at", "$yesterday", cet)
	require.NoError(t, err)
	require.Equal(t, between(column, today.AddDate(0, 0, -1), today), got)

	got, err = parser.Parse(article, column, "created_at", "$previous7Days", cet)
	require.NoError(t, err)
	require.Equal(t, between(column, today.AddDate(0, 0, -7), today), got)

	got, err = parser.Parse(article, column, "created_at", "$past", cet)
	require.NoError(t, err)
	require.IsType(t, clause.Lt{}, got)

	got, err = parser.Parse(article, column, "created_at", "$future", cet)
	require.NoError(t, err)
	require.IsType(t, clause.Gt{}, got)
}

func TestSearchBuilder(t *testing.T) {
	registry := testRegistry(t, nil)
	article := mustSchema(t, registry, "Article")
	builder := NewSearchBuilder(registry)

	got := builder.Build(article, SearchScope{Fields: []string{"title"}, Restricted: true}, &model.ListParams{Search: "Hello"}, []string{"id", "title"})
	require.Equal(t, clause.Expr{SQL: "LOWER(?) LIKE ?", Vars: []interface{}{current("title"), "%hello%"}}, got)

	got = builder.Build(article, SearchScope{}, &model.ListParams{Search: "42"}, nil)
	or, ok := got.(clause.OrConditions)
	require.True(t, ok)
	require.Contains(t, or.Exprs, clause.Eq{Column: current("id"), Value: int64(42)})
	require.Contains(t, or.Exprs, clause.Eq{Column: current("score"), Value: int64(42)})
	require.Contains(t, or.Exprs, clause.Expr{SQL: "LOWER(?) LIKE ?", Vars: []interface{}{current("slug"), "%42%"}})

	got = builder.Build(article, SearchScope{}, &model.ListParams{Search: "Published"}, nil)
	require.Contains(t, got.(clause.OrConditions).Exprs, clause.Eq{Column: current("status"), Value: "published"})

	got = builder.Build(article, SearchScope{}, &model.ListParams{Search: "ada", SearchExtended: true}, nil)
	require.Contains(t, got.(clause.OrConditions).Exprs,
		clause.Expr{SQL: "LOWER(?) LIKE ?", Vars: []interface{}{clause.Column{Table: "Author", Name: "name"}, "%ada%"}})

	got = builder.Build(article, SearchScope{Restricted: true, Associations: map[string][]string{"author": {"email"}}}, &model.ListParams{Search: "ada"}, nil)
	require.Equal(t, clause.Expr{SQL: "LOWER(?) LIKE ?", Vars: []interface{}{clause.Column{Table: "Author", Name: "email"}, "%ada%"}}, got)

	got = builder.Build(article, SearchScope{Restricted: true, Fields: []string{"score"}}, &model.ListParams{Search: "abc"}, nil)
	require.Equal(t, clause.Expr{SQL: "0 = 1"}, got)
}

func TestQueryBuilder(t *testing.T) {
	registry := testRegistry(t, nil)
	article := mustSchema(t, registry, "Article")
	orderLine := mustSchema(t, registry, "OrderLine")
	builder := NewQueryBuilder(registry, 0, 50)

	require.Equal(t, []string{"Author"}, builder.Includes(article, nil))
	require.Equal(t, []string{}, builder.Includes(article, []string{"id", "title"}))
	require.Equal(t, []string{"Author"}, builder.Includes(article, []string{"id", "author"}))

	order, err := builder.Order(article, "")
	require.NoError(t, err)
	require.Equal(t, []clause.OrderByColumn{{Column: current("id"), Desc: true}}, order)

	order, err = builder.Order(orderLine, "")
	require.NoError(t, err)
	require.Len(t, order, 2)

	order, err = builder.Order(article, "-title")
	require.NoError(t, err)
	require.Equal(t, []clause.OrderByColumn{{Column: current("title"), Desc: true}}, order)

	order, err = builder.Order(article, "author.name")
	require.NoError(t, err)
	require.Equal(t, []clause.OrderByColumn{{Column: clause.Column{Table: "Author", Name: "name"}}}, order)

	_, err = builder.Order(article, "nope")
	require.ErrorIs(t, err, ErrInvalidSort)

	require.Equal(t, DefaultPageSize, builder.Limit(model.Page{}))
	require.Equal(t, 50, builder.Limit(model.Page{Size: 500}))
	require.Equal(t, 0, builder.Skip(model.Page{}))
	require.Equal(t, 20, builder.Skip(model.Page{Number: 3, Size: 10}))
	require.Equal(t, math.MaxInt, builder.Skip(model.Page{Number: math.MaxInt, Size: 10}))
	require.Equal(t, math.MaxInt, builder.Skip(model.Page{Number: math.MaxInt/10 + 2, Size: 10}))
	require.Equal(t, (math.MaxInt/10)*10, builder.Skip(model.Page{Number: math.MaxInt/10 + 1, Size: 10}))
}

func TestCompositeKeysManager(t *testing.T) {
	registry := testRegistry(t, nil)
	orderLine := mustSchema(t, registry, "OrderLine")

	keys := NewCompositeKeysManager()
	require.Equal(t, "12|3", keys.Value(orderLine, model.Record{"order_id": uint(12), "line_number": 3, "sku": "A-1"}))
	require.Equal(t, "12|null", keys.Value(orderLine, model.Record{"order_id": uint(12)}))
}
