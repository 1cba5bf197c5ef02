package collections

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"liana-gateway/internal/model"
	"liana-gateway/internal/schema"
	"liana-gateway/internal/security"
	"liana-gateway/internal/service"
)

type capture struct {
	mu         sync.Mutex
	statements []string
}

func (c *capture) all() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	statements := append([]string(nil), c.statements...)
	sort.Strings(statements)
	return statements
}

func newDryRunDB(t *testing.T) (*gorm.DB, *capture) {
	t.Helper()
	db, err := gorm.Open(mysql.New(mysql.Config{
		DSN:                       "liana:secret@tcp(127.0.0.1:3306)/liana?parseTime=true",
		SkipInitializeWithVersion: true,
	}), &gorm.Config{DryRun: true, DisableAutomaticPing: true})
	require.NoError(t, err)

	c := &capture{}
	err = db.Callback().Query().After("gorm:query").Register("test:capture", func(tx *gorm.DB) {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.statements = append(c.statements, tx.Dialector.Explain(tx.Statement.SQL.String(), tx.Statement.Vars...))
	})
	require.NoError(t, err)
	return db, c
}

type recordingLogger struct {
	mu       sync.Mutex
	messages []string
}

func (l *recordingLogger) Warn(_ context.Context, msg string, data ...interface{}) {
	l.add(msg, data)
}

func (l *recordingLogger) Error(_ context.Context, msg string, data ...interface{}) {
	l.add(msg, data)
}

func (l *recordingLogger) add(msg string, data []interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, fmt.Sprintf(msg, data...))
}

func TestBootstrapCatalog(t *testing.T) {
	db, _ := newDryRunDB(t)
	logger := &recordingLogger{}

	schemas, collections, err := Bootstrap(context.Background(), db, Catalog(), nil, logger)
	require.NoError(t, err)
	require.Empty(t, logger.messages)
	require.Equal(t, []string{"Article", "Author", "Category", "Comment", "Order", "OrderLine"}, schemas.Names())

	for _, name := range schemas.Names() {
		collection, err := collections.Get(name)
		require.NoError(t, err)
		require.Equal(t, name, collection.Name())
	}

	article, err := schemas.Get("Article")
	require.NoError(t, err)
	var names []string
	for _, segment := range article.Segments {
		names = append(names, segment.Name)
	}
	require.Equal(t, []string{"Published", "Written this week", "Drafts", "Most commented"}, names)

	mostCommented, ok := article.Segment("Most commented")
	require.True(t, ok)
	expr, err := mostCommented.ResolveCondition(context.Background(), &model.ListParams{})
	require.NoError(t, err)
	require.Equal(t, clause.Expr{
		SQL:  "? IN (SELECT article_id FROM comments GROUP BY article_id HAVING COUNT(*) > 10)",
		Vars: []interface{}{clause.Column{Table: clause.CurrentTable, Name: "id"}},
	}, expr)

	author, err := schemas.Get("Author")
	require.NoError(t, err)
	displayName, ok := author.FieldByName("display_name")
	require.True(t, ok)
	require.True(t, displayName.IsVirtual)
	require.NotNil(t, displayName.Search)
}

func TestBootstrapRejectsInvalidSQLSegments(t *testing.T) {
	db, _ := newDryRunDB(t)
	logger := &recordingLogger{}

	defs := []Definition{
		{
			Model: &model.Comment{},
			SQLSegments: []SQLSegment{
				{Name: "Purge", Query: "DELETE FROM comments"},
				{Name: "Bound", Query: "SELECT id FROM comments WHERE body = ?"},
				{Name: "Short", Query: "SELECT id FROM comments WHERE CHAR_LENGTH(body) < 10"},
			},
		},
		{
			Model:       &model.OrderLine{},
			SQLSegments: []SQLSegment{{Name: "Big", Query: "SELECT order_id FROM order_lines"}},
		},
	}
	schemas, _, err := Bootstrap(context.Background(), db, defs, security.NewSQLValidator(0, 0), logger)
	require.NoError(t, err)
	require.Len(t, logger.messages, 3)
	require.Contains(t, logger.messages[0], "segment Purge")
	require.Contains(t, logger.messages[1], "segment Bound")
	require.Contains(t, logger.messages[2], "single primary key")

	comment, err := schemas.Get("Comment")
	require.NoError(t, err)
	require.Len(t, comment.Segments, 1)
	require.Equal(t, "Short", comment.Segments[0].Name)

	orderLine, err := schemas.Get("OrderLine")
	require.NoError(t, err)
	require.Empty(t, orderLine.Segments)
}

func TestCatalogListQueries(t *testing.T) {
	db, statements := newDryRunDB(t)
	logger := &recordingLogger{}
	schemas, collections, err := Bootstrap(context.Background(), db, Catalog(), nil, logger)
	require.NoError(t, err)
	getter := service.NewResourcesGetter(schemas, collections, logger)
	ctx := context.Background()

	_, _, err = getter.Get(ctx, "Article", &model.ListParams{
		Search:  "Hello",
		Fields:  map[string]string{"Article": "title"},
		Segment: "Drafts",
	})
	require.NoError(t, err)

	got := statements.all()
	require.Len(t, got, 2)
	count, list := got[0], got[1]
	if strings.Contains(list, "count(*)") {
		count, list = list, count
	}
	require.Contains(t, count, "SELECT count(*) FROM `articles` LEFT JOIN `authors` `Author`")
	require.Contains(t, list, "SELECT `articles`.`id`,`articles`.`title`,`Author`.`id` AS `Author__id`")
	for _, sql := range got {
		require.Contains(t, sql, "LOWER(`articles`.`title`) LIKE '%hello%'")
		require.Contains(t, sql, "LOWER(`Author`.`name`) LIKE '%hello%'")
		require.Contains(t, sql, "`articles`.`status` = 'draft'")
		require.Contains(t, sql, "`articles`.`deleted_at` IS NULL")
	}
	require.Contains(t, list, "ORDER BY `articles`.`id` DESC LIMIT 15")

	_, _, err = getter.Get(ctx, "Author", &model.ListParams{Search: "Ada"})
	require.NoError(t, err)

	var authorQueries []string
	for _, sql := range statements.all() {
		if strings.Contains(sql, "FROM `authors`") {
			authorQueries = append(authorQueries, sql)
		}
	}
	require.Len(t, authorQueries, 2)
	for _, sql := range authorQueries {
		require.Contains(t, sql, "LOWER(`authors`.`name`) LIKE '%ada%'")
		require.Contains(t, sql, "LOWER(CONCAT(`authors`.`name`, ' <', `authors`.`email`, '>')) LIKE '%ada%'")
	}
}

func TestSearchIsCombinedWithFiltersAndSegment(t *testing.T) {
	db, statements := newDryRunDB(t)
	logger := &recordingLogger{}
	defs := []Definition{{
		Model: &model.Order{},
		Options: []schema.Option{
			schema.WithSearchFields("customer"),
			schema.WithSegments(schema.Segment{Name: "External", Where: schema.StaticCondition{
				Expr: clause.Neq{Column: column("customer"), Value: "internal"},
			}}),
		},
	}}
	schemas, collections, err := Bootstrap(context.Background(), db, defs, nil, logger)
	require.NoError(t, err)
	getter := service.NewResourcesGetter(schemas, collections, logger)
	ctx := context.Background()

	_, _, err = getter.Get(ctx, "Order", &model.ListParams{
		Search:  "acme",
		Filters: map[string]string{"id": "7"},
	})
	require.NoError(t, err)
	_, _, err = getter.Get(ctx, "Order", &model.ListParams{
		Search:  "acme",
		Filters: map[string]string{"id": "7"},
		Segment: "External",
	})
	require.NoError(t, err)

	got := statements.all()
	require.Len(t, got, 4)
	var segmented int
	for _, sql := range got {
		require.Contains(t, sql, "LOWER(`orders`.`customer`) LIKE '%acme%' AND ")
		require.Contains(t, sql, "`orders`.`id` = 7")
		require.NotContains(t, sql, " OR ")
		if strings.Contains(sql, "`orders`.`customer` <> 'internal'") {
			segmented++
		}
	}
	require.Equal(t, 2, segmented)
	require.Empty(t, logger.messages)
}
