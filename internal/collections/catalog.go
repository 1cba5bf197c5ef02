package collections

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"liana-gateway/internal/model"
	"liana-gateway/internal/repository"
	"liana-gateway/internal/schema"
)

// Catalog returns the collections exposed by the gateway
func Catalog() []Definition {
	return []Definition{
		{
			Model: &model.Article{},
			Options: []schema.Option{
				schema.WithSearchFields("title", "slug", "author.name"),
				schema.WithSegments(
					schema.Segment{Name: "Published", Where: schema.StaticCondition{
						Expr: clause.Eq{Column: column("status"), Value: "published"},
					}},
					schema.Segment{Name: "Written this week", Where: schema.DynamicCondition{
						Resolve: writtenThisWeek,
					}},
					schema.Segment{Name: "Drafts", Scope: "Drafts"},
				),
			},
			Scopes: map[string]repository.ScopeFunc{
				"Drafts": func(tx *gorm.DB) *gorm.DB {
					return tx.Where(clause.Eq{Column: column("status"), Value: "draft"})
				},
			},
			SQLSegments: []SQLSegment{
				{
					Name:  "Most commented",
					Query: "SELECT article_id FROM comments GROUP BY article_id HAVING COUNT(*) > 10",
				},
			},
		},
		{
			Model: &model.Author{},
			Options: []schema.Option{
				schema.WithSmartField(schema.Field{Field: "display_name", Type: schema.Scalar(schema.TypeString)}),
				schema.WithSearchHook("display_name", searchDisplayName),
			},
		},
		{Model: &model.Comment{}},
		{Model: &model.Category{}},
		{
			Model:   &model.Order{},
			Options: []schema.Option{schema.WithSearchFields("customer")},
		},
		{Model: &model.OrderLine{}},
	}
}

func column(name string) clause.Column {
	return clause.Column{Table: clause.CurrentTable, Name: name}
}

// writtenThisWeek keeps the articles created since the start of the day,
// seven days ago, in the timezone of the request
func writtenThisWeek(_ context.Context, params *model.ListParams) (clause.Expression, error) {
	loc := time.UTC
	if params.Timezone != "" {
		var err error
		if loc, err = time.LoadLocation(params.Timezone); err != nil {
			return nil, err
		}
	}
	now := time.Now().In(loc)
	since := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc).AddDate(0, 0, -7)
	return clause.Gte{Column: column("created_at"), Value: since}, nil
}

// searchDisplayName matches "Name <email>" as rendered by the admin panel
func searchDisplayName(_ context.Context, opts *model.FindOptions, term string) error {
	opts.ExtendSearch(clause.Expr{
		SQL:  "LOWER(CONCAT(?, ' <', ?, '>')) LIKE ?",
		Vars: []interface{}{column("name"), column("email"), "%" + strings.ToLower(term) + "%"},
	})
	return nil
}
