package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

// Author writes articles
type Author struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"size:120;not null" json:"name" validate:"required,len=2~120"`
	Email     string    `gorm:"size:255;uniqueIndex" json:"email" validate:"contains=@" validate_msg:"contains=must be an email address"`
	Bio       string    `gorm:"type:text" json:"bio"`
	Articles  []Article `json:"articles"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName returns the table name for the Author model
func (Author) TableName() string {
	return "authors"
}

// Article is the main content collection of the admin panel
type Article struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	Reference   uuid.UUID       `gorm:"type:char(36);uniqueIndex" json:"reference"`
	Title       string          `gorm:"size:255;not null" json:"title" validate:"required,len=3~255"`
	Slug        string          `gorm:"size:255" json:"slug" validate:"pattern=^[a-z0-9-]+$"`
	Summary     string          `gorm:"type:text" json:"summary" validate:"len=10"`
	Status      string          `gorm:"type:enum('draft','published','archived');default:'draft'" json:"status"`
	Score       float64         `json:"score" validate:"min=0,max=100" validate_msg:"max=score is capped at 100"`
	Featured    bool            `json:"featured"`
	PublishedOn *time.Time      `gorm:"type:date" json:"published_on" validate:"after=2000-01-01"`
	ReadingTime string          `gorm:"type:time" json:"reading_time"`
	Tags        pq.StringArray  `gorm:"type:text" json:"tags"`
	Metadata    json.RawMessage `gorm:"type:json" json:"metadata"`
	AuthorID    uint            `gorm:"not null" json:"author_id"`
	Author      *Author         `json:"author"`
	Comments    []Comment       `json:"comments"`
	Categories  []Category      `gorm:"many2many:article_categories" json:"categories"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
	DeletedAt   gorm.DeletedAt  `gorm:"index" json:"deleted_at"`
}

// TableName returns the table name for the Article model
func (Article) TableName() string {
	return "articles"
}

// BeforeCreate assigns the public reference of new articles
func (a *Article) BeforeCreate(tx *gorm.DB) error {
	if a.Reference == uuid.Nil {
		a.Reference = uuid.New()
	}
	return nil
}

// Comment is left by readers on an article
type Comment struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Body      string    `gorm:"type:text;not null" json:"body" validate:"required,len=1~2000"`
	ArticleID uint      `gorm:"not null" json:"article_id"`
	Article   *Article  `json:"article"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName returns the table name for the Comment model
func (Comment) TableName() string {
	return "comments"
}

// Category groups articles
type Category struct {
	ID       uint      `gorm:"primaryKey" json:"id"`
	Name     string    `gorm:"size:80;not null;uniqueIndex" json:"name" validate:"required"`
	Articles []Article `gorm:"many2many:article_categories" json:"articles"`
}

// TableName returns the table name for the Category model
func (Category) TableName() string {
	return "categories"
}
