package model

import (
	"time"
)

// Order is a customer order
type Order struct {
	ID        uint        `gorm:"primaryKey" json:"id"`
	Customer  string      `gorm:"size:255;not null" json:"customer" validate:"required"`
	Lines     []OrderLine `json:"lines"`
	PlacedAt  time.Time   `json:"placed_at" validate:"before=2100-01-01"`
	CreatedAt time.Time   `json:"created_at"`
}

// TableName returns the table name for the Order model
func (Order) TableName() string {
	return "orders"
}

// OrderLine is identified by its order and its position in the order
type OrderLine struct {
	OrderID    uint    `gorm:"primaryKey;autoIncrement:false" json:"order_id"`
	LineNumber int     `gorm:"primaryKey;autoIncrement:false" json:"line_number"`
	Order      *Order  `json:"order"`
	Sku        string  `gorm:"size:64;not null" json:"sku" validate:"required"`
	Quantity   int     `gorm:"not null;default:1" json:"quantity" validate:"gt=0"`
	UnitPrice  float64 `gorm:"type:decimal(10,2)" json:"unit_price" validate:"min=0"`
}

// TableName returns the table name for the OrderLine model
func (OrderLine) TableName() string {
	return "order_lines"
}
