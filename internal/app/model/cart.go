package model

import (
	"time"
)

// CartItem is one product-quantity line in an anonymous session cart.
// Name, Price and Image are copied from the product when the line is first
// created and are not refreshed afterwards.
type CartItem struct {
	ID         uint      `gorm:"primarykey" json:"id"`
	SessionID  string    `gorm:"not null;size:64;uniqueIndex:idx_cart_session_product" json:"session_id"`
	ProductID  uint      `gorm:"not null;uniqueIndex:idx_cart_session_product;index" json:"product_id"`
	Name       string    `gorm:"not null" json:"name"`
	Price      float64   `gorm:"not null" json:"price"`
	Image      string    `gorm:"type:text" json:"image"`
	Quantity   int       `gorm:"not null;default:1" json:"quantity"`
	StockAtAdd int       `gorm:"not null;default:0" json:"stock_at_add"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (CartItem) TableName() string {
	return "cart_items"
}
