package model

import (
	"time"
)

type OrderStatus string

const (
	OrderStatusCompleted OrderStatus = "completed"
)

// Order is the terminal record written at checkout. Items are snapshots of
// the cart lines at that moment.
type Order struct {
	ID            uint        `gorm:"primarykey" json:"id"`
	OrderNumber   string      `gorm:"not null;size:16;uniqueIndex" json:"order_number"`
	SessionID     string      `gorm:"not null;size:64;index" json:"session_id"`
	Subtotal      float64     `gorm:"not null" json:"subtotal"`
	Tax           float64     `gorm:"not null" json:"tax"`
	Shipping      float64     `gorm:"not null" json:"shipping"`
	Total         float64     `gorm:"not null" json:"total"`
	Status        OrderStatus `gorm:"type:varchar(20);default:'completed'" json:"status"`
	CustomerEmail string      `json:"customer_email"`
	CreatedAt     time.Time   `json:"created_at"`

	Items []OrderItem `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE" json:"items"`
}

func (Order) TableName() string {
	return "orders"
}

type OrderItem struct {
	ID        uint    `gorm:"primarykey" json:"id"`
	OrderID   uint    `gorm:"not null;index" json:"order_id"`
	ProductID uint    `gorm:"not null;index" json:"product_id"`
	Name      string  `gorm:"not null" json:"name"`
	Price     float64 `gorm:"not null" json:"price"`
	Image     string  `gorm:"type:text" json:"image"`
	Quantity  int     `gorm:"not null" json:"quantity"`
}

func (OrderItem) TableName() string {
	return "order_items"
}
