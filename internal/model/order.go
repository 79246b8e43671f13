package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus is the payment state of a sales order
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "Pending"
	OrderStatusSucceeded OrderStatus = "Succeeded"
)

// Order is a sales order. CreatedBy is the sales user who took it.
type Order struct {
	Tenant
	ClientID  int64       `gorm:"not null;index" json:"client_id"`
	Status    OrderStatus `gorm:"type:varchar(20);not null;default:'Pending';index" json:"status"`
	OrderDate time.Time   `gorm:"not null" json:"order_date"`
	PaidAt    *time.Time  `json:"paid_at"`
	Items     []OrderItem `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE" json:"items,omitempty"`
}

// OrderItem is a line of an order. Price is a snapshot of the product price
// taken when the line was written.
type OrderItem struct {
	ID        int64           `gorm:"primaryKey" json:"id"`
	OrderID   int64           `gorm:"not null;index" json:"order_id"`
	ProductID int64           `gorm:"not null;index" json:"product_id"`
	Quantity  decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"quantity"`
	Price     decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"price"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}
