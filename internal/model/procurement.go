package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RFQStatus of a request for quotation
type RFQStatus string

const (
	RFQOpen   RFQStatus = "Open"
	RFQClosed RFQStatus = "Closed"
)

// RFQ is a request for quotation sent to suppliers
type RFQ struct {
	Tenant
	ProductID        int64           `gorm:"not null;index" json:"product_id"`
	RequiredQuantity decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"required_quantity"`
	Description      string          `gorm:"type:varchar(500)" json:"description"`
	Status           RFQStatus       `gorm:"type:varchar(50);not null;default:'Open'" json:"status"`
}

// Quotation is a supplier's answer to an RFQ. At most one per RFQ is selected.
type Quotation struct {
	ID           int64           `gorm:"primaryKey" json:"id"`
	RFQID        int64           `gorm:"column:rfq_id;not null;index;uniqueIndex:idx_rfq_selected_once,where:selected = true" json:"rfq_id"`
	SupplierID   int64           `gorm:"not null;index" json:"supplier_id"`
	Price        decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"price"`
	Quantity     decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"quantity"`
	Selected     bool            `gorm:"not null;default:false" json:"selected"`
	DeliveryDate *time.Time      `json:"delivery_date"`
	CreatedBy    uuid.UUID       `gorm:"type:uuid" json:"created_by"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}
