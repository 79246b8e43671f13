package model

import (
	"github.com/shopspring/decimal"
)

// Warehouse is a storage site of an organization
type Warehouse struct {
	Tenant
	Name      string   `gorm:"type:varchar(255);not null" json:"name"`
	Longitude *float64 `json:"longitude"`
	Latitude  *float64 `json:"latitude"`
}

// Product represents a stocked item. Quantity never goes below zero.
type Product struct {
	Tenant
	WarehouseID       *int64          `gorm:"index" json:"warehouse_id"`
	Name              string          `gorm:"type:varchar(255);not null" json:"name"`
	Quantity          decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0" json:"quantity"`
	UnitOfMeasurement string          `gorm:"type:varchar(50)" json:"unit_of_measurement"`
	Price             decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0" json:"price"`
	Weight            *float64        `json:"weight"`     // kilograms
	Dimensions        string          `json:"dimensions"` // "Width x Height x Length"
	Location          string          `json:"location"`   // shelf inside the warehouse
	BatchNumber       string          `gorm:"type:varchar(50)" json:"batch_number"`
	Origin            string          `gorm:"type:varchar(255)" json:"origin"`
}

// StockMovement records every stock change caused by a delivery
type StockMovement struct {
	Tenant
	ProductID       int64           `gorm:"not null;index" json:"product_id"`
	DeliveryID      *int64          `gorm:"index" json:"delivery_id"`
	QuantityChanged decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"quantity_changed"`
	StockAfter      decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"stock_after"`
}
