package model

import (
	"github.com/shopspring/decimal"
)

// Invoice is computed on demand from an order and never persisted
type Invoice struct {
	Order    Order           `json:"order"`
	Items    []OrderItem     `json:"order_items"`
	Client   Client          `json:"client"`
	Subtotal decimal.Decimal `json:"subtotal"`
	Discount decimal.Decimal `json:"discount"`
	Total    decimal.Decimal `json:"total"`
}
