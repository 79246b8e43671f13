package billing

import (
	"supplychain/internal/model"

	"github.com/shopspring/decimal"
)

// DistributorRate is the share of the subtotal a distributor pays
var DistributorRate = decimal.NewFromFloat(0.9)

// Totals of one invoice
type Totals struct {
	Subtotal decimal.Decimal
	Discount decimal.Decimal
	Total    decimal.Decimal
}

// Compute sums price x quantity over items and applies the distributor
// discount. It keeps no state and reads nothing but its arguments.
func Compute(items []model.OrderItem, clientType string) Totals {
	subtotal := decimal.Zero
	for _, it := range items {
		subtotal = subtotal.Add(it.Price.Mul(it.Quantity))
	}

	total := ApplyClientRate(subtotal, clientType)

	return Totals{
		Subtotal: subtotal,
		Discount: subtotal.Sub(total),
		Total:    total,
	}
}

// ApplyClientRate returns what a client of the given type pays for subtotal
func ApplyClientRate(subtotal decimal.Decimal, clientType string) decimal.Decimal {
	if clientType == model.ClientTypeDistributor {
		return subtotal.Mul(DistributorRate)
	}
	return subtotal
}

// Build assembles the invoice read model
func Build(order model.Order, items []model.OrderItem, client model.Client) model.Invoice {
	t := Compute(items, client.ClientType)
	return model.Invoice{
		Order:    order,
		Items:    items,
		Client:   client,
		Subtotal: t.Subtotal,
		Discount: t.Discount,
		Total:    t.Total,
	}
}
