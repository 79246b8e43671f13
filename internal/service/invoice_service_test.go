package service

import (
	"bytes"
	"context"
	"testing"

	"supplychain/internal/apperror"
	"supplychain/internal/lifecycle"
	"supplychain/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInvoiceTotals(t *testing.T) {
	tests := []struct {
		name       string
		clientType string
		discount   string
		total      string
	}{
		{name: "shop pays the subtotal", clientType: model.ClientTypeShop, discount: "0", total: "25"},
		{name: "distributor gets ten percent off", clientType: model.ClientTypeDistributor, discount: "2.5", total: "22.5"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()
			sales := member(f.orgA, model.RoleSales)
			ten := f.product(f.orgA, "100", "10")
			five := f.product(f.orgA, "100", "5")
			order, err := f.orderService().Create(ctx, sales, CreateOrderRequest{
				ClientID: f.client(f.orgA, tc.clientType),
				Items: []OrderItemRequest{
					{ProductID: ten, Quantity: qty("2")},
					{ProductID: five, Quantity: qty("1")},
				},
			})
			require.NoError(t, err)

			inv, err := NewInvoiceService(f.orders, f.clients, f.orgs, f.engine).Get(ctx, sales, order.ID)
			require.NoError(t, err)
			assert.True(t, inv.Subtotal.Equal(qty("25")), inv.Subtotal.String())
			assert.True(t, inv.Discount.Equal(qty(tc.discount)), inv.Discount.String())
			assert.True(t, inv.Total.Equal(qty(tc.total)), inv.Total.String())
			assert.Len(t, inv.Items, 2)
			assert.Equal(t, tc.clientType, inv.Client.ClientType)
		})
	}
}

func TestInvoiceReflectsCurrentItems(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sales := member(f.orgA, model.RoleSales)
	productID := f.product(f.orgA, "100", "10")
	orders := f.orderService()
	invoices := NewInvoiceService(f.orders, f.clients, f.orgs, f.engine)

	order, err := orders.Create(ctx, sales, CreateOrderRequest{ClientID: f.client(f.orgA, model.ClientTypeShop)})
	require.NoError(t, err)
	inv, err := invoices.Get(ctx, sales, order.ID)
	require.NoError(t, err)
	assert.True(t, inv.Total.IsZero())

	_, err = orders.AddItem(ctx, sales, order.ID, OrderItemRequest{ProductID: productID, Quantity: qty("3")})
	require.NoError(t, err)
	inv, err = invoices.Get(ctx, sales, order.ID)
	require.NoError(t, err)
	assert.True(t, inv.Total.Equal(qty("30")))
}

func TestInvoiceAccess(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	orderID, _ := f.paidOrder(f.admin(f.orgA), f.client(f.orgA, model.ClientTypeShop))
	invoices := NewInvoiceService(f.orders, f.clients, f.orgs, f.engine)

	_, err := invoices.Get(ctx, member(f.orgA, model.RoleWarehouse), orderID)
	assert.True(t, apperror.Is(err, apperror.EForbidden))
	_, err = invoices.Get(ctx, f.admin(f.orgB), orderID)
	assert.True(t, apperror.Is(err, apperror.ENotFound))

	pdf, err := invoices.PDF(ctx, f.admin(f.orgA), orderID)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(pdf, []byte("%PDF")))
}

func TestDashboardTotals(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := f.admin(f.orgA)
	ten := f.product(f.orgA, "100", "10")
	shop := f.client(f.orgA, model.ClientTypeShop)
	distributor := f.client(f.orgA, model.ClientTypeDistributor)
	f.warehouses.put(f.orgA, &model.Warehouse{Name: "Main"})
	f.drivers.put(f.orgA, &model.Driver{Name: "Dana"})
	f.product(f.orgB, "1", "1")

	f.paidOrder(admin, shop, OrderItemRequest{ProductID: ten, Quantity: qty("1")})
	_, delivered := f.paidOrder(admin, distributor, OrderItemRequest{ProductID: ten, Quantity: qty("2.5")})
	_, err := f.orderService().Create(ctx, admin, CreateOrderRequest{
		ClientID: shop,
		Items:    []OrderItemRequest{{ProductID: ten, Quantity: qty("50")}},
	})
	require.NoError(t, err)

	deliveries := f.deliveryService(lifecycle.Machine{})
	_, err = deliveries.AppendStatus(ctx, admin, delivered, AppendStatusRequest{Status: string(model.DeliveryDelivered)})
	require.NoError(t, err)

	procurement := f.procurementService()
	s := openRFQ(t, f, procurement)
	_, err = procurement.SelectQuotation(ctx, admin, s.rfq.ID, s.cheap.ID)
	require.NoError(t, err)

	dash := NewDashboardService(DashboardDeps{
		Orders:      f.orders,
		Deliveries:  f.deliveries,
		Products:    f.products,
		Warehouses:  f.warehouses,
		Drivers:     f.drivers,
		Procurement: f.procurement,
		Policy:      f.engine,
	})
	res, err := dash.Totals(ctx, admin)
	require.NoError(t, err)

	// 10 from the shop plus 25 x 0.9 from the distributor
	assert.True(t, res.Revenue.Equal(qty("32.5")), res.Revenue.String())
	assert.True(t, res.Expense.Equal(qty("200")), res.Expense.String())
	assert.EqualValues(t, 3, res.TotalOrders)
	assert.EqualValues(t, 3, res.OrdersToday)
	assert.EqualValues(t, 2, res.TotalDeliveries)
	assert.EqualValues(t, 1, res.DeliveriesDeliveredToday)
	assert.EqualValues(t, 2, res.TotalProducts)
	assert.EqualValues(t, 1, res.TotalWarehouses)
	assert.EqualValues(t, 1, res.TotalDrivers)

	_, err = dash.Totals(ctx, member(f.orgA, model.RoleSales))
	assert.True(t, apperror.Is(err, apperror.EForbidden))
}
