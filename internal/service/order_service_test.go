package service

import (
	"context"
	"sync"
	"testing"

	"supplychain/internal/apperror"
	"supplychain/internal/model"
	"supplychain/pkg/pagination"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrderCreateSnapshotsProductPrice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sales := member(f.orgA, model.RoleSales)
	clientID := f.client(f.orgA, model.ClientTypeShop)
	productID := f.product(f.orgA, "100", "12.5")

	order, err := f.orderService().Create(ctx, sales, CreateOrderRequest{
		ClientID: clientID,
		Items:    []OrderItemRequest{{ProductID: productID, Quantity: qty("2")}},
	})
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusPending, order.Status)
	assert.Equal(t, f.orgA, order.OrganizationID)
	assert.Equal(t, sales.UserID, order.CreatedBy)
	require.Len(t, order.Items, 1)

	product, err := f.products.Get(ctx, f.orgA, productID)
	require.NoError(t, err)
	product.Price = qty("99")
	require.NoError(t, f.products.Save(ctx, f.orgA, product))

	got, err := f.orderService().Get(ctx, sales, order.ID)
	require.NoError(t, err)
	require.Len(t, got.Items, 1)
	assert.True(t, got.Items[0].Price.Equal(qty("12.5")))
	assert.Contains(t, f.audit.actions(f.orgA), model.ActionCreate)
}

func TestOrderCreateRollsBackOnUnknownProduct(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sales := member(f.orgA, model.RoleSales)
	clientID := f.client(f.orgA, model.ClientTypeShop)
	productID := f.product(f.orgA, "10", "1")
	foreignProduct := f.product(f.orgB, "10", "1")

	_, err := f.orderService().Create(ctx, sales, CreateOrderRequest{
		ClientID: clientID,
		Items: []OrderItemRequest{
			{ProductID: productID, Quantity: qty("1")},
			{ProductID: foreignProduct, Quantity: qty("1")},
		},
	})
	require.Error(t, err)
	assert.Equal(t, apperror.EInvalid, apperror.Code(err))

	n, err := f.orders.Count(ctx, f.orgA)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, f.audit.actions(f.orgA))
}

func TestOrderCreateValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sales := member(f.orgA, model.RoleSales)
	productID := f.product(f.orgA, "10", "1")

	_, err := f.orderService().Create(ctx, sales, CreateOrderRequest{ClientID: f.client(f.orgB, model.ClientTypeShop)})
	assert.True(t, apperror.Is(err, apperror.EInvalid), "client of another organization")

	_, err = f.orderService().Create(ctx, sales, CreateOrderRequest{
		ClientID: f.client(f.orgA, model.ClientTypeShop),
		Items:    []OrderItemRequest{{ProductID: productID, Quantity: qty("0")}},
	})
	assert.True(t, apperror.Is(err, apperror.EInvalid), "zero quantity")
}

func TestOrderPermissions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	clientID := f.client(f.orgA, model.ClientTypeShop)

	_, err := f.orderService().Create(ctx, member(f.orgA, model.RoleDriver), CreateOrderRequest{ClientID: clientID})
	assert.True(t, apperror.Is(err, apperror.EForbidden))

	orgless := member(f.orgA, model.RoleSales)
	orgless.OrganizationID = nil
	_, err = f.orderService().List(ctx, orgless, pagination.New(1, 20), "")
	assert.True(t, apperror.Is(err, apperror.EForbidden))
}

func TestOrderTenantIsolation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	orderID, _ := f.paidOrder(f.admin(f.orgA), f.client(f.orgA, model.ClientTypeShop))
	other := f.admin(f.orgB)
	svc := f.orderService()

	_, err := svc.Get(ctx, other, orderID)
	assert.True(t, apperror.Is(err, apperror.ENotFound))
	_, err = svc.MarkPaid(ctx, other, orderID)
	assert.True(t, apperror.Is(err, apperror.ENotFound))
	assert.True(t, apperror.Is(svc.Delete(ctx, other, orderID), apperror.ENotFound))

	page, err := svc.List(ctx, other, pagination.New(1, 20), "")
	require.NoError(t, err)
	assert.Zero(t, page.Total)
}

func TestMarkPaidOpensOneDelivery(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sales := member(f.orgA, model.RoleSales)
	svc := f.orderService()
	order, err := svc.Create(ctx, sales, CreateOrderRequest{ClientID: f.client(f.orgA, model.ClientTypeShop)})
	require.NoError(t, err)

	res, err := svc.MarkPaid(ctx, sales, order.ID)
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusSucceeded, res.Order.Status)
	require.NotNil(t, res.Order.PaidAt)
	assert.Equal(t, order.ID, res.Delivery.OrderID)
	assert.Equal(t, f.orgA, res.Delivery.OrganizationID)

	log, err := f.deliveries.StatusLog(ctx, res.Delivery.ID)
	require.NoError(t, err)
	require.Len(t, log, 1)
	assert.Equal(t, model.DeliveryPending, log[0].Status)

	_, err = svc.MarkPaid(ctx, sales, order.ID)
	assert.True(t, apperror.Is(err, apperror.EConflict))

	n, err := f.deliveries.Count(ctx, f.orgA)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
	assert.Equal(t, []string{"1:" + EventOrderPaid}, f.events.list())
	assert.Contains(t, f.audit.actions(f.orgA), model.ActionMarkPaid)
}

func TestMarkPaidConcurrentCallsProduceOneDelivery(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sales := member(f.orgA, model.RoleSales)
	svc := f.orderService()
	order, err := svc.Create(ctx, sales, CreateOrderRequest{ClientID: f.client(f.orgA, model.ClientTypeShop)})
	require.NoError(t, err)

	const callers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		ok        int
		conflicts int
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.MarkPaid(ctx, sales, order.ID)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case apperror.Is(err, apperror.EConflict):
				conflicts++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, ok)
	assert.Equal(t, callers-1, conflicts)
	n, err := f.deliveries.Count(ctx, f.orgA)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestPaidOrderIsFrozen(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := f.admin(f.orgA)
	productID := f.product(f.orgA, "10", "3")
	orderID, _ := f.paidOrder(admin, f.client(f.orgA, model.ClientTypeShop), OrderItemRequest{ProductID: productID, Quantity: qty("1")})
	svc := f.orderService()

	_, err := svc.AddItem(ctx, admin, orderID, OrderItemRequest{ProductID: productID, Quantity: qty("1")})
	assert.True(t, apperror.Is(err, apperror.EPreconditionFailed))

	items, err := svc.ListItems(ctx, admin, orderID)
	require.NoError(t, err)
	require.Len(t, items, 1)
	_, err = svc.UpdateItem(ctx, admin, orderID, items[0].ID, OrderItemRequest{ProductID: productID, Quantity: qty("5")})
	assert.True(t, apperror.Is(err, apperror.EPreconditionFailed))
	assert.True(t, apperror.Is(svc.DeleteItem(ctx, admin, orderID, items[0].ID), apperror.EPreconditionFailed))
	assert.True(t, apperror.Is(svc.Delete(ctx, admin, orderID), apperror.EPreconditionFailed))
}

func TestOrderItemsOnPendingOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sales := member(f.orgA, model.RoleSales)
	svc := f.orderService()
	first := f.product(f.orgA, "10", "2")
	second := f.product(f.orgA, "10", "7")

	order, err := svc.Create(ctx, sales, CreateOrderRequest{ClientID: f.client(f.orgA, model.ClientTypeShop)})
	require.NoError(t, err)

	item, err := svc.AddItem(ctx, sales, order.ID, OrderItemRequest{ProductID: first, Quantity: qty("3")})
	require.NoError(t, err)
	assert.True(t, item.Price.Equal(qty("2")))

	updated, err := svc.UpdateItem(ctx, sales, order.ID, item.ID, OrderItemRequest{ProductID: second, Quantity: qty("1")})
	require.NoError(t, err)
	assert.Equal(t, item.ID, updated.ID)
	assert.True(t, updated.Price.Equal(qty("7")))

	require.NoError(t, svc.DeleteItem(ctx, sales, order.ID, item.ID))
	items, err := svc.ListItems(ctx, sales, order.ID)
	require.NoError(t, err)
	assert.Empty(t, items)

	require.NoError(t, svc.Delete(ctx, sales, order.ID))
	_, err = svc.Get(ctx, sales, order.ID)
	assert.True(t, apperror.Is(err, apperror.ENotFound))
}

func TestOrderListFiltersByStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := f.admin(f.orgA)
	clientID := f.client(f.orgA, model.ClientTypeShop)
	svc := f.orderService()

	f.paidOrder(admin, clientID)
	_, err := svc.Create(ctx, admin, CreateOrderRequest{ClientID: clientID})
	require.NoError(t, err)

	page, err := svc.List(ctx, admin, pagination.New(1, 20), string(model.OrderStatusSucceeded))
	require.NoError(t, err)
	assert.EqualValues(t, 1, page.Total)
	require.Len(t, page.Items, 1)
	assert.Equal(t, model.OrderStatusSucceeded, page.Items[0].Status)

	page, err = svc.List(ctx, admin, pagination.New(1, 20), "")
	require.NoError(t, err)
	assert.EqualValues(t, 2, page.Total)
}
