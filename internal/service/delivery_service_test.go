package service

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"supplychain/internal/apperror"
	"supplychain/internal/lifecycle"
	"supplychain/internal/model"
	"supplychain/pkg/pagination"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func appendStatus(t *testing.T, svc DeliveryService, f *fixture, deliveryID int64, status model.DeliveryStatus) error {
	t.Helper()
	_, err := svc.AppendStatus(context.Background(), member(f.orgA, model.RoleWarehouse), deliveryID, AppendStatusRequest{Status: string(status)})
	return err
}

func TestPackDecrementsStockOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	productID := f.product(f.orgA, "10", "4")
	_, deliveryID := f.paidOrder(f.admin(f.orgA), f.client(f.orgA, model.ClientTypeShop),
		OrderItemRequest{ProductID: productID, Quantity: qty("3")})
	svc := f.deliveryService(lifecycle.Machine{})

	require.NoError(t, appendStatus(t, svc, f, deliveryID, model.DeliveryPacked))
	assert.True(t, f.stock(f.orgA, productID).Equal(qty("7")))

	movements := f.movements.all()
	require.Len(t, movements, 1)
	assert.True(t, movements[0].QuantityChanged.Equal(qty("-3")))
	assert.True(t, movements[0].StockAfter.Equal(qty("7")))
	assert.Contains(t, f.audit.actions(f.orgA), model.ActionDecrement)

	err := appendStatus(t, svc, f, deliveryID, model.DeliveryPacked)
	assert.True(t, apperror.Is(err, apperror.EConflict))
	assert.True(t, f.stock(f.orgA, productID).Equal(qty("7")))

	log, err := svc.StatusLog(ctx, f.admin(f.orgA), deliveryID)
	require.NoError(t, err)
	require.Len(t, log, 2)
	assert.Equal(t, model.DeliveryPending, log[0].Status)
	assert.Equal(t, model.DeliveryPacked, log[1].Status)
	assert.True(t, log[1].Timestamp.After(log[0].Timestamp))
}

func TestPackWithInsufficientStockChangesNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	plenty := f.product(f.orgA, "10", "1")
	scarce := f.product(f.orgA, "1", "1")
	_, deliveryID := f.paidOrder(f.admin(f.orgA), f.client(f.orgA, model.ClientTypeShop),
		OrderItemRequest{ProductID: plenty, Quantity: qty("3")},
		OrderItemRequest{ProductID: scarce, Quantity: qty("5")})
	svc := f.deliveryService(lifecycle.Machine{})

	err := appendStatus(t, svc, f, deliveryID, model.DeliveryPacked)
	require.Error(t, err)
	assert.Equal(t, apperror.EPreconditionFailed, apperror.Code(err))

	assert.True(t, f.stock(f.orgA, plenty).Equal(qty("10")))
	assert.True(t, f.stock(f.orgA, scarce).Equal(qty("1")))
	assert.Empty(t, f.movements.all())
	log, err := f.deliveries.StatusLog(ctx, deliveryID)
	require.NoError(t, err)
	require.Len(t, log, 1)
	assert.Equal(t, model.DeliveryPending, log[0].Status)

	// the delivery can still be packed once stock arrives
	p, err := f.products.Get(ctx, f.orgA, scarce)
	require.NoError(t, err)
	p.Quantity = qty("5")
	require.NoError(t, f.products.Save(ctx, f.orgA, p))
	require.NoError(t, appendStatus(t, svc, f, deliveryID, model.DeliveryPacked))
	assert.True(t, f.stock(f.orgA, scarce).IsZero())
}

func TestPackWithMissingProduct(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	productID := f.product(f.orgA, "10", "1")
	_, deliveryID := f.paidOrder(f.admin(f.orgA), f.client(f.orgA, model.ClientTypeShop),
		OrderItemRequest{ProductID: productID, Quantity: qty("1")})
	require.NoError(t, f.products.Delete(ctx, f.orgA, productID))

	err := appendStatus(t, f.deliveryService(lifecycle.Machine{}), f, deliveryID, model.DeliveryPacked)
	assert.True(t, apperror.Is(err, apperror.EPreconditionFailed))
	log, err := f.deliveries.StatusLog(ctx, deliveryID)
	require.NoError(t, err)
	assert.Len(t, log, 1)
}

func TestDeliveredSetsDeliveredAt(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, deliveryID := f.paidOrder(f.admin(f.orgA), f.client(f.orgA, model.ClientTypeShop))
	svc := f.deliveryService(lifecycle.Machine{})

	driver := member(f.orgA, model.RoleDriver)
	entry, err := svc.AppendStatus(ctx, driver, deliveryID, AppendStatusRequest{Status: "delivered", Notes: "left at reception"})
	require.NoError(t, err)
	assert.Equal(t, model.DeliveryDelivered, entry.Status)
	assert.Equal(t, driver.UserID, entry.CreatedBy)

	d, err := svc.Get(ctx, driver, deliveryID)
	require.NoError(t, err)
	require.NotNil(t, d.DeliveredAt)
	assert.True(t, d.DeliveredAt.Equal(entry.Timestamp))
	assert.Contains(t, f.events.list(), "1:"+EventDeliveryStatus)
}

func TestStrictMachineEnforcesOrder(t *testing.T) {
	f := newFixture(t)
	_, deliveryID := f.paidOrder(f.admin(f.orgA), f.client(f.orgA, model.ClientTypeShop))
	svc := f.deliveryService(lifecycle.Machine{Strict: true})

	err := appendStatus(t, svc, f, deliveryID, model.DeliveryDelivered)
	assert.True(t, apperror.Is(err, apperror.EPreconditionFailed))
	require.NoError(t, appendStatus(t, svc, f, deliveryID, model.DeliveryPacked))
	require.NoError(t, appendStatus(t, svc, f, deliveryID, model.DeliveryInTransit))
	require.NoError(t, appendStatus(t, svc, f, deliveryID, model.DeliveryDelivered))
}

func TestAppendStatusRejectsUnknownStatus(t *testing.T) {
	f := newFixture(t)
	_, deliveryID := f.paidOrder(f.admin(f.orgA), f.client(f.orgA, model.ClientTypeShop))
	_, err := f.deliveryService(lifecycle.Machine{}).AppendStatus(context.Background(), f.admin(f.orgA), deliveryID, AppendStatusRequest{Status: "Lost"})
	assert.True(t, apperror.Is(err, apperror.EInvalid))
}

func TestDeliveryPermissionsAndTenancy(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, deliveryID := f.paidOrder(f.admin(f.orgA), f.client(f.orgA, model.ClientTypeShop))
	svc := f.deliveryService(lifecycle.Machine{})

	_, err := svc.AppendStatus(ctx, member(f.orgA, model.RoleSales), deliveryID, AppendStatusRequest{Status: "Packed"})
	assert.True(t, apperror.Is(err, apperror.EForbidden))

	_, err = svc.Get(ctx, f.admin(f.orgB), deliveryID)
	assert.True(t, apperror.Is(err, apperror.ENotFound))
	_, err = svc.AppendStatus(ctx, member(f.orgB, model.RoleDriver), deliveryID, AppendStatusRequest{Status: "Packed"})
	assert.True(t, apperror.Is(err, apperror.ENotFound))
}

func TestCreateDeliveryByHand(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := f.admin(f.orgA)
	orders := f.orderService()
	svc := f.deliveryService(lifecycle.Machine{})

	order, err := orders.Create(ctx, admin, CreateOrderRequest{ClientID: f.client(f.orgA, model.ClientTypeShop)})
	require.NoError(t, err)
	_, err = svc.Create(ctx, admin, CreateDeliveryRequest{OrderID: order.ID})
	assert.True(t, apperror.Is(err, apperror.EPreconditionFailed), "unpaid order")

	_, err = svc.Create(ctx, admin, CreateDeliveryRequest{OrderID: 999})
	assert.True(t, apperror.Is(err, apperror.EInvalid), "missing order")

	// a paid order already carries its delivery
	paidID, _ := f.paidOrder(admin, f.client(f.orgA, model.ClientTypeShop))
	_, err = svc.Create(ctx, admin, CreateDeliveryRequest{OrderID: paidID})
	assert.True(t, apperror.Is(err, apperror.EConflict))
}

func TestUpdateAndListByDriver(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := f.admin(f.orgA)
	clientID := f.client(f.orgA, model.ClientTypeShop)
	_, first := f.paidOrder(admin, clientID)
	f.paidOrder(admin, clientID)
	driverID := f.drivers.put(f.orgA, &model.Driver{Name: "Dana"})
	foreignDriver := f.drivers.put(f.orgB, &model.Driver{Name: "Eve"})
	svc := f.deliveryService(lifecycle.Machine{})

	_, err := svc.Update(ctx, admin, first, UpdateDeliveryRequest{DriverID: &foreignDriver})
	assert.True(t, apperror.Is(err, apperror.EInvalid))

	d, err := svc.Update(ctx, admin, first, UpdateDeliveryRequest{DriverID: &driverID, DestinationName: "Dock 4"})
	require.NoError(t, err)
	require.NotNil(t, d.DriverID)
	assert.Equal(t, "Dock 4", d.DestinationName)

	page, err := svc.ListByDriver(ctx, member(f.orgA, model.RoleDriver), driverID, pagination.New(1, 20))
	require.NoError(t, err)
	assert.EqualValues(t, 1, page.Total)
	require.Len(t, page.Items, 1)
	assert.Equal(t, first, page.Items[0].ID)

	all, err := svc.List(ctx, admin, pagination.New(1, 20))
	require.NoError(t, err)
	assert.EqualValues(t, 2, all.Total)
}

func TestDeleteOnlyPendingDeliveries(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := f.admin(f.orgA)
	clientID := f.client(f.orgA, model.ClientTypeShop)
	_, pending := f.paidOrder(admin, clientID)
	_, shipped := f.paidOrder(admin, clientID)
	svc := f.deliveryService(lifecycle.Machine{})
	require.NoError(t, appendStatus(t, svc, f, shipped, model.DeliveryInTransit))

	assert.True(t, apperror.Is(svc.Delete(ctx, admin, shipped), apperror.EPreconditionFailed))
	require.NoError(t, svc.Delete(ctx, admin, pending))
	_, err := svc.Get(ctx, admin, pending)
	assert.True(t, apperror.Is(err, apperror.ENotFound))
}

func TestPackedDeliveryCannotBeDeletedAfterReturningToPending(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := f.admin(f.orgA)
	productID := f.product(f.orgA, "10", "4")
	orderID, deliveryID := f.paidOrder(admin, f.client(f.orgA, model.ClientTypeShop),
		OrderItemRequest{ProductID: productID, Quantity: qty("3")})
	svc := f.deliveryService(lifecycle.Machine{})

	require.NoError(t, appendStatus(t, svc, f, deliveryID, model.DeliveryPacked))
	require.NoError(t, appendStatus(t, svc, f, deliveryID, model.DeliveryPending))

	assert.True(t, apperror.Is(svc.Delete(ctx, admin, deliveryID), apperror.EPreconditionFailed))
	_, err := svc.Create(ctx, admin, CreateDeliveryRequest{OrderID: orderID})
	assert.True(t, apperror.Is(err, apperror.EConflict))
	assert.True(t, f.stock(f.orgA, productID).Equal(qty("7")))
}

func TestUploadSignature(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, deliveryID := f.paidOrder(f.admin(f.orgA), f.client(f.orgA, model.ClientTypeShop))
	svc := f.deliveryService(lifecycle.Machine{})
	driver := member(f.orgA, model.RoleDriver)

	_, err := svc.UploadSignature(ctx, driver, deliveryID, "application/pdf", bytes.NewReader([]byte("x")))
	assert.True(t, apperror.Is(err, apperror.EInvalid))

	d, err := svc.UploadSignature(ctx, driver, deliveryID, "image/png", bytes.NewReader([]byte("png")))
	require.NoError(t, err)
	require.NotNil(t, d.ClientSignature)
	assert.True(t, strings.HasPrefix(*d.ClientSignature, "https://objects.test/signatures/1/"))
	assert.True(t, strings.HasSuffix(*d.ClientSignature, ".png"))
	assert.Contains(t, f.audit.actions(f.orgA), model.ActionUploadSign)

	f.objects.err = assert.AnError
	_, err = svc.UploadSignature(ctx, driver, deliveryID, "image/png", bytes.NewReader([]byte("png")))
	assert.True(t, apperror.Is(err, apperror.EUnavailable))
}

func TestDeliveryLabel(t *testing.T) {
	f := newFixture(t)
	_, deliveryID := f.paidOrder(f.admin(f.orgA), f.client(f.orgA, model.ClientTypeShop))
	pdf, err := f.deliveryService(lifecycle.Machine{}).Label(context.Background(), member(f.orgA, model.RoleDriver), deliveryID)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(pdf, []byte("%PDF")))
}
