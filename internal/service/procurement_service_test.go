package service

import (
	"context"
	"testing"

	"supplychain/internal/apperror"
	"supplychain/internal/model"
	"supplychain/pkg/pagination"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type rfqSetup struct {
	rfq       *model.RFQ
	cheap     *model.Quotation
	expensive *model.Quotation
}

func openRFQ(t *testing.T, f *fixture, svc ProcurementService) rfqSetup {
	t.Helper()
	ctx := context.Background()
	buyer := member(f.orgA, model.RoleProcurement)
	productID := f.product(f.orgA, "0", "1")
	supplierA := f.suppliers.put(f.orgA, &model.Supplier{CompanyName: "Steel Co", Email: "sales@steel.test"})
	vendor := member(f.orgA, model.RoleSupplier)
	supplierB := f.suppliers.put(f.orgA, &model.Supplier{CompanyName: "Iron Inc", Email: "bids@iron.test", UserID: &vendor.UserID})

	rfq, err := svc.CreateRFQ(ctx, buyer, CreateRFQRequest{ProductID: productID, RequiredQuantity: qty("50")})
	require.NoError(t, err)
	cheap, err := svc.SubmitQuotation(ctx, buyer, rfq.ID, SubmitQuotationRequest{SupplierID: supplierA, Price: qty("4"), Quantity: qty("50")})
	require.NoError(t, err)
	expensive, err := svc.SubmitQuotation(ctx, vendor, rfq.ID, SubmitQuotationRequest{SupplierID: supplierB, Price: qty("6"), Quantity: qty("50")})
	require.NoError(t, err)
	return rfqSetup{rfq: rfq, cheap: cheap, expensive: expensive}
}

func TestSelectQuotationClosesRFQ(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	svc := f.procurementService()
	s := openRFQ(t, f, svc)
	buyer := member(f.orgA, model.RoleProcurement)

	res, err := svc.SelectQuotation(ctx, buyer, s.rfq.ID, s.cheap.ID)
	require.NoError(t, err)
	assert.True(t, res.Quotation.Selected)
	assert.Equal(t, model.RFQClosed, res.RFQ.Status)
	assert.Empty(t, res.NotificationError)
	assert.Equal(t, []string{"sales@steel.test"}, f.notifier.sent)

	_, err = svc.SelectQuotation(ctx, buyer, s.rfq.ID, s.cheap.ID)
	assert.True(t, apperror.Is(err, apperror.EConflict))
	_, err = svc.SelectQuotation(ctx, buyer, s.rfq.ID, s.expensive.ID)
	assert.True(t, apperror.Is(err, apperror.EConflict))

	page, err := svc.ListQuotations(ctx, buyer, s.rfq.ID, pagination.New(1, 20))
	require.NoError(t, err)
	selected := 0
	for _, q := range page.Items {
		if q.Selected {
			selected++
		}
	}
	assert.Equal(t, 1, selected)
	assert.Contains(t, f.audit.actions(f.orgA), model.ActionSelectQuote)
}

func TestSelectionStandsWhenNotificationFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	svc := f.procurementService()
	s := openRFQ(t, f, svc)
	f.notifier.err = errMailDown

	res, err := svc.SelectQuotation(ctx, f.admin(f.orgA), s.rfq.ID, s.expensive.ID)
	require.NoError(t, err)
	assert.Equal(t, errMailDown.Error(), res.NotificationError)

	q, err := f.procurement.GetQuotation(ctx, s.rfq.ID, s.expensive.ID)
	require.NoError(t, err)
	assert.True(t, q.Selected)
}

func TestSubmitQuotationRules(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	svc := f.procurementService()
	s := openRFQ(t, f, svc)
	buyer := member(f.orgA, model.RoleProcurement)

	_, err := svc.SubmitQuotation(ctx, buyer, s.rfq.ID, SubmitQuotationRequest{SupplierID: s.cheap.SupplierID, Price: qty("0"), Quantity: qty("1")})
	assert.True(t, apperror.Is(err, apperror.EInvalid))

	foreign := f.suppliers.put(f.orgB, &model.Supplier{CompanyName: "Elsewhere"})
	_, err = svc.SubmitQuotation(ctx, buyer, s.rfq.ID, SubmitQuotationRequest{SupplierID: foreign, Price: qty("1"), Quantity: qty("1")})
	assert.True(t, apperror.Is(err, apperror.EInvalid))

	_, err = svc.CloseRFQ(ctx, buyer, s.rfq.ID)
	require.NoError(t, err)
	_, err = svc.SubmitQuotation(ctx, buyer, s.rfq.ID, SubmitQuotationRequest{SupplierID: s.cheap.SupplierID, Price: qty("1"), Quantity: qty("1")})
	assert.True(t, apperror.Is(err, apperror.EPreconditionFailed))
}

func TestRFQValidationAndTenancy(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	svc := f.procurementService()
	buyer := member(f.orgA, model.RoleProcurement)
	productID := f.product(f.orgA, "0", "1")

	_, err := svc.CreateRFQ(ctx, buyer, CreateRFQRequest{ProductID: productID, RequiredQuantity: qty("-1")})
	assert.True(t, apperror.Is(err, apperror.EInvalid))
	_, err = svc.CreateRFQ(ctx, buyer, CreateRFQRequest{ProductID: f.product(f.orgB, "0", "1"), RequiredQuantity: qty("1")})
	assert.True(t, apperror.Is(err, apperror.EInvalid))
	_, err = svc.CreateRFQ(ctx, member(f.orgA, model.RoleSales), CreateRFQRequest{ProductID: productID, RequiredQuantity: qty("1")})
	assert.True(t, apperror.Is(err, apperror.EForbidden))

	rfq, err := svc.CreateRFQ(ctx, buyer, CreateRFQRequest{ProductID: productID, RequiredQuantity: qty("1")})
	require.NoError(t, err)
	_, err = svc.GetRFQ(ctx, member(f.orgB, model.RoleProcurement), rfq.ID)
	assert.True(t, apperror.Is(err, apperror.ENotFound))

	open, err := svc.ListRFQs(ctx, buyer, pagination.New(1, 20), string(model.RFQOpen))
	require.NoError(t, err)
	assert.EqualValues(t, 1, open.Total)
}

func TestSupplierQuotesOnlyForOwnRecord(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	svc := f.procurementService()
	s := openRFQ(t, f, svc)

	stranger := member(f.orgA, model.RoleSupplier)
	_, err := svc.SubmitQuotation(ctx, stranger, s.rfq.ID, SubmitQuotationRequest{SupplierID: s.expensive.SupplierID, Price: qty("5"), Quantity: qty("50")})
	assert.True(t, apperror.Is(err, apperror.EForbidden))
	_, err = svc.SubmitQuotation(ctx, stranger, s.rfq.ID, SubmitQuotationRequest{SupplierID: s.cheap.SupplierID, Price: qty("5"), Quantity: qty("50")})
	assert.True(t, apperror.Is(err, apperror.EForbidden), "unlinked supplier record")

	page, err := svc.ListQuotations(ctx, f.admin(f.orgA), s.rfq.ID, pagination.New(1, 20))
	require.NoError(t, err)
	assert.EqualValues(t, 2, page.Total)
}
