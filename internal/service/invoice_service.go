package service

import (
	"context"

	"supplychain/internal/apperror"
	"supplychain/internal/billing"
	"supplychain/internal/identity"
	"supplychain/internal/model"
	"supplychain/internal/policy"
	"supplychain/internal/printer"
	"supplychain/internal/repository"
)

type InvoiceService interface {
	Get(ctx context.Context, p identity.Principal, orderID int64) (*model.Invoice, error)
	PDF(ctx context.Context, p identity.Principal, orderID int64) ([]byte, error)
}

type invoiceService struct {
	orders  repository.OrderRepository
	clients repository.Store[model.Client]
	orgs    repository.OrganizationRepository
	policy  *policy.Engine
}

func NewInvoiceService(orders repository.OrderRepository, clients repository.Store[model.Client], orgs repository.OrganizationRepository, engine *policy.Engine) InvoiceService {
	return &invoiceService{orders: orders, clients: clients, orgs: orgs, policy: engine}
}

// Get computes the invoice of an order. Nothing is cached; the result always
// reflects the current items and client type.
func (s *invoiceService) Get(ctx context.Context, p identity.Principal, orderID int64) (*model.Invoice, error) {
	const op = "invoice.Get"
	if err := s.policy.Authorize(p, policy.InvoiceView, nil); err != nil {
		return nil, err
	}

	order, err := s.orders.Get(ctx, p.OrgID(), orderID)
	if err != nil {
		return nil, apperror.FromStore(op, "order", err)
	}
	if err := s.policy.Authorize(p, policy.InvoiceView, policy.Org(order.OrganizationID)); err != nil {
		return nil, err
	}
	items, err := s.orders.ListItems(ctx, order.ID)
	if err != nil {
		return nil, apperror.FromStore(op, "order item", err)
	}
	client, err := s.clients.Get(ctx, order.OrganizationID, order.ClientID)
	if err != nil {
		return nil, apperror.FromStore(op, "client", err)
	}

	inv := billing.Build(*order, items, *client)
	return &inv, nil
}

func (s *invoiceService) PDF(ctx context.Context, p identity.Principal, orderID int64) ([]byte, error) {
	inv, err := s.Get(ctx, p, orderID)
	if err != nil {
		return nil, err
	}
	org, err := s.orgs.GetByID(ctx, inv.Order.OrganizationID)
	if err != nil {
		return nil, apperror.FromStore("invoice.PDF", "organization", err)
	}
	pdf, err := printer.GenerateInvoice(*inv, org.Name)
	if err != nil {
		return nil, apperror.Internal("invoice.PDF", err)
	}
	return pdf, nil
}
