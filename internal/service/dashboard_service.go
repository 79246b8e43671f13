package service

import (
	"context"
	"time"

	"supplychain/internal/apperror"
	"supplychain/internal/billing"
	"supplychain/internal/identity"
	"supplychain/internal/model"
	"supplychain/internal/policy"
	"supplychain/internal/repository"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// DashboardResponse holds the organization totals
type DashboardResponse struct {
	Revenue                  decimal.Decimal `json:"revenue"`
	Expense                  decimal.Decimal `json:"expense"`
	TotalOrders              int64           `json:"total_orders"`
	OrdersToday              int64           `json:"orders_today"`
	TotalDeliveries          int64           `json:"total_deliveries"`
	DeliveriesDeliveredToday int64           `json:"deliveries_delivered_today"`
	TotalProducts            int64           `json:"total_products"`
	TotalWarehouses          int64           `json:"total_warehouses"`
	TotalDrivers             int64           `json:"total_drivers"`
}

type DashboardService interface {
	Totals(ctx context.Context, p identity.Principal) (*DashboardResponse, error)
}

// DashboardDeps groups the stores read by the dashboard
type DashboardDeps struct {
	Orders      repository.OrderRepository
	Deliveries  repository.DeliveryRepository
	Products    repository.Store[model.Product]
	Warehouses  repository.Store[model.Warehouse]
	Drivers     repository.Store[model.Driver]
	Procurement repository.ProcurementRepository
	Policy      *policy.Engine
}

type dashboardService struct {
	d DashboardDeps
}

func NewDashboardService(d DashboardDeps) DashboardService {
	return &dashboardService{d: d}
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// Totals runs every counter concurrently; the first failure cancels the rest
func (s *dashboardService) Totals(ctx context.Context, p identity.Principal) (*DashboardResponse, error) {
	const op = "dashboard.Totals"
	if err := s.d.Policy.Authorize(p, policy.DashboardView, nil); err != nil {
		return nil, err
	}
	org := p.OrgID()
	today := startOfDay(now())

	var res DashboardResponse
	g, gctx := errgroup.WithContext(ctx)

	count := func(dst *int64, fn func(context.Context) (int64, error)) {
		g.Go(func() error {
			n, err := fn(gctx)
			if err != nil {
				return err
			}
			*dst = n
			return nil
		})
	}

	count(&res.TotalOrders, func(ctx context.Context) (int64, error) { return s.d.Orders.Count(ctx, org) })
	count(&res.OrdersToday, func(ctx context.Context) (int64, error) {
		return s.d.Orders.Count(ctx, org, repository.Since("created_at", today))
	})
	count(&res.TotalDeliveries, func(ctx context.Context) (int64, error) { return s.d.Deliveries.Count(ctx, org) })
	count(&res.DeliveriesDeliveredToday, func(ctx context.Context) (int64, error) {
		return s.d.Deliveries.Count(ctx, org, repository.Since("delivered_at", today))
	})
	count(&res.TotalProducts, func(ctx context.Context) (int64, error) { return s.d.Products.Count(ctx, org) })
	count(&res.TotalWarehouses, func(ctx context.Context) (int64, error) { return s.d.Warehouses.Count(ctx, org) })
	count(&res.TotalDrivers, func(ctx context.Context) (int64, error) { return s.d.Drivers.Count(ctx, org) })

	g.Go(func() error {
		rows, err := s.d.Orders.PaidSubtotals(gctx, org)
		if err != nil {
			return err
		}
		revenue := decimal.Zero
		for _, r := range rows {
			revenue = revenue.Add(billing.ApplyClientRate(r.Subtotal, r.ClientType))
		}
		res.Revenue = revenue
		return nil
	})
	g.Go(func() error {
		expense, err := s.d.Procurement.SelectedExpense(gctx, org)
		if err != nil {
			return err
		}
		res.Expense = expense
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, apperror.FromStore(op, "dashboard", err)
	}
	return &res, nil
}
