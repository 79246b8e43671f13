package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"supplychain/internal/apperror"
	"supplychain/internal/identity"
	"supplychain/internal/lifecycle"
	"supplychain/internal/model"
	"supplychain/internal/policy"
	"supplychain/internal/repository"
	"supplychain/pkg/pagination"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DTOs
type OrderItemRequest struct {
	ProductID int64           `json:"product_id" binding:"required"`
	Quantity  decimal.Decimal `json:"quantity" binding:"required"`
}

type CreateOrderRequest struct {
	ClientID  int64              `json:"client_id" binding:"required"`
	OrderDate *time.Time         `json:"order_date"`
	Items     []OrderItemRequest `json:"items" binding:"dive"`
}

type UpdateOrderRequest struct {
	ClientID  *int64     `json:"client_id"`
	OrderDate *time.Time `json:"order_date"`
}

// MarkPaidResult is the paid order and the delivery created for it
type MarkPaidResult struct {
	Order    *model.Order    `json:"order"`
	Delivery *model.Delivery `json:"delivery"`
}

// OrderPaidEvent is published after a successful MarkPaid
type OrderPaidEvent struct {
	OrderID    int64     `json:"order_id"`
	DeliveryID int64     `json:"delivery_id"`
	PaidAt     time.Time `json:"paid_at"`
}

type OrderService interface {
	Create(ctx context.Context, p identity.Principal, req CreateOrderRequest) (*model.Order, error)
	Get(ctx context.Context, p identity.Principal, id int64) (*model.Order, error)
	List(ctx context.Context, p identity.Principal, params pagination.Params, status string) (Page[model.Order], error)
	Update(ctx context.Context, p identity.Principal, id int64, req UpdateOrderRequest) (*model.Order, error)
	Delete(ctx context.Context, p identity.Principal, id int64) error
	MarkPaid(ctx context.Context, p identity.Principal, id int64) (*MarkPaidResult, error)

	ListItems(ctx context.Context, p identity.Principal, orderID int64) ([]model.OrderItem, error)
	AddItem(ctx context.Context, p identity.Principal, orderID int64, req OrderItemRequest) (*model.OrderItem, error)
	UpdateItem(ctx context.Context, p identity.Principal, orderID, itemID int64, req OrderItemRequest) (*model.OrderItem, error)
	DeleteItem(ctx context.Context, p identity.Principal, orderID, itemID int64) error
}

type orderService struct {
	orders     repository.OrderRepository
	products   repository.Store[model.Product]
	clients    repository.Store[model.Client]
	deliveries repository.DeliveryRepository
	tx         repository.TransactionManager
	policy     *policy.Engine
	audit      auditor
	events     EventPublisher
	log        *zap.Logger
}

func NewOrderService(
	orders repository.OrderRepository,
	products repository.Store[model.Product],
	clients repository.Store[model.Client],
	deliveries repository.DeliveryRepository,
	auditRepo repository.AuditRepository,
	tx repository.TransactionManager,
	engine *policy.Engine,
	events EventPublisher,
	log *zap.Logger,
) OrderService {
	if events == nil {
		events = nopPublisher{}
	}
	return &orderService{
		orders:     orders,
		products:   products,
		clients:    clients,
		deliveries: deliveries,
		tx:         tx,
		policy:     engine,
		audit:      auditor{repo: auditRepo},
		events:     events,
		log:        log,
	}
}

// loadOrder fetches an order of the caller's organization and repeats the
// permission check against it
func (s *orderService) loadOrder(ctx context.Context, p identity.Principal, action policy.Action, id int64, lock bool) (*model.Order, error) {
	op := "order." + string(action)
	var (
		order *model.Order
		err   error
	)
	if lock {
		order, err = s.orders.GetForUpdate(ctx, p.OrgID(), id)
	} else {
		order, err = s.orders.Get(ctx, p.OrgID(), id)
	}
	if err != nil {
		return nil, apperror.FromStore(op, "order", err)
	}
	if err := s.policy.Authorize(p, action, policy.Org(order.OrganizationID)); err != nil {
		return nil, err
	}
	return order, nil
}

// snapshotItem builds an order line priced from the current product
func (s *orderService) snapshotItem(ctx context.Context, orgID, orderID int64, req OrderItemRequest) (*model.OrderItem, error) {
	const op = "order.snapshotItem"
	if !req.Quantity.IsPositive() {
		return nil, apperror.Invalid(op, "quantity must be positive")
	}
	product, err := s.products.Get(ctx, orgID, req.ProductID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.Invalid(op, fmt.Sprintf("product %d does not exist", req.ProductID))
		}
		return nil, apperror.FromStore(op, "product", err)
	}
	return &model.OrderItem{
		OrderID:   orderID,
		ProductID: product.ID,
		Quantity:  req.Quantity,
		Price:     product.Price,
	}, nil
}

func (s *orderService) Create(ctx context.Context, p identity.Principal, req CreateOrderRequest) (*model.Order, error) {
	if err := s.policy.Authorize(p, policy.OrderWrite, nil); err != nil {
		return nil, err
	}

	order := &model.Order{
		ClientID:  req.ClientID,
		Status:    model.OrderStatusPending,
		OrderDate: now(),
	}
	if req.OrderDate != nil {
		order.OrderDate = req.OrderDate.UTC()
	}
	order.Stamp(p.OrgID(), p.UserID)

	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		if err := requireExists(txCtx, s.clients, p.OrgID(), req.ClientID, "order.Create", "client"); err != nil {
			return err
		}
		if err := s.orders.Create(txCtx, order); err != nil {
			return apperror.FromStore("order.Create", "order", err)
		}
		for _, itemReq := range req.Items {
			item, err := s.snapshotItem(txCtx, p.OrgID(), order.ID, itemReq)
			if err != nil {
				return err
			}
			if err := s.orders.CreateItem(txCtx, item); err != nil {
				return apperror.FromStore("order.Create", "order item", err)
			}
			order.Items = append(order.Items, *item)
		}
		return s.audit.recordAs(txCtx, p, model.ActionCreate, "order", order.ID, req)
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

func (s *orderService) Get(ctx context.Context, p identity.Principal, id int64) (*model.Order, error) {
	if err := s.policy.Authorize(p, policy.OrderRead, nil); err != nil {
		return nil, err
	}
	order, err := s.loadOrder(ctx, p, policy.OrderRead, id, false)
	if err != nil {
		return nil, err
	}
	items, err := s.orders.ListItems(ctx, order.ID)
	if err != nil {
		return nil, apperror.FromStore("order.Get", "order item", err)
	}
	order.Items = items
	return order, nil
}

func (s *orderService) List(ctx context.Context, p identity.Principal, params pagination.Params, status string) (Page[model.Order], error) {
	if err := s.policy.Authorize(p, policy.OrderRead, nil); err != nil {
		return Page[model.Order]{}, err
	}
	var filters []repository.Filter
	if status != "" {
		filters = append(filters, repository.Eq("status", status))
	}
	orders, total, err := s.orders.List(ctx, p.OrgID(), repository.ListQuery{Page: params, Filters: filters})
	if err != nil {
		return Page[model.Order]{}, apperror.FromStore("order.List", "order", err)
	}
	return Page[model.Order]{Items: orders, Total: total}, nil
}

func (s *orderService) Update(ctx context.Context, p identity.Principal, id int64, req UpdateOrderRequest) (*model.Order, error) {
	if err := s.policy.Authorize(p, policy.OrderWrite, nil); err != nil {
		return nil, err
	}

	var order *model.Order
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		var err error
		if order, err = s.loadOrder(txCtx, p, policy.OrderWrite, id, true); err != nil {
			return err
		}
		if err := lifecycle.CanEditItems(order.Status); err != nil {
			return err
		}
		if req.ClientID != nil {
			if err := requireExists(txCtx, s.clients, p.OrgID(), *req.ClientID, "order.Update", "client"); err != nil {
				return err
			}
			order.ClientID = *req.ClientID
		}
		if req.OrderDate != nil {
			order.OrderDate = req.OrderDate.UTC()
		}
		if err := s.orders.Save(txCtx, p.OrgID(), order); err != nil {
			return apperror.FromStore("order.Update", "order", err)
		}
		return s.audit.recordAs(txCtx, p, model.ActionUpdate, "order", order.ID, req)
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

// Delete removes an unpaid order with its items
func (s *orderService) Delete(ctx context.Context, p identity.Principal, id int64) error {
	if err := s.policy.Authorize(p, policy.OrderWrite, nil); err != nil {
		return err
	}
	return s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		order, err := s.loadOrder(txCtx, p, policy.OrderWrite, id, true)
		if err != nil {
			return err
		}
		if order.Status == model.OrderStatusSucceeded {
			return apperror.PreconditionFailed("order.Delete", "a paid order cannot be deleted")
		}
		if err := s.orders.Delete(txCtx, p.OrgID(), id); err != nil {
			return apperror.FromStore("order.Delete", "order", err)
		}
		return s.audit.recordAs(txCtx, p, model.ActionDelete, "order", id, nil)
	})
}

// MarkPaid moves an order to Succeeded and opens its delivery. The order row
// lock and the unique delivery order_id make concurrent calls produce exactly
// one delivery; every other caller gets a conflict.
func (s *orderService) MarkPaid(ctx context.Context, p identity.Principal, id int64) (*MarkPaidResult, error) {
	const op = "order.MarkPaid"
	if err := s.policy.Authorize(p, policy.OrderMarkPaid, nil); err != nil {
		return nil, err
	}

	var res MarkPaidResult
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		order, err := s.loadOrder(txCtx, p, policy.OrderMarkPaid, id, true)
		if err != nil {
			return err
		}
		if err := lifecycle.CanMarkPaid(order.Status); err != nil {
			return err
		}

		paidAt := now()
		order.Status = model.OrderStatusSucceeded
		order.PaidAt = &paidAt
		if err := s.orders.Save(txCtx, p.OrgID(), order); err != nil {
			return apperror.FromStore(op, "order", err)
		}

		delivery := &model.Delivery{
			OrderID:   order.ID,
			StartedAt: paidAt,
		}
		delivery.Stamp(order.OrganizationID, p.UserID)
		if err := s.deliveries.Create(txCtx, delivery); err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return apperror.Conflict(op, "order already has a delivery")
			}
			return apperror.FromStore(op, "delivery", err)
		}

		initial := &model.DeliveryStatusUpdate{
			DeliveryID: delivery.ID,
			Status:     model.DeliveryPending,
			Timestamp:  paidAt,
			CreatedBy:  p.UserID,
		}
		if err := s.deliveries.AppendStatus(txCtx, initial); err != nil {
			return apperror.FromStore(op, "delivery status", err)
		}

		if err := s.audit.recordAs(txCtx, p, model.ActionMarkPaid, "order", order.ID, map[string]interface{}{
			"delivery_id": delivery.ID,
			"paid_at":     paidAt,
		}); err != nil {
			return err
		}

		res = MarkPaidResult{Order: order, Delivery: delivery}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.events.Publish(res.Order.OrganizationID, EventOrderPaid, OrderPaidEvent{
		OrderID:    res.Order.ID,
		DeliveryID: res.Delivery.ID,
		PaidAt:     *res.Order.PaidAt,
	})
	s.log.Info("order paid",
		zap.Int64("order_id", res.Order.ID),
		zap.Int64("delivery_id", res.Delivery.ID),
		zap.Int64("organization_id", res.Order.OrganizationID))
	return &res, nil
}

func (s *orderService) ListItems(ctx context.Context, p identity.Principal, orderID int64) ([]model.OrderItem, error) {
	if err := s.policy.Authorize(p, policy.OrderRead, nil); err != nil {
		return nil, err
	}
	order, err := s.loadOrder(ctx, p, policy.OrderRead, orderID, false)
	if err != nil {
		return nil, err
	}
	items, err := s.orders.ListItems(ctx, order.ID)
	if err != nil {
		return nil, apperror.FromStore("order.ListItems", "order item", err)
	}
	return items, nil
}

func (s *orderService) AddItem(ctx context.Context, p identity.Principal, orderID int64, req OrderItemRequest) (*model.OrderItem, error) {
	if err := s.policy.Authorize(p, policy.OrderWrite, nil); err != nil {
		return nil, err
	}

	var item *model.OrderItem
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		order, err := s.loadOrder(txCtx, p, policy.OrderWrite, orderID, true)
		if err != nil {
			return err
		}
		if err := lifecycle.CanEditItems(order.Status); err != nil {
			return err
		}
		if item, err = s.snapshotItem(txCtx, p.OrgID(), order.ID, req); err != nil {
			return err
		}
		if err := s.orders.CreateItem(txCtx, item); err != nil {
			return apperror.FromStore("order.AddItem", "order item", err)
		}
		return s.audit.recordAs(txCtx, p, model.ActionCreate, "order_item", item.ID, item)
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}

func (s *orderService) UpdateItem(ctx context.Context, p identity.Principal, orderID, itemID int64, req OrderItemRequest) (*model.OrderItem, error) {
	if err := s.policy.Authorize(p, policy.OrderWrite, nil); err != nil {
		return nil, err
	}

	var item *model.OrderItem
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		order, err := s.loadOrder(txCtx, p, policy.OrderWrite, orderID, true)
		if err != nil {
			return err
		}
		if err := lifecycle.CanEditItems(order.Status); err != nil {
			return err
		}
		existing, err := s.orders.GetItem(txCtx, order.ID, itemID)
		if err != nil {
			return apperror.FromStore("order.UpdateItem", "order item", err)
		}
		if item, err = s.snapshotItem(txCtx, p.OrgID(), order.ID, req); err != nil {
			return err
		}
		item.ID = existing.ID
		item.CreatedAt = existing.CreatedAt
		if err := s.orders.SaveItem(txCtx, item); err != nil {
			return apperror.FromStore("order.UpdateItem", "order item", err)
		}
		return s.audit.recordAs(txCtx, p, model.ActionUpdate, "order_item", item.ID, item)
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}

func (s *orderService) DeleteItem(ctx context.Context, p identity.Principal, orderID, itemID int64) error {
	if err := s.policy.Authorize(p, policy.OrderWrite, nil); err != nil {
		return err
	}
	return s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		order, err := s.loadOrder(txCtx, p, policy.OrderWrite, orderID, true)
		if err != nil {
			return err
		}
		if err := lifecycle.CanEditItems(order.Status); err != nil {
			return err
		}
		if err := s.orders.DeleteItem(txCtx, order.ID, itemID); err != nil {
			return apperror.FromStore("order.DeleteItem", "order item", err)
		}
		return s.audit.recordAs(txCtx, p, model.ActionDelete, "order_item", itemID, nil)
	})
}
