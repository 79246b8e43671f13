package repository

import (
	"context"

	"supplychain/internal/model"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// OrderSubtotal is the item sum of one paid order together with the type of
// the client it was sold to
type OrderSubtotal struct {
	OrderID    int64
	ClientType string
	Subtotal   decimal.Decimal
}

type OrderRepository interface {
	Store[model.Order]
	// Items are reached through their order; callers load the order through
	// the scoped store first.
	ListItems(ctx context.Context, orderID int64) ([]model.OrderItem, error)
	GetItem(ctx context.Context, orderID, itemID int64) (*model.OrderItem, error)
	CreateItem(ctx context.Context, item *model.OrderItem) error
	SaveItem(ctx context.Context, item *model.OrderItem) error
	DeleteItem(ctx context.Context, orderID, itemID int64) error
	PaidSubtotals(ctx context.Context, orgID int64) ([]OrderSubtotal, error)
}

type orderRepository struct {
	Store[model.Order]
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) OrderRepository {
	return &orderRepository{Store: NewStore[model.Order](db), db: db}
}

func (r *orderRepository) ListItems(ctx context.Context, orderID int64) ([]model.OrderItem, error) {
	var items []model.OrderItem
	if err := GetDB(ctx, r.db).Where("order_id = ?", orderID).Order("id asc").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *orderRepository) GetItem(ctx context.Context, orderID, itemID int64) (*model.OrderItem, error) {
	var item model.OrderItem
	if err := GetDB(ctx, r.db).Where("order_id = ? AND id = ?", orderID, itemID).First(&item).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *orderRepository) CreateItem(ctx context.Context, item *model.OrderItem) error {
	return GetDB(ctx, r.db).Create(item).Error
}

func (r *orderRepository) SaveItem(ctx context.Context, item *model.OrderItem) error {
	res := GetDB(ctx, r.db).Model(item).
		Where("order_id = ?", item.OrderID).
		Select("product_id", "quantity", "price", "updated_at").
		Updates(item)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *orderRepository) DeleteItem(ctx context.Context, orderID, itemID int64) error {
	res := GetDB(ctx, r.db).Where("order_id = ? AND id = ?", orderID, itemID).Delete(&model.OrderItem{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *orderRepository) PaidSubtotals(ctx context.Context, orgID int64) ([]OrderSubtotal, error) {
	var rows []OrderSubtotal
	err := GetDB(ctx, r.db).Table("orders o").
		Select("o.id AS order_id, c.client_type AS client_type, COALESCE(SUM(oi.price * oi.quantity), 0) AS subtotal").
		Joins("JOIN clients c ON c.id = o.client_id AND c.organization_id = o.organization_id").
		Joins("LEFT JOIN order_items oi ON oi.order_id = o.id").
		Where("o.organization_id = ? AND o.status = ?", orgID, model.OrderStatusSucceeded).
		Group("o.id, c.client_type").
		Scan(&rows).Error
	return rows, err
}
