package repository

import (
	"context"

	"supplychain/internal/model"

	"gorm.io/gorm"
)

type DeliveryRepository interface {
	Store[model.Delivery]
	FindByOrderID(ctx context.Context, orgID, orderID int64) (*model.Delivery, error)
	AppendStatus(ctx context.Context, update *model.DeliveryStatusUpdate) error
	// StatusLog returns the updates of one delivery, oldest first
	StatusLog(ctx context.Context, deliveryID int64) ([]model.DeliveryStatusUpdate, error)
}

type deliveryRepository struct {
	Store[model.Delivery]
	db *gorm.DB
}

func NewDeliveryRepository(db *gorm.DB) DeliveryRepository {
	return &deliveryRepository{Store: NewStore[model.Delivery](db), db: db}
}

func (r *deliveryRepository) FindByOrderID(ctx context.Context, orgID, orderID int64) (*model.Delivery, error) {
	var d model.Delivery
	if err := GetDB(ctx, r.db).Where("organization_id = ? AND order_id = ?", orgID, orderID).First(&d).Error; err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *deliveryRepository) AppendStatus(ctx context.Context, update *model.DeliveryStatusUpdate) error {
	return GetDB(ctx, r.db).Create(update).Error
}

func (r *deliveryRepository) StatusLog(ctx context.Context, deliveryID int64) ([]model.DeliveryStatusUpdate, error) {
	var log []model.DeliveryStatusUpdate
	if err := GetDB(ctx, r.db).Where("delivery_id = ?", deliveryID).
		Order("timestamp asc, id asc").Find(&log).Error; err != nil {
		return nil, err
	}
	return log, nil
}
