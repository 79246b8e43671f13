package repository

import (
	"context"
	"errors"

	"supplychain/internal/model"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrInsufficientStock is returned when a decrement would drop stock below zero
var ErrInsufficientStock = errors.New("insufficient stock")

type ProductRepository interface {
	Store[model.Product]
	// DecrementStock subtracts qty in one conditional update and returns the
	// remaining quantity. A missing product reports gorm.ErrRecordNotFound.
	DecrementStock(ctx context.Context, orgID, productID int64, qty decimal.Decimal) (decimal.Decimal, error)
}

type productRepository struct {
	Store[model.Product]
	db *gorm.DB
}

func NewProductRepository(db *gorm.DB) ProductRepository {
	return &productRepository{Store: NewStore[model.Product](db), db: db}
}

func (r *productRepository) DecrementStock(ctx context.Context, orgID, productID int64, qty decimal.Decimal) (decimal.Decimal, error) {
	var product model.Product
	res := GetDB(ctx, r.db).Model(&product).
		Clauses(clause.Returning{Columns: []clause.Column{{Name: "quantity"}}}).
		Where("id = ? AND organization_id = ? AND quantity >= ?", productID, orgID, qty).
		Update("quantity", gorm.Expr("quantity - ?", qty))
	if res.Error != nil {
		return decimal.Zero, res.Error
	}
	if res.RowsAffected == 1 {
		return product.Quantity, nil
	}

	if _, err := r.Get(ctx, orgID, productID); err != nil {
		return decimal.Zero, err
	}
	return decimal.Zero, ErrInsufficientStock
}
