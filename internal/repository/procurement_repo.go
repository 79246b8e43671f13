package repository

import (
	"context"

	"supplychain/internal/model"
	"supplychain/pkg/pagination"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type ProcurementRepository interface {
	RFQs() Store[model.RFQ]
	CreateQuotation(ctx context.Context, q *model.Quotation) error
	ListQuotations(ctx context.Context, rfqID int64, p pagination.Params) ([]model.Quotation, int64, error)
	GetQuotation(ctx context.Context, rfqID, id int64) (*model.Quotation, error)
	// MarkSelected flags a quotation; a second selection for the same RFQ
	// fails on the partial unique index with gorm.ErrDuplicatedKey.
	MarkSelected(ctx context.Context, rfqID, id int64) error
	SelectedExpense(ctx context.Context, orgID int64) (decimal.Decimal, error)
}

type procurementRepository struct {
	rfqs Store[model.RFQ]
	db   *gorm.DB
}

func NewProcurementRepository(db *gorm.DB) ProcurementRepository {
	return &procurementRepository{rfqs: NewStore[model.RFQ](db), db: db}
}

func (r *procurementRepository) RFQs() Store[model.RFQ] {
	return r.rfqs
}

func (r *procurementRepository) CreateQuotation(ctx context.Context, q *model.Quotation) error {
	return GetDB(ctx, r.db).Create(q).Error
}

func (r *procurementRepository) ListQuotations(ctx context.Context, rfqID int64, p pagination.Params) ([]model.Quotation, int64, error) {
	var quotes []model.Quotation
	var total int64

	db := GetDB(ctx, r.db).Model(&model.Quotation{}).Where("rfq_id = ?", rfqID)
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if err := db.Order("id asc").Offset(p.Offset).Limit(p.Limit).Find(&quotes).Error; err != nil {
		return nil, 0, err
	}
	return quotes, total, nil
}

func (r *procurementRepository) GetQuotation(ctx context.Context, rfqID, id int64) (*model.Quotation, error) {
	var q model.Quotation
	if err := GetDB(ctx, r.db).Where("rfq_id = ? AND id = ?", rfqID, id).First(&q).Error; err != nil {
		return nil, err
	}
	return &q, nil
}

func (r *procurementRepository) MarkSelected(ctx context.Context, rfqID, id int64) error {
	res := GetDB(ctx, r.db).Model(&model.Quotation{}).
		Where("rfq_id = ? AND id = ?", rfqID, id).
		Update("selected", true)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *procurementRepository) SelectedExpense(ctx context.Context, orgID int64) (decimal.Decimal, error) {
	var total decimal.NullDecimal
	row := GetDB(ctx, r.db).Table("quotations q").
		Select("SUM(q.price * q.quantity)").
		Joins("JOIN rfqs r ON r.id = q.rfq_id").
		Where("r.organization_id = ? AND q.selected = ?", orgID, true).
		Row()
	if err := row.Scan(&total); err != nil {
		return decimal.Zero, err
	}
	if !total.Valid {
		return decimal.Zero, nil
	}
	return total.Decimal, nil
}
