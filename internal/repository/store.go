package repository

import (
	"context"
	"fmt"

	"supplychain/pkg/pagination"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Op is a comparison used by Filter
type Op string

const (
	OpEq    Op = "="
	OpGTE   Op = ">="
	OpILike Op = "ILIKE"
)

// Filter restricts a list or count to rows where Column Op Value
type Filter struct {
	Column string
	Op     Op
	Value  interface{}
}

func Eq(column string, v interface{}) Filter { return Filter{Column: column, Op: OpEq, Value: v} }

func Since(column string, v interface{}) Filter { return Filter{Column: column, Op: OpGTE, Value: v} }

// Contains matches a case-insensitive substring
func Contains(column, s string) Filter { return Filter{Column: column, Op: OpILike, Value: s} }

// ListQuery selects one page of a tenant's records
type ListQuery struct {
	Page    pagination.Params
	Filters []Filter
}

// Store is the tenant-scoped persistence of one record type. Every method
// restricts rows to organization_id = orgID; rows of other organizations
// behave exactly like missing rows.
type Store[T any] interface {
	Get(ctx context.Context, orgID, id int64) (*T, error)
	GetForUpdate(ctx context.Context, orgID, id int64) (*T, error)
	List(ctx context.Context, orgID int64, q ListQuery) ([]T, int64, error)
	Count(ctx context.Context, orgID int64, filters ...Filter) (int64, error)
	Create(ctx context.Context, rec *T) error
	Save(ctx context.Context, orgID int64, rec *T) error
	Delete(ctx context.Context, orgID, id int64) error
}

type gormStore[T any] struct {
	db *gorm.DB
}

// NewStore returns the gorm implementation of Store for T
func NewStore[T any](db *gorm.DB) Store[T] {
	return &gormStore[T]{db: db}
}

func (s *gormStore[T]) scoped(ctx context.Context, orgID int64) *gorm.DB {
	return GetDB(ctx, s.db).Model(new(T)).Where("organization_id = ?", orgID)
}

func applyFilters(db *gorm.DB, filters []Filter) *gorm.DB {
	for _, f := range filters {
		v := f.Value
		if f.Op == OpILike {
			v = fmt.Sprintf("%%%v%%", v)
		}
		db = db.Where(fmt.Sprintf("%s %s ?", f.Column, f.Op), v)
	}
	return db
}

func (s *gormStore[T]) Get(ctx context.Context, orgID, id int64) (*T, error) {
	var rec T
	if err := s.scoped(ctx, orgID).Where("id = ?", id).First(&rec).Error; err != nil {
		return nil, err
	}
	return &rec, nil
}

func (s *gormStore[T]) GetForUpdate(ctx context.Context, orgID, id int64) (*T, error) {
	var rec T
	if err := s.scoped(ctx, orgID).Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).First(&rec).Error; err != nil {
		return nil, err
	}
	return &rec, nil
}

func (s *gormStore[T]) List(ctx context.Context, orgID int64, q ListQuery) ([]T, int64, error) {
	var recs []T
	var total int64

	db := applyFilters(s.scoped(ctx, orgID), q.Filters)
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if err := db.Order("id desc").Offset(q.Page.Offset).Limit(q.Page.Limit).Find(&recs).Error; err != nil {
		return nil, 0, err
	}
	return recs, total, nil
}

func (s *gormStore[T]) Count(ctx context.Context, orgID int64, filters ...Filter) (int64, error) {
	var total int64
	err := applyFilters(s.scoped(ctx, orgID), filters).Count(&total).Error
	return total, err
}

func (s *gormStore[T]) Create(ctx context.Context, rec *T) error {
	return GetDB(ctx, s.db).Create(rec).Error
}

// Save writes every column of rec except its identity and ownership. It
// never inserts; an id outside orgID reports gorm.ErrRecordNotFound.
func (s *gormStore[T]) Save(ctx context.Context, orgID int64, rec *T) error {
	res := GetDB(ctx, s.db).Model(rec).
		Where("organization_id = ?", orgID).
		Select("*").Omit("id", "organization_id", "created_by", "created_at", clause.Associations).
		Updates(rec)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (s *gormStore[T]) Delete(ctx context.Context, orgID, id int64) error {
	res := GetDB(ctx, s.db).Where("organization_id = ? AND id = ?", orgID, id).Delete(new(T))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
