package repository

import (
	"context"
	"time"

	"supplychain/internal/model"
	"supplychain/pkg/pagination"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AccountRepository defines data access for user accounts of the local identity provider
type AccountRepository interface {
	Create(ctx context.Context, user *model.UserAccount) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.UserAccount, error)
	GetByEmail(ctx context.Context, email string) (*model.UserAccount, error)
	ListByOrganization(ctx context.Context, orgID int64, p pagination.Params) ([]model.UserAccount, int64, error)
	SetOrganization(ctx context.Context, id uuid.UUID, orgID int64) error
}

type accountRepository struct {
	db *gorm.DB
}

func NewAccountRepository(db *gorm.DB) AccountRepository {
	return &accountRepository{db: db}
}

func (r *accountRepository) Create(ctx context.Context, user *model.UserAccount) error {
	return GetDB(ctx, r.db).Create(user).Error
}

func (r *accountRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.UserAccount, error) {
	var user model.UserAccount
	if err := GetDB(ctx, r.db).First(&user, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *accountRepository) GetByEmail(ctx context.Context, email string) (*model.UserAccount, error) {
	var user model.UserAccount
	if err := GetDB(ctx, r.db).First(&user, "email = ?", email).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *accountRepository) ListByOrganization(ctx context.Context, orgID int64, p pagination.Params) ([]model.UserAccount, int64, error) {
	var users []model.UserAccount
	var total int64

	db := GetDB(ctx, r.db).Model(&model.UserAccount{}).Where("organization_id = ?", orgID)
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if err := db.Order("created_at asc").Offset(p.Offset).Limit(p.Limit).Find(&users).Error; err != nil {
		return nil, 0, err
	}
	return users, total, nil
}

// SetOrganization attaches an account that has no organization yet
func (r *accountRepository) SetOrganization(ctx context.Context, id uuid.UUID, orgID int64) error {
	res := GetDB(ctx, r.db).Model(&model.UserAccount{}).
		Where("id = ? AND organization_id IS NULL", id).
		Update("organization_id", orgID)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// RefreshTokenRepository stores refresh tokens issued at login
type RefreshTokenRepository interface {
	Create(ctx context.Context, token *model.RefreshToken) error
	GetActive(ctx context.Context, token string, now time.Time) (*model.RefreshToken, error)
	Revoke(ctx context.Context, token string, at time.Time) error
}

type refreshTokenRepository struct {
	db *gorm.DB
}

func NewRefreshTokenRepository(db *gorm.DB) RefreshTokenRepository {
	return &refreshTokenRepository{db: db}
}

func (r *refreshTokenRepository) Create(ctx context.Context, token *model.RefreshToken) error {
	return GetDB(ctx, r.db).Create(token).Error
}

// GetActive reads an unrevoked, unexpired token. Inside a transaction the
// row stays locked until commit, so one token rotates once.
func (r *refreshTokenRepository) GetActive(ctx context.Context, token string, now time.Time) (*model.RefreshToken, error) {
	var rt model.RefreshToken
	if err := GetDB(ctx, r.db).Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("token = ? AND revoked_at IS NULL AND expires_at > ?", token, now).
		First(&rt).Error; err != nil {
		return nil, err
	}
	return &rt, nil
}

// Revoke spends an active token. A token that is unknown or already revoked
// reports gorm.ErrRecordNotFound.
func (r *refreshTokenRepository) Revoke(ctx context.Context, token string, at time.Time) error {
	res := GetDB(ctx, r.db).Model(&model.RefreshToken{}).
		Where("token = ? AND revoked_at IS NULL", token).
		Update("revoked_at", at)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
