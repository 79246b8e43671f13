package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Organization is the tenant root. Every other business record carries its id.
type Organization struct {
	ID          int64     `gorm:"primaryKey" json:"id"`
	OwnerUserID uuid.UUID `gorm:"type:uuid;index" json:"owner_user_id"`
	Name        string    `gorm:"type:varchar(255);not null" json:"name"`
	Address     string    `gorm:"type:text" json:"address"`
	PhoneNumber string    `gorm:"type:varchar(20)" json:"phone_number"`
	Email       string    `gorm:"type:varchar(255)" json:"email"`
	Website     string    `gorm:"type:varchar(255)" json:"website"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// UserAccount is the identity provider's user record
type UserAccount struct {
	ID             uuid.UUID      `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Email          string         `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`
	DisplayName    string         `gorm:"type:varchar(255)" json:"display_name"`
	PasswordHash   string         `gorm:"type:varchar(255);not null" json:"-"`
	Role           Role           `gorm:"type:varchar(30);not null" json:"role"`
	OrganizationID *int64         `gorm:"index" json:"organization_id"`
	CreatedAt      time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt      gorm.DeletedAt `gorm:"index" json:"-"`
}

// RefreshToken stores long-lived tokens allowing users to request new access tokens
type RefreshToken struct {
	ID        uuid.UUID   `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	UserID    uuid.UUID   `gorm:"type:uuid;not null;index" json:"user_id"`
	User      UserAccount `gorm:"foreignKey:UserID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	Token     string      `gorm:"type:varchar(255);uniqueIndex;not null" json:"token"`
	ExpiresAt time.Time   `gorm:"not null" json:"expires_at"`
	RevokedAt *time.Time  `json:"revoked_at"`
	CreatedAt time.Time   `gorm:"autoCreateTime" json:"created_at"`
}
