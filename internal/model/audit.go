package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	ActionCreate        = "CREATE"
	ActionUpdate        = "UPDATE"
	ActionDelete        = "DELETE"
	ActionMarkPaid      = "MARK_PAID"
	ActionAppendStatus  = "APPEND_DELIVERY_STATUS"
	ActionDecrement     = "DECREMENT_STOCK"
	ActionSelectQuote   = "SELECT_QUOTATION"
	ActionCloseRFQ      = "CLOSE_RFQ"
	ActionUploadSign    = "UPLOAD_SIGNATURE"
	ActionJoinOrg       = "JOIN_ORGANIZATION"
	ActionCreateAccount = "CREATE_ACCOUNT"
)

// AuditLog tracks Who, What, and When for critical changes inside a tenant
type AuditLog struct {
	ID             int64          `gorm:"primaryKey" json:"id"`
	OrganizationID int64          `gorm:"not null;index" json:"organization_id"`
	UserID         uuid.UUID      `gorm:"type:uuid;index" json:"user_id"`
	Action         string         `gorm:"type:varchar(50);not null;index" json:"action"`
	EntityType     string         `gorm:"type:varchar(50);not null" json:"entity_type"`
	EntityID       int64          `gorm:"index" json:"entity_id"`
	Details        datatypes.JSON `gorm:"type:jsonb" json:"details"`
	CreatedAt      time.Time      `gorm:"index" json:"created_at"`
}
