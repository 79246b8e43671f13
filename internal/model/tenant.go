package model

import (
	"time"

	"github.com/google/uuid"
)

// Scoped is implemented by every record owned by an organization
type Scoped interface {
	EntityID() int64
	TenantID() int64
	// Stamp assigns ownership from the acting principal. Client supplied
	// values for these fields are always overwritten.
	Stamp(orgID int64, userID uuid.UUID)
}

// ScopedPtr constrains generic code to pointers of scoped records
type ScopedPtr[T any] interface {
	*T
	Scoped
}

// Tenant holds the ownership columns shared by organization-owned records
type Tenant struct {
	ID             int64     `gorm:"primaryKey" json:"id"`
	OrganizationID int64     `gorm:"not null;index" json:"organization_id"`
	CreatedBy      uuid.UUID `gorm:"type:uuid" json:"created_by"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func (t *Tenant) EntityID() int64 { return t.ID }

func (t *Tenant) TenantID() int64 { return t.OrganizationID }

func (t *Tenant) Stamp(orgID int64, userID uuid.UUID) {
	t.ID = 0
	t.OrganizationID = orgID
	t.CreatedBy = userID
}
