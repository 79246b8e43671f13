package model

import (
	"github.com/google/uuid"
)

// ClientType drives the invoice discount
const (
	ClientTypeShop        = "Shop"
	ClientTypeDistributor = "Distributor"
)

// Client is a customer placing sales orders
type Client struct {
	Tenant
	CompanyName   string `gorm:"type:varchar(255);not null" json:"company_name"`
	ContactPerson string `gorm:"type:varchar(255)" json:"contact_person"`
	Email         string `gorm:"type:varchar(255)" json:"email"`
	Phone         string `gorm:"type:varchar(20)" json:"phone"`
	ClientType    string `gorm:"type:varchar(50);not null;default:'Shop'" json:"client_type"`
}

// Supplier answers RFQs with quotations
type Supplier struct {
	Tenant
	// UserID is the supplier-role login allowed to quote for this supplier
	UserID        *uuid.UUID `gorm:"type:uuid;index" json:"user_id"`
	CompanyName   string     `gorm:"type:varchar(255);not null" json:"company_name"`
	ContactPerson string     `gorm:"type:varchar(255)" json:"contact_person"`
	Email         string     `gorm:"type:varchar(255)" json:"email"`
	Phone         string     `gorm:"type:varchar(20)" json:"phone"`
}

// Driver carries deliveries. UserID links the driver to a login when present.
type Driver struct {
	Tenant
	UserID          *uuid.UUID `gorm:"type:uuid;index" json:"user_id"`
	Name            string     `gorm:"type:varchar(255);not null" json:"name"`
	Email           string     `gorm:"type:varchar(255)" json:"email"`
	Phone           string     `gorm:"type:varchar(20)" json:"phone"`
	CarLicensePlate string     `gorm:"type:varchar(15)" json:"car_license_plate"`
	DriverLicenseID string     `gorm:"type:varchar(20)" json:"driver_license_id"`
}
