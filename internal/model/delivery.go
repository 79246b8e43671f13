package model

import (
	"time"

	"github.com/google/uuid"
)

// DeliveryStatus values of the delivery status log
type DeliveryStatus string

const (
	DeliveryPending   DeliveryStatus = "Pending"
	DeliveryPacked    DeliveryStatus = "Packed"
	DeliveryInTransit DeliveryStatus = "In Transit"
	DeliveryDelayed   DeliveryStatus = "Delayed"
	DeliveryDelivered DeliveryStatus = "Delivered"
)

// DeliveryStatuses lists the accepted status values
var DeliveryStatuses = []DeliveryStatus{
	DeliveryPending,
	DeliveryPacked,
	DeliveryInTransit,
	DeliveryDelayed,
	DeliveryDelivered,
}

// Delivery ships exactly one order
type Delivery struct {
	Tenant
	OrderID              int64      `gorm:"not null;uniqueIndex" json:"order_id"`
	DriverID             *int64     `gorm:"index" json:"driver_id"`
	DestinationName      string     `gorm:"type:varchar(255)" json:"destination_name"`
	DestinationLongitude *float64   `json:"destination_longitude"`
	DestinationLatitude  *float64   `json:"destination_latitude"`
	DeliveryInstructions string     `gorm:"type:varchar(255)" json:"delivery_instructions"`
	StartedAt            time.Time  `json:"started_at"`
	DeliveredAt          *time.Time `json:"delivered_at"`
	ClientSignature      *string    `json:"client_signature"` // object URL of the uploaded signature
}

// DeliveryStatusUpdate is one append-only row of a delivery's status log.
// The current status is the row with the latest timestamp.
type DeliveryStatusUpdate struct {
	ID         int64          `gorm:"primaryKey" json:"id"`
	DeliveryID int64          `gorm:"not null;index;uniqueIndex:idx_delivery_packed_once,where:status = 'Packed'" json:"delivery_id"`
	Delivery   *Delivery      `gorm:"foreignKey:DeliveryID;constraint:OnDelete:CASCADE" json:"-"`
	Status     DeliveryStatus `gorm:"type:varchar(50);not null" json:"status"`
	Timestamp  time.Time      `gorm:"not null;index" json:"timestamp"`
	Notes      string         `gorm:"type:text" json:"notes,omitempty"`
	CreatedBy  uuid.UUID      `gorm:"type:uuid" json:"created_by"`
}
