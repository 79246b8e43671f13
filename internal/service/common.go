package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"supplychain/internal/identity"
	"supplychain/internal/model"
	"supplychain/internal/repository"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Event names pushed to realtime subscribers
const (
	EventOrderPaid      = "order.paid"
	EventDeliveryStatus = "delivery.status"
)

// EventPublisher delivers an event to the subscribers of one organization.
// Publishing never blocks the caller and never fails the operation.
type EventPublisher interface {
	Publish(orgID int64, event string, data interface{})
}

type nopPublisher struct{}

func (nopPublisher) Publish(int64, string, interface{}) {}

// ObjectStore keeps uploaded files and returns their public URL
type ObjectStore interface {
	Upload(ctx context.Context, key string, body io.Reader, contentType string) (string, error)
}

// Page is one page of a list result
type Page[T any] struct {
	Items []T
	Total int64
}

func now() time.Time {
	return time.Now().UTC()
}

type auditor struct {
	repo repository.AuditRepository
}

// record writes one audit row inside the caller's transaction
func (a auditor) record(ctx context.Context, orgID int64, userID uuid.UUID, action, entityType string, entityID int64, details interface{}) error {
	var raw []byte
	if details != nil {
		var err error
		if raw, err = json.Marshal(details); err != nil {
			return fmt.Errorf("failed to encode audit details: %w", err)
		}
	}
	entry := &model.AuditLog{
		OrganizationID: orgID,
		UserID:         userID,
		Action:         action,
		EntityType:     entityType,
		EntityID:       entityID,
		Details:        datatypes.JSON(raw),
	}
	if err := a.repo.Log(ctx, entry); err != nil {
		return fmt.Errorf("failed to write audit log: %w", err)
	}
	return nil
}

func (a auditor) recordAs(ctx context.Context, p identity.Principal, action, entityType string, entityID int64, details interface{}) error {
	return a.record(ctx, p.OrgID(), p.UserID, action, entityType, entityID, details)
}
