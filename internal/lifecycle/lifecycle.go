package lifecycle

import (
	"fmt"
	"strings"

	"supplychain/internal/apperror"
	"supplychain/internal/model"
)

// CanMarkPaid rejects orders that were already paid
func CanMarkPaid(status model.OrderStatus) error {
	if status == model.OrderStatusSucceeded {
		return apperror.Conflict("lifecycle.CanMarkPaid", "order is already paid")
	}
	return nil
}

// CanEditItems rejects item changes on paid orders
func CanEditItems(status model.OrderStatus) error {
	if status == model.OrderStatusSucceeded {
		return apperror.PreconditionFailed("lifecycle.CanEditItems", "items of a paid order cannot change")
	}
	return nil
}

// ParseDeliveryStatus validates a status name. Matching ignores case.
func ParseDeliveryStatus(s string) (model.DeliveryStatus, error) {
	for _, st := range model.DeliveryStatuses {
		if strings.EqualFold(string(st), strings.TrimSpace(s)) {
			return st, nil
		}
	}
	return "", apperror.Invalid("lifecycle.ParseDeliveryStatus", fmt.Sprintf("unknown delivery status %q", s))
}

// CurrentStatus returns the latest entry of a status log. Ties on timestamp
// are broken by id. ok is false for an empty log.
func CurrentStatus(log []model.DeliveryStatusUpdate) (model.DeliveryStatusUpdate, bool) {
	if len(log) == 0 {
		return model.DeliveryStatusUpdate{}, false
	}
	cur := log[0]
	for _, u := range log[1:] {
		if u.Timestamp.After(cur.Timestamp) || (u.Timestamp.Equal(cur.Timestamp) && u.ID > cur.ID) {
			cur = u
		}
	}
	return cur, true
}

// HasStatus reports whether the log ever reached status
func HasStatus(log []model.DeliveryStatusUpdate, status model.DeliveryStatus) bool {
	for _, u := range log {
		if u.Status == status {
			return true
		}
	}
	return false
}

var strictNext = map[model.DeliveryStatus][]model.DeliveryStatus{
	model.DeliveryPending:   {model.DeliveryPacked},
	model.DeliveryPacked:    {model.DeliveryInTransit},
	model.DeliveryInTransit: {model.DeliveryDelayed, model.DeliveryDelivered},
	model.DeliveryDelayed:   {model.DeliveryInTransit},
	model.DeliveryDelivered: nil,
}

// Machine validates delivery status appends. Permissive mode accepts any
// status except a second Packed; strict mode also enforces forward order.
type Machine struct {
	Strict bool
}

// CheckAppend validates appending next to the given log
func (m Machine) CheckAppend(log []model.DeliveryStatusUpdate, next model.DeliveryStatus) error {
	const op = "lifecycle.CheckAppend"

	if next == model.DeliveryPacked && HasStatus(log, model.DeliveryPacked) {
		return apperror.Conflict(op, "delivery was already packed")
	}
	if !m.Strict {
		return nil
	}

	cur, ok := CurrentStatus(log)
	if !ok {
		if next != model.DeliveryPending {
			return apperror.PreconditionFailed(op, "a new delivery starts as Pending")
		}
		return nil
	}
	for _, allowed := range strictNext[cur.Status] {
		if allowed == next {
			return nil
		}
	}
	return apperror.PreconditionFailed(op, fmt.Sprintf("cannot move delivery from %s to %s", cur.Status, next))
}
