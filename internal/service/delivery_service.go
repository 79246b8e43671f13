package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"supplychain/internal/apperror"
	"supplychain/internal/identity"
	"supplychain/internal/lifecycle"
	"supplychain/internal/model"
	"supplychain/internal/policy"
	"supplychain/internal/printer"
	"supplychain/internal/repository"
	"supplychain/pkg/pagination"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DTOs
type CreateDeliveryRequest struct {
	OrderID int64 `json:"order_id" binding:"required"`
	UpdateDeliveryRequest
}

type UpdateDeliveryRequest struct {
	DriverID             *int64   `json:"driver_id"`
	DestinationName      string   `json:"destination_name"`
	DestinationLongitude *float64 `json:"destination_longitude"`
	DestinationLatitude  *float64 `json:"destination_latitude"`
	DeliveryInstructions string   `json:"delivery_instructions"`
}

func (r UpdateDeliveryRequest) apply(d *model.Delivery) {
	d.DriverID = r.DriverID
	d.DestinationName = r.DestinationName
	d.DestinationLongitude = r.DestinationLongitude
	d.DestinationLatitude = r.DestinationLatitude
	d.DeliveryInstructions = r.DeliveryInstructions
}

type AppendStatusRequest struct {
	Status string `json:"status" binding:"required"`
	Notes  string `json:"notes"`
}

// DeliveryStatusEvent is published after every status append
type DeliveryStatusEvent struct {
	DeliveryID int64                      `json:"delivery_id"`
	OrderID    int64                      `json:"order_id"`
	Update     model.DeliveryStatusUpdate `json:"update"`
}

// signatureTypes maps accepted upload content types to file extensions
var signatureTypes = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/webp": ".webp",
}

type DeliveryService interface {
	Get(ctx context.Context, p identity.Principal, id int64) (*model.Delivery, error)
	List(ctx context.Context, p identity.Principal, params pagination.Params) (Page[model.Delivery], error)
	ListByDriver(ctx context.Context, p identity.Principal, driverID int64, params pagination.Params) (Page[model.Delivery], error)
	Create(ctx context.Context, p identity.Principal, req CreateDeliveryRequest) (*model.Delivery, error)
	Update(ctx context.Context, p identity.Principal, id int64, req UpdateDeliveryRequest) (*model.Delivery, error)
	Delete(ctx context.Context, p identity.Principal, id int64) error
	AppendStatus(ctx context.Context, p identity.Principal, id int64, req AppendStatusRequest) (*model.DeliveryStatusUpdate, error)
	StatusLog(ctx context.Context, p identity.Principal, id int64) ([]model.DeliveryStatusUpdate, error)
	UploadSignature(ctx context.Context, p identity.Principal, id int64, contentType string, body io.Reader) (*model.Delivery, error)
	Label(ctx context.Context, p identity.Principal, id int64) ([]byte, error)
}

type deliveryService struct {
	deliveries repository.DeliveryRepository
	orders     repository.OrderRepository
	products   repository.ProductRepository
	drivers    repository.Store[model.Driver]
	movements  repository.Store[model.StockMovement]
	orgs       repository.OrganizationRepository
	objects    ObjectStore
	tx         repository.TransactionManager
	policy     *policy.Engine
	machine    lifecycle.Machine
	audit      auditor
	events     EventPublisher
	log        *zap.Logger
}

// DeliveryDeps groups the collaborators of the delivery service
type DeliveryDeps struct {
	Deliveries repository.DeliveryRepository
	Orders     repository.OrderRepository
	Products   repository.ProductRepository
	Drivers    repository.Store[model.Driver]
	Movements  repository.Store[model.StockMovement]
	Orgs       repository.OrganizationRepository
	Audit      repository.AuditRepository
	Objects    ObjectStore
	Tx         repository.TransactionManager
	Policy     *policy.Engine
	Machine    lifecycle.Machine
	Events     EventPublisher
	Log        *zap.Logger
}

func NewDeliveryService(d DeliveryDeps) DeliveryService {
	if d.Events == nil {
		d.Events = nopPublisher{}
	}
	return &deliveryService{
		deliveries: d.Deliveries,
		orders:     d.Orders,
		products:   d.Products,
		drivers:    d.Drivers,
		movements:  d.Movements,
		orgs:       d.Orgs,
		objects:    d.Objects,
		tx:         d.Tx,
		policy:     d.Policy,
		machine:    d.Machine,
		audit:      auditor{repo: d.Audit},
		events:     d.Events,
		log:        d.Log,
	}
}

func (s *deliveryService) load(ctx context.Context, p identity.Principal, action policy.Action, id int64, lock bool) (*model.Delivery, error) {
	if err := s.policy.Authorize(p, action, nil); err != nil {
		return nil, err
	}
	var (
		d   *model.Delivery
		err error
	)
	if lock {
		d, err = s.deliveries.GetForUpdate(ctx, p.OrgID(), id)
	} else {
		d, err = s.deliveries.Get(ctx, p.OrgID(), id)
	}
	if err != nil {
		return nil, apperror.FromStore("delivery."+string(action), "delivery", err)
	}
	if err := s.policy.Authorize(p, action, policy.Org(d.OrganizationID)); err != nil {
		return nil, err
	}
	return d, nil
}

func (s *deliveryService) Get(ctx context.Context, p identity.Principal, id int64) (*model.Delivery, error) {
	return s.load(ctx, p, policy.DeliveryView, id, false)
}

func (s *deliveryService) List(ctx context.Context, p identity.Principal, params pagination.Params) (Page[model.Delivery], error) {
	return s.list(ctx, p, policy.DeliveryList, params)
}

func (s *deliveryService) ListByDriver(ctx context.Context, p identity.Principal, driverID int64, params pagination.Params) (Page[model.Delivery], error) {
	return s.list(ctx, p, policy.DeliveryListByDriver, params, repository.Eq("driver_id", driverID))
}

func (s *deliveryService) list(ctx context.Context, p identity.Principal, action policy.Action, params pagination.Params, filters ...repository.Filter) (Page[model.Delivery], error) {
	if err := s.policy.Authorize(p, action, nil); err != nil {
		return Page[model.Delivery]{}, err
	}
	recs, total, err := s.deliveries.List(ctx, p.OrgID(), repository.ListQuery{Page: params, Filters: filters})
	if err != nil {
		return Page[model.Delivery]{}, apperror.FromStore("delivery.List", "delivery", err)
	}
	return Page[model.Delivery]{Items: recs, Total: total}, nil
}

func (s *deliveryService) checkDriver(ctx context.Context, orgID int64, driverID *int64, op string) error {
	if driverID == nil {
		return nil
	}
	return requireExists(ctx, s.drivers, orgID, *driverID, op, "driver")
}

// Create opens a delivery by hand for a paid order that has none
func (s *deliveryService) Create(ctx context.Context, p identity.Principal, req CreateDeliveryRequest) (*model.Delivery, error) {
	const op = "delivery.Create"
	if err := s.policy.Authorize(p, policy.DeliveryCreate, nil); err != nil {
		return nil, err
	}

	d := &model.Delivery{OrderID: req.OrderID}
	req.UpdateDeliveryRequest.apply(d)
	d.Stamp(p.OrgID(), p.UserID)

	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		order, err := s.orders.GetForUpdate(txCtx, p.OrgID(), req.OrderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperror.Invalid(op, "order does not exist")
			}
			return apperror.FromStore(op, "order", err)
		}
		if order.Status != model.OrderStatusSucceeded {
			return apperror.PreconditionFailed(op, "order is not paid")
		}
		if _, err := s.deliveries.FindByOrderID(txCtx, p.OrgID(), order.ID); err == nil {
			return apperror.Conflict(op, "order already has a delivery")
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return apperror.FromStore(op, "delivery", err)
		}
		if err := s.checkDriver(txCtx, p.OrgID(), d.DriverID, op); err != nil {
			return err
		}

		d.StartedAt = now()
		if err := s.deliveries.Create(txCtx, d); err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return apperror.Conflict(op, "order already has a delivery")
			}
			return apperror.FromStore(op, "delivery", err)
		}
		if err := s.deliveries.AppendStatus(txCtx, &model.DeliveryStatusUpdate{
			DeliveryID: d.ID,
			Status:     model.DeliveryPending,
			Timestamp:  d.StartedAt,
			CreatedBy:  p.UserID,
		}); err != nil {
			return apperror.FromStore(op, "delivery status", err)
		}
		return s.audit.recordAs(txCtx, p, model.ActionCreate, "delivery", d.ID, req)
	})
	if err != nil {
		return nil, err
	}
	return d, nil
}

func (s *deliveryService) Update(ctx context.Context, p identity.Principal, id int64, req UpdateDeliveryRequest) (*model.Delivery, error) {
	const op = "delivery.Update"
	var d *model.Delivery
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		var err error
		if d, err = s.load(txCtx, p, policy.DeliveryUpdate, id, true); err != nil {
			return err
		}
		if err := s.checkDriver(txCtx, d.OrganizationID, req.DriverID, op); err != nil {
			return err
		}
		req.apply(d)
		if err := s.deliveries.Save(txCtx, d.OrganizationID, d); err != nil {
			return apperror.FromStore(op, "delivery", err)
		}
		return s.audit.recordAs(txCtx, p, model.ActionUpdate, "delivery", d.ID, req)
	})
	if err != nil {
		return nil, err
	}
	return d, nil
}

// Delete removes a delivery whose current status is still Pending
func (s *deliveryService) Delete(ctx context.Context, p identity.Principal, id int64) error {
	const op = "delivery.Delete"
	return s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		d, err := s.load(txCtx, p, policy.DeliveryDelete, id, true)
		if err != nil {
			return err
		}
		log, err := s.deliveries.StatusLog(txCtx, d.ID)
		if err != nil {
			return apperror.FromStore(op, "delivery status", err)
		}
		// a delivery that ever left Pending may have moved stock
		for _, u := range log {
			if u.Status != model.DeliveryPending {
				return apperror.PreconditionFailed(op, fmt.Sprintf("delivery was %s and can no longer be deleted", u.Status))
			}
		}
		if err := s.deliveries.Delete(txCtx, d.OrganizationID, d.ID); err != nil {
			return apperror.FromStore(op, "delivery", err)
		}
		return s.audit.recordAs(txCtx, p, model.ActionDelete, "delivery", d.ID, nil)
	})
}

// AppendStatus adds one entry to the status log. Packing decrements stock
// for every order item in the same transaction; any failure leaves stock and
// log untouched.
func (s *deliveryService) AppendStatus(ctx context.Context, p identity.Principal, id int64, req AppendStatusRequest) (*model.DeliveryStatusUpdate, error) {
	const op = "delivery.AppendStatus"
	status, err := lifecycle.ParseDeliveryStatus(req.Status)
	if err != nil {
		return nil, err
	}

	var (
		update *model.DeliveryStatusUpdate
		d      *model.Delivery
	)
	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		var err error
		if d, err = s.load(txCtx, p, policy.DeliveryStatusAppend, id, true); err != nil {
			return err
		}
		log, err := s.deliveries.StatusLog(txCtx, d.ID)
		if err != nil {
			return apperror.FromStore(op, "delivery status", err)
		}
		if err := s.machine.CheckAppend(log, status); err != nil {
			return err
		}

		ts := now()
		if cur, ok := lifecycle.CurrentStatus(log); ok && !ts.After(cur.Timestamp) {
			ts = cur.Timestamp.Add(time.Microsecond)
		}
		update = &model.DeliveryStatusUpdate{
			DeliveryID: d.ID,
			Status:     status,
			Timestamp:  ts,
			Notes:      req.Notes,
			CreatedBy:  p.UserID,
		}
		// The Packed row goes first so the partial unique index rejects a
		// concurrent second pack before any stock moves.
		if err := s.deliveries.AppendStatus(txCtx, update); err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return apperror.Conflict(op, "delivery was already packed")
			}
			return apperror.FromStore(op, "delivery status", err)
		}

		switch status {
		case model.DeliveryPacked:
			if err := s.decrementStock(txCtx, p, d); err != nil {
				return err
			}
		case model.DeliveryDelivered:
			d.DeliveredAt = &ts
			if err := s.deliveries.Save(txCtx, d.OrganizationID, d); err != nil {
				return apperror.FromStore(op, "delivery", err)
			}
		}

		return s.audit.recordAs(txCtx, p, model.ActionAppendStatus, "delivery", d.ID, map[string]interface{}{
			"status": status,
			"notes":  req.Notes,
		})
	})
	if err != nil {
		return nil, err
	}

	s.events.Publish(d.OrganizationID, EventDeliveryStatus, DeliveryStatusEvent{
		DeliveryID: d.ID,
		OrderID:    d.OrderID,
		Update:     *update,
	})
	s.log.Info("delivery status appended",
		zap.Int64("delivery_id", d.ID),
		zap.String("status", string(status)),
		zap.Int64("organization_id", d.OrganizationID))
	return update, nil
}

func (s *deliveryService) decrementStock(ctx context.Context, p identity.Principal, d *model.Delivery) error {
	const op = "delivery.Pack"
	items, err := s.orders.ListItems(ctx, d.OrderID)
	if err != nil {
		return apperror.FromStore(op, "order item", err)
	}

	for _, it := range items {
		remaining, err := s.products.DecrementStock(ctx, d.OrganizationID, it.ProductID, it.Quantity)
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			return apperror.PreconditionFailed(op, fmt.Sprintf("product %d no longer exists", it.ProductID))
		case errors.Is(err, repository.ErrInsufficientStock):
			return apperror.PreconditionFailed(op, fmt.Sprintf("insufficient stock for product %d", it.ProductID))
		case err != nil:
			return apperror.FromStore(op, "product", err)
		}

		mv := &model.StockMovement{
			ProductID:       it.ProductID,
			DeliveryID:      &d.ID,
			QuantityChanged: it.Quantity.Neg(),
			StockAfter:      remaining,
		}
		mv.Stamp(d.OrganizationID, p.UserID)
		if err := s.movements.Create(ctx, mv); err != nil {
			return apperror.FromStore(op, "stock movement", err)
		}
		if err := s.audit.recordAs(ctx, p, model.ActionDecrement, "product", it.ProductID, map[string]decimal.Decimal{
			"quantity":    it.Quantity,
			"stock_after": remaining,
		}); err != nil {
			return err
		}
	}
	return nil
}

func (s *deliveryService) StatusLog(ctx context.Context, p identity.Principal, id int64) ([]model.DeliveryStatusUpdate, error) {
	d, err := s.load(ctx, p, policy.DeliveryStatusView, id, false)
	if err != nil {
		return nil, err
	}
	log, err := s.deliveries.StatusLog(ctx, d.ID)
	if err != nil {
		return nil, apperror.FromStore("delivery.StatusLog", "delivery status", err)
	}
	return log, nil
}

// UploadSignature stores the client's signature image and links it to the delivery
func (s *deliveryService) UploadSignature(ctx context.Context, p identity.Principal, id int64, contentType string, body io.Reader) (*model.Delivery, error) {
	const op = "delivery.UploadSignature"
	ext, ok := signatureTypes[strings.ToLower(contentType)]
	if !ok {
		return nil, apperror.Invalid(op, "signature must be a png, jpeg or webp image")
	}

	d, err := s.load(ctx, p, policy.DeliveryStatusAppend, id, false)
	if err != nil {
		return nil, err
	}

	key := path.Join("signatures", fmt.Sprint(d.OrganizationID), fmt.Sprintf("%d-%s%s", d.ID, uuid.NewString(), ext))
	url, err := s.objects.Upload(ctx, key, body, contentType)
	if err != nil {
		return nil, apperror.Unavailable(op, "signature upload failed", err)
	}

	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		locked, err := s.load(txCtx, p, policy.DeliveryStatusAppend, id, true)
		if err != nil {
			return err
		}
		locked.ClientSignature = &url
		if err := s.deliveries.Save(txCtx, locked.OrganizationID, locked); err != nil {
			return apperror.FromStore(op, "delivery", err)
		}
		d = locked
		return s.audit.recordAs(txCtx, p, model.ActionUploadSign, "delivery", locked.ID, map[string]string{"url": url})
	})
	if err != nil {
		return nil, err
	}
	return d, nil
}

// Label renders the parcel label of a delivery
func (s *deliveryService) Label(ctx context.Context, p identity.Principal, id int64) ([]byte, error) {
	const op = "delivery.Label"
	d, err := s.load(ctx, p, policy.DeliveryView, id, false)
	if err != nil {
		return nil, err
	}
	log, err := s.deliveries.StatusLog(ctx, d.ID)
	if err != nil {
		return nil, apperror.FromStore(op, "delivery status", err)
	}
	org, err := s.orgs.GetByID(ctx, d.OrganizationID)
	if err != nil {
		return nil, apperror.FromStore(op, "organization", err)
	}

	label := printer.DeliveryLabel{
		DeliveryID:      d.ID,
		OrderID:         d.OrderID,
		Organization:    org.Name,
		DestinationName: d.DestinationName,
		Instructions:    d.DeliveryInstructions,
	}
	if cur, ok := lifecycle.CurrentStatus(log); ok {
		label.Status = string(cur.Status)
	}

	pdf, err := printer.GenerateDeliveryLabel(label)
	if err != nil {
		return nil, apperror.Internal(op, err)
	}
	return pdf, nil
}
