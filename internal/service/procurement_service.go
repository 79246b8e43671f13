package service

import (
	"context"
	"errors"
	"time"

	"supplychain/internal/apperror"
	"supplychain/internal/identity"
	"supplychain/internal/model"
	"supplychain/internal/notify"
	"supplychain/internal/policy"
	"supplychain/internal/repository"
	"supplychain/pkg/pagination"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DTOs
type CreateRFQRequest struct {
	ProductID        int64           `json:"product_id" binding:"required"`
	RequiredQuantity decimal.Decimal `json:"required_quantity" binding:"required"`
	Description      string          `json:"description"`
}

type SubmitQuotationRequest struct {
	SupplierID   int64           `json:"supplier_id" binding:"required"`
	Price        decimal.Decimal `json:"price" binding:"required"`
	Quantity     decimal.Decimal `json:"quantity" binding:"required"`
	DeliveryDate *time.Time      `json:"delivery_date"`
}

// SelectionResult reports the selected quotation. NotificationError is set
// when the supplier email could not be sent; the selection still stands.
type SelectionResult struct {
	Quotation         *model.Quotation `json:"quotation"`
	RFQ               *model.RFQ       `json:"rfq"`
	NotificationError string           `json:"notification_error,omitempty"`
}

// Notifier sends supplier notifications
type Notifier interface {
	SendQuotationSelected(ctx context.Context, to string, msg notify.QuotationSelected) error
}

type ProcurementService interface {
	CreateRFQ(ctx context.Context, p identity.Principal, req CreateRFQRequest) (*model.RFQ, error)
	GetRFQ(ctx context.Context, p identity.Principal, id int64) (*model.RFQ, error)
	ListRFQs(ctx context.Context, p identity.Principal, params pagination.Params, status string) (Page[model.RFQ], error)
	CloseRFQ(ctx context.Context, p identity.Principal, id int64) (*model.RFQ, error)
	SubmitQuotation(ctx context.Context, p identity.Principal, rfqID int64, req SubmitQuotationRequest) (*model.Quotation, error)
	ListQuotations(ctx context.Context, p identity.Principal, rfqID int64, params pagination.Params) (Page[model.Quotation], error)
	SelectQuotation(ctx context.Context, p identity.Principal, rfqID, quotationID int64) (*SelectionResult, error)
}

type procurementService struct {
	repo      repository.ProcurementRepository
	products  repository.Store[model.Product]
	suppliers repository.Store[model.Supplier]
	orgs      repository.OrganizationRepository
	tx        repository.TransactionManager
	policy    *policy.Engine
	audit     auditor
	notifier  Notifier
	log       *zap.Logger
}

func NewProcurementService(
	repo repository.ProcurementRepository,
	products repository.Store[model.Product],
	suppliers repository.Store[model.Supplier],
	orgs repository.OrganizationRepository,
	auditRepo repository.AuditRepository,
	tx repository.TransactionManager,
	engine *policy.Engine,
	notifier Notifier,
	log *zap.Logger,
) ProcurementService {
	return &procurementService{
		repo:      repo,
		products:  products,
		suppliers: suppliers,
		orgs:      orgs,
		tx:        tx,
		policy:    engine,
		audit:     auditor{repo: auditRepo},
		notifier:  notifier,
		log:       log,
	}
}

func (s *procurementService) loadRFQ(ctx context.Context, p identity.Principal, action policy.Action, id int64, lock bool) (*model.RFQ, error) {
	if err := s.policy.Authorize(p, action, nil); err != nil {
		return nil, err
	}
	var (
		rfq *model.RFQ
		err error
	)
	if lock {
		rfq, err = s.repo.RFQs().GetForUpdate(ctx, p.OrgID(), id)
	} else {
		rfq, err = s.repo.RFQs().Get(ctx, p.OrgID(), id)
	}
	if err != nil {
		return nil, apperror.FromStore("procurement."+string(action), "rfq", err)
	}
	if err := s.policy.Authorize(p, action, policy.Org(rfq.OrganizationID)); err != nil {
		return nil, err
	}
	return rfq, nil
}

func (s *procurementService) CreateRFQ(ctx context.Context, p identity.Principal, req CreateRFQRequest) (*model.RFQ, error) {
	const op = "procurement.CreateRFQ"
	if err := s.policy.Authorize(p, policy.RFQWrite, nil); err != nil {
		return nil, err
	}
	if !req.RequiredQuantity.IsPositive() {
		return nil, apperror.Invalid(op, "required_quantity must be positive")
	}

	rfq := &model.RFQ{
		ProductID:        req.ProductID,
		RequiredQuantity: req.RequiredQuantity,
		Description:      req.Description,
		Status:           model.RFQOpen,
	}
	rfq.Stamp(p.OrgID(), p.UserID)

	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		if err := requireExists(txCtx, s.products, p.OrgID(), req.ProductID, op, "product"); err != nil {
			return err
		}
		if err := s.repo.RFQs().Create(txCtx, rfq); err != nil {
			return apperror.FromStore(op, "rfq", err)
		}
		return s.audit.recordAs(txCtx, p, model.ActionCreate, "rfq", rfq.ID, req)
	})
	if err != nil {
		return nil, err
	}
	return rfq, nil
}

func (s *procurementService) GetRFQ(ctx context.Context, p identity.Principal, id int64) (*model.RFQ, error) {
	return s.loadRFQ(ctx, p, policy.RFQRead, id, false)
}

func (s *procurementService) ListRFQs(ctx context.Context, p identity.Principal, params pagination.Params, status string) (Page[model.RFQ], error) {
	if err := s.policy.Authorize(p, policy.RFQRead, nil); err != nil {
		return Page[model.RFQ]{}, err
	}
	var filters []repository.Filter
	if status != "" {
		filters = append(filters, repository.Eq("status", status))
	}
	recs, total, err := s.repo.RFQs().List(ctx, p.OrgID(), repository.ListQuery{Page: params, Filters: filters})
	if err != nil {
		return Page[model.RFQ]{}, apperror.FromStore("procurement.ListRFQs", "rfq", err)
	}
	return Page[model.RFQ]{Items: recs, Total: total}, nil
}

func (s *procurementService) CloseRFQ(ctx context.Context, p identity.Principal, id int64) (*model.RFQ, error) {
	var rfq *model.RFQ
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		var err error
		if rfq, err = s.loadRFQ(txCtx, p, policy.RFQWrite, id, true); err != nil {
			return err
		}
		if rfq.Status == model.RFQClosed {
			return nil
		}
		rfq.Status = model.RFQClosed
		if err := s.repo.RFQs().Save(txCtx, rfq.OrganizationID, rfq); err != nil {
			return apperror.FromStore("procurement.CloseRFQ", "rfq", err)
		}
		return s.audit.recordAs(txCtx, p, model.ActionCloseRFQ, "rfq", rfq.ID, nil)
	})
	if err != nil {
		return nil, err
	}
	return rfq, nil
}

func (s *procurementService) SubmitQuotation(ctx context.Context, p identity.Principal, rfqID int64, req SubmitQuotationRequest) (*model.Quotation, error) {
	const op = "procurement.SubmitQuotation"
	if !req.Price.IsPositive() || !req.Quantity.IsPositive() {
		return nil, apperror.Invalid(op, "price and quantity must be positive")
	}

	var q *model.Quotation
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		rfq, err := s.loadRFQ(txCtx, p, policy.QuotationSubmit, rfqID, false)
		if err != nil {
			return err
		}
		if rfq.Status != model.RFQOpen {
			return apperror.PreconditionFailed(op, "rfq is closed")
		}
		supplier, err := s.suppliers.Get(txCtx, rfq.OrganizationID, req.SupplierID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperror.Invalid(op, "supplier does not exist")
			}
			return apperror.FromStore(op, "supplier", err)
		}
		// a supplier login quotes only for the supplier it is linked to
		if p.Role == model.RoleSupplier && (supplier.UserID == nil || *supplier.UserID != p.UserID) {
			return apperror.Forbidden(op, "Access denied: quotation must be submitted for your own supplier")
		}

		q = &model.Quotation{
			RFQID:        rfq.ID,
			SupplierID:   req.SupplierID,
			Price:        req.Price,
			Quantity:     req.Quantity,
			DeliveryDate: req.DeliveryDate,
			CreatedBy:    p.UserID,
		}
		if err := s.repo.CreateQuotation(txCtx, q); err != nil {
			return apperror.FromStore(op, "quotation", err)
		}
		return s.audit.recordAs(txCtx, p, model.ActionCreate, "quotation", q.ID, req)
	})
	if err != nil {
		return nil, err
	}
	return q, nil
}

func (s *procurementService) ListQuotations(ctx context.Context, p identity.Principal, rfqID int64, params pagination.Params) (Page[model.Quotation], error) {
	rfq, err := s.loadRFQ(ctx, p, policy.QuotationRead, rfqID, false)
	if err != nil {
		return Page[model.Quotation]{}, err
	}
	quotes, total, err := s.repo.ListQuotations(ctx, rfq.ID, params)
	if err != nil {
		return Page[model.Quotation]{}, apperror.FromStore("procurement.ListQuotations", "quotation", err)
	}
	return Page[model.Quotation]{Items: quotes, Total: total}, nil
}

// SelectQuotation picks the winning quotation and closes the RFQ in one
// transaction. The supplier email goes out after commit.
func (s *procurementService) SelectQuotation(ctx context.Context, p identity.Principal, rfqID, quotationID int64) (*SelectionResult, error) {
	const op = "procurement.SelectQuotation"

	var res SelectionResult
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		rfq, err := s.loadRFQ(txCtx, p, policy.QuotationSelect, rfqID, true)
		if err != nil {
			return err
		}
		if rfq.Status != model.RFQOpen {
			return apperror.Conflict(op, "rfq already has a selected quotation or is closed")
		}
		q, err := s.repo.GetQuotation(txCtx, rfq.ID, quotationID)
		if err != nil {
			return apperror.FromStore(op, "quotation", err)
		}
		if err := s.repo.MarkSelected(txCtx, rfq.ID, q.ID); err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return apperror.Conflict(op, "rfq already has a selected quotation")
			}
			return apperror.FromStore(op, "quotation", err)
		}
		q.Selected = true

		rfq.Status = model.RFQClosed
		if err := s.repo.RFQs().Save(txCtx, rfq.OrganizationID, rfq); err != nil {
			return apperror.FromStore(op, "rfq", err)
		}
		if err := s.audit.recordAs(txCtx, p, model.ActionSelectQuote, "quotation", q.ID, map[string]int64{"rfq_id": rfq.ID}); err != nil {
			return err
		}
		res = SelectionResult{Quotation: q, RFQ: rfq}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := s.notifySupplier(ctx, res.RFQ, res.Quotation); err != nil {
		s.log.Warn("supplier notification failed",
			zap.Int64("quotation_id", res.Quotation.ID),
			zap.Error(err))
		res.NotificationError = err.Error()
	}
	return &res, nil
}

func (s *procurementService) notifySupplier(ctx context.Context, rfq *model.RFQ, q *model.Quotation) error {
	if s.notifier == nil {
		return nil
	}
	supplier, err := s.suppliers.Get(ctx, rfq.OrganizationID, q.SupplierID)
	if err != nil {
		return err
	}
	msg := notify.QuotationSelected{
		SupplierName: supplier.CompanyName,
		RFQID:        rfq.ID,
		QuotationID:  q.ID,
		Quantity:     q.Quantity.String(),
		Price:        q.Price.StringFixed(2),
	}
	if org, err := s.orgs.GetByID(ctx, rfq.OrganizationID); err == nil {
		msg.Organization = org.Name
	}
	if product, err := s.products.Get(ctx, rfq.OrganizationID, rfq.ProductID); err == nil {
		msg.ProductName = product.Name
	}
	return s.notifier.SendQuotationSelected(ctx, supplier.Email, msg)
}
