package service

import (
	"context"
	"errors"
	"strings"

	"supplychain/internal/apperror"
	"supplychain/internal/identity"
	"supplychain/internal/model"
	"supplychain/internal/policy"
	"supplychain/internal/repository"

	"gorm.io/gorm"
)

type OrganizationRequest struct {
	Name        string `json:"name" binding:"required"`
	Address     string `json:"address"`
	PhoneNumber string `json:"phone_number"`
	Email       string `json:"email" binding:"omitempty,email"`
	Website     string `json:"website"`
}

func (r OrganizationRequest) Apply(org *model.Organization) {
	org.Name = strings.TrimSpace(r.Name)
	org.Address = r.Address
	org.PhoneNumber = r.PhoneNumber
	org.Email = r.Email
	org.Website = r.Website
}

type OrganizationService interface {
	Get(ctx context.Context, p identity.Principal) (*model.Organization, error)
	Create(ctx context.Context, p identity.Principal, req OrganizationRequest) (*model.Organization, error)
	Update(ctx context.Context, p identity.Principal, req OrganizationRequest) (*model.Organization, error)
}

type organizationService struct {
	orgs     repository.OrganizationRepository
	accounts repository.AccountRepository
	tx       repository.TransactionManager
	policy   *policy.Engine
	audit    auditor
}

func NewOrganizationService(
	orgs repository.OrganizationRepository,
	accounts repository.AccountRepository,
	auditRepo repository.AuditRepository,
	tx repository.TransactionManager,
	engine *policy.Engine,
) OrganizationService {
	return &organizationService{
		orgs:     orgs,
		accounts: accounts,
		tx:       tx,
		policy:   engine,
		audit:    auditor{repo: auditRepo},
	}
}

// Get returns the caller's own organization
func (s *organizationService) Get(ctx context.Context, p identity.Principal) (*model.Organization, error) {
	if err := s.policy.Authorize(p, policy.OrganizationRead, nil); err != nil {
		return nil, err
	}
	org, err := s.orgs.GetByID(ctx, p.OrgID())
	if err != nil {
		return nil, apperror.FromStore("organization.Get", "organization", err)
	}
	return org, nil
}

// Create registers a new organization owned by the caller, who must not
// belong to one yet, and joins the caller to it. The membership shows up in
// the next issued token.
func (s *organizationService) Create(ctx context.Context, p identity.Principal, req OrganizationRequest) (*model.Organization, error) {
	const op = "organization.Create"
	if err := s.policy.Authorize(p, policy.OrganizationCreate, nil); err != nil {
		return nil, err
	}
	if p.HasOrganization() {
		return nil, apperror.Conflict(op, "user already belongs to an organization")
	}
	org := &model.Organization{OwnerUserID: p.UserID}
	req.Apply(org)
	if org.Name == "" {
		return nil, apperror.Invalid(op, "name is required")
	}

	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.orgs.Create(txCtx, org); err != nil {
			return apperror.FromStore(op, "organization", err)
		}
		if err := s.accounts.SetOrganization(txCtx, p.UserID, org.ID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperror.Conflict(op, "account does not exist or already belongs to an organization")
			}
			return apperror.FromStore(op, "account", err)
		}
		return s.audit.record(txCtx, org.ID, p.UserID, model.ActionJoinOrg, "organization", org.ID, req)
	})
	if err != nil {
		return nil, err
	}
	return org, nil
}

func (s *organizationService) Update(ctx context.Context, p identity.Principal, req OrganizationRequest) (*model.Organization, error) {
	const op = "organization.Update"
	var org *model.Organization
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.policy.Authorize(p, policy.OrganizationUpdate, nil); err != nil {
			return err
		}
		var err error
		if org, err = s.orgs.GetByID(txCtx, p.OrgID()); err != nil {
			return apperror.FromStore(op, "organization", err)
		}
		if err := s.policy.Authorize(p, policy.OrganizationUpdate, policy.Org(org.ID)); err != nil {
			return err
		}
		req.Apply(org)
		if org.Name == "" {
			return apperror.Invalid(op, "name is required")
		}
		if err := s.orgs.Update(txCtx, org); err != nil {
			return apperror.FromStore(op, "organization", err)
		}
		return s.audit.recordAs(txCtx, p, model.ActionUpdate, "organization", org.ID, req)
	})
	if err != nil {
		return nil, err
	}
	return org, nil
}
