package service

import (
	"context"

	"supplychain/internal/apperror"
	"supplychain/internal/identity"
	"supplychain/internal/model"
	"supplychain/internal/policy"
	"supplychain/internal/repository"
	"supplychain/pkg/pagination"
)

type AuditService interface {
	List(ctx context.Context, p identity.Principal, params pagination.Params) (Page[model.AuditLog], error)
}

type auditService struct {
	repo   repository.AuditRepository
	policy *policy.Engine
}

// NewAuditService creates a new AuditService instance
func NewAuditService(repo repository.AuditRepository, engine *policy.Engine) AuditService {
	return &auditService{repo: repo, policy: engine}
}

// List returns the caller's organization trail, newest first
func (s *auditService) List(ctx context.Context, p identity.Principal, params pagination.Params) (Page[model.AuditLog], error) {
	if err := s.policy.Authorize(p, policy.AuditView, nil); err != nil {
		return Page[model.AuditLog]{}, err
	}
	logs, total, err := s.repo.List(ctx, p.OrgID(), params)
	if err != nil {
		return Page[model.AuditLog]{}, apperror.FromStore("audit.List", "audit log", err)
	}
	return Page[model.AuditLog]{Items: logs, Total: total}, nil
}
