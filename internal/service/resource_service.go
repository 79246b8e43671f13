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

// ResourceConfig describes one plain tenant-owned resource
type ResourceConfig[T any, PT model.ScopedPtr[T]] struct {
	Entity       string
	Read         policy.Action
	Write        policy.Action
	SearchColumn string
	// Validate runs before every create and update, inside the transaction
	Validate func(ctx context.Context, orgID int64, rec PT) error
}

// ResourceService implements CRUD for records that need nothing beyond
// tenant scoping and the permission table.
type ResourceService[T any, PT model.ScopedPtr[T]] struct {
	store  repository.Store[T]
	tx     repository.TransactionManager
	policy *policy.Engine
	audit  auditor
	cfg    ResourceConfig[T, PT]
}

func NewResourceService[T any, PT model.ScopedPtr[T]](
	store repository.Store[T],
	tx repository.TransactionManager,
	engine *policy.Engine,
	auditRepo repository.AuditRepository,
	cfg ResourceConfig[T, PT],
) *ResourceService[T, PT] {
	return &ResourceService[T, PT]{
		store:  store,
		tx:     tx,
		policy: engine,
		audit:  auditor{repo: auditRepo},
		cfg:    cfg,
	}
}

func (s *ResourceService[T, PT]) op(name string) string {
	return s.cfg.Entity + "." + name
}

func (s *ResourceService[T, PT]) Get(ctx context.Context, p identity.Principal, id int64) (*T, error) {
	if err := s.policy.Authorize(p, s.cfg.Read, nil); err != nil {
		return nil, err
	}
	rec, err := s.store.Get(ctx, p.OrgID(), id)
	if err != nil {
		return nil, apperror.FromStore(s.op("Get"), s.cfg.Entity, err)
	}
	if err := s.policy.Authorize(p, s.cfg.Read, policy.Org(PT(rec).TenantID())); err != nil {
		return nil, err
	}
	return rec, nil
}

// List returns one page. search matches the configured column.
func (s *ResourceService[T, PT]) List(ctx context.Context, p identity.Principal, params pagination.Params, search string, filters ...repository.Filter) (Page[T], error) {
	if err := s.policy.Authorize(p, s.cfg.Read, nil); err != nil {
		return Page[T]{}, err
	}
	if search != "" && s.cfg.SearchColumn != "" {
		filters = append(filters, repository.Contains(s.cfg.SearchColumn, search))
	}
	recs, total, err := s.store.List(ctx, p.OrgID(), repository.ListQuery{Page: params, Filters: filters})
	if err != nil {
		return Page[T]{}, apperror.FromStore(s.op("List"), s.cfg.Entity, err)
	}
	return Page[T]{Items: recs, Total: total}, nil
}

// Create stores rec in the caller's organization. Ownership fields of rec
// are replaced by the caller's.
func (s *ResourceService[T, PT]) Create(ctx context.Context, p identity.Principal, rec PT) (PT, error) {
	if err := s.policy.Authorize(p, s.cfg.Write, nil); err != nil {
		return nil, err
	}
	rec.Stamp(p.OrgID(), p.UserID)

	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		if s.cfg.Validate != nil {
			if err := s.cfg.Validate(txCtx, p.OrgID(), rec); err != nil {
				return err
			}
		}
		if err := s.store.Create(txCtx, (*T)(rec)); err != nil {
			return apperror.FromStore(s.op("Create"), s.cfg.Entity, err)
		}
		return s.audit.recordAs(txCtx, p, model.ActionCreate, s.cfg.Entity, rec.EntityID(), rec)
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// Update loads the record under lock, applies mutate and saves it. mutate
// cannot move the record to another organization.
func (s *ResourceService[T, PT]) Update(ctx context.Context, p identity.Principal, id int64, mutate func(PT) error) (PT, error) {
	if err := s.policy.Authorize(p, s.cfg.Write, nil); err != nil {
		return nil, err
	}

	var out PT
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		found, err := s.store.GetForUpdate(txCtx, p.OrgID(), id)
		if err != nil {
			return apperror.FromStore(s.op("Update"), s.cfg.Entity, err)
		}
		rec := PT(found)
		orgID := rec.TenantID()
		if err := s.policy.Authorize(p, s.cfg.Write, policy.Org(orgID)); err != nil {
			return err
		}

		if err := mutate(rec); err != nil {
			return err
		}
		if rec.EntityID() != id || rec.TenantID() != orgID {
			return apperror.Invalid(s.op("Update"), "identity fields cannot change")
		}
		if s.cfg.Validate != nil {
			if err := s.cfg.Validate(txCtx, orgID, rec); err != nil {
				return err
			}
		}
		if err := s.store.Save(txCtx, orgID, found); err != nil {
			return apperror.FromStore(s.op("Update"), s.cfg.Entity, err)
		}
		out = rec
		return s.audit.recordAs(txCtx, p, model.ActionUpdate, s.cfg.Entity, id, rec)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *ResourceService[T, PT]) Delete(ctx context.Context, p identity.Principal, id int64) error {
	if err := s.policy.Authorize(p, s.cfg.Write, nil); err != nil {
		return err
	}

	return s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		found, err := s.store.GetForUpdate(txCtx, p.OrgID(), id)
		if err != nil {
			return apperror.FromStore(s.op("Delete"), s.cfg.Entity, err)
		}
		if err := s.policy.Authorize(p, s.cfg.Write, policy.Org(PT(found).TenantID())); err != nil {
			return err
		}
		if err := s.store.Delete(txCtx, p.OrgID(), id); err != nil {
			return apperror.FromStore(s.op("Delete"), s.cfg.Entity, err)
		}
		return s.audit.recordAs(txCtx, p, model.ActionDelete, s.cfg.Entity, id, nil)
	})
}
