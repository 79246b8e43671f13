package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"supplychain/internal/apperror"
	"supplychain/internal/identity"
	"supplychain/internal/model"
	"supplychain/internal/policy"
	"supplychain/internal/repository"
	"supplychain/pkg/pagination"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// DTOs for Request validation
type SignupRequest struct {
	DisplayName string `json:"display_name" binding:"required"`
	Email       string `json:"email" binding:"required,email"`
	Password    string `json:"password" binding:"required,min=8"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

type CreateMemberRequest struct {
	DisplayName string `json:"display_name" binding:"required"`
	Email       string `json:"email" binding:"required,email"`
	Password    string `json:"password" binding:"required,min=8"`
	Role        string `json:"role" binding:"required"`
}

// TokenResponse is returned by login and refresh
type TokenResponse struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// AccountResponse hides the password hash
type AccountResponse struct {
	ID             uuid.UUID  `json:"id"`
	Email          string     `json:"email"`
	DisplayName    string     `json:"display_name"`
	Role           model.Role `json:"role"`
	OrganizationID *int64     `json:"organization_id"`
	CreatedAt      time.Time  `json:"created_at"`
}

func mapAccount(u *model.UserAccount) AccountResponse {
	return AccountResponse{
		ID:             u.ID,
		Email:          u.Email,
		DisplayName:    u.DisplayName,
		Role:           u.Role,
		OrganizationID: u.OrganizationID,
		CreatedAt:      u.CreatedAt,
	}
}

// TokenIssuer signs access tokens
type TokenIssuer interface {
	Issue(userID uuid.UUID, role model.Role, orgID *int64) (string, time.Time, error)
}

// AccountService is the local identity provider
type AccountService interface {
	Signup(ctx context.Context, req SignupRequest) (*AccountResponse, error)
	Login(ctx context.Context, req LoginRequest) (*TokenResponse, error)
	Refresh(ctx context.Context, req RefreshRequest) (*TokenResponse, error)
	Logout(ctx context.Context, req RefreshRequest) error
	Me(ctx context.Context, p identity.Principal) (*AccountResponse, error)
	CreateMember(ctx context.Context, p identity.Principal, req CreateMemberRequest) (*AccountResponse, error)
	ListMembers(ctx context.Context, p identity.Principal, params pagination.Params) (Page[AccountResponse], error)
}

type accountService struct {
	accounts   repository.AccountRepository
	tokens     repository.RefreshTokenRepository
	tx         repository.TransactionManager
	issuer     TokenIssuer
	refreshTTL time.Duration
	policy     *policy.Engine
	audit      auditor
}

func NewAccountService(
	accounts repository.AccountRepository,
	tokens repository.RefreshTokenRepository,
	auditRepo repository.AuditRepository,
	tx repository.TransactionManager,
	issuer TokenIssuer,
	refreshTTL time.Duration,
	engine *policy.Engine,
) AccountService {
	return &accountService{
		accounts:   accounts,
		tokens:     tokens,
		tx:         tx,
		issuer:     issuer,
		refreshTTL: refreshTTL,
		policy:     engine,
		audit:      auditor{repo: auditRepo},
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func hashPassword(op, password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", apperror.Internal(op, err)
	}
	return string(hashed), nil
}

// Signup registers an administrator without organization. The account can
// only create an organization until it joins one.
func (s *accountService) Signup(ctx context.Context, req SignupRequest) (*AccountResponse, error) {
	const op = "account.Signup"
	hashed, err := hashPassword(op, req.Password)
	if err != nil {
		return nil, err
	}
	user := &model.UserAccount{
		ID:           uuid.New(),
		Email:        normalizeEmail(req.Email),
		DisplayName:  strings.TrimSpace(req.DisplayName),
		PasswordHash: hashed,
		Role:         model.RoleAdmin,
	}
	if err := s.accounts.Create(ctx, user); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, apperror.Conflict(op, "email already registered")
		}
		return nil, apperror.FromStore(op, "account", err)
	}
	res := mapAccount(user)
	return &res, nil
}

func (s *accountService) Login(ctx context.Context, req LoginRequest) (*TokenResponse, error) {
	user, err := s.accounts.GetByEmail(ctx, normalizeEmail(req.Email))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.Unauthenticated("invalid email or password")
		}
		return nil, apperror.FromStore("account.Login", "account", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, apperror.Unauthenticated("invalid email or password")
	}
	return s.issueTokens(ctx, user)
}

// Refresh rotates the refresh token and issues an access token carrying the
// account's current role and organization.
func (s *accountService) Refresh(ctx context.Context, req RefreshRequest) (*TokenResponse, error) {
	const op = "account.Refresh"
	var res *TokenResponse
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		at := now()
		rt, err := s.tokens.GetActive(txCtx, req.RefreshToken, at)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperror.Unauthenticated("refresh token is invalid or expired")
			}
			return apperror.FromStore(op, "refresh token", err)
		}
		if err := s.tokens.Revoke(txCtx, rt.Token, at); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperror.Unauthenticated("refresh token was already used")
			}
			return apperror.FromStore(op, "refresh token", err)
		}
		user, err := s.accounts.GetByID(txCtx, rt.UserID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperror.Unauthenticated("account no longer exists")
			}
			return apperror.FromStore(op, "account", err)
		}
		res, err = s.issueTokens(txCtx, user)
		return err
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (s *accountService) Logout(ctx context.Context, req RefreshRequest) error {
	// logging out twice is not an error
	if err := s.tokens.Revoke(ctx, req.RefreshToken, now()); err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return apperror.FromStore("account.Logout", "refresh token", err)
	}
	return nil
}

func (s *accountService) issueTokens(ctx context.Context, user *model.UserAccount) (*TokenResponse, error) {
	const op = "account.issueTokens"
	access, exp, err := s.issuer.Issue(user.ID, user.Role, user.OrganizationID)
	if err != nil {
		return nil, apperror.Internal(op, err)
	}
	rt := &model.RefreshToken{
		UserID:    user.ID,
		Token:     uuid.NewString(),
		ExpiresAt: now().Add(s.refreshTTL),
	}
	if err := s.tokens.Create(ctx, rt); err != nil {
		return nil, apperror.FromStore(op, "refresh token", err)
	}
	return &TokenResponse{AccessToken: access, RefreshToken: rt.Token, ExpiresAt: exp}, nil
}

func (s *accountService) Me(ctx context.Context, p identity.Principal) (*AccountResponse, error) {
	user, err := s.accounts.GetByID(ctx, p.UserID)
	if err != nil {
		return nil, apperror.FromStore("account.Me", "account", err)
	}
	res := mapAccount(user)
	return &res, nil
}

// CreateMember adds an account to the caller's organization
func (s *accountService) CreateMember(ctx context.Context, p identity.Principal, req CreateMemberRequest) (*AccountResponse, error) {
	const op = "account.CreateMember"
	if err := s.policy.Authorize(p, policy.AccountManage, nil); err != nil {
		return nil, err
	}
	role, err := model.ParseRole(req.Role)
	if err != nil {
		return nil, apperror.Invalid(op, err.Error())
	}
	hashed, err := hashPassword(op, req.Password)
	if err != nil {
		return nil, err
	}

	orgID := p.OrgID()
	user := &model.UserAccount{
		ID:             uuid.New(),
		Email:          normalizeEmail(req.Email),
		DisplayName:    strings.TrimSpace(req.DisplayName),
		PasswordHash:   hashed,
		Role:           role,
		OrganizationID: &orgID,
	}
	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.accounts.Create(txCtx, user); err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return apperror.Conflict(op, "email already registered")
			}
			return apperror.FromStore(op, "account", err)
		}
		return s.audit.recordAs(txCtx, p, model.ActionCreateAccount, "account", 0, map[string]string{
			"user_id": user.ID.String(),
			"email":   user.Email,
			"role":    string(user.Role),
		})
	})
	if err != nil {
		return nil, err
	}
	res := mapAccount(user)
	return &res, nil
}

func (s *accountService) ListMembers(ctx context.Context, p identity.Principal, params pagination.Params) (Page[AccountResponse], error) {
	if err := s.policy.Authorize(p, policy.AccountManage, nil); err != nil {
		return Page[AccountResponse]{}, err
	}
	users, total, err := s.accounts.ListByOrganization(ctx, p.OrgID(), params)
	if err != nil {
		return Page[AccountResponse]{}, apperror.FromStore("account.ListMembers", "account", err)
	}
	items := make([]AccountResponse, 0, len(users))
	for i := range users {
		items = append(items, mapAccount(&users[i]))
	}
	return Page[AccountResponse]{Items: items, Total: total}, nil
}
