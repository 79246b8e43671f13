package identity

import (
	"context"
	"errors"
	"strings"
	"time"

	"supplychain/internal/apperror"
	"supplychain/internal/model"

	"github.com/google/uuid"
)

// Principal is the authenticated caller of one request
type Principal struct {
	UserID         uuid.UUID  `json:"user_id"`
	Role           model.Role `json:"role"`
	OrganizationID *int64     `json:"organization_id"`
}

// HasOrganization reports whether the caller belongs to an organization
func (p Principal) HasOrganization() bool {
	return p.OrganizationID != nil
}

// OrgID returns the caller's organization id, or 0 when there is none
func (p Principal) OrgID() int64 {
	if p.OrganizationID == nil {
		return 0
	}
	return *p.OrganizationID
}

// Claims are the verified contents of an access token
type Claims struct {
	Subject        string
	Role           string
	OrganizationID *int64
	ExpiresAt      time.Time
}

// ErrInvalidToken is returned by verifiers for any token that must be rejected
var ErrInvalidToken = errors.New("invalid token")

// Verifier checks an access token and returns its claims
type Verifier interface {
	Verify(ctx context.Context, token string) (Claims, error)
}

// Resolver turns an Authorization header into a Principal
type Resolver struct {
	verifier Verifier
	timeout  time.Duration
}

func NewResolver(v Verifier, timeout time.Duration) *Resolver {
	return &Resolver{verifier: v, timeout: timeout}
}

// Resolve accepts "Bearer <token>" headers
func (r *Resolver) Resolve(ctx context.Context, header string) (Principal, error) {
	if header == "" {
		return Principal{}, apperror.Unauthenticated("Authorization is missing")
	}
	parts := strings.Fields(header)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return Principal{}, apperror.Unauthenticated("Invalid authorization format. Expected 'Bearer <token>'")
	}
	return r.ResolveToken(ctx, parts[1])
}

// ResolveToken verifies a bare token
func (r *Resolver) ResolveToken(ctx context.Context, token string) (Principal, error) {
	if token == "" {
		return Principal{}, apperror.Unauthenticated("Authorization is missing")
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	claims, err := r.verify(ctx, token)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return Principal{}, apperror.Unavailable("identity.Resolve", "identity verification timed out", err)
		}
		return Principal{}, apperror.Unauthenticated("Invalid token")
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return Principal{}, apperror.Unauthenticated("Invalid token subject")
	}
	role, err := model.ParseRole(claims.Role)
	if err != nil {
		return Principal{}, apperror.Unauthenticated("Invalid token role")
	}

	return Principal{UserID: userID, Role: role, OrganizationID: claims.OrganizationID}, nil
}

// verify runs the verifier but gives up once ctx is done, even if the
// verifier ignores its context.
func (r *Resolver) verify(ctx context.Context, token string) (Claims, error) {
	type result struct {
		claims Claims
		err    error
	}
	done := make(chan result, 1)
	go func() {
		c, err := r.verifier.Verify(ctx, token)
		done <- result{c, err}
	}()

	select {
	case res := <-done:
		return res.claims, res.err
	case <-ctx.Done():
		return Claims{}, ctx.Err()
	}
}

type principalKey struct{}

// WithPrincipal stores p in ctx
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// FromContext returns the principal stored by WithPrincipal
func FromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}
