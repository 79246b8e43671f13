package identity

import (
	"context"
	"fmt"
	"time"

	"supplychain/internal/model"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// AccessClaims is the JWT payload of access tokens
type AccessClaims struct {
	Role           string `json:"role"`
	OrganizationID *int64 `json:"organization_id,omitempty"`
	jwt.RegisteredClaims
}

// JWTVerifier verifies HS256 access tokens
type JWTVerifier struct {
	secret []byte
	issuer string
}

func NewJWTVerifier(secret []byte, issuer string) *JWTVerifier {
	return &JWTVerifier{secret: secret, issuer: issuer}
}

func (v *JWTVerifier) Verify(ctx context.Context, tokenString string) (Claims, error) {
	if err := ctx.Err(); err != nil {
		return Claims{}, err
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	var ac AccessClaims
	token, err := jwt.ParseWithClaims(tokenString, &ac, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return v.secret, nil
	}, opts...)
	if err != nil || !token.Valid {
		return Claims{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims := Claims{
		Subject:        ac.Subject,
		Role:           ac.Role,
		OrganizationID: ac.OrganizationID,
	}
	if ac.ExpiresAt != nil {
		claims.ExpiresAt = ac.ExpiresAt.Time
	}
	return claims, nil
}

// Issuer signs access tokens for the local identity provider
type Issuer struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

func NewIssuer(secret []byte, issuer string, ttl time.Duration) *Issuer {
	return &Issuer{secret: secret, issuer: issuer, ttl: ttl, now: time.Now}
}

// Issue signs an access token for the given account state
func (i *Issuer) Issue(userID uuid.UUID, role model.Role, orgID *int64) (string, time.Time, error) {
	now := i.now()
	exp := now.Add(i.ttl)
	claims := AccessClaims{
		Role:           string(role),
		OrganizationID: orgID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			Issuer:    i.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, exp, nil
}
