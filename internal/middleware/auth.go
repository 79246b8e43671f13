package middleware

import (
	"net/http"

	"supplychain/internal/apperror"
	"supplychain/internal/identity"
	"supplychain/internal/policy"
	"supplychain/pkg/response"

	"github.com/gin-gonic/gin"
)

const (
	principalKey      = "principal"
	accessTokenCookie = "access_token"
	refreshCookie     = "refresh_token"
)

// Authenticate resolves the caller from the access_token cookie or the
// Authorization header and stores the principal on the request.
func Authenticate(resolver *identity.Resolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		var (
			p   identity.Principal
			err error
		)
		if token, cookieErr := c.Cookie(accessTokenCookie); cookieErr == nil && token != "" {
			p, err = resolver.ResolveToken(ctx, token)
		} else {
			p, err = resolver.Resolve(ctx, c.GetHeader("Authorization"))
		}
		if err != nil {
			response.Abort(c, err)
			return
		}

		c.Set(principalKey, p)
		c.Request = c.Request.WithContext(identity.WithPrincipal(ctx, p))
		c.Next()
	}
}

// RequireAction rejects callers whose role may never perform action. The
// organization check happens in the service against the loaded resource.
func RequireAction(engine *policy.Engine, action policy.Action) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := Principal(c)
		if !ok {
			response.Abort(c, apperror.Unauthenticated("authorization is missing"))
			return
		}
		if err := engine.AllowRole(p, action); err != nil {
			response.Abort(c, err)
			return
		}
		c.Next()
	}
}

// Principal returns the caller stored by Authenticate
func Principal(c *gin.Context) (identity.Principal, bool) {
	v, ok := c.Get(principalKey)
	if !ok {
		return identity.Principal{}, false
	}
	p, ok := v.(identity.Principal)
	return p, ok
}

// SetTokenCookies sets access_token and refresh_token as HttpOnly cookies.
// Secure cookies are cross-site (SameSite=None); others stay Lax.
func SetTokenCookies(c *gin.Context, accessToken, refreshToken string, accessMaxAge, refreshMaxAge int, secure bool) {
	c.SetSameSite(sameSite(secure))
	c.SetCookie(accessTokenCookie, accessToken, accessMaxAge, "/", "", secure, true)
	c.SetCookie(refreshCookie, refreshToken, refreshMaxAge, "/", "", secure, true)
}

// ClearTokenCookies removes access_token and refresh_token cookies
func ClearTokenCookies(c *gin.Context, secure bool) {
	c.SetSameSite(sameSite(secure))
	c.SetCookie(accessTokenCookie, "", -1, "/", "", secure, true)
	c.SetCookie(refreshCookie, "", -1, "/", "", secure, true)
}

// RefreshTokenCookie reads the refresh token cookie if present
func RefreshTokenCookie(c *gin.Context) string {
	v, err := c.Cookie(refreshCookie)
	if err != nil {
		return ""
	}
	return v
}

func sameSite(secure bool) http.SameSite {
	if secure {
		return http.SameSiteNoneMode
	}
	return http.SameSiteLaxMode
}
