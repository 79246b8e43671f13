package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"supplychain/internal/identity"
	"supplychain/internal/model"
	"supplychain/internal/policy"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var secret = []byte("middleware-secret")

func setup(t *testing.T) (*gin.Engine, *identity.Issuer) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	resolver := identity.NewResolver(identity.NewJWTVerifier(secret, "supplychain"), time.Second)
	issuer := identity.NewIssuer(secret, "supplychain", time.Hour)
	engine := policy.NewEngine(policy.Default())

	r := gin.New()
	r.Use(Recovery(zap.NewNop()), RequestLogger(zap.NewNop()))
	g := r.Group("/api", Authenticate(resolver))
	g.GET("/orders", RequireAction(engine, policy.OrderRead), func(c *gin.Context) {
		p, ok := Principal(c)
		require.True(t, ok)
		fromCtx, ok := identity.FromContext(c.Request.Context())
		require.True(t, ok)
		assert.Equal(t, p, fromCtx)
		c.JSON(http.StatusOK, gin.H{"user_id": p.UserID.String()})
	})
	g.GET("/panic", func(c *gin.Context) { panic("boom") })
	return r, issuer
}

func do(r *gin.Engine, req *http.Request) (*httptest.ResponseRecorder, map[string]interface{}) {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	var body map[string]interface{}
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	return w, body
}

func TestAuthenticateMissingHeader(t *testing.T) {
	r, _ := setup(t)
	w, body := do(r, httptest.NewRequest(http.MethodGet, "/api/orders", nil))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "error", body["status"])
	assert.Equal(t, "unauthenticated", body["code"])
}

func TestAuthenticateBearerAndRoleGate(t *testing.T) {
	r, issuer := setup(t)
	org := int64(1)

	sales := uuid.New()
	token, _, err := issuer.Issue(sales, model.RoleSales, &org)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/api/orders", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w, body := do(r, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, sales.String(), body["user_id"])

	driverToken, _, err := issuer.Issue(uuid.New(), model.RoleDriver, &org)
	require.NoError(t, err)
	req = httptest.NewRequest(http.MethodGet, "/api/orders", nil)
	req.Header.Set("Authorization", "Bearer "+driverToken)
	w, body = do(r, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "forbidden", body["code"])
}

func TestAuthenticateCookie(t *testing.T) {
	r, issuer := setup(t)
	org := int64(1)
	token, _, err := issuer.Issue(uuid.New(), model.RoleAdmin, &org)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/orders", nil)
	req.AddCookie(&http.Cookie{Name: "access_token", Value: token})
	w, _ := do(r, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRecoveryAnswersInternal(t *testing.T) {
	r, issuer := setup(t)
	token, _, err := issuer.Issue(uuid.New(), model.RoleAdmin, nil)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/panic", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w, body := do(r, req)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "internal error", body["code"])
	assert.NotContains(t, body["detail"], "boom")
}

func TestTimeoutSetsDeadline(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Timeout(50 * time.Millisecond))
	r.GET("/", func(c *gin.Context) {
		_, ok := c.Request.Context().Deadline()
		assert.True(t, ok)
		c.Status(http.StatusNoContent)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)
}
