package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"supplychain/internal/apperror"
	"supplychain/internal/identity"
	"supplychain/internal/middleware"
	"supplychain/internal/model"
	"supplychain/internal/policy"
	"supplychain/internal/repository"
	"supplychain/internal/service"
	"supplychain/pkg/pagination"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var secret = []byte("handler-secret")

// warehouseStore is a minimal tenant-scoped Store for warehouses
type warehouseStore struct {
	mu     sync.Mutex
	rows   map[int64]model.Warehouse
	nextID int64
}

func (s *warehouseStore) Get(_ context.Context, orgID, id int64) (*model.Warehouse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.rows[id]
	if !ok || w.OrganizationID != orgID {
		return nil, gorm.ErrRecordNotFound
	}
	return &w, nil
}

func (s *warehouseStore) GetForUpdate(ctx context.Context, orgID, id int64) (*model.Warehouse, error) {
	return s.Get(ctx, orgID, id)
}

func (s *warehouseStore) List(_ context.Context, orgID int64, q repository.ListQuery) ([]model.Warehouse, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Warehouse
	for _, w := range s.rows {
		if w.OrganizationID != orgID {
			continue
		}
		keep := true
		for _, f := range q.Filters {
			if f.Column == "name" && !strings.Contains(strings.ToLower(w.Name), strings.ToLower(f.Value.(string))) {
				keep = false
			}
		}
		if keep {
			out = append(out, w)
		}
	}
	return out, int64(len(out)), nil
}

func (s *warehouseStore) Count(ctx context.Context, orgID int64, filters ...repository.Filter) (int64, error) {
	_, n, err := s.List(ctx, orgID, repository.ListQuery{Filters: filters})
	return n, err
}

func (s *warehouseStore) Create(_ context.Context, w *model.Warehouse) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	w.ID = s.nextID
	s.rows[w.ID] = *w
	return nil
}

func (s *warehouseStore) Save(_ context.Context, orgID int64, w *model.Warehouse) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.rows[w.ID]; !ok || cur.OrganizationID != orgID {
		return gorm.ErrRecordNotFound
	}
	s.rows[w.ID] = *w
	return nil
}

func (s *warehouseStore) Delete(_ context.Context, orgID, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.rows[id]; !ok || cur.OrganizationID != orgID {
		return gorm.ErrRecordNotFound
	}
	delete(s.rows, id)
	return nil
}

type directTx struct{}

func (directTx) RunInTx(ctx context.Context, fn func(context.Context) error) error { return fn(ctx) }

type discardAudit struct{}

func (discardAudit) Log(context.Context, *model.AuditLog) error { return nil }

func (discardAudit) List(context.Context, int64, pagination.Params) ([]model.AuditLog, int64, error) {
	return nil, 0, nil
}

// stubOrders answers MarkPaid with a fixed result; other methods are unused
type stubOrders struct {
	service.OrderService
	res *service.MarkPaidResult
	err error
}

func (s stubOrders) MarkPaid(context.Context, identity.Principal, int64) (*service.MarkPaidResult, error) {
	return s.res, s.err
}

type testServer struct {
	router *gin.Engine
	issuer *identity.Issuer
}

func newTestServer(t *testing.T, orders service.OrderService) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	engine := policy.NewEngine(policy.Default())
	resolver := identity.NewResolver(identity.NewJWTVerifier(secret, "supplychain"), time.Second)

	warehouses := service.NewWarehouseService(&warehouseStore{rows: map[int64]model.Warehouse{}}, directTx{}, engine, discardAudit{})

	r := gin.New()
	protected := r.Group("", middleware.Authenticate(resolver))
	NewWarehouseHandler(warehouses, engine).RegisterRoutes(protected)
	NewOrderHandler(orders, engine).RegisterRoutes(protected)

	return &testServer{router: r, issuer: identity.NewIssuer(secret, "supplychain", time.Hour)}
}

func (s *testServer) do(t *testing.T, role model.Role, orgID int64, method, path string, body interface{}) (int, map[string]interface{}) {
	t.Helper()
	var payload bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&payload).Encode(body))
	}
	req := httptest.NewRequest(method, path, &payload)
	req.Header.Set("Content-Type", "application/json")
	if role != "" {
		token, _, err := s.issuer.Issue(uuid.New(), role, &orgID)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return w.Code, out
}

func TestResourceHandlerLifecycle(t *testing.T) {
	s := newTestServer(t, stubOrders{})

	code, body := s.do(t, model.RoleWarehouse, 7, http.MethodPost, "/api/warehouses", gin.H{"name": "North", "organization_id": 99})
	require.Equal(t, http.StatusCreated, code, body)
	assert.Equal(t, "success", body["status"])
	data := body["data"].(map[string]interface{})
	assert.EqualValues(t, 7, data["organization_id"])
	id := int64(data["id"].(float64))

	code, body = s.do(t, model.RoleAdmin, 7, http.MethodGet, "/api/warehouses?search=nor", nil)
	require.Equal(t, http.StatusOK, code)
	list := body["data"].(map[string]interface{})
	assert.EqualValues(t, 1, list["total"])
	assert.EqualValues(t, 1, list["page"])
	assert.EqualValues(t, pagination.DefaultLimit, list["limit"])
	assert.Len(t, list["items"], 1)

	code, body = s.do(t, model.RoleWarehouse, 7, http.MethodPut, "/api/warehouses/1", gin.H{"name": "North Hub"})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "North Hub", body["data"].(map[string]interface{})["name"])

	code, body = s.do(t, model.RoleAdmin, 8, http.MethodGet, "/api/warehouses/1", nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, apperror.ENotFound, body["code"])

	code, _ = s.do(t, model.RoleWarehouse, 7, http.MethodDelete, "/api/warehouses/1", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 1, id)
}

func TestResourceHandlerRejectsBadInput(t *testing.T) {
	s := newTestServer(t, stubOrders{})

	code, body := s.do(t, model.RoleAdmin, 7, http.MethodGet, "/api/warehouses/abc", nil)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, apperror.EInvalid, body["code"])

	code, body = s.do(t, model.RoleAdmin, 7, http.MethodPost, "/api/warehouses", gin.H{"longitude": 1.5})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, apperror.EInvalid, body["code"])
}

func TestRoutesRequireRoleAndToken(t *testing.T) {
	s := newTestServer(t, stubOrders{})

	code, body := s.do(t, model.RoleDriver, 7, http.MethodGet, "/api/warehouses", nil)
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, apperror.EForbidden, body["code"])

	code, body = s.do(t, "", 0, http.MethodGet, "/api/warehouses", nil)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, apperror.EUnauthenticated, body["code"])
}

func TestMarkPaidMapsErrors(t *testing.T) {
	s := newTestServer(t, stubOrders{err: apperror.Conflict("order.MarkPaid", "order is already paid")})
	code, body := s.do(t, model.RoleSales, 7, http.MethodPost, "/api/orders/3/mark-paid", nil)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, apperror.EConflict, body["code"])
	assert.Equal(t, "order is already paid", body["detail"])

	paidAt := time.Now().UTC()
	order := &model.Order{Status: model.OrderStatusSucceeded, PaidAt: &paidAt}
	order.ID = 3
	delivery := &model.Delivery{OrderID: 3}
	delivery.ID = 11
	s = newTestServer(t, stubOrders{res: &service.MarkPaidResult{Order: order, Delivery: delivery}})
	code, body = s.do(t, model.RoleSales, 7, http.MethodPost, "/api/orders/3/mark-paid", nil)
	require.Equal(t, http.StatusOK, code)
	data := body["data"].(map[string]interface{})
	assert.EqualValues(t, 11, data["delivery"].(map[string]interface{})["id"])
	assert.Equal(t, string(model.OrderStatusSucceeded), data["order"].(map[string]interface{})["status"])
}
