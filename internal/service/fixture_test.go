package service

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"

	"supplychain/internal/identity"
	"supplychain/internal/lifecycle"
	"supplychain/internal/model"
	"supplychain/internal/notify"
	"supplychain/internal/policy"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fixture struct {
	t *testing.T

	tx          *memTx
	orgs        *memOrgs
	accounts    *memAccounts
	tokens      *memTokens
	audit       *memAudit
	warehouses  *memStore[model.Warehouse]
	products    memProducts
	clients     *memStore[model.Client]
	suppliers   *memStore[model.Supplier]
	drivers     *memStore[model.Driver]
	movements   *memStore[model.StockMovement]
	orders      *memOrders
	deliveries  *memDeliveries
	procurement *memProcurement
	events      *recordingPublisher
	objects     *memObjects
	notifier    *fakeNotifier
	engine      *policy.Engine

	orgA, orgB int64
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clients := newMemStore[model.Client]()
	f := &fixture{
		t:           t,
		orgs:        newMemOrgs(),
		accounts:    newMemAccounts(),
		tokens:      newMemTokens(),
		audit:       &memAudit{},
		warehouses:  newMemStore[model.Warehouse](),
		products:    memProducts{newMemStore[model.Product]()},
		clients:     clients,
		suppliers:   newMemStore[model.Supplier](),
		drivers:     newMemStore[model.Driver](),
		movements:   newMemStore[model.StockMovement](),
		orders:      newMemOrders(clients),
		deliveries:  newMemDeliveries(),
		procurement: newMemProcurement(),
		events:      &recordingPublisher{},
		objects:     &memObjects{},
		notifier:    &fakeNotifier{},
		engine:      policy.NewEngine(policy.Default()),
	}
	f.tx = &memTx{tables: []snapshotter{
		f.orgs, f.accounts, f.tokens, f.audit, f.warehouses, f.products, f.clients,
		f.suppliers, f.drivers, f.movements, f.orders, f.deliveries, f.procurement,
	}}

	ctx := context.Background()
	a := &model.Organization{Name: "Acme Logistics"}
	b := &model.Organization{Name: "Globex"}
	require.NoError(t, f.orgs.Create(ctx, a))
	require.NoError(t, f.orgs.Create(ctx, b))
	f.orgA, f.orgB = a.ID, b.ID
	return f
}

func member(orgID int64, role model.Role) identity.Principal {
	return identity.Principal{UserID: uuid.New(), Role: role, OrganizationID: &orgID}
}

func (f *fixture) admin(orgID int64) identity.Principal {
	return member(orgID, model.RoleAdmin)
}

func (f *fixture) client(orgID int64, clientType string) int64 {
	return f.clients.put(orgID, &model.Client{CompanyName: "Client " + clientType, ClientType: clientType})
}

func (f *fixture) product(orgID int64, qty, price string) int64 {
	return f.products.put(orgID, &model.Product{
		Name:     "Widget",
		Quantity: decimal.RequireFromString(qty),
		Price:    decimal.RequireFromString(price),
	})
}

func (f *fixture) stock(orgID, productID int64) decimal.Decimal {
	p, err := f.products.Get(context.Background(), orgID, productID)
	require.NoError(f.t, err)
	return p.Quantity
}

func qty(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func (f *fixture) orderService() OrderService {
	return NewOrderService(f.orders, f.products, f.clients, f.deliveries, f.audit, f.tx, f.engine, f.events, zap.NewNop())
}

func (f *fixture) deliveryService(m lifecycle.Machine) DeliveryService {
	return NewDeliveryService(DeliveryDeps{
		Deliveries: f.deliveries,
		Orders:     f.orders,
		Products:   f.products,
		Drivers:    f.drivers,
		Movements:  f.movements,
		Orgs:       f.orgs,
		Audit:      f.audit,
		Objects:    f.objects,
		Tx:         f.tx,
		Policy:     f.engine,
		Machine:    m,
		Events:     f.events,
		Log:        zap.NewNop(),
	})
}

func (f *fixture) procurementService() ProcurementService {
	return NewProcurementService(f.procurement, f.products, f.suppliers, f.orgs, f.audit, f.tx, f.engine, f.notifier, zap.NewNop())
}

// paidOrder creates an order with the given items, marks it paid and
// returns the order and its delivery ids
func (f *fixture) paidOrder(p identity.Principal, clientID int64, items ...OrderItemRequest) (int64, int64) {
	ctx := context.Background()
	orders := f.orderService()
	order, err := orders.Create(ctx, p, CreateOrderRequest{ClientID: clientID, Items: items})
	require.NoError(f.t, err)
	res, err := orders.MarkPaid(ctx, p, order.ID)
	require.NoError(f.t, err)
	return order.ID, res.Delivery.ID
}

// memObjects is an ObjectStore that keeps uploads in memory
type memObjects struct {
	mu   sync.Mutex
	keys []string
	err  error
}

func (m *memObjects) Upload(_ context.Context, key string, body io.Reader, _ string) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	if _, err := io.ReadAll(body); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.keys = append(m.keys, key)
	return "https://objects.test/" + key, nil
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []string
	err  error
}

func (n *fakeNotifier) SendQuotationSelected(_ context.Context, to string, msg notify.QuotationSelected) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.sent = append(n.sent, to)
	return nil
}

var errMailDown = errors.New("mail relay down")
