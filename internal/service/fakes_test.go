package service

import (
	"context"
	"fmt"
	"maps"
	"reflect"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"supplychain/internal/model"
	"supplychain/internal/repository"
	"supplychain/pkg/pagination"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

// In-memory repositories. Every table snapshots itself so the fake
// transaction manager can roll back a failed unit of work.

type snapshotter interface {
	snapshot() func()
}

type txKey struct{}

// memTx serializes transactions and restores every registered table when fn fails
type memTx struct {
	mu     sync.Mutex
	tables []snapshotter
	runs   int
}

func (t *memTx) RunInTx(ctx context.Context, fn func(txCtx context.Context) error) error {
	if ctx.Value(txKey{}) != nil {
		return fn(ctx)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.runs++

	restores := make([]func(), 0, len(t.tables))
	for _, tb := range t.tables {
		restores = append(restores, tb.snapshot())
	}
	if err := fn(context.WithValue(ctx, txKey{}, true)); err != nil {
		for _, restore := range restores {
			restore()
		}
		return err
	}
	return nil
}

var naming = schema.NamingStrategy{}

// columnValue reads the field stored under a gorm column name. Nil pointers
// report false so they never match a filter.
func columnValue(v reflect.Value, column string) (interface{}, bool) {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if sf.Anonymous && sf.Type.Kind() == reflect.Struct {
			if val, ok := columnValue(v.Field(i), column); ok {
				return val, true
			}
			continue
		}
		if naming.ColumnName("", sf.Name) != column {
			continue
		}
		fv := v.Field(i)
		if fv.Kind() == reflect.Ptr {
			if fv.IsNil() {
				return nil, false
			}
			fv = fv.Elem()
		}
		return fv.Interface(), true
	}
	return nil, false
}

func matches(rec interface{}, filters []repository.Filter) bool {
	v := reflect.Indirect(reflect.ValueOf(rec))
	for _, f := range filters {
		val, ok := columnValue(v, f.Column)
		if !ok {
			return false
		}
		switch f.Op {
		case repository.OpEq:
			if fmt.Sprint(val) != fmt.Sprint(f.Value) {
				return false
			}
		case repository.OpGTE:
			ts, ok := val.(time.Time)
			since, _ := f.Value.(time.Time)
			if !ok || ts.Before(since) {
				return false
			}
		case repository.OpILike:
			if !strings.Contains(strings.ToLower(fmt.Sprint(val)), strings.ToLower(fmt.Sprint(f.Value))) {
				return false
			}
		}
	}
	return true
}

func paginate[T any](recs []T, p pagination.Params) []T {
	if p.Limit == 0 {
		return recs
	}
	if p.Offset >= len(recs) {
		return []T{}
	}
	end := p.Offset + p.Limit
	if end > len(recs) {
		end = len(recs)
	}
	return recs[p.Offset:end]
}

type memStore[T any] struct {
	mu     sync.Mutex
	rows   map[int64]T
	nextID int64
	// unique rejects a create that violates a unique index
	unique func(rows map[int64]T, rec *T) error
}

func newMemStore[T any]() *memStore[T] {
	return &memStore[T]{rows: map[int64]T{}}
}

func scopedOf[T any](rec *T) model.Scoped {
	return any(rec).(model.Scoped)
}

func setField(rec interface{}, name string, v interface{}) {
	f := reflect.ValueOf(rec).Elem().FieldByName(name)
	if f.IsValid() && f.CanSet() {
		f.Set(reflect.ValueOf(v))
	}
}

func (s *memStore[T]) snapshot() func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows, next := maps.Clone(s.rows), s.nextID
	return func() {
		s.mu.Lock()
		s.rows, s.nextID = rows, next
		s.mu.Unlock()
	}
}

func (s *memStore[T]) Get(_ context.Context, orgID, id int64) (*T, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.rows[id]
	if !ok || scopedOf(&row).TenantID() != orgID {
		return nil, gorm.ErrRecordNotFound
	}
	return &row, nil
}

func (s *memStore[T]) GetForUpdate(ctx context.Context, orgID, id int64) (*T, error) {
	return s.Get(ctx, orgID, id)
}

func (s *memStore[T]) filtered(orgID int64, filters []repository.Filter) []T {
	var out []T
	for _, row := range s.rows {
		if scopedOf(&row).TenantID() == orgID && matches(&row, filters) {
			out = append(out, row)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return scopedOf(&out[i]).EntityID() > scopedOf(&out[j]).EntityID()
	})
	return out
}

func (s *memStore[T]) List(_ context.Context, orgID int64, q repository.ListQuery) ([]T, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	all := s.filtered(orgID, q.Filters)
	return paginate(all, q.Page), int64(len(all)), nil
}

func (s *memStore[T]) Count(_ context.Context, orgID int64, filters ...repository.Filter) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.filtered(orgID, filters))), nil
}

func (s *memStore[T]) Create(_ context.Context, rec *T) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.unique != nil {
		if err := s.unique(s.rows, rec); err != nil {
			return err
		}
	}
	s.nextID++
	ts := time.Now().UTC()
	setField(rec, "ID", s.nextID)
	setField(rec, "CreatedAt", ts)
	setField(rec, "UpdatedAt", ts)
	s.rows[s.nextID] = *rec
	return nil
}

func (s *memStore[T]) Save(_ context.Context, orgID int64, rec *T) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := scopedOf(rec).EntityID()
	row, ok := s.rows[id]
	if !ok || scopedOf(&row).TenantID() != orgID {
		return gorm.ErrRecordNotFound
	}
	s.rows[id] = *rec
	return nil
}

func (s *memStore[T]) Delete(_ context.Context, orgID, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.rows[id]
	if !ok || scopedOf(&row).TenantID() != orgID {
		return gorm.ErrRecordNotFound
	}
	delete(s.rows, id)
	return nil
}

// put inserts a fixture row as is and returns its id
func (s *memStore[T]) put(orgID int64, rec *T) int64 {
	scopedOf(rec).Stamp(orgID, uuid.Nil)
	if err := s.Create(context.Background(), rec); err != nil {
		panic(err)
	}
	return scopedOf(rec).EntityID()
}

func (s *memStore[T]) all() []T {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Collect(maps.Values(s.rows))
}

type memProducts struct {
	*memStore[model.Product]
}

func (r memProducts) DecrementStock(_ context.Context, orgID, productID int64, qty decimal.Decimal) (decimal.Decimal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.rows[productID]
	if !ok || p.OrganizationID != orgID {
		return decimal.Zero, gorm.ErrRecordNotFound
	}
	if p.Quantity.LessThan(qty) {
		return decimal.Zero, repository.ErrInsufficientStock
	}
	p.Quantity = p.Quantity.Sub(qty)
	r.rows[productID] = p
	return p.Quantity, nil
}

type memOrders struct {
	*memStore[model.Order]
	clients *memStore[model.Client]

	itemMu     sync.Mutex
	items      map[int64]model.OrderItem
	nextItemID int64
}

func newMemOrders(clients *memStore[model.Client]) *memOrders {
	return &memOrders{memStore: newMemStore[model.Order](), clients: clients, items: map[int64]model.OrderItem{}}
}

func (r *memOrders) snapshot() func() {
	restoreOrders := r.memStore.snapshot()
	r.itemMu.Lock()
	items, next := maps.Clone(r.items), r.nextItemID
	r.itemMu.Unlock()
	return func() {
		restoreOrders()
		r.itemMu.Lock()
		r.items, r.nextItemID = items, next
		r.itemMu.Unlock()
	}
}

func (r *memOrders) ListItems(_ context.Context, orderID int64) ([]model.OrderItem, error) {
	r.itemMu.Lock()
	defer r.itemMu.Unlock()
	var out []model.OrderItem
	for _, it := range r.items {
		if it.OrderID == orderID {
			out = append(out, it)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memOrders) GetItem(_ context.Context, orderID, itemID int64) (*model.OrderItem, error) {
	r.itemMu.Lock()
	defer r.itemMu.Unlock()
	it, ok := r.items[itemID]
	if !ok || it.OrderID != orderID {
		return nil, gorm.ErrRecordNotFound
	}
	return &it, nil
}

func (r *memOrders) CreateItem(_ context.Context, item *model.OrderItem) error {
	r.itemMu.Lock()
	defer r.itemMu.Unlock()
	r.nextItemID++
	item.ID = r.nextItemID
	item.CreatedAt = time.Now().UTC()
	r.items[item.ID] = *item
	return nil
}

func (r *memOrders) SaveItem(_ context.Context, item *model.OrderItem) error {
	r.itemMu.Lock()
	defer r.itemMu.Unlock()
	if existing, ok := r.items[item.ID]; !ok || existing.OrderID != item.OrderID {
		return gorm.ErrRecordNotFound
	}
	r.items[item.ID] = *item
	return nil
}

func (r *memOrders) DeleteItem(_ context.Context, orderID, itemID int64) error {
	r.itemMu.Lock()
	defer r.itemMu.Unlock()
	if it, ok := r.items[itemID]; !ok || it.OrderID != orderID {
		return gorm.ErrRecordNotFound
	}
	delete(r.items, itemID)
	return nil
}

func (r *memOrders) PaidSubtotals(ctx context.Context, orgID int64) ([]repository.OrderSubtotal, error) {
	var out []repository.OrderSubtotal
	for _, o := range r.all() {
		if o.OrganizationID != orgID || o.Status != model.OrderStatusSucceeded {
			continue
		}
		client, err := r.clients.Get(ctx, orgID, o.ClientID)
		if err != nil {
			continue
		}
		items, _ := r.ListItems(ctx, o.ID)
		sub := decimal.Zero
		for _, it := range items {
			sub = sub.Add(it.Price.Mul(it.Quantity))
		}
		out = append(out, repository.OrderSubtotal{OrderID: o.ID, ClientType: client.ClientType, Subtotal: sub})
	}
	return out, nil
}

type memDeliveries struct {
	*memStore[model.Delivery]

	logMu     sync.Mutex
	log       []model.DeliveryStatusUpdate
	nextLogID int64
}

func newMemDeliveries() *memDeliveries {
	store := newMemStore[model.Delivery]()
	store.unique = func(rows map[int64]model.Delivery, rec *model.Delivery) error {
		for _, d := range rows {
			if d.OrderID == rec.OrderID {
				return gorm.ErrDuplicatedKey
			}
		}
		return nil
	}
	return &memDeliveries{memStore: store}
}

func (r *memDeliveries) snapshot() func() {
	restoreDeliveries := r.memStore.snapshot()
	r.logMu.Lock()
	log, next := slices.Clone(r.log), r.nextLogID
	r.logMu.Unlock()
	return func() {
		restoreDeliveries()
		r.logMu.Lock()
		r.log, r.nextLogID = log, next
		r.logMu.Unlock()
	}
}

func (r *memDeliveries) FindByOrderID(_ context.Context, orgID, orderID int64) (*model.Delivery, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, d := range r.rows {
		if d.OrganizationID == orgID && d.OrderID == orderID {
			return &d, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *memDeliveries) AppendStatus(_ context.Context, update *model.DeliveryStatusUpdate) error {
	r.logMu.Lock()
	defer r.logMu.Unlock()
	if update.Status == model.DeliveryPacked {
		for _, u := range r.log {
			if u.DeliveryID == update.DeliveryID && u.Status == model.DeliveryPacked {
				return gorm.ErrDuplicatedKey
			}
		}
	}
	r.nextLogID++
	update.ID = r.nextLogID
	r.log = append(r.log, *update)
	return nil
}

func (r *memDeliveries) StatusLog(_ context.Context, deliveryID int64) ([]model.DeliveryStatusUpdate, error) {
	r.logMu.Lock()
	defer r.logMu.Unlock()
	var out []model.DeliveryStatusUpdate
	for _, u := range r.log {
		if u.DeliveryID == deliveryID {
			out = append(out, u)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

type memProcurement struct {
	rfqs *memStore[model.RFQ]

	mu          sync.Mutex
	quotes      map[int64]model.Quotation
	nextQuoteID int64
}

func newMemProcurement() *memProcurement {
	return &memProcurement{rfqs: newMemStore[model.RFQ](), quotes: map[int64]model.Quotation{}}
}

func (r *memProcurement) snapshot() func() {
	restoreRFQs := r.rfqs.snapshot()
	r.mu.Lock()
	quotes, next := maps.Clone(r.quotes), r.nextQuoteID
	r.mu.Unlock()
	return func() {
		restoreRFQs()
		r.mu.Lock()
		r.quotes, r.nextQuoteID = quotes, next
		r.mu.Unlock()
	}
}

func (r *memProcurement) RFQs() repository.Store[model.RFQ] { return r.rfqs }

func (r *memProcurement) CreateQuotation(_ context.Context, q *model.Quotation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextQuoteID++
	q.ID = r.nextQuoteID
	q.CreatedAt = time.Now().UTC()
	r.quotes[q.ID] = *q
	return nil
}

func (r *memProcurement) ListQuotations(_ context.Context, rfqID int64, p pagination.Params) ([]model.Quotation, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Quotation
	for _, q := range r.quotes {
		if q.RFQID == rfqID {
			out = append(out, q)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return paginate(out, p), int64(len(out)), nil
}

func (r *memProcurement) GetQuotation(_ context.Context, rfqID, id int64) (*model.Quotation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	q, ok := r.quotes[id]
	if !ok || q.RFQID != rfqID {
		return nil, gorm.ErrRecordNotFound
	}
	return &q, nil
}

func (r *memProcurement) MarkSelected(_ context.Context, rfqID, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	q, ok := r.quotes[id]
	if !ok || q.RFQID != rfqID {
		return gorm.ErrRecordNotFound
	}
	for _, other := range r.quotes {
		if other.RFQID == rfqID && other.Selected {
			return gorm.ErrDuplicatedKey
		}
	}
	q.Selected = true
	r.quotes[id] = q
	return nil
}

func (r *memProcurement) SelectedExpense(_ context.Context, orgID int64) (decimal.Decimal, error) {
	total := decimal.Zero
	for _, rfq := range r.rfqs.all() {
		if rfq.OrganizationID != orgID {
			continue
		}
		r.mu.Lock()
		for _, q := range r.quotes {
			if q.RFQID == rfq.ID && q.Selected {
				total = total.Add(q.Price.Mul(q.Quantity))
			}
		}
		r.mu.Unlock()
	}
	return total, nil
}

type memAudit struct {
	mu      sync.Mutex
	entries []model.AuditLog
}

func (r *memAudit) snapshot() func() {
	r.mu.Lock()
	defer r.mu.Unlock()
	entries := slices.Clone(r.entries)
	return func() {
		r.mu.Lock()
		r.entries = entries
		r.mu.Unlock()
	}
}

func (r *memAudit) Log(_ context.Context, entry *model.AuditLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry.ID = int64(len(r.entries) + 1)
	entry.CreatedAt = time.Now().UTC()
	r.entries = append(r.entries, *entry)
	return nil
}

func (r *memAudit) List(_ context.Context, orgID int64, p pagination.Params) ([]model.AuditLog, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.AuditLog
	for i := len(r.entries) - 1; i >= 0; i-- {
		if r.entries[i].OrganizationID == orgID {
			out = append(out, r.entries[i])
		}
	}
	return paginate(out, p), int64(len(out)), nil
}

func (r *memAudit) actions(orgID int64) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, e := range r.entries {
		if e.OrganizationID == orgID {
			out = append(out, e.Action)
		}
	}
	return out
}

type memOrgs struct {
	mu     sync.Mutex
	rows   map[int64]model.Organization
	nextID int64
}

func newMemOrgs() *memOrgs {
	return &memOrgs{rows: map[int64]model.Organization{}}
}

func (r *memOrgs) snapshot() func() {
	r.mu.Lock()
	defer r.mu.Unlock()
	rows, next := maps.Clone(r.rows), r.nextID
	return func() {
		r.mu.Lock()
		r.rows, r.nextID = rows, next
		r.mu.Unlock()
	}
}

func (r *memOrgs) Create(_ context.Context, org *model.Organization) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	org.ID = r.nextID
	r.rows[org.ID] = *org
	return nil
}

func (r *memOrgs) GetByID(_ context.Context, id int64) (*model.Organization, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	org, ok := r.rows[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &org, nil
}

func (r *memOrgs) Update(_ context.Context, org *model.Organization) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rows[org.ID]; !ok {
		return gorm.ErrRecordNotFound
	}
	r.rows[org.ID] = *org
	return nil
}

type memAccounts struct {
	mu   sync.Mutex
	rows map[uuid.UUID]model.UserAccount
}

func newMemAccounts() *memAccounts {
	return &memAccounts{rows: map[uuid.UUID]model.UserAccount{}}
}

func (r *memAccounts) snapshot() func() {
	r.mu.Lock()
	defer r.mu.Unlock()
	rows := maps.Clone(r.rows)
	return func() {
		r.mu.Lock()
		r.rows = rows
		r.mu.Unlock()
	}
}

func (r *memAccounts) Create(_ context.Context, user *model.UserAccount) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.rows {
		if u.Email == user.Email {
			return gorm.ErrDuplicatedKey
		}
	}
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	user.CreatedAt = time.Now().UTC()
	r.rows[user.ID] = *user
	return nil
}

func (r *memAccounts) GetByID(_ context.Context, id uuid.UUID) (*model.UserAccount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.rows[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &u, nil
}

func (r *memAccounts) GetByEmail(_ context.Context, email string) (*model.UserAccount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.rows {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *memAccounts) ListByOrganization(_ context.Context, orgID int64, p pagination.Params) ([]model.UserAccount, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.UserAccount
	for _, u := range r.rows {
		if u.OrganizationID != nil && *u.OrganizationID == orgID {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	return paginate(out, p), int64(len(out)), nil
}

func (r *memAccounts) SetOrganization(_ context.Context, id uuid.UUID, orgID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.rows[id]
	if !ok || u.OrganizationID != nil {
		return gorm.ErrRecordNotFound
	}
	u.OrganizationID = &orgID
	r.rows[id] = u
	return nil
}

type memTokens struct {
	mu   sync.Mutex
	rows map[string]model.RefreshToken
}

func newMemTokens() *memTokens {
	return &memTokens{rows: map[string]model.RefreshToken{}}
}

func (r *memTokens) snapshot() func() {
	r.mu.Lock()
	defer r.mu.Unlock()
	rows := maps.Clone(r.rows)
	return func() {
		r.mu.Lock()
		r.rows = rows
		r.mu.Unlock()
	}
}

func (r *memTokens) Create(_ context.Context, token *model.RefreshToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rows[token.Token]; ok {
		return gorm.ErrDuplicatedKey
	}
	r.rows[token.Token] = *token
	return nil
}

func (r *memTokens) GetActive(_ context.Context, token string, now time.Time) (*model.RefreshToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rt, ok := r.rows[token]
	if !ok || rt.RevokedAt != nil || !rt.ExpiresAt.After(now) {
		return nil, gorm.ErrRecordNotFound
	}
	return &rt, nil
}

func (r *memTokens) Revoke(_ context.Context, token string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rt, ok := r.rows[token]
	if !ok || rt.RevokedAt != nil {
		return gorm.ErrRecordNotFound
	}
	rt.RevokedAt = &at
	r.rows[token] = rt
	return nil
}

// recordingPublisher captures realtime events
type recordingPublisher struct {
	mu     sync.Mutex
	events []string
}

func (p *recordingPublisher) Publish(orgID int64, event string, _ interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, fmt.Sprintf("%d:%s", orgID, event))
}

func (p *recordingPublisher) list() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.events)
}
