package usecase_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"app/internal/domain/model"
	repo "app/internal/repository"
	"app/internal/usecase"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// =====================
// Repository mocks
// =====================

type UserRepoMock struct{ mock.Mock }

func (m *UserRepoMock) Create(ctx context.Context, user *model.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *UserRepoMock) FindByID(ctx context.Context, userID int64) (model.User, error) {
	args := m.Called(ctx, userID)
	u, _ := args.Get(0).(model.User)
	return u, args.Error(1)
}

func (m *UserRepoMock) FindByEmail(ctx context.Context, email string) (model.User, error) {
	args := m.Called(ctx, email)
	u, _ := args.Get(0).(model.User)
	return u, args.Error(1)
}

func (m *UserRepoMock) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	args := m.Called(ctx, email)
	return args.Bool(0), args.Error(1)
}

type RefreshTokenRepoMock struct{ mock.Mock }

func (m *RefreshTokenRepoMock) Create(ctx context.Context, rt model.RefreshToken) error {
	args := m.Called(ctx, rt)
	return args.Error(0)
}

func (m *RefreshTokenRepoMock) FindByTokenHash(ctx context.Context, hash string) (model.RefreshToken, error) {
	args := m.Called(ctx, hash)
	rt, _ := args.Get(0).(model.RefreshToken)
	return rt, args.Error(1)
}

func (m *RefreshTokenRepoMock) Revoke(ctx context.Context, id string, at time.Time) error {
	args := m.Called(ctx, id, at)
	return args.Error(0)
}

type ProductRepoMock struct{ mock.Mock }

func (m *ProductRepoMock) List(ctx context.Context, page int, limit int) ([]model.Product, int64, error) {
	args := m.Called(ctx, page, limit)
	products, _ := args.Get(0).([]model.Product)
	return products, args.Get(1).(int64), args.Error(2)
}

func (m *ProductRepoMock) FindByID(ctx context.Context, id int64) (model.Product, error) {
	args := m.Called(ctx, id)
	p, _ := args.Get(0).(model.Product)
	return p, args.Error(1)
}

func (m *ProductRepoMock) ExistsByName(ctx context.Context, name string, excludeID int64) (bool, error) {
	args := m.Called(ctx, name, excludeID)
	return args.Bool(0), args.Error(1)
}

func (m *ProductRepoMock) Create(ctx context.Context, p model.Product) (model.Product, error) {
	args := m.Called(ctx, p)
	created, _ := args.Get(0).(model.Product)
	return created, args.Error(1)
}

func (m *ProductRepoMock) Update(ctx context.Context, p model.Product) error {
	args := m.Called(ctx, p)
	return args.Error(0)
}

func (m *ProductRepoMock) Delete(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

type InventoryRepoMock struct{ mock.Mock }

func (m *InventoryRepoMock) SnapshotByIDs(ctx context.Context, ids []int64, lock bool) (map[int64]model.Product, error) {
	args := m.Called(ctx, ids, lock)
	snapshot, _ := args.Get(0).(map[int64]model.Product)
	return snapshot, args.Error(1)
}

func (m *InventoryRepoMock) ApplyDelta(ctx context.Context, productID int64, delta int64, reason model.StockMovementReason, orderID *int64) (bool, error) {
	args := m.Called(ctx, productID, delta, reason, orderID)
	return args.Bool(0), args.Error(1)
}

func (m *InventoryRepoMock) RecordMovement(ctx context.Context, mv model.StockMovement) error {
	args := m.Called(ctx, mv)
	return args.Error(0)
}

type OrderRepoMock struct{ mock.Mock }

func (m *OrderRepoMock) Create(ctx context.Context, order model.Order) (int64, error) {
	args := m.Called(ctx, order)
	return args.Get(0).(int64), args.Error(1)
}

func (m *OrderRepoMock) FindByTrackingCode(ctx context.Context, code string) (model.Order, error) {
	args := m.Called(ctx, code)
	o, _ := args.Get(0).(model.Order)
	return o, args.Error(1)
}

func (m *OrderRepoMock) FindForUser(ctx context.Context, userID int64, orderID int64, status model.OrderStatus) (model.Order, error) {
	args := m.Called(ctx, userID, orderID, status)
	o, _ := args.Get(0).(model.Order)
	return o, args.Error(1)
}

func (m *OrderRepoMock) FindWithStatus(ctx context.Context, orderID int64, status model.OrderStatus) (model.Order, error) {
	args := m.Called(ctx, orderID, status)
	o, _ := args.Get(0).(model.Order)
	return o, args.Error(1)
}

func (m *OrderRepoMock) ListByUserID(ctx context.Context, userID int64, page int, limit int) ([]model.Order, int64, error) {
	args := m.Called(ctx, userID, page, limit)
	orders, _ := args.Get(0).([]model.Order)
	return orders, args.Get(1).(int64), args.Error(2)
}

func (m *OrderRepoMock) UpdateStatus(ctx context.Context, orderID int64, status model.OrderStatus) error {
	args := m.Called(ctx, orderID, status)
	return args.Error(0)
}

func (m *OrderRepoMock) UpdateTotalPrice(ctx context.Context, orderID int64, total float64) error {
	args := m.Called(ctx, orderID, total)
	return args.Error(0)
}

func (m *OrderRepoMock) Delete(ctx context.Context, orderID int64) error {
	args := m.Called(ctx, orderID)
	return args.Error(0)
}

func (m *OrderRepoMock) DeleteStalePending(ctx context.Context, olderThan time.Time) (int64, error) {
	args := m.Called(ctx, olderThan)
	return args.Get(0).(int64), args.Error(1)
}

func (m *OrderRepoMock) AdjustPendingTotals(ctx context.Context, productID int64, newPrice float64) error {
	args := m.Called(ctx, productID, newPrice)
	return args.Error(0)
}

type ItemRepoMock struct{ mock.Mock }

func (m *ItemRepoMock) CreateBulk(ctx context.Context, orderID int64, items []model.Item) error {
	args := m.Called(ctx, orderID, items)
	return args.Error(0)
}

func (m *ItemRepoMock) ListByOrderID(ctx context.Context, orderID int64) ([]model.Item, error) {
	args := m.Called(ctx, orderID)
	items, _ := args.Get(0).([]model.Item)
	return items, args.Error(1)
}

func (m *ItemRepoMock) DeleteByOrderID(ctx context.Context, orderID int64) error {
	args := m.Called(ctx, orderID)
	return args.Error(0)
}

func (m *ItemRepoMock) RepriceForPendingOrders(ctx context.Context, productID int64, newPrice float64) (int64, error) {
	args := m.Called(ctx, productID, newPrice)
	return args.Get(0).(int64), args.Error(1)
}

type AuditRepoMock struct{ mock.Mock }

func (m *AuditRepoMock) Create(ctx context.Context, log model.AuditLog) error {
	args := m.Called(ctx, log)
	return args.Error(0)
}

// =====================
// Transaction plumbing
// =====================

// テストでは各リポジトリのmockをそのまま返す
type txReposStub struct {
	users     *UserRepoMock
	orders    *OrderRepoMock
	items     *ItemRepoMock
	products  *ProductRepoMock
	inventory *InventoryRepoMock
	audits    *AuditRepoMock
}

func newTxRepos() *txReposStub {
	return &txReposStub{
		users:     new(UserRepoMock),
		orders:    new(OrderRepoMock),
		items:     new(ItemRepoMock),
		products:  new(ProductRepoMock),
		inventory: new(InventoryRepoMock),
		audits:    new(AuditRepoMock),
	}
}

func (r *txReposStub) Users() repo.UserRepository           { return r.users }
func (r *txReposStub) Orders() repo.OrderRepository         { return r.orders }
func (r *txReposStub) Items() repo.ItemRepository           { return r.items }
func (r *txReposStub) Products() repo.ProductRepository     { return r.products }
func (r *txReposStub) Inventory() repo.InventoryRepository  { return r.inventory }
func (r *txReposStub) AuditLogs() repo.AuditLogRepository   { return r.audits }

// fnを即時実行するTransactionManager。
// commitErrを入れるとfn成功後にそのエラーを返す（コミット時の整合性違反の再現用）
type txManagerStub struct {
	repos     *txReposStub
	commitErr error
}

func (m *txManagerStub) WithinTx(ctx context.Context, fn func(r repo.TxRepos) error) error {
	if err := fn(m.repos); err != nil {
		return err
	}
	return m.commitErr
}

// =====================
// Cache / events fakes
// =====================

type cacheFake struct {
	store   map[string]usecase.OrderOutput
	deleted []string
}

func newCacheFake() *cacheFake {
	return &cacheFake{store: map[string]usecase.OrderOutput{}}
}

func (c *cacheFake) GetByTracking(ctx context.Context, code string) (usecase.OrderOutput, bool) {
	out, ok := c.store[code]
	return out, ok
}

func (c *cacheFake) SetByTracking(ctx context.Context, code string, out usecase.OrderOutput) {
	c.store[code] = out
}

func (c *cacheFake) DeleteByTracking(ctx context.Context, code string) {
	delete(c.store, code)
	c.deleted = append(c.deleted, code)
}

type publisherFake struct {
	events []usecase.OrderEvent
}

func (p *publisherFake) PublishOrderEvent(ev usecase.OrderEvent) {
	p.events = append(p.events, ev)
}

// =====================
// Assertion helpers
// =====================

func assertHTTPError(t *testing.T, err error, status int, contains string) {
	t.Helper()
	he, ok := usecase.AsHTTPError(err)
	if !ok {
		t.Fatalf("expected *usecase.HTTPError, got %v", err)
	}
	assert.Equal(t, status, he.Status)
	if contains != "" {
		assert.True(t, strings.Contains(he.Message, contains),
			"message %q should contain %q", he.Message, contains)
	}
}

func assertValidationErrors(t *testing.T, err error, wants ...string) {
	t.Helper()
	ve, ok := usecase.AsValidationError(err)
	if !ok {
		t.Fatalf("expected *usecase.ValidationError, got %v", err)
	}
	assert.Len(t, ve.Errors, len(wants))
	for _, want := range wants {
		found := false
		for _, got := range ve.Errors {
			if strings.Contains(got, want) {
				found = true
				break
			}
		}
		assert.True(t, found, "errors %v should contain %q", ve.Errors, want)
	}
}
