package usecase_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"app/internal/domain/model"
	repo "app/internal/repository"
	"app/internal/usecase"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func newOrderUsecase(tx *txManagerStub, cache *cacheFake, pub *publisherFake) *usecase.OrderUsecase {
	return usecase.NewOrderUsecase(tx, cache, pub, zerolog.Nop())
}

func TestOrderUsecase_Create_Success(t *testing.T) {
	ctx := context.Background()
	repos := newTxRepos()
	tx := &txManagerStub{repos: repos}
	pub := &publisherFake{}
	uc := newOrderUsecase(tx, newCacheFake(), pub)

	snapshot := map[int64]model.Product{
		1: {ID: 1, Name: "coffee", Price: 500.0, Inventory: 10},
		2: {ID: 2, Name: "mug", Price: 1200.0, Inventory: 3},
	}
	repos.inventory.On("SnapshotByIDs", mock.Anything, []int64{1, 2}, false).Return(snapshot, nil)
	repos.orders.On("Create", mock.Anything, mock.MatchedBy(func(o model.Order) bool {
		return o.UserID == int64(7) &&
			o.Status == model.OrderStatusPending &&
			o.TotalPrice == 500.0*2+1200.0 &&
			o.TrackingCode != ""
	})).Return(int64(42), nil)
	repos.items.On("CreateBulk", mock.Anything, int64(42), mock.MatchedBy(func(items []model.Item) bool {
		// スナップショット価格が明細に凍結されていること
		return len(items) == 2 &&
			items[0].ProductID == 1 && items[0].Quantity == 2 && items[0].ProductPrice == 500.0 &&
			items[1].ProductID == 2 && items[1].Quantity == 1 && items[1].ProductPrice == 1200.0
	})).Return(nil)

	out, err := uc.Create(ctx, 7, usecase.CreateOrderInput{Items: []usecase.OrderItemInput{
		{ProductID: 1, Quantity: 2},
		{ProductID: 2, Quantity: 1},
	}})

	assert.NoError(t, err)
	assert.Equal(t, int64(42), out.ID)
	assert.Equal(t, "PENDING", out.Status)
	assert.Equal(t, 2200.0, out.TotalPrice)
	assert.NotEmpty(t, out.TrackingCode)
	assert.Len(t, out.Items, 2)

	// コミット後にイベントが1本流れること
	if assert.Len(t, pub.events, 1) {
		assert.Equal(t, "order.created", pub.events[0].Type)
		assert.Equal(t, int64(42), pub.events[0].OrderID)
	}

	repos.orders.AssertExpectations(t)
	repos.items.AssertExpectations(t)
}

func TestOrderUsecase_Create_CollectsAllValidationErrors(t *testing.T) {
	ctx := context.Background()
	repos := newTxRepos()
	tx := &txManagerStub{repos: repos}
	pub := &publisherFake{}
	uc := newOrderUsecase(tx, newCacheFake(), pub)

	// 商品1は存在しない、商品2は在庫不足。両方まとめて返る
	snapshot := map[int64]model.Product{
		2: {ID: 2, Price: 100.0, Inventory: 1},
	}
	repos.inventory.On("SnapshotByIDs", mock.Anything, []int64{1, 2}, false).Return(snapshot, nil)

	_, err := uc.Create(ctx, 7, usecase.CreateOrderInput{Items: []usecase.OrderItemInput{
		{ProductID: 1, Quantity: 1},
		{ProductID: 2, Quantity: 5},
	}})

	assertValidationErrors(t, err,
		"Product with id 1 not found.",
		"Product 2 has insufficient stock: 1 available.",
	)
	assert.Empty(t, pub.events)
	repos.orders.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestOrderUsecase_Create_FormErrorsBeforeDB(t *testing.T) {
	uc := newOrderUsecase(&txManagerStub{repos: newTxRepos()}, newCacheFake(), &publisherFake{})

	_, err := uc.Create(context.Background(), 7, usecase.CreateOrderInput{Items: []usecase.OrderItemInput{
		{ProductID: 0, Quantity: 1},
		{ProductID: 3, Quantity: 0},
	}})

	assertValidationErrors(t, err,
		"product_id must be a positive integer.",
		"Product 3 quantity must be >= 1.",
	)
}

func TestOrderUsecase_Create_EmptyItems(t *testing.T) {
	uc := newOrderUsecase(&txManagerStub{repos: newTxRepos()}, newCacheFake(), &publisherFake{})

	_, err := uc.Create(context.Background(), 7, usecase.CreateOrderInput{})
	assertValidationErrors(t, err, "items must not be empty.")
}

func TestOrderUsecase_List_Envelope(t *testing.T) {
	ctx := context.Background()
	repos := newTxRepos()
	uc := newOrderUsecase(&txManagerStub{repos: repos}, newCacheFake(), &publisherFake{})

	orders := []model.Order{
		{ID: 1, UserID: 7, Status: model.OrderStatusPending, TotalPrice: 100, TrackingCode: "a", CreatedAt: time.Now()},
		{ID: 2, UserID: 7, Status: model.OrderStatusConfirmed, TotalPrice: 200, TrackingCode: "b", CreatedAt: time.Now()},
	}
	repos.orders.On("ListByUserID", mock.Anything, int64(7), 2, 5).Return(orders, int64(12), nil)
	repos.items.On("ListByOrderID", mock.Anything, int64(1)).Return([]model.Item{}, nil)
	repos.items.On("ListByOrderID", mock.Anything, int64(2)).Return([]model.Item{}, nil)

	out, err := uc.List(ctx, 7, 2)
	assert.NoError(t, err)
	assert.Equal(t, 2, out.Page)
	assert.Equal(t, 5, out.PerPage)
	assert.Equal(t, int64(12), out.TotalOrders)
	assert.Equal(t, 3, out.TotalPages)
	assert.True(t, out.HasNext)
	assert.True(t, out.HasPrev)
	assert.Len(t, out.Orders, 2)
}

func TestOrderUsecase_GetByTracking_CacheHit(t *testing.T) {
	repos := newTxRepos()
	cache := newCacheFake()
	cache.store["abc"] = usecase.OrderOutput{ID: 9, TrackingCode: "abc"}
	uc := newOrderUsecase(&txManagerStub{repos: repos}, cache, &publisherFake{})

	out, err := uc.GetByTracking(context.Background(), "abc")
	assert.NoError(t, err)
	assert.Equal(t, int64(9), out.ID)
	repos.orders.AssertNotCalled(t, "FindByTrackingCode", mock.Anything, mock.Anything)
}

func TestOrderUsecase_GetByTracking_MissFillsCache(t *testing.T) {
	repos := newTxRepos()
	cache := newCacheFake()
	uc := newOrderUsecase(&txManagerStub{repos: repos}, cache, &publisherFake{})

	o := model.Order{ID: 9, UserID: 7, Status: model.OrderStatusPending, TrackingCode: "abc"}
	repos.orders.On("FindByTrackingCode", mock.Anything, "abc").Return(o, nil)
	repos.items.On("ListByOrderID", mock.Anything, int64(9)).Return([]model.Item{
		{ProductID: 1, Quantity: 2, ProductPrice: 500.0},
	}, nil)

	out, err := uc.GetByTracking(context.Background(), "abc")
	assert.NoError(t, err)
	assert.Equal(t, int64(9), out.ID)

	cached, ok := cache.store["abc"]
	assert.True(t, ok)
	assert.Equal(t, out, cached)
}

func TestOrderUsecase_GetByTracking_NotFound(t *testing.T) {
	repos := newTxRepos()
	uc := newOrderUsecase(&txManagerStub{repos: repos}, newCacheFake(), &publisherFake{})

	repos.orders.On("FindByTrackingCode", mock.Anything, "nope").Return(model.Order{}, repo.ErrNotFound)

	_, err := uc.GetByTracking(context.Background(), "nope")
	assertHTTPError(t, err, http.StatusNotFound, "User don't have this order.")
}
