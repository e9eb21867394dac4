package usecase_test

import (
	"context"
	"net/http"
	"testing"

	"app/internal/domain/model"
	repo "app/internal/repository"
	"app/internal/usecase"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func newProductUsecase(tx *txManagerStub) *usecase.ProductUsecase {
	return usecase.NewProductUsecase(tx, usecase.NewPriceSync(zerolog.Nop()))
}

func TestProductUsecase_Get_NotFound(t *testing.T) {
	repos := newTxRepos()
	uc := newProductUsecase(&txManagerStub{repos: repos})

	repos.products.On("FindByID", mock.Anything, int64(99)).Return(model.Product{}, repo.ErrNotFound)

	_, err := uc.Get(context.Background(), 99)
	assertHTTPError(t, err, http.StatusNotFound, "Product with product_id 99 not found.")
}

func TestProductUsecase_Create_DuplicateName(t *testing.T) {
	repos := newTxRepos()
	uc := newProductUsecase(&txManagerStub{repos: repos})

	repos.products.On("ExistsByName", mock.Anything, "coffee", int64(0)).Return(true, nil)

	_, err := uc.Create(context.Background(), 1, usecase.ProductInput{Name: "coffee", Price: 500})
	assertHTTPError(t, err, http.StatusBadRequest, "Product with this name coffee already exists.")
	repos.products.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestProductUsecase_Create_InvalidInput(t *testing.T) {
	uc := newProductUsecase(&txManagerStub{repos: newTxRepos()})

	_, err := uc.Create(context.Background(), 1, usecase.ProductInput{Name: " ", Price: -1, Inventory: -5})
	assertValidationErrors(t, err,
		"name is required.",
		"price must be >= 0.",
		"inventory must be >= 0.",
	)
}

func TestProductUsecase_Create_WritesAudit(t *testing.T) {
	repos := newTxRepos()
	uc := newProductUsecase(&txManagerStub{repos: repos})

	actorID := int64(1)
	repos.products.On("ExistsByName", mock.Anything, "coffee", int64(0)).Return(false, nil)
	repos.products.On("Create", mock.Anything, mock.MatchedBy(func(p model.Product) bool {
		return p.Name == "coffee" && p.CreatedBy != nil && *p.CreatedBy == actorID
	})).Return(model.Product{ID: 5, Name: "coffee", Price: 500, Inventory: 10}, nil)
	repos.audits.On("Create", mock.Anything, mock.MatchedBy(func(l model.AuditLog) bool {
		return l.Action == model.AuditActionCreateProduct && l.ResourceID == int64(5)
	})).Return(nil)

	out, err := uc.Create(context.Background(), actorID, usecase.ProductInput{Name: "coffee", Price: 500, Inventory: 10})
	assert.NoError(t, err)
	assert.Equal(t, int64(5), out.ID)
	repos.audits.AssertExpectations(t)
}

func TestProductUsecase_Update_PriceChangePropagates(t *testing.T) {
	repos := newTxRepos()
	uc := newProductUsecase(&txManagerStub{repos: repos})

	before := model.Product{ID: 5, Name: "coffee", Price: 500, Inventory: 10}
	repos.products.On("FindByID", mock.Anything, int64(5)).Return(before, nil)
	repos.products.On("ExistsByName", mock.Anything, "coffee", int64(5)).Return(false, nil)
	repos.products.On("Update", mock.Anything, mock.Anything).Return(nil)

	//価格が変わったのでPENDING注文へ伝播する
	repos.orders.On("AdjustPendingTotals", mock.Anything, int64(5), 450.0).Return(nil)
	repos.items.On("RepriceForPendingOrders", mock.Anything, int64(5), 450.0).Return(int64(2), nil)
	repos.audits.On("Create", mock.Anything, mock.Anything).Return(nil)

	_, err := uc.Update(context.Background(), 1, 5, usecase.ProductInput{Name: "coffee", Price: 450, Inventory: 10})
	assert.NoError(t, err)
	repos.orders.AssertExpectations(t)
	repos.items.AssertExpectations(t)
}

func TestProductUsecase_Update_SamePriceSkipsSync(t *testing.T) {
	repos := newTxRepos()
	uc := newProductUsecase(&txManagerStub{repos: repos})

	before := model.Product{ID: 5, Name: "coffee", Price: 500, Inventory: 10}
	repos.products.On("FindByID", mock.Anything, int64(5)).Return(before, nil)
	repos.products.On("ExistsByName", mock.Anything, "coffee", int64(5)).Return(false, nil)
	repos.products.On("Update", mock.Anything, mock.Anything).Return(nil)
	repos.audits.On("Create", mock.Anything, mock.Anything).Return(nil)

	_, err := uc.Update(context.Background(), 1, 5, usecase.ProductInput{Name: "coffee", Price: 500, Inventory: 10})
	assert.NoError(t, err)
	repos.orders.AssertNotCalled(t, "AdjustPendingTotals", mock.Anything, mock.Anything, mock.Anything)
	repos.items.AssertNotCalled(t, "RepriceForPendingOrders", mock.Anything, mock.Anything, mock.Anything)
}

func TestProductUsecase_Update_InventoryChangeRecordsMovement(t *testing.T) {
	repos := newTxRepos()
	uc := newProductUsecase(&txManagerStub{repos: repos})

	before := model.Product{ID: 5, Name: "coffee", Price: 500, Inventory: 10}
	repos.products.On("FindByID", mock.Anything, int64(5)).Return(before, nil)
	repos.products.On("ExistsByName", mock.Anything, "coffee", int64(5)).Return(false, nil)
	repos.products.On("Update", mock.Anything, mock.Anything).Return(nil)
	repos.inventory.On("RecordMovement", mock.Anything, mock.MatchedBy(func(mv model.StockMovement) bool {
		return mv.ProductID == int64(5) && mv.Delta == int64(15) && mv.Reason == model.StockMovementAdminSet
	})).Return(nil)
	repos.audits.On("Create", mock.Anything, mock.Anything).Return(nil)

	_, err := uc.Update(context.Background(), 1, 5, usecase.ProductInput{Name: "coffee", Price: 500, Inventory: 25})
	assert.NoError(t, err)
	repos.inventory.AssertExpectations(t)
}

func TestProductUsecase_Delete_ReferencedIs409(t *testing.T) {
	repos := newTxRepos()
	uc := newProductUsecase(&txManagerStub{repos: repos})

	repos.products.On("FindByID", mock.Anything, int64(5)).Return(model.Product{ID: 5, Name: "coffee"}, nil)
	repos.products.On("Delete", mock.Anything, int64(5)).Return(repo.ErrConflict)

	_, err := uc.Delete(context.Background(), 1, 5)
	assertHTTPError(t, err, http.StatusConflict, "This obj is used in other models and cannot be deleted.")
	repos.audits.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestProductUsecase_List_Envelope(t *testing.T) {
	repos := newTxRepos()
	uc := newProductUsecase(&txManagerStub{repos: repos})

	products := []model.Product{{ID: 1, Name: "coffee"}}
	repos.products.On("List", mock.Anything, 1, 10).Return(products, int64(1), nil)

	out, err := uc.List(context.Background(), 1)
	assert.NoError(t, err)
	assert.Equal(t, 1, out.Page)
	assert.Equal(t, 10, out.PerPage)
	assert.Equal(t, int64(1), out.TotalProducts)
	assert.Equal(t, 1, out.TotalPages)
	assert.False(t, out.HasNext)
	assert.False(t, out.HasPrev)
}
