package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"app/internal/domain/model"
	repo "app/internal/repository"
)

type HTTPError struct {
	Status  int
	Message string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%d: %s", e.Status, e.Message)
}

func NewHTTPError(status int, message string) error {
	return &HTTPError{
		Status:  status,
		Message: message,
	}
}

func AsHTTPError(err error) (*HTTPError, bool) {
	var he *HTTPError
	ok := errors.As(err, &he)
	return he, ok
}

// 注文明細のバリデーション結果。すべての違反をまとめて返す
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	return strings.Join(e.Errors, "; ")
}

func AsValidationError(err error) (*ValidationError, bool) {
	var ve *ValidationError
	ok := errors.As(err, &ve)
	return ve, ok
}

type ProductUsecase struct {
	tx        repo.TransactionManager
	priceSync *PriceSync
}

// DI
func NewProductUsecase(tx repo.TransactionManager, priceSync *PriceSync) *ProductUsecase {
	return &ProductUsecase{tx: tx, priceSync: priceSync}
}

type ProductInput struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Price       float64 `json:"price"`
	Inventory   int64   `json:"inventory"`
}

type ProductListOutput struct {
	Page          int             `json:"page"`
	PerPage       int             `json:"per_page"`
	TotalProducts int64           `json:"total_products"`
	TotalPages    int             `json:"total_pages"`
	HasNext       bool            `json:"has_next"`
	HasPrev       bool            `json:"has_prev"`
	Products      []model.Product `json:"products"`
}

const productsPerPage = 10

func (u *ProductUsecase) List(ctx context.Context, page int) (ProductListOutput, error) {
	if page < 1 {
		return ProductListOutput{}, NewHTTPError(http.StatusBadRequest, "invalid page")
	}

	var out ProductListOutput
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		products, total, err := r.Products().List(ctx, page, productsPerPage)
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}
		out = ProductListOutput{
			Page:          page,
			PerPage:       productsPerPage,
			TotalProducts: total,
			TotalPages:    pageCount(total, productsPerPage),
			Products:      products,
		}
		out.HasNext = page < out.TotalPages
		out.HasPrev = page > 1
		return nil
	})
	if err != nil {
		return ProductListOutput{}, err
	}
	return out, nil
}

func (u *ProductUsecase) Get(ctx context.Context, productID int64) (model.Product, error) {
	var out model.Product
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		p, err := r.Products().FindByID(ctx, productID)
		if errors.Is(err, repo.ErrNotFound) {
			return NewHTTPError(http.StatusNotFound, fmt.Sprintf("Product with product_id %d not found.", productID))
		}
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}
		out = p
		return nil
	})
	if err != nil {
		return model.Product{}, err
	}
	return out, nil
}

// 商品作成（管理者のみ）
func (u *ProductUsecase) Create(ctx context.Context, actorID int64, in ProductInput) (model.Product, error) {
	if err := validateProductInput(in); err != nil {
		return model.Product{}, err
	}

	var out model.Product
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		exists, err := r.Products().ExistsByName(ctx, in.Name, 0)
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}
		if exists {
			return NewHTTPError(http.StatusBadRequest, fmt.Sprintf("Product with this name %s already exists.", in.Name))
		}

		p, err := r.Products().Create(ctx, model.Product{
			Name:        in.Name,
			Description: in.Description,
			Price:       in.Price,
			Inventory:   in.Inventory,
			CreatedBy:   &actorID,
		})
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		if err := r.AuditLogs().Create(ctx, auditProduct(actorID, model.AuditActionCreateProduct, p.ID, nil, &p)); err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		out = p
		return nil
	})
	if err != nil {
		return model.Product{}, err
	}
	return out, nil
}

// 商品の全更新（管理者のみ）。
// 価格が実際に変わったときだけPENDING注文へ同期する
func (u *ProductUsecase) Update(ctx context.Context, actorID int64, productID int64, in ProductInput) (model.Product, error) {
	if err := validateProductInput(in); err != nil {
		return model.Product{}, err
	}

	var out model.Product
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		before, err := r.Products().FindByID(ctx, productID)
		if errors.Is(err, repo.ErrNotFound) {
			return NewHTTPError(http.StatusNotFound, fmt.Sprintf("Product with product_id %d not found.", productID))
		}
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		exists, err := r.Products().ExistsByName(ctx, in.Name, productID)
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}
		if exists {
			return NewHTTPError(http.StatusBadRequest, "Product with this name already exists.")
		}

		p := before
		p.Name = in.Name
		p.Description = in.Description
		p.Price = in.Price
		p.Inventory = in.Inventory
		p.UpdatedBy = &actorID

		if err := r.Products().Update(ctx, p); err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		//価格変更の伝播。no-op更新はスキップする
		if before.Price != in.Price {
			if err := u.priceSync.Apply(ctx, r, productID, in.Price); err != nil {
				return NewHTTPError(http.StatusInternalServerError, "db error")
			}
		}

		//在庫の直接書き換えも台帳の履歴に残す
		if before.Inventory != in.Inventory {
			if err := r.Inventory().RecordMovement(ctx, model.StockMovement{
				ProductID: productID,
				Delta:     in.Inventory - before.Inventory,
				Reason:    model.StockMovementAdminSet,
			}); err != nil {
				return NewHTTPError(http.StatusInternalServerError, "db error")
			}
		}

		if err := r.AuditLogs().Create(ctx, auditProduct(actorID, model.AuditActionUpdateProduct, productID, &before, &p)); err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		out = p
		return nil
	})
	if err != nil {
		return model.Product{}, err
	}
	return out, nil
}

// 商品削除（管理者のみ）。注文明細から参照されていると409
func (u *ProductUsecase) Delete(ctx context.Context, actorID int64, productID int64) (string, error) {
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		before, err := r.Products().FindByID(ctx, productID)
		if errors.Is(err, repo.ErrNotFound) {
			return NewHTTPError(http.StatusNotFound, fmt.Sprintf("Product with product_id %d not found.", productID))
		}
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		if err := r.Products().Delete(ctx, productID); err != nil {
			if errors.Is(err, repo.ErrConflict) {
				return NewHTTPError(http.StatusConflict, "This obj is used in other models and cannot be deleted.")
			}
			if errors.Is(err, repo.ErrNotFound) {
				return NewHTTPError(http.StatusNotFound, fmt.Sprintf("Product with product_id %d not found.", productID))
			}
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		if err := r.AuditLogs().Create(ctx, auditProduct(actorID, model.AuditActionDeleteProduct, productID, &before, nil)); err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Product with ID %d successfully deleted.", productID), nil
}

func validateProductInput(in ProductInput) error {
	errs := []string{}
	if strings.TrimSpace(in.Name) == "" {
		errs = append(errs, "name is required.")
	}
	if in.Price < 0 {
		errs = append(errs, "price must be >= 0.")
	}
	if in.Inventory < 0 {
		errs = append(errs, "inventory must be >= 0.")
	}
	if len(errs) > 0 {
		return &ValidationError{Errors: errs}
	}
	return nil
}

// 監査ログの前後スナップショットを作る
func auditProduct(actorID int64, action model.AuditAction, productID int64, before *model.Product, after *model.Product) model.AuditLog {
	return model.AuditLog{
		ActorUserID:  actorID,
		Action:       action,
		ResourceType: model.AuditResourceProduct,
		ResourceID:   productID,
		BeforeJSON:   productAuditJSON(before),
		AfterJSON:    productAuditJSON(after),
	}
}

func productAuditJSON(p *model.Product) string {
	if p == nil {
		return ""
	}
	b, err := json.Marshal(map[string]interface{}{
		"name":      p.Name,
		"price":     p.Price,
		"inventory": p.Inventory,
	})
	if err != nil {
		return ""
	}
	return string(b)
}

func pageCount(total int64, perPage int) int {
	if total == 0 {
		return 0
	}
	return int((total + int64(perPage) - 1) / int64(perPage))
}
