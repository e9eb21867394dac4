package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"app/internal/domain/model"
	repo "app/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// tracking_code照会のキャッシュ。外れても必ずDBに落ちる約束
type OrderCache interface {
	GetByTracking(ctx context.Context, code string) (OrderOutput, bool)
	SetByTracking(ctx context.Context, code string, out OrderOutput)
	DeleteByTracking(ctx context.Context, code string)
}

type OrderUsecase struct {
	tx     repo.TransactionManager
	cache  OrderCache
	events EventPublisher
	logger zerolog.Logger
}

func NewOrderUsecase(tx repo.TransactionManager, cache OrderCache, events EventPublisher, logger zerolog.Logger) *OrderUsecase {
	return &OrderUsecase{tx: tx, cache: cache, events: events, logger: logger}
}

type OrderItemInput struct {
	ProductID int64 `json:"product_id"`
	Quantity  int64 `json:"quantity"`
}

type CreateOrderInput struct {
	Items []OrderItemInput `json:"items"`
}

type ItemOutput struct {
	ProductID int64 `json:"product_id"`
	Quantity  int64 `json:"quantity"`

	//スナップショット価格。商品の現在価格ではない
	ProductPrice float64 `json:"product_price"`
}

type OrderOutput struct {
	ID           int64        `json:"id"`
	UserID       int64        `json:"user_id"`
	Status       string       `json:"status"`
	CreatedAt    time.Time    `json:"created_at"`
	TotalPrice   float64      `json:"total_price"`
	TrackingCode string       `json:"tracking_code"`
	Items        []ItemOutput `json:"items"`
}

type OrderListOutput struct {
	Page        int           `json:"page"`
	PerPage     int           `json:"per_page"`
	TotalOrders int64         `json:"total_orders"`
	TotalPages  int           `json:"total_pages"`
	HasNext     bool          `json:"has_next"`
	HasPrev     bool          `json:"has_prev"`
	Orders      []OrderOutput `json:"orders"`
}

const ordersPerPage = 5

// 注文作成。
// 明細のバリデーションは全違反をまとめて返す。
// 成功時はPENDINGで作成し、明細にその時点の価格を凍結する
func (u *OrderUsecase) Create(ctx context.Context, userID int64, in CreateOrderInput) (OrderOutput, error) {
	if userID <= 0 {
		return OrderOutput{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if len(in.Items) == 0 {
		return OrderOutput{}, &ValidationError{Errors: []string{"items must not be empty."}}
	}

	//形式チェック（DB不要の違反もまとめる）
	formErrs := []string{}
	ids := make([]int64, 0, len(in.Items))
	for _, it := range in.Items {
		if it.ProductID <= 0 {
			formErrs = append(formErrs, "product_id must be a positive integer.")
			continue
		}
		if it.Quantity < 1 {
			formErrs = append(formErrs, fmt.Sprintf("Product %d quantity must be >= 1.", it.ProductID))
			continue
		}
		ids = append(ids, it.ProductID)
	}
	if len(formErrs) > 0 {
		return OrderOutput{}, &ValidationError{Errors: formErrs}
	}

	var out OrderOutput

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		//一貫した読み取りで在庫・価格のスナップショットを取る（ロックなし）
		snapshot, err := r.Inventory().SnapshotByIDs(ctx, ids, false)
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		items, total, verr := buildItems(in.Items, snapshot)
		if verr != nil {
			return verr
		}

		now := time.Now()
		order := model.Order{
			UserID:       userID,
			Status:       model.OrderStatusPending,
			TotalPrice:   total,
			TrackingCode: uuid.NewString(),
			CreatedAt:    now,
		}
		orderID, err := r.Orders().Create(ctx, order)
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		if err := r.Items().CreateBulk(ctx, orderID, items); err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		order.ID = orderID
		out = toOrderOutput(order, items)
		return nil
	})
	if err != nil {
		return OrderOutput{}, err
	}

	u.events.PublishOrderEvent(OrderEvent{
		Type:       EventOrderCreated,
		OrderID:    out.ID,
		UserID:     out.UserID,
		Status:     out.Status,
		TotalPrice: out.TotalPrice,
		OccurredAt: time.Now(),
	})
	u.logger.Info().
		Int64("order_id", out.ID).
		Int64("user_id", userID).
		Float64("total_price", out.TotalPrice).
		Msg("order created")

	return out, nil
}

// 呼び出し側ユーザーの注文一覧（5件/ページ）
func (u *OrderUsecase) List(ctx context.Context, userID int64, page int) (OrderListOutput, error) {
	if userID <= 0 {
		return OrderListOutput{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if page < 1 {
		return OrderListOutput{}, NewHTTPError(http.StatusBadRequest, "invalid page")
	}

	var out OrderListOutput
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		orders, total, err := r.Orders().ListByUserID(ctx, userID, page, ordersPerPage)
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		outs := make([]OrderOutput, 0, len(orders))
		for _, o := range orders {
			items, err := r.Items().ListByOrderID(ctx, o.ID)
			if err != nil {
				return NewHTTPError(http.StatusInternalServerError, "db error")
			}
			outs = append(outs, toOrderOutput(o, items))
		}

		out = OrderListOutput{
			Page:        page,
			PerPage:     ordersPerPage,
			TotalOrders: total,
			TotalPages:  pageCount(total, ordersPerPage),
			Orders:      outs,
		}
		out.HasNext = page < out.TotalPages
		out.HasPrev = page > 1
		return nil
	})
	if err != nil {
		return OrderListOutput{}, err
	}
	return out, nil
}

// tracking_codeで1件照会する。所有者は問わない
func (u *OrderUsecase) GetByTracking(ctx context.Context, code string) (OrderOutput, error) {
	if code == "" {
		return OrderOutput{}, NewHTTPError(http.StatusBadRequest, "invalid tracking code")
	}

	if cached, ok := u.cache.GetByTracking(ctx, code); ok {
		return cached, nil
	}

	var out OrderOutput
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := r.Orders().FindByTrackingCode(ctx, code)
		if errors.Is(err, repo.ErrNotFound) {
			return NewHTTPError(http.StatusNotFound, "User don't have this order.")
		}
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		items, err := r.Items().ListByOrderID(ctx, o.ID)
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		out = toOrderOutput(o, items)
		return nil
	})
	if err != nil {
		return OrderOutput{}, err
	}

	u.cache.SetByTracking(ctx, code, out)
	return out, nil
}

// スナップショットに対して明細を検証し、明細と合計を組み立てる。
// 全違反を集めてから返す
func buildItems(inputs []OrderItemInput, snapshot map[int64]model.Product) ([]model.Item, float64, error) {
	errs := []string{}
	items := make([]model.Item, 0, len(inputs))
	var total float64

	for _, in := range inputs {
		p, ok := snapshot[in.ProductID]
		if !ok {
			errs = append(errs, fmt.Sprintf("Product with id %d not found.", in.ProductID))
			continue
		}
		if p.Inventory < in.Quantity {
			errs = append(errs, fmt.Sprintf("Product %d has insufficient stock: %d available.", in.ProductID, p.Inventory))
			continue
		}

		items = append(items, model.Item{
			ProductID:    p.ID,
			Quantity:     in.Quantity,
			ProductPrice: p.Price,
		})
		total += p.Price * float64(in.Quantity)
	}

	if len(errs) > 0 {
		return nil, 0, &ValidationError{Errors: errs}
	}
	return items, total, nil
}

func toOrderOutput(o model.Order, items []model.Item) OrderOutput {
	outItems := make([]ItemOutput, 0, len(items))
	for _, it := range items {
		outItems = append(outItems, ItemOutput{
			ProductID:    it.ProductID,
			Quantity:     it.Quantity,
			ProductPrice: it.ProductPrice,
		})
	}

	return OrderOutput{
		ID:           o.ID,
		UserID:       o.UserID,
		Status:       string(o.Status),
		CreatedAt:    o.CreatedAt,
		TotalPrice:   o.TotalPrice,
		TrackingCode: o.TrackingCode,
		Items:        outItems,
	}
}
