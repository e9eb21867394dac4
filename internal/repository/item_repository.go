package repository

import (
	"context"

	"app/internal/domain/model"
)

type ItemRepository interface {
	CreateBulk(ctx context.Context, orderID int64, items []model.Item) error
	ListByOrderID(ctx context.Context, orderID int64) ([]model.Item, error)
	DeleteByOrderID(ctx context.Context, orderID int64) error

	// PENDING注文に属する該当商品の明細スナップショットを新価格へ置き換え、
	// 更新した件数を返す
	RepriceForPendingOrders(ctx context.Context, productID int64, newPrice float64) (int64, error)
}
