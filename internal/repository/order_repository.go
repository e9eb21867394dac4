package repository

import (
	"context"
	"time"

	"app/internal/domain/model"
)

type OrderRepository interface {
	Create(ctx context.Context, order model.Order) (int64, error)
	FindByTrackingCode(ctx context.Context, code string) (model.Order, error)

	// 所有者＋（任意で）ステータスで絞って1件取得する。
	// 該当しなければErrNotFound。存在・所有・状態の区別は呼び出し側に見せない
	FindForUser(ctx context.Context, userID int64, orderID int64, status model.OrderStatus) (model.Order, error)

	// 所有者を問わずステータスで絞って取得（管理者用）
	FindWithStatus(ctx context.Context, orderID int64, status model.OrderStatus) (model.Order, error)

	ListByUserID(ctx context.Context, userID int64, page int, limit int) ([]model.Order, int64, error)

	UpdateStatus(ctx context.Context, orderID int64, status model.OrderStatus) error
	UpdateTotalPrice(ctx context.Context, orderID int64, total float64) error

	// 明細ごと削除する
	Delete(ctx context.Context, orderID int64) error

	// olderThanより古いPENDING注文を明細ごと削除し、件数を返す
	DeleteStalePending(ctx context.Context, olderThan time.Time) (int64, error)

	// 商品価格の変更をPENDING注文の合計へ反映する。
	// total_price += (newPrice - 明細のスナップショット価格) × 数量。
	// 明細のスナップショットを書き換える前に呼ぶこと
	AdjustPendingTotals(ctx context.Context, productID int64, newPrice float64) error
}
