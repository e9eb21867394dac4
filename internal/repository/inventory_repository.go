package repository

import (
	"app/internal/domain/model"
	"context"
)

// 在庫台帳。商品在庫の読み取りと増減だけを約束。
type InventoryRepository interface {
	// 指定IDの商品の現在在庫・価格スナップショットを返す。
	// lock=trueならトランザクション終了まで行ロックを取る。
	SnapshotByIDs(ctx context.Context, ids []int64, lock bool) (map[int64]model.Product, error)

	// 在庫にdeltaを適用し、履歴を1行残す。
	// 減算で在庫が足りないときは適用せずfalseを返す。
	ApplyDelta(ctx context.Context, productID int64, delta int64, reason model.StockMovementReason, orderID *int64) (bool, error)

	// 増減履歴だけを残す（管理者による在庫の直接書き換えなど）
	RecordMovement(ctx context.Context, m model.StockMovement) error
}
