package repository

import (
	"context"

	"app/internal/domain/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type InventoryGormRepository struct {
	db *gorm.DB
}

func NewInventoryGormRepository(db *gorm.DB) *InventoryGormRepository {
	return &InventoryGormRepository{db: db}
}

// 指定IDの商品をまとめて取得する。
// lock=trueならSELECT ... FOR UPDATEで行ロックを取り、
// 同じ商品に触る並行トランザクションをコミットまで待たせる
func (r *InventoryGormRepository) SnapshotByIDs(ctx context.Context, ids []int64, lock bool) (map[int64]model.Product, error) {
	if len(ids) == 0 {
		return map[int64]model.Product{}, nil
	}

	q := r.db.WithContext(ctx).Where("id IN ?", ids)
	if lock {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var products []model.Product
	if err := q.Find(&products).Error; err != nil {
		return nil, err
	}

	m := make(map[int64]model.Product, len(products))
	for _, p := range products {
		m[p.ID] = p
	}
	return m, nil
}

// 在庫にdeltaを適用する。
// 減算はWHEREで在庫不足を弾く。0行更新＝在庫が足りなかった
func (r *InventoryGormRepository) ApplyDelta(ctx context.Context, productID int64, delta int64, reason model.StockMovementReason, orderID *int64) (bool, error) {
	q := r.db.WithContext(ctx).
		Model(&model.Product{}).
		Where("id = ?", productID)
	if delta < 0 {
		q = q.Where("inventory >= ?", -delta)
	}

	res := q.Update("inventory", gorm.Expr("inventory + ?", delta))
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected == 0 {
		return false, nil
	}

	//適用できたときだけ履歴を残す
	m := model.StockMovement{
		ProductID: productID,
		Delta:     delta,
		Reason:    reason,
		OrderID:   orderID,
	}
	if err := r.db.WithContext(ctx).Create(&m).Error; err != nil {
		return false, err
	}

	return true, nil
}

// 増減履歴のみ作成
func (r *InventoryGormRepository) RecordMovement(ctx context.Context, m model.StockMovement) error {
	if m.Delta == 0 {
		return nil
	}
	if err := r.db.WithContext(ctx).Create(&m).Error; err != nil {
		return err
	}
	return nil
}
