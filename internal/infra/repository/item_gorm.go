package repository

import (
	"context"

	"app/internal/domain/model"

	"gorm.io/gorm"
)

type ItemGormRepository struct {
	db *gorm.DB
}

func NewItemGormRepository(db *gorm.DB) *ItemGormRepository {
	return &ItemGormRepository{db: db}
}

func (r *ItemGormRepository) CreateBulk(ctx context.Context, orderID int64, items []model.Item) error {
	if len(items) == 0 {
		return nil
	}
	for i := range items {
		items[i].OrderID = orderID
	}
	if err := r.db.WithContext(ctx).Create(&items).Error; err != nil {
		return translatePgError(err)
	}
	return nil
}

func (r *ItemGormRepository) ListByOrderID(ctx context.Context, orderID int64) ([]model.Item, error) {
	var items []model.Item
	err := r.db.WithContext(ctx).Where("order_id = ?", orderID).Order("id asc").Find(&items).Error
	if err != nil {
		return []model.Item{}, err
	}
	return items, nil
}

func (r *ItemGormRepository) DeleteByOrderID(ctx context.Context, orderID int64) error {
	return r.db.WithContext(ctx).Where("order_id = ?", orderID).Delete(&model.Item{}).Error
}

// PENDING注文の明細だけスナップショットを新価格へ置き換える。
// 確定済み注文のスナップショットは凍結のまま
func (r *ItemGormRepository) RepriceForPendingOrders(ctx context.Context, productID int64, newPrice float64) (int64, error) {
	pending := r.db.WithContext(ctx).Model(&model.Order{}).
		Select("id").
		Where("status = ?", model.OrderStatusPending)

	res := r.db.WithContext(ctx).Model(&model.Item{}).
		Where("product_id = ? AND order_id IN (?)", productID, pending).
		Update("product_price", newPrice)
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}
