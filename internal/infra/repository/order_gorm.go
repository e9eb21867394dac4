package repository

import (
	"context"
	"errors"
	"time"

	"app/internal/domain/model"
	repo "app/internal/repository"

	"gorm.io/gorm"
)

type OrderGormRepository struct {
	db *gorm.DB
}

func NewOrderGormRepository(db *gorm.DB) *OrderGormRepository {
	return &OrderGormRepository{db: db}
}

func (r *OrderGormRepository) Create(ctx context.Context, order model.Order) (int64, error) {
	if err := r.db.WithContext(ctx).Create(&order).Error; err != nil {
		return 0, translatePgError(err)
	}
	return order.ID, nil
}

func (r *OrderGormRepository) FindByTrackingCode(ctx context.Context, code string) (model.Order, error) {
	var o model.Order
	err := r.db.WithContext(ctx).Where("tracking_code = ?", code).First(&o).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Order{}, repo.ErrNotFound
	}
	if err != nil {
		return model.Order{}, err
	}
	return o, nil
}

// 所有者＋（任意で）ステータスで絞って取得する。
// 存在しない・他人の注文・状態違いはすべてErrNotFoundに落ちる
func (r *OrderGormRepository) FindForUser(ctx context.Context, userID int64, orderID int64, status model.OrderStatus) (model.Order, error) {
	q := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", orderID, userID)
	if status != "" {
		q = q.Where("status = ?", status)
	}

	var o model.Order
	err := q.First(&o).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Order{}, repo.ErrNotFound
	}
	if err != nil {
		return model.Order{}, err
	}
	return o, nil
}

func (r *OrderGormRepository) FindWithStatus(ctx context.Context, orderID int64, status model.OrderStatus) (model.Order, error) {
	var o model.Order
	err := r.db.WithContext(ctx).
		Where("id = ? AND status = ?", orderID, status).
		First(&o).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Order{}, repo.ErrNotFound
	}
	if err != nil {
		return model.Order{}, err
	}
	return o, nil
}

func (r *OrderGormRepository) ListByUserID(ctx context.Context, userID int64, page int, limit int) ([]model.Order, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&model.Order{}).
		Where("user_id = ?", userID).
		Count(&total).Error; err != nil {
		return []model.Order{}, 0, err
	}

	var orders []model.Order
	offset := (page - 1) * limit
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("id desc").
		Limit(limit).
		Offset(offset).
		Find(&orders).Error
	if err != nil {
		return []model.Order{}, 0, err
	}

	return orders, total, nil
}

func (r *OrderGormRepository) UpdateStatus(ctx context.Context, orderID int64, status model.OrderStatus) error {
	res := r.db.WithContext(ctx).Model(&model.Order{}).
		Where("id = ?", orderID).
		Update("status", status)

	if res.Error != nil {
		return translatePgError(res.Error)
	}
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}

func (r *OrderGormRepository) UpdateTotalPrice(ctx context.Context, orderID int64, total float64) error {
	res := r.db.WithContext(ctx).Model(&model.Order{}).
		Where("id = ?", orderID).
		Update("total_price", total)

	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}

// 明細→注文の順で消す
func (r *OrderGormRepository) Delete(ctx context.Context, orderID int64) error {
	if err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Delete(&model.Item{}).Error; err != nil {
		return err
	}

	res := r.db.WithContext(ctx).Delete(&model.Order{}, orderID)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}

// olderThanより古いPENDING注文を明細ごと削除する
func (r *OrderGormRepository) DeleteStalePending(ctx context.Context, olderThan time.Time) (int64, error) {
	stale := r.db.WithContext(ctx).Model(&model.Order{}).
		Select("id").
		Where("status = ? AND created_at < ?", model.OrderStatusPending, olderThan)

	if err := r.db.WithContext(ctx).
		Where("order_id IN (?)", stale).
		Delete(&model.Item{}).Error; err != nil {
		return 0, err
	}

	res := r.db.WithContext(ctx).
		Where("status = ? AND created_at < ?", model.OrderStatusPending, olderThan).
		Delete(&model.Order{})
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

// 商品価格の変更分をPENDING注文の合計へ一括反映する。
// 差分は明細に残っているスナップショット価格から計算するので、
// 明細の書き換えより先に実行する必要がある
func (r *OrderGormRepository) AdjustPendingTotals(ctx context.Context, productID int64, newPrice float64) error {
	return r.db.WithContext(ctx).Exec(`
		UPDATE orders SET total_price = total_price + sub.delta
		FROM (
			SELECT order_id, SUM((? - product_price) * quantity) AS delta
			FROM items
			WHERE product_id = ?
			GROUP BY order_id
		) AS sub
		WHERE orders.id = sub.order_id AND orders.status = ?`,
		newPrice, productID, model.OrderStatusPending,
	).Error
}
