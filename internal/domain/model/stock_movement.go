package model

import "time"

// 在庫を動かした理由
type StockMovementReason string

const (
	//注文確定で在庫を引き当てた
	StockMovementOrderConfirmed StockMovementReason = "ORDER_CONFIRMED"

	//注文キャンセルで在庫を戻した
	StockMovementOrderCanceled StockMovementReason = "ORDER_CANCELED"

	//管理者が商品更新で在庫を書き換えた
	StockMovementAdminSet StockMovementReason = "ADMIN_SET"
)

// 在庫増減の履歴
// 台帳が在庫を動かすたびに1行残す
type StockMovement struct {
	ID        int64               `gorm:"primaryKey;autoIncrement" json:"id"`
	ProductID int64               `gorm:"not null;index" json:"product_id"`
	Delta     int64               `gorm:"not null" json:"delta"`
	Reason    StockMovementReason `gorm:"type:varchar(30);not null;index" json:"reason"`

	//注文起因の場合のみ
	OrderID *int64 `gorm:"index" json:"order_id"`

	CreatedAt time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
}
