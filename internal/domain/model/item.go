package model

// 注文の明細
// product_priceは作成・更新時点のスナップショットで、商品の現在価格ではない
type Item struct {
	ID        int64 `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderID   int64 `gorm:"not null;index" json:"order_id"`
	ProductID int64 `gorm:"not null;index" json:"product_id"`
	Quantity  int64 `gorm:"not null" json:"quantity"`

	ProductPrice float64 `gorm:"not null" json:"product_price"`
}
